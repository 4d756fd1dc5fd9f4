package niche

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogParses(t *testing.T) {
	c := Default()
	require.NotEmpty(t, c.Niches)
	for _, n := range c.Niches {
		assert.NotEmpty(t, n.Key)
		assert.NotEmpty(t, n.Keywords, n.Key)
		assert.NotEmpty(t, n.Hints.Opening, n.Key)
	}
}

func TestDetect(t *testing.T) {
	c := Default()

	tests := []struct {
		name  string
		texts []string
		want  string
	}{
		{name: "dentist in name", texts: []string{"Sorriso Perfeito Odontologia"}, want: "dentistry"},
		{name: "accents folded", texts: []string{"Clínica de Estética Bella"}, want: "aesthetics"},
		{name: "website host", texts: []string{"Casa Nova", "https://pizzaria-casanova.com.br"}, want: "restaurant"},
		{name: "instagram handle", texts: []string{"Studio K", "", "@academia.studiok"}, want: "fitness"},
		{name: "notes only", texts: []string{"Joao", "", "", "does car repair and painting"}, want: "auto"},
		{name: "no match", texts: []string{"Acme Holdings"}, want: Other},
		{name: "empty", texts: nil, want: Other},
		{name: "keyword must start a word", texts: []string{"Competition Supplies"}, want: Other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := c.Detect(tt.texts...)
			assert.Equal(t, tt.want, m.Key)
		})
	}
}

func TestDetect_FirstMatchWins(t *testing.T) {
	c, err := Parse([]byte(`
niches:
  - key: first
    keywords: [clinic]
  - key: second
    keywords: [dental]
`))
	require.NoError(t, err)

	m := c.Detect("Dental Clinic")
	assert.Equal(t, "first", m.Key)
	assert.Equal(t, "clinic", m.Keyword)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte(`niches: []`))
	assert.Error(t, err)

	_, err = Parse([]byte(`niches: [{label: x}]`))
	assert.Error(t, err)

	_, err = Parse([]byte(`{{{`))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.NotEmpty(t, c.Niches)

	path := filepath.Join(t.TempDir(), "niches.yaml")
	require.NoError(t, os.WriteFile(path, []byte("niches:\n  - key: bakery\n    keywords: [padaria, bakery]\n"), 0o644))
	c, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "bakery", c.Detect("Padaria Pão Quente").Key)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestFold(t *testing.T) {
	assert.Equal(t, "clinica estetica sao paulo", Fold("Clínica  Estética -- São Paulo!"))
	assert.Equal(t, "", Fold("  ...  "))
}

func TestRender(t *testing.T) {
	assert.Equal(t, "Hi Acme", Render("Hi {name}", "Acme"))
	assert.Equal(t, "Hi your business", Render("Hi {name}", ""))
}
