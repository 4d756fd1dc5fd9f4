// Package niche detects a lead's business niche from free text using a
// static keyword catalog.
package niche

import (
	_ "embed"
	"os"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// Other is the niche key returned when no catalog entry matches.
const Other = "other"

//go:embed catalog.yaml
var defaultCatalog []byte

// Niche is one catalog entry.
type Niche struct {
	Key        string   `yaml:"key" json:"key"`
	Label      string   `yaml:"label" json:"label"`
	Keywords   []string `yaml:"keywords" json:"keywords"`
	PainPoints []string `yaml:"pain_points" json:"pain_points"`
	Hints      Hints    `yaml:"hints" json:"hints"`
}

// Hints are message-template hints. "{name}" is replaced with the lead name.
type Hints struct {
	Opening  string `yaml:"opening" json:"opening"`
	FollowUp string `yaml:"follow_up" json:"follow_up"`
	Closing  string `yaml:"closing" json:"closing"`
}

// Catalog is an ordered list of niches.
type Catalog struct {
	Niches []Niche `yaml:"niches"`

	folded [][]string
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		// The embedded file is covered by tests.
		panic(err)
	}
	return c
}

// Load reads a catalog from path. An empty path returns the embedded catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "niche: read catalog %s", path)
	}
	return Parse(data)
}

// Parse decodes a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, eris.Wrap(err, "niche: parse catalog")
	}
	if len(c.Niches) == 0 {
		return nil, eris.New("niche: catalog has no niches")
	}
	c.folded = make([][]string, len(c.Niches))
	for i, n := range c.Niches {
		if n.Key == "" {
			return nil, eris.Errorf("niche: entry %d has no key", i)
		}
		for _, kw := range n.Keywords {
			if f := Fold(kw); f != "" {
				c.folded[i] = append(c.folded[i], f)
			}
		}
	}
	return &c, nil
}

// Match is the outcome of a detection.
type Match struct {
	Key        string   `json:"key"`
	Label      string   `json:"label"`
	Keyword    string   `json:"keyword,omitempty"`
	PainPoints []string `json:"pain_points,omitempty"`
	Hints      Hints    `json:"hints"`
}

// Detect concatenates the given texts and returns the first niche with a
// keyword starting a word in them. No match yields Other.
func (c *Catalog) Detect(texts ...string) Match {
	haystack := " " + Fold(strings.Join(texts, " ")) + " "
	for i, n := range c.Niches {
		for _, kw := range c.folded[i] {
			if strings.Contains(haystack, " "+kw) {
				return Match{
					Key:        n.Key,
					Label:      n.Label,
					Keyword:    kw,
					PainPoints: n.PainPoints,
					Hints:      n.Hints,
				}
			}
		}
	}
	return Match{Key: Other, Label: "Other"}
}

// Get returns the niche with the given key.
func (c *Catalog) Get(key string) (Niche, bool) {
	for _, n := range c.Niches {
		if n.Key == key {
			return n, true
		}
	}
	return Niche{}, false
}

// Fold lowercases s, strips diacritics and collapses every run of
// non-alphanumeric characters into one space.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	out = strings.ToLower(out)
	fields := strings.FieldsFunc(out, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	return strings.Join(fields, " ")
}

// Render substitutes the lead name into a hint template.
func Render(tmpl, name string) string {
	if name == "" {
		name = "your business"
	}
	return strings.ReplaceAll(tmpl, "{name}", name)
}
