package main

import (
	"bytes"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"run", "resume", "runs", "leads", "serve", "niches"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "prospect-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRunCommand_Flags(t *testing.T) {
	for _, name := range []string{"category", "area", "tenant", "client", "min-score", "max-per-area", "no-ads", "no-ai", "diagnostic"} {
		assert.NotNil(t, runCmd.Flags().Lookup(name), "run should have --%s", name)
	}
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestSubcommandTrees(t *testing.T) {
	tests := []struct {
		parent string
		want   []string
	}{
		{"runs", []string{"list", "show", "stats"}},
		{"leads", []string{"list", "export"}},
	}
	for _, tt := range tests {
		t.Run(tt.parent, func(t *testing.T) {
			parent, _, err := rootCmd.Find([]string{tt.parent})
			require.NoError(t, err)
			names := make(map[string]bool)
			for _, c := range parent.Commands() {
				names[c.Name()] = true
			}
			for _, n := range tt.want {
				assert.True(t, names[n], "%s should have subcommand %q", tt.parent, n)
			}
		})
	}
}

func TestLeadsExport_RequiresXLSXFlag(t *testing.T) {
	flag := leadsExportCmd.Flags().Lookup("xlsx")
	require.NotNil(t, flag)
	assert.Equal(t, "", flag.DefValue)
	assert.Error(t, leadsExportCmd.RunE(leadsExportCmd, nil))
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, map[string]int{"total": 2}))
	assert.Equal(t, "{\n  \"total\": 2\n}\n", buf.String())
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc12345", truncateID("abc12345-6789-0000"))
	assert.Equal(t, "short", truncateID("short"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 30))
	assert.Equal(t, "Clínica Odontológica Sorr...", truncate("Clínica Odontológica Sorriso Perfeito", 28))
	assert.True(t, utf8.ValidString(truncate("Clínica Odontológica Sorriso Perfeito", 10)))
	assert.Equal(t, "ção", truncate("ção", 3))
}
