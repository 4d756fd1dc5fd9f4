package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/prospect-cli/internal/niche"
)

var nichesCmd = &cobra.Command{
	Use:   "niches [text...]",
	Short: "Print the niche catalog, one niche, or detect the niche of the given text",
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := niche.Load(cfg.Niche.CatalogPath)
		if err != nil {
			return err
		}
		if key, _ := cmd.Flags().GetString("key"); key != "" {
			return showNiche(os.Stdout, catalog, key)
		}
		if len(args) > 0 {
			return printJSON(os.Stdout, catalog.Detect(args...))
		}
		formatCatalog(os.Stdout, catalog)
		return nil
	},
}

func init() {
	nichesCmd.Flags().String("key", "", "print the full entry of one niche")
	rootCmd.AddCommand(nichesCmd)
}

// showNiche prints the catalog entry for key as JSON.
func showNiche(out io.Writer, c *niche.Catalog, key string) error {
	n, ok := c.Get(key)
	if !ok {
		return eris.Errorf("niches: unknown niche %q", key)
	}
	return printJSON(out, n)
}

// formatCatalog writes one line per niche with its keywords.
func formatCatalog(out io.Writer, c *niche.Catalog) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "KEY\tLABEL\tKEYWORDS")
	_, _ = fmt.Fprintln(w, "---\t-----\t--------")
	for _, n := range c.Niches {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", n.Key, n.Label, strings.Join(n.Keywords, ", "))
	}
	_ = w.Flush()
}
