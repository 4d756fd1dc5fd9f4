package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/export"
	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/store"
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Browse and export stored leads",
}

// -- leads list --

var leadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List leads by final score",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		leads, err := st.ListLeads(ctx, leadFilter(cmd.Flags()))
		if err != nil {
			return eris.Wrap(err, "leads list")
		}
		if len(leads) == 0 {
			fmt.Fprintln(os.Stderr, "No leads found.")
			return nil
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(os.Stdout, leads)
		}
		formatLeadsList(os.Stdout, leads)
		return nil
	},
}

// -- leads export --

var leadsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export leads to an XLSX spreadsheet",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		path, _ := cmd.Flags().GetString("xlsx")
		if path == "" {
			return eris.New("leads export: --xlsx path is required")
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		leads, err := st.ListLeads(ctx, leadFilter(cmd.Flags()))
		if err != nil {
			return eris.Wrap(err, "leads export")
		}

		if err := export.SaveXLSX(path, leads); err != nil {
			return err
		}
		zap.L().Info("leads exported", zap.String("path", path), zap.Int("count", len(leads)))
		return nil
	},
}

func init() {
	addLeadFilterFlags(leadsListCmd.Flags())
	addLeadFilterFlags(leadsExportCmd.Flags())
	leadsListCmd.Flags().Bool("json", false, "print leads as JSON")
	leadsExportCmd.Flags().String("xlsx", "", "output XLSX path")

	leadsCmd.AddCommand(leadsListCmd)
	leadsCmd.AddCommand(leadsExportCmd)
	rootCmd.AddCommand(leadsCmd)
}

func addLeadFilterFlags(fs *pflag.FlagSet) {
	fs.String("tenant", "", "filter by tenant")
	fs.StringSlice("classification", nil, "filter by classification (HOT, WARM, COOL, COLD)")
	fs.Int("limit", 100, "max number of leads")
	fs.Int("offset", 0, "number of leads to skip")
}

// leadFilter builds a store filter from the shared leads flags. Pages are
// ordered by final score in the query so --offset walks the ranking.
func leadFilter(flags *pflag.FlagSet) store.LeadFilter {
	tenant, _ := flags.GetString("tenant")
	classes, _ := flags.GetStringSlice("classification")
	limit, _ := flags.GetInt("limit")
	offset, _ := flags.GetInt("offset")

	f := store.LeadFilter{TenantID: tenant, ByFinalScore: true, Limit: limit, Offset: offset}
	for _, c := range classes {
		f.Classifications = append(f.Classifications, model.ParseClassification(c))
	}
	return f
}

// formatLeadsList writes a tabular list of leads to w.
func formatLeadsList(out io.Writer, leads []model.Lead) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tCLASS\tSCORE\tFINAL\tMARKETING\tPHONE\tCITY")
	_, _ = fmt.Fprintln(w, "--\t----\t-----\t-----\t-----\t---------\t-----\t----")

	for _, l := range leads {
		final := "-"
		if fs := l.FinalScore(); fs != nil {
			final = strconv.Itoa(*fs)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			truncateID(l.ID),
			truncate(l.Name, 30),
			l.Classification,
			l.Score,
			final,
			l.Marketing,
			l.Phone,
			l.City,
		)
	}
	_ = w.Flush()
}
