package main

import (
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sells-group/prospect-cli/internal/config"
	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the prospecting pipeline for one category and set of areas",
	Long: `Searches every --area in order, upserts the leads found and enriches the new ones.
Areas are given as name:lat:lng:radius, radius in meters, e.g.
  prospect-cli run --category dentist --area "Centro:-23.5505:-46.6333:3000"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		req, err := buildRequest(cmd.Flags())
		if err != nil {
			return err
		}
		tenant, _ := cmd.Flags().GetString("tenant")

		env, err := initPipeline(ctx, config.ModePipeline)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Pipeline.Run(ctx, tenant, req)
		if res != nil {
			if perr := printJSON(os.Stdout, res); perr != nil {
				return eris.Wrap(perr, "run: print result")
			}
		}
		return err
	},
}

// buildRequest assembles a pipeline request from the run flags. Optional
// values are only set when their flag was given, so the configured defaults
// apply otherwise.
func buildRequest(flags *pflag.FlagSet) (pipeline.Request, error) {
	var req pipeline.Request

	req.Category, _ = flags.GetString("category")
	req.ClientID, _ = flags.GetString("client")

	specs, _ := flags.GetStringArray("area")
	for _, s := range specs {
		area, err := parseArea(s)
		if err != nil {
			return req, err
		}
		req.Areas = append(req.Areas, area)
	}

	if flags.Changed("min-score") {
		v, _ := flags.GetInt("min-score")
		req.MinScore = &v
	}
	if flags.Changed("max-per-area") {
		v, _ := flags.GetInt("max-per-area")
		req.MaxPerArea = &v
	}
	if noAds, _ := flags.GetBool("no-ads"); noAds {
		req.VerifyAds = boolPtr(false)
	}
	if noAI, _ := flags.GetBool("no-ai"); noAI {
		req.RunAI = boolPtr(false)
	}
	if diag, _ := flags.GetBool("diagnostic"); diag {
		req.RunDiagnostic = boolPtr(true)
	}
	return req, nil
}

// parseArea parses name:lat:lng:radius. The name may itself contain colons;
// the last three fields are always the coordinates and radius.
func parseArea(s string) (model.Area, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 4 {
		return model.Area{}, eris.Errorf("invalid area %q: want name:lat:lng:radius", s)
	}
	n := len(parts)
	name := strings.TrimSpace(strings.Join(parts[:n-3], ":"))

	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[n-3]), 64)
	if err != nil {
		return model.Area{}, eris.Wrapf(err, "invalid area %q: latitude", s)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[n-2]), 64)
	if err != nil {
		return model.Area{}, eris.Wrapf(err, "invalid area %q: longitude", s)
	}
	radius, err := strconv.Atoi(strings.TrimSpace(parts[n-1]))
	if err != nil {
		return model.Area{}, eris.Wrapf(err, "invalid area %q: radius", s)
	}
	return model.Area{Name: name, Latitude: lat, Longitude: lng, RadiusM: radius}, nil
}

func boolPtr(b bool) *bool { return &b }

// addRunFlags registers the request flags of the run command.
func addRunFlags(fs *pflag.FlagSet) {
	fs.String("category", "", "business category to search (required)")
	fs.StringArray("area", nil, "search area as name:lat:lng:radius (repeatable)")
	fs.String("tenant", "", "owning tenant (defaults to pipeline.default_tenant)")
	fs.String("client", "", "associated client reference")
	fs.Int("min-score", 0, "minimum heuristic score for search results")
	fs.Int("max-per-area", 0, "max results per area")
	fs.Bool("no-ads", false, "skip ads verification")
	fs.Bool("no-ai", false, "skip AI scoring")
	fs.Bool("diagnostic", false, "run the deep diagnostic on HOT leads")
}

func init() {
	addRunFlags(runCmd.Flags())
	_ = runCmd.MarkFlagRequired("category")
	_ = runCmd.MarkFlagRequired("area")
	rootCmd.AddCommand(runCmd)
}
