package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/prospect-cli/internal/config"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <run-id>",
	Short: "Resume an interrupted run from its next unfinished stage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		tenant, _ := cmd.Flags().GetString("tenant")

		env, err := initPipeline(ctx, config.ModePipeline)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Pipeline.Resume(ctx, tenant, args[0])
		if res != nil {
			if perr := printJSON(os.Stdout, res); perr != nil {
				return eris.Wrap(perr, "resume: print result")
			}
		}
		return err
	},
}

func init() {
	resumeCmd.Flags().String("tenant", "", "only resume the run if it belongs to this tenant")
	rootCmd.AddCommand(resumeCmd)
}
