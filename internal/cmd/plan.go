package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/structbio/bcifpipe/internal/observability"
	"github.com/structbio/bcifpipe/pkg/manifest"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Validate a job manifest and show what a run would do",
	Long: `Load and validate a job manifest, resolve the entry list, and print
the resulting plan without fetching or converting anything.

Equivalent to "run --dry-run".

Example:
  bcifpipe plan --job pdb.yaml`,
	RunE: runPlan,
}

var planJobPath string

func init() {
	rootCmd.AddCommand(planCmd)

	planCmd.Flags().StringVarP(&planJobPath, "job", "j", "", "Path to job manifest (required)")
	_ = planCmd.MarkFlagRequired("job")
}

func runPlan(_ *cobra.Command, _ []string) error {
	m, err := manifest.Load(planJobPath)
	if err != nil {
		observability.CLILogger.Error("Failed to load manifest",
			zap.String("path", planJobPath),
			zap.Error(err))
		return err
	}
	return showPlan(m)
}
