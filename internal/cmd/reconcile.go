package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/structbio/bcifpipe/internal/observability"
	"github.com/structbio/bcifpipe/pkg/ident"
	"github.com/structbio/bcifpipe/pkg/idlist"
	"github.com/structbio/bcifpipe/pkg/manifest"
	"github.com/structbio/bcifpipe/pkg/reconcile"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that every listed record has an output file",
	Long: `Check the output tree against the job's ID lists and report records
whose destination file is absent. Results go to missing.txt under the
report directory; the file is written even when empty.

Run this only while no batch is writing the output tree.

Example:
  bcifpipe validate --job pdb.yaml`,
	RunE: runValidate,
}

var retractCmd = &cobra.Command{
	Use:   "retract",
	Short: "Report output files no list claims any more",
	Long: `Walk the output tree and report files whose record no longer appears
in the job's ID lists. Results go to removed.txt under the report
directory; the file is written even when empty. Files are only deleted
with --delete.

Run this only while no batch is writing the output tree.

Example:
  bcifpipe retract --job pdb.yaml
  bcifpipe retract --job pdb.yaml --delete`,
	RunE: runRetract,
}

var (
	reconcileJobPath string
	retractDelete    bool
)

func init() {
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(retractCmd)

	for _, c := range []*cobra.Command{validateCmd, retractCmd} {
		c.Flags().StringVarP(&reconcileJobPath, "job", "j", "", "Path to job manifest (required)")
		_ = c.MarkFlagRequired("job")
	}
	retractCmd.Flags().BoolVar(&retractDelete, "delete", false, "Delete retracted files instead of only reporting them")
}

func buildReconciler(m *manifest.Manifest, del bool) (*reconcile.Reconciler, []idlist.Entry, error) {
	resolver, err := buildResolver(m)
	if err != nil {
		return nil, nil, err
	}
	entries, err := loadAllEntries(m)
	if err != nil {
		return nil, nil, err
	}
	cat, err := ident.ParseCategory(m.Source.Category)
	if err != nil {
		return nil, nil, err
	}
	rec, err := reconcile.New(reconcile.Config{
		OutputRoot: m.Output.Root,
		Category:   cat,
		Exclude:    m.Reports.Exclude,
		Delete:     del,
		ReportDir:  m.Reports.Dir,
	}, resolver, observability.CLILogger)
	if err != nil {
		return nil, nil, err
	}
	return rec, entries, nil
}

// loadAllEntries loads the job's full entry set regardless of the
// manifest's incremental mode; reconciliation always compares against
// everything the lists claim.
func loadAllEntries(m *manifest.Manifest) ([]idlist.Entry, error) {
	full := *m
	full.Lists.Mode = manifest.ModeFull
	return loadEntries(&full, nil)
}

func runValidate(cmd *cobra.Command, _ []string) error {
	m, err := manifest.Load(reconcileJobPath)
	if err != nil {
		return err
	}
	rec, entries, err := buildReconciler(m, false)
	if err != nil {
		observability.CLILogger.Error("Failed to build reconciler", zap.Error(err))
		return err
	}

	rep, err := rec.Run(cmd.Context(), entries)
	if err != nil {
		return err
	}
	fmt.Printf("Checked %d entries: %d missing.\n", rep.Checked, len(rep.Missing))
	if len(rep.Missing) > 0 {
		return fmt.Errorf("%d listed records have no output", len(rep.Missing))
	}
	return nil
}

func runRetract(cmd *cobra.Command, _ []string) error {
	m, err := manifest.Load(reconcileJobPath)
	if err != nil {
		return err
	}
	rec, entries, err := buildReconciler(m, retractDelete)
	if err != nil {
		observability.CLILogger.Error("Failed to build reconciler", zap.Error(err))
		return err
	}

	rep, err := rec.Run(cmd.Context(), entries)
	if err != nil {
		return err
	}
	if retractDelete {
		fmt.Printf("Retracted %d files, deleted %d.\n", len(rep.Retracted), rep.Deleted)
	} else {
		fmt.Printf("Retracted %d files (report only, use --delete to remove).\n", len(rep.Retracted))
	}
	return nil
}
