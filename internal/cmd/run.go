package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/structbio/bcifpipe/internal/observability"
	"github.com/structbio/bcifpipe/internal/server"
	"github.com/structbio/bcifpipe/pkg/batch"
	"github.com/structbio/bcifpipe/pkg/convert"
	"github.com/structbio/bcifpipe/pkg/fetch"
	"github.com/structbio/bcifpipe/pkg/ident"
	"github.com/structbio/bcifpipe/pkg/idlist"
	"github.com/structbio/bcifpipe/pkg/layout"
	"github.com/structbio/bcifpipe/pkg/manifest"
	"github.com/structbio/bcifpipe/pkg/output"
	"github.com/structbio/bcifpipe/pkg/preflight"
	"github.com/structbio/bcifpipe/pkg/repo"
)

// Status sentinel filenames, written next to the driving list file so
// external schedulers can poll run state.
const (
	statusStartName    = "status.start"
	statusCompleteName = "status.complete"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a conversion batch from a job manifest",
	Long: `Run a conversion batch as defined in a YAML or JSON job manifest.

The manifest specifies the source archive, the ID list or holdings file,
the output layout, and the converter binary.

Example:
  bcifpipe run --job pdb.yaml
  bcifpipe run --job pdb.yaml --workers 16
  bcifpipe run --job pdb.yaml --dry-run`,
	RunE: runRun,
}

var (
	runJobPath string
	runWorkers int
	runDryRun  bool
	runRunID   string
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runJobPath, "job", "j", "", "Path to job manifest (required)")
	runCmd.Flags().IntVarP(&runWorkers, "workers", "w", 0, "Override worker count")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Validate manifest and show plan without executing")
	runCmd.Flags().StringVar(&runRunID, "run-id", "", "Correlation ID for run records (default: random UUID)")

	_ = runCmd.MarkFlagRequired("job")
}

func runRun(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	m, err := manifest.Load(runJobPath)
	if err != nil {
		observability.CLILogger.Error("Failed to load manifest",
			zap.String("path", runJobPath),
			zap.Error(err))
		return err
	}
	if runWorkers > 0 {
		m.Run.Workers = runWorkers
	}
	if m.Run.Workers == 0 {
		m.Run.Workers = runtimeCfg.Workers
	}

	observability.CLILogger.Debug("Loaded manifest",
		zap.String("path", runJobPath),
		zap.String("source", m.Source.Root),
		zap.String("category", m.Source.Category))

	if runDryRun {
		return showPlan(m)
	}
	return executeRun(ctx, m)
}

func executeRun(ctx context.Context, m *manifest.Manifest) error {
	runID := runRunID
	if runID == "" {
		runID = uuid.New().String()
	}
	logger := observability.RunLogger.With(zap.String("run_id", runID))

	resolver, err := buildResolver(m)
	if err != nil {
		return err
	}
	entries, err := loadEntries(m, resolver)
	if err != nil {
		observability.CLILogger.Error("Failed to load entry list", zap.Error(err))
		return err
	}
	if len(entries) == 0 {
		observability.CLILogger.Info("Nothing to convert, all outputs up to date")
		return nil
	}

	writer, cleanup, err := openRecordsWriter(m, runID)
	if err != nil {
		observability.CLILogger.Error("Failed to open run records", zap.Error(err))
		return err
	}
	defer cleanup()

	scratchRoot, err := os.MkdirTemp(m.Run.ScratchDir, "bcifpipe-dict-*")
	if err != nil {
		return fmt.Errorf("create dictionary stage dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(scratchRoot) }()

	dict, err := convert.BuildDictionary(ctx, m.Convert.Dictionaries, scratchRoot)
	if err != nil {
		observability.CLILogger.Error("Failed to build dictionary", zap.Error(err))
		return err
	}
	conv, err := convert.NewExecConverter(m.Convert.Binary, dict)
	if err != nil {
		return err
	}

	fetcher, rep, err := buildFetcher(ctx, m)
	if err != nil {
		observability.CLILogger.Error("Failed to open source repository", zap.Error(err))
		return err
	}

	if _, err := preflight.Run(ctx, preflight.Spec{
		Repository:   rep,
		Probe:        entries[0],
		Resolver:     resolver,
		OutputRoot:   m.Output.Root,
		ConverterBin: m.Convert.Binary,
	}); err != nil {
		observability.CLILogger.Error("Preflight failed", zap.Error(err))
		return err
	}

	runner, err := batch.New(batch.Config{
		OutputRoot:   m.Output.Root,
		Workers:      m.Run.Workers,
		ScratchRoot:  m.Run.ScratchDir,
		CleanupEvery: m.Run.CleanupEvery,
		RunID:        runID,
	}, resolver, fetcher, conv, writer, logger)
	if err != nil {
		return err
	}

	if runtimeCfg.Server.Addr != "" {
		srv := server.New(runtimeCfg.Server, runner.Counts, versionInfo.Version, runID, observability.CLILogger)
		srv.Start()
		defer func() { _ = srv.Shutdown(context.Background(), runtimeCfg.Server.ShutdownTimeout) }()
	}

	sentinelDir := filepath.Dir(listPath(m))
	_ = os.Remove(filepath.Join(sentinelDir, statusCompleteName))
	if err := writeSentinel(sentinelDir, statusStartName, runID); err != nil {
		observability.CLILogger.Warn("Failed to write start sentinel", zap.Error(err))
	}

	observability.CLILogger.Info("Starting batch",
		zap.String("run_id", runID),
		zap.Int("entries", len(entries)),
		zap.Int("workers", m.Run.Workers))

	summary, err := runner.Run(ctx, entries)
	if err != nil {
		if ctx.Err() != nil {
			observability.CLILogger.Warn("Batch cancelled", zap.String("run_id", runID))
			return err
		}
		observability.CLILogger.Error("Batch failed", zap.String("run_id", runID), zap.Error(err))
		return err
	}

	_ = os.Remove(filepath.Join(sentinelDir, statusStartName))
	if err := writeSentinel(sentinelDir, statusCompleteName, runID); err != nil {
		observability.CLILogger.Warn("Failed to write completion sentinel", zap.Error(err))
	}

	observability.CLILogger.Info("Batch completed",
		zap.String("run_id", runID),
		zap.Int64("converted", summary.Converted),
		zap.Int64("skipped", summary.Skipped),
		zap.Int64("failed", summary.Failed),
		zap.Duration("duration", summary.Duration))

	// Per-record failures are already in the run records; they do not
	// fail the command. Only setup errors and cancellation do.
	if summary.Failed > 0 {
		observability.CLILogger.Warn("Some records failed, see run records",
			zap.Int64("failed", summary.Failed),
			zap.Int64("entries", summary.Entries))
	}
	return nil
}

// showPlan displays what would be converted without executing.
func showPlan(m *manifest.Manifest) error {
	resolver, err := buildResolver(m)
	if err != nil {
		return err
	}
	entries, err := loadEntries(m, resolver)
	if err != nil {
		return err
	}

	fmt.Println("=== Conversion Plan (dry-run) ===")
	fmt.Println()
	fmt.Printf("Source:      %s\n", m.Source.Root)
	fmt.Printf("Category:    %s\n", m.Source.Category)
	fmt.Printf("List:        %s (%s)\n", listPath(m), m.Lists.Mode)
	fmt.Printf("Output:      %s\n", m.Output.Root)
	fmt.Printf("Suffix:      %s\n", m.Output.Suffix)
	fmt.Printf("Layout:      category=%v hash=%v\n", m.Output.QualifyByCategory, m.Output.QualifyByHash)
	fmt.Printf("Converter:   %s\n", m.Convert.Binary)
	for _, d := range m.Convert.Dictionaries {
		fmt.Printf("Dictionary:  %s\n", d)
	}
	fmt.Printf("Workers:     %d\n", m.Run.Workers)
	if m.Run.RateLimit > 0 {
		fmt.Printf("Rate limit:  %.1f fetches/s\n", m.Run.RateLimit)
	}
	fmt.Println()
	fmt.Printf("%d entries to convert. Remove --dry-run to execute.\n", len(entries))
	return nil
}

func listPath(m *manifest.Manifest) string {
	if m.Lists.File != "" {
		return m.Lists.File
	}
	return m.Lists.Holdings
}

// buildResolver constructs the path resolver shared by the batch
// writer and the reconciler.
func buildResolver(m *manifest.Manifest) (*layout.Resolver, error) {
	return layout.NewResolver(layout.Options{
		QualifyByCategory: m.Output.QualifyByCategory,
		QualifyByHash:     m.Output.QualifyByHash,
		Suffix:            m.Output.Suffix,
	})
}

// loadEntries reads the driving list or holdings file and, in
// incremental mode, keeps only entries whose output is missing or
// stale.
func loadEntries(m *manifest.Manifest, resolver *layout.Resolver) ([]idlist.Entry, error) {
	cat, err := ident.ParseCategory(m.Source.Category)
	if err != nil {
		return nil, err
	}

	var entries []idlist.Entry
	switch {
	case m.Lists.File != "":
		entries, err = idlist.Load(m.Lists.File, m.Lists.Max, cat)
	case cat == ident.CategoryCSM:
		entries, err = idlist.LoadModelHoldings(m.Lists.Holdings)
	default:
		entries, err = idlist.LoadEntryHoldings(m.Lists.Holdings, cat)
	}
	if err != nil {
		return nil, err
	}
	if m.Lists.Max > 0 && len(entries) > m.Lists.Max {
		entries = entries[:m.Lists.Max]
	}

	if m.Lists.Mode == manifest.ModeIncremental {
		entries = idlist.Incremental(entries, func(e idlist.Entry) bool {
			dest, derr := resolver.DestPath(m.Output.Root, e.ID, e.Category)
			if derr != nil {
				// unresolvable entries stay in the batch so the
				// failure is recorded per ID
				return true
			}
			return batch.NeedsConversion(dest, e.Timestamp)
		})
	}
	return entries, nil
}

// buildFetcher opens the source repository and wraps it with the
// configured rate limit.
func buildFetcher(ctx context.Context, m *manifest.Manifest) (*fetch.Fetcher, repo.Repository, error) {
	rep, err := fetch.OpenRepository(ctx, m.Source.Root, runtimeCfg.Fetch.Timeout)
	if err != nil {
		return nil, nil, err
	}
	var opts []fetch.Option
	if m.Run.RateLimit > 0 {
		opts = append(opts, fetch.WithRateLimit(m.Run.RateLimit))
	}
	return fetch.New(rep, opts...), rep, nil
}

// openRecordsWriter opens the JSONL run-record destination.
func openRecordsWriter(m *manifest.Manifest, runID string) (output.Writer, func(), error) {
	dest := m.Output.Records
	if dest == "" || dest == "stdout" {
		w := output.NewJSONLWriter(os.Stdout, runID)
		return w, func() { _ = w.Close() }, nil
	}

	path := strings.TrimPrefix(dest, "file:")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create run record dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create run record file %s: %w", path, err)
	}
	w := output.NewJSONLWriter(f, runID)
	return w, func() {
		_ = w.Close()
		_ = f.Close()
	}, nil
}

// writeSentinel drops a status sentinel file for external schedulers.
func writeSentinel(dir, name, runID string) error {
	return os.WriteFile(filepath.Join(dir, name), []byte(runID+"\n"), 0o644)
}
