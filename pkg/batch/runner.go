// Package batch runs incremental conversion batches: it shards an ID
// list, drives per-shard worker units, and aggregates their results.
package batch

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/structbio/bcifpipe/pkg/convert"
	"github.com/structbio/bcifpipe/pkg/fetch"
	"github.com/structbio/bcifpipe/pkg/idlist"
	"github.com/structbio/bcifpipe/pkg/layout"
	"github.com/structbio/bcifpipe/pkg/output"
	"github.com/structbio/bcifpipe/pkg/shard"
)

// Config controls a batch run.
type Config struct {
	// OutputRoot is the root directory converted artifacts are
	// published under.
	OutputRoot string

	// Workers is the target shard count and the parallelism bound.
	// Zero or negative means one shard per CPU.
	Workers int

	// ScratchRoot is the directory scratch space is created under.
	// Empty means the system temp directory.
	ScratchRoot string

	// CleanupEvery is how many conversions a unit completes between
	// scratch sweeps. Zero means DefaultCleanupEvery.
	CleanupEvery int

	// RunID correlates records across the run's JSONL output.
	RunID string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Workers:      runtime.NumCPU(),
		CleanupEvery: DefaultCleanupEvery,
	}
}

// Counts is a point-in-time snapshot of run counters.
type Counts struct {
	Processed int64 `json:"processed"`
	Converted int64 `json:"converted"`
	Skipped   int64 `json:"skipped"`
	Failed    int64 `json:"failed"`
}

// Summary aggregates a completed run.
type Summary struct {
	Entries   int64
	Converted int64
	Skipped   int64
	Failed    int64
	Shards    int
	Duration  time.Duration
	Units     []UnitReport
}

// Runner executes conversion batches. One Runner may serve multiple
// sequential Run calls; counters accumulate across them.
type Runner struct {
	cfg      Config
	resolver *layout.Resolver
	fetcher  *fetch.Fetcher
	conv     convert.Converter
	writer   output.Writer
	logger   *zap.Logger

	processed atomic.Int64
	converted atomic.Int64
	skipped   atomic.Int64
	failed    atomic.Int64
}

// New creates a Runner. Zero-value config fields are replaced with
// defaults.
func New(cfg Config, resolver *layout.Resolver, fetcher *fetch.Fetcher, conv convert.Converter, writer output.Writer, logger *zap.Logger) (*Runner, error) {
	if cfg.OutputRoot == "" {
		return nil, fmt.Errorf("output root is required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("layout resolver is required")
	}
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if conv == nil {
		return nil, fmt.Errorf("converter is required")
	}
	if writer == nil {
		return nil, fmt.Errorf("output writer is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.CleanupEvery <= 0 {
		cfg.CleanupEvery = DefaultCleanupEvery
	}
	return &Runner{
		cfg:      cfg,
		resolver: resolver,
		fetcher:  fetcher,
		conv:     conv,
		writer:   writer,
		logger:   logger,
	}, nil
}

// Counts returns a snapshot of the run counters. Safe to call while a
// run is in flight.
func (r *Runner) Counts() Counts {
	return Counts{
		Processed: r.processed.Load(),
		Converted: r.converted.Load(),
		Skipped:   r.skipped.Load(),
		Failed:    r.failed.Load(),
	}
}

// Run converts entries, sharding them across worker units. Per-record
// failures are recorded and do not stop the run; the returned error is
// non-nil only for setup failures or context cancellation. The shard
// count the splitter produces may exceed Workers; parallelism stays
// bounded by Workers regardless.
func (r *Runner) Run(ctx context.Context, entries []idlist.Entry) (*Summary, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("no entries to process")
	}

	scratchRoot := r.cfg.ScratchRoot
	if scratchRoot == "" {
		scratchRoot = os.TempDir()
	}
	runRoot, err := os.MkdirTemp(scratchRoot, "bcifpipe-run-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch root: %w", err)
	}
	defer func() { _ = os.RemoveAll(runRoot) }()

	shards := shard.Split(entries, r.cfg.Workers)
	r.logger.Info("run starting",
		zap.String("run_id", r.cfg.RunID),
		zap.Int("entries", len(entries)),
		zap.Int("shards", len(shards)),
		zap.Int("workers", r.cfg.Workers))

	start := time.Now()
	reports := make([]UnitReport, len(shards))
	var mu sync.Mutex

	// All scratch spaces are created before any unit dispatches, so a
	// setup failure returns with no units in flight and the deferred
	// runRoot removal cannot race a running unit.
	scratches := make([]*scratchSpace, len(shards))
	for i := range shards {
		scratch, err := newScratchSpace(runRoot, i, r.cfg.CleanupEvery)
		if err != nil {
			return nil, fmt.Errorf("create scratch space: %w", err)
		}
		scratches[i] = scratch
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for i, part := range shards {
		u := &unit{
			runner:  r,
			shard:   i,
			scratch: scratches[i],
			logger:  r.logger.With(zap.Int("shard", i)),
		}
		u.report.Shard = i
		entries := part
		g.Go(func() error {
			err := u.run(gctx, entries)
			mu.Lock()
			reports[u.shard] = u.report
			mu.Unlock()
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sum := &Summary{
		Entries:   r.processed.Load(),
		Converted: r.converted.Load(),
		Skipped:   r.skipped.Load(),
		Failed:    r.failed.Load(),
		Shards:    len(shards),
		Duration:  time.Since(start),
		Units:     reports,
	}
	_ = r.writer.WriteSummary(ctx, &output.SummaryRecord{
		Entries:       sum.Entries,
		Converted:     sum.Converted,
		Skipped:       sum.Skipped,
		Failed:        sum.Failed,
		Shards:        sum.Shards,
		Duration:      sum.Duration.Round(time.Millisecond).String(),
		DurationMilli: sum.Duration.Milliseconds(),
	})
	r.logger.Info("run complete",
		zap.Int64("entries", sum.Entries),
		zap.Int64("converted", sum.Converted),
		zap.Int64("skipped", sum.Skipped),
		zap.Int64("failed", sum.Failed),
		zap.Duration("duration", sum.Duration))
	return sum, nil
}
