// Package reconcile compares the output tree against the ID lists that
// should have produced it. Validation reports list entries whose
// destination is absent; retraction reports destinations no list claims
// any more. Both directions share the conversion writer's path
// resolver, so a record can never be flagged because the two sides
// disagreed about where it belongs.
package reconcile

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/structbio/bcifpipe/pkg/ident"
	"github.com/structbio/bcifpipe/pkg/idlist"
	"github.com/structbio/bcifpipe/pkg/layout"
)

// Report filenames written under the report directory.
const (
	MissingReportName = "missing.txt"
	RemovedReportName = "removed.txt"
)

// Config controls a reconciliation pass.
type Config struct {
	// OutputRoot is the root of the converted output tree.
	OutputRoot string

	// Category is the content category assumed for outputs when the
	// layout does not qualify paths by category.
	Category ident.Category

	// Exclude holds doublestar patterns, matched against the
	// slash-separated path relative to OutputRoot. Matching files are
	// neither validated nor retracted.
	Exclude []string

	// Delete removes retracted files from disk. When false the pass
	// only reports them.
	Delete bool

	// ReportDir is where missing.txt and removed.txt are written.
	// Empty means OutputRoot.
	ReportDir string
}

// Report is the result of a reconciliation pass. Both report files are
// written even when their sections are empty, so a consumer can tell a
// clean pass from a pass that never ran.
type Report struct {
	// Checked is the number of list entries validated.
	Checked int

	// Missing lists resolved output paths (relative to OutputRoot)
	// whose destination is absent, one per list entry, so report
	// consumers see the same path the writer would have produced.
	Missing []string

	// Retracted lists output paths (relative to OutputRoot) that no
	// list entry claims.
	Retracted []string

	// Deleted is the number of retracted files removed from disk.
	Deleted int
}

// Reconciler runs validation and retraction passes over an output
// tree.
type Reconciler struct {
	cfg      Config
	resolver *layout.Resolver
	logger   *zap.Logger
}

// New creates a Reconciler. Zero-value config fields are replaced with
// defaults.
func New(cfg Config, resolver *layout.Resolver, logger *zap.Logger) (*Reconciler, error) {
	if cfg.OutputRoot == "" {
		return nil, fmt.Errorf("output root is required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("layout resolver is required")
	}
	if cfg.Category == "" {
		cfg.Category = ident.CategoryPDB
	}
	if cfg.ReportDir == "" {
		cfg.ReportDir = cfg.OutputRoot
	}
	for _, pat := range cfg.Exclude {
		if !doublestar.ValidatePattern(pat) {
			return nil, fmt.Errorf("invalid exclude pattern %q", pat)
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{cfg: cfg, resolver: resolver, logger: logger}, nil
}

// Validate returns the entries whose destination file is absent,
// preserving list order.
func (r *Reconciler) Validate(ctx context.Context, entries []idlist.Entry) ([]idlist.Entry, error) {
	var missing []idlist.Entry
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dest, err := r.resolver.DestPath(r.cfg.OutputRoot, e.ID, e.Category)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", e.ID, err)
		}
		if r.excluded(dest) {
			continue
		}
		if _, err := os.Stat(dest); os.IsNotExist(err) {
			missing = append(missing, e)
		} else if err != nil {
			return nil, fmt.Errorf("stat %s: %w", dest, err)
		}
	}
	return missing, nil
}

// Retract walks the output tree and returns the relative paths of
// output files no entry claims. When Config.Delete is set the files
// are also removed; the second return value counts removals.
func (r *Reconciler) Retract(ctx context.Context, entries []idlist.Entry) ([]string, int, error) {
	expected := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		expected[claimKey(e.Category, e.ID)] = struct{}{}
	}

	var retracted []string
	err := filepath.WalkDir(r.cfg.OutputRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(r.cfg.OutputRoot, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if r.excludedRel(rel) {
			return nil
		}
		stem, ok := layout.StripSuffix(d.Name())
		if !ok {
			return nil
		}
		cat := r.categoryOf(rel)
		if _, claimed := expected[claimKey(cat, stem)]; !claimed {
			retracted = append(retracted, rel)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	sort.Strings(retracted)

	deleted := 0
	if r.cfg.Delete {
		for _, rel := range retracted {
			full := filepath.Join(r.cfg.OutputRoot, filepath.FromSlash(rel))
			if err := os.Remove(full); err != nil {
				return retracted, deleted, fmt.Errorf("remove %s: %w", full, err)
			}
			deleted++
			r.logger.Info("retracted output removed", zap.String("path", rel))
		}
	}
	return retracted, deleted, nil
}

// Run performs validation then retraction and writes both report
// files.
func (r *Reconciler) Run(ctx context.Context, entries []idlist.Entry) (*Report, error) {
	missing, err := r.Validate(ctx, entries)
	if err != nil {
		return nil, err
	}
	retracted, deleted, err := r.Retract(ctx, entries)
	if err != nil {
		return nil, err
	}

	rep := &Report{
		Checked:   len(entries),
		Missing:   make([]string, 0, len(missing)),
		Retracted: retracted,
		Deleted:   deleted,
	}
	for _, e := range missing {
		dest, err := r.resolver.DestPath(r.cfg.OutputRoot, e.ID, e.Category)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", e.ID, err)
		}
		rel, err := filepath.Rel(r.cfg.OutputRoot, dest)
		if err != nil {
			return nil, err
		}
		rep.Missing = append(rep.Missing, filepath.ToSlash(rel))
	}

	if err := writeReport(filepath.Join(r.cfg.ReportDir, MissingReportName), rep.Missing); err != nil {
		return nil, err
	}
	if err := writeReport(filepath.Join(r.cfg.ReportDir, RemovedReportName), rep.Retracted); err != nil {
		return nil, err
	}

	r.logger.Info("reconciliation complete",
		zap.Int("checked", rep.Checked),
		zap.Int("missing", len(rep.Missing)),
		zap.Int("retracted", len(rep.Retracted)),
		zap.Int("deleted", rep.Deleted))
	return rep, nil
}

// categoryOf recovers the content category of an output file from its
// relative path when the layout qualifies by category, falling back to
// the configured category otherwise.
func (r *Reconciler) categoryOf(rel string) ident.Category {
	if !r.resolver.Options().QualifyByCategory {
		return r.cfg.Category
	}
	head, _, found := strings.Cut(rel, "/")
	if !found {
		return r.cfg.Category
	}
	if cat, err := ident.ParseCategory(head); err == nil {
		return cat
	}
	return r.cfg.Category
}

func (r *Reconciler) excluded(fullPath string) bool {
	rel, err := filepath.Rel(r.cfg.OutputRoot, fullPath)
	if err != nil {
		return false
	}
	return r.excludedRel(filepath.ToSlash(rel))
}

func (r *Reconciler) excludedRel(rel string) bool {
	for _, pat := range r.cfg.Exclude {
		if ok, _ := doublestar.Match(pat, rel); ok {
			return true
		}
	}
	return false
}

// claimKey is the comparison key for one record: category plus
// case-normalized ID, so case drift between list and disk never
// produces a false retraction.
func claimKey(cat ident.Category, id string) string {
	return string(cat) + "/" + cat.Normalize(id)
}

func writeReport(path string, lines []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	var b strings.Builder
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}
