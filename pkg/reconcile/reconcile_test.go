package reconcile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/structbio/bcifpipe/pkg/ident"
	"github.com/structbio/bcifpipe/pkg/idlist"
	"github.com/structbio/bcifpipe/pkg/layout"
)

func flatResolver(t *testing.T) *layout.Resolver {
	t.Helper()
	r, err := layout.NewResolver(layout.Options{Suffix: layout.SuffixPlain})
	require.NoError(t, err)
	return r
}

func pdbEntries(ids ...string) []idlist.Entry {
	entries := make([]idlist.Entry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, idlist.Entry{ID: id, Category: ident.CategoryPDB})
	}
	return entries
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestRun_MissingAndRetracted(t *testing.T) {
	out := t.TempDir()
	// list claims 1aa1, 1aa2, 1aa3; disk holds 1aa1, 1aa2 and an
	// unclaimed 9zz9
	touch(t, filepath.Join(out, "1aa1.bcif"))
	touch(t, filepath.Join(out, "1aa2.bcif"))
	touch(t, filepath.Join(out, "9zz9.bcif"))

	rec, err := New(Config{OutputRoot: out}, flatResolver(t), nil)
	require.NoError(t, err)

	rep, err := rec.Run(context.Background(), pdbEntries("1aa1", "1aa2", "1aa3"))
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Checked)
	assert.Equal(t, []string{"1aa3.bcif"}, rep.Missing)
	assert.Equal(t, []string{"9zz9.bcif"}, rep.Retracted)
	assert.Equal(t, 0, rep.Deleted, "deletion is off unless requested")

	// the unclaimed file survives a report-only pass
	_, statErr := os.Stat(filepath.Join(out, "9zz9.bcif"))
	assert.NoError(t, statErr)
}

func TestRun_DeleteRemovesRetracted(t *testing.T) {
	out := t.TempDir()
	touch(t, filepath.Join(out, "1aa1.bcif"))
	touch(t, filepath.Join(out, "9zz9.bcif"))

	rec, err := New(Config{OutputRoot: out, Delete: true}, flatResolver(t), nil)
	require.NoError(t, err)

	rep, err := rec.Run(context.Background(), pdbEntries("1aa1"))
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Deleted)
	_, statErr := os.Stat(filepath.Join(out, "9zz9.bcif"))
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(filepath.Join(out, "1aa1.bcif"))
	assert.NoError(t, statErr)
}

func TestRun_ReportsWrittenWhenClean(t *testing.T) {
	out := t.TempDir()
	reports := t.TempDir()
	touch(t, filepath.Join(out, "1aa1.bcif"))

	rec, err := New(Config{OutputRoot: out, ReportDir: reports}, flatResolver(t), nil)
	require.NoError(t, err)

	rep, err := rec.Run(context.Background(), pdbEntries("1aa1"))
	require.NoError(t, err)
	assert.Empty(t, rep.Missing)
	assert.Empty(t, rep.Retracted)

	for _, name := range []string{MissingReportName, RemovedReportName} {
		data, err := os.ReadFile(filepath.Join(reports, name))
		require.NoError(t, err, "clean passes still write %s", name)
		assert.Empty(t, data)
	}
}

// The missing report carries resolved output paths, not bare IDs, so
// its lines name the exact file a rerun would create.
func TestRun_MissingReportCarriesResolvedPaths(t *testing.T) {
	out := t.TempDir()
	resolver, err := layout.NewResolver(layout.Options{QualifyByHash: true, Suffix: layout.SuffixCompressed})
	require.NoError(t, err)
	rec, err := New(Config{OutputRoot: out}, resolver, nil)
	require.NoError(t, err)

	rep, err := rec.Run(context.Background(), pdbEntries("1ABC"))
	require.NoError(t, err)
	assert.Equal(t, []string{"ab/1abc.bcif.gz"}, rep.Missing)

	data, err := os.ReadFile(filepath.Join(out, MissingReportName))
	require.NoError(t, err)
	assert.Equal(t, "ab/1abc.bcif.gz\n", string(data))
}

func TestRetract_CaseDriftIsNotRetraction(t *testing.T) {
	out := t.TempDir()
	// CSM outputs are upper-cased on disk; the list may carry lower
	touch(t, filepath.Join(out, "csm", "AF_AFP68871F1.bcif"))

	resolver, err := layout.NewResolver(layout.Options{QualifyByCategory: true, Suffix: layout.SuffixPlain})
	require.NoError(t, err)
	rec, err := New(Config{OutputRoot: out}, resolver, nil)
	require.NoError(t, err)

	entries := []idlist.Entry{{ID: "af_afp68871f1", Category: ident.CategoryCSM}}
	retracted, deleted, err := rec.Retract(context.Background(), entries)
	require.NoError(t, err)
	assert.Empty(t, retracted)
	assert.Zero(t, deleted)
}

func TestRetract_ExcludePatterns(t *testing.T) {
	out := t.TempDir()
	touch(t, filepath.Join(out, "9zz9.bcif"))
	touch(t, filepath.Join(out, "hold", "8yy8.bcif"))

	rec, err := New(Config{OutputRoot: out, Exclude: []string{"hold/**"}}, flatResolver(t), nil)
	require.NoError(t, err)

	retracted, _, err := rec.Retract(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"9zz9.bcif"}, retracted)
}

func TestRetract_IgnoresForeignFiles(t *testing.T) {
	out := t.TempDir()
	touch(t, filepath.Join(out, "notes.txt"))
	touch(t, filepath.Join(out, "9zz9.bcif.gz"))

	rec, err := New(Config{OutputRoot: out}, flatResolver(t), nil)
	require.NoError(t, err)

	retracted, _, err := rec.Retract(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"9zz9.bcif.gz"}, retracted, "only known output suffixes are candidates")
}

func TestNew_InvalidExcludePattern(t *testing.T) {
	_, err := New(Config{OutputRoot: t.TempDir(), Exclude: []string{"[bad"}}, flatResolver(t), nil)
	assert.Error(t, err)
}

// Validation and the batch writer resolve paths through the same
// resolver, so an output written under one set of layout options is
// found by a validation pass using the same options.
func TestValidate_ResolverSymmetry(t *testing.T) {
	out := t.TempDir()
	resolver, err := layout.NewResolver(layout.Options{
		QualifyByCategory: true,
		QualifyByHash:     true,
		Suffix:            layout.SuffixCompressed,
	})
	require.NoError(t, err)

	dest, err := resolver.DestPath(out, "1abc", ident.CategoryPDB)
	require.NoError(t, err)
	touch(t, dest)

	rec, err := New(Config{OutputRoot: out}, resolver, nil)
	require.NoError(t, err)

	missing, err := rec.Validate(context.Background(), pdbEntries("1abc", "2def"))
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, "2def", missing[0].ID)
}
