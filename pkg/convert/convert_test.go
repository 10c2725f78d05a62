package convert

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDictionary_LocalPaths(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "core.dic")
	second := filepath.Join(dir, "ext.dic")
	require.NoError(t, os.WriteFile(first, []byte("core"), 0o644))
	require.NoError(t, os.WriteFile(second, []byte("ext"), 0o644))

	d, err := BuildDictionary(context.Background(), []string{first, second}, t.TempDir())
	require.NoError(t, err)

	// Order is preserved.
	assert.Equal(t, []string{first, second}, d.Paths())
}

func TestBuildDictionary_RemoteStaged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/dist/core.dic", req.URL.Path)
		_, _ = w.Write([]byte("data_core"))
	}))
	t.Cleanup(srv.Close)

	stage := t.TempDir()
	d, err := BuildDictionary(context.Background(), []string{srv.URL + "/dist/core.dic"}, stage)
	require.NoError(t, err)

	require.Len(t, d.Paths(), 1)
	staged := d.Paths()[0]
	assert.Equal(t, filepath.Join(stage, "core.dic"), staged)

	data, err := os.ReadFile(staged)
	require.NoError(t, err)
	assert.Equal(t, "data_core", string(data))
}

func TestBuildDictionary_MissingLocal(t *testing.T) {
	_, err := BuildDictionary(context.Background(), []string{filepath.Join(t.TempDir(), "nope.dic")}, t.TempDir())
	assert.Error(t, err)
}

func TestBuildDictionary_Empty(t *testing.T) {
	_, err := BuildDictionary(context.Background(), nil, t.TempDir())
	assert.Error(t, err)
}

func TestDictionaryPaths_Copies(t *testing.T) {
	d := &Dictionary{paths: []string{"a", "b"}}
	got := d.Paths()
	got[0] = "mutated"
	assert.Equal(t, []string{"a", "b"}, d.Paths())
}

func TestNewExecConverter_Validation(t *testing.T) {
	_, err := NewExecConverter("", &Dictionary{paths: []string{"x"}})
	assert.Error(t, err)

	_, err = NewExecConverter("converter", nil)
	assert.Error(t, err)
}

func TestExecConverter_RunsBinary(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.cif")
	out := filepath.Join(dir, "out.bcif")
	require.NoError(t, os.WriteFile(in, []byte("data"), 0o644))

	// A converter stand-in that copies --in to --out.
	script := filepath.Join(dir, "fakeconv.sh")
	require.NoError(t, os.WriteFile(script, []byte(`#!/bin/sh
mode="$1"; shift
in=""; outp=""
while [ $# -gt 0 ]; do
  case "$1" in
    --in) in="$2"; shift 2;;
    --out) outp="$2"; shift 2;;
    *) shift;;
  esac
done
cp "$in" "$outp"
`), 0o755))

	dict := &Dictionary{paths: []string{filepath.Join(dir, "core.dic")}}
	require.NoError(t, os.WriteFile(dict.paths[0], []byte("dic"), 0o644))

	c, err := NewExecConverter(script, dict)
	require.NoError(t, err)

	require.NoError(t, c.Convert(context.Background(), in, out, dir))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))
}

func TestExecConverter_FailureIncludesStderr(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "failconv.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho 'missing schema term' >&2\nexit 3\n"), 0o755))

	c, err := NewExecConverter(script, &Dictionary{paths: []string{"unused"}})
	require.NoError(t, err)

	err = c.Convert(context.Background(), "in", "out", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing schema term")
}
