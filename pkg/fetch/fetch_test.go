package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/structbio/bcifpipe/pkg/repo"
	filerepo "github.com/structbio/bcifpipe/pkg/repo/file"
	"github.com/structbio/bcifpipe/pkg/repo/httpx"
)

func TestFetch_LocalCopy(t *testing.T) {
	src := t.TempDir()
	mtime := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	path := filepath.Join(src, "ab", "1abc.cif.gz")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("payload"), 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))

	r, err := filerepo.New(src)
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "scratch", "1abc.cif.gz")
	info, err := New(r).Fetch(context.Background(), "ab/1abc.cif.gz", dest)
	require.NoError(t, err)
	assert.Equal(t, int64(7), info.Size)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	// Scratch file adopts the source's last-modified time.
	st, err := os.Stat(dest)
	require.NoError(t, err)
	assert.True(t, st.ModTime().Equal(mtime))
}

func TestFetch_LocalNotFound(t *testing.T) {
	r, err := filerepo.New(t.TempDir())
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "x")
	_, err = New(r).Fetch(context.Background(), "missing.cif.gz", dest)
	assert.True(t, repo.IsNotFound(err))
	assert.NoFileExists(t, dest)
}

func TestFetch_RemoteStream(t *testing.T) {
	mtime := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Last-Modified", mtime.Format(http.TimeFormat))
		_, _ = w.Write([]byte("remote-payload"))
	}))
	t.Cleanup(srv.Close)

	r, err := httpx.New(httpx.Config{BaseURL: srv.URL})
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "1abc.cif.gz")
	_, err = New(r).Fetch(context.Background(), "ab/1abc.cif.gz", dest)
	require.NoError(t, err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "remote-payload", string(data))

	st, err := os.Stat(dest)
	require.NoError(t, err)
	assert.True(t, st.ModTime().Equal(mtime))
}

func TestFetch_RemoteFailureRemovesPartial(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Length", "1000")
		_, _ = w.Write([]byte("short"))
		// Abort the connection so the body read fails mid-stream.
		panic(http.ErrAbortHandler)
	}))
	t.Cleanup(srv.Close)

	r, err := httpx.New(httpx.Config{BaseURL: srv.URL})
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "1abc.cif.gz")
	_, err = New(r).Fetch(context.Background(), "ab/1abc.cif.gz", dest)
	require.Error(t, err)
	assert.NoFileExists(t, dest)
}

func TestFetch_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	r, err := httpx.New(httpx.Config{BaseURL: srv.URL})
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "x")
	_, err = New(r).Fetch(context.Background(), "gone.cif.gz", dest)
	assert.True(t, repo.IsNotFound(err))
	assert.NoFileExists(t, dest)
}

func TestOpenRepository(t *testing.T) {
	ctx := context.Background()

	r, err := OpenRepository(ctx, t.TempDir(), 0)
	require.NoError(t, err)
	assert.IsType(t, &filerepo.Repository{}, r)

	r, err = OpenRepository(ctx, "https://files.example.org/pub", time.Minute)
	require.NoError(t, err)
	assert.IsType(t, &httpx.Repository{}, r)
}
