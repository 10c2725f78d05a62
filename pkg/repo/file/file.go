// Package file implements repo.Repository over a local directory.
package file

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/structbio/bcifpipe/pkg/repo"
)

// Repository serves artifacts from a base directory. Keys are treated
// as slash-relative paths under the base.
type Repository struct {
	baseDir string
}

var _ repo.Repository = (*Repository)(nil)

// New creates a repository rooted at baseDir.
func New(baseDir string) (*Repository, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, fmt.Errorf("base dir is required")
	}
	return &Repository{baseDir: filepath.Clean(baseDir)}, nil
}

func (r *Repository) Close() error { return nil }

// Stat returns metadata for the artifact at key.
func (r *Repository) Stat(ctx context.Context, key string) (*repo.ObjectInfo, error) {
	_ = ctx
	full, err := r.fullPath(key)
	if err != nil {
		return nil, r.wrap("Stat", key, err)
	}
	st, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, r.wrap("Stat", key, repo.ErrNotFound)
		}
		return nil, r.wrap("Stat", key, err)
	}
	if st.IsDir() {
		return nil, r.wrap("Stat", key, repo.ErrNotFound)
	}
	return &repo.ObjectInfo{Size: st.Size(), ModTime: st.ModTime()}, nil
}

// Open streams the artifact at key.
func (r *Repository) Open(ctx context.Context, key string) (io.ReadCloser, *repo.ObjectInfo, error) {
	info, err := r.Stat(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	full, err := r.fullPath(key)
	if err != nil {
		return nil, nil, r.wrap("Open", key, err)
	}
	f, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, r.wrap("Open", key, repo.ErrNotFound)
		}
		return nil, nil, r.wrap("Open", key, err)
	}
	return f, info, nil
}

// fullPath resolves key under the base dir, rejecting escapes.
func (r *Repository) fullPath(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(key, "/")))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("key escapes base dir: %s", key)
	}
	return filepath.Join(r.baseDir, clean), nil
}

func (r *Repository) wrap(op, key string, err error) error {
	return &repo.Error{Op: op, Kind: repo.KindFile, Key: key, Err: err}
}
