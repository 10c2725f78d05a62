// Package fetch stages source artifacts from a repository into
// per-unit scratch files.
package fetch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/time/rate"

	"github.com/structbio/bcifpipe/pkg/repo"
)

// chunkSize is the copy buffer size for streaming downloads.
const chunkSize = 64 * 1024

// Fetcher retrieves artifacts into scratch files. It is safe for
// concurrent use; the optional rate limiter is shared across callers.
type Fetcher struct {
	repo    repo.Repository
	limiter *rate.Limiter
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithRateLimit bounds fetches to perSec requests per second across
// all worker units. Zero or negative means unlimited.
func WithRateLimit(perSec float64) Option {
	return func(f *Fetcher) {
		if perSec > 0 {
			f.limiter = rate.NewLimiter(rate.Limit(perSec), 1)
		}
	}
}

// New creates a Fetcher over the given repository.
func New(r repo.Repository, opts ...Option) *Fetcher {
	f := &Fetcher{repo: r}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch streams the artifact at key into destPath, creating parent
// directories as needed.
//
// On failure the partial file is removed before the error returns, so
// a retry can never mistake a truncated download for a complete one.
// On success the scratch file's mtime is set to the source's declared
// last-modified time when the repository reports one, keeping later
// staleness comparisons meaningful.
func (f *Fetcher) Fetch(ctx context.Context, key, destPath string) (*repo.ObjectInfo, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	body, info, err := f.repo.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer func() { _ = body.Close() }()

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	out, err := os.Create(destPath)
	if err != nil {
		return nil, fmt.Errorf("create scratch file: %w", err)
	}

	buf := make([]byte, chunkSize)
	_, copyErr := io.CopyBuffer(out, body, buf)
	closeErr := out.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(destPath)
		if copyErr != nil {
			return nil, fmt.Errorf("stream %s: %w", key, copyErr)
		}
		return nil, fmt.Errorf("finish %s: %w", key, closeErr)
	}

	if !info.ModTime.IsZero() {
		// Best effort: a failed chtimes degrades staleness detection,
		// not correctness of the download.
		_ = os.Chtimes(destPath, info.ModTime, info.ModTime)
	}
	return info, nil
}
