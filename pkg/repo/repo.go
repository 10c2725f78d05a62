// Package repo defines the source repository boundary: the minimal
// read-side contract the pipeline needs to locate and stream source
// artifacts, with implementations for local directories, HTTP archive
// mirrors, and S3 buckets under pkg/repo/file, pkg/repo/httpx, and
// pkg/repo/s3.
package repo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// Kind identifies a repository implementation.
type Kind string

const (
	KindFile Kind = "file"
	KindHTTP Kind = "http"
	KindS3   Kind = "s3"
)

// Sentinel errors for repository operations.
var (
	// ErrNotFound indicates the requested artifact does not exist.
	ErrNotFound = errors.New("artifact not found")

	// ErrUnavailable indicates the repository could not be reached.
	ErrUnavailable = errors.New("repository unavailable")

	// ErrBadStatus indicates a remote returned a non-success status.
	ErrBadStatus = errors.New("unexpected response status")
)

// ObjectInfo describes a source artifact.
type ObjectInfo struct {
	// Size is the artifact size in bytes, -1 when unknown.
	Size int64

	// ModTime is the artifact's declared last-modified time; zero when
	// the repository does not report one.
	ModTime time.Time
}

// Repository is the read-side contract for one source root. Keys are
// forward-slash relative paths under the root.
//
// Implementations must be safe for concurrent use: every worker unit
// shares one Repository per run.
type Repository interface {
	// Stat returns metadata for the artifact at key.
	Stat(ctx context.Context, key string) (*ObjectInfo, error)

	// Open streams the artifact at key. The returned ObjectInfo
	// carries the same metadata Stat would report.
	Open(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error)

	// Close releases any held resources.
	Close() error
}

// Error wraps repository failures with operation context.
type Error struct {
	// Op is the operation that failed (e.g. "Stat", "Open").
	Op string

	// Kind is the repository implementation.
	Kind Kind

	// Key is the artifact key, if applicable.
	Key string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s %s: %s: %v", e.Kind, e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err indicates a missing artifact.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUnavailable reports whether err indicates the repository could not
// be reached.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
