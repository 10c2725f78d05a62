// Package httpx implements repo.Repository over an HTTP archive
// mirror using plain GET/HEAD requests.
package httpx

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/structbio/bcifpipe/pkg/repo"
)

// DefaultTimeout bounds a single request, sized for large archive
// files but finite so an unresponsive mirror cannot stall a worker
// unit indefinitely.
const DefaultTimeout = 5 * time.Minute

// Config configures the HTTP repository.
type Config struct {
	// BaseURL is the archive root, e.g.
	// "https://files.example.org/pub/structures".
	BaseURL string

	// Timeout bounds each request. Zero means DefaultTimeout.
	Timeout time.Duration

	// Client overrides the HTTP client; nil builds one from Timeout.
	Client *http.Client
}

// Repository serves artifacts via HTTP GET under a base URL.
type Repository struct {
	base   string
	client *http.Client
}

var _ repo.Repository = (*Repository)(nil)

// New creates an HTTP repository.
func New(cfg Config) (*Repository, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", cfg.BaseURL)
	}

	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Repository{base: base, client: client}, nil
}

func (r *Repository) Close() error {
	r.client.CloseIdleConnections()
	return nil
}

// Stat issues a HEAD request for the artifact at key.
func (r *Repository) Stat(ctx context.Context, key string) (*repo.ObjectInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, r.urlFor(key), nil)
	if err != nil {
		return nil, r.wrap("Stat", key, err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, r.wrap("Stat", key, fmt.Errorf("%w: %v", repo.ErrUnavailable, err))
	}
	defer func() { _ = resp.Body.Close() }()
	if err := classifyStatus(resp.StatusCode); err != nil {
		return nil, r.wrap("Stat", key, err)
	}
	return infoFromResponse(resp), nil
}

// Open issues a GET request and streams the response body. Success is
// any 2xx status; anything else is an error for this key only.
func (r *Repository) Open(ctx context.Context, key string) (io.ReadCloser, *repo.ObjectInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.urlFor(key), nil)
	if err != nil {
		return nil, nil, r.wrap("Open", key, err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, nil, r.wrap("Open", key, fmt.Errorf("%w: %v", repo.ErrUnavailable, err))
	}
	if err := classifyStatus(resp.StatusCode); err != nil {
		_ = resp.Body.Close()
		return nil, nil, r.wrap("Open", key, err)
	}
	return resp.Body, infoFromResponse(resp), nil
}

func (r *Repository) urlFor(key string) string {
	return r.base + "/" + strings.TrimPrefix(key, "/")
}

func classifyStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound || code == http.StatusGone:
		return repo.ErrNotFound
	case code >= 500:
		return fmt.Errorf("%w: %w: %d", repo.ErrUnavailable, repo.ErrBadStatus, code)
	default:
		return fmt.Errorf("%w: %d", repo.ErrBadStatus, code)
	}
}

func infoFromResponse(resp *http.Response) *repo.ObjectInfo {
	info := &repo.ObjectInfo{Size: resp.ContentLength}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if ts, err := http.ParseTime(lm); err == nil {
			info.ModTime = ts
		}
	}
	return info
}

func (r *Repository) wrap(op, key string, err error) error {
	return &repo.Error{Op: op, Kind: repo.KindHTTP, Key: key, Err: err}
}
