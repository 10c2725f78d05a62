package fetch

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/structbio/bcifpipe/pkg/repo"
	filerepo "github.com/structbio/bcifpipe/pkg/repo/file"
	"github.com/structbio/bcifpipe/pkg/repo/httpx"
	s3repo "github.com/structbio/bcifpipe/pkg/repo/s3"
)

// OpenRepository builds a repository for a source root.
//
// Roots of the form "s3://bucket/prefix" resolve to an S3 repository,
// "http://" and "https://" roots to an HTTP repository, and anything
// else to a local directory.
func OpenRepository(ctx context.Context, root string, httpTimeout time.Duration) (repo.Repository, error) {
	switch {
	case strings.HasPrefix(root, "s3://"):
		u, err := url.Parse(root)
		if err != nil {
			return nil, err
		}
		return s3repo.New(ctx, s3repo.Config{
			Bucket: u.Host,
			Prefix: strings.Trim(u.Path, "/"),
		})
	case strings.HasPrefix(root, "http://"), strings.HasPrefix(root, "https://"):
		return httpx.New(httpx.Config{BaseURL: root, Timeout: httpTimeout})
	default:
		return filerepo.New(root)
	}
}
