// Package s3 implements repo.Repository over an S3 or S3-compatible
// bucket mirror of the archive.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/structbio/bcifpipe/pkg/repo"
)

// Config configures the S3 repository.
type Config struct {
	// Bucket is the bucket name (required).
	Bucket string

	// Prefix is an optional key prefix prepended to every lookup.
	Prefix string

	// Region is the AWS region; empty lets the SDK resolve it.
	Region string

	// Endpoint is a custom endpoint for S3-compatible stores.
	Endpoint string

	// Profile is the shared credential profile name.
	Profile string

	// ForcePathStyle enables path-style addressing, required by some
	// S3-compatible stores.
	ForcePathStyle bool
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Bucket) == "" {
		return fmt.Errorf("bucket is required")
	}
	return nil
}

// Repository serves artifacts from an S3 bucket.
type Repository struct {
	client *s3.Client
	bucket string
	prefix string
}

var _ repo.Repository = (*Repository)(nil)

// New creates an S3 repository using the SDK's default credential
// chain, optionally narrowed by the config.
func New(ctx context.Context, cfg Config) (*Repository, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, &repo.Error{Op: "New", Kind: repo.KindS3, Err: err}
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}
	})

	return &Repository{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

func (r *Repository) Close() error { return nil }

// Stat returns metadata for the artifact at key via HeadObject.
func (r *Repository) Stat(ctx context.Context, key string) (*repo.ObjectInfo, error) {
	out, err := r.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.keyFor(key)),
	})
	if err != nil {
		return nil, r.wrap("Stat", key, err)
	}
	info := &repo.ObjectInfo{Size: aws.ToInt64(out.ContentLength)}
	if out.LastModified != nil {
		info.ModTime = *out.LastModified
	}
	return info, nil
}

// Open streams the artifact at key via GetObject.
func (r *Repository) Open(ctx context.Context, key string) (io.ReadCloser, *repo.ObjectInfo, error) {
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.keyFor(key)),
	})
	if err != nil {
		return nil, nil, r.wrap("Open", key, err)
	}
	info := &repo.ObjectInfo{Size: aws.ToInt64(out.ContentLength)}
	if out.LastModified != nil {
		info.ModTime = *out.LastModified
	}
	return out.Body, info, nil
}

func (r *Repository) keyFor(key string) string {
	key = strings.TrimPrefix(key, "/")
	if r.prefix == "" {
		return key
	}
	return r.prefix + "/" + key
}

// wrap maps SDK errors onto the repo sentinel taxonomy.
func (r *Repository) wrap(op, key string, err error) error {
	wrapped := &repo.Error{Op: op, Kind: repo.KindS3, Key: key, Err: err}

	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		wrapped.Err = repo.ErrNotFound
		return wrapped
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			wrapped.Err = repo.ErrNotFound
		case "SlowDown", "ServiceUnavailable", "InternalError":
			wrapped.Err = fmt.Errorf("%w: %s", repo.ErrUnavailable, apiErr.ErrorCode())
		}
	}
	return wrapped
}
