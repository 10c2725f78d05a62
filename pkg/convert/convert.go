// Package convert defines the boundary to the external format
// converter and the shared dictionary resource it consumes.
//
// The conversion itself (mmCIF to BinaryCIF and back) is an opaque,
// possibly slow, possibly failing external step. This package only
// guarantees the contract around it: both calls receive existing,
// matching file paths and a private scratch directory.
package convert

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/structbio/bcifpipe/pkg/fetch"
	"github.com/structbio/bcifpipe/pkg/repo/httpx"
)

// Converter is the external conversion boundary.
//
// Convert produces the destination format from the source format;
// Deconvert is the inverse, used for round-trip checks. A failure
// applies to that one record only and must not be retried by the
// caller's worker unit.
type Converter interface {
	Convert(ctx context.Context, inPath, outPath, scratchDir string) error
	Deconvert(ctx context.Context, inPath, outPath, scratchDir string) error
}

// Dictionary is the schema resource handle shared read-only by every
// worker unit. It is built once from an ordered list of dictionary
// locations and never mutated afterwards.
type Dictionary struct {
	paths []string
}

// Paths returns the staged local dictionary paths, in build order.
func (d *Dictionary) Paths() []string {
	out := make([]string, len(d.paths))
	copy(out, d.paths)
	return out
}

// BuildDictionary stages the dictionary resources listed in locations
// (local paths or http/https URLs, order-significant) into stageDir
// and returns the immutable handle.
//
// A dictionary that cannot be staged is a setup failure: the run must
// abort before any units dispatch.
func BuildDictionary(ctx context.Context, locations []string, stageDir string) (*Dictionary, error) {
	if len(locations) == 0 {
		return nil, fmt.Errorf("at least one dictionary location is required")
	}

	d := &Dictionary{paths: make([]string, 0, len(locations))}
	for _, loc := range locations {
		path, err := stageDictionary(ctx, loc, stageDir)
		if err != nil {
			return nil, fmt.Errorf("stage dictionary %s: %w", loc, err)
		}
		d.paths = append(d.paths, path)
	}
	return d, nil
}

func stageDictionary(ctx context.Context, loc, stageDir string) (string, error) {
	if !strings.HasPrefix(loc, "http://") && !strings.HasPrefix(loc, "https://") {
		if _, err := os.Stat(loc); err != nil {
			return "", err
		}
		return loc, nil
	}

	u, err := url.Parse(loc)
	if err != nil {
		return "", err
	}
	r, err := httpx.New(httpx.Config{BaseURL: u.Scheme + "://" + u.Host})
	if err != nil {
		return "", err
	}
	defer func() { _ = r.Close() }()

	dest := filepath.Join(stageDir, filepath.Base(u.Path))
	if _, err := fetch.New(r).Fetch(ctx, u.Path, dest); err != nil {
		return "", err
	}
	return dest, nil
}

// ExecConverter shells out to an external converter binary.
//
// Invocation shape:
//
//	<bin> encode --in <src> --out <dst> --work <scratch> [--dict <path>]...
//	<bin> decode --in <src> --out <dst> --work <scratch> [--dict <path>]...
type ExecConverter struct {
	bin  string
	dict *Dictionary
}

var _ Converter = (*ExecConverter)(nil)

// NewExecConverter creates an adapter around the converter binary.
func NewExecConverter(bin string, dict *Dictionary) (*ExecConverter, error) {
	if strings.TrimSpace(bin) == "" {
		return nil, fmt.Errorf("converter binary is required")
	}
	if dict == nil {
		return nil, fmt.Errorf("dictionary handle is required")
	}
	return &ExecConverter{bin: bin, dict: dict}, nil
}

// Convert encodes inPath into outPath.
func (c *ExecConverter) Convert(ctx context.Context, inPath, outPath, scratchDir string) error {
	return c.run(ctx, "encode", inPath, outPath, scratchDir)
}

// Deconvert decodes inPath back into outPath.
func (c *ExecConverter) Deconvert(ctx context.Context, inPath, outPath, scratchDir string) error {
	return c.run(ctx, "decode", inPath, outPath, scratchDir)
}

func (c *ExecConverter) run(ctx context.Context, mode, inPath, outPath, scratchDir string) error {
	args := []string{mode, "--in", inPath, "--out", outPath, "--work", scratchDir}
	for _, p := range c.dict.Paths() {
		args = append(args, "--dict", p)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.bin, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("%s %s: %w: %s", c.bin, mode, err, lastLine(msg))
		}
		return fmt.Errorf("%s %s: %w", c.bin, mode, err)
	}
	return nil
}

// lastLine keeps error messages single-line for the per-ID records.
func lastLine(s string) string {
	lines := strings.Split(s, "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
