// Package layout resolves per-record source keys and destination
// paths. A single Resolver instance is shared by the conversion writer
// and the reconciler so write-time and check-time paths cannot drift.
package layout

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/structbio/bcifpipe/pkg/idlist"
	"github.com/structbio/bcifpipe/pkg/ident"
)

// Output suffixes supported by the pipeline.
const (
	SuffixPlain      = ".bcif"
	SuffixCompressed = ".bcif.gz"
)

// SourceSuffix is the suffix of source artifacts in the archive.
const SourceSuffix = ".cif.gz"

// KnownSuffixes lists output suffixes the reconciler strips when
// recovering an ID from a filename, longest first.
var KnownSuffixes = []string{SuffixCompressed, SuffixPlain}

// Options controls the destination layout. The two qualify flags are
// independent and combine to four layout variants.
type Options struct {
	// QualifyByCategory inserts a content-category directory
	// (pdb, csm, ihm) under the output root.
	QualifyByCategory bool

	// QualifyByHash inserts the ID's divided hash subpath.
	QualifyByHash bool

	// Suffix is the output filename suffix, SuffixPlain or
	// SuffixCompressed.
	Suffix string
}

// Validate checks the options.
func (o Options) Validate() error {
	switch o.Suffix {
	case SuffixPlain, SuffixCompressed:
		return nil
	}
	return fmt.Errorf("unsupported output suffix %q: want %s or %s", o.Suffix, SuffixPlain, SuffixCompressed)
}

// Resolver computes source keys and destination paths. It is pure and
// safe for concurrent use.
type Resolver struct {
	opts Options
}

// NewResolver validates opts and returns a resolver.
func NewResolver(opts Options) (*Resolver, error) {
	if opts.Suffix == "" {
		opts.Suffix = SuffixCompressed
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Resolver{opts: opts}, nil
}

// Options returns the resolver's layout options.
func (r *Resolver) Options() Options {
	return r.opts
}

// SourceKey returns the repository-relative key of the entry's source
// artifact. Entries carrying an explicit relative path use it
// unchanged; otherwise the key is derived from the ID's hash subpath.
func (r *Resolver) SourceKey(e idlist.Entry) (string, error) {
	if e.RelPath != "" {
		return strings.TrimPrefix(e.RelPath, "/"), nil
	}
	id := e.Category.Normalize(e.ID)
	hash, err := ident.Hash(id, e.Category)
	if err != nil {
		return "", err
	}
	return hash + "/" + id + SourceSuffix, nil
}

// DestPath returns the absolute destination path for a record under
// outputRoot. The same ID with the same options always yields the same
// path, both when writing and when reconciling.
func (r *Resolver) DestPath(outputRoot, id string, cat ident.Category) (string, error) {
	id = cat.Normalize(id)
	parts := []string{outputRoot}
	if r.opts.QualifyByCategory {
		parts = append(parts, string(cat))
	}
	if r.opts.QualifyByHash {
		hash, err := ident.Hash(id, cat)
		if err != nil {
			return "", err
		}
		parts = append(parts, filepath.FromSlash(hash))
	}
	parts = append(parts, id+r.opts.Suffix)
	return filepath.Join(parts...), nil
}

// StripSuffix removes a known output suffix from a filename, returning
// the bare stem and whether a suffix matched.
func StripSuffix(name string) (string, bool) {
	for _, suffix := range KnownSuffixes {
		if strings.HasSuffix(name, suffix) {
			return strings.TrimSuffix(name, suffix), true
		}
	}
	return name, false
}
