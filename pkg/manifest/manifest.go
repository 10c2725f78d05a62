// Package manifest provides loading and validation of bcifpipe job manifests.
//
// A job manifest is a YAML or JSON file that configures one conversion batch:
// the source archive, the ID list or holdings file driving it, the output
// layout, the converter binary and its dictionaries, and run behavior.
//
// Manifests are validated against a JSON Schema to ensure correctness before
// execution. The schema enforces strict typing and disallows unknown
// properties.
//
// Example manifest (YAML):
//
//	version: "1.0"
//	source:
//	  root: https://files.example.org/pub/archive/divided
//	  category: pdb
//	lists:
//	  holdings: /data/lists/released.json.gz
//	  mode: incremental
//	output:
//	  root: /data/bcif
//	  suffix: .bcif.gz
//	  qualify_by_hash: true
//	convert:
//	  binary: /usr/local/bin/bcif-codec
//	  dictionaries:
//	    - https://dictionaries.example.org/core.dic
//	run:
//	  workers: 8
package manifest

// Manifest represents a validated job manifest.
//
// Required fields are Version, Source, Lists, Output, and Convert. Run and
// Reports are optional with sensible defaults.
type Manifest struct {
	// Schema is an optional JSON Schema reference for editor support.
	Schema string `json:"$schema,omitempty" yaml:"$schema,omitempty"`

	// Version is the manifest schema version. Must be "1.0".
	Version string `json:"version" yaml:"version"`

	// Source configures the archive the batch reads from.
	Source SourceConfig `json:"source" yaml:"source"`

	// Lists configures the ID list or holdings file driving the batch.
	Lists ListConfig `json:"lists" yaml:"lists"`

	// Output configures destination layout and run records.
	Output OutputConfig `json:"output" yaml:"output"`

	// Convert configures the external converter.
	Convert ConvertConfig `json:"convert" yaml:"convert"`

	// Run configures batch behavior (optional).
	Run RunConfig `json:"run,omitempty" yaml:"run,omitempty"`

	// Reports configures reconciliation reports (optional).
	Reports ReportConfig `json:"reports,omitempty" yaml:"reports,omitempty"`
}

// SourceConfig identifies the source archive.
type SourceConfig struct {
	// Root is the archive root: a local directory, an http(s) base
	// URL, or an s3://bucket/prefix URI.
	Root string `json:"root" yaml:"root"`

	// Category is the content category of the records: "pdb", "csm",
	// or "ihm".
	Category string `json:"category" yaml:"category"`
}

// List load modes.
const (
	// ModeFull converts every listed record regardless of what the
	// output tree already holds.
	ModeFull = "full"

	// ModeIncremental converts only records whose output is missing
	// or older than the holdings timestamp.
	ModeIncremental = "incremental"
)

// ListConfig configures where work entries come from. Exactly one of
// File or Holdings must be set.
type ListConfig struct {
	// File is a plain text ID list, one record per line.
	File string `json:"file,omitempty" yaml:"file,omitempty"`

	// Holdings is a JSON or JSON.gz holdings file mapping IDs to
	// release timestamps.
	Holdings string `json:"holdings,omitempty" yaml:"holdings,omitempty"`

	// Mode selects full or incremental loading. Default: "full" for
	// plain lists, "incremental" for holdings.
	Mode string `json:"mode,omitempty" yaml:"mode,omitempty"`

	// Max caps the number of entries loaded (0 = unlimited).
	Max int `json:"max,omitempty" yaml:"max,omitempty"`
}

// OutputConfig configures the destination tree and run records.
type OutputConfig struct {
	// Root is the output root directory.
	Root string `json:"root" yaml:"root"`

	// Suffix is the output filename suffix: ".bcif" or ".bcif.gz".
	// Default: ".bcif.gz".
	Suffix string `json:"suffix,omitempty" yaml:"suffix,omitempty"`

	// QualifyByCategory inserts a category directory under the root.
	QualifyByCategory bool `json:"qualify_by_category,omitempty" yaml:"qualify_by_category,omitempty"`

	// QualifyByHash inserts divided hash subdirectories.
	QualifyByHash bool `json:"qualify_by_hash,omitempty" yaml:"qualify_by_hash,omitempty"`

	// Records is where JSONL run records go.
	// Values: "stdout" or "file:/path/to/run.jsonl". Default: "stdout".
	Records string `json:"records,omitempty" yaml:"records,omitempty"`
}

// ConvertConfig configures the external converter binary.
type ConvertConfig struct {
	// Binary is the converter executable path or name on PATH.
	Binary string `json:"binary" yaml:"binary"`

	// Dictionaries is an ordered list of dictionary locations, local
	// paths or URLs. Order is preserved when invoking the converter.
	Dictionaries []string `json:"dictionaries,omitempty" yaml:"dictionaries,omitempty"`
}

// RunConfig configures batch behavior.
//
// All fields are optional with defaults applied during loading.
type RunConfig struct {
	// Workers is the target shard count and parallelism bound.
	// Range: 0-256, 0 = one per CPU. Default: 0.
	Workers int `json:"workers,omitempty" yaml:"workers,omitempty"`

	// RateLimit is the maximum source fetches per second
	// (0 = unlimited). Default: 0.
	RateLimit float64 `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`

	// CleanupEvery is how many conversions a worker completes between
	// scratch sweeps. Default: 100.
	CleanupEvery int `json:"cleanup_every,omitempty" yaml:"cleanup_every,omitempty"`

	// ScratchDir is where per-worker scratch space is created.
	// Default: the system temp directory.
	ScratchDir string `json:"scratch_dir,omitempty" yaml:"scratch_dir,omitempty"`
}

// ReportConfig configures reconciliation reports.
type ReportConfig struct {
	// Dir is where missing.txt and removed.txt are written.
	// Default: the output root.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`

	// Exclude holds doublestar patterns excluding output files from
	// reconciliation, relative to the output root.
	Exclude []string `json:"exclude,omitempty" yaml:"exclude,omitempty"`

	// DeleteRetracted removes unclaimed output files instead of only
	// reporting them. Default: false.
	DeleteRetracted bool `json:"delete_retracted,omitempty" yaml:"delete_retracted,omitempty"`
}

// Default values for optional configuration fields.
const (
	// DefaultVersion is the current manifest schema version.
	DefaultVersion = "1.0"

	// DefaultSuffix is the default output filename suffix.
	DefaultSuffix = ".bcif.gz"

	// DefaultRecords is the default run-record destination.
	DefaultRecords = "stdout"

	// DefaultCleanupEvery is the default scratch sweep cadence.
	DefaultCleanupEvery = 100
)

// ApplyDefaults fills in default values for optional fields.
//
// This should be called after loading and validating the manifest so callers
// don't need to reason about empty strings and zero values.
func (m *Manifest) ApplyDefaults() {
	if m.Lists.Mode == "" {
		if m.Lists.Holdings != "" {
			m.Lists.Mode = ModeIncremental
		} else {
			m.Lists.Mode = ModeFull
		}
	}
	if m.Output.Suffix == "" {
		m.Output.Suffix = DefaultSuffix
	}
	if m.Output.Records == "" {
		m.Output.Records = DefaultRecords
	}
	if m.Run.CleanupEvery == 0 {
		m.Run.CleanupEvery = DefaultCleanupEvery
	}
	if m.Reports.Dir == "" {
		m.Reports.Dir = m.Output.Root
	}
	// Workers and RateLimit: 0 is a valid value, so no default needed
}
