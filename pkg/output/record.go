// Package output provides JSONL run records for conversion batches.
//
// Each line is a self-contained JSON envelope with a type-specific
// payload, so a run log can be parsed, filtered, and tailed
// independently of the process that wrote it.
package output

import (
	"encoding/json"
	"errors"
	"time"
)

// Record type constants define the envelope types for JSONL output.
const (
	// TypeConvert identifies per-record conversion results.
	TypeConvert = "bcifpipe.convert.v1"

	// TypeSkip identifies records skipped as already up to date.
	TypeSkip = "bcifpipe.skip.v1"

	// TypeError identifies per-record failure records.
	TypeError = "bcifpipe.error.v1"

	// TypeProgress identifies periodic progress records.
	TypeProgress = "bcifpipe.progress.v1"

	// TypeSummary identifies the final run summary record.
	TypeSummary = "bcifpipe.summary.v1"
)

// Error code constants for ErrorRecord.Code.
const (
	ErrCodeNotFound   = "NOT_FOUND"
	ErrCodeFetch      = "FETCH_FAILED"
	ErrCodeConversion = "CONVERSION_FAILED"
	ErrCodeResolve    = "RESOLVE_FAILED"
	ErrCodeTimeout    = "TIMEOUT"
	ErrCodeInternal   = "INTERNAL"
)

// Record is the envelope for all JSONL output.
type Record struct {
	// Type identifies the record type (e.g. "bcifpipe.convert.v1").
	Type string `json:"type"`

	// TS is the timestamp when the record was created.
	TS time.Time `json:"ts"`

	// RunID is the correlation ID for this batch run.
	RunID string `json:"run_id"`

	// Data contains the type-specific payload as raw JSON.
	Data json.RawMessage `json:"data"`
}

// ConvertRecord is the payload for one completed conversion.
type ConvertRecord struct {
	// ID is the normalized record identifier.
	ID string `json:"id"`

	// Category is the content category.
	Category string `json:"category"`

	// Dest is the destination path that was written.
	Dest string `json:"dest"`

	// Bytes is the destination size in bytes.
	Bytes int64 `json:"bytes"`

	// Shard is the shard index that processed the record.
	Shard int `json:"shard"`
}

// SkipRecord is the payload for a record skipped as up to date.
type SkipRecord struct {
	ID       string `json:"id"`
	Category string `json:"category"`
	Dest     string `json:"dest"`
	Reason   string `json:"reason"`
	Shard    int    `json:"shard"`
}

// ErrorRecord is the payload for a per-record failure.
type ErrorRecord struct {
	ID       string `json:"id,omitempty"`
	Category string `json:"category,omitempty"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Shard    int    `json:"shard"`
}

// ProgressRecord is a periodic progress snapshot.
type ProgressRecord struct {
	Shard     int   `json:"shard"`
	Processed int64 `json:"processed"`
	Converted int64 `json:"converted"`
	Skipped   int64 `json:"skipped"`
	Failed    int64 `json:"failed"`
}

// SummaryRecord is the final aggregate for a run.
type SummaryRecord struct {
	Entries       int64  `json:"entries"`
	Converted     int64  `json:"converted"`
	Skipped       int64  `json:"skipped"`
	Failed        int64  `json:"failed"`
	Shards        int    `json:"shards"`
	Duration      string `json:"duration"`
	DurationMilli int64  `json:"duration_ms"`
}

// ErrWriterClosed is returned by writes after Close.
var ErrWriterClosed = errors.New("output writer is closed")

// WriteError wraps a failure to emit a record.
type WriteError struct {
	// Op is the step that failed ("marshal_data", "write", ...).
	Op string

	// Err is the underlying error.
	Err error
}

func (e *WriteError) Error() string {
	return "output " + e.Op + ": " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
