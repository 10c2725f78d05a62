package output

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Writer emits JSONL run records.
//
// Implementations must be safe for concurrent use from multiple worker
// units. Each Write* method emits one complete line of JSON.
type Writer interface {
	// WriteConvert emits a conversion record.
	WriteConvert(ctx context.Context, rec *ConvertRecord) error

	// WriteSkip emits a skip record.
	WriteSkip(ctx context.Context, rec *SkipRecord) error

	// WriteError emits an error record.
	WriteError(ctx context.Context, rec *ErrorRecord) error

	// WriteProgress emits a progress record.
	WriteProgress(ctx context.Context, rec *ProgressRecord) error

	// WriteSummary emits the final summary record.
	WriteSummary(ctx context.Context, rec *SummaryRecord) error

	// Close flushes buffered output and releases resources.
	Close() error
}

// JSONLWriter writes records as newline-delimited JSON to an
// io.Writer. Writes are serialized under a mutex so lines never
// interleave.
type JSONLWriter struct {
	w     io.Writer
	runID string
	mu    sync.Mutex

	closed bool
}

var _ Writer = (*JSONLWriter)(nil)

// NewJSONLWriter creates a writer. The underlying io.Writer is not
// closed by Close; the caller owns it.
func NewJSONLWriter(w io.Writer, runID string) *JSONLWriter {
	return &JSONLWriter{w: w, runID: runID}
}

func (jw *JSONLWriter) WriteConvert(ctx context.Context, rec *ConvertRecord) error {
	return jw.writeRecord(ctx, TypeConvert, rec)
}

func (jw *JSONLWriter) WriteSkip(ctx context.Context, rec *SkipRecord) error {
	return jw.writeRecord(ctx, TypeSkip, rec)
}

func (jw *JSONLWriter) WriteError(ctx context.Context, rec *ErrorRecord) error {
	return jw.writeRecord(ctx, TypeError, rec)
}

func (jw *JSONLWriter) WriteProgress(ctx context.Context, rec *ProgressRecord) error {
	return jw.writeRecord(ctx, TypeProgress, rec)
}

func (jw *JSONLWriter) WriteSummary(ctx context.Context, rec *SummaryRecord) error {
	return jw.writeRecord(ctx, TypeSummary, rec)
}

// Close marks the writer closed. Subsequent writes fail with
// ErrWriterClosed.
func (jw *JSONLWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()
	jw.closed = true
	return nil
}

func (jw *JSONLWriter) writeRecord(ctx context.Context, recordType string, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Marshal the payload outside the lock.
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return &WriteError{Op: "marshal_data", Err: err}
	}

	jw.mu.Lock()
	defer jw.mu.Unlock()

	if jw.closed {
		return ErrWriterClosed
	}

	record := Record{
		Type:  recordType,
		TS:    time.Now().UTC(),
		RunID: jw.runID,
		Data:  dataBytes,
	}
	recordBytes, err := json.Marshal(record)
	if err != nil {
		return &WriteError{Op: "marshal_record", Err: err}
	}

	recordBytes = append(recordBytes, '\n')
	if err := writeAll(jw.w, recordBytes); err != nil {
		return &WriteError{Op: "write", Err: err}
	}
	return nil
}

// writeAll writes all bytes to w, handling short writes: io.Writer may
// return n < len(p) with nil error, which would truncate JSONL lines.
func writeAll(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}
