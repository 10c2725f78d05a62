package output

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// DefaultMaxLineBytes bounds a single JSONL record line.
const DefaultMaxLineBytes = 1 << 20

// Reader decodes a JSONL run log record by record.
type Reader struct {
	r            *bufio.Reader
	maxLineBytes int
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r), maxLineBytes: DefaultMaxLineBytes}
}

// SetMaxLineBytes overrides the per-line size bound. n <= 0 restores
// the default.
func (rd *Reader) SetMaxLineBytes(n int) {
	if n <= 0 {
		rd.maxLineBytes = DefaultMaxLineBytes
		return
	}
	rd.maxLineBytes = n
}

// Next returns the next record, or io.EOF when the log is exhausted.
// Blank lines terminate the stream.
func (rd *Reader) Next() (Record, error) {
	line, err := readLineLimited(rd.r, rd.maxLineBytes)
	if err != nil {
		return Record{}, err
	}
	if len(bytes.TrimSpace(line)) == 0 {
		return Record{}, io.EOF
	}

	var rec Record
	if err := json.Unmarshal(line, &rec); err != nil {
		return Record{}, fmt.Errorf("malformed run record: %w", err)
	}
	return rec, nil
}

// DecodeData unmarshals a record's payload into v after checking the
// envelope type.
func DecodeData(rec Record, wantType string, v any) error {
	if rec.Type != wantType {
		return fmt.Errorf("record type %s, want %s", rec.Type, wantType)
	}
	return json.Unmarshal(rec.Data, v)
}

// ReadSummary scans a run log to its summary record. Returns an error
// if the log holds none.
func ReadSummary(r io.Reader) (*SummaryRecord, error) {
	rd := NewReader(r)
	for {
		rec, err := rd.Next()
		if errors.Is(err, io.EOF) {
			return nil, errors.New("run log has no summary record")
		}
		if err != nil {
			return nil, err
		}
		if rec.Type != TypeSummary {
			continue
		}
		var sum SummaryRecord
		if err := json.Unmarshal(rec.Data, &sum); err != nil {
			return nil, err
		}
		return &sum, nil
	}
}

func readLineLimited(r *bufio.Reader, maxBytes int) ([]byte, error) {
	var out []byte
	for {
		frag, err := r.ReadSlice('\n')
		out = append(out, frag...)
		if len(out) > maxBytes {
			return nil, errors.New("jsonl line exceeds max bytes")
		}
		if err == nil {
			return bytes.TrimSuffix(out, []byte("\n")), nil
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if errors.Is(err, io.EOF) {
			if len(out) == 0 {
				return nil, io.EOF
			}
			return out, nil
		}
		return nil, err
	}
}
