package output

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReader_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "run-1")
	ctx := context.Background()

	require.NoError(t, w.WriteConvert(ctx, &ConvertRecord{ID: "1abc", Category: "pdb", Dest: "/out/1abc.bcif", Bytes: 42}))
	require.NoError(t, w.WriteSkip(ctx, &SkipRecord{ID: "2def", Reason: "up_to_date"}))
	require.NoError(t, w.WriteSummary(ctx, &SummaryRecord{Entries: 2, Converted: 1, Skipped: 1}))
	require.NoError(t, w.Close())

	rd := NewReader(&buf)

	rec, err := rd.Next()
	require.NoError(t, err)
	assert.Equal(t, TypeConvert, rec.Type)
	assert.Equal(t, "run-1", rec.RunID)
	var conv ConvertRecord
	require.NoError(t, DecodeData(rec, TypeConvert, &conv))
	assert.Equal(t, "1abc", conv.ID)
	assert.Equal(t, int64(42), conv.Bytes)

	rec, err = rd.Next()
	require.NoError(t, err)
	assert.Equal(t, TypeSkip, rec.Type)

	rec, err = rd.Next()
	require.NoError(t, err)
	assert.Equal(t, TypeSummary, rec.Type)

	_, err = rd.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestDecodeData_TypeMismatch(t *testing.T) {
	rec := Record{Type: TypeSkip, Data: []byte(`{}`)}
	var conv ConvertRecord
	err := DecodeData(rec, TypeConvert, &conv)
	require.Error(t, err)
	assert.Contains(t, err.Error(), TypeConvert)
}

func TestReadSummary(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "run-2")
	ctx := context.Background()
	require.NoError(t, w.WriteConvert(ctx, &ConvertRecord{ID: "1abc"}))
	require.NoError(t, w.WriteSummary(ctx, &SummaryRecord{Entries: 1, Converted: 1, Shards: 2}))

	sum, err := ReadSummary(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(1), sum.Converted)
	assert.Equal(t, 2, sum.Shards)
}

func TestReadSummary_Missing(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "run-3")
	require.NoError(t, w.WriteConvert(context.Background(), &ConvertRecord{ID: "1abc"}))

	_, err := ReadSummary(&buf)
	assert.Error(t, err)
}

func TestReader_LineLimit(t *testing.T) {
	long := `{"type":"bcifpipe.convert.v1","pad":"` + strings.Repeat("x", 256) + `"}` + "\n"
	rd := NewReader(strings.NewReader(long))
	rd.SetMaxLineBytes(64)

	_, err := rd.Next()
	require.Error(t, err)
	assert.False(t, errors.Is(err, io.EOF))
}

func TestReader_MalformedLine(t *testing.T) {
	rd := NewReader(strings.NewReader("not json\n"))
	_, err := rd.Next()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed")
}
