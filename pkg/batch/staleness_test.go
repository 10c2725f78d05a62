package batch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNeedsConversion(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "1abc.bcif.gz")
	require.NoError(t, os.WriteFile(dest, []byte("x"), 0o644))

	destTS := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(dest, destTS, destTS))

	tests := []struct {
		name     string
		path     string
		sourceTS time.Time
		want     bool
	}{
		{name: "absent destination", path: filepath.Join(dir, "missing.bcif.gz"), sourceTS: destTS, want: true},
		{name: "source newer", path: dest, sourceTS: destTS.Add(time.Second), want: true},
		{name: "source equal", path: dest, sourceTS: destTS, want: false},
		{name: "source older", path: dest, sourceTS: destTS.Add(-time.Second), want: false},
		{name: "no source timestamp, destination present", path: dest, sourceTS: time.Time{}, want: false},
		{name: "no source timestamp, destination absent", path: filepath.Join(dir, "none.bcif"), sourceTS: time.Time{}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NeedsConversion(tt.path, tt.sourceTS))
		})
	}
}
