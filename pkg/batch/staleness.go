package batch

import (
	"os"
	"time"
)

// NeedsConversion decides whether a destination must be (re)written.
//
// The contract is explicit and strict-less:
//
//   - destination absent → convert
//   - destination mtime < source timestamp → convert
//   - destination mtime >= source timestamp → skip
//   - source timestamp unknown (zero) and destination present → skip
//
// Equal timestamps resolve to skip: re-conversion happens only when
// the output is strictly stale. This is a cheap mtime heuristic, not a
// content check; it assumes clock coherence between the source's
// declared timestamp and the local filesystem.
func NeedsConversion(destPath string, sourceTS time.Time) bool {
	st, err := os.Stat(destPath)
	if err != nil {
		return true
	}
	if sourceTS.IsZero() {
		return false
	}
	return st.ModTime().Before(sourceTS)
}
