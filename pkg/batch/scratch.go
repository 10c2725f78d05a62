package batch

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultCleanupEvery is the default number of conversions a unit
// completes between partial scratch clears.
const DefaultCleanupEvery = 100

// scratchSpace owns one worker unit's private scratch directory.
//
// Scratch directories are per unit so parallel units can never collide
// on intermediate filenames. The periodic clear bounds peak disk usage
// on very large shards; the final Remove runs when the unit's shard
// drains.
type scratchSpace struct {
	dir   string
	every int
	count int
}

// newScratchSpace creates the unit's scratch directory under root.
func newScratchSpace(root string, shard int, every int) (*scratchSpace, error) {
	if every <= 0 {
		every = DefaultCleanupEvery
	}
	dir := filepath.Join(root, fmt.Sprintf("unit-%03d", shard))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	return &scratchSpace{dir: dir, every: every}, nil
}

// Path returns a path inside the scratch directory.
func (s *scratchSpace) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Dir returns the scratch directory itself.
func (s *scratchSpace) Dir() string {
	return s.dir
}

// Tick records one completed conversion and clears the directory's
// contents once the configured cadence is reached. The counter is
// owned by the unit; nothing is shared across units.
func (s *scratchSpace) Tick() error {
	s.count++
	if s.count < s.every {
		return nil
	}
	s.count = 0
	return s.Clear()
}

// Clear removes the files inside the scratch directory, keeping the
// directory itself.
func (s *scratchSpace) Clear() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("read scratch dir: %w", err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(s.dir, e.Name())); err != nil {
			return fmt.Errorf("clear scratch dir: %w", err)
		}
	}
	return nil
}

// Remove deletes the scratch directory entirely.
func (s *scratchSpace) Remove() error {
	return os.RemoveAll(s.dir)
}
