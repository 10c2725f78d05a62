// Package idlist loads authoritative record-ID lists and holdings
// files into ordered work entries.
//
// A list file is plain text, one entry per line. An entry is either a
// bare identifier or a three-field form "id relpath category" as
// produced by the holdings readers, where relpath is the
// archive-relative source path for the record.
package idlist

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/structbio/bcifpipe/pkg/ident"
)

// Sentinel errors for list loading.
var (
	// ErrNotFound indicates the list file does not exist.
	ErrNotFound = errors.New("list file not found")

	// ErrEmptyList indicates the list file contained no usable entries.
	ErrEmptyList = errors.New("list file is empty")
)

// Entry is one unit of work: a normalized identifier plus the metadata
// needed to locate its source artifact.
type Entry struct {
	// ID is the case-normalized record identifier.
	ID string

	// RelPath is the archive-relative source path, when the list
	// encodes one. Empty means the resolver derives it from the ID.
	RelPath string

	// Category selects hashing rule, source root, and output subtree.
	Category ident.Category

	// Timestamp is the source's declared last-modified time, when the
	// list was built from a holdings file. Zero means unknown.
	Timestamp time.Time
}

// Load reads entries from a list file.
//
// Lines are trimmed; blank lines are skipped. When max > 0, reading
// stops once max entries have been collected. Entries without an
// explicit category field are assigned cat.
//
// Returns ErrNotFound if the file does not exist and ErrEmptyList if
// no usable lines remain.
func Load(path string, max int, cat ident.Category) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("open list file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var entries []Entry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		e, err := ParseEntry(line, cat)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		entries = append(entries, e)
		if max > 0 && len(entries) >= max {
			break
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read list file: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyList, path)
	}
	return entries, nil
}

// ParseEntry parses one list line.
//
// Accepted forms:
//
//	"1abc"
//	"1abc ab/1abc.cif.gz pdb"
func ParseEntry(line string, cat ident.Category) (Entry, error) {
	fields := strings.Fields(line)
	switch len(fields) {
	case 1:
		return Entry{ID: cat.Normalize(fields[0]), Category: cat}, nil
	case 3:
		c, err := ident.ParseCategory(fields[2])
		if err != nil {
			return Entry{}, fmt.Errorf("bad list entry %q: %w", line, err)
		}
		return Entry{ID: c.Normalize(fields[0]), RelPath: fields[1], Category: c}, nil
	}
	return Entry{}, fmt.Errorf("bad list entry %q: want 1 or 3 fields, got %d", line, len(fields))
}

// Write writes entries to a list file, one per line, creating parent
// directories as needed. Entries carrying a RelPath are written in the
// three-field form so the information round-trips through Load.
func Write(path string, entries []Entry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create list dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create list file: %w", err)
	}
	w := bufio.NewWriter(f)
	for _, e := range entries {
		var line string
		if e.RelPath != "" {
			line = fmt.Sprintf("%s %s %s\n", e.ID, e.RelPath, e.Category)
		} else {
			line = e.ID + "\n"
		}
		if _, err := w.WriteString(line); err != nil {
			_ = f.Close()
			return fmt.Errorf("write list file: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("flush list file: %w", err)
	}
	return f.Close()
}
