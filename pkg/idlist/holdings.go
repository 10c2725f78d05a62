package idlist

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/structbio/bcifpipe/pkg/ident"
)

// Holdings timestamp layouts. The archive emits RFC 3339 with a colon
// in the zone offset; older holdings files omit the colon.
var holdingsTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05-0700",
}

// LoadEntryHoldings reads a released-entries holdings file: a JSON
// object mapping record IDs to last-modified timestamps. Files ending
// in .gz are decompressed transparently.
//
// Keys are normalized per cat and the result is sorted by ID so runs
// built from the same holdings file shard identically.
func LoadEntryHoldings(path string, cat ident.Category) ([]Entry, error) {
	raw := map[string]string{}
	if err := readJSON(path, &raw); err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(raw))
	for id, stamp := range raw {
		ts, err := parseHoldingsTime(stamp)
		if err != nil {
			return nil, fmt.Errorf("holdings entry %s: %w", id, err)
		}
		nid := cat.Normalize(id)
		hash, err := ident.Hash(nid, cat)
		if err != nil {
			return nil, fmt.Errorf("holdings entry %s: %w", id, err)
		}
		entries = append(entries, Entry{
			ID:        nid,
			RelPath:   hash + "/" + nid + ".cif.gz",
			Category:  cat,
			Timestamp: ts,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries, nil
}

// modelHolding is one record of a computed-model holdings file.
type modelHolding struct {
	ModelPath        string `json:"modelPath"`
	LastModifiedDate string `json:"lastModifiedDate"`
}

// LoadModelHoldings reads a computed-model holdings file: a JSON
// object mapping model IDs to metadata carrying the archive-relative
// model path and last-modified date.
func LoadModelHoldings(path string) ([]Entry, error) {
	raw := map[string]modelHolding{}
	if err := readJSON(path, &raw); err != nil {
		return nil, err
	}

	cat := ident.CategoryCSM
	entries := make([]Entry, 0, len(raw))
	for id, h := range raw {
		ts, err := parseHoldingsTime(h.LastModifiedDate)
		if err != nil {
			return nil, fmt.Errorf("holdings model %s: %w", id, err)
		}
		entries = append(entries, Entry{
			ID:        cat.Normalize(id),
			RelPath:   strings.ToLower(h.ModelPath),
			Category:  cat,
			Timestamp: ts,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries, nil
}

// Incremental filters entries down to the ones whose output is stale
// or missing, per the supplied staleness predicate.
func Incremental(entries []Entry, stale func(Entry) bool) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if stale(e) {
			out = append(out, e)
		}
	}
	return out
}

func readJSON(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return fmt.Errorf("open holdings file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("decompress holdings file: %w", err)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("parse holdings file %s: %w", path, err)
	}
	return nil
}

func parseHoldingsTime(s string) (time.Time, error) {
	for _, layout := range holdingsTimeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	// Colon-less offsets sometimes arrive with a stray colon variant;
	// retry with the colon stripped from the zone.
	if n := len(s); n > 3 && s[n-3] == ':' {
		if ts, err := time.Parse("2006-01-02T15:04:05-0700", s[:n-3]+s[n-2:]); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}
