package ident

import (
	"fmt"
	"strings"
)

// Hash maps an identifier to its divided storage subpath.
//
// Two rule families exist:
//
//   - entry rule: the two characters preceding the final character
//     (e.g. "1abc" → "ab", "pdb_00001abc" → "ab"), used for PDB-style
//     entry identifiers.
//   - model rule: three nested segments built from the prefix and the
//     tail (e.g. "AF_AFP68871F1" → "AF/88/71"), used for computed
//     model identifiers carrying an AF_ or MA_ prefix.
//
// The returned subpath uses forward slashes and no trailing separator.
// Both the writer and the reconciler must call this same function;
// parallel reimplementation is how write-time and check-time paths
// drift apart.
//
// An identifier whose shape matches neither rule is an error, never a
// guess: silent mis-hashing stores the same record in two places.
func Hash(id string, cat Category) (string, error) {
	id = cat.Normalize(id)
	lower := strings.ToLower(id)

	switch {
	case strings.HasPrefix(lower, "af_") || strings.HasPrefix(lower, "ma_"):
		if len(id) < 8 {
			return "", fmt.Errorf("model identifier too short to hash: %q", id)
		}
		n := len(id)
		return id[0:2] + "/" + id[n-6:n-4] + "/" + id[n-4:n-2], nil
	case strings.HasPrefix(lower, "pdb_") || len(id) == 4:
		if len(id) < 4 {
			return "", fmt.Errorf("entry identifier too short to hash: %q", id)
		}
		n := len(id)
		return id[n-3 : n-1], nil
	}
	return "", fmt.Errorf("unsupported identifier shape: %q", id)
}
