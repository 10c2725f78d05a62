// Package ident defines record identifiers, content categories, and the
// deterministic hashing rules that map an identifier to its divided
// storage subpath.
//
// Every boundary that touches an identifier (source path, destination
// path, reconciliation key) must normalize it through the category's
// case strategy first. Mixed conventions between list files and output
// filenames are the classic way this pipeline silently duplicates
// records.
package ident

import (
	"fmt"
	"strings"
)

// Category classifies a record and selects its hashing rule, source
// root, and output subtree.
type Category string

const (
	// CategoryPDB is an experimentally determined structure entry.
	CategoryPDB Category = "pdb"

	// CategoryCSM is a computed structure model.
	CategoryCSM Category = "csm"

	// CategoryIHM is an integrative/hybrid-method structure entry.
	CategoryIHM Category = "ihm"
)

// Categories lists all supported content categories.
var Categories = []Category{CategoryPDB, CategoryCSM, CategoryIHM}

// ParseCategory validates a category string.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case CategoryPDB, CategoryCSM, CategoryIHM:
		return c, nil
	}
	return "", fmt.Errorf("unsupported content category: %q", s)
}

// CaseStrategy is the closed set of identifier case conventions.
type CaseStrategy int

const (
	// CaseLower folds identifiers to lower case.
	CaseLower CaseStrategy = iota

	// CaseUpper folds identifiers to upper case.
	CaseUpper
)

// Apply folds s to the strategy's case.
func (cs CaseStrategy) Apply(s string) string {
	if cs == CaseUpper {
		return strings.ToUpper(s)
	}
	return strings.ToLower(s)
}

// Case returns the category's identifier case convention.
//
// Experimental and integrative entries are stored with lower-case
// filenames; computed model identifiers are canonically upper-case
// (AF_*, MA_* accession style).
func (c Category) Case() CaseStrategy {
	if c == CategoryCSM {
		return CaseUpper
	}
	return CaseLower
}

// Normalize trims and case-folds a raw identifier per the category's
// convention. The result is the canonical key used at every boundary.
func (c Category) Normalize(id string) string {
	return c.Case().Apply(strings.TrimSpace(id))
}
