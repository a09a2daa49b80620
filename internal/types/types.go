// Package types holds the data model shared across elixir's packages: the
// blob/tag/identifier vocabulary of the cross-reference database, and nothing else.
package types

import "fmt"

// Hash is a blob's external 20-byte content identity, as produced by the repo adapter's
// underlying version-control store.
type Hash [20]byte

func (h Hash) String() string {
	return fmt.Sprintf("%x", [20]byte(h))
}

// BlobNumber is the dense, monotonically allocated internal identity for a blob.
// Numbering starts at 1; 0 is never assigned and is used as a "not found" sentinel.
type BlobNumber uint32

func (b BlobNumber) String() string {
	return fmt.Sprintf("%d", uint32(b))
}

// Family is the language classification used to select extractor rules and to filter
// queries. The set is open-ended and project-configured; elixir treats members as opaque
// strings everywhere except the handful of built-ins below.
type Family string

const (
	FamilyC        Family = "C"
	FamilyKconfig  Family = "K"
	FamilyDeviceTree Family = "D"
	FamilyMakefile Family = "M"
)

// Kind is the short classification a definition carries, as produced by the lexical tags
// extractor ("function", "variable", "macro", "struct", ...).
type Kind string

const (
	KindFunction Kind = "function"
	KindVariable Kind = "variable"
	KindMacro    Kind = "macro"
	KindStruct   Kind = "struct"
	KindConfig   Kind = "config"
	KindTarget   Kind = "target"
)

// PathEntry is one (path, blob) pair in a tag's tree.
type PathEntry struct {
	Path string
	Blob BlobNumber
}

// Tag is a named immutable snapshot together with its ordered tree listing.
type Tag struct {
	Name    string
	Tree    []PathEntry
	Indexed bool
}

// DefRecord is one definition occurrence: identifier, where, what kind, which family.
type DefRecord struct {
	Ident  string
	Blob   BlobNumber
	Line   int
	Kind   Kind
	Family Family
}

// RefRecord is one reference occurrence: identifier, which blob, which family, which line.
// Within the database this is stored per (ident, blob, family) with a comma-joined line list;
// RefRecord itself models a single logical occurrence before encoding.
type RefRecord struct {
	Ident  string
	Blob   BlobNumber
	Family Family
	Line   int
}

// RefEntry is a persisted reference row: one (blob, family) pair and the sorted,
// deduplicated list of lines on which the identifier occurred in non-definition context.
type RefEntry struct {
	Blob   BlobNumber
	Family Family
	Lines  []int
}

// Annotation is a single overlay span computed by the Query Interface for a rendered file:
// one identifier occupying a line, and its kind if this span is a definition site. A line
// with more than one known identifier (or more than one identifier defined on it) yields one
// Annotation per identifier, not one per line -- FileResult.Annotations is a list, not a
// per-line map (spec §4.7: "the list of (line, ident, kind?) spans").
type Annotation struct {
	Line  int
	Ident string
	Kind  Kind // empty if this line is a reference, not a definition
}
