// Package query implements the Query Interface (spec §4.7): read-only file(), ident() and
// search() operations consistent with the last fully-committed tag, the surface an
// out-of-process HTML/REST front-end would call through internal/rpc.
//
// Grounded on the teacher's internal/queries package (read-only helpers layered directly
// over the storage package, no caching, no separate read model) generalised from issue
// lookups to the xref maps.
package query

import (
	"context"
	"fmt"
	"sort"

	"github.com/untoldecay/elixir/internal/types"
	"github.com/untoldecay/elixir/internal/xrefdb"
)

// Interface is the Query Interface over one project's database.
type Interface struct {
	db *xrefdb.DB
}

// New wraps db for read-only queries.
func New(db *xrefdb.DB) *Interface {
	return &Interface{db: db}
}

// FileResult is the per-line annotation overlay for a rendered file (spec §4.7: "enough to
// drive an HTML renderer's per-line overlay, without doing any rendering itself").
type FileResult struct {
	Tag         string
	Path        string
	Blob        types.BlobNumber
	Annotations []types.Annotation
}

// File returns the definition/reference overlay for path within tag. Returns a
// types.ErrBlobMissing-wrapped error if tag does not contain path, and a
// types.ErrTagAborted-wrapped error if tag is not yet fully indexed (an un-indexed tag is not
// yet a valid query target, spec §4.6).
func (q *Interface) File(ctx context.Context, tag, path string) (*FileResult, error) {
	indexed, err := q.db.IsIndexed(ctx, tag)
	if err != nil {
		return nil, err
	}
	if !indexed {
		return nil, fmt.Errorf("%w: tag %q is not fully indexed", types.ErrTagAborted, tag)
	}

	num, ok, err := q.db.NumForPath(ctx, tag, path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s@%s", types.ErrBlobMissing, path, tag)
	}

	defs, err := q.db.DefsForBlob(ctx, num)
	if err != nil {
		return nil, err
	}
	refs, err := q.db.RefsForBlob(ctx, num)
	if err != nil {
		return nil, err
	}

	// A line can carry more than one identifier (spec §1's own scenario 1 one-liner
	// "int x; int f(){return x;}" defines both x and f on line 1), so the overlay is built as
	// a list keyed by line, not a single slot per line -- otherwise a second def or ref on an
	// already-occupied line would silently vanish.
	type lineIdent struct {
		line  int
		ident string
	}
	isDefAt := make(map[lineIdent]bool, len(defs)) // (line, ident) pairs already recorded as definitions
	var annotations []types.Annotation
	for _, d := range defs {
		isDefAt[lineIdent{d.Line, d.Ident}] = true
		annotations = append(annotations, types.Annotation{Line: d.Line, Ident: d.Ident, Kind: d.Kind})
	}
	for ident, entries := range refs {
		for _, e := range entries {
			for _, line := range e.Lines {
				if isDefAt[lineIdent{line, ident}] {
					continue
				}
				annotations = append(annotations, types.Annotation{Line: line, Ident: ident})
			}
		}
	}

	sort.Slice(annotations, func(i, j int) bool {
		if annotations[i].Line != annotations[j].Line {
			return annotations[i].Line < annotations[j].Line
		}
		return annotations[i].Ident < annotations[j].Ident
	})

	return &FileResult{Tag: tag, Path: path, Blob: num, Annotations: annotations}, nil
}

// DefSite is one definition occurrence resolved to the path it's reachable at within the
// queried tag.
type DefSite struct {
	Path string
	Line int
	Kind types.Kind
}

// RefSite is one blob's reference occurrences resolved to the path it's reachable at within
// the queried tag.
type RefSite struct {
	Path  string
	Lines []int
}

// IdentResult is every definition and reference site of one identifier within one family,
// restricted to the blobs actually present in the queried tag's tree (spec §4.7: "the tag's
// tree filters Bs in the two maps to those actually present in this release").
type IdentResult struct {
	Ident string
	Defs  []DefSite
	Refs  []RefSite
}

// Ident returns every definition and reference occurrence of ident in family among the blobs
// tag's tree actually contains, each resolved to tag's path for that blob (spec §4.7).
// Returns types.ErrTagAborted-wrapped if tag is not yet fully indexed.
func (q *Interface) Ident(ctx context.Context, tag, ident string, family types.Family) (*IdentResult, error) {
	indexed, err := q.db.IsIndexed(ctx, tag)
	if err != nil {
		return nil, err
	}
	if !indexed {
		return nil, fmt.Errorf("%w: tag %q is not fully indexed", types.ErrTagAborted, tag)
	}

	tree, err := q.db.TagTree(ctx, tag)
	if err != nil {
		return nil, err
	}
	pathFor := make(map[types.BlobNumber]string, len(tree))
	for _, e := range tree {
		if _, ok := pathFor[e.Blob]; !ok {
			pathFor[e.Blob] = e.Path
		}
	}

	defs, err := q.db.DefsForIdent(ctx, ident, family)
	if err != nil {
		return nil, err
	}
	refs, err := q.db.RefsForIdent(ctx, ident, family)
	if err != nil {
		return nil, err
	}

	result := &IdentResult{Ident: ident}
	for _, d := range defs {
		if path, ok := pathFor[d.Blob]; ok {
			result.Defs = append(result.Defs, DefSite{Path: path, Line: d.Line, Kind: d.Kind})
		}
	}
	for _, r := range refs {
		if path, ok := pathFor[r.Blob]; ok {
			result.Refs = append(result.Refs, RefSite{Path: path, Lines: r.Lines})
		}
	}
	return result, nil
}

// Search returns every identifier with a definition whose name starts with prefix, ascending.
func (q *Interface) Search(ctx context.Context, prefix string) ([]string, error) {
	return q.db.IdentsWithPrefix(ctx, prefix)
}
