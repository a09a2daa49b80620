package query

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/untoldecay/elixir/internal/blobstore"
	"github.com/untoldecay/elixir/internal/config"
	"github.com/untoldecay/elixir/internal/repoadapter/fake"
	"github.com/untoldecay/elixir/internal/types"
	"github.com/untoldecay/elixir/internal/update"
	"github.com/untoldecay/elixir/internal/xrefdb"
)

func buildIndexedDB(t *testing.T) (*xrefdb.DB, *Interface) {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	repo := fake.New()
	repo.AddTag("v1", map[string][]byte{
		"a.c": []byte("int x;\nint f() {\n\treturn x;\n}\n"),
	})

	db, err := xrefdb.Open(ctx, filepath.Join(dir, "xref.db"))
	if err != nil {
		t.Fatalf("xrefdb.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	store, err := blobstore.Open(ctx, db)
	if err != nil {
		t.Fatalf("blobstore.Open: %v", err)
	}
	descriptor, err := config.LoadDescriptor(dir)
	if err != nil {
		t.Fatalf("LoadDescriptor: %v", err)
	}
	coord := update.New(repo, db, store, descriptor, dir, 5)
	if _, err := coord.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	return db, New(db)
}

func TestFileReturnsAnnotationsForIndexedTag(t *testing.T) {
	ctx := context.Background()
	_, q := buildIndexedDB(t)

	res, err := q.File(ctx, "v1", "a.c")
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	if res.Path != "a.c" || res.Tag != "v1" {
		t.Fatalf("File() = %+v, want a.c@v1", res)
	}

	var sawDefX, sawDefF, sawRefX bool
	for _, a := range res.Annotations {
		switch {
		case a.Ident == "x" && a.Kind == types.KindVariable:
			sawDefX = true
		case a.Ident == "f" && a.Kind == types.KindFunction:
			sawDefF = true
		case a.Ident == "x" && a.Kind == "" && a.Line == 3:
			sawRefX = true
		}
	}
	if !sawDefX || !sawDefF || !sawRefX {
		t.Fatalf("File() annotations = %+v, missing expected entries", res.Annotations)
	}
}

// TestFileAnnotatesEveryIdentifierOnASharedLine covers spec §8 scenario 1's own one-liner
// "int x; int f(){return x;}", where x and f are both defined on line 1: the overlay must
// carry one Annotation per identifier rather than collapsing the line to a single entry (a
// map[int]Annotation keyed only by line previously let the second def silently overwrite the
// first). Defs/refs are written directly so this test isolates File()'s merge logic from the
// regex tagger's per-line matching behavior.
func TestFileAnnotatesEveryIdentifierOnASharedLine(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	db, err := xrefdb.Open(ctx, filepath.Join(dir, "xref.db"))
	if err != nil {
		t.Fatalf("xrefdb.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	num, _, err := db.InternBlob(ctx, fake.HashOf([]byte("int x; int f(){return x;}\n")))
	if err != nil {
		t.Fatalf("InternBlob: %v", err)
	}
	if err := db.AddPath(ctx, num, "a.c"); err != nil {
		t.Fatalf("AddPath: %v", err)
	}
	if err := db.WriteTagTree(ctx, "v1", []types.PathEntry{{Path: "a.c", Blob: num}}); err != nil {
		t.Fatalf("WriteTagTree: %v", err)
	}
	defs := []types.DefRecord{
		{Ident: "x", Blob: num, Line: 1, Kind: types.KindVariable, Family: types.FamilyC},
		{Ident: "f", Blob: num, Line: 1, Kind: types.KindFunction, Family: types.FamilyC},
	}
	if err := db.AppendDefs(ctx, defs); err != nil {
		t.Fatalf("AppendDefs: %v", err)
	}
	// x also occurs as a reference on its own definition line -- suppressed per §9's
	// same-line resolution, so only the def should surface for x, while y is a genuine
	// same-line reference that must still get its own annotation.
	if err := db.AppendRefs(ctx, num, types.FamilyC, map[string][]int{"y": {1}}); err != nil {
		t.Fatalf("AppendRefs: %v", err)
	}
	if err := db.MarkIndexed(ctx, "v1"); err != nil {
		t.Fatalf("MarkIndexed: %v", err)
	}

	res, err := New(db).File(ctx, "v1", "a.c")
	if err != nil {
		t.Fatalf("File: %v", err)
	}

	var sawDefX, sawDefF, sawRefY bool
	for _, a := range res.Annotations {
		if a.Line != 1 {
			t.Fatalf("unexpected annotation off the single source line: %+v", a)
		}
		switch {
		case a.Ident == "x" && a.Kind == types.KindVariable:
			sawDefX = true
		case a.Ident == "f" && a.Kind == types.KindFunction:
			sawDefF = true
		case a.Ident == "y" && a.Kind == "":
			sawRefY = true
		}
	}
	if !sawDefX || !sawDefF || !sawRefY {
		t.Fatalf("File() annotations = %+v, want x def, f def, and y ref all on line 1", res.Annotations)
	}
}

func TestFileUnknownPathReturnsBlobMissing(t *testing.T) {
	ctx := context.Background()
	_, q := buildIndexedDB(t)

	_, err := q.File(ctx, "v1", "does-not-exist.c")
	if !errors.Is(err, types.ErrBlobMissing) {
		t.Fatalf("File(unknown path) error = %v, want ErrBlobMissing", err)
	}
}

func TestFileUnindexedTagIsInvisible(t *testing.T) {
	ctx := context.Background()
	db, q := buildIndexedDB(t)

	// Simulate an in-progress tag: its tree exists but indexed is never set.
	if err := db.WriteTagTree(ctx, "v2", nil); err != nil {
		t.Fatalf("WriteTagTree: %v", err)
	}
	_, err := q.File(ctx, "v2", "a.c")
	if !errors.Is(err, types.ErrTagAborted) {
		t.Fatalf("File(unindexed tag) error = %v, want ErrTagAborted-wrapped", err)
	}
}

func TestIdentReturnsDefsAndRefsResolvedToTagPaths(t *testing.T) {
	ctx := context.Background()
	_, q := buildIndexedDB(t)

	res, err := q.Ident(ctx, "v1", "x", types.FamilyC)
	if err != nil {
		t.Fatalf("Ident: %v", err)
	}
	if len(res.Defs) != 1 || res.Defs[0].Path != "a.c" {
		t.Fatalf("Ident(x).Defs = %+v, want one def at a.c", res.Defs)
	}
	if len(res.Refs) != 1 || res.Refs[0].Path != "a.c" || len(res.Refs[0].Lines) != 1 || res.Refs[0].Lines[0] != 3 {
		t.Fatalf("Ident(x).Refs = %+v, want one entry at a.c with line 3", res.Refs)
	}
}

func TestIdentUnindexedTagIsInvisible(t *testing.T) {
	ctx := context.Background()
	db, q := buildIndexedDB(t)
	if err := db.WriteTagTree(ctx, "v2", nil); err != nil {
		t.Fatalf("WriteTagTree: %v", err)
	}
	if _, err := q.Ident(ctx, "v2", "x", types.FamilyC); !errors.Is(err, types.ErrTagAborted) {
		t.Fatalf("Ident(unindexed tag) error = %v, want ErrTagAborted-wrapped", err)
	}
}

func TestSearchPrefix(t *testing.T) {
	ctx := context.Background()
	_, q := buildIndexedDB(t)

	idents, err := q.Search(ctx, "f")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(idents) != 1 || idents[0] != "f" {
		t.Fatalf("Search(f) = %v, want [f]", idents)
	}
}
