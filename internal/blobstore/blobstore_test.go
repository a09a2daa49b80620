package blobstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/untoldecay/elixir/internal/types"
	"github.com/untoldecay/elixir/internal/xrefdb"
)

func openTestStore(t *testing.T) (*Store, *xrefdb.DB) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "xref.db")
	db, err := xrefdb.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("xrefdb.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	store, err := Open(context.Background(), db)
	if err != nil {
		t.Fatalf("blobstore.Open: %v", err)
	}
	return store, db
}

func hashOf(b byte) types.Hash {
	var h types.Hash
	h[0] = b
	return h
}

func TestInternAllocatesAndBijects(t *testing.T) {
	ctx := context.Background()
	store, _ := openTestStore(t)

	num, isNew, err := store.Intern(ctx, hashOf(1))
	if err != nil {
		t.Fatalf("Intern: %v", err)
	}
	if !isNew || num != 1 {
		t.Fatalf("Intern() = (%d, %v), want (1, true)", num, isNew)
	}

	resolved, err := store.Resolve(ctx, num)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	num2, isNew2, err := store.Intern(ctx, resolved)
	if err != nil {
		t.Fatalf("Intern (again): %v", err)
	}
	if isNew2 || num2 != num {
		t.Fatalf("re-Intern of resolved hash = (%d, %v), want (%d, false)", num2, isNew2, num)
	}
}

func TestOpenReconcilesAllocatedFromExistingDB(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "xref.db")
	db, err := xrefdb.Open(ctx, path)
	if err != nil {
		t.Fatalf("xrefdb.Open: %v", err)
	}
	defer db.Close()

	store1, err := Open(ctx, db)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for i := byte(1); i <= 3; i++ {
		if _, _, err := store1.Intern(ctx, hashOf(i)); err != nil {
			t.Fatalf("Intern: %v", err)
		}
	}

	// Simulate a restart: a fresh Store over the same DB must reconcile its allocated set.
	store2, err := Open(ctx, db)
	if err != nil {
		t.Fatalf("Open (restart): %v", err)
	}
	if card := store2.Allocated().GetCardinality(); card != 3 {
		t.Fatalf("Allocated().GetCardinality() after restart = %d, want 3", card)
	}

	num, isNew, err := store2.Intern(ctx, hashOf(4))
	if err != nil {
		t.Fatalf("Intern: %v", err)
	}
	if !isNew || num != 4 {
		t.Fatalf("Intern(new hash after restart) = (%d, %v), want (4, true)", num, isNew)
	}
}

func TestAddPathAndDenseNumbering(t *testing.T) {
	ctx := context.Background()
	store, _ := openTestStore(t)
	for i := byte(1); i <= 4; i++ {
		num, _, err := store.Intern(ctx, hashOf(i))
		if err != nil {
			t.Fatalf("Intern: %v", err)
		}
		if err := store.AddPath(ctx, num, "file.c"); err != nil {
			t.Fatalf("AddPath: %v", err)
		}
	}
	bm := store.Allocated()
	if bm.GetCardinality() != 4 {
		t.Fatalf("Allocated().GetCardinality() = %d, want 4", bm.GetCardinality())
	}
	for i := uint32(1); i <= 4; i++ {
		if !bm.Contains(i) {
			t.Fatalf("Allocated() missing %d: dense numbering invariant violated", i)
		}
	}
}

func TestNewBlobSetAccumulatesAndReportsLen(t *testing.T) {
	set := NewBlobSetEmpty()
	set.Add(3)
	set.Add(1)
	set.Add(3) // duplicate, should not inflate Len
	if set.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", set.Len())
	}
	nums := set.Numbers()
	if len(nums) != 2 || nums[0] != 1 || nums[1] != 3 {
		t.Fatalf("Numbers() = %v, want ascending [1 3]", nums)
	}
}
