// Package blobstore implements the Blob Identity Store (spec §4.2): the bijective mapping
// between a repo adapter's content hashes and elixir's own dense blob numbers, and the
// bookkeeping the Update Coordinator needs to tell a brand-new blob from one it has already
// indexed.
package blobstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/untoldecay/elixir/internal/types"
	"github.com/untoldecay/elixir/internal/xrefdb"
)

// Store is the Blob Identity Store for one project's database. It is safe for concurrent
// use; the Update Coordinator itself calls Intern from a single goroutine during tree
// enumeration.
type Store struct {
	db *xrefdb.DB

	mu         sync.Mutex
	allocated  *roaring.Bitmap // every blob number ever assigned, reconciled from the db on Open
}

// Open reconciles the in-memory allocated-number bitmap from the database's own state (spec
// §4.2: "the counter is reconciled from the database's own state, never trusted from
// memory") and returns a ready Store.
func Open(ctx context.Context, db *xrefdb.DB) (*Store, error) {
	nums, err := db.AllBlobNums(ctx)
	if err != nil {
		return nil, fmt.Errorf("blobstore: reconciling allocated numbers: %w", err)
	}
	bm := roaring.New()
	for _, n := range nums {
		bm.Add(uint32(n))
	}
	return &Store{db: db, allocated: bm}, nil
}

// Intern assigns hash a blob number, allocating a fresh one if hash has never been seen.
// isNew tells the caller whether to route this blob into the extraction passes (spec §4.6:
// "only newly-interned blobs enter the definitions pass").
func (s *Store) Intern(ctx context.Context, hash types.Hash) (num types.BlobNumber, isNew bool, err error) {
	num, isNew, err = s.db.InternBlob(ctx, hash)
	if err != nil {
		return 0, false, fmt.Errorf("blobstore: intern %s: %w", hash, err)
	}
	if isNew {
		s.mu.Lock()
		s.allocated.Add(uint32(num))
		s.mu.Unlock()
	}
	return num, isNew, nil
}

// Resolve returns the content hash behind a blob number.
func (s *Store) Resolve(ctx context.Context, num types.BlobNumber) (types.Hash, error) {
	hash, err := s.db.NumToHash(ctx, num)
	if err != nil {
		return types.Hash{}, fmt.Errorf("blobstore: resolve %d: %w", num, err)
	}
	return hash, nil
}

// AddPath records that num is reachable at path (spec §3, blob.num_to_paths, set-union).
func (s *Store) AddPath(ctx context.Context, num types.BlobNumber, path string) error {
	if err := s.db.AddPath(ctx, num, path); err != nil {
		return fmt.Errorf("blobstore: add_path %d %s: %w", num, path, err)
	}
	return nil
}

// Allocated returns a snapshot of every blob number ever assigned -- the "dense numbering"
// invariant (spec §8) reduces to checking this set has no gaps from 1 to its cardinality.
func (s *Store) Allocated() *roaring.Bitmap {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allocated.Clone()
}

// NewBlobSet accumulates the blob numbers freshly interned while indexing one tag (spec §4.6's
// set N: "the set of blobs newly interned this run, which alone enter the definitions
// pass"). Callers create one per tag and Add each isNew blob number returned by Intern.
type NewBlobSet struct {
	mu sync.Mutex
	bm *roaring.Bitmap
}

// NewBlobSetEmpty returns an empty accumulator.
func NewBlobSetEmpty() *NewBlobSet {
	return &NewBlobSet{bm: roaring.New()}
}

// Add records num as newly interned.
func (n *NewBlobSet) Add(num types.BlobNumber) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.bm.Add(uint32(num))
}

// Numbers returns the accumulated set, ascending.
func (n *NewBlobSet) Numbers() []types.BlobNumber {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]types.BlobNumber, 0, n.bm.GetCardinality())
	it := n.bm.Iterator()
	for it.HasNext() {
		out = append(out, types.BlobNumber(it.Next()))
	}
	return out
}

// Len reports how many blobs have been accumulated.
func (n *NewBlobSet) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return int(n.bm.GetCardinality())
}
