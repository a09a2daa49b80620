// Package repoadapter implements the Repo Adapter (spec §4.1): read-only, concurrency-safe
// access to the tags, trees, and blob contents of the version-control store being indexed.
// It knows nothing about elixir's own database; it is pure I/O against the external repo.
package repoadapter

import (
	"context"

	"github.com/untoldecay/elixir/internal/types"
)

// Entry is one (path, hash) pair in a tag's tree, as returned before the blob identity store
// has had a chance to assign it a dense number.
type Entry struct {
	Path string
	Hash types.Hash
}

// Adapter is the contract every repo backend implements. It must be safe to call
// concurrently from many workers: the Update Coordinator's worker pool dials it from every
// goroutine in the definition and reference passes.
type Adapter interface {
	// ListTags returns every tag, newest-first by the project's policy.
	ListTags(ctx context.Context) ([]string, error)

	// TagTree returns every regular file in tag's tree, in a stable order, skipping
	// non-indexable paths (.git, symlinks, submodule gitlinks) so upper layers never see
	// them.
	TagTree(ctx context.Context, tag string) ([]Entry, error)

	// BlobBytes returns the raw content addressed by hash. Returns
	// types.ErrBlobMissing if the store no longer has it.
	BlobBytes(ctx context.Context, hash types.Hash) ([]byte, error)

	// Latest returns the tag considered "current" for this project.
	Latest(ctx context.Context) (string, error)
}
