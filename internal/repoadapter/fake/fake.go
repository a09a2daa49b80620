// Package fake provides an in-memory repoadapter.Adapter backed by plain maps, the same
// "swap the real backend for a map" trick the teacher uses for its in-memory storage
// backend. Tests build a repository without needing a real git binary on PATH.
package fake

import (
	"context"
	"crypto/sha1"
	"sort"
	"sync"

	"github.com/untoldecay/elixir/internal/repoadapter"
	"github.com/untoldecay/elixir/internal/types"
)

// Adapter is a hand-populated fake repository: an ordered list of tags, each with its own
// (path -> content) tree, plus a shared blob-content-by-hash index.
type Adapter struct {
	mu      sync.RWMutex
	tags    []string
	trees   map[string]map[string][]byte // tag -> path -> content
	blobs   map[types.Hash][]byte
	missing map[types.Hash]bool
}

// New returns an empty fake repository.
func New() *Adapter {
	return &Adapter{
		trees:   make(map[string]map[string][]byte),
		blobs:   make(map[types.Hash][]byte),
		missing: make(map[types.Hash]bool),
	}
}

// HashOf returns the content-addressed hash elixir would assign to content. Real git uses
// the "blob <len>\0<content>" SHA-1; the fake mirrors that exactly so hand-written fixtures
// exercise the same dedup-by-content behaviour as the git-backed adapter.
func HashOf(content []byte) types.Hash {
	h := sha1.New()
	h.Write([]byte("blob "))
	h.Write([]byte(itoa(len(content))))
	h.Write([]byte{0})
	h.Write(content)
	var out types.Hash
	copy(out[:], h.Sum(nil))
	return out
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := make([]byte, 0, 20)
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

// AddTag appends a new tag (or overwrites an existing one) with the given path->content
// tree, newest-last; ListTags reverses this to return newest-first.
func (a *Adapter) AddTag(tag string, files map[string][]byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.trees[tag]; !exists {
		a.tags = append(a.tags, tag)
	}
	tree := make(map[string][]byte, len(files))
	for path, content := range files {
		tree[path] = content
		hash := HashOf(content)
		a.blobs[hash] = content
	}
	a.trees[tag] = tree
}

// MarkMissing makes hash subsequently fail BlobBytes with types.ErrBlobMissing, simulating
// a blob the store can no longer retrieve despite a tag tree still naming it.
func (a *Adapter) MarkMissing(hash types.Hash) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.missing[hash] = true
}

var _ repoadapter.Adapter = (*Adapter)(nil)

func (a *Adapter) ListTags(ctx context.Context) ([]string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, len(a.tags))
	for i, t := range a.tags {
		out[len(a.tags)-1-i] = t
	}
	return out, nil
}

func (a *Adapter) TagTree(ctx context.Context, tag string) ([]repoadapter.Entry, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	tree, ok := a.trees[tag]
	if !ok {
		return nil, nil
	}
	entries := make([]repoadapter.Entry, 0, len(tree))
	for path, content := range tree {
		entries = append(entries, repoadapter.Entry{Path: path, Hash: HashOf(content)})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

func (a *Adapter) BlobBytes(ctx context.Context, hash types.Hash) ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.missing[hash] {
		return nil, types.ErrBlobMissing
	}
	content, ok := a.blobs[hash]
	if !ok {
		return nil, types.ErrBlobMissing
	}
	return content, nil
}

func (a *Adapter) Latest(ctx context.Context) (string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if len(a.tags) == 0 {
		return "", types.ErrRepoUnavailable
	}
	return a.tags[len(a.tags)-1], nil
}
