package repoadapter

import (
	"bufio"
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"os/exec"
	"strings"

	"github.com/untoldecay/elixir/internal/types"
)

// GitAdapter shells out to the git binary, the same way the teacher's internal/git package
// drives worktree operations: build an *exec.Command, set cmd.Dir to the repo root, and
// wrap any failure with the combined output for diagnosability.
type GitAdapter struct {
	repoPath string
}

// NewGitAdapter returns an Adapter backed by the git repository at repoPath.
func NewGitAdapter(repoPath string) *GitAdapter {
	return &GitAdapter{repoPath: repoPath}
}

var _ Adapter = (*GitAdapter)(nil)

func (g *GitAdapter) run(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.repoPath
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("%w: git %s: %s", types.ErrRepoUnavailable, strings.Join(args, " "), string(exitErr.Stderr))
		}
		return nil, fmt.Errorf("%w: git %s: %w", types.ErrRepoUnavailable, strings.Join(args, " "), err)
	}
	return out, nil
}

// ListTags returns tags newest-first by creation date, matching the "ordered newest-first
// by the project's policy" contract of §4.1. Most projects will further filter/rename tags
// via their own project descriptor before feeding the result to the Update Coordinator;
// that filtering is out of scope for the core (§1).
func (g *GitAdapter) ListTags(ctx context.Context) ([]string, error) {
	out, err := g.run(ctx, "for-each-ref", "--sort=-creatordate", "--format=%(refname:short)", "refs/tags")
	if err != nil {
		return nil, err
	}
	var tags []string
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			tags = append(tags, line)
		}
	}
	return tags, scanner.Err()
}

// TagTree lists every regular file in tag's tree via `git ls-tree -r --full-tree`, skipping
// anything that is not a plain blob (submodule gitlinks, trees, symlinks) so upper layers only
// ever see indexable files.
func (g *GitAdapter) TagTree(ctx context.Context, tag string) ([]Entry, error) {
	out, err := g.run(ctx, "ls-tree", "-r", "-z", "--full-tree", tag)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	for _, record := range bytes.Split(out, []byte{0}) {
		if len(record) == 0 {
			continue
		}
		// "<mode> <type> <hash>\t<path>"
		tabIdx := bytes.IndexByte(record, '\t')
		if tabIdx < 0 {
			continue
		}
		meta := strings.Fields(string(record[:tabIdx]))
		if len(meta) != 3 || meta[1] != "blob" || meta[0] == "120000" {
			continue
		}
		path := string(record[tabIdx+1:])
		if isIgnoredPath(path) {
			continue
		}
		hash, err := decodeHash(meta[2])
		if err != nil {
			return nil, fmt.Errorf("elixir: ls-tree %s: %w", tag, err)
		}
		entries = append(entries, Entry{Path: path, Hash: hash})
	}
	return entries, nil
}

// BlobBytes fetches one blob's content with `git cat-file -p`. Callers that need many blobs
// from the same tag should prefer a batched cat-file session; the Update Coordinator's
// worker pool calls BlobBytes once per new blob, which is the common case after the first
// tag has been indexed.
func (g *GitAdapter) BlobBytes(ctx context.Context, hash types.Hash) ([]byte, error) {
	out, err := g.run(ctx, "cat-file", "-p", hash.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", types.ErrBlobMissing, hash, err)
	}
	return out, nil
}

// Latest returns the nearest tag reachable from HEAD (`git describe --tags --abbrev=0`),
// falling back to the first entry of ListTags.
func (g *GitAdapter) Latest(ctx context.Context) (string, error) {
	out, err := g.run(ctx, "describe", "--tags", "--abbrev=0")
	if err == nil {
		if tag := strings.TrimSpace(string(out)); tag != "" {
			return tag, nil
		}
	}
	tags, err := g.ListTags(ctx)
	if err != nil {
		return "", err
	}
	if len(tags) == 0 {
		return "", fmt.Errorf("%w: no tags in %s", types.ErrRepoUnavailable, g.repoPath)
	}
	return tags[0], nil
}

func isIgnoredPath(path string) bool {
	if path == ".git" || strings.HasPrefix(path, ".git/") {
		return true
	}
	return false
}

func decodeHash(hexStr string) (types.Hash, error) {
	var h types.Hash
	raw, err := hex.DecodeString(hexStr)
	if err != nil {
		return h, err
	}
	if len(raw) != len(h) {
		// git may report a SHA-256 object id (32 bytes) in sha256-mode repositories;
		// elixir's blob identity is defined over the first 20 bytes, matching the
		// SHA-1 on-disk identity every other git tool still keys off of.
		if len(raw) < len(h) {
			return h, fmt.Errorf("hash %q too short: %d bytes", hexStr, len(raw))
		}
		raw = raw[:len(h)]
	}
	copy(h[:], raw)
	return h, nil
}
