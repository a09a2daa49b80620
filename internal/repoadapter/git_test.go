package repoadapter

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// initTestRepo creates a tiny git repository with two tags, skipping the test if git is not
// on PATH (the adapter itself always requires it, per §4.1: "implementations may link a
// native VCS library or shell out").
func initTestRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available on PATH")
	}
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
		)
		var out bytes.Buffer
		cmd.Stdout = &out
		cmd.Stderr = &out
		if err := cmd.Run(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out.String())
		}
	}

	run("init", "-q", "-b", "main")
	if err := os.WriteFile(filepath.Join(dir, "a.c"), []byte("int x;\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	run("add", "a.c")
	run("commit", "-q", "-m", "initial")
	run("tag", "v1")

	if err := os.WriteFile(filepath.Join(dir, "b.c"), []byte("extern int x;\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	run("add", "b.c")
	run("commit", "-q", "-m", "second")
	run("tag", "v2")

	return dir
}

func TestGitAdapterListTagsAndTree(t *testing.T) {
	dir := initTestRepo(t)
	adapter := NewGitAdapter(dir)
	ctx := context.Background()

	tags, err := adapter.ListTags(ctx)
	if err != nil {
		t.Fatalf("ListTags: %v", err)
	}
	if len(tags) != 2 {
		t.Fatalf("ListTags() = %v, want 2 tags", tags)
	}

	v1Tree, err := adapter.TagTree(ctx, "v1")
	if err != nil {
		t.Fatalf("TagTree(v1): %v", err)
	}
	if len(v1Tree) != 1 || v1Tree[0].Path != "a.c" {
		t.Fatalf("TagTree(v1) = %+v, want just a.c", v1Tree)
	}

	v2Tree, err := adapter.TagTree(ctx, "v2")
	if err != nil {
		t.Fatalf("TagTree(v2): %v", err)
	}
	if len(v2Tree) != 2 {
		t.Fatalf("TagTree(v2) = %+v, want a.c and b.c", v2Tree)
	}
}

func TestGitAdapterBlobBytes(t *testing.T) {
	dir := initTestRepo(t)
	adapter := NewGitAdapter(dir)
	ctx := context.Background()

	entries, err := adapter.TagTree(ctx, "v1")
	if err != nil {
		t.Fatalf("TagTree: %v", err)
	}
	content, err := adapter.BlobBytes(ctx, entries[0].Hash)
	if err != nil {
		t.Fatalf("BlobBytes: %v", err)
	}
	if string(content) != "int x;\n" {
		t.Fatalf("BlobBytes() = %q, want %q", content, "int x;\n")
	}
}

func TestGitAdapterLatest(t *testing.T) {
	dir := initTestRepo(t)
	adapter := NewGitAdapter(dir)
	ctx := context.Background()

	latest, err := adapter.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest != "v2" {
		t.Fatalf("Latest() = %q, want v2 (most recently created tag)", latest)
	}
}

func TestGitAdapterBlobBytesMissingHash(t *testing.T) {
	dir := initTestRepo(t)
	adapter := NewGitAdapter(dir)
	ctx := context.Background()

	var bogus [20]byte
	_, err := adapter.BlobBytes(ctx, bogus)
	if err == nil {
		t.Fatal("BlobBytes(bogus hash) = nil error, want failure")
	}
}
