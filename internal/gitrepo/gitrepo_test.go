package gitrepo

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// testRepo builds a real repository in a temp dir and returns it with its go-git handle.
func testRepo(t *testing.T) (*Repository, *git.Repository, string) {
	t.Helper()
	dir := t.TempDir()
	raw, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("init repo: %v", err)
	}
	repo, err := Open(dir)
	if err != nil {
		t.Fatalf("open repo: %v", err)
	}
	return repo, raw, dir
}

func commitFile(t *testing.T, raw *git.Repository, dir, name, content, msg string, offset time.Duration) plumbing.Hash {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("mkdir %s: %v", name, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	wt, err := raw.Worktree()
	if err != nil {
		t.Fatalf("worktree: %v", err)
	}
	if _, err := wt.Add(name); err != nil {
		t.Fatalf("add %s: %v", name, err)
	}
	sig := &object.Signature{Name: "Tester", Email: "tester@example.com", When: baseTime.Add(offset)}
	hash, err := wt.Commit(msg, &git.CommitOptions{Author: sig, Committer: sig})
	if err != nil {
		t.Fatalf("commit %q: %v", msg, err)
	}
	return hash
}

func TestResolveCommitHead(t *testing.T) {
	repo, raw, dir := testRepo(t)
	hash := commitFile(t, raw, dir, "README.md", "hello", "initial commit", 0)

	commit, err := repo.ResolveCommit("HEAD")
	if err != nil {
		t.Fatalf("resolve HEAD: %v", err)
	}
	if commit.Hash != hash {
		t.Fatalf("expected %s, got %s", hash, commit.Hash)
	}
}

func TestResolveCommitInvalid(t *testing.T) {
	repo, raw, dir := testRepo(t)
	commitFile(t, raw, dir, "README.md", "hello", "initial commit", 0)

	if _, err := repo.ResolveCommit("does-not-exist"); err == nil {
		t.Fatal("expected error for bogus revision")
	}
}

func TestListFilesAtCommit(t *testing.T) {
	repo, raw, dir := testRepo(t)
	first := commitFile(t, raw, dir, "docs/guide.md", "guide", "add guide", 0)
	commitFile(t, raw, dir, "src/main.go", "package main", "add main", time.Minute)

	commit, err := repo.ResolveCommit(first.String())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	files, err := repo.ListFiles(commit)
	if err != nil {
		t.Fatalf("list files: %v", err)
	}
	if len(files) != 1 || files[0].Path != "docs/guide.md" {
		t.Fatalf("expected only docs/guide.md at first commit, got %+v", files)
	}

	head, err := repo.ResolveCommit("HEAD")
	if err != nil {
		t.Fatalf("resolve HEAD: %v", err)
	}
	files, err = repo.ListFiles(head)
	if err != nil {
		t.Fatalf("list files: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 files at HEAD, got %d", len(files))
	}
	// lexical order
	if files[0].Path != "docs/guide.md" || files[1].Path != "src/main.go" {
		t.Fatalf("unexpected order: %s, %s", files[0].Path, files[1].Path)
	}
}

func TestTreeFileOpen(t *testing.T) {
	repo, raw, dir := testRepo(t)
	commitFile(t, raw, dir, "data.txt", "snapshot content", "add data", 0)

	head, err := repo.ResolveCommit("HEAD")
	if err != nil {
		t.Fatalf("resolve HEAD: %v", err)
	}
	files, err := repo.ListFiles(head)
	if err != nil {
		t.Fatalf("list files: %v", err)
	}
	rc, err := files[0].Open()
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()
	buf := make([]byte, files[0].Size)
	if _, err := rc.Read(buf); err != nil && err.Error() != "EOF" {
		t.Fatalf("read: %v", err)
	}
	if string(buf) != "snapshot content" {
		t.Fatalf("unexpected content: %q", buf)
	}
}

func TestLabelForTaggedAndUntagged(t *testing.T) {
	repo, raw, dir := testRepo(t)
	first := commitFile(t, raw, dir, "a.txt", "a", "first", 0)
	second := commitFile(t, raw, dir, "b.txt", "b", "second", time.Minute)

	if _, err := raw.CreateTag("v1.0.0", first, nil); err != nil {
		t.Fatalf("create tag: %v", err)
	}

	firstCommit, err := repo.ResolveCommit(first.String())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	label, err := repo.LabelFor(firstCommit)
	if err != nil {
		t.Fatalf("label: %v", err)
	}
	if label != "v1.0.0" {
		t.Fatalf("expected v1.0.0, got %s", label)
	}

	secondCommit, err := repo.ResolveCommit(second.String())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	label, err = repo.LabelFor(secondCommit)
	if err != nil {
		t.Fatalf("label: %v", err)
	}
	if label != second.String() {
		t.Fatalf("expected full SHA for untagged commit, got %s", label)
	}
}

func TestLabelForAnnotatedTag(t *testing.T) {
	repo, raw, dir := testRepo(t)
	hash := commitFile(t, raw, dir, "a.txt", "a", "first", 0)

	sig := &object.Signature{Name: "Tester", Email: "tester@example.com", When: baseTime}
	if _, err := raw.CreateTag("v2.0.0", hash, &git.CreateTagOptions{Tagger: sig, Message: "release v2"}); err != nil {
		t.Fatalf("create annotated tag: %v", err)
	}

	commit, err := repo.ResolveCommit(hash.String())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	label, err := repo.LabelFor(commit)
	if err != nil {
		t.Fatalf("label: %v", err)
	}
	if label != "v2.0.0" {
		t.Fatalf("expected v2.0.0, got %s", label)
	}
}

func TestPreviousTagOrdering(t *testing.T) {
	repo, raw, dir := testRepo(t)
	c1 := commitFile(t, raw, dir, "a.txt", "a", "first", 0)
	c2 := commitFile(t, raw, dir, "b.txt", "b", "second", time.Minute)
	c3 := commitFile(t, raw, dir, "c.txt", "c", "third", 2*time.Minute)

	for tag, hash := range map[string]plumbing.Hash{"v0.1.0": c1, "v0.2.0": c2, "v0.3.0": c3} {
		if _, err := raw.CreateTag(tag, hash, nil); err != nil {
			t.Fatalf("tag %s: %v", tag, err)
		}
	}

	prev, err := repo.PreviousTag("v0.3.0")
	if err != nil {
		t.Fatalf("previous tag: %v", err)
	}
	if prev != "v0.2.0" {
		t.Fatalf("expected v0.2.0, got %q", prev)
	}

	prev, err = repo.PreviousTag("v0.1.0")
	if err != nil {
		t.Fatalf("previous tag: %v", err)
	}
	if prev != "" {
		t.Fatalf("expected no previous tag for oldest, got %q", prev)
	}

	// Unknown labels (plain SHAs) have no previous tag.
	prev, err = repo.PreviousTag(c3.String())
	if err != nil {
		t.Fatalf("previous tag: %v", err)
	}
	if prev != "" {
		t.Fatalf("expected empty for non-tag label, got %q", prev)
	}
}

func TestCommitsBetween(t *testing.T) {
	repo, raw, dir := testRepo(t)
	c1 := commitFile(t, raw, dir, "a.txt", "a", "first", 0)
	commitFile(t, raw, dir, "b.txt", "b", "second", time.Minute)
	c3 := commitFile(t, raw, dir, "c.txt", "c", "third", 2*time.Minute)

	if _, err := raw.CreateTag("v1", c1, nil); err != nil {
		t.Fatalf("tag: %v", err)
	}

	head, err := repo.ResolveCommit(c3.String())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	commits, err := repo.CommitsBetween("v1", head)
	if err != nil {
		t.Fatalf("commits between: %v", err)
	}
	if len(commits) != 2 {
		t.Fatalf("expected 2 commits after v1, got %d", len(commits))
	}
	// newest first
	if commits[0].Message != "third\n" && commits[0].Message != "third" {
		t.Fatalf("expected newest first, got %q", commits[0].Message)
	}

	all, err := repo.CommitsBetween("", head)
	if err != nil {
		t.Fatalf("commits between: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected full history of 3 commits, got %d", len(all))
	}
}
