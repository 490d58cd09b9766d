package gitio

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

type testRepo struct {
	t    *testing.T
	dir  string
	repo *git.Repository
	wt   *git.Worktree
	now  time.Time
}

func newTestRepo(t *testing.T) *testRepo {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit failed: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Worktree failed: %v", err)
	}
	return &testRepo{t: t, dir: dir, repo: repo, wt: wt, now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (r *testRepo) write(path, content string) {
	r.t.Helper()
	full := filepath.Join(r.dir, path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		r.t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		r.t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := r.wt.Add(path); err != nil {
		r.t.Fatalf("Add failed: %v", err)
	}
}

func (r *testRepo) remove(path string) {
	r.t.Helper()
	if _, err := r.wt.Remove(path); err != nil {
		r.t.Fatalf("Remove failed: %v", err)
	}
}

func (r *testRepo) commit(msg string) plumbing.Hash {
	r.t.Helper()
	r.now = r.now.Add(time.Hour)
	hash, err := r.wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{Name: "Ada", Email: "ada@example.com", When: r.now},
	})
	if err != nil {
		r.t.Fatalf("Commit failed: %v", err)
	}
	return hash
}

func TestFirstParentHistory(t *testing.T) {
	tr := newTestRepo(t)
	tr.write("Main.java", "class Main {}")
	first := tr.commit("first")
	tr.write("Main.java", "class Main { int x; }")
	second := tr.commit("second")

	repo, err := Open(tr.dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	commits, err := repo.FirstParentHistory("HEAD")
	if err != nil {
		t.Fatalf("FirstParentHistory failed: %v", err)
	}
	if len(commits) != 2 {
		t.Fatalf("expected 2 commits, got %d", len(commits))
	}
	if commits[0].Hash != first || commits[1].Hash != second {
		t.Errorf("expected oldest first, got %s, %s", commits[0].Hash, commits[1].Hash)
	}
	if got := Author(commits[0]); got != "Ada <ada@example.com>" {
		t.Errorf("unexpected author %q", got)
	}
}

func TestChangedFiles(t *testing.T) {
	tr := newTestRepo(t)
	tr.write("a/Main.java", "class Main {}")
	tr.write("Util.java", "class Util {}")
	tr.commit("root")
	tr.write("a/Main.java", "class Main { int x; }")
	tr.remove("Util.java")
	tr.write("New.java", "class New {}")
	tr.commit("change")

	repo, err := Open(tr.dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	commits, err := repo.FirstParentHistory("HEAD")
	if err != nil {
		t.Fatalf("FirstParentHistory failed: %v", err)
	}

	root, err := repo.ChangedFiles(commits[0])
	if err != nil {
		t.Fatalf("ChangedFiles failed: %v", err)
	}
	if len(root) != 2 || root[0].Path != "Util.java" || root[1].Path != "a/Main.java" {
		t.Fatalf("unexpected root changes %+v", root)
	}
	for _, c := range root {
		if !c.Added() {
			t.Errorf("root change %s should be an addition", c.Path)
		}
	}

	changes, err := repo.ChangedFiles(commits[1])
	if err != nil {
		t.Fatalf("ChangedFiles failed: %v", err)
	}
	byPath := make(map[string]Change)
	for _, c := range changes {
		byPath[c.Path] = c
	}
	if len(byPath) != 3 {
		t.Fatalf("expected 3 changes, got %+v", changes)
	}
	if c := byPath["New.java"]; !c.Added() || string(c.After) != "class New {}" {
		t.Errorf("unexpected addition %+v", c)
	}
	if c := byPath["Util.java"]; !c.Deleted() || string(c.Before) != "class Util {}" {
		t.Errorf("unexpected deletion %+v", c)
	}
	if c := byPath["a/Main.java"]; c.Added() || c.Deleted() || string(c.After) != "class Main { int x; }" {
		t.Errorf("unexpected modification %+v", c)
	}
}

func TestResolveRef_Unknown(t *testing.T) {
	tr := newTestRepo(t)
	tr.write("Main.java", "class Main {}")
	tr.commit("first")

	repo, err := Open(tr.dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := repo.ResolveRef("no-such-branch"); err == nil {
		t.Error("expected error for unknown ref")
	}
}

func TestOpen_NotARepository(t *testing.T) {
	if _, err := Open(t.TempDir()); err == nil {
		t.Error("expected error opening a plain directory")
	}
}
