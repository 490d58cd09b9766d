// Package gitio reads commit history and file changes from Git repositories
// using go-git.
package gitio

import (
	"fmt"
	"sort"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"
)

// Change is one file changed by a commit. Before is nil for an added file and
// After is nil for a deleted one.
type Change struct {
	Path   string
	Before []byte
	After  []byte
}

// Added reports whether the file did not exist before the commit.
func (c Change) Added() bool { return c.Before == nil }

// Deleted reports whether the file no longer exists after the commit.
func (c Change) Deleted() bool { return c.After == nil }

// Repository wraps a go-git repository.
type Repository struct {
	repo *git.Repository
	path string
}

// Open opens an existing Git repository.
func Open(repoPath string) (*Repository, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return nil, fmt.Errorf("opening repository: %w", err)
	}
	return &Repository{repo: repo, path: repoPath}, nil
}

// Path returns the path the repository was opened from.
func (r *Repository) Path() string { return r.path }

// ResolveRef resolves a revision (HEAD, branch name, tag or commit hash) to
// a commit.
func (r *Repository) ResolveRef(refName string) (*object.Commit, error) {
	hash, err := r.repo.ResolveRevision(plumbing.Revision(refName))
	if err != nil {
		return nil, fmt.Errorf("resolving ref %q: %w", refName, err)
	}
	commit, err := r.repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("getting commit: %w", err)
	}
	return commit, nil
}

// FirstParentHistory returns the commits reachable from refName through
// first parents only, oldest first.
func (r *Repository) FirstParentHistory(refName string) ([]*object.Commit, error) {
	commit, err := r.ResolveRef(refName)
	if err != nil {
		return nil, err
	}

	var commits []*object.Commit
	for {
		commits = append(commits, commit)
		if commit.NumParents() == 0 {
			break
		}
		commit, err = commit.Parent(0)
		if err != nil {
			return nil, fmt.Errorf("getting parent of %s: %w", commits[len(commits)-1].Hash, err)
		}
	}

	for i, j := 0, len(commits)-1; i < j; i, j = i+1, j-1 {
		commits[i], commits[j] = commits[j], commits[i]
	}
	return commits, nil
}

// ChangedFiles returns the files commit changes relative to its first
// parent, sorted by path. A root commit adds every file in its tree.
func (r *Repository) ChangedFiles(commit *object.Commit) ([]Change, error) {
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("getting tree: %w", err)
	}

	if commit.NumParents() == 0 {
		return treeFiles(tree)
	}

	parent, err := commit.Parent(0)
	if err != nil {
		return nil, fmt.Errorf("getting parent: %w", err)
	}
	parentTree, err := parent.Tree()
	if err != nil {
		return nil, fmt.Errorf("getting parent tree: %w", err)
	}

	changes, err := object.DiffTree(parentTree, tree)
	if err != nil {
		return nil, fmt.Errorf("computing diff: %w", err)
	}

	var out []Change
	for _, change := range changes {
		action, err := change.Action()
		if err != nil {
			return nil, fmt.Errorf("classifying change: %w", err)
		}
		from, to, err := change.Files()
		if err != nil {
			return nil, fmt.Errorf("reading change: %w", err)
		}

		switch action {
		case merkletrie.Insert:
			after, err := contents(to)
			if err != nil {
				return nil, err
			}
			out = append(out, Change{Path: change.To.Name, After: after})
		case merkletrie.Delete:
			before, err := contents(from)
			if err != nil {
				return nil, err
			}
			out = append(out, Change{Path: change.From.Name, Before: before})
		case merkletrie.Modify:
			before, err := contents(from)
			if err != nil {
				return nil, err
			}
			after, err := contents(to)
			if err != nil {
				return nil, err
			}
			out = append(out, Change{Path: change.To.Name, Before: before, After: after})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func treeFiles(tree *object.Tree) ([]Change, error) {
	var out []Change
	err := tree.Files().ForEach(func(f *object.File) error {
		content, err := contents(f)
		if err != nil {
			return err
		}
		out = append(out, Change{Path: f.Name, After: content})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// contents returns the bytes of f, never nil for an existing file.
func contents(f *object.File) ([]byte, error) {
	if f == nil {
		return nil, nil
	}
	s, err := f.Contents()
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", f.Name, err)
	}
	return append([]byte{}, s...), nil
}

// Author formats the author of commit as "Name <email>".
func Author(commit *object.Commit) string {
	return fmt.Sprintf("%s <%s>", commit.Author.Name, commit.Author.Email)
}
