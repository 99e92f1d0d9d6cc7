package gitrepo

import (
	"fmt"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Repository wraps a local Git repository for backup operations.
type Repository struct {
	repo *git.Repository
	path string
}

// Open opens the Git repository at path.
func Open(path string) (*Repository, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve repository path: %w", err)
	}

	repo, err := git.PlainOpen(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository %s: %w", abs, err)
	}

	return &Repository{repo: repo, path: abs}, nil
}

// Path returns the absolute path of the repository.
func (r *Repository) Path() string { return r.path }

// Name returns the repository name derived from its directory.
func (r *Repository) Name() string { return filepath.Base(r.path) }

// ResolveCommit resolves a revision string (commit hash, tag, HEAD, ...) to a commit.
func (r *Repository) ResolveCommit(revision string) (*object.Commit, error) {
	hash, err := r.repo.ResolveRevision(plumbing.Revision(revision))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve revision %q: %w", revision, err)
	}

	commit, err := r.repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("failed to get commit object for %s: %w", hash, err)
	}
	return commit, nil
}
