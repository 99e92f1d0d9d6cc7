package gitrepo

import (
	"fmt"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// CommitInfo is the subset of commit data needed for changelog rendering.
type CommitInfo struct {
	Hash    string
	Message string
	When    time.Time
}

// CommitsBetween returns the commits reachable from to but not from the
// revision fromLabel, newest first. An empty fromLabel yields the full
// history of to.
func (r *Repository) CommitsBetween(fromLabel string, to *object.Commit) ([]CommitInfo, error) {
	exclude := make(map[plumbing.Hash]struct{})
	if fromLabel != "" {
		from, err := r.ResolveCommit(fromLabel)
		if err != nil {
			return nil, err
		}
		iter, err := r.repo.Log(&git.LogOptions{From: from.Hash})
		if err != nil {
			return nil, fmt.Errorf("failed to walk history of %s: %w", fromLabel, err)
		}
		err = iter.ForEach(func(c *object.Commit) error {
			exclude[c.Hash] = struct{}{}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to collect ancestors of %s: %w", fromLabel, err)
		}
	}

	iter, err := r.repo.Log(&git.LogOptions{From: to.Hash})
	if err != nil {
		return nil, fmt.Errorf("failed to walk history of %s: %w", to.Hash, err)
	}

	var commits []CommitInfo
	err = iter.ForEach(func(c *object.Commit) error {
		if _, ok := exclude[c.Hash]; ok {
			return nil
		}
		commits = append(commits, CommitInfo{Hash: c.Hash.String(), Message: c.Message, When: c.Committer.When})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate commits: %w", err)
	}
	return commits, nil
}
