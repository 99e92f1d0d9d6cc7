// Package changelog renders the plain-text commit summary uploaded with
// every backup.
package changelog

import (
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/object"

	"git.home.luguber.info/inful/repobackup/internal/gitrepo"
)

// Build renders the changelog document for a snapshot.
// commits are expected newest first (history order) and are listed oldest
// first in the output. Messages are trimmed of surrounding whitespace.
func Build(label, snapshotMessage string, commits []gitrepo.CommitInfo) string {
	lines := []string{
		fmt.Sprintf("Tag/Commit: %s", label),
		fmt.Sprintf("Commit message: %s", strings.TrimSpace(snapshotMessage)),
		"",
		"Commits included:",
	}

	for i := len(commits) - 1; i >= 0; i-- {
		c := commits[i]
		short := c.Hash
		if len(short) > 7 {
			short = short[:7]
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", short, strings.TrimSpace(c.Message)))
	}

	return strings.Join(lines, "\n")
}

// Generate assembles the changelog for a resolved snapshot: commits since the
// previous tag, or the whole history when the label has no predecessor.
func Generate(repo *gitrepo.Repository, label string, commit *object.Commit) (string, error) {
	prev, err := repo.PreviousTag(label)
	if err != nil {
		return "", fmt.Errorf("failed to determine previous tag: %w", err)
	}

	commits, err := repo.CommitsBetween(prev, commit)
	if err != nil {
		return "", fmt.Errorf("failed to collect commits for changelog: %w", err)
	}

	return Build(label, commit.Message, commits), nil
}
