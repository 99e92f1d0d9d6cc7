package gitrepo

import (
	"fmt"
	"sort"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Tag describes a tag and the commit it ultimately points to.
// Annotated tags are resolved to their target commit.
type Tag struct {
	Name string
	Hash plumbing.Hash // target commit hash
	When time.Time     // target commit time
}

// Tags returns all tags pointing at commits, ordered by target commit time
// (ties broken by name). Tags pointing at non-commit objects are skipped.
func (r *Repository) Tags() ([]Tag, error) {
	iter, err := r.repo.Tags()
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}

	var tags []Tag
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		hash := ref.Hash()
		if tagObj, terr := r.repo.TagObject(hash); terr == nil {
			hash = tagObj.Target
		}
		commit, cerr := r.repo.CommitObject(hash)
		if cerr != nil {
			return nil // not a commit tag
		}
		tags = append(tags, Tag{Name: ref.Name().Short(), Hash: commit.Hash, When: commit.Committer.When})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate tags: %w", err)
	}

	sort.Slice(tags, func(i, j int) bool {
		if tags[i].When.Equal(tags[j].When) {
			return tags[i].Name < tags[j].Name
		}
		return tags[i].When.Before(tags[j].When)
	})
	return tags, nil
}

// LabelFor returns the backup label for a commit: the first tag pointing at it,
// or the full commit SHA when no tag matches.
func (r *Repository) LabelFor(commit *object.Commit) (string, error) {
	tags, err := r.Tags()
	if err != nil {
		return "", err
	}
	for _, t := range tags {
		if t.Hash == commit.Hash {
			return t.Name, nil
		}
	}
	return commit.Hash.String(), nil
}

// PreviousTag returns the tag preceding label in commit-time order.
// Empty when label is not a tag name or is the oldest tag.
func (r *Repository) PreviousTag(label string) (string, error) {
	tags, err := r.Tags()
	if err != nil {
		return "", err
	}
	for i, t := range tags {
		if t.Name == label {
			if i > 0 {
				return tags[i-1].Name, nil
			}
			return "", nil
		}
	}
	return "", nil
}
