package gitrepo

import (
	"fmt"
	"io"
	"sort"

	"github.com/go-git/go-git/v5/plumbing/object"
)

// TreeFile is a tracked file in a commit's tree.
type TreeFile struct {
	Path string // slash-separated path relative to the repository root
	Size int64
	file *object.File
}

// Open returns a reader over the file's content at the snapshot commit.
func (f TreeFile) Open() (io.ReadCloser, error) {
	rc, err := f.file.Reader()
	if err != nil {
		return nil, fmt.Errorf("failed to open blob for %s: %w", f.Path, err)
	}
	return rc, nil
}

// ListFiles walks the commit's tree and returns every tracked file,
// sorted lexically by path. Only the committed content is visited, so
// ignored and untracked working-tree files never appear.
func (r *Repository) ListFiles(commit *object.Commit) ([]TreeFile, error) {
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to get tree for commit %s: %w", commit.Hash, err)
	}

	var files []TreeFile
	err = tree.Files().ForEach(func(file *object.File) error {
		files = append(files, TreeFile{Path: file.Name, Size: file.Size, file: file})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk tree: %w", err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}
