// Package mirror orchestrates a backup run: it resolves the snapshot,
// recreates the tree as remote folders and uploads every tracked file.
package mirror

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/repobackup/internal/changelog"
	"git.home.luguber.info/inful/repobackup/internal/gitrepo"
	"git.home.luguber.info/inful/repobackup/internal/logfields"
	"git.home.luguber.info/inful/repobackup/internal/metrics"
)

// Remote is the storage surface the mirror writes to.
// *drive.Client satisfies it; tests use an in-memory fake.
type Remote interface {
	// FindFolder returns the ID of a folder under parentID, or "" when absent.
	FindFolder(ctx context.Context, name, parentID string) (string, error)
	// CreateFolder creates a folder under parentID and returns its ID.
	CreateFolder(ctx context.Context, name, parentID string) (string, error)
	// UploadFile creates a file under parentID; open is invoked per attempt.
	UploadFile(ctx context.Context, name, parentID string, open func() (io.ReadCloser, error)) (string, error)
}

// Result summarizes a completed (or skipped) backup run.
type Result struct {
	RunID          string
	Repository     string
	Label          string
	Commit         string
	Skipped        bool
	FilesUploaded  int
	FoldersCreated int
	Bytes          int64
	Duration       time.Duration
}

// Mirror copies a repository snapshot to a Remote.
type Mirror struct {
	repo          *gitrepo.Repository
	remote        Remote
	recorder      metrics.Recorder
	changelogName string

	// folder ID memo for the current run, keyed by parentID + "/" + name
	folders map[string]string
	created int
}

// New creates a mirror for one repository and remote.
func New(repo *gitrepo.Repository, remote Remote, changelogName string) *Mirror {
	if changelogName == "" {
		changelogName = "CHANGELOG.txt"
	}
	return &Mirror{
		repo:          repo,
		remote:        remote,
		recorder:      metrics.NoopRecorder{},
		changelogName: changelogName,
	}
}

// WithRecorder attaches a metrics recorder (fluent helper).
func (m *Mirror) WithRecorder(rec metrics.Recorder) *Mirror {
	if rec != nil {
		m.recorder = rec
	}
	return m
}

// Run executes a backup of the repository at revision into rootFolderID.
// Layout: rootFolderID / <repo name> / <label> / <tree...>. The run is
// skipped when the label folder already exists.
func (m *Mirror) Run(ctx context.Context, rootFolderID, revision string) (*Result, error) {
	start := time.Now()
	result := &Result{
		RunID:      uuid.NewString(),
		Repository: m.repo.Name(),
	}
	m.folders = make(map[string]string)
	m.created = 0
	m.recorder.RunStarted(result.Repository)

	commit, err := m.repo.ResolveCommit(revision)
	if err != nil {
		m.recorder.RunEnded(result.Repository, false, time.Since(start))
		return nil, err
	}
	result.Commit = commit.Hash.String()

	label, err := m.repo.LabelFor(commit)
	if err != nil {
		m.recorder.RunEnded(result.Repository, false, time.Since(start))
		return nil, err
	}
	result.Label = label

	slog.Info("Starting backup",
		logfields.RunID(result.RunID),
		logfields.Repository(result.Repository),
		logfields.Label(label),
		logfields.Commit(result.Commit[:8]))

	repoFolderID, err := m.ensureFolder(ctx, result.Repository, rootFolderID)
	if err != nil {
		m.recorder.RunEnded(result.Repository, false, time.Since(start))
		return nil, fmt.Errorf("failed to ensure repository folder: %w", err)
	}

	existing, err := m.remote.FindFolder(ctx, label, repoFolderID)
	if err != nil {
		m.recorder.RunEnded(result.Repository, false, time.Since(start))
		return nil, fmt.Errorf("failed to check for existing backup: %w", err)
	}
	if existing != "" {
		slog.Info("Backup already exists, skipping",
			logfields.Repository(result.Repository),
			logfields.Label(label),
			logfields.FolderID(existing))
		result.Skipped = true
		result.Duration = time.Since(start)
		m.recorder.RunSkipped(result.Repository)
		m.recorder.RunEnded(result.Repository, true, result.Duration)
		return result, nil
	}

	labelFolderID, err := m.remote.CreateFolder(ctx, label, repoFolderID)
	if err != nil {
		m.recorder.RunEnded(result.Repository, false, time.Since(start))
		return nil, fmt.Errorf("failed to create backup folder: %w", err)
	}
	m.created++

	// Changelog goes in first so a partially failed run is recognizable.
	text, err := changelog.Generate(m.repo, label, commit)
	if err != nil {
		m.recorder.RunEnded(result.Repository, false, time.Since(start))
		return nil, err
	}
	if _, err := m.remote.UploadFile(ctx, m.changelogName, labelFolderID, func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(text)), nil
	}); err != nil {
		m.recorder.RunEnded(result.Repository, false, time.Since(start))
		return nil, fmt.Errorf("failed to upload changelog: %w", err)
	}
	result.FilesUploaded++
	result.Bytes += int64(len(text))
	m.recorder.FileUploaded(int64(len(text)))

	files, err := m.repo.ListFiles(commit)
	if err != nil {
		m.recorder.RunEnded(result.Repository, false, time.Since(start))
		return nil, err
	}

	for _, file := range files {
		dir, name := splitPath(file.Path)
		parentID, err := m.ensurePath(ctx, labelFolderID, dir)
		if err != nil {
			m.recorder.RunEnded(result.Repository, false, time.Since(start))
			return nil, fmt.Errorf("failed to ensure folder for %s: %w", file.Path, err)
		}
		fileID, err := m.remote.UploadFile(ctx, name, parentID, file.Open)
		if err != nil {
			m.recorder.RunEnded(result.Repository, false, time.Since(start))
			return nil, fmt.Errorf("failed to upload %s: %w", file.Path, err)
		}
		slog.Debug("Uploaded file",
			logfields.Path(file.Path),
			logfields.FileID(fileID),
			logfields.Bytes(file.Size))
		result.FilesUploaded++
		result.Bytes += file.Size
		m.recorder.FileUploaded(file.Size)
	}

	result.FoldersCreated = m.created
	result.Duration = time.Since(start)
	m.recorder.RunEnded(result.Repository, true, result.Duration)

	slog.Info("Backup completed",
		logfields.RunID(result.RunID),
		logfields.Repository(result.Repository),
		logfields.Label(label),
		slog.Int("files", result.FilesUploaded),
		slog.Int("folders", result.FoldersCreated),
		logfields.Bytes(result.Bytes),
		logfields.DurationMS(float64(result.Duration.Milliseconds())))

	return result, nil
}

// ensurePath resolves a slash-separated directory path under rootID,
// creating missing folders. The empty path is rootID itself.
func (m *Mirror) ensurePath(ctx context.Context, rootID, dir string) (string, error) {
	if dir == "" {
		return rootID, nil
	}
	parentID := rootID
	for _, part := range strings.Split(dir, "/") {
		id, err := m.ensureFolder(ctx, part, parentID)
		if err != nil {
			return "", err
		}
		parentID = id
	}
	return parentID, nil
}

// ensureFolder finds or creates a single folder, memoized per run.
func (m *Mirror) ensureFolder(ctx context.Context, name, parentID string) (string, error) {
	key := parentID + "/" + name
	if id, ok := m.folders[key]; ok {
		return id, nil
	}

	id, err := m.remote.FindFolder(ctx, name, parentID)
	if err != nil {
		return "", err
	}
	if id == "" {
		id, err = m.remote.CreateFolder(ctx, name, parentID)
		if err != nil {
			return "", err
		}
		m.created++
		m.recorder.FolderCreated()
	}
	m.folders[key] = id
	return id, nil
}

// splitPath splits a slash-separated tree path into directory and base name.
func splitPath(path string) (dir, name string) {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[:i], path[i+1:]
	}
	return "", path
}
