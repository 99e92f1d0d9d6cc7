// Package drive wraps the Google Drive v3 API with the small surface the
// backup needs: find/create folders, upload files, list backup labels.
package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
	drv "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"git.home.luguber.info/inful/repobackup/internal/retry"
)

const folderMIMEType = "application/vnd.google-apps.folder"

// ContentFunc opens the content for an upload attempt. It is called once per
// attempt so retries never resume a half-consumed reader.
type ContentFunc = func() (io.ReadCloser, error)

// Options configures a Client.
type Options struct {
	SharedDrives bool // include items from shared drives in queries
	Retry        retry.Policy
}

// Client handles Drive operations.
type Client struct {
	svc          *drv.Service
	sharedDrives bool
	policy       retry.Policy
}

// NewClient creates a Drive client on top of an authorized HTTP client.
func NewClient(ctx context.Context, httpClient *http.Client, opts Options) (*Client, error) {
	svc, err := drv.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}
	if opts.Retry.Validate() != nil {
		opts.Retry = retry.DefaultPolicy()
	}
	return &Client{svc: svc, sharedDrives: opts.SharedDrives, policy: opts.Retry}, nil
}

// withRetry wraps a Drive call with backoff on transient failures.
// Permanent errors (auth, not-found, quota, local I/O) abort immediately.
func (c *Client) withRetry(ctx context.Context, op string, fn func() (string, error)) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= c.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			slog.Warn("retrying drive operation", slog.String("operation", op), slog.Int("attempt", attempt))
		}
		id, err := fn()
		if err == nil {
			return id, nil
		}
		lastErr = err
		if isPermanent(err) {
			slog.Error("permanent drive error", slog.String("operation", op), slog.String("error", err.Error()))
			return "", err
		}
		if attempt == c.policy.MaxRetries {
			break
		}
		delay := c.policy.Delay(attempt + 1)
		if errors.As(err, new(*RateLimitError)) {
			delay *= 3
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", fmt.Errorf("drive %s failed after retries: %w", op, lastErr)
}

// FindFolder looks up a non-trashed folder by name under a parent.
// Returns the folder ID, or empty when no folder matches.
func (c *Client) FindFolder(ctx context.Context, name, parentID string) (string, error) {
	name = normalizeName(name)
	return c.withRetry(ctx, "find folder", func() (string, error) {
		q := fmt.Sprintf("mimeType = '%s' and name = '%s' and '%s' in parents and trashed = false",
			folderMIMEType, escapeQuery(name), parentID)
		call := c.svc.Files.List().
			Q(q).
			Spaces("drive").
			Fields("files(id, name)").
			PageSize(1).
			SupportsAllDrives(true).
			IncludeItemsFromAllDrives(c.sharedDrives).
			Context(ctx)
		res, err := call.Do()
		if err != nil {
			return "", classifyAPIError("find folder "+name, err)
		}
		if len(res.Files) == 0 {
			return "", nil
		}
		return res.Files[0].Id, nil
	})
}

// CreateFolder creates a folder under a parent and returns its ID.
func (c *Client) CreateFolder(ctx context.Context, name, parentID string) (string, error) {
	name = normalizeName(name)
	return c.withRetry(ctx, "create folder", func() (string, error) {
		folder := &drv.File{
			Name:     name,
			MimeType: folderMIMEType,
			Parents:  []string{parentID},
		}
		created, err := c.svc.Files.Create(folder).
			Fields("id, name").
			SupportsAllDrives(true).
			Context(ctx).
			Do()
		if err != nil {
			return "", classifyAPIError("create folder "+name, err)
		}
		slog.Debug("Created folder", slog.String("name", name), slog.String("id", created.Id))
		return created.Id, nil
	})
}

// UploadFile uploads content as a new file under a parent and returns the
// file ID. The content is reopened for every attempt.
func (c *Client) UploadFile(ctx context.Context, name, parentID string, open ContentFunc) (string, error) {
	name = normalizeName(name)
	return c.withRetry(ctx, "upload "+name, func() (string, error) {
		rc, err := open()
		if err != nil {
			return "", fmt.Errorf("failed to open content for %s: %w", name, err)
		}
		defer rc.Close()

		file := &drv.File{Name: name, Parents: []string{parentID}}
		created, err := c.svc.Files.Create(file).
			Media(rc).
			Fields("id, name").
			SupportsAllDrives(true).
			Context(ctx).
			Do()
		if err != nil {
			return "", classifyAPIError("upload "+name, err)
		}
		return created.Id, nil
	})
}

// Folder is a folder listed under a parent.
type Folder struct {
	ID   string
	Name string
}

// ListFolders returns all non-trashed folders directly under a parent.
func (c *Client) ListFolders(ctx context.Context, parentID string) ([]Folder, error) {
	q := fmt.Sprintf("mimeType = '%s' and '%s' in parents and trashed = false", folderMIMEType, parentID)

	var folders []Folder
	pageToken := ""
	for {
		// Fetch one page per retryable unit; results are appended only
		// after a page succeeds, so a retried page is never double-counted.
		next, err := c.withRetry(ctx, "list folders", func() (string, error) {
			call := c.svc.Files.List().
				Q(q).
				Spaces("drive").
				Fields("nextPageToken, files(id, name)").
				PageSize(100).
				SupportsAllDrives(true).
				IncludeItemsFromAllDrives(c.sharedDrives).
				Context(ctx)
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}
			res, err := call.Do()
			if err != nil {
				return "", classifyAPIError("list folders", err)
			}
			for _, f := range res.Files {
				folders = append(folders, Folder{ID: f.Id, Name: f.Name})
			}
			return res.NextPageToken, nil
		})
		if err != nil {
			return nil, err
		}
		pageToken = next
		if pageToken == "" {
			return folders, nil
		}
	}
}

// normalizeName applies NFC normalization so names match Drive's comparison
// regardless of how the local filesystem encoded them.
func normalizeName(name string) string {
	return norm.NFC.String(name)
}

// escapeQuery escapes a string literal for a Drive query expression.
func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
