package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyRepo       = "repository"
	KeyLabel      = "label"
	KeyCommit     = "commit"
	KeyPath       = "path"
	KeyName       = "name"
	KeyFolderID   = "folder_id"
	KeyFileID     = "file_id"
	KeyBytes      = "bytes"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func Repository(r string) slog.Attr   { return slog.String(KeyRepo, r) }
func Label(l string) slog.Attr        { return slog.String(KeyLabel, l) }
func Commit(sha string) slog.Attr     { return slog.String(KeyCommit, sha) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Name(n string) slog.Attr         { return slog.String(KeyName, n) }
func FolderID(id string) slog.Attr    { return slog.String(KeyFolderID, id) }
func FileID(id string) slog.Attr      { return slog.String(KeyFileID, id) }
func Bytes(n int64) slog.Attr         { return slog.Int64(KeyBytes, n) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
