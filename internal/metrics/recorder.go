// Package metrics provides observability hooks for backup runs.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so metrics are zero-overhead unless a real implementation is
// wired in (the daemon injects a PrometheusRecorder when a metrics listener
// is configured).
package metrics

import "time"

// Recorder defines the hooks recorded during a backup run. All methods must
// be safe on the NoopRecorder so injection stays optional.
type Recorder interface {
	RunStarted(repo string)
	RunEnded(repo string, success bool, d time.Duration)
	RunSkipped(repo string)
	FileUploaded(bytes int64)
	FolderCreated()
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not
// configured).
type NoopRecorder struct{}

func (NoopRecorder) RunStarted(string)                      {}
func (NoopRecorder) RunEnded(string, bool, time.Duration)   {}
func (NoopRecorder) RunSkipped(string)                      {}
func (NoopRecorder) FileUploaded(int64)                     {}
func (NoopRecorder) FolderCreated()                         {}
