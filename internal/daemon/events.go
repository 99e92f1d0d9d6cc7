package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/repobackup/internal/config"
	"git.home.luguber.info/inful/repobackup/internal/mirror"
)

// RunEvent is the message published after every backup run.
type RunEvent struct {
	RunID      string    `json:"run_id"`
	Repository string    `json:"repository"`
	Label      string    `json:"label"`
	Commit     string    `json:"commit"`
	Skipped    bool      `json:"skipped"`
	Files      int       `json:"files"`
	Folders    int       `json:"folders"`
	Bytes      int64     `json:"bytes"`
	DurationMS int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// EventPublisher publishes run events to a NATS JetStream subject.
type EventPublisher struct {
	conn    *nats.Conn
	js      jetstream.JetStream
	subject string
}

// NewEventPublisher connects to NATS and prepares a JetStream context.
func NewEventPublisher(cfg config.EventsConfig) (*EventPublisher, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("run events are disabled")
	}

	conn, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	slog.Info("NATS event publisher initialized",
		slog.String("url", cfg.NATSURL),
		slog.String("subject", cfg.Subject))

	return &EventPublisher{conn: conn, js: js, subject: cfg.Subject}, nil
}

// PublishRun publishes the outcome of a backup run.
func (p *EventPublisher) PublishRun(res *mirror.Result) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	event := RunEvent{
		RunID:      res.RunID,
		Repository: res.Repository,
		Label:      res.Label,
		Commit:     res.Commit,
		Skipped:    res.Skipped,
		Files:      res.FilesUploaded,
		Folders:    res.FoldersCreated,
		Bytes:      res.Bytes,
		DurationMS: res.Duration.Milliseconds(),
		Timestamp:  time.Now(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal run event: %w", err)
	}

	if _, err := p.js.Publish(ctx, p.subject, data); err != nil {
		return fmt.Errorf("failed to publish run event: %w", err)
	}

	slog.Debug("Published run event",
		slog.String("run_id", event.RunID),
		slog.String("repository", event.Repository),
		slog.String("label", event.Label))
	return nil
}

// Close drains the NATS connection.
func (p *EventPublisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}
