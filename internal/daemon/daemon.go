// Package daemon runs scheduled backups: a gocron job triggers runs at the
// configured interval, a watcher reloads configuration on change, and
// completed runs are recorded, published and exposed as metrics.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/repobackup/internal/catalog"
	"git.home.luguber.info/inful/repobackup/internal/config"
	"git.home.luguber.info/inful/repobackup/internal/logfields"
	"git.home.luguber.info/inful/repobackup/internal/metrics"
	"git.home.luguber.info/inful/repobackup/internal/mirror"
)

// RunFunc executes one backup run with the given configuration.
type RunFunc func(ctx context.Context, cfg *config.Config, recorder metrics.Recorder) (*mirror.Result, error)

// Daemon coordinates periodic backups.
type Daemon struct {
	mu        sync.RWMutex
	cfg       *config.Config
	runFunc   RunFunc
	store     *catalog.Store
	publisher *EventPublisher
	recorder  metrics.Recorder
	scheduler *Scheduler
	watcher   *ConfigWatcher
	metricsrv *http.Server
}

// New creates a daemon around a backup run function.
func New(cfg *config.Config, runFunc RunFunc) *Daemon {
	return &Daemon{
		cfg:      cfg,
		runFunc:  runFunc,
		recorder: metrics.NoopRecorder{},
	}
}

// GetConfig returns the current configuration.
func (d *Daemon) GetConfig() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// ReloadConfig swaps in a new configuration. The next scheduled run picks
// it up; the backup interval itself requires a restart to change.
func (d *Daemon) ReloadConfig(_ context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("new configuration is invalid: %w", err)
	}
	d.mu.Lock()
	old := d.cfg
	d.cfg = cfg
	d.mu.Unlock()

	if old.Daemon.Interval != cfg.Daemon.Interval {
		slog.Warn("Backup interval changed, restart required to apply",
			slog.String("old", old.Daemon.Interval),
			slog.String("new", cfg.Daemon.Interval))
	}
	return nil
}

// Start brings up the catalog, metrics endpoint, event publisher, config
// watcher and scheduler, then blocks until ctx is canceled.
func (d *Daemon) Start(ctx context.Context, configPath string) error {
	cfg := d.GetConfig()

	interval, err := time.ParseDuration(cfg.Daemon.Interval)
	if err != nil {
		return fmt.Errorf("invalid daemon interval %q: %w", cfg.Daemon.Interval, err)
	}

	store, err := catalog.Open(cfg.Catalog.Path)
	if err != nil {
		return err
	}
	d.store = store
	defer func() { _ = store.Close() }()

	if cfg.Daemon.MetricsListen != "" {
		reg := prom.NewRegistry()
		d.recorder = metrics.NewPrometheusRecorder(reg)
		d.startMetricsServer(cfg.Daemon.MetricsListen, reg)
		defer d.stopMetricsServer()
	}

	if cfg.Daemon.Events.Enabled {
		pub, err := NewEventPublisher(cfg.Daemon.Events)
		if err != nil {
			return err
		}
		d.publisher = pub
		defer pub.Close()
	}

	if configPath != "" {
		watcher, err := NewConfigWatcher(configPath, d)
		if err != nil {
			return err
		}
		d.watcher = watcher
		if err := watcher.Start(ctx); err != nil {
			return err
		}
		defer func() { _ = watcher.Stop(context.Background()) }()
	}

	sched, err := NewScheduler()
	if err != nil {
		return err
	}
	d.scheduler = sched

	jobID, err := sched.ScheduleBackup(interval, func() { d.runOnce(ctx) })
	if err != nil {
		return err
	}
	slog.Info("Scheduled periodic backup",
		slog.String("job_id", jobID),
		slog.Duration("interval", interval))

	sched.Start()
	defer func() { _ = sched.Stop() }()

	// First run immediately so a freshly started daemon does not wait a
	// full interval before backing anything up.
	d.runOnce(ctx)

	<-ctx.Done()
	slog.Info("Daemon shutting down")
	return nil
}

// runOnce executes a single backup run and records its outcome.
func (d *Daemon) runOnce(ctx context.Context) {
	cfg := d.GetConfig()

	res, err := d.runFunc(ctx, cfg, d.recorder)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		slog.Error("Scheduled backup failed", logfields.Error(err))
		return
	}

	if d.store != nil {
		if err := d.store.Record(ctx, res); err != nil {
			slog.Error("Failed to record run in catalog", logfields.Error(err))
		}
	}
	if d.publisher != nil {
		if err := d.publisher.PublishRun(res); err != nil {
			slog.Error("Failed to publish run event", logfields.Error(err))
		}
	}
}

func (d *Daemon) startMetricsServer(addr string, reg *prom.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(reg))
	d.metricsrv = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		slog.Info("Metrics endpoint listening", slog.String("addr", addr))
		if err := d.metricsrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server failed", logfields.Error(err))
		}
	}()
}

func (d *Daemon) stopMetricsServer() {
	if d.metricsrv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = d.metricsrv.Shutdown(ctx)
}
