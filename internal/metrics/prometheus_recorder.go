package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	runsStarted    *prom.CounterVec
	runOutcomes    *prom.CounterVec
	runsSkipped    *prom.CounterVec
	runDuration    prom.Histogram
	filesUploaded  prom.Counter
	bytesUploaded  prom.Counter
	foldersCreated prom.Counter
}

// NewPrometheusRecorder constructs run metrics and registers them on reg.
// Call it once per registry; re-registering the same metrics panics.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.runsStarted = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "repobackup",
		Name:      "runs_started_total",
		Help:      "Backup runs started, by repository",
	}, []string{"repo"})
	pr.runOutcomes = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "repobackup",
		Name:      "run_outcomes_total",
		Help:      "Backup run outcomes by repository and result",
	}, []string{"repo", "result"})
	pr.runsSkipped = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "repobackup",
		Name:      "runs_skipped_total",
		Help:      "Backup runs skipped because the snapshot already exists",
	}, []string{"repo"})
	pr.runDuration = prom.NewHistogram(prom.HistogramOpts{
		Namespace: "repobackup",
		Name:      "run_duration_seconds",
		Help:      "Total backup run duration",
		Buckets:   prom.DefBuckets,
	})
	pr.filesUploaded = prom.NewCounter(prom.CounterOpts{
		Namespace: "repobackup",
		Name:      "files_uploaded_total",
		Help:      "Files uploaded across all runs",
	})
	pr.bytesUploaded = prom.NewCounter(prom.CounterOpts{
		Namespace: "repobackup",
		Name:      "bytes_uploaded_total",
		Help:      "Bytes uploaded across all runs",
	})
	pr.foldersCreated = prom.NewCounter(prom.CounterOpts{
		Namespace: "repobackup",
		Name:      "folders_created_total",
		Help:      "Remote folders created across all runs",
	})
	reg.MustRegister(pr.runsStarted, pr.runOutcomes, pr.runsSkipped, pr.runDuration, pr.filesUploaded, pr.bytesUploaded, pr.foldersCreated)
	return pr
}

func (p *PrometheusRecorder) RunStarted(repo string) {
	if p == nil || p.runsStarted == nil {
		return
	}
	p.runsStarted.WithLabelValues(repo).Inc()
}

func (p *PrometheusRecorder) RunEnded(repo string, success bool, d time.Duration) {
	if p == nil || p.runOutcomes == nil {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.runOutcomes.WithLabelValues(repo, res).Inc()
	p.runDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) RunSkipped(repo string) {
	if p == nil || p.runsSkipped == nil {
		return
	}
	p.runsSkipped.WithLabelValues(repo).Inc()
}

func (p *PrometheusRecorder) FileUploaded(bytes int64) {
	if p == nil || p.filesUploaded == nil {
		return
	}
	p.filesUploaded.Inc()
	p.bytesUploaded.Add(float64(bytes))
}

func (p *PrometheusRecorder) FolderCreated() {
	if p == nil || p.foldersCreated == nil {
		return
	}
	p.foldersCreated.Inc()
}
