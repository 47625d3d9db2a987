package statusplane

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gruntworks-dev/orchestrator/internal/worker"
)

// Metrics exposes the orchestrator process's Prometheus gauges. Grounded
// on the per-subsystem metrics-collector pattern (one struct of
// registered gauge vectors, refreshed by the caller rather than pulled
// lazily).
type Metrics struct {
	WorkerPhase      *prometheus.GaugeVec
	WorkerBestScore  *prometheus.GaugeVec
	RunActiveWorkers *prometheus.GaugeVec
}

// NewMetrics registers the gauges against a fresh registry and returns
// both.
func NewMetrics() (*Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		WorkerPhase: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "grunts_worker_phase",
			Help: "Current phase of a worker, as its ordinal value in the Phase enum.",
		}, []string{"run_id", "worker_id"}),
		WorkerBestScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "grunts_worker_best_score",
			Help: "Best score observed so far by a worker.",
		}, []string{"run_id", "worker_id"}),
		RunActiveWorkers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "grunts_run_active_workers",
			Help: "Number of workers not yet in a terminal phase, per run.",
		}, []string{"run_id"}),
	}
	reg.MustRegister(m.WorkerPhase, m.WorkerBestScore, m.RunActiveWorkers)
	return m, reg
}

// Refresh overwrites the gauges from the current set of tracked runs.
// Called by the /metrics handler before each scrape, not on every status
// write, so it never competes with the worker loop for locks.
func (m *Metrics) Refresh(p *Plane) {
	for _, view := range p.AllViews() {
		active := 0
		for _, snap := range view.Workers {
			m.WorkerPhase.WithLabelValues(view.RunID, workerIDLabel(snap)).Set(phaseOrdinal(snap.Phase))
			m.WorkerBestScore.WithLabelValues(view.RunID, workerIDLabel(snap)).Set(float64(snap.BestScore))
			if snap.Phase != "completed" && snap.Phase != "failed" {
				active++
			}
		}
		m.RunActiveWorkers.WithLabelValues(view.RunID).Set(float64(active))
	}
}

func workerIDLabel(s worker.Snapshot) string {
	return strconv.Itoa(s.WorkerID)
}

func phaseOrdinal(phase string) float64 {
	phases := []string{"initializing", "analyzing", "coding", "testing", "optimizing", "deploying", "completed", "failed"}
	for i, p := range phases {
		if p == phase {
			return float64(i)
		}
	}
	return -1
}

// Handler returns the /metrics HTTP handler for reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
