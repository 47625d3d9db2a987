package orchestrator

import (
	"gonum.org/v1/gonum/stat"

	"github.com/gruntworks-dev/orchestrator/internal/worker"
)

// snapshotAll takes a consistent-per-worker (not cross-worker-atomic)
// snapshot of every worker in the run, per spec.md §5's ordering
// guarantee: "statuses are read one by one".
func snapshotAll(workers []*worker.Worker) map[int]worker.Snapshot {
	out := make(map[int]worker.Snapshot, len(workers))
	for _, w := range workers {
		s := w.Status().Snapshot()
		out[s.WorkerID] = s
	}
	return out
}

// assess builds one Assessment from the current worker snapshots,
// computing mean/stddev of best_score with gonum/stat rather than
// hand-rolled summation.
func assess(workers []*worker.Worker) Assessment {
	snaps := snapshotAll(workers)
	scores := make([]float64, 0, len(snaps))
	for _, s := range snaps {
		scores = append(scores, float64(s.BestScore))
	}

	var mean, stddev float64
	if len(scores) > 0 {
		mean = stat.Mean(scores, nil)
	}
	if len(scores) > 1 {
		stddev = stat.StdDev(scores, nil)
	}

	return Assessment{At: clockNow(), Workers: snaps, MeanScore: mean, StdDevScore: stddev}
}
