package orchestrator

import (
	"fmt"
	"sync/atomic"

	"github.com/robfig/cron/v3"
)

// assessmentScheduler fires a partial assessment on a fixed cadence
// (spec.md §4.F), independent of the worker poll loop. Grounded on the
// retention scheduler's cron.Start/Stop/@every wiring; the one addition
// here is the in-flight guard: if a previous assessment is still running
// when the next tick fires, the tick is skipped rather than queued, per
// spec.md §4.F's "assessments never block worker polling" / "skipped,
// not queued".
type assessmentScheduler struct {
	cron    *cron.Cron
	running int32
}

func newAssessmentScheduler(intervalSeconds int, fn func()) (*assessmentScheduler, error) {
	s := &assessmentScheduler{cron: cron.New()}
	spec := fmt.Sprintf("@every %ds", intervalSeconds)
	_, err := s.cron.AddFunc(spec, func() {
		if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
			return // previous assessment still in flight; skip this tick
		}
		defer atomic.StoreInt32(&s.running, 0)
		fn()
	})
	if err != nil {
		return nil, fmt.Errorf("orchestrator: invalid assessment interval: %w", err)
	}
	return s, nil
}

func (s *assessmentScheduler) start() { s.cron.Start() }
func (s *assessmentScheduler) stop()  { s.cron.Stop() }
