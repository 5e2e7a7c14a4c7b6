package scheduler

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/aristath/portfolio-tracker/internal/refresh"
)

// RefreshCycleJob runs one reconciliation pass per tick. Ticks are not
// reentrant: when a previous pass has not finished, the new tick is
// skipped so only one external quote call is ever in flight.
type RefreshCycleJob struct {
	reconciler *refresh.Reconciler
	log        zerolog.Logger
	inFlight   sync.Mutex
}

// NewRefreshCycleJob creates the refresh job.
func NewRefreshCycleJob(reconciler *refresh.Reconciler, log zerolog.Logger) *RefreshCycleJob {
	return &RefreshCycleJob{
		reconciler: reconciler,
		log:        log.With().Str("job", "refresh_cycle").Logger(),
	}
}

// Name returns the job name
func (j *RefreshCycleJob) Name() string {
	return "refresh_cycle"
}

// Run executes one reconciliation pass, skipping when one is in flight.
func (j *RefreshCycleJob) Run() error {
	if !j.inFlight.TryLock() {
		j.log.Warn().Msg("Previous refresh still running, skipping tick")
		return nil
	}
	defer j.inFlight.Unlock()

	if _, err := j.reconciler.Refresh(context.Background()); err != nil {
		// Old prices are retained; the next tick is the retry.
		return err
	}
	return nil
}
