package reconcile

import (
	"context"
	"errors"
	"sync"
	"time"

	"portfel-backend/internal/application/aggregation"
	"portfel-backend/internal/application/assets"
	"portfel-backend/internal/application/pricing"

	"github.com/rs/zerolog"
)

const jobName = "portfolio_reconcile"

// Job refreshes asset prices from an external feed (when one is configured) and then
// recomputes every portfolio, repairing aggregates that drifted while prices moved.
type Job struct {
	Assets     *assets.Service
	Aggregates *aggregation.Service
	Feed       pricing.Feed // nil skips the price refresh
	Timeout    time.Duration
	Log        zerolog.Logger

	mu sync.Mutex
}

// Name returns the job name.
func (j *Job) Name() string {
	return jobName
}

// Run executes one reconciliation pass. Overlapping runs are skipped.
func (j *Job) Run() error {
	if !j.mu.TryLock() {
		j.Log.Warn().Str("job", jobName).Msg("previous run still in progress, skipping")
		return nil
	}
	defer j.mu.Unlock()

	ctx := context.Background()
	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}

	start := time.Now()
	var errs []error
	if j.Feed != nil && j.Assets != nil {
		changed, err := j.Assets.RefreshPrices(ctx, j.Feed)
		if err != nil {
			errs = append(errs, err)
		}
		j.Log.Info().Int("changed", len(changed)).Msg("prices refreshed")
	}

	n, err := j.Aggregates.RecomputeAll(ctx)
	if err != nil {
		errs = append(errs, err)
	}
	j.Log.Info().
		Int("portfolios", n).
		Dur("took", time.Since(start)).
		Msg("reconciliation finished")
	return errors.Join(errs...)
}
