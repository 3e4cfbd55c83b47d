package jobs

import (
	"context"
	"sync"
	"time"

	"tessera/internal/logger"
	"tessera/internal/metrics"
	"tessera/internal/models"
)

// Sweeper is the part of the seat store the job needs.
type Sweeper interface {
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}

type Publisher interface {
	Publish(subject string, data interface{}) error
}

// HoldSweeperJob rewrites lapsed holds to AVAILABLE. Reads already treat an
// expired hold as available; the sweep only keeps stored state tidy.
type HoldSweeperJob struct {
	store     Sweeper
	publisher Publisher
	metrics   *metrics.Metrics
	interval  time.Duration
	now       func() time.Time

	stop chan struct{}
	wg   sync.WaitGroup
}

func NewHoldSweeperJob(store Sweeper, publisher Publisher, m *metrics.Metrics, interval time.Duration) *HoldSweeperJob {
	if interval <= 0 {
		interval = time.Minute
	}
	return &HoldSweeperJob{
		store:     store,
		publisher: publisher,
		metrics:   m,
		interval:  interval,
		now:       time.Now,
		stop:      make(chan struct{}),
	}
}

// Start runs a sweep immediately and then every interval until Stop or ctx is done.
func (j *HoldSweeperJob) Start(ctx context.Context) {
	logger.Get().Info("Starting hold sweeper", "interval", j.interval.String())

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()

		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		j.Sweep(ctx)
		for {
			select {
			case <-ticker.C:
				j.Sweep(ctx)
			case <-j.stop:
				logger.Get().Info("Hold sweeper stopped")
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (j *HoldSweeperJob) Stop() {
	close(j.stop)
	j.wg.Wait()
}

// Sweep clears expired holds once and returns how many were cleared.
func (j *HoldSweeperJob) Sweep(ctx context.Context) int64 {
	sweepCtx, cancel := context.WithTimeout(ctx, j.interval)
	defer cancel()

	start := time.Now()
	cleared, err := j.store.SweepExpired(sweepCtx, j.now())
	j.metrics.ObserveDuration("sweep", start)
	if err != nil {
		logger.Get().Error("Failed to sweep expired holds", "error", err)
		return 0
	}
	if cleared == 0 {
		logger.Get().Debug("No expired holds found")
		return 0
	}

	j.metrics.HoldsSwept(cleared)
	logger.Get().Info("Cleared expired holds", "count", cleared)

	if j.publisher != nil {
		event := models.HoldsExpiredEvent{Cleared: cleared, Timestamp: j.now()}
		if err := j.publisher.Publish(models.EventHoldsExpired, event); err != nil {
			logger.Get().Error("Failed to publish holds expired event", "error", err)
		}
	}
	return cleared
}
