package jobs

import (
	"context"
	"time"

	"github.com/rorbcloud/calibration-backend/internal/logger"
	"github.com/rorbcloud/calibration-backend/internal/repos"
)

// Reaper bounds storage growth: each sweep marks simulations past their TTL
// as expired, then deletes expired rows. Tasks are never reaped. Claimed
// simulations get a stale grace beyond their TTL before being marked, so a
// sweep running beside a slow runner does not destroy in-flight work.
type Reaper struct {
	log        *logger.Logger
	queue      repos.SimulationQueue
	interval   time.Duration
	staleGrace time.Duration
}

func NewReaper(
	baseLog *logger.Logger,
	queues *repos.SimulationQueueFactory,
	interval time.Duration,
	staleGrace time.Duration,
) *Reaper {
	return &Reaper{
		log:        baseLog.With("component", "Reaper"),
		queue:      queues.NewQueue(),
		interval:   interval,
		staleGrace: staleGrace,
	}
}

func (r *Reaper) Sweep(ctx context.Context) error {
	marked, err := r.queue.MarkExpired(ctx, r.staleGrace)
	if err != nil {
		return err
	}
	purged, err := r.queue.PurgeExpired(ctx)
	if err != nil {
		return err
	}
	if marked > 0 || purged > 0 {
		r.log.Info("Reaper sweep", "marked", marked, "purged", purged)
	}
	return nil
}

func (r *Reaper) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := r.Sweep(ctx); err != nil {
					r.log.Warn("Sweep failed", "error", err)
				}
			}
		}
	}()
}
