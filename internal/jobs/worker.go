package jobs

import (
	"context"
	"time"

	"github.com/rorbcloud/calibration-backend/internal/logger"
	"github.com/rorbcloud/calibration-backend/internal/repos"
	"github.com/rorbcloud/calibration-backend/internal/services"
)

// Worker polls the store for tasks that still have pending simulations and
// runs one batch per task per tick. Several workers may poll the same store;
// the claim transaction keeps them from stepping on each other.
type Worker struct {
	log       *logger.Logger
	queues    *repos.SimulationQueueFactory
	runner    services.RunnerService
	interval  time.Duration
	chunkSize int
}

func NewWorker(
	baseLog *logger.Logger,
	queues *repos.SimulationQueueFactory,
	runner services.RunnerService,
	interval time.Duration,
	chunkSize int,
) *Worker {
	return &Worker{
		log:       baseLog.With("component", "Worker"),
		queues:    queues,
		runner:    runner,
		interval:  interval,
		chunkSize: chunkSize,
	}
}

func (w *Worker) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		queue := w.queues.NewQueue()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				taskIDs, err := queue.TasksWithPending(ctx, 10)
				if err != nil {
					w.log.Warn("TasksWithPending failed", "error", err)
					continue
				}
				for _, taskID := range taskIDs {
					completed, errored, err := w.runner.RunBatch(ctx, taskID, w.chunkSize)
					if err != nil {
						w.log.Warn("RunBatch failed", "task_id", taskID, "error", err)
						continue
					}
					if completed+errored > 0 {
						w.log.Debug("Ran batch", "task_id", taskID, "completed", completed, "errored", errored)
					}
				}
			}
		}
	}()
}
