package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"github.com/rorbcloud/calibration-backend/internal/hydrology"
	"github.com/rorbcloud/calibration-backend/internal/logger"
	"github.com/rorbcloud/calibration-backend/internal/repos"
	"github.com/rorbcloud/calibration-backend/internal/types"
)

// RunnerService claims a chunk of pending simulations, runs each against the
// engine, and writes every outcome back in a single flush. Any number of
// runner instances may work the same task; the store's claim transaction is
// the only coordination between them.
type RunnerService interface {
	RunBatch(ctx context.Context, taskID uuid.UUID, chunkSize int) (completed int, errored int, err error)
}

type runnerService struct {
	log         *logger.Logger
	tasks       repos.TaskStore
	queues      *repos.SimulationQueueFactory
	gate        repos.AccountingGate
	engine      hydrology.Engine
	parallelism int
}

func NewRunnerService(
	baseLog *logger.Logger,
	tasks repos.TaskStore,
	queues *repos.SimulationQueueFactory,
	gate repos.AccountingGate,
	engine hydrology.Engine,
	parallelism int,
) RunnerService {
	if parallelism < 1 {
		parallelism = 1
	}
	return &runnerService{
		log:         baseLog.With("service", "RunnerService"),
		tasks:       tasks,
		queues:      queues,
		gate:        gate,
		engine:      engine,
		parallelism: parallelism,
	}
}

type simulationOutcome struct {
	status       string
	result       datatypes.JSON
	errorMessage string
}

func (s *runnerService) RunBatch(ctx context.Context, taskID uuid.UUID, chunkSize int) (int, int, error) {
	queue := s.queues.NewQueue()
	claimed, err := queue.ClaimPending(ctx, taskID, chunkSize)
	if err != nil {
		return 0, 0, err
	}
	if len(claimed) == 0 {
		return 0, 0, nil
	}
	if err := s.tasks.UpdateFields(ctx, nil, taskID, map[string]interface{}{
		"status": types.StatusInProgress,
	}); err != nil {
		s.log.Warn("Failed to mark task in_progress", "task_id", taskID, "error", err)
	}

	// One engine failure must not abort the batch: each simulation records
	// its own outcome and the rest carry on.
	outcomes := make([]simulationOutcome, len(claimed))
	g := new(errgroup.Group)
	g.SetLimit(s.parallelism)
	for i, sim := range claimed {
		i, sim := i, sim
		g.Go(func() error {
			outcomes[i] = s.runOne(ctx, sim)
			return nil
		})
	}
	_ = g.Wait()

	completed, errored := 0, 0
	for i, sim := range claimed {
		o := outcomes[i]
		if o.status == types.StatusCompleted {
			completed++
		} else {
			errored++
		}
		queue.QueueUpdate(sim.ID, o.status, o.result, o.errorMessage)
	}
	if err := queue.FlushUpdates(ctx); err != nil {
		return 0, 0, err
	}

	// Every executed simulation is charged, success or failure alike; the
	// engine ran either way.
	if err := s.gate.Charge(ctx, nil, claimed[0].OwnerID, int64(len(claimed))); err != nil {
		s.log.Error("Failed to charge owner for batch", "owner_id", claimed[0].OwnerID, "count", len(claimed), "error", err)
	}

	s.log.Info("Batch finished", "task_id", taskID, "completed", completed, "errored", errored)
	return completed, errored, nil
}

func (s *runnerService) runOne(ctx context.Context, sim *types.Simulation) (outcome simulationOutcome) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Engine panic", "simulation_id", sim.ID, "panic", r)
			outcome = simulationOutcome{
				status:       types.StatusError,
				errorMessage: fmt.Sprintf("engine panic: %v", r),
			}
		}
	}()
	result, err := s.engine.Run(ctx, hydrology.RunInput{
		CatchmentData:  sim.CatchmentData,
		StormData:      sim.StormData,
		Kc:             sim.Kc,
		M:              sim.M,
		InitialLoss:    sim.InitialLoss,
		ContinuousLoss: sim.ContinuousLoss,
	})
	if err != nil {
		s.log.Warn("Simulation failed", "simulation_id", sim.ID, "kc", sim.Kc, "error", err)
		return simulationOutcome{
			status:       types.StatusError,
			errorMessage: err.Error(),
		}
	}
	return simulationOutcome{
		status: types.StatusCompleted,
		result: datatypes.JSON(result),
	}
}
