package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/rorbcloud/calibration-backend/internal/cache"
	"github.com/rorbcloud/calibration-backend/internal/logger"
	"github.com/rorbcloud/calibration-backend/internal/repos"
	"github.com/rorbcloud/calibration-backend/internal/types"
)

// TaskProgress is the poll response: a status tally and numeric progress
// while the sweep is running, the merged result set once it is done.
type TaskProgress struct {
	TaskID                    uuid.UUID      `json:"task_id"`
	StatusCounts              map[string]int `json:"status_counts,omitempty"`
	TotalSimulations          int            `json:"total_simulations"`
	Progress                  float64        `json:"progress"`
	Result                    datatypes.JSON `json:"result,omitempty"`
	SuccessfulSimulationCount int            `json:"successful_simulation_count"`
}

// ProgressService computes a task's completion state from its simulations
// and persists the merged result once every simulation has resolved.
type ProgressService interface {
	GetTaskProgress(ctx context.Context, taskID uuid.UUID) (*TaskProgress, error)
}

type progressService struct {
	log     *logger.Logger
	tasks   repos.TaskStore
	queue   repos.SimulationQueue
	results *cache.TaskResultCache
}

func NewProgressService(
	baseLog *logger.Logger,
	tasks repos.TaskStore,
	queues *repos.SimulationQueueFactory,
	results *cache.TaskResultCache,
) ProgressService {
	return &progressService{
		log:     baseLog.With("service", "ProgressService"),
		tasks:   tasks,
		queue:   queues.NewQueue(),
		results: results,
	}
}

func (s *progressService) GetTaskProgress(ctx context.Context, taskID uuid.UUID) (*TaskProgress, error) {
	task, err := s.tasks.GetByID(ctx, nil, taskID)
	if err != nil {
		return nil, err
	}

	if task.Status == types.StatusCompleted && len(task.Result) > 0 {
		return &TaskProgress{
			TaskID:                    task.ID,
			Progress:                  1.0,
			Result:                    task.Result,
			SuccessfulSimulationCount: task.SuccessfulSimulationCount,
		}, nil
	}
	if payload, ok := s.results.Get(ctx, taskID); ok {
		return &TaskProgress{
			TaskID:                    task.ID,
			Progress:                  1.0,
			Result:                    datatypes.JSON(payload),
			SuccessfulSimulationCount: task.SuccessfulSimulationCount,
		}, nil
	}

	sims, err := s.queue.ListByTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	counts := map[string]int{}
	for _, sim := range sims {
		if !types.KnownStatus(sim.Status) {
			return nil, types.NewProtocolError("invalid simulation status: %s", sim.Status)
		}
		counts[sim.Status]++
	}
	total := len(sims)

	progress := 0.0
	if total > 0 {
		progress = float64(counts[types.StatusCompleted]+counts[types.StatusError]) / float64(total)
	}
	if progress < 1.0 || total == 0 {
		return &TaskProgress{
			TaskID:           task.ID,
			StatusCounts:     counts,
			TotalSimulations: total,
			Progress:         progress,
		}, nil
	}

	merged, err := mergeResults(sims)
	if err != nil {
		return nil, err
	}
	successful := counts[types.StatusCompleted]
	if err := s.tasks.UpdateFields(ctx, nil, taskID, map[string]interface{}{
		"status":                      types.StatusCompleted,
		"result":                      merged,
		"successful_simulation_count": successful,
	}); err != nil {
		s.log.Warn("Failed to persist completed task result", "task_id", taskID, "error", err)
	}
	s.results.Set(ctx, taskID, merged)

	return &TaskProgress{
		TaskID:                    task.ID,
		StatusCounts:              counts,
		TotalSimulations:          total,
		Progress:                  1.0,
		Result:                    merged,
		SuccessfulSimulationCount: successful,
	}, nil
}

// mergeResults maps each simulation's parameters (storm, kc) to its result.
// Failed simulations contribute their error message instead of a payload.
func mergeResults(sims []*types.Simulation) (datatypes.JSON, error) {
	merged := make(map[string]json.RawMessage, len(sims))
	for _, sim := range sims {
		key := fmt.Sprintf("%s|kc=%g", sim.StormName, sim.Kc)
		switch sim.Status {
		case types.StatusCompleted:
			merged[key] = json.RawMessage(sim.Result)
		case types.StatusError:
			errPayload, err := json.Marshal(map[string]string{"error": sim.ErrorMessage})
			if err != nil {
				return nil, types.NewProtocolError("failed to encode error for %s: %v", key, err)
			}
			merged[key] = errPayload
		}
	}
	out, err := json.Marshal(merged)
	if err != nil {
		return nil, types.NewProtocolError("failed to encode merged results: %v", err)
	}
	return datatypes.JSON(out), nil
}
