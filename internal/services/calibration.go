package services

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rorbcloud/calibration-backend/internal/hydrology"
	"github.com/rorbcloud/calibration-backend/internal/logger"
	"github.com/rorbcloud/calibration-backend/internal/repos"
	"github.com/rorbcloud/calibration-backend/internal/types"
)

// SubmitSweepRequest is one calibration sweep: a catchment file, one or more
// storm files, and the shared model parameters.
type SubmitSweepRequest struct {
	CatchmentData  string
	Storms         []hydrology.StormEvent
	KcMin          float64
	KcMax          float64
	KcStep         float64
	M              float64
	InitialLoss    float64
	ContinuousLoss float64
}

// CalibrationService expands a sweep request into the storms x kc-grid cross
// product and bulk-enqueues one simulation per cell, gated on the owner's
// remaining quota.
type CalibrationService interface {
	SubmitSweep(ctx context.Context, ownerID string, req SubmitSweepRequest) (uuid.UUID, error)
}

type calibrationService struct {
	db      *gorm.DB
	log     *logger.Logger
	tasks   repos.TaskStore
	queues  *repos.SimulationQueueFactory
	gate    repos.AccountingGate
}

func NewCalibrationService(
	db *gorm.DB,
	baseLog *logger.Logger,
	tasks repos.TaskStore,
	queues *repos.SimulationQueueFactory,
	gate repos.AccountingGate,
) CalibrationService {
	return &calibrationService{
		db:     db,
		log:    baseLog.With("service", "CalibrationService"),
		tasks:  tasks,
		queues: queues,
		gate:   gate,
	}
}

func (s *calibrationService) SubmitSweep(ctx context.Context, ownerID string, req SubmitSweepRequest) (uuid.UUID, error) {
	if ownerID == "" {
		return uuid.Nil, types.NewValidationError("missing owner_id")
	}
	if req.CatchmentData == "" {
		return uuid.Nil, types.NewValidationError("missing catchment file")
	}
	if len(req.Storms) == 0 {
		return uuid.Nil, types.NewValidationError("at least one storm file is required")
	}
	grid, err := hydrology.KcGrid(req.KcMin, req.KcMax, req.KcStep)
	if err != nil {
		return uuid.Nil, err
	}
	points := hydrology.ExpandSweep(req.Storms, grid)

	// The quota gate runs before any row is written: a rejected sweep leaves
	// neither a task nor a simulation behind.
	usage, err := s.gate.GetUsage(ctx, nil, ownerID)
	if err != nil {
		return uuid.Nil, err
	}
	if int64(len(points)) > usage.RemainingSimulations {
		return uuid.Nil, types.NewQuotaExceededError(int64(len(points)), usage.RemainingSimulations)
	}

	task, err := s.tasks.Create(ctx, nil, ownerID)
	if err != nil {
		return uuid.Nil, err
	}

	queue := s.queues.NewQueue()
	for _, p := range points {
		if err := queue.Enqueue(repos.SimulationParams{
			TaskID:         task.ID,
			OwnerID:        ownerID,
			StormName:      p.Storm.Name,
			StormData:      p.Storm.Data,
			CatchmentData:  req.CatchmentData,
			Kc:             p.Kc,
			M:              req.M,
			InitialLoss:    req.InitialLoss,
			ContinuousLoss: req.ContinuousLoss,
		}); err != nil {
			s.removeEmptyTask(ctx, task.ID)
			return uuid.Nil, err
		}
	}
	if _, err := queue.FlushInserts(ctx); err != nil {
		// A failed flush must not leave a childless task behind.
		s.removeEmptyTask(ctx, task.ID)
		return uuid.Nil, err
	}

	s.log.Info("Sweep submitted",
		"task_id", task.ID,
		"owner_id", ownerID,
		"storms", len(req.Storms),
		"kc_values", len(grid),
		"simulations", len(points),
	)
	return task.ID, nil
}

func (s *calibrationService) removeEmptyTask(ctx context.Context, taskID uuid.UUID) {
	if err := s.db.WithContext(ctx).
		Where("id = ?", taskID).
		Delete(&types.CalibrationTask{}).Error; err != nil {
		s.log.Warn("Failed to remove task after flush failure", "task_id", taskID, "error", err)
	}
}
