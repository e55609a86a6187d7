package repos

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rorbcloud/calibration-backend/internal/logger"
	"github.com/rorbcloud/calibration-backend/internal/types"
)

// SimulationParams describes one simulation to be enqueued. The id,
// submitted_at and expires_at are assigned at flush time.
type SimulationParams struct {
	TaskID         uuid.UUID
	OwnerID        string
	StormName      string
	StormData      string
	CatchmentData  string
	Kc             float64
	M              float64
	InitialLoss    float64
	ContinuousLoss float64
}

// SimulationQueue is the durable job queue. Enqueue/QueueUpdate only touch
// an in-memory buffer; each Flush persists its whole buffer in one
// transaction and leaves the buffer intact when the flush fails, so the
// caller can retry the same batch. The insert/update buffers are scoped to
// one queue instance; use the factory to get a fresh instance per request
// or per batch.
type SimulationQueue interface {
	Enqueue(params SimulationParams) error
	PendingInserts() int
	FlushInserts(ctx context.Context) ([]uuid.UUID, error)
	ClaimPending(ctx context.Context, taskID uuid.UUID, limit int) ([]*types.Simulation, error)
	QueueUpdate(id uuid.UUID, status string, result datatypes.JSON, errorMessage string)
	FlushUpdates(ctx context.Context) error
	ListByTask(ctx context.Context, taskID uuid.UUID) ([]*types.Simulation, error)
	TasksWithPending(ctx context.Context, limit int) ([]uuid.UUID, error)
	MarkExpired(ctx context.Context, staleGrace time.Duration) (int64, error)
	PurgeExpired(ctx context.Context) (int64, error)
}

type simulationUpdate struct {
	id           uuid.UUID
	status       string
	result       datatypes.JSON
	errorMessage string
}

type simulationQueue struct {
	db  *gorm.DB
	log *logger.Logger
	ttl time.Duration

	mu      sync.Mutex
	inserts []SimulationParams
	updates []simulationUpdate
}

// SimulationQueueFactory hands out queue instances sharing one gorm handle
// and TTL. The store is the only coordination point between instances.
type SimulationQueueFactory struct {
	db  *gorm.DB
	log *logger.Logger
	ttl time.Duration
}

func NewSimulationQueueFactory(db *gorm.DB, baseLog *logger.Logger, ttl time.Duration) *SimulationQueueFactory {
	return &SimulationQueueFactory{
		db:  db,
		log: baseLog.With("repo", "SimulationQueue"),
		ttl: ttl,
	}
}

func (f *SimulationQueueFactory) NewQueue() SimulationQueue {
	return &simulationQueue{db: f.db, log: f.log, ttl: f.ttl}
}

func (q *simulationQueue) Enqueue(params SimulationParams) error {
	if params.TaskID == uuid.Nil {
		return types.NewValidationError("missing task_id")
	}
	if params.OwnerID == "" {
		return types.NewValidationError("missing owner_id")
	}
	if params.StormData == "" {
		return types.NewValidationError("missing storm data")
	}
	if params.CatchmentData == "" {
		return types.NewValidationError("missing catchment data")
	}
	q.mu.Lock()
	q.inserts = append(q.inserts, params)
	q.mu.Unlock()
	return nil
}

func (q *simulationQueue) PendingInserts() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.inserts)
}

func (q *simulationQueue) FlushInserts(ctx context.Context) ([]uuid.UUID, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.inserts) == 0 {
		return nil, nil
	}
	now := time.Now().UTC()
	expiresAt := now.Add(q.ttl)
	rows := make([]*types.Simulation, 0, len(q.inserts))
	ids := make([]uuid.UUID, 0, len(q.inserts))
	for _, p := range q.inserts {
		id := uuid.New()
		ids = append(ids, id)
		rows = append(rows, &types.Simulation{
			ID:             id,
			TaskID:         p.TaskID,
			OwnerID:        p.OwnerID,
			StormName:      p.StormName,
			StormData:      p.StormData,
			CatchmentData:  p.CatchmentData,
			Kc:             p.Kc,
			M:              p.M,
			InitialLoss:    p.InitialLoss,
			ContinuousLoss: p.ContinuousLoss,
			Status:         types.StatusPending,
			SubmittedAt:    now,
			ExpiresAt:      expiresAt,
		})
	}
	if err := q.db.WithContext(ctx).Create(&rows).Error; err != nil {
		// Buffer stays intact so the same batch can be retried.
		return nil, types.NewStorageError("flush simulation inserts", err)
	}
	q.inserts = q.inserts[:0]
	return ids, nil
}

// ClaimPending transitions up to limit pending simulations of the task to
// in_progress and returns them. The select-and-mark happens inside a single
// transaction; on postgres the selected rows are locked with FOR UPDATE
// SKIP LOCKED so two concurrent claimants can never be handed the same row.
// Each mark re-checks status = pending and a row is only returned when its
// own update took effect, which keeps the claim a compare-and-set on
// dialects without row locking (the sqlite test driver).
func (q *simulationQueue) ClaimPending(ctx context.Context, taskID uuid.UUID, limit int) ([]*types.Simulation, error) {
	if limit <= 0 {
		return nil, nil
	}
	now := time.Now().UTC()
	var claimed []*types.Simulation
	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sel := tx.
			Where("task_id = ? AND status = ?", taskID, types.StatusPending).
			Order("submitted_at ASC").
			Limit(limit)
		if tx.Dialector.Name() == "postgres" {
			sel = sel.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}
		var rows []*types.Simulation
		if err := sel.Find(&rows).Error; err != nil {
			return err
		}
		for _, row := range rows {
			res := tx.Model(&types.Simulation{}).
				Where("id = ? AND status = ?", row.ID, types.StatusPending).
				Updates(map[string]interface{}{
					"status":     types.StatusInProgress,
					"claimed_at": now,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected != 1 {
				continue
			}
			row.Status = types.StatusInProgress
			claimedAt := now
			row.ClaimedAt = &claimedAt
			claimed = append(claimed, row)
		}
		return nil
	})
	if err != nil {
		return nil, types.NewStorageError("claim pending simulations", err)
	}
	return claimed, nil
}

func (q *simulationQueue) QueueUpdate(id uuid.UUID, status string, result datatypes.JSON, errorMessage string) {
	q.mu.Lock()
	q.updates = append(q.updates, simulationUpdate{
		id:           id,
		status:       status,
		result:       result,
		errorMessage: errorMessage,
	})
	q.mu.Unlock()
}

func (q *simulationQueue) FlushUpdates(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.updates) == 0 {
		return nil
	}
	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, u := range q.updates {
			if err := tx.Model(&types.Simulation{}).
				Where("id = ?", u.id).
				Updates(map[string]interface{}{
					"status":        u.status,
					"result":        u.result,
					"error_message": u.errorMessage,
				}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return types.NewStorageError("flush simulation updates", err)
	}
	q.updates = q.updates[:0]
	return nil
}

func (q *simulationQueue) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*types.Simulation, error) {
	var rows []*types.Simulation
	if err := q.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("submitted_at ASC").
		Find(&rows).Error; err != nil {
		return nil, types.NewStorageError("list simulations by task", err)
	}
	return rows, nil
}

func (q *simulationQueue) TasksWithPending(ctx context.Context, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	query := q.db.WithContext(ctx).
		Model(&types.Simulation{}).
		Distinct("task_id").
		Where("status = ?", types.StatusPending)
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Pluck("task_id", &ids).Error; err != nil {
		return nil, types.NewStorageError("list tasks with pending simulations", err)
	}
	return ids, nil
}

// MarkExpired flips rows past their TTL to expired. Claimed rows are exempt
// until staleGrace beyond their TTL has elapsed, so a slow runner is not
// expired out from under an in-flight batch.
func (q *simulationQueue) MarkExpired(ctx context.Context, staleGrace time.Duration) (int64, error) {
	now := time.Now().UTC()
	staleCutoff := now.Add(-staleGrace)
	var marked int64
	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&types.Simulation{}).
			Where("status = ? AND expires_at <= ?", types.StatusPending, now).
			Update("status", types.StatusExpired)
		if res.Error != nil {
			return res.Error
		}
		marked += res.RowsAffected
		res = tx.Model(&types.Simulation{}).
			Where("status = ? AND expires_at <= ?", types.StatusInProgress, staleCutoff).
			Update("status", types.StatusExpired)
		if res.Error != nil {
			return res.Error
		}
		marked += res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, types.NewStorageError("mark expired simulations", err)
	}
	return marked, nil
}

// PurgeExpired deletes rows past their TTL that are already in a terminal
// state. In-flight rows are never purged; MarkExpired moves them to expired
// first once the stale grace has elapsed.
func (q *simulationQueue) PurgeExpired(ctx context.Context) (int64, error) {
	res := q.db.WithContext(ctx).
		Where("expires_at <= ? AND status IN ?", time.Now().UTC(), []string{
			types.StatusCompleted,
			types.StatusError,
			types.StatusExpired,
		}).
		Delete(&types.Simulation{})
	if res.Error != nil {
		return 0, types.NewStorageError("purge expired simulations", res.Error)
	}
	return res.RowsAffected, nil
}
