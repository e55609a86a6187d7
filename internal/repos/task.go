package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rorbcloud/calibration-backend/internal/logger"
	"github.com/rorbcloud/calibration-backend/internal/types"
)

type TaskStore interface {
	Create(ctx context.Context, tx *gorm.DB, ownerID string) (*types.CalibrationTask, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.CalibrationTask, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
}

type taskStore struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTaskStore(db *gorm.DB, baseLog *logger.Logger) TaskStore {
	return &taskStore{
		db:  db,
		log: baseLog.With("repo", "TaskStore"),
	}
}

func (r *taskStore) Create(ctx context.Context, tx *gorm.DB, ownerID string) (*types.CalibrationTask, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now().UTC()
	task := &types.CalibrationTask{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Status:    types.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := transaction.WithContext(ctx).Create(task).Error; err != nil {
		return nil, types.NewStorageError("create calibration task", err)
	}
	return task, nil
}

func (r *taskStore) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.CalibrationTask, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var task types.CalibrationTask
	err := transaction.WithContext(ctx).Where("id = ?", id).First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.NewNotFoundError("task")
	}
	if err != nil {
		return nil, types.NewStorageError("get calibration task", err)
	}
	return &task, nil
}

func (r *taskStore) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return types.NewValidationError("missing task id")
	}
	if len(updates) == 0 {
		return nil
	}
	updates["updated_at"] = time.Now().UTC()
	if err := transaction.WithContext(ctx).
		Model(&types.CalibrationTask{}).
		Where("id = ?", id).
		Updates(updates).Error; err != nil {
		return types.NewStorageError("update calibration task", err)
	}
	return nil
}
