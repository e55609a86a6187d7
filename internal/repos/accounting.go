package repos

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rorbcloud/calibration-backend/internal/logger"
	"github.com/rorbcloud/calibration-backend/internal/types"
)

// AccountingGate is the per-owner quota ledger. Records are provisioned on
// first read, and Charge is a single server-side upsert-with-increment so
// concurrent charges for the same owner never lose updates.
type AccountingGate interface {
	GetUsage(ctx context.Context, tx *gorm.DB, ownerID string) (*types.Usage, error)
	Charge(ctx context.Context, tx *gorm.DB, ownerID string, count int64) error
	SetLimit(ctx context.Context, tx *gorm.DB, ownerID string, newLimit int64) error
}

type accountingGate struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAccountingGate(db *gorm.DB, baseLog *logger.Logger) AccountingGate {
	return &accountingGate{
		db:  db,
		log: baseLog.With("repo", "AccountingGate"),
	}
}

func (r *accountingGate) GetUsage(ctx context.Context, tx *gorm.DB, ownerID string) (*types.Usage, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if ownerID == "" {
		return nil, types.NewValidationError("missing owner_id")
	}
	var rec types.AccountingRecord
	err := transaction.WithContext(ctx).Where("owner_id = ?", ownerID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := r.provision(ctx, transaction, ownerID); err != nil {
			return nil, err
		}
		err = transaction.WithContext(ctx).Where("owner_id = ?", ownerID).First(&rec).Error
	}
	if err != nil {
		return nil, types.NewStorageError("get owner accounting", err)
	}
	return &types.Usage{
		TotalSimulations:     rec.TotalSimulations,
		SimulationLimit:      rec.SimulationLimit,
		RemainingSimulations: rec.SimulationLimit - rec.TotalSimulations,
	}, nil
}

// provision inserts a fresh ledger row, tolerating a concurrent first read
// that got there first.
func (r *accountingGate) provision(ctx context.Context, tx *gorm.DB, ownerID string) error {
	rec := &types.AccountingRecord{
		OwnerID:         ownerID,
		SimulationLimit: types.DefaultSimulationLimit,
		LastUpdated:     time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner_id"}},
			DoNothing: true,
		}).
		Create(rec).Error; err != nil {
		return types.NewStorageError("provision owner accounting", err)
	}
	return nil
}

func (r *accountingGate) Charge(ctx context.Context, tx *gorm.DB, ownerID string, count int64) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if ownerID == "" {
		return types.NewValidationError("missing owner_id")
	}
	if count <= 0 {
		return nil
	}
	now := time.Now().UTC()
	rec := &types.AccountingRecord{
		OwnerID:          ownerID,
		TotalSimulations: count,
		SimulationLimit:  types.DefaultSimulationLimit,
		LastUpdated:      now,
	}
	if err := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "owner_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"total_simulations": gorm.Expr("owner_accounting.total_simulations + ?", count),
				"last_updated":      now,
			}),
		}).
		Create(rec).Error; err != nil {
		return types.NewStorageError("charge owner accounting", err)
	}
	return nil
}

func (r *accountingGate) SetLimit(ctx context.Context, tx *gorm.DB, ownerID string, newLimit int64) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if ownerID == "" {
		return types.NewValidationError("missing owner_id")
	}
	if newLimit < 0 {
		return types.NewValidationError("simulation limit must be >= 0")
	}
	now := time.Now().UTC()
	rec := &types.AccountingRecord{
		OwnerID:         ownerID,
		SimulationLimit: newLimit,
		LastUpdated:     now,
	}
	if err := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "owner_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"simulation_limit": newLimit,
				"last_updated":     now,
			}),
		}).
		Create(rec).Error; err != nil {
		return types.NewStorageError("set owner simulation limit", err)
	}
	return nil
}
