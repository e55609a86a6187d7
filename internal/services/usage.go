package services

import (
	"context"

	"github.com/rorbcloud/calibration-backend/internal/logger"
	"github.com/rorbcloud/calibration-backend/internal/repos"
	"github.com/rorbcloud/calibration-backend/internal/types"
)

// UsageService exposes the quota ledger to the HTTP boundary.
type UsageService interface {
	GetUsage(ctx context.Context, ownerID string) (*types.Usage, error)
	SetLimit(ctx context.Context, requesterID, ownerID string, newLimit int64) error
}

type usageService struct {
	log          *logger.Logger
	gate         repos.AccountingGate
	adminOwnerID string
}

func NewUsageService(baseLog *logger.Logger, gate repos.AccountingGate, adminOwnerID string) UsageService {
	return &usageService{
		log:          baseLog.With("service", "UsageService"),
		gate:         gate,
		adminOwnerID: adminOwnerID,
	}
}

func (s *usageService) GetUsage(ctx context.Context, ownerID string) (*types.Usage, error) {
	return s.gate.GetUsage(ctx, nil, ownerID)
}

func (s *usageService) SetLimit(ctx context.Context, requesterID, ownerID string, newLimit int64) error {
	if s.adminOwnerID == "" || requesterID != s.adminOwnerID {
		return types.NewAuthError("not authorized to change simulation limits", nil)
	}
	s.log.Info("Simulation limit override", "owner_id", ownerID, "new_limit", newLimit, "by", requesterID)
	return s.gate.SetLimit(ctx, nil, ownerID, newLimit)
}
