package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// CalibrationTask is the aggregate record for one sweep request. Tasks are
// never deleted by the reaper; only their child simulations expire.
type CalibrationTask struct {
	ID                        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID                   string         `gorm:"column:owner_id;not null;index" json:"owner_id"`
	Status                    string         `gorm:"column:status;not null;index" json:"status"`
	Result                    datatypes.JSON `gorm:"type:jsonb;column:result" json:"result,omitempty"`
	ErrorMessage              string         `gorm:"column:error_message" json:"error_message,omitempty"`
	SuccessfulSimulationCount int            `gorm:"column:successful_simulation_count;not null;default:0" json:"successful_simulation_count"`
	CreatedAt                 time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt                 time.Time      `gorm:"not null" json:"updated_at"`
}

func (CalibrationTask) TableName() string { return "calibration_task" }
