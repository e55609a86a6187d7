package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Simulation is one unit of work: one storm event run against the catchment
// at one kc value. ExpiresAt is fixed when the row is inserted and never
// extended afterwards.
type Simulation struct {
	ID             uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	TaskID         uuid.UUID        `gorm:"type:uuid;not null;index" json:"task_id"`
	Task           *CalibrationTask `gorm:"constraint:OnDelete:CASCADE;foreignKey:TaskID;references:ID" json:"task,omitempty"`
	OwnerID        string           `gorm:"column:owner_id;not null;index" json:"owner_id"`
	StormName      string           `gorm:"column:storm_name;not null" json:"storm_name"`
	StormData      string           `gorm:"column:storm_data;type:text" json:"-"`
	CatchmentData  string           `gorm:"column:catchment_data;type:text" json:"-"`
	Kc             float64          `gorm:"column:kc;not null" json:"kc"`
	M              float64          `gorm:"column:m;not null" json:"m"`
	InitialLoss    float64          `gorm:"column:initial_loss;not null" json:"initial_loss"`
	ContinuousLoss float64          `gorm:"column:continuous_loss;not null" json:"continuous_loss"`
	Status         string           `gorm:"column:status;not null;index" json:"status"`
	Result         datatypes.JSON   `gorm:"type:jsonb;column:result" json:"result,omitempty"`
	ErrorMessage   string           `gorm:"column:error_message" json:"error_message,omitempty"`
	SubmittedAt    time.Time        `gorm:"column:submitted_at;not null" json:"submitted_at"`
	ExpiresAt      time.Time        `gorm:"column:expires_at;not null;index" json:"expires_at"`
	ClaimedAt      *time.Time       `gorm:"column:claimed_at" json:"claimed_at,omitempty"`
}

func (Simulation) TableName() string { return "simulation" }
