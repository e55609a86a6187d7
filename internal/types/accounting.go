package types

import "time"

// DefaultSimulationLimit caps how many simulations an owner may run in total.
const DefaultSimulationLimit = 1_000_000

// AccountingRecord is the per-owner quota ledger. TotalSimulations only ever
// increases, and only via a server-side increment.
type AccountingRecord struct {
	OwnerID          string    `gorm:"column:owner_id;primaryKey" json:"owner_id"`
	TotalSimulations int64     `gorm:"column:total_simulations;not null;default:0" json:"total_simulations"`
	SimulationLimit  int64     `gorm:"column:simulation_limit;not null" json:"simulation_limit"`
	LastUpdated      time.Time `gorm:"column:last_updated;not null" json:"last_updated"`
}

func (AccountingRecord) TableName() string { return "owner_accounting" }

// Usage is the quota triple handed back to callers.
type Usage struct {
	TotalSimulations     int64 `json:"total_simulations"`
	SimulationLimit      int64 `json:"simulation_limit"`
	RemainingSimulations int64 `json:"remaining_simulations"`
}
