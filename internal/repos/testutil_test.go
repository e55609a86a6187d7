package repos

import (
	"path/filepath"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/rorbcloud/calibration-backend/internal/logger"
	"github.com/rorbcloud/calibration-backend/internal/types"
)

// newTestDB opens a throwaway file-backed sqlite database. File-backed (not
// :memory:) so concurrent writers block on the busy timeout instead of
// failing, which the claim and charge concurrency tests rely on.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// _txlock=immediate makes write transactions take the lock up front, so
	// concurrent claimants queue on the busy timeout instead of deadlocking.
	dsn := filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=10000&_txlock=immediate"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&types.CalibrationTask{},
		&types.Simulation{},
		&types.AccountingRecord{},
	); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("failed to init logger: %v", err)
	}
	return log
}
