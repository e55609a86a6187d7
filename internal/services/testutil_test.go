package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/rorbcloud/calibration-backend/internal/hydrology"
	"github.com/rorbcloud/calibration-backend/internal/logger"
	"github.com/rorbcloud/calibration-backend/internal/repos"
	"github.com/rorbcloud/calibration-backend/internal/types"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
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

type testEnv struct {
	db      *gorm.DB
	tasks   repos.TaskStore
	queues  *repos.SimulationQueueFactory
	gate    repos.AccountingGate
	calibra CalibrationService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	log := newTestLogger(t)
	tasks := repos.NewTaskStore(db, log)
	queues := repos.NewSimulationQueueFactory(db, log, time.Hour)
	gate := repos.NewAccountingGate(db, log)
	return &testEnv{
		db:      db,
		tasks:   tasks,
		queues:  queues,
		gate:    gate,
		calibra: NewCalibrationService(db, log, tasks, queues, gate),
	}
}

func sweepRequest() SubmitSweepRequest {
	return SubmitSweepRequest{
		CatchmentData: "catchment file contents",
		Storms: []hydrology.StormEvent{
			{Name: "storm_a.stm", Data: "storm a"},
			{Name: "storm_b.stm", Data: "storm b"},
		},
		KcMin:          0.8,
		KcMax:          2.0,
		KcStep:         0.4,
		M:              0.8,
		InitialLoss:    10,
		ContinuousLoss: 2.5,
	}
}

// fakeEngine succeeds with a qmax payload unless the storm matches failStorm.
type fakeEngine struct {
	mu        sync.Mutex
	failStorm string
	calls     int
}

func (f *fakeEngine) Run(_ context.Context, input hydrology.RunInput) (json.RawMessage, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if input.StormData == f.failStorm {
		return nil, errors.New("routing diverged")
	}
	return json.RawMessage(fmt.Sprintf(`{"qmax": %g}`, input.Kc*10)), nil
}
