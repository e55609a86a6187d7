package jobs

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/rorbcloud/calibration-backend/internal/hydrology"
	"github.com/rorbcloud/calibration-backend/internal/logger"
	"github.com/rorbcloud/calibration-backend/internal/repos"
	"github.com/rorbcloud/calibration-backend/internal/services"
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

type stubEngine struct{}

func (stubEngine) Run(_ context.Context, input hydrology.RunInput) (json.RawMessage, error) {
	return json.RawMessage(`{"qmax": 1}`), nil
}

func TestReaperSweepMarksAndPurges(t *testing.T) {
	db := newTestDB(t)
	log := newTestLogger(t)
	tasks := repos.NewTaskStore(db, log)
	queues := repos.NewSimulationQueueFactory(db, log, time.Hour)

	task, err := tasks.Create(context.Background(), nil, "owner-1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	queue := queues.NewQueue()
	for i := 0; i < 3; i++ {
		if err := queue.Enqueue(repos.SimulationParams{
			TaskID:         task.ID,
			OwnerID:        "owner-1",
			StormName:      "storm.stm",
			StormData:      "storm",
			CatchmentData:  "catchment",
			Kc:             1.0 + float64(i),
			M:              0.8,
			InitialLoss:    10,
			ContinuousLoss: 2.5,
		}); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}
	ids, err := queue.FlushInserts(context.Background())
	if err != nil {
		t.Fatalf("FlushInserts failed: %v", err)
	}

	// One already completed, two still pending; everything past its TTL.
	queue.QueueUpdate(ids[0], types.StatusCompleted, datatypes.JSON(`{}`), "")
	if err := queue.FlushUpdates(context.Background()); err != nil {
		t.Fatalf("FlushUpdates failed: %v", err)
	}
	if err := db.Model(&types.Simulation{}).
		Where("task_id = ?", task.ID).
		Update("expires_at", time.Now().UTC().Add(-time.Minute)).Error; err != nil {
		t.Fatalf("failed to age simulations: %v", err)
	}

	reaper := NewReaper(log, queues, time.Minute, 10*time.Minute)
	if err := reaper.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	// The pending pair was marked expired and purged along with the
	// completed row; nothing is left, but the task survives.
	var sims int64
	if err := db.Model(&types.Simulation{}).Count(&sims).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if sims != 0 {
		t.Fatalf("expected all expired rows purged, got %d left", sims)
	}
	var taskCount int64
	if err := db.Model(&types.CalibrationTask{}).Count(&taskCount).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if taskCount != 1 {
		t.Fatalf("reaper must never delete tasks, got %d", taskCount)
	}

	// Nothing expired is ever claimable afterwards.
	claimed, err := queue.ClaimPending(context.Background(), task.ID, 10)
	if err != nil {
		t.Fatalf("ClaimPending failed: %v", err)
	}
	if len(claimed) != 0 {
		t.Fatalf("expected nothing claimable after sweep, got %d", len(claimed))
	}
}

func TestWorkerDrainsPendingTasks(t *testing.T) {
	db := newTestDB(t)
	log := newTestLogger(t)
	tasks := repos.NewTaskStore(db, log)
	queues := repos.NewSimulationQueueFactory(db, log, time.Hour)
	gate := repos.NewAccountingGate(db, log)
	calibra := services.NewCalibrationService(db, log, tasks, queues, gate)
	runner := services.NewRunnerService(log, tasks, queues, gate, stubEngine{}, 1)

	taskID, err := calibra.SubmitSweep(context.Background(), "owner-1", services.SubmitSweepRequest{
		CatchmentData:  "catchment",
		Storms:         []hydrology.StormEvent{{Name: "storm.stm", Data: "storm"}},
		KcMin:          0.8,
		KcMax:          1.2,
		KcStep:         0.2,
		M:              0.8,
		InitialLoss:    10,
		ContinuousLoss: 2.5,
	})
	if err != nil {
		t.Fatalf("SubmitSweep failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	worker := NewWorker(log, queues, runner, 10*time.Millisecond, 2)
	worker.Start(ctx)

	deadline := time.Now().Add(5 * time.Second)
	for {
		var pending int64
		if err := db.Model(&types.Simulation{}).
			Where("task_id = ? AND status IN ?", taskID, []string{types.StatusPending, types.StatusInProgress}).
			Count(&pending).Error; err != nil {
			t.Fatalf("count failed: %v", err)
		}
		if pending == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("worker did not drain the task in time, %d unresolved", pending)
		}
		time.Sleep(20 * time.Millisecond)
	}

	var done int64
	if err := db.Model(&types.Simulation{}).
		Where("task_id = ? AND status = ?", taskID, types.StatusCompleted).
		Count(&done).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if done != 3 {
		t.Fatalf("expected 3 completed simulations, got %d", done)
	}
}
