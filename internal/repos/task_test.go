package repos

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/rorbcloud/calibration-backend/internal/types"
)

func TestTaskStoreCreateAndGet(t *testing.T) {
	db := newTestDB(t)
	store := NewTaskStore(db, newTestLogger(t))

	task, err := store.Create(context.Background(), nil, "owner-1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if task.Status != types.StatusPending {
		t.Fatalf("new task must be pending, got %q", task.Status)
	}

	got, err := store.GetByID(context.Background(), nil, task.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.OwnerID != "owner-1" {
		t.Fatalf("unexpected owner: %q", got.OwnerID)
	}
}

func TestTaskStoreGetUnknownIsNotFound(t *testing.T) {
	db := newTestDB(t)
	store := NewTaskStore(db, newTestLogger(t))

	_, err := store.GetByID(context.Background(), nil, uuid.New())
	if !types.IsKind(err, types.KindNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestTaskStoreUpdateFields(t *testing.T) {
	db := newTestDB(t)
	store := NewTaskStore(db, newTestLogger(t))

	task, err := store.Create(context.Background(), nil, "owner-1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := store.UpdateFields(context.Background(), nil, task.ID, map[string]interface{}{
		"status":                      types.StatusInProgress,
		"successful_simulation_count": 3,
	}); err != nil {
		t.Fatalf("UpdateFields failed: %v", err)
	}

	got, err := store.GetByID(context.Background(), nil, task.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != types.StatusInProgress || got.SuccessfulSimulationCount != 3 {
		t.Fatalf("update not applied: %q %d", got.Status, got.SuccessfulSimulationCount)
	}
}
