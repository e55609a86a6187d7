package hydrology

import (
	"math"
	"testing"

	"github.com/rorbcloud/calibration-backend/internal/types"
)

func TestKcGridClosedInterval(t *testing.T) {
	grid, err := KcGrid(0.8, 2.0, 0.4)
	if err != nil {
		t.Fatalf("KcGrid failed: %v", err)
	}
	want := []float64{0.8, 1.2, 1.6, 2.0}
	if len(grid) != len(want) {
		t.Fatalf("expected %d values, got %d: %v", len(want), len(grid), grid)
	}
	for i, w := range want {
		if math.Abs(grid[i]-w) > 1e-9 {
			t.Fatalf("grid[%d] = %v, want %v", i, grid[i], w)
		}
	}
}

func TestKcGridIncludesEndpointDespiteFloatDrift(t *testing.T) {
	// 0.9 + 3*0.1 lands slightly above 1.2 in binary; the tolerance must
	// keep the endpoint in.
	grid, err := KcGrid(0.9, 1.2, 0.1)
	if err != nil {
		t.Fatalf("KcGrid failed: %v", err)
	}
	if len(grid) != 4 {
		t.Fatalf("expected 4 values, got %d: %v", len(grid), grid)
	}
	if math.Abs(grid[3]-1.2) > 1e-9 {
		t.Fatalf("endpoint missing, last value %v", grid[3])
	}
}

func TestKcGridSingleValue(t *testing.T) {
	grid, err := KcGrid(1.5, 1.5, 0.4)
	if err != nil {
		t.Fatalf("KcGrid failed: %v", err)
	}
	if len(grid) != 1 || grid[0] != 1.5 {
		t.Fatalf("expected [1.5], got %v", grid)
	}
}

func TestKcGridRejectsBadRanges(t *testing.T) {
	if _, err := KcGrid(1.0, 2.0, 0); !types.IsKind(err, types.KindValidation) {
		t.Fatalf("expected validation error for zero step, got %v", err)
	}
	if _, err := KcGrid(1.0, 2.0, -0.1); !types.IsKind(err, types.KindValidation) {
		t.Fatalf("expected validation error for negative step, got %v", err)
	}
	if _, err := KcGrid(2.0, 1.0, 0.1); !types.IsKind(err, types.KindValidation) {
		t.Fatalf("expected validation error for max < min, got %v", err)
	}
}

func TestKcGridSuccessiveSteps(t *testing.T) {
	grid, err := KcGrid(0.05, 3.0, 0.05)
	if err != nil {
		t.Fatalf("KcGrid failed: %v", err)
	}
	if grid[0] != 0.05 {
		t.Fatalf("grid must start at kcMin, got %v", grid[0])
	}
	for i := 1; i < len(grid); i++ {
		if math.Abs(grid[i]-grid[i-1]-0.05) > 1e-9 {
			t.Fatalf("non-uniform step between %v and %v", grid[i-1], grid[i])
		}
	}
	if grid[len(grid)-1] > 3.0+1e-9 {
		t.Fatalf("grid overshot kcMax: %v", grid[len(grid)-1])
	}
}

func TestExpandSweepCrossProduct(t *testing.T) {
	storms := []StormEvent{
		{Name: "storm_a.stm", Data: "a"},
		{Name: "storm_b.stm", Data: "b"},
	}
	grid := []float64{0.8, 1.2, 1.6, 2.0}

	points := ExpandSweep(storms, grid)
	if len(points) != 8 {
		t.Fatalf("expected 8 points, got %d", len(points))
	}
	seen := map[string]bool{}
	for _, p := range points {
		seen[p.Storm.Name] = true
	}
	if !seen["storm_a.stm"] || !seen["storm_b.stm"] {
		t.Fatalf("cross product missing a storm: %v", seen)
	}
}

func TestExpandSweepEmpty(t *testing.T) {
	if got := ExpandSweep(nil, []float64{1.0}); len(got) != 0 {
		t.Fatalf("expected empty sweep without storms, got %d", len(got))
	}
	if got := ExpandSweep([]StormEvent{{Name: "s"}}, nil); len(got) != 0 {
		t.Fatalf("expected empty sweep without grid, got %d", len(got))
	}
}
