package hydrology

import "github.com/rorbcloud/calibration-backend/internal/types"

// gridTolerance absorbs floating-point drift at the top of the kc range.
// Repeated addition can land at kcMax plus or minus a few ulps; without the
// tolerance a grid like [0.8, 2.0] step 0.4 could drop its 2.0 endpoint.
const gridTolerance = 1e-9

// KcGrid returns the closed-interval kc grid: kcMin, kcMin+step, ... up to
// every value <= kcMax within gridTolerance.
func KcGrid(kcMin, kcMax, kcStep float64) ([]float64, error) {
	if kcStep <= 0 {
		return nil, types.NewValidationError("kcStep must be > 0, got %v", kcStep)
	}
	if kcMax < kcMin {
		return nil, types.NewValidationError("kcMax (%v) must be >= kcMin (%v)", kcMax, kcMin)
	}
	var grid []float64
	for kc := kcMin; kc <= kcMax+gridTolerance; kc += kcStep {
		grid = append(grid, kc)
	}
	return grid, nil
}

// StormEvent is one uploaded storm file.
type StormEvent struct {
	Name string
	Data string
}

// SweepPoint is one cell of the storms x kc-grid cross product.
type SweepPoint struct {
	Storm StormEvent
	Kc    float64
}

// ExpandSweep forms the cross product of storm events and the kc grid.
// Generation is pure; persisting the points is the caller's concern.
func ExpandSweep(storms []StormEvent, kcGrid []float64) []SweepPoint {
	points := make([]SweepPoint, 0, len(storms)*len(kcGrid))
	for _, kc := range kcGrid {
		for _, storm := range storms {
			points = append(points, SweepPoint{Storm: storm, Kc: kc})
		}
	}
	return points
}
