// Package crossing classifies a vehicle against a gate and advances the gate's crossing state.
//
// Everything here is pure: inputs are values, outputs are values, nothing is mutated.
package crossing

import (
	"math"

	"github.com/OCAP2/navscore/internal/gate"
	"github.com/OCAP2/navscore/internal/geo"
	"github.com/OCAP2/navscore/pkg/core"
)

// Classify locates the vehicle relative to the gate.
// The result is one of core.VehicleBefore, core.VehicleAfter or core.VehicleOutside.
//
// The gate plane itself (localX == 0) counts as after, and a vehicle exactly
// width/2 off the centre line is still inside. NaN geometry never compares as
// inside, so degenerate gates classify as outside.
func Classify(g gate.Geometry, vehicle core.Pose) core.GateState {
	local := geo.FrameOf(g.Pose).ToLocal(vehicle.Position)

	if math.Abs(local.Y) <= g.Width/2 {
		if local.X >= 0 {
			return core.VehicleAfter
		}
		return core.VehicleBefore
	}
	return core.VehicleOutside
}

// Advance applies the crossing transition table.
//
//	BEFORE + AFTER  -> CROSSED
//	AFTER  + BEFORE -> INVALID
//	terminal        -> unchanged
//	otherwise       -> class
func Advance(prev, class core.GateState) core.GateState {
	switch {
	case prev.Terminal():
		return prev
	case prev == core.VehicleBefore && class == core.VehicleAfter:
		return core.Crossed
	case prev == core.VehicleAfter && class == core.VehicleBefore:
		return core.Invalid
	default:
		return class
	}
}
