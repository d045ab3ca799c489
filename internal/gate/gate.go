// Package gate derives the pose and width of a gate from the positions of its two markers.
package gate

import (
	"math"

	"github.com/OCAP2/navscore/internal/geo"
	"github.com/OCAP2/navscore/pkg/core"
	"gonum.org/v1/gonum/spatial/r3"
)

// Geometry is the derived shape of a gate.
// Pose is centred between the markers with local +X pointing in the forward-crossing direction.
type Geometry struct {
	Pose  core.Pose
	Width float64
}

// Recompute derives the gate geometry from the left and right marker positions.
//
// Coincident markers are not rejected: the left-to-right vector cannot be normalized,
// so the yaw comes out as NaN and Width as 0.
func Recompute(left, right core.Position3D) Geometry {
	l, r := geo.Vec(left), geo.Vec(right)

	// Unit vector from the left marker to the right one.
	v1 := r3.Unit(r3.Sub(l, r))

	// Perpendicular to v1 and to the vertical, in the direction we like to cross gates.
	v2 := r3.Cross(geo.UnitZ, v1)

	middle := r3.Scale(0.5, r3.Add(l, r))

	return Geometry{
		Pose: core.Pose{
			Position: geo.Position(middle),
			Yaw:      math.Atan2(v2.Y, v2.X),
		},
		Width: r3.Norm(r3.Sub(l, r)),
	}
}

// Degenerate reports whether the markers coincide, leaving the gate without a heading.
func (g Geometry) Degenerate() bool {
	return g.Width == 0 || !g.Pose.HasHeading()
}
