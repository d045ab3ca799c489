package geo

import (
	"github.com/OCAP2/navscore/pkg/core"
	"gonum.org/v1/gonum/spatial/r3"
)

// UnitZ is the world "up" axis.
var UnitZ = r3.Vec{Z: 1}

// Vec converts a core position to an r3 vector.
func Vec(p core.Position3D) r3.Vec {
	return r3.Vec{X: p.X, Y: p.Y, Z: p.Z}
}

// Position converts an r3 vector back to a core position.
func Position(v r3.Vec) core.Position3D {
	return core.Position3D{X: v.X, Y: v.Y, Z: v.Z}
}

// Frame is a local coordinate frame given by an origin and a yaw about the vertical axis.
type Frame struct {
	Origin r3.Vec
	Yaw    float64
}

// FrameOf returns the local frame of a pose.
func FrameOf(p core.Pose) Frame {
	return Frame{Origin: Vec(p.Position), Yaw: p.Yaw}
}

// ToLocal expresses a world position in the frame: translate by -Origin, then rotate by -Yaw.
func (f Frame) ToLocal(world core.Position3D) r3.Vec {
	rel := r3.Sub(Vec(world), f.Origin)
	return r3.NewRotation(-f.Yaw, UnitZ).Rotate(rel)
}
