// pkg/core/types.go
package core

import (
	"encoding/json"
	"math"
)

// Position3D represents a 3D coordinate in the shared world frame
type Position3D struct {
	X float64 `json:"x"` // easting
	Y float64 `json:"y"` // northing
	Z float64 `json:"z"` // elevation
}

// Pose is a world position with a heading about the vertical axis.
// Roll and pitch are not tracked.
type Pose struct {
	Position Position3D `json:"position"`
	Yaw      float64    `json:"yaw"` // radians, counter-clockwise from +X
}

// HasHeading reports whether the yaw is a usable number.
// Poses derived from coincident markers have no heading.
func (p Pose) HasHeading() bool {
	return !math.IsNaN(p.Yaw) && !math.IsInf(p.Yaw, 0)
}

type poseJSON struct {
	Position Position3D `json:"position"`
	Yaw      *float64   `json:"yaw"`
}

// MarshalJSON writes a pose without heading with a null yaw.
func (p Pose) MarshalJSON() ([]byte, error) {
	out := poseJSON{Position: p.Position}
	if p.HasHeading() {
		out.Yaw = &p.Yaw
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads a null yaw back as NaN.
func (p *Pose) UnmarshalJSON(data []byte) error {
	var in poseJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	p.Position = in.Position
	p.Yaw = math.NaN()
	if in.Yaw != nil {
		p.Yaw = *in.Yaw
	}
	return nil
}
