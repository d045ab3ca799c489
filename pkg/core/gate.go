// pkg/core/gate.go
package core

import "time"

// GateState is the crossing state of a single gate.
type GateState string

const (
	VehicleBefore  GateState = "VEHICLE_BEFORE"  // approach side, inside the door
	VehicleAfter   GateState = "VEHICLE_AFTER"   // forward side, inside the door
	VehicleOutside GateState = "VEHICLE_OUTSIDE" // laterally outside the door
	Crossed        GateState = "CROSSED"         // forward transit completed
	Invalid        GateState = "INVALID"         // backward transit
)

// Terminal reports whether no further transitions can leave s.
func (s GateState) Terminal() bool {
	return s == Crossed || s == Invalid
}

// GateSnapshot is the externally visible state of a gate, for reporting and diagnostics.
type GateSnapshot struct {
	Index       int        `json:"index"`
	Name        string     `json:"name"`
	LeftMarker  string     `json:"leftMarker"`
	RightMarker string     `json:"rightMarker"`
	Left        Position3D `json:"left"`
	Right       Position3D `json:"right"`
	Pose        Pose       `json:"pose"`
	Width       float64    `json:"width"`
	State       GateState  `json:"state"`
}

// GateTransition records a change of a gate's state caused by one vehicle pose.
type GateTransition struct {
	RunID       string    `json:"runId"`
	Index       int       `json:"index"`
	Name        string    `json:"name"`
	From        GateState `json:"from"`
	To          GateState `json:"to"`
	VehiclePose Pose      `json:"vehiclePose"`
	Time        time.Time `json:"time"`
	Tick        uint64    `json:"tick"`
}
