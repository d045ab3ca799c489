package model

import (
	"database/sql"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Run{},
	&GateResult{},
	&GateTransition{},
}

// Run is one scoring session of a vehicle over a course
type Run struct {
	gorm.Model
	RunID      string         `json:"runId" gorm:"size:36;uniqueIndex:idx_run_run_id"`
	CourseName string         `json:"courseName" gorm:"size:200"`
	Vehicle    string         `json:"vehicle" gorm:"size:200"`
	StartTime  time.Time      `json:"startTime" gorm:"type:timestamptz;index:idx_run_start"`
	EndTime    sql.NullTime   `json:"endTime" gorm:"type:timestamptz"`
	Ticks      uint64         `json:"ticks"`
	Crossed    int            `json:"crossed"`
	Invalid    int            `json:"invalid"`
	Gates      datatypes.JSON `json:"gates" gorm:"type:jsonb;default:'[]'"` // gate layout at run start

	GateResults     []GateResult
	GateTransitions []GateTransition
}

func (*Run) TableName() string {
	return "runs"
}

// GateResult is the final state of one gate in a run
type GateResult struct {
	gorm.Model
	RunID       uint            `json:"runId" gorm:"index:idx_gateresult_run_id"`
	Run         Run             `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:RunID;"`
	GateIndex   int             `json:"gateIndex"`
	Name        string          `json:"name" gorm:"size:200"`
	LeftMarker  string          `json:"leftMarker" gorm:"size:200"`
	RightMarker string          `json:"rightMarker" gorm:"size:200"`
	Segment     string          `json:"segment"` // WKT LINESTRING Z from left to right marker
	Width       float64         `json:"width"`
	Yaw         sql.NullFloat64 `json:"yaw"` // null when the markers coincide
	State       string          `json:"state" gorm:"size:32"`
}

func (*GateResult) TableName() string {
	return "gate_results"
}

// GateTransition is a gate state change caused by a vehicle pose
type GateTransition struct {
	ID              uint            `json:"id" gorm:"primarykey;autoIncrement;"`
	Time            time.Time       `json:"time" gorm:"type:timestamptz;"`
	RunID           uint            `json:"runId" gorm:"index:idx_gatetransition_run_id"`
	Run             Run             `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:RunID;"`
	Tick            uint64          `json:"tick"`
	GateIndex       int             `json:"gateIndex"`
	GateName        string          `json:"gateName" gorm:"size:200"`
	FromState       string          `json:"from" gorm:"size:32"`
	ToState         string          `json:"to" gorm:"size:32"`
	VehiclePosition string          `json:"vehiclePosition"` // WKT POINT Z
	VehicleYaw      sql.NullFloat64 `json:"vehicleYaw"`
}

func (*GateTransition) TableName() string {
	return "gate_transitions"
}
