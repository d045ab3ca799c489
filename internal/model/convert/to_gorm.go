// Package convert provides functions to convert core models to GORM models
package convert

import (
	"database/sql"
	"encoding/json"

	"github.com/OCAP2/navscore/internal/geo"
	"github.com/OCAP2/navscore/internal/model"
	"github.com/OCAP2/navscore/pkg/core"
	"gorm.io/datatypes"
)

// yawToNull converts a yaw to a nullable column value; poses without heading are stored as NULL.
func yawToNull(p core.Pose) sql.NullFloat64 {
	if !p.HasHeading() {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: p.Yaw, Valid: true}
}

// gatesToJSON converts gate snapshots to datatypes.JSON for DB storage.
func gatesToJSON(gates []core.GateSnapshot) datatypes.JSON {
	if len(gates) == 0 {
		return datatypes.JSON("[]")
	}
	data, err := json.Marshal(gates)
	if err != nil {
		return datatypes.JSON("[]")
	}
	return datatypes.JSON(data)
}

// CoreToRun converts a core.Run to a GORM model.Run.
// core.Run.ID maps to the run UUID, the GORM ID is assigned by the database.
func CoreToRun(r core.Run) model.Run {
	return model.Run{
		RunID:      r.ID,
		CourseName: r.CourseName,
		Vehicle:    r.Vehicle,
		StartTime:  r.StartTime,
		Gates:      gatesToJSON(r.Gates),
	}
}

// ApplySummary copies the outcome of a run onto its GORM row.
func ApplySummary(run *model.Run, s core.RunSummary) {
	run.EndTime = sql.NullTime{Time: s.EndTime, Valid: !s.EndTime.IsZero()}
	run.Ticks = s.Ticks
	run.Crossed = s.Crossed
	run.Invalid = s.Invalid
}

// CoreToGateResult converts a final gate snapshot to a GORM model.GateResult.
// A gate whose markers coincide is stored without a segment.
func CoreToGateResult(s core.GateSnapshot, runID uint) model.GateResult {
	segment, _ := geo.GateSegmentWKT(s.Left, s.Right)
	return model.GateResult{
		RunID:       runID,
		GateIndex:   s.Index,
		Name:        s.Name,
		LeftMarker:  s.LeftMarker,
		RightMarker: s.RightMarker,
		Segment:     segment,
		Width:       s.Width,
		Yaw:         yawToNull(s.Pose),
		State:       string(s.State),
	}
}

// CoreToGateTransition converts a core.GateTransition to a GORM model.GateTransition.
func CoreToGateTransition(t core.GateTransition, runID uint) model.GateTransition {
	position, _ := geo.PointWKT(t.VehiclePose.Position)
	return model.GateTransition{
		Time:            t.Time,
		RunID:           runID,
		Tick:            t.Tick,
		GateIndex:       t.Index,
		GateName:        t.Name,
		FromState:       string(t.From),
		ToState:         string(t.To),
		VehiclePosition: position,
		VehicleYaw:      yawToNull(t.VehiclePose),
	}
}
