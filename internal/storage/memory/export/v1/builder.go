package v1

import (
	"github.com/OCAP2/navscore/internal/util"
	"github.com/OCAP2/navscore/pkg/core"
)

// RunData contains all the data needed to build an export
type RunData struct {
	Run         *core.Run
	Summary     *core.RunSummary
	Transitions []core.GateTransition
}

func triple(p core.Position3D) [3]float64 {
	return [3]float64{p.X, p.Y, p.Z}
}

// Build creates an Export from the run data.
// Summary may be nil for a run that has not ended, in which case the gates
// come from the run start snapshot.
func Build(data *RunData) Export {
	export := Export{
		FormatVersion: FormatVersion,
		Gates:         make([]Gate, 0),
		Transitions:   make([]Transition, 0, len(data.Transitions)),
	}

	gates := []core.GateSnapshot(nil)
	if data.Run != nil {
		export.RunID = data.Run.ID
		export.CourseName = data.Run.CourseName
		export.Vehicle = data.Run.Vehicle
		export.StartTime = data.Run.StartTime
		gates = data.Run.Gates
	}
	if data.Summary != nil {
		export.EndTime = data.Summary.EndTime
		export.Ticks = data.Summary.Ticks
		export.Crossed = data.Summary.Crossed
		export.Invalid = data.Summary.Invalid
		gates = data.Summary.Gates
		if !export.StartTime.IsZero() && export.EndTime.After(export.StartTime) {
			export.DurationSeconds = export.EndTime.Sub(export.StartTime).Seconds()
		}
	}

	decided := make(map[int]uint64)
	for _, t := range data.Transitions {
		export.Transitions = append(export.Transitions, Transition{
			Tick:     t.Tick,
			Time:     t.Time,
			Gate:     t.Index,
			From:     string(t.From),
			To:       string(t.To),
			Position: triple(t.VehiclePose.Position),
		})
		decided[t.Index] = t.Tick
	}

	for _, g := range gates {
		gate := Gate{
			Index:       g.Index,
			Name:        g.Name,
			LeftMarker:  g.LeftMarker,
			RightMarker: g.RightMarker,
			Left:        triple(g.Left),
			Right:       triple(g.Right),
			Center:      triple(g.Pose.Position),
			Width:       g.Width,
			State:       string(g.State),
			DecidedAt:   decided[g.Index],
		}
		if g.Pose.HasHeading() {
			heading := util.RadToDeg(g.Pose.Yaw)
			gate.Heading = &heading
		}
		export.Gates = append(export.Gates, gate)
	}

	return export
}
