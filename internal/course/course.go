// Package course evaluates a vehicle against an ordered list of gates.
//
// An Evaluator is not safe for concurrent use. Callers serialize pose updates.
package course

import (
	"time"

	"github.com/OCAP2/navscore/internal/crossing"
	"github.com/OCAP2/navscore/internal/gate"
	"github.com/OCAP2/navscore/pkg/core"
)

// MarkerSource yields the current position of a gate marker.
// ok is false while the marker is not known.
type MarkerSource interface {
	Position() (pos core.Position3D, ok bool)
}

// FixedMarker is a marker that never moves.
type FixedMarker core.Position3D

func (m FixedMarker) Position() (core.Position3D, bool) {
	return core.Position3D(m), true
}

// Gate describes one gate of a course.
type Gate struct {
	Name        string
	LeftMarker  string
	RightMarker string
	Left        MarkerSource
	Right       MarkerSource
}

type gateRun struct {
	def         Gate
	left, right core.Position3D
	geometry    gate.Geometry
	resolved    bool
	life        crossing.Lifecycle
}

// refresh pulls new marker positions. A missing source keeps the previous geometry.
func (g *gateRun) refresh() {
	left, lok := g.def.Left.Position()
	right, rok := g.def.Right.Position()
	if !lok || !rok {
		return
	}
	g.left, g.right = left, right
	g.geometry = gate.Recompute(left, right)
	g.resolved = true
}

func (g *gateRun) classify(vehicle core.Pose) core.GateState {
	if !g.resolved {
		return core.VehicleOutside
	}
	return crossing.Classify(g.geometry, vehicle)
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithObserver registers fn to be called for every gate state change, in gate order.
func WithObserver(fn func(core.GateTransition)) Option {
	return func(e *Evaluator) {
		e.observers = append(e.observers, fn)
	}
}

// WithRunID stamps emitted transitions with id.
func WithRunID(id string) Option {
	return func(e *Evaluator) {
		e.runID = id
	}
}

// WithClock overrides the time source used for transitions.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		e.now = now
	}
}

// Evaluator holds the crossing state of every gate in a course.
type Evaluator struct {
	gates     []*gateRun
	observers []func(core.GateTransition)
	runID     string
	now       func() time.Time
	ticks     uint64
}

// New builds an evaluator over gates. Gate order is presentation order only;
// every gate is evaluated independently on each pose.
func New(gates []Gate, opts ...Option) *Evaluator {
	e := &Evaluator{now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	for _, def := range gates {
		g := &gateRun{def: def, life: crossing.Start()}
		g.refresh()
		e.gates = append(e.gates, g)
	}
	return e
}

// OnVehiclePoseUpdate runs one evaluation pass and returns the transitions it caused.
// Terminal gates are skipped, so their geometry stays as it was when they finished.
func (e *Evaluator) OnVehiclePoseUpdate(vehicle core.Pose) []core.GateTransition {
	e.ticks++
	var out []core.GateTransition

	for i, g := range e.gates {
		if crossing.Terminal(g.life) {
			continue
		}
		g.refresh()

		from := g.life.State()
		g.life = crossing.Step(g.life, g.classify(vehicle))
		if to := g.life.State(); to != from {
			tr := core.GateTransition{
				RunID:       e.runID,
				Index:       i,
				Name:        g.def.Name,
				From:        from,
				To:          to,
				VehiclePose: vehicle,
				Time:        e.now(),
				Tick:        e.ticks,
			}
			out = append(out, tr)
			for _, fn := range e.observers {
				fn(tr)
			}
		}
	}
	return out
}

// Len returns the number of gates.
func (e *Evaluator) Len() int {
	return len(e.gates)
}

// Ticks returns the number of poses evaluated so far.
func (e *Evaluator) Ticks() uint64 {
	return e.ticks
}

// State returns the state of gate i. It panics if i is out of range.
func (e *Evaluator) State(i int) core.GateState {
	return e.gates[i].life.State()
}

// Geometry returns the last computed geometry of gate i.
func (e *Evaluator) Geometry(i int) gate.Geometry {
	return e.gates[i].geometry
}

// Gates returns a snapshot of every gate, in order.
func (e *Evaluator) Gates() []core.GateSnapshot {
	out := make([]core.GateSnapshot, 0, len(e.gates))
	for i, g := range e.gates {
		out = append(out, core.GateSnapshot{
			Index:       i,
			Name:        g.def.Name,
			LeftMarker:  g.def.LeftMarker,
			RightMarker: g.def.RightMarker,
			Left:        g.left,
			Right:       g.right,
			Pose:        g.geometry.Pose,
			Width:       g.geometry.Width,
			State:       g.life.State(),
		})
	}
	return out
}

// Counts returns how many gates are crossed, invalid and still live.
func (e *Evaluator) Counts() (crossed, invalid, live int) {
	for _, g := range e.gates {
		switch g.life.(type) {
		case crossing.Crossed:
			crossed++
		case crossing.Invalid:
			invalid++
		default:
			live++
		}
	}
	return crossed, invalid, live
}

// Done reports whether every gate has reached a terminal state.
func (e *Evaluator) Done() bool {
	_, _, live := e.Counts()
	return live == 0
}
