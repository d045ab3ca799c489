package crossing

import "github.com/OCAP2/navscore/pkg/core"

// Lifecycle is the per-gate crossing state.
// It is one of Active, Crossed or Invalid; terminal variants carry nothing that could regress.
type Lifecycle interface {
	State() core.GateState
	lifecycle()
}

// Active is a gate that is still being evaluated. Class is the latest classification.
type Active struct {
	Class core.GateState
}

// Crossed is a gate the vehicle passed through in the forward direction.
type Crossed struct{}

// Invalid is a gate the vehicle passed through backwards.
type Invalid struct{}

func (a Active) State() core.GateState { return a.Class }
func (Crossed) State() core.GateState  { return core.Crossed }
func (Invalid) State() core.GateState  { return core.Invalid }

func (Active) lifecycle()  {}
func (Crossed) lifecycle() {}
func (Invalid) lifecycle() {}

// Start is the lifecycle of a gate before the vehicle has been observed.
// Outside never forms an edge with the next classification, so the first
// Step simply adopts it.
func Start() Lifecycle {
	return Active{Class: core.VehicleOutside}
}

// Step advances l with a new classification.
func Step(l Lifecycle, class core.GateState) Lifecycle {
	a, ok := l.(Active)
	if !ok {
		return l
	}
	switch next := Advance(a.Class, class); next {
	case core.Crossed:
		return Crossed{}
	case core.Invalid:
		return Invalid{}
	default:
		return Active{Class: next}
	}
}

// Terminal reports whether l can no longer change.
func Terminal(l Lifecycle) bool {
	_, ok := l.(Active)
	return !ok
}
