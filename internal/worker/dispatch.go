package worker

import (
	"fmt"

	"github.com/OCAP2/navscore/internal/dispatcher"
)

// RegisterHandlers registers all command handlers with the dispatcher.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	m.drain = d.Drain

	// World updates share one ordered lane; a marker move must land before
	// the next vehicle pose is evaluated.
	world := dispatcher.Lane(WorldLane, m.deps.LaneSize)
	d.Register(":MARKER:POS:", m.handleMarkerPosition, world, dispatcher.Blocking(), dispatcher.Logged())
	d.Register(":VEHICLE:POSE:", m.handleVehiclePose, world, dispatcher.Blocking(), dispatcher.Logged())

	// Run control - sync, after the world lane has caught up
	d.Register(":COURSE:GATE:", m.handleGateDefinition, dispatcher.Logged())
	d.Register(":RUN:START:", m.handleRunStart, dispatcher.Logged())
	d.Register(":RUN:END:", m.handleRunEnd, dispatcher.Logged())

	// Queries - sync
	d.Register(":SCORE:", m.handleScore)
	d.Register(":STATUS:", m.handleStatus)
}

func (m *Manager) handleMarkerPosition(e dispatcher.Event) (any, error) {
	obj, err := m.deps.Parser.ParseMarkerPosition(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to update marker: %w", err)
	}
	m.deps.Scoring.OnMarker(obj.Name, obj.Position)
	return nil, nil
}

func (m *Manager) handleVehiclePose(e dispatcher.Event) (any, error) {
	obj, err := m.deps.Parser.ParseVehiclePose(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to update vehicle: %w", err)
	}
	if _, err := m.deps.Scoring.OnVehicle(obj.Name, obj.Pose); err != nil {
		return nil, fmt.Errorf("failed to evaluate pose of %s: %w", obj.Name, err)
	}
	return nil, nil
}

func (m *Manager) handleGateDefinition(e dispatcher.Event) (any, error) {
	gate, err := m.deps.Parser.ParseGateDefinition(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to add gate: %w", err)
	}
	if err := m.deps.Scoring.AddGate(gate); err != nil {
		return nil, err
	}
	return nil, nil
}

func (m *Manager) handleRunStart(dispatcher.Event) (any, error) {
	m.drain()
	run, err := m.deps.Scoring.Start()
	if err != nil {
		return nil, err
	}
	return run.ID, nil
}

func (m *Manager) handleRunEnd(dispatcher.Event) (any, error) {
	m.drain()
	summary, err := m.deps.Scoring.End()
	if summary == nil {
		return nil, err
	}
	if err != nil {
		// The run is over even if storage failed; report the score anyway.
		m.deps.Logger.Error("Run ended with errors", "error", err)
	}
	return m.deps.Scoring.Score()
}

func (m *Manager) handleScore(dispatcher.Event) (any, error) {
	m.drain()
	return m.deps.Scoring.Score()
}

func (m *Manager) handleStatus(dispatcher.Event) (any, error) {
	if m.deps.Monitor == nil {
		return m.deps.Scoring.Status(), nil
	}
	return m.deps.Monitor.GetStatus(), nil
}
