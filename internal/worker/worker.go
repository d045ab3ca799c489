package worker

import (
	"fmt"
	"log/slog"

	"github.com/OCAP2/navscore/internal/monitor"
	"github.com/OCAP2/navscore/internal/parser"
	"github.com/OCAP2/navscore/internal/scoring"
)

// WorldLane is the dispatcher lane carrying marker and vehicle updates.
const WorldLane = "world"

// DefaultLaneSize is the world lane capacity.
const DefaultLaneSize = 10000

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Scoring  *scoring.Service
	Parser   *parser.Parser
	Monitor  *monitor.Service // nil falls back to the scoring status
	Logger   *slog.Logger
	LaneSize int
}

// Manager turns dispatcher events into scoring calls.
type Manager struct {
	deps  Dependencies
	drain func()
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies) (*Manager, error) {
	if deps.Scoring == nil {
		return nil, fmt.Errorf("worker: scoring service is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Parser == nil {
		deps.Parser = parser.NewParser(deps.Logger, "")
	}
	if deps.LaneSize <= 0 {
		deps.LaneSize = DefaultLaneSize
	}
	return &Manager{
		deps:  deps,
		drain: func() {},
	}, nil
}
