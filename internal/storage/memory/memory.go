// internal/storage/memory/memory.go
package memory

import (
	"fmt"
	"sync"

	"github.com/OCAP2/navscore/internal/config"
	"github.com/OCAP2/navscore/pkg/core"
)

// Backend stores run data in memory and exports to JSON
type Backend struct {
	cfg         config.MemoryConfig
	run         *core.Run
	summary     *core.RunSummary
	transitions []core.GateTransition

	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg: cfg,
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartRun begins recording a new run
func (b *Backend) StartRun(run *core.Run) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.run = run
	b.summary = nil
	b.transitions = nil
	b.lastExportPath = ""

	return nil
}

// RecordTransition records a gate state change
func (b *Backend) RecordTransition(t *core.GateTransition) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.run == nil {
		return fmt.Errorf("no run started")
	}
	b.transitions = append(b.transitions, *t)
	return nil
}

// EndRun finalizes and exports the run data
func (b *Backend) EndRun(summary *core.RunSummary) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.run == nil {
		return fmt.Errorf("no run started")
	}
	b.summary = summary

	return b.exportJSON()
}

// Transitions returns a copy of the transitions recorded for the current run
func (b *Backend) Transitions() []core.GateTransition {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]core.GateTransition, len(b.transitions))
	copy(out, b.transitions)
	return out
}

// GetExportedFilePath returns the path of the last exported file
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// GetExportMetadata returns metadata about the last export
func (b *Backend) GetExportMetadata() core.UploadMetadata {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.run == nil {
		return core.UploadMetadata{}
	}

	meta := core.UploadMetadata{
		CourseName: b.run.CourseName,
		Vehicle:    b.run.Vehicle,
		RunID:      b.run.ID,
	}
	if b.summary != nil {
		meta.Crossed = b.summary.Crossed
		meta.Invalid = b.summary.Invalid
		if b.summary.EndTime.After(b.run.StartTime) {
			meta.RunDuration = b.summary.EndTime.Sub(b.run.StartTime).Seconds()
		}
	}
	return meta
}
