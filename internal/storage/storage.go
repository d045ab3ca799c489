// internal/storage/storage.go
package storage

import "github.com/OCAP2/navscore/pkg/core"

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Run management
	StartRun(run *core.Run) error
	EndRun(summary *core.RunSummary) error

	// State recording
	RecordTransition(t *core.GateTransition) error
}

// Uploadable is an optional interface for storage backends that produce
// files suitable for upload to a scoreboard server.
type Uploadable interface {
	GetExportedFilePath() string
	GetExportMetadata() core.UploadMetadata
}

// Nop is a Backend that stores nothing.
type Nop struct{}

func (Nop) Init() error                                 { return nil }
func (Nop) Close() error                                { return nil }
func (Nop) StartRun(*core.Run) error                    { return nil }
func (Nop) EndRun(*core.RunSummary) error               { return nil }
func (Nop) RecordTransition(*core.GateTransition) error { return nil }
