// internal/storage/storage_test.go
package storage_test

import (
	"testing"

	"github.com/OCAP2/navscore/internal/storage"
	"github.com/OCAP2/navscore/pkg/core"
	"github.com/stretchr/testify/assert"
)

var _ storage.Backend = storage.Nop{}

func TestNop(t *testing.T) {
	var b storage.Backend = storage.Nop{}

	assert.NoError(t, b.Init())
	assert.NoError(t, b.StartRun(&core.Run{ID: "x"}))
	assert.NoError(t, b.RecordTransition(&core.GateTransition{}))
	assert.NoError(t, b.EndRun(&core.RunSummary{}))
	assert.NoError(t, b.Close())

	_, ok := b.(storage.Uploadable)
	assert.False(t, ok)
}
