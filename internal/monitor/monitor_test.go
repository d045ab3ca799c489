package monitor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/OCAP2/navscore/internal/scoring"
	"github.com/OCAP2/navscore/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueues map[string]int

func (f fakeQueues) QueueDepths() map[string]int { return f }

type fakeScoring scoring.Status

func (f fakeScoring) Status() scoring.Status { return scoring.Status(f) }

type pendingBackend struct {
	storage.Nop
	pending int
}

func (b pendingBackend) Pending() int { return b.pending }

var fixedTime = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestService(dir string) *Service {
	return NewService(Dependencies{
		Queues:    fakeQueues{"world": 3},
		Scoring:   fakeScoring{Enabled: true, RunID: "run-1", Crossed: 2, Live: 1},
		Storage:   pendingBackend{pending: 7},
		StatusDir: dir,
		Interval:  10 * time.Millisecond,
		Now:       func() time.Time { return fixedTime },
	})
}

func TestGetStatus(t *testing.T) {
	s := newTestService("")

	st := s.GetStatus()
	assert.Equal(t, fixedTime, st.Time)
	assert.Equal(t, 3, st.Lanes["world"])
	assert.Equal(t, "run-1", st.Scoring.RunID)
	assert.Equal(t, 2, st.Scoring.Crossed)
	assert.Equal(t, 7, st.Pending)
}

func TestGetStatus_NoDependencies(t *testing.T) {
	s := NewService(Dependencies{})

	st := s.GetStatus()
	assert.NotNil(t, st.Lanes)
	assert.Equal(t, 0, st.Pending)
	assert.False(t, st.Scoring.Enabled)
}

func TestStatusJSON(t *testing.T) {
	s := newTestService("")

	out, err := s.StatusJSON()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, float64(7), decoded["pendingWrites"])
	assert.Equal(t, map[string]any{"world": float64(3)}, decoded["lanes"])
}

func TestWriteStatusFile(t *testing.T) {
	dir := t.TempDir()
	s := newTestService(dir)

	require.NoError(t, s.WriteStatusFile())

	data, err := os.ReadFile(filepath.Join(dir, StatusFileName))
	require.NoError(t, err)
	var st Status
	require.NoError(t, json.Unmarshal(data, &st))
	assert.Equal(t, 2, st.Scoring.Crossed)
}

func TestWriteStatusFile_Disabled(t *testing.T) {
	s := newTestService("")
	assert.NoError(t, s.WriteStatusFile())
}

func TestStartStop(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "status")
	s := newTestService(dir)

	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	// Second start is a no-op.
	require.NoError(t, s.Start())

	assert.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, StatusFileName))
		return err == nil
	}, time.Second, 10*time.Millisecond)

	s.Stop()
	assert.False(t, s.IsRunning())
	s.Stop()
}
