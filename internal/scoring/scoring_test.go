package scoring

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/OCAP2/navscore/internal/config"
	"github.com/OCAP2/navscore/internal/storage/memory"
	"github.com/OCAP2/navscore/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStorage records every call and can be told to fail.
type fakeStorage struct {
	mu          sync.Mutex
	runs        []*core.Run
	transitions []core.GateTransition
	summaries   []*core.RunSummary
	exportPath  string
	failStart   error
	failEnd     error
}

func (f *fakeStorage) Init() error  { return nil }
func (f *fakeStorage) Close() error { return nil }

func (f *fakeStorage) StartRun(run *core.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, run)
	return f.failStart
}

func (f *fakeStorage) RecordTransition(t *core.GateTransition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transitions = append(f.transitions, *t)
	return nil
}

func (f *fakeStorage) EndRun(s *core.RunSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries = append(f.summaries, s)
	return f.failEnd
}

func (f *fakeStorage) GetExportedFilePath() string { return f.exportPath }

func (f *fakeStorage) GetExportMetadata() core.UploadMetadata {
	return core.UploadMetadata{CourseName: "harbour", Vehicle: "wamv", Crossed: 1}
}

type fakeUploader struct {
	paths []string
	meta  []core.UploadMetadata
	err   error
}

func (u *fakeUploader) Upload(path string, meta core.UploadMetadata) error {
	u.paths = append(u.paths, path)
	u.meta = append(u.meta, meta)
	return u.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCourse() config.CourseConfig {
	return config.CourseConfig{
		Name:    "harbour",
		Vehicle: "wamv",
		Gates: []config.GateConfig{
			{Name: "start", LeftMarker: "red_1", RightMarker: "green_1"},
		},
	}
}

func newTestService(t *testing.T, deps Dependencies) *Service {
	t.Helper()
	if deps.Course.Vehicle == "" {
		deps.Course = testCourse()
	}
	if deps.Logger == nil {
		deps.Logger = quietLogger()
	}
	if deps.Now == nil {
		clock := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
		deps.Now = func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		}
	}
	svc, err := NewService(deps)
	require.NoError(t, err)
	return svc
}

// placeMarkers puts the start gate across the X axis at x=0, crossed along +X.
func placeMarkers(svc *Service) {
	svc.OnMarker("red_1", core.Position3D{X: 0, Y: -5})
	svc.OnMarker("green_1", core.Position3D{X: 0, Y: 5})
}

func at(x, y float64) core.Pose {
	return core.Pose{Position: core.Position3D{X: x, Y: y}}
}

func TestService_ForwardCrossing(t *testing.T) {
	store := &fakeStorage{}
	svc := newTestService(t, Dependencies{Storage: store})
	placeMarkers(svc)

	run, err := svc.Start()
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, run.ID, svc.CurrentRunID())
	require.Len(t, run.Gates, 1)
	assert.Equal(t, "start", run.Gates[0].Name)

	_, err = svc.OnVehicle("wamv", at(-1, 0))
	require.NoError(t, err)
	transitions, err := svc.OnVehicle("wamv", at(1, 0))
	require.NoError(t, err)

	require.Len(t, transitions, 1)
	assert.Equal(t, core.Crossed, transitions[0].To)
	assert.Equal(t, run.ID, transitions[0].RunID)

	report, err := svc.Score()
	require.NoError(t, err)
	assert.True(t, report.Active)
	assert.Equal(t, 1, report.Crossed)
	assert.Equal(t, 0, report.Live)
	assert.Equal(t, uint64(2), report.Ticks)

	// Observer forwards every change, including the first BEFORE.
	assert.Len(t, store.transitions, 2)
	assert.Len(t, store.runs, 1)
}

func TestService_BackwardInvalidates(t *testing.T) {
	svc := newTestService(t, Dependencies{})
	placeMarkers(svc)
	_, err := svc.Start()
	require.NoError(t, err)

	svc.OnVehicle("wamv", at(1, 0))
	svc.OnVehicle("wamv", at(-1, 0))

	summary, err := svc.End()
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Crossed)
	assert.Equal(t, 1, summary.Invalid)
	assert.Equal(t, core.Invalid, summary.Gates[0].State)
	assert.Empty(t, svc.CurrentRunID())
}

func TestService_MissingMarkerDisables(t *testing.T) {
	svc := newTestService(t, Dependencies{})
	svc.OnMarker("red_1", core.Position3D{X: 0, Y: -5})

	_, err := svc.Start()
	assert.ErrorIs(t, err, ErrScoringDisabled)
	assert.Contains(t, err.Error(), "green_1")
	assert.False(t, svc.Active())

	_, err = svc.Score()
	assert.ErrorIs(t, err, ErrScoringDisabled)

	st := svc.Status()
	assert.False(t, st.Enabled)
	assert.NotEmpty(t, st.Error)

	// Placing the marker and starting again re-enables scoring.
	svc.OnMarker("green_1", core.Position3D{X: 0, Y: 5})
	_, err = svc.Start()
	require.NoError(t, err)
	assert.True(t, svc.Status().Enabled)
}

func TestService_InvalidCourseDisables(t *testing.T) {
	svc := newTestService(t, Dependencies{Course: config.CourseConfig{Vehicle: "wamv"}})

	_, err := svc.Start()
	assert.ErrorIs(t, err, ErrScoringDisabled)
	assert.ErrorIs(t, err, config.ErrMissingGates)
}

func TestService_IgnoresOtherVehicles(t *testing.T) {
	svc := newTestService(t, Dependencies{})
	placeMarkers(svc)
	_, err := svc.Start()
	require.NoError(t, err)

	svc.OnVehicle("jetski", at(-1, 0))
	svc.OnVehicle("jetski", at(1, 0))

	report, err := svc.Score()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), report.Ticks)
	assert.Equal(t, 0, report.Crossed)

	pose, ok := svc.deps.Vehicles.Get("jetski")
	require.True(t, ok)
	assert.Equal(t, 1.0, pose.Position.X)
}

func TestService_NoEvaluationBeforeStart(t *testing.T) {
	svc := newTestService(t, Dependencies{})
	placeMarkers(svc)

	transitions, err := svc.OnVehicle("wamv", at(-1, 0))
	require.NoError(t, err)
	assert.Nil(t, transitions)

	_, err = svc.Score()
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestService_EndWithoutStart(t *testing.T) {
	svc := newTestService(t, Dependencies{})

	_, err := svc.End()
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestService_StartTwice(t *testing.T) {
	svc := newTestService(t, Dependencies{})
	placeMarkers(svc)

	_, err := svc.Start()
	require.NoError(t, err)
	_, err = svc.Start()
	assert.ErrorIs(t, err, ErrAlreadyStarted)
}

func TestService_AddGate(t *testing.T) {
	svc := newTestService(t, Dependencies{})
	placeMarkers(svc)
	svc.OnMarker("red_2", core.Position3D{X: 10, Y: -5})
	svc.OnMarker("green_2", core.Position3D{X: 10, Y: 5})

	require.NoError(t, svc.AddGate(config.GateConfig{LeftMarker: "red_2", RightMarker: "green_2"}))

	run, err := svc.Start()
	require.NoError(t, err)
	require.Len(t, run.Gates, 2)
	assert.Equal(t, "gate_1", run.Gates[1].Name)

	err = svc.AddGate(config.GateConfig{LeftMarker: "a", RightMarker: "b"})
	assert.ErrorIs(t, err, ErrAlreadyStarted)
}

func TestService_ScoreAfterEnd(t *testing.T) {
	svc := newTestService(t, Dependencies{})
	placeMarkers(svc)
	run, err := svc.Start()
	require.NoError(t, err)

	svc.OnVehicle("wamv", at(-1, 0))
	svc.OnVehicle("wamv", at(1, 0))
	_, err = svc.End()
	require.NoError(t, err)

	report, err := svc.Score()
	require.NoError(t, err)
	assert.False(t, report.Active)
	assert.Equal(t, run.ID, report.RunID)
	assert.Equal(t, 1, report.Crossed)
	assert.Equal(t, 0, report.Live)
}

func TestService_MarkerMovesDuringRun(t *testing.T) {
	svc := newTestService(t, Dependencies{})
	placeMarkers(svc)
	_, err := svc.Start()
	require.NoError(t, err)

	svc.OnVehicle("wamv", at(-1, 0))
	// Shift the gate forward: the vehicle is now still before it.
	svc.OnMarker("red_1", core.Position3D{X: 5, Y: -5})
	svc.OnMarker("green_1", core.Position3D{X: 5, Y: 5})
	svc.OnVehicle("wamv", at(1, 0))

	report, err := svc.Score()
	require.NoError(t, err)
	assert.Equal(t, 0, report.Crossed)
	assert.Equal(t, core.VehicleBefore, report.Gates[0].State)
}

func TestService_Status(t *testing.T) {
	svc := newTestService(t, Dependencies{})
	placeMarkers(svc)

	st := svc.Status()
	assert.True(t, st.Enabled)
	assert.Equal(t, 0, st.Runs)
	assert.Equal(t, 2, st.Markers)

	_, err := svc.Start()
	require.NoError(t, err)
	svc.OnVehicle("wamv", at(-1, 0))

	st = svc.Status()
	assert.Equal(t, 1, st.Runs)
	assert.NotEmpty(t, st.RunID)
	assert.Equal(t, uint64(1), st.Ticks)
	assert.Equal(t, 1, st.Live)
}

func TestService_StorageStartFailureIsNotFatal(t *testing.T) {
	store := &fakeStorage{failStart: errors.New("disk full")}
	svc := newTestService(t, Dependencies{Storage: store})
	placeMarkers(svc)

	_, err := svc.Start()
	require.NoError(t, err)
	assert.True(t, svc.Active())
}

func TestService_EndRunFailure(t *testing.T) {
	store := &fakeStorage{failEnd: errors.New("connection reset"), exportPath: "/tmp/x.json"}
	up := &fakeUploader{}
	svc := newTestService(t, Dependencies{Storage: store, Uploader: up})
	placeMarkers(svc)
	_, err := svc.Start()
	require.NoError(t, err)

	summary, err := svc.End()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	require.NotNil(t, summary)
	assert.False(t, svc.Active())
	assert.Empty(t, up.paths, "nothing is uploaded when storage fails")
}

func TestService_UploadsExport(t *testing.T) {
	store := &fakeStorage{exportPath: "/tmp/harbour.json.gz"}
	up := &fakeUploader{}
	svc := newTestService(t, Dependencies{Storage: store, Uploader: up})
	placeMarkers(svc)
	_, err := svc.Start()
	require.NoError(t, err)

	_, err = svc.End()
	require.NoError(t, err)
	assert.Equal(t, []string{"/tmp/harbour.json.gz"}, up.paths)
	assert.Equal(t, "harbour", up.meta[0].CourseName)
}

func TestService_UploadFailure(t *testing.T) {
	store := &fakeStorage{exportPath: "/tmp/harbour.json"}
	up := &fakeUploader{err: errors.New("401")}
	svc := newTestService(t, Dependencies{Storage: store, Uploader: up})
	placeMarkers(svc)
	_, err := svc.Start()
	require.NoError(t, err)

	summary, err := svc.End()
	assert.ErrorContains(t, err, "401")
	assert.NotNil(t, summary)
}

func TestService_MemoryExport(t *testing.T) {
	dir := t.TempDir()
	store := memory.New(config.MemoryConfig{OutputDir: dir})
	require.NoError(t, store.Init())
	svc := newTestService(t, Dependencies{Storage: store})
	placeMarkers(svc)

	_, err := svc.Start()
	require.NoError(t, err)
	svc.OnVehicle("wamv", at(-1, 0))
	svc.OnVehicle("wamv", at(1, 0))
	_, err = svc.End()
	require.NoError(t, err)

	path := store.GetExportedFilePath()
	require.NotEmpty(t, path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"CROSSED"`)
	assert.Len(t, store.Transitions(), 2)

	meta := store.GetExportMetadata()
	assert.Equal(t, 1, meta.Crossed)
	assert.Equal(t, "wamv", meta.Vehicle)
}

func TestService_CoincidentMarkersWarn(t *testing.T) {
	var buf bytes.Buffer
	svc := newTestService(t, Dependencies{Logger: slog.New(slog.NewTextHandler(&buf, nil))})
	svc.OnMarker("red_1", core.Position3D{X: 2, Y: 2})
	svc.OnMarker("green_1", core.Position3D{X: 2, Y: 2})

	_, err := svc.Start()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Gate markers coincide")
	assert.Contains(t, buf.String(), "gate=start")

	// the gate never leaves OUTSIDE
	svc.OnVehicle("wamv", at(-1, 2))
	svc.OnVehicle("wamv", at(3, 2))
	report, err := svc.Score()
	require.NoError(t, err)
	assert.Equal(t, 0, report.Crossed)
	assert.Equal(t, core.VehicleOutside, report.Gates[0].State)
}
