// Package scoring runs a course evaluator against the live world state and
// reports every gate state change to storage.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OCAP2/navscore/internal/cache"
	"github.com/OCAP2/navscore/internal/config"
	"github.com/OCAP2/navscore/internal/course"
	"github.com/OCAP2/navscore/internal/gate"
	"github.com/OCAP2/navscore/internal/storage"
	"github.com/OCAP2/navscore/pkg/core"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/OCAP2/navscore/internal/scoring"

var (
	// ErrScoringDisabled is returned when the course cannot be scored: a bad
	// course definition or a gate marker missing from the world.
	ErrScoringDisabled = errors.New("score has been disabled")
	// ErrNotStarted is returned when no run is in progress.
	ErrNotStarted = errors.New("no run in progress")
	// ErrAlreadyStarted is returned by Start while a run is in progress.
	ErrAlreadyStarted = errors.New("run already in progress")
)

// Uploader sends an exported score file to a scoreboard server.
type Uploader interface {
	Upload(filePath string, meta core.UploadMetadata) error
}

// Dependencies holds all dependencies for the scoring service.
type Dependencies struct {
	Course   config.CourseConfig
	Markers  *cache.MarkerCache
	Vehicles *cache.VehicleCache
	Storage  storage.Backend
	Uploader Uploader // nil disables uploads
	Logger   *slog.Logger
	Now      func() time.Time
}

// Report is the current or final score of a run.
type Report struct {
	RunID   string              `json:"runId"`
	Course  string              `json:"course"`
	Vehicle string              `json:"vehicle"`
	Active  bool                `json:"active"`
	Ticks   uint64              `json:"ticks"`
	Crossed int                 `json:"crossed"`
	Invalid int                 `json:"invalid"`
	Live    int                 `json:"live"`
	Gates   []core.GateSnapshot `json:"gates"`
}

// Status is a cheap summary for monitoring.
type Status struct {
	Enabled bool   `json:"enabled"`
	RunID   string `json:"runId"`
	Runs    int    `json:"runs"`
	Ticks   uint64 `json:"ticks"`
	Crossed int    `json:"crossed"`
	Invalid int    `json:"invalid"`
	Live    int    `json:"live"`
	Markers int    `json:"markers"`
	Error   string `json:"error,omitempty"`
}

type metrics struct {
	poses       metric.Int64Counter
	transitions metric.Int64Counter
	storageErrs metric.Int64Counter
}

func newMetrics() (*metrics, error) {
	m := otel.Meter(instrumentationName)

	poses, err := m.Int64Counter("scoring.poses.evaluated",
		metric.WithDescription("Vehicle poses evaluated against the course"))
	if err != nil {
		return nil, fmt.Errorf("creating poses counter: %w", err)
	}
	transitions, err := m.Int64Counter("scoring.gate.transitions",
		metric.WithDescription("Gate state changes by target state"))
	if err != nil {
		return nil, fmt.Errorf("creating transitions counter: %w", err)
	}
	storageErrs, err := m.Int64Counter("scoring.storage.errors",
		metric.WithDescription("Failed storage backend calls"))
	if err != nil {
		return nil, fmt.Errorf("creating storage error counter: %w", err)
	}
	return &metrics{poses: poses, transitions: transitions, storageErrs: storageErrs}, nil
}

// Service owns the evaluator of the current run.
// All evaluator access goes through mu; the core has no locking of its own.
type Service struct {
	deps    Dependencies
	log     *slog.Logger
	metrics *metrics

	mu        sync.Mutex
	course    config.CourseConfig
	evaluator *course.Evaluator
	run       *core.Run
	last      *core.RunSummary
	disabled  error

	runID atomic.Value // string, readable without mu for log context
	runs  cache.SafeCounter
}

// NewService creates a new scoring service.
func NewService(deps Dependencies) (*Service, error) {
	if deps.Markers == nil {
		deps.Markers = cache.NewMarkerCache()
	}
	if deps.Vehicles == nil {
		deps.Vehicles = cache.NewVehicleCache()
	}
	if deps.Storage == nil {
		deps.Storage = storage.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	m, err := newMetrics()
	if err != nil {
		return nil, err
	}

	s := &Service{
		deps:    deps,
		log:     deps.Logger,
		metrics: m,
		course:  deps.Course,
	}
	s.runID.Store("")
	return s, nil
}

// CurrentRunID returns the id of the active run, or "" between runs.
func (s *Service) CurrentRunID() string {
	return s.runID.Load().(string)
}

// AddGate appends a gate to the course. Gates cannot change during a run.
func (s *Service) AddGate(g config.GateConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run != nil {
		return ErrAlreadyStarted
	}
	if g.Name == "" {
		g.Name = fmt.Sprintf("gate_%d", len(s.course.Gates))
	}
	s.course.Gates = append(s.course.Gates, g)
	s.log.Info("Gate added", "gate", g.Name, "left", g.LeftMarker, "right", g.RightMarker)
	return nil
}

// Start validates the course, resolves every gate marker and begins a run.
// A missing marker disables scoring until the next successful Start.
func (s *Service) Start() (*core.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run != nil {
		return nil, ErrAlreadyStarted
	}

	if err := s.course.Validate(); err != nil {
		return nil, s.disable(err)
	}

	gates := make([]course.Gate, 0, len(s.course.Gates))
	for _, g := range s.course.Gates {
		for _, name := range []string{g.LeftMarker, g.RightMarker} {
			if _, ok := s.deps.Markers.Get(name); !ok {
				s.log.Error(fmt.Sprintf("Unable to find marker [%s]", name), "gate", g.Name)
				return nil, s.disable(fmt.Errorf("marker %q not found", name))
			}
		}
		left, _ := s.deps.Markers.Get(g.LeftMarker)
		right, _ := s.deps.Markers.Get(g.RightMarker)
		if gate.Recompute(left, right).Degenerate() {
			s.log.Warn("Gate markers coincide, the gate cannot be crossed", "gate", g.Name)
		}
		gates = append(gates, course.Gate{
			Name:        g.Name,
			LeftMarker:  g.LeftMarker,
			RightMarker: g.RightMarker,
			Left:        s.deps.Markers.Source(g.LeftMarker),
			Right:       s.deps.Markers.Source(g.RightMarker),
		})
	}
	s.disabled = nil

	id := uuid.NewString()
	s.evaluator = course.New(gates,
		course.WithRunID(id),
		course.WithClock(s.deps.Now),
		course.WithObserver(s.observe),
	)
	s.run = &core.Run{
		ID:         id,
		CourseName: s.course.Name,
		Vehicle:    s.course.Vehicle,
		StartTime:  s.deps.Now(),
		Gates:      s.evaluator.Gates(),
	}
	s.runID.Store(id)
	s.runs.Inc()

	if err := s.deps.Storage.StartRun(s.run); err != nil {
		s.storageError("StartRun", err)
	}

	s.log.Info("Run started", "course", s.course.Name, "vehicle", s.course.Vehicle, "gates", len(gates))
	return s.run, nil
}

// disable records err as the reason scoring is off and returns it wrapped.
// Callers hold mu.
func (s *Service) disable(err error) error {
	s.disabled = fmt.Errorf("%w: %w", ErrScoringDisabled, err)
	s.log.Error("Score has been disabled", "error", err)
	return s.disabled
}

// OnMarker stores the latest position of a marker.
// Gates pick it up on the next vehicle pose.
func (s *Service) OnMarker(name string, pos core.Position3D) {
	s.deps.Markers.Set(name, pos)
}

// OnVehicle stores the latest pose of a vehicle. A pose of the scored vehicle
// during a run triggers one evaluation pass over the course.
func (s *Service) OnVehicle(name string, pose core.Pose) ([]core.GateTransition, error) {
	s.deps.Vehicles.Set(name, pose)
	if name != s.Vehicle() {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.evaluator == nil || s.run == nil {
		return nil, nil
	}

	s.metrics.poses.Add(context.Background(), 1)
	return s.evaluator.OnVehiclePoseUpdate(pose), nil
}

// Vehicle returns the name of the scored vehicle.
func (s *Service) Vehicle() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.course.Vehicle
}

// observe handles one gate transition. It runs inside OnVehiclePoseUpdate, with mu held.
func (s *Service) observe(t core.GateTransition) {
	switch t.To {
	case core.Crossed:
		s.log.Info("New gate crossed!", "gate", t.Name, "index", t.Index, "tick", t.Tick)
	case core.Invalid:
		s.log.Warn("Transited the gate in the wrong direction. Gate invalidated!", "gate", t.Name, "index", t.Index, "tick", t.Tick)
	default:
		s.log.Debug("Gate state changed", "gate", t.Name, "from", t.From, "to", t.To, "tick", t.Tick)
	}

	s.metrics.transitions.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("to", string(t.To))))

	if err := s.deps.Storage.RecordTransition(&t); err != nil {
		s.storageError("RecordTransition", err)
	}
}

func (s *Service) storageError(op string, err error) {
	s.metrics.storageErrs.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("op", op)))
	s.log.Error("Storage backend failed", "op", op, "error", err)
}

// End finishes the run, stores its summary and uploads the export if the
// backend produced one. The summary is returned even when storage fails.
func (s *Service) End() (*core.RunSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run == nil {
		return nil, ErrNotStarted
	}

	crossed, invalid, _ := s.evaluator.Counts()
	summary := &core.RunSummary{
		Run:     *s.run,
		EndTime: s.deps.Now(),
		Ticks:   s.evaluator.Ticks(),
		Crossed: crossed,
		Invalid: invalid,
		Gates:   s.evaluator.Gates(),
	}

	var errs []error
	if err := s.deps.Storage.EndRun(summary); err != nil {
		s.storageError("EndRun", err)
		errs = append(errs, fmt.Errorf("storing run: %w", err))
	} else if err := s.upload(); err != nil {
		errs = append(errs, err)
	}

	s.log.Info("Run ended", "crossed", crossed, "invalid", invalid, "gates", len(summary.Gates), "ticks", summary.Ticks)

	s.last = summary
	s.run = nil
	s.evaluator = nil
	s.runID.Store("")
	return summary, errors.Join(errs...)
}

func (s *Service) upload() error {
	u, ok := s.deps.Storage.(storage.Uploadable)
	if !ok || s.deps.Uploader == nil {
		return nil
	}
	path := u.GetExportedFilePath()
	if path == "" {
		return nil
	}
	if err := s.deps.Uploader.Upload(path, u.GetExportMetadata()); err != nil {
		s.log.Error("Failed to upload score file", "path", path, "error", err)
		return fmt.Errorf("uploading %s: %w", path, err)
	}
	s.log.Info("Score file uploaded", "path", path)
	return nil
}

// Score returns the running score, or the final score of the last run.
func (s *Service) Score() (Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.run != nil:
		crossed, invalid, live := s.evaluator.Counts()
		return Report{
			RunID:   s.run.ID,
			Course:  s.run.CourseName,
			Vehicle: s.run.Vehicle,
			Active:  true,
			Ticks:   s.evaluator.Ticks(),
			Crossed: crossed,
			Invalid: invalid,
			Live:    live,
			Gates:   s.evaluator.Gates(),
		}, nil
	case s.last != nil:
		return Report{
			RunID:   s.last.Run.ID,
			Course:  s.last.Run.CourseName,
			Vehicle: s.last.Run.Vehicle,
			Ticks:   s.last.Ticks,
			Crossed: s.last.Crossed,
			Invalid: s.last.Invalid,
			Live:    len(s.last.Gates) - s.last.Crossed - s.last.Invalid,
			Gates:   s.last.Gates,
		}, nil
	case s.disabled != nil:
		return Report{}, s.disabled
	default:
		return Report{}, ErrNotStarted
	}
}

// Status returns a summary of the service state.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Enabled: s.disabled == nil,
		RunID:   s.CurrentRunID(),
		Runs:    s.runs.Value(),
		Markers: s.deps.Markers.Len(),
	}
	if s.disabled != nil {
		st.Error = s.disabled.Error()
	}
	if s.evaluator != nil {
		st.Ticks = s.evaluator.Ticks()
		st.Crossed, st.Invalid, st.Live = s.evaluator.Counts()
	}
	return st
}

// Active reports whether a run is in progress.
func (s *Service) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run != nil
}
