package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/OCAP2/navscore/internal/logging"
	"github.com/OCAP2/navscore/internal/scoring"
	"github.com/OCAP2/navscore/internal/storage"
)

// StatusFileName is the file the monitor goroutine keeps rewriting.
const StatusFileName = "status.json"

// DefaultInterval is how often the status file is refreshed.
const DefaultInterval = time.Second

// QueueReporter exposes the depth of each dispatcher lane.
type QueueReporter interface {
	QueueDepths() map[string]int
}

// ScoringReporter exposes the scoring service summary.
type ScoringReporter interface {
	Status() scoring.Status
}

// PendingProvider is an optional interface that backends can implement
// to expose how many records wait to be written.
type PendingProvider interface {
	Pending() int
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Queues     QueueReporter
	Scoring    ScoringReporter
	Storage    storage.Backend
	LogManager *logging.SlogManager
	StatusDir  string // empty disables the status file
	Interval   time.Duration
	Now        func() time.Time
}

// Status is the program status reported by :STATUS: and the status file.
type Status struct {
	Time    time.Time      `json:"time"`
	Lanes   map[string]int `json:"lanes"`
	Scoring scoring.Status `json:"scoring"`
	Pending int            `json:"pendingWrites"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = DefaultInterval
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetStatus returns the current program status
func (s *Service) GetStatus() Status {
	st := Status{
		Time:  s.deps.Now(),
		Lanes: map[string]int{},
	}
	if s.deps.Queues != nil {
		st.Lanes = s.deps.Queues.QueueDepths()
	}
	if s.deps.Scoring != nil {
		st.Scoring = s.deps.Scoring.Status()
	}
	if p, ok := s.deps.Storage.(PendingProvider); ok {
		st.Pending = p.Pending()
	}
	return st
}

// StatusJSON returns the status as a JSON string.
func (s *Service) StatusJSON() (string, error) {
	b, err := json.Marshal(s.GetStatus())
	if err != nil {
		return "", fmt.Errorf("encoding status: %w", err)
	}
	return string(b), nil
}

// WriteStatusFile replaces the status file with the current status.
func (s *Service) WriteStatusFile() error {
	if s.deps.StatusDir == "" {
		return nil
	}
	b, err := json.MarshalIndent(s.GetStatus(), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding status: %w", err)
	}

	path := filepath.Join(s.deps.StatusDir, StatusFileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0644); err != nil {
		return fmt.Errorf("writing status file: %w", err)
	}
	return os.Rename(tmp, path)
}

func (s *Service) logger() *slog.Logger {
	if s.deps.LogManager == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.deps.LogManager.Logger()
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if s.deps.StatusDir != "" {
		if err := os.MkdirAll(s.deps.StatusDir, 0755); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("creating status directory: %w", err)
		}
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)

		logger := s.logger()
		logger.Debug("Starting status monitor goroutine", "interval", s.deps.Interval)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := s.WriteStatusFile(); err != nil {
					logger.Error("Error writing status file", "error", err)
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for its goroutine to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}
