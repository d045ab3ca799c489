// Package gormstorage implements the storage.Backend interface on top of any GORM
// database. Transitions are queued and written in batches by a background writer;
// the run row and its gate results are written synchronously.
package gormstorage

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OCAP2/navscore/internal/logging"
	"github.com/OCAP2/navscore/internal/model"
	"github.com/OCAP2/navscore/internal/model/convert"
	"github.com/OCAP2/navscore/internal/queue"
	"github.com/OCAP2/navscore/pkg/core"

	"gorm.io/gorm"
)

// DefaultFlushInterval is how often queued transitions are written.
const DefaultFlushInterval = time.Second

// DefaultMaxPending caps the transitions held while the database is unreachable.
const DefaultMaxPending = 100000

var errNoRun = errors.New("no run started")

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB            *gorm.DB
	LogManager    *logging.SlogManager
	FlushInterval time.Duration
	MaxPending    int
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps        Dependencies
	transitions *queue.Queue[model.GateTransition]

	mu    sync.Mutex // guards run and DB writes
	run   model.Run
	runID atomic.Uint64

	stopChan  chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = DefaultFlushInterval
	}
	if deps.MaxPending <= 0 {
		deps.MaxPending = DefaultMaxPending
	}
	return &Backend{
		deps:        deps,
		transitions: queue.NewBounded[model.GateTransition](deps.MaxPending),
	}
}

func (b *Backend) log() *slog.Logger {
	if b.deps.LogManager == nil {
		return slog.Default()
	}
	return b.deps.LogManager.Logger()
}

// DB returns the underlying database handle.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init runs schema migration and starts the DB writer goroutine.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return fmt.Errorf("no database configured")
	}

	if err := b.setupDB(); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}

	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})
	go b.writer()
	return nil
}

// setupDB migrates the schema.
func (b *Backend) setupDB() error {
	b.log().Info("Migrating schema", "dialect", b.deps.DB.Name())
	if err := b.deps.DB.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	b.log().Info("Database setup complete")
	return nil
}

// Close stops the DB writer goroutine and flushes what is left in the queue.
func (b *Backend) Close() error {
	b.closeOnce.Do(func() {
		if b.stopChan != nil {
			close(b.stopChan)
			<-b.done
		}
	})
	return b.Flush()
}

// StartRun inserts the run row. Transitions recorded afterwards reference it.
func (b *Backend) StartRun(run *core.Run) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	// leftovers belong to the previous run
	if err := b.flushLocked(); err != nil {
		b.log().Warn("Dropping unwritten transitions", "error", err)
		b.transitions.Clear()
	}

	gormRun := convert.CoreToRun(*run)
	if err := b.deps.DB.Create(&gormRun).Error; err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	b.run = gormRun
	b.runID.Store(uint64(gormRun.ID))
	return nil
}

// RecordTransition converts and queues a gate transition.
func (b *Backend) RecordTransition(t *core.GateTransition) error {
	runID := uint(b.runID.Load())
	if runID == 0 {
		return errNoRun
	}
	b.transitions.Push(convert.CoreToGateTransition(*t, runID))
	return nil
}

// EndRun flushes pending transitions, stores the final gate results and
// updates the run row with its outcome.
func (b *Backend) EndRun(summary *core.RunSummary) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.runID.Load() == 0 {
		return errNoRun
	}
	if err := b.flushLocked(); err != nil {
		return err
	}

	runID := b.run.ID
	convert.ApplySummary(&b.run, *summary)

	results := make([]model.GateResult, 0, len(summary.Gates))
	for _, g := range summary.Gates {
		results = append(results, convert.CoreToGateResult(g, runID))
	}

	err := b.deps.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Run{}).Where("id = ?", runID).Updates(map[string]any{
			"end_time": b.run.EndTime,
			"ticks":    b.run.Ticks,
			"crossed":  b.run.Crossed,
			"invalid":  b.run.Invalid,
		}).Error; err != nil {
			return fmt.Errorf("failed to update run: %w", err)
		}
		if len(results) > 0 {
			if err := tx.Omit("Run").Create(&results).Error; err != nil {
				return fmt.Errorf("failed to insert gate results: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	b.runID.Store(0)
	b.log().Info("Run stored", "runId", b.run.RunID, "crossed", summary.Crossed, "invalid", summary.Invalid)
	return nil
}

// Flush writes every queued transition now.
func (b *Backend) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flushLocked()
}

// Pending returns the number of transitions waiting to be written.
func (b *Backend) Pending() int {
	return b.transitions.Len()
}

// Dropped returns the number of transitions discarded because too many were pending.
func (b *Backend) Dropped() uint64 {
	return b.transitions.Dropped()
}

func (b *Backend) flushLocked() error {
	return writeQueue(b.deps.DB, b.transitions, "gate transitions", b.log())
}

// writeQueue writes all items from a queue to the database in a transaction.
// On failure the items are put back at the front for the next cycle.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log *slog.Logger) error {
	if q.Empty() {
		return nil
	}

	tx := db.Begin()
	items := q.GetAndEmpty()
	if err := tx.Omit("Run").Create(&items).Error; err != nil {
		log.Error("Error creating "+name, "function", ":DB:WRITER:", "count", len(items), "error", err)
		tx.Rollback()
		q.Requeue(items...)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}

	if err := tx.Commit().Error; err != nil {
		log.Error("Error committing "+name, "function", ":DB:WRITER:", "count", len(items), "error", err)
		q.Requeue(items...)
		return fmt.Errorf("failed to commit %s: %w", name, err)
	}
	return nil
}

// writer periodically drains the queue into the DB.
func (b *Backend) writer() {
	defer close(b.done)

	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			b.mu.Lock()
			_ = b.flushLocked() // retried next tick
			b.mu.Unlock()
		}
	}
}
