// Package postgres implements the storage.Backend interface on a PostgreSQL
// database, using the shared GORM backend for queueing and batch writes.
package postgres

import (
	"fmt"

	"github.com/OCAP2/navscore/internal/database"
	"github.com/OCAP2/navscore/internal/logging"
	gormstorage "github.com/OCAP2/navscore/internal/storage/gorm"
	"github.com/rs/zerolog"

	"gorm.io/gorm"
)

// Connector opens the database. It is GetPostgresDB outside of tests.
type Connector func(log zerolog.Logger) (*gorm.DB, error)

// Backend wraps the GORM backend with a lazily opened postgres connection.
type Backend struct {
	*gormstorage.Backend
	connect Connector
	log     *logging.SlogManager
	dbLog   zerolog.Logger
}

// New creates a new postgres storage backend. The connection is opened by Init.
func New(logManager *logging.SlogManager, dbLog zerolog.Logger) *Backend {
	return &Backend{
		connect: database.GetPostgresDB,
		log:     logManager,
		dbLog:   dbLog,
	}
}

// Init connects to postgres, migrates the schema and starts the DB writer goroutine.
func (b *Backend) Init() error {
	db, err := b.connect(b.dbLog)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}

	b.Backend = gormstorage.New(gormstorage.Dependencies{
		DB:         db,
		LogManager: b.log,
	})
	if err := b.Backend.Init(); err != nil {
		return err
	}

	b.log.WriteLog("postgres:Init", "Postgres storage ready", "INFO")
	return nil
}

// Close stops the embedded GORM backend, if it was started.
func (b *Backend) Close() error {
	if b.Backend == nil {
		return nil
	}
	return b.Backend.Close()
}
