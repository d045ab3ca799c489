package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/OCAP2/navscore/internal/config"
	"github.com/OCAP2/navscore/internal/storage"
	influxstorage "github.com/OCAP2/navscore/internal/storage/influx"
	"github.com/OCAP2/navscore/internal/storage/memory"
	pgstorage "github.com/OCAP2/navscore/internal/storage/postgres"
	sqlitestorage "github.com/OCAP2/navscore/internal/storage/sqlite"
	wsstorage "github.com/OCAP2/navscore/internal/storage/websocket"
	"github.com/OCAP2/navscore/internal/util"
	"github.com/rs/zerolog"
)

// StorageTypes lists the accepted storage.type values.
var StorageTypes = []string{"memory", "sqlite", "postgres", "websocket", "influx"}

// initStorage creates and initializes the configured backend. A backend that
// fails to come up is replaced by storage.Nop so the run is still scored.
func initStorage(log zerolog.Logger) storage.Backend {
	storageCfg := config.GetStorageConfig()

	backend, err := createStorageBackend(storageCfg, log)
	if err != nil {
		Logger.Error("Failed to create storage backend", "error", err)
		return storage.Nop{}
	}
	if err := backend.Init(); err != nil {
		Logger.Error("Failed to initialize storage backend, results will not be stored", "type", storageCfg.Type, "error", err)
		return storage.Nop{}
	}
	Logger.Info("Storage backend initialized", "type", storageCfg.Type)
	return backend
}

func createStorageBackend(storageCfg config.StorageConfig, log zerolog.Logger) (storage.Backend, error) {
	if storageCfg.Type == "" {
		storageCfg.Type = "memory"
	}
	if !util.Contains(StorageTypes, storageCfg.Type) {
		return nil, fmt.Errorf("unknown storage type %q", storageCfg.Type)
	}

	session := SessionStartTime.Format("20060102_150405")

	switch storageCfg.Type {
	case "postgres":
		return pgstorage.New(SlogManager, dbLogger(log)), nil

	case "sqlite":
		dumpPath := filepath.Join(storageCfg.Memory.OutputDir, fmt.Sprintf("%s_%s.db", AppName, session))
		backend, err := sqlitestorage.New(sqlitestorage.Config{
			DumpInterval: storageCfg.SQLite.DumpInterval,
			DumpPath:     dumpPath,
		}, SlogManager, dbLogger(log))
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		return backend, nil

	case "websocket":
		wsURL := httpToWS(config.GetString("api.serverUrl")) + "/api/v1/stream"
		Logger.Info("WebSocket storage backend", "url", wsURL)
		return wsstorage.New(wsstorage.Config{
			URL:    wsURL,
			Secret: config.GetString("api.apiKey"),
		}, Logger), nil

	case "influx":
		backupPath := filepath.Join(storageCfg.Memory.OutputDir, fmt.Sprintf("%s_%s.lp.gz", AppName, session))
		return influxstorage.New(config.GetInfluxConfig(), backupPath, log), nil

	default:
		return memory.New(storageCfg.Memory), nil
	}
}

// httpToWS converts an HTTP(S) URL to a WebSocket URL.
func httpToWS(httpURL string) string {
	s := strings.TrimRight(httpURL, "/")
	s = strings.Replace(s, "https://", "wss://", 1)
	s = strings.Replace(s, "http://", "ws://", 1)
	return s
}
