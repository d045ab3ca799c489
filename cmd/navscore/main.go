// Command navscore scores gate navigation runs from a stream of world updates.
//
// Usage:
//
//	navscore [configDir] [replayFile]
//
// Commands are read from replayFile, or stdin when it is omitted. One response
// line per command is written to stdout; logs go to stderr and the log file.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/OCAP2/navscore/internal/api"
	"github.com/OCAP2/navscore/internal/cache"
	"github.com/OCAP2/navscore/internal/config"
	"github.com/OCAP2/navscore/internal/dispatcher"
	"github.com/OCAP2/navscore/internal/ingest"
	"github.com/OCAP2/navscore/internal/logging"
	"github.com/OCAP2/navscore/internal/monitor"
	intOtel "github.com/OCAP2/navscore/internal/otel"
	"github.com/OCAP2/navscore/internal/parser"
	"github.com/OCAP2/navscore/internal/scoring"
	"github.com/OCAP2/navscore/internal/storage"
	"github.com/OCAP2/navscore/internal/worker"

	"github.com/rs/zerolog"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.0.1"
	BuildDate      string = "unknown"

	AppName string = "navscore"
)

// global variables
var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	SessionStartTime time.Time = time.Now()
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout))
}

// app is everything wired up for one session.
type app struct {
	dispatcher *dispatcher.Dispatcher
	scoring    *scoring.Service
	monitor    *monitor.Service
	backend    storage.Backend
	reader     *ingest.Reader
	closers    []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) int {
	configDir := "."
	if len(args) > 0 {
		configDir = args[0]
	}

	in := stdin
	if len(args) > 1 {
		f, err := os.Open(args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open replay file: %v\n", err)
			return 1
		}
		defer f.Close()
		in = f
	}

	a, err := setup(configDir, stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "setup failed: %v\n", err)
		return 1
	}
	defer a.close()

	n, err := a.reader.Run(ctx, in)
	Logger.Info("Input finished", "commands", n)
	if err != nil {
		Logger.Error("Reading commands failed", "error", err)
	}

	a.dispatcher.Drain()
	if a.scoring.Active() {
		Logger.Warn("Input ended with a run in progress, ending it")
		fmt.Fprintln(stdout, a.reader.Handle(":RUN:END:"))
	}

	if err != nil {
		return 1
	}
	return 0
}

func setup(configDir string, stdout io.Writer) (*app, error) {
	a := &app{}

	// Console-only logging until the config is read
	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(logging.Options{Level: "info"})
	Logger = SlogManager.Logger()

	if err := config.Load(configDir); err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		Logger.Info("Loaded config", "dir", configDir)
	}

	var svc *scoring.Service
	logFile, err := setupLogging(a, func() string {
		if svc == nil {
			return ""
		}
		return svc.CurrentRunID()
	})
	if err != nil {
		return nil, err
	}

	level := config.GetString("logLevel")
	var zlogOut io.Writer = os.Stderr
	if logFile != nil {
		zlogOut = io.MultiWriter(os.Stderr, logFile)
	}
	zlog := logging.NewZerolog(zlogOut, level)

	d, err := dispatcher.New(logging.NewDispatcherLogger(zlog))
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}
	a.dispatcher = d

	backend := initStorage(zlog.With().Str("component", "storage").Logger())
	a.backend = backend
	a.closers = append(a.closers, func() {
		if err := backend.Close(); err != nil {
			Logger.Error("Failed to close storage backend", "error", err)
		}
	})

	course, err := config.GetCourseConfig()
	if err != nil {
		// Gates may still arrive as :COURSE:GATE: commands; Start validates again.
		Logger.Warn("Course configuration incomplete", "error", err)
	}

	svc, err = scoring.NewService(scoring.Dependencies{
		Course:   course,
		Markers:  cache.NewMarkerCache(),
		Vehicles: cache.NewVehicleCache(),
		Storage:  backend,
		Uploader: newUploader(),
		Logger:   Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create scoring service: %w", err)
	}
	a.scoring = svc

	a.monitor = monitor.NewService(monitor.Dependencies{
		Queues:     d,
		Scoring:    svc,
		Storage:    backend,
		LogManager: SlogManager,
		StatusDir:  config.GetString("statusDir"),
	})
	if err := a.monitor.Start(); err != nil {
		Logger.Error("Failed to start status monitor", "error", err)
	}
	a.closers = append(a.closers, a.monitor.Stop)

	m, err := worker.NewManager(worker.Dependencies{
		Scoring:  svc,
		Parser:   parser.NewParser(Logger, course.Frame),
		Monitor:  a.monitor,
		Logger:   Logger,
		LaneSize: config.GetInt("laneSize"),
	})
	if err != nil {
		return nil, err
	}
	Logger.Debug("Registering worker handlers with dispatcher")
	m.RegisterHandlers(d)

	a.reader = ingest.NewReader(d, stdout, Logger, CurrentVersion)

	Logger.Info("Navigation scoring plugin loaded",
		"version", CurrentVersion,
		"build", BuildDate,
		"course", course.Name,
		"vehicle", course.Vehicle,
		"gates", len(course.Gates),
	)
	return a, nil
}

// setupLogging opens the session log file and re-initializes logging with the
// file, OTel and Graylog outputs the config asks for.
func setupLogging(a *app, runID func() string) (*os.File, error) {
	logsDir := config.GetString("logsDir")
	logFile, logFilePath, err := logging.OpenSessionLog(logsDir, AppName, SessionStartTime)
	if err != nil {
		if logFilePath == "" {
			return nil, err
		}
		Logger.Error("Failed to create/open log file!", "error", err, "path", logFilePath)
		logFile = nil
	}

	opts := logging.Options{
		Level:   config.GetString("logLevel"),
		Context: logging.RunContext(runID),
	}
	if logFile != nil {
		opts.File = logFile
		a.closers = append(a.closers, func() { logFile.Close() })
	}

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		otelLog, err := os.OpenFile(filepath.Join(logsDir, AppName+".otel.log"), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			Logger.Error("Failed to open OTel log file", "error", err)
		} else {
			cfg := intOtel.FromConfig(otelCfg, otelLog)
			cfg.ServiceVersion = CurrentVersion
			OTelProvider, err = intOtel.New(cfg)
			if err != nil {
				Logger.Error("Failed to initialize OTel provider", "error", err)
				otelLog.Close()
			} else {
				Logger.Info("OTel provider initialized", "endpoint", otelCfg.Endpoint)
				opts.Provider = OTelProvider.LoggerProvider()
				opts.ServiceName = otelCfg.ServiceName
				a.closers = append(a.closers, func() {
					ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					if err := OTelProvider.Shutdown(ctx); err != nil {
						fmt.Fprintf(os.Stderr, "OTel shutdown failed: %v\n", err)
					}
					otelLog.Close()
				})
			}
		}
	}

	if config.GetBool("graylog.enabled") {
		addr := config.GetString("graylog.address")
		w, err := logging.NewGraylogWriter(addr)
		if err != nil {
			Logger.Error("Failed to connect to Graylog", "error", err, "address", addr)
		} else {
			opts.Graylog = w
			a.closers = append(a.closers, func() { w.Close() })
		}
	}

	SlogManager.Setup(opts)
	Logger = SlogManager.Logger()
	Logger.Info("Logging to file", "path", logFilePath)
	return logFile, nil
}

// newUploader returns the scoreboard client when uploads are enabled.
func newUploader() scoring.Uploader {
	if !config.GetBool("api.upload") {
		return nil
	}
	client := api.New(config.GetString("api.serverUrl"), config.GetString("api.apiKey"))
	checkServerStatus(client)
	return client
}

func checkServerStatus(client *api.Client) {
	if err := client.Healthcheck(); err != nil {
		Logger.Info("Scoreboard server is offline", "error", err)
	} else {
		Logger.Info("Scoreboard server is online")
	}
}

// dbLogger is the zerolog logger handed to the database layers.
func dbLogger(base zerolog.Logger) zerolog.Logger {
	return base.With().Str("component", "database").Logger()
}
