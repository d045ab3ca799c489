// Package influx implements the storage.Backend interface on InfluxDB 2.
// Every gate transition and every final gate result becomes one point. When the
// server cannot be reached at Init, points are written as gzipped line protocol
// to a local backup file instead.
package influx

import (
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/OCAP2/navscore/internal/config"
	"github.com/OCAP2/navscore/internal/util"
	"github.com/OCAP2/navscore/pkg/core"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
)

// Measurement names.
const (
	MeasurementTransition = "gate_transition"
	MeasurementGate       = "gate_result"
	MeasurementRun        = "run"
)

const retentionSeconds = 60 * 60 * 24 * 90 // 90 days

// Backend writes run results to InfluxDB or a backup file.
type Backend struct {
	cfg        config.InfluxConfig
	backupPath string
	logger     zerolog.Logger

	client influxdb2.Client
	writer influxdb2_api.WriteAPI

	mu         sync.Mutex
	run        *core.Run
	backupFile *os.File
	backup     *gzip.Writer
}

// New creates a new InfluxDB storage backend.
func New(cfg config.InfluxConfig, backupPath string, logger zerolog.Logger) *Backend {
	return &Backend{
		cfg:        cfg,
		backupPath: backupPath,
		logger:     logger,
	}
}

// Init connects to InfluxDB and ensures the org and bucket exist.
// If the server is unreachable, the backup file is opened instead.
func (b *Backend) Init() error {
	b.client = influxdb2.NewClientWithOptions(
		b.cfg.URL(),
		b.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// validate client connection health
	running, err := b.client.Ping(ctx)
	if err != nil || !running {
		b.logger.Warn().Err(err).Str("backupPath", b.backupPath).
			Msg("InfluxDB unreachable, writing to backup file")
		b.client.Close()
		b.client = nil
		return b.openBackup()
	}

	if err := b.setupOrganizationAndBucket(ctx); err != nil {
		return err
	}

	b.writer = b.client.WriteAPI(b.cfg.Org, b.cfg.Bucket)
	go func(errorsCh <-chan error) {
		for writeErr := range errorsCh {
			b.logger.Error().Err(writeErr).Str("bucket", b.cfg.Bucket).
				Msg("Error sending data to InfluxDB")
		}
	}(b.writer.Errors())

	b.logger.Info().Str("url", b.cfg.URL()).Str("bucket", b.cfg.Bucket).Msg("InfluxDB client initialized")
	return nil
}

func (b *Backend) openBackup() error {
	if b.backupPath == "" {
		return fmt.Errorf("influxdb unreachable and no backup path set")
	}
	if err := os.MkdirAll(filepath.Dir(b.backupPath), 0755); err != nil {
		return fmt.Errorf("error creating backup directory: %w", err)
	}
	file, err := os.OpenFile(b.backupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	b.backupFile = file
	b.backup = gzip.NewWriter(file)
	return nil
}

func (b *Backend) setupOrganizationAndBucket(ctx context.Context) error {
	orgs := b.client.OrganizationsAPI()

	// ensure org exists
	org, err := orgs.FindOrganizationByName(ctx, b.cfg.Org)
	if err != nil {
		b.logger.Info().Str("org", b.cfg.Org).Msg("Organization not found, creating")
		org, err = orgs.CreateOrganizationWithName(ctx, b.cfg.Org)
		if err != nil {
			return fmt.Errorf("error creating organization %s: %w", b.cfg.Org, err)
		}
	}

	// ensure bucket exists with 90 day retention
	if _, err := b.client.BucketsAPI().FindBucketByName(ctx, b.cfg.Bucket); err != nil {
		b.logger.Info().Str("bucket", b.cfg.Bucket).Msg("Bucket not found, creating")

		rule := domain.RetentionRuleTypeExpire
		_, err = b.client.BucketsAPI().CreateBucketWithName(ctx, org, b.cfg.Bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: retentionSeconds,
		})
		if err != nil {
			return fmt.Errorf("error creating bucket %s: %w", b.cfg.Bucket, err)
		}
	}
	return nil
}

// Close flushes pending points and releases the client or backup file.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.writer != nil {
		b.writer.Flush()
	}
	if b.client != nil {
		b.client.Close()
		b.client = nil
	}
	if b.backup != nil {
		err := b.backup.Close()
		b.backup = nil
		if cerr := b.backupFile.Close(); err == nil {
			err = cerr
		}
		return err
	}
	return nil
}

// StartRun remembers the run for tagging.
func (b *Backend) StartRun(run *core.Run) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.run = run
	return nil
}

// RecordTransition writes one point per gate transition.
func (b *Backend) RecordTransition(t *core.GateTransition) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.run == nil {
		return fmt.Errorf("no run started")
	}
	return b.writePoint(TransitionPoint(b.run, t))
}

// EndRun writes one point per gate and a run point, then flushes.
func (b *Backend) EndRun(summary *core.RunSummary) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.run == nil {
		return fmt.Errorf("no run started")
	}

	for i := range summary.Gates {
		if err := b.writePoint(GatePoint(b.run, &summary.Gates[i], summary.EndTime)); err != nil {
			return err
		}
	}
	if err := b.writePoint(RunPoint(summary)); err != nil {
		return err
	}

	if b.writer != nil {
		b.writer.Flush()
	}
	if b.backup != nil {
		if err := b.backup.Flush(); err != nil {
			return fmt.Errorf("error flushing backup file: %w", err)
		}
	}
	b.run = nil
	return nil
}

// writePoint writes a point to InfluxDB or the backup file.
func (b *Backend) writePoint(point *influxdb2_write.Point) error {
	if b.writer != nil {
		b.writer.WritePoint(point)
		return nil
	}
	if b.backup == nil {
		return fmt.Errorf("influxDB client not initialized and backup writer not available")
	}

	lineProtocol := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if _, err := b.backup.Write([]byte(lineProtocol)); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

func runTags(p *influxdb2_write.Point, run *core.Run) *influxdb2_write.Point {
	return p.AddTag("run_id", run.ID).
		AddTag("course", run.CourseName).
		AddTag("vehicle", run.Vehicle)
}

// TransitionPoint builds the point for a gate transition.
func TransitionPoint(run *core.Run, t *core.GateTransition) *influxdb2_write.Point {
	p := influxdb2_write.NewPointWithMeasurement(MeasurementTransition)
	runTags(p, run).
		AddTag("gate", t.Name).
		AddTag("from", string(t.From)).
		AddTag("to", string(t.To)).
		AddField("gate_index", t.Index).
		AddField("tick", t.Tick).
		AddField("x", t.VehiclePose.Position.X).
		AddField("y", t.VehiclePose.Position.Y).
		AddField("z", t.VehiclePose.Position.Z).
		SetTime(t.Time)
	if t.VehiclePose.HasHeading() {
		p.AddField("yaw_deg", util.RadToDeg(t.VehiclePose.Yaw))
	}
	return p
}

// GatePoint builds the point for a gate's final state.
func GatePoint(run *core.Run, g *core.GateSnapshot, at time.Time) *influxdb2_write.Point {
	p := influxdb2_write.NewPointWithMeasurement(MeasurementGate)
	runTags(p, run).
		AddTag("gate", g.Name).
		AddTag("state", string(g.State)).
		AddField("gate_index", g.Index).
		AddField("width", g.Width).
		AddField("x", g.Pose.Position.X).
		AddField("y", g.Pose.Position.Y).
		SetTime(at)
	if g.Pose.HasHeading() {
		p.AddField("heading_deg", util.RadToDeg(g.Pose.Yaw))
	}
	return p
}

// RunPoint builds the point summarizing a run.
func RunPoint(s *core.RunSummary) *influxdb2_write.Point {
	p := influxdb2_write.NewPointWithMeasurement(MeasurementRun)
	runTags(p, &s.Run).
		AddField("crossed", s.Crossed).
		AddField("invalid", s.Invalid).
		AddField("gates", len(s.Gates)).
		AddField("ticks", s.Ticks).
		SetTime(s.EndTime)
	if s.EndTime.After(s.Run.StartTime) {
		p.AddField("duration_s", s.EndTime.Sub(s.Run.StartTime).Seconds())
	}
	return p
}
