// Package telemetry records orchestrator activity to InfluxDB.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/zoobzio/clockz"

	"auraconnect/internal/config"
)

const (
	defaultConnectTimeout = 10 * time.Second

	millisecondsPerSecond = 1000
)

var (
	// ErrDisabled indicates InfluxDB telemetry is disabled in config.
	ErrDisabled = errors.New("telemetry: disabled in configuration")

	// ErrConnectionFailed indicates the initial ping failed.
	ErrConnectionFailed = errors.New("telemetry: connection failed")
)

// Measurement names.
const (
	MeasurementHealth       = "provider_health"
	MeasurementControl      = "provider_control"
	MeasurementDistribution = "distribution"
)

type pointWriter interface {
	WritePoint(point *write.Point)
}

// Recorder writes health, control and distribution points. Writes are
// non-blocking and batched by the client library.
type Recorder struct {
	client influxdb2.Client
	writer pointWriter
	flush  func()
	clock  clockz.Clock
	logger *slog.Logger
}

// New connects to InfluxDB and returns a Recorder. It returns ErrDisabled
// when telemetry is switched off.
func New(ctx context.Context, cfg config.InfluxDBConfig, logger *slog.Logger) (*Recorder, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = 10
	}

	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(uint(batchSize)).
			SetFlushInterval(uint(flushInterval)*millisecondsPerSecond),
	)

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()

	healthy, err := client.Ping(pingCtx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	go func() {
		for err := range writeAPI.Errors() {
			logger.Warn("telemetry write failed", "error", err)
		}
	}()

	r := newRecorder(writeAPI, clockz.RealClock, logger)
	r.client = client
	r.flush = writeAPI.Flush
	return r, nil
}

func newRecorder(w pointWriter, clock clockz.Clock, logger *slog.Logger) *Recorder {
	return &Recorder{writer: w, clock: clock, logger: logger, flush: func() {}}
}

// RecordHealth writes one health check outcome.
func (r *Recorder) RecordHealth(provider string, err error) {
	fields := map[string]interface{}{"healthy": err == nil}
	if err != nil {
		fields["error"] = err.Error()
	}
	r.write(MeasurementHealth, map[string]string{"provider": provider}, fields)
}

// RecordControl writes one control request outcome.
func (r *Recorder) RecordControl(provider string, err error) {
	fields := map[string]interface{}{"granted": err == nil}
	if err != nil {
		fields["error"] = err.Error()
	}
	r.write(MeasurementControl, map[string]string{"provider": provider}, fields)
}

// RecordDistribution writes one distribution pass.
func (r *Recorder) RecordDistribution(lights, paletteSize int, took time.Duration) {
	r.write(MeasurementDistribution, nil, map[string]interface{}{
		"lights":       lights,
		"palette_size": paletteSize,
		"duration_ms":  float64(took) / float64(time.Millisecond),
	})
}

func (r *Recorder) write(measurement string, tags map[string]string, fields map[string]interface{}) {
	r.writer.WritePoint(write.NewPoint(measurement, tags, fields, r.clock.Now()))
}

// Close flushes pending points and closes the client.
func (r *Recorder) Close() error {
	r.flush()
	if r.client != nil {
		r.client.Close()
	}
	return nil
}
