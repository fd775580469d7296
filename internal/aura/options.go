package aura

import (
	"log/slog"
	"time"

	"github.com/zoobzio/clockz"
)

// DefaultHealthInterval is the period between health-check ticks.
const DefaultHealthInterval = 15 * time.Second

// Recorder receives the outcome of health checks and distribution passes.
type Recorder interface {
	RecordHealth(provider string, err error)
	RecordControl(provider string, err error)
	RecordDistribution(lights, paletteSize int, took time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordHealth(string, error)                {}
func (nopRecorder) RecordControl(string, error)               {}
func (nopRecorder) RecordDistribution(int, int, time.Duration) {}

type config struct {
	clock    clockz.Clock
	interval time.Duration
	logger   *slog.Logger
	recorder Recorder
}

// Option configures a Service.
type Option func(*config)

// WithClock sets the clock driving the health loop. Use clockz.NewFakeClock
// in tests.
func WithClock(clock clockz.Clock) Option {
	return func(c *config) {
		c.clock = clock
	}
}

// WithHealthInterval overrides DefaultHealthInterval. Non-positive values
// are ignored.
func WithHealthInterval(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithLogger sets the service logger. A nil logger is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRecorder sets the telemetry sink. A nil recorder is ignored.
func WithRecorder(r Recorder) Option {
	return func(c *config) {
		if r != nil {
			c.recorder = r
		}
	}
}
