package aura

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/zoobzio/clockz"

	"auraconnect/internal/lights"
	"auraconnect/internal/logging"
)

// ErrAlreadyInitialized is returned when Initialize is called more than once.
var ErrAlreadyInitialized = errors.New("aura: service already initialized")

type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

type entry struct {
	provider lights.Provider
	active   bool
}

// Service is the provider registry and the owner of the health loop.
type Service struct {
	mu       sync.Mutex
	entries  []*entry
	state    State
	clock    clockz.Clock
	interval time.Duration
	logger   *slog.Logger
	recorder Recorder

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewService creates an empty service configured by opts.
func NewService(opts ...Option) *Service {
	cfg := config{
		clock:    clockz.RealClock,
		interval: DefaultHealthInterval,
		logger:   slog.New(slog.DiscardHandler),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Service{
		clock:    cfg.clock,
		interval: cfg.interval,
		logger:   logging.Component(cfg.logger, "aura"),
		recorder: cfg.recorder,
	}
}

// AddProvider registers p. Providers are initialized, checked and painted in
// registration order. Registering the same provider twice is not detected.
func (s *Service) AddProvider(p lights.Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, &entry{provider: p})
}

// Providers returns the registered providers in registration order.
func (s *Service) Providers() []lights.Provider {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]lights.Provider, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.provider
	}
	return out
}

func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Initialize brings up every provider and starts the health loop. A provider
// that fails to initialize is skipped for the rest of the run; it does not
// fail the service. Initialize may be called once.
func (s *Service) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateUninitialized {
		return ErrAlreadyInitialized
	}

	for _, e := range s.entries {
		name := e.provider.Name()
		log := s.logger.With("provider", name)

		if err := guard(name, "initialize", func() error { return e.provider.Initialize(ctx) }); err != nil {
			if errors.Is(err, lights.ErrProviderUnavailable) {
				log.Info("provider unavailable, skipping", "error", err)
			} else {
				log.Warn("provider failed to initialize, skipping", "error", err)
			}
			continue
		}
		e.active = true

		devices := e.provider.Devices()
		if renamed := DedupeNames(devices); renamed > 0 {
			log.Info("disambiguated device names", "renamed", renamed)
		}
		log.Info("provider ready", "devices", len(devices))

		s.requestControl(ctx, e)
	}

	s.state = StateInitialized

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.wg.Add(1)
	go s.healthLoop(loopCtx)
	s.state = StateRunning

	return nil
}

// Close stops the health loop and closes every provider. Safe to call more
// than once.
func (s *Service) Close() error {
	var errs []error
	s.stopOnce.Do(func() {
		s.mu.Lock()
		cancel := s.cancel
		s.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		s.wg.Wait()

		s.mu.Lock()
		defer s.mu.Unlock()
		for _, e := range s.entries {
			if err := e.provider.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", e.provider.Name(), err))
			}
		}
		s.state = StateStopped
	})
	return errors.Join(errs...)
}

// requestControl asks e for control and logs the outcome. Caller holds s.mu.
func (s *Service) requestControl(ctx context.Context, e *entry) {
	name := e.provider.Name()
	err := guard(name, "request control", func() error { return e.provider.RequestControl(ctx) })
	s.recorder.RecordControl(name, err)
	switch {
	case err == nil:
	case errors.Is(err, lights.ErrControlDenied):
		s.logger.Info("control denied, retrying on next health check", "provider", name, "error", err)
	default:
		s.logger.Warn("control request failed", "provider", name, "error", err)
	}
}

// guard runs fn and converts a panic into an error so one provider cannot
// take down the loop serving the others.
func guard(provider, op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: panic during %s: %v", provider, op, r)
		}
	}()
	return fn()
}
