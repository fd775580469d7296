package lights

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	govee "github.com/swrm-io/go-vee"

	"auraconnect/internal/logging"
)

type GoveeProvider struct {
	mu         sync.RWMutex
	logger     *slog.Logger
	window     time.Duration
	controller *govee.Controller
	started    bool
	devices    []*goveeDevice
}

type goveeDevice struct {
	*baseDevice
	ip  string
	dev *govee.Device
}

// NewGoveeProvider returns a provider for devices with the LAN API enabled.
// Initialize waits window for device announcements.
func NewGoveeProvider(logger *slog.Logger, window time.Duration) *GoveeProvider {
	if window <= 0 {
		window = 3 * time.Second
	}
	libLogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	return &GoveeProvider{
		logger:     logging.Component(logger, string(BrandGovee)),
		window:     window,
		controller: govee.NewController(libLogger),
	}
}

func (p *GoveeProvider) Name() string {
	return string(BrandGovee)
}

func (p *GoveeProvider) Devices() []Device {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return asDevices(p.devices)
}

func (p *GoveeProvider) ensureStarted() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	go func() {
		if err := p.controller.Start(); err != nil {
			p.logger.Error("LAN controller stopped", "error", err)
		}
	}()
	p.started = true
}

func (p *GoveeProvider) Initialize(ctx context.Context) error {
	p.ensureStarted()

	timer := time.NewTimer(p.window)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	var devices []*goveeDevice
	for _, dev := range p.controller.Devices() {
		ip := dev.IP()
		d := &goveeDevice{ip: ip, dev: dev}
		d.baseDevice = newBaseDevice(fmt.Sprintf("govee:%s", ip), "Govee "+dev.SKU(), 1, d.write)
		devices = append(devices, d)
	}

	if len(devices) == 0 {
		return fmt.Errorf("%w: no Govee devices announced within %v", ErrProviderUnavailable, p.window)
	}

	p.mu.Lock()
	p.devices = devices
	p.mu.Unlock()

	p.logger.Info("discovered devices", "count", len(devices))
	return nil
}

func (p *GoveeProvider) RequestControl(_ context.Context) error {
	p.mu.RLock()
	devices := p.devices
	p.mu.RUnlock()

	var errs []error
	for _, d := range devices {
		d.invalidate()
		if err := d.dev.TurnOn(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.id, err))
		}
	}
	return errors.Join(errs...)
}

// PerformHealthCheck reports devices that stopped answering the controller's
// periodic scans.
func (p *GoveeProvider) PerformHealthCheck(_ context.Context) error {
	present := make(map[string]bool)
	for _, dev := range p.controller.Devices() {
		present[dev.IP()] = true
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	var errs []error
	for _, d := range p.devices {
		if !present[d.ip] {
			errs = append(errs, fmt.Errorf("%s: no longer announced", d.id))
		}
	}
	return errors.Join(errs...)
}

func (p *GoveeProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		p.controller.Shutdown()
		p.started = false
	}
	return nil
}

func (d *goveeDevice) write(_ context.Context, frame []Color) error {
	c := frame[0]
	return d.dev.SetColor(govee.Color{R: uint(c.R), G: uint(c.G), B: uint(c.B)})
}
