package lights

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"go.yhsif.com/lifxlan"
	"go.yhsif.com/lifxlan/light"

	"auraconnect/internal/logging"
)

const (
	lifxCallTimeout = 2 * time.Second
	lifxKelvin      = 3500
)

type LIFXProvider struct {
	mu      sync.RWMutex
	logger  *slog.Logger
	window  time.Duration
	devices []*lifxDevice
}

type lifxDevice struct {
	*baseDevice
	light light.Device
}

// NewLIFXProvider returns a provider that listens for bulb announcements for
// window during Initialize.
func NewLIFXProvider(logger *slog.Logger, window time.Duration) *LIFXProvider {
	if window <= 0 {
		window = 5 * time.Second
	}
	return &LIFXProvider{
		logger: logging.Component(logger, string(BrandLIFX)),
		window: window,
	}
}

func (p *LIFXProvider) Name() string {
	return string(BrandLIFX)
}

func (p *LIFXProvider) Devices() []Device {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return asDevices(p.devices)
}

func (p *LIFXProvider) Initialize(ctx context.Context) error {
	discoverCtx, cancel := context.WithTimeout(ctx, p.window)
	defer cancel()

	ch := make(chan lifxlan.Device)
	go func() {
		if err := lifxlan.Discover(discoverCtx, ch, ""); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			p.logger.Warn("discovery failed", "error", err)
		}
	}()

	seen := make(map[string]bool)
	var found []*lifxDevice

	for raw := range ch {
		target := raw.Target().String()
		if seen[target] {
			continue
		}
		seen[target] = true

		labelCtx, labelCancel := context.WithTimeout(ctx, lifxCallTimeout)
		ld, err := light.Wrap(labelCtx, raw, false)
		labelCancel()
		if err != nil {
			p.logger.Debug("bulb did not answer label request", "target", target, "error", err)
			continue
		}

		name := ld.Label().String()
		if name == lifxlan.EmptyLabel {
			name = "LIFX " + target
		}

		d := &lifxDevice{light: ld}
		d.baseDevice = newBaseDevice(fmt.Sprintf("lifx:%s", target), name, 1, d.write)
		found = append(found, d)
	}

	if len(found) == 0 {
		return fmt.Errorf("%w: no LIFX bulbs answered within %v", ErrProviderUnavailable, p.window)
	}

	p.mu.Lock()
	p.devices = found
	p.mu.Unlock()

	p.logger.Info("discovered bulbs", "count", len(found))
	return nil
}

// RequestControl powers every bulb on. LIFX has no exclusive mode, so the
// cached frames are dropped to repaint over whatever another app wrote.
func (p *LIFXProvider) RequestControl(ctx context.Context) error {
	p.mu.RLock()
	devices := p.devices
	p.mu.RUnlock()

	var errs []error
	for _, d := range devices {
		d.invalidate()
		if err := d.setPower(ctx, lifxlan.PowerOn); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.id, err))
		}
	}
	return errors.Join(errs...)
}

func (p *LIFXProvider) PerformHealthCheck(ctx context.Context) error {
	p.mu.RLock()
	devices := p.devices
	p.mu.RUnlock()

	var errs []error
	for _, d := range devices {
		power, err := d.power(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.id, err))
			continue
		}
		if !power.On() {
			errs = append(errs, fmt.Errorf("%s: powered off", d.id))
		}
	}
	return errors.Join(errs...)
}

func (p *LIFXProvider) Close() error {
	return nil
}

func (d *lifxDevice) write(ctx context.Context, frame []Color) error {
	ctx, cancel := context.WithTimeout(ctx, lifxCallTimeout)
	defer cancel()

	conn, err := d.light.Dial()
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	color := toLIFXColor(frame[0])
	return d.light.SetColor(ctx, conn, &color, 0, false)
}

func (d *lifxDevice) setPower(ctx context.Context, power lifxlan.Power) error {
	ctx, cancel := context.WithTimeout(ctx, lifxCallTimeout)
	defer cancel()

	conn, err := d.light.Dial()
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	return d.light.SetLightPower(ctx, conn, power, 0, false)
}

func (d *lifxDevice) power(ctx context.Context) (lifxlan.Power, error) {
	ctx, cancel := context.WithTimeout(ctx, lifxCallTimeout)
	defer cancel()

	conn, err := d.light.Dial()
	if err != nil {
		return 0, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	return d.light.GetPower(ctx, conn)
}

func toLIFXColor(c Color) lifxlan.Color {
	h, s, b := c.HSB()
	return lifxlan.Color{
		Hue:        uint16(h / 360.0 * math.MaxUint16),
		Saturation: uint16(s * math.MaxUint16),
		Brightness: uint16(b * math.MaxUint16),
		Kelvin:     lifxKelvin,
	}
}
