package lights

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/mdlayher/keylight"

	"auraconnect/internal/logging"
)

const (
	elgatoCallTimeout = 2 * time.Second
	elgatoPort        = 9123

	elgatoMinKelvin = 2900
	elgatoMaxKelvin = 7000
)

// ElgatoFinder locates Key Light accessories on the network.
type ElgatoFinder interface {
	ElgatoAddrs(ctx context.Context) []string
}

// ElgatoAddressBook remembers accessory addresses between runs.
type ElgatoAddressBook interface {
	ElgatoAddrs() []string
	AddElgatoAddrs(addrs ...string) error
}

type ElgatoProvider struct {
	mu      sync.RWMutex
	logger  *slog.Logger
	finder  ElgatoFinder
	book    ElgatoAddressBook
	devices []*elgatoDevice
}

type elgatoDevice struct {
	*baseDevice
	addr   string
	client *keylight.Client
}

// NewElgatoProvider probes the addresses in book plus whatever finder
// returns. Either may be nil.
func NewElgatoProvider(logger *slog.Logger, finder ElgatoFinder, book ElgatoAddressBook) *ElgatoProvider {
	return &ElgatoProvider{
		logger: logging.Component(logger, string(BrandElgato)),
		finder: finder,
		book:   book,
	}
}

func (p *ElgatoProvider) Name() string {
	return string(BrandElgato)
}

func (p *ElgatoProvider) Devices() []Device {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return asDevices(p.devices)
}

func (p *ElgatoProvider) Initialize(ctx context.Context) error {
	seen := make(map[string]bool)
	var addrs []string
	add := func(list []string) {
		for _, a := range list {
			if a != "" && !seen[a] {
				seen[a] = true
				addrs = append(addrs, a)
			}
		}
	}

	if p.book != nil {
		add(p.book.ElgatoAddrs())
	}
	if p.finder != nil {
		found := p.finder.ElgatoAddrs(ctx)
		add(found)
		if p.book != nil && len(found) > 0 {
			if err := p.book.AddElgatoAddrs(found...); err != nil {
				p.logger.Warn("failed to remember accessory addresses", "error", err)
			}
		}
	}

	p.logger.Info("probing accessories", "count", len(addrs))

	var devices []*elgatoDevice
	for _, addr := range addrs {
		d, err := p.probe(ctx, addr)
		if err != nil {
			p.logger.Warn("accessory did not answer", "addr", addr, "error", err)
			continue
		}
		devices = append(devices, d)
	}

	if len(devices) == 0 {
		return fmt.Errorf("%w: no Elgato accessories answered", ErrProviderUnavailable)
	}

	p.mu.Lock()
	p.devices = devices
	p.mu.Unlock()
	return nil
}

func (p *ElgatoProvider) probe(ctx context.Context, addr string) (*elgatoDevice, error) {
	client, err := keylight.NewClient(elgatoURL(addr), nil)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, elgatoCallTimeout)
	defer cancel()

	info, err := client.AccessoryInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("accessory info: %w", err)
	}
	ll, err := client.Lights(ctx)
	if err != nil {
		return nil, fmt.Errorf("lights: %w", err)
	}

	name := info.DisplayName
	if name == "" {
		name = info.ProductName
	}
	if name == "" {
		name = "Elgato " + addr
	}

	d := &elgatoDevice{addr: addr, client: client}
	d.baseDevice = newBaseDevice(fmt.Sprintf("elgato:%s", addr), name, len(ll), d.write)
	p.logger.Info("accessory found", "name", name, "product", info.ProductName, "addr", addr, "lights", len(ll))
	return d, nil
}

// RequestControl switches every accessory on and drops the cached frames.
func (p *ElgatoProvider) RequestControl(ctx context.Context) error {
	p.mu.RLock()
	devices := p.devices
	p.mu.RUnlock()

	var errs []error
	for _, d := range devices {
		d.invalidate()
		if err := d.switchOn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.id, err))
		}
	}
	return errors.Join(errs...)
}

func (p *ElgatoProvider) PerformHealthCheck(ctx context.Context) error {
	p.mu.RLock()
	devices := p.devices
	p.mu.RUnlock()

	var errs []error
	for _, d := range devices {
		callCtx, cancel := context.WithTimeout(ctx, elgatoCallTimeout)
		_, err := d.client.AccessoryInfo(callCtx)
		cancel()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.id, err))
		}
	}
	return errors.Join(errs...)
}

func (p *ElgatoProvider) Close() error {
	return nil
}

func (d *elgatoDevice) write(ctx context.Context, frame []Color) error {
	ctx, cancel := context.WithTimeout(ctx, elgatoCallTimeout)
	defer cancel()

	ll := make([]*keylight.Light, len(frame))
	for i, c := range frame {
		ll[i] = toKeyLight(c)
	}
	return d.client.SetLights(ctx, ll)
}

func (d *elgatoDevice) switchOn(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, elgatoCallTimeout)
	defer cancel()

	ll, err := d.client.Lights(ctx)
	if err != nil {
		return err
	}
	for _, l := range ll {
		l.On = true
	}
	return d.client.SetLights(ctx, ll)
}

// toKeyLight maps a colour onto a white-only light: value drives brightness
// and the red/blue balance picks a temperature between warm and cool.
func toKeyLight(c Color) *keylight.Light {
	_, _, v := c.HSB()

	// The library rejects brightness outside [3, 100].
	brightness := int(math.Round(v * 100))
	brightness = min(max(brightness, 3), 100)

	balance := (float64(c.B) - float64(c.R)) / 255.0
	mid := float64(elgatoMinKelvin+elgatoMaxKelvin) / 2
	span := float64(elgatoMaxKelvin-elgatoMinKelvin) / 2
	temp := int(math.Round(mid + balance*span))

	return &keylight.Light{
		On:          v > 0,
		Brightness:  brightness,
		Temperature: temp,
	}
}

func elgatoURL(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return addr
	}
	return fmt.Sprintf("http://%s:%d", addr, elgatoPort)
}
