package lights

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/openhue/openhue-go"

	"auraconnect/internal/logging"
)

const defaultHueTimeout = 3 * time.Second

type HueBridge struct {
	IP       string
	Username string
}

type HueProvider struct {
	mu      sync.RWMutex
	logger  *slog.Logger
	bridges []HueBridge
	timeout time.Duration
	conns   []*hueConnection
	devices []*hueDevice
}

type hueConnection struct {
	bridge  HueBridge
	client  *openhue.ClientWithResponses
	timeout time.Duration
}

type hueDevice struct {
	*baseDevice
	conn    *hueConnection
	lightID string
}

// NewHueProvider returns a provider for the colour-capable lights of the
// given paired bridges. A non-positive timeout selects the default per-call
// timeout.
func NewHueProvider(logger *slog.Logger, bridges []HueBridge, timeout time.Duration) *HueProvider {
	if timeout <= 0 {
		timeout = defaultHueTimeout
	}
	return &HueProvider{
		logger:  logging.Component(logger, string(BrandHue)),
		bridges: bridges,
		timeout: timeout,
	}
}

// NewHueHTTPClient returns a client that accepts the bridge's self-signed
// certificate.
func NewHueHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
}

func (p *HueProvider) Name() string {
	return string(BrandHue)
}

func (p *HueProvider) Devices() []Device {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return asDevices(p.devices)
}

func (p *HueProvider) Initialize(ctx context.Context) error {
	if len(p.bridges) == 0 {
		return fmt.Errorf("%w: no paired Hue bridges", ErrProviderUnavailable)
	}

	var (
		conns   []*hueConnection
		devices []*hueDevice
		errs    []error
	)
	for _, b := range p.bridges {
		conn, err := connectHueBridge(b, p.timeout)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		conns = append(conns, conn)

		found, err := p.listLights(ctx, conn)
		if err != nil {
			p.logger.Warn("bridge did not list lights", "bridge", b.IP, "error", err)
			errs = append(errs, err)
			continue
		}
		p.logger.Info("bridge lights", "bridge", b.IP, "count", len(found))
		devices = append(devices, found...)
	}

	if len(devices) == 0 {
		return fmt.Errorf("%w: no colour lights on %d bridge(s): %w", ErrProviderUnavailable, len(p.bridges), errors.Join(errs...))
	}

	p.mu.Lock()
	p.conns = conns
	p.devices = devices
	p.mu.Unlock()
	return nil
}

func connectHueBridge(b HueBridge, timeout time.Duration) (*hueConnection, error) {
	client, err := openhue.NewClientWithResponses(
		fmt.Sprintf("https://%s", b.IP),
		openhue.WithHTTPClient(NewHueHTTPClient(timeout)),
		openhue.WithRequestEditorFn(func(ctx context.Context, req *http.Request) error {
			req.Header.Set("hue-application-key", b.Username)
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create Hue client for %s: %w", b.IP, err)
	}
	return &hueConnection{bridge: b, client: client, timeout: timeout}, nil
}

func (p *HueProvider) listLights(ctx context.Context, conn *hueConnection) ([]*hueDevice, error) {
	resp, err := conn.client.GetLightsWithResponse(ctx)
	if err != nil {
		return nil, fmt.Errorf("bridge %s: %w", conn.bridge.IP, err)
	}
	if resp.JSON200 == nil || resp.JSON200.Data == nil {
		return nil, fmt.Errorf("bridge %s: no light data (HTTP %d)", conn.bridge.IP, resp.StatusCode())
	}

	var devices []*hueDevice
	for _, l := range *resp.JSON200.Data {
		if l.Id == nil || l.Color == nil {
			continue
		}
		name := "Hue Light"
		if l.Metadata != nil && l.Metadata.Name != nil {
			name = *l.Metadata.Name
		}
		d := &hueDevice{conn: conn, lightID: *l.Id}
		d.baseDevice = newBaseDevice(fmt.Sprintf("hue:%s", *l.Id), name, 1, d.write)
		devices = append(devices, d)
	}
	return devices, nil
}

// RequestControl only drops the cached frames. Bridges have no exclusive
// mode outside the entertainment API; the next frame turns every light on.
func (p *HueProvider) RequestControl(_ context.Context) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, d := range p.devices {
		d.invalidate()
	}
	return nil
}

func (p *HueProvider) PerformHealthCheck(ctx context.Context) error {
	p.mu.RLock()
	conns := p.conns
	p.mu.RUnlock()

	var errs []error
	for _, conn := range conns {
		resp, err := conn.client.GetLightsWithResponse(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("bridge %s: %w", conn.bridge.IP, err))
			continue
		}
		if resp.StatusCode() != http.StatusOK {
			errs = append(errs, fmt.Errorf("bridge %s returned HTTP %d", conn.bridge.IP, resp.StatusCode()))
		}
	}
	return errors.Join(errs...)
}

func (p *HueProvider) Close() error {
	return nil
}

func (d *hueDevice) write(ctx context.Context, frame []Color) error {
	ctx, cancel := context.WithTimeout(ctx, d.conn.timeout)
	defer cancel()

	c := frame[0]
	_, _, v := c.HSB()
	on := v > 0
	body := openhue.UpdateLightJSONRequestBody{
		On: &openhue.On{On: &on},
	}
	if on {
		x, y := c.XY()
		fx, fy := float32(x), float32(y)
		brightness := openhue.Brightness(v * 100.0)
		body.Color = &openhue.Color{Xy: &openhue.GamutPosition{X: &fx, Y: &fy}}
		body.Dimming = &openhue.Dimming{Brightness: &brightness}
	}

	resp, err := d.conn.client.UpdateLightWithResponse(ctx, d.lightID, body)
	if err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("bridge returned HTTP %d", resp.StatusCode())
	}
	return nil
}

// PairHueBridge asks the bridge at ip for an application key. The link
// button on the bridge must have been pressed shortly before.
func PairHueBridge(ctx context.Context, ip string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"devicetype":        "auraconnect#service",
		"generateclientkey": true,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("https://%s/api", ip), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := NewHueHTTPClient(5 * time.Second).Do(req)
	if err != nil {
		return "", fmt.Errorf("cannot reach bridge: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read pairing response: %w", err)
	}
	return parsePairResponse(respBody)
}

func parsePairResponse(body []byte) (string, error) {
	var results []struct {
		Success *struct {
			Username string `json:"username"`
		} `json:"success,omitempty"`
		Error *struct {
			Type        int    `json:"type"`
			Description string `json:"description"`
		} `json:"error,omitempty"`
	}
	if err := json.Unmarshal(body, &results); err != nil {
		return "", fmt.Errorf("unexpected response from bridge: %w", err)
	}
	if len(results) == 0 {
		return "", errors.New("empty response from bridge")
	}
	if e := results[0].Error; e != nil {
		if e.Type == 101 {
			return "", errors.New("link button not pressed")
		}
		return "", errors.New(e.Description)
	}
	if s := results[0].Success; s != nil && s.Username != "" {
		return s.Username, nil
	}
	return "", errors.New("unexpected response from bridge")
}
