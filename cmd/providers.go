package cmd

import (
	"context"
	"errors"
	"log/slog"

	"auraconnect/internal/aura"
	"auraconnect/internal/config"
	"auraconnect/internal/discovery"
	"auraconnect/internal/lights"
	"auraconnect/internal/logging"
	"auraconnect/internal/store"
	"auraconnect/internal/telemetry"
)

// elgatoFinder combines configured addresses with network discovery.
type elgatoFinder struct {
	static  []string
	scanner *discovery.Scanner
}

func (f elgatoFinder) ElgatoAddrs(ctx context.Context) []string {
	addrs := append([]string(nil), f.static...)
	if f.scanner != nil {
		addrs = append(addrs, f.scanner.ElgatoAddrs(ctx)...)
	}
	return addrs
}

// buildProviders returns the enabled providers in their fixed registration
// order: LIFX, Hue, Elgato, Govee.
func buildProviders(c config.Config, st *store.Store, log *slog.Logger) []lights.Provider {
	var providers []lights.Provider

	if c.Providers.LIFX.Enabled {
		providers = append(providers, lights.NewLIFXProvider(log, c.Providers.LIFX.DiscoveryWindow))
	}

	if c.Providers.Hue.Enabled {
		var bridges []lights.HueBridge
		for _, b := range st.HueBridges() {
			bridges = append(bridges, lights.HueBridge{IP: b.IP, Username: b.Username})
		}
		providers = append(providers, lights.NewHueProvider(log, bridges, c.Providers.Hue.Timeout))
	}

	if c.Providers.Elgato.Enabled {
		finder := elgatoFinder{static: c.Providers.Elgato.Addresses}
		if c.Providers.Elgato.Discover {
			finder.scanner = discovery.NewScanner(log)
		}
		providers = append(providers, lights.NewElgatoProvider(log, finder, st))
	}

	if c.Providers.Govee.Enabled {
		providers = append(providers, lights.NewGoveeProvider(log, c.Providers.Govee.DiscoveryWindow))
	}

	return providers
}

// newService assembles the orchestrator with every enabled provider. The
// returned cleanup closes the telemetry recorder.
func newService(ctx context.Context, c config.Config, log *slog.Logger) (*aura.Service, func(), error) {
	st, err := store.Open(c.Store.Path)
	if err != nil {
		return nil, nil, err
	}

	opts := []aura.Option{
		aura.WithLogger(log),
		aura.WithHealthInterval(c.Health.Interval),
	}
	cleanup := func() {}

	rec, err := telemetry.New(ctx, c.InfluxDB, logging.Component(log, "telemetry"))
	switch {
	case err == nil:
		opts = append(opts, aura.WithRecorder(rec))
		cleanup = func() { _ = rec.Close() }
	case errors.Is(err, telemetry.ErrDisabled):
	default:
		log.Warn("telemetry unavailable, continuing without it", "error", err)
	}

	svc := aura.NewService(opts...)
	for _, p := range buildProviders(c, st, log) {
		svc.AddProvider(p)
	}
	return svc, cleanup, nil
}
