package aura

import (
	"context"
	"errors"
	"fmt"

	"auraconnect/internal/lights"
)

// DistributeColors paints palette over every light of every active provider.
// A single cursor runs across providers, devices and lights in order and
// wraps at the end of the palette, so light k receives palette[k mod len].
// Each device is applied exactly once, after all its lights are set.
//
// An empty palette returns ErrInvalidPalette and touches nothing. Device
// write failures are logged and joined into the returned error; they never
// stop the pass. After Close the call is a no-op.
func (s *Service) DistributeColors(ctx context.Context, palette []lights.Color) error {
	n := len(palette)
	if n == 0 {
		return fmt.Errorf("%w: empty palette", lights.ErrInvalidPalette)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateStopped {
		s.logger.Debug("service stopped, dropping palette", "colors", n)
		return nil
	}

	start := s.clock.Now()
	painted := 0
	cursor := 0
	var errs []error

	for _, e := range s.entries {
		if !e.active {
			continue
		}
		name := e.provider.Name()

		for _, d := range e.provider.Devices() {
			for _, l := range d.Lights() {
				l.Color = palette[cursor]
				cursor = (cursor + 1) % n
				painted++
			}

			err := guard(name, "apply lights", func() error { return d.ApplyLights(ctx) })
			if err != nil {
				if !errors.Is(err, lights.ErrHardwareWrite) {
					err = fmt.Errorf("%w: %s/%s: %w", lights.ErrHardwareWrite, name, d.Name(), err)
				}
				s.logger.Warn("device write failed", "provider", name, "device", d.Name(), "error", err)
				errs = append(errs, err)
			}
		}
	}

	s.recorder.RecordDistribution(painted, n, s.clock.Since(start))
	return errors.Join(errs...)
}
