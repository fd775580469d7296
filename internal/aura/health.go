package aura

import (
	"context"
)

// healthLoop runs HealthCheck on every tick until ctx is cancelled. Ticks
// are handled one at a time on this goroutine; a tick that comes due while
// the previous one is still running is dropped by the ticker.
func (s *Service) healthLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("health loop started", "interval", s.interval)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("health loop stopped")
			return
		case <-ticker.C():
			s.HealthCheck(ctx)
		}
	}
}

// HealthCheck verifies every active provider and then re-requests control
// from it, whatever the verification said. Hardware silently drops control
// after power cycles, sleep or competing software, so control is reclaimed
// unconditionally. After Close the call is a no-op.
func (s *Service) HealthCheck(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateStopped {
		return
	}

	for _, e := range s.entries {
		if !e.active {
			continue
		}
		name := e.provider.Name()

		err := guard(name, "health check", func() error { return e.provider.PerformHealthCheck(ctx) })
		s.recorder.RecordHealth(name, err)
		if err != nil {
			s.logger.Warn("provider unhealthy", "provider", name, "error", err)
		} else {
			s.logger.Debug("provider healthy", "provider", name)
		}

		s.requestControl(ctx, e)
	}
}
