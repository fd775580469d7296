package broadcast

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"auraconnect/internal/lights"
)

// Bridge adapts broadcast events to a Distributor.
//
// Thread Safety:
//   - OnConnectionChanged and OnColorsChanged may be called from any goroutine.
//   - Run must be called exactly once.
type Bridge struct {
	dist    Distributor
	logger  *slog.Logger
	mailbox chan []lights.Color
	done    chan struct{}

	mu        sync.Mutex
	connected bool
	ready     chan struct{}
	readyOnce sync.Once

	dropped   atomic.Uint64
	delivered atomic.Uint64
}

// NewBridge creates a bridge feeding dist.
func NewBridge(dist Distributor, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Bridge{
		dist:    dist,
		logger:  logger,
		mailbox: make(chan []lights.Color, 1),
		done:    make(chan struct{}),
		ready:   make(chan struct{}),
	}
}

// OnConnectionChanged records the broadcast connection state. The first
// connected=true releases WaitConnected.
func (b *Bridge) OnConnectionChanged(connected bool) {
	b.mu.Lock()
	changed := b.connected != connected
	b.connected = connected
	b.mu.Unlock()

	if connected {
		b.readyOnce.Do(func() { close(b.ready) })
	}
	if !changed {
		return
	}
	if connected {
		b.logger.Info("broadcast connected")
	} else {
		b.logger.Info("broadcast disconnected")
	}
}

// Connected reports the last known connection state.
func (b *Bridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

// OnColorsChanged queues a copy of colors for the worker and returns
// immediately. A palette still waiting in the mailbox is replaced.
func (b *Bridge) OnColorsChanged(colors []lights.Color) {
	palette := append([]lights.Color(nil), colors...)
	for {
		select {
		case b.mailbox <- palette:
			return
		default:
		}
		select {
		case <-b.mailbox:
			b.dropped.Add(1)
		default:
		}
	}
}

// Run distributes queued palettes until ctx is cancelled. A palette that
// arrives together with cancellation is dropped.
func (b *Bridge) Run(ctx context.Context) {
	defer close(b.done)
	for {
		select {
		case <-ctx.Done():
			return
		case palette := <-b.mailbox:
			if ctx.Err() != nil {
				return
			}
			if err := b.dist.DistributeColors(ctx, palette); err != nil {
				b.logger.Warn("distribution failed", "colors", len(palette), "error", err)
			}
			b.delivered.Add(1)
		}
	}
}

// Done is closed when Run returns.
func (b *Bridge) Done() <-chan struct{} { return b.done }

// WaitConnected blocks until the broadcast has reported connected at least
// once. A non-positive timeout returns immediately.
func (b *Bridge) WaitConnected(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		return nil
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case <-b.ready:
		return nil
	case <-waitCtx.Done():
		if ctx.Err() == nil && errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
			return ErrConnectTimeout
		}
		return ctx.Err()
	}
}

// Dropped returns how many palettes were replaced before delivery.
func (b *Bridge) Dropped() uint64 { return b.dropped.Load() }

// Delivered returns how many palettes reached the distributor.
func (b *Bridge) Delivered() uint64 { return b.delivered.Load() }
