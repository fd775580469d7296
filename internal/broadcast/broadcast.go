// Package broadcast connects an external colour-broadcast stream to the
// orchestrator.
//
// A Source delivers connection and palette events to a Handler. The Bridge
// is the Handler used in production: it never distributes on the source's
// delivery goroutine but hands palettes to a single worker through a
// one-slot mailbox where the newest palette replaces any undelivered one.
package broadcast

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"auraconnect/internal/lights"
)

var (
	// ErrNotConnected indicates the source has no live connection.
	ErrNotConnected = errors.New("broadcast: not connected")

	// ErrConnectTimeout indicates the broadcast never reported connected
	// within the configured startup timeout.
	ErrConnectTimeout = errors.New("broadcast: connect timeout")
)

// Handler receives decoded broadcast events. Implementations must not block.
type Handler interface {
	OnConnectionChanged(connected bool)
	OnColorsChanged(colors []lights.Color)
}

// Source is an inbound broadcast event stream.
type Source interface {
	// Start connects and begins delivering events to h.
	Start(ctx context.Context, h Handler) error
	// Init announces this application to the broadcast producer. It is
	// called once, after the orchestrator has initialized.
	Init(ctx context.Context, appID uuid.UUID) error
	Close() error
}

// Distributor is the orchestrator operation the bridge drives.
type Distributor interface {
	DistributeColors(ctx context.Context, palette []lights.Color) error
}
