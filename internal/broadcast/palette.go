package broadcast

import (
	"encoding/json"
	"fmt"

	"auraconnect/internal/lights"
)

type colorsEvent struct {
	Colors []lights.Color `json:"colors"`
}

type connectionEvent struct {
	Connected *bool `json:"connected"`
}

type initMessage struct {
	AppID string `json:"app_id"`
}

// DecodePalette parses a {"colors": [...]} payload. Malformed or empty
// palettes are reported as lights.ErrInvalidPalette.
func DecodePalette(payload []byte) ([]lights.Color, error) {
	var ev colorsEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("%w: %w", lights.ErrInvalidPalette, err)
	}
	if len(ev.Colors) == 0 {
		return nil, fmt.Errorf("%w: no colors", lights.ErrInvalidPalette)
	}
	return ev.Colors, nil
}

// DecodeConnection parses a {"connected": bool} payload.
func DecodeConnection(payload []byte) (bool, error) {
	var ev connectionEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return false, fmt.Errorf("decoding connection event: %w", err)
	}
	if ev.Connected == nil {
		return false, fmt.Errorf("decoding connection event: missing \"connected\"")
	}
	return *ev.Connected, nil
}
