package lights

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/lucasb-eyer/go-colorful"
)

type Brand string

const (
	BrandLIFX   Brand = "lifx"
	BrandHue    Brand = "hue"
	BrandElgato Brand = "elgato"
	BrandGovee  Brand = "govee"
)

// Color is an 8-bit sRGB triple. Its JSON form is either "#rrggbb" or
// {"r":0,"g":0,"b":0}; it always marshals to the hex string.
type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

var (
	Black = Color{}
	White = Color{R: 255, G: 255, B: 255}
)

func ParseColor(s string) (Color, error) {
	c, err := colorful.Hex(s)
	if err != nil {
		return Color{}, fmt.Errorf("parse color %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return Color{R: r, G: g, B: b}, nil
}

func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func (c Color) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Color) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := ParseColor(s)
		if err != nil {
			return err
		}
		*c = parsed
		return nil
	}

	var raw struct {
		R *uint8 `json:"r"`
		G *uint8 `json:"g"`
		B *uint8 `json:"b"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse color %s: %w", data, err)
	}
	if raw.R == nil || raw.G == nil || raw.B == nil {
		return fmt.Errorf("parse color %s: r, g and b are required", data)
	}
	*c = Color{R: *raw.R, G: *raw.G, B: *raw.B}
	return nil
}

func (c Color) colorful() colorful.Color {
	return colorful.Color{
		R: float64(c.R) / 255.0,
		G: float64(c.G) / 255.0,
		B: float64(c.B) / 255.0,
	}
}

// HSB returns hue in degrees [0, 360) and saturation/brightness in [0, 1].
func (c Color) HSB() (h, s, b float64) {
	return c.colorful().Hsv()
}

// XY returns the CIE 1931 chromaticity of the colour. Black maps to the D65
// white point so callers never divide by zero.
func (c Color) XY() (x, y float64) {
	if c == Black {
		return 0.3127, 0.3290
	}
	x, y, _ = c.colorful().Xyy()
	return x, y
}

// Light is a single colour-settable zone of a device.
type Light struct {
	Color Color
}

// Device is a named collection of lights. Colour changes are staged on the
// lights and pushed to hardware in one write by ApplyLights, which must be
// safe to call when nothing changed.
type Device interface {
	Name() string
	SetName(name string)
	Lights() []*Light
	ApplyLights(ctx context.Context) error
}

// Provider exposes the devices of one hardware family.
type Provider interface {
	Name() string
	Devices() []Device

	// Initialize discovers devices and populates Devices. It returns an error
	// wrapping ErrProviderUnavailable when the family is absent.
	Initialize(ctx context.Context) error

	// RequestControl claims write access to the hardware. Best-effort.
	RequestControl(ctx context.Context) error

	// PerformHealthCheck returns nil when every device answered.
	PerformHealthCheck(ctx context.Context) error

	Close() error
}
