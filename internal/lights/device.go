package lights

import (
	"context"
	"fmt"
	"slices"
)

// baseDevice implements Device for every provider in this package. The
// provider supplies write, which receives one colour per light.
type baseDevice struct {
	id     string
	name   string
	lights []*Light
	write  func(ctx context.Context, frame []Color) error

	// last is the frame most recently written; nil forces the next write.
	last []Color
}

func newBaseDevice(id, name string, zones int, write func(ctx context.Context, frame []Color) error) *baseDevice {
	if zones < 1 {
		zones = 1
	}
	lights := make([]*Light, zones)
	for i := range lights {
		lights[i] = &Light{}
	}
	return &baseDevice{
		id:     id,
		name:   name,
		lights: lights,
		write:  write,
	}
}

func (d *baseDevice) ID() string {
	return d.id
}

func (d *baseDevice) Name() string {
	return d.name
}

func (d *baseDevice) SetName(name string) {
	d.name = name
}

func (d *baseDevice) Lights() []*Light {
	return d.lights
}

func (d *baseDevice) ApplyLights(ctx context.Context) error {
	frame := make([]Color, len(d.lights))
	for i, l := range d.lights {
		frame[i] = l.Color
	}
	if d.last != nil && slices.Equal(frame, d.last) {
		return nil
	}
	if err := d.write(ctx, frame); err != nil {
		d.last = nil
		return fmt.Errorf("%s: %w", d.id, err)
	}
	d.last = frame
	return nil
}

// invalidate drops the cached frame so the next ApplyLights rewrites the
// hardware even if the colours did not change.
func (d *baseDevice) invalidate() {
	d.last = nil
}

func asDevices[T Device](devices []T) []Device {
	out := make([]Device, len(devices))
	for i, d := range devices {
		out[i] = d
	}
	return out
}
