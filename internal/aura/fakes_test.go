package aura

import (
	"context"
	"fmt"
	"sync"
	"time"

	"auraconnect/internal/lights"
)

// callLog records provider and device calls across all fakes of a test.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, fmt.Sprintf(format, args...))
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func (l *callLog) count(call string) int {
	n := 0
	for _, c := range l.snapshot() {
		if c == call {
			n++
		}
	}
	return n
}

type fakeDevice struct {
	name     string
	lights   []*lights.Light
	log      *callLog
	applyErr error

	// colorsAtApply holds the light colours seen by each ApplyLights call.
	colorsAtApply [][]lights.Color
}

func newFakeDevice(log *callLog, name string, zones int) *fakeDevice {
	d := &fakeDevice{name: name, log: log}
	for range zones {
		d.lights = append(d.lights, &lights.Light{})
	}
	return d
}

func (d *fakeDevice) Name() string            { return d.name }
func (d *fakeDevice) SetName(name string)     { d.name = name }
func (d *fakeDevice) Lights() []*lights.Light { return d.lights }

func (d *fakeDevice) ApplyLights(context.Context) error {
	frame := make([]lights.Color, len(d.lights))
	for i, l := range d.lights {
		frame[i] = l.Color
	}
	d.colorsAtApply = append(d.colorsAtApply, frame)
	if d.log != nil {
		d.log.add("%s.apply", d.name)
	}
	return d.applyErr
}

type fakeProvider struct {
	name    string
	devices []*fakeDevice
	log     *callLog

	initErr    error
	healthErr  error
	controlErr error
	panicOn    string
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Devices() []lights.Device {
	out := make([]lights.Device, len(p.devices))
	for i, d := range p.devices {
		out[i] = d
	}
	return out
}

func (p *fakeProvider) call(op string) {
	p.log.add("%s.%s", p.name, op)
	if p.panicOn == op {
		panic(op + " exploded")
	}
}

func (p *fakeProvider) Initialize(context.Context) error {
	p.call("init")
	return p.initErr
}

func (p *fakeProvider) RequestControl(context.Context) error {
	p.call("control")
	return p.controlErr
}

func (p *fakeProvider) PerformHealthCheck(context.Context) error {
	p.call("health")
	return p.healthErr
}

func (p *fakeProvider) Close() error {
	p.call("close")
	return nil
}

// fakeRecorder counts telemetry calls.
type fakeRecorder struct {
	mu            sync.Mutex
	health        map[string][]error
	control       map[string]int
	distributions []int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{health: make(map[string][]error), control: make(map[string]int)}
}

func (r *fakeRecorder) RecordHealth(provider string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.health[provider] = append(r.health[provider], err)
}

func (r *fakeRecorder) RecordControl(provider string, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.control[provider]++
}

func (r *fakeRecorder) RecordDistribution(lights, _ int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.distributions = append(r.distributions, lights)
}
