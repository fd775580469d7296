package aura

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"auraconnect/internal/lights"
)

func devicesNamed(names ...string) []lights.Device {
	out := make([]lights.Device, len(names))
	for i, n := range names {
		out[i] = newFakeDevice(nil, n, 1)
	}
	return out
}

func names(devices []lights.Device) []string {
	out := make([]string, len(devices))
	for i, d := range devices {
		out[i] = d.Name()
	}
	return out
}

func TestDedupeNames(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		want    []string
		renamed int
	}{
		{name: "empty", input: nil, want: []string{}, renamed: 0},
		{name: "unique", input: []string{"A", "B"}, want: []string{"A", "B"}, renamed: 0},
		{name: "pair", input: []string{"RAM", "RAM"}, want: []string{"RAM 1", "RAM 2"}, renamed: 2},
		{
			name:    "index within colliding subset",
			input:   []string{"Strip", "Fan", "Strip", "Fan", "Strip", "Keyboard"},
			want:    []string{"Strip 1", "Fan 1", "Strip 2", "Fan 2", "Strip 3", "Keyboard"},
			renamed: 5,
		},
		{
			name:    "generated name collides with reported name",
			input:   []string{"Strip", "Strip", "Strip 1"},
			want:    []string{"Strip 1 1", "Strip 2", "Strip 1 2"},
			renamed: 3,
		},
		{
			name:    "reported suffix survives when free",
			input:   []string{"Strip", "Strip", "Strip 3"},
			want:    []string{"Strip 1", "Strip 2", "Strip 3"},
			renamed: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			devices := devicesNamed(tt.input...)
			require.Equal(t, tt.renamed, DedupeNames(devices))
			require.Equal(t, tt.want, names(devices))
		})
	}
}

func TestDedupeNames_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		// A small alphabet forces collisions. Suffixed names are drawn too,
		// so generated names can clash with reported ones.
		alphabet := []string{"RAM", "GPU", "Strip", "Strip 1", "Strip 2", "Strip 1 1", "Fan", "Fan 2"}
		input := rapid.SliceOfN(rapid.SampledFrom(alphabet), 0, 12).Draw(t, "names")

		counts := make(map[string]int)
		for _, n := range input {
			counts[n]++
		}
		anyShared := false
		for _, c := range counts {
			if c > 1 {
				anyShared = true
			}
		}

		devices := devicesNamed(input...)
		renamed := DedupeNames(devices)

		seen := make(map[string]bool)
		changed := 0
		for i, d := range devices {
			got := d.Name()
			if seen[got] {
				t.Fatalf("duplicate name %q after dedupe; names %q", got, names(devices))
			}
			seen[got] = true

			orig := input[i]
			if got == orig {
				continue
			}
			changed++
			if !strings.HasPrefix(got, orig+" ") {
				t.Fatalf("device %d: %q renamed to %q, want a suffix of the original", i, orig, got)
			}
		}

		if changed != renamed {
			t.Fatalf("renamed %d devices, reported %d", changed, renamed)
		}
		if !anyShared && renamed != 0 {
			t.Fatalf("unique input %q was renamed", input)
		}
		if anyShared && renamed == 0 {
			t.Fatalf("shared names in %q left alone", input)
		}
	})
}
