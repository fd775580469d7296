package cmd

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auraconnect/internal/aura"
	"auraconnect/internal/config"
	"auraconnect/internal/lights"
	"auraconnect/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuildProviders_Order(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	providers := buildProviders(config.Defaults(), st, discardLogger())
	var names []string
	for _, p := range providers {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{
		string(lights.BrandLIFX),
		string(lights.BrandHue),
		string(lights.BrandElgato),
		string(lights.BrandGovee),
	}, names)
}

func TestBuildProviders_RespectsEnableFlags(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	c := config.Defaults()
	c.Providers.LIFX.Enabled = false
	c.Providers.Govee.Enabled = false

	providers := buildProviders(c, st, discardLogger())
	require.Len(t, providers, 2)
	assert.Equal(t, string(lights.BrandHue), providers[0].Name())
	assert.Equal(t, string(lights.BrandElgato), providers[1].Name())
}

func TestElgatoFinder_StaticOnly(t *testing.T) {
	f := elgatoFinder{static: []string{"10.0.0.5"}}
	assert.Equal(t, []string{"10.0.0.5"}, f.ElgatoAddrs(t.Context()))
}

func TestParsePalette(t *testing.T) {
	palette, err := parsePalette([]string{"#ff0000", "#0f0"})
	require.NoError(t, err)
	assert.Equal(t, []lights.Color{{R: 255}, {G: 255}}, palette)

	_, err = parsePalette([]string{"#ff0000", "red"})
	require.Error(t, err)
}

func TestPrintSnapshot(t *testing.T) {
	var out bytes.Buffer
	cmd := devicesCmd
	cmd.SetOut(&out)
	t.Cleanup(func() { cmd.SetOut(nil) })

	printSnapshot(cmd, []aura.ProviderSnapshot{
		{Name: "LIFX", Active: true, Devices: []aura.DeviceSnapshot{
			{Name: "Desk", Lights: []lights.Color{{R: 255}}},
		}},
		{Name: "Govee", Active: false},
	})

	assert.Equal(t, "LIFX (active)\n  Desk: 1 light(s) #ff0000\nGovee (unavailable)\n", out.String())
}

func TestConfigInit_WritesLoadableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auraconnect.yaml")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"config", "init", path})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), path)

	_, err := os.Stat(path)
	require.NoError(t, err)
}
