package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults_Valid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, DefaultAppID, cfg.AppID)
	assert.Equal(t, 2*time.Second, cfg.Startup.SettleDelay)
	assert.Equal(t, 15*time.Second, cfg.Health.Interval)
	assert.Equal(t, "auraconnect/broadcast", cfg.Broadcast.TopicPrefix)
	assert.False(t, cfg.InfluxDB.Enabled)
}

func TestParsedAppID(t *testing.T) {
	id, err := Defaults().ParsedAppID()
	require.NoError(t, err)
	assert.Equal(t, DefaultAppID, id.String())

	cfg := Defaults()
	cfg.AppID = "not-a-uuid"
	_, err = cfg.ParsedAppID()
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad app id", func(c *Config) { c.AppID = "xyz" }, "app_id"},
		{"negative settle delay", func(c *Config) { c.Startup.SettleDelay = -time.Second }, "settle_delay"},
		{"zero health interval", func(c *Config) { c.Health.Interval = 0 }, "health.interval"},
		{"missing host", func(c *Config) { c.MQTT.Host = "" }, "mqtt.host"},
		{"port out of range", func(c *Config) { c.MQTT.Port = 70000 }, "mqtt.port"},
		{"qos out of range", func(c *Config) { c.MQTT.QoS = 3 }, "mqtt.qos"},
		{"empty prefix", func(c *Config) { c.Broadcast.TopicPrefix = "" }, "topic_prefix"},
		{"wildcard prefix", func(c *Config) { c.Broadcast.TopicPrefix = "aura/#" }, "wildcards"},
		{"negative connect timeout", func(c *Config) { c.Broadcast.ConnectTimeout = -1 }, "connect_timeout"},
		{"influx without url", func(c *Config) { c.InfluxDB.Enabled = true; c.InfluxDB.URL = "" }, "influxdb.url"},
		{"influx without bucket", func(c *Config) { c.InfluxDB.Enabled = true; c.InfluxDB.Bucket = "" }, "influxdb.bucket"},
		{"unknown level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"unknown format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"unknown output", func(c *Config) { c.Logging.Output = "file" }, "logging.output"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_JoinsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.MQTT.Host = ""
	cfg.Logging.Format = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mqtt.host")
	assert.Contains(t, err.Error(), "logging.format")
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
health:
  interval: 30s
mqtt:
  host: broker.lan
  port: 8883
  tls: true
broadcast:
  topic_prefix: home/aura
  connect_timeout: 10s
providers:
  govee:
    enabled: false
  elgato:
    addresses: ["10.0.0.5", "10.0.0.6"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Health.Interval)
	assert.Equal(t, "broker.lan", cfg.MQTT.Host)
	assert.Equal(t, 8883, cfg.MQTT.Port)
	assert.True(t, cfg.MQTT.TLS)
	assert.Equal(t, "home/aura", cfg.Broadcast.TopicPrefix)
	assert.Equal(t, 10*time.Second, cfg.Broadcast.ConnectTimeout)
	assert.False(t, cfg.Providers.Govee.Enabled)
	assert.True(t, cfg.Providers.LIFX.Enabled, "unset keys keep defaults")
	assert.Equal(t, []string{"10.0.0.5", "10.0.0.6"}, cfg.Providers.Elgato.Addresses)
	assert.Equal(t, DefaultAppID, cfg.AppID)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mqtt:\n  host: from-file\n"), 0o600))
	t.Setenv("AURACONNECT_MQTT_HOST", "from-env")
	t.Setenv("AURACONNECT_STARTUP_SETTLE_DELAY", "500ms")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.MQTT.Host)
	assert.Equal(t, 500*time.Millisecond, cfg.Startup.SettleDelay)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mqtt:\n  qos: 7\n"), 0o600))

	_, err := Load(viper.New(), path)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestWriteDefault_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, WriteDefault(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "AURACONNECT_")
	assert.Contains(t, string(data), "settle_delay: 2s")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, Defaults().MQTT, cfg.MQTT)
	assert.Equal(t, Defaults().Health, cfg.Health)
	assert.Equal(t, Defaults().Providers.LIFX, cfg.Providers.LIFX)
}

func TestWriteDefault_RefusesToOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("keep: me\n"), 0o600))

	require.Error(t, WriteDefault(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "keep: me\n", string(data))
}
