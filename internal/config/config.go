// Package config provides configuration types, defaults and loading for auraconnect.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

// DefaultAppID identifies auraconnect to the broadcast source.
const DefaultAppID = "e6bef332-95b8-76ec-a6d0-9f402bad244c"

// EnvPrefix is prepended to every environment override, e.g. AURACONNECT_MQTT_HOST.
const EnvPrefix = "AURACONNECT"

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all configuration options for auraconnect.
type Config struct {
	AppID     string          `mapstructure:"app_id" yaml:"app_id"`
	Startup   StartupConfig   `mapstructure:"startup" yaml:"startup"`
	Health    HealthConfig    `mapstructure:"health" yaml:"health"`
	MQTT      MQTTConfig      `mapstructure:"mqtt" yaml:"mqtt"`
	Broadcast BroadcastConfig `mapstructure:"broadcast" yaml:"broadcast"`
	Providers ProvidersConfig `mapstructure:"providers" yaml:"providers"`
	Store     StoreConfig     `mapstructure:"store" yaml:"store"`
	InfluxDB  InfluxDBConfig  `mapstructure:"influxdb" yaml:"influxdb"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// StartupConfig controls the pause between connecting and initializing providers.
type StartupConfig struct {
	SettleDelay time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
}

// HealthConfig controls the provider health loop.
type HealthConfig struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// MQTTConfig describes the broker carrying the colour broadcast.
type MQTTConfig struct {
	Host      string          `mapstructure:"host" yaml:"host"`
	Port      int             `mapstructure:"port" yaml:"port"`
	TLS       bool            `mapstructure:"tls" yaml:"tls"`
	ClientID  string          `mapstructure:"client_id" yaml:"client_id"`
	Username  string          `mapstructure:"username" yaml:"username"`
	Password  string          `mapstructure:"password" yaml:"password"`
	QoS       int             `mapstructure:"qos" yaml:"qos"`
	Reconnect ReconnectConfig `mapstructure:"reconnect" yaml:"reconnect"`
}

// ReconnectConfig bounds the MQTT reconnect backoff.
type ReconnectConfig struct {
	InitialDelay time.Duration `mapstructure:"initial_delay" yaml:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay" yaml:"max_delay"`
}

// BroadcastConfig locates the broadcast topics under the broker.
type BroadcastConfig struct {
	TopicPrefix string `mapstructure:"topic_prefix" yaml:"topic_prefix"`
	// ConnectTimeout is how long startup waits for the first connected
	// event. Zero disables the wait.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
}

// ProvidersConfig enables and tunes each device provider.
type ProvidersConfig struct {
	LIFX   DiscoveryProviderConfig `mapstructure:"lifx" yaml:"lifx"`
	Hue    HueConfig               `mapstructure:"hue" yaml:"hue"`
	Elgato ElgatoConfig            `mapstructure:"elgato" yaml:"elgato"`
	Govee  DiscoveryProviderConfig `mapstructure:"govee" yaml:"govee"`
}

// DiscoveryProviderConfig is shared by providers that find devices by broadcast.
type DiscoveryProviderConfig struct {
	Enabled         bool          `mapstructure:"enabled" yaml:"enabled"`
	DiscoveryWindow time.Duration `mapstructure:"discovery_window" yaml:"discovery_window"`
}

type HueConfig struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type ElgatoConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Discover runs mDNS and a subnet probe at startup in addition to the
	// configured and remembered addresses.
	Discover  bool     `mapstructure:"discover" yaml:"discover"`
	Addresses []string `mapstructure:"addresses" yaml:"addresses"`
}

// StoreConfig locates the provider state file. An empty path selects the
// per-user default.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// InfluxDBConfig configures the optional telemetry sink.
type InfluxDBConfig struct {
	Enabled       bool   `mapstructure:"enabled" yaml:"enabled"`
	URL           string `mapstructure:"url" yaml:"url"`
	Token         string `mapstructure:"token" yaml:"token"`
	Org           string `mapstructure:"org" yaml:"org"`
	Bucket        string `mapstructure:"bucket" yaml:"bucket"`
	BatchSize     int    `mapstructure:"batch_size" yaml:"batch_size"`
	FlushInterval int    `mapstructure:"flush_interval" yaml:"flush_interval"` // seconds
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		AppID:   DefaultAppID,
		Startup: StartupConfig{SettleDelay: 2 * time.Second},
		Health:  HealthConfig{Interval: 15 * time.Second},
		MQTT: MQTTConfig{
			Host:     "localhost",
			Port:     1883,
			ClientID: "auraconnect",
			QoS:      1,
			Reconnect: ReconnectConfig{
				InitialDelay: time.Second,
				MaxDelay:     time.Minute,
			},
		},
		Broadcast: BroadcastConfig{
			TopicPrefix:    "auraconnect/broadcast",
			ConnectTimeout: 0,
		},
		Providers: ProvidersConfig{
			LIFX:   DiscoveryProviderConfig{Enabled: true, DiscoveryWindow: 5 * time.Second},
			Hue:    HueConfig{Enabled: true, Timeout: 5 * time.Second},
			Elgato: ElgatoConfig{Enabled: true, Discover: true},
			Govee:  DiscoveryProviderConfig{Enabled: true, DiscoveryWindow: 3 * time.Second},
		},
		InfluxDB: InfluxDBConfig{
			URL:           "http://localhost:8086",
			Org:           "auraconnect",
			Bucket:        "auraconnect",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// SetDefaults registers every default with v so that env overrides resolve
// even when no config file sets the key.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("app_id", d.AppID)
	v.SetDefault("startup.settle_delay", d.Startup.SettleDelay)
	v.SetDefault("health.interval", d.Health.Interval)

	v.SetDefault("mqtt.host", d.MQTT.Host)
	v.SetDefault("mqtt.port", d.MQTT.Port)
	v.SetDefault("mqtt.tls", d.MQTT.TLS)
	v.SetDefault("mqtt.client_id", d.MQTT.ClientID)
	v.SetDefault("mqtt.username", d.MQTT.Username)
	v.SetDefault("mqtt.password", d.MQTT.Password)
	v.SetDefault("mqtt.qos", d.MQTT.QoS)
	v.SetDefault("mqtt.reconnect.initial_delay", d.MQTT.Reconnect.InitialDelay)
	v.SetDefault("mqtt.reconnect.max_delay", d.MQTT.Reconnect.MaxDelay)

	v.SetDefault("broadcast.topic_prefix", d.Broadcast.TopicPrefix)
	v.SetDefault("broadcast.connect_timeout", d.Broadcast.ConnectTimeout)

	v.SetDefault("providers.lifx.enabled", d.Providers.LIFX.Enabled)
	v.SetDefault("providers.lifx.discovery_window", d.Providers.LIFX.DiscoveryWindow)
	v.SetDefault("providers.hue.enabled", d.Providers.Hue.Enabled)
	v.SetDefault("providers.hue.timeout", d.Providers.Hue.Timeout)
	v.SetDefault("providers.elgato.enabled", d.Providers.Elgato.Enabled)
	v.SetDefault("providers.elgato.discover", d.Providers.Elgato.Discover)
	v.SetDefault("providers.elgato.addresses", d.Providers.Elgato.Addresses)
	v.SetDefault("providers.govee.enabled", d.Providers.Govee.Enabled)
	v.SetDefault("providers.govee.discovery_window", d.Providers.Govee.DiscoveryWindow)

	v.SetDefault("store.path", d.Store.Path)

	v.SetDefault("influxdb.enabled", d.InfluxDB.Enabled)
	v.SetDefault("influxdb.url", d.InfluxDB.URL)
	v.SetDefault("influxdb.token", d.InfluxDB.Token)
	v.SetDefault("influxdb.org", d.InfluxDB.Org)
	v.SetDefault("influxdb.bucket", d.InfluxDB.Bucket)
	v.SetDefault("influxdb.batch_size", d.InfluxDB.BatchSize)
	v.SetDefault("influxdb.flush_interval", d.InfluxDB.FlushInterval)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.output", d.Logging.Output)
}

// Load reads configuration into v and returns the validated result.
//
// Lookup order when path is empty:
//  1. ./auraconnect.yaml
//  2. ~/.config/auraconnect/config.yaml
//
// A missing file is not an error unless path names it explicitly.
// Environment variables prefixed with AURACONNECT_ override file values.
func Load(v *viper.Viper, path string) (Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	switch {
	case path != "":
		v.SetConfigFile(path)
	case fileExists("auraconnect.yaml"):
		v.SetConfigFile("auraconnect.yaml")
	default:
		if dir, err := UserConfigDir(); err == nil {
			v.AddConfigPath(dir)
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// UserConfigDir returns ~/.config/auraconnect.
func UserConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "auraconnect"), nil
}

// ParsedAppID returns the application id as a UUID.
func (c Config) ParsedAppID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.AppID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: app_id: %w", ErrInvalidConfig, err)
	}
	return id, nil
}

// Validate checks every section and returns all problems joined.
func (c Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if _, err := uuid.Parse(c.AppID); err != nil {
		invalid("app_id %q is not a UUID", c.AppID)
	}
	if c.Startup.SettleDelay < 0 {
		invalid("startup.settle_delay must not be negative")
	}
	if c.Health.Interval <= 0 {
		invalid("health.interval must be positive")
	}

	if c.MQTT.Host == "" {
		invalid("mqtt.host is required")
	}
	if c.MQTT.Port < 1 || c.MQTT.Port > 65535 {
		invalid("mqtt.port %d out of range", c.MQTT.Port)
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		invalid("mqtt.qos must be 0, 1 or 2")
	}

	if c.Broadcast.TopicPrefix == "" {
		invalid("broadcast.topic_prefix is required")
	}
	if strings.ContainsAny(c.Broadcast.TopicPrefix, "+#") {
		invalid("broadcast.topic_prefix must not contain wildcards")
	}
	if c.Broadcast.ConnectTimeout < 0 {
		invalid("broadcast.connect_timeout must not be negative")
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			invalid("influxdb.url is required when enabled")
		}
		if c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "" {
			invalid("influxdb.org and influxdb.bucket are required when enabled")
		}
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		invalid("logging.level %q unknown", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		invalid("logging.format %q unknown", c.Logging.Format)
	}
	switch strings.ToLower(c.Logging.Output) {
	case "stdout", "stderr":
	default:
		invalid("logging.output %q unknown", c.Logging.Output)
	}

	return errors.Join(errs...)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
