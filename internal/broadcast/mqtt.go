package broadcast

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"auraconnect/internal/config"
)

const (
	defaultConnectTimeout    = 10 * time.Second
	defaultKeepAlive         = 60 * time.Second
	defaultDisconnectQuiesce = 250 // milliseconds
)

// MQTTSource reads broadcast events from an MQTT topic tree.
//
// Subscriptions are re-established on every (re)connect. Losing the broker
// is reported to the handler as a disconnect.
type MQTTSource struct {
	cfg    config.MQTTConfig
	topics Topics
	logger *slog.Logger

	mu      sync.Mutex
	client  pahomqtt.Client
	handler Handler
}

// NewMQTTSource creates a source for the topics under prefix.
func NewMQTTSource(cfg config.MQTTConfig, prefix string, logger *slog.Logger) *MQTTSource {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &MQTTSource{
		cfg:    cfg,
		topics: Topics{Prefix: prefix},
		logger: logger,
	}
}

// Start connects to the broker and subscribes to the broadcast topics.
func (s *MQTTSource) Start(ctx context.Context, h Handler) error {
	s.mu.Lock()
	s.handler = h
	opts := buildClientOptions(s.cfg)
	opts.SetOnConnectHandler(func(c pahomqtt.Client) { s.subscribe(c) })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		s.logger.Warn("mqtt connection lost", "error", err)
		h.OnConnectionChanged(false)
	})
	opts.SetReconnectingHandler(func(pahomqtt.Client, *pahomqtt.ClientOptions) {
		s.logger.Info("mqtt reconnecting")
	})
	s.client = pahomqtt.NewClient(opts)
	client := s.client
	s.mu.Unlock()

	s.logger.Info("connecting to mqtt broker", "host", s.cfg.Host, "port", s.cfg.Port)
	if err := wait(ctx, client.Connect(), defaultConnectTimeout); err != nil {
		return fmt.Errorf("connecting to mqtt broker: %w", err)
	}
	return nil
}

func (s *MQTTSource) subscribe(c pahomqtt.Client) {
	qos := byte(s.cfg.QoS)
	filters := map[string]byte{
		s.topics.Connection(): qos,
		s.topics.Colors():     qos,
	}
	token := c.SubscribeMultiple(filters, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		s.handleMessage(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(defaultConnectTimeout) {
		s.logger.Error("mqtt subscribe timed out", "prefix", s.topics.Prefix)
		return
	}
	if err := token.Error(); err != nil {
		s.logger.Error("mqtt subscribe failed", "prefix", s.topics.Prefix, "error", err)
		return
	}
	s.logger.Info("subscribed to broadcast", "prefix", s.topics.Prefix)
}

// handleMessage decodes one message and forwards it. Malformed payloads are
// logged and dropped; a panicking handler does not take down the client.
func (s *MQTTSource) handleMessage(topic string, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("broadcast handler panic recovered", "topic", topic, "panic", r)
		}
	}()

	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()
	if h == nil {
		return
	}

	switch topic {
	case s.topics.Connection():
		connected, err := DecodeConnection(payload)
		if err != nil {
			s.logger.Warn("dropping connection event", "error", err)
			return
		}
		h.OnConnectionChanged(connected)
	case s.topics.Colors():
		colors, err := DecodePalette(payload)
		if err != nil {
			s.logger.Warn("dropping palette event", "error", err)
			return
		}
		h.OnColorsChanged(colors)
	default:
		s.logger.Debug("ignoring message", "topic", topic)
	}
}

// Init publishes the application id, retained, to the init topic.
func (s *MQTTSource) Init(ctx context.Context, appID uuid.UUID) error {
	s.mu.Lock()
	client := s.client
	s.mu.Unlock()
	if client == nil || !client.IsConnectionOpen() {
		return ErrNotConnected
	}

	payload, err := json.Marshal(initMessage{AppID: appID.String()})
	if err != nil {
		return fmt.Errorf("encoding init message: %w", err)
	}
	token := client.Publish(s.topics.Init(), byte(s.cfg.QoS), true, payload)
	if err := wait(ctx, token, defaultConnectTimeout); err != nil {
		return fmt.Errorf("publishing init: %w", err)
	}
	s.logger.Info("announced application", "app_id", appID)
	return nil
}

// Close disconnects from the broker.
func (s *MQTTSource) Close() error {
	s.mu.Lock()
	client := s.client
	s.client = nil
	s.mu.Unlock()

	if client != nil {
		client.Disconnect(defaultDisconnectQuiesce)
	}
	return nil
}

// wait blocks until token completes, ctx is done or timeout elapses.
func wait(ctx context.Context, token pahomqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("timeout after %v", timeout)
	}
}

func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.TLS {
		scheme = "ssl"
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, cfg.Port))

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "auraconnect-" + uuid.NewString()[:8]
	}
	opts.SetClientID(clientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(cfg.Reconnect.MaxDelay)
	opts.SetConnectRetryInterval(cfg.Reconnect.InitialDelay)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)
	return opts
}
