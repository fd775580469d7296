package broadcast

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auraconnect/internal/config"
	"auraconnect/internal/lights"
)

type recordingHandler struct {
	mu          sync.Mutex
	connections []bool
	palettes    [][]lights.Color
	panicOn     bool
}

func (h *recordingHandler) OnConnectionChanged(connected bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections = append(h.connections, connected)
}

func (h *recordingHandler) OnColorsChanged(colors []lights.Color) {
	if h.panicOn {
		panic("handler exploded")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.palettes = append(h.palettes, colors)
}

// doneToken is a completed paho token.
type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }

func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// fakeClient records publishes and subscriptions. Methods the source does
// not call fall through to the nil embedded interface.
type fakeClient struct {
	pahomqtt.Client

	open       bool
	publishErr error
	published  []published
	filters    map[string]byte
}

func (c *fakeClient) IsConnectionOpen() bool { return c.open }
func (c *fakeClient) Disconnect(uint)        { c.open = false }

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token {
	c.published = append(c.published, published{topic: topic, qos: qos, retained: retained, payload: payload.([]byte)})
	return doneToken{err: c.publishErr}
}

func (c *fakeClient) SubscribeMultiple(filters map[string]byte, _ pahomqtt.MessageHandler) pahomqtt.Token {
	c.filters = filters
	return doneToken{}
}

func TestTopics(t *testing.T) {
	for _, prefix := range []string{"auraconnect/broadcast", "auraconnect/broadcast/"} {
		topics := Topics{Prefix: prefix}
		assert.Equal(t, "auraconnect/broadcast/connection", topics.Connection())
		assert.Equal(t, "auraconnect/broadcast/colors", topics.Colors())
		assert.Equal(t, "auraconnect/broadcast/init", topics.Init())
	}
}

func TestMQTTSource_HandleMessage(t *testing.T) {
	src := NewMQTTSource(config.Defaults().MQTT, "home/aura", nil)
	h := &recordingHandler{}
	src.handler = h

	src.handleMessage("home/aura/connection", []byte(`{"connected":true}`))
	src.handleMessage("home/aura/colors", []byte(`{"colors":["#010203"]}`))
	src.handleMessage("home/aura/colors", []byte(`{"colors":[]}`))
	src.handleMessage("home/aura/colors", []byte(`garbage`))
	src.handleMessage("home/aura/connection", []byte(`{}`))
	src.handleMessage("home/aura/other", []byte(`{"connected":false}`))

	assert.Equal(t, []bool{true}, h.connections)
	assert.Equal(t, [][]lights.Color{{{R: 1, G: 2, B: 3}}}, h.palettes)
}

func TestMQTTSource_HandlerPanicIsRecovered(t *testing.T) {
	src := NewMQTTSource(config.Defaults().MQTT, "p", nil)
	src.handler = &recordingHandler{panicOn: true}

	assert.NotPanics(t, func() {
		src.handleMessage("p/colors", []byte(`{"colors":["#ffffff"]}`))
	})
}

func TestMQTTSource_InitRequiresConnection(t *testing.T) {
	src := NewMQTTSource(config.Defaults().MQTT, "p", nil)
	err := src.Init(context.Background(), uuid.MustParse(config.DefaultAppID))
	require.ErrorIs(t, err, ErrNotConnected)
	require.NoError(t, src.Close())
}

func TestMQTTSource_InitPublishesRetainedAppID(t *testing.T) {
	cfg := config.Defaults().MQTT
	cfg.QoS = 2
	src := NewMQTTSource(cfg, "home/aura/", nil)
	client := &fakeClient{open: true}
	src.client = client

	appID := uuid.MustParse(config.DefaultAppID)
	require.NoError(t, src.Init(context.Background(), appID))

	require.Len(t, client.published, 1)
	msg := client.published[0]
	assert.Equal(t, "home/aura/init", msg.topic)
	assert.Equal(t, byte(2), msg.qos)
	assert.True(t, msg.retained)
	assert.JSONEq(t, `{"app_id":"`+appID.String()+`"}`, string(msg.payload))
}

func TestMQTTSource_InitPublishFailure(t *testing.T) {
	src := NewMQTTSource(config.Defaults().MQTT, "p", nil)
	src.client = &fakeClient{open: true, publishErr: errors.New("not authorized")}

	err := src.Init(context.Background(), uuid.New())
	require.ErrorContains(t, err, "not authorized")
}

func TestMQTTSource_InitOnClosedConnection(t *testing.T) {
	src := NewMQTTSource(config.Defaults().MQTT, "p", nil)
	client := &fakeClient{}
	src.client = client

	require.ErrorIs(t, src.Init(context.Background(), uuid.New()), ErrNotConnected)
	require.Empty(t, client.published)
}

func TestMQTTSource_SubscribesBroadcastTopics(t *testing.T) {
	cfg := config.Defaults().MQTT
	src := NewMQTTSource(cfg, "home/aura", nil)
	client := &fakeClient{open: true}

	src.subscribe(client)

	assert.Equal(t, map[string]byte{
		"home/aura/connection": byte(cfg.QoS),
		"home/aura/colors":     byte(cfg.QoS),
	}, client.filters)
}

func TestMQTTSource_StartFailsWithoutBroker(t *testing.T) {
	cfg := config.Defaults().MQTT
	cfg.Host = "127.0.0.1"
	cfg.Port = 1

	src := NewMQTTSource(cfg, "p", nil)
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.Error(t, src.Start(ctx, &recordingHandler{}))
}

func TestBuildClientOptions(t *testing.T) {
	cfg := config.Defaults().MQTT
	cfg.Host = "broker.lan"
	cfg.Port = 8883
	cfg.TLS = true
	cfg.Username = "aura"
	cfg.Password = "secret"

	opts := buildClientOptions(cfg)
	require.Len(t, opts.Servers, 1)
	assert.Equal(t, "ssl://broker.lan:8883", opts.Servers[0].String())
	assert.Equal(t, "auraconnect", opts.ClientID)
	assert.Equal(t, "aura", opts.Username)
	assert.NotNil(t, opts.TLSConfig)
	assert.True(t, opts.AutoReconnect)
	assert.Equal(t, cfg.Reconnect.MaxDelay, opts.MaxReconnectInterval)

	cfg.ClientID = ""
	cfg.TLS = false
	opts = buildClientOptions(cfg)
	assert.Equal(t, "tcp://broker.lan:8883", opts.Servers[0].String())
	assert.Contains(t, opts.ClientID, "auraconnect-")
}
