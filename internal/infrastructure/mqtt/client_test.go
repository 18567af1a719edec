package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/nerrad567/nora-local/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration for testing.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "nora-local-test",
		},
		QoS:         1,
		TopicPrefix: "nora",
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// recordingLogger captures log calls.
type recordingLogger struct {
	mu      sync.Mutex
	entries []string
}

func (l *recordingLogger) record(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, level+": "+msg)
}

func (l *recordingLogger) Info(msg string, _ ...any)  { l.record("info", msg) }
func (l *recordingLogger) Warn(msg string, _ ...any)  { l.record("warn", msg) }
func (l *recordingLogger) Error(msg string, _ ...any) { l.record("error", msg) }

func (l *recordingLogger) has(entry string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e == entry {
			return true
		}
	}
	return false
}

// =============================================================================
// Topic Tests
// =============================================================================

func TestTopicBuilders(t *testing.T) {
	topics := NewTopics("nora")

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"DeviceSet", topics.DeviceSet("front-door"), "nora/device/front-door/set"},
		{"DeviceSetJammed", topics.DeviceSetJammed("front-door"), "nora/device/front-door/set/jammed"},
		{"DeviceState", topics.DeviceState("front-door"), "nora/device/front-door/state"},
		{"DeviceEvent", topics.DeviceEvent("movie-night"), "nora/device/movie-night/event"},
		{"DeviceConfig", topics.DeviceConfig("front-door"), "nora/device/front-door/config"},
		{"AgentStatus", topics.AgentStatus(), "nora/agent/status"},
		{"AllDeviceSets", topics.AllDeviceSets(), "nora/device/+/set"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.expected)
			}
		})
	}
}

func TestNewTopics_Prefix(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{"nora", "nora"},
		{"/home/nora/", "home/nora"},
		{"", DefaultTopicPrefix},
		{"/", DefaultTopicPrefix},
	}

	for _, tt := range tests {
		if got := NewTopics(tt.prefix).Prefix(); got != tt.want {
			t.Errorf("NewTopics(%q).Prefix() = %q, want %q", tt.prefix, got, tt.want)
		}
	}

	if got := (Topics{}).AgentStatus(); got != "nora/agent/status" {
		t.Errorf("zero Topics AgentStatus() = %q", got)
	}
}

// =============================================================================
// Option Tests
// =============================================================================

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.MQTTAuthConfig{Username: "nora", Password: "secret"}

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want tcp://127.0.0.1:1883", opts.Servers)
	}
	if opts.ClientID != "nora-local-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "nora" || opts.Password != "secret" {
		t.Errorf("credentials not applied: %q/%q", opts.Username, opts.Password)
	}
	if !opts.AutoReconnect || !opts.CleanSession {
		t.Error("expected auto-reconnect and clean session")
	}
}

func TestBuildClientOptions_TLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883

	opts := buildClientOptions(cfg)

	if opts.Servers[0].String() != "ssl://127.0.0.1:8883" {
		t.Errorf("Servers[0] = %v, want ssl://127.0.0.1:8883", opts.Servers[0])
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLS config not set with minimum version")
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, NewTopics("nora"), "nora-local-test")

	if !opts.WillEnabled || opts.WillTopic != "nora/agent/status" || !opts.WillRetained {
		t.Errorf("will = enabled:%v topic:%q retained:%v", opts.WillEnabled, opts.WillTopic, opts.WillRetained)
	}

	var status statusPayload
	if err := json.Unmarshal(opts.WillPayload, &status); err != nil {
		t.Fatalf("will payload is not JSON: %v", err)
	}
	if status.Status != statusOffline || status.Reason != reasonUnexpected {
		t.Errorf("will payload = %+v", status)
	}
}

func TestBuildStatusPayload(t *testing.T) {
	var status statusPayload
	if err := json.Unmarshal(buildStatusPayload(statusOnline, "agent-1", ""), &status); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if status.Status != "online" || status.ClientID != "agent-1" || status.Timestamp == "" {
		t.Errorf("status = %+v", status)
	}
	if strings.Contains(string(buildStatusPayload(statusOnline, "agent-1", "")), "reason") {
		t.Error("empty reason should be omitted")
	}
}

// =============================================================================
// Disconnected Client Tests
// =============================================================================

func TestIsConnected_InitialState(t *testing.T) {
	client := &Client{}

	if client.IsConnected() {
		t.Error("IsConnected() should be false for uninitialised client")
	}
}

func TestCloseNil(t *testing.T) {
	client := &Client{}

	if err := client.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v", err)
	}
}

func TestPublishValidation(t *testing.T) {
	client := newClient(testConfig())

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", []byte("x"), 1, ErrInvalidTopic},
		{"invalid qos", "nora/test", []byte("x"), 3, ErrInvalidQoS},
		{"payload too large", "nora/test", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"not connected", "nora/test", []byte("x"), 1, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPublishJSON_EncodingError(t *testing.T) {
	client := newClient(testConfig())

	err := client.PublishJSON("nora/test", make(chan int), false)
	if !errors.Is(err, ErrPublishFailed) {
		t.Errorf("PublishJSON() error = %v, want ErrPublishFailed", err)
	}
}

func TestSubscribeValidation(t *testing.T) {
	client := newClient(testConfig())
	handler := func(string, []byte) error { return nil }

	if err := client.Subscribe("", 1, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe(empty) error = %v", err)
	}
	if err := client.Subscribe("nora/test", 3, handler); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Subscribe(qos 3) error = %v", err)
	}
	if err := client.Subscribe("nora/test", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe(nil handler) error = %v", err)
	}
	if err := client.Subscribe("nora/test", 1, handler); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe(disconnected) error = %v", err)
	}
	if client.SubscriptionCount() != 0 || client.HasSubscription("nora/test") {
		t.Error("failed subscribe should not be tracked")
	}
}

func TestUnsubscribeValidation(t *testing.T) {
	client := newClient(testConfig())

	if err := client.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe(empty) error = %v", err)
	}
	if err := client.Unsubscribe("nora/test"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Unsubscribe(disconnected) error = %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	client := newClient(testConfig())

	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := client.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck(cancelled) error = %v, want context.Canceled", err)
	}
}

func TestClientAccessors(t *testing.T) {
	cfg := testConfig()
	cfg.TopicPrefix = "home"
	cfg.QoS = 2
	client := newClient(cfg)

	if got := client.Topics().DeviceState("x"); got != "home/device/x/state" {
		t.Errorf("Topics().DeviceState() = %q", got)
	}
	if client.QoS() != 2 {
		t.Errorf("QoS() = %d, want 2", client.QoS())
	}
}

// =============================================================================
// Handler Tests
// =============================================================================

func TestDispatch_HandlerError(t *testing.T) {
	client := newClient(testConfig())
	logger := &recordingLogger{}
	client.SetLogger(logger)

	client.dispatch(func(string, []byte) error {
		return errors.New("bad payload")
	}, "nora/device/x/set", []byte("?"))

	if !logger.has("warn: MQTT handler returned error") {
		t.Errorf("expected handler error to be logged, got %v", logger.entries)
	}
}

func TestDispatch_PanicRecovered(t *testing.T) {
	client := newClient(testConfig())
	logger := &recordingLogger{}
	client.SetLogger(logger)

	client.dispatch(func(string, []byte) error {
		panic("boom")
	}, "nora/device/x/set", nil)

	if !logger.has("error: MQTT handler panic recovered") {
		t.Errorf("expected panic to be logged, got %v", logger.entries)
	}
}

func TestDispatch_NoLogger(t *testing.T) {
	client := newClient(testConfig())

	var got string
	client.dispatch(func(topic string, payload []byte) error {
		got = topic + "=" + string(payload)
		return errors.New("ignored")
	}, "nora/device/x/set", []byte("true"))

	if got != "nora/device/x/set=true" {
		t.Errorf("handler saw %q", got)
	}
}

func TestCallbacks(t *testing.T) {
	client := newClient(testConfig())
	logger := &recordingLogger{}
	client.SetLogger(logger)

	var lost error
	client.SetOnDisconnect(func(err error) { lost = err })
	client.handleDisconnect(errors.New("network down"))

	if lost == nil || lost.Error() != "network down" {
		t.Errorf("OnDisconnect got %v", lost)
	}
	if !logger.has("warn: MQTT connection lost") {
		t.Error("expected connection loss to be logged")
	}
	if client.IsConnected() {
		t.Error("IsConnected() should be false after disconnect")
	}
}
