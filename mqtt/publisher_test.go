package mqtt

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"taglink/config"
	"taglink/status"
)

type doneToken struct{ err error }

func (t doneToken) Wait() bool { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t doneToken) Error() error { return t.err }

// stuckToken never completes.
type stuckToken struct{}

func (stuckToken) Wait() bool { return false }
func (stuckToken) WaitTimeout(time.Duration) bool { return false }
func (stuckToken) Done() <-chan struct{} { return make(chan struct{}) }
func (stuckToken) Error() error { return nil }

type published struct {
	topic    string
	retained bool
	payload  []byte
}

// fakeClient records publishes and subscriptions.
type fakeClient struct {
	mu         sync.Mutex
	published  []published
	subscribed map[string]pahomqtt.MessageHandler
	pubErr     error

	connectToken pahomqtt.Token
	disconnects  int
}

func newFakeClient() *fakeClient {
	return &fakeClient{subscribed: make(map[string]pahomqtt.MessageHandler)}
}

func (c *fakeClient) IsConnected() bool { return true }
func (c *fakeClient) IsConnectionOpen() bool { return true }
func (c *fakeClient) Connect() pahomqtt.Token {
	if c.connectToken != nil {
		return c.connectToken
	}
	return doneToken{}
}
func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	c.disconnects++
	c.mu.Unlock()
}
func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	var b []byte
	switch v := payload.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	}
	c.published = append(c.published, published{topic, retained, b})
	return doneToken{err: c.pubErr}
}
func (c *fakeClient) Subscribe(topic string, qos byte, cb pahomqtt.MessageHandler) pahomqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribed[topic] = cb
	return doneToken{}
}
func (c *fakeClient) SubscribeMultiple(map[string]byte, pahomqtt.MessageHandler) pahomqtt.Token {
	return doneToken{}
}
func (c *fakeClient) Unsubscribe(...string) pahomqtt.Token { return doneToken{} }
func (c *fakeClient) AddRoute(string, pahomqtt.MessageHandler) {}
func (c *fakeClient) OptionsReader() pahomqtt.ClientOptionsReader { return pahomqtt.ClientOptionsReader{} }

func (c *fakeClient) on(topic string) []published {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []published
	for _, p := range c.published {
		if p.topic == topic {
			out = append(out, p)
		}
	}
	return out
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool { return false }
func (m fakeMessage) Qos() byte { return 1 }
func (m fakeMessage) Retained() bool { return false }
func (m fakeMessage) Topic() string { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte { return m.payload }
func (m fakeMessage) Ack() {}

func attached(t *testing.T, cfg *config.MQTTConfig) (*Publisher, *fakeClient) {
	t.Helper()
	p := NewPublisher(cfg, "plant1")
	c := newFakeClient()
	if err := p.attach(c); err != nil {
		t.Fatalf("attach: %v", err)
	}
	t.Cleanup(p.Stop)
	return p, c
}

func TestPublisher_NewPublisher(t *testing.T) {
	cfg := &config.MQTTConfig{Name: "broker1", Broker: "mqtt.local", Port: 1883}
	p := NewPublisher(cfg, "plant1")

	if p.Name() != "broker1" {
		t.Errorf("Name() = %q", p.Name())
	}
	if p.IsRunning() {
		t.Error("new publisher should not be running")
	}
	if p.Publish("counter", "int32", 1, status.OK, false, false) {
		t.Error("Publish should fail when not running")
	}
}

func TestPublisher_ConnectFailureDisconnects(t *testing.T) {
	tests := []struct {
		name  string
		token pahomqtt.Token
		want  string
	}{
		{"timeout", stuckToken{}, "connection timeout"},
		{"refused", doneToken{err: errors.New("not authorized")}, "not authorized"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPublisher(&config.MQTTConfig{Name: "broker1", Broker: "mqtt.local", Port: 1883}, "plant1")
			c := newFakeClient()
			c.connectToken = tt.token

			err := p.connect(c, time.Millisecond)
			if err == nil || err.Error() != tt.want {
				t.Fatalf("connect err = %v, want %q", err, tt.want)
			}
			if c.disconnects != 1 {
				t.Errorf("Disconnect called %d times, want 1", c.disconnects)
			}
			if p.IsRunning() {
				t.Error("publisher running after failed connect")
			}
			if len(c.published) != 0 {
				t.Errorf("published after failed connect: %+v", c.published)
			}
		})
	}

	p := NewPublisher(&config.MQTTConfig{Name: "broker1", Broker: "mqtt.local", Port: 1883}, "plant1")
	c := newFakeClient()
	if err := p.connect(c, time.Millisecond); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer p.Stop()
	if c.disconnects != 0 || !p.IsRunning() {
		t.Errorf("disconnects = %d, running = %v", c.disconnects, p.IsRunning())
	}
}

func TestPublisher_Address(t *testing.T) {
	tests := []struct {
		cfg  config.MQTTConfig
		want string
	}{
		{config.MQTTConfig{Broker: "localhost", Port: 1883}, "tcp://localhost:1883"},
		{config.MQTTConfig{Broker: "secure.example.com", Port: 8883, UseTLS: true}, "ssl://secure.example.com:8883"},
	}
	for _, tc := range tests {
		if got := NewPublisher(&tc.cfg, "ns").Address(); got != tc.want {
			t.Errorf("Address() = %q, want %q", got, tc.want)
		}
	}
}

func TestPublisher_TopicFor(t *testing.T) {
	p := NewPublisher(&config.MQTTConfig{Selector: "line2"}, "plant1")
	if got := p.TopicFor("counter"); got != "plant1/line2/tags/counter" {
		t.Errorf("TopicFor = %q", got)
	}
}

func TestPublisher_MessagePayload(t *testing.T) {
	p, c := attached(t, &config.MQTTConfig{Name: "b"})

	if !p.Publish("counter", "int32", []interface{}{int32(1), int32(2)}, status.OK, true, false) {
		t.Fatal("Publish returned false")
	}

	msgs := c.on("plant1/tags/counter")
	if len(msgs) != 1 {
		t.Fatalf("got %d messages", len(msgs))
	}
	if !msgs[0].retained {
		t.Error("tag messages should be retained")
	}

	var msg map[string]interface{}
	if err := json.Unmarshal(msgs[0].payload, &msg); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	for _, key := range []string{"namespace", "tag", "type", "value", "status", "writable", "timestamp"} {
		if _, ok := msg[key]; !ok {
			t.Errorf("payload missing %q", key)
		}
	}
	if msg["namespace"] != "plant1" || msg["tag"] != "counter" || msg["status"] != "PLCTAG_STATUS_OK" {
		t.Errorf("payload = %v", msg)
	}
	if _, err := time.Parse(time.RFC3339, msg["timestamp"].(string)); err != nil {
		t.Errorf("timestamp not RFC3339: %v", err)
	}
}

func TestPublisher_ChangeDetection(t *testing.T) {
	p, c := attached(t, &config.MQTTConfig{Name: "b"})

	steps := []struct {
		value interface{}
		force bool
		want  bool
	}{
		{int32(100), false, true},
		{int32(100), false, false},
		{int32(200), false, true},
		{int32(200), true, true},
	}
	for i, s := range steps {
		if got := p.Publish("t", "int32", s.value, status.OK, false, s.force); got != s.want {
			t.Errorf("step %d: Publish = %v, want %v", i, got, s.want)
		}
	}
	if n := len(c.on("plant1/tags/t")); n != 3 {
		t.Errorf("published %d messages, want 3", n)
	}
}

func TestPublisher_PublishError(t *testing.T) {
	p, c := attached(t, &config.MQTTConfig{Name: "b"})
	c.pubErr = errors.New("broker gone")

	if p.Publish("t", "int32", 1, status.OK, false, false) {
		t.Error("Publish should report failure")
	}
	c.pubErr = nil
	if !p.Publish("t", "int32", 1, status.OK, false, false) {
		t.Error("failed publish must not be cached")
	}
}

func TestPublisher_StatusTopic(t *testing.T) {
	p := NewPublisher(&config.MQTTConfig{Name: "b"}, "plant1")
	c := newFakeClient()
	p.attach(c)

	online := c.on("plant1/status")
	if len(online) != 1 || string(online[0].payload) != "online" || !online[0].retained {
		t.Errorf("online message = %+v", online)
	}
	p.Stop()
	if got := c.on("plant1/status"); len(got) != 2 || string(got[1].payload) != "offline" {
		t.Errorf("status messages = %+v", got)
	}
}

func TestPublisher_Writeback(t *testing.T) {
	p, c := attached(t, &config.MQTTConfig{Name: "b", Writeback: true})

	var mu sync.Mutex
	writes := map[string]interface{}{}
	p.SetWriteHandler(func(tagName string, value interface{}) error {
		mu.Lock()
		defer mu.Unlock()
		if tagName == "broken" {
			return status.Err("write", status.ErrWrite)
		}
		writes[tagName] = value
		return nil
	})
	p.SetWriteValidator(func(tagName string) bool { return tagName != "readonly" })

	handler := c.subscribed["plant1/write"]
	if handler == nil {
		t.Fatal("write topic not subscribed")
	}

	tests := []struct {
		name    string
		payload string
		success bool
		status  int32
		errText string
	}{
		{"ok", `{"tag":"setpoint","value":12345678901}`, true, 0, ""},
		{"invalid json", `{"tag":`, false, int32(status.ErrBadStatus), "invalid JSON"},
		{"missing value", `{"tag":"setpoint"}`, false, int32(status.ErrBadStatus), "missing value"},
		{"read only", `{"tag":"readonly","value":1}`, false, int32(status.ErrBadStatus), "not writable"},
		{"engine error", `{"tag":"broken","value":1}`, false, int32(status.ErrWrite), "PLCTAG_ERR_WRITE"},
	}

	for i, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler(c, fakeMessage{"plant1/write", []byte(tc.payload)})

			var responses []published
			deadline := time.Now().Add(2 * time.Second)
			for time.Now().Before(deadline) {
				if responses = c.on("plant1/write/response"); len(responses) > i {
					break
				}
				time.Sleep(5 * time.Millisecond)
			}
			if len(responses) <= i {
				t.Fatal("no write response")
			}

			var resp WriteResponse
			if err := json.Unmarshal(responses[i].payload, &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Success != tc.success || resp.Status != tc.status {
				t.Errorf("response = %+v", resp)
			}
			if tc.errText != "" && !strings.Contains(resp.Error, tc.errText) {
				t.Errorf("error %q does not mention %q", resp.Error, tc.errText)
			}
		})
	}

	mu.Lock()
	defer mu.Unlock()
	if v, ok := writes["setpoint"].(json.Number); !ok || v.String() != "12345678901" {
		t.Errorf("handler got %#v", writes["setpoint"])
	}
}

func TestPublisher_NoWritebackSubscription(t *testing.T) {
	_, c := attached(t, &config.MQTTConfig{Name: "b"})
	if len(c.subscribed) != 0 {
		t.Errorf("unexpected subscriptions %v", c.subscribed)
	}
}

func TestManager(t *testing.T) {
	m := NewManager()
	m.LoadFromConfig([]config.MQTTConfig{{Name: "b2"}, {Name: "b1"}}, "plant1")
	m.SetWriteValidator(func(tagName string) bool { return tagName == "w" })

	list := m.List()
	if len(list) != 2 || list[0].Name() != "b1" {
		t.Fatalf("List = %v", list)
	}
	if m.AnyRunning() {
		t.Error("nothing should be running")
	}
	if m.StartAll() != 0 {
		t.Error("disabled publishers should not start")
	}

	c := newFakeClient()
	m.Get("b1").attach(c)
	defer m.StopAll()

	m.Publish("w", "int16", int16(3), status.OK, false)
	msgs := c.on("plant1/tags/w")
	if len(msgs) != 1 {
		t.Fatalf("got %d messages", len(msgs))
	}
	var msg TagMessage
	json.Unmarshal(msgs[0].payload, &msg)
	if !msg.Writable {
		t.Error("writable flag not set from validator")
	}

	m.Remove("b1")
	if m.Get("b1") != nil {
		t.Error("publisher not removed")
	}
}
