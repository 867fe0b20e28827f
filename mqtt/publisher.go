// Package mqtt provides MQTT publishing functionality for tag values.
package mqtt

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"taglink/config"
	"taglink/logging"
	"taglink/namespace"
	"taglink/status"
)

func logMQTT(format string, args ...interface{}) {
	logging.DebugLog("mqtt", format, args...)
}

// writeJob represents a pending write operation.
type writeJob struct {
	client  pahomqtt.Client
	tagName string
	value   interface{}
	err     error // set for requests rejected before reaching the handler
	handler WriteHandler
}

// MaxWriteWorkers is the maximum number of concurrent write goroutines per publisher.
const MaxWriteWorkers = 5

// MaxWriteQueueSize is the maximum number of pending write jobs per publisher.
const MaxWriteQueueSize = 100

// Publisher handles MQTT connection and publishes tag values to a single broker.
type Publisher struct {
	config    *config.MQTTConfig
	namespace string
	builder   *namespace.Builder
	client    pahomqtt.Client
	running   bool
	mu        sync.RWMutex

	// Track last published values to detect changes
	lastValues map[string]interface{}
	lastMu     sync.RWMutex

	writeHandler   WriteHandler
	writeValidator WriteValidator

	// Worker pool for bounded write goroutines
	writeQueue chan writeJob
	wg         sync.WaitGroup
	stopChan   chan struct{}
}

// TagMessage is the JSON structure published for every tag value.
type TagMessage struct {
	Namespace string      `json:"namespace"`
	Tag       string      `json:"tag"`
	Type      string      `json:"type,omitempty"`
	Value     interface{} `json:"value"`
	Status    string      `json:"status"`
	Writable  bool        `json:"writable"`
	Timestamp string      `json:"timestamp"`
}

// WriteRequest is the JSON structure for incoming write requests.
type WriteRequest struct {
	Tag   string      `json:"tag"`
	Value interface{} `json:"value"`
}

// WriteResponse is the JSON structure for write responses.
type WriteResponse struct {
	Namespace string      `json:"namespace"`
	Tag       string      `json:"tag"`
	Value     interface{} `json:"value"`
	Success   bool        `json:"success"`
	Status    int32       `json:"status"`
	Error     string      `json:"error,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// WriteHandler performs a write request. Returns an error if the write fails.
type WriteHandler func(tagName string, value interface{}) error

// WriteValidator reports whether a tag exists and is write-enabled.
type WriteValidator func(tagName string) bool

// NewPublisher creates a new MQTT publisher for a single broker.
func NewPublisher(cfg *config.MQTTConfig, ns string) *Publisher {
	return &Publisher{
		config:     cfg,
		namespace:  ns,
		builder:    namespace.New(ns, cfg.Selector),
		lastValues: make(map[string]interface{}),
		writeQueue: make(chan writeJob, MaxWriteQueueSize),
		stopChan:   make(chan struct{}),
	}
}

// Name returns the publisher's name.
func (p *Publisher) Name() string {
	return p.config.Name
}

// IsRunning returns whether the publisher is connected.
func (p *Publisher) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

// Address returns the broker address string.
func (p *Publisher) Address() string {
	if p.config.UseTLS {
		return fmt.Sprintf("ssl://%s:%d", p.config.Broker, p.config.Port)
	}
	return fmt.Sprintf("tcp://%s:%d", p.config.Broker, p.config.Port)
}

// Config returns the publisher's configuration.
func (p *Publisher) Config() *config.MQTTConfig {
	return p.config
}

// Start connects to the MQTT broker.
func (p *Publisher) Start() error {
	p.mu.RLock()
	if p.running {
		p.mu.RUnlock()
		return nil
	}
	p.mu.RUnlock()

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(p.Address())
	if p.config.UseTLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	clientID := p.config.ClientID
	if clientID == "" {
		clientID = "taglink-" + p.config.Name
	}
	opts.SetClientID(clientID)

	if p.config.Username != "" {
		opts.SetUsername(p.config.Username)
		opts.SetPassword(p.config.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetWill(p.builder.MQTTStatusTopic(), "offline", 1, true)

	return p.connect(pahomqtt.NewClient(opts), 5*time.Second)
}

// connect waits up to timeout for client to connect and attaches it. A
// client that fails is disconnected so its retry loop stops.
func (p *Publisher) connect(client pahomqtt.Client, timeout time.Duration) error {
	logMQTT("Attempting to connect to MQTT broker %s", p.Address())

	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		logMQTT("MQTT connection timeout")
		client.Disconnect(0)
		return fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		logMQTT("MQTT connection error: %v", err)
		client.Disconnect(0)
		return err
	}
	logMQTT("Successfully connected to MQTT broker %s", p.Address())

	return p.attach(client)
}

// attach takes over a connected client, starts the write workers and
// subscribes to write requests.
func (p *Publisher) attach(client pahomqtt.Client) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		client.Disconnect(100)
		return nil
	}
	p.client = client
	p.running = true
	p.mu.Unlock()

	// Clear last values to force republish of all values
	p.lastMu.Lock()
	p.lastValues = make(map[string]interface{})
	p.lastMu.Unlock()

	client.Publish(p.builder.MQTTStatusTopic(), 1, true, "online").WaitTimeout(2 * time.Second)

	p.startWriteWorkers()
	if p.config.Writeback {
		p.subscribeWriteTopic()
	}
	return nil
}

func (p *Publisher) startWriteWorkers() {
	p.mu.RLock()
	stop := p.stopChan
	queue := p.writeQueue
	p.mu.RUnlock()

	for i := 0; i < MaxWriteWorkers; i++ {
		p.wg.Add(1)
		go p.writeWorker(stop, queue)
	}
}

// writeWorker processes write jobs from the queue.
func (p *Publisher) writeWorker(stop <-chan struct{}, queue <-chan writeJob) {
	defer p.wg.Done()

	for {
		select {
		case <-stop:
			return
		case job := <-queue:
			writeErr := job.err
			if writeErr == nil {
				if job.handler == nil {
					writeErr = fmt.Errorf("no write handler configured")
				} else {
					logMQTT("Executing write: %s = %v", job.tagName, job.value)
					writeErr = job.handler(job.tagName, job.value)
					if writeErr != nil {
						logMQTT("Write error: %v", writeErr)
					}
				}
			}
			p.publishWriteResponse(job.client, job.tagName, job.value, writeErr)
		}
	}
}

// Stop disconnects from the MQTT broker.
func (p *Publisher) Stop() {
	p.mu.Lock()
	if !p.running || p.client == nil {
		p.mu.Unlock()
		return
	}

	p.running = false
	client := p.client
	p.client = nil

	oldStopChan := p.stopChan
	p.stopChan = make(chan struct{})
	p.writeQueue = make(chan writeJob, MaxWriteQueueSize)
	p.mu.Unlock()

	close(oldStopChan)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		logMQTT("Timeout waiting for write workers to stop")
	}

	client.Publish(p.builder.MQTTStatusTopic(), 1, true, "offline").WaitTimeout(time.Second)
	client.Disconnect(500)
}

// TopicFor returns the topic a tag is published on.
func (p *Publisher) TopicFor(tagName string) string {
	return p.builder.MQTTTagTopic(tagName)
}

// Publish sends a tag value if it has changed since the last publish, or
// unconditionally with force. Returns true if a message was sent.
func (p *Publisher) Publish(tagName, typeName string, value interface{}, st status.Status, writable, force bool) bool {
	p.mu.RLock()
	running := p.running
	client := p.client
	p.mu.RUnlock()

	if !running || client == nil {
		return false
	}

	p.lastMu.RLock()
	lastValue, exists := p.lastValues[tagName]
	p.lastMu.RUnlock()

	if exists && !force && fmt.Sprintf("%v", lastValue) == fmt.Sprintf("%v", value) {
		return false
	}

	payload, err := json.Marshal(p.message(tagName, typeName, value, st, writable))
	if err != nil {
		logMQTT("marshal %s: %v", tagName, err)
		return false
	}

	token := client.Publish(p.TopicFor(tagName), 1, true, payload)
	if !token.WaitTimeout(2 * time.Second) {
		return false
	}
	if token.Error() != nil {
		logMQTT("publish %s: %v", tagName, token.Error())
		return false
	}

	p.lastMu.Lock()
	p.lastValues[tagName] = value
	p.lastMu.Unlock()
	return true
}

func (p *Publisher) message(tagName, typeName string, value interface{}, st status.Status, writable bool) TagMessage {
	return TagMessage{
		Namespace: p.namespace,
		Tag:       tagName,
		Type:      typeName,
		Value:     value,
		Status:    st.String(),
		Writable:  writable,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// SetWriteHandler sets the callback for handling write requests.
func (p *Publisher) SetWriteHandler(handler WriteHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeHandler = handler
}

// SetWriteValidator sets the callback for validating write requests.
func (p *Publisher) SetWriteValidator(validator WriteValidator) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeValidator = validator
}

func (p *Publisher) subscribeWriteTopic() {
	p.mu.RLock()
	client := p.client
	p.mu.RUnlock()
	if client == nil {
		return
	}

	topic := p.builder.MQTTWriteTopic()
	logMQTT("Subscribing to write topic: %s", topic)
	token := client.Subscribe(topic, 1, p.handleWriteMessage)
	if !token.WaitTimeout(2 * time.Second) {
		logMQTT("Subscribe timeout for %s", topic)
		return
	}
	if token.Error() != nil {
		logMQTT("Subscribe error for %s: %v", topic, token.Error())
	}
}

// handleWriteMessage validates a write request and queues it.
func (p *Publisher) handleWriteMessage(client pahomqtt.Client, msg pahomqtt.Message) {
	logMQTT("Received write request on topic %s: %s", msg.Topic(), msg.Payload())

	p.mu.RLock()
	handler := p.writeHandler
	validator := p.writeValidator
	queue := p.writeQueue
	p.mu.RUnlock()

	job := writeJob{client: client, handler: handler}

	var req WriteRequest
	dec := json.NewDecoder(bytes.NewReader(msg.Payload()))
	dec.UseNumber() // keep 64-bit integers exact
	if err := dec.Decode(&req); err != nil {
		job.err = fmt.Errorf("invalid JSON: %v", err)
	} else {
		job.tagName, job.value = req.Tag, req.Value
		switch {
		case req.Tag == "":
			job.err = fmt.Errorf("missing tag")
		case req.Value == nil:
			job.err = fmt.Errorf("missing value")
		case validator != nil && !validator(req.Tag):
			job.err = fmt.Errorf("tag not writable: %s", req.Tag)
		}
	}

	select {
	case queue <- job:
	default:
		logMQTT("Write queue full, rejecting write for %s", job.tagName)
		go p.publishWriteResponse(client, job.tagName, job.value, fmt.Errorf("write queue full, try again later"))
	}
}

// publishWriteResponse publishes a write response on {ns}/write/response.
func (p *Publisher) publishWriteResponse(client pahomqtt.Client, tagName string, value interface{}, err error) {
	resp := WriteResponse{
		Namespace: p.namespace,
		Tag:       tagName,
		Value:     value,
		Success:   err == nil,
		Status:    int32(status.Of(err)),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if err != nil {
		resp.Error = err.Error()
	}

	payload, _ := json.Marshal(resp)
	token := client.Publish(p.builder.MQTTWriteResponseTopic(), 1, false, payload)
	token.WaitTimeout(2 * time.Second)
}

// Manager manages multiple MQTT publishers.
type Manager struct {
	publishers     map[string]*Publisher
	mu             sync.RWMutex
	writeHandler   WriteHandler
	writeValidator WriteValidator
}

// NewManager creates a new MQTT manager.
func NewManager() *Manager {
	return &Manager{
		publishers: make(map[string]*Publisher),
	}
}

// Add adds a publisher to the manager.
func (m *Manager) Add(pub *Publisher) {
	m.mu.Lock()
	m.publishers[pub.Name()] = pub
	handler := m.writeHandler
	validator := m.writeValidator
	m.mu.Unlock()

	if handler != nil {
		pub.SetWriteHandler(handler)
	}
	if validator != nil {
		pub.SetWriteValidator(validator)
	}
}

// Remove stops and removes a publisher by name.
func (m *Manager) Remove(name string) {
	m.mu.Lock()
	pub, exists := m.publishers[name]
	delete(m.publishers, name)
	m.mu.Unlock()

	if exists {
		pub.Stop()
	}
}

// Get returns a publisher by name.
func (m *Manager) Get(name string) *Publisher {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.publishers[name]
}

// List returns all publishers sorted by name.
func (m *Manager) List() []*Publisher {
	m.mu.RLock()
	result := make([]*Publisher, 0, len(m.publishers))
	for _, pub := range m.publishers {
		result = append(result, pub)
	}
	m.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].Name() < result[j].Name() })
	return result
}

// StartAll starts all publishers that are configured as enabled.
// Returns the number of publishers successfully started.
func (m *Manager) StartAll() int {
	started := 0
	for _, pub := range m.List() {
		if pub.config.Enabled && !pub.IsRunning() {
			logMQTT("Auto-starting MQTT publisher: %s", pub.Name())
			if err := pub.Start(); err != nil {
				logMQTT("Failed to auto-start %s: %v", pub.Name(), err)
			} else {
				started++
			}
		}
	}
	return started
}

// StopAll stops all publishers.
func (m *Manager) StopAll() {
	for _, pub := range m.List() {
		pub.Stop()
	}
}

// Publish publishes a value to all running publishers.
func (m *Manager) Publish(tagName, typeName string, value interface{}, st status.Status, force bool) {
	m.mu.RLock()
	validator := m.writeValidator
	m.mu.RUnlock()

	writable := validator != nil && validator(tagName)
	for _, pub := range m.List() {
		if pub.IsRunning() {
			pub.Publish(tagName, typeName, value, st, writable, force)
		}
	}
}

// AnyRunning returns true if any publisher is running.
func (m *Manager) AnyRunning() bool {
	for _, pub := range m.List() {
		if pub.IsRunning() {
			return true
		}
	}
	return false
}

// LoadFromConfig creates publishers from configuration.
func (m *Manager) LoadFromConfig(cfgs []config.MQTTConfig, ns string) {
	for i := range cfgs {
		m.Add(NewPublisher(&cfgs[i], ns))
	}
}

// SetWriteHandler sets the write handler for all publishers.
func (m *Manager) SetWriteHandler(handler WriteHandler) {
	m.mu.Lock()
	m.writeHandler = handler
	m.mu.Unlock()

	for _, pub := range m.List() {
		pub.SetWriteHandler(handler)
	}
}

// SetWriteValidator sets the write validator for all publishers.
func (m *Manager) SetWriteValidator(validator WriteValidator) {
	m.mu.Lock()
	m.writeValidator = validator
	m.mu.Unlock()

	for _, pub := range m.List() {
		pub.SetWriteValidator(validator)
	}
}
