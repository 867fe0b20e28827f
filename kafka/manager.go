package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"taglink/namespace"
	"taglink/status"
)

// TagMessage is the JSON structure published to Kafka for tag changes.
type TagMessage struct {
	Namespace string      `json:"namespace"`
	Tag       string      `json:"tag"`
	Type      string      `json:"type,omitempty"`
	Value     interface{} `json:"value"`
	Status    string      `json:"status"`
	Writable  bool        `json:"writable"`
	Timestamp string      `json:"timestamp"`
}

// publishJob represents a pending Kafka publish operation.
type publishJob struct {
	producer *Producer
	topic    string
	key      []byte
	payload  []byte
	cacheKey string
	value    interface{}
}

// Manager manages multiple Kafka producer connections.
type Manager struct {
	namespace  string
	producers  map[string]*Producer
	mu         sync.RWMutex
	lastValues map[string]interface{} // Last published value per cluster/tag
	lastMu     sync.RWMutex

	// Worker pool for bounded publish goroutines
	publishQueue chan publishJob
	wg           sync.WaitGroup
	stopChan     chan struct{}
	started      bool
}

// MaxPublishWorkers is the maximum number of concurrent publish goroutines.
const MaxPublishWorkers = 10

// MaxPublishQueueSize is the maximum number of pending publish jobs.
const MaxPublishQueueSize = 1000

// NewManager creates a new Kafka manager for the namespace.
func NewManager(ns string) *Manager {
	m := &Manager{
		namespace:    ns,
		producers:    make(map[string]*Producer),
		lastValues:   make(map[string]interface{}),
		publishQueue: make(chan publishJob, MaxPublishQueueSize),
		stopChan:     make(chan struct{}),
	}
	m.startWorkers()
	return m
}

// startWorkers starts the publish worker goroutines.
func (m *Manager) startWorkers() {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	stop := m.stopChan
	queue := m.publishQueue
	m.mu.Unlock()

	for i := 0; i < MaxPublishWorkers; i++ {
		m.wg.Add(1)
		go m.publishWorker(stop, queue)
	}
}

// publishWorker processes publish jobs from the queue.
func (m *Manager) publishWorker(stop <-chan struct{}, queue <-chan publishJob) {
	defer m.wg.Done()

	for {
		select {
		case <-stop:
			return
		case job := <-queue:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := job.producer.Produce(ctx, job.topic, job.key, job.payload); err == nil {
				m.lastMu.Lock()
				m.lastValues[job.cacheKey] = job.value
				m.lastMu.Unlock()
			} else {
				logKafka("Failed to publish %s: %v", job.cacheKey, err)
			}
			cancel()
		}
	}
}

// AddCluster adds a new Kafka cluster configuration. The topic defaults to
// the namespace-derived one.
func (m *Manager) AddCluster(config *Config) *Producer {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, exists := m.producers[config.Name]; exists {
		return p
	}

	topic := config.Topic
	if topic == "" {
		topic = namespace.New(m.namespace, config.Selector).KafkaTagTopic()
	}
	p := NewProducer(config, topic)
	m.producers[config.Name] = p
	return p
}

// RemoveCluster removes a Kafka cluster and disconnects.
func (m *Manager) RemoveCluster(name string) {
	m.mu.Lock()
	producer, exists := m.producers[name]
	if exists {
		delete(m.producers, name)
	}
	m.mu.Unlock()

	if exists {
		producer.Disconnect()
	}
}

// GetProducer returns the producer for the named cluster.
func (m *Manager) GetProducer(name string) *Producer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.producers[name]
}

// ListClusters returns all cluster names, sorted.
func (m *Manager) ListClusters() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.producers))
	for name := range m.producers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Manager) snapshot() []*Producer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	producers := make([]*Producer, 0, len(m.producers))
	for _, p := range m.producers {
		producers = append(producers, p)
	}
	return producers
}

// Connect connects to the named Kafka cluster.
func (m *Manager) Connect(name string) error {
	producer := m.GetProducer(name)
	if producer == nil {
		return fmt.Errorf("kafka cluster not found: %s", name)
	}
	return producer.Connect()
}

// ConnectEnabled connects to all enabled Kafka clusters and returns how
// many succeeded.
func (m *Manager) ConnectEnabled() int {
	connected := 0
	for _, p := range m.snapshot() {
		if !p.config.Enabled {
			continue
		}
		if err := p.Connect(); err != nil {
			continue
		}
		connected++
	}
	return connected
}

// StopAll disconnects from all Kafka clusters and stops workers.
func (m *Manager) StopAll() {
	m.mu.Lock()
	wasStarted := m.started
	oldStopChan := m.stopChan
	if wasStarted {
		m.stopChan = make(chan struct{})
		m.publishQueue = make(chan publishJob, MaxPublishQueueSize)
		m.started = false
	}
	m.mu.Unlock()

	if wasStarted {
		close(oldStopChan)

		done := make(chan struct{})
		go func() {
			m.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(3 * time.Second):
			logKafka("Timeout waiting for publish workers to stop")
		}
	}

	for _, p := range m.snapshot() {
		p.Disconnect()
	}
}

// GetClusterStatus returns the status of a specific cluster.
func (m *Manager) GetClusterStatus(name string) (ConnectionStatus, error) {
	producer := m.GetProducer(name)
	if producer == nil {
		return StatusDisconnected, fmt.Errorf("kafka cluster not found: %s", name)
	}
	return producer.GetStatus(), producer.GetError()
}

// LoadFromConfigs loads multiple cluster configurations.
func (m *Manager) LoadFromConfigs(configs []Config) {
	for i := range configs {
		m.AddCluster(&configs[i])
	}
}

// Publish queues a tag value for every connected cluster. Unchanged values
// are skipped unless force is set; the tag name is the message key.
func (m *Manager) Publish(tagName, typeName string, value interface{}, st status.Status, writable, force bool) {
	m.startWorkers()

	m.mu.RLock()
	queue := m.publishQueue
	m.mu.RUnlock()

	for _, p := range m.snapshot() {
		if p.GetStatus() != StatusConnected {
			continue
		}

		cacheKey := p.config.Name + "/" + tagName
		if !force && !m.changed(cacheKey, value) {
			continue
		}

		msg := TagMessage{
			Namespace: m.namespace,
			Tag:       tagName,
			Type:      typeName,
			Value:     value,
			Status:    st.String(),
			Writable:  writable,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}
		payload, err := json.Marshal(msg)
		if err != nil {
			logKafka("Failed to marshal %s: %v", tagName, err)
			continue
		}

		job := publishJob{
			producer: p,
			topic:    p.topic,
			key:      []byte(tagName),
			payload:  payload,
			cacheKey: cacheKey,
			value:    value,
		}
		select {
		case queue <- job:
		default:
			logKafka("Publish queue full, dropping message for %s", cacheKey)
		}
	}
}

// changed reports whether value differs from the last one published under cacheKey.
func (m *Manager) changed(cacheKey string, value interface{}) bool {
	m.lastMu.RLock()
	lastValue, exists := m.lastValues[cacheKey]
	m.lastMu.RUnlock()
	return !exists || fmt.Sprintf("%v", lastValue) != fmt.Sprintf("%v", value)
}

// AnyConnected returns true if any cluster is connected.
func (m *Manager) AnyConnected() bool {
	for _, p := range m.snapshot() {
		if p.GetStatus() == StatusConnected {
			return true
		}
	}
	return false
}

// ClearLastValues clears the change tracking cache, forcing republish of all values.
func (m *Manager) ClearLastValues() {
	m.lastMu.Lock()
	m.lastValues = make(map[string]interface{})
	m.lastMu.Unlock()
}
