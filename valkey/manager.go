package valkey

import (
	"sort"
	"sync"

	"taglink/config"
	"taglink/status"
)

// Manager manages multiple Valkey publishers.
type Manager struct {
	publishers []*Publisher
	mu         sync.RWMutex

	onConnectCallback func()
}

// NewManager creates a new Valkey manager.
func NewManager() *Manager {
	return &Manager{
		publishers: make([]*Publisher, 0),
	}
}

// LoadFromConfig creates a publisher for every configured server.
func (m *Manager) LoadFromConfig(configs []config.ValkeyConfig, ns string) {
	for i := range configs {
		m.Add(&configs[i], ns)
	}
}

// Add adds a new publisher.
func (m *Manager) Add(cfg *config.ValkeyConfig, ns string) *Publisher {
	m.mu.Lock()
	defer m.mu.Unlock()

	pub := NewPublisher(cfg, ns)
	pub.SetOnConnectCallback(m.onConnectCallback)
	m.publishers = append(m.publishers, pub)
	return pub
}

// Remove removes a publisher by name.
func (m *Manager) Remove(name string) bool {
	m.mu.Lock()
	var pubToStop *Publisher
	for i, pub := range m.publishers {
		if pub.config.Name == name {
			pubToStop = pub
			m.publishers = append(m.publishers[:i], m.publishers[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	// Stop outside the lock; closing the client can block.
	if pubToStop != nil {
		pubToStop.Stop()
		return true
	}
	return false
}

// Get returns a publisher by name.
func (m *Manager) Get(name string) *Publisher {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, pub := range m.publishers {
		if pub.config.Name == name {
			return pub
		}
	}
	return nil
}

// List returns all publishers sorted by name.
func (m *Manager) List() []*Publisher {
	result := m.snapshot()
	sort.Slice(result, func(i, j int) bool {
		return result[i].config.Name < result[j].config.Name
	})
	return result
}

func (m *Manager) snapshot() []*Publisher {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*Publisher, len(m.publishers))
	copy(result, m.publishers)
	return result
}

// StartAll starts all enabled publishers.
func (m *Manager) StartAll() int {
	started := 0
	for _, pub := range m.snapshot() {
		if !pub.config.Enabled {
			continue
		}
		if err := pub.Start(); err != nil {
			debugLog("Failed to start Valkey %s: %v", pub.config.Name, err)
			continue
		}
		debugLog("Started Valkey %s at %s", pub.config.Name, pub.Address())
		started++
	}
	return started
}

// StopAll stops all publishers.
func (m *Manager) StopAll() {
	for _, pub := range m.snapshot() {
		pub.Stop()
	}
}

// AnyRunning returns true if any publisher is running.
func (m *Manager) AnyRunning() bool {
	for _, pub := range m.snapshot() {
		if pub.IsRunning() {
			return true
		}
	}
	return false
}

// Publish publishes a tag value to all running publishers.
func (m *Manager) Publish(tagName, typeName string, value interface{}, st status.Status, writable bool) {
	for _, pub := range m.snapshot() {
		if !pub.IsRunning() {
			continue
		}
		if err := pub.Publish(tagName, typeName, value, st, writable); err != nil {
			debugLog("Valkey publish error (%s): %v", pub.config.Name, err)
		}
	}
}

// SetOnConnectCallback sets the callback invoked after each publisher connects.
func (m *Manager) SetOnConnectCallback(callback func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.onConnectCallback = callback
	for _, pub := range m.publishers {
		pub.SetOnConnectCallback(callback)
	}
}
