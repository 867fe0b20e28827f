package tui

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"taglink/logging"
)

// LogMessage represents a single log entry in the debug store.
type LogMessage struct {
	Timestamp time.Time
	Level     string // "ERROR", "MQTT", "KAFKA", "VALKEY", "API", ""
	Message   string
}

// String formats the entry for the log pane.
func (m LogMessage) String() string {
	ts := m.Timestamp.Format("15:04:05")
	if m.Level == "" {
		return ts + " " + m.Message
	}
	return ts + " [" + m.Level + "] " + m.Message
}

// DebugStoreListenerID is a unique identifier for a debug store subscriber.
type DebugStoreListenerID string

// DebugLogStore keeps the most recent log messages and fans them out to
// subscribers.
type DebugLogStore struct {
	messages    []LogMessage
	mu          sync.RWMutex
	maxLines    int
	listeners   map[DebugStoreListenerID]func(LogMessage)
	listenersMu sync.RWMutex
	counter     uint64
	fileLogger  *logging.FileLogger
}

var globalDebugStore *DebugLogStore
var storeOnce sync.Once

// NewDebugStore creates a store that retains maxLines messages.
func NewDebugStore(maxLines int) *DebugLogStore {
	return &DebugLogStore{
		messages:  make([]LogMessage, 0),
		maxLines:  maxLines,
		listeners: make(map[DebugStoreListenerID]func(LogMessage)),
	}
}

// InitDebugStore initializes the global debug store with the specified max lines.
// Only the first call has an effect.
func InitDebugStore(maxLines int) *DebugLogStore {
	storeOnce.Do(func() {
		globalDebugStore = NewDebugStore(maxLines)
	})
	return globalDebugStore
}

// GetDebugStore returns the global debug store instance.
// Returns nil if InitDebugStore has not been called.
func GetDebugStore() *DebugLogStore {
	return globalDebugStore
}

// Log adds a message to the store and notifies all subscribers.
func (s *DebugLogStore) Log(level, format string, args ...interface{}) {
	msg := LogMessage{
		Timestamp: time.Now(),
		Level:     level,
		Message:   fmt.Sprintf(format, args...),
	}

	s.mu.Lock()
	s.messages = append(s.messages, msg)
	if len(s.messages) > s.maxLines {
		s.messages = s.messages[len(s.messages)-s.maxLines:]
	}
	fileLogger := s.fileLogger
	s.mu.Unlock()

	if fileLogger != nil {
		fileLogger.Log("%s", msg.String())
	}

	s.listenersMu.RLock()
	listeners := make([]func(LogMessage), 0, len(s.listeners))
	for _, cb := range s.listeners {
		listeners = append(listeners, cb)
	}
	s.listenersMu.RUnlock()

	for _, cb := range listeners {
		go cb(msg)
	}
}

// Subscribe registers a callback to receive new log messages.
func (s *DebugLogStore) Subscribe(cb func(LogMessage)) DebugStoreListenerID {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	id := DebugStoreListenerID(fmt.Sprintf("debug-%d", atomic.AddUint64(&s.counter, 1)))
	s.listeners[id] = cb
	return id
}

// Unsubscribe removes a previously registered subscriber.
func (s *DebugLogStore) Unsubscribe(id DebugStoreListenerID) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	delete(s.listeners, id)
}

// GetMessages returns a copy of all messages in the store.
func (s *DebugLogStore) GetMessages() []LogMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]LogMessage, len(s.messages))
	copy(result, s.messages)
	return result
}

// Clear removes all messages from the store.
func (s *DebugLogStore) Clear() {
	s.mu.Lock()
	s.messages = make([]LogMessage, 0)
	s.mu.Unlock()
}

// SetFileLogger mirrors every message to a log file.
func (s *DebugLogStore) SetFileLogger(logger *logging.FileLogger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fileLogger = logger
}

// StoreLog logs a message to the global debug store if it exists.
func StoreLog(format string, args ...interface{}) {
	if globalDebugStore != nil {
		globalDebugStore.Log("", format, args...)
	}
}

// StoreLogLevel logs a message with a level tag to the global debug store.
func StoreLogLevel(level, format string, args ...interface{}) {
	if globalDebugStore != nil {
		globalDebugStore.Log(level, format, args...)
	}
}
