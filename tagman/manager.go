// Package tagman keeps a set of tag handles open and polls them in the
// background.
package tagman

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"taglink/config"
	"taglink/engine"
	"taglink/logging"
	"taglink/status"
	"taglink/tag"
)

// ManagedTag is one configured tag and its handle.
type ManagedTag struct {
	Config config.TagConfig

	handle  *tag.Tag
	created time.Time

	mu        sync.RWMutex
	ready     bool // creation finished with OK
	value     *TagValue
	status    status.Status
	lastError error
	lastPoll  time.Time
}

// GetStatus returns the status of the last create or poll.
func (m *ManagedTag) GetStatus() status.Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// GetError returns the last error.
func (m *ManagedTag) GetError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastError
}

// GetValue returns the last value read, or nil before the first
// successful poll.
func (m *ManagedTag) GetValue() *TagValue {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.value
}

// GetLastPoll returns when the tag was last polled.
func (m *ManagedTag) GetLastPoll() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastPoll
}

func (m *ManagedTag) isReady() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ready
}

func (m *ManagedTag) setResult(st status.Status, err error) {
	m.mu.Lock()
	m.status = st
	m.lastError = err
	m.mu.Unlock()
}

// ValueChange represents a tag value that has changed.
type ValueChange struct {
	TagName   string
	TypeName  string
	Value     interface{}
	Status    status.Status
	Timestamp time.Time
}

// PollStats tracks polling statistics.
type PollStats struct {
	LastPollTime time.Time
	TagsPolled   int
	ChangesFound int
	LastError    error
}

// tagWorker polls a single tag in its own goroutine.
type tagWorker struct {
	mt      *ManagedTag
	manager *Manager
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	polls   int64
	changes int64
}

func newTagWorker(mt *ManagedTag, manager *Manager) *tagWorker {
	ctx, cancel := context.WithCancel(context.Background())
	return &tagWorker{mt: mt, manager: manager, ctx: ctx, cancel: cancel}
}

func (w *tagWorker) Start() {
	w.wg.Add(1)
	go w.pollLoop()
}

func (w *tagWorker) Stop() {
	w.cancel()
	w.wg.Wait()
}

func (w *tagWorker) pollLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.manager.pollRate)
	defer ticker.Stop()

	for {
		w.poll()
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// poll waits out creation, then does Lock, Read, decode, Unlock.
func (w *tagWorker) poll() {
	mt := w.mt
	name := mt.Config.Name
	createTimeout, ioTimeout := w.manager.timeouts()

	if !mt.isReady() {
		st := mt.handle.Status()
		switch {
		case st == status.OK:
			mt.mu.Lock()
			mt.ready = true
			mt.mu.Unlock()
			logging.DebugLog("tagman", "%s: created", name)
		case st == status.Pending:
			if time.Since(mt.created) > createTimeout {
				mt.setResult(status.ErrTimeout, status.Err("create", status.ErrTimeout))
				w.manager.markStatusDirty()
			}
			return
		default:
			mt.setResult(st, status.Err("create", st))
			w.manager.markStatusDirty()
			return
		}
	}

	var val interface{}
	var count int
	st := status.OK
	err := mt.handle.Locked(func() error {
		st = mt.handle.Read(ioTimeout)
		if st != status.OK {
			return status.Err("read", st)
		}
		var derr error
		val, count, derr = decode(mt.handle, mt.Config.Type, mt.Config.Count)
		return derr
	})
	atomic.AddInt64(&w.polls, 1)
	now := time.Now()

	if err != nil {
		if st == status.OK {
			st = status.Of(err)
		}
		logging.DebugLog("tagman", "%s: poll failed: %v", name, err)
		mt.mu.Lock()
		mt.status = st
		mt.lastError = err
		mt.lastPoll = now
		mt.mu.Unlock()
		w.manager.markStatusDirty()
		return
	}

	tv := &TagValue{
		Name:      name,
		Kind:      mt.Config.Type,
		Value:     val,
		Count:     count,
		Status:    status.OK,
		Timestamp: now,
	}

	mt.mu.Lock()
	old := mt.value
	mt.value = tv
	mt.status = status.OK
	mt.lastError = nil
	mt.lastPoll = now
	mt.mu.Unlock()

	if old == nil || !sameValue(old.Value, val) {
		atomic.AddInt64(&w.changes, 1)
		w.manager.sendChanges([]ValueChange{{
			TagName:   name,
			TypeName:  tv.TypeName(),
			Value:     val,
			Status:    status.OK,
			Timestamp: now,
		}})
	}
	w.manager.markStatusDirty()
}

// Manager owns the tag handles and their poll workers.
type Manager struct {
	eng engine.Engine

	tags    map[string]*ManagedTag
	workers map[string]*tagWorker
	mu      sync.RWMutex

	pollRate      time.Duration
	createTimeout time.Duration
	ioTimeout     time.Duration
	batchInterval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	onChange       func()
	valueListeners []func(changes []ValueChange)

	changeChan  chan []ValueChange // Aggregates value changes from workers
	statusDirty int32              // Atomic flag: 1 if UI needs refresh
}

// NewManager creates a manager polling through eng.
func NewManager(eng engine.Engine, pollRate time.Duration) *Manager {
	if pollRate <= 0 {
		pollRate = time.Second
	}
	return &Manager{
		eng:           eng,
		tags:          make(map[string]*ManagedTag),
		workers:       make(map[string]*tagWorker),
		pollRate:      pollRate,
		createTimeout: 5 * time.Second,
		ioTimeout:     5 * time.Second,
		batchInterval: 100 * time.Millisecond,
		changeChan:    make(chan []ValueChange, 100),
	}
}

// SetTimeouts sets how long creation may stay pending and how long each
// read or write may block. Non-positive values keep the current setting.
func (m *Manager) SetTimeouts(create, io time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if create > 0 {
		m.createTimeout = create
	}
	if io > 0 {
		m.ioTimeout = io
	}
}

func (m *Manager) timeouts() (create, io time.Duration) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.createTimeout, m.ioTimeout
}

// SetOnChange sets a callback that fires when any tag status changes.
func (m *Manager) SetOnChange(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
}

// OnValueChange registers a listener for batches of changed values.
// Listeners run on the manager's batching goroutine and must not block.
func (m *Manager) OnValueChange(fn func(changes []ValueChange)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.valueListeners = append(m.valueListeners, fn)
}

func (m *Manager) markStatusDirty() {
	atomic.StoreInt32(&m.statusDirty, 1)
}

// sendChanges sends value changes to the aggregator channel.
func (m *Manager) sendChanges(changes []ValueChange) {
	select {
	case m.changeChan <- changes:
	default:
		// Channel full, drop oldest and retry
		select {
		case <-m.changeChan:
		default:
		}
		select {
		case m.changeChan <- changes:
		default:
		}
	}
}

// AddTag creates the handle for cfg without waiting and, if the manager
// is running, starts polling it.
func (m *Manager) AddTag(cfg config.TagConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.tags[cfg.Name]; exists {
		return fmt.Errorf("%w: %s", ErrExists, cfg.Name)
	}
	if cfg.Type == tag.Invalid {
		return fmt.Errorf("%w: tag %s has no type", ErrInvalidInput, cfg.Name)
	}

	h, err := tag.Create(m.eng, cfg.Attributes, 0)
	if err != nil {
		return fmt.Errorf("create %s: %w", cfg.Name, err)
	}
	logging.DebugLog("tagman", "%s: handle %d", cfg.Name, h.Handle())
	name := cfg.Name
	if err := h.OnEvent(func(ev tag.Event) {
		if ev.Status.IsError() {
			logging.DebugLog("tagman", "%s: %s", name, ev)
		}
	}); err != nil && status.Of(err) != status.ErrNotImplemented {
		logging.DebugLog("tagman", "%s: events: %v", name, err)
	}

	mt := &ManagedTag{
		Config:  cfg,
		handle:  h,
		created: time.Now(),
		status:  status.Pending,
	}
	m.tags[cfg.Name] = mt

	if m.ctx != nil {
		worker := newTagWorker(mt, m)
		m.workers[cfg.Name] = worker
		worker.Start()
	}
	m.markStatusDirty()
	return nil
}

// RemoveTag stops polling a tag and destroys its handle.
func (m *Manager) RemoveTag(name string) error {
	m.mu.Lock()
	mt, exists := m.tags[name]
	worker := m.workers[name]
	delete(m.tags, name)
	delete(m.workers, name)
	m.mu.Unlock()

	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if worker != nil {
		worker.Stop()
	}
	mt.handle.Destroy()
	m.markStatusDirty()
	return nil
}

// LoadFromConfig adds every enabled tag. Tags that fail to create are
// reported together; the rest are still added.
func (m *Manager) LoadFromConfig(cfg *config.Config) error {
	m.SetTimeouts(cfg.Defaults.CreateTimeout, cfg.Defaults.IOTimeout)
	var firstErr error
	failed := 0
	for _, tc := range cfg.EnabledTags() {
		if err := m.AddTag(tc); err != nil {
			logging.DebugLog("tagman", "load: %v", err)
			if firstErr == nil {
				firstErr = err
			}
			failed++
		}
	}
	if firstErr != nil {
		return fmt.Errorf("%d tag(s) failed: %w", failed, firstErr)
	}
	return nil
}

// GetTag returns the managed tag with the given name.
func (m *Manager) GetTag(name string) *ManagedTag {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tags[name]
}

// ListTags returns all managed tags sorted by name.
func (m *Manager) ListTags() []*ManagedTag {
	m.mu.RLock()
	result := make([]*ManagedTag, 0, len(m.tags))
	for _, mt := range m.tags {
		result = append(result, mt)
	}
	m.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].Config.Name < result[j].Config.Name
	})
	return result
}

// Start begins background polling for all tags.
func (m *Manager) Start() {
	m.mu.Lock()
	if m.ctx != nil {
		m.mu.Unlock()
		return // Already running
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())

	for name, mt := range m.tags {
		worker := newTagWorker(mt, m)
		m.workers[name] = worker
		worker.Start()
	}
	m.mu.Unlock()

	m.wg.Add(1)
	go m.batchedUpdateLoop()
}

// Stop halts polling and destroys every tag handle.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}
	workers := make([]*tagWorker, 0, len(m.workers))
	for _, w := range m.workers {
		workers = append(workers, w)
	}
	m.workers = make(map[string]*tagWorker)
	tags := m.tags
	m.tags = make(map[string]*ManagedTag)
	m.mu.Unlock()

	// Stop workers outside of lock
	for _, w := range workers {
		w.Stop()
	}
	m.wg.Wait()

	for name, mt := range tags {
		if st := mt.handle.Destroy(); st != status.OK {
			logging.DebugLog("tagman", "%s: destroy: %s", name, st)
		}
	}

	m.mu.Lock()
	m.ctx = nil
	m.cancel = nil
	m.mu.Unlock()
}

// batchedUpdateLoop aggregates changes and triggers updates at a controlled rate.
func (m *Manager) batchedUpdateLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.batchInterval)
	defer ticker.Stop()

	var pendingChanges []ValueChange

	for {
		select {
		case <-m.ctx.Done():
			// Flush any remaining changes
		drain:
			for {
				select {
				case changes := <-m.changeChan:
					pendingChanges = append(pendingChanges, changes...)
				default:
					break drain
				}
			}
			m.flushValueChanges(pendingChanges)
			return

		case changes := <-m.changeChan:
			pendingChanges = append(pendingChanges, changes...)

		case <-ticker.C:
			if atomic.CompareAndSwapInt32(&m.statusDirty, 1, 0) {
				m.mu.RLock()
				fn := m.onChange
				m.mu.RUnlock()
				if fn != nil {
					fn()
				}
			}
			if len(pendingChanges) > 0 {
				m.flushValueChanges(pendingChanges)
				pendingChanges = nil
			}
		}
	}
}

func (m *Manager) flushValueChanges(changes []ValueChange) {
	if len(changes) == 0 {
		return
	}
	m.mu.RLock()
	listeners := append([]func([]ValueChange){}, m.valueListeners...)
	m.mu.RUnlock()
	for _, fn := range listeners {
		fn(changes)
	}
}

// ReadTag returns the cached value of a tag.
func (m *Manager) ReadTag(name string) (*TagValue, error) {
	mt := m.GetTag(name)
	if mt == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	mt.mu.RLock()
	defer mt.mu.RUnlock()
	if mt.value == nil {
		if mt.lastError != nil {
			return nil, mt.lastError
		}
		return nil, status.Err("read", mt.status)
	}
	return mt.value, nil
}

// WriteTag stages value and writes it. A slice writes consecutive
// elements. Engine failures come back as *status.Error.
func (m *Manager) WriteTag(name string, value interface{}) error {
	mt := m.GetTag(name)
	if mt == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if !mt.Config.Writable {
		return fmt.Errorf("%w: %s", ErrReadOnly, name)
	}
	if !mt.isReady() {
		st := mt.GetStatus()
		if st == status.OK {
			st = status.Pending
		}
		return status.Err("write", st)
	}

	_, timeout := m.timeouts()

	err := mt.handle.Locked(func() error {
		if err := encode(mt.handle, mt.Config.Type, value); err != nil {
			return err
		}
		return status.Err("write", mt.handle.Write(timeout))
	})
	if err != nil {
		logging.DebugLog("tagman", "%s: write failed: %v", name, err)
		return err
	}
	logging.DebugLog("tagman", "%s: wrote %v", name, value)
	return nil
}

// GetPollStats sums the workers' counters.
func (m *Manager) GetPollStats() PollStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var stats PollStats
	for name, w := range m.workers {
		stats.TagsPolled += int(atomic.LoadInt64(&w.polls))
		stats.ChangesFound += int(atomic.LoadInt64(&w.changes))
		mt := m.tags[name]
		if mt == nil {
			continue
		}
		if p := mt.GetLastPoll(); p.After(stats.LastPollTime) {
			stats.LastPollTime = p
		}
		if err := mt.GetError(); err != nil {
			stats.LastError = err
		}
	}
	return stats
}

// GetAllCurrentValues returns every cached value. Publishers use it for
// the initial publish when a broker connects.
func (m *Manager) GetAllCurrentValues() []ValueChange {
	var results []ValueChange
	for _, mt := range m.ListTags() {
		v := mt.GetValue()
		if v == nil {
			continue
		}
		results = append(results, ValueChange{
			TagName:   v.Name,
			TypeName:  v.TypeName(),
			Value:     v.Value,
			Status:    v.Status,
			Timestamp: v.Timestamp,
		})
	}
	return results
}
