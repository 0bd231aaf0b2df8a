package store

import (
	"context"
	"sync"
)

// Memory is an in-process KV. Instances can be shared between several
// attendance stores to mimic separate browser tabs.
type Memory struct {
	mu       sync.Mutex
	data     map[string]string
	watchers map[string]map[chan struct{}]struct{}
	closed   bool
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{
		data:     make(map[string]string),
		watchers: make(map[string]map[chan struct{}]struct{}),
	}
}

// Get returns the value under key.
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return "", false, ErrClosed
	}
	v, ok := m.data[key]
	return v, ok, nil
}

// Set stores value under key and signals watchers.
func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.data[key] = value
	for ch := range m.watchers[key] {
		notify(ch)
	}
	return nil
}

// Watch registers a watcher on key until ctx is done.
func (m *Memory) Watch(ctx context.Context, key string) (<-chan struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	ch := make(chan struct{}, 1)
	if m.watchers[key] == nil {
		m.watchers[key] = make(map[chan struct{}]struct{})
	}
	m.watchers[key][ch] = struct{}{}

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, ok := m.watchers[key][ch]; ok {
			delete(m.watchers[key], ch)
			close(ch)
		}
	}()
	return ch, nil
}

// Ping reports whether the backend is open.
func (m *Memory) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

// Close drops all data and closes outstanding watch channels.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	for key, set := range m.watchers {
		for ch := range set {
			close(ch)
		}
		delete(m.watchers, key)
	}
	return nil
}
