package attendance

import "sync"

// Emitter fans a change signal out to zero-argument listeners.
type Emitter struct {
	mu        sync.Mutex
	next      uint64
	listeners map[uint64]func()
}

// NewEmitter creates an emitter with no listeners.
func NewEmitter() *Emitter {
	return &Emitter{listeners: make(map[uint64]func())}
}

// Subscribe registers fn and returns a function that removes it. Calling the
// returned function more than once is harmless.
func (e *Emitter) Subscribe(fn func()) (unsubscribe func()) {
	e.mu.Lock()
	id := e.next
	e.next++
	e.listeners[id] = fn
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.listeners, id)
			e.mu.Unlock()
		})
	}
}

// Emit calls every listener once. Listeners may subscribe or unsubscribe
// from inside the callback.
func (e *Emitter) Emit() {
	e.mu.Lock()
	fns := make([]func(), 0, len(e.listeners))
	for _, fn := range e.listeners {
		fns = append(fns, fn)
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Len returns the number of registered listeners.
func (e *Emitter) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners)
}
