// Package store provides the key-value backends that hold the persisted
// attendance snapshot.
package store

import (
	"context"
	"errors"
)

// ErrClosed is returned by operations on a closed backend.
var ErrClosed = errors.New("store: backend closed")

// KV is a string key-value store with change notification.
//
// Watch delivers a signal whenever the value under key is written, by this
// process or by any other process sharing the backend. Signals may be
// coalesced. The returned channel is closed once ctx is done.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Watch(ctx context.Context, key string) (<-chan struct{}, error)
	Ping(ctx context.Context) error
	Close() error
}

// notify performs a non-blocking send so slow watchers never stall writers.
func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
