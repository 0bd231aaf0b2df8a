package store

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// File keeps one JSON document per key inside a directory. Writes go through
// a temp file and rename so readers in other processes never see a partial
// document; fsnotify on the directory picks up writes from any process.
type File struct {
	dir    string
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
}

// NewFile creates the data directory if needed.
func NewFile(dir string, logger *zap.Logger) (*File, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &File{dir: dir, logger: logger}, nil
}

// Path returns the file backing key. Keys are hex encoded since they may
// contain characters that are not valid in file names.
func (f *File) Path(key string) string {
	return filepath.Join(f.dir, hex.EncodeToString([]byte(key))+".json")
}

// Get reads the document for key.
func (f *File) Get(_ context.Context, key string) (string, bool, error) {
	if f.isClosed() {
		return "", false, ErrClosed
	}
	b, err := os.ReadFile(f.Path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read %s: %w", key, err)
	}
	return string(b), true, nil
}

// Set atomically replaces the document for key.
func (f *File) Set(_ context.Context, key, value string) error {
	if f.isClosed() {
		return ErrClosed
	}
	tmp, err := os.CreateTemp(f.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.Path(key)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace %s: %w", key, err)
	}
	return nil
}

// Watch reports create, write and rename events for the key's file.
func (f *File) Watch(ctx context.Context, key string) (<-chan struct{}, error) {
	if f.isClosed() {
		return nil, ErrClosed
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("new watcher: %w", err)
	}
	if err := w.Add(f.dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", f.dir, err)
	}

	target := filepath.Clean(f.Path(key))
	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
					continue
				}
				notify(out)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				f.logger.Warn("file watcher error", zap.String("dir", f.dir), zap.Error(err))
			}
		}
	}()
	return out, nil
}

// Ping checks the data directory is still reachable.
func (f *File) Ping(context.Context) error {
	if f.isClosed() {
		return ErrClosed
	}
	_, err := os.Stat(f.dir)
	return err
}

// Close marks the backend closed. Watchers end with their contexts.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *File) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
