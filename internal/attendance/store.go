package attendance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"attendance-tracker/internal/metrics"
	"attendance-tracker/internal/store"
)

// DefaultKey is the storage key holding the snapshot.
const DefaultKey = "attendance-tracker:v1"

// Store is the single source of truth for attendance records. Every
// operation reads the full snapshot from the backend, applies the change and
// writes the full snapshot back, so the last writer across processes wins.
type Store struct {
	kv      store.KV
	key     string
	apiBase string
	now     func() time.Time
	logger  *zap.Logger
	events  *Emitter

	mu          sync.Mutex
	seed        []Record
	lastWritten string

	watchMu     sync.Mutex
	cancelWatch context.CancelFunc
	watchDone   chan struct{}
}

// Option configures a Store.
type Option func(*Store)

// WithKey overrides the storage key.
func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// WithAPIBase sets the remote endpoint base reported by APIBaseURL.
func WithAPIBase(base string) Option {
	return func(s *Store) { s.apiBase = base }
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewStore creates a store over kv.
func NewStore(kv store.KV, opts ...Option) *Store {
	s := &Store{
		kv:     kv,
		key:    DefaultKey,
		now:    time.Now,
		logger: zap.NewNop(),
		events: NewEmitter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the storage key in use.
func (s *Store) Key() string { return s.key }

// Today returns the current local date as YYYY-MM-DD.
func (s *Store) Today() string { return LocalDate(s.now()) }

// List returns a copy of the current records.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Records, nil
}

// Create validates in, assigns an id and timestamps, and prepends the record.
func (s *Store) Create(ctx context.Context, in Input) (Record, error) {
	now := s.now()
	rec := Record{
		ID:     uuid.NewString(),
		Date:   in.Date,
		Name:   strings.TrimSpace(in.Name),
		Status: in.Status,
		Note:   in.Note,
	}
	if rec.Date == "" {
		rec.Date = LocalDate(now)
	}
	if rec.Status == "" {
		rec.Status = StatusPresent
	}
	rec.CreatedAt = At(now)
	rec.UpdatedAt = rec.CreatedAt

	if err := validateRecord(rec); err != nil {
		return Record{}, err
	}

	err := s.mutate(ctx, "create", func(snap *Snapshot) error {
		snap.Records = append([]Record{rec}, snap.Records...)
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	s.logger.Debug("record created", zap.String("id", rec.ID), zap.String("status", string(rec.Status)))
	return rec, nil
}

// Update merges p over the record with the given id. ID and CreatedAt are
// preserved and UpdatedAt always moves forward.
func (s *Store) Update(ctx context.Context, id string, p Patch) (Record, error) {
	var out Record
	err := s.mutate(ctx, "update", func(snap *Snapshot) error {
		idx := -1
		for i, r := range snap.Records {
			if r.ID == id {
				idx = i
				break
			}
		}
		if idx == -1 {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}

		cur := snap.Records[idx]
		next := p.apply(cur)
		next.ID = cur.ID
		next.CreatedAt = cur.CreatedAt
		next.UpdatedAt = At(s.now())
		if !next.UpdatedAt.After(cur.UpdatedAt) {
			next.UpdatedAt = At(cur.UpdatedAt.Time.Add(time.Millisecond))
		}
		if err := validateRecord(next); err != nil {
			return err
		}

		snap.Records[idx] = next
		out = next
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	s.logger.Debug("record updated", zap.String("id", id))
	return out, nil
}

// Delete removes the record with id. Unknown ids are not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.mutate(ctx, "delete", func(snap *Snapshot) error {
		kept := snap.Records[:0]
		for _, r := range snap.Records {
			if r.ID != id {
				kept = append(kept, r)
			}
		}
		snap.Records = kept
		return nil
	})
}

// ClearAll replaces the snapshot with an empty record list.
func (s *Store) ClearAll(ctx context.Context) error {
	err := s.mutate(ctx, "clear", func(snap *Snapshot) error {
		snap.Records = []Record{}
		return nil
	})
	if err == nil {
		s.logger.Info("all records cleared", zap.String("key", s.key))
	}
	return err
}

// Subscribe registers a listener called after every mutation, local or
// observed from another process once AttachCrossTabListener has run.
func (s *Store) Subscribe(fn func()) (unsubscribe func()) {
	return s.events.Subscribe(fn)
}

// AttachCrossTabListener starts relaying writes made by other processes
// sharing the backend to local subscribers. Calling it again while attached
// does nothing.
func (s *Store) AttachCrossTabListener(ctx context.Context) error {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if s.cancelWatch != nil {
		return nil
	}

	wctx, cancel := context.WithCancel(ctx)
	changes, err := s.kv.Watch(wctx, s.key)
	if err != nil {
		cancel()
		return fmt.Errorf("watch %s: %w", s.key, err)
	}
	done := make(chan struct{})
	s.cancelWatch = cancel
	s.watchDone = done

	go func() {
		defer close(done)
		for range changes {
			if s.foreignWrite(wctx) {
				metrics.Notification("remote")
				s.events.Emit()
			}
		}
	}()
	s.logger.Debug("cross-process listener attached", zap.String("key", s.key))
	return nil
}

// Close stops the cross-process listener and waits for it to exit. The
// backend stays open; its owner closes it.
func (s *Store) Close() error {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if s.cancelWatch == nil {
		return nil
	}
	s.cancelWatch()
	<-s.watchDone
	s.cancelWatch = nil
	s.watchDone = nil
	return nil
}

// mutate runs fn over the loaded snapshot, persists the result and notifies
// subscribers after the lock is released.
func (s *Store) mutate(ctx context.Context, op string, fn func(*Snapshot) error) error {
	s.mu.Lock()
	snap, err := s.load(ctx)
	if err == nil {
		err = fn(&snap)
	}
	if err == nil {
		err = s.save(ctx, snap)
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}

	metrics.Mutation(op)
	metrics.Notification("local")
	s.events.Emit()
	return nil
}

// load reads the snapshot. Absent or unreadable content yields the seed.
// Callers hold s.mu.
func (s *Store) load(ctx context.Context) (Snapshot, error) {
	raw, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}
	if ok {
		snap, err := decodeSnapshot(raw)
		if err == nil {
			return snap, nil
		}
		s.logger.Debug("stored snapshot unreadable, using seed", zap.String("key", s.key), zap.Error(err))
	}
	if s.seed == nil {
		s.seed = seedRecords(s.now())
	}
	return Snapshot{Records: append([]Record(nil), s.seed...)}, nil
}

// save persists snap. Callers hold s.mu.
func (s *Store) save(ctx context.Context, snap Snapshot) error {
	if snap.Records == nil {
		snap.Records = []Record{}
	}
	b, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, string(b)); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	s.lastWritten = string(b)
	s.seed = nil
	metrics.Records(len(snap.Records))
	return nil
}

// foreignWrite reports whether the stored value differs from what this
// store last wrote, i.e. another process changed it.
func (s *Store) foreignWrite(ctx context.Context) bool {
	raw, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("reading snapshot after change signal failed", zap.Error(err))
		}
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if ok && raw == s.lastWritten {
		return false
	}
	s.seed = nil
	return true
}

// decodeSnapshot accepts only an object whose records field is a list.
// Elements are decoded one by one so a single malformed entry never costs
// the rest of the list; entries that are not objects are dropped.
func decodeSnapshot(raw string) (Snapshot, error) {
	var doc struct {
		Records json.RawMessage `json:"records"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return Snapshot{}, err
	}
	trimmed := bytes.TrimSpace(doc.Records)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return Snapshot{}, fmt.Errorf("records is not a list")
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(trimmed, &elems); err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{Records: make([]Record, 0, len(elems))}
	for _, el := range elems {
		var r Record
		if err := json.Unmarshal(el, &r); err != nil {
			continue
		}
		snap.Records = append(snap.Records, r)
	}
	return snap, nil
}

// seedRecords is the default content shown before anything is saved.
func seedRecords(now time.Time) []Record {
	today := LocalDate(now)
	ts := At(now)
	return []Record{
		{ID: uuid.NewString(), Date: today, Name: "Alex Johnson", Status: StatusPresent, Note: "On time", CreatedAt: ts, UpdatedAt: ts},
		{ID: uuid.NewString(), Date: today, Name: "Jamie Rivera", Status: StatusLate, Note: "Traffic", CreatedAt: ts, UpdatedAt: ts},
	}
}
