package attendance

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"attendance-tracker/internal/store"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 10, 19, 9, 30, 0, 0, time.Local)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestStore(t *testing.T, opts ...Option) (*Store, *store.Memory, *fakeClock) {
	t.Helper()
	kv := store.NewMemory()
	clock := newFakeClock()
	s := NewStore(kv, append([]Option{WithClock(clock.Now)}, opts...)...)
	t.Cleanup(func() {
		s.Close()
		kv.Close()
	})
	return s, kv, clock
}

func rawSnapshot(t *testing.T, kv store.KV) (string, bool) {
	t.Helper()
	v, ok, err := kv.Get(context.Background(), DefaultKey)
	require.NoError(t, err)
	return v, ok
}

func TestListSeedsWhenStorageEmpty(t *testing.T) {
	s, kv, _ := newTestStore(t)
	ctx := context.Background()

	recs, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "Alex Johnson", recs[0].Name)
	assert.Equal(t, StatusPresent, recs[0].Status)
	assert.Equal(t, "On time", recs[0].Note)
	assert.Equal(t, "Jamie Rivera", recs[1].Name)
	assert.Equal(t, StatusLate, recs[1].Status)
	assert.Equal(t, "Traffic", recs[1].Note)
	assert.Equal(t, "2026-10-19", recs[0].Date)

	_, ok := rawSnapshot(t, kv)
	assert.False(t, ok, "seed must not be persisted by a read")

	again, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, recs[0].ID, again[0].ID, "seed ids stay stable until persisted")
}

func TestListSeedsOnCorruptStorage(t *testing.T) {
	for name, raw := range map[string]string{
		"not json":         "{{{",
		"top-level list":   `[]`,
		"missing records":  `{}`,
		"null records":     `{"records":null}`,
		"records a number": `{"records":5}`,
		"records a string": `{"records":"[]"}`,
	} {
		t.Run(name, func(t *testing.T) {
			s, kv, _ := newTestStore(t)
			require.NoError(t, kv.Set(context.Background(), DefaultKey, raw))

			recs, err := s.List(context.Background())
			require.NoError(t, err)
			require.Len(t, recs, 2)
			assert.Equal(t, "Alex Johnson", recs[0].Name)
		})
	}
}

func TestListKeepsRecordsWithLooseFields(t *testing.T) {
	s, kv, clock := newTestStore(t)
	ctx := context.Background()
	stored := `{"records":[
		{"id":"r1","date":"2026-10-01","name":"Kept Person","status":"absent","note":"","createdAt":"2026-10-01","updatedAt":""},
		{"id":"r2","date":"2026-10-02","name":"Numbered","status":"late","note":42,"createdAt":"2026-10-02T08:00:00Z","updatedAt":null},
		7,
		null
	]}`
	require.NoError(t, kv.Set(ctx, DefaultKey, stored))

	recs, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2, "malformed entries are dropped, the rest survive")
	assert.Equal(t, "Kept Person", recs[0].Name)
	assert.Equal(t, "2026-10-01", recs[0].CreatedAt.String())
	assert.Equal(t, "", recs[0].UpdatedAt.String())
	assert.Equal(t, "42", recs[1].Note)
	assert.True(t, recs[1].CreatedAt.Time.Equal(time.Date(2026, 10, 2, 8, 0, 0, 0, time.UTC)))

	_, err = s.Create(ctx, Input{Name: "New"})
	require.NoError(t, err)
	recs, err = s.List(ctx)
	require.NoError(t, err)
	names := make([]string, 0, len(recs))
	for _, r := range recs {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"New", "Kept Person", "Numbered"}, names)

	raw, _ := rawSnapshot(t, kv)
	var doc struct {
		Records []map[string]any `json:"records"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	assert.Equal(t, "2026-10-01", doc.Records[1]["createdAt"], "unparsed timestamps are written back as stored")
	assert.Equal(t, "", doc.Records[1]["updatedAt"])

	clock.Advance(time.Minute)
	note := "back"
	got, err := s.Update(ctx, "r1", Patch{Note: &note})
	require.NoError(t, err)
	assert.Equal(t, "2026-10-01", got.CreatedAt.String())
	assert.True(t, got.UpdatedAt.Time.Equal(clock.Now()))
}

func TestListReturnsCopy(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()
	_, err := s.Create(ctx, Input{Name: "Taylor"})
	require.NoError(t, err)

	recs, err := s.List(ctx)
	require.NoError(t, err)
	recs[0].Name = "mutated"

	again, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Taylor", again[0].Name)
}

func TestCreate(t *testing.T) {
	s, _, clock := newTestStore(t)
	ctx := context.Background()

	before, err := s.List(ctx)
	require.NoError(t, err)

	rec, err := s.Create(ctx, Input{Date: "2026-10-18", Name: "  Taylor Smith ", Status: StatusAbsent, Note: "Doctor appointment"})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "Taylor Smith", rec.Name)
	assert.Equal(t, "2026-10-18", rec.Date)
	assert.Equal(t, StatusAbsent, rec.Status)
	assert.Equal(t, "Doctor appointment", rec.Note)
	assert.True(t, rec.CreatedAt.Time.Equal(clock.Now()))
	assert.Equal(t, rec.CreatedAt, rec.UpdatedAt)

	after, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, after, len(before)+1)
	assert.Equal(t, rec.ID, after[0].ID, "new records are prepended")
	for _, r := range before {
		assert.NotEqual(t, rec.ID, r.ID)
	}
}

func TestCreateDefaults(t *testing.T) {
	s, _, _ := newTestStore(t)

	rec, err := s.Create(context.Background(), Input{Name: "Sam"})
	require.NoError(t, err)
	assert.Equal(t, "2026-10-19", rec.Date)
	assert.Equal(t, StatusPresent, rec.Status)
	assert.Equal(t, "", rec.Note)
}

func TestCreateIDsAreUnique(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		rec, err := s.Create(ctx, Input{Name: "Person"})
		require.NoError(t, err)
		require.False(t, seen[rec.ID])
		seen[rec.ID] = true
	}
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name  string
		in    Input
		field string
	}{
		{"empty name", Input{Name: "", Status: StatusPresent}, "name"},
		{"blank name", Input{Name: "   ", Status: StatusPresent}, "name"},
		{"invalid status", Input{Name: "X", Status: "invalid"}, "status"},
		{"bad date", Input{Name: "X", Date: "19/10/2026"}, "date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, kv, _ := newTestStore(t)
			ctx := context.Background()
			_, err := s.Create(ctx, Input{Name: "Existing"})
			require.NoError(t, err)
			rawBefore, _ := rawSnapshot(t, kv)

			_, err = s.Create(ctx, tt.in)
			require.ErrorIs(t, err, ErrValidation)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)

			rawAfter, _ := rawSnapshot(t, kv)
			assert.Equal(t, rawBefore, rawAfter)
		})
	}
}

func TestUpdate(t *testing.T) {
	s, _, clock := newTestStore(t)
	ctx := context.Background()

	orig, err := s.Create(ctx, Input{Name: "Alex", Note: "ok"})
	require.NoError(t, err)

	clock.Advance(time.Minute)
	name := "  Alexandra "
	late := StatusLate
	got, err := s.Update(ctx, orig.ID, Patch{Name: &name, Status: &late})
	require.NoError(t, err)

	assert.Equal(t, orig.ID, got.ID)
	assert.True(t, orig.CreatedAt.Equal(got.CreatedAt))
	assert.True(t, got.UpdatedAt.After(orig.UpdatedAt))
	assert.Equal(t, "Alexandra", got.Name)
	assert.Equal(t, StatusLate, got.Status)
	assert.Equal(t, "ok", got.Note, "unpatched fields are kept")

	recs, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, got.Name, recs[0].Name)
}

func TestUpdateAdvancesUpdatedAtWithFrozenClock(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	rec, err := s.Create(ctx, Input{Name: "Alex"})
	require.NoError(t, err)

	prev := rec.UpdatedAt
	for i := 0; i < 3; i++ {
		rec, err = s.Update(ctx, rec.ID, Patch{})
		require.NoError(t, err)
		assert.True(t, rec.UpdatedAt.After(prev))
		prev = rec.UpdatedAt
	}
}

func TestUpdateNotFound(t *testing.T) {
	s, kv, _ := newTestStore(t)
	ctx := context.Background()
	_, err := s.Create(ctx, Input{Name: "Alex"})
	require.NoError(t, err)
	rawBefore, _ := rawSnapshot(t, kv)

	name := "Nobody"
	_, err = s.Update(ctx, "missing-id", Patch{Name: &name})
	require.ErrorIs(t, err, ErrNotFound)

	rawAfter, _ := rawSnapshot(t, kv)
	assert.Equal(t, rawBefore, rawAfter)
}

func TestUpdateValidation(t *testing.T) {
	s, kv, _ := newTestStore(t)
	ctx := context.Background()
	rec, err := s.Create(ctx, Input{Name: "Alex"})
	require.NoError(t, err)
	rawBefore, _ := rawSnapshot(t, kv)

	blank := " "
	_, err = s.Update(ctx, rec.ID, Patch{Name: &blank})
	assert.ErrorIs(t, err, ErrValidation)

	bad := Status("excused")
	_, err = s.Update(ctx, rec.ID, Patch{Status: &bad})
	assert.ErrorIs(t, err, ErrValidation)

	rawAfter, _ := rawSnapshot(t, kv)
	assert.Equal(t, rawBefore, rawAfter)
}

func TestUpdateSeedRecord(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	seed, err := s.List(ctx)
	require.NoError(t, err)

	note := "Bus"
	got, err := s.Update(ctx, seed[1].ID, Patch{Note: &note})
	require.NoError(t, err)
	assert.Equal(t, "Bus", got.Note)

	recs, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, seed[0].ID, recs[0].ID)
}

func TestDeleteIsIdempotent(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()
	a, err := s.Create(ctx, Input{Name: "A"})
	require.NoError(t, err)
	_, err = s.Create(ctx, Input{Name: "B"})
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, a.ID))
	once, err := s.List(ctx)
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, a.ID))
	twice, err := s.List(ctx)
	require.NoError(t, err)

	assert.Empty(t, cmp.Diff(once, twice))
	for _, r := range twice {
		assert.NotEqual(t, a.ID, r.ID)
	}
}

func TestClearAll(t *testing.T) {
	s, kv, _ := newTestStore(t)
	ctx := context.Background()
	_, err := s.Create(ctx, Input{Name: "A"})
	require.NoError(t, err)

	require.NoError(t, s.ClearAll(ctx))

	recs, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs, "an empty persisted list is not replaced by the seed")

	raw, ok := rawSnapshot(t, kv)
	require.True(t, ok)
	assert.JSONEq(t, `{"records":[]}`, raw)
}

func TestSnapshotRoundTrip(t *testing.T) {
	s, kv, clock := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.ClearAll(ctx))

	var want []Record
	for _, name := range []string{"Alex", "Jamie", "Sam"} {
		clock.Advance(time.Second)
		rec, err := s.Create(ctx, Input{Name: name, Note: name + " note"})
		require.NoError(t, err)
		want = append([]Record{rec}, want...)
	}

	raw, _ := rawSnapshot(t, kv)
	got, err := decodeSnapshot(raw)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got.Records); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	assert.Contains(t, doc, "records")
}

func TestSubscribeOncePerMutation(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	var calls atomic.Int32
	unsubscribe := s.Subscribe(func() { calls.Add(1) })

	rec, err := s.Create(ctx, Input{Name: "A"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, calls.Load())

	_, err = s.Create(ctx, Input{Name: ""})
	require.Error(t, err)
	assert.EqualValues(t, 1, calls.Load(), "failed mutations do not notify")

	note := "n"
	_, err = s.Update(ctx, rec.ID, Patch{Note: &note})
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())

	require.NoError(t, s.Delete(ctx, rec.ID))
	assert.EqualValues(t, 3, calls.Load())

	require.NoError(t, s.ClearAll(ctx))
	assert.EqualValues(t, 4, calls.Load())

	unsubscribe()
	unsubscribe()
	_, err = s.Create(ctx, Input{Name: "B"})
	require.NoError(t, err)
	assert.EqualValues(t, 4, calls.Load())
}

func TestSubscriberMayReadStore(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	var seen int
	s.Subscribe(func() {
		recs, err := s.List(ctx)
		require.NoError(t, err)
		seen = len(recs)
	})

	_, err := s.Create(ctx, Input{Name: "A"})
	require.NoError(t, err)
	assert.Equal(t, 3, seen)
}

func TestCrossTabListener(t *testing.T) {
	defer goleak.VerifyNone(t)

	kv := store.NewMemory()
	defer kv.Close()
	tabA := NewStore(kv)
	tabB := NewStore(kv)
	defer tabA.Close()
	defer tabB.Close()

	ctx := context.Background()
	require.NoError(t, tabB.AttachCrossTabListener(ctx))
	require.NoError(t, tabB.AttachCrossTabListener(ctx), "attaching twice is a no-op")

	notified := make(chan struct{}, 10)
	tabB.Subscribe(func() { notified <- struct{}{} })

	_, err := tabA.Create(ctx, Input{Name: "From A"})
	require.NoError(t, err)

	select {
	case <-notified:
	case <-time.After(2 * time.Second):
		t.Fatal("tab B was not notified of tab A's write")
	}
	select {
	case <-notified:
		t.Fatal("tab B was notified more than once")
	case <-time.After(100 * time.Millisecond):
	}

	recs, err := tabB.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, "From A", recs[0].Name)

	_, err = tabB.Create(ctx, Input{Name: "From B"})
	require.NoError(t, err)
	<-notified
	select {
	case <-notified:
		t.Fatal("own writes must not be echoed back")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestCloseWithoutListener(t *testing.T) {
	s, _, _ := newTestStore(t)
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}
