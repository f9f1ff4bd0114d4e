package journal

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openSQLite(t *testing.T) *SQLStore {
	t.Helper()
	s, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("mysql", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported driver")

	_, err = Open(DriverSQLite, "")
	require.Error(t, err)
}

func TestRecordAndRecent(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()
	at := time.UnixMilli(1_700_000_000_000)

	for i, e := range []Entry{
		{SessionID: "a", Deck: "intro.md", Slide: 0, Step: -1, Fragment: "#1", At: at},
		{SessionID: "a", Deck: "intro.md", Slide: 0, Step: 0, Fragment: "#1", At: at.Add(time.Second)},
		{SessionID: "b", Deck: "other.html", Slide: 2, Step: -1, Fragment: "#3", At: at.Add(2 * time.Second)},
		{SessionID: "a", Deck: "intro.md", Slide: 1, Step: -1, Fragment: "#2", Presenter: "alice", At: at.Add(3 * time.Second)},
	} {
		require.NoError(t, s.Record(ctx, e), "entry %d", i)
	}

	all, err := s.Recent(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "#2", all[0].Fragment, "newest first")
	assert.Equal(t, "alice", all[0].Presenter)
	assert.Equal(t, at.Add(3*time.Second).UnixMilli(), all[0].At.UnixMilli())

	intro, err := s.Recent(ctx, "intro.md", 2)
	require.NoError(t, err)
	require.Len(t, intro, 2)
	assert.Equal(t, 1, intro[0].Slide)
	assert.Equal(t, 0, intro[1].Step)
	assert.Greater(t, intro[0].ID, intro[1].ID)
}

func TestRecordDefaultsTimestamp(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()
	before := time.Now().Add(-time.Second)

	require.NoError(t, s.Record(ctx, Entry{SessionID: "a", Deck: "d", Step: -1, Fragment: "#1"}))

	got, err := s.Recent(ctx, "d", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].At.After(before))
}

func TestVisits(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()

	record := func(slide, step int, entered bool) {
		require.NoError(t, s.Record(ctx, Entry{SessionID: "s", Deck: "d", Slide: slide, Step: step, Entered: entered}))
	}
	record(0, -1, true)
	record(0, 0, false)
	record(0, -1, false) // stepped back, still on slide 0
	record(1, -1, true)
	record(0, -1, true)
	record(2, -1, true)
	record(2, 1, false)

	visits, err := s.Visits(ctx, "d")
	require.NoError(t, err)
	assert.Equal(t, []Visit{{0, 2}, {1, 1}, {2, 1}}, visits)

	none, err := s.Visits(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	s, err := Open(DriverSQLite, path)
	require.NoError(t, err)
	require.NoError(t, s.Record(context.Background(), Entry{Deck: "d", Step: -1}))
	require.NoError(t, s.Close())

	s, err = Open(DriverSQLite, path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Recent(context.Background(), "d", 0)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestRebind(t *testing.T) {
	pg := &SQLStore{driver: DriverPostgres}
	lite := &SQLStore{driver: DriverSQLite}
	q := `SELECT a FROM t WHERE b = ? AND c = ? LIMIT ?`

	assert.Equal(t, `SELECT a FROM t WHERE b = $1 AND c = $2 LIMIT $3`, pg.rebind(q))
	assert.Equal(t, q, lite.rebind(q))
}

func TestPostgres(t *testing.T) {
	dsn := os.Getenv("TINKERDECK_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TINKERDECK_TEST_POSTGRES_DSN not set")
	}
	s, err := Open(DriverPostgres, dsn)
	require.NoError(t, err)
	defer s.Close()

	deck := "pg-" + time.Now().Format("150405.000000")
	ctx := context.Background()
	require.NoError(t, s.Record(ctx, Entry{SessionID: "s", Deck: deck, Slide: 3, Step: -1, Fragment: "#4", Entered: true}))

	got, err := s.Recent(ctx, deck, 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "#4", got[0].Fragment)
	assert.True(t, got[0].Entered)

	visits, err := s.Visits(ctx, deck)
	require.NoError(t, err)
	assert.Equal(t, []Visit{{3, 1}}, visits)
}

// memStore is an in-memory Store used to exercise the Recorder.
type memStore struct {
	mu      sync.Mutex
	entries []Entry
	block   chan struct{}
	fail    bool
}

func (m *memStore) Record(ctx context.Context, e Entry) error {
	if m.block != nil {
		<-m.block
	}
	if m.fail {
		return errors.New("boom")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *memStore) Recent(ctx context.Context, deck string, limit int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...), nil
}

func (m *memStore) Visits(ctx context.Context, deck string) ([]Visit, error) { return nil, nil }
func (m *memStore) Close() error                                             { return nil }

func TestRecorderDrainsOnClose(t *testing.T) {
	store := &memStore{}
	r := NewRecorder(store, 100, nil)

	for i := 0; i < 50; i++ {
		r.Record(Entry{Deck: "d", Slide: i})
	}
	r.Close()
	r.Close()

	assert.Len(t, store.entries, 50)
	assert.Equal(t, int64(50), r.Written())
	assert.Zero(t, r.Dropped())
	for i, e := range store.entries {
		assert.Equal(t, i, e.Slide, "order preserved")
		assert.False(t, e.At.IsZero())
	}

	r.Record(Entry{Deck: "late"})
	assert.Equal(t, int64(1), r.Dropped())
}

func TestRecorderDropsWhenFull(t *testing.T) {
	store := &memStore{block: make(chan struct{})}
	r := NewRecorder(store, 2, nil)

	// One entry may be taken by the worker; the queue holds two more.
	for i := 0; i < 10; i++ {
		r.Record(Entry{Deck: "d"})
	}
	assert.GreaterOrEqual(t, r.Dropped(), int64(7))

	close(store.block)
	r.Close()
	assert.Equal(t, int64(10), r.Written()+r.Dropped())
}

func TestRecorderCountsFailures(t *testing.T) {
	store := &memStore{fail: true}
	r := NewRecorder(store, 4, nil)
	r.Record(Entry{Deck: "d"})
	r.Close()

	assert.Zero(t, r.Written())
	assert.Empty(t, store.entries)
}

func TestSQLStoreWithRecorder(t *testing.T) {
	s := openSQLite(t)
	r := NewRecorder(s, 16, nil)
	for i := 0; i < 5; i++ {
		r.Record(Entry{SessionID: "x", Deck: "d", Slide: i, Step: -1, Entered: true})
	}
	r.Close()

	visits, err := s.Visits(context.Background(), "d")
	require.NoError(t, err)
	assert.Len(t, visits, 5)
}
