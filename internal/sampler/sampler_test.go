package sampler

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/presence-tracker/internal/kvstore"
	"github.com/p-blackswan/presence-tracker/internal/presence"
)

type fakeSource struct {
	mu       sync.Mutex
	entities []presence.Entity
	err      error
	calls    int
	block    chan struct{}
}

func (f *fakeSource) Snapshot(ctx context.Context) ([]presence.Entity, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	return f.entities, f.err
}

func newTestKV(t *testing.T) *kvstore.Store {
	t.Helper()
	kv, err := kvstore.New(filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	return kv
}

func fixedNow(s *Sampler, at time.Time) {
	s.now = func() time.Time { return at }
}

func TestCycle_MergesAndPersists(t *testing.T) {
	kv := newTestKV(t)
	src := &fakeSource{entities: []presence.Entity{{ID: "u1", Name: "Ann", Status: presence.StatusActive}}}

	s := New(src, kv, presence.DefaultPreferences(), nil, zerolog.Nop())
	fixedNow(s, time.Date(2024, 1, 1, 10, 15, 0, 0, time.UTC))

	s.Cycle(context.Background())

	s.View(func(store *presence.Store, _ presence.Preferences) {
		rec := store.Get("u1")
		require.NotNil(t, rec)
		assert.Equal(t, 1, rec.Hourly["2024-01-01T10:00:00.000Z"].Total)
	})

	// A fresh sampler over the same kv store sees the persisted state.
	s2 := New(src, kv, presence.DefaultPreferences(), nil, zerolog.Nop())
	s2.View(func(store *presence.Store, _ presence.Preferences) {
		require.NotNil(t, store.Get("u1"))
		assert.Equal(t, "Ann", store.Get("u1").Name)
	})
}

func TestCycle_SnapshotErrorLeavesStoreUntouched(t *testing.T) {
	kv := newTestKV(t)
	src := &fakeSource{entities: []presence.Entity{{ID: "u1", Status: presence.StatusActive}}}
	s := New(src, kv, presence.DefaultPreferences(), nil, zerolog.Nop())
	fixedNow(s, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC))

	s.Cycle(context.Background())

	src.mu.Lock()
	src.err = errors.New("slack down")
	src.mu.Unlock()
	s.Cycle(context.Background())

	s.View(func(store *presence.Store, _ presence.Preferences) {
		assert.Equal(t, 1, store.Get("u1").Hourly["2024-01-01T10:00:00.000Z"].Total)
	})
}

func TestCycle_OverlapSkipped(t *testing.T) {
	block := make(chan struct{})
	src := &fakeSource{
		entities: []presence.Entity{{ID: "u1", Status: presence.StatusActive}},
		block:    block,
	}
	s := New(src, nil, presence.DefaultPreferences(), nil, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		s.Cycle(context.Background())
		close(done)
	}()

	// Wait until the first cycle is inside Snapshot, then tick again.
	require.Eventually(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return src.calls == 1
	}, time.Second, time.Millisecond)

	s.Cycle(context.Background()) // skipped
	close(block)
	<-done

	src.mu.Lock()
	defer src.mu.Unlock()
	assert.Equal(t, 1, src.calls)
}

func TestCycle_PruneBoundsBuckets(t *testing.T) {
	src := &fakeSource{entities: []presence.Entity{{ID: "u1", Status: presence.StatusActive}}}
	prefs := presence.DefaultPreferences()
	prefs.HorizonDays = 3
	s := New(src, nil, prefs, nil, zerolog.Nop())

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for h := 0; h < 10*24; h++ {
		fixedNow(s, start.Add(time.Duration(h)*time.Hour))
		s.Cycle(context.Background())
	}

	s.View(func(store *presence.Store, p presence.Preferences) {
		assert.LessOrEqual(t, len(store.Get("u1").Hourly), p.HorizonDays*24)
	})
}

func TestSetFilter_PersistsAcrossRestart(t *testing.T) {
	kv := newTestKV(t)
	src := &fakeSource{}

	s := New(src, kv, presence.DefaultPreferences(), nil, zerolog.Nop())
	require.NoError(t, s.SetFilter(context.Background(), presence.FilterVacation))

	s2 := New(src, kv, presence.DefaultPreferences(), nil, zerolog.Nop())
	assert.Equal(t, presence.FilterVacation, s2.Prefs().Filter)
	// Non-filter fields still come from defaults.
	assert.Equal(t, 10, s2.Prefs().HorizonDays)
}

func TestSetFilter_RejectsUnknown(t *testing.T) {
	s := New(&fakeSource{}, nil, presence.DefaultPreferences(), nil, zerolog.Nop())
	assert.Error(t, s.SetFilter(context.Background(), presence.Filter("busy")))
}

func TestClear_EmptiesStoreAndPersistence(t *testing.T) {
	kv := newTestKV(t)
	src := &fakeSource{entities: []presence.Entity{{ID: "u1", Status: presence.StatusActive}}}
	s := New(src, kv, presence.DefaultPreferences(), nil, zerolog.Nop())
	s.Cycle(context.Background())

	require.NoError(t, s.Clear(context.Background()))

	s.View(func(store *presence.Store, _ presence.Preferences) {
		assert.Zero(t, store.Len())
	})
	s2 := New(src, kv, presence.DefaultPreferences(), nil, zerolog.Nop())
	s2.View(func(store *presence.Store, _ presence.Preferences) {
		assert.Zero(t, store.Len())
	})

	// Clearing an already empty store is fine.
	assert.NoError(t, s.Clear(context.Background()))
}

func TestExport_TimestampedFilename(t *testing.T) {
	s := New(&fakeSource{}, nil, presence.DefaultPreferences(), nil, zerolog.Nop())
	fixedNow(s, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))

	name, data, err := s.Export()
	require.NoError(t, err)
	assert.Equal(t, "presence-export-20240102T030405Z.json", name)
	assert.JSONEq(t, "{}", string(data))
}

func TestNew_CorruptPersistedStoreFallsBackEmpty(t *testing.T) {
	kv := newTestKV(t)
	require.NoError(t, kv.Set(context.Background(), kvstore.KeyPresence, "not-a-store"))

	s := New(&fakeSource{}, kv, presence.DefaultPreferences(), nil, zerolog.Nop())
	s.View(func(store *presence.Store, _ presence.Preferences) {
		assert.Zero(t, store.Len())
	})
}
