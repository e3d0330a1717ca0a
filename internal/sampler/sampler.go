// Package sampler runs the periodic sample-merge-prune-persist cycle and
// owns the in-memory presence store. All mutation of the store happens
// here; the API reads through View so display queries always see a
// consistent snapshot between cycles.
package sampler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/presence-tracker/internal/kvstore"
	"github.com/p-blackswan/presence-tracker/internal/metrics"
	"github.com/p-blackswan/presence-tracker/internal/presence"
	"github.com/p-blackswan/presence-tracker/internal/snapshot"
)

// Sampler drives the sampling cycle.
type Sampler struct {
	source  snapshot.Source
	kv      *kvstore.Store
	logger  zerolog.Logger
	metrics *metrics.Metrics

	mu    sync.RWMutex
	store *presence.Store
	prefs presence.Preferences

	// inFlight serializes cycles: a tick that fires while the previous
	// cycle is still persisting is skipped, not queued.
	inFlight atomic.Bool

	now func() time.Time
}

// New creates a sampler. Prior state is loaded from the kv store; an
// absent or unreadable value falls back to an empty store and the given
// default preferences.
func New(source snapshot.Source, kv *kvstore.Store, defaults presence.Preferences, m *metrics.Metrics, logger zerolog.Logger) *Sampler {
	s := &Sampler{
		source:  source,
		kv:      kv,
		logger:  logger.With().Str("component", "sampler").Logger(),
		metrics: m,
		store:   presence.NewStore(),
		prefs:   defaults,
		now:     time.Now,
	}

	ctx := context.Background()
	if kv != nil {
		loaded := presence.NewStore()
		if kv.GetInto(ctx, kvstore.KeyPresence, loaded) {
			s.store = loaded
		}
		var stored presence.Preferences
		if kv.GetInto(ctx, kvstore.KeyPrefs, &stored) {
			s.prefs = presence.MergePrefs(defaults, stored)
		}
	}

	s.logger.Info().
		Int("records", s.store.Len()).
		Dur("interval", s.prefs.SampleInterval).
		Int("horizon_days", s.prefs.HorizonDays).
		Msg("sampler initialized")
	return s
}

// Run ticks on the configured interval until ctx is cancelled. The final
// store state is persisted on the way out.
func (s *Sampler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Prefs().SampleInterval)
	defer ticker.Stop()

	// First sample without waiting a full interval.
	s.Cycle(ctx)

	for {
		select {
		case <-ctx.Done():
			if err := s.persist(context.Background()); err != nil {
				s.logger.Error().Err(err).Msg("final persist failed")
			}
			s.logger.Info().Msg("sampler stopped")
			return
		case <-ticker.C:
			s.Cycle(ctx)
		}
	}
}

// Cycle performs one snapshot → merge → prune → persist step. Overlapping
// invocations are skipped. A failed cycle contributes nothing; the next
// one recovers.
func (s *Sampler) Cycle(ctx context.Context) {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.logger.Warn().Msg("previous cycle still running, skipping tick")
		if s.metrics != nil {
			s.metrics.CyclesSkipped.Inc()
		}
		return
	}
	defer s.inFlight.Store(false)

	started := s.now()
	entities, err := s.source.Snapshot(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("snapshot failed, skipping cycle")
		s.recordCycle("snapshot_error", started)
		return
	}

	now := s.now()
	s.mu.Lock()
	merged := presence.Merge(s.store, entities, now)
	pruned := presence.Prune(s.store, s.prefs.HorizonDays, now)
	records := s.store.Len()
	s.mu.Unlock()

	if err := s.persist(ctx); err != nil {
		s.logger.Error().Err(err).Msg("persist failed, state kept in memory")
		s.recordCycle("persist_error", started)
		return
	}

	if s.metrics != nil {
		for _, e := range entities {
			s.metrics.RecordSample(string(presence.NormalizeStatus(string(e.Status))))
		}
		s.metrics.BucketsPruned.Add(float64(pruned))
		s.metrics.RecordsTracked.Set(float64(records))
	}
	s.recordCycle("ok", started)

	s.logger.Debug().
		Int("merged", merged).
		Int("pruned", pruned).
		Int("records", records).
		Msg("cycle complete")
}

func (s *Sampler) recordCycle(result string, started time.Time) {
	if s.metrics != nil {
		s.metrics.RecordCycle(result, s.now().Sub(started).Seconds())
	}
}

func (s *Sampler) persist(ctx context.Context) error {
	if s.kv == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.kv.Set(ctx, kvstore.KeyPresence, s.store)
}

// SetClock overrides the time source (for testing).
func (s *Sampler) SetClock(now func() time.Time) {
	s.now = now
}

// View runs fn with read access to the store. fn must not retain the
// store or mutate it.
func (s *Sampler) View(fn func(store *presence.Store, prefs presence.Preferences)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.store, s.prefs)
}

// Prefs returns the current preferences.
func (s *Sampler) Prefs() presence.Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs
}

// SetFilter updates the display filter and persists preferences.
func (s *Sampler) SetFilter(ctx context.Context, f presence.Filter) error {
	if !presence.ValidFilter(f) {
		return fmt.Errorf("unknown filter %q", f)
	}
	s.mu.Lock()
	s.prefs.Filter = f
	prefs := s.prefs
	s.mu.Unlock()

	if s.kv == nil {
		return nil
	}
	return s.kv.Set(ctx, kvstore.KeyPrefs, prefs)
}

// Clear discards all presence history: the persisted key is deleted and
// the in-memory store replaced with an empty one, immediately. Safe to
// call on an already empty store.
func (s *Sampler) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.store = presence.NewStore()
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RecordsTracked.Set(0)
	}

	if s.kv == nil {
		return nil
	}
	if err := s.kv.Delete(ctx, kvstore.KeyPresence); err != nil {
		return fmt.Errorf("clearing persisted store: %w", err)
	}
	s.logger.Info().Msg("presence store cleared")
	return nil
}

// Export serializes the full store and returns it with a filename carrying
// a sortable UTC timestamp. An empty store exports as an empty document.
func (s *Sampler) Export() (string, []byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := json.MarshalIndent(s.store, "", "  ")
	if err != nil {
		return "", nil, fmt.Errorf("marshaling store: %w", err)
	}
	name := fmt.Sprintf("presence-export-%s.json", s.now().UTC().Format("20060102T150405Z"))
	return name, data, nil
}
