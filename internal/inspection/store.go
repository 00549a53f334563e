package inspection

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/orderrisk/internal/model"
	"github.com/sells-group/orderrisk/internal/resilience"
)

// Snapshot sources reported to an Observer.
const (
	SourceCache      = "cache"
	SourceProvider   = "provider"
	SourceStaleCache = "stale_cache"
)

// ErrEmptyDataset is returned when the provider answers with zero records.
var ErrEmptyDataset = eris.New("inspection provider returned no records")

// Observer is notified about snapshot swaps and failed refreshes.
type Observer interface {
	SnapshotInstalled(s *Snapshot, source string)
	RefreshFailed(err error)
}

type nopObserver struct{}

func (nopObserver) SnapshotInstalled(*Snapshot, string) {}
func (nopObserver) RefreshFailed(error)                 {}

// StoreConfig configures a Store.
type StoreConfig struct {
	// MaxAge is the age past which a snapshot is refreshed. Default: 7 days.
	MaxAge   time.Duration
	Breaker  *resilience.CircuitBreaker
	Observer Observer
}

// Store owns the current inspection snapshot. Readers get either the old or
// the new snapshot in full; a refresh swaps the pointer and never edits a
// published snapshot.
type Store struct {
	provider Provider
	cache    Cache
	maxAge   time.Duration
	breaker  *resilience.CircuitBreaker
	observer Observer

	current   atomic.Pointer[Snapshot]
	refreshMu sync.Mutex

	nowFunc func() time.Time
}

// NewStore creates an empty Store. Call Load before serving requests.
func NewStore(p Provider, c Cache, cfg StoreConfig) *Store {
	if c == nil {
		c = NopCache{}
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 7 * 24 * time.Hour
	}
	if cfg.Breaker == nil {
		cfg.Breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{})
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}
	return &Store{
		provider: p,
		cache:    c,
		maxAge:   cfg.MaxAge,
		breaker:  cfg.Breaker,
		observer: cfg.Observer,
		nowFunc:  time.Now,
	}
}

// Load installs the initial snapshot: a fresh cached copy if there is one,
// otherwise a provider fetch, otherwise a stale cached copy. It returns a
// DataUnavailable error only when none of those produce data.
func (s *Store) Load(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	log := zap.L().With(zap.String("component", "inspection.store"))

	cached, err := s.cache.Load(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrCacheMiss):
		cached = nil
	default:
		log.Warn("cache load failed", zap.Error(err))
		cached = nil
	}

	if cached != nil && !cached.Stale(s.nowFunc(), s.maxAge) {
		s.install(cached, SourceCache)
		return nil
	}

	fetched, fetchErr := s.fetch(ctx)
	if fetchErr == nil {
		s.persist(ctx, fetched)
		s.install(fetched, SourceProvider)
		return nil
	}
	s.observer.RefreshFailed(fetchErr)

	if cached != nil {
		log.Warn("provider fetch failed, serving stale cache",
			zap.Error(fetchErr),
			zap.Time("fetched_at", cached.FetchedAt),
		)
		s.install(cached, SourceStaleCache)
		return nil
	}

	return model.Unavailable(fetchErr, "inspection dataset")
}

// Current returns the installed snapshot, or ErrDataUnavailable if none has
// ever been loaded.
func (s *Store) Current() (*Snapshot, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, eris.Wrap(model.ErrDataUnavailable, "no inspection snapshot loaded")
	}
	return snap, nil
}

// Refresh fetches a new snapshot when the current one is stale, or always
// when force is set. On failure the current snapshot stays in place.
func (s *Store) Refresh(ctx context.Context, force bool) (bool, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	if cur := s.current.Load(); cur != nil && !force && !cur.Stale(s.nowFunc(), s.maxAge) {
		return false, nil
	}

	snap, err := s.fetch(ctx)
	if err != nil {
		s.observer.RefreshFailed(err)
		return false, err
	}
	s.persist(ctx, snap)
	s.install(snap, SourceProvider)
	return true, nil
}

// DefaultRefreshInterval is used when RunRefresher gets a non-positive
// interval.
const DefaultRefreshInterval = time.Hour

// RunRefresher checks staleness every interval until ctx is done.
func (s *Store) RunRefresher(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refreshed, err := s.Refresh(ctx, false)
			if err != nil {
				zap.L().Warn("inspection refresh failed, keeping current snapshot",
					zap.Error(err),
					zap.String("breaker", s.breaker.State().String()),
				)
				continue
			}
			if refreshed {
				zap.L().Info("inspection snapshot refreshed")
			}
		}
	}
}

// Status describes the installed snapshot.
type Status struct {
	Loaded       bool      `json:"loaded"`
	SnapshotID   string    `json:"snapshot_id,omitempty"`
	FetchedAt    time.Time `json:"fetched_at,omitempty"`
	AgeHours     float64   `json:"age_hours"`
	Stale        bool      `json:"stale"`
	Records      int       `json:"records"`
	Restaurants  int       `json:"restaurants"`
	BreakerState string    `json:"breaker_state"`
}

// Status reports on the installed snapshot.
func (s *Store) Status() Status {
	st := Status{BreakerState: s.breaker.State().String()}
	snap := s.current.Load()
	if snap == nil {
		return st
	}
	now := s.nowFunc()
	st.Loaded = true
	st.SnapshotID = snap.ID.String()
	st.FetchedAt = snap.FetchedAt
	st.AgeHours = snap.Age(now).Hours()
	st.Stale = snap.Stale(now, s.maxAge)
	st.Records = len(snap.Records)
	st.Restaurants = snap.Restaurants()
	return st
}

func (s *Store) fetch(ctx context.Context) (*Snapshot, error) {
	records, err := resilience.ExecuteVal(ctx, s.breaker, func(ctx context.Context) ([]model.InspectionRecord, error) {
		records, err := s.provider.FetchAll(ctx)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			return nil, ErrEmptyDataset
		}
		return records, nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "fetch inspections")
	}
	return NewSnapshot(records, s.nowFunc()), nil
}

func (s *Store) persist(ctx context.Context, snap *Snapshot) {
	if err := s.cache.Save(ctx, snap); err != nil {
		zap.L().Warn("inspection cache save failed", zap.Error(err))
	}
}

func (s *Store) install(snap *Snapshot, source string) {
	s.current.Store(snap)
	s.observer.SnapshotInstalled(snap, source)
	zap.L().Info("inspection snapshot installed",
		zap.String("source", source),
		zap.String("snapshot_id", snap.ID.String()),
		zap.Int("records", len(snap.Records)),
		zap.Int("restaurants", snap.Restaurants()),
		zap.Time("fetched_at", snap.FetchedAt),
	)
}
