package main

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/orderrisk/internal/analytics"
	"github.com/sells-group/orderrisk/internal/config"
	"github.com/sells-group/orderrisk/internal/fetcher"
	"github.com/sells-group/orderrisk/internal/inspection"
	"github.com/sells-group/orderrisk/internal/matcher"
	"github.com/sells-group/orderrisk/internal/metrics"
	"github.com/sells-group/orderrisk/internal/model"
	"github.com/sells-group/orderrisk/internal/orders"
	"github.com/sells-group/orderrisk/internal/resilience"
)

// appEnv holds everything a command needs once the datasets are loaded.
type appEnv struct {
	Orders  *model.OrderSet
	Matcher *matcher.Matcher
	Table   matcher.Table
	Store   *inspection.Store
	Metrics *metrics.Registry

	cached  atomic.Pointer[cachedEngine]
	closers []func()
}

type cachedEngine struct {
	snapshotID uuid.UUID
	engine     *analytics.Engine
}

// Close releases cache connections.
func (e *appEnv) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

// Engine returns an analytics engine over the current inspection snapshot,
// rebuilding it only when the snapshot has been swapped.
func (e *appEnv) Engine() (*analytics.Engine, error) {
	if e.Orders == nil {
		return nil, eris.Wrap(model.ErrDataUnavailable, "orders not loaded")
	}
	snap, err := e.Store.Current()
	if err != nil {
		return nil, err
	}
	if c := e.cached.Load(); c != nil && c.snapshotID == snap.ID {
		return c.engine, nil
	}
	eng := analytics.New(e.Orders, e.Table, snap.Index)
	e.cached.Store(&cachedEngine{snapshotID: snap.ID, engine: eng})
	return eng, nil
}

// initEnv loads orders and the mapping concurrently, then the inspection
// snapshot. An inspection failure is logged and left for the refresher; the
// query surface reports it as data unavailable.
func initEnv(ctx context.Context) (*appEnv, error) {
	env := &appEnv{Metrics: metrics.NewRegistry()}

	httpFetcher, opener := newFetchers()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		set, err := orders.Load(gctx, opener, cfg.Orders.Source)
		if err != nil {
			return err
		}
		env.Orders = set
		return nil
	})
	g.Go(func() error {
		m, err := matcher.LoadFile(cfg.Mapping.Path)
		if err != nil {
			return err
		}
		env.Matcher = m
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	env.Metrics.OrdersLoaded.Set(float64(env.Orders.Len()))
	env.Table = env.Matcher.BuildTable(env.Orders.Orders)

	cache, closeCache, err := openCache(ctx, cfg.Cache)
	if err != nil {
		return nil, err
	}
	env.closers = append(env.closers, closeCache)

	soda := inspection.SODAConfig{
		BaseURL:    cfg.Inspections.BaseURL,
		AppToken:   cfg.Inspections.AppToken,
		BatchSize:  cfg.Inspections.BatchSize,
		MaxRecords: cfg.Inspections.MaxRecords,
	}
	if cfg.Inspections.MappedOnly {
		soda.CAMIS = env.Matcher.CAMISes()
	}

	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold: cfg.Inspections.BreakerThreshold,
		ResetTimeout:     time.Duration(cfg.Inspections.BreakerResetMins) * time.Minute,
		OnStateChange:    env.Metrics.BreakerChanged,
	})
	env.Store = inspection.NewStore(
		inspection.NewSODAClient(httpFetcher, soda),
		cache,
		inspection.StoreConfig{
			MaxAge:   time.Duration(cfg.Inspections.MaxAgeDays) * 24 * time.Hour,
			Breaker:  breaker,
			Observer: env.Metrics,
		},
	)
	if err := env.Store.Load(ctx); err != nil {
		zap.L().Error("no inspection snapshot available", zap.Error(err))
	}

	zap.L().Info("environment ready",
		zap.Int("orders", env.Orders.Len()),
		zap.Int("resolved_names", len(env.Table)),
		zap.Bool("inspections_loaded", env.Store.Status().Loaded),
	)
	return env, nil
}

// newFetchers builds the rate-limited HTTP fetcher shared by the order
// download and the inspection provider, plus an Opener over it.
func newFetchers() (*fetcher.HTTPFetcher, fetcher.Opener) {
	httpFetcher := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		Timeout:           time.Duration(cfg.Inspections.TimeoutSecs) * time.Second,
		RequestsPerSecond: cfg.Inspections.RequestsPerSecond,
		Retry: resilience.RetryConfig{
			MaxAttempts:    cfg.Inspections.MaxRetries,
			InitialBackoff: time.Second,
			MaxBackoff:     30 * time.Second,
			JitterFraction: 0.2,
			OnRetry:        resilience.RetryLogger("soda"),
		},
	})
	return httpFetcher, fetcher.Opener{
		HTTP: httpFetcher,
		FTP:  fetcher.NewFTPFetcher(fetcher.FTPOptions{}),
	}
}

// openCache builds the configured snapshot cache.
func openCache(ctx context.Context, c config.CacheConfig) (inspection.Cache, func(), error) {
	noop := func() {}
	switch c.Driver {
	case config.CacheNone:
		return inspection.NopCache{}, noop, nil
	case config.CacheSQLite:
		if dir := filepath.Dir(c.Path); dir != "." {
			if err := ensureDir(dir); err != nil {
				return nil, nil, err
			}
		}
		sc, err := inspection.NewSQLiteCache(ctx, c.Path)
		if err != nil {
			return nil, nil, err
		}
		return sc, func() { _ = sc.Close() }, nil
	case config.CachePostgres:
		pc, err := inspection.NewPostgresCache(ctx, c.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return pc, pc.Close, nil
	case config.CacheBlob:
		bc, err := inspection.NewBlobCache(inspection.BlobCacheConfig{
			ConnectionString: c.Blob.ConnectionString,
			AccountURL:       c.Blob.AccountURL,
			Container:        c.Blob.Container,
			Name:             c.Blob.Name,
		})
		if err != nil {
			return nil, nil, err
		}
		return bc, noop, nil
	}
	return nil, nil, eris.Errorf("unknown cache driver %q", c.Driver)
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "create cache dir %s", dir)
	}
	return nil
}
