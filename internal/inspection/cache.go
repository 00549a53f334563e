package inspection

import (
	"context"

	"github.com/rotisserie/eris"
)

// ErrCacheMiss is returned by Cache.Load when nothing has been saved yet.
var ErrCacheMiss = eris.New("inspection cache: no snapshot")

// Cache persists the most recent snapshot between process runs.
type Cache interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, s *Snapshot) error
}

// NopCache never stores anything.
type NopCache struct{}

// Load always misses.
func (NopCache) Load(context.Context) (*Snapshot, error) { return nil, ErrCacheMiss }

// Save discards s.
func (NopCache) Save(context.Context, *Snapshot) error { return nil }
