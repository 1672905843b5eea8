package cachecore

import (
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Group suppresses duplicate concurrent work for the same key: the
// first caller executes fn, every other caller observed while that
// call is in flight blocks and receives the same result.
//
// Wraps golang.org/x/sync/singleflight.Group (keyed by string, the only
// key type either of this package's two-tier caches ever uses) with the
// []byte-typed, coalesce-stats-tracking surface Store.SingleFlight
// exposes.
type Group struct {
	sf singleflight.Group

	hits   atomic.Uint64
	misses atomic.Uint64
}

// Do runs fn for key, or waits for an in-flight call for the same key.
// The bool result reports whether the caller shared another caller's result.
func (g *Group) Do(key string, fn func() ([]byte, error)) ([]byte, error, bool) {
	v, err, shared := g.sf.Do(key, func() (interface{}, error) {
		return fn()
	})
	if shared {
		g.hits.Add(1)
	} else {
		g.misses.Add(1)
	}
	if v == nil {
		return nil, err, shared
	}
	return v.([]byte), err, shared
}

// Stats reports coalescing effectiveness.
type Stats struct {
	Hits   uint64
	Misses uint64
}

func (g *Group) Stats() Stats {
	return Stats{Hits: g.hits.Load(), Misses: g.misses.Load()}
}
