// Package cachecore implements the two-tier (in-process LRU + optional
// shared KV) cache primitive shared by pkg/llmcache and pkg/logcache:
// an L1 lookup, an optional L2 lookup on L1 miss, single-flight
// coalescing of concurrent misses for the same key, and graceful
// degradation when L2 is unreachable.
//
// Grounded on the multi-level cache-manager reference design (L1/L2
// split, RemoteCache interface, degrade-on-L2-failure) and on
// golang.org/x/sync/singleflight for in-flight call coalescing (see
// singleflight.go).
package cachecore

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/codeready-toolchain/logforensics/pkg/telemetry"
)

// RemoteCache is the L2 tier contract. A nil RemoteCache disables L2
// entirely; Store treats every RemoteCache error as a miss and logs it,
// never as a fatal condition (spec.md: cache must degrade gracefully).
type RemoteCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// Metrics counts cache outcomes. Safe for concurrent use.
type Metrics struct {
	L1Hits    atomicCounter
	L1Misses  atomicCounter
	L2Hits    atomicCounter
	L2Misses  atomicCounter
	L2Errors  atomicCounter
	Evictions atomicCounter
}

// MetricsSnapshot is a plain-value copy of Metrics for callers (e.g. the
// HTTP admin surface) that just need current counts, not the live
// atomics.
type MetricsSnapshot struct {
	L1Hits    int64
	L1Misses  int64
	L2Hits    int64
	L2Misses  int64
	L2Errors  int64
	Evictions int64
	L1Len     int
}

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Store is a generic byte-value two-tier cache. Callers encode/decode
// their own values (pkg/llmcache stores JSON envelopes, pkg/logcache the
// plain JSON of each query result).
type Store struct {
	name string
	l1   *lru.Cache[string, entry]
	l2   RemoteCache
	sf   Group

	Metrics   Metrics
	telemetry *telemetry.Metrics
}

// NewStore builds a Store with an L1 of the given size and an optional
// L2 (pass nil to run L1-only, e.g. in tests).
func NewStore(name string, l1Size int, l2 RemoteCache) (*Store, error) {
	l1, err := lru.New[string, entry](l1Size)
	if err != nil {
		return nil, err
	}
	return &Store{name: name, l1: l1, l2: l2}, nil
}

// SetTelemetry attaches process-wide Prometheus metrics so this store's
// hits/misses are visible on /metrics, alongside the Stats() snapshot
// already used by the /cache/stats admin endpoint. Optional.
func (s *Store) SetTelemetry(m *telemetry.Metrics) {
	s.telemetry = m
}

// Layer identifies which tier served a Get hit.
type Layer string

const (
	LayerL1 Layer = "L1"
	LayerL2 Layer = "L2"
)

// Get looks up key in L1, then L2 (if configured). A value found in L2
// is promoted into L1. Returns (value, layer, true) on a hit, reporting
// which tier served it so callers (e.g. the LLM cache gateway's
// HIT_L1/HIT_L2 diagnostics) don't have to guess.
func (s *Store) Get(ctx context.Context, key string) ([]byte, Layer, bool) {
	if e, ok := s.l1.Get(key); ok {
		if time.Now().Before(e.expiresAt) {
			s.Metrics.L1Hits.inc()
			s.recordHit(string(LayerL1))
			return e.value, LayerL1, true
		}
		s.l1.Remove(key)
	}
	s.Metrics.L1Misses.inc()

	if s.l2 == nil {
		s.recordMiss()
		return nil, "", false
	}

	v, ok, err := s.l2.Get(ctx, s.prefixed(key))
	if err != nil {
		s.Metrics.L2Errors.inc()
		slog.Warn("cachecore: L2 get failed, degrading to miss", "cache", s.name, "error", err)
		s.recordMiss()
		return nil, "", false
	}
	if !ok {
		s.Metrics.L2Misses.inc()
		s.recordMiss()
		return nil, "", false
	}
	s.Metrics.L2Hits.inc()
	s.recordHit(string(LayerL2))
	if s.l1.Add(key, entry{value: v, expiresAt: time.Now().Add(defaultPromotionTTL)}) {
		s.Metrics.Evictions.inc()
	}
	return v, LayerL2, true
}

func (s *Store) recordHit(layer string) {
	if s.telemetry != nil {
		s.telemetry.CacheHits.WithLabelValues(s.name, layer).Inc()
	}
}

func (s *Store) recordMiss() {
	if s.telemetry != nil {
		s.telemetry.CacheMisses.WithLabelValues(s.name).Inc()
	}
}

// Set writes key into L1 with ttl and, if configured, into L2.
// L2 write failures are logged and otherwise ignored: the value is
// still usable locally via L1.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if s.l1.Add(key, entry{value: value, expiresAt: time.Now().Add(ttl)}) {
		s.Metrics.Evictions.inc()
	}

	if s.l2 == nil {
		return
	}
	if err := s.l2.Set(ctx, s.prefixed(key), value, ttl); err != nil {
		s.Metrics.L2Errors.inc()
		slog.Warn("cachecore: L2 set failed", "cache", s.name, "error", err)
	}
}

// Delete removes key from both tiers.
func (s *Store) Delete(ctx context.Context, key string) {
	s.l1.Remove(key)
	if s.l2 == nil {
		return
	}
	if err := s.l2.Delete(ctx, s.prefixed(key)); err != nil {
		s.Metrics.L2Errors.inc()
		slog.Warn("cachecore: L2 delete failed", "cache", s.name, "error", err)
	}
}

// ClearL1 purges the in-process tier only, leaving L2 untouched.
func (s *Store) ClearL1() {
	s.l1.Purge()
}

// Stats returns a plain-value snapshot of this store's metrics and
// current L1 size.
func (s *Store) Stats() MetricsSnapshot {
	return MetricsSnapshot{
		L1Hits:    s.Metrics.L1Hits.Load(),
		L1Misses:  s.Metrics.L1Misses.Load(),
		L2Hits:    s.Metrics.L2Hits.Load(),
		L2Misses:  s.Metrics.L2Misses.Load(),
		L2Errors:  s.Metrics.L2Errors.Load(),
		Evictions: s.Metrics.Evictions.Load(),
		L1Len:     s.l1.Len(),
	}
}

// L2Ping checks L2 liveness with a set/get/delete round-trip on a probe
// key, or returns nil if no L2 is configured.
func (s *Store) L2Ping(ctx context.Context) error {
	if s.l2 == nil {
		return nil
	}
	key := s.prefixed("__ping__")
	if err := s.l2.Set(ctx, key, []byte("1"), time.Minute); err != nil {
		return err
	}
	if _, ok, err := s.l2.Get(ctx, key); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("cachecore: L2 probe key %q missing after set", key)
	}
	return s.l2.Delete(ctx, key)
}

// SingleFlight coalesces concurrent loads for the same key: compute is
// invoked once per key even under concurrent callers, and the result is
// not written into the store by SingleFlight itself — callers decide whether to
// Set after deciding the result is cacheable (errors should not be cached).
func (s *Store) SingleFlight(key string, compute func() ([]byte, error)) ([]byte, error, bool) {
	return s.sf.Do(key, compute)
}

func (s *Store) prefixed(key string) string {
	return s.name + ":" + key
}

const defaultPromotionTTL = 30 * time.Second

type atomicCounter struct{ v atomic.Int64 }

func (c *atomicCounter) inc()        { c.v.Add(1) }
func (c *atomicCounter) Load() int64 { return c.v.Load() }
