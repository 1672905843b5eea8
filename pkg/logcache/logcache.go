// Package logcache implements LogSearchCache: a cache in front of
// LogBackend queries, keyed by (namespace, canonical-JSON(params)), with
// two TTL classes depending on whether the query targets a single trace.
//
// Mirrors pkg/llmcache's layout (spec.md §4.3: "cache layout mirrors the
// LLM gateway"), reusing the same pkg/cachecore primitive so both caches
// share LRU+TTL+L2 logic without duplicating it. Values are stored as
// the plain JSON of each query result, with no envelope.
package logcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/logforensics/pkg/cachecore"
	"github.com/codeready-toolchain/logforensics/pkg/telemetry"
	"github.com/codeready-toolchain/logforensics/pkg/canonjson"
)

// Config configures a Cache instance.
type Config struct {
	L1MaxEntries int
	TraceTTL     time.Duration // default ~6h
	GeneralTTL   time.Duration // default ~4h
}

// Cache is the LogSearchCache implementation.
type Cache struct {
	cfg   Config
	store *cachecore.Store
}

// NewCache builds a Cache. l2 may be nil to run L1-only.
func NewCache(cfg Config, l2 cachecore.RemoteCache) (*Cache, error) {
	size := cfg.L1MaxEntries
	if size <= 0 {
		size = 1000
	}
	if cfg.TraceTTL == 0 {
		cfg.TraceTTL = 6 * time.Hour
	}
	if cfg.GeneralTTL == 0 {
		cfg.GeneralTTL = 4 * time.Hour
	}
	store, err := cachecore.NewStore("logcache", size, l2)
	if err != nil {
		return nil, err
	}
	return &Cache{cfg: cfg, store: store}, nil
}

// SetTelemetry attaches Prometheus metrics to this cache's underlying store.
func (c *Cache) SetTelemetry(m *telemetry.Metrics) {
	c.store.SetTelemetry(m)
}

// QueryFunc performs the actual (uncached) log backend query.
type QueryFunc func() (interface{}, error)

// Query wraps a log backend call: on cache hit, returns the cached
// response; on miss, invokes query through the store's single-flight
// (concurrent misses for one key share a single call) and caches the
// result under a TTL chosen by whether params carries a non-empty
// trace_id.
func (c *Cache) Query(ctx context.Context, namespace string, params map[string]interface{}, query QueryFunc) (interface{}, error) {
	key, err := buildKey(namespace, params)
	if err != nil {
		return nil, err
	}

	if raw, _, ok := c.store.Get(ctx, key); ok {
		var v interface{}
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
		slog.Warn("logcache: corrupt cached value, recomputing", "key", key)
	}

	raw, err, _ := c.store.SingleFlight(key, func() ([]byte, error) {
		v, err := query()
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		return nil, err
	}

	c.store.Set(ctx, key, raw, c.ttlFor(params))

	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func (c *Cache) ttlFor(params map[string]interface{}) time.Duration {
	if isTraceQuery(params) {
		return c.cfg.TraceTTL
	}
	return c.cfg.GeneralTTL
}

func isTraceQuery(params map[string]interface{}) bool {
	v, ok := params["trace_id"]
	if !ok {
		return false
	}
	s, ok := v.(string)
	return ok && s != ""
}

func buildKey(namespace string, params map[string]interface{}) (string, error) {
	b, err := canonjson.Marshal(map[string]interface{}{"namespace": namespace, "params": params})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return "log:" + hex.EncodeToString(sum[:]), nil
}

// ClearL1 purges the in-process tier only.
func (c *Cache) ClearL1() {
	c.store.ClearL1()
}
