package llmcache

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/codeready-toolchain/logforensics/pkg/cachecore"
	"github.com/codeready-toolchain/logforensics/pkg/telemetry"
)

// Config configures a Gateway instance. Grounded on spec.md §4.2 and the
// §6 LLM_CACHE_* env var table (loaded by pkg/config into this struct).
type Config struct {
	Enabled            bool
	Mode               Mode
	Namespace          string
	L1MaxEntries       int
	L1TTL              time.Duration
	SupportedCallTypes []string // empty = all types allowed
	GatewayVersion     string
	PromptVersion      string
	DefaultTTL         time.Duration
}

// Gateway is the LLMCacheGateway implementation.
type Gateway struct {
	cfg   Config
	store *cachecore.Store

	mu      sync.Mutex
	lastKey string // response-key surface: last operation's cache key
}

// NewGateway builds a Gateway. l2 may be nil to run L1-only.
func NewGateway(cfg Config, l2 cachecore.RemoteCache) (*Gateway, error) {
	size := cfg.L1MaxEntries
	if size <= 0 {
		size = 1000
	}
	store, err := cachecore.NewStore("llmcache", size, l2)
	if err != nil {
		return nil, err
	}
	return &Gateway{cfg: cfg, store: store}, nil
}

// SetTelemetry attaches Prometheus metrics to this gateway's underlying store.
func (g *Gateway) SetTelemetry(m *telemetry.Metrics) {
	g.store.SetTelemetry(m)
}

// Cached is the LLMCacheGateway.Cached contract: check caches, fall
// through to single-flighted compute on a full miss, and write through
// on a cacheable result.
func (g *Gateway) Cached(
	ctx context.Context,
	cacheType, model string,
	messages []Message,
	options map[string]interface{},
	defaultTTL time.Duration,
	policy CachePolicy,
	compute ComputeFunc,
) (interface{}, Diagnostics, error) {
	if !g.cfg.Enabled || !policy.isEnabled() {
		return g.bypass(ctx, StatusBypassDisabled, compute)
	}

	if g.cfg.Mode == ModeDefaultOff && !policy.UseCache {
		return g.bypass(ctx, StatusBypassDefaultOff, compute)
	}

	if len(g.cfg.SupportedCallTypes) > 0 && !slices.Contains(g.cfg.SupportedCallTypes, cacheType) {
		return g.bypass(ctx, StatusBypassUnsupportedType, compute)
	}

	namespace := g.cfg.Namespace
	if policy.Namespace != "" {
		namespace = policy.Namespace
	}

	fp, err := fingerprint(g.cfg.GatewayVersion, g.cfg.PromptVersion, namespace, cacheType, model, messages, options)
	if err != nil {
		return nil, Diagnostics{}, err
	}
	key := buildKey(cacheType, fp)
	g.recordKey(key)

	if !policy.NoCache {
		if v, diag, ok := g.lookup(ctx, key, policy); ok {
			return v, diag, nil
		}
	}

	ttl := defaultTTL
	if policy.TTLSeconds > 0 {
		ttl = time.Duration(policy.TTLSeconds) * time.Second
	}

	raw, err, shared := g.store.SingleFlight(key, func() ([]byte, error) {
		res, err := compute()
		if err != nil {
			return nil, err
		}
		if res.Cacheable && !policy.NoStore {
			g.writeThrough(ctx, key, res.Value, ttl)
		}
		env := CacheEnvelope{CreatedAt: time.Now().Unix(), Value: res.Value}
		return json.Marshal(env)
	})
	if err != nil {
		return nil, Diagnostics{}, err
	}

	var env CacheEnvelope
	if jsonErr := json.Unmarshal(raw, &env); jsonErr != nil {
		return nil, Diagnostics{}, jsonErr
	}

	status := StatusMiss
	if shared {
		status = StatusCoalesced
	}
	return env.Value, Diagnostics{
		Status:       status,
		Layer:        "compute",
		Key:          key,
		KeyPrefix:    "llm:" + cacheType,
		EffectiveTTL: ttl,
		Waited:       shared,
	}, nil
}

func (g *Gateway) lookup(ctx context.Context, key string, policy CachePolicy) (interface{}, Diagnostics, bool) {
	raw, layer, ok := g.store.Get(ctx, key)
	if !ok {
		return nil, Diagnostics{}, false
	}
	var env CacheEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		slog.Warn("llmcache: corrupt envelope, treating as miss", "key", key, "error", err)
		return nil, Diagnostics{}, false
	}
	if policy.SMaxAgeSeconds > 0 {
		age := time.Since(time.Unix(env.CreatedAt, 0))
		if age > time.Duration(policy.SMaxAgeSeconds)*time.Second {
			return nil, Diagnostics{}, false
		}
	}
	status := StatusHitL1
	layerLabel := "l1"
	if layer == cachecore.LayerL2 {
		status = StatusHitL2
		layerLabel = "l2"
	}
	return env.Value, Diagnostics{
		Status:    status,
		Layer:     layerLabel,
		Key:       key,
		KeyPrefix: key,
	}, true
}

func (g *Gateway) writeThrough(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	env := CacheEnvelope{CreatedAt: time.Now().Unix(), Value: value}
	raw, err := json.Marshal(env)
	if err != nil {
		slog.Error("llmcache: failed to marshal envelope for write", "key", key, "error", err)
		return
	}
	g.store.Set(ctx, key, raw, ttl)
}

func (g *Gateway) bypass(ctx context.Context, status Status, compute ComputeFunc) (interface{}, Diagnostics, error) {
	res, err := compute()
	if err != nil {
		return nil, Diagnostics{}, err
	}
	return res.Value, Diagnostics{Status: status}, nil
}

func (g *Gateway) recordKey(key string) {
	g.mu.Lock()
	g.lastKey = key
	g.mu.Unlock()
}

// LastKey returns the cache key of the last operation made through this
// gateway — the response-key surface consulted by the HTTP middleware to
// set X-LLM-Cache-Key.
func (g *Gateway) LastKey() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastKey
}

// Delete removes a single key from both tiers.
func (g *Gateway) Delete(ctx context.Context, key string) {
	g.store.Delete(ctx, key)
}

// DeleteMany removes several keys.
func (g *Gateway) DeleteMany(ctx context.Context, keys []string) {
	for _, k := range keys {
		g.store.Delete(ctx, k)
	}
}

// ClearL1 purges the in-process tier only.
func (g *Gateway) ClearL1() {
	g.store.ClearL1()
}

// Stats returns a snapshot of the underlying store's hit/miss counters
// and current L1 size, for the /cache/stats admin endpoint.
func (g *Gateway) Stats() cachecore.MetricsSnapshot {
	return g.store.Stats()
}

// Ping performs an L2 liveness round-trip (set/get/delete) and reports
// its latency, or an error if L2 is unreachable. With no L2 configured
// it reports success with the (near-zero) elapsed time.
func (g *Gateway) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := g.store.L2Ping(ctx); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}
