package logbackend

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/codeready-toolchain/logforensics/pkg/logcache"
)

// CachedBackend wraps a LogBackend with the process's log-search cache
// (spec.md §4.3: "cache layout mirrors the LLM gateway"), keyed by a
// namespace label (one per backend kind: file/remote) plus the full
// query parameters — including the project-specific backend root/URL,
// since one Orchestrator's file/remote backend is shared across every
// project routed to it — so repeated SEARCH/COLLECT_TRACES calls for
// the same incident query avoid re-scanning the underlying backend.
type CachedBackend struct {
	backend   LogBackend
	cache     *logcache.Cache
	namespace string
}

// NewCachedBackend wraps backend with cache under the given namespace
// label (e.g. "file-backend", "remote-backend").
func NewCachedBackend(backend LogBackend, cache *logcache.Cache, namespace string) *CachedBackend {
	return &CachedBackend{backend: backend, cache: cache, namespace: namespace}
}

// FindCandidates materializes the underlying cursor into a cacheable
// slice: the cache stores a JSON-encoded value, which a streaming
// Cursor cannot be.
func (c *CachedBackend) FindCandidates(ctx context.Context, params Parameters, env Environment) (Cursor, error) {
	key := map[string]interface{}{
		"op":           "find",
		"env":          env.Name,
		"backend_root": env.BackendRoot,
		"backend_url":  env.BackendURL,
		"domain":       params.Domain,
		"query_keys":   params.QueryKeys,
		"time_frame":   params.TimeFrame,
	}
	v, err := c.cache.Query(ctx, c.namespace, key, func() (interface{}, error) {
		return c.drainCandidates(ctx, params, env)
	})
	if err != nil {
		return nil, err
	}
	lines, err := decodeLines(v)
	if err != nil {
		return nil, err
	}
	return &materializedCursor{lines: lines}, nil
}

func (c *CachedBackend) drainCandidates(ctx context.Context, params Parameters, env Environment) ([]Line, error) {
	cursor, err := c.backend.FindCandidates(ctx, params, env)
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	var lines []Line
	for {
		line, ok, err := cursor.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// FetchByTraceIDs is keyed with a non-empty trace_id field so
// logcache.Cache applies its longer trace-query TTL (spec.md §4.3).
func (c *CachedBackend) FetchByTraceIDs(ctx context.Context, ids []string, env Environment) (map[string][]Line, error) {
	key := map[string]interface{}{
		"op":           "fetch",
		"env":          env.Name,
		"backend_root": env.BackendRoot,
		"backend_url":  env.BackendURL,
		"trace_id":     strings.Join(ids, ","),
	}
	v, err := c.cache.Query(ctx, c.namespace, key, func() (interface{}, error) {
		return c.backend.FetchByTraceIDs(ctx, ids, env)
	})
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("logbackend: re-encode cached fetch result: %w", err)
	}
	var out map[string][]Line
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("logbackend: decode cached fetch result: %w", err)
	}
	return out, nil
}

func decodeLines(v interface{}) ([]Line, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("logbackend: re-encode cached find result: %w", err)
	}
	var out []Line
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("logbackend: decode cached find result: %w", err)
	}
	return out, nil
}

// materializedCursor iterates a slice of lines already drained from
// either a live backend scan or a cached result.
type materializedCursor struct {
	lines []Line
	idx   int
}

func (m *materializedCursor) Next(ctx context.Context) (Line, bool, error) {
	if ctx.Err() != nil {
		return Line{}, false, ctx.Err()
	}
	if m.idx >= len(m.lines) {
		return Line{}, false, nil
	}
	line := m.lines[m.idx]
	m.idx++
	return line, true, nil
}

func (m *materializedCursor) Close() error { return nil }
