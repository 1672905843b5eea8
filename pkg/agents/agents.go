// Package agents implements ParameterAgent, PlanningAgent, AnalyzeAgent,
// and VerifyAgent (spec.md §4.6): thin wrappers that render a
// ConfigStore-provided prompt template, call LLMCacheGateway, and parse
// the result as strict JSON against a declared schema.
//
// Grounded on the teacher's pkg/agent/controller.ScoringController
// (scoring.go): the retry-on-parse-failure loop below generalizes its
// extractScore/maxExtractionRetries pattern from "retry until a
// trailing number parses" to "retry until the response unmarshals into
// the declared schema", issuing each retry with no_cache=true per
// spec.md §4.6 so invalid responses are never cached.
package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/codeready-toolchain/logforensics/pkg/llmcache"
	"github.com/codeready-toolchain/logforensics/pkg/llmprovider"
)

// maxParseRetries is the number of additional attempts after the first,
// per spec.md §4.6 ("up to 2 additional times").
const maxParseRetries = 2

// defaultAgentCacheTTL is the write TTL used by agent cache calls that
// don't need a bespoke value; overridable per call via CachePolicy.TTLSeconds.
const defaultAgentCacheTTL = 15 * time.Minute

// ErrParseFailed is wrapped into the error surfaced to the orchestrator
// as LLM_PARSE_ERROR when every attempt fails to produce schema-valid JSON.
var ErrParseFailed = errors.New("agents: LLM response did not match the expected schema")

// cachedJSON calls gw.Cached up to 1+maxParseRetries times, decoding the
// cached/computed value into T. The first attempt respects the gateway's
// normal caching policy; every retry sets NoCache so a previously bad
// response is never served from cache and is never written to it either.
func cachedJSON[T any](
	ctx context.Context,
	gw *llmcache.Gateway,
	cacheType, model string,
	messages []llmcache.Message,
	options map[string]interface{},
	ttl time.Duration,
	call func(ctx context.Context) (string, error),
) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= maxParseRetries; attempt++ {
		policy := llmcache.CachePolicy{NoCache: attempt > 0}

		raw, _, err := gw.Cached(ctx, cacheType, model, messages, options, ttl, policy, func() (llmcache.ComputeResult, error) {
			text, err := call(ctx)
			if err != nil {
				return llmcache.ComputeResult{}, err
			}
			var probe T
			if err := json.Unmarshal([]byte(text), &probe); err != nil {
				return llmcache.ComputeResult{}, fmt.Errorf("%w: %v", ErrParseFailed, err)
			}
			return llmcache.ComputeResult{Value: probe, Cacheable: true}, nil
		})
		if err != nil {
			lastErr = err
			continue
		}

		out, convErr := decodeCachedValue[T](raw)
		if convErr != nil {
			lastErr = convErr
			continue
		}
		return out, nil
	}

	return zero, fmt.Errorf("%w: %v", ErrParseFailed, lastErr)
}

// decodeCachedValue converts a value that round-tripped through the
// gateway's generic CacheEnvelope (interface{} decoded as a JSON-native
// map) back into the caller's concrete T via a marshal/unmarshal pass.
func decodeCachedValue[T any](raw interface{}) (T, error) {
	var out T
	data, err := json.Marshal(raw)
	if err != nil {
		return out, fmt.Errorf("re-encode cached value: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode cached value: %w", err)
	}
	return out, nil
}

// singleMessageCall performs one non-streaming completion, used by every
// agent's compute closure.
func singleMessageCall(ctx context.Context, provider llmprovider.Provider, model, prompt string) (string, error) {
	resp, err := provider.Complete(ctx, llmprovider.Request{
		Model:    model,
		Messages: []llmprovider.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}
