// Package llmcache implements the LLMCacheGateway: a two-tier,
// single-flight-coalesced cache in front of LLM calls, keyed by a
// canonical-JSON fingerprint of the call inputs.
//
// Grounded on pkg/cachecore (the shared L1/L2/single-flight primitive)
// and on the teacher's pkg/runbook.Service read-compute-write flow.
package llmcache

import "time"

// CacheEnvelope is the serialized unit stored in both tiers.
type CacheEnvelope struct {
	CreatedAt int64       `json:"created_at"`
	Value     interface{} `json:"value"`
}

// Mode selects the gateway's default caching posture.
type Mode string

const (
	ModeDefaultOn  Mode = "default_on"
	ModeDefaultOff Mode = "default_off"
)

// CachePolicy carries per-call overrides, mirroring spec.md §4.2.
type CachePolicy struct {
	Enabled        *bool // nil = inherit gateway default (true)
	UseCache       bool
	NoCache        bool
	NoStore        bool
	TTLSeconds     int64 // 0 = use default_ttl
	SMaxAgeSeconds int64 // 0 = no staleness cap
	Namespace      string
}

func (p CachePolicy) isEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

// Status is the diagnostics outcome of a Cached call.
type Status string

const (
	StatusHitL1                Status = "HIT_L1"
	StatusHitL2                Status = "HIT_L2"
	StatusMiss                 Status = "MISS"
	StatusCoalesced            Status = "COALESCED"
	StatusBypassDisabled       Status = "BYPASS_DISABLED"
	StatusBypassDefaultOff     Status = "BYPASS_DEFAULT_OFF"
	StatusBypassUnsupportedType Status = "BYPASS_UNSUPPORTED_TYPE"
)

// Diagnostics is returned alongside every Cached call's value.
type Diagnostics struct {
	Status       Status
	Layer        string
	Key          string
	KeyPrefix    string
	EffectiveTTL time.Duration
	Waited       bool
}

// ComputeResult is what the caller's compute function returns: the value
// to potentially cache, plus whether it is safe to cache at all.
type ComputeResult struct {
	Value     interface{}
	Cacheable bool
}

// ComputeFunc performs the actual (uncached) LLM call.
type ComputeFunc func() (ComputeResult, error)

// Message is a minimal chat message shape — enough to canonicalize and
// hash; the concrete wire shape belongs to pkg/llmprovider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
