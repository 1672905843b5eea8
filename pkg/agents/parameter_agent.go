package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/codeready-toolchain/logforensics/pkg/domain"
	"github.com/codeready-toolchain/logforensics/pkg/dynconfig"
	"github.com/codeready-toolchain/logforensics/pkg/llmcache"
	"github.com/codeready-toolchain/logforensics/pkg/llmprovider"
	"github.com/codeready-toolchain/logforensics/pkg/prompttpl"
)

const timeFrameLayout = "2006-01-02"

// ParameterAgent turns the user's raw incident text into domain.Parameters.
type ParameterAgent struct {
	gw       *llmcache.Gateway
	provider llmprovider.Provider
	store    *dynconfig.ConfigStore
	model    string
}

// NewParameterAgent builds a ParameterAgent.
func NewParameterAgent(gw *llmcache.Gateway, provider llmprovider.Provider, store *dynconfig.ConfigStore, model string) *ParameterAgent {
	return &ParameterAgent{gw: gw, provider: provider, store: store, model: model}
}

type rawParameters struct {
	TimeFrame string   `json:"time_frame"`
	Domain    string   `json:"domain"`
	QueryKeys []string `json:"query_keys"`
}

// Extract renders the parameter_extraction prompt, calls the LLM through
// the cache gateway, and post-filters the result against the allow/deny
// lists per spec.md §4.6: violating query_keys are dropped and an
// unparsable time_frame is nulled rather than surfaced as an error.
func (a *ParameterAgent) Extract(ctx context.Context, text string, allowedDomains, allowedKeys, excludedKeys []string) (domain.Parameters, error) {
	tplBody, err := a.store.GetPrompt(ctx, "parameter_extraction")
	if err != nil {
		return domain.Parameters{}, fmt.Errorf("agents: load parameter_extraction prompt: %w", err)
	}
	tpl, err := prompttpl.Parse("parameter_extraction", tplBody)
	if err != nil {
		return domain.Parameters{}, fmt.Errorf("agents: parse parameter_extraction prompt: %w", err)
	}
	prompt, err := tpl.Render(map[string]any{
		"Query":          text,
		"AllowedDomains": allowedDomains,
		"AllowedKeys":    allowedKeys,
	})
	if err != nil {
		return domain.Parameters{}, fmt.Errorf("agents: render parameter_extraction prompt: %w", err)
	}

	raw, err := cachedJSON[rawParameters](ctx, a.gw, "parameter_extraction", a.model,
		[]llmcache.Message{{Role: "user", Content: prompt}}, nil, defaultAgentCacheTTL,
		func(ctx context.Context) (string, error) {
			return singleMessageCall(ctx, a.provider, a.model, prompt)
		})
	if err != nil {
		return domain.Parameters{}, fmt.Errorf("agents: parameter extraction: %w", err)
	}

	return sanitizeParameters(raw, allowedDomains, allowedKeys, excludedKeys), nil
}

func sanitizeParameters(raw rawParameters, allowedDomains, allowedKeys, excludedKeys []string) domain.Parameters {
	params := domain.Parameters{}

	if contains(allowedDomains, raw.Domain) {
		params.Domain = raw.Domain
	}

	excluded := toSet(excludedKeys)
	allowed := toSet(allowedKeys)
	seen := make(map[string]bool, len(raw.QueryKeys))
	for _, key := range raw.QueryKeys {
		if !allowed[key] || excluded[key] || seen[key] {
			continue
		}
		seen[key] = true
		params.QueryKeys = append(params.QueryKeys, key)
	}

	if raw.TimeFrame != "" {
		if t, err := time.Parse(timeFrameLayout, raw.TimeFrame); err == nil {
			params.TimeFrame = &t
		}
	}

	return params
}

func contains(list []string, v string) bool {
	for _, e := range list {
		if e == v {
			return true
		}
	}
	return false
}

func toSet(list []string) map[string]bool {
	set := make(map[string]bool, len(list))
	for _, e := range list {
		set[e] = true
	}
	return set
}
