package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/codeready-toolchain/logforensics/pkg/canonjson"
	"github.com/codeready-toolchain/logforensics/pkg/domain"
	"github.com/codeready-toolchain/logforensics/pkg/dynconfig"
	"github.com/codeready-toolchain/logforensics/pkg/llmcache"
	"github.com/codeready-toolchain/logforensics/pkg/llmprovider"
	"github.com/codeready-toolchain/logforensics/pkg/prompttpl"
)

// VerifyAgent checks a trace's forensic summary against the configured
// context rules and produces the run's final relevance verdict.
type VerifyAgent struct {
	gw       *llmcache.Gateway
	provider llmprovider.Provider
	store    *dynconfig.ConfigStore
	model    string
}

// NewVerifyAgent builds a VerifyAgent.
func NewVerifyAgent(gw *llmcache.Gateway, provider llmprovider.Provider, store *dynconfig.ConfigStore, model string) *VerifyAgent {
	return &VerifyAgent{gw: gw, provider: provider, store: store, model: model}
}

type verifyResult struct {
	RelevanceScore int                   `json:"relevance_score"`
	Reasoning      string                `json:"reasoning"`
	Recommendation domain.Recommendation `json:"recommendation"`
}

// Verify renders the verify prompt with summary, params, and every
// enabled context rule (rules are not filtered by project), and returns
// the parsed verdict.
func (a *VerifyAgent) Verify(ctx context.Context, traceID, summary string, params domain.Parameters) (domain.VerificationResult, error) {
	rules, err := a.store.GetContextRules(ctx)
	if err != nil {
		return domain.VerificationResult{}, fmt.Errorf("agents: load context rules: %w", err)
	}

	tplBody, err := a.store.GetPrompt(ctx, "verify")
	if err != nil {
		return domain.VerificationResult{}, fmt.Errorf("agents: load verify prompt: %w", err)
	}
	tpl, err := prompttpl.Parse("verify", tplBody)
	if err != nil {
		return domain.VerificationResult{}, fmt.Errorf("agents: parse verify prompt: %w", err)
	}

	rulesJSON, err := canonjson.Marshal(rules)
	if err != nil {
		return domain.VerificationResult{}, fmt.Errorf("agents: encode context rules: %w", err)
	}
	paramsJSON, err := canonjson.Marshal(params)
	if err != nil {
		return domain.VerificationResult{}, fmt.Errorf("agents: encode parameters: %w", err)
	}

	prompt, err := tpl.Render(map[string]any{
		"Findings": summary + "\nExtracted parameters: " + string(paramsJSON),
		"Rules":    string(rulesJSON),
	})
	if err != nil {
		return domain.VerificationResult{}, fmt.Errorf("agents: render verify prompt: %w", err)
	}

	result, err := cachedJSON[verifyResult](ctx, a.gw, "verify", a.model,
		[]llmcache.Message{{Role: "user", Content: prompt}}, nil, defaultAgentCacheTTL,
		func(ctx context.Context) (string, error) {
			return singleMessageCall(ctx, a.provider, a.model, prompt)
		})
	if err != nil {
		return domain.VerificationResult{}, fmt.Errorf("agents: verify trace %s: %w", traceID, err)
	}

	return domain.VerificationResult{
		TraceID:        traceID,
		RelevanceScore: clampScore(result.RelevanceScore),
		Reasoning:      strings.TrimSpace(result.Reasoning),
		Recommendation: result.Recommendation,
	}, nil
}
