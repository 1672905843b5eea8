package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/codeready-toolchain/logforensics/pkg/domain"
	"github.com/codeready-toolchain/logforensics/pkg/dynconfig"
	"github.com/codeready-toolchain/logforensics/pkg/llmcache"
	"github.com/codeready-toolchain/logforensics/pkg/llmprovider"
	"github.com/codeready-toolchain/logforensics/pkg/prompttpl"
)

// maxEntryPrompts bounds the per-entry sub-prompt fan-out: only the
// first few lines of a trace are individually scrutinized, keeping the
// per-trace LLM call count predictable regardless of trace size.
const maxEntryPrompts = 5

// AnalyzeAgent produces an AnalysisArtifact for one CompiledTrace via
// three sub-prompts: single-trace forensic, per-entry, and
// quality-assessment.
type AnalyzeAgent struct {
	gw       *llmcache.Gateway
	provider llmprovider.Provider
	store    *dynconfig.ConfigStore
	model    string
}

// NewAnalyzeAgent builds an AnalyzeAgent.
func NewAnalyzeAgent(gw *llmcache.Gateway, provider llmprovider.Provider, store *dynconfig.ConfigStore, model string) *AnalyzeAgent {
	return &AnalyzeAgent{gw: gw, provider: provider, store: store, model: model}
}

type forensicResult struct {
	RelevanceScore int                     `json:"relevance_score"`
	Confidence     domain.ConfidenceLevel  `json:"confidence"`
	KeyFindings    []string                `json:"key_findings"`
	Recommendation domain.Recommendation   `json:"recommendation"`
}

type entryResult struct {
	Relevant bool   `json:"relevant"`
	Note     string `json:"note"`
}

type qualityResult struct {
	QualityScore int    `json:"quality_score"`
	Rationale    string `json:"rationale"`
}

// AnalyzeTrace runs the three sub-prompts over trace and returns the
// resulting AnalysisArtifact and the quality score from the
// quality-assessment sub-prompt.
func (a *AnalyzeAgent) AnalyzeTrace(ctx context.Context, query string, trace domain.CompiledTrace) (domain.AnalysisArtifact, int, error) {
	forensic, err := a.forensic(ctx, query, trace)
	if err != nil {
		return domain.AnalysisArtifact{}, 0, fmt.Errorf("agents: forensic analysis of trace %s: %w", trace.TraceID, err)
	}

	findings := append([]string{}, forensic.KeyFindings...)
	for i, line := range trace.Lines {
		if i >= maxEntryPrompts {
			break
		}
		entry, err := a.entry(ctx, trace.TraceID, line)
		if err != nil {
			continue // per-entry failures don't abort the trace, per spec.md §4.7 failure policy
		}
		if entry.Relevant && entry.Note != "" {
			findings = append(findings, entry.Note)
		}
	}

	quality, err := a.quality(ctx, trace.TraceID, forensic.Recommendation)
	if err != nil {
		return domain.AnalysisArtifact{}, 0, fmt.Errorf("agents: quality assessment of trace %s: %w", trace.TraceID, err)
	}

	artifact := domain.AnalysisArtifact{
		Filename:       trace.TraceID + ".json",
		TraceID:        trace.TraceID,
		RelevanceScore: clampScore(forensic.RelevanceScore),
		Confidence:     forensic.Confidence,
		KeyFindings:    findings,
		Recommendation: forensic.Recommendation,
	}
	return artifact, clampScore(quality.QualityScore), nil
}

func (a *AnalyzeAgent) forensic(ctx context.Context, query string, trace domain.CompiledTrace) (forensicResult, error) {
	tplBody, err := a.store.GetPrompt(ctx, "analyze_trace")
	if err != nil {
		return forensicResult{}, err
	}
	tpl, err := prompttpl.Parse("analyze_trace", tplBody)
	if err != nil {
		return forensicResult{}, err
	}
	prompt, err := tpl.Render(map[string]any{
		"Query": query,
		"Trace": strings.Join(trace.Lines, "\n"),
	})
	if err != nil {
		return forensicResult{}, err
	}
	return cachedJSON[forensicResult](ctx, a.gw, "analyze_trace", a.model,
		[]llmcache.Message{{Role: "user", Content: prompt}}, nil, defaultAgentCacheTTL,
		func(ctx context.Context) (string, error) {
			return singleMessageCall(ctx, a.provider, a.model, prompt)
		})
}

func (a *AnalyzeAgent) entry(ctx context.Context, traceID, line string) (entryResult, error) {
	tplBody, err := a.store.GetPrompt(ctx, "analyze_entry")
	if err != nil {
		return entryResult{}, err
	}
	tpl, err := prompttpl.Parse("analyze_entry", tplBody)
	if err != nil {
		return entryResult{}, err
	}
	prompt, err := tpl.Render(map[string]any{"TraceID": traceID, "Entry": line})
	if err != nil {
		return entryResult{}, err
	}
	return cachedJSON[entryResult](ctx, a.gw, "analyze_entry", a.model,
		[]llmcache.Message{{Role: "user", Content: prompt}}, nil, defaultAgentCacheTTL,
		func(ctx context.Context) (string, error) {
			return singleMessageCall(ctx, a.provider, a.model, prompt)
		})
}

func (a *AnalyzeAgent) quality(ctx context.Context, traceID string, recommendation domain.Recommendation) (qualityResult, error) {
	tplBody, err := a.store.GetPrompt(ctx, "analyze_quality")
	if err != nil {
		return qualityResult{}, err
	}
	tpl, err := prompttpl.Parse("analyze_quality", tplBody)
	if err != nil {
		return qualityResult{}, err
	}
	prompt, err := tpl.Render(map[string]any{"TraceID": traceID, "Recommendation": recommendation})
	if err != nil {
		return qualityResult{}, err
	}
	return cachedJSON[qualityResult](ctx, a.gw, "analyze_quality", a.model,
		[]llmcache.Message{{Role: "user", Content: prompt}}, nil, defaultAgentCacheTTL,
		func(ctx context.Context) (string, error) {
			return singleMessageCall(ctx, a.provider, a.model, prompt)
		})
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
