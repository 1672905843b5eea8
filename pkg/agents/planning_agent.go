package agents

import (
	"context"
	"fmt"

	"github.com/codeready-toolchain/logforensics/pkg/canonjson"
	"github.com/codeready-toolchain/logforensics/pkg/domain"
	"github.com/codeready-toolchain/logforensics/pkg/dynconfig"
	"github.com/codeready-toolchain/logforensics/pkg/llmcache"
	"github.com/codeready-toolchain/logforensics/pkg/llmprovider"
	"github.com/codeready-toolchain/logforensics/pkg/prompttpl"
)

// PlanningAgent turns extracted parameters plus project metadata into an
// ordered search Plan, or a list of blocking clarification questions.
type PlanningAgent struct {
	gw       *llmcache.Gateway
	provider llmprovider.Provider
	store    *dynconfig.ConfigStore
	model    string
}

// NewPlanningAgent builds a PlanningAgent.
func NewPlanningAgent(gw *llmcache.Gateway, provider llmprovider.Provider, store *dynconfig.ConfigStore, model string) *PlanningAgent {
	return &PlanningAgent{gw: gw, provider: provider, store: store, model: model}
}

// Plan renders the planning prompt and parses the LLM's step sequence
// and blocking-question list.
func (a *PlanningAgent) Plan(ctx context.Context, params domain.Parameters, project dynconfig.Project) (domain.Plan, error) {
	tplBody, err := a.store.GetPrompt(ctx, "planning")
	if err != nil {
		return domain.Plan{}, fmt.Errorf("agents: load planning prompt: %w", err)
	}
	tpl, err := prompttpl.Parse("planning", tplBody)
	if err != nil {
		return domain.Plan{}, fmt.Errorf("agents: parse planning prompt: %w", err)
	}

	paramsJSON, err := canonjson.Marshal(params)
	if err != nil {
		return domain.Plan{}, fmt.Errorf("agents: encode parameters: %w", err)
	}

	prompt, err := tpl.Render(map[string]any{
		"Parameters":  string(paramsJSON),
		"ProjectName": project.Name,
	})
	if err != nil {
		return domain.Plan{}, fmt.Errorf("agents: render planning prompt: %w", err)
	}

	plan, err := cachedJSON[domain.Plan](ctx, a.gw, "planning", a.model,
		[]llmcache.Message{{Role: "user", Content: prompt}}, nil, defaultAgentCacheTTL,
		func(ctx context.Context) (string, error) {
			return singleMessageCall(ctx, a.provider, a.model, prompt)
		})
	if err != nil {
		return domain.Plan{}, fmt.Errorf("agents: planning: %w", err)
	}
	return plan, nil
}
