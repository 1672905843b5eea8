package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/logforensics/pkg/domain"
	"github.com/codeready-toolchain/logforensics/pkg/dynconfig"
	"github.com/codeready-toolchain/logforensics/pkg/llmcache"
	"github.com/codeready-toolchain/logforensics/pkg/llmprovider"
)

func newTestGateway(t *testing.T) *llmcache.Gateway {
	t.Helper()
	g, err := llmcache.NewGateway(llmcache.Config{
		Enabled:        true,
		Mode:           llmcache.ModeDefaultOn,
		L1MaxEntries:   100,
		GatewayVersion: "v1",
	}, nil)
	require.NoError(t, err)
	return g
}

func newTestStore() *dynconfig.ConfigStore {
	return dynconfig.New(nil, dynconfig.Flags{})
}

func TestParameterAgent_Extract_FiltersAndParses(t *testing.T) {
	stub := llmprovider.NewStub()
	stub.PushText(`{"time_frame":"2026-07-29","domain":"payments","query_keys":["account_id","disallowed_key","account_id"]}`)

	agent := NewParameterAgent(newTestGateway(t), stub, newTestStore(), "test-model")
	params, err := agent.Extract(context.Background(), "failed transactions yesterday",
		[]string{"payments", "switch"}, []string{"account_id", "status"}, nil)
	require.NoError(t, err)

	assert.Equal(t, "payments", params.Domain)
	assert.Equal(t, []string{"account_id"}, params.QueryKeys)
	require.NotNil(t, params.TimeFrame)
	assert.Equal(t, 2026, params.TimeFrame.Year())
}

func TestParameterAgent_Extract_NullsInvalidTimeFrame(t *testing.T) {
	stub := llmprovider.NewStub()
	stub.PushText(`{"time_frame":"not-a-date","domain":"payments","query_keys":[]}`)

	agent := NewParameterAgent(newTestGateway(t), stub, newTestStore(), "test-model")
	params, err := agent.Extract(context.Background(), "text", []string{"payments"}, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, params.TimeFrame)
}

func TestParameterAgent_Extract_RejectsDisallowedDomain(t *testing.T) {
	stub := llmprovider.NewStub()
	stub.PushText(`{"time_frame":"","domain":"not-allowed","query_keys":[]}`)

	agent := NewParameterAgent(newTestGateway(t), stub, newTestStore(), "test-model")
	params, err := agent.Extract(context.Background(), "text", []string{"payments"}, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, params.Domain)
}

func TestParameterAgent_Extract_RetriesOnMalformedJSON(t *testing.T) {
	stub := llmprovider.NewStub()
	stub.PushText(`not json`)
	stub.PushText(`{"time_frame":"","domain":"payments","query_keys":[]}`)

	agent := NewParameterAgent(newTestGateway(t), stub, newTestStore(), "test-model")
	params, err := agent.Extract(context.Background(), "text", []string{"payments"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "payments", params.Domain)
	assert.Len(t, stub.Calls(), 2)
}

func TestParameterAgent_Extract_FailsAfterExhaustingRetries(t *testing.T) {
	stub := llmprovider.NewStub()
	for i := 0; i < maxParseRetries+1; i++ {
		stub.PushText("not json")
	}

	agent := NewParameterAgent(newTestGateway(t), stub, newTestStore(), "test-model")
	_, err := agent.Extract(context.Background(), "text", []string{"payments"}, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrParseFailed)
	assert.Len(t, stub.Calls(), maxParseRetries+1)
}

func TestPlanningAgent_Plan_ParsesStepsAndQuestions(t *testing.T) {
	stub := llmprovider.NewStub()
	stub.PushText(`{"steps":[{"name":"search","description":"scan logs"}],"blocking_questions":[]}`)

	agent := NewPlanningAgent(newTestGateway(t), stub, newTestStore(), "test-model")
	plan, err := agent.Plan(context.Background(), domain.Parameters{Domain: "payments"}, dynconfig.Project{Code: "payments", Name: "Payments"})
	require.NoError(t, err)
	assert.False(t, plan.NeedsClarification())
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, "search", plan.Steps[0].Name)
}

func TestPlanningAgent_Plan_DetectsBlockingQuestions(t *testing.T) {
	stub := llmprovider.NewStub()
	stub.PushText(`{"steps":[],"blocking_questions":["which environment?"]}`)

	agent := NewPlanningAgent(newTestGateway(t), stub, newTestStore(), "test-model")
	plan, err := agent.Plan(context.Background(), domain.Parameters{}, dynconfig.Project{Code: "default"})
	require.NoError(t, err)
	assert.True(t, plan.NeedsClarification())
}

func TestAnalyzeAgent_AnalyzeTrace_CombinesSubPrompts(t *testing.T) {
	stub := llmprovider.NewStub()
	stub.PushText(`{"relevance_score":150,"confidence":"high","key_findings":["odd timeout"],"recommendation":"INCLUDE"}`)
	stub.PushText(`{"relevant":true,"note":"line flagged"}`)
	stub.PushText(`{"quality_score":90,"rationale":"sufficient evidence"}`)

	agent := NewAnalyzeAgent(newTestGateway(t), stub, newTestStore(), "test-model")
	trace := domain.CompiledTrace{TraceID: "trace-1", Lines: []string{"ERROR timeout"}}
	artifact, quality, err := agent.AnalyzeTrace(context.Background(), "why did it fail", trace)
	require.NoError(t, err)

	assert.Equal(t, "trace-1.json", artifact.Filename)
	assert.Equal(t, 100, artifact.RelevanceScore) // clamped from 150
	assert.Equal(t, domain.RecommendationInclude, artifact.Recommendation)
	assert.Contains(t, artifact.KeyFindings, "line flagged")
	assert.Equal(t, 90, quality)
}

func TestVerifyAgent_Verify_ParsesVerdict(t *testing.T) {
	stub := llmprovider.NewStub()
	stub.PushText(`{"relevance_score":80,"reasoning":"matches pattern","recommendation":"INCLUDE"}`)

	agent := NewVerifyAgent(newTestGateway(t), stub, newTestStore(), "test-model")
	result, err := agent.Verify(context.Background(), "trace-1", "summary text", domain.Parameters{Domain: "payments"})
	require.NoError(t, err)
	assert.Equal(t, 80, result.RelevanceScore)
	assert.Equal(t, domain.RecommendationInclude, result.Recommendation)
}
