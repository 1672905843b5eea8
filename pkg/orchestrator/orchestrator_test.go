package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/logforensics/pkg/agents"
	"github.com/codeready-toolchain/logforensics/pkg/dynconfig"
	"github.com/codeready-toolchain/logforensics/pkg/llmcache"
	"github.com/codeready-toolchain/logforensics/pkg/llmprovider"
	"github.com/codeready-toolchain/logforensics/pkg/logbackend/file"
	"github.com/codeready-toolchain/logforensics/pkg/session"
	"github.com/codeready-toolchain/logforensics/pkg/traceid"
)

type fakeSink struct {
	events []struct {
		name string
		data interface{}
	}
}

func (f *fakeSink) Emit(ctx context.Context, name string, data interface{}) error {
	f.events = append(f.events, struct {
		name string
		data interface{}
	}{name, data})
	return nil
}

func (f *fakeSink) names() []string {
	names := make([]string, len(f.events))
	for i, e := range f.events {
		names[i] = e.name
	}
	return names
}

func newGateway(t *testing.T) *llmcache.Gateway {
	t.Helper()
	gw, err := llmcache.NewGateway(llmcache.Config{
		Enabled:        true,
		Mode:           llmcache.ModeDefaultOn,
		L1MaxEntries:   100,
		GatewayVersion: "v1",
	}, nil)
	require.NoError(t, err)
	return gw
}

func TestOrchestrator_Run_HappyPath(t *testing.T) {
	// routeBackend resolves BackendRoot via ConfigStore.GetSetting, which
	// falls back to its "./logs" default with Flags{} (no DB backing) —
	// so the fixture log file has to live at that relative path.
	require.NoError(t, os.MkdirAll("logs", 0o755))
	t.Cleanup(func() { _ = os.RemoveAll("logs") })
	logPath := filepath.Join("logs", "app.log")
	require.NoError(t, os.WriteFile(logPath, []byte("ERROR trace_id=abcd1234ef payment failed\n"), 0o644))

	store := dynconfig.New(nil, dynconfig.Flags{})

	paramProvider := llmprovider.NewStub()
	paramProvider.PushText(`{"time_frame":"","domain":"payments","query_keys":[]}`)
	planProvider := llmprovider.NewStub()
	planProvider.PushText(`{"steps":[{"name":"search","description":"scan logs"}],"blocking_questions":[]}`)
	analyzeProvider := llmprovider.NewStub()
	analyzeProvider.PushText(`{"relevance_score":90,"confidence":"high","key_findings":["payment failed"],"recommendation":"INCLUDE"}`)
	analyzeProvider.PushText(`{"relevant":true,"note":"matches failure"}`)
	analyzeProvider.PushText(`{"quality_score":80,"rationale":"sufficient"}`)
	verifyProvider := llmprovider.NewStub()
	verifyProvider.PushText(`{"relevance_score":85,"reasoning":"consistent with rules","recommendation":"INCLUDE"}`)

	gw := newGateway(t)
	orch := New(Config{
		Store:          store,
		ParamAgent:     agents.NewParameterAgent(gw, paramProvider, store, "test-model"),
		PlanningAgent:  agents.NewPlanningAgent(gw, planProvider, store, "test-model"),
		AnalyzeAgent:   agents.NewAnalyzeAgent(gw, analyzeProvider, store, "test-model"),
		VerifyAgent:    agents.NewVerifyAgent(gw, verifyProvider, store, "test-model"),
		FileBackend:    file.New(),
		Extractor:      traceid.New(traceid.DefaultPatterns()),
		Concurrency:    2,
		MaxLogBytes:    1024 * 1024,
		Timeouts:       DefaultTimeouts(),
		AllowedDomains: []string{"payments"},
	})

	sink := &fakeSink{}
	orch.Run(context.Background(), sink, Request{Prompt: "why did payments fail", Project: "payments", Env: "prod", Domain: "payments"})

	names := sink.names()
	assert.Contains(t, names, "Extracted Parameters")
	assert.Contains(t, names, "Planned Steps")
	assert.Contains(t, names, "Found relevant files")
	assert.Contains(t, names, "Found trace id(s)")
	assert.Contains(t, names, "Compiled Request Traces")
	assert.Contains(t, names, "Compiled Summary")
	assert.Contains(t, names, "Verification Results")
	assert.Equal(t, "done", names[len(names)-1])

	last := sink.events[len(sink.events)-1].data.(map[string]interface{})
	assert.Equal(t, "complete", last["status"])
}

func TestOrchestrator_Run_ClarificationStopsBeforeSearch(t *testing.T) {
	store := dynconfig.New(nil, dynconfig.Flags{})

	paramProvider := llmprovider.NewStub()
	paramProvider.PushText(`{"time_frame":"","domain":"payments","query_keys":[]}`)
	planProvider := llmprovider.NewStub()
	planProvider.PushText(`{"steps":[],"blocking_questions":["which environment?"]}`)

	gw := newGateway(t)
	orch := New(Config{
		Store:          store,
		ParamAgent:     agents.NewParameterAgent(gw, paramProvider, store, "test-model"),
		PlanningAgent:  agents.NewPlanningAgent(gw, planProvider, store, "test-model"),
		AnalyzeAgent:   agents.NewAnalyzeAgent(gw, llmprovider.NewStub(), store, "test-model"),
		VerifyAgent:    agents.NewVerifyAgent(gw, llmprovider.NewStub(), store, "test-model"),
		Extractor:      traceid.New(traceid.DefaultPatterns()),
		MaxLogBytes:    1024,
		Timeouts:       DefaultTimeouts(),
		AllowedDomains: []string{"payments"},
	})

	sink := &fakeSink{}
	orch.Run(context.Background(), sink, Request{Prompt: "help", Project: "payments"})

	names := sink.names()
	require.Len(t, names, 4)
	assert.Equal(t, "Extracted Parameters", names[0])
	assert.Equal(t, "Planned Steps", names[1])
	assert.Equal(t, "Need Clarification", names[2])
	assert.Equal(t, "done", names[3])

	last := sink.events[3].data.(map[string]interface{})
	assert.Equal(t, "needs_input", last["status"])
}

func TestOrchestrator_Run_InputTooLargeFailsImmediately(t *testing.T) {
	store := dynconfig.New(nil, dynconfig.Flags{})
	gw := newGateway(t)
	orch := New(Config{
		Store:         store,
		ParamAgent:    agents.NewParameterAgent(gw, llmprovider.NewStub(), store, "test-model"),
		PlanningAgent: agents.NewPlanningAgent(gw, llmprovider.NewStub(), store, "test-model"),
		AnalyzeAgent:  agents.NewAnalyzeAgent(gw, llmprovider.NewStub(), store, "test-model"),
		VerifyAgent:   agents.NewVerifyAgent(gw, llmprovider.NewStub(), store, "test-model"),
		Extractor:     traceid.New(traceid.DefaultPatterns()),
		MaxLogBytes:   4,
		Timeouts:      DefaultTimeouts(),
	})

	sink := &fakeSink{}
	orch.Run(context.Background(), sink, Request{Prompt: "this prompt is far too long", Project: "payments"})

	require.Len(t, sink.events, 1)
	assert.Equal(t, "error", sink.events[0].name)
	data := sink.events[0].data.(map[string]interface{})
	assert.Contains(t, data["error"], string(KindInputTooLarge))
}

func TestOrchestrator_Run_CancelledContextEmitsNoTerminalEvent(t *testing.T) {
	store := dynconfig.New(nil, dynconfig.Flags{})
	gw := newGateway(t)
	orch := New(Config{
		Store:         store,
		ParamAgent:    agents.NewParameterAgent(gw, llmprovider.NewStub(), store, "test-model"),
		PlanningAgent: agents.NewPlanningAgent(gw, llmprovider.NewStub(), store, "test-model"),
		AnalyzeAgent:  agents.NewAnalyzeAgent(gw, llmprovider.NewStub(), store, "test-model"),
		VerifyAgent:   agents.NewVerifyAgent(gw, llmprovider.NewStub(), store, "test-model"),
		Extractor:     traceid.New(traceid.DefaultPatterns()),
		MaxLogBytes:   1024,
		Timeouts:      DefaultTimeouts(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &fakeSink{}
	orch.Run(ctx, sink, Request{Prompt: "short", Project: "payments"})

	assert.Empty(t, sink.events)
}

func TestOrchestrator_Fail_ClientSlowEmitsNothing(t *testing.T) {
	orch := &Orchestrator{}
	sink := &fakeSink{}

	orch.fail(context.Background(), sink, session.ErrClientSlow)

	assert.Empty(t, sink.events)
}
