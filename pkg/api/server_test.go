package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/logforensics/pkg/agents"
	"github.com/codeready-toolchain/logforensics/pkg/dynconfig"
	"github.com/codeready-toolchain/logforensics/pkg/llmcache"
	"github.com/codeready-toolchain/logforensics/pkg/llmprovider"
	"github.com/codeready-toolchain/logforensics/pkg/logbackend/file"
	"github.com/codeready-toolchain/logforensics/pkg/orchestrator"
	"github.com/codeready-toolchain/logforensics/pkg/session"
	"github.com/codeready-toolchain/logforensics/pkg/sse"
	"github.com/codeready-toolchain/logforensics/pkg/traceid"
)

// newTestServer builds a Server wired against stub LLM providers so
// a full pipeline run requires no network access. Every test run's
// search finds zero candidates (empty logs dir), landing on the
// empty-search edge case, which only needs the param/plan/verify
// providers scripted — no AnalyzeAgent call ever happens.
func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()

	analysisDir := t.TempDir()
	require.NoError(t, os.MkdirAll("logs", 0o755))
	t.Cleanup(func() { _ = os.RemoveAll("logs") })

	store := dynconfig.New(nil, dynconfig.Flags{})

	gw, err := llmcache.NewGateway(llmcache.Config{
		Enabled:        true,
		Mode:           llmcache.ModeDefaultOn,
		L1MaxEntries:   100,
		GatewayVersion: "v1",
	}, nil)
	require.NoError(t, err)

	paramProvider := llmprovider.NewStub()
	paramProvider.PushText(`{"time_frame":null,"domain":"payments","query_keys":[]}`)
	planProvider := llmprovider.NewStub()
	planProvider.PushText(`{"steps":[{"name":"search","description":"scan logs"}],"blocking_questions":[]}`)
	verifyProvider := llmprovider.NewStub()
	verifyProvider.PushText(`{"relevance_score":0,"reasoning":"no candidates","recommendation":"EXCLUDE"}`)
	analyzeProvider := llmprovider.NewStub()

	orch := orchestrator.New(orchestrator.Config{
		Store:          store,
		ParamAgent:     agents.NewParameterAgent(gw, paramProvider, store, "test-model"),
		PlanningAgent:  agents.NewPlanningAgent(gw, planProvider, store, "test-model"),
		AnalyzeAgent:   agents.NewAnalyzeAgent(gw, analyzeProvider, store, "test-model"),
		VerifyAgent:    agents.NewVerifyAgent(gw, verifyProvider, store, "test-model"),
		FileBackend:    file.New(),
		Extractor:      traceid.New(traceid.DefaultPatterns()),
		Concurrency:    2,
		MaxLogBytes:    1024 * 1024,
		Timeouts:       orchestrator.DefaultTimeouts(),
		AnalysisDir:    analysisDir,
		AllowedDomains: []string{"payments"},
	})

	registry := session.NewRegistry(time.Minute)
	streamer := sse.New(5 * time.Second)

	return NewServer(registry, streamer, orch, gw, analysisDir), analysisDir
}

func TestHealthHandler_AlwaysReturnsOK(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestSubmitChatHandler_RejectsMissingFields(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"prompt":""}`))
	req.Header.Set("Content-Type", "application/json")
	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitChatHandler_CreatesSessionAndReturnsStreamURL(t *testing.T) {
	s, _ := newTestServer(t)

	body := `{"prompt":"why did payments fail","project":"payments","env":"prod","domain":"payments"}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, "/api/chat/stream/"+resp.SessionID, resp.StreamURL)

	_, err := s.registry.Get(resp.SessionID)
	assert.NoError(t, err)
}

func TestStreamChatHandler_UnknownSessionReturnsNotFound(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/chat/stream/does-not-exist", nil)
	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStreamAnalysisHandler_RunsPipelineSynchronously(t *testing.T) {
	s, _ := newTestServer(t)

	body := `{"text":"why did payments fail","project":"payments","env":"prod","domain":"payments"}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/stream-analysis", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	out := rec.Body.String()
	assert.Contains(t, out, "event: Extracted Parameters")
	assert.Contains(t, out, "event: Verification Results")
	assert.Contains(t, out, `"status":"complete"`)
}

func TestDownloadHandler_RejectsPathTraversal(t *testing.T) {
	s, _ := newTestServer(t)

	for _, filename := range []string{"", "../secret.json", "a/b.json", "..", "foo..json"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/download/?filename="+filename, nil)
		s.echo.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "filename=%q", filename)
	}
}

func TestDownloadHandler_ServesExistingArtifact(t *testing.T) {
	s, analysisDir := newTestServer(t)
	require.NoError(t, os.WriteFile(filepath.Join(analysisDir, "trace-1.json"), []byte(`{"trace_id":"trace-1"}`), 0o644))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/download/?filename=trace-1.json", nil)
	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"trace_id":"trace-1"`)
}

func TestCachePingHandler_HealthyWithNoL2Configured(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cache/ping", nil))

	var resp CachePingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Healthy)
}

func TestCacheStatsHandler_ReturnsZeroedCountersInitially(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cache/stats", nil))

	var resp CacheStatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Zero(t, resp.L1Hits)
	assert.Zero(t, resp.L1Size)
}

func TestCacheDeleteHandler_RequiresKey(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/cache/delete", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCacheClearL1Handler_ReturnsNoContent(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/cache/clear-l1", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRunPipeline_MarksSessionAbandonedWhenCancelledBeforeStart(t *testing.T) {
	s, _ := newTestServer(t)

	reg := session.NewRegistry(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	sess, sessCtx := reg.Create(ctx)
	cancel()

	runPipeline(sessCtx, reg, sess, s.orch, orchestrator.Request{
		Prompt:  "why did payments fail",
		Project: "payments",
		Env:     "prod",
		Domain:  "payments",
	})

	assert.Equal(t, session.StatusAbandoned, sess.Status())
}
