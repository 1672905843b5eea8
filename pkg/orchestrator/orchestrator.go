// Package orchestrator implements the staged pipeline state machine
// (spec.md §4.7): INIT → EXTRACT → PLAN → (CLARIFY) → SEARCH →
// COLLECT_TRACES → COMPILE → ANALYZE → VERIFY → DONE/ERROR.
//
// Grounded on the teacher's pkg/queue.RealSessionExecutor (sequential
// stage loop, fail-fast on a fatal step, per-stage timeout contexts)
// and pkg/agent/orchestrator.SubAgentRunner (bounded-concurrency fan-out)
// for the ANALYZE step's parallel trace analysis — simplified from
// SubAgentRunner's dynamic dispatch/results-channel shape to a flat
// semaphore-bounded loop, since the orchestrator already knows the full
// trace list up front (no dynamic sub-agent spawning is needed here).
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/codeready-toolchain/logforensics/pkg/agents"
	"github.com/codeready-toolchain/logforensics/pkg/canonjson"
	"github.com/codeready-toolchain/logforensics/pkg/domain"
	"github.com/codeready-toolchain/logforensics/pkg/dynconfig"
	"github.com/codeready-toolchain/logforensics/pkg/logbackend"
	"github.com/codeready-toolchain/logforensics/pkg/redact"
	"github.com/codeready-toolchain/logforensics/pkg/session"
	"github.com/codeready-toolchain/logforensics/pkg/telemetry"
	"github.com/codeready-toolchain/logforensics/pkg/traceid"
)

// Sink receives the orchestrator's SSE events. session.Session
// satisfies this interface; it is declared locally so this package
// doesn't need to import pkg/session for its method set — pkg/session
// is still imported below, but only to recognize ErrClientSlow.
type Sink interface {
	Emit(ctx context.Context, name string, data interface{}) error
}

// Request is one analysis run's input (spec.md §6 POST /api/chat body).
type Request struct {
	Prompt  string
	Project string
	Env     string
	Domain  string
}

// Timeouts holds the per-step wall-clock budgets (spec.md §5).
type Timeouts struct {
	Extract         time.Duration
	Plan            time.Duration
	Search          time.Duration
	CollectTraces   time.Duration
	Compile         time.Duration
	AnalyzePerTrace time.Duration
	Verify          time.Duration
}

// DefaultTimeouts returns spec.md §5's default per-step budgets.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Extract:         20 * time.Second,
		Plan:            10 * time.Second,
		Search:          60 * time.Second,
		CollectTraces:   30 * time.Second,
		Compile:         120 * time.Second,
		AnalyzePerTrace: 60 * time.Second,
		Verify:          60 * time.Second,
	}
}

// Orchestrator runs one pipeline session to completion.
type Orchestrator struct {
	store *dynconfig.ConfigStore

	paramAgent    *agents.ParameterAgent
	planningAgent *agents.PlanningAgent
	analyzeAgent  *agents.AnalyzeAgent
	verifyAgent   *agents.VerifyAgent

	fileBackend   logbackend.LogBackend
	remoteBackend logbackend.LogBackend
	extractor     *traceid.Extractor
	redactor      *redact.Service
	metrics       *telemetry.Metrics

	concurrency int
	maxLogBytes int64
	timeouts    Timeouts
	analysisDir string

	allowedDomains []string
	allowedKeys    []string
	excludedKeys   []string
}

// Config bundles everything Orchestrator needs, following the teacher's
// constructor-injection style (RealSessionExecutor's dependency fields).
type Config struct {
	Store          *dynconfig.ConfigStore
	ParamAgent     *agents.ParameterAgent
	PlanningAgent  *agents.PlanningAgent
	AnalyzeAgent   *agents.AnalyzeAgent
	VerifyAgent    *agents.VerifyAgent
	FileBackend    logbackend.LogBackend
	RemoteBackend  logbackend.LogBackend
	Extractor      *traceid.Extractor
	Redactor       *redact.Service
	Metrics        *telemetry.Metrics
	Concurrency    int
	MaxLogBytes    int64
	Timeouts       Timeouts
	AnalysisDir    string
	AllowedDomains []string
	AllowedKeys    []string
	ExcludedKeys   []string
}

// New builds an Orchestrator from cfg.
func New(cfg Config) *Orchestrator {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	redactor := cfg.Redactor
	if redactor == nil {
		redactor = redact.New()
	}
	return &Orchestrator{
		store:          cfg.Store,
		paramAgent:     cfg.ParamAgent,
		planningAgent:  cfg.PlanningAgent,
		analyzeAgent:   cfg.AnalyzeAgent,
		verifyAgent:    cfg.VerifyAgent,
		fileBackend:    cfg.FileBackend,
		remoteBackend:  cfg.RemoteBackend,
		extractor:      cfg.Extractor,
		redactor:       redactor,
		metrics:        cfg.Metrics,
		concurrency:    concurrency,
		maxLogBytes:    cfg.MaxLogBytes,
		timeouts:       cfg.Timeouts,
		analysisDir:    cfg.AnalysisDir,
		allowedDomains: cfg.AllowedDomains,
		allowedKeys:    cfg.AllowedKeys,
		excludedKeys:   cfg.ExcludedKeys,
	}
}

// observeStep records step's wall-clock duration against
// telemetry.Metrics.StepDuration when metrics are configured.
func (o *Orchestrator) observeStep(step string, start time.Time) {
	if o.metrics != nil {
		o.metrics.StepDuration.WithLabelValues(step).Observe(time.Since(start).Seconds())
	}
}

// Run drives req through the full state machine, emitting exactly one
// named event per successful transition and terminating with exactly
// one of `done` or `error`, unless the run was cancelled (spec.md
// §5/§7) or abandoned for backpressure (CLIENT_SLOW, see fail), in
// which case neither is emitted.
func (o *Orchestrator) Run(ctx context.Context, sink Sink, req Request) {
	if int64(len(req.Prompt)) > o.maxLogBytes {
		o.fail(ctx, sink, Wrap(KindInputTooLarge, fmt.Errorf("prompt of %d bytes exceeds MAX_LOG_BYTES", len(req.Prompt))))
		return
	}

	extractStart := time.Now()
	params, err := o.extract(ctx, req)
	o.observeStep("extract", extractStart)
	if err != nil {
		o.fail(ctx, sink, err)
		return
	}
	if err := sink.Emit(ctx, "Extracted Parameters", map[string]interface{}{"parameters": params}); err != nil {
		o.fail(ctx, sink, err)
		return
	}

	project, err := o.store.GetProject(ctx, req.Project)
	if err != nil {
		o.fail(ctx, sink, Wrap(KindDBUnavailable, err))
		return
	}

	planStart := time.Now()
	plan, err := o.plan(ctx, params, project)
	o.observeStep("plan", planStart)
	if err != nil {
		o.fail(ctx, sink, err)
		return
	}

	if err := sink.Emit(ctx, "Planned Steps", map[string]interface{}{"plan": plan}); err != nil {
		o.fail(ctx, sink, err)
		return
	}

	if plan.NeedsClarification() {
		if err := sink.Emit(ctx, "Need Clarification", map[string]interface{}{
			"questions": plan.BlockingQuestions, "plan": plan,
		}); err != nil {
			o.fail(ctx, sink, err)
			return
		}
		_ = sink.Emit(ctx, "done", map[string]interface{}{"status": "needs_input"})
		return
	}

	backend, env, fileBased, err := o.routeBackend(ctx, req)
	if err != nil {
		o.fail(ctx, sink, Wrap(KindDBUnavailable, err))
		return
	}

	searchStart := time.Now()
	traceIDs, fileCount, err := o.search(ctx, backend, params, env)
	o.observeStep("search", searchStart)
	if err != nil {
		o.fail(ctx, sink, Wrap(KindBackendUnavailable, err))
		return
	}

	if fileBased {
		err = sink.Emit(ctx, "Found relevant files", map[string]interface{}{"total_files": fileCount})
	} else {
		err = sink.Emit(ctx, "Downloaded logs in file", map[string]interface{}{})
	}
	if err != nil {
		o.fail(ctx, sink, err)
		return
	}

	if err := sink.Emit(ctx, "Found trace id(s)", map[string]interface{}{"count": len(traceIDs)}); err != nil {
		o.fail(ctx, sink, err)
		return
	}

	if len(traceIDs) == 0 {
		result, err := o.verifyEmpty(ctx, params)
		if err != nil {
			o.fail(ctx, sink, err)
			return
		}
		if err := sink.Emit(ctx, "Verification Results", map[string]interface{}{"results": []domain.VerificationResult{result}}); err != nil {
			o.fail(ctx, sink, err)
			return
		}
		_ = sink.Emit(ctx, "done", map[string]interface{}{"status": "complete"})
		return
	}

	compileStart := time.Now()
	traces, err := o.compile(ctx, backend, traceIDs, env)
	o.observeStep("compile", compileStart)
	if err != nil {
		o.fail(ctx, sink, Wrap(KindBackendUnavailable, err))
		return
	}
	if err := sink.Emit(ctx, "Compiled Request Traces", map[string]interface{}{"traces_compiled": len(traces)}); err != nil {
		o.fail(ctx, sink, err)
		return
	}

	analyzeStart := time.Now()
	artifacts := o.analyze(ctx, req.Prompt, traces)
	o.observeStep("analyze", analyzeStart)
	createdFiles := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		createdFiles = append(createdFiles, a.Filename)
	}
	if err := sink.Emit(ctx, "Compiled Summary", map[string]interface{}{"created_files": createdFiles}); err != nil {
		o.fail(ctx, sink, err)
		return
	}

	verifyStart := time.Now()
	results, err := o.verify(ctx, traces, artifacts, params)
	o.observeStep("verify", verifyStart)
	if err != nil {
		o.fail(ctx, sink, err)
		return
	}
	if err := sink.Emit(ctx, "Verification Results", map[string]interface{}{"results": results}); err != nil {
		o.fail(ctx, sink, err)
		return
	}

	_ = sink.Emit(ctx, "done", map[string]interface{}{"status": "complete"})
}

func (o *Orchestrator) extract(ctx context.Context, req Request) (domain.Parameters, error) {
	stepCtx, cancel := context.WithTimeout(ctx, o.timeouts.Extract)
	defer cancel()

	params, err := o.paramAgent.Extract(stepCtx, req.Prompt, o.allowedDomains, o.allowedKeys, o.excludedKeys)
	if err != nil {
		if stepCtx.Err() == context.DeadlineExceeded {
			return domain.Parameters{}, Wrap(KindTimeout, err)
		}
		if errors.Is(err, agents.ErrParseFailed) {
			return domain.Parameters{}, Wrap(KindParamExtractionFailed, err)
		}
		return domain.Parameters{}, Wrap(KindInternalError, err)
	}
	return params, nil
}

func (o *Orchestrator) plan(ctx context.Context, params domain.Parameters, project dynconfig.Project) (domain.Plan, error) {
	stepCtx, cancel := context.WithTimeout(ctx, o.timeouts.Plan)
	defer cancel()

	plan, err := o.planningAgent.Plan(stepCtx, params, project)
	if err != nil {
		if stepCtx.Err() == context.DeadlineExceeded {
			return domain.Plan{}, Wrap(KindTimeout, err)
		}
		if errors.Is(err, agents.ErrParseFailed) {
			return domain.Plan{}, Wrap(KindPlanFailed, err)
		}
		return domain.Plan{}, Wrap(KindInternalError, err)
	}
	return plan, nil
}

// routeBackend consults ConfigStore exactly once per run (spec.md §9:
// "never branched on downstream") and resolves the Environment routing
// parameters via per-project settings.
func (o *Orchestrator) routeBackend(ctx context.Context, req Request) (logbackend.LogBackend, logbackend.Environment, bool, error) {
	fileBased, err := o.store.IsFileBased(ctx, req.Project)
	if err != nil {
		return nil, logbackend.Environment{}, false, err
	}

	env := logbackend.Environment{
		Name:     req.Env,
		MaxBytes: o.maxLogBytes,
	}

	if fileBased {
		env.BackendRoot = o.store.GetSetting(ctx, req.Project, "backend", "root", "./logs")
		return o.fileBackend, env, true, nil
	}

	env.BackendURL = o.store.GetSetting(ctx, req.Project, "backend", "url", "")
	return o.remoteBackend, env, false, nil
}

// search runs FindCandidates, draining the cursor up to the byte
// budget, and extracts trace IDs in first-occurrence (discovery) order
// as each line is read (spec.md §4.7 ordering guarantee).
func (o *Orchestrator) search(ctx context.Context, backend logbackend.LogBackend, params domain.Parameters, env logbackend.Environment) ([]string, int, error) {
	stepCtx, cancel := context.WithTimeout(ctx, o.timeouts.Search)
	defer cancel()

	cursor, err := backend.FindCandidates(stepCtx, logbackend.Parameters{
		TimeFrame: params.TimeFrame,
		Domain:    params.Domain,
		QueryKeys: params.QueryKeys,
	}, env)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close()

	var lines []string
	sources := make(map[string]struct{})

	for {
		line, ok, err := cursor.Next(stepCtx)
		if err != nil {
			return nil, 0, err
		}
		if !ok {
			break
		}
		lines = append(lines, line.Text)
		if line.Source != "" {
			sources[line.Source] = struct{}{}
		}
	}

	traceIDs := o.extractor.Extract(lines)
	return traceIDs, len(sources), nil
}

// compile fetches full line sets per trace ID and builds CompiledTrace
// records, truncating at the byte cap per spec.md §4.7's edge case.
func (o *Orchestrator) compile(ctx context.Context, backend logbackend.LogBackend, traceIDs []string, env logbackend.Environment) ([]domain.CompiledTrace, error) {
	stepCtx, cancel := context.WithTimeout(ctx, o.timeouts.CollectTraces+o.timeouts.Compile)
	defer cancel()

	byTrace, err := backend.FetchByTraceIDs(stepCtx, traceIDs, env)
	if err != nil {
		return nil, err
	}

	traces := make([]domain.CompiledTrace, 0, len(traceIDs))
	for _, id := range traceIDs {
		traces = append(traces, buildCompiledTrace(id, byTrace[id], o.maxLogBytes, o.redactor))
	}
	return traces, nil
}

// buildCompiledTrace redacts each line before it is embedded in the
// trace: everything downstream (AnalyzeAgent prompts, VerifyAgent
// prompts, writeArtifact's JSON output) reads only scrubbed text.
func buildCompiledTrace(id string, rawLines []logbackend.Line, maxBytes int64, redactor *redact.Service) domain.CompiledTrace {
	trace := domain.CompiledTrace{TraceID: id}

	sourceSet := make(map[string]struct{})
	var total int64
	for _, line := range rawLines {
		lineBytes := int64(len(line.Text))
		if maxBytes > 0 && total+lineBytes > maxBytes {
			trace.Truncated = true
			break
		}
		total += lineBytes
		trace.Lines = append(trace.Lines, redactor.Redact(line.Text))
		if line.Source != "" {
			sourceSet[line.Source] = struct{}{}
		}
		if trace.TimestampFrom.IsZero() || line.Timestamp.Before(trace.TimestampFrom) {
			trace.TimestampFrom = line.Timestamp
		}
		if line.Timestamp.After(trace.TimestampTo) {
			trace.TimestampTo = line.Timestamp
		}
	}
	for src := range sourceSet {
		trace.SourceFiles = append(trace.SourceFiles, src)
	}
	return trace
}

// analyze fan-outs trace analysis up to o.concurrency (spec.md §4.7/§5).
// Results are written at their discovery index so artifact filenames
// stay deterministic regardless of completion order; per-trace failures
// are recorded and do not abort the run (spec.md §4.7 failure policy).
func (o *Orchestrator) analyze(ctx context.Context, query string, traces []domain.CompiledTrace) []domain.AnalysisArtifact {
	results := make([]domain.AnalysisArtifact, len(traces))
	sem := make(chan struct{}, o.concurrency)
	var wg sync.WaitGroup

	for i, trace := range traces {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, trace domain.CompiledTrace) {
			defer wg.Done()
			defer func() { <-sem }()

			stepCtx, cancel := context.WithTimeout(ctx, o.timeouts.AnalyzePerTrace)
			defer cancel()

			artifact, _, err := o.analyzeAgent.AnalyzeTrace(stepCtx, query, trace)
			if err != nil {
				slog.Warn("orchestrator: trace analysis failed, recording and continuing",
					"trace_id", trace.TraceID, "error", err)
				artifact = domain.AnalysisArtifact{
					Filename:       trace.TraceID + ".json",
					TraceID:        trace.TraceID,
					Recommendation: domain.RecommendationExclude,
				}
			}
			artifact.Truncated = trace.Truncated
			if err := o.writeArtifact(artifact); err != nil {
				slog.Warn("orchestrator: failed to persist analysis artifact",
					"trace_id", trace.TraceID, "error", err)
			}
			results[i] = artifact
		}(i, trace)
	}

	wg.Wait()
	return results
}

// writeArtifact persists artifact as canonical JSON beneath analysisDir,
// the directory later served by the download endpoint (spec.md §6:
// "output artifacts are written beneath a configured analysis directory").
// A no-op if analysisDir is unset (e.g. under test).
func (o *Orchestrator) writeArtifact(artifact domain.AnalysisArtifact) error {
	if o.analysisDir == "" {
		return nil
	}
	if err := os.MkdirAll(o.analysisDir, 0o755); err != nil {
		return fmt.Errorf("create analysis dir: %w", err)
	}
	data, err := canonjson.Marshal(artifact)
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	path := filepath.Join(o.analysisDir, artifact.Filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write artifact file: %w", err)
	}
	return nil
}

// verify runs VerifyAgent per trace against its analysis summary.
func (o *Orchestrator) verify(ctx context.Context, traces []domain.CompiledTrace, artifacts []domain.AnalysisArtifact, params domain.Parameters) ([]domain.VerificationResult, error) {
	results := make([]domain.VerificationResult, 0, len(traces))
	for i, trace := range traces {
		stepCtx, cancel := context.WithTimeout(ctx, o.timeouts.Verify)
		summary := summarize(artifacts[i])
		result, err := o.verifyAgent.Verify(stepCtx, trace.TraceID, summary, params)
		cancel()
		if err != nil {
			if errors.Is(err, agents.ErrParseFailed) {
				return nil, Wrap(KindLLMParseError, err)
			}
			return nil, Wrap(KindInternalError, err)
		}
		results = append(results, result)
	}
	return results, nil
}

// verifyEmpty produces the "no candidates" verification result for the
// empty-search edge case (spec.md §4.7).
func (o *Orchestrator) verifyEmpty(ctx context.Context, params domain.Parameters) (domain.VerificationResult, error) {
	stepCtx, cancel := context.WithTimeout(ctx, o.timeouts.Verify)
	defer cancel()

	result, err := o.verifyAgent.Verify(stepCtx, "", "no candidate traces were found for this query", params)
	if err != nil {
		if errors.Is(err, agents.ErrParseFailed) {
			return domain.VerificationResult{}, Wrap(KindLLMParseError, err)
		}
		return domain.VerificationResult{}, Wrap(KindInternalError, err)
	}
	return result, nil
}

func summarize(a domain.AnalysisArtifact) string {
	summary := fmt.Sprintf("relevance=%d confidence=%s recommendation=%s", a.RelevanceScore, a.Confidence, a.Recommendation)
	for _, f := range a.KeyFindings {
		summary += "\n- " + f
	}
	return summary
}

// fail emits the terminal `error` event, unless ctx was cancelled — a
// CANCELLED run emits neither `done` nor `error` (spec.md §7). A
// session abandoned for backpressure (ErrClientSlow) already has a
// full, unread queue; trying to push another event onto it would just
// block for another clientSlowTimeout and then be dropped, so this
// case only records the metric and lets the SSE layer surface
// CLIENT_SLOW to whatever client eventually reconnects.
func (o *Orchestrator) fail(ctx context.Context, sink Sink, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return
	}

	kind := KindInternalError
	var oe *Error
	if errors.As(err, &oe) {
		kind = oe.Kind
	}
	if errors.Is(err, session.ErrClientSlow) {
		kind = KindClientSlow
	}
	if o.metrics != nil {
		o.metrics.OrchestratorErrors.WithLabelValues(string(kind)).Inc()
	}
	if kind == KindClientSlow {
		return
	}
	_ = sink.Emit(context.Background(), "error", map[string]interface{}{
		"error": fmt.Sprintf("%s: %s", kind, err),
	})
}
