// Package domain holds the pipeline's shared data-model types (spec.md
// §3): the structures agents produce and the orchestrator threads
// through its staged run.
package domain

import "time"

// Parameters is the structured output of ParameterAgent.
type Parameters struct {
	TimeFrame *time.Time `json:"time_frame"`
	Domain    string     `json:"domain"`
	QueryKeys []string   `json:"query_keys"`
}

// PlanStep is one ordered step descriptor in a Plan.
type PlanStep struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Plan is the structured output of PlanningAgent.
type Plan struct {
	Steps             []PlanStep `json:"steps"`
	BlockingQuestions []string   `json:"blocking_questions"`
}

// NeedsClarification reports whether Plan has unresolved blocking questions.
func (p Plan) NeedsClarification() bool { return len(p.BlockingQuestions) > 0 }

// Recommendation is AnalyzeAgent/VerifyAgent's triage verdict for a trace.
type Recommendation string

const (
	RecommendationInclude Recommendation = "INCLUDE"
	RecommendationExclude Recommendation = "EXCLUDE"
	RecommendationReview  Recommendation = "REVIEW"
)

// ConfidenceLevel is AnalyzeAgent's self-reported confidence in a finding.
type ConfidenceLevel string

const (
	ConfidenceLow    ConfidenceLevel = "low"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceHigh   ConfidenceLevel = "high"
)

// AnalysisArtifact is one trace's forensic write-up, written to the
// output directory and reported in a Compiled Summary event.
type AnalysisArtifact struct {
	Filename       string          `json:"filename"`
	TraceID        string          `json:"trace_id"`
	RelevanceScore int             `json:"relevance_score"`
	Confidence     ConfidenceLevel `json:"confidence"`
	KeyFindings    []string        `json:"key_findings"`
	Recommendation Recommendation  `json:"recommendation"`
	Truncated      bool            `json:"truncated"`
}

// VerificationResult is VerifyAgent's per-trace output plus the run's
// aggregated summary.
type VerificationResult struct {
	TraceID        string         `json:"trace_id"`
	RelevanceScore int            `json:"relevance_score"`
	Reasoning      string         `json:"reasoning"`
	Recommendation Recommendation `json:"recommendation"`
}

// CompiledTrace maps a trace ID to the lines pulled for it plus
// derived metadata (spec.md §3).
type CompiledTrace struct {
	TraceID       string
	Lines         []string
	SourceFiles   []string
	TimestampFrom time.Time
	TimestampTo   time.Time
	Services      []string
	Truncated     bool
}
