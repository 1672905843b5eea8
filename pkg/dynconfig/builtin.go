package dynconfig

import "sync"

// Project is the resolved view of a project record: its code, display
// name, and routing kind. Only the compiled-in fallbacks carry their own
// routing kind; projects loaded from the database are always "file".
type Project struct {
	Code           string
	Name           string
	LogSourceType  string // "file" or "remote"
}

// BuiltinConfig holds the compiled-in fallback prompts/projects used
// when the DB has no active record (or the USE_DB_* flag is off).
// Grounded on the teacher's config.BuiltinConfig singleton
// (sync.Once-initialized, populated once at process start).
type BuiltinConfig struct {
	Prompts  map[string]string
	Projects map[string]Project
}

var (
	builtinOnce sync.Once
	builtin     *BuiltinConfig
)

// GetBuiltinConfig returns the process-wide compiled-in defaults.
func GetBuiltinConfig() *BuiltinConfig {
	builtinOnce.Do(func() {
		builtin = &BuiltinConfig{
			Prompts: map[string]string{
				"parameter_extraction": defaultParameterExtractionPrompt,
				"planning":             defaultPlanningPrompt,
				"analyze_trace":        defaultAnalyzeTracePrompt,
				"analyze_entry":        defaultAnalyzeEntryPrompt,
				"analyze_quality":      defaultAnalyzeQualityPrompt,
				"verify":               defaultVerifyPrompt,
			},
			Projects: map[string]Project{
				"default":  {Code: "default", Name: "Default", LogSourceType: "file"},
				"payments": {Code: "payments", Name: "Payments", LogSourceType: "file"},
				"switch":   {Code: "switch", Name: "Switch", LogSourceType: "remote"},
				"gateway":  {Code: "gateway", Name: "Gateway", LogSourceType: "remote"},
			},
		}
	})
	return builtin
}

const defaultParameterExtractionPrompt = `Extract structured search parameters from the user's incident query.
Allowed domains: {{.AllowedDomains}}
Allowed query keys: {{.AllowedKeys}}
Query: {{.Query}}
Return strict JSON with fields: time_frame (ISO date or null), domain, query_keys.`

const defaultPlanningPrompt = `Given extracted parameters {{.Parameters}} for project {{.ProjectName}},
produce an ordered plan of search steps as strict JSON with fields: steps, blocking_questions.
If information required to search is missing, list it in blocking_questions instead of guessing.`

const defaultAnalyzeTracePrompt = `Analyze the following compiled trace for relevance to the incident
described as {{.Query}}. Trace: {{.Trace}}
Return strict JSON with fields: relevance_score, confidence, key_findings, recommendation.`

const defaultAnalyzeEntryPrompt = `Analyze this single log entry in the context of trace {{.TraceID}}:
{{.Entry}}
Return strict JSON with fields: relevant, note.`

const defaultAnalyzeQualityPrompt = `Assess whether the collected evidence for trace {{.TraceID}} is
sufficient to support the recommendation {{.Recommendation}}.
Return strict JSON with fields: quality_score, rationale.`

const defaultVerifyPrompt = `Verify the following findings against the configured context rules.
Findings: {{.Findings}}
Rules: {{.Rules}}
Return strict JSON with fields: relevance_score, reasoning, recommendation.`
