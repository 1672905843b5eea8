package orchestrator

import "fmt"

// Kind is one of the fatal error kinds the orchestrator can terminate a
// run with (spec.md §7). CACHE_L2_DOWN is intentionally absent here —
// it is non-fatal and only ever logged, never wrapped into an Error.
type Kind string

const (
	KindParamExtractionFailed Kind = "PARAM_EXTRACTION_FAILED"
	KindPlanFailed            Kind = "PLAN_FAILED"
	KindBackendUnavailable    Kind = "BACKEND_UNAVAILABLE"
	KindInputTooLarge         Kind = "INPUT_TOO_LARGE"
	KindLLMTimeout            Kind = "LLM_TIMEOUT"
	KindLLMParseError         Kind = "LLM_PARSE_ERROR"
	KindDBUnavailable         Kind = "DB_UNAVAILABLE"
	KindTimeout               Kind = "TIMEOUT"
	KindCancelled             Kind = "CANCELLED"
	KindInternalError         Kind = "INTERNAL_ERROR"
	KindClientSlow            Kind = "CLIENT_SLOW"
)

// Error wraps a causal error with the taxonomy kind it maps to on the
// `error` SSE event, following the teacher's sentinel-wrapped style
// (ErrAgentNotFound/ErrMaxConcurrentAgents in pkg/agent/orchestrator).
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap builds an *Error of the given kind.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}
