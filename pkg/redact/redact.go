// Package redact scrubs financial-domain secrets (card numbers, account
// numbers, phone numbers) from log lines before they are embedded in LLM
// prompts or written to artifact files.
//
// Adapted from the teacher's pkg/masking package (compiled regex pattern
// registry, fail-closed on masker error), narrowed from Kubernetes
// secret patterns to a financial-log pattern set.
package redact

import (
	"log/slog"
	"regexp"
)

// Pattern is a compiled regex with its replacement text.
type Pattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
}

// builtinPatterns mirrors the teacher's compileBuiltinPatterns shape but
// is fixed at construction time rather than loaded from MCP server
// config, since this domain has no per-server masking configuration.
func builtinPatterns() []Pattern {
	return []Pattern{
		{
			Name:        "pan",
			Regex:       regexp.MustCompile(`\b(?:\d[ -]?){13,19}\b`),
			Replacement: "[REDACTED_PAN]",
		},
		{
			Name:        "account_number",
			Regex:       regexp.MustCompile(`(?i)(account[_\s-]?(?:no|number|#)\s*[:=]?\s*)\d{6,17}`),
			Replacement: "${1}[REDACTED_ACCOUNT]",
		},
		{
			Name:        "phone",
			Regex:       regexp.MustCompile(`\b(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`),
			Replacement: "[REDACTED_PHONE]",
		},
	}
}

// Service applies compiled redaction patterns to log lines. Created once
// at startup (singleton), thread-safe and stateless aside from the
// compiled patterns.
type Service struct {
	patterns []Pattern
}

// New compiles the built-in pattern set and appends extra after it as
// given. Extra patterns arrive already compiled; New does not validate,
// log or skip them.
func New(extra ...Pattern) *Service {
	s := &Service{patterns: builtinPatterns()}
	s.patterns = append(s.patterns, extra...)
	return s
}

// Redact applies every pattern to line in order. On no match, returns
// the original string unchanged. Redaction never returns an error; the
// fail-closed variant is MaskOrFailClosed.
func (s *Service) Redact(line string) string {
	if line == "" {
		return line
	}
	out := line
	for _, p := range s.patterns {
		out = p.Regex.ReplaceAllString(out, p.Replacement)
	}
	return out
}

// RedactLines redacts each line, preserving order, into a new slice;
// lines itself is not modified.
func (s *Service) RedactLines(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = s.Redact(l)
	}
	return out
}

// MaskOrFailClosed redacts content and reports whether redaction could be
// fully trusted. Grounded on the teacher's fail-closed MaskToolResult
// behavior: if the underlying regex engine were to panic (the built-in
// patterns are compiled with regexp.MustCompile), callers should prefer
// dropping the content over leaking it. Kept here as an explicit
// fail-closed entrypoint for call sites (LLM prompt assembly) where that
// matters more than for artifact files.
func (s *Service) MaskOrFailClosed(content string) (masked string, safe bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("redact: panic during masking, failing closed", "panic", r)
			masked = "[REDACTED: redaction failure — content withheld]"
			safe = false
		}
	}()
	return s.Redact(content), true
}
