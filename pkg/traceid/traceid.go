// Package traceid extracts correlation/trace identifiers from raw log
// lines using an ordered list of regular expressions.
//
// Grounded on the AleutianFOSS trace-routing extractor's configurable,
// ordered pattern-list approach (other_examples/..._param_extractor.go),
// adapted from LLM-parameter extraction to pure regex trace-ID
// extraction — spec.md §4.4 specifies pattern matching, no LLM call.
package traceid

import "regexp"

// Pattern is one entry in the ordered extraction list. The first
// pattern (in list order) that matches a given line wins for that line.
type Pattern struct {
	Name  string
	Regex *regexp.Regexp
}

// DefaultPatterns returns the built-in pattern list: common trace/request
// ID conventions seen in structured and unstructured log lines.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{Name: "trace_id_field", Regex: regexp.MustCompile(`(?i)trace[_-]?id["':=\s]+([a-f0-9-]{8,})`)},
		{Name: "request_id_field", Regex: regexp.MustCompile(`(?i)request[_-]?id["':=\s]+([a-zA-Z0-9-]{8,})`)},
		{Name: "correlation_id_field", Regex: regexp.MustCompile(`(?i)correlation[_-]?id["':=\s]+([a-zA-Z0-9-]{8,})`)},
		{Name: "uuid", Regex: regexp.MustCompile(`\b([0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12})\b`)},
	}
}

var placeholders = map[string]struct{}{
	"null":      {},
	"0":         {},
	"-":         {},
	"undefined": {},
}

const minLen = 8

// Extractor holds a compiled, ordered pattern list.
type Extractor struct {
	patterns []Pattern
}

// New builds an Extractor from an ordered pattern list. Use
// DefaultPatterns() for the built-in set.
func New(patterns []Pattern) *Extractor {
	return &Extractor{patterns: patterns}
}

// Extract scans lines for trace identifiers. Extraction is token-level:
// a single line may contribute multiple identifiers if its winning
// pattern has multiple capture occurrences. Duplicates are collapsed;
// the returned order follows first-occurrence order across all lines.
func (e *Extractor) Extract(lines []string) []string {
	seen := make(map[string]struct{})
	var ordered []string

	for _, line := range lines {
		for _, p := range e.patterns {
			matches := p.Regex.FindAllStringSubmatch(line, -1)
			if len(matches) == 0 {
				continue
			}
			for _, m := range matches {
				if len(m) < 2 {
					continue
				}
				id := m[1]
				if !valid(id) {
					continue
				}
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
				ordered = append(ordered, id)
			}
			// First matching pattern wins for this line.
			break
		}
	}

	return ordered
}

func valid(id string) bool {
	if len(id) < minLen {
		return false
	}
	if _, isPlaceholder := placeholders[id]; isPlaceholder {
		return false
	}
	return true
}
