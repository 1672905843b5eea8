package traceid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract_TraceIDField(t *testing.T) {
	e := New(DefaultPatterns())
	lines := []string{`level=info trace_id="abcdef1234567890" msg="started"`}
	ids := e.Extract(lines)
	assert.Equal(t, []string{"abcdef1234567890"}, ids)
}

func TestExtract_RejectsPlaceholdersAndShortValues(t *testing.T) {
	e := New(DefaultPatterns())
	lines := []string{
		`trace_id=null`,
		`trace_id=0`,
		`trace_id=-`,
		`trace_id=undefined`,
		`trace_id=short1`,
	}
	ids := e.Extract(lines)
	assert.Empty(t, ids)
}

func TestExtract_DedupAndFirstOccurrenceOrder(t *testing.T) {
	e := New(DefaultPatterns())
	lines := []string{
		`trace_id=bbbbbbbb1111`,
		`trace_id=aaaaaaaa2222`,
		`trace_id=bbbbbbbb1111`,
	}
	ids := e.Extract(lines)
	assert.Equal(t, []string{"bbbbbbbb1111", "aaaaaaaa2222"}, ids)
}

func TestExtract_UUIDFallback(t *testing.T) {
	e := New(DefaultPatterns())
	lines := []string{`request failed for 123e4567-e89b-12d3-a456-426614174000`}
	ids := e.Extract(lines)
	assert.Equal(t, []string{"123e4567-e89b-12d3-a456-426614174000"}, ids)
}

func TestExtract_Deterministic(t *testing.T) {
	e := New(DefaultPatterns())
	lines := []string{`trace_id=deadbeef1234`, `request_id=req-0000abcd`}
	a := e.Extract(lines)
	b := e.Extract(lines)
	assert.Equal(t, a, b)
}
