// Package logbackend defines the uniform LogBackend interface consulted
// by the orchestrator's SEARCH and COLLECT_TRACES steps, plus the two
// concrete adapters (file, remote) under its subpackages.
package logbackend

import (
	"context"
	"time"
)

// Line is one raw log line plus its provenance.
type Line struct {
	Timestamp time.Time
	Text      string
	Source    string // filename or stream ID
	Fields    map[string]string
}

// Parameters are the search parameters extracted by ParameterAgent,
// translated by each adapter into its own backend-specific query shape.
type Parameters struct {
	TimeFrame *time.Time
	Domain    string
	QueryKeys []string
}

// Environment carries the per-project, per-environment routing
// parameters resolved by ConfigStore (base path for file, namespace/URL
// for remote).
type Environment struct {
	Name        string
	BackendRoot string
	BackendURL  string
	MaxBytes    int64
}

// Cursor iterates matching lines without requiring the whole result set
// to be materialized in memory at once.
type Cursor interface {
	Next(ctx context.Context) (Line, bool, error)
	Close() error
}

// LogBackend is the adapter contract both the file and remote
// implementations satisfy.
type LogBackend interface {
	FindCandidates(ctx context.Context, params Parameters, env Environment) (Cursor, error)
	FetchByTraceIDs(ctx context.Context, ids []string, env Environment) (map[string][]Line, error)
}
