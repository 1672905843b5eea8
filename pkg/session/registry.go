package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/logforensics/pkg/telemetry"
)

// Registry tracks in-flight and recently-finished sessions in memory.
// Adapted from the teacher's pkg/session.Manager (same map+RWMutex
// shape), generalized with an absolute per-session timeout derived from
// SESSION_TIMEOUT_SECONDS (spec.md §6).
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	timeout  time.Duration
	metrics  *telemetry.Metrics
}

// NewRegistry builds a Registry whose sessions are cancelled after timeout.
func NewRegistry(timeout time.Duration) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		timeout:  timeout,
	}
}

// SetMetrics attaches telemetry so Create/Finish keep ActiveSessions
// accurate. Optional: a Registry built without it just skips the gauge.
func (r *Registry) SetMetrics(m *telemetry.Metrics) {
	r.metrics = m
}

// Create registers a new session and returns its handle plus a context
// derived from parent, bounded by the registry's absolute timeout. The
// returned context is what the orchestrator's pipeline task must run
// under.
func (r *Registry) Create(parent context.Context) (*Session, context.Context) {
	id := uuid.New().String()
	ctx, cancel := context.WithTimeout(parent, r.timeout)

	s := newSession(id, cancel)

	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.ActiveSessions.Inc()
	}

	return s, ctx
}

// Get retrieves a session by ID.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session: not found: %s", id)
	}
	return s, nil
}

// Finish marks status, closes the event channel, and releases the
// session's root context. Called exactly once by the pipeline task when
// it reaches a terminal state (DONE or ERROR).
func (r *Registry) Finish(s *Session, status Status) {
	s.SetStatus(status)
	s.closeEvents()
	s.Cancel()

	if r.metrics != nil {
		r.metrics.ActiveSessions.Dec()
	}
}

// Delete removes a session from the registry. Nothing in this module
// calls it: finished sessions stay registered for the life of the
// process.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}
