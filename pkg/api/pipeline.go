package api

import (
	"context"

	"github.com/codeready-toolchain/logforensics/pkg/orchestrator"
	"github.com/codeready-toolchain/logforensics/pkg/session"
)

// sessionSink adapts a *session.Session to orchestrator.Sink and
// captures the terminal status carried by the `done`/`error` events so
// runPipeline knows what to pass to Registry.Finish.
type sessionSink struct {
	sess   *session.Session
	status session.Status
}

func (s *sessionSink) Emit(ctx context.Context, name string, data interface{}) error {
	switch name {
	case "done":
		if m, ok := data.(map[string]interface{}); ok {
			switch m["status"] {
			case "needs_input":
				s.status = session.StatusNeedsInput
			default:
				s.status = session.StatusComplete
			}
		}
	case "error":
		s.status = session.StatusError
	}
	return s.sess.Emit(ctx, name, data)
}

// runPipeline drives orch against sess's context and marks sess finished
// in the registry once the run reaches a terminal state. A run that
// never emits a terminal event (e.g. CANCELLED, spec.md §7) leaves sess
// abandoned. Intended to run in its own goroutine, decoupled from the
// HTTP request that kicked it off.
func runPipeline(ctx context.Context, reg *session.Registry, sess *session.Session, orch *orchestrator.Orchestrator, req orchestrator.Request) {
	sess.SetStatus(session.StatusStreaming)
	sink := &sessionSink{sess: sess, status: session.StatusAbandoned}
	orch.Run(ctx, sink, req)
	reg.Finish(sess, sink.status)
}
