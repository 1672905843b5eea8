// Package sse streams one session's events over text/event-stream.
// Grounded on the teacher's pkg/events.ConnectionManager (single
// connection per subscriber, write-timeout-bounded sends) but
// translated from its WebSocket push model to SSE, since spec.md
// specifies SSE rather than WebSocket for this module's external
// interface (§1, §6). An attacher on a session whose stream reader is
// still attached gets ErrSessionBusy, matching spec.md §5's
// single-reader-per-session rule; once that reader detaches, a new one
// may attach.
package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/codeready-toolchain/logforensics/pkg/session"
)

// ErrSessionBusy is returned when a session already has an attached
// stream reader.
var ErrSessionBusy = errors.New("sse: SESSION_BUSY")

// ErrStreamingUnsupported is returned if the ResponseWriter cannot flush.
var ErrStreamingUnsupported = errors.New("sse: response writer does not support flushing")

// Streamer writes one session's event queue to an http.ResponseWriter
// as Server-Sent Events.
type Streamer struct {
	graceWindow time.Duration
}

// New builds a Streamer. graceWindow is how long a disconnected client
// may reconnect before the session's root context is cancelled
// (spec.md §5, default ~5s).
func New(graceWindow time.Duration) *Streamer {
	return &Streamer{graceWindow: graceWindow}
}

// Stream attaches to sess and writes its events to w until the event
// channel closes (pipeline task finished) or the client disconnects.
// It blocks for the duration of the stream.
func (s *Streamer) Stream(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	ch, detach, err := sess.Attach()
	if err != nil {
		if errors.Is(err, session.ErrAlreadyAttached) {
			return ErrSessionBusy
		}
		return err
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		detach()
		return ErrStreamingUnsupported
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	defer func() {
		detach()
		go s.armGraceTimer(sess)
	}()

	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				if sess.Status() == session.StatusAbandoned {
					_ = writeEvent(w, session.Event{Name: "error", Data: map[string]interface{}{
						"error": "CLIENT_SLOW: session abandoned, client did not keep up with event stream",
					}})
					flusher.Flush()
				}
				return nil
			}
			if err := writeEvent(w, evt); err != nil {
				return err
			}
			flusher.Flush()
		case <-r.Context().Done():
			return nil
		}
	}
}

// armGraceTimer cancels sess's root context if nobody reattaches within
// the grace window (spec.md §5 reconnection grace).
func (s *Streamer) armGraceTimer(sess *session.Session) {
	time.Sleep(s.graceWindow)
	if !sess.Attached() {
		sess.Cancel()
	}
}

func writeEvent(w http.ResponseWriter, evt session.Event) error {
	data, err := json.Marshal(evt.Data)
	if err != nil {
		return fmt.Errorf("sse: marshal event %q: %w", evt.Name, err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Name, data); err != nil {
		return fmt.Errorf("sse: write event %q: %w", evt.Name, err)
	}
	return nil
}
