package sse

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/logforensics/pkg/session"
)

func TestStreamer_WritesEventsUntilChannelCloses(t *testing.T) {
	reg := session.NewRegistry(time.Minute)
	sess, ctx := reg.Create(context.Background())
	require.NoError(t, sess.Emit(ctx, "Extracted Parameters", map[string]string{"domain": "payments"}))
	reg.Finish(sess, session.StatusComplete)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/chat/stream/"+sess.ID, nil)

	streamer := New(5 * time.Second)
	err := streamer.Stream(w, req, sess)
	require.NoError(t, err)

	body := w.Body.String()
	assert.Contains(t, body, "event: Extracted Parameters")
	assert.Contains(t, body, `"domain":"payments"`)
	assert.True(t, strings.HasSuffix(body, "\n\n"))
}

func TestStreamer_SecondAttachReturnsSessionBusy(t *testing.T) {
	reg := session.NewRegistry(time.Minute)
	sess, _ := reg.Create(context.Background())

	_, detach, err := sess.Attach()
	require.NoError(t, err)
	defer detach()

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/chat/stream/"+sess.ID, nil)

	streamer := New(5 * time.Second)
	err = streamer.Stream(w, req, sess)
	assert.ErrorIs(t, err, ErrSessionBusy)
}

func TestStreamer_ClientDisconnectStopsStreamWithoutError(t *testing.T) {
	reg := session.NewRegistry(time.Minute)
	sess, _ := reg.Create(context.Background())

	reqCtx, cancel := context.WithCancel(context.Background())
	cancel()

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/chat/stream/"+sess.ID, nil).WithContext(reqCtx)

	streamer := New(5 * time.Second)
	err := streamer.Stream(w, req, sess)
	assert.NoError(t, err)
}

func TestStreamer_AbandonedSessionEmitsClientSlowError(t *testing.T) {
	reg := session.NewRegistry(time.Minute)
	sess, _ := reg.Create(context.Background())
	reg.Finish(sess, session.StatusAbandoned)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/chat/stream/"+sess.ID, nil)

	streamer := New(5 * time.Second)
	err := streamer.Stream(w, req, sess)
	require.NoError(t, err)

	body := w.Body.String()
	assert.Contains(t, body, "event: error")
	assert.Contains(t, body, "CLIENT_SLOW")
}
