package llmprovider

import (
	"context"
	"fmt"
	"sync"
)

// StubProvider is an in-memory Provider for tests: each call to
// Complete pops the next scripted response (or error) off a queue.
type StubProvider struct {
	mu        sync.Mutex
	responses []Response
	errs      []error
	calls     []Request
}

// NewStub builds a StubProvider with no scripted responses.
func NewStub() *StubProvider {
	return &StubProvider{}
}

// PushResponse queues a successful response to return on the next call.
func (s *StubProvider) PushResponse(r Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, r)
	s.errs = append(s.errs, nil)
}

// PushText is a convenience wrapper for PushResponse with just text.
func (s *StubProvider) PushText(text string) {
	s.PushResponse(Response{Text: text})
}

// PushError queues a failing call.
func (s *StubProvider) PushError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, Response{})
	s.errs = append(s.errs, err)
}

// Complete returns the next scripted response/error pair, or an error
// if the queue is exhausted.
func (s *StubProvider) Complete(ctx context.Context, req Request) (Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req)

	if len(s.responses) == 0 {
		return Response{}, fmt.Errorf("llmprovider: stub has no scripted responses left")
	}
	resp, err := s.responses[0], s.errs[0]
	s.responses, s.errs = s.responses[1:], s.errs[1:]
	return resp, err
}

// Calls returns every request Complete has received, in order.
func (s *StubProvider) Calls() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.calls))
	copy(out, s.calls)
	return out
}
