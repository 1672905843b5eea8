// Package remote implements the LogBackend adapter for HTTPS log
// sources: a thin JSON-over-HTTP client with capped exponential backoff
// on 429/5xx, grounded on the teacher's pkg/runbook.GitHubClient request
// shape (bearer auth header, context-scoped requests, status-code
// checking) generalized from a single-purpose GitHub client to a
// general remote log query/fetch client.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/codeready-toolchain/logforensics/pkg/logbackend"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 3
)

// Adapter implements logbackend.LogBackend over an HTTPS log query API.
type Adapter struct {
	httpClient *http.Client
	token      string
	maxRetries uint64
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithToken sets the bearer token sent on every request.
func WithToken(token string) Option {
	return func(a *Adapter) { a.token = token }
}

// WithTimeout overrides the per-request timeout (default 30s).
func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) { a.httpClient.Timeout = d }
}

// New builds a remote Adapter.
func New(opts ...Option) *Adapter {
	a := &Adapter{
		httpClient: &http.Client{Timeout: defaultTimeout},
		maxRetries: defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type findRequest struct {
	Domain    string   `json:"domain,omitempty"`
	QueryKeys []string `json:"query_keys,omitempty"`
	Since     *int64   `json:"since,omitempty"`
	MaxBytes  int64    `json:"max_bytes,omitempty"`
}

type findResponse struct {
	Lines []remoteLine `json:"lines"`
}

type fetchRequest struct {
	TraceIDs []string `json:"trace_ids"`
	MaxBytes int64    `json:"max_bytes,omitempty"`
}

type fetchResponse struct {
	Matches map[string][]remoteLine `json:"matches"`
}

type remoteLine struct {
	Timestamp int64             `json:"timestamp"`
	Text      string            `json:"text"`
	Source    string            `json:"source"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// FindCandidates posts params to env.BackendURL's /search endpoint and
// returns the matching lines wrapped in an in-memory Cursor.
func (a *Adapter) FindCandidates(ctx context.Context, params logbackend.Parameters, env logbackend.Environment) (logbackend.Cursor, error) {
	req := findRequest{Domain: params.Domain, QueryKeys: params.QueryKeys, MaxBytes: env.MaxBytes}
	if params.TimeFrame != nil {
		ts := params.TimeFrame.Unix()
		req.Since = &ts
	}

	var resp findResponse
	if err := a.doJSON(ctx, env.BackendURL+"/search", req, &resp); err != nil {
		return nil, fmt.Errorf("remote: search: %w", err)
	}

	lines := make([]logbackend.Line, 0, len(resp.Lines))
	for _, l := range resp.Lines {
		lines = append(lines, toLine(l))
	}
	return &sliceCursor{lines: lines}, nil
}

// FetchByTraceIDs posts ids to env.BackendURL's /fetch endpoint and
// returns the per-ID line groups the remote source reports.
func (a *Adapter) FetchByTraceIDs(ctx context.Context, ids []string, env logbackend.Environment) (map[string][]logbackend.Line, error) {
	req := fetchRequest{TraceIDs: ids, MaxBytes: env.MaxBytes}

	var resp fetchResponse
	if err := a.doJSON(ctx, env.BackendURL+"/fetch", req, &resp); err != nil {
		return nil, fmt.Errorf("remote: fetch: %w", err)
	}

	result := make(map[string][]logbackend.Line, len(resp.Matches))
	for id, ls := range resp.Matches {
		lines := make([]logbackend.Line, 0, len(ls))
		for _, l := range ls {
			lines = append(lines, toLine(l))
		}
		result[id] = lines
	}
	return result, nil
}

// doJSON posts body to url as JSON and decodes the response into out,
// retrying up to maxRetries times with capped exponential backoff on
// HTTP 429 and 5xx responses.
func (a *Adapter) doJSON(ctx context.Context, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), a.maxRetries)
	policy = backoff.WithContext(policy, ctx)

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		if a.token != "" {
			req.Header.Set("Authorization", "Bearer "+a.token)
		}

		resp, err := a.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("do request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("remote backend returned HTTP %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("remote backend returned HTTP %d", resp.StatusCode))
		}

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("read response body: %w", err))
		}
		if err := json.Unmarshal(data, out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode response: %w", err))
		}
		return nil
	}

	return backoff.Retry(operation, policy)
}

func toLine(l remoteLine) logbackend.Line {
	return logbackend.Line{
		Timestamp: time.Unix(l.Timestamp, 0).UTC(),
		Text:      l.Text,
		Source:    l.Source,
		Fields:    l.Fields,
	}
}

type sliceCursor struct {
	lines []logbackend.Line
	idx   int
}

func (c *sliceCursor) Next(ctx context.Context) (logbackend.Line, bool, error) {
	if ctx.Err() != nil {
		return logbackend.Line{}, false, ctx.Err()
	}
	if c.idx >= len(c.lines) {
		return logbackend.Line{}, false, nil
	}
	line := c.lines[c.idx]
	c.idx++
	return line, true, nil
}

func (c *sliceCursor) Close() error { return nil }
