package api

// ChatResponse is returned by POST /api/chat.
type ChatResponse struct {
	SessionID string `json:"session_id"`
	StreamURL string `json:"streamUrl"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// CachePingResponse is returned by GET /cache/ping.
type CachePingResponse struct {
	Healthy   bool   `json:"healthy"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// CacheStatsResponse is returned by GET /cache/stats.
type CacheStatsResponse struct {
	L1Hits    int64 `json:"l1_hits"`
	L1Misses  int64 `json:"l1_misses"`
	L2Hits    int64 `json:"l2_hits"`
	L2Misses  int64 `json:"l2_misses"`
	L2Errors  int64 `json:"l2_errors"`
	Evictions int64 `json:"evictions"`
	L1Size    int   `json:"l1_size"`
}
