package httpapi

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	wsadapter "scorekit/adapters/websocket"
	"scorekit/analytics"
	"scorekit/core"
	"scorekit/engine"
	"scorekit/leaderboard"
	"scorekit/realtime"
)

// Options configures the HTTP API surface.
type Options struct {
	// PathPrefix, if set, is prepended to all routes (e.g., "/api").
	PathPrefix string
	// AllowCORSOrigin, if non-empty, enables basic CORS with the given origin (use "*" for any).
	AllowCORSOrigin string
	// APIKeys, if non-empty, enables static API key auth via Authorization: Bearer or X-API-Key.
	APIKeys []string
	// RateLimitEnabled toggles rate limiting.
	RateLimitEnabled bool
	// RateLimitRPM is the allowed requests per minute per client key.
	RateLimitRPM int
	// RateLimitBurst defines burst capacity.
	RateLimitBurst int
	// Metrics, if set, observes every request and serves {prefix}/metrics.
	Metrics *analytics.Manager
}

type batchRequest struct {
	Events          []engine.EventInput `json:"events"`
	SkipDuplicates  bool                `json:"skip_duplicates"`
	ContinueOnError bool                `json:"continue_on_error"`
}

// NewMux builds an http.Handler exposing the scoring REST API and WebSocket stream.
// Routes:
//   - POST {prefix}/events
//   - POST {prefix}/events/batch
//   - GET  {prefix}/events?user=&type=&limit=&offset=
//   - GET  {prefix}/users/{id}/metrics
//   - GET  {prefix}/users/{id}/stats?timeframe=weekly
//   - GET  {prefix}/users/{id}/rank?category=learning&timeframe=all_time
//   - GET  {prefix}/leaderboards/{category}/{timeframe}
//   - GET  {prefix}/healthz
//   - GET  {prefix}/metrics (when Options.Metrics is set)
//   - WS   {prefix}/ws
func NewMux(svc *engine.Service, boards *leaderboard.Manager, hub *realtime.Hub, opts Options) http.Handler {
	mux := http.NewServeMux()

	// health
	mux.HandleFunc(withPrefix(opts.PathPrefix, "/healthz"), func(w http.ResponseWriter, r *http.Request) {
		healthCheck(w, r, svc)
	})

	if opts.Metrics != nil {
		mux.Handle(withPrefix(opts.PathPrefix, "/metrics"), opts.Metrics.Handler())
	}

	// WebSocket events
	if hub != nil {
		mux.Handle(withPrefix(opts.PathPrefix, "/ws"), wsadapter.Handler(hub))
	}

	// Events API
	mux.HandleFunc(withPrefix(opts.PathPrefix, "/events"), func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			handleCreateEvent(w, r, svc)
		case http.MethodGet:
			handleListEvents(w, r, svc)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", nil)
		}
	})
	mux.HandleFunc(withPrefix(opts.PathPrefix, "/events/batch"), func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", nil)
			return
		}
		handleCreateBatch(w, r, svc)
	})

	// Users API
	mux.HandleFunc(withPrefix(opts.PathPrefix, "/users/"), func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusNotFound, "not_found", "route not found", nil)
			return
		}
		parts := routeParts(r.URL.Path, opts.PathPrefix)
		if len(parts) < 3 {
			writeError(w, http.StatusNotFound, "not_found", "route not found", nil)
			return
		}
		user, err := core.NormalizeUserID(core.UserID(parts[1]))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_user", err.Error(), nil)
			return
		}
		switch parts[2] {
		case "metrics":
			m, err := svc.GetUserMetrics(r.Context(), user)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "internal", err.Error(), nil)
				return
			}
			writeJSON(w, m)
		case "stats":
			period := core.TimeframeAllTime
			if q := r.URL.Query().Get("timeframe"); q != "" {
				tf, ok := core.ParseTimeframe(q)
				if !ok {
					writeError(w, http.StatusBadRequest, "invalid_timeframe", "unknown timeframe "+q, nil)
					return
				}
				period = tf
			}
			stats, err := svc.GetPersonalStats(r.Context(), user, period)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "internal", err.Error(), nil)
				return
			}
			writeJSON(w, stats)
		case "rank":
			handleUserRank(w, r, boards, user)
		default:
			writeError(w, http.StatusNotFound, "not_found", "route not found", nil)
		}
	})

	// Leaderboards API
	mux.HandleFunc(withPrefix(opts.PathPrefix, "/leaderboards/"), func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusNotFound, "not_found", "route not found", nil)
			return
		}
		parts := routeParts(r.URL.Path, opts.PathPrefix)
		if len(parts) != 3 {
			writeError(w, http.StatusNotFound, "not_found", "route not found", nil)
			return
		}
		category, ok := core.ParseCategory(parts[1])
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_category", "unknown category "+parts[1], nil)
			return
		}
		timeframe, ok := core.ParseTimeframe(parts[2])
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_timeframe", "unknown timeframe "+parts[2], nil)
			return
		}
		board := boards.GetLeaderboard(category, timeframe)
		if board == nil {
			writeError(w, http.StatusNotFound, "not_built", "leaderboard not built yet", nil)
			return
		}
		writeJSON(w, board)
	})

	var handler http.Handler = mux
	if opts.AllowCORSOrigin != "" {
		handler = withCORS(handler, opts.AllowCORSOrigin)
	}
	if len(opts.APIKeys) > 0 {
		handler = withAPIKeyAuth(handler, opts.APIKeys)
	}
	if opts.RateLimitEnabled && opts.RateLimitRPM > 0 && opts.RateLimitBurst > 0 {
		handler = withRateLimit(handler, opts.RateLimitRPM, opts.RateLimitBurst)
	}
	if opts.Metrics != nil {
		handler = withObservation(handler, opts.Metrics)
	}
	return handler
}

// Handlers

func handleCreateEvent(w http.ResponseWriter, r *http.Request, svc *engine.Service) {
	var in engine.EventInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "malformed JSON body", nil)
		return
	}
	ev, err := svc.CreateEvent(r.Context(), in)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, ev)
}

func handleCreateBatch(w http.ResponseWriter, r *http.Request, svc *engine.Service) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "malformed JSON body", nil)
		return
	}
	created, err := svc.CreateBatch(r.Context(), req.Events, engine.BatchOptions{
		SkipDuplicates:  req.SkipDuplicates,
		ContinueOnError: req.ContinueOnError,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "batch_failed", err.Error(), map[string]any{"created": len(created)})
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, map[string]any{"events": created, "created": len(created)})
}

func handleListEvents(w http.ResponseWriter, r *http.Request, svc *engine.Service) {
	f, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_filter", err.Error(), nil)
		return
	}
	events, err := svc.GetEvents(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error(), nil)
		return
	}
	writeJSON(w, map[string]any{"events": events, "count": len(events)})
}

func handleUserRank(w http.ResponseWriter, r *http.Request, boards *leaderboard.Manager, user core.UserID) {
	category := core.CategoryLearning
	if q := r.URL.Query().Get("category"); q != "" {
		c, ok := core.ParseCategory(q)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_category", "unknown category "+q, nil)
			return
		}
		category = c
	}
	timeframe := core.TimeframeAllTime
	if q := r.URL.Query().Get("timeframe"); q != "" {
		tf, ok := core.ParseTimeframe(q)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_timeframe", "unknown timeframe "+q, nil)
			return
		}
		timeframe = tf
	}
	rank, ok := boards.UserRank(user, category, timeframe)
	writeJSON(w, map[string]any{
		"user_id":   user,
		"category":  category,
		"timeframe": timeframe,
		"rank":      rank,
		"ranked":    ok,
	})
}

func filterFromQuery(r *http.Request) (core.EventFilter, error) {
	var f core.EventFilter
	q := r.URL.Query()
	if v := q.Get("user"); v != "" {
		user, err := core.NormalizeUserID(core.UserID(v))
		if err != nil {
			return f, err
		}
		f.UserID = user
	}
	if v := q.Get("type"); v != "" {
		f.EventTypes = []core.EventType{core.EventType(v)}
	}
	if v := q.Get("category"); v != "" {
		c, ok := core.ParseCategory(v)
		if !ok {
			return f, errors.New("unknown category " + v)
		}
		f.Categories = []core.Category{c}
	}
	if v := q.Get("since"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, errors.New("since must be RFC3339")
		}
		f.Since = ts
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, errors.New("limit must be a non-negative integer")
		}
		f.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, errors.New("offset must be a non-negative integer")
		}
		f.Offset = n
	}
	return f, nil
}

// Helpers

// healthCheck verifies the service is working properly
func healthCheck(w http.ResponseWriter, r *http.Request, svc *engine.Service) {
	ctx := r.Context()

	// Verify storage works by trying to fetch a dummy user
	// This is a safe, lightweight check that doesn't affect real data
	dummyUser := core.UserID("healthcheck_probe")
	_, err := svc.GetUserMetrics(ctx, dummyUser)

	status := map[string]any{
		"status": "healthy",
		"checks": map[string]any{
			"storage": "ok",
		},
	}

	if err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		status["status"] = "unhealthy"
		status["checks"].(map[string]any)["storage"] = "failed"
	} else {
		w.WriteHeader(http.StatusOK)
	}

	writeJSON(w, status)
}

func withPrefix(prefix, path string) string {
	if prefix == "" || prefix == "/" {
		return path
	}
	if prefix[len(prefix)-1] == '/' {
		return prefix[:len(prefix)-1] + path
	}
	return prefix + path
}

func routeParts(path, prefix string) []string {
	path = strings.TrimPrefix(path, prefix)
	if path == "" || path[0] != '/' {
		path = "/" + path
	}
	return split(path, '/')
}

func split(p string, sep rune) []string {
	var parts []string
	cur := make([]rune, 0, len(p))
	// trim leading '/'
	for len(p) > 0 && p[0] == '/' {
		p = p[1:]
	}
	for _, r := range p {
		if r == sep {
			if len(cur) > 0 {
				parts = append(parts, string(cur))
				cur = cur[:0]
			}
			continue
		}
		cur = append(cur, r)
	}
	if len(cur) > 0 {
		parts = append(parts, string(cur))
	}
	return parts
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiError{Code: code, Message: msg, Details: details})
}

// withCORS wraps a handler with a minimal CORS policy.
func withCORS(next http.Handler, origin string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Vary", "Origin")
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withAPIKeyAuth enforces a shared API key list.
func withAPIKeyAuth(next http.Handler, apiKeys []string) http.Handler {
	allowed := make(map[string]struct{}, len(apiKeys))
	for _, k := range apiKeys {
		k = strings.TrimSpace(k)
		if k != "" {
			allowed[k] = struct{}{}
		}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := extractAPIKey(r)
		if key == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing API key", nil)
			return
		}
		if _, ok := allowed[key]; !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid API key", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withRateLimit applies a simple token-bucket limiter per client key.
func withRateLimit(next http.Handler, rpm int, burst int) http.Handler {
	limiter := newRateLimiter(rpm, burst)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientKey(r)
		if !limiter.allow(key) {
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withObservation records request counts and latency per endpoint.
func withObservation(next http.Handler, m *analytics.Manager) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.ObserveHTTP(r.URL.Path, r.Method, rec.status, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func extractAPIKey(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	return ""
}

// clientKey uses API key if present, otherwise remote IP.
func clientKey(r *http.Request) string {
	if key := extractAPIKey(r); key != "" {
		return key
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type rateLimiter struct {
	rpm   float64
	burst float64
	mu    sync.Mutex
	b     map[string]*bucket
}

type bucket struct {
	tokens float64
	last   time.Time
}

func newRateLimiter(rpm, burst int) *rateLimiter {
	return &rateLimiter{
		rpm:   float64(rpm),
		burst: float64(burst),
		b:     make(map[string]*bucket),
	}
}

func (l *rateLimiter) allow(key string) bool {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.b[key]
	if !ok {
		l.b[key] = &bucket{tokens: l.burst - 1, last: now}
		return true
	}

	elapsed := now.Sub(b.last).Minutes()
	b.tokens += elapsed * l.rpm
	if b.tokens > l.burst {
		b.tokens = l.burst
	}
	if b.tokens < 1 {
		b.last = now
		return false
	}
	b.tokens--
	b.last = now
	return true
}
