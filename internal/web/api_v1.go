package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/yuin/goldmark"

	"github.com/roasbeef/smaart/internal/enrich"
	"github.com/roasbeef/smaart/internal/inference"
	"github.com/roasbeef/smaart/internal/orchestrator"
	"github.com/roasbeef/smaart/internal/query"
	"github.com/roasbeef/smaart/internal/source"
)

// Direct-text detection thresholds. A long or multi-word query is
// treated as text to summarize verbatim rather than a topic to search.
const (
	directTextMinChars = 30
	directTextMinWords = 5
)

// SummarizeRequest is the JSON body of POST /api/v1/summarize.
type SummarizeRequest struct {
	Query     string   `json:"query"`
	Hours     int      `json:"hours,omitempty"`
	Sources   []string `json:"sources,omitempty"`
	MaxLength int      `json:"max_length,omitempty"`

	// Render selects the summary output format: "" or "text" for
	// plain text, "html" to additionally render the summary as HTML.
	Render string `json:"render,omitempty"`
}

// SummarizeResponse is the JSON response of POST /api/v1/summarize.
type SummarizeResponse struct {
	Query            string           `json:"query"`
	Summary          string           `json:"summary"`
	SummaryHTML      string           `json:"summary_html,omitempty"`
	Sources          map[string]int   `json:"sources"`
	Entities         []string         `json:"entities"`
	Sentiment        enrich.Sentiment `json:"sentiment"`
	Confidence       float64          `json:"confidence"`
	GeneratedAt      time.Time        `json:"generated_at"`
	ProcessingTimeMS int64            `json:"processing_time_ms"`
	FromCache        bool             `json:"from_cache"`
}

// APIError represents an API error response.
type APIError struct {
	Error APIErrorDetail `json:"error"`
}

// APIErrorDetail contains error details.
type APIErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// registerAPIV1Routes registers all /api/v1/ routes.
func (s *Server) registerAPIV1Routes() {
	// CORS middleware for API routes.
	corsMiddleware := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			}

			// Handle preflight requests.
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next(w, r)
		}
	}

	// JSON middleware for API routes.
	jsonMiddleware := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			next(w, r)
		}
	}

	api := func(handler http.HandlerFunc) http.HandlerFunc {
		return corsMiddleware(jsonMiddleware(handler))
	}

	s.mux.HandleFunc("/api/v1/summarize", api(s.handleAPIV1Summarize))
	s.mux.HandleFunc("/api/v1/trending", api(s.handleAPIV1Trending))
	s.mux.HandleFunc("/api/v1/health", api(s.handleAPIV1Health))
	s.mux.HandleFunc("/", api(s.handleRoot))
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("Error encoding JSON response", "error", err)
	}
}

// writeError writes an error response.
func (s *Server) writeError(w http.ResponseWriter, status int, code,
	message string) {

	s.writeJSON(w, status, APIError{
		Error: APIErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// handleRoot handles GET / with a service banner.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.writeError(w, http.StatusNotFound, "not_found", "Not found")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"service": "smaart",
		"endpoints": []string{
			"POST /api/v1/summarize",
			"GET /api/v1/trending",
			"GET /api/v1/health",
		},
	})
}

// handleAPIV1Summarize handles POST /api/v1/summarize.
func (s *Server) handleAPIV1Summarize(w http.ResponseWriter,
	r *http.Request) {

	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed,
			"method_not_allowed", "Method not allowed")
		return
	}

	var req SummarizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_body",
			"Request body must be valid JSON")
		return
	}

	q, err := buildQuery(req)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_query",
			err.Error())
		return
	}

	start := time.Now()
	rec, err := s.orch.Resolve(r.Context(), q)
	if err != nil {
		s.writeResolveError(w, err)
		return
	}

	resp := SummarizeResponse{
		Query:            rec.Query,
		Summary:          rec.Summary,
		Sources:          rec.Sources,
		Entities:         rec.Entities,
		Sentiment:        rec.Sentiment,
		Confidence:       rec.Confidence,
		GeneratedAt:      rec.GeneratedAt,
		ProcessingTimeMS: rec.ProcessingTimeMS,
		FromCache:        rec.FromCache,
	}
	if resp.Entities == nil {
		resp.Entities = []string{}
	}

	// A cache hit reports this request's own latency, not the stored
	// generation time.
	if rec.FromCache {
		resp.ProcessingTimeMS = time.Since(start).Milliseconds()
	}

	if strings.EqualFold(req.Render, "html") {
		var buf bytes.Buffer
		if err := goldmark.Convert(
			[]byte(rec.Summary), &buf,
		); err != nil {
			s.log.Warn("HTML render failed", "error", err)
		} else {
			resp.SummaryHTML = buf.String()
		}
	}

	s.writeJSON(w, http.StatusOK, resp)
}

// writeResolveError maps orchestrator failures onto HTTP statuses.
func (s *Server) writeResolveError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, inference.ErrResourceBusy):
		s.writeError(w, http.StatusTooManyRequests,
			"resource_busy",
			"Summarization capacity is saturated, retry later")

	case errors.Is(err, source.ErrAllSourcesExhausted):
		s.writeError(w, http.StatusServiceUnavailable,
			"sources_exhausted",
			"No content source could satisfy the query")

	case errors.Is(err, orchestrator.ErrDeadlineExceeded):
		s.writeError(w, http.StatusGatewayTimeout,
			"deadline_exceeded",
			"The request deadline elapsed before completion")

	case errors.Is(err, inference.ErrInferenceFailure):
		s.writeError(w, http.StatusBadGateway,
			"inference_failure",
			"The summarization backend failed")

	default:
		s.log.Error("Unclassified resolution failure", "error", err)
		s.writeError(w, http.StatusInternalServerError,
			"internal_error", "Internal error")
	}
}

// buildQuery turns the request body into a normalized query, routing
// long free-form input to direct summarization.
func buildQuery(req SummarizeRequest) (query.Query, error) {
	var opts []query.Option
	if req.Hours != 0 {
		opts = append(opts, query.WithHours(req.Hours))
	}
	if req.MaxLength != 0 {
		opts = append(opts, query.WithMaxLength(req.MaxLength))
	}
	if len(req.Sources) > 0 {
		opts = append(opts, query.WithSources(req.Sources))
	}

	text := strings.TrimSpace(req.Query)
	if isDirectText(text) {
		opts = append(opts, query.WithDirectText(text))
		return query.New("", opts...)
	}

	return query.New(text, opts...)
}

// isDirectText reports whether input looks like a passage to summarize
// rather than a search topic.
func isDirectText(text string) bool {
	return utf8.RuneCountInString(text) > directTextMinChars ||
		len(strings.Fields(text)) > directTextMinWords
}

// handleAPIV1Trending handles GET /api/v1/trending.
func (s *Server) handleAPIV1Trending(w http.ResponseWriter,
	r *http.Request) {

	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed,
			"method_not_allowed", "Method not allowed")
		return
	}

	if s.trender == nil {
		s.writeError(w, http.StatusServiceUnavailable,
			"trending_unavailable",
			"Trending storage is not configured")
		return
	}

	limit, err := queryInt(r, "limit", 10, 1, 100)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_limit",
			err.Error())
		return
	}

	hours, err := queryInt(r, "hours", query.DefaultHours,
		query.MinHours, query.MaxHours)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_hours",
			err.Error())
		return
	}

	topics, err := s.trender.TopTopics(r.Context(), limit, hours)
	if err != nil {
		s.log.Error("Failed to fetch trending topics", "error", err)
		s.writeError(w, http.StatusInternalServerError, "db_error",
			"Failed to fetch trending topics")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"topics":       topics,
		"window_hours": hours,
	})
}

// handleAPIV1Health handles GET /api/v1/health. It reports component
// state without ever touching the inference resource itself.
func (s *Server) handleAPIV1Health(w http.ResponseWriter,
	r *http.Request) {

	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed,
			"method_not_allowed", "Method not allowed")
		return
	}

	capacity, inUse := s.infMgr.Stats()

	health := map[string]any{
		"status":         "ok",
		"time":           time.Now().UTC().Format(time.RFC3339),
		"uptime_seconds": int(time.Since(s.started).Seconds()),
		"inference": map[string]int{
			"capacity": capacity,
			"in_use":   inUse,
		},
	}

	if s.trender != nil {
		count, err := s.trender.QueryCount(
			r.Context(), query.DefaultHours,
		)
		if err != nil {
			health["trending"] = map[string]any{
				"status": "degraded",
			}
		} else {
			health["trending"] = map[string]any{
				"status":           "ok",
				"resolved_queries": count,
			}
		}
	}

	s.writeJSON(w, http.StatusOK, health)
}

// queryInt parses an integer query parameter with a default and bounds.
func queryInt(r *http.Request, name string, def, min, max int) (int,
	error) {

	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil || v < min || v > max {
		return 0, fmt.Errorf("%s must be an integer between %d and %d",
			name, min, max)
	}

	return v, nil
}
