// Package enrich wraps the external NLP enrichment service (entities,
// sentiment). Enrichment is a secondary annotation: the orchestrator
// treats every failure here as non-fatal and degrades to empty fields.
package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// DefaultTimeout bounds one enrichment call.
const DefaultTimeout = 5 * time.Second

// Sentiment holds normalized polarity scores summing to roughly one.
type Sentiment struct {
	Positive float64 `json:"positive"`
	Neutral  float64 `json:"neutral"`
	Negative float64 `json:"negative"`
}

// Enrichment is the annotation attached to a summary.
type Enrichment struct {
	// Entities are named entities extracted from the content.
	Entities []string `json:"entities"`

	// Sentiment is the aggregate sentiment of the content.
	Sentiment Sentiment `json:"sentiment"`
}

// Enricher produces annotations for a piece of content. The extraction
// algorithms are a black box behind this interface.
type Enricher interface {
	Enrich(ctx context.Context, content string) (Enrichment, error)
}

// Config configures the HTTP enricher.
type Config struct {
	// BaseURL is the enrichment service base URL. Empty disables
	// enrichment entirely.
	BaseURL string

	// Timeout bounds one enrichment call.
	Timeout time.Duration
}

// HTTPEnricher calls the external enrichment worker over HTTP.
type HTTPEnricher struct {
	cfg    Config
	client *http.Client
}

// NewHTTPEnricher creates an enricher against the given service.
func NewHTTPEnricher(cfg Config) *HTTPEnricher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &HTTPEnricher{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// enrichRequest is the wire request to the enrichment service.
type enrichRequest struct {
	Content string `json:"content"`
}

// Enrich posts the content and decodes the annotation.
func (e *HTTPEnricher) Enrich(ctx context.Context, content string) (Enrichment,
	error) {

	if e.cfg.BaseURL == "" {
		return Enrichment{}, fmt.Errorf("enrichment not configured")
	}

	payload, err := json.Marshal(enrichRequest{Content: content})
	if err != nil {
		return Enrichment{}, fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, e.cfg.BaseURL+"/enrich",
		bytes.NewReader(payload),
	)
	if err != nil {
		return Enrichment{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return Enrichment{}, fmt.Errorf("enrichment call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Enrichment{}, fmt.Errorf("enrichment service "+
			"returned status %d", resp.StatusCode)
	}

	var out Enrichment
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Enrichment{}, fmt.Errorf("decode enrichment: %w", err)
	}

	return out, nil
}
