package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/roasbeef/smaart/internal/query"
)

const (
	// duckduckgoAPIBase is the DuckDuckGo Instant Answer API base
	// URL.
	duckduckgoAPIBase = "https://api.duckduckgo.com"

	// duckduckgoMaxItems caps how many related-topic snippets we
	// keep.
	duckduckgoMaxItems = 5
)

// DuckDuckGoSource fetches web search snippets from the DuckDuckGo
// Instant Answer API. No API key is required, which is why it sits
// between the rate-limited social source and the reference fallback.
type DuckDuckGoSource struct {
	baseURL string
	client  *http.Client
}

// NewDuckDuckGoSource creates a DuckDuckGo-backed source.
func NewDuckDuckGoSource() *DuckDuckGoSource {
	return &DuckDuckGoSource{
		baseURL: duckduckgoAPIBase,
		client:  &http.Client{},
	}
}

// Name returns the source name.
func (d *DuckDuckGoSource) Name() string { return "duckduckgo" }

// ddgResponse is the subset of the Instant Answer response we consume.
type ddgResponse struct {
	Heading       string `json:"Heading"`
	AbstractText  string `json:"AbstractText"`
	AbstractURL   string `json:"AbstractURL"`
	RelatedTopics []struct {
		Text     string `json:"Text"`
		FirstURL string `json:"FirstURL"`
	} `json:"RelatedTopics"`
}

// Fetch queries the Instant Answer API and assembles snippets from the
// abstract plus related topics.
func (d *DuckDuckGoSource) Fetch(ctx context.Context, q query.Query) (*Result,
	error) {

	params := url.Values{}
	params.Set("q", q.Text())
	params.Set("format", "json")
	params.Set("no_html", "1")
	params.Set("skip_disambig", "1")

	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet,
		fmt.Sprintf("%s/?%s", d.baseURL, params.Encode()), nil,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, httpTransportError(ctx, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited

	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable,
			resp.StatusCode)
	}

	var parsed ddgResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}

	var items []Item
	if parsed.AbstractText != "" {
		items = append(items, Item{
			Title: parsed.Heading,
			Text:  parsed.AbstractText,
			URL:   parsed.AbstractURL,
		})
	}
	for _, topic := range parsed.RelatedTopics {
		if topic.Text == "" {
			continue
		}
		items = append(items, Item{
			Text: topic.Text,
			URL:  topic.FirstURL,
		})
		if len(items) >= duckduckgoMaxItems {
			break
		}
	}

	if len(items) == 0 {
		return nil, ErrEmptyResult
	}

	return &Result{
		Source:    d.Name(),
		Items:     items,
		FetchedAt: time.Now(),
	}, nil
}
