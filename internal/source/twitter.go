package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/roasbeef/smaart/internal/query"
)

const (
	// twitterAPIBase is the X API v2 base URL.
	twitterAPIBase = "https://api.twitter.com"

	// twitterMaxResults is how many recent tweets we request.
	twitterMaxResults = 10
)

// TwitterSource fetches recent tweets for a topic via the X API v2
// recent search endpoint. Retweets are excluded and results restricted
// to English, matching the upstream collector.
type TwitterSource struct {
	bearerToken string
	baseURL     string
	client      *http.Client
}

// NewTwitterSource creates a source backed by the X API. The bearer
// token is required; an empty token makes every fetch report
// unavailable so the cascade moves on.
func NewTwitterSource(bearerToken string) *TwitterSource {
	return &TwitterSource{
		bearerToken: bearerToken,
		baseURL:     twitterAPIBase,
		client:      &http.Client{},
	}
}

// Name returns the source name.
func (t *TwitterSource) Name() string { return "twitter" }

// twitterSearchResponse is the subset of the recent search response we
// consume.
type twitterSearchResponse struct {
	Data []struct {
		ID        string    `json:"id"`
		Text      string    `json:"text"`
		CreatedAt time.Time `json:"created_at"`
	} `json:"data"`
}

// Fetch searches recent tweets matching the query text.
func (t *TwitterSource) Fetch(ctx context.Context, q query.Query) (*Result,
	error) {

	if t.bearerToken == "" {
		return nil, fmt.Errorf("%w: no bearer token configured",
			ErrUnavailable)
	}

	params := url.Values{}
	params.Set("query", fmt.Sprintf(
		"%s -is:retweet lang:en", q.Text(),
	))
	params.Set("max_results", fmt.Sprintf("%d", twitterMaxResults))
	params.Set("tweet.fields", "created_at")
	params.Set("start_time", time.Now().UTC().
		Add(-time.Duration(q.Hours())*time.Hour).
		Format(time.RFC3339))

	reqURL := fmt.Sprintf(
		"%s/2/tweets/search/recent?%s", t.baseURL, params.Encode(),
	)

	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, reqURL, nil,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+t.bearerToken)

	resp, err := t.client.Do(req)
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

	var parsed twitterSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}

	if len(parsed.Data) == 0 {
		return nil, ErrEmptyResult
	}

	items := make([]Item, 0, len(parsed.Data))
	for _, tweet := range parsed.Data {
		text := strings.ReplaceAll(tweet.Text, "\n", " ")
		items = append(items, Item{
			Title: "Tweet",
			Text:  text,
		})
	}

	return &Result{
		Source:    t.Name(),
		Items:     items,
		FetchedAt: time.Now(),
	}, nil
}

// httpTransportError classifies a transport-level failure: a context
// deadline reads as a timeout, anything else as unavailable.
func httpTransportError(ctx context.Context, err error) error {
	if ctx.Err() == context.DeadlineExceeded {
		return ErrTimeout
	}

	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
