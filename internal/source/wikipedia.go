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
	// wikipediaAPIBase is the English Wikipedia MediaWiki API base
	// URL.
	wikipediaAPIBase = "https://en.wikipedia.org"

	// wikipediaUserAgent identifies the service per the Wikimedia
	// API etiquette.
	wikipediaUserAgent = "smaart/1.0 (summarization service)"
)

// WikipediaSource is the high-reliability reference fallback: it
// searches for the best-matching article and fetches its intro extract.
type WikipediaSource struct {
	baseURL string
	client  *http.Client
}

// NewWikipediaSource creates a Wikipedia-backed source.
func NewWikipediaSource() *WikipediaSource {
	return &WikipediaSource{
		baseURL: wikipediaAPIBase,
		client:  &http.Client{},
	}
}

// Name returns the source name.
func (w *WikipediaSource) Name() string { return "wikipedia" }

type wikiSearchResponse struct {
	Query struct {
		Search []struct {
			Title  string `json:"title"`
			PageID int64  `json:"pageid"`
		} `json:"search"`
	} `json:"query"`
}

type wikiExtractResponse struct {
	Query struct {
		Pages map[string]struct {
			Title   string `json:"title"`
			Extract string `json:"extract"`
		} `json:"pages"`
	} `json:"query"`
}

// Fetch searches for the topic and returns the top article's intro
// extract as a single item.
func (w *WikipediaSource) Fetch(ctx context.Context, q query.Query) (*Result,
	error) {

	searchParams := url.Values{}
	searchParams.Set("action", "query")
	searchParams.Set("format", "json")
	searchParams.Set("list", "search")
	searchParams.Set("srsearch", q.Text())
	searchParams.Set("srlimit", "1")

	var search wikiSearchResponse
	if err := w.getJSON(ctx, searchParams, &search); err != nil {
		return nil, err
	}

	if len(search.Query.Search) == 0 {
		return nil, ErrEmptyResult
	}
	pageID := search.Query.Search[0].PageID

	extractParams := url.Values{}
	extractParams.Set("action", "query")
	extractParams.Set("format", "json")
	extractParams.Set("prop", "extracts")
	extractParams.Set("pageids", fmt.Sprintf("%d", pageID))
	extractParams.Set("explaintext", "1")
	extractParams.Set("exintro", "1")

	var extract wikiExtractResponse
	if err := w.getJSON(ctx, extractParams, &extract); err != nil {
		return nil, err
	}

	page, ok := extract.Query.Pages[fmt.Sprintf("%d", pageID)]
	if !ok || page.Extract == "" {
		return nil, ErrEmptyResult
	}

	return &Result{
		Source: w.Name(),
		Items: []Item{{
			Title: page.Title,
			Text:  page.Extract,
			URL: fmt.Sprintf(
				"%s/?curid=%d", w.baseURL, pageID,
			),
		}},
		FetchedAt: time.Now(),
	}, nil
}

// getJSON performs a GET against the MediaWiki API and decodes the
// response into out.
func (w *WikipediaSource) getJSON(ctx context.Context, params url.Values,
	out any) error {

	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet,
		fmt.Sprintf("%s/w/api.php?%s", w.baseURL, params.Encode()),
		nil,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("User-Agent", wikipediaUserAgent)

	resp, err := w.client.Do(req)
	if err != nil {
		return httpTransportError(ctx, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited

	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: status %d", ErrUnavailable,
			resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}

	return nil
}
