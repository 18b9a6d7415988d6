// Package source implements the ordered cascade of external content
// sources that feed the summarization pipeline, together with the
// individual source clients.
package source

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/roasbeef/smaart/internal/query"
)

// Typed source outcomes. The cascade advances past a source that fails
// with any of these; anything else is coerced to ErrUnavailable.
var (
	// ErrRateLimited means the source rejected the call due to rate
	// limiting.
	ErrRateLimited = errors.New("source rate limited")

	// ErrUnavailable means the source errored or could not be
	// reached.
	ErrUnavailable = errors.New("source unavailable")

	// ErrTimeout means the per-source timeout elapsed.
	ErrTimeout = errors.New("source timed out")

	// ErrEmptyResult means the source answered with no usable
	// content.
	ErrEmptyResult = errors.New("source returned no results")

	// ErrAllSourcesExhausted means every source in the cascade
	// failed or returned nothing.
	ErrAllSourcesExhausted = errors.New("all sources exhausted")
)

// Item is a single piece of content returned by a source.
type Item struct {
	// Title is an optional headline for the item.
	Title string

	// Text is the item body.
	Text string

	// URL is an optional link to the item's origin.
	URL string
}

// Result holds the raw content a source produced for a query. Results
// are never persisted; the cascade hands them straight to the
// orchestrator.
type Result struct {
	// Source is the name of the source that produced the items.
	Source string

	// Items are the content items, in source order.
	Items []Item

	// FetchedAt is when the fetch completed.
	FetchedAt time.Time
}

// Count returns the number of items.
func (r *Result) Count() int {
	return len(r.Items)
}

// Corpus joins the item texts into the input document fed to the
// summarizer, mirroring how raw posts are concatenated upstream.
func (r *Result) Corpus() string {
	var sb strings.Builder
	for i, item := range r.Items {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		if item.Title != "" {
			sb.WriteString(item.Title)
			sb.WriteString(": ")
		}
		sb.WriteString(item.Text)
	}

	return sb.String()
}

// Source is a single external content provider. Fetch must honor ctx
// cancellation and return one of the typed errors above on failure.
type Source interface {
	// Name returns the stable source name used in configuration,
	// allow-lists and result attribution.
	Name() string

	// Fetch retrieves content for the query.
	Fetch(ctx context.Context, q query.Query) (*Result, error)
}
