package orchestrator

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/roasbeef/smaart/internal/enrich"
)

// SummaryRecord is the unit of work the orchestrator produces and
// caches. Once written it is read-only to callers.
type SummaryRecord struct {
	// Query is the normalized query text (or "Direct Input" for
	// direct-text requests).
	Query string `json:"query"`

	// Summary is the generated summary text.
	Summary string `json:"summary"`

	// Sources maps source name to the number of items it
	// contributed.
	Sources map[string]int `json:"sources"`

	// Entities are the named entities from enrichment; empty when
	// enrichment degraded.
	Entities []string `json:"entities"`

	// Sentiment is the aggregate sentiment from enrichment; zero
	// when enrichment degraded.
	Sentiment enrich.Sentiment `json:"sentiment"`

	// Confidence is the overall confidence in the summary, in
	// [0, 1].
	Confidence float64 `json:"confidence"`

	// GeneratedAt is when the summary was produced.
	GeneratedAt time.Time `json:"generated_at"`

	// ProcessingTimeMS is the generation latency of the producing
	// resolution.
	ProcessingTimeMS int64 `json:"processing_time_ms"`

	// FromCache reports whether this record was served from the
	// cache. Never persisted; set on the read path.
	FromCache bool `json:"from_cache"`
}

// PrimarySource returns the source that contributed the items, or ""
// for an empty record.
func (r *SummaryRecord) PrimarySource() string {
	for name := range r.Sources {
		return name
	}
	return ""
}

// ItemCount returns the total number of contributing items.
func (r *SummaryRecord) ItemCount() int {
	var n int
	for _, c := range r.Sources {
		n += c
	}
	return n
}

// CompoundSentiment folds the sentiment scores into a single value in
// [-1, 1].
func (r *SummaryRecord) CompoundSentiment() float64 {
	return r.Sentiment.Positive - r.Sentiment.Negative
}

// encodeRecord serializes a record for cache storage. FromCache is
// cleared first so cached bytes are identical regardless of how the
// record was served.
func encodeRecord(rec *SummaryRecord) ([]byte, error) {
	clone := *rec
	clone.FromCache = false

	data, err := json.Marshal(&clone)
	if err != nil {
		return nil, fmt.Errorf("encode summary record: %w", err)
	}

	return data, nil
}

// decodeRecord deserializes a cached record.
func decodeRecord(data []byte) (*SummaryRecord, error) {
	var rec SummaryRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode summary record: %w", err)
	}

	return &rec, nil
}
