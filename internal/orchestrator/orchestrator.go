// Package orchestrator drives a summarization request end to end:
// cache check, single-flight deduplication, source cascade, enrichment,
// inference, and cache write, under one request deadline.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/roasbeef/smaart/internal/cache"
	"github.com/roasbeef/smaart/internal/enrich"
	"github.com/roasbeef/smaart/internal/flight"
	"github.com/roasbeef/smaart/internal/inference"
	"github.com/roasbeef/smaart/internal/query"
	"github.com/roasbeef/smaart/internal/source"
	"github.com/roasbeef/smaart/internal/trending"
)

// ErrDeadlineExceeded means the overall request deadline elapsed before
// a summary could be produced.
var ErrDeadlineExceeded = errors.New("request deadline exceeded")

const (
	// DefaultRequestDeadline bounds one resolution end to end.
	DefaultRequestDeadline = 60 * time.Second

	// directInputSource is the attribution used for direct-text
	// requests that bypass the cascade.
	directInputSource = "user_input"

	// baseConfidence is the confidence assigned to a fully enriched
	// summary.
	baseConfidence = 0.95

	// degradedConfidence is the confidence assigned when enrichment
	// failed and the record carries empty annotation fields.
	degradedConfidence = 0.75

	// thinResultPenalty is subtracted when the cascade produced
	// fewer than thinResultThreshold items.
	thinResultPenalty   = 0.1
	thinResultThreshold = 3
)

// ContentFetcher is the cascade's contract as seen by the orchestrator.
type ContentFetcher interface {
	Fetch(ctx context.Context, q query.Query) (*source.Result, error)
}

// Recorder receives successful resolutions for the persistent trending
// tables. Recording is best effort.
type Recorder interface {
	RecordResolution(ctx context.Context, res trending.Resolution) error
}

// Config holds orchestrator configuration.
type Config struct {
	// RequestDeadline bounds one resolution end to end.
	RequestDeadline time.Duration

	// CacheTTL is how long a produced record stays valid.
	CacheTTL time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		RequestDeadline: DefaultRequestDeadline,
		CacheTTL:        cache.DefaultTTL,
	}
}

// Orchestrator owns the per-request state machine. All cross-request
// coordination lives in the cache store, the single-flight group, and
// the inference manager it composes.
type Orchestrator struct {
	cfg      Config
	store    cache.Store
	fetcher  ContentFetcher
	enricher enrich.Enricher
	infMgr   *inference.Manager
	recorder Recorder
	log      *slog.Logger

	group *flight.Group[*SummaryRecord]
}

// New creates an orchestrator. enricher and recorder may be nil, in
// which case records carry degraded enrichment and nothing is logged to
// the trending tables.
func New(cfg Config, store cache.Store, fetcher ContentFetcher,
	enricher enrich.Enricher, infMgr *inference.Manager,
	recorder Recorder, log *slog.Logger) *Orchestrator {

	if cfg.RequestDeadline <= 0 {
		cfg.RequestDeadline = DefaultRequestDeadline
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = cache.DefaultTTL
	}
	if log == nil {
		log = slog.Default()
	}

	return &Orchestrator{
		cfg:      cfg,
		store:    store,
		fetcher:  fetcher,
		enricher: enricher,
		infMgr:   infMgr,
		recorder: recorder,
		log:      log.With("component", "orchestrator"),
		group:    flight.NewGroup[*SummaryRecord](),
	}
}

// Resolve answers a query: from cache when possible, otherwise through
// a single shared production run. The returned record is read-only.
func (o *Orchestrator) Resolve(parent context.Context, q query.Query) (
	*SummaryRecord, error) {

	ctx, cancel := context.WithTimeout(parent, o.cfg.RequestDeadline)
	defer cancel()

	reqID := uuid.New().String()
	log := o.log.With("request_id", reqID)
	key := q.CacheKey()

	// Cache check short-circuits everything else.
	if entry := o.store.Get(ctx, key); entry.IsSome() {
		data := entry.UnwrapOr(cache.Entry{}).Value
		rec, err := decodeRecord(data)
		if err == nil {
			rec.FromCache = true
			log.Debug("Cache hit", "key", key)
			return rec, nil
		}

		// A corrupt entry reads as a miss; drop it so the fresh
		// record replaces it.
		log.Warn("Dropping undecodable cache entry",
			"key", key, "error", err,
		)
		_ = o.store.Invalidate(ctx, key)
	}

	rec, shared, err := o.group.Do(ctx, key,
		func(prodCtx context.Context) (*SummaryRecord, error) {
			return o.produce(prodCtx, log, q, key)
		},
	)
	if err != nil {
		return nil, o.classify(err)
	}

	if shared {
		log.Debug("Resolution shared with concurrent callers",
			"key", key,
		)
	}

	return rec, nil
}

// Invalidate removes any cached record for the query.
func (o *Orchestrator) Invalidate(ctx context.Context, q query.Query) error {
	return o.store.Invalidate(ctx, q.CacheKey())
}

// produce runs the miss path: cascade, enrichment, inference, cache
// write. It executes at most once per key per resolution window, on a
// context that stays alive while any caller still waits on it.
func (o *Orchestrator) produce(ctx context.Context, log *slog.Logger,
	q query.Query, key string) (*SummaryRecord, error) {

	start := time.Now()

	content, err := o.gather(ctx, q)
	if err != nil {
		return nil, err
	}

	// Enrichment is non-fatal: a failure degrades to empty fields
	// rather than failing the request.
	var (
		enrichment enrich.Enrichment
		enriched   bool
	)
	if o.enricher != nil {
		out, err := o.enricher.Enrich(ctx, content.Corpus())
		if err != nil {
			log.Warn("Enrichment failed, continuing degraded",
				"error", err,
			)
		} else {
			enrichment, enriched = out, true
		}
	}

	summary, err := o.summarize(ctx, q, content)
	if err != nil {
		return nil, err
	}

	rec := &SummaryRecord{
		Query:            recordQueryText(q),
		Summary:          summary,
		Sources:          map[string]int{content.Source: content.Count()},
		Entities:         enrichment.Entities,
		Sentiment:        enrichment.Sentiment,
		Confidence:       confidence(enriched, content.Count()),
		GeneratedAt:      time.Now().UTC(),
		ProcessingTimeMS: time.Since(start).Milliseconds(),
	}

	// Exactly one cache write per successful resolution. A failed
	// write is an optimization lost, not an error.
	data, err := encodeRecord(rec)
	if err != nil {
		log.Warn("Skipping cache write", "error", err)
	} else if err := o.store.Put(
		ctx, key, data, o.cfg.CacheTTL,
	); err != nil {
		log.Warn("Cache write failed", "key", key, "error", err)
	}

	o.record(ctx, log, q, rec)

	log.Info("Resolution complete",
		"key", key,
		"source", content.Source,
		"items", content.Count(),
		"elapsed", time.Since(start),
	)

	return rec, nil
}

// gather obtains raw content: direct text verbatim, otherwise whatever
// the cascade produces.
func (o *Orchestrator) gather(ctx context.Context, q query.Query) (
	*source.Result, error) {

	if q.IsDirect() {
		return &source.Result{
			Source:    directInputSource,
			Items:     []source.Item{{Text: q.DirectText()}},
			FetchedAt: time.Now(),
		}, nil
	}

	return o.fetcher.Fetch(ctx, q)
}

// summarize runs one inference under a scoped lease. Release runs on
// every exit path.
func (o *Orchestrator) summarize(ctx context.Context, q query.Query,
	content *source.Result) (string, error) {

	lease, err := o.infMgr.Acquire(ctx)
	if err != nil {
		return "", err
	}
	defer lease.Release()

	return lease.Run(ctx, inference.Request{
		Content:   content.Corpus(),
		MaxLength: q.MaxLength(),
	})
}

// record logs the resolution to the trending tables, best effort.
func (o *Orchestrator) record(ctx context.Context, log *slog.Logger,
	q query.Query, rec *SummaryRecord) {

	if o.recorder == nil {
		return
	}

	topics := make([]string, 0, len(rec.Entities)+1)
	if q.Text() != "" {
		topics = append(topics, q.Text())
	}
	topics = append(topics, rec.Entities...)

	err := o.recorder.RecordResolution(ctx, trending.Resolution{
		QueryText:        rec.Query,
		Hours:            q.Hours(),
		Source:           rec.PrimarySource(),
		ItemCount:        rec.ItemCount(),
		Confidence:       rec.Confidence,
		ProcessingTimeMS: rec.ProcessingTimeMS,
		Topics:           topics,
		Sentiment:        rec.CompoundSentiment(),
	})
	if err != nil {
		log.Warn("Failed to record resolution", "error", err)
	}
}

// classify maps low-level failures onto the user-visible taxonomy.
func (o *Orchestrator) classify(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrDeadlineExceeded, err)

	default:
		return err
	}
}

// confidence scores a record: full enrichment earns the base score,
// degraded enrichment less, and thin source material is penalized.
func confidence(enriched bool, items int) float64 {
	conf := baseConfidence
	if !enriched {
		conf = degradedConfidence
	}
	if items < thinResultThreshold {
		conf -= thinResultPenalty
	}

	return conf
}

// recordQueryText is what goes in the record's query field.
func recordQueryText(q query.Query) string {
	if q.Text() != "" {
		return q.Text()
	}

	return "Direct Input"
}
