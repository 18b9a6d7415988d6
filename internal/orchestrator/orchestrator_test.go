package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roasbeef/smaart/internal/cache"
	"github.com/roasbeef/smaart/internal/enrich"
	"github.com/roasbeef/smaart/internal/inference"
	"github.com/roasbeef/smaart/internal/query"
	"github.com/roasbeef/smaart/internal/source"
	"github.com/roasbeef/smaart/internal/trending"
)

// stubFetcher is a scripted cascade.
type stubFetcher struct {
	result *source.Result
	err    error
	delay  time.Duration

	calls atomic.Int64
}

func (s *stubFetcher) Fetch(ctx context.Context, _ query.Query) (
	*source.Result, error) {

	s.calls.Add(1)

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if s.err != nil {
		return nil, s.err
	}

	return s.result, nil
}

// stubEnricher is a scripted enrichment service.
type stubEnricher struct {
	out enrich.Enrichment
	err error
}

func (s *stubEnricher) Enrich(_ context.Context, _ string) (
	enrich.Enrichment, error) {

	return s.out, s.err
}

// stubEngine backs a real inference.Manager in tests.
type stubEngine struct {
	output string
	err    error
	delay  time.Duration

	runs atomic.Int64
}

func (s *stubEngine) Warm(_ context.Context) error { return nil }

func (s *stubEngine) Summarize(ctx context.Context, _ inference.Request) (
	string, error) {

	s.runs.Add(1)

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	return s.output, s.err
}

func (s *stubEngine) Reclaim() {}

// memRecorder collects recorded resolutions.
type memRecorder struct {
	mu   sync.Mutex
	rows []trending.Resolution
}

func (m *memRecorder) RecordResolution(_ context.Context,
	res trending.Resolution) error {

	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, res)

	return nil
}

// harness bundles the orchestrator with its scripted collaborators.
type harness struct {
	orch     *Orchestrator
	store    *cache.MemoryStore
	fetcher  *stubFetcher
	engine   *stubEngine
	recorder *memRecorder
}

func fiveItems(src string) *source.Result {
	items := make([]source.Item, 5)
	for i := range items {
		items[i] = source.Item{Text: "item"}
	}
	return &source.Result{
		Source:    src,
		Items:     items,
		FetchedAt: time.Now(),
	}
}

func newHarness(t *testing.T, cfg Config, enricher enrich.Enricher) *harness {
	t.Helper()

	h := &harness{
		store:    cache.NewMemoryStore(),
		fetcher:  &stubFetcher{result: fiveItems("duckduckgo")},
		engine:   &stubEngine{output: "a generated summary"},
		recorder: &memRecorder{},
	}

	mgr := inference.NewManager(inference.Config{
		Capacity:       1,
		AcquireTimeout: time.Second,
	}, h.engine, nil)

	h.orch = New(
		cfg, h.store, h.fetcher, enricher, mgr, h.recorder, nil,
	)

	return h
}

func testQuery(t *testing.T, text string, opts ...query.Option) query.Query {
	t.Helper()

	q, err := query.New(text, opts...)
	require.NoError(t, err)

	return q
}

// TestResolveMissThenHit verifies the full miss path and that a repeat
// within the TTL is served from cache with identical content and no
// further cascade or inference work.
func TestResolveMissThenHit(t *testing.T) {
	enricher := &stubEnricher{out: enrich.Enrichment{
		Entities: []string{"Tesla"},
		Sentiment: enrich.Sentiment{
			Positive: 0.5, Neutral: 0.4, Negative: 0.1,
		},
	}}
	h := newHarness(t, DefaultConfig(), enricher)
	ctx := context.Background()

	q := testQuery(t, "Tesla Cybertruck")

	first, err := h.orch.Resolve(ctx, q)
	require.NoError(t, err)
	require.False(t, first.FromCache)
	require.Equal(t, "tesla cybertruck", first.Query)
	require.Equal(t, "a generated summary", first.Summary)
	require.Equal(t, map[string]int{"duckduckgo": 5}, first.Sources)
	require.Equal(t, []string{"Tesla"}, first.Entities)
	require.InDelta(t, 0.95, first.Confidence, 0.001)

	second, err := h.orch.Resolve(ctx, q)
	require.NoError(t, err)
	require.True(t, second.FromCache)

	// Identical content, zero extra production work.
	require.Equal(t, first.Summary, second.Summary)
	require.Equal(t, first.GeneratedAt, second.GeneratedAt)
	require.Equal(t, first.ProcessingTimeMS, second.ProcessingTimeMS)
	require.EqualValues(t, 1, h.fetcher.calls.Load())
	require.EqualValues(t, 1, h.engine.runs.Load())
}

// TestResolveSingleFlight verifies K concurrent callers for the same
// query produce exactly one cascade run and one inference run, with all
// callers receiving the same record.
func TestResolveSingleFlight(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	h.fetcher.delay = 30 * time.Millisecond

	q := testQuery(t, "golang generics")

	const k = 8
	var wg sync.WaitGroup
	records := make([]*SummaryRecord, k)
	errs := make([]error, k)

	for i := 0; i < k; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			records[i], errs[i] = h.orch.Resolve(
				context.Background(), q,
			)
		}(i)
	}
	wg.Wait()

	require.EqualValues(t, 1, h.fetcher.calls.Load())
	require.EqualValues(t, 1, h.engine.runs.Load())

	for i := 0; i < k; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, records[0].Summary, records[i].Summary)
		require.Equal(t,
			records[0].GeneratedAt, records[i].GeneratedAt,
		)
	}
}

// TestResolveErrorBroadcast verifies concurrent callers all see the
// same typed failure.
func TestResolveErrorBroadcast(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	h.fetcher.err = source.ErrAllSourcesExhausted
	h.fetcher.delay = 20 * time.Millisecond

	q := testQuery(t, "nothing anywhere")

	const k = 4
	var wg sync.WaitGroup
	errs := make([]error, k)
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.orch.Resolve(context.Background(), q)
		}(i)
	}
	wg.Wait()

	for i := 0; i < k; i++ {
		require.ErrorIs(t, errs[i], source.ErrAllSourcesExhausted)
	}

	// Failures are not cached: the next call re-runs the cascade.
	require.EqualValues(t, 1, h.fetcher.calls.Load())
	h.fetcher.err = nil
	_, err := h.orch.Resolve(context.Background(), q)
	require.NoError(t, err)
	require.EqualValues(t, 2, h.fetcher.calls.Load())
}

// TestResolveEnrichmentFailureDegrades verifies enrichment failure is
// non-fatal: the summary succeeds with empty enrichment fields, lower
// confidence, and the record is still cached.
func TestResolveEnrichmentFailureDegrades(t *testing.T) {
	enricher := &stubEnricher{err: errors.New("nlp service down")}
	h := newHarness(t, DefaultConfig(), enricher)
	ctx := context.Background()

	q := testQuery(t, "tesla")

	rec, err := h.orch.Resolve(ctx, q)
	require.NoError(t, err)
	require.Equal(t, "a generated summary", rec.Summary)
	require.Empty(t, rec.Entities)
	require.Zero(t, rec.Sentiment)
	require.InDelta(t, 0.75, rec.Confidence, 0.001)

	// Degraded record was cached all the same.
	cached, err := h.orch.Resolve(ctx, q)
	require.NoError(t, err)
	require.True(t, cached.FromCache)
}

// TestResolveDeadline verifies a resolution that cannot finish inside
// the request deadline fails with the typed deadline error, promptly.
func TestResolveDeadline(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequestDeadline = 50 * time.Millisecond

	h := newHarness(t, cfg, nil)
	h.fetcher.delay = 2 * time.Second

	start := time.Now()
	_, err := h.orch.Resolve(
		context.Background(), testQuery(t, "slow topic"),
	)
	require.ErrorIs(t, err, ErrDeadlineExceeded)
	require.Less(t, time.Since(start), time.Second,
		"deadline failure must not wait for the slow source")
}

// TestResolveResourceBusy verifies inference saturation surfaces as the
// typed busy error.
func TestResolveResourceBusy(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)

	// The run outlasts the harness acquire timeout of one second, so
	// a second distinct query cannot obtain the single slot in time.
	h.engine.delay = 3 * time.Second

	go func() {
		_, _ = h.orch.Resolve(
			context.Background(), testQuery(t, "first topic"),
		)
	}()

	time.Sleep(100 * time.Millisecond)

	_, err := h.orch.Resolve(
		context.Background(), testQuery(t, "second topic"),
	)
	require.ErrorIs(t, err, inference.ErrResourceBusy)
}

// TestResolveDirectText verifies direct text bypasses the cascade and
// is attributed to user_input.
func TestResolveDirectText(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)

	q := testQuery(t, "", query.WithDirectText(
		"A long passage of text that should be summarized directly.",
	))

	rec, err := h.orch.Resolve(context.Background(), q)
	require.NoError(t, err)
	require.Equal(t, "Direct Input", rec.Query)
	require.Equal(t, map[string]int{"user_input": 1}, rec.Sources)
	require.EqualValues(t, 0, h.fetcher.calls.Load())
}

// TestResolveRecordsTrending verifies a successful resolution reaches
// the recorder with query topic and entities.
func TestResolveRecordsTrending(t *testing.T) {
	enricher := &stubEnricher{out: enrich.Enrichment{
		Entities: []string{"Tesla", "Elon Musk"},
		Sentiment: enrich.Sentiment{
			Positive: 0.7, Neutral: 0.2, Negative: 0.1,
		},
	}}
	h := newHarness(t, DefaultConfig(), enricher)

	_, err := h.orch.Resolve(
		context.Background(), testQuery(t, "Tesla Cybertruck"),
	)
	require.NoError(t, err)

	h.recorder.mu.Lock()
	defer h.recorder.mu.Unlock()
	require.Len(t, h.recorder.rows, 1)

	row := h.recorder.rows[0]
	require.Equal(t, "tesla cybertruck", row.QueryText)
	require.Equal(t, "duckduckgo", row.Source)
	require.Equal(t, 5, row.ItemCount)
	require.ElementsMatch(t,
		[]string{"tesla cybertruck", "Tesla", "Elon Musk"},
		row.Topics,
	)
	require.InDelta(t, 0.6, row.Sentiment, 0.001)
}

// TestResolveInvalidate verifies explicit invalidation forces a fresh
// production.
func TestResolveInvalidate(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	ctx := context.Background()
	q := testQuery(t, "golang")

	_, err := h.orch.Resolve(ctx, q)
	require.NoError(t, err)

	require.NoError(t, h.orch.Invalidate(ctx, q))

	rec, err := h.orch.Resolve(ctx, q)
	require.NoError(t, err)
	require.False(t, rec.FromCache)
	require.EqualValues(t, 2, h.fetcher.calls.Load())
}
