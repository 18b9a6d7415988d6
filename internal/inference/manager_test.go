package inference

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeEngine is a scripted engine for manager tests.
type fakeEngine struct {
	warmErr error
	output  string
	sumErr  error

	warmCalls    atomic.Int64
	runCalls     atomic.Int64
	reclaimCalls atomic.Int64

	mu         sync.Mutex
	concurrent int
	maxSeen    int
}

func (f *fakeEngine) Warm(_ context.Context) error {
	f.warmCalls.Add(1)
	return f.warmErr
}

func (f *fakeEngine) Summarize(ctx context.Context, _ Request) (string,
	error) {

	f.mu.Lock()
	f.concurrent++
	if f.concurrent > f.maxSeen {
		f.maxSeen = f.concurrent
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.concurrent--
		f.mu.Unlock()
	}()

	f.runCalls.Add(1)

	select {
	case <-time.After(10 * time.Millisecond):
	case <-ctx.Done():
		return "", ctx.Err()
	}

	return f.output, f.sumErr
}

func (f *fakeEngine) Reclaim() {
	f.reclaimCalls.Add(1)
}

// TestManagerRunSuccess verifies the basic acquire/run/release path.
func TestManagerRunSuccess(t *testing.T) {
	engine := &fakeEngine{output: "a summary"}
	mgr := NewManager(DefaultConfig(), engine, nil)

	lease, err := mgr.Acquire(context.Background())
	require.NoError(t, err)

	out, err := lease.Run(context.Background(), Request{
		Content: "text", MaxLength: 150,
	})
	require.NoError(t, err)
	require.Equal(t, "a summary", out)

	lease.Release()

	capacity, inUse := mgr.Stats()
	require.Equal(t, 1, capacity)
	require.Equal(t, 0, inUse)
	require.EqualValues(t, 1, engine.reclaimCalls.Load())
}

// TestManagerLazyWarm verifies the engine initializes on first run only
// and that a warm failure is retried on a later lease.
func TestManagerLazyWarm(t *testing.T) {
	engine := &fakeEngine{output: "s", warmErr: errors.New("oom")}
	mgr := NewManager(DefaultConfig(), engine, nil)

	// Acquisition alone must not initialize.
	lease, err := mgr.Acquire(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 0, engine.warmCalls.Load())

	_, err = lease.Run(context.Background(), Request{Content: "x"})
	require.ErrorIs(t, err, ErrInferenceFailure)
	lease.Release()

	// Init failure must not wedge the manager: the next lease retries
	// and succeeds.
	engine.warmErr = nil
	lease, err = mgr.Acquire(context.Background())
	require.NoError(t, err)

	out, err := lease.Run(context.Background(), Request{Content: "x"})
	require.NoError(t, err)
	require.Equal(t, "s", out)
	lease.Release()

	require.EqualValues(t, 2, engine.warmCalls.Load())

	// A warmed engine is not re-initialized.
	lease, err = mgr.Acquire(context.Background())
	require.NoError(t, err)
	_, err = lease.Run(context.Background(), Request{Content: "x"})
	require.NoError(t, err)
	lease.Release()

	require.EqualValues(t, 2, engine.warmCalls.Load())
}

// TestManagerCapacityEnforced verifies at most N concurrent runs and
// that the (N+1)th caller times out with ErrResourceBusy.
func TestManagerCapacityEnforced(t *testing.T) {
	engine := &fakeEngine{output: "s"}
	mgr := NewManager(Config{
		Capacity:       2,
		AcquireTimeout: 50 * time.Millisecond,
	}, engine, nil)

	ctx := context.Background()

	a, err := mgr.Acquire(ctx)
	require.NoError(t, err)
	b, err := mgr.Acquire(ctx)
	require.NoError(t, err)

	// Third caller blocks until its acquisition window lapses.
	start := time.Now()
	_, err = mgr.Acquire(ctx)
	require.ErrorIs(t, err, ErrResourceBusy)
	require.GreaterOrEqual(t,
		time.Since(start), 50*time.Millisecond,
	)

	a.Release()
	b.Release()

	_, inUse := mgr.Stats()
	require.Equal(t, 0, inUse)
}

// TestManagerReleaseOnEveryPath verifies no lease leaks across repeated
// successes and induced failures.
func TestManagerReleaseOnEveryPath(t *testing.T) {
	engine := &fakeEngine{output: "s"}
	mgr := NewManager(DefaultConfig(), engine, nil)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if i%2 == 1 {
			engine.sumErr = errors.New("boom")
		} else {
			engine.sumErr = nil
		}

		lease, err := mgr.Acquire(ctx)
		require.NoError(t, err)

		_, runErr := lease.Run(ctx, Request{Content: "x"})
		if i%2 == 1 {
			require.ErrorIs(t, runErr, ErrInferenceFailure)
		} else {
			require.NoError(t, runErr)
		}

		lease.Release()
		// Double release must be harmless.
		lease.Release()
	}

	_, inUse := mgr.Stats()
	require.Equal(t, 0, inUse, "leaked lease after mixed outcomes")
	require.EqualValues(t, 10, engine.reclaimCalls.Load())
}

// TestManagerSerializesRuns verifies capacity 1 means no overlapping
// engine calls even under contention.
func TestManagerSerializesRuns(t *testing.T) {
	engine := &fakeEngine{output: "s"}
	mgr := NewManager(Config{
		Capacity:       1,
		AcquireTimeout: time.Second,
	}, engine, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			lease, err := mgr.Acquire(context.Background())
			if err != nil {
				return
			}
			defer lease.Release()

			_, _ = lease.Run(
				context.Background(), Request{Content: "x"},
			)
		}()
	}
	wg.Wait()

	engine.mu.Lock()
	defer engine.mu.Unlock()
	require.Equal(t, 1, engine.maxSeen)
}

// TestManagerEmptyOutput verifies empty model output maps to
// ErrInferenceFailure.
func TestManagerEmptyOutput(t *testing.T) {
	engine := &fakeEngine{output: ""}
	mgr := NewManager(DefaultConfig(), engine, nil)

	lease, err := mgr.Acquire(context.Background())
	require.NoError(t, err)
	defer lease.Release()

	_, err = lease.Run(context.Background(), Request{Content: "x"})
	require.ErrorIs(t, err, ErrInferenceFailure)
}

// TestManagerRunAfterRelease verifies a released lease refuses to run.
func TestManagerRunAfterRelease(t *testing.T) {
	engine := &fakeEngine{output: "s"}
	mgr := NewManager(DefaultConfig(), engine, nil)

	lease, err := mgr.Acquire(context.Background())
	require.NoError(t, err)
	lease.Release()

	_, err = lease.Run(context.Background(), Request{Content: "x"})
	require.ErrorIs(t, err, ErrLeaseReleased)
}

// TestLlamaEngineSummarize exercises the HTTP engine against a stub
// OpenAI-compatible server.
func TestLlamaEngineSummarize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/health":
				w.WriteHeader(http.StatusOK)

			case "/v1/chat/completions":
				fmt.Fprint(w, `{
					"choices": [{
						"message": {"content": " the summary "},
						"finish_reason": "stop"
					}],
					"usage": {"total_tokens": 42}
				}`)

			default:
				w.WriteHeader(http.StatusNotFound)
			}
		},
	))
	defer server.Close()

	engine := NewLlamaEngine(LlamaConfig{ServerURL: server.URL}, nil)

	require.NoError(t, engine.Warm(context.Background()))

	out, err := engine.Summarize(context.Background(), Request{
		Content: "text", MaxLength: 100,
	})
	require.NoError(t, err)
	require.Equal(t, "the summary", out)

	engine.Reclaim()
	require.Nil(t, engine.lastRun)
}

// TestLlamaEngineWarmFailure verifies an unreachable server fails init
// without panicking.
func TestLlamaEngineWarmFailure(t *testing.T) {
	engine := NewLlamaEngine(LlamaConfig{
		ServerURL:   "http://127.0.0.1:1",
		HTTPTimeout: 200 * time.Millisecond,
	}, nil)

	require.Error(t, engine.Warm(context.Background()))
}
