// Package inference owns the lifecycle of the scarce summarization
// capability: lazy initialization, bounded concurrent use through
// leases, and memory reclamation between runs. No other component may
// invoke the summarization engine directly.
package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

var (
	// ErrResourceBusy means inference capacity stayed saturated for
	// the caller's whole acquisition window.
	ErrResourceBusy = errors.New("inference resource busy")

	// ErrInferenceFailure means the capability errored, failed to
	// initialize, or produced no output.
	ErrInferenceFailure = errors.New("inference failure")

	// ErrLeaseReleased means Run was called on a lease that was
	// already released.
	ErrLeaseReleased = errors.New("inference lease already released")
)

const (
	// DefaultCapacity is the default number of concurrent leases.
	// The model is memory heavy, so a single slot is the norm.
	DefaultCapacity = 1

	// DefaultAcquireTimeout bounds how long a caller waits for a
	// lease before failing with ErrResourceBusy.
	DefaultAcquireTimeout = 30 * time.Second
)

// Request is one summarization call.
type Request struct {
	// Content is the input document.
	Content string

	// MaxLength is the requested maximum summary length.
	MaxLength int
}

// Engine is the underlying summarization capability. Implementations
// are not required to be safe for concurrent use; the Manager
// serializes access through leases.
type Engine interface {
	// Warm initializes the capability. Called lazily before the
	// first run; a failure surfaces as ErrInferenceFailure and may
	// be retried on a later lease.
	Warm(ctx context.Context) error

	// Summarize produces a summary for the request.
	Summarize(ctx context.Context, req Request) (string, error)

	// Reclaim releases working memory associated with the last run.
	// Called after every run, success or failure, before the slot
	// is handed to the next lease.
	Reclaim()
}

// Config holds manager configuration.
type Config struct {
	// Capacity is the number of leases that may be outstanding at
	// once.
	Capacity int

	// AcquireTimeout bounds lease acquisition.
	AcquireTimeout time.Duration

	// AggressiveReclaim additionally returns freed memory to the OS
	// after each run. Meant for memory-constrained deployments.
	AggressiveReclaim bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Capacity:       DefaultCapacity,
		AcquireTimeout: DefaultAcquireTimeout,
	}
}

// Manager enforces bounded, serialized use of the inference engine.
// Waiters queue in FIFO order up to their own deadline.
type Manager struct {
	cfg    Config
	engine Engine
	log    *slog.Logger

	// sem gates lease acquisition. semaphore.Weighted wakes waiters
	// in FIFO order, which gives the queue its fairness guarantee.
	sem *semaphore.Weighted

	// warmMu serializes lazy initialization attempts.
	warmMu sync.Mutex
	warmed bool

	// statsMu guards the counters below.
	statsMu sync.Mutex
	inUse   int
}

// NewManager creates a manager over the given engine.
func NewManager(cfg Config, engine Engine, log *slog.Logger) *Manager {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = DefaultAcquireTimeout
	}
	if log == nil {
		log = slog.Default()
	}

	return &Manager{
		cfg:    cfg,
		engine: engine,
		log:    log.With("component", "inference"),
		sem:    semaphore.NewWeighted(int64(cfg.Capacity)),
	}
}

// Acquire obtains an inference lease, waiting up to the configured
// acquisition timeout (or the caller's earlier deadline). Saturation
// surfaces as ErrResourceBusy. The returned lease must be released;
// Release is idempotent and safe to defer alongside an explicit call.
func (m *Manager) Acquire(ctx context.Context) (*Lease, error) {
	acqCtx, cancel := context.WithTimeout(ctx, m.cfg.AcquireTimeout)
	defer cancel()

	if err := m.sem.Acquire(acqCtx, 1); err != nil {
		// The caller's own cancellation propagates untouched so the
		// orchestrator can classify it as a deadline; only the local
		// acquisition timeout reads as busy.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		return nil, ErrResourceBusy
	}

	m.statsMu.Lock()
	m.inUse++
	m.statsMu.Unlock()

	return &Lease{mgr: m}, nil
}

// Stats reports capacity and the number of outstanding leases. Used by
// the health endpoint, which must never acquire the resource itself.
func (m *Manager) Stats() (capacity, inUse int) {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()

	return m.cfg.Capacity, m.inUse
}

// warm lazily initializes the engine. A previous failure is retried.
func (m *Manager) warm(ctx context.Context) error {
	m.warmMu.Lock()
	defer m.warmMu.Unlock()

	if m.warmed {
		return nil
	}

	m.log.Info("Initializing inference engine")
	if err := m.engine.Warm(ctx); err != nil {
		return fmt.Errorf("%w: init: %v", ErrInferenceFailure, err)
	}
	m.warmed = true

	return nil
}

// release returns a lease's slot, reclaiming run memory first so the
// next lease starts from an idle, memory-lean engine.
func (m *Manager) release(ran bool) {
	if ran {
		m.engine.Reclaim()
		if m.cfg.AggressiveReclaim {
			debug.FreeOSMemory()
		}
	}

	m.statsMu.Lock()
	m.inUse--
	m.statsMu.Unlock()

	m.sem.Release(1)
}

// Lease is an ephemeral handle on one unit of inference capacity. It is
// not safe for concurrent use.
type Lease struct {
	mgr *Manager

	// ran records whether a summarization ran under this lease, so
	// release knows whether there is run memory to reclaim.
	ran bool

	releaseOnce sync.Once
	released    bool
}

// Run executes one summarization under the lease. An engine error or
// empty output surfaces as ErrInferenceFailure.
func (l *Lease) Run(ctx context.Context, req Request) (string, error) {
	if l.released {
		return "", ErrLeaseReleased
	}

	if err := l.mgr.warm(ctx); err != nil {
		return "", err
	}

	l.ran = true

	summary, err := l.mgr.engine.Summarize(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		return "", fmt.Errorf("%w: %v", ErrInferenceFailure, err)
	}
	if summary == "" {
		return "", fmt.Errorf("%w: empty output", ErrInferenceFailure)
	}

	return summary, nil
}

// Release returns the lease's capacity slot. Idempotent; runs on every
// exit path via defer in the orchestrator.
func (l *Lease) Release() {
	l.releaseOnce.Do(func() {
		l.released = true
		l.mgr.release(l.ran)
	})
}
