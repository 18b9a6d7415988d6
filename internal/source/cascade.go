package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/roasbeef/smaart/internal/query"
)

const (
	// DefaultSourceTimeout bounds each individual source attempt.
	DefaultSourceTimeout = 10 * time.Second
)

// Config holds cascade configuration. Source order and per-source
// timeout are operator-supplied, never hardcoded, so sources can be
// reordered or retired without code changes.
type Config struct {
	// Order lists source names in priority order. Names without a
	// registered source are skipped with a warning.
	Order []string

	// SourceTimeout bounds each individual source attempt.
	SourceTimeout time.Duration
}

// DefaultConfig returns a Config with the standard source priority:
// live social content first, then general web search, then the
// high-reliability reference source.
func DefaultConfig() Config {
	return Config{
		Order:         []string{"twitter", "duckduckgo", "wikipedia"},
		SourceTimeout: DefaultSourceTimeout,
	}
}

// Cascade tries sources in a fixed priority order until one yields a
// non-empty result.
type Cascade struct {
	cfg     Config
	sources map[string]Source
	log     *slog.Logger
}

// NewCascade creates a cascade over the given sources.
func NewCascade(cfg Config, sources []Source, log *slog.Logger) *Cascade {
	if log == nil {
		log = slog.Default()
	}
	if cfg.SourceTimeout <= 0 {
		cfg.SourceTimeout = DefaultSourceTimeout
	}

	byName := make(map[string]Source, len(sources))
	for _, src := range sources {
		byName[src.Name()] = src
	}

	return &Cascade{
		cfg:     cfg,
		sources: byName,
		log:     log.With("component", "cascade"),
	}
}

// Fetch walks the configured source order and returns the first
// non-empty result. A source failing with a typed outcome (rate limit,
// unavailable, timeout, empty) advances the cascade; each source is
// attempted at most once. The walk aborts when ctx's deadline is
// reached, returning ctx.Err() for the orchestrator to classify.
func (c *Cascade) Fetch(ctx context.Context, q query.Query) (*Result, error) {
	var attempts []string

	for _, name := range c.cfg.Order {
		if !q.AllowsSource(name) {
			continue
		}

		src, ok := c.sources[name]
		if !ok {
			c.log.Warn("Configured source not registered",
				"source", name,
			)
			continue
		}

		// The overall request deadline wins over starting another
		// attempt.
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		srcCtx, cancel := context.WithTimeout(
			ctx, c.cfg.SourceTimeout,
		)
		result, err := src.Fetch(srcCtx, q)
		cancel()

		switch {
		case err == nil && result != nil && result.Count() > 0:
			c.log.Debug("Source produced content",
				"source", name, "items", result.Count(),
			)
			return result, nil

		case err == nil:
			err = ErrEmptyResult
		}

		// If the parent deadline elapsed mid-attempt, stop the walk
		// rather than burning the remaining budget on more sources.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		err = classify(err)
		attempts = append(
			attempts, fmt.Sprintf("%s: %v", name, err),
		)
		c.log.Info("Source failed, advancing cascade",
			"source", name, "error", err,
		)
	}

	if len(attempts) == 0 {
		return nil, fmt.Errorf("%w: no eligible sources",
			ErrAllSourcesExhausted)
	}

	return nil, fmt.Errorf("%w: %s", ErrAllSourcesExhausted,
		strings.Join(attempts, "; "))
}

// classify coerces a source error into one of the typed outcomes. A
// per-source context deadline reads as a timeout; anything unrecognized
// reads as unavailable.
func classify(err error) error {
	switch {
	case errors.Is(err, ErrRateLimited),
		errors.Is(err, ErrUnavailable),
		errors.Is(err, ErrTimeout),
		errors.Is(err, ErrEmptyResult):

		return err

	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout

	default:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}
