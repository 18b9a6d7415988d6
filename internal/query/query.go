// Package query defines the normalized query value type and the
// derivation of deterministic cache keys from it.
package query

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

const (
	// MinHours is the smallest accepted time window.
	MinHours = 1

	// MaxHours is the largest accepted time window (one week).
	MaxHours = 168

	// DefaultHours is the time window used when none is given.
	DefaultHours = 24

	// MinMaxLength is the smallest accepted summary length.
	MinMaxLength = 50

	// MaxMaxLength is the largest accepted summary length.
	MaxMaxLength = 500

	// DefaultMaxLength is the summary length used when none is given.
	DefaultMaxLength = 150
)

// Query is an immutable, normalized summarization request. Construct via
// New; the zero value is not meaningful.
type Query struct {
	// text is the normalized topic text.
	text string

	// direct is optional raw text to summarize directly, bypassing the
	// source cascade.
	direct string

	// hours is the lookback window, clamped to [MinHours, MaxHours].
	hours int

	// sources is an optional allow-list of source names, sorted and
	// deduplicated. Empty means all configured sources.
	sources []string

	// maxLength is the requested maximum summary length, clamped to
	// [MinMaxLength, MaxMaxLength].
	maxLength int
}

// New builds a normalized Query. Either text or direct must be non-empty.
func New(text string, opts ...Option) (Query, error) {
	q := Query{
		text:      Normalize(text),
		hours:     DefaultHours,
		maxLength: DefaultMaxLength,
	}

	for _, opt := range opts {
		opt(&q)
	}

	if q.text == "" && q.direct == "" {
		return Query{}, fmt.Errorf("query text is empty")
	}

	q.hours = clamp(q.hours, MinHours, MaxHours)
	q.maxLength = clamp(q.maxLength, MinMaxLength, MaxMaxLength)

	return q, nil
}

// Option is a functional option for New.
type Option func(*Query)

// WithHours sets the lookback window.
func WithHours(hours int) Option {
	return func(q *Query) {
		q.hours = hours
	}
}

// WithMaxLength sets the requested maximum summary length.
func WithMaxLength(n int) Option {
	return func(q *Query) {
		q.maxLength = n
	}
}

// WithSources sets the source allow-list. Names are normalized, sorted
// and deduplicated so that equivalent lists produce the same cache key.
func WithSources(names []string) Option {
	return func(q *Query) {
		seen := make(map[string]struct{}, len(names))
		cleaned := make([]string, 0, len(names))
		for _, n := range names {
			n = strings.ToLower(strings.TrimSpace(n))
			if n == "" {
				continue
			}
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			cleaned = append(cleaned, n)
		}
		sort.Strings(cleaned)
		q.sources = cleaned
	}
}

// WithDirectText sets raw text to summarize directly. The cascade is
// skipped and the result is attributed to the user_input source.
func WithDirectText(text string) Option {
	return func(q *Query) {
		q.direct = strings.TrimSpace(text)
	}
}

// Text returns the normalized topic text.
func (q Query) Text() string { return q.text }

// DirectText returns the raw text to summarize, if any.
func (q Query) DirectText() string { return q.direct }

// IsDirect reports whether the query carries direct text and therefore
// bypasses the source cascade.
func (q Query) IsDirect() bool { return q.direct != "" }

// Hours returns the lookback window.
func (q Query) Hours() int { return q.hours }

// MaxLength returns the requested maximum summary length.
func (q Query) MaxLength() int { return q.maxLength }

// Sources returns a copy of the source allow-list.
func (q Query) Sources() []string {
	if len(q.sources) == 0 {
		return nil
	}
	out := make([]string, len(q.sources))
	copy(out, q.sources)
	return out
}

// AllowsSource reports whether the given source name passes the
// allow-list. An empty allow-list admits every source.
func (q Query) AllowsSource(name string) bool {
	if len(q.sources) == 0 {
		return true
	}
	for _, s := range q.sources {
		if s == name {
			return true
		}
	}
	return false
}

// CacheKey derives the canonical cache key for this query: a SHA-256
// hash over a stable serialization of every field that affects the
// result. Two queries with equal canonical form always map to the same
// key.
func (q Query) CacheKey() string {
	var sb strings.Builder
	sb.WriteString(q.text)
	sb.WriteByte('|')
	fmt.Fprintf(&sb, "%d", q.hours)
	sb.WriteByte('|')
	sb.WriteString(strings.Join(q.sources, ","))
	sb.WriteByte('|')
	fmt.Fprintf(&sb, "%d", q.maxLength)
	if q.direct != "" {
		sb.WriteByte('|')
		sb.WriteString(q.direct)
	}

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

// Normalize lowercases text and collapses internal whitespace so that
// trivially different spellings of the same topic share a cache key.
func Normalize(text string) string {
	return strings.Join(
		strings.Fields(strings.ToLower(text)), " ",
	)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
