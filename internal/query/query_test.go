package query

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestNormalize verifies whitespace and case folding.
func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple", "Tesla Cybertruck", "tesla cybertruck"},
		{"extra spaces", "  Tesla   Cybertruck ", "tesla cybertruck"},
		{"tabs and newlines", "Tesla\t\nCybertruck", "tesla cybertruck"},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

// TestNewValidation verifies clamping and rejection of empty input.
func TestNewValidation(t *testing.T) {
	_, err := New("   ")
	require.Error(t, err)

	q, err := New("golang", WithHours(0), WithMaxLength(10_000))
	require.NoError(t, err)
	require.Equal(t, MinHours, q.Hours())
	require.Equal(t, MaxMaxLength, q.MaxLength())

	q, err = New("golang", WithHours(999))
	require.NoError(t, err)
	require.Equal(t, MaxHours, q.Hours())
}

// TestCacheKeyCanonicalForm verifies that equal canonical queries map to
// the same key regardless of surface differences.
func TestCacheKeyCanonicalForm(t *testing.T) {
	a, err := New(
		" Tesla   CYBERTRUCK ", WithHours(24),
		WithSources([]string{"News", "twitter"}),
	)
	require.NoError(t, err)

	b, err := New(
		"tesla cybertruck", WithHours(24),
		WithSources([]string{"twitter", "news", "news"}),
	)
	require.NoError(t, err)

	require.Equal(t, a.CacheKey(), b.CacheKey())
}

// TestCacheKeyDistinguishesParameters verifies that every parameter
// participates in key derivation.
func TestCacheKeyDistinguishesParameters(t *testing.T) {
	base, err := New("tesla")
	require.NoError(t, err)

	variants := []Query{}
	for _, opts := range [][]Option{
		{WithHours(48)},
		{WithMaxLength(300)},
		{WithSources([]string{"wikipedia"})},
		{WithDirectText("some direct text")},
	} {
		q, err := New("tesla", opts...)
		require.NoError(t, err)
		variants = append(variants, q)
	}

	seen := map[string]struct{}{base.CacheKey(): {}}
	for _, v := range variants {
		key := v.CacheKey()
		_, dup := seen[key]
		require.False(t, dup, "key collision for %+v", v)
		seen[key] = struct{}{}
	}
}

// TestCacheKeyDeterminism property-checks that key derivation is a pure
// function of the canonical form.
func TestCacheKeyDeterminism(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		text := rapid.StringMatching(`[A-Za-z0-9 ]{1,40}`).Draw(t, "text")
		if strings.TrimSpace(text) == "" {
			t.Skip("blank text")
		}
		hours := rapid.IntRange(-10, 200).Draw(t, "hours")
		maxLen := rapid.IntRange(0, 1000).Draw(t, "maxLen")
		sources := rapid.SliceOfN(
			rapid.SampledFrom([]string{
				"twitter", "duckduckgo", "wikipedia", "news",
			}), 0, 4,
		).Draw(t, "sources")

		build := func(txt string) Query {
			q, err := New(
				txt, WithHours(hours), WithMaxLength(maxLen),
				WithSources(sources),
			)
			if err != nil {
				t.Skip("invalid query")
			}
			return q
		}

		a := build(text)
		b := build("  " + strings.ToUpper(text) + " ")

		if a.CacheKey() != b.CacheKey() {
			t.Fatalf("canonical queries produced different keys")
		}
		if a.CacheKey() != a.CacheKey() {
			t.Fatalf("key derivation is not deterministic")
		}
	})
}

// TestAllowsSource verifies allow-list filtering.
func TestAllowsSource(t *testing.T) {
	q, err := New("golang", WithSources([]string{"Twitter"}))
	require.NoError(t, err)

	require.True(t, q.AllowsSource("twitter"))
	require.False(t, q.AllowsSource("wikipedia"))

	open, err := New("golang")
	require.NoError(t, err)
	require.True(t, open.AllowsSource("wikipedia"))
}
