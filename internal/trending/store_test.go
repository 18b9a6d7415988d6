package trending

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roasbeef/smaart/internal/db"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	sqlDB, err := db.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	store, err := NewStore(sqlDB, nil)
	require.NoError(t, err)

	return store
}

// TestRecordAndTopTopics verifies sightings aggregate into the trending
// view with counts, mean sentiment and distinct sources.
func TestRecordAndTopTopics(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.RecordResolution(ctx, Resolution{
		QueryText: "tesla cybertruck",
		Hours:     24,
		Source:    "twitter",
		ItemCount: 5,
		Topics:    []string{"tesla cybertruck", "Tesla"},
		Sentiment: 0.5,
	}))
	require.NoError(t, store.RecordResolution(ctx, Resolution{
		QueryText: "tesla cybertruck",
		Hours:     24,
		Source:    "duckduckgo",
		ItemCount: 3,
		Topics:    []string{"tesla cybertruck"},
		Sentiment: -0.1,
	}))
	require.NoError(t, store.RecordResolution(ctx, Resolution{
		QueryText: "golang",
		Hours:     24,
		Source:    "wikipedia",
		ItemCount: 1,
		Topics:    []string{"golang"},
		Sentiment: 0.2,
	}))

	topics, err := store.TopTopics(ctx, 10, 24)
	require.NoError(t, err)
	require.Len(t, topics, 3)

	top := topics[0]
	require.Equal(t, "tesla cybertruck", top.Topic)
	require.Equal(t, 2, top.Count)
	require.InDelta(t, 0.2, top.Sentiment, 0.001)
	require.ElementsMatch(t,
		[]string{"twitter", "duckduckgo"}, top.Sources,
	)
}

// TestTopTopicsWindow verifies sightings outside the window are
// excluded.
func TestTopTopicsWindow(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	// Record a sighting two days in the past.
	store.now = func() time.Time {
		return time.Now().Add(-48 * time.Hour)
	}
	require.NoError(t, store.RecordResolution(ctx, Resolution{
		QueryText: "old news",
		Hours:     24,
		Source:    "wikipedia",
		Topics:    []string{"old news"},
	}))

	store.now = time.Now
	require.NoError(t, store.RecordResolution(ctx, Resolution{
		QueryText: "fresh topic",
		Hours:     24,
		Source:    "twitter",
		Topics:    []string{"fresh topic"},
	}))

	topics, err := store.TopTopics(ctx, 10, 24)
	require.NoError(t, err)
	require.Len(t, topics, 1)
	require.Equal(t, "fresh topic", topics[0].Topic)

	// The wider window sees both.
	topics, err = store.TopTopics(ctx, 10, 72)
	require.NoError(t, err)
	require.Len(t, topics, 2)
}

// TestQueryCount verifies the health counter.
func TestQueryCount(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	n, err := store.QueryCount(ctx, 24)
	require.NoError(t, err)
	require.Equal(t, 0, n)

	require.NoError(t, store.RecordResolution(ctx, Resolution{
		QueryText: "q", Hours: 24, Source: "wikipedia",
	}))

	n, err = store.QueryCount(ctx, 24)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

// TestEmptyTopicsSkipped verifies blank topics are not recorded.
func TestEmptyTopicsSkipped(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.RecordResolution(ctx, Resolution{
		QueryText: "q",
		Hours:     24,
		Source:    "twitter",
		Topics:    []string{"", "  ", "real topic"},
	}))

	topics, err := store.TopTopics(ctx, 10, 24)
	require.NoError(t, err)
	require.Len(t, topics, 1)
	require.Equal(t, "real topic", topics[0].Topic)
}
