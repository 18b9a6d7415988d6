package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

// newTestTwitterSource points a TwitterSource at a local test server.
func newTestTwitterSource(t *testing.T,
	handler http.HandlerFunc) *TwitterSource {

	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	src := NewTwitterSource("test-token")
	src.baseURL = server.URL
	src.client = server.Client()

	return src
}

// TestTwitterFetchParsesTweets verifies happy-path parsing and
// attribution.
func TestTwitterFetchParsesTweets(t *testing.T) {
	src := newTestTwitterSource(t,
		func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t,
				"Bearer test-token",
				r.Header.Get("Authorization"),
			)
			require.Contains(t,
				r.URL.Query().Get("query"), "-is:retweet",
			)

			fmt.Fprint(w, `{"data": [
				{"id": "1", "text": "line one\nline two"},
				{"id": "2", "text": "second tweet"}
			]}`)
		},
	)

	result, err := src.Fetch(
		context.Background(), mustQuery(t, "tesla cybertruck"),
	)
	require.NoError(t, err)
	require.Equal(t, "twitter", result.Source)
	require.Equal(t, 2, result.Count())

	// Newlines are flattened before the text reaches the summarizer.
	require.Equal(t, "line one line two", result.Items[0].Text)
}

// TestTwitterFetchRateLimited verifies 429 maps to the typed rate-limit
// outcome.
func TestTwitterFetchRateLimited(t *testing.T) {
	src := newTestTwitterSource(t,
		func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		},
	)

	_, err := src.Fetch(context.Background(), mustQuery(t, "golang"))
	require.ErrorIs(t, err, ErrRateLimited)
}

// TestTwitterFetchEmpty verifies a no-data response maps to
// ErrEmptyResult.
func TestTwitterFetchEmpty(t *testing.T) {
	src := newTestTwitterSource(t,
		func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"data": []}`)
		},
	)

	_, err := src.Fetch(context.Background(), mustQuery(t, "golang"))
	require.ErrorIs(t, err, ErrEmptyResult)
}

// TestTwitterFetchServerError verifies a 5xx maps to ErrUnavailable.
func TestTwitterFetchServerError(t *testing.T) {
	src := newTestTwitterSource(t,
		func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
	)

	_, err := src.Fetch(context.Background(), mustQuery(t, "golang"))
	require.ErrorIs(t, err, ErrUnavailable)
}

// TestTwitterFetchNoToken verifies the unconfigured source reports
// unavailable rather than erroring the request.
func TestTwitterFetchNoToken(t *testing.T) {
	src := NewTwitterSource("")

	_, err := src.Fetch(context.Background(), mustQuery(t, "golang"))
	require.ErrorIs(t, err, ErrUnavailable)
}
