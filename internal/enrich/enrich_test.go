package enrich

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestHTTPEnricherRoundTrip verifies request shape and response
// decoding.
func TestHTTPEnricherRoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/enrich", r.URL.Path)
			require.Equal(t, http.MethodPost, r.Method)

			fmt.Fprint(w, `{
				"entities": ["Tesla", "Cybertruck"],
				"sentiment": {
					"positive": 0.6,
					"neutral": 0.3,
					"negative": 0.1
				}
			}`)
		},
	))
	defer server.Close()

	enricher := NewHTTPEnricher(Config{BaseURL: server.URL})

	out, err := enricher.Enrich(context.Background(), "some content")
	require.NoError(t, err)
	require.Equal(t, []string{"Tesla", "Cybertruck"}, out.Entities)
	require.InDelta(t, 0.6, out.Sentiment.Positive, 0.001)
	require.InDelta(t, 0.1, out.Sentiment.Negative, 0.001)
}

// TestHTTPEnricherErrors verifies failure paths return errors for the
// orchestrator to degrade on.
func TestHTTPEnricherErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
	))
	defer server.Close()

	enricher := NewHTTPEnricher(Config{BaseURL: server.URL})
	_, err := enricher.Enrich(context.Background(), "content")
	require.Error(t, err)

	unconfigured := NewHTTPEnricher(Config{})
	_, err = unconfigured.Enrich(context.Background(), "content")
	require.Error(t, err)
}
