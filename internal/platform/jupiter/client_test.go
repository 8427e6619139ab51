package jupiter

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/solwatch/internal/domain"
)

const sol = "So11111111111111111111111111111111111111112"

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		BaseURL:           srv.URL,
		APIKey:            "k",
		ReferenceID:       sol,
		RequestsPerSecond: 1000,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestFetchPrice_TokenQuotedInReference(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/price/v2", r.URL.Path)
		assert.Equal(t, "T1", r.URL.Query().Get("ids"))
		assert.Equal(t, sol, r.URL.Query().Get("vsToken"))
		assert.Equal(t, "k", r.Header.Get("x-api-key"))
		w.Write([]byte(`{"data":{"T1":{"id":"T1","type":"derivedPrice","price":"0.02"}},"timeTaken":0.01}`))
	})

	p, err := c.FetchPrice(context.Background(), "T1")
	require.NoError(t, err)
	assert.Equal(t, 0.02, p)
}

func TestFetchPrice_ReferenceQuotedInUSD(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("vsToken"))
		w.Write([]byte(`{"data":{"` + sol + `":{"id":"` + sol + `","price":150.25}}}`))
	})

	p, err := c.FetchPrice(context.Background(), sol)
	require.NoError(t, err)
	assert.Equal(t, 150.25, p)
}

func TestFetchPrice_Failures(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"non-2xx": func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "upstream down", http.StatusBadGateway)
		},
		"malformed body": func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`<html>`))
		},
		"missing token": func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`{"data":{}}`))
		},
		"null entry": func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`{"data":{"T1":null}}`))
		},
		"non-numeric price": func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`{"data":{"T1":{"price":"abc"}}}`))
		},
	}

	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, h)
			_, err := c.FetchPrice(context.Background(), "T1")
			assert.Error(t, err)
		})
	}
}

func TestFetchPrice_MissingTokenIsErrNoPrice(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"data":{"OTHER":{"price":"1"}}}`))
	})

	_, err := c.FetchPrice(context.Background(), "T1")
	assert.ErrorIs(t, err, ErrNoPrice)
}

func TestFetchPrice_TooManyRequests(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	})

	_, err := c.FetchPrice(context.Background(), "T1")
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestFetchPrice_CancelledContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"data":{"T1":{"price":"1"}}}`))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.FetchPrice(ctx, "T1")
	assert.Error(t, err)
}
