package httpclient

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lepinkainen/bookmeta/internal/errors"
	"github.com/lepinkainen/bookmeta/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noBackoff(int) time.Duration { return 0 }

func TestGetJSONSendsDefaultHeaders(t *testing.T) {
	server := testutil.NewIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "bookmeta-test", r.Header.Get("User-Agent"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		_ = json.NewEncoder(w).Encode(map[string]string{"title": "Dune"})
	}))

	c := New("test", WithHeader("User-Agent", "bookmeta-test"))
	var out struct{ Title string }
	require.NoError(t, c.GetJSON(context.Background(), server.URL, &out))
	assert.Equal(t, "Dune", out.Title)
}

func TestRateLimitedResponse(t *testing.T) {
	server := testutil.NewIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := New("googlebooks").Get(context.Background(), server.URL)
	require.Error(t, err)
	assert.True(t, errors.IsRateLimitError(err))
	assert.Equal(t, "googlebooks: rate limited (retry after 30s)", err.Error())
}

func TestServerErrorsAreRetried(t *testing.T) {
	var calls atomic.Int32
	server := testutil.NewIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))

	body, err := New("test", WithBackoff(noBackoff)).Get(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := testutil.NewIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "no such book", http.StatusNotFound)
	}))

	_, err := New("test", WithBackoff(noBackoff)).Get(context.Background(), server.URL)
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Equal(t, "no such book", statusErr.Body)
	assert.Equal(t, int32(1), calls.Load())
}

func TestPostJSON(t *testing.T) {
	server := testutil.NewIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		_ = json.NewEncoder(w).Encode(map[string]string{"echo": in["query"]})
	}))

	var out map[string]string
	err := New("hardcover").PostJSON(context.Background(), server.URL,
		map[string]string{"query": "{ me }"}, &out,
		http.Header{"Authorization": {"Bearer secret"}})
	require.NoError(t, err)
	assert.Equal(t, "{ me }", out["echo"])
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, time.Duration(0), parseRetryAfter(""))
	assert.Equal(t, 5*time.Second, parseRetryAfter("5"))
	assert.Equal(t, time.Duration(0), parseRetryAfter("soon"))
}
