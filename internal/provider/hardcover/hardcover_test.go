package hardcover

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/lepinkainen/bookmeta/internal/provider"
	"github.com/lepinkainen/bookmeta/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchResponse = `{"data":{"search_books":{"results":{"hits":[{"document":{
  "id": 312460,
  "title": "Dune",
  "author_names": ["Frank Herbert"],
  "image": {"url": "https://assets.hardcover.app/dune.jpg"},
  "description": "Desert planet.",
  "release_year": 1965,
  "slug": "dune",
  "isbns": ["9780441172719", "0441172717"],
  "pages": 617,
  "rating": 4.3,
  "ratings_count": 5000,
  "genres": ["Science fiction", "Classics"],
  "series_names": ["Dune"]
}}]}}}}`

func setup(t *testing.T) {
	t.Helper()
	testutil.ResetConfig(t)
	testutil.SetupCache(t, testutil.NewTestEnv(t))
}

func TestFetchTop(t *testing.T) {
	setup(t)

	server := testutil.NewIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token-123", r.Header.Get("Authorization"))

		var req graphQLRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Contains(t, req.Query, "search_books")
		assert.Equal(t, "Dune Frank Herbert", req.Variables["query"])

		_, _ = w.Write([]byte(searchResponse))
	}))

	a := New(WithEndpoint(server.URL), WithToken("token-123"), WithRateLimit(100))
	md, err := a.FetchTop(context.Background(), provider.Query{Title: "Dune", Author: "Frank Herbert"})
	require.NoError(t, err)
	require.NotNil(t, md)

	assert.Equal(t, provider.Hardcover, md.Provider)
	assert.Equal(t, "312460", md.ProviderBookID)
	assert.Equal(t, "Dune", *md.Title)
	assert.Equal(t, "0441172717", *md.ISBN10)
	assert.Equal(t, "9780441172719", *md.ISBN13)
	assert.Equal(t, 617, *md.PageCount)
	assert.Equal(t, []string{"Science fiction", "Classics"}, md.Categories)
	assert.Equal(t, "Dune", *md.SeriesName)
	assert.Equal(t, time.Date(1965, 1, 1, 0, 0, 0, 0, time.UTC), *md.PublishedDate)
	assert.Equal(t, "https://assets.hardcover.app/dune.jpg", *md.ThumbnailURL)
}

func TestNoTokenSkipsProvider(t *testing.T) {
	a := New(WithToken(""), WithEndpoint("http://127.0.0.1:1"))
	md, err := a.FetchTop(context.Background(), provider.Query{Title: "Dune"})
	require.NoError(t, err)
	assert.Nil(t, md)
}

func TestGraphQLErrorsAreReported(t *testing.T) {
	setup(t)

	server := testutil.NewIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errors":[{"message":"invalid token"}]}`))
	}))

	a := New(WithEndpoint(server.URL), WithToken("bad"), WithRateLimit(100))
	_, err := a.SearchPreviews(context.Background(), provider.Query{Title: "Dune"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid token")
}

func TestEmptyHits(t *testing.T) {
	setup(t)

	server := testutil.NewIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"search_books":{"results":{"hits":[]}}}}`))
	}))

	a := New(WithEndpoint(server.URL), WithToken("t"), WithRateLimit(100))
	previews, err := a.SearchPreviews(context.Background(), provider.Query{ISBN: "0-441-17271-7"})
	require.NoError(t, err)
	assert.Empty(t, previews)
}
