package yelp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"discover/internal/config"
	"discover/internal/domain/search"
)

const testKeyEnv = "DISCOVER_TEST_YELP_KEY"

func newTestClient(baseURL string) *Client {
	return NewClient(config.YelpConfig{
		BaseURL:        baseURL,
		APIKey:         config.Secret(testKeyEnv),
		RequestTimeout: 2 * time.Second,
		Limit:          10,
	}, nil)
}

func TestSearchBusinessesMissingKey(t *testing.T) {
	t.Setenv(testKeyEnv, "")

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	res := newTestClient(srv.URL).SearchBusinesses(context.Background(), "Paris", search.CategoryEat)

	assert.True(t, res.Degraded)
	assert.Empty(t, res.Value)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], testKeyEnv)
	assert.Zero(t, atomic.LoadInt32(&calls), "no network call without a key")
}

func TestSearchBusinesses(t *testing.T) {
	t.Setenv(testKeyEnv, "secret")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/businesses/search", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "hotels", r.URL.Query().Get("term"))
		assert.Equal(t, "Tel Aviv", r.URL.Query().Get("location"))

		w.Write([]byte(`{"businesses": [
			{"id": "a", "name": "Hotel A", "url": "https://y/a", "rating": 4.5, "review_count": 120,
			 "price": "$$", "categories": [{"title": "Hotels"}],
			 "location": {"display_address": ["1 Main St", "Tel Aviv"]},
			 "coordinates": {"latitude": 32.08, "longitude": 34.78}},
			{"name": "missing id"},
			{"id": "b", "name": "Hotel B", "rating": "broken"},
			{"id": "c", "name": "Hotel C", "rating": 3, "review_count": 2, "image_url": ""}
		]}`))
	}))
	defer srv.Close()

	res := newTestClient(srv.URL).SearchBusinesses(context.Background(), "Tel Aviv", search.CategorySleep)

	assert.False(t, res.Degraded)
	assert.Empty(t, res.Warnings)
	require.Len(t, res.Value, 2, "malformed records are skipped")

	a := res.Value[0]
	assert.Equal(t, "a", a.ID)
	assert.Equal(t, "1 Main St, Tel Aviv", a.Address)
	assert.Equal(t, []string{"Hotels"}, a.Categories)
	require.NotNil(t, a.Price)
	assert.Equal(t, "$$", *a.Price)
	require.NotNil(t, a.Lat)
	assert.InDelta(t, 32.08, *a.Lat, 1e-9)

	c := res.Value[1]
	assert.Nil(t, c.ImageURL)
	assert.Nil(t, c.Lat)
}

func TestSearchBusinessesUpstreamError(t *testing.T) {
	t.Setenv(testKeyEnv, "secret")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	res := newTestClient(srv.URL).SearchBusinesses(context.Background(), "Paris", search.CategoryAll)

	assert.True(t, res.Degraded)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "Yelp search failed")
	assert.Contains(t, res.Warnings[0], "429")
}

func TestTermFor(t *testing.T) {
	assert.Equal(t, "restaurants", termFor(search.CategoryEat))
	assert.Equal(t, "restaurants", termFor(search.CategoryAll))
	assert.Equal(t, "things to do", termFor(search.CategoryDo))
	assert.Equal(t, "hotels", termFor(search.CategorySleep))
}
