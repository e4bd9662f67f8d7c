package nominatim

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"discover/internal/config"
	"discover/internal/domain/geo"
)

func newTestGeocoder(url string) *Geocoder {
	return NewGeocoder(config.NominatimConfig{
		URL:               url,
		RequestTimeout:    2 * time.Second,
		RequestsPerSecond: 1000,
		UserAgent:         "discover-test/1.0",
	}, nil)
}

func TestResolveCachesSuccess(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "discover-test/1.0", r.Header.Get("User-Agent"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		w.Write([]byte(`[{"lat": "32.0853", "lon": "34.7818"}, {"lat": "0", "lon": "0"}]`))
	}))
	defer srv.Close()

	g := newTestGeocoder(srv.URL)

	coords := g.Resolve(context.Background(), "Tel Aviv")
	require.NotNil(t, coords)
	assert.InDelta(t, 32.0853, coords.Lat, 1e-9)
	assert.InDelta(t, 34.7818, coords.Lon, 1e-9)

	again := g.Resolve(context.Background(), "  TEL AVIV ")
	require.NotNil(t, again)
	assert.Equal(t, *coords, *again)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "normalized key hits the cache")
}

func TestResolveDoesNotCacheFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		switch n {
		case 1:
			w.Write([]byte(`[]`))
		case 2:
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
		default:
			w.Write([]byte(`[{"lat": "48.85", "lon": "2.35"}]`))
		}
	}))
	defer srv.Close()

	g := newTestGeocoder(srv.URL)

	assert.Nil(t, g.Resolve(context.Background(), "Paris"), "empty result set is absent")
	assert.Nil(t, g.Resolve(context.Background(), "Paris"), "upstream error is absent")
	assert.NotNil(t, g.Resolve(context.Background(), "Paris"), "failures were not cached")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestResolveInvalidCoordinates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"lat": "north", "lon": "2.35"}]`))
	}))
	defer srv.Close()

	assert.Nil(t, newTestGeocoder(srv.URL).Resolve(context.Background(), "Nowhere"))
}

func TestResolveSharesConcurrentLookups(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		<-release
		w.Write([]byte(`[{"lat": "32.0853", "lon": "34.7818"}]`))
	}))
	defer srv.Close()

	g := newTestGeocoder(srv.URL)

	var wg sync.WaitGroup
	results := make([]*geo.Coordinates, 4)
	for i, loc := range []string{"Tel Aviv", "tel aviv", " TEL AVIV", "Tel Aviv"} {
		wg.Add(1)
		go func(i int, loc string) {
			defer wg.Done()
			results[i] = g.Resolve(context.Background(), loc)
		}(i, loc)
	}

	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 1 }, time.Second, 5*time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, coords := range results {
		require.NotNil(t, coords)
		assert.InDelta(t, 32.0853, coords.Lat, 1e-9)
	}
}

func TestResolveCallerCancelled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Write([]byte(`[{"lat": "48.85", "lon": "2.35"}]`))
	}))
	defer srv.Close()
	defer close(release)

	g := newTestGeocoder(srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.Nil(t, g.Resolve(ctx, "Paris"))
}
