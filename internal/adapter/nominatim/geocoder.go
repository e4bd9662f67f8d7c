// internal/adapter/nominatim/geocoder.go

package nominatim

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"discover/internal/adapter/httpclient"
	"discover/internal/cache"
	"discover/internal/config"
	"discover/internal/domain/geo"
	"discover/internal/logger"
)

// Geocoder resolves locations through Nominatim. Successful lookups are
// cached for the life of the process; failures are never cached. Concurrent
// lookups of the same location share one upstream request.
type Geocoder struct {
	url        string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      *cache.TTL[geo.Coordinates]
	inflight   singleflight.Group
	logger     *zap.Logger
}

// NewGeocoder creates a new Nominatim geocoder
func NewGeocoder(cfg config.NominatimConfig, log *zap.Logger) *Geocoder {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}

	return &Geocoder{
		url:        cfg.URL,
		userAgent:  cfg.UserAgent,
		httpClient: httpclient.New(cfg.RequestTimeout),
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		cache:      cache.New[geo.Coordinates]("geocode", 0),
		logger:     logger.OrNop(log).Named("nominatim"),
	}
}

type result struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Resolve returns the coordinates of the first match for location
func (g *Geocoder) Resolve(ctx context.Context, location string) *geo.Coordinates {
	key := cache.Normalize(location)
	if coords, ok := g.cache.Get(key); ok {
		return &coords
	}

	// The shared lookup outlives any single caller; the HTTP client timeout bounds it
	ch := g.inflight.DoChan(key, func() (interface{}, error) {
		if coords, ok := g.cache.Get(key); ok {
			return coords, nil
		}

		coords, err := g.lookup(context.WithoutCancel(ctx), location)
		if err != nil {
			g.logger.Warn("Nominatim geocode failed", zap.String("location", location), zap.Error(err))
			return nil, err
		}
		if coords == nil {
			return nil, nil
		}

		g.cache.Set(key, *coords)
		return *coords, nil
	})

	select {
	case <-ctx.Done():
		return nil
	case res := <-ch:
		coords, ok := res.Val.(geo.Coordinates)
		if res.Err != nil || !ok {
			return nil
		}
		return &coords
	}
}

func (g *Geocoder) lookup(ctx context.Context, location string) (*geo.Coordinates, error) {
	// Nominatim's usage policy allows one request per second
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	params := url.Values{}
	params.Set("q", location)
	params.Set("format", "json")
	params.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.url+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", g.userAgent)

	var results []result
	if err := httpclient.DoJSON(g.httpClient, req, &results); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid latitude %q: %w", results[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid longitude %q: %w", results[0].Lon, err)
	}

	return &geo.Coordinates{Lat: lat, Lon: lon}, nil
}
