// internal/adapter/overpass/client.go

package overpass

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"discover/internal/adapter/httpclient"
	"discover/internal/config"
	"discover/internal/domain/geo"
	"discover/internal/domain/search"
	"discover/internal/logger"
)

// Client is the map-data source backed by OpenStreetMap Overpass mirrors
type Client struct {
	mirrors     []string
	radius      int
	bucketLimit int
	userAgent   string
	geocoder    geo.Geocoder
	httpClient  *http.Client
	logger      *zap.Logger
}

// NewClient creates a new Overpass client. The geocoder resolves the
// location before the query is issued.
func NewClient(cfg config.OverpassConfig, geocoder geo.Geocoder, log *zap.Logger) *Client {
	radius := cfg.RadiusMeters
	if radius <= 0 {
		radius = 2000
	}
	limit := cfg.BucketLimit
	if limit <= 0 {
		limit = 12
	}

	return &Client{
		mirrors:     cfg.Mirrors,
		radius:      radius,
		bucketLimit: limit,
		userAgent:   cfg.UserAgent,
		geocoder:    geocoder,
		httpClient:  httpclient.New(cfg.RequestTimeout),
		logger:      logger.OrNop(log).Named("overpass"),
	}
}

type element struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    *float64          `json:"lat"`
	Lon    *float64          `json:"lon"`
	Center *struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"center"`
	Tags map[string]string `json:"tags"`
}

// SearchMap returns categorized points of interest around a location
func (c *Client) SearchMap(ctx context.Context, location string, category search.Category) search.Result[search.MapPlaces] {
	center := c.geocoder.Resolve(ctx, location)
	if center == nil {
		return search.Degraded[search.MapPlaces](fmt.Sprintf("OpenStreetMap: could not geocode '%s'", location))
	}

	elements, err := c.query(ctx, buildQuery(center.Lat, center.Lon, c.radius))
	if err != nil {
		return search.Result[search.MapPlaces]{
			Value:    search.MapPlaces{Center: center},
			Warnings: []string{fmt.Sprintf("OpenStreetMap unavailable: %v", err)},
			Degraded: true,
		}
	}

	var eat, do, sleep []element
	for _, raw := range elements {
		var el element
		if err := json.Unmarshal(raw, &el); err != nil {
			c.logger.Debug("Skipping malformed element", zap.Error(err))
			continue
		}

		switch Classify(el.Tags) {
		case search.CategoryEat:
			eat = append(eat, el)
		case search.CategorySleep:
			sleep = append(sleep, el)
		default:
			do = append(do, el)
		}
	}

	places := search.MapPlaces{Center: center}
	if category.Includes(search.CategoryEat) {
		places.Eat = c.toPlaces(eat, *center)
	}
	if category.Includes(search.CategoryDo) {
		places.Do = c.toPlaces(do, *center)
	}
	if category.Includes(search.CategorySleep) {
		places.Sleep = c.toPlaces(sleep, *center)
	}

	return search.OK(places)
}

// query tries each mirror in order and returns the first successful result
func (c *Client) query(ctx context.Context, q string) ([]json.RawMessage, error) {
	if len(c.mirrors) == 0 {
		return nil, errors.New("no mirrors configured")
	}

	var lastErr error
	for _, mirror := range c.mirrors {
		elements, err := c.post(ctx, mirror, q)
		if err == nil {
			return elements, nil
		}

		c.logger.Warn("Overpass mirror failed", zap.String("mirror", mirror), zap.Error(err))
		lastErr = err

		// No point trying other mirrors once the caller has given up
		if ctx.Err() != nil {
			break
		}
	}

	return nil, lastErr
}

func (c *Client) post(ctx context.Context, mirror, q string) ([]json.RawMessage, error) {
	form := url.Values{}
	form.Set("data", q)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, mirror, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.userAgent)

	var resp struct {
		Elements []json.RawMessage `json:"elements"`
	}
	if err := httpclient.DoJSON(c.httpClient, req, &resp); err != nil {
		return nil, err
	}

	return resp.Elements, nil
}

// toPlaces converts one bucket's elements, deduplicating by display name
// (first occurrence wins) and capping at the bucket limit
func (c *Client) toPlaces(elements []element, center geo.Coordinates) []search.Place {
	places := make([]search.Place, 0, min(len(elements), c.bucketLimit))
	seen := make(map[string]bool)

	for _, el := range elements {
		name := el.Tags["name"]
		if name == "" {
			name = el.Tags["name:en"]
		}
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		places = append(places, toPlace(el, name, center))
		if len(places) >= c.bucketLimit {
			break
		}
	}

	return places
}

func toPlace(el element, name string, center geo.Coordinates) search.Place {
	var categories []string
	for _, k := range []string{"amenity", "tourism", "leisure", "shop"} {
		if v, ok := el.Tags[k]; ok && v != "" {
			categories = append(categories, titleCase(v))
		}
	}
	if categories == nil {
		categories = []string{}
	}

	var addrParts []string
	for _, k := range []string{"addr:housenumber", "addr:street", "addr:city"} {
		if v := el.Tags[k]; v != "" {
			addrParts = append(addrParts, v)
		}
	}
	var address *string
	if len(addrParts) > 0 {
		a := strings.Join(addrParts, ", ")
		address = &a
	}

	elType := el.Type
	if elType == "" {
		elType = "node"
	}
	link := fmt.Sprintf("https://www.openstreetmap.org/%s/%d", elType, el.ID)

	// Nodes carry coordinates directly; ways carry a computed center
	var lat, lon *float64
	if elType == "node" {
		lat, lon = el.Lat, el.Lon
	} else if el.Center != nil {
		lat, lon = &el.Center.Lat, &el.Center.Lon
	}

	var distance *int
	if lat != nil && lon != nil {
		d := int(math.Round(geo.DistanceMeters(center, geo.Coordinates{Lat: *lat, Lon: *lon})))
		distance = &d
	}

	return search.Place{
		ID:         fmt.Sprintf("%d", el.ID),
		Name:       name,
		Categories: categories,
		Address:    address,
		Distance:   distance,
		Link:       &link,
		Lat:        lat,
		Lon:        lon,
	}
}
