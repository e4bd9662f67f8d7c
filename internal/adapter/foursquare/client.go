// internal/adapter/foursquare/client.go

package foursquare

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"discover/internal/adapter/httpclient"
	"discover/internal/config"
	"discover/internal/domain/search"
	"discover/internal/logger"
)

// Client is the places source backed by the Foursquare Places API
type Client struct {
	baseURL    string
	apiKey     config.Secret
	limit      int
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new Foursquare client
func NewClient(cfg config.FoursquareConfig, log *zap.Logger) *Client {
	limit := cfg.Limit
	if limit <= 0 {
		limit = 10
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		limit:      limit,
		httpClient: httpclient.New(cfg.RequestTimeout),
		logger:     logger.OrNop(log).Named("foursquare"),
	}
}

type place struct {
	FsqID      string `json:"fsq_id"`
	Name       string `json:"name"`
	Distance   *int   `json:"distance"`
	Categories []struct {
		Name string `json:"name"`
	} `json:"categories"`
	Location struct {
		FormattedAddress string `json:"formatted_address"`
		Address          string `json:"address"`
	} `json:"location"`
	Geocodes struct {
		Main struct {
			Latitude  *float64 `json:"latitude"`
			Longitude *float64 `json:"longitude"`
		} `json:"main"`
	} `json:"geocodes"`
}

func queryFor(category search.Category) string {
	if category == search.CategoryEat {
		return "restaurants"
	}
	return "things to do"
}

// SearchPlaces returns places near a location
func (c *Client) SearchPlaces(ctx context.Context, location string, category search.Category) search.Result[[]search.Place] {
	apiKey := c.apiKey.Value()
	if apiKey == "" {
		return search.Degraded[[]search.Place](
			fmt.Sprintf("Foursquare: set %s in .env to enable place results", c.apiKey.Name()),
		)
	}

	params := url.Values{}
	params.Set("query", queryFor(category))
	params.Set("near", location)
	params.Set("limit", strconv.Itoa(c.limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/places/search?"+params.Encode(), nil)
	if err != nil {
		return search.Degraded[[]search.Place](fmt.Sprintf("Foursquare search failed: %v", err))
	}
	req.Header.Set("Authorization", apiKey)
	req.Header.Set("Accept", "application/json")

	var resp struct {
		Results []json.RawMessage `json:"results"`
	}
	if err := httpclient.DoJSON(c.httpClient, req, &resp); err != nil {
		c.logger.Warn("Foursquare search failed", zap.String("location", location), zap.Error(err))
		return search.Degraded[[]search.Place](fmt.Sprintf("Foursquare search failed: %v", err))
	}

	places := make([]search.Place, 0, len(resp.Results))
	for _, raw := range resp.Results {
		var p place
		if err := json.Unmarshal(raw, &p); err != nil || p.FsqID == "" || p.Name == "" {
			c.logger.Debug("Skipping malformed place", zap.Error(err))
			continue
		}
		places = append(places, convert(p))
	}

	return search.OK(places)
}

func convert(p place) search.Place {
	categories := make([]string, 0, len(p.Categories))
	for _, cat := range p.Categories {
		categories = append(categories, cat.Name)
	}

	var address *string
	if a := p.Location.FormattedAddress; a != "" {
		address = &a
	} else if a := p.Location.Address; a != "" {
		address = &a
	}

	link := "https://foursquare.com/v/" + p.FsqID

	return search.Place{
		ID:         p.FsqID,
		Name:       p.Name,
		Categories: categories,
		Address:    address,
		Distance:   p.Distance,
		Link:       &link,
		Lat:        p.Geocodes.Main.Latitude,
		Lon:        p.Geocodes.Main.Longitude,
	}
}
