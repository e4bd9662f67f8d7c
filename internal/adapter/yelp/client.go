// internal/adapter/yelp/client.go

package yelp

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

// Client is the reviews source backed by the Yelp Fusion API
type Client struct {
	baseURL    string
	apiKey     config.Secret
	limit      int
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new Yelp client
func NewClient(cfg config.YelpConfig, log *zap.Logger) *Client {
	limit := cfg.Limit
	if limit <= 0 {
		limit = 10
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		limit:      limit,
		httpClient: httpclient.New(cfg.RequestTimeout),
		logger:     logger.OrNop(log).Named("yelp"),
	}
}

type searchResponse struct {
	Businesses []json.RawMessage `json:"businesses"`
}

type business struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	URL         string   `json:"url"`
	Rating      float64  `json:"rating"`
	ReviewCount int      `json:"review_count"`
	Price       string   `json:"price"`
	ImageURL    string   `json:"image_url"`
	Categories  []struct {
		Title string `json:"title"`
	} `json:"categories"`
	Location struct {
		DisplayAddress []string `json:"display_address"`
	} `json:"location"`
	Coordinates struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	} `json:"coordinates"`
}

// termFor maps a category to the search term sent upstream
func termFor(category search.Category) string {
	switch category {
	case search.CategoryDo:
		return "things to do"
	case search.CategorySleep:
		return "hotels"
	default:
		return "restaurants"
	}
}

// SearchBusinesses returns businesses near a location
func (c *Client) SearchBusinesses(ctx context.Context, location string, category search.Category) search.Result[[]search.Business] {
	apiKey := c.apiKey.Value()
	if apiKey == "" {
		return search.Degraded[[]search.Business](
			fmt.Sprintf("Yelp: set %s in .env to enable restaurant results", c.apiKey.Name()),
		)
	}

	businesses, err := c.search(ctx, apiKey, location, category)
	if err != nil {
		c.logger.Warn("Yelp search failed", zap.String("location", location), zap.Error(err))
		return search.Degraded[[]search.Business](fmt.Sprintf("Yelp search failed: %v", err))
	}

	return search.OK(businesses)
}

func (c *Client) search(ctx context.Context, apiKey, location string, category search.Category) ([]search.Business, error) {
	params := url.Values{}
	params.Set("term", termFor(category))
	params.Set("location", location)
	params.Set("limit", strconv.Itoa(c.limit))
	params.Set("sort_by", "rating")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/businesses/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Accept", "application/json")

	var resp searchResponse
	if err := httpclient.DoJSON(c.httpClient, req, &resp); err != nil {
		return nil, err
	}

	results := make([]search.Business, 0, len(resp.Businesses))
	for _, raw := range resp.Businesses {
		b, err := parseBusiness(raw)
		if err != nil {
			c.logger.Debug("Skipping malformed business", zap.Error(err))
			continue
		}
		results = append(results, b)
	}

	return results, nil
}

func parseBusiness(raw json.RawMessage) (search.Business, error) {
	var b business
	if err := json.Unmarshal(raw, &b); err != nil {
		return search.Business{}, err
	}
	if b.ID == "" || b.Name == "" {
		return search.Business{}, fmt.Errorf("business missing id or name")
	}

	categories := make([]string, 0, len(b.Categories))
	for _, cat := range b.Categories {
		categories = append(categories, cat.Title)
	}

	return search.Business{
		ID:          b.ID,
		Name:        b.Name,
		URL:         b.URL,
		Rating:      b.Rating,
		ReviewCount: b.ReviewCount,
		Price:       optional(b.Price),
		Categories:  categories,
		Address:     strings.Join(b.Location.DisplayAddress, ", "),
		ImageURL:    optional(b.ImageURL),
		Lat:         nonZero(b.Coordinates.Latitude),
		Lon:         nonZero(b.Coordinates.Longitude),
	}, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nonZero(f *float64) *float64 {
	if f == nil || *f == 0 {
		return nil
	}
	return f
}
