// internal/adapter/googlephotos/client.go

package googlephotos

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"discover/internal/adapter/httpclient"
	"discover/internal/config"
	"discover/internal/domain/search"
	"discover/internal/logger"
)

const pageSize = 100

// Client lists the connected account's photos through the Drive photos space
type Client struct {
	auth      *Auth
	baseURL   string
	maxPhotos int
	cfg       config.GoogleConfig
	logger    *zap.Logger
}

// NewClient creates a new photos client
func NewClient(cfg config.GoogleConfig, auth *Auth, log *zap.Logger) *Client {
	maxPhotos := cfg.MaxPhotos
	if maxPhotos <= 0 {
		maxPhotos = 12
	}

	return &Client{
		auth:      auth,
		baseURL:   strings.TrimRight(cfg.DriveBaseURL, "/"),
		maxPhotos: maxPhotos,
		cfg:       cfg,
		logger:    logger.OrNop(log).Named("google_photos"),
	}
}

type file struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Description        string `json:"description"`
	ThumbnailLink      string `json:"thumbnailLink"`
	WebViewLink        string `json:"webViewLink"`
	ImageMediaMetadata struct {
		Time string `json:"time"`
	} `json:"imageMediaMetadata"`
}

// SearchPhotos returns library photos, those mentioning the location first
func (c *Client) SearchPhotos(ctx context.Context, location string) search.Result[[]search.Photo] {
	if !c.auth.Configured() {
		return search.Degraded[[]search.Photo](
			fmt.Sprintf("Google Photos: set %s in .env to enable photo results", c.cfg.ClientID.Name()),
		)
	}
	if !c.auth.Connected() {
		return search.Degraded[[]search.Photo]("Google Photos not connected. Visit /auth/google/login to connect")
	}

	src, err := c.auth.TokenSource(ctx)
	if err != nil {
		return search.Degraded[[]search.Photo](fmt.Sprintf("Google Photos unavailable: %v", err))
	}

	files, err := c.list(ctx, src)
	if err != nil {
		c.logger.Warn("Drive photos fetch failed", zap.Error(err))
		return search.Degraded[[]search.Photo](fmt.Sprintf("Google Photos search failed: %v", err))
	}

	photos := rank(files, location, c.maxPhotos)
	c.logger.Debug("Drive photos listed",
		zap.String("location", location),
		zap.Int("files", len(files)),
		zap.Int("photos", len(photos)),
	)

	return search.OK(photos)
}

func (c *Client) list(ctx context.Context, src oauth2.TokenSource) ([]file, error) {
	params := url.Values{}
	params.Set("spaces", "photos")
	params.Set("q", "mimeType contains 'image/'")
	params.Set("fields", "files(id,name,description,thumbnailLink,webViewLink,imageMediaMetadata)")
	params.Set("pageSize", fmt.Sprintf("%d", pageSize))
	params.Set("orderBy", "modifiedTime desc")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/files?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	base := httpclient.New(c.cfg.RequestTimeout)
	client := &http.Client{
		Timeout:   base.Timeout,
		Transport: &oauth2.Transport{Source: src, Base: base.Transport},
	}

	var resp struct {
		Files []file `json:"files"`
	}
	if err := httpclient.DoJSON(client, req, &resp); err != nil {
		return nil, err
	}

	return resp.Files, nil
}

// rank puts files whose description or name mention the location first,
// keeping listing order within each group, and drops files without a thumbnail
func rank(files []file, location string, limit int) []search.Photo {
	needle := strings.ToLower(location)

	var matched, rest []file
	for _, f := range files {
		text := strings.ToLower(f.Description + " " + f.Name)
		if strings.Contains(text, needle) {
			matched = append(matched, f)
		} else {
			rest = append(rest, f)
		}
	}

	photos := make([]search.Photo, 0, limit)
	for _, f := range append(matched, rest...) {
		if len(photos) >= limit {
			break
		}
		if f.ID == "" || f.ThumbnailLink == "" {
			continue
		}

		photos = append(photos, search.Photo{
			ID:          f.ID,
			URL:         resize(f.ThumbnailLink),
			Description: f.Description,
			Timestamp:   f.ImageMediaMetadata.Time,
			ProductURL:  f.WebViewLink,
		})
	}

	return photos
}

// resize swaps the thumbnail's size suffix for an 800px-wide rendition
func resize(thumbnail string) string {
	if i := strings.Index(thumbnail, "=s"); i >= 0 {
		thumbnail = thumbnail[:i]
	}
	return thumbnail + "=w800"
}
