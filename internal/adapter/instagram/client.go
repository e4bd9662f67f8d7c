// internal/adapter/instagram/client.go

package instagram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"discover/internal/adapter/httpclient"
	"discover/internal/config"
	"discover/internal/domain/search"
	"discover/internal/logger"
)

const (
	appID     = "936619743392459"
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// Client is the social source. Every upstream call runs on a single lane
// because the session it shares is stateful.
type Client struct {
	cfg        config.InstagramConfig
	baseURL    *url.URL
	lane       *Lane
	limiter    *rate.Limiter
	httpClient *http.Client
	logger     *zap.Logger

	// Only read or written on the lane
	loggedIn bool
}

// NewClient creates a new Instagram client and starts its lane
func NewClient(cfg config.InstagramConfig, log *zap.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid instagram base url: %w", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	httpClient := httpclient.New(cfg.RequestTimeout)
	httpClient.Jar = jar

	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}

	if cfg.PostsPerTag <= 0 {
		cfg.PostsPerTag = 9
	}
	if cfg.MaxFollowees <= 0 {
		cfg.MaxFollowees = 20
	}
	if cfg.PostsPerUser <= 0 {
		cfg.PostsPerUser = 6
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 9
	}

	return &Client{
		cfg:        cfg,
		baseURL:    base,
		lane:       NewLane(),
		limiter:    rate.NewLimiter(limit, 1),
		httpClient: httpClient,
		logger:     logger.OrNop(log).Named("instagram"),
	}, nil
}

// Close stops the lane
func (c *Client) Close() {
	c.lane.Close()
}

// SearchPosts returns posts from location hashtags. For each bucket of the
// category the candidate hashtags are tried in order until one yields posts.
func (c *Client) SearchPosts(ctx context.Context, location string, category search.Category) search.Result[[]search.SocialPost] {
	var res search.Result[[]search.SocialPost]
	if err := c.lane.Do(ctx, func(ctx context.Context) {
		res = c.searchPosts(ctx, location, category)
	}); err != nil {
		return search.Degraded[[]search.SocialPost](fmt.Sprintf("Instagram search unavailable: %v", err))
	}
	return res
}

// FolloweePosts returns at most one matching recent post per account that
// username follows
func (c *Client) FolloweePosts(ctx context.Context, username, location string) search.Result[[]search.SocialPost] {
	var res search.Result[[]search.SocialPost]
	if err := c.lane.Do(ctx, func(ctx context.Context) {
		res = c.followeePosts(ctx, username, location)
	}); err != nil {
		return search.Degraded[[]search.SocialPost](fmt.Sprintf("Instagram search unavailable: %v", err))
	}
	return res
}

func (c *Client) searchPosts(ctx context.Context, location string, category search.Category) search.Result[[]search.SocialPost] {
	if warning := c.ensureLogin(ctx); warning != "" {
		return search.Degraded[[]search.SocialPost](warning)
	}

	posts := make([]search.SocialPost, 0)
	seen := make(map[string]bool)
	var warnings []string

	for _, bucket := range category.Expand() {
		tags := hashtagsFor(location, bucket)
		found := false

		for _, tag := range tags {
			fetched, err := c.fetchTag(ctx, tag)
			if err != nil {
				c.logger.Warn("Instagram hashtag fetch failed", zap.String("tag", tag), zap.Error(err))
				if ctx.Err() != nil {
					break
				}
				continue
			}
			if len(fetched) == 0 {
				continue
			}

			found = true
			for _, p := range fetched {
				if seen[p.Shortcode] {
					continue
				}
				seen[p.Shortcode] = true
				p.PostCategory = string(bucket)
				posts = append(posts, p)
			}
			break
		}

		if !found {
			warnings = append(warnings, fmt.Sprintf("No Instagram results for '%s' (%s)", location, bucket))
		}
	}

	return search.Result[[]search.SocialPost]{
		Value:    posts,
		Warnings: warnings,
		Degraded: len(posts) == 0,
	}
}

func (c *Client) fetchTag(ctx context.Context, tag string) ([]search.SocialPost, error) {
	var resp tagResponse
	if err := c.getJSON(ctx, "/api/v1/tags/web_info/", url.Values{"tag_name": {tag}}, &resp); err != nil {
		return nil, err
	}

	var posts []search.SocialPost
	for _, raw := range resp.mediaItems() {
		p, err := parsePost(raw)
		if err != nil {
			continue
		}
		posts = append(posts, p)
		if len(posts) >= c.cfg.PostsPerTag {
			break
		}
	}
	return posts, nil
}

type profileResponse struct {
	Data struct {
		User *struct {
			ID string `json:"id"`
		} `json:"user"`
	} `json:"data"`
}

type followingResponse struct {
	Users []struct {
		PK       json.Number `json:"pk"`
		Username string      `json:"username"`
	} `json:"users"`
}

type feedResponse struct {
	Items []json.RawMessage `json:"items"`
}

func (c *Client) followeePosts(ctx context.Context, username, location string) search.Result[[]search.SocialPost] {
	if warning := c.ensureLogin(ctx); warning != "" {
		return search.Degraded[[]search.SocialPost](warning)
	}

	userID, err := c.userID(ctx, username)
	if err != nil {
		return search.Degraded[[]search.SocialPost](fmt.Sprintf("Instagram user '%s' not found: %v", username, err))
	}

	var following followingResponse
	path := fmt.Sprintf("/api/v1/friendships/%s/following/", userID)
	params := url.Values{"count": {strconv.Itoa(c.cfg.MaxFollowees)}}
	if err := c.getJSON(ctx, path, params, &following); err != nil {
		c.logger.Warn("Instagram following list failed", zap.String("username", username), zap.Error(err))
		return search.Degraded[[]search.SocialPost](
			fmt.Sprintf("Could not load following list for '%s' (account may be private or rate-limited)", username),
		)
	}

	needle := strings.ToLower(location)
	results := make([]search.SocialPost, 0)

	for i, followee := range following.Users {
		if i >= c.cfg.MaxFollowees || len(results) >= c.cfg.MaxResults || ctx.Err() != nil {
			break
		}

		post, ok, err := c.firstMatch(ctx, followee.PK.String(), needle)
		if err != nil {
			c.logger.Debug("Skipping followee", zap.String("followee", followee.Username), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}

		if post.Username == "" {
			post.Username = followee.Username
		}
		post.PostCategory = "followee"
		results = append(results, post)
	}

	return search.OK(results)
}

// firstMatch returns the first recent post whose location name or caption mentions needle
func (c *Client) firstMatch(ctx context.Context, pk, needle string) (search.SocialPost, bool, error) {
	var feed feedResponse
	path := fmt.Sprintf("/api/v1/feed/user/%s/", pk)
	if err := c.getJSON(ctx, path, url.Values{"count": {strconv.Itoa(c.cfg.PostsPerUser)}}, &feed); err != nil {
		return search.SocialPost{}, false, err
	}

	for i, raw := range feed.Items {
		if i >= c.cfg.PostsPerUser {
			break
		}

		post, err := parsePost(raw)
		if err != nil {
			continue
		}
		if mentions(post, needle) {
			return post, true, nil
		}
	}

	return search.SocialPost{}, false, nil
}

func mentions(post search.SocialPost, needle string) bool {
	if post.LocationName != nil && strings.Contains(strings.ToLower(*post.LocationName), needle) {
		return true
	}
	return strings.Contains(strings.ToLower(post.Caption), needle)
}

func (c *Client) userID(ctx context.Context, username string) (string, error) {
	var profile profileResponse
	if err := c.getJSON(ctx, "/api/v1/users/web_profile_info/", url.Values{"username": {username}}, &profile); err != nil {
		return "", err
	}
	if profile.Data.User == nil || profile.Data.User.ID == "" {
		return "", errors.New("profile has no user id")
	}
	return profile.Data.User.ID, nil
}

// ensureLogin authenticates once per process. It returns a user-visible
// warning when no session could be established. Failures are not memoized.
func (c *Client) ensureLogin(ctx context.Context) string {
	if c.loggedIn {
		return ""
	}

	username := c.cfg.Username.Value()
	if username == "" {
		return fmt.Sprintf("Instagram: set %s in .env", c.cfg.Username.Name())
	}

	path := sessionPath(c.cfg.SessionDir, username)
	cookies, err := loadSession(path)
	switch {
	case err == nil:
		applySession(c.httpClient.Jar, c.baseURL, cookies)
		verified, err := c.currentUser(ctx)
		if err == nil {
			c.loggedIn = true
			c.logger.Info("Instagram session loaded", zap.String("username", verified))
			return ""
		}
		c.logger.Warn("Session file invalid, falling back to password login", zap.Error(err))
	case errors.Is(err, os.ErrNotExist):
		c.logger.Info("No session file found, trying password login")
	default:
		c.logger.Warn("Session load failed", zap.Error(err))
	}

	password := c.cfg.Password.Value()
	if password == "" {
		return fmt.Sprintf("Instagram session not found. Set %s or %s in .env",
			c.cfg.SessionB64.Name(), c.cfg.Password.Name())
	}

	if err := c.login(ctx, username, password); err != nil {
		c.logger.Error("Instagram login failed", zap.Error(err))
		return fmt.Sprintf("Instagram login failed: %v", err)
	}

	if err := saveSession(path, c.httpClient.Jar, c.baseURL); err != nil {
		c.logger.Warn("Failed to save session", zap.Error(err))
	}

	c.loggedIn = true
	c.logger.Info("Instagram logged in", zap.String("username", username))
	return ""
}

func (c *Client) currentUser(ctx context.Context) (string, error) {
	var resp struct {
		User struct {
			Username string `json:"username"`
		} `json:"user"`
	}
	if err := c.getJSON(ctx, "/api/v1/accounts/current_user/", url.Values{"edit": {"true"}}, &resp); err != nil {
		return "", err
	}
	if resp.User.Username == "" {
		return "", errors.New("session is not authenticated")
	}
	return resp.User.Username, nil
}

func (c *Client) login(ctx context.Context, username, password string) error {
	// The landing page sets the csrftoken cookie the login form needs
	if err := c.pace(ctx); err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/", nil, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	resp.Body.Close()

	form := url.Values{}
	form.Set("username", username)
	form.Set("enc_password", fmt.Sprintf("#PWD_INSTAGRAM_BROWSER:0:%d:%s", time.Now().Unix(), password))

	if err := c.pace(ctx); err != nil {
		return err
	}
	req, err = c.newRequest(ctx, http.MethodPost, "/api/v1/web/accounts/login/ajax/", nil, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var result struct {
		Authenticated bool   `json:"authenticated"`
		Status        string `json:"status"`
	}
	if err := httpclient.DoJSON(c.httpClient, req, &result); err != nil {
		return err
	}
	if !result.Authenticated {
		return errors.New("credentials rejected")
	}

	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	if err := c.pace(ctx); err != nil {
		return err
	}

	req, err := c.newRequest(ctx, http.MethodGet, path, params, nil)
	if err != nil {
		return err
	}

	return httpclient.DoJSON(c.httpClient, req, out)
}

// pace spaces upstream calls to stay under rate-limit defenses
func (c *Client) pace(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, params url.Values, body *strings.Reader) (*http.Request, error) {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if params != nil {
		u.RawQuery = params.Encode()
	}

	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, u.String(), body)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, u.String(), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-IG-App-ID", appID)
	req.Header.Set("Accept", "application/json")
	if token := csrfToken(c.httpClient.Jar, c.baseURL); token != "" {
		req.Header.Set("X-CSRFToken", token)
	}

	return req, nil
}
