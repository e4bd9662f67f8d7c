package instagram

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"discover/internal/config"
	"discover/internal/domain/search"
)

const (
	testUserEnv    = "DISCOVER_TEST_IG_USERNAME"
	testPassEnv    = "DISCOVER_TEST_IG_PASSWORD"
	testSessionEnv = "DISCOVER_TEST_IG_SESSION_B64"
)

// fakeInstagram serves the endpoints the client uses and records every hashtag request
type fakeInstagram struct {
	mu           sync.Mutex
	tags         map[string]string
	tagOrder     []string
	currentUser  int32
	profiles     map[string]string
	following    map[string]string
	feeds        map[string]string
	followingErr bool
}

func (f *fakeInstagram) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/accounts/current_user/":
		atomic.AddInt32(&f.currentUser, 1)
		if c, err := r.Cookie("sessionid"); err != nil || c.Value != "abc" {
			http.Error(w, "login required", http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"user": {"username": "tester"}}`))

	case r.URL.Path == "/api/v1/tags/web_info/":
		tag := r.URL.Query().Get("tag_name")
		f.mu.Lock()
		f.tagOrder = append(f.tagOrder, tag)
		body, ok := f.tags[tag]
		f.mu.Unlock()
		if !ok {
			w.Write([]byte(`{"data": {"top": {"sections": []}}}`))
			return
		}
		w.Write([]byte(body))

	case r.URL.Path == "/api/v1/users/web_profile_info/":
		id, ok := f.profiles[r.URL.Query().Get("username")]
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		fmt.Fprintf(w, `{"data": {"user": {"id": %q}}}`, id)

	case strings.HasPrefix(r.URL.Path, "/api/v1/friendships/"):
		if f.followingErr {
			http.Error(w, "private", http.StatusForbidden)
			return
		}
		id := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/v1/friendships/"), "/")[0]
		w.Write([]byte(f.following[id]))

	case strings.HasPrefix(r.URL.Path, "/api/v1/feed/user/"):
		pk := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/v1/feed/user/"), "/")[0]
		body, ok := f.feeds[pk]
		if !ok {
			http.Error(w, "gone", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(body))

	default:
		http.NotFound(w, r)
	}
}

func (f *fakeInstagram) requestedTags() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tagOrder...)
}

func mediaJSON(code string, likes int, caption, location string) string {
	loc := "null"
	if location != "" {
		loc = fmt.Sprintf(`{"name": %q, "lat": 32.1, "lng": 34.8}`, location)
	}
	return fmt.Sprintf(`{"code": %q, "like_count": %d, "taken_at": 1700000000,
		"caption": {"text": %q}, "user": {"username": "author_%s"},
		"image_versions2": {"candidates": [{"url": "https://cdn/%s.jpg"}, {"url": "https://cdn/small.jpg"}]},
		"location": %s}`, code, likes, caption, code, code, loc)
}

func tagBody(medias ...string) string {
	items := make([]string, 0, len(medias))
	for _, m := range medias {
		items = append(items, `{"media": `+m+`}`)
	}
	return `{"data": {"top": {"sections": [{"layout_content": {"medias": [` + strings.Join(items, ",") + `]}}]}}}`
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()

	cfg := config.InstagramConfig{
		BaseURL:        baseURL,
		Username:       config.Secret(testUserEnv),
		Password:       config.Secret(testPassEnv),
		SessionB64:     config.Secret(testSessionEnv),
		SessionDir:     t.TempDir(),
		RequestTimeout: 2 * time.Second,
		PostsPerTag:    9,
		MaxFollowees:   20,
		PostsPerUser:   6,
		MaxResults:     9,
	}

	t.Setenv(testUserEnv, "tester")
	t.Setenv(testPassEnv, "")
	t.Setenv(testSessionEnv, base64.StdEncoding.EncodeToString([]byte(`{"sessionid": "abc", "csrftoken": "tok"}`)))
	require.NoError(t, BootstrapSession(cfg, nil))

	c, err := NewClient(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(c.Close)

	return c
}

func TestSearchPostsMissingUsername(t *testing.T) {
	fake := &fakeInstagram{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	t.Setenv(testUserEnv, "")

	res := c.SearchPosts(context.Background(), "Paris", search.CategoryEat)

	assert.True(t, res.Degraded)
	assert.Empty(t, res.Value)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], testUserEnv)
	assert.Empty(t, fake.requestedTags())
	assert.Zero(t, atomic.LoadInt32(&fake.currentUser))
}

func TestSearchPostsNoSession(t *testing.T) {
	fake := &fakeInstagram{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	require.NoError(t, os.Remove(sessionPath(c.cfg.SessionDir, "tester")))

	res := c.SearchPosts(context.Background(), "Paris", search.CategoryEat)

	assert.True(t, res.Degraded)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "Instagram session not found")
}

func TestSearchPostsHashtagFallback(t *testing.T) {
	fake := &fakeInstagram{tags: map[string]string{
		"telavivfoodie": tagBody(mediaJSON("A1", 10, "hummus", ""), mediaJSON("A2", 30, "shakshuka", "Jaffa")),
		"telavivcafe":   tagBody(mediaJSON("ZZ", 1, "never fetched", "")),
	}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	res := c.SearchPosts(context.Background(), "Tel Aviv", search.CategoryEat)

	assert.False(t, res.Degraded)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, []string{"telavivfood", "telavivfoodie"}, fake.requestedTags(),
		"stops at the first hashtag with results")

	require.Len(t, res.Value, 2)
	post := res.Value[1]
	assert.Equal(t, "A2", post.Shortcode)
	assert.Equal(t, "https://www.instagram.com/p/A2/", post.URL)
	assert.Equal(t, "https://cdn/A2.jpg", post.ImageURL)
	assert.Equal(t, "eat", post.PostCategory)
	assert.Equal(t, "author_A2", post.Username)
	assert.Equal(t, "2023-11-14T22:13:20Z", post.Timestamp)
	require.NotNil(t, post.LocationName)
	assert.Equal(t, "Jaffa", *post.LocationName)
}

func TestSearchPostsDedupAcrossBuckets(t *testing.T) {
	shared := mediaJSON("SAME", 5, "rooftop", "")
	fake := &fakeInstagram{tags: map[string]string{
		"romefood":  tagBody(shared, mediaJSON("E1", 2, "pasta", "")),
		"rome":      tagBody(shared, mediaJSON("D1", 3, "colosseum", "")),
		"romehotel": tagBody(mediaJSON("S1", 4, "suite", "")),
	}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	res := c.SearchPosts(context.Background(), "Rome", search.CategoryAll)

	codes := make([]string, 0, len(res.Value))
	for _, p := range res.Value {
		codes = append(codes, p.Shortcode)
	}
	assert.Equal(t, []string{"SAME", "E1", "D1", "S1"}, codes)
	assert.Equal(t, "eat", res.Value[0].PostCategory, "first discovery keeps its bucket")
	assert.Empty(t, res.Warnings)
}

func TestSearchPostsAllCandidatesEmpty(t *testing.T) {
	fake := &fakeInstagram{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	res := c.SearchPosts(context.Background(), "Oslo", search.CategorySleep)

	assert.True(t, res.Degraded)
	assert.Empty(t, res.Value)
	assert.Equal(t, []string{"No Instagram results for 'Oslo' (sleep)"}, res.Warnings)
	assert.Equal(t, []string{"oslohotel", "oslohotels", "osloairbnb", "oslostay"}, fake.requestedTags())
}

func TestLoginIsMemoized(t *testing.T) {
	fake := &fakeInstagram{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	c.SearchPosts(context.Background(), "Oslo", search.CategoryEat)
	c.SearchPosts(context.Background(), "Oslo", search.CategoryDo)

	assert.EqualValues(t, 1, atomic.LoadInt32(&fake.currentUser))
}

func TestFolloweePosts(t *testing.T) {
	fake := &fakeInstagram{
		profiles: map[string]string{"friend": "42"},
		following: map[string]string{
			"42": `{"users": [{"pk": 1, "username": "alice"}, {"pk": "2", "username": "bob"}, {"pk": 3, "username": "carol"}, {"pk": 4, "username": "dave"}]}`,
		},
		feeds: map[string]string{
			"1": `{"items": [` + mediaJSON("B1", 1, "nothing here", "") + `,` + mediaJSON("B2", 2, "Lunch in LISBON", "") + `,` + mediaJSON("B3", 3, "Lisbon again", "") + `]}`,
			"2": `{"items": [` + mediaJSON("C1", 9, "sunset", "Lisbon, Portugal") + `]}`,
			"3": `{"items": [` + mediaJSON("D1", 9, "Porto", "Porto") + `]}`,
		},
	}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	res := c.FolloweePosts(context.Background(), "friend", "Lisbon")

	assert.False(t, res.Degraded)
	assert.Empty(t, res.Warnings)
	require.Len(t, res.Value, 2, "one match per followee; dave's feed fails and is skipped")
	assert.Equal(t, "B2", res.Value[0].Shortcode)
	assert.Equal(t, "C1", res.Value[1].Shortcode)
	for _, p := range res.Value {
		assert.Equal(t, "followee", p.PostCategory)
	}
}

func TestFolloweePostsUnknownUser(t *testing.T) {
	fake := &fakeInstagram{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	res := c.FolloweePosts(context.Background(), "ghost", "Lisbon")

	assert.True(t, res.Degraded)
	require.Len(t, res.Warnings, 1)
	assert.True(t, strings.HasPrefix(res.Warnings[0], "Instagram user 'ghost' not found: "))
}

func TestFolloweePostsPrivateAccount(t *testing.T) {
	fake := &fakeInstagram{profiles: map[string]string{"shy": "7"}, followingErr: true}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	res := c.FolloweePosts(context.Background(), "shy", "Lisbon")

	assert.True(t, res.Degraded)
	assert.Equal(t, []string{"Could not load following list for 'shy' (account may be private or rate-limited)"}, res.Warnings)
}

func TestHashtagsFor(t *testing.T) {
	assert.Equal(t, []string{"newyorkfood", "newyorkfoodie", "newyorkeats", "newyorkcafe"},
		hashtagsFor("New York!", search.CategoryEat))
	assert.Equal(t, []string{"paris", "visitparis", "thingstodoinparis", "parislife"},
		hashtagsFor("Paris", search.CategoryDo))
	assert.Nil(t, hashtagsFor("東京", search.CategoryEat))
}

func TestParsePost(t *testing.T) {
	long := strings.Repeat("é", 400)
	post, err := parsePost([]byte(mediaJSON("X", 1, long, "")))
	require.NoError(t, err)
	assert.Equal(t, 300, len([]rune(post.Caption)))
	assert.Nil(t, post.LocationName)
	assert.Nil(t, post.Lat)

	_, err = parsePost([]byte(`{"like_count": 3}`))
	assert.Error(t, err)
}
