// internal/service/search/service.go

package search

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"discover/internal/adapter/events"
	"discover/internal/cache"
	"discover/internal/config"
	"discover/internal/domain/geo"
	"discover/internal/domain/search"
	"discover/internal/logger"
	"discover/internal/metrics"
)

// Sources groups the adapters the service fans out to
type Sources struct {
	Businesses search.BusinessSource
	Places     search.PlaceSource
	Map        search.MapSource
	Geocoder   geo.Geocoder
	Posts      search.PostSource
	Photos     search.PhotoSource
}

// Service aggregates every source into the search responses. Fresh
// non-empty results are cached per location and category.
type Service struct {
	sources   Sources
	timeouts  config.SourcesConfig
	places    *cache.TTL[search.PlacesResponse]
	posts     *cache.TTL[search.PostsResponse]
	followees *cache.TTL[search.PostsResponse]
	publisher events.Publisher
	logger    *zap.Logger
}

// NewService creates a new search service. A nil publisher disables events.
func NewService(
	sources Sources,
	timeouts config.SourcesConfig,
	ttl time.Duration,
	publisher events.Publisher,
	log *zap.Logger,
	opts ...cache.Option,
) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}

	return &Service{
		sources:   sources,
		timeouts:  timeouts,
		places:    cache.New[search.PlacesResponse]("places", ttl, opts...),
		posts:     cache.New[search.PostsResponse]("posts", ttl, opts...),
		followees: cache.New[search.PostsResponse]("followees", ttl, opts...),
		publisher: publisher,
		logger:    logger.OrNop(log).Named("search"),
	}
}

// fetch runs one source call under its own deadline. When the deadline
// passes first, the source's degraded value and a timeout warning are
// returned instead.
func fetch[T any](
	ctx context.Context,
	source, label string,
	timeout time.Duration,
	size func(T) int,
	call func(ctx context.Context) search.Result[T],
) search.Result[T] {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	done := make(chan search.Result[T], 1)
	go func() {
		done <- call(ctx)
	}()

	timedOut := func() search.Result[T] {
		metrics.ObserveSource(source, metrics.OutcomeTimeout, time.Since(start))
		return search.Degraded[T](fmt.Sprintf("%s: request timed out", label))
	}

	select {
	case res := <-done:
		// A call that only returned because its deadline passed still timed out
		if ctx.Err() != nil {
			return timedOut()
		}

		outcome := metrics.OutcomeOK
		switch {
		case res.Degraded:
			outcome = metrics.OutcomeDegraded
		case size(res.Value) == 0:
			outcome = metrics.OutcomeEmpty
		}
		metrics.ObserveSource(source, outcome, time.Since(start))
		return res
	case <-ctx.Done():
		return timedOut()
	}
}

func count[T any](v []T) int {
	return len(v)
}

// Places returns the fast-path aggregate of the reviews, places and map sources
func (s *Service) Places(ctx context.Context, location string, category search.Category) search.PlacesResponse {
	key := cache.Key(location, string(category))
	if cached, ok := s.places.Get(key); ok {
		cached.Location = location
		return cached
	}

	start := time.Now()

	var (
		wg         sync.WaitGroup
		businesses search.Result[[]search.Business]
		places     search.Result[[]search.Place]
		mapped     search.Result[search.MapPlaces]
		coords     search.Result[*geo.Coordinates]
	)

	wg.Add(4)
	go func() {
		defer wg.Done()
		businesses = fetch(ctx, "yelp", "Yelp", s.timeouts.YelpTimeout, count[search.Business],
			func(ctx context.Context) search.Result[[]search.Business] {
				return s.sources.Businesses.SearchBusinesses(ctx, location, category)
			})
	}()
	go func() {
		defer wg.Done()
		places = fetch(ctx, "foursquare", "Foursquare", s.timeouts.FoursquareTimeout, count[search.Place],
			func(ctx context.Context) search.Result[[]search.Place] {
				return s.sources.Places.SearchPlaces(ctx, location, category)
			})
	}()
	go func() {
		defer wg.Done()
		mapped = fetch(ctx, "osm", "OSM", s.timeouts.MapTimeout, search.MapPlaces.Len,
			func(ctx context.Context) search.Result[search.MapPlaces] {
				return s.sources.Map.SearchMap(ctx, location, category)
			})
	}()
	go func() {
		defer wg.Done()
		coords = fetch(ctx, "geocode", "Geocoder", s.timeouts.GeocodeTimeout, located,
			func(ctx context.Context) search.Result[*geo.Coordinates] {
				return search.OK(s.sources.Geocoder.Resolve(ctx, location))
			})
	}()
	wg.Wait()

	resp := search.PlacesResponse{
		Location:         location,
		Category:         category,
		YelpBusinesses:   RankBusinesses(businesses.Value),
		FoursquarePlaces: orEmpty(places.Value),
		OSMEat:           DedupPlaces(mapped.Value.Eat),
		OSMDo:            DedupPlaces(mapped.Value.Do),
		OSMSleep:         DedupPlaces(mapped.Value.Sleep),
		Warnings:         merge(businesses.Warnings, places.Warnings, mapped.Warnings),
	}

	// The map source geocodes the same location; its centre wins
	center := mapped.Value.Center
	if center == nil {
		center = coords.Value
	}
	if center != nil {
		lat, lon := center.Lat, center.Lon
		resp.LocationLat, resp.LocationLon = &lat, &lon
	}

	if !resp.IsEmpty() {
		s.places.Set(key, resp)
	}

	s.publish(ctx, events.KindPlaces, location, string(category), map[string]int{
		"yelp":       len(resp.YelpBusinesses),
		"foursquare": len(resp.FoursquarePlaces),
		"osm_eat":    len(resp.OSMEat),
		"osm_do":     len(resp.OSMDo),
		"osm_sleep":  len(resp.OSMSleep),
	}, resp.Warnings, start)

	return resp
}

func located(c *geo.Coordinates) int {
	if c == nil {
		return 0
	}
	return 1
}

// Posts returns the slow-path social posts for a location
func (s *Service) Posts(ctx context.Context, location string, category search.Category) search.PostsResponse {
	key := cache.Key(location, string(category))
	if cached, ok := s.posts.Get(key); ok {
		cached.Location = location
		return cached
	}

	start := time.Now()
	res := fetch(ctx, "instagram", "Instagram", s.timeouts.InstagramTimeout, count[search.SocialPost],
		func(ctx context.Context) search.Result[[]search.SocialPost] {
			return s.sources.Posts.SearchPosts(ctx, location, category)
		})

	resp := search.PostsResponse{
		Location: location,
		Category: category,
		Posts:    RankPosts(DedupPosts(res.Value)),
		Warnings: merge(res.Warnings),
	}

	if len(resp.Posts) > 0 {
		s.posts.Set(key, resp)
	}

	s.publish(ctx, events.KindPosts, location, string(category),
		map[string]int{"instagram": len(resp.Posts)}, resp.Warnings, start)

	return resp
}

// Followees returns posts mentioning the location from accounts username follows
func (s *Service) Followees(ctx context.Context, username, location string) search.PostsResponse {
	key := cache.Key(location, "followees:"+cache.Normalize(username))
	if cached, ok := s.followees.Get(key); ok {
		cached.Location = location
		return cached
	}

	start := time.Now()
	res := fetch(ctx, "followees", "Instagram", s.timeouts.FolloweeTimeout, count[search.SocialPost],
		func(ctx context.Context) search.Result[[]search.SocialPost] {
			return s.sources.Posts.FolloweePosts(ctx, username, location)
		})

	resp := search.PostsResponse{
		Location: location,
		Posts:    RankPosts(DedupPosts(res.Value)),
		Warnings: merge(res.Warnings),
	}

	if len(resp.Posts) > 0 {
		s.followees.Set(key, resp)
	}

	s.publish(ctx, events.KindFollowees, location, "followees",
		map[string]int{"followees": len(resp.Posts)}, resp.Warnings, start)

	return resp
}

// Search returns the legacy combined response. Places and posts are
// fetched concurrently and cached independently.
func (s *Service) Search(ctx context.Context, location string, category search.Category) search.SearchResponse {
	var (
		wg     sync.WaitGroup
		places search.PlacesResponse
		posts  search.PostsResponse
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		places = s.Places(ctx, location, category)
	}()
	go func() {
		defer wg.Done()
		posts = s.Posts(ctx, location, category)
	}()
	wg.Wait()

	// Cached responses share their slices; never append to them in place
	places.Warnings = merge(places.Warnings, posts.Warnings)

	return search.SearchResponse{
		PlacesResponse: places,
		InstagramPosts: posts.Posts,
	}
}

// Photos returns photos from the connected library. Results are per user
// and never cached.
func (s *Service) Photos(ctx context.Context, location string) search.PhotosResponse {
	res := fetch(ctx, "photos", "Google Photos", s.timeouts.PhotosTimeout, count[search.Photo],
		func(ctx context.Context) search.Result[[]search.Photo] {
			return s.sources.Photos.SearchPhotos(ctx, location)
		})

	return search.PhotosResponse{
		Location: location,
		Photos:   orEmpty(res.Value),
		Warnings: merge(res.Warnings),
	}
}

func (s *Service) publish(ctx context.Context, kind, location, category string, counts map[string]int, warnings []string, start time.Time) {
	took := time.Since(start)

	s.logger.Info("Search completed",
		zap.String("kind", kind),
		zap.String("location", location),
		zap.String("category", category),
		zap.Any("counts", counts),
		zap.Int("warnings", len(warnings)),
		zap.Duration("took", took),
	)

	s.publisher.SearchCompleted(context.WithoutCancel(ctx), events.SearchCompleted{
		Kind:       kind,
		Location:   location,
		Category:   strings.ToLower(category),
		Counts:     counts,
		Warnings:   warnings,
		DurationMS: took.Milliseconds(),
	})
}

// merge concatenates warning lists in order into a new, non-nil slice
func merge(lists ...[]string) []string {
	merged := make([]string, 0)
	for _, l := range lists {
		merged = append(merged, l...)
	}
	return merged
}

func orEmpty[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
