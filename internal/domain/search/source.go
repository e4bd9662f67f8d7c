// internal/domain/search/source.go

package search

import (
	"context"

	"discover/internal/domain/geo"
)

// Result is the uniform outcome of one source fetch. A degraded result
// carries an empty value plus the warnings explaining why.
type Result[T any] struct {
	Value    T
	Warnings []string
	Degraded bool
}

// OK wraps a successful fetch
func OK[T any](value T, warnings ...string) Result[T] {
	return Result[T]{Value: value, Warnings: warnings}
}

// Degraded returns the fallback value for a failed or skipped fetch
func Degraded[T any](warning string) Result[T] {
	var zero T
	return Result[T]{Value: zero, Warnings: []string{warning}, Degraded: true}
}

// MapPlaces is the bucketed result of the map-data source. Center is the
// geocoded point the query was issued around, when one was resolved.
type MapPlaces struct {
	Eat    []Place
	Do     []Place
	Sleep  []Place
	Center *geo.Coordinates
}

// Len returns the number of places across all buckets
func (m MapPlaces) Len() int {
	return len(m.Eat) + len(m.Do) + len(m.Sleep)
}

// BusinessSource defines the reviews source
type BusinessSource interface {
	// SearchBusinesses returns businesses near a location
	SearchBusinesses(ctx context.Context, location string, category Category) Result[[]Business]
}

// PlaceSource defines a flat places source
type PlaceSource interface {
	// SearchPlaces returns places near a location
	SearchPlaces(ctx context.Context, location string, category Category) Result[[]Place]
}

// MapSource defines the bucketed map-data source
type MapSource interface {
	// SearchMap returns categorized points of interest around a location
	SearchMap(ctx context.Context, location string, category Category) Result[MapPlaces]
}

// PostSource defines the social source
type PostSource interface {
	// SearchPosts returns posts discovered through location keywords
	SearchPosts(ctx context.Context, location string, category Category) Result[[]SocialPost]

	// FolloweePosts returns posts by accounts a user follows that mention a location
	FolloweePosts(ctx context.Context, username, location string) Result[[]SocialPost]
}

// PhotoSource defines the connected photo library source
type PhotoSource interface {
	// SearchPhotos returns library photos, those mentioning the location first
	SearchPhotos(ctx context.Context, location string) Result[[]Photo]
}
