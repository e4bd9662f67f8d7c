// internal/domain/search/model.go

package search

import (
	"strings"
)

// Category is the canonical result taxonomy shared by every source
type Category string

// Supported categories
const (
	CategoryAll   Category = "all"
	CategoryEat   Category = "eat"
	CategoryDo    Category = "do"
	CategorySleep Category = "sleep"
)

// Buckets lists the concrete categories in declaration order
var Buckets = []Category{CategoryEat, CategoryDo, CategorySleep}

// ParseCategory normalizes and validates a category value
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case CategoryAll, CategoryEat, CategoryDo, CategorySleep:
		return c, true
	case "":
		return CategoryAll, true
	}
	return "", false
}

// Expand returns the concrete buckets covered by the category
func (c Category) Expand() []Category {
	if c == CategoryAll {
		return Buckets
	}
	return []Category{c}
}

// Includes reports whether bucket b is covered by the category
func (c Category) Includes(b Category) bool {
	return c == CategoryAll || c == b
}

// Business is a record from the reviews source
type Business struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	URL         string   `json:"url"`
	Rating      float64  `json:"rating"`
	ReviewCount int      `json:"review_count"`
	Price       *string  `json:"price"`
	Categories  []string `json:"categories"`
	Address     string   `json:"address"`
	ImageURL    *string  `json:"image_url"`
	Lat         *float64 `json:"lat"`
	Lon         *float64 `json:"lon"`
}

// Place is a point of interest from the map-data or places sources
type Place struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Categories []string `json:"categories"`
	Address    *string  `json:"address"`
	Distance   *int     `json:"distance"`
	Link       *string  `json:"link"`
	Lat        *float64 `json:"lat"`
	Lon        *float64 `json:"lon"`
}

// SocialPost is a photo post discovered through the social source
type SocialPost struct {
	Shortcode    string   `json:"shortcode"`
	URL          string   `json:"url"`
	ImageURL     string   `json:"image_url"`
	Caption      string   `json:"caption"`
	Likes        int      `json:"likes"`
	Timestamp    string   `json:"timestamp"`
	LocationName *string  `json:"location_name"`
	Username     string   `json:"username"`
	PostCategory string   `json:"post_category"`
	Lat          *float64 `json:"lat"`
	Lon          *float64 `json:"lon"`
}

// Photo is an item from the user's connected photo library
type Photo struct {
	ID          string  `json:"id"`
	URL         string  `json:"url"`
	Description string  `json:"description"`
	Timestamp   string  `json:"timestamp"`
	AlbumTitle  *string `json:"album_title"`
	ProductURL  string  `json:"product_url"`
}

// PlacesResponse is the fast-path aggregate
type PlacesResponse struct {
	Location         string     `json:"location"`
	Category         Category   `json:"category"`
	LocationLat      *float64   `json:"location_lat"`
	LocationLon      *float64   `json:"location_lon"`
	YelpBusinesses   []Business `json:"yelp_businesses"`
	FoursquarePlaces []Place    `json:"foursquare_places"`
	OSMEat           []Place    `json:"osm_eat"`
	OSMDo            []Place    `json:"osm_do"`
	OSMSleep         []Place    `json:"osm_sleep"`
	Warnings         []string   `json:"warnings"`
}

// IsEmpty reports whether no source contributed any record
func (r *PlacesResponse) IsEmpty() bool {
	return len(r.YelpBusinesses) == 0 &&
		len(r.FoursquarePlaces) == 0 &&
		len(r.OSMEat) == 0 &&
		len(r.OSMDo) == 0 &&
		len(r.OSMSleep) == 0
}

// PostsResponse is the slow-path aggregate
type PostsResponse struct {
	Location string       `json:"location"`
	Category Category     `json:"category"`
	Posts    []SocialPost `json:"posts"`
	Warnings []string     `json:"warnings"`
}

// SearchResponse is the legacy combined response
type SearchResponse struct {
	PlacesResponse
	InstagramPosts []SocialPost `json:"instagram_posts"`
}

// PhotosResponse is the response of the connected photo library search
type PhotosResponse struct {
	Location string   `json:"location"`
	Photos   []Photo  `json:"photos"`
	Warnings []string `json:"warnings"`
}
