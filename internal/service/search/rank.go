// internal/service/search/rank.go

package search

import (
	"math"
	"sort"

	"discover/internal/domain/search"
)

// BusinessScore is rating × log10(review_count + 1)
func BusinessScore(b search.Business) float64 {
	return b.Rating * math.Log10(float64(b.ReviewCount)+1)
}

// RankBusinesses returns a copy sorted by BusinessScore, highest first.
// Ties keep their upstream order.
func RankBusinesses(businesses []search.Business) []search.Business {
	ranked := make([]search.Business, len(businesses))
	copy(ranked, businesses)

	sort.SliceStable(ranked, func(i, j int) bool {
		return BusinessScore(ranked[i]) > BusinessScore(ranked[j])
	})

	return ranked
}

// RankPosts returns a copy sorted by likes, highest first
func RankPosts(posts []search.SocialPost) []search.SocialPost {
	ranked := make([]search.SocialPost, len(posts))
	copy(ranked, posts)

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Likes > ranked[j].Likes
	})

	return ranked
}

// DedupPosts drops posts whose shortcode was already seen
func DedupPosts(posts []search.SocialPost) []search.SocialPost {
	seen := make(map[string]bool, len(posts))
	unique := make([]search.SocialPost, 0, len(posts))

	for _, p := range posts {
		if seen[p.Shortcode] {
			continue
		}
		seen[p.Shortcode] = true
		unique = append(unique, p)
	}

	return unique
}

// DedupPlaces drops places whose name was already seen in the same bucket
func DedupPlaces(places []search.Place) []search.Place {
	seen := make(map[string]bool, len(places))
	unique := make([]search.Place, 0, len(places))

	for _, p := range places {
		if seen[p.Name] {
			continue
		}
		seen[p.Name] = true
		unique = append(unique, p)
	}

	return unique
}
