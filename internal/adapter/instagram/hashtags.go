// internal/adapter/instagram/hashtags.go

package instagram

import (
	"strings"

	"discover/internal/domain/search"
)

// slug keeps only the lowercase ASCII letters and digits of a location
func slug(location string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(location) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// hashtagsFor returns the candidate hashtags for one bucket, best first
func hashtagsFor(location string, bucket search.Category) []string {
	s := slug(location)
	if s == "" {
		return nil
	}

	switch bucket {
	case search.CategoryEat:
		return []string{s + "food", s + "foodie", s + "eats", s + "cafe"}
	case search.CategoryDo:
		return []string{s, "visit" + s, "thingstodoin" + s, s + "life"}
	case search.CategorySleep:
		return []string{s + "hotel", s + "hotels", s + "airbnb", s + "stay"}
	}
	return nil
}
