// internal/adapter/overpass/classify.go

package overpass

import (
	"fmt"
	"strings"
	"unicode"

	"discover/internal/domain/search"
)

// Tag filters used to build the query, per bucket
var (
	eatFilters = []string{
		`["amenity"="restaurant"]`,
		`["amenity"="cafe"]`,
		`["amenity"="bar"]`,
		`["amenity"="pub"]`,
		`["amenity"="fast_food"]`,
		`["amenity"="food_court"]`,
	}
	doFilters = []string{
		`["tourism"="attraction"]`,
		`["tourism"="museum"]`,
		`["leisure"="park"]`,
		`["amenity"="theatre"]`,
		`["amenity"="cinema"]`,
		`["amenity"="nightclub"]`,
	}
	sleepFilters = []string{
		`["tourism"="hotel"]`,
		`["tourism"="hostel"]`,
		`["tourism"="guest_house"]`,
		`["tourism"="motel"]`,
		`["tourism"="apartment"]`,
	}
)

// Membership sets used to route elements into buckets
var (
	eatAmenities = map[string]bool{
		"restaurant": true, "cafe": true, "bar": true, "pub": true,
		"fast_food": true, "food_court": true, "bistro": true,
	}
	sleepTourism = map[string]bool{
		"hotel": true, "hostel": true, "guest_house": true, "motel": true, "apartment": true,
	}
)

// Classify routes an element into exactly one bucket by its tags.
// Anything that is neither eat nor sleep lands in do.
func Classify(tags map[string]string) search.Category {
	if eatAmenities[tags["amenity"]] {
		return search.CategoryEat
	}
	if sleepTourism[tags["tourism"]] {
		return search.CategorySleep
	}
	return search.CategoryDo
}

// buildQuery builds an Overpass QL union of nodes and ways for every filter
func buildQuery(lat, lon float64, radius int) string {
	filters := make([]string, 0, len(eatFilters)+len(doFilters)+len(sleepFilters))
	filters = append(filters, eatFilters...)
	filters = append(filters, doFilters...)
	filters = append(filters, sleepFilters...)

	var b strings.Builder
	b.WriteString("[out:json][timeout:20];\n(\n")
	for _, f := range filters {
		fmt.Fprintf(&b, "  node%s(around:%d,%f,%f);\n", f, radius, lat, lon)
		fmt.Fprintf(&b, "  way%s(around:%d,%f,%f);\n", f, radius, lat, lon)
	}
	b.WriteString(");\nout center 20;")

	return b.String()
}

// titleCase turns a raw tag value like "fast_food" into "Fast Food"
func titleCase(value string) string {
	words := strings.Fields(strings.ReplaceAll(value, "_", " "))
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
