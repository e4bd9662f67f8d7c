// internal/server/handlers/search.go

package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"discover/internal/domain/search"
	"discover/internal/logger"
)

// Searcher is the aggregation service behind the search endpoints
type Searcher interface {
	Places(ctx context.Context, location string, category search.Category) search.PlacesResponse
	Posts(ctx context.Context, location string, category search.Category) search.PostsResponse
	Followees(ctx context.Context, username, location string) search.PostsResponse
	Search(ctx context.Context, location string, category search.Category) search.SearchResponse
	Photos(ctx context.Context, location string) search.PhotosResponse
}

// SearchQuery holds the location/category parameters shared by the search endpoints
type SearchQuery struct {
	Location string `query:"location" validate:"required,min=2"`
	Category string `query:"category" validate:"oneof=eat do sleep all"`
}

// FolloweeQuery holds the followee search parameters
type FolloweeQuery struct {
	Location   string `query:"location" validate:"required,min=2"`
	IGUsername string `query:"ig_username" validate:"required,max=30"`
}

// PhotosQuery holds the photo search parameters
type PhotosQuery struct {
	Location string `query:"location" validate:"required,min=2"`
}

// SearchHandler handles the aggregation endpoints
type SearchHandler struct {
	searcher Searcher
	validate *validator.Validate
	logger   *zap.Logger
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(searcher Searcher, validate *validator.Validate, log *zap.Logger) *SearchHandler {
	return &SearchHandler{
		searcher: searcher,
		validate: validate,
		logger:   logger.OrNop(log).Named("handlers"),
	}
}

// parseSearchQuery reads and validates location and category. An absent
// category means all.
func (h *SearchHandler) parseSearchQuery(r *http.Request) (SearchQuery, search.Category, error) {
	q := SearchQuery{
		Location: strings.TrimSpace(r.URL.Query().Get("location")),
		Category: strings.ToLower(strings.TrimSpace(r.URL.Query().Get("category"))),
	}
	if q.Category == "" {
		q.Category = string(search.CategoryAll)
	}

	if err := h.validate.Struct(q); err != nil {
		return q, "", err
	}

	category, _ := search.ParseCategory(q.Category)
	return q, category, nil
}

// GetPlaces returns the fast-path places aggregate
func (h *SearchHandler) GetPlaces(w http.ResponseWriter, r *http.Request) {
	q, category, err := h.parseSearchQuery(r)
	if err != nil {
		respondWithValidationError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, h.searcher.Places(r.Context(), q.Location, category))
}

// GetInstagram returns the slow-path social posts as a list
func (h *SearchHandler) GetInstagram(w http.ResponseWriter, r *http.Request) {
	q, category, err := h.parseSearchQuery(r)
	if err != nil {
		respondWithValidationError(w, err)
		return
	}

	resp := h.searcher.Posts(r.Context(), q.Location, category)
	if len(resp.Warnings) > 0 {
		h.logger.Info("Instagram search degraded",
			zap.String("location", q.Location),
			zap.Strings("warnings", resp.Warnings),
		)
	}

	respondWithJSON(w, http.StatusOK, resp.Posts)
}

// GetFollowees returns posts from accounts a user follows that mention the location
func (h *SearchHandler) GetFollowees(w http.ResponseWriter, r *http.Request) {
	q := FolloweeQuery{
		Location:   strings.TrimSpace(r.URL.Query().Get("location")),
		IGUsername: strings.TrimPrefix(strings.TrimSpace(r.URL.Query().Get("ig_username")), "@"),
	}
	if err := h.validate.Struct(q); err != nil {
		respondWithValidationError(w, err)
		return
	}

	resp := h.searcher.Followees(r.Context(), q.IGUsername, q.Location)
	if len(resp.Warnings) > 0 {
		h.logger.Info("Followee search degraded",
			zap.String("ig_username", q.IGUsername),
			zap.Strings("warnings", resp.Warnings),
		)
	}

	respondWithJSON(w, http.StatusOK, resp.Posts)
}

// GetSearch returns the legacy combined response
func (h *SearchHandler) GetSearch(w http.ResponseWriter, r *http.Request) {
	q, category, err := h.parseSearchQuery(r)
	if err != nil {
		respondWithValidationError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, h.searcher.Search(r.Context(), q.Location, category))
}

// GetPhotos returns photos from the connected library
func (h *SearchHandler) GetPhotos(w http.ResponseWriter, r *http.Request) {
	q := PhotosQuery{Location: strings.TrimSpace(r.URL.Query().Get("location"))}
	if err := h.validate.Struct(q); err != nil {
		respondWithValidationError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, h.searcher.Photos(r.Context(), q.Location))
}

// Health reports liveness
func Health(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
