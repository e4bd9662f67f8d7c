// internal/server/handlers/auth.go

package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"discover/internal/adapter/googlephotos"
	"discover/internal/logger"
)

// OAuthFlow is the authorization code flow for the photo library
type OAuthFlow interface {
	AuthCodeURL() (string, error)
	Exchange(ctx context.Context, state, code string) error
}

// AuthHandler handles the Google account connection
type AuthHandler struct {
	flow   OAuthFlow
	logger *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(flow OAuthFlow, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		flow:   flow,
		logger: logger.OrNop(log).Named("auth"),
	}
}

// GoogleLogin redirects to the consent page
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	url, err := h.flow.AuthCodeURL()
	if err != nil {
		if errors.Is(err, googlephotos.ErrNotConfigured) {
			respondWithError(w, http.StatusServiceUnavailable, "Google Photos: set GOOGLE_CLIENT_ID in .env")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to start Google login")
		return
	}

	http.Redirect(w, r, url, http.StatusFound)
}

// GoogleCallback exchanges the authorization code for a stored token
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	if reason := r.URL.Query().Get("error"); reason != "" {
		respondWithError(w, http.StatusBadRequest, "Google authorization denied: "+reason)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		respondWithError(w, http.StatusBadRequest, "Missing authorization code")
		return
	}

	err := h.flow.Exchange(r.Context(), r.URL.Query().Get("state"), code)
	switch {
	case err == nil:
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "connected"})
	case errors.Is(err, googlephotos.ErrInvalidState):
		respondWithError(w, http.StatusBadRequest, "Invalid or expired login state")
	case errors.Is(err, googlephotos.ErrNotConfigured):
		respondWithError(w, http.StatusServiceUnavailable, "Google Photos: set GOOGLE_CLIENT_ID in .env")
	default:
		h.logger.Error("Google token exchange failed", zap.Error(err))
		respondWithError(w, http.StatusBadGateway, "Google token exchange failed")
	}
}
