// internal/adapter/instagram/session.go

package instagram

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"discover/internal/config"
	"discover/internal/logger"
)

// sessionPath returns the session file for a username
func sessionPath(dir, username string) string {
	return filepath.Join(dir, "session-"+username+".json")
}

// BootstrapSession writes the session file from INSTAGRAM_SESSION_B64 when
// both it and the username are set. It is a no-op otherwise.
func BootstrapSession(cfg config.InstagramConfig, log *zap.Logger) error {
	log = logger.OrNop(log)

	b64 := cfg.SessionB64.Value()
	username := cfg.Username.Value()
	if b64 == "" || username == "" {
		return nil
	}

	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", cfg.SessionB64.Name(), err)
	}

	// Reject anything that is not a cookie map before it reaches disk
	var cookies map[string]string
	if err := json.Unmarshal(data, &cookies); err != nil {
		return fmt.Errorf("session is not a cookie map: %w", err)
	}

	if err := os.MkdirAll(cfg.SessionDir, 0o700); err != nil {
		return fmt.Errorf("failed to create session dir: %w", err)
	}

	path := sessionPath(cfg.SessionDir, username)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}

	log.Info("Instagram session written", zap.String("path", path))
	return nil
}

// loadSession reads a cookie map from disk
func loadSession(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cookies map[string]string
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, fmt.Errorf("invalid session file: %w", err)
	}
	if len(cookies) == 0 {
		return nil, errors.New("session file holds no cookies")
	}

	return cookies, nil
}

// saveSession writes the jar's cookies for u to disk
func saveSession(path string, jar http.CookieJar, u *url.URL) error {
	cookies := make(map[string]string)
	for _, c := range jar.Cookies(u) {
		cookies[c.Name] = c.Value
	}

	data, err := json.Marshal(cookies)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create session dir: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

// applySession loads a cookie map into the jar
func applySession(jar http.CookieJar, u *url.URL, cookies map[string]string) {
	list := make([]*http.Cookie, 0, len(cookies))
	for name, value := range cookies {
		list = append(list, &http.Cookie{Name: name, Value: value, Path: "/"})
	}
	jar.SetCookies(u, list)
}

// csrfToken returns the csrftoken cookie for u, if present
func csrfToken(jar http.CookieJar, u *url.URL) string {
	for _, c := range jar.Cookies(u) {
		if strings.EqualFold(c.Name, "csrftoken") {
			return c.Value
		}
	}
	return ""
}
