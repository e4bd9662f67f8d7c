// internal/config/config.go

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Environment string
	Server      ServerConfig
	Cache       CacheConfig
	Sources     SourcesConfig
	Yelp        YelpConfig
	Foursquare  FoursquareConfig
	Overpass    OverpassConfig
	Nominatim   NominatimConfig
	Instagram   InstagramConfig
	Google      GoogleConfig
	NATS        NATSConfig
	Log         LogConfig
}

// Secret names an environment variable holding a credential. The value is
// read when the credential is used, not when configuration is loaded.
type Secret string

// Value returns the current value of the credential
func (s Secret) Value() string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(string(s)))
}

// Name returns the environment variable name
func (s Secret) Name() string {
	return string(s)
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CorsOrigins     []string
	PublicURL       string
}

// CacheConfig holds result cache configuration
type CacheConfig struct {
	TTL time.Duration
}

// SourcesConfig holds the outer per-source timeouts applied by the orchestrator
type SourcesConfig struct {
	YelpTimeout       time.Duration
	FoursquareTimeout time.Duration
	MapTimeout        time.Duration
	GeocodeTimeout    time.Duration
	InstagramTimeout  time.Duration
	FolloweeTimeout   time.Duration
	PhotosTimeout     time.Duration
}

// YelpConfig holds reviews source configuration
type YelpConfig struct {
	BaseURL        string
	APIKey         Secret
	RequestTimeout time.Duration
	Limit          int
}

// FoursquareConfig holds places source configuration
type FoursquareConfig struct {
	BaseURL        string
	APIKey         Secret
	RequestTimeout time.Duration
	Limit          int
}

// OverpassConfig holds map-data source configuration
type OverpassConfig struct {
	Mirrors        []string
	RequestTimeout time.Duration
	RadiusMeters   int
	BucketLimit    int
	UserAgent      string
}

// NominatimConfig holds geocoder configuration
type NominatimConfig struct {
	URL               string
	RequestTimeout    time.Duration
	RequestsPerSecond float64
	UserAgent         string
}

// InstagramConfig holds social source configuration
type InstagramConfig struct {
	BaseURL        string
	Username       Secret
	Password       Secret
	SessionB64     Secret
	SessionDir     string
	RequestTimeout time.Duration
	MinInterval    time.Duration
	PostsPerTag    int
	MaxFollowees   int
	PostsPerUser   int
	MaxResults     int
}

// GoogleConfig holds the photo library OAuth configuration
type GoogleConfig struct {
	ClientID       Secret
	ClientSecret   Secret
	RedirectPath   string
	DriveBaseURL   string
	RequestTimeout time.Duration
	MaxPhotos      int
}

// NATSConfig holds NATS configuration. An empty URL disables event publishing.
type NATSConfig struct {
	URL            string
	SubjectPrefix  string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectTimeout time.Duration
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string
}

// Load loads configuration from environment variables
func Load() (Config, error) {
	config := Config{
		Environment: getEnv("APP_ENV", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("PORT", getEnvAsInt("SERVER_PORT", 8000)),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 90*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			CorsOrigins:     getEnvAsSlice("SERVER_CORS_ORIGINS", []string{"*"}),
			PublicURL:       getEnv("SERVER_PUBLIC_URL", "http://localhost:8000"),
		},
		Cache: CacheConfig{
			TTL: getEnvAsDuration("CACHE_TTL", 1800*time.Second),
		},
		Sources: SourcesConfig{
			YelpTimeout:       getEnvAsDuration("SOURCE_YELP_TIMEOUT", 10*time.Second),
			FoursquareTimeout: getEnvAsDuration("SOURCE_FOURSQUARE_TIMEOUT", 10*time.Second),
			MapTimeout:        getEnvAsDuration("SOURCE_MAP_TIMEOUT", 22*time.Second),
			GeocodeTimeout:    getEnvAsDuration("SOURCE_GEOCODE_TIMEOUT", 10*time.Second),
			InstagramTimeout:  getEnvAsDuration("SOURCE_INSTAGRAM_TIMEOUT", 25*time.Second),
			FolloweeTimeout:   getEnvAsDuration("SOURCE_FOLLOWEE_TIMEOUT", 60*time.Second),
			PhotosTimeout:     getEnvAsDuration("SOURCE_PHOTOS_TIMEOUT", 25*time.Second),
		},
		Yelp: YelpConfig{
			BaseURL:        getEnv("YELP_BASE_URL", "https://api.yelp.com/v3"),
			APIKey:         Secret("YELP_API_KEY"),
			RequestTimeout: getEnvAsDuration("YELP_REQUEST_TIMEOUT", 10*time.Second),
			Limit:          getEnvAsInt("YELP_LIMIT", 10),
		},
		Foursquare: FoursquareConfig{
			BaseURL:        getEnv("FOURSQUARE_BASE_URL", "https://api.foursquare.com/v3"),
			APIKey:         Secret("FOURSQUARE_API_KEY"),
			RequestTimeout: getEnvAsDuration("FOURSQUARE_REQUEST_TIMEOUT", 10*time.Second),
			Limit:          getEnvAsInt("FOURSQUARE_LIMIT", 10),
		},
		Overpass: OverpassConfig{
			Mirrors: getEnvAsSlice("OVERPASS_MIRRORS", []string{
				"https://overpass-api.de/api/interpreter",
				"https://overpass.kumi.systems/api/interpreter",
				"https://maps.mail.ru/osm/tools/overpass/api/interpreter",
			}),
			RequestTimeout: getEnvAsDuration("OVERPASS_REQUEST_TIMEOUT", 25*time.Second),
			RadiusMeters:   getEnvAsInt("OVERPASS_RADIUS_METERS", 2000),
			BucketLimit:    getEnvAsInt("OVERPASS_BUCKET_LIMIT", 12),
			UserAgent:      getEnv("OVERPASS_USER_AGENT", "discover-app/1.0"),
		},
		Nominatim: NominatimConfig{
			URL:               getEnv("NOMINATIM_URL", "https://nominatim.openstreetmap.org/search"),
			RequestTimeout:    getEnvAsDuration("NOMINATIM_REQUEST_TIMEOUT", 10*time.Second),
			RequestsPerSecond: getEnvAsFloat("NOMINATIM_RPS", 1.0),
			UserAgent:         getEnv("NOMINATIM_USER_AGENT", "discover-app/1.0"),
		},
		Instagram: InstagramConfig{
			BaseURL:        getEnv("INSTAGRAM_BASE_URL", "https://www.instagram.com"),
			Username:       Secret("INSTAGRAM_USERNAME"),
			Password:       Secret("INSTAGRAM_PASSWORD"),
			SessionB64:     Secret("INSTAGRAM_SESSION_B64"),
			SessionDir:     getEnv("INSTAGRAM_SESSION_DIR", defaultSessionDir()),
			RequestTimeout: getEnvAsDuration("INSTAGRAM_REQUEST_TIMEOUT", 15*time.Second),
			MinInterval:    getEnvAsDuration("INSTAGRAM_MIN_INTERVAL", 1*time.Second),
			PostsPerTag:    getEnvAsInt("INSTAGRAM_POSTS_PER_TAG", 9),
			MaxFollowees:   getEnvAsInt("INSTAGRAM_MAX_FOLLOWEES", 20),
			PostsPerUser:   getEnvAsInt("INSTAGRAM_POSTS_PER_FOLLOWEE", 6),
			MaxResults:     getEnvAsInt("INSTAGRAM_MAX_FOLLOWEE_RESULTS", 9),
		},
		Google: GoogleConfig{
			ClientID:       Secret("GOOGLE_CLIENT_ID"),
			ClientSecret:   Secret("GOOGLE_CLIENT_SECRET"),
			RedirectPath:   getEnv("GOOGLE_REDIRECT_PATH", "/auth/google/callback"),
			DriveBaseURL:   getEnv("GOOGLE_DRIVE_BASE_URL", "https://www.googleapis.com/drive/v3"),
			RequestTimeout: getEnvAsDuration("GOOGLE_REQUEST_TIMEOUT", 20*time.Second),
			MaxPhotos:      getEnvAsInt("GOOGLE_MAX_PHOTOS", 12),
		},
		NATS: NATSConfig{
			URL:            getEnv("NATS_URL", ""),
			SubjectPrefix:  getEnv("NATS_SUBJECT_PREFIX", "search"),
			MaxReconnects:  getEnvAsInt("NATS_MAX_RECONNECTS", 10),
			ReconnectWait:  getEnvAsDuration("NATS_RECONNECT_WAIT", 1*time.Second),
			ConnectTimeout: getEnvAsDuration("NATS_CONNECT_TIMEOUT", 2*time.Second),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	return config, validate(config)
}

// validate checks if config is valid
func validate(config Config) error {
	if config.Cache.TTL <= 0 {
		return fmt.Errorf("cache TTL must be positive, got %s", config.Cache.TTL)
	}

	if len(config.Overpass.Mirrors) == 0 {
		return fmt.Errorf("at least one overpass mirror must be configured")
	}

	timeouts := map[string]time.Duration{
		"SOURCE_YELP_TIMEOUT":       config.Sources.YelpTimeout,
		"SOURCE_FOURSQUARE_TIMEOUT": config.Sources.FoursquareTimeout,
		"SOURCE_MAP_TIMEOUT":        config.Sources.MapTimeout,
		"SOURCE_GEOCODE_TIMEOUT":    config.Sources.GeocodeTimeout,
		"SOURCE_INSTAGRAM_TIMEOUT":  config.Sources.InstagramTimeout,
		"SOURCE_FOLLOWEE_TIMEOUT":   config.Sources.FolloweeTimeout,
		"SOURCE_PHOTOS_TIMEOUT":     config.Sources.PhotosTimeout,
	}
	for name, d := range timeouts {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}

	if config.Nominatim.RequestsPerSecond <= 0 {
		return fmt.Errorf("NOMINATIM_RPS must be positive")
	}

	return nil
}

func defaultSessionDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".instagram"
	}
	return home + "/.config/discover"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			values = append(values, p)
		}
	}
	return values
}
