// internal/server/server.go

package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"discover/internal/config"
	"discover/internal/metrics"
	"discover/internal/server/handlers"
)

// Server represents the HTTP server
type Server struct {
	server *http.Server
	router *chi.Mux
}

// NewServer creates a new HTTP server
func NewServer(
	cfg config.ServerConfig,
	searcher handlers.Searcher,
	oauth handlers.OAuthFlow,
	log *zap.Logger,
) *Server {
	router := NewRouter(cfg, searcher, oauth, log)

	// Create HTTP server
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      otelhttp.NewHandler(router, "discover"),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return &Server{
		server: httpServer,
		router: router,
	}
}

// NewRouter builds the route tree
func NewRouter(
	cfg config.ServerConfig,
	searcher handlers.Searcher,
	oauth handlers.OAuthFlow,
	log *zap.Logger,
) *chi.Mux {
	router := chi.NewRouter()

	// Middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger(log))
	router.Use(middleware.Recoverer)
	router.Use(metrics.Middleware)

	// CORS configuration
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CorsOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	// Create handler dependencies
	searchHandler := handlers.NewSearchHandler(searcher, handlers.NewValidator(), log)
	authHandler := handlers.NewAuthHandler(oauth, log)

	router.Get("/health", handlers.Health)
	router.Handle("/metrics", promhttp.Handler())

	// Routes
	router.Route("/api/search", func(r chi.Router) {
		// Longer than any source timeout
		r.Use(middleware.Timeout(90 * time.Second))

		r.Get("/", searchHandler.GetSearch)
		r.Get("/places", searchHandler.GetPlaces)
		r.Get("/instagram", searchHandler.GetInstagram)
		r.Get("/followees", searchHandler.GetFollowees)
		r.Get("/photos", searchHandler.GetPhotos)
	})

	router.Route("/auth/google", func(r chi.Router) {
		r.Get("/login", authHandler.GoogleLogin)
		r.Get("/callback", authHandler.GoogleCallback)
	})

	// WebSocket endpoint for streamed search
	router.Get("/ws/search", searchHandler.StreamSearch)

	return router
}

// requestLogger logs one line per request through zap
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if log == nil {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			log.Info("HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("took", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
