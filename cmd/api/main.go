// cmd/api/main.go

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"discover/internal/adapter/events"
	"discover/internal/adapter/foursquare"
	"discover/internal/adapter/googlephotos"
	"discover/internal/adapter/instagram"
	"discover/internal/adapter/nominatim"
	"discover/internal/adapter/overpass"
	"discover/internal/adapter/yelp"
	"discover/internal/config"
	"discover/internal/logger"
	"discover/internal/server"
	searchService "discover/internal/service/search"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "discover: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is normal in deployed environments
	envErr := godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Environment)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	if envErr != nil {
		log.Debug("No .env file loaded", zap.Error(envErr))
	}

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Search events are optional
	var publisher events.Publisher = events.Nop{}
	if cfg.NATS.URL != "" {
		natsConn, err := events.Connect(cfg.NATS, log)
		if err != nil {
			return err
		}
		defer natsConn.Close()

		publisher = events.NewNATSPublisher(natsConn, cfg.NATS.SubjectPrefix, log)
		log.Info("Publishing search events", zap.String("url", cfg.NATS.URL))
	}

	if err := instagram.BootstrapSession(cfg.Instagram, log); err != nil {
		log.Warn("Failed to write Instagram session", zap.Error(err))
	}

	// Initialize source adapters
	geocoder := nominatim.NewGeocoder(cfg.Nominatim, log)

	instagramClient, err := instagram.NewClient(cfg.Instagram, log)
	if err != nil {
		return err
	}
	defer instagramClient.Close()

	tokens := googlephotos.NewTokenStore()
	googleAuth := googlephotos.NewAuth(cfg.Google, cfg.Server.PublicURL, tokens, log)

	// Initialize search service
	service := searchService.NewService(
		searchService.Sources{
			Businesses: yelp.NewClient(cfg.Yelp, log),
			Places:     foursquare.NewClient(cfg.Foursquare, log),
			Map:        overpass.NewClient(cfg.Overpass, geocoder, log),
			Geocoder:   geocoder,
			Posts:      instagramClient,
			Photos:     googlephotos.NewClient(cfg.Google, googleAuth, log),
		},
		cfg.Sources,
		cfg.Cache.TTL,
		publisher,
		log,
	)

	// Initialize HTTP server
	httpServer := server.NewServer(cfg.Server, service, googleAuth, log)

	// Start HTTP server
	serverErr := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server",
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port),
			zap.String("environment", cfg.Environment),
		)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for shutdown signal
	select {
	case err := <-serverErr:
		return fmt.Errorf("HTTP server error: %w", err)
	case <-shutdown:
		log.Info("Shutdown signal received")
	}

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Shutdown HTTP server
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}

	// Lane and NATS are closed by the deferred calls
	log.Info("Shutdown complete")
	return nil
}
