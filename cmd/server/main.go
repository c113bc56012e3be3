// Package main provides the nearest-points API HTTP server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"go.ngs.io/nearest-api/internal/adapter/nominatim"
	"go.ngs.io/nearest-api/internal/adapter/store/jsonfile"
	"go.ngs.io/nearest-api/internal/config"
	"go.ngs.io/nearest-api/internal/geocode"
	httpHandler "go.ngs.io/nearest-api/internal/http"
	"go.ngs.io/nearest-api/internal/usecase"
)

const version = "0.1.0"

func main() {
	// Parse command-line flags.
	showHelp := flag.Bool("help", false, "Show usage information")
	showVersion := flag.Bool("version", false, "Show version information")
	configPath := flag.String("config", "", "Optional YAML config file")
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}

	if *showVersion {
		fmt.Printf("nearest-api version %s\n", version)
		return
	}

	// Load configuration.
	v, err := config.Init(*configPath)
	if err != nil {
		log.Fatalf("%s", err)
	}
	if err := config.InitLogger(v.GetString("log.level")); err != nil {
		log.Fatalf("%s", err)
	}
	config.PrintConfig(v, config.Keys...)

	settings, err := config.Geocode(v)
	if err != nil {
		log.Fatalf("%s", err)
	}

	// Initialize geocode cache.
	cache := jsonfile.NewStore(v.GetString("cache.path"), log.WithField("component", "cache"))
	if err := cache.Load(); err != nil {
		log.Fatalf("Failed to load geocode cache: %v", err)
	}
	log.Infof("action: load_cache | result: success | path: %s | entries: %d", cache.Path(), cache.Len())

	// Initialize geocoder.
	nominatimClient := nominatim.NewClient(settings.BaseURL, settings.UserAgent, settings.Timeout)
	geocodeClient := geocode.NewClient(nominatimClient, cache, settings.Options, log.WithField("component", "geocode"))

	// Initialize use cases.
	rankUC := usecase.NewRankUseCase(v.GetInt("rank.index_threshold"), log.WithField("component", "rank"))
	referenceUC := usecase.NewReferenceUseCase(geocodeClient)

	// Setup router.
	router := httpHandler.SetupRouter(rankUC, referenceUC, httpHandler.RouterOptions{
		AllowedOrigins: config.AllowedOrigins(v),
		Logger:         log.WithField("component", "http"),
	})

	// Start server.
	port := v.GetString("server.port")
	addr := fmt.Sprintf(":%s", port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go flushPeriodically(ctx, geocodeClient, v.GetDuration("cache.flush_interval"))

	go func() {
		log.Infof("Server listening on %s", addr)
		log.Infof("Health check: http://localhost:%s/health", port)
		log.Infof("API endpoints:")
		log.Infof("  - POST /v1/rank")
		log.Infof("  - POST /v1/rank/upload")
		log.Infof("  - GET /v1/geocode")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("action: shutdown | result: in_progress")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("action: shutdown | result: fail")
	}
	if err := geocodeClient.Flush(); err != nil {
		log.WithError(err).Error("action: flush_cache | result: fail")
	}
	log.Info("action: shutdown | result: success")
}

// flushPeriodically persists newly geocoded addresses until ctx is done.
func flushPeriodically(ctx context.Context, client *geocode.Client, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := client.Flush(); err != nil {
				log.WithError(err).Error("action: flush_cache | result: fail")
			}
		}
	}
}

// printUsage prints usage information.
func printUsage() {
	fmt.Printf("Nearest API Server v%s\n\n", version)
	fmt.Println("USAGE:")
	fmt.Println("  nearest-api [flags]")
	fmt.Println()
	fmt.Println("FLAGS:")
	fmt.Println("  -help          Show this help message")
	fmt.Println("  -version       Show version information")
	fmt.Println("  -config PATH   Optional YAML config file")
	fmt.Println()
	fmt.Println("ENVIRONMENT VARIABLES:")
	fmt.Println("  NEAREST_SERVER_PORT (or PORT)             Server port (default: 8080)")
	fmt.Println("  NEAREST_CORS_ALLOWED_ORIGINS (or CORS_ALLOWED_ORIGINS)")
	fmt.Println("                                            Comma-separated allowed origins (default: all origins)")
	fmt.Println("  NEAREST_LOG_LEVEL                         Log level (default: info)")
	fmt.Println("  NEAREST_GEOCODE_BASE_URL                  Nominatim base URL")
	fmt.Println("  NEAREST_GEOCODE_USER_AGENT                User-Agent sent to the geocoder")
	fmt.Println("  NEAREST_GEOCODE_COUNTRY_CODES             Comma-separated country restriction (default: id)")
	fmt.Println("  NEAREST_GEOCODE_MIN_DELAY                 Minimum delay between lookups (default: 1.2s)")
	fmt.Println("  NEAREST_GEOCODE_MAX_RETRIES               Retries on transient errors (default: 6)")
	fmt.Println("  NEAREST_GEOCODE_ERROR_WAIT                Wait before each retry (default: 5s)")
	fmt.Println("  NEAREST_CACHE_PATH                        Geocode cache file (default: geocode_cache_pre.json)")
	fmt.Println("  NEAREST_CACHE_FLUSH_INTERVAL              How often new lookups are persisted (default: 1m)")
	fmt.Println("  NEAREST_RANK_INDEX_THRESHOLD              Candidates from which the R-tree prefilter is used (default: 256)")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Start server with default settings")
	fmt.Println("  nearest-api")
	fmt.Println()
	fmt.Println("  # Start server on custom port")
	fmt.Println("  PORT=3000 nearest-api")
	fmt.Println()
	fmt.Println("API ENDPOINTS:")
	fmt.Println("  GET  /health                   Health check")
	fmt.Println("  POST /v1/rank                  Rank JSON candidates by distance")
	fmt.Println("  POST /v1/rank/upload           Rank an uploaded CSV/XLSX table")
	fmt.Println("  GET  /v1/geocode               Resolve an address to a reference point")
	fmt.Println()
}
