// Property enrichment gateway: resolves postal addresses to parcel records
// by orchestrating a REST address-search provider and a legacy async
// title-data provider.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"propertygate/internal/cache"
	commonhttp "propertygate/internal/common/http"
	"propertygate/internal/common/logging"
	"propertygate/internal/config"
	"propertygate/internal/engine"
	"propertygate/internal/guard"
	"propertygate/internal/handlers"
	"propertygate/internal/middleware"
	"propertygate/internal/orchestrate"
	"propertygate/internal/providers/parcelapi"
	"propertygate/internal/providers/titlewire"
	"propertygate/internal/server"
	"propertygate/internal/token"
)

func main() {
	// Load .env file if present (development convenience)
	_ = godotenv.Load()

	cfg := config.Load()

	logging.InitGlobalLogger()
	defer logging.MustSync()

	if err := cfg.Validate(); err != nil {
		logging.Error("invalid configuration", err)
		os.Exit(1)
	}

	store, err := buildCache(cfg)
	if err != nil {
		logging.Error("failed to initialize cache", err)
		os.Exit(1)
	}

	tokens, err := token.NewStore(token.Config{
		TokenURL:     cfg.ParcelAPITokenURL,
		ClientID:     cfg.ParcelAPIClientID,
		ClientSecret: cfg.ParcelAPIClientSecret,
		Skew:         cfg.TokenSkew,
		DefaultTTL:   cfg.TokenDefaultTTL,
	}, commonhttp.NewHTTPClientWithTimeout(cfg.RequestTimeout))
	if err != nil {
		logging.Error("failed to initialize token store", err)
		os.Exit(1)
	}

	restClient, err := parcelapi.NewClient(parcelapi.Config{
		BaseURL: cfg.ParcelAPIBaseURL,
		FeedID:  cfg.ParcelAPIFeedID,
		Timeout: cfg.RequestTimeout,
	}, tokens)
	if err != nil {
		logging.Error("failed to initialize search provider client", err)
		os.Exit(1)
	}

	searcher := orchestrate.NewSearchOrchestrator(restClient, nil)

	var legacy engine.AsyncRunner
	if cfg.LegacyEnabled() {
		legacyClient, err := titlewire.NewClient(titlewire.Config{
			BaseURL:   cfg.TitleWireBaseURL,
			UserID:    cfg.TitleWireUserID,
			Password:  cfg.TitleWirePassword,
			ServiceID: cfg.TitleWireServiceID,
			Timeout:   cfg.RequestTimeout,
		})
		if err != nil {
			logging.Error("failed to initialize legacy provider client", err)
			os.Exit(1)
		}
		legacy = orchestrate.NewAsyncOrchestrator(legacyClient, orchestrate.AsyncConfig{
			PollInterval: cfg.PollInterval,
			MaxWait:      cfg.MaxWait,
		}, nil)
		logging.Info("legacy provider enabled",
			logging.String("base_url", cfg.TitleWireBaseURL),
		)
	}

	g := guard.New("providers", guard.Config{
		MaxInFlight:  int64(cfg.ConcurrencyLimit),
		RPS:          cfg.ProviderRPS,
		MaxAttempts:  cfg.RetryMaxAttempts,
		InitialDelay: cfg.RetryInitialDelay,
		MaxDelay:     cfg.RetryMaxDelay,
	})

	eng := engine.New(store, g, searcher, legacy, cfg.CacheTTL, nil)

	// Keep the shared token fresh in the background
	refreshCtx, stopRefresh := context.WithCancel(context.Background())
	defer stopRefresh()
	go tokens.StartProactiveRefresh(refreshCtx)

	handler := handlers.New(eng, store, tokens.Info)

	router := mux.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logging)
	router.HandleFunc("/health", handler.Health).Methods("GET")
	router.HandleFunc("/api/enrich", handler.Enrich).Methods("POST")
	router.HandleFunc("/api/stats", handler.Stats).Methods("GET")

	srv := server.New(router, cfg.Port)
	serveErr := srv.Start()

	logging.Info("property enrichment gateway started",
		logging.String("port", cfg.Port),
		logging.String("cache_backend", cfg.CacheBackend),
		logging.Bool("legacy_enabled", cfg.LegacyEnabled()),
	)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logging.Info("shutting down", logging.String("signal", sig.String()))
	case err := <-serveErr:
		logging.Error("server failed", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error("graceful shutdown failed", err)
	}
}

// buildCache constructs the configured cache backend
func buildCache(cfg *config.Config) (cache.Cache, error) {
	switch cfg.CacheBackend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis unreachable at %s: %w", cfg.RedisAddress, err)
		}
		return cache.NewRedisCache(client, ""), nil
	default:
		return cache.NewLocalCache(cfg.CacheTTL, 10*time.Minute), nil
	}
}
