package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/country-lookup/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/country-lookup/internal/adapter/kafka"
	"github.com/couchcryptid/country-lookup/internal/adapter/openweather"
	"github.com/couchcryptid/country-lookup/internal/adapter/restcountries"
	"github.com/couchcryptid/country-lookup/internal/config"
	"github.com/couchcryptid/country-lookup/internal/lookup"
	"github.com/couchcryptid/country-lookup/internal/observability"
	"github.com/couchcryptid/country-lookup/internal/render"
	"github.com/jonboulle/clockwork"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	countries := restcountries.NewClient(cfg.CountriesBaseURL, cfg.HTTPClientTimeout, metrics, logger)
	catalog := lookup.NewCatalog(countries, metrics, logger)

	deps := lookup.Deps{
		Directory:   catalog,
		Clock:       clockwork.NewRealClock(),
		SettleDelay: cfg.SettleDelay,
		Metrics:     metrics,
		Logger:      logger,
	}

	// Weather is feature-flagged on OPENWEATHER_API_KEY.
	if cfg.WeatherEnabled() {
		client := openweather.NewClient(cfg.OpenWeatherAPIKey, cfg.WeatherBaseURL, cfg.IconBaseURL, cfg.HTTPClientTimeout, metrics, logger)
		deps.Weather = client
		deps.Icons = openweather.NewCachedIconFetcher(client, cfg.IconCacheSize, metrics)
		logger.Info("weather lookups enabled", "icon_cache_size", cfg.IconCacheSize, "timeout", cfg.HTTPClientTimeout)
	} else {
		logger.Warn("weather lookups disabled: OPENWEATHER_API_KEY is not set")
	}

	var writer *kafkaadapter.Writer
	if cfg.LookupEventsEnabled {
		writer = kafkaadapter.NewWriter(cfg, metrics, logger)
		deps.Publisher = writer
		logger.Info("lookup events enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaLookupTopic)
	}

	renderer, err := render.New(0)
	if err != nil {
		logger.Error("failed to parse templates", "error", err)
		os.Exit(1)
	}

	registry := lookup.NewRegistry(deps, cfg.SessionTTL)
	srv := httpadapter.NewServer(cfg.HTTPAddr, registry, catalog, catalog, renderer, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server. Sessions see an empty directory until the load finishes.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		_ = catalog.Load(ctx) // failure is logged by the catalog and reported on /readyz
	}()

	go registry.Run(ctx)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	registry.Close()
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
