// Serve the portfolio over HTTP and keep its prices up to date.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dense-analysis/coinfolio/internal/config"
	"github.com/dense-analysis/coinfolio/internal/env"
	"github.com/dense-analysis/coinfolio/internal/logging"
	"github.com/dense-analysis/coinfolio/internal/market"
	"github.com/dense-analysis/coinfolio/internal/metrics"
	portfolioservice "github.com/dense-analysis/coinfolio/internal/portfolio"
	"github.com/dense-analysis/coinfolio/internal/route/auth"
	"github.com/dense-analysis/coinfolio/internal/session"
	"github.com/dense-analysis/coinfolio/internal/store"
	"github.com/dense-analysis/coinfolio/pkg/lax"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := env.LoadEnvironmentVariables(); err != nil {
		fmt.Fprintf(os.Stderr, "Environment error: %s\n", err)
		os.Exit(1)
	}

	// The log settings come from the configuration, so it is read twice:
	// once to build the logger and again to log any invalid settings.
	configuration := config.LoadApplicationConfiguration(zap.NewNop())
	logger, err := logging.New(configuration.LogLevel, configuration.LogFormat)

	if err != nil {
		fmt.Fprintf(os.Stderr, "Logging error: %s\n", err)
		os.Exit(1)
	}

	defer logger.Sync()

	configuration = config.LoadApplicationConfiguration(logger)

	if err := run(configuration, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func run(configuration config.ApplicationConfiguration, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if configuration.LogLevel == "debug" {
		lax.EnableDebugMode()
	}

	lax.SetLogger(logger)

	var sessions *session.Store

	if configuration.PasswordProtected() {
		var err error

		if sessions, err = session.New(configuration.SessionSecretKey); err != nil {
			return err
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	appMetrics := metrics.New(registry)

	client := market.NewClient(market.Options{
		BaseURL:       configuration.CoinGeckoBaseURL,
		APIKey:        configuration.CoinGeckoAPIKey,
		QuoteCurrency: configuration.QuoteCurrency,
		CacheTTL:      configuration.MarketCacheTTL,
		RatePerMinute: configuration.MarketRatePerMinute,
	}, logger)

	backend, err := store.Open(ctx, configuration, logger)

	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	service := portfolioservice.New(
		backend,
		client,
		logger,
		portfolioservice.WithMetrics(appMetrics),
		portfolioservice.WithRefreshInterval(configuration.RefreshInterval),
	)

	defer func() {
		if err := service.Close(); err != nil {
			logger.Warn("closing store failed", zap.Error(err))
		}
	}()

	service.Start(ctx)
	go service.Run(ctx)

	router := newRouter(routerOptions{
		service:        service,
		market:         client,
		auth:           auth.NewHandler(sessions, configuration.PasswordHash, logger),
		metrics:        appMetrics,
		gatherer:       registry,
		currency:       configuration.QuoteCurrency,
		allowedOrigins: configuration.AllowedOrigins,
		logger:         logger,
	})

	server := http.Server{
		Addr:         ":" + configuration.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}

		close(serverErrors)
	}()

	logger.Info("server started",
		zap.String("addr", server.Addr),
		zap.String("store", configuration.StoreBackend),
		zap.Bool("password_protected", configuration.PasswordProtected()),
	)

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shut down: %w", err)
	}

	logger.Info("server shut down")

	return nil
}
