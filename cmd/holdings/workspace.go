package main

import (
	"context"
	"fmt"

	"github.com/dense-analysis/coinfolio/internal/config"
	"github.com/dense-analysis/coinfolio/internal/env"
	"github.com/dense-analysis/coinfolio/internal/logging"
	"github.com/dense-analysis/coinfolio/internal/market"
	portfolioservice "github.com/dense-analysis/coinfolio/internal/portfolio"
	"github.com/dense-analysis/coinfolio/internal/store"
	"go.uber.org/zap"
)

// workspace is the loaded portfolio a command works on.
type workspace struct {
	service  *portfolioservice.Service
	currency string
	logger   *zap.Logger
}

// openWorkspace reads the configuration, opens the configured store and
// loads the portfolio from it. Commands only log warnings so their output
// stays readable.
func openWorkspace(ctx context.Context) (*workspace, error) {
	if err := env.LoadEnvironmentVariables(); err != nil {
		return nil, err
	}

	logger, err := logging.New("warn", "console")

	if err != nil {
		return nil, err
	}

	configuration := config.LoadApplicationConfiguration(logger)

	client := market.NewClient(market.Options{
		BaseURL:       configuration.CoinGeckoBaseURL,
		APIKey:        configuration.CoinGeckoAPIKey,
		QuoteCurrency: configuration.QuoteCurrency,
		RatePerMinute: configuration.MarketRatePerMinute,
	}, logger)

	backend, err := store.Open(ctx, configuration, logger)

	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	service := portfolioservice.New(backend, client, logger)
	service.Load(ctx)

	return &workspace{
		service:  service,
		currency: configuration.QuoteCurrency,
		logger:   logger,
	}, nil
}

func (ws *workspace) Close() {
	if err := ws.service.Close(); err != nil {
		ws.logger.Warn("closing store failed", zap.Error(err))
	}

	ws.logger.Sync()
}
