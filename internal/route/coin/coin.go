// Package coin serves market data for browsing and searching coins.
package coin

import (
	"context"
	"errors"
	"net/http"

	"github.com/dense-analysis/coinfolio/internal/market"
	"github.com/dense-analysis/coinfolio/internal/model"
	"github.com/dense-analysis/coinfolio/pkg/lax"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Market is the market data the coin routes read.
type Market interface {
	ListCoins(ctx context.Context, params market.ListParams) ([]model.Coin, error)
	Search(ctx context.Context, query string) ([]model.Coin, error)
	CoinByID(ctx context.Context, id string) (*model.Coin, error)
}

type Handler struct {
	market Market
	logger *zap.Logger
}

func NewHandler(market Market, logger *zap.Logger) *Handler {
	return &Handler{market: market, logger: logger}
}

func (handler *Handler) failure(err error) any {
	handler.logger.Warn("market request failed", zap.Error(err))

	var statusErr *market.StatusError

	if errors.As(err, &statusErr) && statusErr.Code == http.StatusTooManyRequests {
		return lax.MakeResponse(http.StatusBadGateway, "market rate limit reached")
	}

	return lax.MakeResponse(http.StatusBadGateway, "market data unavailable")
}

func (handler *Handler) listCoins(request *lax.Request) any {
	params := market.ListParams{
		Order:   request.URL.Query().Get("order"),
		PerPage: request.QueryInt("per_page", 0),
		Page:    request.QueryInt("page", 1),
	}

	if params.Page < 1 {
		return lax.MakeErrorListResponse(lax.Issue("page", "page must be 1 or more"))
	}

	if params.PerPage < 0 {
		return lax.MakeErrorListResponse(lax.Issue("per_page", "per_page must not be negative"))
	}

	coins, err := handler.market.ListCoins(request.Context(), params)

	if err != nil {
		return handler.failure(err)
	}

	return coins
}

func (handler *Handler) searchCoins(request *lax.Request) any {
	coins, err := handler.market.Search(request.Context(), request.URL.Query().Get("q"))

	if err != nil {
		return handler.failure(err)
	}

	return coins
}

func (handler *Handler) getCoin(request *lax.Request) any {
	coin, err := handler.market.CoinByID(request.Context(), request.Var("id"))

	if err != nil {
		return handler.failure(err)
	}

	if coin == nil {
		return lax.MakeNotFoundResponse()
	}

	return coin
}

// RegisterAPI adds the coin routes to a router.
func (handler *Handler) RegisterAPI(router *mux.Router) {
	router.Handle("/api/coins", lax.Wrap(lax.View{Get: handler.listCoins}))
	router.Handle("/api/coins/search", lax.Wrap(lax.View{Get: handler.searchCoins}))
	router.Handle("/api/coins/{id}", lax.Wrap(lax.View{Get: handler.getCoin}))
}
