// Package market reads coin prices and metadata from the CoinGecko API.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dense-analysis/coinfolio/internal/model"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.coingecko.com/api/v3"
	apiKeyHeader   = "x-cg-demo-api-key"
	// maxPerPage is the largest page the markets endpoint returns.
	maxPerPage  = 250
	searchLimit = 20
)

// StatusError is returned when CoinGecko answers with a non-2xx status.
type StatusError struct {
	Code int
	Path string
}

func (err *StatusError) Error() string {
	return fmt.Sprintf("coingecko %s: unexpected status %d", err.Path, err.Code)
}

// Options configures a Client.
type Options struct {
	BaseURL       string
	APIKey        string
	QuoteCurrency string
	CacheTTL      time.Duration
	// RatePerMinute limits requests sent to CoinGecko. Zero means no limit.
	RatePerMinute int
	Timeout       time.Duration
}

// Client is a CoinGecko v3 REST client.
type Client struct {
	baseURL       string
	apiKey        string
	quoteCurrency string
	httpClient    *http.Client
}

// ListParams selects a page of coins ordered by a market field.
type ListParams struct {
	Order   string
	PerPage int
	Page    int
}

func (params ListParams) withDefaults() ListParams {
	if params.Order == "" {
		params.Order = "market_cap_desc"
	}

	if params.PerPage <= 0 {
		params.PerPage = 100
	}

	if params.PerPage > maxPerPage {
		params.PerPage = maxPerPage
	}

	if params.Page <= 0 {
		params.Page = 1
	}

	return params
}

// marketData is one row of the /coins/markets response.
type marketData struct {
	ID                       string              `json:"id"`
	Symbol                   string              `json:"symbol"`
	Name                     string              `json:"name"`
	Image                    string              `json:"image"`
	CurrentPrice             decimal.NullDecimal `json:"current_price"`
	MarketCap                decimal.NullDecimal `json:"market_cap"`
	MarketCapRank            *int                `json:"market_cap_rank"`
	PriceChange24h           decimal.NullDecimal `json:"price_change_24h"`
	PriceChangePercentage24h decimal.NullDecimal `json:"price_change_percentage_24h"`
	TotalVolume              decimal.NullDecimal `json:"total_volume"`
	High24h                  decimal.NullDecimal `json:"high_24h"`
	Low24h                   decimal.NullDecimal `json:"low_24h"`
	LastUpdated              time.Time           `json:"last_updated"`
}

func (data marketData) coin() model.Coin {
	coin := model.Coin{
		ID:                       data.ID,
		Symbol:                   strings.ToUpper(data.Symbol),
		Name:                     data.Name,
		Image:                    data.Image,
		CurrentPrice:             data.CurrentPrice.Decimal,
		MarketCap:                data.MarketCap.Decimal,
		PriceChange24h:           data.PriceChange24h.Decimal,
		PriceChangePercentage24h: data.PriceChangePercentage24h.Decimal,
		TotalVolume:              data.TotalVolume.Decimal,
		High24h:                  data.High24h.Decimal,
		Low24h:                   data.Low24h.Decimal,
		LastUpdated:              data.LastUpdated,
	}

	if data.MarketCapRank != nil {
		coin.MarketCapRank = *data.MarketCapRank
	}

	return coin
}

// NewClient creates a client. Responses for coin lists and lookups are kept
// for options.CacheTTL. Price requests always go to the network.
func NewClient(options Options, logger *zap.Logger) *Client {
	if options.BaseURL == "" {
		options.BaseURL = DefaultBaseURL
	}

	if options.QuoteCurrency == "" {
		options.QuoteCurrency = "usd"
	}

	if options.Timeout <= 0 {
		options.Timeout = 10 * time.Second
	}

	limit := rate.Inf

	if options.RatePerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(options.RatePerMinute))
	}

	var transport http.RoundTripper = &limitedTransport{
		base:    http.DefaultTransport,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
	transport = newMemoryCache(transport, options.CacheTTL)

	return &Client{
		baseURL:       strings.TrimRight(options.BaseURL, "/"),
		apiKey:        options.APIKey,
		quoteCurrency: strings.ToLower(options.QuoteCurrency),
		httpClient:    &http.Client{Timeout: options.Timeout, Transport: transport},
	}
}

// QuoteCurrency is the currency prices are quoted in.
func (client *Client) QuoteCurrency() string {
	return client.quoteCurrency
}

func (client *Client) markets(ctx context.Context, query url.Values, cached bool) ([]marketData, error) {
	query.Set("vs_currency", client.quoteCurrency)
	endpoint := client.baseURL + "/coins/markets?" + query.Encode()

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)

	if err != nil {
		return nil, err
	}

	request.Header.Set("Accept", "application/json")

	if client.apiKey != "" {
		request.Header.Set(apiKeyHeader, client.apiKey)
	}

	if !cached {
		request.Header.Set(noCacheHeader, "no-cache")
	}

	response, err := client.httpClient.Do(request)

	if err != nil {
		return nil, fmt.Errorf("coingecko request: %w", err)
	}

	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, &StatusError{Code: response.StatusCode, Path: "/coins/markets"}
	}

	var results []marketData

	if err := json.NewDecoder(response.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("coingecko decode: %w", err)
	}

	return results, nil
}

// FetchPrices returns the current price of each coin id that CoinGecko knows.
// Unknown ids and coins without a price are left out of the result.
func (client *Client) FetchPrices(ctx context.Context, ids []string) (map[string]decimal.Decimal, error) {
	prices := make(map[string]decimal.Decimal, len(ids))

	for start := 0; start < len(ids); start += maxPerPage {
		chunk := ids[start:min(start+maxPerPage, len(ids))]
		query := url.Values{}
		query.Set("ids", strings.Join(chunk, ","))
		query.Set("per_page", strconv.Itoa(len(chunk)))
		query.Set("page", "1")

		results, err := client.markets(ctx, query, false)

		if err != nil {
			return nil, err
		}

		for _, result := range results {
			if result.CurrentPrice.Valid {
				prices[result.ID] = result.CurrentPrice.Decimal
			}
		}
	}

	return prices, nil
}

// ListCoins returns one page of coins.
func (client *Client) ListCoins(ctx context.Context, params ListParams) ([]model.Coin, error) {
	params = params.withDefaults()

	query := url.Values{}
	query.Set("order", params.Order)
	query.Set("per_page", strconv.Itoa(params.PerPage))
	query.Set("page", strconv.Itoa(params.Page))
	query.Set("sparkline", "false")
	query.Set("price_change_percentage", "24h")

	results, err := client.markets(ctx, query, true)

	if err != nil {
		return nil, err
	}

	coins := make([]model.Coin, len(results))

	for i, result := range results {
		coins[i] = result.coin()
	}

	return coins, nil
}

// CoinByID looks up a single coin. It returns nil without an error when
// CoinGecko does not know the id.
func (client *Client) CoinByID(ctx context.Context, id string) (*model.Coin, error) {
	if id == "" {
		return nil, nil
	}

	query := url.Values{}
	query.Set("ids", id)

	results, err := client.markets(ctx, query, true)

	if err != nil {
		return nil, err
	}

	for _, result := range results {
		if result.ID == id {
			coin := result.coin()

			return &coin, nil
		}
	}

	return nil, nil
}

// Search matches the query against the names and symbols of the largest
// coins by market cap.
func (client *Client) Search(ctx context.Context, query string) ([]model.Coin, error) {
	query = strings.ToLower(strings.TrimSpace(query))

	if query == "" {
		return []model.Coin{}, nil
	}

	coins, err := client.ListCoins(ctx, ListParams{Order: "market_cap_desc", PerPage: maxPerPage, Page: 1})

	if err != nil {
		return nil, err
	}

	matches := make([]model.Coin, 0, searchLimit)

	for _, coin := range coins {
		if strings.Contains(strings.ToLower(coin.Name), query) ||
			strings.Contains(strings.ToLower(coin.Symbol), query) {
			matches = append(matches, coin)

			if len(matches) == searchLimit {
				break
			}
		}
	}

	return matches, nil
}
