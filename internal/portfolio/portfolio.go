// Package portfolio ties the ledger to its storage and its price source.
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dense-analysis/coinfolio/internal/ledger"
	"github.com/dense-analysis/coinfolio/internal/metrics"
	"github.com/dense-analysis/coinfolio/internal/model"
	"github.com/dense-analysis/coinfolio/internal/refresh"
	"github.com/dense-analysis/coinfolio/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const saveTimeout = 5 * time.Second

var (
	ErrUnknownCoin = errors.New("unknown coin")
	ErrNoPrice     = errors.New("no market price")
)

// Market is the market data the service needs.
type Market interface {
	FetchPrices(ctx context.Context, ids []string) (map[string]decimal.Decimal, error)
	CoinByID(ctx context.Context, id string) (*model.Coin, error)
}

// Option configures a Service.
type Option func(*settings)

type settings struct {
	ledger          *ledger.Ledger
	metrics         *metrics.Metrics
	refreshInterval time.Duration
	refreshTimeout  time.Duration
}

// WithLedger uses an existing ledger instead of a new empty one.
func WithLedger(l *ledger.Ledger) Option {
	return func(s *settings) {
		s.ledger = l
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *settings) {
		s.metrics = m
	}
}

func WithRefreshInterval(interval time.Duration) Option {
	return func(s *settings) {
		s.refreshInterval = interval
	}
}

func WithRefreshTimeout(timeout time.Duration) Option {
	return func(s *settings) {
		s.refreshTimeout = timeout
	}
}

// Service owns the ledger for one portfolio.
//
// Mutations are saved to the backend as soon as they change the holdings.
// Save failures are logged and counted but never returned: the in-memory
// ledger stays authoritative for the life of the process.
type Service struct {
	ledger    *ledger.Ledger
	backend   store.Backend
	market    Market
	refresher *refresh.Refresher
	metrics   *metrics.Metrics
	logger    *zap.Logger
	saveMu    sync.Mutex
}

func New(backend store.Backend, market Market, logger *zap.Logger, options ...Option) *Service {
	s := settings{}

	for _, option := range options {
		option(&s)
	}

	if s.ledger == nil {
		s.ledger = ledger.New()
	}

	service := &Service{
		ledger:  s.ledger,
		backend: backend,
		market:  market,
		metrics: s.metrics,
		logger:  logger,
	}

	service.refresher = refresh.New(
		market,
		service.ledger,
		logger,
		refresh.WithInterval(s.refreshInterval),
		refresh.WithTimeout(s.refreshTimeout),
		refresh.WithOnApplied(func(map[string]decimal.Decimal) { service.publish() }),
		refresh.WithResultObserver(func(result string) {
			if service.metrics != nil {
				service.metrics.ObserveRefresh(result)
			}
		}),
	)

	return service
}

func (service *Service) publish() {
	if service.metrics != nil {
		service.metrics.ObserveSnapshot(service.ledger.Snapshot())
	}
}

// save writes the current holdings. Saves are serialised so the backend
// always ends up with the state of the most recent save.
func (service *Service) save() {
	service.saveMu.Lock()
	defer service.saveMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if err := service.backend.Save(ctx, service.ledger.Holdings()); err != nil {
		service.logger.Error("saving portfolio failed", zap.Error(err))

		if service.metrics != nil {
			service.metrics.SaveFailed()
		}
	}
}

// changed saves and publishes metrics after a mutation.
func (service *Service) changed(changed bool) bool {
	if changed {
		service.save()
		service.publish()
	}

	return changed
}

// Load reads the stored holdings into the ledger. A failed load is logged
// and leaves the ledger empty.
func (service *Service) Load(ctx context.Context) {
	items, err := service.backend.Load(ctx)

	if err != nil {
		service.logger.Error("loading portfolio failed", zap.Error(err))
		items = nil
	}

	service.ledger.Hydrate(items)
	service.logger.Info("portfolio loaded", zap.Int("holdings", service.ledger.Len()))
	service.publish()
}

// Start loads the portfolio and fetches prices once.
func (service *Service) Start(ctx context.Context) {
	service.Load(ctx)
	_ = service.refresher.RefreshNow(ctx)
}

// Run refreshes prices on the refresher interval until ctx is done.
func (service *Service) Run(ctx context.Context) {
	service.refresher.Run(ctx)
}

// Acquire adds coins to the portfolio. Invalid input changes nothing and
// the validation error is returned.
func (service *Service) Acquire(input ledger.HoldingInput) error {
	if err := input.Validate(); err != nil {
		return err
	}

	service.changed(service.ledger.Acquire(input))

	return nil
}

// AcquireCoin acquires a coin using market data for its metadata, and for
// its price when price is nil. The live price is fetched without the cache
// and applied through the refresher, so it never replaces a newer price.
func (service *Service) AcquireCoin(
	ctx context.Context,
	id string,
	amount decimal.Decimal,
	price *decimal.Decimal,
	purchaseDate time.Time,
) (model.Holding, error) {
	coin, err := service.market.CoinByID(ctx, id)

	if err != nil {
		return model.Holding{}, fmt.Errorf("look up %s: %w", id, err)
	}

	if coin == nil {
		return model.Holding{}, fmt.Errorf("%w: %s", ErrUnknownCoin, id)
	}

	input := ledger.HoldingInput{
		ID:           coin.ID,
		Symbol:       coin.Symbol,
		Name:         coin.Name,
		Image:        coin.Image,
		Amount:       amount,
		PurchaseDate: purchaseDate,
	}

	if price != nil {
		input.PurchasePrice = *price
	}

	if err := input.Validate(); err != nil {
		return model.Holding{}, err
	}

	ids := []string{coin.ID}

	if price != nil {
		if err := service.Acquire(input); err != nil {
			return model.Holding{}, err
		}

		// The holding is kept even when no live price can be fetched.
		if err := service.refresher.RefreshWith(ctx, ids, nil); err != nil {
			service.logger.Warn("price for new holding unavailable",
				zap.String("id", coin.ID),
				zap.Error(err),
			)
		}
	} else {
		err := service.refresher.RefreshWith(ctx, ids, func(prices map[string]decimal.Decimal) error {
			latest, ok := prices[coin.ID]

			if !ok {
				return fmt.Errorf("%w: %s", ErrNoPrice, coin.ID)
			}

			input.PurchasePrice = latest

			return service.Acquire(input)
		})

		if err != nil {
			return model.Holding{}, err
		}
	}

	holding, _ := service.ledger.Get(coin.ID)

	return holding, nil
}

// SetAmount replaces the amount of a coin. It reports whether the coin was held.
func (service *Service) SetAmount(id string, amount decimal.Decimal) bool {
	return service.changed(service.ledger.SetAmount(id, amount))
}

// Remove deletes a coin. It reports whether the coin was held.
func (service *Service) Remove(id string) bool {
	return service.changed(service.ledger.Remove(id))
}

// Clear removes every holding and returns how many there were.
func (service *Service) Clear() int {
	removed := 0

	for _, id := range service.ledger.IDs() {
		if service.ledger.Remove(id) {
			removed++
		}
	}

	// An empty portfolio is saved even when nothing was held.
	service.save()
	service.publish()

	return removed
}

// RefreshPrices fetches live prices now.
func (service *Service) RefreshPrices(ctx context.Context) error {
	return service.refresher.RefreshNow(ctx)
}

func (service *Service) Snapshot() ledger.Snapshot {
	return service.ledger.Snapshot()
}

func (service *Service) Get(id string) (model.Holding, bool) {
	return service.ledger.Get(id)
}

// Close closes the backend.
func (service *Service) Close() error {
	return service.backend.Close()
}
