// Package refresh periodically pulls live prices into a portfolio.
package refresh

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	DefaultInterval = 60 * time.Second
	DefaultTimeout  = 10 * time.Second
)

// Results reported for each refresh cycle.
const (
	ResultApplied    = "applied"
	ResultSuperseded = "superseded"
	ResultFailed     = "failed"
	ResultSkipped    = "skipped"
)

// Fetcher returns prices for coin ids.
type Fetcher interface {
	FetchPrices(ctx context.Context, ids []string) (map[string]decimal.Decimal, error)
}

// Target is what the prices are applied to.
type Target interface {
	IDs() []string
	RefreshPrices(prices map[string]decimal.Decimal) bool
}

// Option configures a Refresher.
type Option func(*Refresher)

func WithInterval(interval time.Duration) Option {
	return func(r *Refresher) {
		if interval > 0 {
			r.interval = interval
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(r *Refresher) {
		if timeout > 0 {
			r.timeout = timeout
		}
	}
}

// WithOnApplied sets a callback run after prices have been applied.
func WithOnApplied(callback func(prices map[string]decimal.Decimal)) Option {
	return func(r *Refresher) {
		r.onApplied = callback
	}
}

// WithResultObserver sets a callback which receives the result of every cycle.
func WithResultObserver(callback func(result string)) Option {
	return func(r *Refresher) {
		r.onResult = callback
	}
}

// Refresher runs fetch-then-apply cycles on a timer or on demand.
//
// Every cycle takes a sequence number when it starts. A response is applied
// only when no cycle started after it has already been applied, so a slow
// response can never overwrite newer prices.
type Refresher struct {
	fetcher   Fetcher
	target    Target
	logger    *zap.Logger
	interval  time.Duration
	timeout   time.Duration
	onApplied func(prices map[string]decimal.Decimal)
	onResult  func(result string)

	issued  atomic.Uint64
	mu      sync.Mutex
	applied uint64
}

func New(fetcher Fetcher, target Target, logger *zap.Logger, options ...Option) *Refresher {
	r := &Refresher{
		fetcher:  fetcher,
		target:   target,
		logger:   logger,
		interval: DefaultInterval,
		timeout:  DefaultTimeout,
	}

	for _, option := range options {
		option(r)
	}

	return r
}

// Interval is the time between two scheduled refreshes.
func (r *Refresher) Interval() time.Duration {
	return r.interval
}

func (r *Refresher) report(result string) {
	if r.onResult != nil {
		r.onResult(result)
	}
}

// RefreshNow runs one cycle. Fetch failures leave the previous prices in place
// and are returned to the caller.
func (r *Refresher) RefreshNow(ctx context.Context) error {
	ids := r.target.IDs()

	if len(ids) == 0 {
		r.report(ResultSkipped)

		return nil
	}

	return r.cycle(ctx, ids, nil)
}

// RefreshWith runs one cycle for the given ids outside the schedule. use is
// called with the fetched prices before they are applied, and an error from
// use stops the cycle without applying anything. The prices go through the
// same ordering as scheduled cycles, so they never replace newer prices.
func (r *Refresher) RefreshWith(
	ctx context.Context,
	ids []string,
	use func(prices map[string]decimal.Decimal) error,
) error {
	return r.cycle(ctx, ids, use)
}

func (r *Refresher) cycle(
	ctx context.Context,
	ids []string,
	use func(prices map[string]decimal.Decimal) error,
) error {
	sequence := r.issued.Add(1)

	fetchContext, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	prices, err := r.fetcher.FetchPrices(fetchContext, ids)

	if err != nil {
		r.logger.Warn("price refresh failed",
			zap.Uint64("sequence", sequence),
			zap.Int("coins", len(ids)),
			zap.Error(err),
		)
		r.report(ResultFailed)

		return fmt.Errorf("refresh prices: %w", err)
	}

	if use != nil {
		if err := use(prices); err != nil {
			return err
		}
	}

	if !r.apply(sequence, prices) {
		r.logger.Debug("discarding superseded prices", zap.Uint64("sequence", sequence))
		r.report(ResultSuperseded)

		return nil
	}

	r.logger.Debug("applied prices",
		zap.Uint64("sequence", sequence),
		zap.Int("prices", len(prices)),
	)

	if r.onApplied != nil {
		r.onApplied(prices)
	}

	r.report(ResultApplied)

	return nil
}

func (r *Refresher) apply(sequence uint64, prices map[string]decimal.Decimal) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sequence < r.applied {
		return false
	}

	r.applied = sequence
	r.target.RefreshPrices(prices)

	return true
}

// Run refreshes straight away and then on every tick until ctx is done.
func (r *Refresher) Run(ctx context.Context) {
	r.logger.Info("price refresher started", zap.Duration("interval", r.interval))

	_ = r.RefreshNow(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("price refresher stopped")

			return
		case <-ticker.C:
			_ = r.RefreshNow(ctx)
		}
	}
}
