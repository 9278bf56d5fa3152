// Package ledger keeps the portfolio holdings and their valuation.
//
// A Ledger is mutated only through Acquire, SetAmount, Remove, RefreshPrices
// and Hydrate. Each operation holds the ledger lock for its whole duration and
// recomputes the aggregates from scratch before returning.
package ledger

import (
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/dense-analysis/coinfolio/internal/model"
	"github.com/shopspring/decimal"
)

var Hundred decimal.Decimal = decimal.NewFromInt(100)

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock sets the clock used to date acquisitions without a date.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

type totals struct {
	value decimal.Decimal
	cost  decimal.Decimal
}

// Ledger is the collection of holdings plus the derived aggregates.
type Ledger struct {
	mu     sync.RWMutex
	items  []model.Holding
	totals totals
	loaded bool
	now    func() time.Time
}

// New creates an empty ledger.
func New(options ...Option) *Ledger {
	l := &Ledger{
		items: make([]model.Holding, 0),
		now:   time.Now,
	}

	for _, option := range options {
		option(l)
	}

	l.recompute()

	return l
}

func (l *Ledger) indexOf(id string) int {
	return slices.IndexFunc(l.items, func(item model.Holding) bool {
		return item.ID == id
	})
}

// recompute rebuilds the totals from the items. The caller holds the lock.
func (l *Ledger) recompute() {
	value := decimal.Zero
	cost := decimal.Zero

	for _, item := range l.items {
		value = value.Add(item.Value())
		cost = cost.Add(item.Cost())
	}

	l.totals = totals{value: value, cost: cost}
}

// Acquire adds a holding, merging it into an existing holding with the same id.
//
// On merge the amounts are summed and the purchase price becomes the weighted
// average of both acquisitions. The purchase date and any non-empty display
// metadata of the input replace the existing values.
//
// Input which fails Validate is ignored. Acquire reports whether the items changed.
func (l *Ledger) Acquire(input HoldingInput) bool {
	if input.Validate() != nil {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.acquire(input)
	l.recompute()

	return true
}

func (l *Ledger) acquire(input HoldingInput) {
	purchaseDate := input.PurchaseDate

	if purchaseDate.IsZero() {
		purchaseDate = l.now().UTC()
	}

	i := l.indexOf(input.ID)

	if i < 0 {
		l.items = append(l.items, model.Holding{
			ID:            input.ID,
			Symbol:        input.Symbol,
			Name:          input.Name,
			Image:         input.Image,
			Amount:        input.Amount,
			PurchasePrice: input.PurchasePrice,
			PurchaseDate:  purchaseDate,
		})

		return
	}

	existing := &l.items[i]
	newAmount := existing.Amount.Add(input.Amount)
	totalCost := existing.Cost().Add(input.Amount.Mul(input.PurchasePrice))

	existing.Amount = newAmount
	existing.PurchasePrice = totalCost.Div(newAmount)
	existing.PurchaseDate = purchaseDate

	if input.Symbol != "" {
		existing.Symbol = input.Symbol
	}

	if input.Name != "" {
		existing.Name = input.Name
	}

	if input.Image != "" {
		existing.Image = input.Image
	}
}

// SetAmount replaces the amount held for a coin.
//
// Unknown ids are ignored, and an amount of zero or less removes the holding.
func (l *Ledger) SetAmount(id string, amount decimal.Decimal) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.indexOf(id)

	if i < 0 {
		return false
	}

	if amount.IsPositive() {
		l.items[i].Amount = amount
	} else {
		l.items = slices.Delete(l.items, i, i+1)
	}

	l.recompute()

	return true
}

// Remove deletes the holding for a coin, if there is one.
func (l *Ledger) Remove(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.indexOf(id)

	if i < 0 {
		return false
	}

	l.items = slices.Delete(l.items, i, i+1)
	l.recompute()

	return true
}

// RefreshPrices sets the live price of every holding named in prices.
//
// Holdings missing from prices keep their previous live price. Negative
// prices are ignored.
func (l *Ledger) RefreshPrices(prices map[string]decimal.Decimal) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	changed := false

	for i := range l.items {
		price, ok := prices[l.items[i].ID]

		if !ok || price.IsNegative() {
			continue
		}

		l.items[i].CurrentPrice = &price
		changed = true
	}

	l.recompute()

	return changed
}

// Hydrate replaces the items with holdings read back from storage.
//
// Live prices from an earlier session are dropped, so the aggregates start
// from the purchase prices alone. Records with an empty id, an amount of zero
// or less or a negative price are skipped, and records sharing an id are
// merged as if they had been acquired in order.
func (l *Ledger) Hydrate(items []model.Holding) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.items = make([]model.Holding, 0, len(items))

	for _, item := range items {
		input := HoldingInput{
			ID:            item.ID,
			Symbol:        item.Symbol,
			Name:          item.Name,
			Image:         item.Image,
			Amount:        item.Amount,
			PurchasePrice: item.PurchasePrice,
			PurchaseDate:  item.PurchaseDate,
		}

		if input.Validate() == nil {
			l.acquire(input)
		}
	}

	l.loaded = true
	l.recompute()
}

// Loaded reports whether Hydrate has run.
func (l *Ledger) Loaded() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.loaded
}

// Len returns the number of holdings.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.items)
}

// IDs returns the sorted coin ids held, for requesting prices.
func (l *Ledger) IDs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := make([]string, len(l.items))

	for i, item := range l.items {
		ids[i] = item.ID
	}

	sort.Strings(ids)

	return ids
}

// Get returns a copy of the holding for a coin.
func (l *Ledger) Get(id string) (model.Holding, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	i := l.indexOf(id)

	if i < 0 {
		return model.Holding{}, false
	}

	return l.items[i].Clone(), true
}

// Holdings returns a copy of the items in display order.
func (l *Ledger) Holdings() []model.Holding {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.holdings()
}

func (l *Ledger) holdings() []model.Holding {
	items := make([]model.Holding, len(l.items))

	for i, item := range l.items {
		items[i] = item.Clone()
	}

	return items
}
