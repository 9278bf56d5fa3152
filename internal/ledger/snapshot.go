package ledger

import (
	"github.com/dense-analysis/coinfolio/internal/model"
	"github.com/shopspring/decimal"
)

// Position is a Holding with the values derived from it.
type Position struct {
	model.Holding
	Value              decimal.Decimal `json:"value"`
	Cost               decimal.Decimal `json:"cost"`
	GainLoss           decimal.Decimal `json:"gainLoss"`
	GainLossPercentage decimal.Decimal `json:"gainLossPercentage"`
	ShareOfPortfolio   decimal.Decimal `json:"shareOfPortfolio"`
}

// Snapshot is a point-in-time copy of the ledger.
type Snapshot struct {
	Items                   []Position      `json:"items"`
	TotalValue              decimal.Decimal `json:"totalValue"`
	TotalCost               decimal.Decimal `json:"totalCost"`
	TotalGainLoss           decimal.Decimal `json:"totalGainLoss"`
	TotalGainLossPercentage decimal.Decimal `json:"totalGainLossPercentage"`
	Loaded                  bool            `json:"loaded"`
}

// percentage returns part / whole * 100, or zero when whole is not positive.
func percentage(part decimal.Decimal, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}

	return part.Div(whole).Mul(Hundred)
}

// TotalValue is the sum of the holdings at their mark price.
func (l *Ledger) TotalValue() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.totals.value
}

// TotalCost is the sum of the holdings at their purchase price.
func (l *Ledger) TotalCost() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.totals.cost
}

// TotalGainLoss is the total value less the total cost.
func (l *Ledger) TotalGainLoss() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.totals.value.Sub(l.totals.cost)
}

// TotalGainLossPercentage is the gain or loss relative to the total cost,
// and zero when nothing has been paid.
func (l *Ledger) TotalGainLossPercentage() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return percentage(l.totals.value.Sub(l.totals.cost), l.totals.cost)
}

// Snapshot copies the holdings and their valuation.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	gainLoss := l.totals.value.Sub(l.totals.cost)
	snapshot := Snapshot{
		Items:                   make([]Position, len(l.items)),
		TotalValue:              l.totals.value,
		TotalCost:               l.totals.cost,
		TotalGainLoss:           gainLoss,
		TotalGainLossPercentage: percentage(gainLoss, l.totals.cost),
		Loaded:                  l.loaded,
	}

	for i, item := range l.holdings() {
		value := item.Value()
		cost := item.Cost()

		snapshot.Items[i] = Position{
			Holding:            item,
			Value:              value,
			Cost:               cost,
			GainLoss:           value.Sub(cost),
			GainLossPercentage: percentage(value.Sub(cost), cost),
			ShareOfPortfolio:   percentage(value, l.totals.value),
		}
	}

	return snapshot
}
