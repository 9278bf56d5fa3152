package ledger

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dense-analysis/coinfolio/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func assertDecimal(t *testing.T, expected string, actual decimal.Decimal, msgAndArgs ...any) {
	t.Helper()

	assert.True(t, dec(expected).Equal(actual), append([]any{"expected %s, got %s", expected, actual.String()}, msgAndArgs...)...)
}

func newTestLedger() *Ledger {
	return New(WithClock(func() time.Time { return testTime }))
}

func input(id string, amount string, price string) HoldingInput {
	return HoldingInput{
		ID:            id,
		Symbol:        id,
		Name:          id,
		Amount:        dec(amount),
		PurchasePrice: dec(price),
	}
}

// assertConsistent checks the totals against a recomputation from the items.
func assertConsistent(t *testing.T, l *Ledger) {
	t.Helper()

	value := decimal.Zero
	cost := decimal.Zero

	for _, item := range l.Holdings() {
		price := item.PurchasePrice

		if item.CurrentPrice != nil {
			price = *item.CurrentPrice
		}

		value = value.Add(item.Amount.Mul(price))
		cost = cost.Add(item.Amount.Mul(item.PurchasePrice))
	}

	snapshot := l.Snapshot()

	assert.True(t, value.Equal(snapshot.TotalValue), "total value %s != %s", snapshot.TotalValue, value)
	assert.True(t, cost.Equal(snapshot.TotalCost), "total cost %s != %s", snapshot.TotalCost, cost)
	assert.True(t, value.Sub(cost).Equal(snapshot.TotalGainLoss))
}

func TestAcquireMergesWithWeightedAverage(t *testing.T) {
	testCases := []struct {
		name          string
		first         HoldingInput
		second        HoldingInput
		expectedTotal string
		expectedPrice string
	}{
		{"equal amounts", input("btc", "1", "20000"), input("btc", "1", "30000"), "2", "25000"},
		{"unequal amounts", input("eth", "3", "1000"), input("eth", "1", "2000"), "4", "1250"},
		{"free coins", input("doge", "10", "0"), input("doge", "10", "0.2"), "20", "0.1"},
		{"fractional", input("sol", "0.5", "100"), input("sol", "1.5", "200"), "2", "175"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			l := newTestLedger()

			require.True(t, l.Acquire(testCase.first))
			require.True(t, l.Acquire(testCase.second))

			holdings := l.Holdings()
			require.Len(t, holdings, 1)
			assertDecimal(t, testCase.expectedTotal, holdings[0].Amount)
			assertDecimal(t, testCase.expectedPrice, holdings[0].PurchasePrice)
			assertConsistent(t, l)
		})
	}
}

func TestAcquireScenarioA(t *testing.T) {
	l := newTestLedger()

	l.Acquire(HoldingInput{ID: "btc", Amount: dec("1"), PurchasePrice: dec("20000")})
	l.Acquire(HoldingInput{ID: "btc", Amount: dec("1"), PurchasePrice: dec("30000")})

	holding, ok := l.Get("btc")
	require.True(t, ok)
	assertDecimal(t, "2", holding.Amount)
	assertDecimal(t, "25000", holding.PurchasePrice)
	assert.Equal(t, 1, l.Len())
}

func TestAcquireOverwritesMetadataAndDate(t *testing.T) {
	l := newTestLedger()
	firstDate := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	secondDate := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	l.Acquire(HoldingInput{
		ID:            "bitcoin",
		Symbol:        "btc",
		Name:          "Bitcoin",
		Image:         "old.png",
		Amount:        dec("1"),
		PurchasePrice: dec("100"),
		PurchaseDate:  firstDate,
	})
	l.Acquire(HoldingInput{
		ID:            "bitcoin",
		Symbol:        "BTC",
		Image:         "new.png",
		Amount:        dec("1"),
		PurchasePrice: dec("100"),
		PurchaseDate:  secondDate,
	})

	holding, ok := l.Get("bitcoin")
	require.True(t, ok)
	assert.Equal(t, "BTC", holding.Symbol)
	assert.Equal(t, "Bitcoin", holding.Name)
	assert.Equal(t, "new.png", holding.Image)
	assert.Equal(t, secondDate, holding.PurchaseDate)
}

func TestAcquireDefaultsPurchaseDate(t *testing.T) {
	l := newTestLedger()

	l.Acquire(input("btc", "1", "1"))

	holding, ok := l.Get("btc")
	require.True(t, ok)
	assert.Equal(t, testTime, holding.PurchaseDate)
	assert.Nil(t, holding.CurrentPrice)
}

func TestAcquireKeepsCurrentPriceOnMerge(t *testing.T) {
	l := newTestLedger()

	l.Acquire(input("btc", "1", "100"))
	l.RefreshPrices(map[string]decimal.Decimal{"btc": dec("150")})
	l.Acquire(input("btc", "1", "200"))

	holding, ok := l.Get("btc")
	require.True(t, ok)
	require.NotNil(t, holding.CurrentPrice)
	assertDecimal(t, "150", *holding.CurrentPrice)
	assertDecimal(t, "300", l.TotalValue())
	assertDecimal(t, "300", l.TotalCost())
}

func TestAcquireIgnoresInvalidInput(t *testing.T) {
	testCases := []struct {
		name     string
		input    HoldingInput
		expected error
	}{
		{"empty id", input("", "1", "1"), ErrEmptyID},
		{"zero amount", input("btc", "0", "1"), ErrNonPositiveAmount},
		{"negative amount", input("btc", "-1", "1"), ErrNonPositiveAmount},
		{"negative price", input("btc", "1", "-1"), ErrNegativePrice},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			l := newTestLedger()
			l.Acquire(input("eth", "1", "10"))

			assert.ErrorIs(t, testCase.input.Validate(), testCase.expected)
			assert.False(t, l.Acquire(testCase.input))
			assert.Equal(t, []string{"eth"}, l.IDs())
			assertDecimal(t, "10", l.TotalValue())
		})
	}
}

func TestSetAmount(t *testing.T) {
	l := newTestLedger()
	l.Acquire(input("btc", "1", "100"))

	assert.True(t, l.SetAmount("btc", dec("3")))

	holding, ok := l.Get("btc")
	require.True(t, ok)
	assertDecimal(t, "3", holding.Amount)
	assertDecimal(t, "100", holding.PurchasePrice)
	assert.Equal(t, testTime, holding.PurchaseDate)
	assertDecimal(t, "300", l.TotalCost())
	assertConsistent(t, l)
}

func TestSetAmountRemovesOnZeroOrLess(t *testing.T) {
	for _, amount := range []string{"0", "-1", "-0.0001"} {
		t.Run(amount, func(t *testing.T) {
			l := newTestLedger()
			l.Acquire(input("btc", "1", "100"))

			assert.True(t, l.SetAmount("btc", dec(amount)))
			assert.Equal(t, 0, l.Len())

			assert.False(t, l.SetAmount("btc", dec("5")))
			assert.False(t, l.Remove("btc"))
			assert.Equal(t, 0, l.Len())
		})
	}
}

func TestSetAmountUnknownID(t *testing.T) {
	l := newTestLedger()
	l.Acquire(input("btc", "1", "100"))

	assert.False(t, l.SetAmount("eth", dec("5")))
	assert.Equal(t, []string{"btc"}, l.IDs())
}

func TestRemove(t *testing.T) {
	l := newTestLedger()
	l.Acquire(input("btc", "1", "100"))
	l.Acquire(input("eth", "2", "10"))

	assert.True(t, l.Remove("btc"))
	assert.Equal(t, []string{"eth"}, l.IDs())
	assertDecimal(t, "20", l.TotalValue())
	assertConsistent(t, l)
}

func TestRemoveScenarioE(t *testing.T) {
	l := newTestLedger()
	before := l.Snapshot()

	assert.False(t, l.Remove("nonexistent"))

	after := l.Snapshot()
	assert.Empty(t, after.Items)
	assert.True(t, before.TotalValue.Equal(after.TotalValue))
	assert.True(t, before.TotalCost.Equal(after.TotalCost))
	assert.True(t, before.TotalGainLoss.Equal(after.TotalGainLoss))
	assertDecimal(t, "0", after.TotalGainLossPercentage)
}

func TestRefreshPrices(t *testing.T) {
	l := newTestLedger()
	l.Acquire(input("btc", "1", "100"))
	l.Acquire(input("eth", "2", "10"))

	assert.True(t, l.RefreshPrices(map[string]decimal.Decimal{"btc": dec("200"), "doge": dec("1")}))

	btc, _ := l.Get("btc")
	eth, _ := l.Get("eth")
	require.NotNil(t, btc.CurrentPrice)
	assertDecimal(t, "200", *btc.CurrentPrice)
	assert.Nil(t, eth.CurrentPrice)
	assertDecimal(t, "220", l.TotalValue())

	// Holdings missing from a later mapping keep their last price.
	l.RefreshPrices(map[string]decimal.Decimal{"eth": dec("5")})

	btc, _ = l.Get("btc")
	require.NotNil(t, btc.CurrentPrice)
	assertDecimal(t, "200", *btc.CurrentPrice)
	assertDecimal(t, "210", l.TotalValue())
	assertConsistent(t, l)
}

func TestRefreshPricesIgnoresNegativePrices(t *testing.T) {
	l := newTestLedger()
	l.Acquire(input("btc", "1", "100"))

	assert.False(t, l.RefreshPrices(map[string]decimal.Decimal{"btc": dec("-5")}))

	btc, _ := l.Get("btc")
	assert.Nil(t, btc.CurrentPrice)
}

func TestRefreshPricesAcceptsZero(t *testing.T) {
	l := newTestLedger()
	l.Acquire(input("btc", "2", "100"))

	l.RefreshPrices(map[string]decimal.Decimal{"btc": decimal.Zero})

	assertDecimal(t, "0", l.TotalValue())
	assertDecimal(t, "-200", l.TotalGainLoss())
	assertDecimal(t, "-100", l.TotalGainLossPercentage())
}

func TestRefreshPricesIsIdempotent(t *testing.T) {
	prices := map[string]decimal.Decimal{"btc": dec("123.45"), "eth": dec("6.7")}

	once := newTestLedger()
	twice := newTestLedger()

	for _, l := range []*Ledger{once, twice} {
		l.Acquire(input("btc", "0.3", "100"))
		l.Acquire(input("eth", "7", "3"))
	}

	once.RefreshPrices(prices)
	twice.RefreshPrices(prices)
	twice.RefreshPrices(prices)

	first := once.Snapshot()
	second := twice.Snapshot()

	assert.True(t, first.TotalValue.Equal(second.TotalValue))
	assert.True(t, first.TotalCost.Equal(second.TotalCost))
	assert.True(t, first.TotalGainLoss.Equal(second.TotalGainLoss))
	assert.True(t, first.TotalGainLossPercentage.Equal(second.TotalGainLossPercentage))
}

func TestEmptyCostGuard(t *testing.T) {
	l := newTestLedger()
	assertDecimal(t, "0", l.TotalGainLossPercentage())

	l.Acquire(input("airdrop", "100", "0"))
	l.RefreshPrices(map[string]decimal.Decimal{"airdrop": dec("2")})

	snapshot := l.Snapshot()
	assertDecimal(t, "0", snapshot.TotalCost)
	assertDecimal(t, "200", snapshot.TotalValue)
	assertDecimal(t, "200", snapshot.TotalGainLoss)
	assertDecimal(t, "0", snapshot.TotalGainLossPercentage)
	require.Len(t, snapshot.Items, 1)
	assertDecimal(t, "0", snapshot.Items[0].GainLossPercentage)
}

func TestHydrateScenariosBToD(t *testing.T) {
	l := newTestLedger()
	assert.False(t, l.Loaded())

	l.Hydrate([]model.Holding{{ID: "eth", Amount: dec("2"), PurchasePrice: dec("1000"), PurchaseDate: testTime}})

	assert.True(t, l.Loaded())
	assertDecimal(t, "2000", l.TotalValue())
	assertDecimal(t, "0", l.TotalGainLoss())
	assertDecimal(t, "0", l.TotalGainLossPercentage())

	l.RefreshPrices(map[string]decimal.Decimal{"eth": dec("1500")})

	assertDecimal(t, "3000", l.TotalValue())
	assertDecimal(t, "1000", l.TotalGainLoss())
	assertDecimal(t, "50", l.TotalGainLossPercentage())

	l.SetAmount("eth", decimal.Zero)

	snapshot := l.Snapshot()
	assert.Empty(t, snapshot.Items)
	assertDecimal(t, "0", snapshot.TotalValue)
	assertDecimal(t, "0", snapshot.TotalGainLoss)
	assertDecimal(t, "0", snapshot.TotalGainLossPercentage)
}

func TestHydrateNormalisesStoredItems(t *testing.T) {
	stale := dec("99999")
	l := newTestLedger()
	l.Acquire(input("old", "1", "1"))

	l.Hydrate([]model.Holding{
		{ID: "btc", Symbol: "btc", Amount: dec("1"), PurchasePrice: dec("100"), PurchaseDate: testTime, CurrentPrice: &stale},
		{ID: "", Amount: dec("1"), PurchasePrice: dec("1")},
		{ID: "zero", Amount: decimal.Zero, PurchasePrice: dec("1")},
		{ID: "negative", Amount: dec("1"), PurchasePrice: dec("-1")},
		{ID: "btc", Symbol: "BTC", Amount: dec("3"), PurchasePrice: dec("200"), PurchaseDate: testTime},
	})

	assert.Equal(t, []string{"btc"}, l.IDs())

	btc, ok := l.Get("btc")
	require.True(t, ok)
	assert.Nil(t, btc.CurrentPrice)
	assert.Equal(t, "BTC", btc.Symbol)
	assertDecimal(t, "4", btc.Amount)
	assertDecimal(t, "175", btc.PurchasePrice)
	assertDecimal(t, "700", l.TotalValue())
	assertDecimal(t, "0", l.TotalGainLoss())
}

func TestSnapshotPositions(t *testing.T) {
	l := newTestLedger()
	l.Acquire(input("btc", "1", "100"))
	l.Acquire(input("eth", "3", "100"))
	l.RefreshPrices(map[string]decimal.Decimal{"btc": dec("200")})

	snapshot := l.Snapshot()
	require.Len(t, snapshot.Items, 2)

	btc := snapshot.Items[0]
	assert.Equal(t, "btc", btc.ID)
	assertDecimal(t, "200", btc.Value)
	assertDecimal(t, "100", btc.Cost)
	assertDecimal(t, "100", btc.GainLoss)
	assertDecimal(t, "100", btc.GainLossPercentage)
	assertDecimal(t, "40", btc.ShareOfPortfolio)

	eth := snapshot.Items[1]
	assert.Equal(t, "eth", eth.ID)
	assertDecimal(t, "60", eth.ShareOfPortfolio)

	assertDecimal(t, "500", snapshot.TotalValue)
	assertDecimal(t, "400", snapshot.TotalCost)
	assertDecimal(t, "25", snapshot.TotalGainLossPercentage)
}

func TestSnapshotIsACopy(t *testing.T) {
	l := newTestLedger()
	l.Acquire(input("btc", "1", "100"))
	l.RefreshPrices(map[string]decimal.Decimal{"btc": dec("200")})

	snapshot := l.Snapshot()
	*snapshot.Items[0].CurrentPrice = dec("1")
	snapshot.Items[0].Amount = dec("50")

	btc, _ := l.Get("btc")
	assertDecimal(t, "200", *btc.CurrentPrice)
	assertDecimal(t, "1", btc.Amount)
}

func TestConcurrentOperationsStayConsistent(t *testing.T) {
	l := newTestLedger()

	var wg sync.WaitGroup

	for worker := 0; worker < 8; worker++ {
		worker := worker
		wg.Add(1)

		go func() {
			defer wg.Done()

			id := fmt.Sprintf("coin-%d", worker%4)

			for i := 0; i < 50; i++ {
				l.Acquire(input(id, "1", fmt.Sprintf("%d", i+1)))
				l.RefreshPrices(map[string]decimal.Decimal{id: decimal.NewFromInt(int64(i))})

				if i%10 == 0 {
					l.SetAmount(id, dec("2"))
				}

				_ = l.Snapshot()
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 4, l.Len())
	assertConsistent(t, l)
}
