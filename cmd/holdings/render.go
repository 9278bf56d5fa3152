package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/dense-analysis/coinfolio/internal/format"
	"github.com/dense-analysis/coinfolio/internal/ledger"
)

// escapeCell keeps a value from breaking out of its table cell.
func escapeCell(value string) string {
	return strings.ReplaceAll(value, "|", `\|`)
}

func coinLabel(position ledger.Position) string {
	switch {
	case position.Name != "" && position.Symbol != "":
		return fmt.Sprintf("%s (%s)", position.Name, position.Symbol)
	case position.Name != "":
		return position.Name
	case position.Symbol != "":
		return position.Symbol
	}

	return position.ID
}

// holdingsMarkdown renders the snapshot as a markdown table with totals.
func holdingsMarkdown(snapshot ledger.Snapshot, currency string) string {
	var b strings.Builder

	b.WriteString("# Portfolio\n\n")

	if len(snapshot.Items) == 0 {
		b.WriteString("Your portfolio is empty.\n")

		return b.String()
	}

	b.WriteString("| Coin | Amount | Avg. buy price | Price | Value | Gain/loss | Share |\n")
	b.WriteString("|:---|---:|---:|---:|---:|---:|---:|\n")

	for _, position := range snapshot.Items {
		price := format.Price(position.MarkPrice(), currency)

		if position.CurrentPrice == nil {
			price += "*"
		}

		fmt.Fprintf(
			&b,
			"| %s | %s | %s | %s | %s | %s (%s) | %s%% |\n",
			escapeCell(coinLabel(position)),
			format.Amount(position.Amount),
			format.Price(position.PurchasePrice, currency),
			price,
			format.Money(position.Value, currency),
			format.Money(position.GainLoss, currency),
			format.Percentage(position.GainLossPercentage),
			position.ShareOfPortfolio.StringFixed(2),
		)
	}

	fmt.Fprintf(&b, "\n**Total value:** %s  \n", format.Money(snapshot.TotalValue, currency))
	fmt.Fprintf(&b, "**Total cost:** %s  \n", format.Money(snapshot.TotalCost, currency))
	fmt.Fprintf(
		&b,
		"**Gain/loss:** %s (%s)\n",
		format.Money(snapshot.TotalGainLoss, currency),
		format.Percentage(snapshot.TotalGainLossPercentage),
	)

	for _, position := range snapshot.Items {
		if position.CurrentPrice == nil {
			b.WriteString("\n\\* No live price yet, valued at the purchase price.\n")

			break
		}
	}

	return b.String()
}

// printMarkdown renders markdown for the terminal, or prints it as it is
// when it cannot be rendered.
func printMarkdown(md string) {
	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(120))

	if err == nil {
		var out string

		if out, err = renderer.Render(md); err == nil {
			fmt.Print(out)

			return
		}
	}

	fmt.Fprintf(os.Stderr, "Markdown rendering failed: %s\n", err)
	fmt.Print(md)
}

var csvHeader = []string{
	"id",
	"symbol",
	"name",
	"amount",
	"purchase_price",
	"purchase_date",
	"current_price",
	"value",
	"cost",
	"gain_loss",
	"gain_loss_percentage",
	"share_of_portfolio",
}

// writeCSV writes one row per holding with its derived values.
func writeCSV(w io.Writer, snapshot ledger.Snapshot) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(csvHeader); err != nil {
		return err
	}

	for _, position := range snapshot.Items {
		currentPrice := ""

		if position.CurrentPrice != nil {
			currentPrice = position.CurrentPrice.String()
		}

		if err := writer.Write([]string{
			position.ID,
			position.Symbol,
			position.Name,
			position.Amount.String(),
			position.PurchasePrice.String(),
			position.PurchaseDate.UTC().Format(time.RFC3339),
			currentPrice,
			position.Value.String(),
			position.Cost.String(),
			position.GainLoss.String(),
			position.GainLossPercentage.StringFixed(2),
			position.ShareOfPortfolio.StringFixed(2),
		}); err != nil {
			return err
		}
	}

	writer.Flush()

	return writer.Error()
}
