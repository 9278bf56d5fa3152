package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dense-analysis/coinfolio/internal/ledger"
	portfolioservice "github.com/dense-analysis/coinfolio/internal/portfolio"
	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// withWorkspace opens the portfolio, runs fn and closes it again.
func withWorkspace(ctx context.Context, fn func(ws *workspace) subcommands.ExitStatus) subcommands.ExitStatus {
	ws, err := openWorkspace(ctx)

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading portfolio: %v\n", err)

		return subcommands.ExitFailure
	}

	defer ws.Close()

	return fn(ws)
}

type listCmd struct {
	refresh bool
	plain   bool
}

func (*listCmd) Name() string     { return "list" }
func (*listCmd) Synopsis() string { return "show the holdings and their value" }
func (*listCmd) Usage() string {
	return `holdings list [-refresh] [-plain]

  Shows every holding with its value, gain or loss and share of the
  portfolio.
`
}

func (c *listCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.refresh, "refresh", false, "fetch live prices before listing")
	f.BoolVar(&c.plain, "plain", false, "print markdown without rendering it")
}

func (c *listCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	return withWorkspace(ctx, func(ws *workspace) subcommands.ExitStatus {
		if c.refresh {
			if err := ws.service.RefreshPrices(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "Error refreshing prices: %v\n", err)
			}
		}

		md := holdingsMarkdown(ws.service.Snapshot(), ws.currency)

		if c.plain {
			fmt.Print(md)
		} else {
			printMarkdown(md)
		}

		return subcommands.ExitSuccess
	})
}

type addCmd struct {
	id     string
	amount string
	price  string
	symbol string
	name   string
	image  string
	date   string
}

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "add coins to the portfolio" }
func (*addCmd) Usage() string {
	return `holdings add -id <coin> -amount <amount> [-price <price>] [-symbol <symbol> -name <name> -image <url>] [-date <yyyy-mm-dd>]

  Adds coins to the portfolio. Coins already held are merged, and the
  purchase price becomes the average of both purchases. The price and the
  coin details are fetched from CoinGecko when they are left out.
`
}

func (c *addCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.id, "id", "", "CoinGecko coin id, such as bitcoin")
	f.StringVar(&c.amount, "amount", "", "number of coins bought")
	f.StringVar(&c.price, "price", "", "price paid per coin")
	f.StringVar(&c.symbol, "symbol", "", "coin symbol")
	f.StringVar(&c.name, "name", "", "coin name")
	f.StringVar(&c.image, "image", "", "coin image URL")
	f.StringVar(&c.date, "date", "", "purchase date, today by default")
}

// input parses the flags. The price is nil when it was not given.
func (c *addCmd) input() (ledger.HoldingInput, *decimal.Decimal, error) {
	input := ledger.HoldingInput{
		ID:     strings.ToLower(strings.TrimSpace(c.id)),
		Symbol: strings.ToUpper(c.symbol),
		Name:   c.name,
		Image:  c.image,
	}

	var err error

	if input.Amount, err = decimal.NewFromString(c.amount); err != nil {
		return input, nil, fmt.Errorf("invalid amount %q", c.amount)
	}

	var price *decimal.Decimal

	if c.price != "" {
		value, err := decimal.NewFromString(c.price)

		if err != nil {
			return input, nil, fmt.Errorf("invalid price %q", c.price)
		}

		price = &value
		input.PurchasePrice = value
	}

	if c.date != "" {
		if input.PurchaseDate, err = time.Parse(dateLayout, c.date); err != nil {
			return input, nil, fmt.Errorf("invalid date %q, use %s", c.date, dateLayout)
		}
	}

	return input, price, input.Validate()
}

func (c *addCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	input, price, err := c.input()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)

		return subcommands.ExitUsageError
	}

	return withWorkspace(ctx, func(ws *workspace) subcommands.ExitStatus {
		// Details given in full need no market lookup.
		if price != nil && input.Symbol != "" && input.Name != "" {
			if err := ws.service.Acquire(input); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)

				return subcommands.ExitFailure
			}
		} else if _, err := ws.service.AcquireCoin(ctx, input.ID, input.Amount, price, input.PurchaseDate); err != nil {
			if errors.Is(err, portfolioservice.ErrUnknownCoin) {
				fmt.Fprintf(os.Stderr, "Unknown coin %q\n", input.ID)
			} else {
				fmt.Fprintf(os.Stderr, "Error adding coin: %v\n", err)
			}

			return subcommands.ExitFailure
		}

		holding, _ := ws.service.Get(input.ID)
		fmt.Printf("%s: %s at %s\n", holding.ID, holding.Amount, holding.PurchasePrice)

		return subcommands.ExitSuccess
	})
}

type setCmd struct{}

func (*setCmd) Name() string     { return "set" }
func (*setCmd) Synopsis() string { return "set the amount held of a coin" }
func (*setCmd) Usage() string {
	return `holdings set <coin> <amount>

  Replaces the amount held. An amount of zero removes the coin.
`
}

func (*setCmd) SetFlags(f *flag.FlagSet) {}

func (*setCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 2 {
		f.Usage()

		return subcommands.ExitUsageError
	}

	id := f.Arg(0)
	amount, err := decimal.NewFromString(f.Arg(1))

	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid amount %q\n", f.Arg(1))

		return subcommands.ExitUsageError
	}

	return withWorkspace(ctx, func(ws *workspace) subcommands.ExitStatus {
		if !ws.service.SetAmount(id, amount) {
			fmt.Fprintf(os.Stderr, "%s is not in the portfolio\n", id)

			return subcommands.ExitFailure
		}

		return subcommands.ExitSuccess
	})
}

type removeCmd struct{}

func (*removeCmd) Name() string     { return "remove" }
func (*removeCmd) Synopsis() string { return "remove a coin from the portfolio" }
func (*removeCmd) Usage() string {
	return `holdings remove <coin>
`
}

func (*removeCmd) SetFlags(f *flag.FlagSet) {}

func (*removeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()

		return subcommands.ExitUsageError
	}

	return withWorkspace(ctx, func(ws *workspace) subcommands.ExitStatus {
		if !ws.service.Remove(f.Arg(0)) {
			fmt.Fprintf(os.Stderr, "%s is not in the portfolio\n", f.Arg(0))

			return subcommands.ExitFailure
		}

		return subcommands.ExitSuccess
	})
}

type clearCmd struct {
	yes bool
}

func (*clearCmd) Name() string     { return "clear" }
func (*clearCmd) Synopsis() string { return "remove every coin from the portfolio" }
func (*clearCmd) Usage() string {
	return `holdings clear -y
`
}

func (c *clearCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.yes, "y", false, "confirm clearing the portfolio")
}

func (c *clearCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if !c.yes {
		fmt.Fprintln(os.Stderr, "Pass -y to clear the portfolio")

		return subcommands.ExitUsageError
	}

	return withWorkspace(ctx, func(ws *workspace) subcommands.ExitStatus {
		fmt.Printf("Removed %d holdings\n", ws.service.Clear())

		return subcommands.ExitSuccess
	})
}

type refreshCmd struct{}

func (*refreshCmd) Name() string     { return "refresh" }
func (*refreshCmd) Synopsis() string { return "fetch live prices and show the totals" }
func (*refreshCmd) Usage() string {
	return `holdings refresh
`
}

func (*refreshCmd) SetFlags(f *flag.FlagSet) {}

func (*refreshCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	return withWorkspace(ctx, func(ws *workspace) subcommands.ExitStatus {
		if err := ws.service.RefreshPrices(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error refreshing prices: %v\n", err)

			return subcommands.ExitFailure
		}

		snapshot := ws.service.Snapshot()
		fmt.Printf("Total value: %s\n", snapshot.TotalValue.StringFixed(2))
		fmt.Printf("Gain/loss:   %s (%s%%)\n", snapshot.TotalGainLoss.StringFixed(2), snapshot.TotalGainLossPercentage.StringFixed(2))

		return subcommands.ExitSuccess
	})
}

type exportCmd struct {
	output string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "export the holdings as CSV" }
func (*exportCmd) Usage() string {
	return `holdings export [-o <file>]

  Writes the holdings and their derived values as CSV, to standard output
  by default.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.output, "o", "", "file to write instead of standard output")
}

func (c *exportCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	return withWorkspace(ctx, func(ws *workspace) subcommands.ExitStatus {
		out := os.Stdout

		if c.output != "" {
			file, err := os.Create(c.output)

			if err != nil {
				fmt.Fprintf(os.Stderr, "Error creating %s: %v\n", c.output, err)

				return subcommands.ExitFailure
			}

			defer file.Close()
			out = file
		}

		if err := writeCSV(out, ws.service.Snapshot()); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing CSV: %v\n", err)

			return subcommands.ExitFailure
		}

		return subcommands.ExitSuccess
	})
}
