package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/atharvakonge/papertrade/internal/quote"
	"github.com/atharvakonge/papertrade/internal/web"
	"github.com/google/subcommands"
)

type quoteCmd struct {
	envFlag
}

func (*quoteCmd) Name() string     { return "quote" }
func (*quoteCmd) Synopsis() string { return "look up the current price of a symbol" }
func (*quoteCmd) Usage() string {
	return `quote [-env <file>] <symbol>...

  Queries the configured quote API directly, bypassing any cache.
`
}

func (q *quoteCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&q.envFile, "env", ".env", "Optional .env file to load before reading the environment.")
}

func (q *quoteCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "quote: at least one symbol is required")
		return subcommands.ExitUsageError
	}

	cfg, err := q.load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	client := quote.NewClient(cfg.Quote.BaseURL, cfg.Quote.APIKey, cfg.Quote.Timeout)
	status := subcommands.ExitSuccess
	for _, symbol := range f.Args() {
		res, err := client.Lookup(ctx, symbol)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", symbol, err)
			status = subcommands.ExitFailure
			continue
		}
		fmt.Printf("A share of %s (%s) costs %s.\n", res.Name, res.Symbol, web.USD(res.Price))
	}
	return status
}
