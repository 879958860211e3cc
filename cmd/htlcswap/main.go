// Command htlcswap locks, redeems and refunds hashed timelock contracts on EVM and TON, and
// drives two-leg atomic swaps between them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashlock-labs/htlc-swap/pkg/commands"
	"github.com/hashlock-labs/htlc-swap/pkg/logger"
)

func main() {
	lggr, err := logger.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := commands.New(lggr, &commands.Deps{LoggerFactory: logger.NewWithLevel}).Root("htlcswap")
	if err := root.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
