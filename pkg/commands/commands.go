// Package commands builds the htlcswap CLI.
//
// Every HTLC operation is exposed per chain family, and whole swaps are driven through the
// swap group:
//
//	cmds := commands.New(lggr, nil)
//	root := cmds.Root("htlcswap")
//	_ = root.ExecuteContext(ctx)
//
// Chain connections, the swap store and configuration loading go through Deps so tests can
// run the commands against in-memory ledgers.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/hashlock-labs/htlc-swap/config"
	"github.com/hashlock-labs/htlc-swap/pkg/logger"
)

// DefaultConfigPath is read when --config is not given. A missing file falls back to env vars.
const DefaultConfigPath = "htlcswap.yml"

// Commands provides a factory for the CLI commands with a shared logger and dependencies.
type Commands struct {
	lggr       logger.Logger
	deps       Deps
	configPath string
	cfg        *config.Config
}

// New creates a new Commands factory. A nil deps uses the production implementations.
func New(lggr logger.Logger, deps *Deps) *Commands {
	if lggr == nil {
		lggr = logger.Nop()
	}
	c := &Commands{lggr: lggr, configPath: DefaultConfigPath}
	if deps != nil {
		c.deps = *deps
	}
	c.deps.applyDefaults()

	return c
}

// Root returns the root command with every command group attached.
func (c *Commands) Root(use string) *cobra.Command {
	root := &cobra.Command{
		Use:           use,
		Short:         "Cross-chain HTLC atomic swaps between EVM and TON",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return c.initLogger()
		},
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", DefaultConfigPath, "Path to the YAML config file")

	root.AddCommand(
		c.Secret(),
		c.EVM(),
		c.TON(),
		c.Swap(),
	)

	return root
}
