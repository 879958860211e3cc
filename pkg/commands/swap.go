package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hashlock-labs/htlc-swap/config"
	"github.com/hashlock-labs/htlc-swap/htlc"
	"github.com/hashlock-labs/htlc-swap/swap"
)

// Swap returns the swap command group.
func (c *Commands) Swap() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "swap",
		Short: "Drive two-leg atomic swaps",
	}
	cmd.AddCommand(
		c.newSwapRunCmd(),
		c.newSwapResumeCmd(),
		c.newSwapRefundCmd(),
		c.newSwapStatusCmd(),
	)

	return cmd
}

// swapSession is an orchestrator over the configured store. close releases the store.
type swapSession struct {
	orch  *swap.Orchestrator
	close func() error
}

func (c *Commands) openStore(cfg *config.Config) (swap.Store, func() error, error) {
	store, closeFn, err := c.deps.StoreOpener(cfg.Swap.StorePath)
	if err != nil {
		return nil, nil, err
	}
	if closeFn == nil {
		closeFn = func() error { return nil }
	}

	return store, closeFn, nil
}

// openSession opens the store and connects to chains. When id is set the chains are taken from
// the stored swap, otherwise from families.
func (c *Commands) openSession(ctx context.Context, cfg *config.Config, id string, families ...string) (*swapSession, error) {
	store, closeFn, err := c.openStore(cfg)
	if err != nil {
		return nil, err
	}
	fail := func(err error) (*swapSession, error) {
		return nil, errors.Join(err, closeFn())
	}

	if id != "" {
		rec, gerr := store.GetByID(id)
		if gerr != nil {
			return fail(gerr)
		}
		families = []string{rec.Initiator.Terms.Chain, rec.Participant.Terms.Chain}
	}

	legs, err := c.deps.LegsOpener(ctx, cfg, c.lggr, families...)
	if err != nil {
		return fail(err)
	}
	orch, err := swap.New(legs, store, swap.Config{
		PollInterval:    cfg.Swap.PollInterval,
		RefundTimeout:   cfg.Swap.RefundTimeout,
		ResolveAttempts: cfg.Swap.ResolveAttempts,
		ResolveDelay:    cfg.Swap.ResolveDelay,
	}, c.lggr)
	if err != nil {
		return fail(err)
	}

	return &swapSession{orch: orch, close: closeFn}, nil
}

// finish prints the record and returns runErr.
func finish(cmd *cobra.Command, rec *swap.Record, runErr error) error {
	if rec != nil {
		if err := swap.WriteStatus(cmd.OutOrStdout(), rec); err != nil {
			return errors.Join(runErr, err)
		}
	}

	return runErr
}

func (c *Commands) newSwapRunCmd() *cobra.Command {
	var (
		planPath  string
		secretStr string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Plan a swap and drive it to completion",
		Long: `Plan a swap from a TOML file and drive it until both legs are redeemed or refunded.

The initiator leg is locked first. The secret is only revealed once the participant leg is
locked under the same hashlock and expires before the initiator leg. Progress is journaled, so
an interrupted swap continues with "swap resume <id>".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			plan, err := swap.LoadPlan(planPath)
			if err != nil {
				return err
			}
			var secret htlc.Secret
			if secretStr != "" {
				if secret, err = htlc.ParseSecret(secretStr); err != nil {
					return err
				}
			}

			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			s, err := c.openSession(cmd.Context(), cfg, "", plan.Initiator.Chain, plan.Participant.Chain)
			if err != nil {
				return err
			}
			defer s.close()

			rec, err := s.orch.Start(plan, secret)
			if err != nil {
				return err
			}
			c.lggr.Infow("Running swap", "swap", rec.ID)
			rec, err = s.orch.Run(cmd.Context(), rec.ID)

			return finish(cmd, rec, err)
		},
	}

	cmd.Flags().StringVarP(&planPath, "plan", "p", "", "Path to the TOML swap plan (required)")
	cmd.Flags().StringVar(&secretStr, "secret", "", "0x hex secret; generated when omitted")
	_ = cmd.MarkFlagRequired("plan")

	return cmd
}

func (c *Commands) newSwapResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume <id>",
		Short: "Continue an interrupted swap",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			s, err := c.openSession(cmd.Context(), cfg, args[0])
			if err != nil {
				return err
			}
			defer s.close()

			rec, err := s.orch.Get(args[0])
			if err != nil {
				return err
			}
			if rec.Phase.Terminal() {
				return finish(cmd, rec, nil)
			}
			rec, err = s.orch.Run(cmd.Context(), args[0])

			return finish(cmd, rec, err)
		},
	}
}

func (c *Commands) newSwapRefundCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refund <id>",
		Short: "Abandon a swap and refund its open legs",
		Long: `Abandon a swap. Each open leg is refunded once its timelock has passed, the participant
leg first. The command waits for the timelocks within swap.refund_timeout.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			s, err := c.openSession(cmd.Context(), cfg, args[0])
			if err != nil {
				return err
			}
			defer s.close()

			rec, err := s.orch.Abandon(cmd.Context(), args[0])
			if err == nil && !rec.Phase.Terminal() {
				rec, err = s.orch.Run(cmd.Context(), args[0])
			}

			return finish(cmd, rec, err)
		},
	}
}

func (c *Commands) newSwapStatusCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "status [id...]",
		Short: "Print stored swaps",
		Long:  "Print the named swaps, or every stored swap when no id is given. Secrets are never printed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			store, closeFn, err := c.openStore(cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			var recs []*swap.Record
			if len(args) == 0 {
				if recs, err = store.ListAll(); err != nil {
					return err
				}
			}
			for _, id := range args {
				rec, gerr := store.GetByID(id)
				if gerr != nil {
					return fmt.Errorf("swap %s: %w", id, gerr)
				}
				recs = append(recs, rec)
			}
			if output == outputTable {
				swap.WriteStatusTable(cmd.OutOrStdout(), recs...)
				return nil
			}

			return swap.WriteStatus(cmd.OutOrStdout(), recs...)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", outputYAML, "Output format: yaml or table")

	return cmd
}
