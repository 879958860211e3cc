package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	evmadapter "github.com/hashlock-labs/htlc-swap/chain/evm/adapter"
	tonadapter "github.com/hashlock-labs/htlc-swap/chain/ton/adapter"
	"github.com/hashlock-labs/htlc-swap/htlc"
)

// EVM returns the evm command group.
func (c *Commands) EVM() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evm",
		Short: "HashedTimelockEther commands",
	}
	cmd.AddCommand(
		c.newLockCmd(evmadapter.Family),
		c.newRedeemCmd(evmadapter.Family),
		c.newBatchRedeemCmd(evmadapter.Family),
		c.newRefundCmd(evmadapter.Family),
		c.newInspectCmd(evmadapter.Family),
	)

	return cmd
}

// TON returns the ton command group.
func (c *Commands) TON() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ton",
		Short: "HashedTimeLockTON commands",
	}
	cmd.AddCommand(
		c.newLockCmd(tonadapter.Family),
		c.newRedeemCmd(tonadapter.Family),
		c.newRefundCmd(tonadapter.Family),
		c.newParseEmitCmd(),
	)

	return cmd
}

type lockFlags struct {
	amount          string
	hashlock        string
	sender          string
	recipient       string
	receiverChainID uint64
	receiverAddress string
	lockSeconds     int64
	gasLimit        uint64
	commitID        string
}

func (f lockFlags) request() (htlc.LockRequest, htlc.Secret, error) {
	var (
		secret htlc.Secret
		req    = htlc.LockRequest{
			Route: htlc.Route{
				Sender:               f.sender,
				Recipient:            f.recipient,
				ReceiverChainID:      f.receiverChainID,
				ReceiverChainAddress: f.receiverAddress,
			},
			Amount:      f.amount,
			LockSeconds: htlc.Seconds(f.lockSeconds),
		}
		err error
	)
	if f.hashlock == "" {
		if secret, err = htlc.NewSecret(); err != nil {
			return htlc.LockRequest{}, htlc.Secret{}, err
		}
		req.Hashlock = secret.Hashlock()
	} else if req.Hashlock, err = htlc.ParseHashlock(f.hashlock); err != nil {
		return htlc.LockRequest{}, htlc.Secret{}, err
	}
	if f.gasLimit > 0 {
		req.GasLimit = htlc.GasLimit(f.gasLimit)
	}
	if f.commitID != "" {
		if req.CommitID, err = htlc.ParseID(f.commitID); err != nil {
			return htlc.LockRequest{}, htlc.Secret{}, err
		}
	}

	return req, secret, nil
}

func (c *Commands) newLockCmd(family string) *cobra.Command {
	var f lockFlags

	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Lock value under a hashlock",
		Long: `Lock value in the HTLC contract. Without --hashlock a fresh secret is generated and
printed alongside the lock; keep it until the counter-leg is locked.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, secret, err := f.request()
			if err != nil {
				return err
			}
			leg, err := c.openLeg(cmd.Context(), family)
			if err != nil {
				return err
			}

			res, err := leg.Adapter.Lock(cmd.Context(), req)
			if err != nil {
				return err
			}
			id := res.ID
			if id.IsZero() && leg.Resolver != nil {
				if id, err = leg.Resolver.ResolveID(cmd.Context(), *res); err != nil {
					return fmt.Errorf("locked in %s but the id could not be resolved: %w", res.Tx.Hash, err)
				}
			}

			v := lockView{
				Hashlock: res.Hashlock.Hex(),
				Timelock: res.Timelock.Unix(),
				Amount:   res.Amount.String(),
				GasLimit: res.GasLimit,
				Tx:       newTxView(res.Tx),
			}
			if !id.IsZero() {
				v.ID = id.Hex()
			}
			if !secret.IsZero() {
				v.Secret = secret.Hex()
			}

			return printYAML(cmd, v)
		},
	}

	cmd.Flags().StringVar(&f.amount, "amount", "", "Amount in the configured denomination (required)")
	cmd.Flags().StringVar(&f.hashlock, "hashlock", "", "0x hex sha256 of the secret; generated when omitted")
	cmd.Flags().StringVar(&f.sender, "sender", "", "Sender recorded in the commitment; defaults to the signing account")
	cmd.Flags().StringVar(&f.recipient, "recipient", "", "Account allowed to redeem")
	cmd.Flags().Uint64Var(&f.receiverChainID, "receiver-chain-id", 0, "Chain id of the counter-leg")
	cmd.Flags().StringVar(&f.receiverAddress, "receiver-address", "", "Recipient on the counter-leg chain")
	cmd.Flags().Int64Var(&f.lockSeconds, "lock-seconds", htlc.DefaultLockSeconds, "Seconds from chain time until the lock can be refunded")
	cmd.Flags().Uint64Var(&f.gasLimit, "gas-limit", 0, "Gas limit; estimated when omitted")
	cmd.Flags().StringVar(&f.commitID, "commit-id", "", "Proposed commitment id; derived when omitted")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func (c *Commands) newRedeemCmd(family string) *cobra.Command {
	var (
		idStr, secretStr string
		gasLimit         uint64
	)

	cmd := &cobra.Command{
		Use:   "redeem",
		Short: "Redeem a commitment with its secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := htlc.ParseID(idStr)
			if err != nil {
				return err
			}
			secret, err := htlc.ParseSecret(secretStr)
			if err != nil {
				return err
			}
			req := htlc.WithdrawRequest{ID: id, Secret: secret}
			if gasLimit > 0 {
				req.GasLimit = htlc.GasLimit(gasLimit)
			}

			leg, err := c.openLeg(cmd.Context(), family)
			if err != nil {
				return err
			}
			res, err := leg.Adapter.Withdraw(cmd.Context(), req)
			if err != nil {
				return err
			}

			return printYAML(cmd, withdrawView{ID: res.ID.Hex(), GasLimit: res.GasLimit, Tx: newTxView(res.Tx)})
		},
	}

	cmd.Flags().StringVar(&idStr, "id", "", "Commitment id (required)")
	cmd.Flags().StringVar(&secretStr, "secret", "", "0x hex secret (required)")
	cmd.Flags().Uint64Var(&gasLimit, "gas-limit", 0, "Gas limit; estimated when omitted")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("secret")

	return cmd
}

func (c *Commands) newBatchRedeemCmd(family string) *cobra.Command {
	var (
		idStrs, secretStrs []string
		gasLimit           uint64
		output             string
	)

	cmd := &cobra.Command{
		Use:   "batch-redeem",
		Short: "Redeem several commitments in one transaction",
		Long: `Redeem several commitments in one transaction. Ids and secrets pair up by position.
Each entry is reported on its own; a failed entry does not undo the others.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}
			req := htlc.BatchWithdrawRequest{
				IDs:     make([]htlc.ID, len(idStrs)),
				Secrets: make([]htlc.Secret, len(secretStrs)),
			}
			for i, s := range idStrs {
				id, err := htlc.ParseID(s)
				if err != nil {
					return fmt.Errorf("ids[%d]: %w", i, err)
				}
				req.IDs[i] = id
			}
			for i, s := range secretStrs {
				secret, err := htlc.ParseSecret(s)
				if err != nil {
					return fmt.Errorf("secrets[%d]: %w", i, err)
				}
				req.Secrets[i] = secret
			}
			if err := req.Validate(); err != nil {
				return err
			}
			if gasLimit > 0 {
				req.GasLimit = htlc.GasLimit(gasLimit)
			}

			leg, err := c.openLeg(cmd.Context(), family)
			if err != nil {
				return err
			}
			res, err := leg.Adapter.BatchWithdraw(cmd.Context(), req)
			if err != nil {
				return err
			}
			if output == outputTable {
				writeBatchTable(cmd.OutOrStdout(), res)
			} else if err := printYAML(cmd, newBatchView(res)); err != nil {
				return err
			}
			if failed := res.Failed(); len(failed) > 0 {
				return fmt.Errorf("%d of %d entries were not redeemed", len(failed), len(res.Entries))
			}

			return nil
		},
	}

	cmd.Flags().StringSliceVar(&idStrs, "ids", nil, "Comma separated commitment ids (required)")
	cmd.Flags().StringSliceVar(&secretStrs, "secrets", nil, "Comma separated secrets, one per id (required)")
	cmd.Flags().Uint64Var(&gasLimit, "gas-limit", 0, "Gas limit; estimated when omitted")
	cmd.Flags().StringVarP(&output, "output", "o", outputYAML, "Output format: yaml or table")
	_ = cmd.MarkFlagRequired("ids")
	_ = cmd.MarkFlagRequired("secrets")

	return cmd
}

func (c *Commands) newRefundCmd(family string) *cobra.Command {
	var (
		idStr     string
		gasLimit  uint64
		notBefore int64
	)

	cmd := &cobra.Command{
		Use:   "refund",
		Short: "Refund an expired commitment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := htlc.ParseID(idStr)
			if err != nil {
				return err
			}
			req := htlc.RefundRequest{ID: id}
			if gasLimit > 0 {
				req.GasLimit = htlc.GasLimit(gasLimit)
			}
			if notBefore > 0 {
				req.NotBefore = time.Unix(notBefore, 0).UTC()
			}

			leg, err := c.openLeg(cmd.Context(), family)
			if err != nil {
				return err
			}
			res, err := leg.Adapter.Refund(cmd.Context(), req)
			if err != nil {
				return err
			}

			return printYAML(cmd, withdrawView{ID: res.ID.Hex(), Tx: newTxView(res.Tx)})
		},
	}

	cmd.Flags().StringVar(&idStr, "id", "", "Commitment id (required)")
	cmd.Flags().Uint64Var(&gasLimit, "gas-limit", 0, "Gas limit; estimated when omitted")
	cmd.Flags().Int64Var(&notBefore, "timelock", 0, "Unix timelock of the commitment; nothing is sent before it")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func (c *Commands) newInspectCmd(family string) *cobra.Command {
	var idStr string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print the on-chain state of a commitment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := htlc.ParseID(idStr)
			if err != nil {
				return err
			}
			leg, err := c.openLeg(cmd.Context(), family)
			if err != nil {
				return err
			}
			if leg.Inspector == nil {
				return errors.New("commitments can't be read on this chain")
			}
			com, err := leg.Inspector.Commitment(cmd.Context(), id)
			if err != nil {
				return err
			}

			return printYAML(cmd, newCommitmentView(com))
		},
	}

	cmd.Flags().StringVar(&idStr, "id", "", "Commitment id (required)")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

type emitView struct {
	Account string `yaml:"account"`
	Index   int    `yaml:"index"`
	ID      string `yaml:"id"`
}

func (c *Commands) newParseEmitCmd() *cobra.Command {
	var (
		account string
		index   int
	)

	cmd := &cobra.Command{
		Use:   "parse-emit",
		Short: "Read the commitment id emitted by a contract transaction",
		Long: `Read the commitment id emitted by the transaction at --index of the account's
transaction list, newest first. The account defaults to the configured HTLC contract.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			parser, contract, err := c.deps.EmitParserOpener(cmd.Context(), cfg, c.lggr)
			if err != nil {
				return err
			}
			if account == "" {
				account = contract
			}

			id, err := parser.EmitAt(cmd.Context(), account, index)
			if err != nil {
				return err
			}

			return printYAML(cmd, emitView{Account: account, Index: index, ID: id.Hex()})
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "Account to read; defaults to the HTLC contract")
	cmd.Flags().IntVar(&index, "index", 0, "Transaction index, newest first")

	return cmd
}
