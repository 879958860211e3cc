package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/hashlock-labs/htlc-swap/chain/evm"
	"github.com/hashlock-labs/htlc-swap/htlc"
)

// ConfirmFunctor is an interface for creating a confirmation function for transactions on the
// EVM chain.
type ConfirmFunctor interface {
	// Generate returns a function that confirms transactions on the EVM chain.
	Generate(selector uint64, client evm.OnchainClient, from common.Address) (evm.ConfirmFunc, error)
}

// ConfirmFuncGeth returns a ConfirmFunctor that polls for the receipt with the geth client.
// Waits longer than waitMinedTimeout fail with htlc.ErrTimeout.
func ConfirmFuncGeth(waitMinedTimeout time.Duration, opts ...func(*confirmFuncGeth)) ConfirmFunctor {
	cf := &confirmFuncGeth{
		tickInterval:     1 * time.Second, // the same value we have in bind.WaitMined hardcoded in "go-ethereum"
		waitMinedTimeout: waitMinedTimeout,
	}
	for _, o := range opts {
		o(cf)
	}

	return cf
}

func WithTickInterval(interval time.Duration) func(*confirmFuncGeth) {
	return func(o *confirmFuncGeth) {
		o.tickInterval = interval
	}
}

type confirmFuncGeth struct {
	tickInterval     time.Duration
	waitMinedTimeout time.Duration
}

// Generate returns a function that confirms transactions using the geth client.
func (g *confirmFuncGeth) Generate(
	selector uint64, client evm.OnchainClient, from common.Address,
) (evm.ConfirmFunc, error) {
	return func(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
		if tx == nil {
			return nil, fmt.Errorf("tx was nil, nothing to confirm for selector: %d", selector)
		}

		ctxTimeout, cancel := context.WithTimeout(ctx, g.waitMinedTimeout)
		defer cancel()

		receipt, err := WaitMinedWithInterval(ctxTimeout, g.tickInterval, client, tx.Hash())
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				return nil, fmt.Errorf("%w: tx %s not mined within %s for selector %d: %w",
					htlc.ErrTimeout, tx.Hash().Hex(), g.waitMinedTimeout, selector, err)
			}

			return nil, fmt.Errorf("tx %s failed to confirm for selector %d: %w", tx.Hash().Hex(), selector, err)
		}
		if receipt == nil {
			return nil, fmt.Errorf("receipt was nil for tx %s for selector %d", tx.Hash().Hex(), selector)
		}

		if receipt.Status == types.ReceiptStatusFailed {
			reason, rerr := getErrorReasonFromTx(ctx, client, from, tx, receipt)
			if rerr == nil && reason != "" {
				return receipt, fmt.Errorf("%w: tx %s reverted for selector %d: %s",
					htlc.ErrContractRevert, tx.Hash().Hex(), selector, reason)
			}

			return receipt, fmt.Errorf("%w: tx %s reverted, could not decode error reason for selector %d",
				htlc.ErrContractRevert, tx.Hash().Hex(), selector)
		}

		return receipt, nil
	}, nil
}

// WaitMinedWithInterval polls for the receipt every tick, which confirms faster than
// bind.WaitMined on networks with instant blocks.
func WaitMinedWithInterval(ctx context.Context, tick time.Duration, b bind.DeployBackend, txHash common.Hash) (*types.Receipt, error) {
	queryTicker := time.NewTicker(tick)
	defer queryTicker.Stop()
	for {
		receipt, err := b.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-queryTicker.C:
		}
	}
}
