package adapter

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/hashlock-labs/htlc-swap/chain/evm"
)

// Transactor is the slice of an EVM chain the adapter talks to. Calldata is already packed.
type Transactor interface {
	// From returns the signing account.
	From() common.Address
	// Contract returns the HTLC contract address.
	Contract() common.Address
	// ChainTime returns the timestamp of the latest block.
	ChainTime(ctx context.Context) (time.Time, error)
	// Estimate dry-runs data against the contract and returns the raw gas estimate.
	Estimate(ctx context.Context, value *big.Int, data []byte) (uint64, error)
	// Send signs and submits data with the given value and gas limit.
	Send(ctx context.Context, value *big.Int, gasLimit uint64, data []byte) (*types.Transaction, error)
	// Confirm waits for tx to be mined successfully.
	Confirm(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
	// Receipt returns the receipt of a mined transaction, or ethereum.NotFound.
	Receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	// Call executes a read-only call against the latest state.
	Call(ctx context.Context, data []byte) ([]byte, error)
}

var _ Transactor = (*chainTransactor)(nil)

type chainTransactor struct {
	chain    evm.Chain
	address  common.Address
	contract *bind.BoundContract
}

// NewChainTransactor binds the HTLC contract at address on chain.
func NewChainTransactor(chain evm.Chain, address common.Address) (Transactor, error) {
	if chain.Client == nil {
		return nil, errors.New("chain client is required")
	}
	if chain.DeployerKey == nil {
		return nil, errors.New("chain signer is required")
	}
	if chain.Confirm == nil {
		return nil, errors.New("chain confirm function is required")
	}
	if address == (common.Address{}) {
		return nil, errors.New("htlc contract address is required")
	}

	return &chainTransactor{
		chain:    chain,
		address:  address,
		contract: bind.NewBoundContract(address, parsedABI, chain.Client, chain.Client, chain.Client),
	}, nil
}

func (t *chainTransactor) From() common.Address {
	return t.chain.DeployerKey.From
}

func (t *chainTransactor) Contract() common.Address {
	return t.address
}

func (t *chainTransactor) ChainTime(ctx context.Context) (time.Time, error) {
	header, err := t.chain.Client.HeaderByNumber(ctx, nil)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read latest header on %s: %w", t.chain, err)
	}

	return time.Unix(int64(header.Time), 0).UTC(), nil //nolint:gosec // block timestamps fit int64
}

func (t *chainTransactor) Estimate(ctx context.Context, value *big.Int, data []byte) (uint64, error) {
	return t.chain.Client.EstimateGas(ctx, ethereum.CallMsg{
		From:  t.From(),
		To:    &t.address,
		Value: value,
		Data:  data,
	})
}

func (t *chainTransactor) Send(
	ctx context.Context, value *big.Int, gasLimit uint64, data []byte,
) (*types.Transaction, error) {
	opts := *t.chain.DeployerKey
	opts.Context = ctx
	opts.Value = value
	opts.GasLimit = gasLimit

	return t.contract.RawTransact(&opts, data)
}

func (t *chainTransactor) Confirm(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	return t.chain.Confirm(ctx, tx)
}

func (t *chainTransactor) Receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return t.chain.Client.TransactionReceipt(ctx, hash)
}

func (t *chainTransactor) Call(ctx context.Context, data []byte) ([]byte, error) {
	return t.chain.Client.CallContract(ctx, ethereum.CallMsg{
		From: t.From(),
		To:   &t.address,
		Data: data,
	}, nil)
}
