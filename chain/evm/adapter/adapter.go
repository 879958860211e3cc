// Package adapter implements htlc.Adapter for the HashedTimelockEther contract on EVM chains.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/hashlock-labs/htlc-swap/htlc"
	"github.com/hashlock-labs/htlc-swap/pkg/logger"
)

// Family is the chain family served by this adapter.
const Family = "evm"

var (
	_ htlc.Adapter        = (*Adapter)(nil)
	_ htlc.Inspector      = (*Adapter)(nil)
	_ htlc.SecretObserver = (*Adapter)(nil)
	_ htlc.LockRecoverer  = (*Adapter)(nil)
)

// Config tunes amount parsing and gas limits.
type Config struct {
	// Denomination of LockRequest.Amount. Defaults to htlc.Finney.
	Denomination htlc.Denomination
	// GasPolicy scales estimates when no explicit limit is given. Defaults to
	// htlc.DefaultGasPolicy.
	GasPolicy htlc.GasPolicy
}

// Adapter drives the HTLC contract through a Transactor.
type Adapter struct {
	tx    Transactor
	denom htlc.Denomination
	gas   htlc.GasPolicy
	lggr  logger.Logger
}

// New returns an adapter that signs with t's account.
func New(t Transactor, cfg Config, lggr logger.Logger) (*Adapter, error) {
	if t == nil {
		return nil, errors.New("transactor is required")
	}
	if cfg.Denomination.Name == "" {
		cfg.Denomination = htlc.Finney
	}
	if cfg.GasPolicy == (htlc.GasPolicy{}) {
		cfg.GasPolicy = htlc.DefaultGasPolicy
	}
	if err := cfg.GasPolicy.Validate(); err != nil {
		return nil, err
	}
	if lggr == nil {
		lggr = logger.Nop()
	}

	return &Adapter{
		tx:    t,
		denom: cfg.Denomination,
		gas:   cfg.GasPolicy,
		lggr:  lggr.Named("evm-htlc"),
	}, nil
}

// Family returns "evm".
func (*Adapter) Family() string {
	return Family
}

// Address returns the signing account.
func (a *Adapter) Address() common.Address {
	return a.tx.From()
}

// ChainTime returns the timestamp of the latest block.
func (a *Adapter) ChainTime(ctx context.Context) (time.Time, error) {
	return a.tx.ChainTime(ctx)
}

// Lock calls createHTLC with the converted amount as value. The contract identifier is read
// from the HTLCCreated log of the receipt. A sent transaction whose receipt was not seen fails
// with a *htlc.PendingLockError.
func (a *Adapter) Lock(ctx context.Context, req htlc.LockRequest) (*htlc.LockResult, error) {
	if req.Hashlock.IsZero() {
		return nil, fmt.Errorf("%w: hashlock is required", htlc.ErrInvalidArgument)
	}
	if !common.IsHexAddress(req.Route.Recipient) {
		return nil, fmt.Errorf("%w: recipient %q is not an EVM address", htlc.ErrInvalidArgument, req.Route.Recipient)
	}
	value, err := a.denom.ToNative(req.Amount)
	if err != nil {
		return nil, err
	}
	if _, err = htlc.ResolveLockSeconds(req.LockSeconds); err != nil {
		return nil, err
	}

	now, err := a.tx.ChainTime(ctx)
	if err != nil {
		return nil, err
	}
	timelock, err := htlc.ComputeTimelock(now, req.LockSeconds)
	if err != nil {
		return nil, err
	}

	data, err := parsedABI.Pack(methodCreate,
		common.HexToAddress(req.Route.Recipient),
		[32]byte(req.Hashlock),
		big.NewInt(timelock.Unix()),
		new(big.Int).SetUint64(req.Route.ReceiverChainID),
		req.Route.ReceiverChainAddress,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", methodCreate, err)
	}

	tx, receipt, limit, err := a.submit(ctx, methodCreate, value, data, req.GasLimit, a.gas.Single)
	if err != nil {
		if tx != nil && receipt == nil {
			return nil, &htlc.PendingLockError{
				Lock: htlc.LockResult{
					Tx:       a.txRef(tx, nil),
					Hashlock: req.Hashlock,
					Timelock: timelock,
					Amount:   value,
					GasLimit: limit,
				},
				Err: err,
			}
		}

		return nil, err
	}

	id, err := a.createdID(tx.Hash(), receipt)
	if err != nil {
		return nil, err
	}

	a.lggr.Infow("Locked",
		"id", id.Hex(),
		"hashlock", req.Hashlock.Hex(),
		"timelock", timelock.Unix(),
		"amount", value.String(),
		"tx", tx.Hash().Hex(),
	)

	return &htlc.LockResult{
		ID:       id,
		Tx:       a.txRef(tx, receipt),
		Hashlock: req.Hashlock,
		Timelock: timelock,
		Amount:   value,
		GasLimit: limit,
	}, nil
}

// RecoverLock looks up the receipt of a lock that Lock reported as pending.
func (a *Adapter) RecoverLock(ctx context.Context, pending htlc.LockResult) (*htlc.LockResult, error) {
	if pending.Tx.Hash == "" {
		return nil, fmt.Errorf("%w: pending lock carries no transaction", htlc.ErrInvalidArgument)
	}
	hash := common.HexToHash(pending.Tx.Hash)
	receipt, err := a.tx.Receipt(ctx, hash)
	switch {
	case errors.Is(err, ethereum.NotFound):
		return nil, fmt.Errorf("%w: lock tx %s is not mined", htlc.ErrNotFound, hash.Hex())
	case err != nil:
		return nil, fmt.Errorf("failed to read receipt of %s: %w", hash.Hex(), err)
	case receipt.Status == types.ReceiptStatusFailed:
		return nil, fmt.Errorf("%w: lock tx %s reverted", htlc.ErrContractRevert, hash.Hex())
	}

	id, err := a.createdID(hash, receipt)
	if err != nil {
		return nil, err
	}
	res := pending
	res.ID = id
	if receipt.BlockNumber != nil {
		res.Tx.Block = receipt.BlockNumber.Uint64()
	}
	a.lggr.Infow("Recovered lock", "id", id.Hex(), "tx", hash.Hex())

	return &res, nil
}

// Withdraw redeems req.ID. The commitment is checked against the secret and the latest block
// time first, so a call the contract would reject fails with htlc.ErrContractRevert without
// spending gas.
func (a *Adapter) Withdraw(ctx context.Context, req htlc.WithdrawRequest) (*htlc.WithdrawResult, error) {
	now, err := a.tx.ChainTime(ctx)
	if err != nil {
		return nil, err
	}
	if err = a.checkRedeemable(ctx, req.ID, req.Secret, now); err != nil {
		return nil, err
	}

	data, err := parsedABI.Pack(methodRedeem, [32]byte(req.ID), [32]byte(req.Secret))
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", methodRedeem, err)
	}

	tx, receipt, limit, err := a.submit(ctx, methodRedeem, nil, data, req.GasLimit, a.gas.Single)
	if err != nil {
		return nil, err
	}
	if _, ok := a.redeemedIDs(receipt)[req.ID]; !ok {
		return nil, fmt.Errorf("%w: receipt of %s carries no %s log for %s",
			htlc.ErrDecode, tx.Hash().Hex(), eventRedeemed, req.ID)
	}

	a.lggr.Infow("Redeemed", "id", req.ID.Hex(), "tx", tx.Hash().Hex())

	return &htlc.WithdrawResult{ID: req.ID, Tx: a.txRef(tx, receipt), GasLimit: limit}, nil
}

// BatchWithdraw verifies every pair against chain state and submits the valid ones in a single
// batchRedeem call. Pairs that fail verification are reported and left out, so one bad secret
// does not revert the others. An explicit gas limit applies to the submitted subset.
func (a *Adapter) BatchWithdraw(ctx context.Context, req htlc.BatchWithdrawRequest) (*htlc.BatchResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now, err := a.tx.ChainTime(ctx)
	if err != nil {
		return nil, err
	}

	result := &htlc.BatchResult{Entries: make([]htlc.BatchEntry, len(req.IDs))}
	var (
		ids     [][32]byte
		secrets [][32]byte
		valid   []int
		seen    = make(map[htlc.ID]int, len(req.IDs))
	)
	for i, id := range req.IDs {
		result.Entries[i].ID = id
		if first, ok := seen[id]; ok {
			result.Entries[i].Err = fmt.Errorf("%w: %s repeats entry %d", htlc.ErrInvalidArgument, id, first)
			a.lggr.Warnw("Skipping duplicate batch entry", "id", id.Hex(), "index", i)

			continue
		}
		seen[id] = i
		if err = a.checkRedeemable(ctx, id, req.Secrets[i], now); err != nil {
			result.Entries[i].Err = err
			a.lggr.Warnw("Skipping batch entry", "id", id.Hex(), "err", err)

			continue
		}
		ids = append(ids, id)
		secrets = append(secrets, req.Secrets[i])
		valid = append(valid, i)
	}
	if len(valid) == 0 {
		return result, nil
	}

	data, err := parsedABI.Pack(methodBatchRedeem, ids, secrets)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", methodBatchRedeem, err)
	}

	tx, receipt, limit, err := a.submit(ctx, methodBatchRedeem, nil, data, req.GasLimit, a.gas.Batch)
	result.GasLimit = limit
	if err != nil {
		for _, i := range valid {
			result.Entries[i].Err = err
		}

		return result, nil
	}

	ref := a.txRef(tx, receipt)
	redeemed := a.redeemedIDs(receipt)
	for _, i := range valid {
		entry := &result.Entries[i]
		entry.Tx = &ref
		if _, ok := redeemed[entry.ID]; ok {
			entry.Redeemed = true
		} else {
			entry.Err = fmt.Errorf("%w: %s was not redeemed by %s", htlc.ErrContractRevert, entry.ID, tx.Hash().Hex())
		}
	}

	a.lggr.Infow("Batch redeemed",
		"tx", tx.Hash().Hex(),
		"redeemed", len(result.Redeemed()),
		"failed", len(result.Failed()),
	)

	return result, nil
}

// Refund returns an expired commitment to its sender. Refunding before the timelock is
// rejected with htlc.ErrInvalidArgument.
func (a *Adapter) Refund(ctx context.Context, req htlc.RefundRequest) (*htlc.RefundResult, error) {
	now, err := a.tx.ChainTime(ctx)
	if err != nil {
		return nil, err
	}
	c, err := a.Commitment(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if now.Before(c.Timelock) {
		return nil, fmt.Errorf("%w: %s is refundable from %s", htlc.ErrInvalidArgument, req.ID,
			c.Timelock.Format(time.RFC3339))
	}
	if err = c.Clone().Refund(now); err != nil {
		return nil, err
	}

	data, err := parsedABI.Pack(methodRefund, [32]byte(req.ID))
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", methodRefund, err)
	}

	tx, receipt, _, err := a.submit(ctx, methodRefund, nil, data, req.GasLimit, a.gas.Single)
	if err != nil {
		return nil, err
	}
	if len(a.logsOf(receipt, eventRefunded)) == 0 {
		return nil, fmt.Errorf("%w: receipt of %s carries no %s log", htlc.ErrDecode, tx.Hash().Hex(), eventRefunded)
	}

	a.lggr.Infow("Refunded", "id", req.ID.Hex(), "tx", tx.Hash().Hex())

	return &htlc.RefundResult{ID: req.ID, Tx: a.txRef(tx, receipt)}, nil
}

// checkRedeemable applies the contract's redeem rules to the current on-chain commitment.
func (a *Adapter) checkRedeemable(ctx context.Context, id htlc.ID, secret htlc.Secret, now time.Time) error {
	c, err := a.Commitment(ctx, id)
	if err != nil {
		if errors.Is(err, htlc.ErrNotFound) {
			return fmt.Errorf("%w: %w", htlc.ErrContractRevert, err)
		}

		return err
	}

	return c.Clone().Redeem(secret, now)
}

// submit resolves the gas limit, sends data and waits for a successful receipt.
func (a *Adapter) submit(
	ctx context.Context, method string, value *big.Int, data []byte, explicit *uint64, scale func(uint64) uint64,
) (*types.Transaction, *types.Receipt, uint64, error) {
	limit, err := htlc.ResolveLimit(ctx, explicit, func(ctx context.Context) (uint64, error) {
		return a.tx.Estimate(ctx, value, data)
	}, scale)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("%s: %w", method, err)
	}

	tx, err := a.tx.Send(ctx, value, limit, data)
	if err != nil {
		return nil, nil, limit, fmt.Errorf("%s: failed to send transaction: %w", method, err)
	}
	a.lggr.Debugw("Submitted transaction", "method", method, "tx", tx.Hash().Hex(), "gasLimit", limit)

	receipt, err := a.tx.Confirm(ctx, tx)
	if err != nil {
		return tx, receipt, limit, fmt.Errorf("%s: %w", method, err)
	}

	return tx, receipt, limit, nil
}

// createdID reads the commitment id from the HTLCCreated log of receipt.
func (a *Adapter) createdID(hash common.Hash, receipt *types.Receipt) (htlc.ID, error) {
	logs := a.logsOf(receipt, eventCreated)
	if len(logs) == 0 || len(logs[0].Topics) < 2 {
		return htlc.ID{}, fmt.Errorf("%w: receipt of %s carries no %s log", htlc.ErrDecode, hash.Hex(), eventCreated)
	}

	return htlc.ID(logs[0].Topics[1]), nil
}

// logsOf returns the receipt logs emitted by the contract for event.
func (a *Adapter) logsOf(receipt *types.Receipt, event string) []*types.Log {
	if receipt == nil {
		return nil
	}
	topic := parsedABI.Events[event].ID
	contract := a.tx.Contract()

	var out []*types.Log
	for _, l := range receipt.Logs {
		if l.Address == contract && len(l.Topics) > 0 && l.Topics[0] == topic {
			out = append(out, l)
		}
	}

	return out
}

func (a *Adapter) redeemedIDs(receipt *types.Receipt) map[htlc.ID]struct{} {
	out := make(map[htlc.ID]struct{})
	for _, l := range a.logsOf(receipt, eventRedeemed) {
		if len(l.Topics) > 1 {
			out[htlc.ID(l.Topics[1])] = struct{}{}
		}
	}

	return out
}

func (a *Adapter) txRef(tx *types.Transaction, receipt *types.Receipt) htlc.TxRef {
	ref := htlc.TxRef{Hash: tx.Hash().Hex(), Account: a.tx.Contract().Hex()}
	if receipt != nil && receipt.BlockNumber != nil {
		ref.Block = receipt.BlockNumber.Uint64()
	}

	return ref
}
