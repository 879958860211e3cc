// Package adapter implements htlc.Adapter for the HashedTimeLockTON contract.
//
// Messages are sent from the configured wallet with bounce enabled. A send is confirmed once
// the wallet seqno moves past its value before the send and, when Receipts are configured, the
// contract transaction triggered by the message has succeeded. A message the contract rejects
// fails with htlc.ErrContractRevert. The contract assigns commitment ids asynchronously, so Lock
// returns a zero id; resolve it with the correlator.
package adapter

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton/wallet"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"github.com/hashlock-labs/htlc-swap/chain/ton"
	"github.com/hashlock-labs/htlc-swap/htlc"
	"github.com/hashlock-labs/htlc-swap/pkg/logger"
)

// Family is the chain family served by this adapter.
const Family = "ton"

const (
	DefaultPollInterval   = 1500 * time.Millisecond
	DefaultConfirmTimeout = 3 * time.Minute
)

var _ htlc.Adapter = (*Adapter)(nil)

// Wallet is the signing wallet as seen by the adapter.
type Wallet interface {
	Address() *address.Address
	// Seqno returns the wallet's current sequence number.
	Seqno(ctx context.Context) (uint64, error)
	// ChainTime returns the time of the latest masterchain block.
	ChainTime(ctx context.Context) (time.Time, error)
	// Send submits msg without waiting for it to be applied.
	Send(ctx context.Context, msg *wallet.Message) error
}

// Receipts reports how the contract processed a message.
type Receipts interface {
	// MessageOutcome returns nil once account processed the message whose body hash is
	// bodyHash, htlc.ErrContractRevert when it rejected it and htlc.ErrNotFound until then.
	MessageOutcome(ctx context.Context, account, bodyHash string) error
}

// Config tunes the adapter.
type Config struct {
	// Contract is the HashedTimeLockTON address. Required.
	Contract *address.Address
	// Denomination of LockRequest.Amount. Defaults to htlc.TON.
	Denomination htlc.Denomination
	// MessageValue is attached to Redeem and Refund messages.
	MessageValue tlb.Coins
	// PollInterval between seqno reads. Defaults to DefaultPollInterval.
	PollInterval time.Duration
	// ConfirmTimeout bounds the wait for each message. Defaults to DefaultConfirmTimeout.
	ConfirmTimeout time.Duration
	// Receipts checks the contract's transaction for each message. Without it a message counts
	// as confirmed once the wallet has sent it, and a bounce goes unnoticed.
	Receipts Receipts
}

// Adapter sends HTLC messages from a wallet.
type Adapter struct {
	w    Wallet
	cfg  Config
	lggr logger.Logger
}

// New returns an adapter sending from w.
func New(w Wallet, cfg Config, lggr logger.Logger) (*Adapter, error) {
	if w == nil {
		return nil, errors.New("wallet is required")
	}
	if cfg.Contract == nil {
		return nil, errors.New("htlc contract address is required")
	}
	if cfg.Denomination.Name == "" {
		cfg.Denomination = htlc.TON
	}
	if cfg.MessageValue.Nano() == nil || cfg.MessageValue.Nano().Sign() == 0 {
		return nil, fmt.Errorf("%w: message value must be positive", htlc.ErrInvalidArgument)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = DefaultConfirmTimeout
	}
	if lggr == nil {
		lggr = logger.Nop()
	}

	return &Adapter{w: w, cfg: cfg, lggr: lggr.Named("ton-htlc")}, nil
}

// NewFromChain returns an adapter sending from the chain's wallet. Messages without a locked
// amount carry the chain's default value.
func NewFromChain(c ton.Chain, cfg Config, lggr logger.Logger) (*Adapter, error) {
	if c.Wallet == nil {
		return nil, errors.New("ton chain has no wallet")
	}
	if cfg.MessageValue.Nano() == nil || cfg.MessageValue.Nano().Sign() == 0 {
		cfg.MessageValue = c.Amount
	}

	return New(chainWallet{c}, cfg, lggr)
}

// Family returns "ton".
func (*Adapter) Family() string {
	return Family
}

// Address returns the sending wallet address.
func (a *Adapter) Address() *address.Address {
	return a.w.Address()
}

// Contract returns the HTLC contract address.
func (a *Adapter) Contract() *address.Address {
	return a.cfg.Contract
}

// ChainTime returns the time of the latest masterchain block.
func (a *Adapter) ChainTime(ctx context.Context) (time.Time, error) {
	return a.w.ChainTime(ctx)
}

// Lock sends LockCommitment with the amount attached. The proposed commitId is req.CommitID, or
// the id derived from the hashlock, route and timelock when unset. The returned id is always
// zero; the contract publishes the id it stored in an external out message.
//
// The message carries no expiry. The returned Timelock is the expected one, chain time plus
// req.LockSeconds, and is only as accurate as the contract's configured lock period.
func (a *Adapter) Lock(ctx context.Context, req htlc.LockRequest) (*htlc.LockResult, error) {
	if req.Hashlock.IsZero() {
		return nil, fmt.Errorf("%w: hashlock is required", htlc.ErrInvalidArgument)
	}
	value, err := a.cfg.Denomination.ToNative(req.Amount)
	if err != nil {
		return nil, err
	}
	if _, err = htlc.ResolveLockSeconds(req.LockSeconds); err != nil {
		return nil, err
	}

	now, err := a.w.ChainTime(ctx)
	if err != nil {
		return nil, err
	}
	timelock, err := htlc.ComputeTimelock(now, req.LockSeconds)
	if err != nil {
		return nil, err
	}

	commitID := req.CommitID
	if commitID.IsZero() {
		commitID = htlc.DeriveID(req.Hashlock, req.Route, timelock)
	}

	body := LockCommitmentBody(commitID, req.Hashlock)
	ref, err := a.send(ctx, "lock", value, body)
	if err != nil {
		if ref.Hash != "" && !errors.Is(err, htlc.ErrContractRevert) {
			return nil, &htlc.PendingLockError{
				Lock: htlc.LockResult{Tx: ref, Hashlock: req.Hashlock, Timelock: timelock, Amount: value},
				Err:  err,
			}
		}

		return nil, err
	}

	a.lggr.Infow("Locked",
		"proposedId", commitID.Hex(),
		"hashlock", req.Hashlock.Hex(),
		"timelock", timelock.Unix(),
		"amount", value.String(),
		"message", ref.Hash,
	)

	return &htlc.LockResult{
		Tx:       ref,
		Hashlock: req.Hashlock,
		Timelock: timelock,
		Amount:   value,
	}, nil
}

// Withdraw sends Redeem. The contract checks the secret when the message arrives; a rejected
// message bounces and Withdraw fails with htlc.ErrContractRevert.
func (a *Adapter) Withdraw(ctx context.Context, req htlc.WithdrawRequest) (*htlc.WithdrawResult, error) {
	if req.ID.IsZero() {
		return nil, fmt.Errorf("%w: lock id is required", htlc.ErrInvalidArgument)
	}

	ref, err := a.send(ctx, "redeem", a.cfg.MessageValue.Nano(), RedeemBody(req.ID, req.Secret))
	if err != nil {
		return nil, err
	}
	a.lggr.Infow("Redeemed", "id", req.ID.Hex(), "message", ref.Hash)

	return &htlc.WithdrawResult{ID: req.ID, Tx: ref}, nil
}

// BatchWithdraw sends one Redeem per pair, in order. A failed send is recorded on its entry
// and the remaining pairs are still sent.
func (a *Adapter) BatchWithdraw(ctx context.Context, req htlc.BatchWithdrawRequest) (*htlc.BatchResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	result := &htlc.BatchResult{Entries: make([]htlc.BatchEntry, len(req.IDs))}
	for i, id := range req.IDs {
		entry := &result.Entries[i]
		entry.ID = id

		res, err := a.Withdraw(ctx, htlc.WithdrawRequest{ID: id, Secret: req.Secrets[i]})
		if err != nil {
			entry.Err = err
			a.lggr.Warnw("Batch entry failed", "id", id.Hex(), "err", err)
			if ctx.Err() != nil {
				for j := i + 1; j < len(req.IDs); j++ {
					result.Entries[j] = htlc.BatchEntry{ID: req.IDs[j], Err: ctx.Err()}
				}

				break
			}

			continue
		}
		entry.Redeemed = true
		entry.Tx = &res.Tx
	}

	return result, nil
}

// Refund sends Refund{lockId}. When req.NotBefore is set and the chain has not reached it,
// nothing is sent.
func (a *Adapter) Refund(ctx context.Context, req htlc.RefundRequest) (*htlc.RefundResult, error) {
	if req.ID.IsZero() {
		return nil, fmt.Errorf("%w: lock id is required", htlc.ErrInvalidArgument)
	}
	if !req.NotBefore.IsZero() {
		now, err := a.w.ChainTime(ctx)
		if err != nil {
			return nil, err
		}
		if now.Before(req.NotBefore) {
			return nil, fmt.Errorf("%w: %s is refundable from %s", htlc.ErrInvalidArgument, req.ID,
				req.NotBefore.UTC().Format(time.RFC3339))
		}
	}

	ref, err := a.send(ctx, "refund", a.cfg.MessageValue.Nano(), RefundBody(req.ID))
	if err != nil {
		return nil, err
	}
	a.lggr.Infow("Refunded", "id", req.ID.Hex(), "message", ref.Hash)

	return &htlc.RefundResult{ID: req.ID, Tx: ref}, nil
}

// send submits body to the contract, waits until the wallet seqno moves and then for the
// contract's verdict.
func (a *Adapter) send(ctx context.Context, op string, value *big.Int, body *cell.Cell) (htlc.TxRef, error) {
	before, err := a.w.Seqno(ctx)
	if err != nil {
		return htlc.TxRef{}, fmt.Errorf("%s: failed to read wallet seqno: %w", op, err)
	}

	msg := wallet.SimpleMessage(a.cfg.Contract, tlb.FromNanoTON(value), body)
	if err = a.w.Send(ctx, msg); err != nil {
		return htlc.TxRef{}, fmt.Errorf("%s: failed to send message: %w", op, err)
	}

	ref := htlc.TxRef{
		Hash:    hex.EncodeToString(body.Hash()),
		Account: a.cfg.Contract.String(),
	}
	a.lggr.Debugw("Sent message", "op", op, "message", ref.Hash, "seqno", before)

	deadline := time.Now().Add(a.cfg.ConfirmTimeout)
	err = htlc.PollUntil(ctx, deadline, a.cfg.PollInterval, func(ctx context.Context) (bool, error) {
		current, serr := a.w.Seqno(ctx)
		if serr != nil {
			a.lggr.Debugw("Seqno read failed, retrying", "op", op, "err", serr)

			return false, nil
		}

		return current > before, nil
	})
	if err != nil {
		return ref, fmt.Errorf("%s: message %s not confirmed: %w", op, ref.Hash, err)
	}
	if a.cfg.Receipts == nil {
		return ref, nil
	}

	err = htlc.PollUntil(ctx, deadline, a.cfg.PollInterval, func(ctx context.Context) (bool, error) {
		oerr := a.cfg.Receipts.MessageOutcome(ctx, ref.Account, ref.Hash)
		switch {
		case oerr == nil:
			return true, nil
		case htlc.IsRetryable(oerr):
			a.lggr.Debugw("Message not processed yet", "op", op, "message", ref.Hash, "err", oerr)

			return false, nil
		default:
			return false, oerr
		}
	})
	if err != nil {
		return ref, fmt.Errorf("%s: message %s: %w", op, ref.Hash, err)
	}

	return ref, nil
}

// chainWallet adapts a ton.Chain to Wallet.
type chainWallet struct {
	c ton.Chain
}

func (w chainWallet) Address() *address.Address {
	return w.c.WalletAddress
}

func (w chainWallet) Seqno(ctx context.Context) (uint64, error) {
	return w.c.WalletSeqno(ctx)
}

func (w chainWallet) ChainTime(ctx context.Context) (time.Time, error) {
	return w.c.LatestBlockTime(ctx)
}

func (w chainWallet) Send(ctx context.Context, msg *wallet.Message) error {
	return w.c.Wallet.Send(ctx, msg, false)
}
