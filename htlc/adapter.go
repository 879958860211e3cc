package htlc

import (
	"context"
	"fmt"
	"math/big"
	"time"
)

// TxRef is a chain-agnostic handle to a submitted transaction.
type TxRef struct {
	// Hash is the transaction hash (EVM) or the hash of the sent message body cell (TON).
	Hash string `json:"hash"`
	// Account is the account whose transaction list carries the emitted log. On TON this is the
	// HTLC contract address; on EVM it is the contract address as well.
	Account string `json:"account,omitempty"`
	// Index is the position in the account's transaction list, newest first, at which the log is
	// expected. Correlators search forward from it.
	Index int `json:"index"`
	// Block is the block the transaction was included in, when known.
	Block uint64 `json:"block,omitempty"`
}

// LockRequest asks an adapter to lock value under a hashlock.
type LockRequest struct {
	Route    Route
	Hashlock Hashlock
	// Amount is a decimal string in the adapter's configured denomination.
	Amount string
	// LockSeconds defaults to DefaultLockSeconds when nil and must be positive otherwise.
	LockSeconds *int64
	// GasLimit is authoritative when set; no estimation call is made.
	GasLimit *uint64
	// CommitID is an optional proposed identifier, used by chains where the caller names the
	// commitment. When zero the adapter derives one with DeriveID.
	CommitID ID
}

// LockResult describes a confirmed lock.
type LockResult struct {
	// ID is zero when the chain does not return it synchronously; resolve it with an IDResolver.
	ID       ID       `json:"id"`
	Tx       TxRef    `json:"tx"`
	Hashlock Hashlock `json:"hashlock"`
	// Timelock is the expiry the contract enforces, or the expected expiry when the chain's lock
	// message carries none (TON).
	Timelock time.Time `json:"timelock"`
	Amount   *big.Int  `json:"amount"`
	GasLimit uint64    `json:"gasLimit,omitempty"`
}

// WithdrawRequest redeems a commitment with its secret.
type WithdrawRequest struct {
	ID       ID
	Secret   Secret
	GasLimit *uint64
}

// WithdrawResult describes a confirmed redemption.
type WithdrawResult struct {
	ID       ID     `json:"id"`
	Tx       TxRef  `json:"tx"`
	GasLimit uint64 `json:"gasLimit,omitempty"`
}

// BatchWithdrawRequest redeems several commitments. IDs and Secrets pair up by index.
type BatchWithdrawRequest struct {
	IDs      []ID
	Secrets  []Secret
	GasLimit *uint64
}

// Validate rejects empty or mismatched batches.
func (r BatchWithdrawRequest) Validate() error {
	if len(r.IDs) == 0 {
		return fmt.Errorf("%w: batch is empty", ErrInvalidArgument)
	}
	if len(r.IDs) != len(r.Secrets) {
		return fmt.Errorf("%w: %d ids but %d secrets", ErrInvalidArgument, len(r.IDs), len(r.Secrets))
	}

	return nil
}

// BatchEntry is the outcome of one (id, secret) pair of a batch.
type BatchEntry struct {
	ID ID `json:"id"`
	// Redeemed is true when the chain recorded the redemption of this entry.
	Redeemed bool `json:"redeemed"`
	// Err explains why the entry was not redeemed.
	Err error `json:"-"`
	// Tx is the transaction that carried this entry, when one was submitted.
	Tx *TxRef `json:"tx,omitempty"`
}

// BatchResult enumerates per-entry outcomes in request order.
type BatchResult struct {
	Entries  []BatchEntry `json:"entries"`
	GasLimit uint64       `json:"gasLimit,omitempty"`
}

// Redeemed returns the identifiers of the entries that were redeemed.
func (r *BatchResult) Redeemed() []ID {
	var out []ID
	for _, e := range r.Entries {
		if e.Redeemed {
			out = append(out, e.ID)
		}
	}

	return out
}

// Failed returns the entries that were not redeemed.
func (r *BatchResult) Failed() []BatchEntry {
	var out []BatchEntry
	for _, e := range r.Entries {
		if !e.Redeemed {
			out = append(out, e)
		}
	}

	return out
}

// RefundRequest returns an expired commitment to its locker.
type RefundRequest struct {
	ID       ID
	GasLimit *uint64
	// NotBefore is the commitment's timelock as known to the caller. Adapters that can't read
	// the timelock on chain use it to refuse early refunds.
	NotBefore time.Time
}

// RefundResult describes a confirmed refund.
type RefundResult struct {
	ID ID    `json:"id"`
	Tx TxRef `json:"tx"`
}

// Adapter is the capability every chain exposes to the orchestrator. Implementations are
// selected by configuration; each owns its own connection and shares no state with the others.
type Adapter interface {
	// Family names the chain family, e.g. "evm" or "ton".
	Family() string
	// ChainTime returns the chain's notion of the current time.
	ChainTime(ctx context.Context) (time.Time, error)
	// Lock moves value into contract custody under the request's hashlock and waits for
	// confirmation. A lock that was sent but not confirmed fails with a *PendingLockError.
	Lock(ctx context.Context, req LockRequest) (*LockResult, error)
	// Withdraw redeems a commitment.
	Withdraw(ctx context.Context, req WithdrawRequest) (*WithdrawResult, error)
	// BatchWithdraw redeems several commitments, reporting each entry independently.
	BatchWithdraw(ctx context.Context, req BatchWithdrawRequest) (*BatchResult, error)
	// Refund returns an expired commitment to its locker.
	Refund(ctx context.Context, req RefundRequest) (*RefundResult, error)
}

// IDResolver recovers the identifier of a lock whose chain does not return it synchronously.
type IDResolver interface {
	ResolveID(ctx context.Context, lock LockResult) (ID, error)
}

// LockRecoverer settles a lock left pending by a *PendingLockError. It returns the confirmed
// lock with its id, ErrContractRevert when the chain rejected it and ErrNotFound while its
// outcome is unknown.
type LockRecoverer interface {
	RecoverLock(ctx context.Context, pending LockResult) (*LockResult, error)
}

// SecretObserver recovers the secret that was published when a commitment was redeemed.
type SecretObserver interface {
	ObserveSecret(ctx context.Context, id ID, hashlock Hashlock) (Secret, error)
}

// Inspector reads a commitment's on-chain state.
type Inspector interface {
	Commitment(ctx context.Context, id ID) (*Commitment, error)
}
