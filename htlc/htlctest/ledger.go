// Package htlctest provides an in-memory HTLC ledger that behaves like a deployed contract. It
// backs orchestrator tests and local dry runs of swap plans.
package htlctest

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/hashlock-labs/htlc-swap/htlc"
)

// Clock is a manually advanced time source shared by ledgers that should agree on "now".
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock set to start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start.UTC()}
}

// Now returns the current time of the clock.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Op names a ledger call for fault injection.
type Op string

const (
	OpLock     Op = "lock"
	OpWithdraw Op = "withdraw"
	OpBatch    Op = "batch"
	OpRefund   Op = "refund"
)

// FaultFunc is consulted before every submission. A non-nil error aborts the call as if the
// transport failed.
type FaultFunc func(op Op) error

// UnconfirmedFunc is consulted after every lock submission. A non-nil err makes Lock fail with an
// *htlc.PendingLockError as if its confirmation was lost; land reports whether the submission
// took effect or was rejected by the contract.
type UnconfirmedFunc func() (land bool, err error)

// EstimatedGas is the raw estimate every ledger call reports.
const EstimatedGas uint64 = 50_000

// Ledger is an in-memory HTLC contract. It implements htlc.Adapter, htlc.IDResolver,
// htlc.SecretObserver, htlc.Inspector and htlc.LockRecoverer.
type Ledger struct {
	family      string
	clock       *Clock
	denom       htlc.Denomination
	policy      htlc.GasPolicy
	deferID     bool
	fault       FaultFunc
	unconfirmed UnconfirmedFunc
	sender      string
	mu          sync.Mutex
	locks       map[htlc.ID]*htlc.Commitment
	txLocks     map[string]htlc.ID
	rejected    map[string]struct{}
	txCount     int
	estimate    int
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithDeferredID makes Lock return a zero ID, to be recovered with ResolveID, the way TON
// behaves.
func WithDeferredID() Option {
	return func(l *Ledger) { l.deferID = true }
}

// WithDenomination sets the unit lock amounts are expressed in.
func WithDenomination(d htlc.Denomination) Option {
	return func(l *Ledger) { l.denom = d }
}

// WithGasPolicy sets the gas policy applied to estimates.
func WithGasPolicy(p htlc.GasPolicy) Option {
	return func(l *Ledger) { l.policy = p }
}

// WithFault installs a fault injector.
func WithFault(fn FaultFunc) Option {
	return func(l *Ledger) { l.fault = fn }
}

// WithUnconfirmedLock installs fn to decide which lock confirmations are lost.
func WithUnconfirmedLock(fn UnconfirmedFunc) Option {
	return func(l *Ledger) { l.unconfirmed = fn }
}

// WithSender sets the address recorded as the sender of every lock.
func WithSender(addr string) Option {
	return func(l *Ledger) { l.sender = addr }
}

// NewLedger returns an empty ledger for family driven by clock.
func NewLedger(family string, clock *Clock, opts ...Option) *Ledger {
	l := &Ledger{
		family:   family,
		clock:    clock,
		denom:    htlc.Wei,
		policy:   htlc.DefaultGasPolicy,
		sender:   "ledger-sender",
		locks:    make(map[htlc.ID]*htlc.Commitment),
		txLocks:  make(map[string]htlc.ID),
		rejected: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}

	return l
}

var _ interface {
	htlc.Adapter
	htlc.IDResolver
	htlc.SecretObserver
	htlc.Inspector
	htlc.LockRecoverer
} = (*Ledger)(nil)

// Family implements htlc.Adapter.
func (l *Ledger) Family() string {
	return l.family
}

// ChainTime implements htlc.Adapter.
func (l *Ledger) ChainTime(context.Context) (time.Time, error) {
	return l.clock.Now(), nil
}

// EstimateCalls returns how many dry-runs the ledger has served.
func (l *Ledger) EstimateCalls() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.estimate
}

// Lock implements htlc.Adapter.
func (l *Ledger) Lock(ctx context.Context, req htlc.LockRequest) (*htlc.LockResult, error) {
	amount, err := l.denom.ToNative(req.Amount)
	if err != nil {
		return nil, err
	}
	now := l.clock.Now()
	timelock, err := htlc.ComputeTimelock(now, req.LockSeconds)
	if err != nil {
		return nil, err
	}
	limit, err := htlc.ResolveLimit(ctx, req.GasLimit, l.estimateFn, l.policy.Single)
	if err != nil {
		return nil, err
	}
	if err = l.inject(OpLock); err != nil {
		return nil, err
	}

	id := req.CommitID
	if id.IsZero() {
		id = htlc.DeriveID(req.Hashlock, req.Route, timelock)
	}
	land, lost := true, error(nil)
	if l.unconfirmed != nil {
		land, lost = l.unconfirmed()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if lost != nil && !land {
		tx := l.nextTx(id)
		l.rejected[tx.Hash] = struct{}{}

		return nil, &htlc.PendingLockError{
			Lock: htlc.LockResult{Tx: tx, Hashlock: req.Hashlock, Timelock: timelock, Amount: amount},
			Err:  lost,
		}
	}

	if _, ok := l.locks[id]; ok {
		return nil, fmt.Errorf("%w: commitment %s already exists", htlc.ErrContractRevert, id)
	}
	route := req.Route
	if route.Sender == "" {
		route.Sender = l.sender
	}
	c := htlc.NewCommitment(id, route, amount)
	if err = c.Lock(req.Hashlock, timelock, now); err != nil {
		return nil, fmt.Errorf("%w: %w", htlc.ErrContractRevert, err)
	}
	l.locks[id] = c
	tx := l.nextTx(id)
	l.txLocks[tx.Hash] = id

	res := &htlc.LockResult{
		ID:       id,
		Tx:       tx,
		Hashlock: req.Hashlock,
		Timelock: timelock,
		Amount:   new(big.Int).Set(amount),
		GasLimit: limit,
	}
	if lost != nil {
		res.ID = htlc.ID{}
		return nil, &htlc.PendingLockError{Lock: *res, Err: lost}
	}
	if l.deferID {
		res.ID = htlc.ID{}
	}

	return res, nil
}

// Withdraw implements htlc.Adapter.
func (l *Ledger) Withdraw(ctx context.Context, req htlc.WithdrawRequest) (*htlc.WithdrawResult, error) {
	limit, err := htlc.ResolveLimit(ctx, req.GasLimit, l.estimateFn, l.policy.Single)
	if err != nil {
		return nil, err
	}
	if err = l.inject(OpWithdraw); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err = l.redeemLocked(req.ID, req.Secret); err != nil {
		return nil, err
	}

	return &htlc.WithdrawResult{ID: req.ID, Tx: l.nextTx(req.ID), GasLimit: limit}, nil
}

// BatchWithdraw implements htlc.Adapter. Entries are applied independently; a failing entry
// does not undo the others.
func (l *Ledger) BatchWithdraw(ctx context.Context, req htlc.BatchWithdrawRequest) (*htlc.BatchResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	limit, err := htlc.ResolveLimit(ctx, req.GasLimit, l.estimateFn, l.policy.Batch)
	if err != nil {
		return nil, err
	}
	if err = l.inject(OpBatch); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	tx := l.nextTx(htlc.ID{})
	out := &htlc.BatchResult{GasLimit: limit, Entries: make([]htlc.BatchEntry, len(req.IDs))}
	for i, id := range req.IDs {
		entry := htlc.BatchEntry{ID: id, Tx: &tx}
		if rerr := l.redeemLocked(id, req.Secrets[i]); rerr != nil {
			entry.Err = rerr
		} else {
			entry.Redeemed = true
		}
		out.Entries[i] = entry
	}

	return out, nil
}

// Refund implements htlc.Adapter.
func (l *Ledger) Refund(ctx context.Context, req htlc.RefundRequest) (*htlc.RefundResult, error) {
	if _, err := htlc.ResolveLimit(ctx, req.GasLimit, l.estimateFn, l.policy.Single); err != nil {
		return nil, err
	}
	if err := l.inject(OpRefund); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.locks[req.ID]
	if !ok {
		return nil, fmt.Errorf("%w: commitment %s does not exist", htlc.ErrContractRevert, req.ID)
	}
	if err := c.Refund(l.clock.Now()); err != nil {
		return nil, err
	}

	return &htlc.RefundResult{ID: req.ID, Tx: l.nextTx(req.ID)}, nil
}

// ResolveID implements htlc.IDResolver by looking up the lock recorded for the transaction.
func (l *Ledger) ResolveID(_ context.Context, lock htlc.LockResult) (htlc.ID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.rejected[lock.Tx.Hash]; ok {
		return htlc.ID{}, fmt.Errorf("%w: lock tx %s was rejected", htlc.ErrContractRevert, lock.Tx.Hash)
	}
	id, ok := l.txLocks[lock.Tx.Hash]
	if !ok {
		return htlc.ID{}, fmt.Errorf("%w: no lock emitted by tx %s", htlc.ErrNotFound, lock.Tx.Hash)
	}

	return id, nil
}

// RecoverLock implements htlc.LockRecoverer.
func (l *Ledger) RecoverLock(ctx context.Context, pending htlc.LockResult) (*htlc.LockResult, error) {
	id, err := l.ResolveID(ctx, pending)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	c := l.locks[id]
	res := pending
	res.ID = id
	res.Timelock = c.Timelock
	res.Amount = new(big.Int).Set(c.Amount)

	return &res, nil
}

// ObserveSecret implements htlc.SecretObserver. It returns ErrNotFound until the commitment has
// been redeemed.
func (l *Ledger) ObserveSecret(_ context.Context, id htlc.ID, hashlock htlc.Hashlock) (htlc.Secret, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.locks[id]
	if !ok || c.Preimage == nil {
		return htlc.Secret{}, fmt.Errorf("%w: no redemption of %s", htlc.ErrNotFound, id)
	}
	if !hashlock.Matches(*c.Preimage) {
		return htlc.Secret{}, fmt.Errorf("%w: published preimage does not match %s", htlc.ErrDecode, hashlock)
	}

	return *c.Preimage, nil
}

// Commitment implements htlc.Inspector.
func (l *Ledger) Commitment(_ context.Context, id htlc.ID) (*htlc.Commitment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.locks[id]
	if !ok {
		return nil, fmt.Errorf("%w: commitment %s", htlc.ErrNotFound, id)
	}

	return c.Clone(), nil
}

func (l *Ledger) redeemLocked(id htlc.ID, secret htlc.Secret) error {
	c, ok := l.locks[id]
	if !ok {
		return fmt.Errorf("%w: commitment %s does not exist", htlc.ErrContractRevert, id)
	}

	return c.Redeem(secret, l.clock.Now())
}

func (l *Ledger) estimateFn(context.Context) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.estimate++

	return EstimatedGas, nil
}

func (l *Ledger) inject(op Op) error {
	if l.fault == nil {
		return nil
	}

	return l.fault(op)
}

// nextTx fabricates a unique transaction reference. Callers hold l.mu.
func (l *Ledger) nextTx(id htlc.ID) htlc.TxRef {
	l.txCount++
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(l.txCount))
	h := sha256.Sum256(append([]byte(l.family), append(n[:], id[:]...)...))

	return htlc.TxRef{
		Hash:    "0x" + hex.EncodeToString(h[:]),
		Account: l.family + "-htlc",
		Index:   0,
		Block:   uint64(l.txCount),
	}
}
