// Package correlator recovers TON commitment ids and revealed secrets from account transactions.
//
// The HashedTimeLockTON contract names a commitment when it processes LockCommitment and
// publishes the id in an external out message tagged with OpCommitEmitted. The correlator reads
// the contract's transaction list, newest first, from a TxSource (tonapi.io or liteservers).
package correlator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"

	tonadapter "github.com/hashlock-labs/htlc-swap/chain/ton/adapter"
	"github.com/hashlock-labs/htlc-swap/htlc"
	"github.com/hashlock-labs/htlc-swap/pkg/logger"
)

const (
	DefaultWindow   = 16
	DefaultAttempts = 20
	DefaultDelay    = 3 * time.Second
)

// Config tunes a Correlator.
type Config struct {
	// Contract is the HTLC account scanned when a lock carries no account, and by ObserveSecret.
	Contract string
	// Window is the number of latest transactions fetched per attempt.
	Window int
	// Attempts bounds ResolveID. Each attempt refetches the window.
	Attempts uint
	// Delay between attempts.
	Delay time.Duration
}

// Correlator implements htlc.IDResolver and htlc.SecretObserver over a TxSource.
type Correlator struct {
	src  TxSource
	cfg  Config
	lggr logger.Logger
}

var (
	_ htlc.IDResolver     = (*Correlator)(nil)
	_ htlc.SecretObserver = (*Correlator)(nil)
	_ tonadapter.Receipts = (*Correlator)(nil)
)

// New returns a Correlator reading from src.
func New(src TxSource, cfg Config, lggr logger.Logger) *Correlator {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Attempts == 0 {
		cfg.Attempts = DefaultAttempts
	}
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultDelay
	}
	if lggr == nil {
		lggr = logger.Nop()
	}

	return &Correlator{src: src, cfg: cfg, lggr: lggr.Named("correlator")}
}

// EmitAt parses the transaction at index of account's newest-first list. It fails with
// htlc.ErrNotFound when the transaction doesn't exist or carries no emitted id, so the caller
// may retry with index+1, and with htlc.ErrDecode when the emitted payload is malformed.
func (c *Correlator) EmitAt(ctx context.Context, account string, index int) (htlc.ID, error) {
	if index < 0 {
		return htlc.ID{}, fmt.Errorf("%w: negative transaction index %d", htlc.ErrInvalidArgument, index)
	}
	txs, err := c.src.Transactions(ctx, account, index+1)
	if err != nil {
		return htlc.ID{}, err
	}
	if index >= len(txs) {
		return htlc.ID{}, fmt.Errorf("%w: %s has %d transactions, none at index %d",
			htlc.ErrNotFound, account, len(txs), index)
	}

	return ParseEmit(txs[index])
}

// ResolveID implements htlc.IDResolver. A lock carrying the hash of its message body is matched
// to the contract transaction it triggered; otherwise the list is searched from lock.Tx.Index.
// Missing entries are retried until Attempts is exhausted; decode errors are not.
func (c *Correlator) ResolveID(ctx context.Context, lock htlc.LockResult) (htlc.ID, error) {
	account := lock.Tx.Account
	if account == "" {
		account = c.cfg.Contract
	}
	if account == "" {
		return htlc.ID{}, fmt.Errorf("%w: no account to scan", htlc.ErrInvalidArgument)
	}

	return c.Resolve(ctx, account, lock.Tx.Index, lock.Tx.Hash)
}

// Resolve searches account's transactions for an emitted id, see ResolveID.
func (c *Correlator) Resolve(ctx context.Context, account string, index int, inMsgHash string) (htlc.ID, error) {
	if index < 0 {
		return htlc.ID{}, fmt.Errorf("%w: negative transaction index %d", htlc.ErrInvalidArgument, index)
	}

	var id htlc.ID
	err := retry.Do(
		func() error {
			txs, err := c.src.Transactions(ctx, account, max(c.cfg.Window, index+1))
			if err != nil {
				return err
			}
			found, err := scanEmit(txs, index, inMsgHash)
			if err != nil {
				return err
			}
			id = found

			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.cfg.Attempts),
		retry.Delay(c.cfg.Delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(htlc.IsRetryable),
		retry.OnRetry(func(n uint, err error) {
			c.lggr.Debugw("Commitment id not found yet", "account", account, "attempt", n+1, "err", err)
		}),
	)
	if err != nil {
		return htlc.ID{}, fmt.Errorf("resolve commitment id on %s: %w", account, err)
	}
	c.lggr.Infow("Resolved commitment id", "account", account, "id", id.Hex())

	return id, nil
}

func scanEmit(txs []Transaction, index int, inMsgHash string) (htlc.ID, error) {
	if inMsgHash != "" {
		for _, tx := range txs {
			if tx.InMsg == nil || tx.InMsg.BodyHash() != inMsgHash {
				continue
			}
			if tx.Failed() {
				return htlc.ID{}, fmt.Errorf("%w: message %s rejected: %s", htlc.ErrContractRevert, inMsgHash, tx.failure())
			}

			return ParseEmit(tx)
		}

		return htlc.ID{}, fmt.Errorf("%w: message %s not processed yet", htlc.ErrNotFound, inMsgHash)
	}

	for i := index; i < len(txs); i++ {
		id, err := ParseEmit(txs[i])
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, htlc.ErrNotFound) {
			return htlc.ID{}, err
		}
	}

	return htlc.ID{}, fmt.Errorf("%w: no commit emitted from index %d", htlc.ErrNotFound, index)
}

// MessageOutcome reports how account processed the inbound message whose body hashes to
// bodyHash. It returns nil for a successful transaction, htlc.ErrContractRevert for a rejected
// one and htlc.ErrNotFound while the message has not been processed. An empty account means the
// contract.
func (c *Correlator) MessageOutcome(ctx context.Context, account, bodyHash string) error {
	if account == "" {
		account = c.cfg.Contract
	}
	if account == "" || bodyHash == "" {
		return fmt.Errorf("%w: account and message hash are required", htlc.ErrInvalidArgument)
	}
	txs, err := c.src.Transactions(ctx, account, c.cfg.Window)
	if err != nil {
		return err
	}
	for _, tx := range txs {
		if tx.InMsg == nil || tx.InMsg.BodyHash() != bodyHash {
			continue
		}
		if tx.Failed() {
			c.lggr.Warnw("Message rejected", "account", account, "message", bodyHash, "tx", tx.Hash)

			return fmt.Errorf("%w: message %s rejected: %s", htlc.ErrContractRevert, bodyHash, tx.failure())
		}

		return nil
	}

	return fmt.Errorf("%w: message %s not processed by %s yet", htlc.ErrNotFound, bodyHash, account)
}

// ObserveSecret implements htlc.SecretObserver. It looks for an inbound Redeem for id whose
// secret hashes to hashlock among the contract's latest transactions, and fails with
// htlc.ErrNotFound when there is none yet.
func (c *Correlator) ObserveSecret(ctx context.Context, id htlc.ID, hashlock htlc.Hashlock) (htlc.Secret, error) {
	if c.cfg.Contract == "" {
		return htlc.Secret{}, fmt.Errorf("%w: contract account is required", htlc.ErrInvalidArgument)
	}
	txs, err := c.src.Transactions(ctx, c.cfg.Contract, c.cfg.Window)
	if err != nil {
		return htlc.Secret{}, err
	}
	for _, tx := range txs {
		if secret, ok := findRedeem(tx, id, hashlock); ok {
			c.lggr.Infow("Observed redemption", "id", id.Hex(), "tx", tx.Hash)

			return secret, nil
		}
	}

	return htlc.Secret{}, fmt.Errorf("%w: %s not redeemed on %s", htlc.ErrNotFound, id, c.cfg.Contract)
}
