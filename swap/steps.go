package swap

import (
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/hashlock-labs/htlc-swap/htlc"
	"github.com/hashlock-labs/htlc-swap/operations"
)

// Inputs carry the swap id and role so identical terms in two swaps are journaled apart.

type lockInput struct {
	Swap     string        `json:"swap"`
	Role     Role          `json:"role"`
	Hashlock htlc.Hashlock `json:"hashlock"`
	Terms    Terms         `json:"terms"`
}

type resolveInput struct {
	Swap string          `json:"swap"`
	Role Role            `json:"role"`
	Lock htlc.LockResult `json:"lock"`
}

type recoverInput struct {
	Swap string          `json:"swap"`
	Role Role            `json:"role"`
	Lock htlc.LockResult `json:"lock"`
}

type withdrawInput struct {
	Swap string  `json:"swap"`
	Role Role    `json:"role"`
	ID   htlc.ID `json:"id"`
	// Secret is hex encoded.
	Secret   string `json:"secret"`
	GasLimit uint64 `json:"gasLimit,omitempty"`
}

type refundInput struct {
	Swap      string    `json:"swap"`
	Role      Role      `json:"role"`
	ID        htlc.ID   `json:"id"`
	NotBefore time.Time `json:"notBefore"`
	GasLimit  uint64    `json:"gasLimit,omitempty"`
}

var opLock = operations.NewOperation(
	"htlc-lock",
	semver.MustParse("1.0.0"),
	"Lock the leg amount under the swap hashlock",
	func(b operations.Bundle, leg Leg, in lockInput) (htlc.LockResult, error) {
		res, err := leg.Adapter.Lock(b.GetContext(), htlc.LockRequest{
			Route:       in.Terms.Route,
			Hashlock:    in.Hashlock,
			Amount:      in.Terms.Amount,
			LockSeconds: htlc.Seconds(in.Terms.LockSeconds),
			GasLimit:    in.Terms.gasLimit(),
		})
		if err != nil {
			// journal what was sent so the lock can be looked up later
			if pending, ok := htlc.PendingLock(err); ok {
				return pending, err
			}

			return htlc.LockResult{}, err
		}

		return *res, nil
	},
)

var opRecoverLock = operations.NewOperation(
	"htlc-recover-lock",
	semver.MustParse("1.0.0"),
	"Settle a lock whose confirmation was not observed",
	func(b operations.Bundle, leg Leg, in recoverInput) (htlc.LockResult, error) {
		if in.Lock.Tx.Hash == "" {
			return htlc.LockResult{}, operations.NewUnrecoverableError(
				fmt.Errorf("%w: no transaction was recorded for the interrupted lock", htlc.ErrNotFound))
		}

		res := in.Lock
		var err error
		recoverer, ok := leg.Adapter.(htlc.LockRecoverer)
		switch {
		case ok:
			var found *htlc.LockResult
			if found, err = recoverer.RecoverLock(b.GetContext(), in.Lock); err == nil {
				res = *found
			}
		case leg.Resolver != nil:
			res.ID, err = leg.Resolver.ResolveID(b.GetContext(), in.Lock)
		default:
			return htlc.LockResult{}, operations.NewUnrecoverableError(
				fmt.Errorf("%w: %s chain can't look up a pending lock", htlc.ErrNotFound, leg.Adapter.Family()))
		}
		if err != nil {
			if !htlc.IsRetryable(err) {
				err = operations.NewUnrecoverableError(err)
			}

			return htlc.LockResult{}, err
		}

		return res, nil
	},
)

var opResolveID = operations.NewOperation(
	"htlc-resolve-id",
	semver.MustParse("1.0.0"),
	"Recover the commitment id assigned by the contract",
	func(b operations.Bundle, leg Leg, in resolveInput) (htlc.ID, error) {
		if leg.Resolver == nil {
			return htlc.ID{}, operations.NewUnrecoverableError(
				fmt.Errorf("%w: %s chain returns no lock id and has no resolver", htlc.ErrInvalidArgument, leg.Adapter.Family()))
		}

		return leg.Resolver.ResolveID(b.GetContext(), in.Lock)
	},
)

var opWithdraw = operations.NewOperation(
	"htlc-withdraw",
	semver.MustParse("1.0.0"),
	"Redeem a commitment with the secret",
	func(b operations.Bundle, leg Leg, in withdrawInput) (htlc.WithdrawResult, error) {
		secret, err := htlc.ParseSecret(in.Secret)
		if err != nil {
			return htlc.WithdrawResult{}, err
		}
		req := htlc.WithdrawRequest{ID: in.ID, Secret: secret}
		if in.GasLimit > 0 {
			req.GasLimit = htlc.GasLimit(in.GasLimit)
		}
		res, err := leg.Adapter.Withdraw(b.GetContext(), req)
		if err != nil {
			return htlc.WithdrawResult{}, err
		}

		return *res, nil
	},
)

var opRefund = operations.NewOperation(
	"htlc-refund",
	semver.MustParse("1.0.0"),
	"Refund an expired commitment",
	func(b operations.Bundle, leg Leg, in refundInput) (htlc.RefundResult, error) {
		req := htlc.RefundRequest{ID: in.ID, NotBefore: in.NotBefore}
		if in.GasLimit > 0 {
			req.GasLimit = htlc.GasLimit(in.GasLimit)
		}
		res, err := leg.Adapter.Refund(b.GetContext(), req)
		if err != nil {
			return htlc.RefundResult{}, err
		}

		return *res, nil
	},
)
