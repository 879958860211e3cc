package htlc

import (
	"fmt"
	"math/big"
	"time"
)

// State is the lifecycle state of a single commitment.
type State string

const (
	StateCreated  State = "CREATED"
	StateLocked   State = "LOCKED"
	StateRedeemed State = "REDEEMED"
	StateRefunded State = "REFUNDED"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateRedeemed || s == StateRefunded
}

// Commitment is the chain-independent view of one lock instance.
type Commitment struct {
	ID        ID       `json:"id"`
	Sender    string   `json:"sender"`
	Recipient string   `json:"recipient"`
	Amount    *big.Int `json:"amount"`
	Hashlock  Hashlock `json:"hashlock"`
	// Timelock is the absolute expiry after which the commitment is refundable.
	Timelock time.Time `json:"timelock"`
	State    State     `json:"state"`
	// Preimage is set once the commitment has been redeemed.
	Preimage *Secret `json:"-"`

	ReceiverChainID      uint64 `json:"receiverChainId"`
	ReceiverChainAddress string `json:"receiverChainAddress"`
}

// NewCommitment returns a commitment in the Created state.
func NewCommitment(id ID, route Route, amount *big.Int) *Commitment {
	return &Commitment{
		ID:                   id,
		Sender:               route.Sender,
		Recipient:            route.Recipient,
		Amount:               amount,
		State:                StateCreated,
		ReceiverChainID:      route.ReceiverChainID,
		ReceiverChainAddress: route.ReceiverChainAddress,
	}
}

// Lock moves Created -> Locked, fixing the hashlock and timelock. The timelock must lie strictly
// after now.
func (c *Commitment) Lock(hashlock Hashlock, timelock, now time.Time) error {
	if c.State != StateCreated {
		return fmt.Errorf("%w: lock from %s", ErrInvalidTransition, c.State)
	}
	if hashlock.IsZero() {
		return fmt.Errorf("%w: zero hashlock", ErrInvalidArgument)
	}
	if !timelock.After(now) {
		return fmt.Errorf("%w: timelock %s is not after %s", ErrInvalidArgument,
			timelock.UTC().Format(time.RFC3339), now.UTC().Format(time.RFC3339))
	}
	c.Hashlock = hashlock
	c.Timelock = timelock
	c.State = StateLocked

	return nil
}

// Redeem moves Locked -> Redeemed when the secret matches and the timelock has not passed.
func (c *Commitment) Redeem(secret Secret, now time.Time) error {
	if c.State != StateLocked {
		return fmt.Errorf("%w: commitment %s is %s", ErrContractRevert, c.ID, c.State)
	}
	if !c.Hashlock.Matches(secret) {
		return fmt.Errorf("%w: hashlock mismatch for %s", ErrContractRevert, c.ID)
	}
	if !now.Before(c.Timelock) {
		return fmt.Errorf("%w: commitment %s expired at %s", ErrContractRevert, c.ID,
			c.Timelock.UTC().Format(time.RFC3339))
	}
	s := secret
	c.Preimage = &s
	c.State = StateRedeemed

	return nil
}

// Refund moves Locked -> Refunded once now has reached the timelock.
func (c *Commitment) Refund(now time.Time) error {
	if c.State != StateLocked {
		return fmt.Errorf("%w: commitment %s is %s", ErrContractRevert, c.ID, c.State)
	}
	if now.Before(c.Timelock) {
		return fmt.Errorf("%w: commitment %s refundable from %s", ErrContractRevert, c.ID,
			c.Timelock.UTC().Format(time.RFC3339))
	}
	c.State = StateRefunded

	return nil
}

// Clone returns a copy that shares no mutable state with c.
func (c *Commitment) Clone() *Commitment {
	out := *c
	if c.Amount != nil {
		out.Amount = new(big.Int).Set(c.Amount)
	}
	if c.Preimage != nil {
		p := *c.Preimage
		out.Preimage = &p
	}

	return &out
}
