package adapter

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/hashlock-labs/htlc-swap/htlc"
)

// onchainContract mirrors the getContract return tuple.
type onchainContract struct {
	Sender               common.Address `abi:"sender"`
	Receiver             common.Address `abi:"receiver"`
	Amount               *big.Int       `abi:"amount"`
	Hashlock             [32]byte       `abi:"hashlock"`
	Timelock             *big.Int       `abi:"timelock"`
	Withdrawn            bool           `abi:"withdrawn"`
	Refunded             bool           `abi:"refunded"`
	Preimage             [32]byte       `abi:"preimage"`
	ReceiverChainID      *big.Int       `abi:"receiverChainId"`
	ReceiverChainAddress string         `abi:"receiverChainAddress"`
}

// Commitment reads the contract state of id. Unknown identifiers return htlc.ErrNotFound.
func (a *Adapter) Commitment(ctx context.Context, id htlc.ID) (*htlc.Commitment, error) {
	data, err := parsedABI.Pack(methodGetContract, [32]byte(id))
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", methodGetContract, err)
	}

	out, err := a.tx.Call(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s for %s: %w", methodGetContract, id, err)
	}

	var oc onchainContract
	if err = parsedABI.UnpackIntoInterface(&oc, methodGetContract, out); err != nil {
		return nil, fmt.Errorf("%w: %s for %s: %w", htlc.ErrDecode, methodGetContract, id, err)
	}
	if oc.Sender == (common.Address{}) {
		return nil, fmt.Errorf("%w: htlc %s", htlc.ErrNotFound, id)
	}

	c := &htlc.Commitment{
		ID:                   id,
		Sender:               oc.Sender.Hex(),
		Recipient:            oc.Receiver.Hex(),
		Amount:               oc.Amount,
		Hashlock:             htlc.Hashlock(oc.Hashlock),
		Timelock:             time.Unix(oc.Timelock.Int64(), 0).UTC(),
		State:                htlc.StateLocked,
		ReceiverChainAddress: oc.ReceiverChainAddress,
	}
	if oc.ReceiverChainID != nil && oc.ReceiverChainID.IsUint64() {
		c.ReceiverChainID = oc.ReceiverChainID.Uint64()
	}

	switch {
	case oc.Withdrawn:
		c.State = htlc.StateRedeemed
		p := htlc.Secret(oc.Preimage)
		c.Preimage = &p
	case oc.Refunded:
		c.State = htlc.StateRefunded
	}

	return c, nil
}

// ObserveSecret returns the preimage stored by a redemption of id. It returns htlc.ErrNotFound
// while the commitment is still open.
func (a *Adapter) ObserveSecret(ctx context.Context, id htlc.ID, hashlock htlc.Hashlock) (htlc.Secret, error) {
	c, err := a.Commitment(ctx, id)
	if err != nil {
		return htlc.Secret{}, err
	}
	if c.State != htlc.StateRedeemed || c.Preimage == nil {
		return htlc.Secret{}, fmt.Errorf("%w: %s is %s", htlc.ErrNotFound, id, c.State)
	}
	if !hashlock.Matches(*c.Preimage) {
		return htlc.Secret{}, fmt.Errorf("%w: stored preimage of %s does not match %s", htlc.ErrDecode, id, hashlock)
	}

	return *c.Preimage, nil
}
