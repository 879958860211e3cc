// Package htlc holds the chain-independent model of a hashed timelock swap: how a commitment
// is identified, how possession of a secret authorizes redemption, the per-commitment state
// machine, and the capability interface every chain adapter implements.
//
// A swap leg moves through Created -> Locked -> {Redeemed | Refunded}. Redemption requires a
// secret whose sha256 image equals the stored hashlock; refund requires the chain time to have
// reached the timelock. Neither terminal state can be left.
//
// Chain adapters live in chain/evm/htlc and chain/ton/htlc. They share the gas policy
// ([GasPolicy]), the denomination handling ([Denomination]) and the error taxonomy defined
// here, so callers can classify failures with errors.Is regardless of the chain involved.
package htlc
