package adapter

import (
	"fmt"

	"github.com/xssnick/tonutils-go/tvm/cell"

	"github.com/hashlock-labs/htlc-swap/htlc"
)

// Opcodes of the HashedTimeLockTON messages.
const (
	OpLockCommitment uint64 = 0x4b2a1c7e
	OpRedeem         uint64 = 0x1e2f3a4b
	OpRefund         uint64 = 0x5c6d7e8f
	// OpCommitEmitted tags the external out message carrying a new commitment id.
	OpCommitEmitted uint64 = 0x2eec4b61
)

// intBits is the width of a Tact Int.
const intBits = 257

// LockCommitmentBody encodes LockCommitment{commitId, hashlock}. The contract applies its own
// lock period; the message carries no expiry.
func LockCommitmentBody(commitID htlc.ID, hashlock htlc.Hashlock) *cell.Cell {
	return cell.BeginCell().
		MustStoreUInt(OpLockCommitment, 32).
		MustStoreBigInt(commitID.BigInt(), intBits).
		MustStoreBigInt(hashlock.BigInt(), intBits).
		EndCell()
}

// RedeemBody encodes Redeem{lockId, secret}.
func RedeemBody(lockID htlc.ID, secret htlc.Secret) *cell.Cell {
	return cell.BeginCell().
		MustStoreUInt(OpRedeem, 32).
		MustStoreBigInt(lockID.BigInt(), intBits).
		MustStoreBigInt(secret.BigInt(), intBits).
		EndCell()
}

// RefundBody encodes Refund{lockId}.
func RefundBody(lockID htlc.ID) *cell.Cell {
	return cell.BeginCell().
		MustStoreUInt(OpRefund, 32).
		MustStoreBigInt(lockID.BigInt(), intBits).
		EndCell()
}

// CommitEmittedBody encodes the payload the contract emits once a commitment is stored.
func CommitEmittedBody(commitID htlc.ID) *cell.Cell {
	return cell.BeginCell().
		MustStoreUInt(OpCommitEmitted, 32).
		MustStoreBigInt(commitID.BigInt(), intBits).
		EndCell()
}

// Opcode returns the leading 32 bit opcode of a message body.
func Opcode(body *cell.Cell) (uint64, error) {
	if body == nil {
		return 0, fmt.Errorf("%w: empty body", htlc.ErrDecode)
	}
	op, err := body.BeginParse().LoadUInt(32)
	if err != nil {
		return 0, fmt.Errorf("%w: opcode: %w", htlc.ErrDecode, err)
	}

	return op, nil
}

// DecodeCommitEmitted reads the commitment id from an emitted payload.
func DecodeCommitEmitted(body *cell.Cell) (htlc.ID, error) {
	s, err := expectOp(body, OpCommitEmitted)
	if err != nil {
		return htlc.ID{}, err
	}

	return loadID(s, "commitId")
}

// DecodeRedeem reads the lock id and secret of a Redeem body.
func DecodeRedeem(body *cell.Cell) (htlc.ID, htlc.Secret, error) {
	s, err := expectOp(body, OpRedeem)
	if err != nil {
		return htlc.ID{}, htlc.Secret{}, err
	}
	id, err := loadID(s, "lockId")
	if err != nil {
		return htlc.ID{}, htlc.Secret{}, err
	}
	v, err := s.LoadBigInt(intBits)
	if err != nil {
		return htlc.ID{}, htlc.Secret{}, fmt.Errorf("%w: secret: %w", htlc.ErrDecode, err)
	}
	secret, err := htlc.SecretFromBigInt(v)
	if err != nil {
		return htlc.ID{}, htlc.Secret{}, fmt.Errorf("%w: %w", htlc.ErrDecode, err)
	}

	return id, secret, nil
}

func expectOp(body *cell.Cell, want uint64) (*cell.Slice, error) {
	if body == nil {
		return nil, fmt.Errorf("%w: empty body", htlc.ErrDecode)
	}
	s := body.BeginParse()
	op, err := s.LoadUInt(32)
	if err != nil {
		return nil, fmt.Errorf("%w: opcode: %w", htlc.ErrDecode, err)
	}
	if op != want {
		return nil, fmt.Errorf("%w: opcode 0x%08x, want 0x%08x", htlc.ErrDecode, op, want)
	}

	return s, nil
}

func loadID(s *cell.Slice, field string) (htlc.ID, error) {
	v, err := s.LoadBigInt(intBits)
	if err != nil {
		return htlc.ID{}, fmt.Errorf("%w: %s: %w", htlc.ErrDecode, field, err)
	}
	id, err := htlc.IDFromBigInt(v)
	if err != nil {
		return htlc.ID{}, fmt.Errorf("%w: %s: %w", htlc.ErrDecode, field, err)
	}

	return id, nil
}
