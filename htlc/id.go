package htlc

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// ID is the chain-scoped identifier of a lock instance (contractId on EVM, commitId/lockId on
// TON). Both chains carry it as an unsigned 256 bit value.
type ID [32]byte

// IsZero reports whether the identifier is unset, which is the case for chains that do not
// return it synchronously from the lock call.
func (id ID) IsZero() bool {
	return id == ID{}
}

// Hex returns the 0x prefixed hex encoding of the identifier.
func (id ID) Hex() string {
	return "0x" + hex.EncodeToString(id[:])
}

// String implements fmt.Stringer.
func (id ID) String() string {
	return id.Hex()
}

// BigInt returns the identifier as an unsigned integer.
func (id ID) BigInt() *big.Int {
	return new(big.Int).SetBytes(id[:])
}

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(b []byte) error {
	parsed, err := ParseID(string(b))
	if err != nil {
		return err
	}
	*id = parsed

	return nil
}

// ParseID parses a hex (0x prefixed) or decimal encoded identifier.
func ParseID(s string) (ID, error) {
	b, err := parseWord(s)
	if err != nil {
		return ID{}, fmt.Errorf("%w: id: %w", ErrInvalidArgument, err)
	}

	return ID(b), nil
}

// IDFromBigInt converts an unsigned integer of at most 256 bits into an ID.
func IDFromBigInt(v *big.Int) (ID, error) {
	b, err := wordFromBigInt(v)
	if err != nil {
		return ID{}, fmt.Errorf("%w: id: %w", ErrInvalidArgument, err)
	}

	return ID(b), nil
}

// Route binds a lock on one chain to its intended counterpart on the other.
type Route struct {
	Sender               string `json:"sender" toml:"sender"`
	Recipient            string `json:"recipient" toml:"recipient"`
	ReceiverChainID      uint64 `json:"receiverChainId" toml:"receiver_chain_id"`
	ReceiverChainAddress string `json:"receiverChainAddress" toml:"receiver_chain_address"`
}

// DeriveID returns the deterministic identifier for a lock: sha256 over the hashlock, the
// lowercased routing addresses, the receiver chain and the timelock in unix seconds. Two
// parties that agree on these values derive the same identifier without a round trip.
func DeriveID(hashlock Hashlock, route Route, timelock time.Time) ID {
	h := sha256.New()
	h.Write(hashlock[:])
	writeField(h, strings.ToLower(route.Sender))
	writeField(h, strings.ToLower(route.Recipient))
	writeField(h, strings.ToLower(route.ReceiverChainAddress))

	var num [8]byte
	binary.BigEndian.PutUint64(num[:], route.ReceiverChainID)
	h.Write(num[:])
	binary.BigEndian.PutUint64(num[:], uint64(timelock.Unix()))
	h.Write(num[:])

	var id ID
	copy(id[:], h.Sum(nil))

	return id
}

// writeField length-prefixes s so concatenated fields can't collide.
func writeField(h interface{ Write([]byte) (int, error) }, s string) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(s)))
	_, _ = h.Write(n[:])
	_, _ = h.Write([]byte(s))
}
