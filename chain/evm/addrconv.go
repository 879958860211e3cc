package evm

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/hashlock-labs/htlc-swap/htlc"
)

// ParseAddress parses a hex account or contract address, with or without the 0x prefix.
func ParseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: invalid EVM address %q", htlc.ErrInvalidArgument, s)
	}

	return common.HexToAddress(s), nil
}

// SameAccount reports whether a and b name the same address regardless of checksum casing.
func SameAccount(a, b string) bool {
	x, err := ParseAddress(a)
	if err != nil {
		return false
	}
	y, err := ParseAddress(b)
	if err != nil {
		return false
	}

	return x == y
}
