package ton

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/xssnick/tonutils-go/address"
)

// ParseAddress accepts a user-friendly (base64) address or a raw "workchain:hex" address.
func ParseAddress(s string) (*address.Address, error) {
	s = strings.TrimSpace(s)
	var (
		addr *address.Address
		err  error
	)
	if strings.Contains(s, ":") {
		addr, err = address.ParseRawAddr(s)
	} else {
		addr, err = address.ParseAddr(s)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid TON address format: %s, error: %w", s, err)
	}

	return addr, nil
}

// AddressToBytes converts a TON address string to its 32 byte account id.
func AddressToBytes(addressStr string) ([]byte, error) {
	addr, err := ParseAddress(addressStr)
	if err != nil {
		return nil, err
	}

	return addr.Data(), nil
}

// RawAddress formats addr as "workchain:hex". EVM locks carry TON recipients in this form.
func RawAddress(addr *address.Address) string {
	return fmt.Sprintf("%d:%s", addr.Workchain(), hex.EncodeToString(addr.Data()))
}

// SameAccount reports whether a and b name the same account regardless of their encoding.
func SameAccount(a, b string) bool {
	pa, err := ParseAddress(a)
	if err != nil {
		return false
	}
	pb, err := ParseAddress(b)
	if err != nil {
		return false
	}

	return RawAddress(pa) == RawAddress(pb)
}
