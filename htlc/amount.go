package htlc

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Denomination names the unit caller amounts are expressed in and its distance, in decimal
// places, from the chain's smallest native unit.
type Denomination struct {
	Name     string
	Decimals int32
}

var (
	// Wei is the smallest EVM unit.
	Wei = Denomination{Name: "wei", Decimals: 0}
	// Gwei is 1e9 wei.
	Gwei = Denomination{Name: "gwei", Decimals: 9}
	// Finney is 1e15 wei. The EVM adapter defaults to it.
	Finney = Denomination{Name: "finney", Decimals: 15}
	// Ether is 1e18 wei.
	Ether = Denomination{Name: "ether", Decimals: 18}
	// NanoTON is the smallest TON unit.
	NanoTON = Denomination{Name: "nanoton", Decimals: 0}
	// TON is 1e9 nanoton.
	TON = Denomination{Name: "ton", Decimals: 9}
)

var denominations = map[string]Denomination{
	Wei.Name:     Wei,
	Gwei.Name:    Gwei,
	Finney.Name:  Finney,
	Ether.Name:   Ether,
	NanoTON.Name: NanoTON,
	TON.Name:     TON,
}

// DenominationByName resolves a configured denomination name.
func DenominationByName(name string) (Denomination, error) {
	d, ok := denominations[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Denomination{}, fmt.Errorf("%w: unknown denomination %q", ErrInvalidArgument, name)
	}

	return d, nil
}

// ToNative converts a decimal amount in d into the native unit. Amounts that are not positive
// or carry more fractional digits than the native unit can hold are rejected rather than
// rounded.
func (d Denomination) ToNative(amount string) (*big.Int, error) {
	v, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return nil, fmt.Errorf("%w: amount %q: %w", ErrInvalidArgument, amount, err)
	}
	if !v.IsPositive() {
		return nil, fmt.Errorf("%w: amount %q must be positive", ErrInvalidArgument, amount)
	}

	native := v.Shift(d.Decimals)
	if !native.Equal(native.Truncate(0)) {
		return nil, fmt.Errorf("%w: amount %q has more precision than %s allows",
			ErrInvalidArgument, amount, d.Name)
	}

	return native.BigInt(), nil
}

// FromNative formats a native amount in d.
func (d Denomination) FromNative(v *big.Int) string {
	if v == nil {
		return "0"
	}

	return decimal.NewFromBigInt(v, -d.Decimals).String()
}
