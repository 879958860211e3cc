package htlc

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// Secret is the 32 byte preimage of a hashlock. Possession of the secret authorizes redemption
// on both legs, so it must stay undisclosed until the counter-leg is locked.
type Secret [32]byte

// Hashlock is the sha256 image of a Secret. It is fixed at lock creation and identical on both
// legs of a swap.
type Hashlock [32]byte

// NewSecret returns a uniformly random secret.
func NewSecret() (Secret, error) {
	var s Secret
	if _, err := rand.Read(s[:]); err != nil {
		return Secret{}, fmt.Errorf("failed to read random secret: %w", err)
	}

	return s, nil
}

// Hashlock returns sha256(secret).
func (s Secret) Hashlock() Hashlock {
	return Hashlock(sha256.Sum256(s[:]))
}

// IsZero reports whether the secret is unset.
func (s Secret) IsZero() bool {
	return s == Secret{}
}

// Hex returns the 0x prefixed hex encoding of the secret.
func (s Secret) Hex() string {
	return "0x" + hex.EncodeToString(s[:])
}

// BigInt returns the secret as an unsigned 256 bit integer.
func (s Secret) BigInt() *big.Int {
	return new(big.Int).SetBytes(s[:])
}

// String hides the secret so it can't leak through %v formatting.
func (s Secret) String() string {
	return "Secret(redacted)"
}

// GoString hides the secret from %#v.
func (s Secret) GoString() string {
	return s.String()
}

// Matches reports whether the secret's image equals h. The comparison is constant time.
func (h Hashlock) Matches(s Secret) bool {
	img := s.Hashlock()

	return subtle.ConstantTimeCompare(img[:], h[:]) == 1
}

// IsZero reports whether the hashlock is unset.
func (h Hashlock) IsZero() bool {
	return h == Hashlock{}
}

// Hex returns the 0x prefixed hex encoding of the hashlock.
func (h Hashlock) Hex() string {
	return "0x" + hex.EncodeToString(h[:])
}

// String implements fmt.Stringer.
func (h Hashlock) String() string {
	return h.Hex()
}

// BigInt returns the hashlock as an unsigned 256 bit integer.
func (h Hashlock) BigInt() *big.Int {
	return new(big.Int).SetBytes(h[:])
}

// MarshalText implements encoding.TextMarshaler.
func (h Hashlock) MarshalText() ([]byte, error) {
	return []byte(h.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hashlock) UnmarshalText(b []byte) error {
	v, err := ParseHashlock(string(b))
	if err != nil {
		return err
	}
	*h = v

	return nil
}

// ParseSecret parses a hex (0x prefixed or not) or decimal encoded secret.
func ParseSecret(s string) (Secret, error) {
	b, err := parseWord(s)
	if err != nil {
		return Secret{}, fmt.Errorf("%w: secret: %w", ErrInvalidArgument, err)
	}

	return Secret(b), nil
}

// ParseHashlock parses a hex (0x prefixed or not) or decimal encoded hashlock.
func ParseHashlock(s string) (Hashlock, error) {
	b, err := parseWord(s)
	if err != nil {
		return Hashlock{}, fmt.Errorf("%w: hashlock: %w", ErrInvalidArgument, err)
	}

	return Hashlock(b), nil
}

// SecretFromBigInt converts an unsigned integer of at most 256 bits into a Secret.
func SecretFromBigInt(v *big.Int) (Secret, error) {
	b, err := wordFromBigInt(v)
	if err != nil {
		return Secret{}, fmt.Errorf("%w: secret: %w", ErrInvalidArgument, err)
	}

	return Secret(b), nil
}

// HashlockFromBigInt converts an unsigned integer of at most 256 bits into a Hashlock.
func HashlockFromBigInt(v *big.Int) (Hashlock, error) {
	b, err := wordFromBigInt(v)
	if err != nil {
		return Hashlock{}, fmt.Errorf("%w: hashlock: %w", ErrInvalidArgument, err)
	}

	return Hashlock(b), nil
}

// parseWord accepts "0x" prefixed hex of up to 64 digits, or a base 10 integer. Hex input
// shorter than 32 bytes is left padded.
func parseWord(s string) ([32]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return [32]byte{}, fmt.Errorf("empty value")
	}

	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		raw := s[2:]
		if len(raw)%2 == 1 {
			raw = "0" + raw
		}
		b, err := hex.DecodeString(raw)
		if err != nil {
			return [32]byte{}, err
		}
		if len(b) > 32 {
			return [32]byte{}, fmt.Errorf("value is %d bytes, at most 32 allowed", len(b))
		}
		var out [32]byte
		copy(out[32-len(b):], b)

		return out, nil
	}

	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return [32]byte{}, fmt.Errorf("%q is neither 0x hex nor a decimal integer", s)
	}

	return wordFromBigInt(v)
}

func wordFromBigInt(v *big.Int) ([32]byte, error) {
	if v == nil {
		return [32]byte{}, fmt.Errorf("nil value")
	}
	if v.Sign() < 0 {
		return [32]byte{}, fmt.Errorf("negative value")
	}
	if v.BitLen() > 256 {
		return [32]byte{}, fmt.Errorf("value exceeds 256 bits")
	}
	var out [32]byte
	v.FillBytes(out[:])

	return out, nil
}
