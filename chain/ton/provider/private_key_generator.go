package provider

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/cosmos/go-bip39"
	"github.com/xssnick/tonutils-go/ton/wallet"
)

// PrivateKeyGenerator is an interface for generating Ton keypairs.
type PrivateKeyGenerator interface {
	Generate() (ed25519.PrivateKey, error)
}

var (
	_ PrivateKeyGenerator = (*privateKeyFromRaw)(nil)
	_ PrivateKeyGenerator = (*privateKeyRandom)(nil)
	_ PrivateKeyGenerator = (*privateKeyFromMnemonic)(nil)
)

// PrivateKeyFromRaw creates a new instance of the privateKeyFromRaw generator with the raw private
// key.
func PrivateKeyFromRaw(privateKey string) *privateKeyFromRaw {
	return &privateKeyFromRaw{
		privateKey: privateKey,
	}
}

type privateKeyFromRaw struct {
	// privateKey is the hex encoded 64 byte ed25519 key, 0x prefix optional.
	privateKey string
}

func (g *privateKeyFromRaw) Generate() (ed25519.PrivateKey, error) {
	privateKeyBytes, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(g.privateKey), "0x"))
	if err != nil {
		return ed25519.PrivateKey{}, fmt.Errorf("failed to parse private key: %w", err)
	}

	if len(privateKeyBytes) != ed25519.PrivateKeySize {
		return ed25519.PrivateKey{}, fmt.Errorf("invalid key len: %d, must be %d", len(privateKeyBytes), ed25519.PrivateKeySize)
	}

	return ed25519.PrivateKey(privateKeyBytes), nil
}

// PrivateKeyRandom generates a fresh wallet key on every call. Useful for dry runs.
func PrivateKeyRandom() *privateKeyRandom {
	return &privateKeyRandom{}
}

type privateKeyRandom struct{}

func (g *privateKeyRandom) Generate() (ed25519.PrivateKey, error) {
	seed := wallet.NewSeed()
	privateKey, err := wallet.SeedToPrivateKey(seed /*password=*/, "" /*isBIP39=*/, false)
	if err != nil {
		return ed25519.PrivateKey{}, fmt.Errorf("failed to generate random private key: %w", err)
	}

	return privateKey, nil
}

// MnemonicOption configures PrivateKeyFromMnemonic.
type MnemonicOption func(*privateKeyFromMnemonic)

// WithBIP39 treats the words as a BIP39 mnemonic, as exported by some third party wallets. The
// phrase checksum is verified before the key is derived.
func WithBIP39() MnemonicOption {
	return func(g *privateKeyFromMnemonic) {
		g.bip39 = true
	}
}

// WithPassword sets the mnemonic password.
func WithPassword(password string) MnemonicOption {
	return func(g *privateKeyFromMnemonic) {
		g.password = password
	}
}

// PrivateKeyFromMnemonic derives the wallet key from a space separated 24 word TON mnemonic.
func PrivateKeyFromMnemonic(mnemonic string, opts ...MnemonicOption) *privateKeyFromMnemonic {
	g := &privateKeyFromMnemonic{mnemonic: mnemonic}
	for _, opt := range opts {
		opt(g)
	}

	return g
}

type privateKeyFromMnemonic struct {
	mnemonic string
	password string
	bip39    bool
}

func (g *privateKeyFromMnemonic) Generate() (ed25519.PrivateKey, error) {
	words := strings.Fields(g.mnemonic)
	if len(words) == 0 {
		return ed25519.PrivateKey{}, errors.New("mnemonic is empty")
	}
	if g.bip39 && !bip39.IsMnemonicValid(strings.Join(words, " ")) {
		return ed25519.PrivateKey{}, errors.New("mnemonic is not a valid BIP39 phrase")
	}

	key, err := wallet.SeedToPrivateKey(words, g.password, g.bip39)
	if err != nil {
		return ed25519.PrivateKey{}, fmt.Errorf("failed to derive private key from mnemonic: %w", err)
	}

	return key, nil
}
