package provider

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/crypto"
)

// TransactorGenerator is an interface for generating geth's *bind.TransactOpts instances. These
// instances sign every HTLC call.
type TransactorGenerator interface {
	Generate(chainID *big.Int) (*bind.TransactOpts, error)
}

var (
	_ TransactorGenerator = (*transactorFromRaw)(nil)
	_ TransactorGenerator = (*transactorRandom)(nil)
)

// TransactorFromRaw returns a generator which creates a transactor from a hex encoded private
// key. A leading 0x is accepted.
func TransactorFromRaw(privKey string) TransactorGenerator {
	return &transactorFromRaw{
		privKey: privKey,
	}
}

type transactorFromRaw struct {
	privKey string
}

// Generate parses the hex encoded private key and returns the bind transactor options.
func (g *transactorFromRaw) Generate(chainID *big.Int) (*bind.TransactOpts, error) {
	privKey, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(g.privKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to convert private key to ECDSA: %w", err)
	}

	return newTransactor(privKey, chainID)
}

// TransactorRandom returns a generator which creates a transactor with a random private key.
func TransactorRandom() TransactorGenerator {
	return &transactorRandom{}
}

type transactorRandom struct{}

// Generate generates a random key and returns the bind transactor options.
func (g *transactorRandom) Generate(chainID *big.Int) (*bind.TransactOpts, error) {
	privKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate random private key: %w", err)
	}

	return newTransactor(privKey, chainID)
}

func newTransactor(key *ecdsa.PrivateKey, chainID *big.Int) (*bind.TransactOpts, error) {
	transactor, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, err
	}

	return transactor, nil
}
