package common //nolint:revive // var-naming: This is an internal package for common code that is shared between chains.

import (
	"fmt"
	"math/big"
	"strconv"

	chainsel "github.com/smartcontractkit/chain-selectors"
)

// ChainMetadata provides metadata about a chain identified by its selector.
type ChainMetadata struct {
	Selector uint64
}

// ChainInfo returns the chain details registered for the selector.
func ChainInfo(selector uint64) (chainsel.ChainDetails, error) {
	id, err := chainsel.GetChainIDFromSelector(selector)
	if err != nil {
		return chainsel.ChainDetails{}, err
	}
	family, err := chainsel.GetSelectorFamily(selector)
	if err != nil {
		return chainsel.ChainDetails{}, err
	}

	return chainsel.GetChainDetailsByChainIDAndFamily(id, family)
}

// ChainSelector returns the chain selector of the chain
func (c ChainMetadata) ChainSelector() uint64 {
	return c.Selector
}

// String returns chain name and selector "<name> (<selector>)"
func (c ChainMetadata) String() string {
	info, err := ChainInfo(c.Selector)
	if err != nil {
		return strconv.FormatUint(c.Selector, 10)
	}

	return fmt.Sprintf("%s (%d)", info.ChainName, info.ChainSelector)
}

// Name returns the name of the chain
func (c ChainMetadata) Name() string {
	info, err := ChainInfo(c.Selector)
	if err != nil || info.ChainName == "" {
		return strconv.FormatUint(c.Selector, 10)
	}

	return info.ChainName
}

// Family returns the family of the chain
func (c ChainMetadata) Family() string {
	family, err := chainsel.GetSelectorFamily(c.Selector)
	if err != nil {
		return ""
	}

	return family
}

// ChainID returns the numeric chain ID. TON selectors map to the global network ID (-239 for
// mainnet, -3 for testnet), EVM selectors to the EIP-155 chain ID.
func (c ChainMetadata) ChainID() (*big.Int, error) {
	raw, err := chainsel.GetChainIDFromSelector(c.Selector)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID from selector %d: %w", c.Selector, err)
	}
	id, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("failed to convert chain ID %s to big.Int", raw)
	}

	return id, nil
}

// NetworkType returns the type of network the chain represents.
func (c ChainMetadata) NetworkType() (chainsel.NetworkType, error) {
	return chainsel.GetNetworkType(c.Selector)
}

// IsNetworkType checks if the chain is on the given network type
func (c ChainMetadata) IsNetworkType(networkType chainsel.NetworkType) bool {
	t, err := c.NetworkType()
	if err != nil {
		return false
	}

	return t == networkType
}
