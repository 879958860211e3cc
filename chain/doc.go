/*
Package chain provides the blockchain abstraction shared by the EVM and TON legs of a swap.

# BlockChain Interface

Every chain value satisfies BlockChain:

	type BlockChain interface {
		String() string         // "<name> (<selector>)"
		Name() string           // chain name
		ChainSelector() uint64  // unique chain identifier
		Family() string         // "evm" or "ton"
	}

# BlockChains Collection

A BlockChains holds chains keyed by selector. Eager collections are built from values that are
already connected:

	chains := chain.NewBlockChainsFromSlice([]chain.BlockChain{evmChain, tonChain})
	c, err := chains.EVMChain(evmChain.Selector)

Lazy collections defer dialing until a chain is first accessed, so a command that only touches
the TON leg never opens an EVM RPC connection:

	chains := chain.NewLazyBlockChains(ctx,
		map[uint64]string{sepolia: "evm", tonTestnet: "ton"},
		map[string]chain.ChainLoader{
			"evm": chain.ProviderLoader(evmProvider),
			"ton": chain.ProviderLoader(tonProvider),
		},
		lggr,
	)

# Providers

A Provider turns configuration into a connected BlockChain. Initialize is idempotent.
*/
package chain
