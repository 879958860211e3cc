package chain

import "context"

// Provider is an interface for blockchain providers that can initialize a blockchain instance.
type Provider interface {
	Initialize(ctx context.Context) (BlockChain, error)
	Name() string
	ChainSelector() uint64
	BlockChain() BlockChain
}

// ChainLoader is an interface for loading a blockchain instance lazily.
type ChainLoader interface {
	Load(ctx context.Context, selector uint64) (BlockChain, error)
}

// LoaderFunc adapts a function to ChainLoader.
type LoaderFunc func(ctx context.Context, selector uint64) (BlockChain, error)

// Load implements ChainLoader.
func (f LoaderFunc) Load(ctx context.Context, selector uint64) (BlockChain, error) {
	return f(ctx, selector)
}

// ProviderLoader returns a ChainLoader that initializes the provider registered for the
// requested selector.
func ProviderLoader(providers ...Provider) ChainLoader {
	bySel := make(map[uint64]Provider, len(providers))
	for _, p := range providers {
		bySel[p.ChainSelector()] = p
	}

	return LoaderFunc(func(ctx context.Context, selector uint64) (BlockChain, error) {
		p, ok := bySel[selector]
		if !ok {
			return nil, ErrBlockChainNotFound
		}

		return p.Initialize(ctx)
	})
}
