package chain

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"maps"
	"slices"
	"sync"

	"github.com/hashlock-labs/htlc-swap/chain/evm"
	"github.com/hashlock-labs/htlc-swap/chain/ton"
	"github.com/hashlock-labs/htlc-swap/pkg/logger"
)

var ErrBlockChainNotFound = errors.New("blockchain not found")

var _ BlockChain = evm.Chain{}
var _ BlockChain = ton.Chain{}

// BlockChain is an interface that represents a chain.
type BlockChain interface {
	// String returns chain name and selector "<name> (<selector>)"
	String() string
	// Name returns the name of the chain
	Name() string
	ChainSelector() uint64
	Family() string
}

// BlockChains is a collection of chains keyed by selector. It either holds pre-loaded chains or
// loads them on first access through per-family loaders, so a command touching one leg of a
// swap never dials the other chain.
type BlockChains struct {
	chains map[uint64]BlockChain

	lazy *lazyState
}

type lazyState struct {
	mu        sync.Mutex
	loaded    map[uint64]BlockChain
	loaders   map[string]ChainLoader // keyed by chain family
	supported map[uint64]string      // selector -> family
	ctx       context.Context        //nolint:containedctx // Context is needed for lazy loading operations
	lggr      logger.Logger
}

// NewBlockChains returns an eager collection. The input map is copied.
func NewBlockChains(chains map[uint64]BlockChain) BlockChains {
	out := make(map[uint64]BlockChain, len(chains))
	maps.Copy(out, chains)

	return BlockChains{chains: out}
}

// NewBlockChainsFromSlice returns an eager collection keyed by each chain's selector.
func NewBlockChainsFromSlice(chains []BlockChain) BlockChains {
	m := make(map[uint64]BlockChain, len(chains))
	for _, c := range chains {
		m[c.ChainSelector()] = c
	}

	return BlockChains{chains: m}
}

// NewLazyBlockChains returns a collection that defers loading until a chain is first accessed.
// supported maps selectors to their family, loaders provides the ChainLoader for each family.
func NewLazyBlockChains(
	ctx context.Context,
	supported map[uint64]string,
	loaders map[string]ChainLoader,
	lggr logger.Logger,
) BlockChains {
	return BlockChains{
		lazy: &lazyState{
			loaded:    make(map[uint64]BlockChain),
			loaders:   loaders,
			supported: supported,
			ctx:       ctx,
			lggr:      lggr,
		},
	}
}

// GetBySelector returns a blockchain by its selector, loading it first in lazy mode.
func (b BlockChains) GetBySelector(selector uint64) (BlockChain, error) {
	if b.lazy == nil {
		if c, ok := b.chains[selector]; ok {
			return c, nil
		}

		return nil, ErrBlockChainNotFound
	}

	l := b.lazy
	l.mu.Lock()
	defer l.mu.Unlock()

	if c, ok := l.loaded[selector]; ok {
		return c, nil
	}
	family, ok := l.supported[selector]
	if !ok {
		return nil, ErrBlockChainNotFound
	}
	loader, ok := l.loaders[family]
	if !ok {
		return nil, fmt.Errorf("%w: no loader for family %q", ErrBlockChainNotFound, family)
	}

	l.lggr.Debugw("Loading chain", "selector", selector, "family", family)
	c, err := loader.Load(l.ctx, selector)
	if err != nil {
		return nil, fmt.Errorf("failed to load chain %d: %w", selector, err)
	}
	l.loaded[selector] = c

	return c, nil
}

// Exists checks if a chain with the given selector exists (not necessarily loaded).
func (b BlockChains) Exists(selector uint64) bool {
	if b.lazy != nil {
		_, ok := b.lazy.supported[selector]
		return ok
	}
	_, ok := b.chains[selector]

	return ok
}

// ListChainSelectors returns all known selectors in ascending order.
func (b BlockChains) ListChainSelectors() []uint64 {
	if b.lazy != nil {
		return slices.Sorted(maps.Keys(b.lazy.supported))
	}

	return slices.Sorted(maps.Keys(b.chains))
}

// All iterates over all chains in selector order. In lazy mode chains that fail to load are
// logged and skipped.
func (b BlockChains) All() iter.Seq2[uint64, BlockChain] {
	return func(yield func(uint64, BlockChain) bool) {
		for _, sel := range b.ListChainSelectors() {
			c, err := b.GetBySelector(sel)
			if err != nil {
				if b.lazy != nil {
					b.lazy.lggr.Errorw("Failed to load chain during iteration", "selector", sel, "error", err)
				}

				continue
			}
			if !yield(sel, c) {
				return
			}
		}
	}
}

// EVMChain returns the EVM chain with the given selector.
func (b BlockChains) EVMChain(selector uint64) (evm.Chain, error) {
	return chainAs[evm.Chain](b, selector)
}

// TONChain returns the TON chain with the given selector.
func (b BlockChains) TONChain(selector uint64) (ton.Chain, error) {
	return chainAs[ton.Chain](b, selector)
}

func chainAs[T BlockChain](b BlockChains, selector uint64) (T, error) {
	var zero T
	c, err := b.GetBySelector(selector)
	if err != nil {
		return zero, err
	}
	v, ok := c.(T)
	if !ok {
		return zero, fmt.Errorf("chain %d is a %s chain, not %T", selector, c.Family(), zero)
	}

	return v, nil
}
