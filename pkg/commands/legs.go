package commands

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/xssnick/tonutils-go/tlb"
	"golang.org/x/sync/errgroup"

	"github.com/hashlock-labs/htlc-swap/chain"
	"github.com/hashlock-labs/htlc-swap/chain/evm"
	evmadapter "github.com/hashlock-labs/htlc-swap/chain/evm/adapter"
	evmprovider "github.com/hashlock-labs/htlc-swap/chain/evm/provider"
	"github.com/hashlock-labs/htlc-swap/chain/evm/provider/rpcclient"
	"github.com/hashlock-labs/htlc-swap/chain/ton"
	tonadapter "github.com/hashlock-labs/htlc-swap/chain/ton/adapter"
	tonprovider "github.com/hashlock-labs/htlc-swap/chain/ton/provider"
	"github.com/hashlock-labs/htlc-swap/config"
	"github.com/hashlock-labs/htlc-swap/correlator"
	"github.com/hashlock-labs/htlc-swap/htlc"
	"github.com/hashlock-labs/htlc-swap/pkg/logger"
	"github.com/hashlock-labs/htlc-swap/swap"
)

// OpenLegs connects to the named chain families. Chains are dialed concurrently.
func OpenLegs(ctx context.Context, cfg *config.Config, lggr logger.Logger, families ...string) (map[string]swap.Leg, error) {
	families = slices.Compact(slices.Sorted(slices.Values(families)))

	providers := make([]chain.Provider, 0, len(families))
	for _, family := range families {
		var (
			p   chain.Provider
			err error
		)
		switch family {
		case evmadapter.Family:
			p, err = evmProvider(cfg.EVM, lggr)
		case tonadapter.Family:
			if err = cfg.TON.Validate(); err == nil {
				p, err = tonProvider(cfg.TON, lggr)
			}
		default:
			err = fmt.Errorf("%w: unknown chain %q", htlc.ErrInvalidArgument, family)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to open %s leg: %w", family, err)
		}
		providers = append(providers, p)
	}

	chains, err := initChains(ctx, providers)
	if err != nil {
		return nil, err
	}

	legs := make(map[string]swap.Leg, len(families))
	for _, family := range families {
		var leg swap.Leg
		switch family {
		case evmadapter.Family:
			leg, err = evmLeg(chains, cfg.EVM, lggr)
		case tonadapter.Family:
			leg, err = tonLeg(chains, cfg.TON, lggr)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to open %s leg: %w", family, err)
		}
		legs[family] = leg
	}

	return legs, nil
}

// initChains initializes every provider concurrently.
func initChains(ctx context.Context, providers []chain.Provider) (chain.BlockChains, error) {
	var (
		mu     sync.Mutex
		loaded = make([]chain.BlockChain, 0, len(providers))
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range providers {
		g.Go(func() error {
			c, err := p.Initialize(gctx)
			if err != nil {
				return fmt.Errorf("failed to initialize %s %d: %w", p.Name(), p.ChainSelector(), err)
			}

			mu.Lock()
			defer mu.Unlock()
			loaded = append(loaded, c)

			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return chain.BlockChains{}, err
	}

	return chain.NewBlockChainsFromSlice(loaded), nil
}

func evmProvider(cfg config.EVMConfig, lggr logger.Logger) (chain.Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.DeployerKey == "" {
		return nil, errors.New("evm.deployer_key is not set")
	}

	rpcs := make([]rpcclient.RPC, 0, len(cfg.RPCs))
	for _, r := range cfg.RPCs {
		pref, err := rpcclient.URLSchemePreferenceFromString(r.PreferredURLScheme)
		if err != nil {
			return nil, err
		}
		rpcs = append(rpcs, rpcclient.RPC{
			Name:               r.Name,
			HTTPURL:            r.HTTPURL,
			WSURL:              r.WSURL,
			PreferredURLScheme: pref,
		})
	}

	return evmprovider.NewRPCChainProvider(cfg.ChainSelector, evmprovider.RPCChainProviderConfig{
		DeployerTransactorGen: evmprovider.TransactorFromRaw(cfg.DeployerKey),
		RPCs:                  rpcs,
		ConfirmFunctor:        evmprovider.ConfirmFuncGeth(cfg.ConfirmTimeout),
		Logger:                lggr,
	}), nil
}

func evmLeg(chains chain.BlockChains, cfg config.EVMConfig, lggr logger.Logger) (swap.Leg, error) {
	c, err := chains.EVMChain(cfg.ChainSelector)
	if err != nil {
		return swap.Leg{}, err
	}
	contract, err := evm.ParseAddress(cfg.HTLCAddress)
	if err != nil {
		return swap.Leg{}, err
	}
	tr, err := evmadapter.NewChainTransactor(c, contract)
	if err != nil {
		return swap.Leg{}, err
	}
	denom, err := htlc.DenominationByName(cfg.Denomination)
	if err != nil {
		return swap.Leg{}, err
	}
	a, err := evmadapter.New(tr, evmadapter.Config{Denomination: denom, GasPolicy: cfg.GasPolicy()}, lggr)
	if err != nil {
		return swap.Leg{}, err
	}

	return swap.Leg{Adapter: a, Observer: a, Inspector: a}, nil
}

// tonProvider expects a validated cfg.
func tonProvider(cfg config.TONConfig, lggr logger.Logger) (chain.Provider, error) {
	var signer tonprovider.PrivateKeyGenerator
	switch {
	case cfg.DeployerKey != "":
		signer = tonprovider.PrivateKeyFromRaw(cfg.DeployerKey)
	case cfg.Mnemonic != "":
		var opts []tonprovider.MnemonicOption
		if cfg.MnemonicBIP39 {
			opts = append(opts, tonprovider.WithBIP39())
		}
		if cfg.MnemonicPass != "" {
			opts = append(opts, tonprovider.WithPassword(cfg.MnemonicPass))
		}
		signer = tonprovider.PrivateKeyFromMnemonic(cfg.Mnemonic, opts...)
	default:
		return nil, errors.New("neither ton.deployer_key nor ton.mnemonic is set")
	}

	value, err := tlb.FromTON(cfg.MessageValue)
	if err != nil {
		return nil, fmt.Errorf("ton.message_value: %w", err)
	}

	return tonprovider.NewRPCChainProvider(cfg.ChainSelector, tonprovider.RPCChainProviderConfig{
		LiteserverURL:     cfg.LiteserverURL,
		DeployerSignerGen: signer,
		WalletVersion:     tonprovider.WalletVersion(cfg.WalletVersion),
		NetworkGlobalID:   cfg.NetworkGlobalID,
		MessageValue:      &value,
		Logger:            lggr,
	}), nil
}

func tonLeg(chains chain.BlockChains, cfg config.TONConfig, lggr logger.Logger) (swap.Leg, error) {
	c, err := chains.TONChain(cfg.ChainSelector)
	if err != nil {
		return swap.Leg{}, err
	}
	contract, err := ton.ParseAddress(cfg.HTLCAddress)
	if err != nil {
		return swap.Leg{}, err
	}
	denom, err := htlc.DenominationByName(cfg.Denomination)
	if err != nil {
		return swap.Leg{}, err
	}
	var src correlator.TxSource
	if cfg.TxSource == config.TxSourceLiteserver {
		src = correlator.NewLiteSource(c.Client)
	} else {
		src = newTonAPISource(cfg, lggr)
	}
	corr := newCorrelator(src, cfg, contract.String(), lggr)

	// The message value comes from the chain, which the provider built from cfg.MessageValue.
	a, err := tonadapter.NewFromChain(c, tonadapter.Config{
		Contract:       contract,
		Denomination:   denom,
		PollInterval:   cfg.PollInterval,
		ConfirmTimeout: cfg.ConfirmTimeout,
		Receipts:       corr,
	}, lggr)
	if err != nil {
		return swap.Leg{}, err
	}

	return swap.Leg{Adapter: a, Resolver: corr, Observer: corr}, nil
}

// OpenEmitParser builds the TON correlator. The tonapi source needs no wallet; the liteserver
// source connects through the configured wallet.
func OpenEmitParser(ctx context.Context, cfg *config.Config, lggr logger.Logger) (EmitParser, string, error) {
	if err := cfg.TON.Validate(); err != nil {
		return nil, "", err
	}
	contract, err := ton.ParseAddress(cfg.TON.HTLCAddress)
	if err != nil {
		return nil, "", err
	}

	var src correlator.TxSource
	if cfg.TON.TxSource == config.TxSourceLiteserver {
		p, err := tonProvider(cfg.TON, lggr)
		if err != nil {
			return nil, "", err
		}
		chains, err := initChains(ctx, []chain.Provider{p})
		if err != nil {
			return nil, "", err
		}
		c, err := chains.TONChain(cfg.TON.ChainSelector)
		if err != nil {
			return nil, "", err
		}
		src = correlator.NewLiteSource(c.Client)
	} else {
		src = newTonAPISource(cfg.TON, lggr)
	}

	return newCorrelator(src, cfg.TON, contract.String(), lggr), contract.String(), nil
}

func newTonAPISource(cfg config.TONConfig, lggr logger.Logger) *correlator.TonAPISource {
	return correlator.NewTonAPISource(correlator.TonAPIConfig{
		BaseURL:  cfg.TonAPI.URL,
		Token:    cfg.TonAPI.Token,
		RetryMax: cfg.TonAPI.RetryMax,
	}, lggr)
}

func newCorrelator(src correlator.TxSource, cfg config.TONConfig, contract string, lggr logger.Logger) *correlator.Correlator {
	return correlator.New(src, correlator.Config{
		Contract: contract,
		Window:   cfg.Correlator.Window,
		Attempts: cfg.Correlator.Attempts,
		Delay:    cfg.Correlator.Delay,
	}, lggr)
}
