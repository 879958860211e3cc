package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/xssnick/tonutils-go/liteclient"
	"github.com/xssnick/tonutils-go/tlb"
	tonlib "github.com/xssnick/tonutils-go/ton"
	"github.com/xssnick/tonutils-go/ton/wallet"

	"github.com/hashlock-labs/htlc-swap/chain"
	"github.com/hashlock-labs/htlc-swap/chain/ton"
	"github.com/hashlock-labs/htlc-swap/pkg/logger"
)

type WalletVersion string

// Allowed TON wallet versions
const (
	WalletVersionV3R2    WalletVersion = "V3R2"
	WalletVersionV4R2    WalletVersion = "V4R2"
	WalletVersionV5R1    WalletVersion = "V5R1"
	WalletVersionDefault WalletVersion = ""
)

const (
	liteserverScheme = "liteserver://"

	// MainnetGlobalID is the network global id signed into V5R1 wallet messages on mainnet.
	MainnetGlobalID int32 = -239
	// TestnetGlobalID is the network global id of the public testnet.
	TestnetGlobalID int32 = -3
)

// DefaultMessageValue is attached to Redeem and Refund messages. The contract returns what it
// does not spend on fees.
var DefaultMessageValue = tlb.MustFromTON("1")

// RPCChainProviderConfig holds the configuration to initialize the RPCChainProvider.
type RPCChainProviderConfig struct {
	// Required: Either a global network config URL (e.g.
	// https://ton.org/testnet-global.config.json) or a single liteserver in the form
	// liteserver://<base64 public key>@host:port.
	LiteserverURL string
	// Required: A generator for the wallet key. Use PrivateKeyFromMnemonic for a TON mnemonic or
	// PrivateKeyFromRaw for a hex encoded key.
	DeployerSignerGen PrivateKeyGenerator
	// Optional: The TON wallet version to use. Supported versions are V3R2, V4R2 and V5R1. If no
	// value provided, V5R1 is used as default.
	WalletVersion WalletVersion
	// Optional: Network global id for V5R1 wallets. Defaults to MainnetGlobalID.
	NetworkGlobalID int32
	// Optional: Value attached to messages that carry no locked amount. Defaults to
	// DefaultMessageValue.
	MessageValue *tlb.Coins
	// Optional: Attempts made to reach the liteserver before giving up. Defaults to 10.
	ConnectAttempts uint
	// Optional: Logger is the logger to use for the RPCChainProvider.
	Logger logger.Logger
}

// validate checks if the RPCChainProviderConfig is valid.
func (c RPCChainProviderConfig) validate() error {
	if err := validateLiteserverURL(c.LiteserverURL); err != nil {
		return err
	}
	if c.DeployerSignerGen == nil {
		return errors.New("deployer signer generator is required")
	}
	if _, err := getWalletVersionConfig(c.WalletVersion, c.NetworkGlobalID); err != nil {
		return err
	}

	return nil
}

var _ chain.Provider = (*RPCChainProvider)(nil)

// RPCChainProvider is a chain provider that provides a chain that connects to a TON liteserver.
type RPCChainProvider struct {
	// Ton chain selector, used to identify the chain.
	selector uint64

	// RPCChainProviderConfig holds the configuration for the RPCChainProvider.
	config RPCChainProviderConfig

	// chain is the Ton chain instance that this provider manages. The Initialize method
	// sets up the chain.
	chain *ton.Chain
}

func NewRPCChainProvider(selector uint64, config RPCChainProviderConfig) *RPCChainProvider {
	return &RPCChainProvider{
		selector: selector,
		config:   config,
	}
}

// Initialize connects to the liteserver, pins the latest masterchain block as the trusted
// block and opens the signing wallet.
func (p *RPCChainProvider) Initialize(ctx context.Context) (chain.BlockChain, error) {
	if p.chain != nil {
		return *p.chain, nil // Already initialized
	}

	if err := p.config.validate(); err != nil {
		return nil, fmt.Errorf("failed to validate provider config: %w", err)
	}
	lggr := p.config.Logger
	if lggr == nil {
		lggr = logger.Nop()
	}

	pool := liteclient.NewConnectionPool()
	if strings.HasPrefix(p.config.LiteserverURL, liteserverScheme) {
		serverKey, hostPort := splitLiteserverURL(p.config.LiteserverURL)
		if err := pool.AddConnection(ctx, hostPort, serverKey); err != nil {
			return nil, fmt.Errorf("failed to connect to liteserver %s: %w", hostPort, err)
		}
	} else if err := pool.AddConnectionsFromConfigUrl(ctx, p.config.LiteserverURL); err != nil {
		return nil, fmt.Errorf("failed to retrieve ton network config: %w", err)
	}

	api := tonlib.NewAPIClient(pool, tonlib.ProofCheckPolicySecure)

	attempts := p.config.ConnectAttempts
	if attempts == 0 {
		attempts = 10
	}
	mb, err := getMasterchainBlockID(ctx, api, attempts)
	if err != nil {
		return nil, err
	}
	api.SetTrustedBlock(mb)

	privateKey, err := p.config.DeployerSignerGen.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key: %w", err)
	}

	// (No need to validate that the version is supported, already done by p.config.validate)
	walletConfig, _ := getWalletVersionConfig(p.config.WalletVersion, p.config.NetworkGlobalID)
	tonWallet, err := wallet.FromPrivateKeyWithOptions(api, privateKey, walletConfig, wallet.WithWorkchain(0))
	if err != nil {
		return nil, fmt.Errorf("failed to init TON wallet: %w", err)
	}

	value := DefaultMessageValue
	if p.config.MessageValue != nil {
		value = *p.config.MessageValue
	}

	p.chain = &ton.Chain{
		ChainMetadata: ton.ChainMetadata{
			Selector: p.selector,
		},
		Client:        api,
		Wallet:        tonWallet,
		WalletAddress: tonWallet.WalletAddress(),
		URL:           p.config.LiteserverURL,
		Amount:        value,
	}
	lggr.Infow("Connected to TON",
		"selector", p.selector,
		"wallet", tonWallet.WalletAddress().String(),
		"masterchainSeqno", mb.SeqNo,
	)

	return *p.chain, nil
}

// validateLiteserverURL accepts an http(s) global config URL or liteserver://publickey@host:port.
func validateLiteserverURL(url string) error {
	if url == "" {
		return errors.New("liteserver url is required")
	}
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return nil
	}
	if !strings.HasPrefix(url, liteserverScheme) {
		return errors.New("invalid liteserver URL format: expected liteserver:// prefix or a config URL")
	}

	parts := strings.Split(strings.TrimPrefix(url, liteserverScheme), "@")
	if len(parts) != 2 {
		return errors.New("invalid liteserver URL format: expected publickey@host:port")
	}
	if parts[0] == "" {
		return errors.New("invalid liteserver URL format: public key cannot be empty")
	}
	if parts[1] == "" {
		return errors.New("invalid liteserver URL format: host:port cannot be empty")
	}

	return nil
}

// splitLiteserverURL returns the public key and host:port of a validated liteserver URL.
func splitLiteserverURL(url string) (serverKey, hostPort string) {
	serverKey, hostPort, _ = strings.Cut(strings.TrimPrefix(url, liteserverScheme), "@")

	return serverKey, hostPort
}

func getMasterchainBlockID(ctx context.Context, client tonlib.APIClientWrapped, attempts uint) (*tonlib.BlockIDExt, error) {
	var masterchainBlockID *tonlib.BlockIDExt
	err := retry.Do(func() error {
		var err error
		masterchainBlockID, err = client.GetMasterchainInfo(ctx)

		return err
	},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(1*time.Second),
		retry.DelayType(retry.FixedDelay),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get masterchain info: %w", err)
	}

	return masterchainBlockID, nil
}

// getWalletVersionConfig returns the wallet version. V5R1 is the default if version is empty.
func getWalletVersionConfig(version WalletVersion, globalID int32) (wallet.VersionConfig, error) {
	if globalID == 0 {
		globalID = MainnetGlobalID
	}

	switch version {
	case WalletVersionV3R2:
		return wallet.V3R2, nil
	case WalletVersionV4R2:
		return wallet.V4R2, nil
	case WalletVersionV5R1, WalletVersionDefault:
		return wallet.ConfigV5R1Beta{NetworkGlobalID: globalID, Workchain: 0}, nil
	default:
		return nil, fmt.Errorf("unsupported wallet version: %s", version)
	}
}

// Name returns the name of the RPCChainProvider.
func (*RPCChainProvider) Name() string {
	return "TON RPC Chain Provider"
}

// ChainSelector returns the chain selector of the TON chain managed by this provider.
func (p *RPCChainProvider) ChainSelector() uint64 {
	return p.selector
}

// BlockChain returns the TON chain instance managed by this provider. You must call Initialize
// before using this method to ensure the chain is properly set up.
func (p *RPCChainProvider) BlockChain() chain.BlockChain {
	return *p.chain
}
