// Package config loads the htlcswap configuration from a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/cosmos/go-bip39"
	chain_selectors "github.com/smartcontractkit/chain-selectors"
	"github.com/spf13/viper"

	"github.com/hashlock-labs/htlc-swap/htlc"
)

// RPCConfig is one EVM node endpoint.
type RPCConfig struct {
	Name               string `mapstructure:"name" yaml:"name"`
	HTTPURL            string `mapstructure:"http_url" yaml:"http_url"`
	WSURL              string `mapstructure:"ws_url" yaml:"ws_url,omitempty"`
	PreferredURLScheme string `mapstructure:"preferred_url_scheme" yaml:"preferred_url_scheme,omitempty"` // "http" or "ws"
}

// GasConfig scales gas estimates by a percentage.
type GasConfig struct {
	SinglePercent uint64 `mapstructure:"single_percent" yaml:"single_percent"`
	BatchPercent  uint64 `mapstructure:"batch_percent" yaml:"batch_percent"`
}

// EVMConfig is the configuration for the EVM leg.
//
// WARNING: This data type contains sensitive fields and should not be logged or set in file
// configuration.
type EVMConfig struct {
	ChainSelector  uint64        `mapstructure:"chain_selector" yaml:"chain_selector"`
	RPCs           []RPCConfig   `mapstructure:"rpcs" yaml:"rpcs"`
	HTLCAddress    string        `mapstructure:"htlc_address" yaml:"htlc_address"`       // HashedTimelockEther contract
	DeployerKey    string        `mapstructure:"deployer_key" yaml:"deployer_key"`       // Secret: The hex private key of the signing account.
	Denomination   string        `mapstructure:"denomination" yaml:"denomination"`       // Unit of plan amounts, e.g. finney or ether
	Gas            GasConfig     `mapstructure:"gas" yaml:"gas"`                         // Estimate scaling
	ConfirmTimeout time.Duration `mapstructure:"confirm_timeout" yaml:"confirm_timeout"` // Receipt wait bound
}

// TonAPIConfig is the tonapi REST index used to correlate TON transactions.
//
// WARNING: This data type contains sensitive fields and should not be logged or set in file
// configuration.
type TonAPIConfig struct {
	URL      string `mapstructure:"url" yaml:"url"`
	Token    string `mapstructure:"token" yaml:"token"` // Secret: tonapi bearer token
	RetryMax int    `mapstructure:"retry_max" yaml:"retry_max"`
}

// CorrelatorConfig bounds the search for emitted lock ids.
type CorrelatorConfig struct {
	Window   int           `mapstructure:"window" yaml:"window"`
	Attempts uint          `mapstructure:"attempts" yaml:"attempts"`
	Delay    time.Duration `mapstructure:"delay" yaml:"delay"`
}

// TONConfig is the configuration for the TON leg.
//
// WARNING: This data type contains sensitive fields and should not be logged or set in file
// configuration.
type TONConfig struct {
	ChainSelector   uint64           `mapstructure:"chain_selector" yaml:"chain_selector"`
	LiteserverURL   string           `mapstructure:"liteserver_url" yaml:"liteserver_url"`       // Global config URL or liteserver://key@host:port
	HTLCAddress     string           `mapstructure:"htlc_address" yaml:"htlc_address"`           // HashedTimeLockTON contract
	DeployerKey     string           `mapstructure:"deployer_key" yaml:"deployer_key"`           // Secret: hex ed25519 private key. Takes precedence over the mnemonic.
	Mnemonic        string           `mapstructure:"mnemonic" yaml:"mnemonic"`                   // Secret: wallet mnemonic
	MnemonicBIP39   bool             `mapstructure:"mnemonic_bip39" yaml:"mnemonic_bip39"`       // The mnemonic is a BIP39 phrase rather than a TON one
	MnemonicPass    string           `mapstructure:"mnemonic_password" yaml:"mnemonic_password"` // Secret: optional mnemonic password
	WalletVersion   string           `mapstructure:"wallet_version" yaml:"wallet_version"`
	NetworkGlobalID int32            `mapstructure:"network_global_id" yaml:"network_global_id"`
	MessageValue    string           `mapstructure:"message_value" yaml:"message_value"` // TON attached to redeem and refund messages
	Denomination    string           `mapstructure:"denomination" yaml:"denomination"`
	ConfirmTimeout  time.Duration    `mapstructure:"confirm_timeout" yaml:"confirm_timeout"`
	PollInterval    time.Duration    `mapstructure:"poll_interval" yaml:"poll_interval"`
	TxSource        string           `mapstructure:"tx_source" yaml:"tx_source"` // "tonapi" or "liteserver"
	TonAPI          TonAPIConfig     `mapstructure:"tonapi" yaml:"tonapi"`
	Correlator      CorrelatorConfig `mapstructure:"correlator" yaml:"correlator"`
}

// SwapConfig tunes the orchestrator.
type SwapConfig struct {
	StorePath       string        `mapstructure:"store_path" yaml:"store_path"`
	PollInterval    time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	RefundTimeout   time.Duration `mapstructure:"refund_timeout" yaml:"refund_timeout"`
	ResolveAttempts uint          `mapstructure:"resolve_attempts" yaml:"resolve_attempts"`
	ResolveDelay    time.Duration `mapstructure:"resolve_delay" yaml:"resolve_delay"`
}

// LogConfig selects the log level.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// Config wraps the entire htlcswap configuration.
type Config struct {
	EVM  EVMConfig  `mapstructure:"evm" yaml:"evm"`
	TON  TONConfig  `mapstructure:"ton" yaml:"ton"`
	Swap SwapConfig `mapstructure:"swap" yaml:"swap"`
	Log  LogConfig  `mapstructure:"log" yaml:"log"`
}

const (
	TxSourceTonAPI     = "tonapi"
	TxSourceLiteserver = "liteserver"
)

// Load loads the config from the file path, falling back to env vars if the file does not exist.
// If the file exists, any env vars that are set will override the values loaded from the file.
func Load(filePath string) (*Config, error) {
	v := newViper()
	if err := bindEnvs(v); err != nil {
		return nil, err
	}

	if filePath != "" {
		v.SetConfigFile(filePath)
		if _, err := os.Stat(filePath); !errors.Is(err, fs.ErrNotExist) {
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config %s: %w", filePath, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	for key, val := range defaults {
		v.SetDefault(key, val)
	}

	return v
}

var defaults = map[string]any{
	"evm.chain_selector":      chain_selectors.ETHEREUM_TESTNET_SEPOLIA.Selector,
	"evm.denomination":        htlc.Finney.Name,
	"evm.gas.single_percent":  htlc.DefaultGasPolicy.SinglePercent,
	"evm.gas.batch_percent":   htlc.DefaultGasPolicy.BatchPercent,
	"evm.confirm_timeout":     "3m",
	"ton.chain_selector":      chain_selectors.TON_TESTNET.Selector,
	"ton.liteserver_url":      "https://ton.org/testnet-global.config.json",
	"ton.wallet_version":      "V5R1",
	"ton.network_global_id":   -3,
	"ton.message_value":       "1",
	"ton.denomination":        htlc.TON.Name,
	"ton.confirm_timeout":     "3m",
	"ton.poll_interval":       "1500ms",
	"ton.tx_source":           TxSourceTonAPI,
	"ton.tonapi.url":          "https://testnet.tonapi.io",
	"ton.tonapi.retry_max":    4,
	"ton.correlator.window":   16,
	"ton.correlator.attempts": 20,
	"ton.correlator.delay":    "3s",
	"swap.store_path":         "htlcswap.db",
	"swap.poll_interval":      "5s",
	"swap.refund_timeout":     "1h",
	"swap.resolve_attempts":   10,
	"swap.resolve_delay":      "3s",
	"log.level":               "info",
}

// envBindings maps config keys to the environment variables that can provide them, preferred
// name first. Secrets are expected to come from here rather than the file.
var envBindings = map[string][]string{
	"evm.deployer_key":      {"HTLCSWAP_EVM_DEPLOYER_KEY", "EVM_PRIVATE_KEY"},
	"evm.htlc_address":      {"HTLCSWAP_EVM_HTLC_ADDRESS"},
	"evm.chain_selector":    {"HTLCSWAP_EVM_CHAIN_SELECTOR"},
	"ton.deployer_key":      {"HTLCSWAP_TON_DEPLOYER_KEY"},
	"ton.mnemonic":          {"HTLCSWAP_TON_MNEMONIC", "TON_MNEMONIC"},
	"ton.mnemonic_password": {"HTLCSWAP_TON_MNEMONIC_PASSWORD"},
	"ton.htlc_address":      {"HTLCSWAP_TON_HTLC_ADDRESS"},
	"ton.liteserver_url":    {"HTLCSWAP_TON_LITESERVER_URL"},
	"ton.wallet_version":    {"HTLCSWAP_TON_WALLET_VERSION"},
	"ton.tonapi.token":      {"HTLCSWAP_TONAPI_TOKEN", "TONAPI_TOKEN"},
	"swap.store_path":       {"HTLCSWAP_STORE_PATH"},
	"log.level":             {"HTLCSWAP_LOG_LEVEL"},
}

// bindEnvs binds the environment variables to the viper instance.
func bindEnvs(v *viper.Viper) error {
	for key, envs := range envBindings {
		inputs := slices.Insert(slices.Clone(envs), 0, key)
		if err := v.BindEnv(inputs...); err != nil {
			return err
		}
	}

	return nil
}

// Validate checks both legs and the orchestrator settings.
func (c *Config) Validate() error {
	return errors.Join(c.EVM.Validate(), c.TON.Validate(), c.Swap.Validate())
}

// Validate checks the EVM section without requiring the signing key, which only commands that
// send transactions need.
func (c EVMConfig) Validate() error {
	var errs []error
	if _, err := chain_selectors.GetSelectorFamily(c.ChainSelector); err != nil {
		errs = append(errs, fmt.Errorf("evm.chain_selector: %w", err))
	}
	if len(c.RPCs) == 0 {
		errs = append(errs, errors.New("evm.rpcs: at least one RPC is required"))
	}
	for i, rpc := range c.RPCs {
		if rpc.HTTPURL == "" && rpc.WSURL == "" {
			errs = append(errs, fmt.Errorf("evm.rpcs[%d]: http_url or ws_url is required", i))
		}
	}
	if c.HTLCAddress == "" {
		errs = append(errs, errors.New("evm.htlc_address is required"))
	}
	if _, err := htlc.DenominationByName(c.Denomination); err != nil {
		errs = append(errs, fmt.Errorf("evm.denomination: %w", err))
	}
	if err := c.GasPolicy().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("evm.gas: %w", err))
	}

	return errors.Join(errs...)
}

// GasPolicy returns the configured gas policy.
func (c EVMConfig) GasPolicy() htlc.GasPolicy {
	return htlc.GasPolicy{SinglePercent: c.Gas.SinglePercent, BatchPercent: c.Gas.BatchPercent}
}

// Validate checks the TON section. A configured mnemonic must have 24 words, and a BIP39 one
// must carry a valid checksum.
func (c TONConfig) Validate() error {
	var errs []error
	if c.LiteserverURL == "" {
		errs = append(errs, errors.New("ton.liteserver_url is required"))
	}
	if c.HTLCAddress == "" {
		errs = append(errs, errors.New("ton.htlc_address is required"))
	}
	if _, err := htlc.DenominationByName(c.Denomination); err != nil {
		errs = append(errs, fmt.Errorf("ton.denomination: %w", err))
	}
	if c.Mnemonic != "" {
		words := strings.Fields(c.Mnemonic)
		switch {
		case c.MnemonicBIP39 && !bip39.IsMnemonicValid(strings.Join(words, " ")):
			errs = append(errs, errors.New("ton.mnemonic is not a valid BIP39 phrase"))
		case !c.MnemonicBIP39 && len(words) != 24:
			errs = append(errs, fmt.Errorf("ton.mnemonic must have 24 words, got %d", len(words)))
		}
	}
	switch c.TxSource {
	case TxSourceTonAPI, TxSourceLiteserver:
	default:
		errs = append(errs, fmt.Errorf("ton.tx_source must be %q or %q, got %q", TxSourceTonAPI, TxSourceLiteserver, c.TxSource))
	}
	if c.Correlator.Window <= 0 {
		errs = append(errs, errors.New("ton.correlator.window must be positive"))
	}

	return errors.Join(errs...)
}

// HasSigner reports whether a key or mnemonic is configured.
func (c TONConfig) HasSigner() bool {
	return c.DeployerKey != "" || c.Mnemonic != ""
}

// Validate checks the orchestrator settings.
func (c SwapConfig) Validate() error {
	var errs []error
	if c.StorePath == "" {
		errs = append(errs, errors.New("swap.store_path is required"))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("swap.poll_interval must be positive"))
	}

	return errors.Join(errs...)
}
