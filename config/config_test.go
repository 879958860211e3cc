package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	chain_selectors "github.com/smartcontractkit/chain-selectors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/hashlock-labs/htlc-swap/htlc"
)

// validMnemonic is the BIP39 all-zero entropy phrase.
var validMnemonic = strings.TrimSpace(strings.Repeat("abandon ", 23) + "art")

// fileCfg is written to a temporary config.yml by the tests.
func fileCfg() *Config {
	return &Config{
		EVM: EVMConfig{
			ChainSelector: chain_selectors.ETHEREUM_TESTNET_SEPOLIA.Selector,
			RPCs: []RPCConfig{
				{Name: "primary", HTTPURL: "https://rpc.example", WSURL: "wss://rpc.example", PreferredURLScheme: "ws"},
				{Name: "backup", HTTPURL: "https://backup.example"},
			},
			HTLCAddress:    "0x742d35Cc6634C0532925a3b8D4c8C1B8c4c8C1B8",
			DeployerKey:    "0xabc",
			Denomination:   "ether",
			Gas:            GasConfig{SinglePercent: 120, BatchPercent: 100},
			ConfirmTimeout: 2 * time.Minute,
		},
		TON: TONConfig{
			ChainSelector:   chain_selectors.TON_TESTNET.Selector,
			LiteserverURL:   "liteserver://key@127.0.0.1:4443",
			HTLCAddress:     "EQBZtjT6wyH5y_eT1ROOjXLaA5EYVxFYVwPTyNOxFz0GDiAz",
			Mnemonic:        validMnemonic,
			MnemonicBIP39:   true,
			WalletVersion:   "V4R2",
			NetworkGlobalID: -3,
			MessageValue:    "0.5",
			Denomination:    "nanoton",
			ConfirmTimeout:  time.Minute,
			PollInterval:    time.Second,
			TxSource:        TxSourceLiteserver,
			TonAPI:          TonAPIConfig{URL: "https://tonapi.example", Token: "t0k3n", RetryMax: 2},
			Correlator:      CorrelatorConfig{Window: 8, Attempts: 5, Delay: 2 * time.Second},
		},
		Swap: SwapConfig{
			StorePath:       "/var/lib/htlcswap/swaps.db",
			PollInterval:    10 * time.Second,
			RefundTimeout:   30 * time.Minute,
			ResolveAttempts: 4,
			ResolveDelay:    time.Second,
		},
		Log: LogConfig{Level: "debug"},
	}
}

func writeConfig(t *testing.T, cfg *Config) string {
	t.Helper()

	b, err := yaml.Marshal(cfg)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, b, 0o600))

	return path
}

func TestLoad_File(t *testing.T) {
	t.Parallel()

	want := fileCfg()
	got, err := Load(writeConfig(t, want))
	require.NoError(t, err)
	assert.Equal(t, want, got)
	require.NoError(t, got.Validate())
}

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()

	got, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)

	assert.Equal(t, chain_selectors.ETHEREUM_TESTNET_SEPOLIA.Selector, got.EVM.ChainSelector)
	assert.Equal(t, htlc.DefaultGasPolicy, got.EVM.GasPolicy())
	assert.Equal(t, "finney", got.EVM.Denomination)
	assert.Equal(t, 3*time.Minute, got.EVM.ConfirmTimeout)
	assert.Equal(t, chain_selectors.TON_TESTNET.Selector, got.TON.ChainSelector)
	assert.Equal(t, 1500*time.Millisecond, got.TON.PollInterval)
	assert.Equal(t, TxSourceTonAPI, got.TON.TxSource)
	assert.Equal(t, 16, got.TON.Correlator.Window)
	assert.Equal(t, uint(20), got.TON.Correlator.Attempts)
	assert.Equal(t, time.Hour, got.Swap.RefundTimeout)
	assert.Equal(t, "info", got.Log.Level)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, fileCfg())

	t.Setenv("HTLCSWAP_EVM_DEPLOYER_KEY", "0x123")
	t.Setenv("TON_MNEMONIC", "legacy words")
	t.Setenv("HTLCSWAP_TONAPI_TOKEN", "env-token")
	t.Setenv("HTLCSWAP_LOG_LEVEL", "warn")
	t.Setenv("HTLCSWAP_TON_MNEMONIC_PASSWORD", "hunter2")

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0x123", got.EVM.DeployerKey)
	assert.Equal(t, "legacy words", got.TON.Mnemonic)
	assert.Equal(t, "env-token", got.TON.TonAPI.Token)
	assert.Equal(t, "warn", got.Log.Level)
	assert.Equal(t, "hunter2", got.TON.MnemonicPass)
	assert.Equal(t, "ether", got.EVM.Denomination, "unbound keys keep the file value")
}

func TestLoad_EnvWithoutFile(t *testing.T) {
	t.Setenv("HTLCSWAP_TON_DEPLOYER_KEY", "0xedd")
	t.Setenv("HTLCSWAP_STORE_PATH", "/tmp/swaps.db")

	got, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "0xedd", got.TON.DeployerKey)
	assert.True(t, got.TON.HasSigner())
	assert.Equal(t, "/tmp/swaps.db", got.Swap.StorePath)
}

func TestLoad_MalformedFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("evm: [unclosed"), 0o600))

	_, err := Load(path)
	require.ErrorContains(t, err, "failed to read config")
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		give    func(c *Config)
		wantErr string
	}{
		{
			name: "valid",
			give: func(*Config) {},
		},
		{
			name:    "unknown evm selector",
			give:    func(c *Config) { c.EVM.ChainSelector = 42 },
			wantErr: "evm.chain_selector",
		},
		{
			name:    "no rpcs",
			give:    func(c *Config) { c.EVM.RPCs = nil },
			wantErr: "evm.rpcs: at least one RPC is required",
		},
		{
			name:    "rpc without url",
			give:    func(c *Config) { c.EVM.RPCs = []RPCConfig{{Name: "x"}} },
			wantErr: "evm.rpcs[0]: http_url or ws_url is required",
		},
		{
			name:    "gas below estimate",
			give:    func(c *Config) { c.EVM.Gas.SinglePercent = 90 },
			wantErr: "evm.gas",
		},
		{
			name:    "unknown denomination",
			give:    func(c *Config) { c.TON.Denomination = "gram" },
			wantErr: "ton.denomination",
		},
		{
			name:    "bip39 checksum",
			give:    func(c *Config) { c.TON.Mnemonic = strings.Repeat("abandon ", 24) },
			wantErr: "ton.mnemonic is not a valid BIP39 phrase",
		},
		{
			name: "ton mnemonic word count",
			give: func(c *Config) {
				c.TON.MnemonicBIP39 = false
				c.TON.Mnemonic = "one two three"
			},
			wantErr: "ton.mnemonic must have 24 words, got 3",
		},
		{
			name:    "tx source",
			give:    func(c *Config) { c.TON.TxSource = "toncenter" },
			wantErr: `ton.tx_source must be "tonapi" or "liteserver"`,
		},
		{
			name: "several sections",
			give: func(c *Config) {
				c.TON.HTLCAddress = ""
				c.Swap.StorePath = ""
			},
			wantErr: "ton.htlc_address is required\nswap.store_path is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := fileCfg()
			tt.give(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}
