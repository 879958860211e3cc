package commands

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hashlock-labs/htlc-swap/config"
	"github.com/hashlock-labs/htlc-swap/htlc"
	"github.com/hashlock-labs/htlc-swap/pkg/logger"
)

// defaultConfig loads the built-in defaults with both contracts set.
func defaultConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)
	cfg.EVM.RPCs = []config.RPCConfig{{Name: "local", HTTPURL: "http://127.0.0.1:8545"}}
	cfg.EVM.HTLCAddress = "0x742d35Cc6634C0532925a3b8D4c8C1B8c4c8C1B8"
	cfg.EVM.DeployerKey = ""
	cfg.TON.HTLCAddress = "EQAAAQIDBAUGBwgJCgsMDQ4PEBESExQVFhcYGRobHB0eHx2j"
	cfg.TON.DeployerKey = ""
	cfg.TON.Mnemonic = ""

	return cfg
}

func TestOpenLegs_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		give      func(cfg *config.Config)
		families  []string
		wantErr   string
		wantErrIs error
	}{
		{
			name:      "unknown family",
			give:      func(*config.Config) {},
			families:  []string{"solana"},
			wantErrIs: htlc.ErrInvalidArgument,
		},
		{
			name:     "evm without signer",
			give:     func(*config.Config) {},
			families: []string{"evm"},
			wantErr:  "evm.deployer_key is not set",
		},
		{
			name: "evm bad url scheme",
			give: func(cfg *config.Config) {
				cfg.EVM.DeployerKey = "0x01"
				cfg.EVM.RPCs[0].PreferredURLScheme = "grpc"
			},
			families: []string{"evm"},
			wantErr:  `unknown url scheme preference "grpc"`,
		},
		{
			name:     "ton without signer",
			give:     func(*config.Config) {},
			families: []string{"ton", "ton"},
			wantErr:  "neither ton.deployer_key nor ton.mnemonic is set",
		},
		{
			name: "ton invalid section",
			give: func(cfg *config.Config) {
				cfg.TON.DeployerKey = "0x01"
				cfg.TON.TxSource = "toncenter"
			},
			families: []string{"ton"},
			wantErr:  "ton.tx_source",
		},
		{
			name: "ton message value",
			give: func(cfg *config.Config) {
				cfg.TON.DeployerKey = "0x01"
				cfg.TON.MessageValue = "lots"
			},
			families: []string{"ton"},
			wantErr:  "ton.message_value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := defaultConfig(t)
			tt.give(cfg)

			_, err := OpenLegs(t.Context(), cfg, logger.Test(t), tt.families...)
			require.Error(t, err)
			if tt.wantErrIs != nil {
				require.ErrorIs(t, err, tt.wantErrIs)
			}
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestOpenEmitParser_TonAPI(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig(t)
	parser, account, err := OpenEmitParser(t.Context(), cfg, logger.Test(t))
	require.NoError(t, err)
	require.NotNil(t, parser)
	require.Equal(t, "EQAAAQIDBAUGBwgJCgsMDQ4PEBESExQVFhcYGRobHB0eHx2j", account)
}
