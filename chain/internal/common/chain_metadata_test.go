package common_test

import (
	"testing"

	chainsel "github.com/smartcontractkit/chain-selectors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashlock-labs/htlc-swap/chain/internal/common"
)

func TestChainMetadata(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		giveSel     uint64
		wantName    string
		wantString  string
		wantFamily  string
		wantChainID int64
		wantErr     bool
	}{
		{
			name:        "known evm chain",
			giveSel:     chainsel.ETHEREUM_TESTNET_SEPOLIA.Selector,
			wantString:  "ethereum-testnet-sepolia (16015286601757825753)",
			wantName:    chainsel.ETHEREUM_TESTNET_SEPOLIA.Name,
			wantFamily:  chainsel.FamilyEVM,
			wantChainID: 11155111,
		},
		{
			name:       "unknown selector falls back to the number",
			giveSel:    42,
			wantString: "42",
			wantName:   "42",
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := common.ChainMetadata{Selector: tt.giveSel}
			assert.Equal(t, tt.giveSel, c.ChainSelector())
			assert.Equal(t, tt.wantString, c.String())
			assert.Equal(t, tt.wantName, c.Name())
			assert.Equal(t, tt.wantFamily, c.Family())

			id, err := c.ChainID()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantChainID, id.Int64())
		})
	}
}
