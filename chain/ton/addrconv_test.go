package ton

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const friendlyAddr = "EQAAAQIDBAUGBwgJCgsMDQ4PEBESExQVFhcYGRobHB0eHx2j"

func TestParseAddress(t *testing.T) {
	t.Parallel()

	raw := "0:000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

	tests := []struct {
		name    string
		give    string
		wantRaw string
		wantErr string
	}{
		{
			name:    "user friendly",
			give:    friendlyAddr,
			wantRaw: raw,
		},
		{
			name:    "raw form",
			give:    raw,
			wantRaw: raw,
		},
		{
			name:    "surrounding whitespace",
			give:    "  " + friendlyAddr + "\n",
			wantRaw: raw,
		},
		{
			name:    "not base64",
			give:    "invalid",
			wantErr: "invalid TON address format",
		},
		{
			name:    "empty",
			give:    "",
			wantErr: "invalid TON address format",
		},
		{
			name:    "raw with bad hex",
			give:    "0:zz",
			wantErr: "invalid TON address format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseAddress(tt.give)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)

				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRaw, RawAddress(got))
		})
	}
}

func TestAddressToBytes(t *testing.T) {
	t.Parallel()

	got, err := AddressToBytes(friendlyAddr)
	require.NoError(t, err)
	require.Len(t, got, 32)
	assert.Equal(t, byte(0x1f), got[31])

	again, err := AddressToBytes(friendlyAddr)
	require.NoError(t, err)
	assert.Equal(t, got, again)

	got, err = AddressToBytes("invalid")
	require.Error(t, err)
	assert.Nil(t, got)
}

func TestSameAccount(t *testing.T) {
	t.Parallel()

	raw := "0:000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

	assert.True(t, SameAccount(friendlyAddr, raw))
	assert.True(t, SameAccount(raw, raw))
	assert.False(t, SameAccount(friendlyAddr, "0:"+strings.Repeat("ab", 32)))
	assert.False(t, SameAccount(friendlyAddr, "garbage"))
}
