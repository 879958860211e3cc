package htlc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecret_Hashlock(t *testing.T) {
	t.Parallel()

	s, err := NewSecret()
	require.NoError(t, err)
	require.False(t, s.IsZero())

	h := s.Hashlock()
	assert.True(t, h.Matches(s))

	other, err := NewSecret()
	require.NoError(t, err)
	assert.False(t, h.Matches(other))

	assert.Equal(t, "Secret(redacted)", s.String())
}

func TestParseSecret(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		give    string
		want    *big.Int
		wantErr string
	}{
		{
			name: "decimal",
			give: "92154350473372386670992019719489079617",
			want: func() *big.Int {
				v, _ := new(big.Int).SetString("92154350473372386670992019719489079617", 10)
				return v
			}(),
		},
		{
			name: "short hex is left padded",
			give: "0x0102",
			want: big.NewInt(0x0102),
		},
		{
			name: "odd hex",
			give: "0xabc",
			want: big.NewInt(0xabc),
		},
		{
			name:    "too long",
			give:    "0x" + "11223344556677889900112233445566778899001122334455667788990011223344",
			wantErr: "at most 32 allowed",
		},
		{
			name:    "garbage",
			give:    "hello",
			wantErr: "neither 0x hex nor a decimal integer",
		},
		{
			name:    "empty",
			give:    "  ",
			wantErr: "empty value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseSecret(tt.give)
			if tt.wantErr != "" {
				require.ErrorIs(t, err, ErrInvalidArgument)
				require.ErrorContains(t, err, tt.wantErr)

				return
			}
			require.NoError(t, err)
			assert.Equal(t, 0, tt.want.Cmp(got.BigInt()))
		})
	}
}

func TestID_TextRoundTrip(t *testing.T) {
	t.Parallel()

	id, err := IDFromBigInt(big.NewInt(42))
	require.NoError(t, err)

	text, err := id.MarshalText()
	require.NoError(t, err)

	var back ID
	require.NoError(t, back.UnmarshalText(text))
	assert.Equal(t, id, back)

	_, err = IDFromBigInt(big.NewInt(-1))
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestHashlock_JSON(t *testing.T) {
	t.Parallel()

	secret, err := NewSecret()
	require.NoError(t, err)
	h := secret.Hashlock()

	b, err := json.Marshal(struct {
		H Hashlock `json:"h"`
	}{h})
	require.NoError(t, err)
	assert.JSONEq(t, `{"h":"`+h.Hex()+`"}`, string(b))

	var back struct {
		H Hashlock `json:"h"`
	}
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, h, back.H)

	require.ErrorIs(t, back.H.UnmarshalText([]byte("0xzz")), ErrInvalidArgument)
}

func TestDeriveID(t *testing.T) {
	t.Parallel()

	s, err := NewSecret()
	require.NoError(t, err)
	route := Route{
		Sender:               "0xAbC",
		Recipient:            "0xdef",
		ReceiverChainID:      607,
		ReceiverChainAddress: "EQCJhsfTsoxKKpMBDw8C5z_ZGbljdOLInZNvjFM8NtyyNLk2",
	}
	timelock := time.Unix(1_700_000_000, 0)

	a := DeriveID(s.Hashlock(), route, timelock)
	b := DeriveID(s.Hashlock(), route, timelock)
	assert.Equal(t, a, b)

	// Address case does not matter.
	lower := route
	lower.Sender = "0xabc"
	assert.Equal(t, a, DeriveID(s.Hashlock(), lower, timelock))

	// Field boundaries are length prefixed.
	shifted := route
	shifted.Sender = "0xAbC0"
	shifted.Recipient = "xdef"
	assert.NotEqual(t, a, DeriveID(s.Hashlock(), shifted, timelock))

	assert.NotEqual(t, a, DeriveID(s.Hashlock(), route, timelock.Add(time.Second)))
}

func TestCommitment_RedeemRequiresMatchingSecret(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)
	secret, err := NewSecret()
	require.NoError(t, err)

	for i := range 32 {
		candidate := secret
		if i > 0 {
			candidate[i%32] ^= byte(i)
		}

		c := NewCommitment(ID{1}, Route{}, big.NewInt(1))
		require.NoError(t, c.Lock(secret.Hashlock(), now.Add(time.Hour), now))

		err := c.Redeem(candidate, now)
		if candidate == secret {
			require.NoError(t, err)
			assert.Equal(t, StateRedeemed, c.State)
			require.NotNil(t, c.Preimage)
			assert.Equal(t, secret, *c.Preimage)
		} else {
			require.ErrorIs(t, err, ErrContractRevert)
			assert.Equal(t, StateLocked, c.State)
		}
	}
}

func TestCommitment_Transitions(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)
	secret, err := NewSecret()
	require.NoError(t, err)

	tests := []struct {
		name      string
		run       func(c *Commitment) error
		wantErr   error
		wantState State
	}{
		{
			name: "lock with past timelock",
			run: func(c *Commitment) error {
				return c.Lock(secret.Hashlock(), now, now)
			},
			wantErr:   ErrInvalidArgument,
			wantState: StateCreated,
		},
		{
			name: "lock twice",
			run: func(c *Commitment) error {
				require.NoError(t, c.Lock(secret.Hashlock(), now.Add(time.Hour), now))
				return c.Lock(Hashlock{9}, now.Add(2*time.Hour), now)
			},
			wantErr:   ErrInvalidTransition,
			wantState: StateLocked,
		},
		{
			name: "refund before timelock",
			run: func(c *Commitment) error {
				require.NoError(t, c.Lock(secret.Hashlock(), now.Add(time.Hour), now))
				return c.Refund(now.Add(59 * time.Minute))
			},
			wantErr:   ErrContractRevert,
			wantState: StateLocked,
		},
		{
			name: "refund at timelock",
			run: func(c *Commitment) error {
				require.NoError(t, c.Lock(secret.Hashlock(), now.Add(time.Hour), now))
				return c.Refund(now.Add(time.Hour))
			},
			wantState: StateRefunded,
		},
		{
			name: "redeem after expiry",
			run: func(c *Commitment) error {
				require.NoError(t, c.Lock(secret.Hashlock(), now.Add(time.Hour), now))
				return c.Redeem(secret, now.Add(time.Hour))
			},
			wantErr:   ErrContractRevert,
			wantState: StateLocked,
		},
		{
			name: "refund after redeem",
			run: func(c *Commitment) error {
				require.NoError(t, c.Lock(secret.Hashlock(), now.Add(time.Hour), now))
				require.NoError(t, c.Redeem(secret, now))
				return c.Refund(now.Add(2 * time.Hour))
			},
			wantErr:   ErrContractRevert,
			wantState: StateRedeemed,
		},
		{
			name: "redeem after refund",
			run: func(c *Commitment) error {
				require.NoError(t, c.Lock(secret.Hashlock(), now.Add(time.Hour), now))
				require.NoError(t, c.Refund(now.Add(2*time.Hour)))
				return c.Redeem(secret, now)
			},
			wantErr:   ErrContractRevert,
			wantState: StateRefunded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := NewCommitment(ID{1}, Route{}, big.NewInt(1))
			err := tt.run(c)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantState, c.State)
		})
	}
}

func TestGasPolicy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		give      uint64
		policy    GasPolicy
		wantSgl   uint64
		wantBatch uint64
	}{
		{name: "exact", give: 100_000, policy: DefaultGasPolicy, wantSgl: 120_000, wantBatch: 120_000},
		{name: "rounds up", give: 21_001, policy: DefaultGasPolicy, wantSgl: 25_202, wantBatch: 25_202},
		{name: "reference batch is raw", give: 21_001, policy: ReferenceGasPolicy, wantSgl: 25_202, wantBatch: 21_001},
		{name: "zero", give: 0, policy: DefaultGasPolicy, wantSgl: 0, wantBatch: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.wantSgl, tt.policy.Single(tt.give))
			assert.Equal(t, tt.wantBatch, tt.policy.Batch(tt.give))
		})
	}

	require.ErrorIs(t, GasPolicy{SinglePercent: 90, BatchPercent: 100}.Validate(), ErrInvalidArgument)
	require.NoError(t, ReferenceGasPolicy.Validate())
}

func TestResolveLimit(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	estimate := func(context.Context) (uint64, error) {
		calls.Add(1)
		return 50_000, nil
	}

	got, err := ResolveLimit(t.Context(), GasLimit(77_000), estimate, DefaultGasPolicy.Single)
	require.NoError(t, err)
	assert.Equal(t, uint64(77_000), got)
	assert.Equal(t, int32(0), calls.Load(), "explicit limit must not trigger estimation")

	got, err = ResolveLimit(t.Context(), nil, estimate, DefaultGasPolicy.Single)
	require.NoError(t, err)
	assert.Equal(t, uint64(60_000), got)
	assert.Equal(t, int32(1), calls.Load())

	_, err = ResolveLimit(t.Context(), nil, func(context.Context) (uint64, error) {
		return 0, errors.New("execution reverted")
	}, DefaultGasPolicy.Single)
	require.ErrorIs(t, err, ErrEstimationFailure)

	_, err = ResolveLimit(t.Context(), GasLimit(0), estimate, DefaultGasPolicy.Single)
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestDenomination_ToNative(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		denom   Denomination
		give    string
		want    string
		wantErr string
	}{
		{name: "finney", denom: Finney, give: "100", want: "100000000000000000"},
		{name: "fractional ton", denom: TON, give: "0.1", want: "100000000"},
		{name: "ether", denom: Ether, give: "1.5", want: "1500000000000000000"},
		{name: "too precise", denom: TON, give: "0.0000000001", wantErr: "more precision"},
		{name: "zero", denom: TON, give: "0", wantErr: "must be positive"},
		{name: "negative", denom: Ether, give: "-1", wantErr: "must be positive"},
		{name: "not a number", denom: Ether, give: "one", wantErr: "amount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := tt.denom.ToNative(tt.give)
			if tt.wantErr != "" {
				require.ErrorIs(t, err, ErrInvalidArgument)
				require.ErrorContains(t, err, tt.wantErr)

				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}

	d, err := DenominationByName("FINNEY")
	require.NoError(t, err)
	assert.Equal(t, Finney, d)
	_, err = DenominationByName("satoshi")
	require.ErrorIs(t, err, ErrInvalidArgument)

	assert.Equal(t, "0.1", TON.FromNative(big.NewInt(100_000_000)))
}

func TestComputeTimelock(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 500)

	got, err := ComputeTimelock(now, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1_700_003_600), got.Unix())

	got, err = ComputeTimelock(now, Seconds(1800))
	require.NoError(t, err)
	assert.Equal(t, int64(1_700_001_800), got.Unix())
	assert.True(t, got.After(now))

	for _, bad := range []int64{0, -1, -3600} {
		_, err = ComputeTimelock(now, Seconds(bad))
		require.ErrorIs(t, err, ErrInvalidArgument)
	}

	require.NoError(t, CheckLegTimelocks(now.Add(time.Hour), now.Add(30*time.Minute)))
	require.ErrorIs(t, CheckLegTimelocks(now.Add(time.Hour), now.Add(time.Hour)), ErrInvalidArgument)
}

func TestBatchWithdrawRequest_Validate(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, BatchWithdrawRequest{}.Validate(), ErrInvalidArgument)
	require.ErrorIs(t, BatchWithdrawRequest{IDs: []ID{{1}}, Secrets: []Secret{}}.Validate(), ErrInvalidArgument)
	require.NoError(t, BatchWithdrawRequest{IDs: []ID{{1}}, Secrets: []Secret{{2}}}.Validate())
}

func TestPollUntil(t *testing.T) {
	t.Parallel()

	t.Run("condition met", func(t *testing.T) {
		t.Parallel()

		var n atomic.Int32
		err := PollUntil(t.Context(), time.Now().Add(time.Second), time.Millisecond, func(context.Context) (bool, error) {
			return n.Add(1) == 3, nil
		})
		require.NoError(t, err)
		assert.Equal(t, int32(3), n.Load())
	})

	t.Run("deadline passes", func(t *testing.T) {
		t.Parallel()

		err := PollUntil(t.Context(), time.Now().Add(20*time.Millisecond), 5*time.Millisecond, func(context.Context) (bool, error) {
			return false, nil
		})
		require.ErrorIs(t, err, ErrTimeout)
	})

	t.Run("check error aborts", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("boom")
		err := PollUntil(t.Context(), time.Time{}, time.Millisecond, func(context.Context) (bool, error) {
			return false, boom
		})
		require.ErrorIs(t, err, boom)
	})

	t.Run("parent cancelled", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		err := PollUntil(ctx, time.Now().Add(time.Hour), time.Millisecond, func(context.Context) (bool, error) {
			return false, nil
		})
		require.ErrorIs(t, err, context.Canceled)
		require.NotErrorIs(t, err, ErrTimeout)
	})
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	assert.False(t, IsRetryable(nil))
	assert.True(t, IsRetryable(ErrNotFound))
	assert.True(t, IsRetryable(errors.New("connection reset")))
	assert.False(t, IsRetryable(ErrDecode))
	assert.False(t, IsRetryable(ErrContractRevert))
}

func TestPendingLock(t *testing.T) {
	t.Parallel()

	lock := LockResult{Tx: TxRef{Hash: "0xabc"}, Amount: big.NewInt(5)}
	err := fmt.Errorf("participant lock: %w", &PendingLockError{Lock: lock, Err: ErrTimeout})

	got, ok := PendingLock(err)
	require.True(t, ok)
	assert.Equal(t, lock, got)
	require.ErrorIs(t, err, ErrTimeout)
	assert.ErrorContains(t, err, "lock 0xabc unconfirmed")

	_, ok = PendingLock(ErrTimeout)
	assert.False(t, ok)
}
