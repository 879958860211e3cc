package commands

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/hashlock-labs/htlc-swap/config"
	"github.com/hashlock-labs/htlc-swap/htlc"
	"github.com/hashlock-labs/htlc-swap/htlc/htlctest"
	"github.com/hashlock-labs/htlc-swap/pkg/logger"
	"github.com/hashlock-labs/htlc-swap/swap"
)

var testStart = time.Unix(1_700_000_000, 0)

type fakeEmitParser struct {
	ids     map[int]htlc.ID
	account string
}

func (p *fakeEmitParser) EmitAt(_ context.Context, account string, index int) (htlc.ID, error) {
	p.account = account
	id, ok := p.ids[index]
	if !ok {
		return htlc.ID{}, fmt.Errorf("%w: no emit at %d", htlc.ErrNotFound, index)
	}

	return id, nil
}

type cliFixture struct {
	clock  *htlctest.Clock
	legs   map[string]swap.Leg
	evm    *htlctest.Ledger
	store  *swap.MemoryStore
	parser *fakeEmitParser
	cfg    *config.Config
}

func newCLIFixture(t *testing.T) *cliFixture {
	t.Helper()

	clock := htlctest.NewClock(testStart)
	evm := htlctest.NewLedger("evm", clock, htlctest.WithDenomination(htlc.Ether))
	ton := htlctest.NewLedger("ton", clock, htlctest.WithDeferredID(), htlctest.WithDenomination(htlc.TON))

	return &cliFixture{
		clock: clock,
		evm:   evm,
		legs: map[string]swap.Leg{
			"evm": {Adapter: evm, Resolver: evm, Observer: evm, Inspector: evm},
			"ton": {Adapter: ton, Resolver: ton, Observer: ton},
		},
		store:  swap.NewMemoryStore(),
		parser: &fakeEmitParser{ids: map[int]htlc.ID{}},
		cfg: &config.Config{
			TON: config.TONConfig{HTLCAddress: "EQcontract"},
			Swap: config.SwapConfig{
				StorePath:       "memory",
				PollInterval:    time.Millisecond,
				RefundTimeout:   time.Second,
				ResolveAttempts: 3,
				ResolveDelay:    time.Millisecond,
			},
			Log: config.LogConfig{Level: "debug"},
		},
	}
}

func (f *cliFixture) deps() *Deps {
	return &Deps{
		ConfigLoader: func(string) (*config.Config, error) {
			return f.cfg, nil
		},
		LegsOpener: func(_ context.Context, _ *config.Config, _ logger.Logger, families ...string) (map[string]swap.Leg, error) {
			out := make(map[string]swap.Leg, len(families))
			for _, family := range families {
				leg, ok := f.legs[family]
				if !ok {
					return nil, fmt.Errorf("%w: unknown chain %q", htlc.ErrInvalidArgument, family)
				}
				out[family] = leg
			}

			return out, nil
		},
		EmitParserOpener: func(context.Context, *config.Config, logger.Logger) (EmitParser, string, error) {
			return f.parser, f.cfg.TON.HTLCAddress, nil
		},
		StoreOpener: func(string) (swap.Store, func() error, error) {
			return f.store, nil, nil
		},
	}
}

func (f *cliFixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	root := New(logger.Test(t), f.deps()).Root("htlcswap")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(t.Context())

	return out.String(), err
}

func decode[T any](t *testing.T, out string) T {
	t.Helper()

	var v T
	require.NoError(t, yaml.Unmarshal([]byte(out), &v), out)

	return v
}

func decodeAll[T any](t *testing.T, out string) []T {
	t.Helper()

	var all []T
	dec := yaml.NewDecoder(strings.NewReader(out))
	for {
		var v T
		err := dec.Decode(&v)
		if errors.Is(err, io.EOF) {
			return all
		}
		require.NoError(t, err, out)
		all = append(all, v)
	}
}

func mustSecret(t *testing.T) htlc.Secret {
	t.Helper()

	s, err := htlc.NewSecret()
	require.NoError(t, err)

	return s
}

func TestRoot_Structure(t *testing.T) {
	t.Parallel()

	root := New(nil, nil).Root("htlcswap")

	cfgFlag := root.PersistentFlags().Lookup("config")
	require.NotNil(t, cfgFlag)
	assert.Equal(t, "c", cfgFlag.Shorthand)
	assert.Equal(t, DefaultConfigPath, cfgFlag.DefValue)

	want := map[string][]string{
		"secret": {"new"},
		"evm":    {"batch-redeem", "inspect", "lock", "redeem", "refund"},
		"ton":    {"lock", "parse-emit", "redeem", "refund"},
		"swap":   {"refund", "resume", "run", "status"},
	}
	got := make(map[string][]string)
	for _, group := range root.Commands() {
		for _, sub := range group.Commands() {
			got[group.Name()] = append(got[group.Name()], sub.Name())
		}
	}
	assert.Equal(t, want, got)
}

func TestSecretNew(t *testing.T) {
	t.Parallel()

	f := newCLIFixture(t)
	out, err := f.run(t, "secret", "new")
	require.NoError(t, err)

	v := decode[secretView](t, out)
	secret, err := htlc.ParseSecret(v.Secret)
	require.NoError(t, err)
	assert.Equal(t, secret.Hashlock().Hex(), v.Hashlock)
}

func TestEVM_LockRedeemInspect(t *testing.T) {
	t.Parallel()

	f := newCLIFixture(t)
	secret := mustSecret(t)

	out, err := f.run(t, "evm", "lock",
		"--amount", "0.5",
		"--hashlock", secret.Hashlock().Hex(),
		"--recipient", "0xbbbb",
		"--receiver-chain-id", "607",
		"--receiver-address", "EQrecipient",
	)
	require.NoError(t, err)

	lock := decode[lockView](t, out)
	require.NotEmpty(t, lock.ID)
	assert.Empty(t, lock.Secret, "a caller supplied hashlock never prints a secret")
	assert.Equal(t, secret.Hashlock().Hex(), lock.Hashlock)
	assert.Equal(t, "500000000000000000", lock.Amount)
	assert.Equal(t, testStart.Unix()+htlc.DefaultLockSeconds, lock.Timelock)
	assert.Equal(t, htlc.DefaultGasPolicy.Single(htlctest.EstimatedGas), lock.GasLimit)
	assert.NotEmpty(t, lock.Tx.Hash)

	out, err = f.run(t, "evm", "redeem", "--id", lock.ID, "--secret", secret.Hex(), "--gas-limit", "90000")
	require.NoError(t, err)
	redeem := decode[withdrawView](t, out)
	assert.Equal(t, lock.ID, redeem.ID)
	assert.Equal(t, uint64(90000), redeem.GasLimit)

	out, err = f.run(t, "evm", "inspect", "--id", lock.ID)
	require.NoError(t, err)
	com := decode[commitmentView](t, out)
	assert.Equal(t, string(htlc.StateRedeemed), com.State)
	assert.Equal(t, "0xbbbb", com.Recipient)
	assert.Equal(t, uint64(607), com.ReceiverChainID)
	assert.Equal(t, "EQrecipient", com.ReceiverChainAddress)
	assert.Equal(t, secret.Hex(), com.Preimage)
}

func TestEVM_LockGeneratesSecret(t *testing.T) {
	t.Parallel()

	f := newCLIFixture(t)
	out, err := f.run(t, "evm", "lock", "--amount", "1")
	require.NoError(t, err)

	lock := decode[lockView](t, out)
	require.NotEmpty(t, lock.Secret)
	secret, err := htlc.ParseSecret(lock.Secret)
	require.NoError(t, err)
	assert.Equal(t, secret.Hashlock().Hex(), lock.Hashlock)
}

func TestEVM_BatchRedeem(t *testing.T) {
	t.Parallel()

	f := newCLIFixture(t)
	secrets := []htlc.Secret{mustSecret(t), mustSecret(t)}
	ids := make([]string, len(secrets))
	for i, s := range secrets {
		out, err := f.run(t, "evm", "lock", "--amount", "1", "--hashlock", s.Hashlock().Hex())
		require.NoError(t, err)
		ids[i] = decode[lockView](t, out).ID
	}

	t.Run("partial failure", func(t *testing.T) {
		out, err := f.run(t, "evm", "batch-redeem",
			"--ids", strings.Join(ids, ","),
			"--secrets", secrets[0].Hex()+","+secrets[0].Hex(),
		)
		require.ErrorContains(t, err, "1 of 2 entries were not redeemed")

		v := decode[batchView](t, out)
		require.Len(t, v.Entries, 2)
		assert.True(t, v.Entries[0].Redeemed)
		assert.False(t, v.Entries[1].Redeemed)
		assert.NotEmpty(t, v.Entries[1].Error)
		assert.Equal(t, htlc.DefaultGasPolicy.Batch(htlctest.EstimatedGas), v.GasLimit)
	})

	t.Run("remaining entry", func(t *testing.T) {
		out, err := f.run(t, "evm", "batch-redeem", "--ids", ids[1], "--secrets", secrets[1].Hex())
		require.NoError(t, err)

		v := decode[batchView](t, out)
		require.Len(t, v.Entries, 1)
		assert.True(t, v.Entries[0].Redeemed)
	})

	t.Run("table output", func(t *testing.T) {
		out, err := f.run(t, "evm", "batch-redeem", "--ids", ids[0], "--secrets", secrets[0].Hex(), "-o", "table")
		require.ErrorContains(t, err, "1 of 1 entries were not redeemed")
		assert.Contains(t, out, "REDEEMED")
		assert.Contains(t, out, ids[0])
		assert.Contains(t, out, "false")
	})

	t.Run("unknown output format", func(t *testing.T) {
		_, err := f.run(t, "evm", "batch-redeem", "--ids", ids[0], "--secrets", secrets[0].Hex(), "-o", "json")
		require.ErrorIs(t, err, htlc.ErrInvalidArgument)
	})
}

func TestEVM_BatchRedeemValidation(t *testing.T) {
	t.Parallel()

	id := htlc.ID{1}.Hex()
	secret := htlc.Secret{2}.Hex()

	tests := []struct {
		name    string
		give    []string
		wantErr string
	}{
		{
			name:    "mismatched lengths",
			give:    []string{"--ids", id + "," + id, "--secrets", secret},
			wantErr: "2 ids but 1 secrets",
		},
		{
			name:    "malformed id",
			give:    []string{"--ids", "0xzz", "--secrets", secret},
			wantErr: "ids[0]",
		},
		{
			name:    "missing secrets flag",
			give:    []string{"--ids", id},
			wantErr: `required flag(s) "secrets" not set`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newCLIFixture(t)
			_, err := f.run(t, append([]string{"evm", "batch-redeem"}, tt.give...)...)
			require.ErrorContains(t, err, tt.wantErr)
			assert.Zero(t, f.evm.EstimateCalls())
		})
	}
}

func TestEVM_Refund(t *testing.T) {
	t.Parallel()

	f := newCLIFixture(t)
	out, err := f.run(t, "evm", "lock", "--amount", "1", "--lock-seconds", "10")
	require.NoError(t, err)
	id := decode[lockView](t, out).ID

	_, err = f.run(t, "evm", "refund", "--id", id)
	require.Error(t, err, "refund before the timelock")

	f.clock.Advance(10 * time.Second)
	out, err = f.run(t, "evm", "refund", "--id", id)
	require.NoError(t, err)
	assert.Equal(t, id, decode[withdrawView](t, out).ID)
}

func TestTON_LockResolvesID(t *testing.T) {
	t.Parallel()

	f := newCLIFixture(t)
	secret := mustSecret(t)
	out, err := f.run(t, "ton", "lock", "--amount", "2", "--hashlock", secret.Hashlock().Hex(), "--lock-seconds", "1800")
	require.NoError(t, err)

	lock := decode[lockView](t, out)
	require.NotEmpty(t, lock.ID, "the deferred id is resolved before printing")
	assert.Equal(t, "2000000000", lock.Amount)
	assert.Equal(t, testStart.Unix()+1800, lock.Timelock)

	_, err = f.run(t, "ton", "redeem", "--id", lock.ID, "--secret", secret.Hex())
	require.NoError(t, err)
}

func TestLock_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		give    []string
		wantErr string
	}{
		{
			name:    "amount required",
			give:    []string{"evm", "lock"},
			wantErr: `required flag(s) "amount" not set`,
		},
		{
			name:    "malformed hashlock",
			give:    []string{"ton", "lock", "--amount", "1", "--hashlock", "nope"},
			wantErr: "neither 0x hex nor a decimal integer",
		},
		{
			name:    "non-positive lock seconds",
			give:    []string{"evm", "lock", "--amount", "1", "--lock-seconds", "0"},
			wantErr: "lock seconds must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newCLIFixture(t)
			_, err := f.run(t, tt.give...)
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestTON_ParseEmit(t *testing.T) {
	t.Parallel()

	f := newCLIFixture(t)
	want := htlc.ID{0xab}
	f.parser.ids[2] = want

	out, err := f.run(t, "ton", "parse-emit", "--index", "2")
	require.NoError(t, err)
	v := decode[emitView](t, out)
	assert.Equal(t, want.Hex(), v.ID)
	assert.Equal(t, "EQcontract", v.Account)
	assert.Equal(t, "EQcontract", f.parser.account)

	_, err = f.run(t, "ton", "parse-emit", "--account", "EQother")
	require.ErrorIs(t, err, htlc.ErrNotFound)
	assert.Equal(t, "EQother", f.parser.account)
}

const testPlanTOML = `
[initiator]
chain = "evm"
amount = "0.1"
lock_seconds = 3600

[initiator.route]
recipient = "0xbbbb"
receiver_chain_id = 607

[participant]
chain = "ton"
amount = "0.1"
lock_seconds = 1800

[participant.route]
recipient = "EQrecipient"
`

func writePlan(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "plan.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

func TestSwap_RunAndStatus(t *testing.T) {
	t.Parallel()

	f := newCLIFixture(t)
	secret := mustSecret(t)

	out, err := f.run(t, "swap", "run", "--plan", writePlan(t, testPlanTOML), "--secret", secret.Hex())
	require.NoError(t, err)
	assert.NotContains(t, out, secret.Hex())

	st := decode[swap.Status](t, out)
	require.NotEmpty(t, st.ID)
	assert.Equal(t, swap.PhaseCompleted, st.Phase)
	assert.Equal(t, secret.Hashlock().Hex(), st.Hashlock)
	assert.Equal(t, "evm", st.Initiator.Chain)
	assert.NotEmpty(t, st.Initiator.RedeemTx)
	assert.NotEmpty(t, st.Participant.RedeemTx)

	out, err = f.run(t, "swap", "status")
	require.NoError(t, err)
	all := decodeAll[swap.Status](t, out)
	require.Len(t, all, 1)
	assert.Equal(t, st.ID, all[0].ID)

	out, err = f.run(t, "swap", "status", "--output", "table", st.ID)
	require.NoError(t, err)
	assert.Contains(t, out, st.ID)
	assert.Contains(t, out, "COMPLETED")
	assert.Contains(t, out, "evm 0.1 redeemed")

	out, err = f.run(t, "swap", "resume", st.ID)
	require.NoError(t, err)
	assert.Equal(t, swap.PhaseCompleted, decode[swap.Status](t, out).Phase)

	_, err = f.run(t, "swap", "status", "missing")
	require.ErrorIs(t, err, swap.ErrDoesNotExist)
}

func TestSwap_RunInvalidPlan(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		give    string
		wantErr error
	}{
		{
			name:    "participant outlives initiator",
			give:    strings.Replace(testPlanTOML, "lock_seconds = 1800", "lock_seconds = 7200", 1),
			wantErr: htlc.ErrInvalidArgument,
		},
		{
			name:    "unknown chain",
			give:    strings.Replace(testPlanTOML, `chain = "ton"`, `chain = "solana"`, 1),
			wantErr: htlc.ErrInvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newCLIFixture(t)
			_, err := f.run(t, "swap", "run", "--plan", writePlan(t, tt.give))
			require.ErrorIs(t, err, tt.wantErr)

			recs, err := f.store.ListAll()
			require.NoError(t, err)
			assert.Empty(t, recs)
		})
	}
}

func TestSwap_Refund(t *testing.T) {
	t.Parallel()

	f := newCLIFixture(t)
	orch, err := swap.New(f.legs, f.store, swap.Config{}, logger.Test(t))
	require.NoError(t, err)
	plan, err := swap.ParsePlan([]byte(testPlanTOML))
	require.NoError(t, err)
	rec, err := orch.Start(plan, htlc.Secret{})
	require.NoError(t, err)

	out, err := f.run(t, "swap", "refund", rec.ID)
	require.NoError(t, err)
	assert.Equal(t, swap.PhaseRefunded, decode[swap.Status](t, out).Phase)

	_, err = f.run(t, "swap", "refund", rec.ID)
	require.ErrorIs(t, err, htlc.ErrInvalidTransition)
}

func TestCommands_LoggerFactory(t *testing.T) {
	t.Parallel()

	f := newCLIFixture(t)
	var gotLevel string
	deps := f.deps()
	deps.LoggerFactory = func(level string) (logger.Logger, error) {
		gotLevel = level
		return logger.Nop(), nil
	}

	root := New(logger.Test(t), deps).Root("htlcswap")
	root.SetOut(io.Discard)
	root.SetArgs([]string{"secret", "new"})
	require.NoError(t, root.ExecuteContext(t.Context()))
	assert.Equal(t, "debug", gotLevel)
}
