package rpcclient

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashlock-labs/htlc-swap/pkg/logger"
)

const sepoliaSelector uint64 = 16015286601757825753

// rpcNode is a JSON-RPC endpoint answering a fixed set of methods. Anything else gets an
// internal error, and methods listed in stall block until the caller gives up.
type rpcNode struct {
	*httptest.Server

	mu      sync.Mutex
	answers map[string]string
	stall   map[string]bool
	hits    map[string]int
}

func newRPCNode(t *testing.T, answers map[string]string, stall ...string) *rpcNode {
	t.Helper()

	n := &rpcNode{answers: answers, stall: map[string]bool{}, hits: map[string]int{}}
	for _, m := range stall {
		n.stall[m] = true
	}
	n.Server = httptest.NewServer(http.HandlerFunc(n.serve))
	t.Cleanup(n.Close)

	return n
}

func (n *rpcNode) serve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     json.RawMessage `json:"id"`
		Method string          `json:"method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	n.mu.Lock()
	n.hits[req.Method]++
	result, ok := n.answers[req.Method]
	stall := n.stall[req.Method]
	n.mu.Unlock()

	if stall {
		<-r.Context().Done()
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if !ok {
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(req.ID) + `,"error":{"code":-32000,"message":"internal error"}}`))
		return
	}
	_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(req.ID) + `,"result":` + result + `}`))
}

func (n *rpcNode) count(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.hits[method]
}

func (n *rpcNode) rpc(name string) RPC {
	return RPC{Name: name, HTTPURL: n.URL, PreferredURLScheme: URLSchemePreferenceHTTP}
}

// healthyOnly answers the eth_blockNumber health check and fails every other call.
var healthyOnly = map[string]string{"eth_blockNumber": `"0x2a"`}

func fastRetries() func(*MultiClient) {
	return WithRetryConfig(RetryConfig{
		Attempts:     1,
		Delay:        time.Millisecond,
		Timeout:      time.Second,
		DialAttempts: 1,
		DialDelay:    time.Millisecond,
		DialTimeout:  time.Second,
	})
}

func htlcAnswers(t *testing.T) map[string]string {
	t.Helper()

	head, err := json.Marshal(&types.Header{
		Number:     big.NewInt(42),
		Difficulty: big.NewInt(0),
		GasLimit:   30_000_000,
		Time:       1_700_000_000,
	})
	require.NoError(t, err)

	return map[string]string{
		"eth_blockNumber":      `"0x2a"`,
		"eth_getBlockByNumber": string(head),
		"eth_estimateGas":      `"0x1d4c0"`,
		"eth_call":             `"0x0000000000000000000000000000000000000000000000000000000000000001"`,
	}
}

func TestNewMultiClient(t *testing.T) {
	t.Parallel()

	node := newRPCNode(t, healthyOnly)
	lggr := logger.Test(t)

	mc, err := NewMultiClient(lggr, RPCConfig{ChainSelector: sepoliaSelector, RPCs: []RPC{node.rpc("primary")}})
	require.NoError(t, err)
	assert.Equal(t, "ethereum-testnet-sepolia", mc.chainName)
	assert.Equal(t, defaultRetryConfig(), mc.RetryConfig)
	assert.Empty(t, mc.Backups)

	mc, err = NewMultiClient(lggr, RPCConfig{ChainSelector: sepoliaSelector, RPCs: []RPC{
		node.rpc("primary"), node.rpc("backup"),
	}}, fastRetries())
	require.NoError(t, err)
	require.Len(t, mc.Backups, 1)
	assert.Equal(t, uint(1), mc.RetryConfig.Attempts)

	_, err = NewMultiClient(lggr, RPCConfig{ChainSelector: sepoliaSelector})
	require.ErrorContains(t, err, "no RPCs provided")

	_, err = NewMultiClient(lggr, RPCConfig{ChainSelector: 1, RPCs: []RPC{node.rpc("primary")}})
	require.ErrorContains(t, err, "chain with selector 1 not found")
}

func TestNewMultiClient_dropsUnhealthyRPCs(t *testing.T) {
	t.Parallel()

	down := newRPCNode(t, map[string]string{})
	up := newRPCNode(t, htlcAnswers(t))
	lggr := logger.Test(t)

	mc, err := NewMultiClient(lggr, RPCConfig{ChainSelector: sepoliaSelector, RPCs: []RPC{
		down.rpc("down"), up.rpc("up"),
	}}, fastRetries())
	require.NoError(t, err)
	assert.Empty(t, mc.Backups)
	assert.Equal(t, 1, down.count("eth_blockNumber"))

	head, err := mc.HeaderByNumber(t.Context(), nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), head.Number.Uint64())
	assert.Zero(t, down.count("eth_getBlockByNumber"))

	_, err = NewMultiClient(lggr, RPCConfig{ChainSelector: sepoliaSelector, RPCs: []RPC{down.rpc("down")}}, fastRetries())
	require.ErrorContains(t, err, "no valid RPC clients created")
}

func TestMultiClient_failover(t *testing.T) {
	t.Parallel()

	htlcAddr := common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

	tests := []struct {
		name   string
		method string
		call   func(context.Context, *MultiClient) (any, error)
		want   any
	}{
		{
			name:   "latest header for the timelock clock",
			method: "eth_getBlockByNumber",
			call: func(ctx context.Context, mc *MultiClient) (any, error) {
				head, err := mc.HeaderByNumber(ctx, nil)
				if err != nil {
					return nil, err
				}

				return head.Time, nil
			},
			want: uint64(1_700_000_000),
		},
		{
			name:   "gas estimate for a lock",
			method: "eth_estimateGas",
			call: func(ctx context.Context, mc *MultiClient) (any, error) {
				return mc.EstimateGas(ctx, ethereum.CallMsg{To: &htlcAddr, Value: big.NewInt(1e17)})
			},
			want: uint64(120_000),
		},
		{
			name:   "contract read of a lock",
			method: "eth_call",
			call: func(ctx context.Context, mc *MultiClient) (any, error) {
				out, err := mc.CallContract(ctx, ethereum.CallMsg{To: &htlcAddr, Data: []byte{0xde, 0xad}}, nil)
				if err != nil {
					return nil, err
				}

				return new(big.Int).SetBytes(out).Int64(), nil
			},
			want: int64(1),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			flaky := newRPCNode(t, healthyOnly)
			steady := newRPCNode(t, htlcAnswers(t))

			mc, err := NewMultiClient(logger.Test(t), RPCConfig{ChainSelector: sepoliaSelector, RPCs: []RPC{
				flaky.rpc("flaky"), steady.rpc("steady"),
			}}, fastRetries())
			require.NoError(t, err)
			primary, backup := mc.Client, mc.Backups[0]

			got, err := tt.call(t.Context(), mc)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			assert.Same(t, backup, mc.Client)
			require.Len(t, mc.Backups, 1)
			assert.Same(t, primary, mc.Backups[0])

			_, err = tt.call(t.Context(), mc)
			require.NoError(t, err)
			assert.Equal(t, 1, flaky.count(tt.method))
			assert.Equal(t, 2, steady.count(tt.method))
		})
	}
}

func TestMultiClient_allClientsFail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		stall   bool
		timeout time.Duration
		wantErr string
		wantCtx bool
	}{
		{
			name:    "every endpoint errors",
			wantErr: `all backup clients failed for chain "ethereum-testnet-sepolia"`,
		},
		{
			name:    "caller deadline passes while an endpoint stalls",
			stall:   true,
			timeout: 100 * time.Millisecond,
			wantCtx: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var stall []string
			if tt.stall {
				stall = []string{"eth_estimateGas"}
			}
			a := newRPCNode(t, healthyOnly, stall...)
			b := newRPCNode(t, healthyOnly, stall...)

			mc, err := NewMultiClient(logger.Test(t), RPCConfig{ChainSelector: sepoliaSelector, RPCs: []RPC{
				a.rpc("a"), b.rpc("b"),
			}}, fastRetries())
			require.NoError(t, err)

			ctx := t.Context()
			if tt.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, tt.timeout)
				defer cancel()
			}

			_, err = mc.EstimateGas(ctx, ethereum.CallMsg{})
			require.Error(t, err)
			if tt.wantCtx {
				require.ErrorIs(t, err, context.DeadlineExceeded)
				assert.Zero(t, b.count("eth_estimateGas"))

				return
			}
			require.ErrorContains(t, err, tt.wantErr)
			require.ErrorContains(t, err, "internal error")
			assert.Equal(t, 1, a.count("eth_estimateGas"))
			assert.Equal(t, 1, b.count("eth_estimateGas"))
		})
	}
}

func TestMultiClient_dialWithRetry(t *testing.T) {
	t.Parallel()

	mc := MultiClient{
		chainName: "ethereum-testnet-sepolia",
		RetryConfig: RetryConfig{
			DialAttempts: 2,
			DialDelay:    time.Millisecond,
			DialTimeout:  time.Second,
		},
		lggr: logger.Test(t),
	}

	_, err := mc.dialWithRetry(RPC{Name: "htlc-ws", WSURL: "wxz://node/ws", PreferredURLScheme: URLSchemePreferenceWS})
	require.ErrorContains(t, err, `no known transport for URL scheme "wxz"`)
	require.ErrorContains(t, err, "failed to dial endpoint")

	_, err = mc.dialWithRetry(RPC{Name: "htlc-ws", PreferredURLScheme: URLSchemePreferenceWS})
	require.ErrorContains(t, err, `rpc "htlc-ws" prefers ws but has no ws url`)
}

func TestEnsureTimeout(t *testing.T) {
	t.Parallel()

	parent, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	parentDeadline, _ := parent.Deadline()

	tests := []struct {
		name string
		give context.Context //nolint:containedctx
		want time.Time
	}{
		{name: "keeps the caller deadline", give: parent, want: parentDeadline},
		{name: "applies the timeout otherwise", give: context.Background(), want: time.Now().Add(time.Minute)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx, cancel := ensureTimeout(tt.give, time.Minute)
			defer cancel()

			got, ok := ctx.Deadline()
			require.True(t, ok)
			assert.WithinDuration(t, tt.want, got, time.Second)
		})
	}
}

func TestMultiClient_reorderRPCs(t *testing.T) {
	t.Parallel()

	p, b0, b1, b2 := ethclient.NewClient(nil), ethclient.NewClient(nil), ethclient.NewClient(nil), ethclient.NewClient(nil)

	tests := []struct {
		name        string
		giveBackups []*ethclient.Client
		giveIndex   int
		wantPrimary *ethclient.Client
		wantBackups []*ethclient.Client
	}{
		{name: "first backup answered", giveBackups: []*ethclient.Client{b0, b1, b2}, giveIndex: 1, wantPrimary: b0, wantBackups: []*ethclient.Client{b1, b2, p}},
		{name: "middle backup answered", giveBackups: []*ethclient.Client{b0, b1, b2}, giveIndex: 2, wantPrimary: b1, wantBackups: []*ethclient.Client{b2, b0, p}},
		{name: "last backup answered", giveBackups: []*ethclient.Client{b0, b1, b2}, giveIndex: 3, wantPrimary: b2, wantBackups: []*ethclient.Client{b0, b1, p}},
		{name: "primary answered", giveBackups: []*ethclient.Client{b0, b1, b2}, giveIndex: 0, wantPrimary: p, wantBackups: []*ethclient.Client{b0, b1, b2}},
		{name: "no backups", giveBackups: nil, giveIndex: 1, wantPrimary: p, wantBackups: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mc := &MultiClient{Client: p, Backups: append([]*ethclient.Client(nil), tt.giveBackups...), lggr: logger.Test(t)}
			mc.reorderRPCs(tt.giveIndex)

			assert.Same(t, tt.wantPrimary, mc.Client)
			require.Len(t, mc.Backups, len(tt.wantBackups))
			for i, want := range tt.wantBackups {
				assert.Same(t, want, mc.Backups[i], "backup %d", i)
			}
		})
	}
}

func TestRPC_ToEndpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		give    RPC
		want    string
		wantErr string
	}{
		{name: "http preferred", give: RPC{HTTPURL: "http://a", WSURL: "ws://a", PreferredURLScheme: URLSchemePreferenceHTTP}, want: "http://a"},
		{name: "ws preferred", give: RPC{HTTPURL: "http://a", WSURL: "ws://a", PreferredURLScheme: URLSchemePreferenceWS}, want: "ws://a"},
		{name: "no preference uses http", give: RPC{HTTPURL: "http://a", WSURL: "ws://a"}, want: "http://a"},
		{name: "no preference falls back to ws", give: RPC{WSURL: "ws://a"}, want: "ws://a"},
		{name: "missing preferred url", give: RPC{Name: "x", HTTPURL: "http://a", PreferredURLScheme: URLSchemePreferenceWS}, wantErr: "has no ws url"},
		{name: "no url", give: RPC{}, wantErr: "no url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := tt.give.ToEndpoint()
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	pref, err := URLSchemePreferenceFromString("HTTPS")
	require.NoError(t, err)
	assert.Equal(t, URLSchemePreferenceHTTP, pref)
	_, err = URLSchemePreferenceFromString("grpc")
	require.Error(t, err)
}
