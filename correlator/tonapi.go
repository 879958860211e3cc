package correlator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/hashlock-labs/htlc-swap/pkg/logger"
)

// DefaultTonAPIURL is the tonapi.io testnet endpoint.
const DefaultTonAPIURL = "https://testnet.tonapi.io"

// TonAPIConfig configures the tonapi.io transaction source.
type TonAPIConfig struct {
	// BaseURL defaults to DefaultTonAPIURL.
	BaseURL string
	// Token is sent as a bearer token when set.
	Token string

	ConnTimeout  time.Duration
	ReadTimeout  time.Duration
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	RetryMax     int
}

// TonAPISource reads account transactions from the tonapi.io REST API.
type TonAPISource struct {
	baseURL    string
	token      string
	httpClient *retryablehttp.Client
	lggr       logger.Logger
}

var _ TxSource = (*TonAPISource)(nil)

// NewTonAPISource returns a source for cfg. Transport errors and 5xx/429 answers are retried
// with jittered linear backoff.
func NewTonAPISource(cfg TonAPIConfig, lggr logger.Logger) *TonAPISource {
	if lggr == nil {
		lggr = logger.Nop()
	}
	lggr = lggr.Named("tonapi")

	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultTonAPIURL
	}

	return &TonAPISource{
		baseURL:    base,
		token:      cfg.Token,
		httpClient: newHTTPClient(cfg, lggr),
		lggr:       lggr,
	}
}

func newHTTPClient(cfg TonAPIConfig, lggr logger.Logger) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.HTTPClient = &http.Client{}
	c.Backoff = retryablehttp.LinearJitterBackoff
	c.CheckRetry = retryablehttp.ErrorPropagatedRetryPolicy
	c.Logger = &leveledLogger{lggr}

	if cfg.RetryWaitMin > 0 {
		c.RetryWaitMin = cfg.RetryWaitMin
	}
	if cfg.RetryWaitMax > 0 {
		c.RetryWaitMax = cfg.RetryWaitMax
	}
	if cfg.RetryMax > 0 {
		c.RetryMax = cfg.RetryMax
	}
	if cfg.ConnTimeout > 0 || cfg.ReadTimeout > 0 {
		c.HTTPClient.Transport = transportWithTimeout(cfg.ConnTimeout, cfg.ReadTimeout)
	}

	return c
}

func transportWithTimeout(connTimeout, readTimeout time.Duration) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	if connTimeout > 0 {
		t.DialContext = (&net.Dialer{Timeout: connTimeout, KeepAlive: 30 * time.Second}).DialContext
	}
	if readTimeout > 0 {
		t.ResponseHeaderTimeout = readTimeout
	}

	return t
}

type transactionsResponse struct {
	Transactions []Transaction `json:"transactions"`
}

// Transactions implements TxSource.
func (s *TonAPISource) Transactions(ctx context.Context, account string, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 1
	}
	u := fmt.Sprintf("%s/v2/blockchain/accounts/%s/transactions?limit=%s",
		s.baseURL, url.PathEscape(account), strconv.Itoa(limit))

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tonapi: list transactions of %s: %w", account, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

		return nil, fmt.Errorf("tonapi: list transactions of %s: status %d: %s",
			account, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out transactionsResponse
	if err = json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("tonapi: malformed transactions response: %w", err)
	}
	s.lggr.Debugw("Fetched transactions", "account", account, "count", len(out.Transactions))

	return out.Transactions, nil
}

// leveledLogger adapts logger.Logger to retryablehttp.LeveledLogger.
type leveledLogger struct {
	lggr logger.Logger
}

func (l *leveledLogger) Error(msg string, keysAndValues ...any) { l.lggr.Errorw(msg, keysAndValues...) }
func (l *leveledLogger) Info(msg string, keysAndValues ...any)  { l.lggr.Debugw(msg, keysAndValues...) }
func (l *leveledLogger) Debug(msg string, keysAndValues ...any) { l.lggr.Debugw(msg, keysAndValues...) }
func (l *leveledLogger) Warn(msg string, keysAndValues ...any)  { l.lggr.Warnw(msg, keysAndValues...) }
