package txn

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/protocol"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

// DefaultLedgerURL is the public Supra testnet RPC.
const DefaultLedgerURL = "https://rpc-testnet.supra.com/rpc/v1"

const maxLedgerBody = 1 << 20

// SequenceSource yields the next sequence number of an account.
type SequenceSource interface {
	SequenceNumber(ctx context.Context, account Address) (uint64, error)
}

// LedgerClient reads account state from a Supra RPC node.
type LedgerClient struct {
	base string
	http *http.Client
}

func NewLedgerClient(baseURL string, timeout time.Duration) *LedgerClient {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = DefaultLedgerURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &LedgerClient{base: base, http: &http.Client{Timeout: timeout}}
}

func (c *LedgerClient) BaseURL() string {
	return c.base
}

// SequenceNumber fetches GET {base}/accounts/{address}. Every failure wraps
// protocol.ErrSequenceFetchFailed and nothing is retried.
func (c *LedgerClient) SequenceNumber(ctx context.Context, account Address) (uint64, error) {
	url := c.base + "/accounts/" + account.String()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", protocol.ErrSequenceFetchFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", protocol.ErrSequenceFetchFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxLedgerBody))
	if err != nil {
		return 0, fmt.Errorf("%w: read body: %v", protocol.ErrSequenceFetchFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("%w: %s returned %d", protocol.ErrSequenceFetchFailed, url, resp.StatusCode)
	}
	if !gjson.ValidBytes(body) {
		return 0, fmt.Errorf("%w: account reply is not json", protocol.ErrSequenceFetchFailed)
	}

	field := gjson.GetBytes(body, "sequence_number")
	var seq uint64
	switch field.Type {
	case gjson.String:
		seq, err = strconv.ParseUint(strings.TrimSpace(field.Str), 10, 64)
	case gjson.Number:
		seq, err = strconv.ParseUint(field.Raw, 10, 64)
	default:
		err = fmt.Errorf("sequence_number missing")
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", protocol.ErrSequenceFetchFailed, err)
	}
	log.Debug().Str("account", account.String()).Uint64("sequence", seq).Msg("txn: sequence fetched")
	return seq, nil
}
