package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/brojonat/chaintrail/service/ledger"
	"github.com/brojonat/chaintrail/service/metrics"
)

// Client is the HTTP client for an Esplora ledger API (blockstream.info,
// mempool.space or a self-hosted electrs). Every request passes through the
// pacing gate first.
type Client struct {
	baseURL    string
	httpClient *http.Client
	pacer      *Pacer
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

var _ ledger.Client = (*Client)(nil)

// NewClient creates a new Esplora client.
// A nil pacer disables pacing; a nil metrics records nothing.
func NewClient(baseURL string, httpClient *http.Client, pacer *Pacer, m *metrics.Metrics, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if pacer == nil {
		pacer = NewPacer(0, nil)
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		pacer:      pacer,
		metrics:    m,
		logger:     logger,
	}
}

// GetAddressSummary fetches the funded/spent totals of an address.
func (c *Client) GetAddressSummary(ctx context.Context, address string) (*ledger.AddressSummary, error) {
	var summary ledger.AddressSummary
	if err := c.get(ctx, addressEndpoint, "/address/"+url.PathEscape(address), &summary); err != nil {
		return nil, err
	}
	if summary.Address == "" {
		summary.Address = address
	}
	return &summary, nil
}

// GetAddressTransactions fetches the most recent transactions of an address,
// newest first, as Esplora orders them.
func (c *Client) GetAddressTransactions(ctx context.Context, address string) ([]*ledger.Transaction, error) {
	var txs []*ledger.Transaction
	if err := c.get(ctx, addressTxsEndpoint, "/address/"+url.PathEscape(address)+"/txs", &txs); err != nil {
		return nil, err
	}
	return txs, nil
}

// GetTransaction fetches a transaction by id.
func (c *Client) GetTransaction(ctx context.Context, txid string) (*ledger.Transaction, error) {
	var tx ledger.Transaction
	if err := c.get(ctx, txEndpoint, "/tx/"+url.PathEscape(txid), &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// GetOutspends fetches the spend status of every output of a transaction,
// aligned by output index.
func (c *Client) GetOutspends(ctx context.Context, txid string) ([]*ledger.OutSpend, error) {
	var outspends []*ledger.OutSpend
	if err := c.get(ctx, outspendsEndpoint, "/tx/"+url.PathEscape(txid)+"/outspends", &outspends); err != nil {
		return nil, err
	}
	return outspends, nil
}

// GetTipHeight returns the height of the best block the server knows. It is
// used as a reachability check.
func (c *Client) GetTipHeight(ctx context.Context) (int64, error) {
	var height int64
	if err := c.get(ctx, tipEndpoint, "/blocks/tip/height", &height); err != nil {
		return 0, err
	}
	return height, nil
}

// get waits on the pacing gate, performs the request and records metrics.
func (c *Client) get(ctx context.Context, ep endpoint, path string, out interface{}) error {
	waited, err := c.pacer.Wait(ctx)
	c.metrics.RecordPacingWait(waited.Seconds())
	if err != nil {
		return &FetchError{Op: ep.method, Code: ep.transportCode, Err: err}
	}

	start := time.Now()
	err = c.do(ctx, ep, path, out)
	duration := time.Since(start).Seconds()

	status := "success"
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		status = "not_found"
	case err != nil:
		status = "error"
	}
	c.metrics.RecordLedgerCall(ep.method, status, duration)

	if err != nil {
		c.logger.DebugContext(ctx, "ledger request failed",
			"method", ep.method,
			"path", path,
			"error", err,
		)
		return err
	}

	c.logger.DebugContext(ctx, "ledger request",
		"method", ep.method,
		"path", path,
		"waited", waited,
		"duration_seconds", duration,
	)
	return nil
}

func (c *Client) do(ctx context.Context, ep endpoint, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return &FetchError{Op: ep.method, Code: ep.transportCode, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &FetchError{Op: ep.method, Code: ep.transportCode, Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(ep, resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &FetchError{Op: ep.method, Code: ep.transportCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

// parseErrorResponse turns a non-200 response into a FetchError. Esplora
// answers with plain text ("Transaction not found"); JSON {"error": ...}
// bodies from proxies are understood too. 404 and 400 mean the ledger has no
// such object.
func (c *Client) parseErrorResponse(ep endpoint, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	msg := strings.TrimSpace(string(body))
	var errResp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		msg = errResp.Error
	}

	var err error
	switch resp.StatusCode {
	case http.StatusNotFound, http.StatusBadRequest:
		err = fmt.Errorf("%w: %s", ledger.ErrNotFound, msg)
	default:
		err = fmt.Errorf("request failed: %s", msg)
	}

	return &FetchError{Op: ep.method, Code: ep.statusCode, StatusCode: resp.StatusCode, Err: err}
}
