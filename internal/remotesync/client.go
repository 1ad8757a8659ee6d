// Package remotesync mirrors the catalog and sales to a remote full-replace
// endpoint (a spreadsheet web app). The endpoint has no transactions and no
// merge: the last full-table write wins.
package remotesync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/wholesale-pos/wholesale-pos/internal/catalog"
	"github.com/wholesale-pos/wholesale-pos/internal/ledger"
)

const (
	defaultTimeout  = 20 * time.Second
	maxResponseSize = 8 << 20
	// pushContentType avoids a CORS preflight on script endpoints.
	pushContentType = "text/plain;charset=utf-8"
)

// Client speaks the endpoint wire protocol. Each call is bounded by the
// configured timeout.
type Client struct {
	http    *http.Client
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// ClientConfig groups optional client settings.
type ClientConfig struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *slog.Logger
}

// NewClient builds a Client. Redirects are followed, which script
// deployments rely on.
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{http: httpClient, timeout: timeout, logger: logger, now: time.Now}
}

// Pull fetches the remote product list. A cache-busting query parameter is
// appended so intermediaries never serve a stale sheet.
func (c *Client) Pull(ctx context.Context, endpoint string) ([]catalog.Product, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, &NetworkError{Err: fmt.Errorf("parse endpoint: %w", err)}
	}
	q := u.Query()
	q.Set("t", strconv.FormatInt(c.now().UnixMilli(), 10))
	u.RawQuery = q.Encode()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &PermissionError{StatusCode: resp.StatusCode}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &NetworkError{StatusCode: resp.StatusCode}
	}
	return DecodeInventory(body)
}

// PushInventory replaces the remote product table with products.
func (c *Client) PushInventory(ctx context.Context, endpoint string, products []catalog.Product) error {
	return c.post(ctx, endpoint, ActionUpdateInventory, inventoryPayload{
		Action:    ActionUpdateInventory,
		Inventory: nonNil(products),
	})
}

// PushSale appends sale remotely and replaces the product table.
func (c *Client) PushSale(ctx context.Context, endpoint string, sale ledger.Sale, products []catalog.Product) error {
	return c.post(ctx, endpoint, ActionRecordSale, salePayload{
		Action:    ActionRecordSale,
		Sale:      sale,
		Inventory: nonNil(products),
	})
}

// post delivers a push. The endpoint's reply is opaque to the protocol, so
// only transport failures are errors; unexpected statuses are logged.
func (c *Client) post(ctx context.Context, endpoint, action string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("remotesync: encode %s: %w", action, err)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return &NetworkError{Err: err}
	}
	req.Header.Set("Content-Type", pushContentType)
	resp, err := c.http.Do(req)
	if err != nil {
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
	if resp.StatusCode >= 300 {
		c.logger.Warn("remote push answered with unexpected status",
			slog.String("action", action),
			slog.Int("status", resp.StatusCode))
	}
	return nil
}

func nonNil(products []catalog.Product) []catalog.Product {
	if products == nil {
		return []catalog.Product{}
	}
	return products
}
