// Package macross is a Go client for the macross-server HTTP API.
package macross

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client provides a Go SDK for interacting with the macross-server API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new macross API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("macross API: %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Message)
}

// Strategies lists the strategy names the server can run.
func (c *Client) Strategies(ctx context.Context) ([]string, error) {
	var resp StrategiesResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/strategies", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Strategies, nil
}

// Symbols lists the symbols stored for market. An empty market uses the
// server default.
func (c *Client) Symbols(ctx context.Context, market string) ([]string, error) {
	path := "/api/v1/symbols"
	if market != "" {
		path += "?market=" + url.QueryEscape(market)
	}
	var resp SymbolsResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Symbols, nil
}

// RunBacktest runs a backtest on the server and returns its result.
func (c *Client) RunBacktest(ctx context.Context, req BacktestRequest) (*Backtest, error) {
	var res Backtest
	if err := c.do(ctx, http.MethodPost, "/api/v1/backtests", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetBacktest fetches a previously run backtest by run ID.
func (c *Client) GetBacktest(ctx context.Context, runID string) (*Backtest, error) {
	var res Backtest
	if err := c.do(ctx, http.MethodGet, "/api/v1/backtests/"+url.PathEscape(runID), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// BlotterCSV downloads the blotter of a run as CSV.
func (c *Client) BlotterCSV(ctx context.Context, runID string) ([]byte, error) {
	return c.raw(ctx, "/api/v1/backtests/"+url.PathEscape(runID)+"/blotter.csv")
}

// LedgerCSV downloads the ledger of a run as CSV.
func (c *Client) LedgerCSV(ctx context.Context, runID string) ([]byte, error) {
	return c.raw(ctx, "/api/v1/backtests/"+url.PathEscape(runID)+"/ledger.csv")
}

// Optimize runs a window grid search on the server.
func (c *Client) Optimize(ctx context.Context, req OptimizeRequest) (*OptimizeResponse, error) {
	var res OptimizeResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/optimize", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

func (c *Client) raw(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, decodeError(resp)
	}
	return io.ReadAll(resp.Body)
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var er ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err == nil {
		apiErr.Message = er.Error
	}
	return apiErr
}
