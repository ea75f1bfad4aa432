package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/roach88/cadence/internal/api"
	"github.com/roach88/cadence/internal/metrics"
	"github.com/roach88/cadence/internal/store"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
	Details any
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Client talks to a cadence server.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// CreateChains starts chains for a target.
func (c *Client) CreateChains(ctx context.Context, req api.CreateRequest) (api.CreateResponse, error) {
	var resp api.CreateResponse
	err := c.do(ctx, http.MethodPost, "/v1/chains", req, &resp)
	return resp, err
}

// TerminateChain stops a chain and returns its final state.
func (c *Client) TerminateChain(ctx context.Context, id string) (store.Chain, error) {
	var resp api.TerminateResponse
	err := c.do(ctx, http.MethodDelete, "/v1/chains/"+url.PathEscape(id), nil, &resp)
	return resp.Chain, err
}

// ListChains lists chains, optionally filtered by status.
func (c *Client) ListChains(ctx context.Context, status string) ([]store.Chain, error) {
	path := "/v1/chains"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}
	var resp api.ListResponse
	err := c.do(ctx, http.MethodGet, path, nil, &resp)
	return resp.Chains, err
}

// Stats returns the server's aggregate counters.
func (c *Client) Stats(ctx context.Context) (metrics.Stats, error) {
	var resp metrics.Stats
	err := c.do(ctx, http.MethodGet, "/v1/stats", nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to cadence server: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiResp api.ErrorResponse
		if json.Unmarshal(data, &apiResp) != nil || apiResp.Error == "" {
			apiResp.Error = strings.TrimSpace(string(data))
		}
		return &APIError{Status: resp.StatusCode, Message: apiResp.Error, Details: apiResp.Details}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// clientError maps a client error to an ExitError.
func clientError(f *OutputFormatter, what string, err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		code := ErrCodeRejected
		if apiErr.Status == http.StatusNotFound {
			code = ErrCodeNotFound
		}
		_ = f.Error(code, apiErr.Message, apiErr.Details)
		return WrapExitError(ExitFailure, what, err)
	}
	_ = f.Error(ErrCodeUnreachable, err.Error(), nil)
	return WrapExitError(ExitCommandError, what, err)
}
