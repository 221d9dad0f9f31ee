// Package vault provides a thin Go client for the amanad JSON-RPC surface.
package vault

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client invokes vault methods against a running node. It is safe for
// concurrent use.
type Client struct {
	endpoint  string
	authToken string
	http      *http.Client
}

// Option customises the client.
type Option func(*Client)

// WithAuthToken attaches a bearer token to every request, required for admin
// methods.
func WithAuthToken(token string) Option {
	return func(c *Client) { c.authToken = strings.TrimSpace(token) }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.http = httpClient
		}
	}
}

func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint: strings.TrimSpace(endpoint),
		http:     &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Call invokes a raw JSON-RPC method and decodes the result into out. Pass a
// nil params for methods without parameters.
func (c *Client) Call(ctx context.Context, method string, params interface{}, out interface{}) error {
	wrapped := []interface{}{}
	if params != nil {
		wrapped = append(wrapped, params)
	}
	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  wrapped,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var decoded struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if decoded.Error != nil {
		return decoded.Error
	}
	if out != nil && len(decoded.Result) > 0 {
		return json.Unmarshal(decoded.Result, out)
	}
	return nil
}

// OperationResult mirrors the RPC response for mutating calls.
type OperationResult struct {
	Receipt json.RawMessage `json:"receipt"`
	Amount  string          `json:"amount,omitempty"`
}

// Deposit pools assets for caller and mints shares to receiver. Returns the
// minted share count as a decimal string.
func (c *Client) Deposit(ctx context.Context, caller, receiver, amount string) (*OperationResult, error) {
	var result OperationResult
	err := c.Call(ctx, "vault_deposit", map[string]string{
		"caller":   caller,
		"receiver": receiver,
		"amount":   amount,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Withdraw redeems the requested asset amount from owner's shares.
func (c *Client) Withdraw(ctx context.Context, caller, owner, receiver, amount string) (*OperationResult, error) {
	var result OperationResult
	err := c.Call(ctx, "vault_withdraw", map[string]string{
		"caller":   caller,
		"owner":    owner,
		"receiver": receiver,
		"amount":   amount,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Redeem burns an exact share count.
func (c *Client) Redeem(ctx context.Context, caller, owner, receiver, shares string) (*OperationResult, error) {
	var result OperationResult
	err := c.Call(ctx, "vault_redeem", map[string]string{
		"caller":   caller,
		"owner":    owner,
		"receiver": receiver,
		"shares":   shares,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ClaimRewards pays out the caller's accrued reward tokens.
func (c *Client) ClaimRewards(ctx context.Context, caller, recipient string) (*OperationResult, error) {
	var result OperationResult
	err := c.Call(ctx, "vault_claimRewards", map[string]string{
		"caller":    caller,
		"recipient": recipient,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// SharesOf reports the holder's share balance as a decimal string.
func (c *Client) SharesOf(ctx context.Context, address string) (string, error) {
	var shares string
	err := c.Call(ctx, "vault_sharesOf", map[string]string{"address": address}, &shares)
	return shares, err
}

// Claimable reports the holder's pending reward balance.
func (c *Client) Claimable(ctx context.Context, address string) (string, error) {
	var amount string
	err := c.Call(ctx, "vault_claimable", map[string]string{"address": address}, &amount)
	return amount, err
}

// TotalAssets reports the vault's controlled asset value.
func (c *Client) TotalAssets(ctx context.Context) (string, error) {
	var total string
	err := c.Call(ctx, "vault_totalAssets", nil, &total)
	return total, err
}
