/**
 * @description
 * This package provides a client for the bank-simulator API. It encapsulates the
 * logic for making HTTP requests to the bank's endpoints, handling request body
 * construction, and parsing the success/failure envelope.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, net/http, time: Standard Go libraries.
 */
package bankclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Every call carries a context and the HTTP client enforces a bounded timeout so
// a hung bank call cannot hold wallet row locks indefinitely.
const defaultTimeout = 10 * time.Second

// Client is a client for the bank-simulator API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a new bank-simulator API client.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// TransferRequest is the payload for POST /transfer.
type TransferRequest struct {
	AccessToken string `json:"accessToken"`
	Bank        string `json:"bank"`
	Amount      int64  `json:"amount"`
	Name        string `json:"name"`
	Target      string `json:"target"`
}

// TransferResult carries the transaction ids written on each side of a transfer.
type TransferResult struct {
	DepositID  string `json:"depositId"`
	WithdrawID string `json:"withdrawId"`
}

// ValidRequest is the payload for POST /valid.
type ValidRequest struct {
	UniqueID string `json:"uniqueId"`
	Account  string `json:"account"`
	Bank     string `json:"bank"`
}

// ValidResult carries the access token issued for a verified account.
type ValidResult struct {
	AccessToken string `json:"accessToken"`
}

// SearchRequest is the payload for POST /search.
type SearchRequest struct {
	AccessToken string `json:"accessToken"`
	ID          string `json:"id"`
}

// SearchResult carries the fields the wallet service verifies a transfer against.
type SearchResult struct {
	Amount   int64  `json:"amount"`
	TargetID string `json:"targetId"`
}

// CreateAccountRequest is the payload for POST /create.
type CreateAccountRequest struct {
	BankID   string `json:"bankId"`
	UniqueID string `json:"uniqueId"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// CreateAccountResult carries the generated account number and its access token.
type CreateAccountResult struct {
	Account     string `json:"account"`
	AccessToken string `json:"accessToken"`
}

// ErrorResponse represents a failure envelope from the bank API.
type ErrorResponse struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *ErrorResponse) Error() string {
	return fmt.Sprintf("bank api error: %s - %s", e.Code, e.Message)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Transfer requests a movement between two bank accounts and returns the
// transaction ids written on each side.
func (c *Client) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	var result TransferResult
	if err := c.post(ctx, "/transfer", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Valid confirms account ownership and returns a fresh access token.
func (c *Client) Valid(ctx context.Context, req ValidRequest) (*ValidResult, error) {
	var result ValidResult
	if err := c.post(ctx, "/valid", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Search reads a bank transaction's amount and counterparty for verification.
func (c *Client) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	var result SearchResult
	if err := c.post(ctx, "/search", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateAccount opens a new bank account and returns its number and token.
func (c *Client) CreateAccount(ctx context.Context, req CreateAccountRequest) (*CreateAccountResult, error) {
	var result CreateAccountResult
	if err := c.post(ctx, "/create", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute %s request: %w", path, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", path, err)
	}

	var env envelope
	if err := json.Unmarshal(bodyBytes, &env); err != nil {
		log.Printf("level=warn component=bank_client op=%s status=%d msg=\"unparsable response body\"", path, resp.StatusCode)
		return fmt.Errorf("failed to decode %s response (status %d)", path, resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !env.Success {
		errResp := &ErrorResponse{StatusCode: resp.StatusCode, Code: "UNKNOWN", Message: "unknown bank api error"}
		if env.Error != nil {
			errResp.Code = env.Error.Code
			errResp.Message = env.Error.Message
		}
		log.Printf("level=warn component=bank_client op=%s status=%d code=%q msg=%q", path, resp.StatusCode, errResp.Code, errResp.Message)
		return errResp
	}

	if len(env.Data) == 0 {
		return fmt.Errorf("empty %s response body", path)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode %s response data: %w", path, err)
	}
	return nil
}
