package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"printsmart/pkg/api"
)

// PrintClient handles API calls to the printsmart controller.
type PrintClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewPrintClient creates a new client with the given base URL and token.
func NewPrintClient(baseURL, token string) *PrintClient {
	return &PrintClient{
		BaseURL: baseURL,
		Token:   token,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError represents an error response from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

// do sends one request and decodes the response into out when non-nil.
func (c *PrintClient) do(method, path string, reqBody, out interface{}) error {
	var body io.Reader
	if reqBody != nil {
		bodyBytes, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(bodyBytes)
	}

	httpReq, err := http.NewRequest(method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if c.Token != "" {
		httpReq.Header.Add("Authorization", fmt.Sprintf("Bearer %s", c.Token))
	}
	httpReq.Header.Add("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}

	return nil
}

// CreateAccount sends POST /accounts. No auth needed.
func (c *PrintClient) CreateAccount(req api.CreateAccountRequest) (*api.CreateAccountResponse, error) {
	var result api.CreateAccountResponse
	if err := c.do(http.MethodPost, "/accounts", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetBalance sends GET /balance.
func (c *PrintClient) GetBalance() (*api.BalanceResponse, error) {
	var result api.BalanceResponse
	if err := c.do(http.MethodGet, "/balance", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Topup sends POST /balance/topup.
func (c *PrintClient) Topup(req api.TopupRequest) (*api.BalanceResponse, error) {
	var result api.BalanceResponse
	if err := c.do(http.MethodPost, "/balance/topup", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SubmitJob sends POST /jobs.
func (c *PrintClient) SubmitJob(req api.SubmitJobRequest) (*api.SubmitJobResponse, error) {
	var result api.SubmitJobResponse
	if err := c.do(http.MethodPost, "/jobs", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetJob sends GET /jobs/{id}.
func (c *PrintClient) GetJob(jobID string) (*api.JobResponse, error) {
	var result api.JobResponse
	if err := c.do(http.MethodGet, fmt.Sprintf("/jobs/%s", jobID), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetJobHistory sends GET /jobs/{id}/history.
func (c *PrintClient) GetJobHistory(jobID string) (*api.JobHistoryResponse, error) {
	var result api.JobHistoryResponse
	if err := c.do(http.MethodGet, fmt.Sprintf("/jobs/%s/history", jobID), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListPrinters sends GET /printers.
func (c *PrintClient) ListPrinters(includeInactive bool) ([]api.PrinterResponse, error) {
	path := "/printers"
	if includeInactive {
		path += "?all=true"
	}
	var result []api.PrinterResponse
	if err := c.do(http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// ListRefunds sends GET /refunds.
func (c *PrintClient) ListRefunds() (*api.ListRefundsResponse, error) {
	var result api.ListRefundsResponse
	if err := c.do(http.MethodGet, "/refunds", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
