// Package client calls the HTTP tool surface of apstra-connector.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bturcanu/apstra-mcp/pkg/connectors"
	"github.com/bturcanu/apstra-mcp/pkg/types"
	"github.com/google/uuid"
)

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 90 * time.Second},
	}
}

// Call runs tool with params encoded as JSON. A tool failure is a normal
// response with Status "error"; the returned error covers only the HTTP
// exchange itself.
func (c *Client) Call(ctx context.Context, tool string, params any) (*connectors.ExecResponse, error) {
	var raw json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("client.Call: encode params: %w", err)
		}
		raw = b
	}
	return c.Exec(ctx, connectors.ExecRequest{Tool: tool, Params: raw})
}

// Exec sends req as is, assigning an event id when it has none.
func (c *Client) Exec(ctx context.Context, req connectors.ExecRequest) (*connectors.ExecResponse, error) {
	if req.EventID == "" {
		req.EventID = uuid.NewString()
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/exec", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-API-Key", c.apiKey)

	var resp connectors.ExecResponse
	if err := c.doJSON(httpReq, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Tools lists the catalog served by the connector.
func (c *Client) Tools(ctx context.Context) ([]connectors.ToolSpec, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/tools", http.NoBody)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("X-API-Key", c.apiKey)
	var out struct {
		Tools []connectors.ToolSpec `json:"tools"`
	}
	if err := c.doJSON(httpReq, &out); err != nil {
		return nil, err
	}
	return out.Tools, nil
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr types.APIError
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Message != "" {
			apiErr.HTTPCode = resp.StatusCode
			return &apiErr
		}
		return fmt.Errorf("http status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return err
	}
	return nil
}
