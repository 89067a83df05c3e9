// Package apstra is a thin client for the Apstra fabric controller REST API.
//
// A Client owns one Session (the cached login token) and one Executor (one
// authenticated request per call, classified into a Response or a typed
// error). Each catalog method maps to a single controller endpoint, except
// CreateBlueprintFromTemplate and DeleteVirtualNetwork which first resolve a
// name to an id.
package apstra

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/bturcanu/apstra-mcp/pkg/types"
)

// Client exposes the operation catalog.
type Client struct {
	session *Session
	exec    *Executor
	log     *slog.Logger
}

// New validates cfg and builds a client with its own HTTP transport.
func New(cfg Config, log *slog.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return NewWithHTTPClient(cfg, NewHTTPClient(cfg), log), nil
}

// NewWithHTTPClient skips validation; tests use it to point at fakes.
func NewWithHTTPClient(cfg Config, httpClient *http.Client, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	session := NewSession(cfg, httpClient, log)
	return &Client{
		session: session,
		exec:    NewExecutor(cfg.BaseURL, session, httpClient, log),
		log:     log,
	}
}

// Session returns the client's session.
func (c *Client) Session() *Session { return c.session }

// Do exposes the executor for endpoints outside the catalog.
func (c *Client) Do(ctx context.Context, method, path string, payload any) (*Response, error) {
	return c.exec.Do(ctx, method, path, payload)
}

func (c *Client) getItems(ctx context.Context, path, op string, required bool) ([]Object, error) {
	resp, err := c.exec.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return decodeItems[Object](resp, op, required)
}

func (c *Client) getObject(ctx context.Context, path, op string) (Object, error) {
	resp, err := c.exec.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return decodeObject(resp, op)
}

func (c *Client) getDocument(ctx context.Context, path, op string) (json.RawMessage, error) {
	resp, err := c.exec.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return decodeDocument(resp, op)
}

func (c *Client) send(ctx context.Context, method, path, op string, payload any) (Object, error) {
	resp, err := c.exec.Do(ctx, method, path, payload)
	if err != nil {
		return nil, err
	}
	return decodeObject(resp, op)
}

// blueprintPath builds /api/blueprints/{id}[/suffix...] with escaped segments.
func blueprintPath(blueprintID string, suffix ...string) string {
	var b strings.Builder
	b.WriteString("/api/blueprints/")
	b.WriteString(url.PathEscape(blueprintID))
	for _, s := range suffix {
		b.WriteByte('/')
		b.WriteString(s)
	}
	return b.String()
}

func requireArg(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &types.ValidationError{Field: field, Reason: "is required"}
	}
	return nil
}
