// Package connectors defines the uniform tool-call envelope and the registry
// that dispatches calls to tool handlers.
package connectors

import (
	"context"
	"encoding/json"
)

// Result statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Error kinds carried in ErrorInfo.Kind.
const (
	KindAuth            = "auth"
	KindRemote          = "remote"
	KindTransport       = "transport"
	KindNotFound        = "not_found"
	KindInvalidArgument = "invalid_argument"
	KindUnknownTool     = "unknown_tool"
	KindInternal        = "internal"
)

// Connector executes a tool call. Failures are reported in the response,
// never as a Go error.
type Connector interface {
	Exec(ctx context.Context, req ExecRequest) ExecResponse
}

// ExecRequest is one tool call.
type ExecRequest struct {
	EventID string          `json:"event_id,omitempty"`
	AgentID string          `json:"agent_id,omitempty"`
	Tool    string          `json:"tool"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// ExecResponse is the normalized result of a tool call.
type ExecResponse struct {
	Status     string          `json:"status"` // "success" | "error"
	OutputJSON json.RawMessage `json:"output_json,omitempty"`
	Error      string          `json:"error,omitempty"`
	ErrorInfo  *ErrorInfo      `json:"error_info,omitempty"`
}

// OK reports a successful call.
func (r ExecResponse) OK() bool { return r.Status == StatusSuccess }

// ErrorInfo classifies a failed call.
type ErrorInfo struct {
	Kind       string `json:"kind"`
	StatusCode int    `json:"status_code,omitempty"`
	Body       string `json:"body,omitempty"`
	Retryable  bool   `json:"retryable"`
}

// ToolSpec describes a tool to callers: its name, a human description, the
// JSON Schema of its params and behavioural hints.
type ToolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
	ReadOnly    bool            `json:"read_only"`
	Destructive bool            `json:"destructive"`
}

// HandlerFunc runs a tool with raw params and returns a JSON-encodable
// output.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (any, error)

// Tool binds a spec to its handler.
type Tool struct {
	Spec    ToolSpec
	Handler HandlerFunc
}
