// Package types defines records shared by the tool surfaces and the audit trail.
package types

import (
	"encoding/json"
	"time"
)

// ──────────────────────────────────────────────────────────────────────────────
// ToolInvocation: one tool call as written to the audit trail.
// ──────────────────────────────────────────────────────────────────────────────

type ToolInvocation struct {
	EventID    string          `json:"event_id"`
	AgentID    string          `json:"agent_id"`
	Tool       string          `json:"tool"`
	Params     json.RawMessage `json:"params,omitempty"`
	ReceivedAt time.Time       `json:"received_at"`

	Outcome InvocationOutcome `json:"outcome"`

	Hash     string `json:"hash"`
	PrevHash string `json:"prev_hash"`
}

// InvocationOutcome is the part of a result that goes into the hash chain.
// Controller output is represented by its digest only.
type InvocationOutcome struct {
	Status     string `json:"status"` // "success" | "error"
	ErrorKind  string `json:"error_kind,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
	Error      string `json:"error,omitempty"`
	OutputHash string `json:"output_hash,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}
