// Package sdk serves a connectors.Connector over HTTP.
package sdk

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/bturcanu/apstra-mcp/pkg/auth"
	"github.com/bturcanu/apstra-mcp/pkg/connectors"
	"github.com/bturcanu/apstra-mcp/pkg/types"
	"github.com/google/uuid"
)

const (
	maxBodyBytes   = 1 << 20
	defaultTimeout = 60 * time.Second
)

type Executor interface {
	Exec(context.Context, connectors.ExecRequest) connectors.ExecResponse
}

// Lister exposes the tool catalog.
type Lister interface {
	List() []connectors.ToolSpec
}

type Config struct {
	// InternalToken, when set, must match the X-Internal-Token header.
	InternalToken string
	// Timeout bounds one call, login included. Zero means 60s.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Handler serves POST /exec. A missing event id is assigned; an
// authenticated agent overrides any agent id in the body.
func Handler(executor Executor, cfg Config) http.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if !internalTokenOK(r, cfg.InternalToken) {
			types.ErrUnauthorized("invalid internal token").WriteJSON(w)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var req connectors.ExecRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			types.ErrBadRequest("invalid body").WriteJSON(w)
			return
		}
		if req.Tool == "" {
			types.ErrValidation(&types.ValidationError{Field: "tool", Reason: "is required"}).WriteJSON(w)
			return
		}
		if req.EventID == "" {
			req.EventID = uuid.NewString()
		}
		if agent := auth.AgentFromContext(r.Context()); agent != "" {
			req.AgentID = agent
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		resp := executor.Exec(ctx, req)

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Event-ID", req.EventID)
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.Error("encode response failed", "event_id", req.EventID, "error", err)
		}
	}
}

// ToolsHandler serves GET /v1/tools.
func ToolsHandler(lister Lister, cfg Config) http.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if !internalTokenOK(r, cfg.InternalToken) {
			types.ErrUnauthorized("invalid internal token").WriteJSON(w)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]any{"tools": lister.List()}); err != nil {
			log.Error("encode tools failed", "error", err)
		}
	}
}

func internalTokenOK(r *http.Request, token string) bool {
	if token == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(r.Header.Get("X-Internal-Token")), []byte(token)) == 1
}
