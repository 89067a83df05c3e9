// Package auth identifies the calling agent on the HTTP tool surface.
package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/bturcanu/apstra-mcp/pkg/types"
)

type contextKey string

const agentKey contextKey = "agent_id"

// AgentFromContext extracts the authenticated agent ID from the context.
func AgentFromContext(ctx context.Context) string {
	v, _ := ctx.Value(agentKey).(string)
	return v
}

// WithAgent returns a context carrying agentID. The stdio surface, which has
// no API keys, uses it to attribute calls to a configured agent.
func WithAgent(ctx context.Context, agentID string) context.Context {
	return context.WithValue(ctx, agentKey, agentID)
}

// APIKeyAuth returns middleware that validates API keys and sets agent context.
func APIKeyAuth(keys *KeyStore) func(http.Handler) http.Handler {
	skipPaths := map[string]bool{
		"/healthz": true,
		"/readyz":  true,
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				// Also check Authorization: Bearer
				if bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
					apiKey = strings.TrimSpace(bearer)
				}
			}

			if apiKey == "" {
				types.ErrUnauthorized("missing API key").WriteJSON(w)
				return
			}

			agentID, ok := keys.Lookup(apiKey)
			if !ok {
				types.ErrUnauthorized("invalid API key").WriteJSON(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAgent(r.Context(), agentID)))
		})
	}
}
