package apstra

import (
	"errors"

	aos "github.com/bturcanu/apstra-mcp/pkg/apstra"
	"github.com/bturcanu/apstra-mcp/pkg/connectors"
)

// ClassifyError maps client errors to the tool-call error kinds.
func ClassifyError(err error) connectors.ErrorInfo {
	var (
		authErr      *aos.AuthError
		remoteErr    *aos.RemoteError
		transportErr *aos.TransportError
		notFoundErr  *aos.NotFoundError
	)
	switch {
	case errors.As(err, &authErr):
		return connectors.ErrorInfo{Kind: connectors.KindAuth, StatusCode: authErr.StatusCode, Body: authErr.Body}
	case errors.As(err, &remoteErr):
		return connectors.ErrorInfo{
			Kind:       connectors.KindRemote,
			StatusCode: remoteErr.StatusCode,
			Body:       remoteErr.Body,
			Retryable:  remoteErr.Retryable(),
		}
	case errors.As(err, &transportErr):
		return connectors.ErrorInfo{Kind: connectors.KindTransport, Retryable: transportErr.Retryable()}
	case errors.As(err, &notFoundErr):
		return connectors.ErrorInfo{Kind: connectors.KindNotFound}
	default:
		return connectors.DefaultClassifier(err)
	}
}
