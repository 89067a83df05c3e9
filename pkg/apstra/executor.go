package apstra

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const maxResponseBytes = 16 << 20

// Response is a successful (2xx) controller answer. Body is nil when the
// controller sent nothing or something that is not JSON; delete endpoints
// routinely do.
type Response struct {
	StatusCode int
	Body       json.RawMessage
}

// Empty reports a degenerate success with no decodable payload.
func (r *Response) Empty() bool { return len(r.Body) == 0 }

// Executor performs exactly one authenticated request per call and
// classifies the result. It never retries.
type Executor struct {
	baseURL string
	session *Session
	http    *http.Client
	log     *slog.Logger
	tel     *telemetry
}

// NewExecutor binds an executor to a session. Both share httpClient.
func NewExecutor(baseURL string, session *Session, httpClient *http.Client, log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{
		baseURL: NormalizeBaseURL(baseURL),
		session: session,
		http:    httpClient,
		log:     log,
		tel:     newTelemetry(),
	}
}

// Do sends method to path with payload JSON-encoded (nil means no body).
//
// The error, when non-nil, is one of *AuthError, *RemoteError or
// *TransportError. An *AuthError means the resource request was not sent.
func (e *Executor) Do(ctx context.Context, method, path string, payload any) (*Response, error) {
	cred, err := e.session.Credential(ctx)
	if err != nil {
		return nil, err
	}

	ctx, span := e.tel.tracer.Start(ctx, "apstra "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("apstra.path", path),
		),
	)
	defer span.End()

	start := time.Now()
	resp, err := e.do(ctx, cred, method, path, payload)

	status := 0
	var remote *RemoteError
	if resp != nil {
		status = resp.StatusCode
	} else if errors.As(err, &remote) {
		status = remote.StatusCode
	}
	e.tel.observeRequest(ctx, method, status, err, time.Since(start))
	span.SetAttributes(attribute.Int("http.response.status_code", status))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcomeOf(err))
	}
	return resp, err
}

func (e *Executor) do(ctx context.Context, cred *Credential, method, path string, payload any) (*Response, error) {
	var body io.Reader = http.NoBody
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, &TransportError{Op: "encode request body", Err: err, Codec: true}
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, e.baseURL+path, body)
	if err != nil {
		return nil, &TransportError{Op: "build request", Err: err, Codec: true}
	}
	for k, v := range cred.Header() {
		req.Header[k] = v
	}

	resp, err := e.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransportError{Op: "read response " + method + " " + path, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		e.log.WarnContext(ctx, "apstra request rejected",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
		)
		return nil, &RemoteError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(raw)}
	}

	out := &Response{StatusCode: resp.StatusCode}
	trimmed := bytes.TrimSpace(raw)
	switch {
	case len(trimmed) == 0:
	case json.Valid(trimmed):
		out.Body = json.RawMessage(trimmed)
	default:
		e.log.DebugContext(ctx, "non-JSON success body treated as acknowledgement",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
		)
	}
	return out, nil
}
