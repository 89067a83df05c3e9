package apstra

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/bturcanu/apstra-mcp/pkg/apstra"

// Outcome labels shared by spans and metrics.
const (
	outcomeSuccess   = "success"
	outcomeRemote    = "remote_error"
	outcomeTransport = "transport_error"
	outcomeAuth      = "auth_error"
)

type telemetry struct {
	tracer   trace.Tracer
	requests metric.Int64Counter
	duration metric.Float64Histogram
	logins   metric.Int64Counter
}

// newTelemetry binds to the global providers installed by pkg/otel. Until
// Setup runs those are no-ops.
func newTelemetry() *telemetry {
	meter := otel.Meter(instrumentationName)
	t := &telemetry{tracer: otel.Tracer(instrumentationName)}

	var err error
	t.requests, err = meter.Int64Counter("apstra.client.requests",
		metric.WithDescription("Requests sent to the Apstra controller, by method and outcome."))
	if err != nil {
		otel.Handle(err)
		t.requests = noop.Int64Counter{}
	}
	t.duration, err = meter.Float64Histogram("apstra.client.duration",
		metric.WithUnit("ms"),
		metric.WithDescription("Latency of Apstra controller requests."))
	if err != nil {
		otel.Handle(err)
		t.duration = noop.Float64Histogram{}
	}
	t.logins, err = meter.Int64Counter("apstra.client.logins",
		metric.WithDescription("Login attempts against the Apstra controller, by outcome."))
	if err != nil {
		otel.Handle(err)
		t.logins = noop.Int64Counter{}
	}
	return t
}

func (t *telemetry) observeRequest(ctx context.Context, method string, status int, err error, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("http.request.method", method),
		attribute.Int("http.response.status_code", status),
		attribute.String("outcome", outcomeOf(err)),
	)
	t.requests.Add(ctx, 1, attrs)
	t.duration.Record(ctx, float64(elapsed)/float64(time.Millisecond), attrs)
}

func (t *telemetry) observeLogin(ctx context.Context, err error) {
	outcome := outcomeSuccess
	if err != nil {
		outcome = outcomeAuth
	}
	t.logins.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func outcomeOf(err error) string {
	var (
		remote    *RemoteError
		transport *TransportError
		auth      *AuthError
	)
	switch {
	case err == nil:
		return outcomeSuccess
	case errors.As(err, &remote):
		return outcomeRemote
	case errors.As(err, &auth):
		return outcomeAuth
	case errors.As(err, &transport):
		return outcomeTransport
	default:
		return outcomeTransport
	}
}
