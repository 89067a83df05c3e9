package connectors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/bturcanu/apstra-mcp/pkg/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Invocation is one completed call, handed to a Recorder.
type Invocation struct {
	Request    ExecRequest
	Response   ExecResponse
	ReceivedAt time.Time
	Duration   time.Duration
}

// Recorder persists completed calls. A recording failure is logged and never
// alters the response returned to the caller.
type Recorder interface {
	Record(ctx context.Context, inv Invocation) error
}

// Classifier maps a handler error to ErrorInfo.
type Classifier func(err error) ErrorInfo

// Option configures a Registry.
type Option func(*Registry)

// WithClassifier replaces the default error classification.
func WithClassifier(c Classifier) Option {
	return func(r *Registry) { r.classify = c }
}

// WithRecorder attaches an audit recorder.
func WithRecorder(rec Recorder) Option {
	return func(r *Registry) { r.recorder = rec }
}

// WithLogger sets the registry logger.
func WithLogger(log *slog.Logger) Option {
	return func(r *Registry) { r.log = log }
}

// Registry maps tool names to handlers. It implements Connector.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool

	classify Classifier
	recorder Recorder
	log      *slog.Logger
	calls    metric.Int64Counter
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		tools:    make(map[string]Tool),
		classify: DefaultClassifier,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	calls, err := otel.Meter("github.com/bturcanu/apstra-mcp/pkg/connectors").Int64Counter(
		"apstra.tool.calls",
		metric.WithDescription("Tool calls by tool, status and error kind"),
	)
	if err == nil {
		r.calls = calls
	}
	return r
}

// Register adds a tool. Registering a name twice is an error.
func (r *Registry) Register(t Tool) error {
	if t.Spec.Name == "" || t.Handler == nil {
		return fmt.Errorf("connectors.Register: tool needs a name and a handler")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.tools[t.Spec.Name]; dup {
		return fmt.Errorf("connectors.Register: tool %q already registered", t.Spec.Name)
	}
	r.tools[t.Spec.Name] = t
	return nil
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns every tool spec sorted by name.
func (r *Registry) List() []ToolSpec {
	r.mu.RLock()
	specs := make([]ToolSpec, 0, len(r.tools))
	for _, t := range r.tools {
		specs = append(specs, t.Spec)
	}
	r.mu.RUnlock()
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

// Exec runs the named tool and normalizes its outcome. It never returns a
// bare failure: every error becomes a Status "error" response with ErrorInfo.
func (r *Registry) Exec(ctx context.Context, req ExecRequest) ExecResponse {
	start := time.Now()
	resp := r.exec(ctx, req)
	elapsed := time.Since(start)

	kind := ""
	if resp.ErrorInfo != nil {
		kind = resp.ErrorInfo.Kind
	}
	if r.calls != nil {
		r.calls.Add(ctx, 1, metric.WithAttributes(
			attribute.String("tool", req.Tool),
			attribute.String("status", resp.Status),
			attribute.String("error_kind", kind),
		))
	}
	r.log.InfoContext(ctx, "tool call",
		"event_id", req.EventID,
		"agent_id", req.AgentID,
		"tool", req.Tool,
		"status", resp.Status,
		"error_kind", kind,
		"duration_ms", elapsed.Milliseconds(),
	)

	if r.recorder != nil {
		inv := Invocation{Request: req, Response: resp, ReceivedAt: start.UTC(), Duration: elapsed}
		if err := r.recorder.Record(ctx, inv); err != nil {
			r.log.ErrorContext(ctx, "record invocation failed", "event_id", req.EventID, "tool", req.Tool, "error", err)
		}
	}
	return resp
}

func (r *Registry) exec(ctx context.Context, req ExecRequest) (resp ExecResponse) {
	t, ok := r.Lookup(req.Tool)
	if !ok {
		return ErrorResponse(fmt.Errorf("unknown tool %q", req.Tool), ErrorInfo{Kind: KindUnknownTool})
	}

	defer func() {
		if p := recover(); p != nil {
			r.log.ErrorContext(ctx, "tool handler panicked", "tool", req.Tool, "panic", p)
			resp = ErrorResponse(fmt.Errorf("tool %q failed: internal error", req.Tool), ErrorInfo{Kind: KindInternal})
		}
	}()

	out, err := t.Handler(ctx, req.Params)
	if err != nil {
		return ErrorResponse(err, r.classify(err))
	}
	return SuccessResponse(out)
}

// SuccessResponse encodes out as the response output. An output that cannot
// be encoded becomes an internal error.
func SuccessResponse(out any) ExecResponse {
	b, err := json.Marshal(out)
	if err != nil {
		return ErrorResponse(fmt.Errorf("encode tool output: %w", err), ErrorInfo{Kind: KindInternal})
	}
	return ExecResponse{Status: StatusSuccess, OutputJSON: b}
}

// ErrorResponse builds an error response.
func ErrorResponse(err error, info ErrorInfo) ExecResponse {
	return ExecResponse{Status: StatusError, Error: err.Error(), ErrorInfo: &info}
}

// DefaultClassifier recognizes argument errors; anything else is internal.
func DefaultClassifier(err error) ErrorInfo {
	var verr *types.ValidationError
	if errors.As(err, &verr) {
		return ErrorInfo{Kind: KindInvalidArgument}
	}
	return ErrorInfo{Kind: KindInternal}
}
