package evidence

import (
	"context"
	"log/slog"
	"time"

	"github.com/bturcanu/apstra-mcp/pkg/connectors"
	"github.com/bturcanu/apstra-mcp/pkg/types"
)

// AnonymousAgent is the chain used for calls that carry no agent identity.
const AnonymousAgent = "anonymous"

// InvocationWriter appends invocations to a chain. *Store implements it.
type InvocationWriter interface {
	RecordInvocation(ctx context.Context, inv *types.ToolInvocation) error
}

// Recorder adapts a chain writer to connectors.Recorder and logs every write.
type Recorder struct {
	w   InvocationWriter
	log *slog.Logger
}

// NewRecorder creates a recorder writing to w.
func NewRecorder(w InvocationWriter, log *slog.Logger) *Recorder {
	return &Recorder{w: w, log: log}
}

// Record persists one completed tool call.
func (r *Recorder) Record(ctx context.Context, call connectors.Invocation) error {
	inv := ToInvocation(call)
	if err := r.w.RecordInvocation(ctx, inv); err != nil {
		r.log.ErrorContext(ctx, "evidence record failed",
			"event_id", inv.EventID,
			"agent_id", inv.AgentID,
			"tool", inv.Tool,
			"error", err,
		)
		return err
	}
	r.log.InfoContext(ctx, "tool invocation recorded",
		"event_id", inv.EventID,
		"agent_id", inv.AgentID,
		"tool", inv.Tool,
		"status", inv.Outcome.Status,
		"hash", inv.Hash,
	)
	return nil
}

// ToInvocation converts a completed call into its audit record. Controller
// output is kept as a digest only.
func ToInvocation(call connectors.Invocation) *types.ToolInvocation {
	agent := call.Request.AgentID
	if agent == "" {
		agent = AnonymousAgent
	}
	resp := call.Response
	outcome := types.InvocationOutcome{
		Status:     resp.Status,
		Error:      resp.Error,
		DurationMS: call.Duration.Milliseconds(),
	}
	if len(resp.OutputJSON) > 0 {
		outcome.OutputHash = HashBytes(resp.OutputJSON)
	}
	if resp.ErrorInfo != nil {
		outcome.ErrorKind = resp.ErrorInfo.Kind
		outcome.StatusCode = resp.ErrorInfo.StatusCode
	}
	receivedAt := call.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}
	return &types.ToolInvocation{
		EventID:    call.Request.EventID,
		AgentID:    agent,
		Tool:       call.Request.Tool,
		Params:     call.Request.Params,
		ReceivedAt: receivedAt.UTC(),
		Outcome:    outcome,
	}
}
