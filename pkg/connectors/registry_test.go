package connectors

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/bturcanu/apstra-mcp/pkg/types"
)

type echoParams struct {
	Name  string `json:"name" validate:"required"`
	Count int    `json:"count" validate:"gte=0"`
}

type memRecorder struct {
	mu   sync.Mutex
	invs []Invocation
	err  error
}

func (m *memRecorder) Record(_ context.Context, inv Invocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invs = append(m.invs, inv)
	return m.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEchoRegistry(t *testing.T, opts ...Option) *Registry {
	t.Helper()
	reg := NewRegistry(append([]Option{WithLogger(quietLogger())}, opts...)...)
	err := reg.Register(Tool{
		Spec: ToolSpec{Name: "echo", Description: "echo params", ReadOnly: true},
		Handler: func(_ context.Context, raw json.RawMessage) (any, error) {
			p, err := DecodeParams[echoParams](raw)
			if err != nil {
				return nil, err
			}
			return map[string]any{"name": p.Name, "count": p.Count}, nil
		},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return reg
}

func TestRegistry_ExecSuccess(t *testing.T) {
	reg := newEchoRegistry(t)

	resp := reg.Exec(context.Background(), ExecRequest{Tool: "echo", Params: json.RawMessage(`{"name":"x","count":2}`)})
	if !resp.OK() {
		t.Fatalf("expected success, got %+v", resp)
	}
	if string(resp.OutputJSON) != `{"count":2,"name":"x"}` {
		t.Errorf("unexpected output %s", resp.OutputJSON)
	}
	if resp.ErrorInfo != nil {
		t.Errorf("success must not carry error info")
	}
}

func TestRegistry_UnknownTool(t *testing.T) {
	reg := newEchoRegistry(t)
	resp := reg.Exec(context.Background(), ExecRequest{Tool: "nope"})
	if resp.Status != StatusError || resp.ErrorInfo == nil || resp.ErrorInfo.Kind != KindUnknownTool {
		t.Fatalf("expected unknown_tool error, got %+v", resp)
	}
}

func TestRegistry_InvalidArgument(t *testing.T) {
	reg := newEchoRegistry(t)

	resp := reg.Exec(context.Background(), ExecRequest{Tool: "echo", Params: json.RawMessage(`{"count":1}`)})
	if resp.ErrorInfo == nil || resp.ErrorInfo.Kind != KindInvalidArgument {
		t.Fatalf("expected invalid_argument, got %+v", resp)
	}
	if resp.Error != "validation: name is required" {
		t.Errorf("unexpected message %q", resp.Error)
	}

	resp = reg.Exec(context.Background(), ExecRequest{Tool: "echo", Params: json.RawMessage(`{"name":"x","count":"two"}`)})
	if resp.ErrorInfo == nil || resp.ErrorInfo.Kind != KindInvalidArgument {
		t.Fatalf("expected invalid_argument for wrong type, got %+v", resp)
	}
}

func TestRegistry_HandlerPanicIsContained(t *testing.T) {
	reg := NewRegistry(WithLogger(quietLogger()))
	_ = reg.Register(Tool{
		Spec:    ToolSpec{Name: "boom"},
		Handler: func(context.Context, json.RawMessage) (any, error) { panic("kaboom") },
	})
	resp := reg.Exec(context.Background(), ExecRequest{Tool: "boom"})
	if resp.ErrorInfo == nil || resp.ErrorInfo.Kind != KindInternal {
		t.Fatalf("expected internal error, got %+v", resp)
	}
}

func TestRegistry_CustomClassifier(t *testing.T) {
	sentinel := errors.New("upstream said no")
	reg := NewRegistry(
		WithLogger(quietLogger()),
		WithClassifier(func(err error) ErrorInfo {
			if errors.Is(err, sentinel) {
				return ErrorInfo{Kind: KindRemote, StatusCode: 503, Retryable: true}
			}
			return DefaultClassifier(err)
		}),
	)
	_ = reg.Register(Tool{
		Spec:    ToolSpec{Name: "fail"},
		Handler: func(context.Context, json.RawMessage) (any, error) { return nil, sentinel },
	})
	resp := reg.Exec(context.Background(), ExecRequest{Tool: "fail"})
	if resp.ErrorInfo == nil || resp.ErrorInfo.Kind != KindRemote || !resp.ErrorInfo.Retryable {
		t.Fatalf("expected retryable remote error, got %+v", resp)
	}
}

func TestRegistry_DuplicateRegistration(t *testing.T) {
	reg := newEchoRegistry(t)
	err := reg.Register(Tool{
		Spec:    ToolSpec{Name: "echo"},
		Handler: func(context.Context, json.RawMessage) (any, error) { return nil, nil },
	})
	if err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}

func TestRegistry_ListSorted(t *testing.T) {
	reg := NewRegistry(WithLogger(quietLogger()))
	for _, name := range []string{"b", "c", "a"} {
		_ = reg.Register(Tool{
			Spec:    ToolSpec{Name: name},
			Handler: func(context.Context, json.RawMessage) (any, error) { return nil, nil },
		})
	}
	specs := reg.List()
	if len(specs) != 3 || specs[0].Name != "a" || specs[2].Name != "c" {
		t.Errorf("unexpected order %+v", specs)
	}
}

func TestRegistry_RecorderFailureDoesNotChangeResult(t *testing.T) {
	rec := &memRecorder{err: errors.New("db down")}
	reg := newEchoRegistry(t, WithRecorder(rec))

	resp := reg.Exec(context.Background(), ExecRequest{EventID: "e1", AgentID: "a1", Tool: "echo", Params: json.RawMessage(`{"name":"x"}`)})
	if !resp.OK() {
		t.Fatalf("expected success despite recorder failure, got %+v", resp)
	}
	if len(rec.invs) != 1 {
		t.Fatalf("expected 1 recorded invocation, got %d", len(rec.invs))
	}
	inv := rec.invs[0]
	if inv.Request.EventID != "e1" || inv.Response.Status != StatusSuccess || inv.ReceivedAt.IsZero() {
		t.Errorf("unexpected invocation %+v", inv)
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	reg := newEchoRegistry(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := reg.Exec(context.Background(), ExecRequest{Tool: "echo", Params: json.RawMessage(`{"name":"x"}`)})
			if !resp.OK() {
				t.Errorf("unexpected failure %+v", resp)
			}
		}()
	}
	wg.Wait()
}

func TestDecodeParams_NullAndEmpty(t *testing.T) {
	type opt struct {
		Label string `json:"label"`
	}
	for _, raw := range []string{"", "null", "  "} {
		p, err := DecodeParams[opt](json.RawMessage(raw))
		if err != nil {
			t.Errorf("DecodeParams(%q): unexpected error %v", raw, err)
		}
		if p.Label != "" {
			t.Errorf("DecodeParams(%q): expected zero value", raw)
		}
	}

	_, err := DecodeParams[echoParams](json.RawMessage(`[1,2]`))
	var verr *types.ValidationError
	if !errors.As(err, &verr) || verr.Field != "params" {
		t.Errorf("expected params validation error, got %v", err)
	}
}
