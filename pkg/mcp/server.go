// Package mcp serves a tool catalog over the Model Context Protocol:
// JSON-RPC 2.0, one message per line, on a pair of byte streams (normally
// stdin and stdout).
package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/bturcanu/apstra-mcp/pkg/auth"
	"github.com/bturcanu/apstra-mcp/pkg/connectors"
	"github.com/google/uuid"
)

const maxMessageBytes = 4 << 20

// Catalog is what the server exposes. *connectors.Registry implements it.
type Catalog interface {
	List() []connectors.ToolSpec
	Exec(ctx context.Context, req connectors.ExecRequest) connectors.ExecResponse
}

// Server handles one client session. Requests are processed one at a time
// in arrival order.
type Server struct {
	catalog      Catalog
	name         string
	version      string
	instructions string
	log          *slog.Logger
	initialized  bool
}

// Option configures a Server.
type Option func(*Server)

// WithServerInfo sets the name and version reported by initialize.
func WithServerInfo(name, version string) Option {
	return func(s *Server) { s.name, s.version = name, version }
}

// WithInstructions sets the usage hint returned by initialize.
func WithInstructions(text string) Option {
	return func(s *Server) { s.instructions = text }
}

// WithLogger sets the server logger. It must not write to the output stream.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) { s.log = log }
}

func NewServer(catalog Catalog, opts ...Option) *Server {
	s := &Server{
		catalog: catalog,
		name:    "apstra-mcp",
		version: "dev",
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run reads requests from input and writes responses to output until input
// is exhausted or ctx is done. Tool calls run under ctx, so cancelling it
// aborts an in-flight controller request. Cancellation also ends Run while
// input is idle; the blocked read is abandoned.
func (s *Server) Run(ctx context.Context, input io.Reader, output io.Writer) error {
	encoder := json.NewEncoder(output)
	readCtx, stopReading := context.WithCancel(ctx)
	defer stopReading()
	lines, readErr := readLines(readCtx, input)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var line []byte
		select {
		case <-ctx.Done():
			return ctx.Err()
		case l, ok := <-lines:
			if !ok {
				return s.finish(encoder, <-readErr)
			}
			line = l
		}
		if err := s.handleLine(ctx, encoder, line); err != nil {
			return fmt.Errorf("mcp.Run: %w", err)
		}
	}
}

// readLines scans input on its own goroutine so Run can observe ctx while
// the read blocks. The lines channel closes at end of input; readErr then
// carries the scanner error, if any.
func readLines(ctx context.Context, input io.Reader) (<-chan []byte, <-chan error) {
	lines := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(input)
		scanner.Buffer(make([]byte, 0, 64*1024), maxMessageBytes)
		for scanner.Scan() {
			line := bytes.Clone(bytes.TrimSpace(scanner.Bytes()))
			if len(line) == 0 {
				continue
			}
			select {
			case lines <- line:
			case <-ctx.Done():
				readErr <- ctx.Err()
				return
			}
		}
		readErr <- scanner.Err()
	}()
	return lines, readErr
}

// finish ends the session once input stops. A line over maxMessageBytes
// cannot be resynchronised, so the client gets one invalid-request error
// before the session closes.
func (s *Server) finish(encoder *json.Encoder, err error) error {
	if errors.Is(err, bufio.ErrTooLong) {
		msg := fmt.Sprintf("message exceeds %d bytes", maxMessageBytes)
		if werr := writeError(encoder, json.RawMessage("null"), codeInvalidRequest, msg); werr != nil {
			return fmt.Errorf("mcp.Run: write size error: %w", werr)
		}
		return fmt.Errorf("mcp.Run: %w", err)
	}
	if err != nil {
		return fmt.Errorf("mcp.Run: read: %w", err)
	}
	return nil
}

func (s *Server) handleLine(ctx context.Context, encoder *json.Encoder, line []byte) error {
	var req request
	if err := json.Unmarshal(line, &req); err != nil {
		if werr := writeError(encoder, json.RawMessage("null"), codeParseError, "parse error: "+err.Error()); werr != nil {
			return fmt.Errorf("write parse error: %w", werr)
		}
		return nil
	}
	if req.JSONRPC != "2.0" {
		if req.isNotification() {
			return nil
		}
		if werr := writeError(encoder, req.ID, codeInvalidRequest, "unsupported JSON-RPC version"); werr != nil {
			return fmt.Errorf("write version error: %w", werr)
		}
		return nil
	}
	if req.isNotification() {
		s.log.DebugContext(ctx, "mcp notification", "method", req.Method)
		return nil
	}
	return s.dispatch(ctx, encoder, &req)
}

func (s *Server) dispatch(ctx context.Context, encoder *json.Encoder, req *request) error {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(ctx, encoder, req)
	case "ping":
		return writeResult(encoder, req.ID, map[string]any{})
	case "tools/list":
		if !s.initialized {
			return writeError(encoder, req.ID, codeInvalidRequest, "server not initialized (call initialize first)")
		}
		return s.handleToolsList(encoder, req)
	case "tools/call":
		if !s.initialized {
			return writeError(encoder, req.ID, codeInvalidRequest, "server not initialized (call initialize first)")
		}
		return s.handleToolsCall(ctx, encoder, req)
	default:
		return writeError(encoder, req.ID, codeMethodNotFound, "unknown method: "+req.Method)
	}
}

func (s *Server) handleInitialize(ctx context.Context, encoder *json.Encoder, req *request) error {
	if len(req.Params) == 0 {
		return writeError(encoder, req.ID, codeInvalidParams, "params required for initialize")
	}
	var params initializeParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return writeError(encoder, req.ID, codeInvalidParams, "invalid initialize params: "+err.Error())
	}
	s.initialized = true
	s.log.InfoContext(ctx, "mcp client initialized",
		"client", params.ClientInfo.Name,
		"client_version", params.ClientInfo.Version,
		"requested_protocol", params.ProtocolVersion,
	)
	return writeResult(encoder, req.ID, initializeResult{
		ProtocolVersion: protocolVersion,
		Capabilities:    serverCapabilities{Tools: &toolCapability{}},
		ServerInfo:      serverInfo{Name: s.name, Version: s.version},
		Instructions:    s.instructions,
	})
}

func (s *Server) handleToolsList(encoder *json.Encoder, req *request) error {
	specs := s.catalog.List()
	tools := make([]toolDescription, 0, len(specs))
	for _, spec := range specs {
		tools = append(tools, toolDescription{
			Name:        spec.Name,
			Description: spec.Description,
			InputSchema: spec.InputSchema,
			Annotations: &toolAnnotations{
				ReadOnlyHint:    spec.ReadOnly,
				DestructiveHint: spec.Destructive,
				OpenWorldHint:   true,
			},
		})
	}
	return writeResult(encoder, req.ID, toolsListResult{Tools: tools})
}

func (s *Server) handleToolsCall(ctx context.Context, encoder *json.Encoder, req *request) error {
	if len(req.Params) == 0 {
		return writeError(encoder, req.ID, codeInvalidParams, "params required for tools/call")
	}
	var params toolsCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return writeError(encoder, req.ID, codeInvalidParams, "invalid tools/call params: "+err.Error())
	}

	resp := s.catalog.Exec(ctx, connectors.ExecRequest{
		EventID: uuid.NewString(),
		AgentID: auth.AgentFromContext(ctx),
		Tool:    params.Name,
		Params:  params.Arguments,
	})
	return writeResult(encoder, req.ID, buildToolResult(resp))
}

// buildToolResult converts a normalized tool response into MCP content.
func buildToolResult(resp connectors.ExecResponse) toolsCallResult {
	if !resp.OK() {
		result := toolsCallResult{
			IsError: true,
			Content: []contentBlock{{Type: "text", Text: resp.Error}},
		}
		if info := resp.ErrorInfo; info != nil {
			result.ErrorInfo = &errorInfo{
				Kind:       info.Kind,
				StatusCode: info.StatusCode,
				Body:       info.Body,
				Retryable:  info.Retryable,
			}
		}
		return result
	}

	text := string(resp.OutputJSON)
	if text == "" {
		text = "null"
	}
	result := toolsCallResult{Content: []contentBlock{{Type: "text", Text: text}}}
	if trimmed := bytes.TrimSpace(resp.OutputJSON); len(trimmed) > 0 && trimmed[0] == '{' {
		var structured map[string]any
		if err := json.Unmarshal(trimmed, &structured); err == nil {
			result.StructuredContent = structured
		}
	}
	return result
}

func writeResult(encoder *json.Encoder, id json.RawMessage, result any) error {
	return encoder.Encode(response{JSONRPC: "2.0", ID: id, Result: result})
}

func writeError(encoder *json.Encoder, id json.RawMessage, code int, message string) error {
	return encoder.Encode(response{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: message}})
}
