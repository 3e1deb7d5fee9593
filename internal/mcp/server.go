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
	"net"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"

	"github.com/quantmcp/quantmcp/internal/core"
	"github.com/quantmcp/quantmcp/internal/schema"
	"github.com/quantmcp/quantmcp/internal/tool"
)

// JSON-RPC error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
)

const maxLineBytes = 4 * 1024 * 1024

// LatestProtocolVersion is answered when the client asks for a version this
// server does not know.
const LatestProtocolVersion = "2025-06-18"

var supportedProtocolVersions = map[string]bool{
	"2025-06-18": true,
	"2025-03-26": true,
	"2024-11-05": true,
}

// Info names the server in the initialize handshake.
type Info struct {
	Name    string
	Version string
}

// Server speaks newline-delimited JSON-RPC 2.0 over stdio or TCP and
// dispatches tools/call through the tool runtime.
type Server struct {
	rt     *tool.Runtime
	info   Info
	addr   string
	logger *slog.Logger

	ln     net.Listener
	mu     sync.Mutex
	closed bool
	conns  sync.WaitGroup
}

func NewServer(addr string, rt *tool.Runtime, info Info, logger *slog.Logger) *Server {
	return &Server{rt: rt, info: info, addr: addr, logger: logger}
}

type jsonRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// notification reports whether the request carries no id and so expects
// no response.
func (r jsonRPCRequest) notification() bool {
	return len(r.ID) == 0
}

type jsonRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

var nullID = json.RawMessage("null")

// ListenAndServe accepts TCP connections until Shutdown.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	s.logger.Info("mcp server starting", "transport", "tcp", "addr", ln.Addr().String())

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return nil
			}
			s.logger.Error("mcp accept error", "err", err)
			continue
		}
		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			defer conn.Close()
			if err := s.ServeStream(context.Background(), conn, conn); err != nil {
				s.logger.Warn("mcp connection closed with error", "remote", conn.RemoteAddr().String(), "err", err)
			}
		}()
	}
}

// Addr returns the bound TCP address once listening.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Shutdown stops accepting connections and waits for open ones to finish
// or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	var err error
	if s.ln != nil {
		err = s.ln.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.conns.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	return err
}

// ServeStream reads one JSON-RPC message per line from r and writes
// responses to w until r is exhausted or ctx is done.
func (s *Server) ServeStream(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if out := s.Handle(ctx, line); out != nil {
			if _, err := w.Write(append(out, '\n')); err != nil {
				return fmt.Errorf("write response: %w", err)
			}
		}
	}
	return scanner.Err()
}

// Handle processes one encoded JSON-RPC message and returns the encoded
// response, or nil for notifications.
func (s *Server) Handle(ctx context.Context, raw []byte) []byte {
	var req jsonRPCRequest
	if err := decodeJSON(raw, &req); err != nil {
		return encodeResponse(jsonRPCResponse{
			JSONRPC: "2.0",
			ID:      nullID,
			Error:   &rpcError{Code: codeParseError, Message: "parse error"},
		})
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		if req.notification() {
			return nil
		}
		return encodeResponse(jsonRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &rpcError{Code: codeInvalidRequest, Message: "invalid request"},
		})
	}

	ctx = tool.WithTraceID(ctx, uuid.NewString())
	resp := s.dispatch(ctx, req)
	if req.notification() {
		return nil
	}
	return encodeResponse(resp)
}

func (s *Server) dispatch(ctx context.Context, req jsonRPCRequest) jsonRPCResponse {
	base := jsonRPCResponse{JSONRPC: "2.0", ID: req.ID}

	switch req.Method {
	case "initialize":
		base.Result = s.initializeResult(req.Params)
		return base

	case "notifications/initialized", "notifications/cancelled":
		return base

	case "ping":
		base.Result = map[string]any{}
		return base

	case "tools/list":
		base.Result = map[string]any{"tools": s.ToolDefinitions()}
		return base

	case "tools/call":
		return s.handleToolCall(ctx, req, base)

	default:
		base.Error = &rpcError{Code: codeMethodNotFound, Message: fmt.Sprintf("method not found: %s", req.Method)}
		return base
	}
}

type initializeParams struct {
	ProtocolVersion string `json:"protocolVersion"`
}

func (s *Server) initializeResult(raw json.RawMessage) map[string]any {
	var params initializeParams
	_ = decodeJSON(raw, &params)
	version := params.ProtocolVersion
	if !supportedProtocolVersions[version] {
		version = LatestProtocolVersion
	}
	return map[string]any{
		"protocolVersion": version,
		"capabilities":    map[string]any{"tools": map[string]any{"listChanged": false}},
		"serverInfo":      map[string]any{"name": s.info.Name, "version": s.info.Version},
	}
}

// ToolDefinitions lists the tools visible under the runtime's policy.
func (s *Server) ToolDefinitions() []map[string]any {
	tools := s.rt.Tools()
	out := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		def := map[string]any{
			"name":        t.Name,
			"description": t.Description,
			"inputSchema": t.InputSchema,
		}
		if t.Annotations != (tool.Annotations{}) {
			def["annotations"] = t.Annotations
		}
		out = append(out, def)
	}
	return out
}

type toolCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

func (s *Server) handleToolCall(ctx context.Context, req jsonRPCRequest, base jsonRPCResponse) jsonRPCResponse {
	var params toolCallParams
	if err := decodeJSON(req.Params, &params); err != nil {
		base.Error = &rpcError{Code: codeInvalidParams, Message: "invalid params: " + err.Error()}
		return base
	}
	if params.Name == "" {
		base.Error = &rpcError{Code: codeInvalidParams, Message: "invalid params: tool name is required"}
		return base
	}

	res, err := s.callTool(ctx, params.Name, params.Arguments)
	if err != nil {
		base.Error = toRPCError(err)
		return base
	}
	base.Result = callResult(res)
	return base
}

// callTool turns a handler panic into an error so one call cannot end the
// session or the listener.
func (s *Server) callTool(ctx context.Context, name string, args map[string]any) (res core.ToolResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("tool call panicked", "tool_name", name, "trace_id", tool.TraceID(ctx), "panic", p, "stack", string(debug.Stack()))
			err = fmt.Errorf("tool %s failed: %v", name, p)
		}
	}()
	return s.rt.Call(ctx, name, args)
}

// callResult wraps an envelope as MCP tool output: the envelope JSON as text
// content plus the same object as structured content.
func callResult(res core.ToolResult) map[string]any {
	text, err := json.Marshal(res)
	if err != nil {
		text = []byte(fmt.Sprintf(`{"success":false,"error":{"code":%q,"message":%q,"hint":""},"data":{}}`,
			core.CodeResultNormalization, err.Error()))
	}
	return map[string]any{
		"content":           []map[string]string{{"type": "text", "text": string(text)}},
		"structuredContent": res,
		"isError":           !res.Success,
	}
}

func toRPCError(err error) *rpcError {
	var verr *schema.ValidationError
	switch {
	case errors.Is(err, tool.ErrUnknownTool),
		errors.Is(err, tool.ErrToolNotAllowed),
		errors.As(err, &verr):
		return &rpcError{Code: codeInvalidParams, Message: err.Error()}
	default:
		return &rpcError{Code: codeInternalError, Message: err.Error()}
	}
}

// decodeJSON keeps numbers as json.Number so integer arguments are not
// rounded through float64.
func decodeJSON(raw []byte, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(dst)
}

func encodeResponse(resp jsonRPCResponse) []byte {
	if len(resp.ID) == 0 {
		resp.ID = nullID
	}
	data, err := json.Marshal(resp)
	if err != nil {
		data, _ = json.Marshal(jsonRPCResponse{
			JSONRPC: "2.0",
			ID:      resp.ID,
			Error:   &rpcError{Code: codeInternalError, Message: "encode response: " + err.Error()},
		})
	}
	return data
}
