package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/quantmcp/quantmcp/internal/db"
)

// MCPHandler answers one encoded JSON-RPC message; nil means no reply.
type MCPHandler interface {
	Handle(ctx context.Context, raw []byte) []byte
}

// ToolCallStore reads the tool call journal.
type ToolCallStore interface {
	GetToolCall(ctx context.Context, toolCallID string) (*db.ToolCall, error)
	ListToolCalls(ctx context.Context, f db.ToolCallFilter) ([]*db.ToolCall, error)
}

// BuildInfo is reported by GET /version.
type BuildInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildTime string `json:"build_time"`
}

type Server struct {
	mcp     MCPHandler
	calls   ToolCallStore
	auth    *Authenticator
	metrics http.Handler
	build   BuildInfo
	srv     *http.Server
	logger  *slog.Logger
}

// Options carries the optional collaborators of a Server.
type Options struct {
	// ToolCalls enables the journal endpoints when set.
	ToolCalls ToolCallStore
	// Auth guards /mcp and the journal endpoints when set.
	Auth *Authenticator
	// Metrics is served at /metrics when set.
	Metrics http.Handler
	Build   BuildInfo
}

const maxRequestBodyBytes = 4 << 20

func NewServer(addr string, mcp MCPHandler, opts Options, logger *slog.Logger) *Server {
	s := &Server{
		mcp:     mcp,
		calls:   opts.ToolCalls,
		auth:    opts.Auth,
		metrics: opts.Metrics,
		build:   opts.Build,
		logger:  logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /version", s.handleVersion)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	mux.Handle("POST /mcp", s.protect(http.HandlerFunc(s.handleMCP)))
	if s.calls != nil {
		mux.Handle("GET /tool-calls", s.protect(http.HandlerFunc(s.handleListToolCalls)))
		mux.Handle("GET /tool-calls/{toolCallID}", s.protect(http.HandlerFunc(s.handleGetToolCall)))
	}

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      withLogging(logger, mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

func (s *Server) ListenAndServe() error {
	s.logger.Info("http server starting", "addr", s.srv.Addr)
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	err = s.srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) protect(next http.Handler) http.Handler {
	if s.auth == nil {
		return next
	}
	return s.auth.Middleware(next)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.build)
}

func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	if err != nil {
		writeErr(w, http.StatusRequestEntityTooLarge, "read body: "+err.Error())
		return
	}
	out := s.mcp.Handle(r.Context(), body)
	if out == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

func (s *Server) handleListToolCalls(w http.ResponseWriter, r *http.Request) {
	filters, err := parseToolCallListFilters(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	calls, err := s.calls.ListToolCalls(r.Context(), filters)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	if calls == nil {
		calls = []*db.ToolCall{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tool_calls": calls, "count": len(calls)})
}

func (s *Server) handleGetToolCall(w http.ResponseWriter, r *http.Request) {
	tc, err := s.calls.GetToolCall(r.Context(), r.PathValue("toolCallID"))
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	if tc == nil {
		writeErr(w, http.StatusNotFound, "tool call not found")
		return
	}
	writeJSON(w, http.StatusOK, tc)
}

func parseToolCallListFilters(r *http.Request) (db.ToolCallFilter, error) {
	q := r.URL.Query()
	f := db.ToolCallFilter{
		ToolName: strings.TrimSpace(q.Get("tool_name")),
		Status:   strings.TrimSpace(q.Get("status")),
		TraceID:  strings.TrimSpace(q.Get("trace_id")),
	}

	var err error
	if f.CreatedAfter, err = parseTimeParam(q.Get("created_after"), "created_after"); err != nil {
		return db.ToolCallFilter{}, err
	}
	if f.CreatedBefore, err = parseTimeParam(q.Get("created_before"), "created_before"); err != nil {
		return db.ToolCallFilter{}, err
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return db.ToolCallFilter{}, fmt.Errorf("invalid limit %q", raw)
		}
		f.Limit = n
	}
	if err := f.Validate(); err != nil {
		return db.ToolCallFilter{}, err
	}
	return f, nil
}

func parseTimeParam(raw, name string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: must be RFC3339", name)
	}
	t = t.UTC()
	return &t, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// requestInfo is filled in by inner handlers and read back by withLogging.
type requestInfo struct {
	subject string
}

type requestInfoKey struct{}

func withLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: 200}
		r = r.WithContext(context.WithValue(r.Context(), requestInfoKey{}, &requestInfo{}))
		next.ServeHTTP(sw, r)
		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", fmt.Sprintf("%dms", time.Since(start).Milliseconds()),
		}
		if sub := Subject(r.Context()); sub != "" {
			attrs = append(attrs, "subject", sub)
		}
		logger.Info("http request", attrs...)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
