package tool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/invopop/jsonschema"

	"github.com/quantmcp/quantmcp/internal/core"
	"github.com/quantmcp/quantmcp/internal/schema"
)

var (
	ErrToolNotRegistered = errors.New("tool not registered")
	ErrUnknownTool       = errors.New("unknown tool")
	ErrToolNotAllowed    = errors.New("tool not allowed")
	ErrNotInitialized    = errors.New("tool runtime not initialized")
	ErrDuplicateTool     = errors.New("tool already registered")
)

// Handler performs the tool's work on validated arguments.
type Handler func(ctx context.Context, args Args) (core.ToolResult, error)

// Annotations are the MCP behaviour hints shown in tools/list.
type Annotations struct {
	Title           string `json:"title,omitempty"`
	ReadOnlyHint    bool   `json:"readOnlyHint"`
	DestructiveHint bool   `json:"destructiveHint"`
	IdempotentHint  bool   `json:"idempotentHint"`
	OpenWorldHint   bool   `json:"openWorldHint"`
}

// Spec describes a tool to register.
type Spec struct {
	Name        string
	Description string
	Annotations Annotations
	Request     *schema.Record
	Handler     Handler
}

// Tool is a registered tool with its derived argument record and the
// schema clients see.
type Tool struct {
	ID          string
	Name        string
	Description string
	Annotations Annotations
	Request     *schema.Record
	Args        *schema.Record
	InputSchema *jsonschema.Schema

	handler Handler
	invoke  func(ctx context.Context, raw, direct map[string]any) (core.ToolResult, error)
}

// Recorder persists a finished call.
type Recorder interface {
	RecordCall(ctx context.Context, rec CallRecord) error
}

// CallRecord is what a Recorder receives for each call.
type CallRecord struct {
	CallID    string
	TraceID   string
	ToolName  string
	Arguments map[string]any
	Result    core.ToolResult
	Err       string
	Duration  time.Duration
	At        time.Time
}

// Observer receives per-call outcome metrics.
type Observer interface {
	ObserveToolCall(tool, outcome string, d time.Duration)
}

// Call outcomes reported to Observer.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeError   = "error"
)

type Option func(*Runtime)

func WithPolicy(p *core.Policy) Option { return func(r *Runtime) { r.policy = p } }
func WithRecorder(rec Recorder) Option { return func(r *Runtime) { r.recorder = rec } }
func WithObserver(o Observer) Option { return func(r *Runtime) { r.observer = o } }
func WithCallLogger(cl *CallLogger) Option { return func(r *Runtime) { r.calls = cl } }

// Runtime owns the tools, their contracts and the invocation pipeline.
type Runtime struct {
	logger   *slog.Logger
	deriver  *schema.Deriver
	registry *Registry
	calls    *CallLogger
	policy   *core.Policy
	recorder Recorder
	observer Observer

	mu          sync.RWMutex
	tools       map[string]*Tool
	order       []string
	initialized bool
}

func New(logger *slog.Logger, opts ...Option) *Runtime {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runtime{
		logger:   logger,
		deriver:  schema.NewDeriver(),
		registry: NewRegistry(),
		tools:    make(map[string]*Tool),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.calls == nil {
		r.calls = NewCallLogger(os.Stderr, nil)
	}
	return r
}

// Register derives the argument record for spec.Request, renders and checks
// its schema, and adds the tool. The tool has no contract until
// RegisterContract is called for it.
func (r *Runtime) Register(spec Spec) (*Tool, error) {
	if spec.Name == "" {
		return nil, errors.New("tool name is required")
	}
	if spec.Handler == nil {
		return nil, fmt.Errorf("tool %s: handler is required", spec.Name)
	}
	req := spec.Request
	if req == nil {
		req = schema.NewRecord(spec.Name)
	}

	args := r.deriver.Derive(req)
	rendered, err := schema.Render(args)
	if err != nil {
		return nil, fmt.Errorf("tool %s: render schema: %w", spec.Name, err)
	}
	if err := schema.CheckCompatible(rendered); err != nil {
		return nil, fmt.Errorf("tool %s: incompatible schema: %w", spec.Name, err)
	}

	t := &Tool{
		ID:          uuid.NewString(),
		Name:        spec.Name,
		Description: spec.Description,
		Annotations: spec.Annotations,
		Request:     req,
		Args:        args,
		InputSchema: rendered,
		handler:     spec.Handler,
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[spec.Name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateTool, spec.Name)
	}
	if r.initialized {
		r.install(t)
	}
	r.tools[spec.Name] = t
	r.order = append(r.order, spec.Name)
	return t, nil
}

// MustRegister is Register for startup code; it panics on error.
func (r *Runtime) MustRegister(spec Spec) *Tool {
	t, err := r.Register(spec)
	if err != nil {
		panic(err)
	}
	return t
}

// RegisterContract attaches defaults and the safe flag to a registered
// tool. A safe tool's defaults must satisfy its schema on their own.
func (r *Runtime) RegisterContract(name string, defaults map[string]any, safe bool) error {
	t, ok := r.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrToolNotRegistered, name)
	}
	if safe {
		probe := schema.PreParse(t.Args, core.Merge(defaults))
		if _, err := schema.Validate(t.Args, probe); err != nil {
			return fmt.Errorf("safe tool %s: defaults do not validate: %w", name, err)
		}
	}
	r.registry.Register(t.ID, Contract{Name: name, Defaults: defaults, Safe: safe})
	return nil
}

// MustRegisterContract is RegisterContract for startup code; it panics on
// error.
func (r *Runtime) MustRegisterContract(name string, defaults map[string]any, safe bool) {
	if err := r.RegisterContract(name, defaults, safe); err != nil {
		panic(err)
	}
}

// Init installs the invocation pipeline on every registered tool. Calling
// it again has no effect.
func (r *Runtime) Init() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.initialized {
		return
	}
	for _, name := range r.order {
		r.install(r.tools[name])
	}
	r.initialized = true
	r.logger.Info("tool runtime initialized", "tools", len(r.order), "contracts", len(r.registry.Contracts()))
}

func (r *Runtime) install(t *Tool) {
	t.invoke = func(ctx context.Context, raw, direct map[string]any) (core.ToolResult, error) {
		return r.handle(ctx, t, raw, direct)
	}
}

// Registry exposes the contract registry.
func (r *Runtime) Registry() *Registry { return r.registry }

// Lookup returns the named tool regardless of policy.
func (r *Runtime) Lookup(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Tools returns the tools permitted by policy in registration order.
func (r *Runtime) Tools() []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Tool, 0, len(r.order))
	for _, name := range r.order {
		if r.policy.CheckTool(name) == nil {
			out = append(out, r.tools[name])
		}
	}
	return out
}

// Call invokes a tool by name.
func (r *Runtime) Call(ctx context.Context, name string, args map[string]any) (core.ToolResult, error) {
	return r.CallDirect(ctx, name, args, nil)
}

// CallDirect invokes a tool by name; direct values bypass validation and
// are merged into the handler's arguments.
func (r *Runtime) CallDirect(ctx context.Context, name string, args, direct map[string]any) (core.ToolResult, error) {
	r.mu.RLock()
	initialized := r.initialized
	t, ok := r.tools[name]
	r.mu.RUnlock()

	if !initialized {
		return core.ToolResult{}, ErrNotInitialized
	}
	if !ok {
		return core.ToolResult{}, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	if err := r.policy.CheckTool(name); err != nil {
		return core.ToolResult{}, fmt.Errorf("%w: %v", ErrToolNotAllowed, err)
	}

	logCalls := r.calls.Enabled()
	if logCalls {
		r.calls.Input(ctx, name, args)
	}

	started := time.Now()
	res, err := t.invoke(ctx, args, direct)
	elapsed := time.Since(started)

	outcome := OutcomeSuccess
	switch {
	case err != nil:
		outcome = OutcomeError
		r.logger.Warn("tool call failed", "tool_name", name, "trace_id", TraceID(ctx), "err", err)
	case !res.Success:
		outcome = OutcomeFailure
		r.logger.Info("tool call returned error envelope", "tool_name", name, "trace_id", TraceID(ctx), "code", res.Error.Code)
	}
	if err == nil && logCalls {
		r.calls.Output(ctx, name, res)
	}
	if r.observer != nil {
		r.observer.ObserveToolCall(name, outcome, elapsed)
	}
	r.record(ctx, name, args, res, err, started, elapsed)
	return res, err
}

func (r *Runtime) record(ctx context.Context, name string, args map[string]any, res core.ToolResult, callErr error, at time.Time, d time.Duration) {
	if r.recorder == nil {
		return
	}
	rec := CallRecord{
		CallID:    uuid.NewString(),
		TraceID:   TraceID(ctx),
		ToolName:  name,
		Arguments: args,
		Result:    res,
		Duration:  d,
		At:        at.UTC(),
	}
	if callErr != nil {
		rec.Err = callErr.Error()
	}
	if err := r.recorder.RecordCall(ctx, rec); err != nil {
		r.logger.Warn("record tool call failed", "tool_name", name, "call_id", rec.CallID, "err", err)
	}
}

type traceKey struct{}

// WithTraceID attaches a request trace ID to ctx.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

// TraceID returns the trace ID set by WithTraceID, or "".
func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}
