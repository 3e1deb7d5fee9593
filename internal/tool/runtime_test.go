package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantmcp/quantmcp/internal/core"
	"github.com/quantmcp/quantmcp/internal/schema"
)

var (
	readProjectRequest = schema.NewRecord("ReadProjectRequest",
		schema.Required("projectId", schema.Integer(), "Id of the project.").AtLeast(1),
		schema.Required("name", schema.String(), "Project name."),
	)
	pairRequest = schema.NewRecord("PairRequest",
		schema.Required("b", schema.String(), ""),
		schema.Required("a", schema.String(), ""),
	)
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRuntime(t *testing.T, opts ...Option) *Runtime {
	t.Helper()
	opts = append([]Option{WithCallLogger(NewCallLogger(io.Discard, func() bool { return false }))}, opts...)
	return New(quietLogger(), opts...)
}

// echoHandler returns its arguments as data and remembers them.
type echoHandler struct {
	mu    sync.Mutex
	calls int
	last  Args
}

func (h *echoHandler) handle(_ context.Context, args Args) (core.ToolResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	h.last = args
	return core.Success(map[string]any(args)), nil
}

func TestRegisterExposesCompatibleSchema(t *testing.T) {
	rt := newTestRuntime(t)
	h := &echoHandler{}
	tl, err := rt.Register(Spec{Name: "read_project", Request: readProjectRequest, Handler: h.handle})
	require.NoError(t, err)

	require.NoError(t, schema.CheckCompatible(tl.InputSchema))
	m, err := schema.ToMap(tl.InputSchema)
	require.NoError(t, err)
	assert.False(t, schema.HasIntegerType(m))
	assert.Equal(t, false, m["additionalProperties"])
	assert.Equal(t, []any{"projectId", "name"}, m["required"])
	assert.NotEmpty(t, tl.ID)
	assert.True(t, tl.Args.Strict)
}

func TestRegisterRejectsDuplicateName(t *testing.T) {
	rt := newTestRuntime(t)
	h := &echoHandler{}
	rt.MustRegister(Spec{Name: "read_project", Request: readProjectRequest, Handler: h.handle})
	_, err := rt.Register(Spec{Name: "read_project", Request: readProjectRequest, Handler: h.handle})
	require.ErrorIs(t, err, ErrDuplicateTool)
}

func TestRegisterRejectsUnrepresentableSchema(t *testing.T) {
	rt := newTestRuntime(t)
	req := schema.NewRecord("Bad", schema.Required("v", schema.OneOf(schema.String(), schema.Integer()), ""))
	_, err := rt.Register(Spec{Name: "bad", Request: req, Handler: (&echoHandler{}).handle})
	require.ErrorIs(t, err, schema.ErrUnrepresentable)
}

func TestCallWithDefaultsOnly(t *testing.T) {
	rt := newTestRuntime(t)
	h := &echoHandler{}
	rt.MustRegister(Spec{Name: "read_project", Request: readProjectRequest, Handler: h.handle})
	rt.MustRegisterContract("read_project", map[string]any{"projectId": 7, "name": "demo"}, true)
	rt.Init()

	res, err := rt.Call(context.Background(), "read_project", map[string]any{})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, Args{"projectId": int64(7), "name": "demo"}, h.last)
}

func TestCallerArgumentsOverrideDefaults(t *testing.T) {
	rt := newTestRuntime(t)
	h := &echoHandler{}
	rt.MustRegister(Spec{Name: "read_project", Request: readProjectRequest, Handler: h.handle})
	rt.MustRegisterContract("read_project", map[string]any{"projectId": 7, "name": "demo"}, false)
	rt.Init()

	_, err := rt.Call(context.Background(), "read_project", map[string]any{"projectId": 9.0})
	require.NoError(t, err)
	assert.Equal(t, Args{"projectId": int64(9), "name": "demo"}, h.last)
}

func TestLegacyWrappersBehaveLikeDirectArguments(t *testing.T) {
	valid := map[string]any{"projectId": 3, "name": "x"}
	cases := []map[string]any{
		{"model": valid},
		{"args": valid},
		{"args": "not-an-object", "model": valid},
	}

	rt := newTestRuntime(t)
	h := &echoHandler{}
	rt.MustRegister(Spec{Name: "read_project", Request: readProjectRequest, Handler: h.handle})
	rt.MustRegisterContract("read_project", nil, false)
	rt.Init()

	want, err := rt.Call(context.Background(), "read_project", valid)
	require.NoError(t, err)
	for _, in := range cases {
		got, err := rt.Call(context.Background(), "read_project", in)
		require.NoError(t, err)
		assert.Equal(t, want, got, "input %v", in)
	}

	wantFail, _ := rt.Call(context.Background(), "read_project", map[string]any{})
	gotFail, _ := rt.Call(context.Background(), "read_project", map[string]any{"model": map[string]any{}})
	assert.Equal(t, wantFail, gotFail)
}

func TestValidationFailureShape(t *testing.T) {
	rt := newTestRuntime(t)
	h := &echoHandler{}
	rt.MustRegister(Spec{Name: "pair", Request: pairRequest, Handler: h.handle})
	rt.MustRegisterContract("pair", nil, false)
	rt.Init()

	res, err := rt.Call(context.Background(), "pair", map[string]any{})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, core.CodeValidation, res.Error.Code)
	assert.Equal(t, "Provide values for required fields: a, b", res.Error.Hint)
	assert.Equal(t, "b: Field required; a: Field required", res.Error.Message)
	assert.Empty(t, res.Data)
	assert.True(t, res.Valid())
	assert.Zero(t, h.calls)
}

func TestValidationFailureWithoutMissingFieldsHasNoHint(t *testing.T) {
	rt := newTestRuntime(t)
	rt.MustRegister(Spec{Name: "read_project", Request: readProjectRequest, Handler: (&echoHandler{}).handle})
	rt.MustRegisterContract("read_project", nil, false)
	rt.Init()

	res, err := rt.Call(context.Background(), "read_project", map[string]any{"projectId": 1.5, "name": "x", "extra": true})
	require.NoError(t, err)
	assert.Equal(t, core.CodeValidation, res.Error.Code)
	assert.Empty(t, res.Error.Hint)
	assert.Contains(t, res.Error.Message, "projectId: Input should be a valid integer")
	assert.Contains(t, res.Error.Message, "extra: Extra inputs are not permitted")
}

func TestValidationErrorWithoutContractIsRaised(t *testing.T) {
	rt := newTestRuntime(t)
	rt.MustRegister(Spec{Name: "pair", Request: pairRequest, Handler: (&echoHandler{}).handle})
	rt.Init()

	_, err := rt.Call(context.Background(), "pair", map[string]any{"a": "x"})
	var verr *schema.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"b"}, verr.Missing())
}

func TestInitIsIdempotent(t *testing.T) {
	var buf bytes.Buffer
	rt := New(quietLogger(), WithCallLogger(NewCallLogger(&buf, func() bool { return true })))
	h := &echoHandler{}
	rt.MustRegister(Spec{Name: "read_project", Request: readProjectRequest, Handler: h.handle})
	rt.Init()
	rt.Init()

	_, err := rt.Call(context.Background(), "read_project", map[string]any{"projectId": 1, "name": "x"})
	require.NoError(t, err)
	assert.Equal(t, 1, h.calls)
	assert.Len(t, strings.Split(strings.TrimSpace(buf.String()), "\n"), 2)
}

func TestToolsRegisteredAfterInitAreIntercepted(t *testing.T) {
	rt := newTestRuntime(t)
	rt.Init()
	h := &echoHandler{}
	rt.MustRegister(Spec{Name: "pair", Request: pairRequest, Handler: h.handle})
	rt.MustRegisterContract("pair", nil, false)

	res, err := rt.Call(context.Background(), "pair", map[string]any{"a": "x"})
	require.NoError(t, err)
	assert.Equal(t, core.CodeValidation, res.Error.Code)
	assert.Zero(t, h.calls)
}

func TestCallErrors(t *testing.T) {
	rt := newTestRuntime(t)
	rt.MustRegister(Spec{Name: "pair", Request: pairRequest, Handler: (&echoHandler{}).handle})

	_, err := rt.Call(context.Background(), "pair", nil)
	require.ErrorIs(t, err, ErrNotInitialized)

	rt.Init()
	_, err = rt.Call(context.Background(), "nope", nil)
	require.ErrorIs(t, err, ErrUnknownTool)
}

func TestRegisterContractRequiresTool(t *testing.T) {
	rt := newTestRuntime(t)
	err := rt.RegisterContract("ghost", nil, false)
	require.ErrorIs(t, err, ErrToolNotRegistered)
	assert.Panics(t, func() { rt.MustRegisterContract("ghost", nil, false) })
}

func TestSafeContractDefaultsMustValidate(t *testing.T) {
	rt := newTestRuntime(t)
	rt.MustRegister(Spec{Name: "read_project", Request: readProjectRequest, Handler: (&echoHandler{}).handle})
	rt.MustRegister(Spec{Name: "pair", Request: pairRequest, Handler: (&echoHandler{}).handle})

	err := rt.RegisterContract("read_project", map[string]any{"name": "x"}, true)
	require.Error(t, err)
	var verr *schema.ValidationError
	require.ErrorAs(t, err, &verr)

	require.NoError(t, rt.RegisterContract("pair", map[string]any{"a": "1", "b": "2"}, true))
	require.NoError(t, rt.RegisterContract("read_project", map[string]any{"name": "x"}, false))
	assert.Equal(t, []string{"pair"}, rt.Registry().SafeNames())
}

func TestPolicyLimitsToolsAndCalls(t *testing.T) {
	rt := newTestRuntime(t, WithPolicy(core.NewPolicy("pair")))
	rt.MustRegister(Spec{Name: "read_project", Request: readProjectRequest, Handler: (&echoHandler{}).handle})
	rt.MustRegister(Spec{Name: "pair", Request: pairRequest, Handler: (&echoHandler{}).handle})
	rt.Init()

	tools := rt.Tools()
	require.Len(t, tools, 1)
	assert.Equal(t, "pair", tools[0].Name)

	_, err := rt.Call(context.Background(), "read_project", map[string]any{"projectId": 1, "name": "x"})
	require.ErrorIs(t, err, ErrToolNotAllowed)
}

func TestDirectArgumentsSkipValidation(t *testing.T) {
	rt := newTestRuntime(t)
	h := &echoHandler{}
	rt.MustRegister(Spec{Name: "pair", Request: pairRequest, Handler: h.handle})
	rt.MustRegisterContract("pair", nil, false)
	rt.Init()

	_, err := rt.CallDirect(context.Background(), "pair",
		map[string]any{"a": "1", "b": "2"},
		map[string]any{"session": "s-1"})
	require.NoError(t, err)
	assert.Equal(t, "s-1", h.last.String("session"))
}

func TestHandlerResultIsReturnedUnchanged(t *testing.T) {
	rt := newTestRuntime(t)
	want := core.Failure(core.CodeAPIHTTP, "HTTP 404: missing", "hint")
	rt.MustRegister(Spec{Name: "pair", Request: pairRequest, Handler: func(context.Context, Args) (core.ToolResult, error) {
		return want, nil
	}})
	rt.Init()

	got, err := rt.Call(context.Background(), "pair", map[string]any{"a": "1", "b": "2"})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

type fakeRecorder struct {
	mu   sync.Mutex
	recs []CallRecord
	err  error
}

func (f *fakeRecorder) RecordCall(_ context.Context, rec CallRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs = append(f.recs, rec)
	return f.err
}

type fakeObserver struct {
	outcomes []string
}

func (f *fakeObserver) ObserveToolCall(_ string, outcome string, _ time.Duration) {
	f.outcomes = append(f.outcomes, outcome)
}

func TestCallsAreRecordedAndObserved(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("db down")}
	obs := &fakeObserver{}
	rt := newTestRuntime(t, WithRecorder(rec), WithObserver(obs))
	rt.MustRegister(Spec{Name: "pair", Request: pairRequest, Handler: (&echoHandler{}).handle})
	rt.MustRegisterContract("pair", nil, false)
	rt.Init()

	ctx := WithTraceID(context.Background(), "trace-1")
	_, err := rt.Call(ctx, "pair", map[string]any{"a": "1", "b": "2"})
	require.NoError(t, err)
	_, err = rt.Call(ctx, "pair", map[string]any{})
	require.NoError(t, err)

	require.Len(t, rec.recs, 2)
	assert.Equal(t, "trace-1", rec.recs[0].TraceID)
	assert.Equal(t, "pair", rec.recs[0].ToolName)
	assert.NotEmpty(t, rec.recs[0].CallID)
	assert.True(t, rec.recs[0].Result.Success)
	assert.False(t, rec.recs[1].Result.Success)
	assert.Equal(t, []string{OutcomeSuccess, OutcomeFailure}, obs.outcomes)
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestCallLoggerStages(t *testing.T) {
	var buf bytes.Buffer
	enabled := true
	rt := New(quietLogger(), WithCallLogger(NewCallLogger(&buf, func() bool { return enabled })))
	rt.MustRegister(Spec{Name: "pair", Request: pairRequest, Handler: (&echoHandler{}).handle})
	rt.Init()

	_, err := rt.Call(context.Background(), "pair", map[string]any{"a": "1", "b": "2"})
	require.NoError(t, err)
	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "tool-input", lines[0]["stage"])
	assert.Equal(t, "pair", lines[0]["tool"])
	assert.Equal(t, map[string]any{"a": "1", "b": "2"}, lines[0]["arguments"])
	assert.Equal(t, "tool-output", lines[1]["stage"])
	result, _ := lines[1]["result"].(map[string]any)
	assert.Equal(t, true, result["success"])

	buf.Reset()
	_, err = rt.Call(context.Background(), "pair", map[string]any{"a": "1"})
	require.Error(t, err)
	lines = decodeLines(t, &buf)
	require.Len(t, lines, 1, "a raised call logs only its input")

	buf.Reset()
	enabled = false
	_, err = rt.Call(context.Background(), "pair", map[string]any{"a": "1", "b": "2"})
	require.NoError(t, err)
	assert.Zero(t, buf.Len())
}

func TestCallLoggerRendersUnencodableValues(t *testing.T) {
	var buf bytes.Buffer
	cl := NewCallLogger(&buf, func() bool { return true })
	cl.Input(context.Background(), "x", map[string]any{"ok": 1, "ch": make(chan int), "list": []any{func() {}}})

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	args, _ := lines[0]["arguments"].(map[string]any)
	assert.Equal(t, float64(1), args["ok"])
	assert.IsType(t, "", args["ch"])
	list, _ := args["list"].([]any)
	require.Len(t, list, 1)
	assert.IsType(t, "", list[0])
}

func TestStructuredLogsEnabledReadsEnv(t *testing.T) {
	t.Setenv("MCP_STRUCTURED_LOGS", "1")
	assert.True(t, StructuredLogsEnabled())
	t.Setenv("MCP_STRUCTURED_LOGS", "true")
	assert.False(t, StructuredLogsEnabled())
}
