package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
)

const (
	stageInput  = "tool-input"
	stageOutput = "tool-output"
)

// StructuredLogsEnv toggles call logging; only "1" turns it on.
const StructuredLogsEnv = "MCP_STRUCTURED_LOGS"

// StructuredLogsEnabled reads StructuredLogsEnv on every call.
func StructuredLogsEnabled() bool {
	return os.Getenv(StructuredLogsEnv) == "1"
}

// CallLogger writes one JSON line per tool-call stage while enabled.
type CallLogger struct {
	logger  *slog.Logger
	enabled func() bool
}

// NewCallLogger logs to w. A nil enabled func means StructuredLogsEnabled.
func NewCallLogger(w io.Writer, enabled func() bool) *CallLogger {
	if enabled == nil {
		enabled = StructuredLogsEnabled
	}
	return &CallLogger{
		logger:  slog.New(slog.NewJSONHandler(w, nil)),
		enabled: enabled,
	}
}

// Enabled is evaluated once per call so a single call logs both stages or
// neither.
func (l *CallLogger) Enabled() bool {
	return l != nil && l.enabled()
}

func (l *CallLogger) Input(ctx context.Context, tool string, args map[string]any) {
	l.logger.InfoContext(ctx, "tool call",
		"stage", stageInput,
		"tool", tool,
		"arguments", jsonSafe(args),
	)
}

func (l *CallLogger) Output(ctx context.Context, tool string, result any) {
	l.logger.InfoContext(ctx, "tool call",
		"stage", stageOutput,
		"tool", tool,
		"result", jsonSafe(result),
	)
}

// jsonSafe returns v as raw JSON, replacing any part that cannot be encoded
// with its fmt.Sprint text.
func jsonSafe(v any) any {
	if raw, err := json.Marshal(v); err == nil {
		return json.RawMessage(raw)
	}
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = jsonSafe(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = jsonSafe(val)
		}
		return out
	}
	return fmt.Sprint(v)
}
