package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/quantmcp/quantmcp/internal/core"
	"github.com/quantmcp/quantmcp/internal/tool"
)

// API is the platform client surface tool handlers need.
type API interface {
	Post(ctx context.Context, endpoint string, payload map[string]any) (any, error)
	Upload(ctx context.Context, endpoint string, fields map[string]string, fileField string, data []byte) (any, error)
}

// ReleaseSource reports the newest published server version.
type ReleaseSource interface {
	Latest(ctx context.Context) (string, error)
}

// Transform reshapes a decoded platform response into envelope data.
type Transform func(response map[string]any) (map[string]any, error)

const wrapKey = "result"

// execute posts payload and converts the outcome into an envelope. Handler
// failures never escape as Go errors: they become api-* error envelopes.
func execute(ctx context.Context, api API, logger *slog.Logger, endpoint string, payload map[string]any, transform Transform) (core.ToolResult, error) {
	response, err := api.Post(ctx, endpoint, payload)
	return finish(logger, endpoint, response, err, transform)
}

// finish turns a platform response, or the error that replaced it, into an
// envelope.
func finish(logger *slog.Logger, endpoint string, response any, err error, transform Transform) (core.ToolResult, error) {
	if err != nil {
		te := core.MapError(err)
		if te.Code == core.CodeAPIInternal {
			logger.Error("unexpected platform failure", "endpoint", endpoint, "err", err)
		} else {
			logger.Debug("platform call failed", "endpoint", endpoint, "code", te.Code, "err", err)
		}
		return core.Failure(te.Code, te.Message, te.Hint), nil
	}

	data, err := normalize(response, transform)
	var pending *pendingError
	if errors.As(err, &pending) {
		return core.Failure(pending.code, pending.message, pending.hint), nil
	}
	if err != nil {
		logger.Error("post-processing failure", "endpoint", endpoint, "err", err)
		return core.Failure(core.CodeResultNormalization, err.Error(), core.DefaultHint(core.CodeResultNormalization)), nil
	}
	return core.Success(data), nil
}

func normalize(response any, transform Transform) (data map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("normalize response: %v", r)
		}
	}()
	if transform == nil {
		return ensureMap(response), nil
	}
	m, ok := response.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected an object response, got %T", response)
	}
	return transform(m)
}

func ensureMap(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{wrapKey: v}
}

// pendingError is returned by a transform when the platform answered with a
// progress report instead of the requested data.
type pendingError struct {
	code    string
	message string
	hint    string
}

func (e *pendingError) Error() string { return e.message }

// stillLoading reports a progress-only response as a code failure, or nil
// when data carries no progress field.
func stillLoading(data map[string]any, code, what, hint string) error {
	progress, ok := data["progress"]
	if !ok {
		return nil
	}
	return &pendingError{
		code:    code,
		message: fmt.Sprintf("%s. Progress: %v", what, core.Sanitize(progress)),
		hint:    hint,
	}
}

// reject ends a payload builder with a validation-error envelope.
func reject(message, hint string) (map[string]any, *core.ToolResult) {
	res := core.Failure(core.CodeValidation, message, hint)
	return nil, &res
}

// Response field readers. The platform is loose about types, so each one
// accepts the shapes seen in practice and falls back to the zero value.

func str(m map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case nil:
			continue
		case string:
			if v != "" {
				return v
			}
		case map[string]any:
			for _, inner := range []string{"value", "status", "state"} {
				if s, ok := v[inner]; ok && s != nil {
					return fmt.Sprint(s)
				}
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		default:
			return fmt.Sprint(v)
		}
	}
	return ""
}

func intOf(m map[string]any, keys ...string) int64 {
	for _, k := range keys {
		switch v := m[k].(type) {
		case float64:
			return int64(v)
		case int64:
			return v
		case int:
			return int64(v)
		case string:
			if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
				return n
			}
		}
	}
	return 0
}

func floatOf(m map[string]any, keys ...string) float64 {
	for _, k := range keys {
		switch v := m[k].(type) {
		case float64:
			return v
		case int64:
			return float64(v)
		case int:
			return float64(v)
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return f
			}
		}
	}
	return 0
}

func boolOf(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}

func objectOf(m map[string]any, key string) map[string]any {
	o, _ := m[key].(map[string]any)
	if o == nil {
		return map[string]any{}
	}
	return o
}

func listOf(m map[string]any, key string) []any {
	l, _ := m[key].([]any)
	return l
}

// objects returns the object entries of the list under key.
func objects(m map[string]any, key string) []map[string]any {
	out := make([]map[string]any, 0)
	for _, item := range listOf(m, key) {
		if o, ok := item.(map[string]any); ok {
			out = append(out, o)
		}
	}
	return out
}

func mapEach(items []map[string]any, fn func(map[string]any) map[string]any) []any {
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = fn(item)
	}
	return out
}

// nonEmpty copies entries from args whose value is set and not an empty
// string, list or object.
func nonEmpty(args tool.Args, names ...string) map[string]any {
	out := make(map[string]any, len(names))
	for _, n := range names {
		switch v := args[n].(type) {
		case nil:
		case string:
			if v != "" {
				out[n] = v
			}
		case []any:
			if len(v) > 0 {
				out[n] = v
			}
		case map[string]any:
			if len(v) > 0 {
				out[n] = v
			}
		default:
			out[n] = v
		}
	}
	return out
}
