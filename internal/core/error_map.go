package core

import (
	"context"
	"errors"
)

// CodedError is implemented by domain errors that carry a machine-readable code.
type CodedError interface {
	error
	ErrorCode() string
}

// HintedError is implemented by errors that know how the caller can recover.
type HintedError interface {
	error
	Hint() string
}

var defaultHints = map[string]string{
	CodeAPIHTTP:             "Verify credentials and payload fields for this QuantConnect API call.",
	CodeAPIRequest:          "Check MCP network connectivity.",
	CodeAPIInternal:         "Retry later or inspect server logs.",
	CodeResultNormalization: "File a bug with tool inputs.",
	CodeInternal:            "Retry later or inspect server logs.",
}

// DefaultHint returns the recovery hint used for code when the error
// itself carries none.
func DefaultHint(code string) string {
	return defaultHints[code]
}

// MapError classifies a handler error into a tool error. Coded errors keep
// their code; deadline and cancellation count as request failures; anything
// else is an internal API failure.
func MapError(err error) ToolError {
	if err == nil {
		return ToolError{Code: CodeInternal, Message: "internal error", Hint: DefaultHint(CodeInternal)}
	}

	code := CodeAPIInternal
	var coded CodedError
	switch {
	case errors.As(err, &coded) && coded.ErrorCode() != "":
		code = coded.ErrorCode()
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		code = CodeAPIRequest
	}

	hint := DefaultHint(code)
	var hinted HintedError
	if errors.As(err, &hinted) && hinted.Hint() != "" {
		hint = hinted.Hint()
	}
	return ToolError{Code: code, Message: err.Error(), Hint: hint}
}

// FailureFromError maps err and wraps it in an error envelope.
func FailureFromError(err error) ToolResult {
	te := MapError(err)
	return Failure(te.Code, te.Message, te.Hint)
}
