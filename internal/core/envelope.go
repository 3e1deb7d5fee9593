package core

// ToolResult is the standard response wrapper for all tool calls.
// Exactly one of Data (non-empty) and Error.Code (non-empty) is populated.
type ToolResult struct {
	Success bool           `json:"success"`
	Error   ToolError      `json:"error"`
	Data    map[string]any `json:"data"`
}

// ToolError represents a tool-level error (distinct from transport errors).
// All fields are empty strings on success.
type ToolError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Hint    string `json:"hint"`
}

const (
	CodeValidation          = "validation-error"
	CodeAPIHTTP             = "api-http-error"
	CodeAPIRequest          = "api-request-error"
	CodeAPIInternal         = "api-internal-error"
	CodeResultNormalization = "result-normalization-error"
	CodeInternal            = "internal-error"
)

// EmptyResultKey holds a placeholder when a handler succeeds with no data,
// so a success envelope never carries an empty data object.
const EmptyResultKey = "result"

// Success sanitizes data and wraps it in a success envelope.
func Success(data map[string]any) ToolResult {
	clean, _ := Sanitize(data).(map[string]any)
	if len(clean) == 0 {
		clean = map[string]any{EmptyResultKey: ""}
	}
	return ToolResult{Success: true, Data: clean}
}

// Failure builds an error envelope with empty data.
func Failure(code, message, hint string) ToolResult {
	if code == "" {
		code = CodeInternal
	}
	return ToolResult{
		Success: false,
		Error:   ToolError{Code: code, Message: message, Hint: hint},
		Data:    map[string]any{},
	}
}

// Merge shallow-merges maps; later maps win on conflicting keys.
func Merge(results ...map[string]any) map[string]any {
	merged := make(map[string]any)
	for _, r := range results {
		for k, v := range r {
			merged[k] = v
		}
	}
	return merged
}

// Valid reports whether r satisfies the exactly-one-of invariant.
func (r ToolResult) Valid() bool {
	hasData := len(r.Data) > 0
	hasErr := r.Error.Code != ""
	return hasData != hasErr && r.Success == hasData
}
