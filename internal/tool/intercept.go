package tool

import (
	"context"
	"errors"
	"strings"

	"github.com/quantmcp/quantmcp/internal/core"
	"github.com/quantmcp/quantmcp/internal/schema"
)

const missingHintPrefix = "Provide values for required fields: "

// handle runs one invocation of t: unwrap, defaults, pre-parse, validate,
// then the handler. direct holds host-supplied values merged in after
// validation.
func (r *Runtime) handle(ctx context.Context, t *Tool, raw, direct map[string]any) (core.ToolResult, error) {
	args := Unwrap(raw)

	contract, _ := r.registry.ByID(t.ID)
	if contract != nil && len(contract.Defaults) > 0 {
		args = core.Merge(contract.Defaults, args)
	}

	args = schema.PreParse(t.Args, args)
	validated, err := schema.Validate(t.Args, args)
	if err != nil {
		if contract == nil {
			return core.ToolResult{}, err
		}
		var verr *schema.ValidationError
		if !errors.As(err, &verr) {
			return core.ToolResult{}, err
		}
		return validationFailure(verr), nil
	}

	if len(direct) > 0 {
		validated = core.Merge(validated, direct)
	}
	return t.handler(ctx, Args(validated))
}

func validationFailure(verr *schema.ValidationError) core.ToolResult {
	message := verr.Summary()
	if message == "" {
		message = "Invalid request payload"
	}
	hint := ""
	if missing := verr.Missing(); len(missing) > 0 {
		hint = missingHintPrefix + strings.Join(missing, ", ")
	}
	return core.Failure(core.CodeValidation, message, hint)
}
