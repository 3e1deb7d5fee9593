package tools

import (
	"github.com/quantmcp/quantmcp/internal/schema"
	"github.com/quantmcp/quantmcp/internal/tool"
)

var readAccountRequest = schema.NewRecord("ReadAccountRequest")

func (ts *toolset) accountTools() []definition {
	return []definition{
		ts.define(endpoint{
			name:        "read_account",
			description: "Read the organization account status, balance and currency.",
			annotations: tool.Annotations{Title: "Read account", ReadOnlyHint: true, OpenWorldHint: true},
			request:     readAccountRequest,
			path:        "/account/read",
			transform: func(tool.Args) Transform {
				return func(data map[string]any) (map[string]any, error) {
					return map[string]any{
						"organizationId": str(data, "organizationId"),
						"accountType":    str(data, "accountType"),
						"currency":       str(data, "currency"),
						"balance":        floatOf(data, "balance"),
						"raw":            data,
					}, nil
				}
			},
		}),
	}
}
