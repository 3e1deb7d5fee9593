package tools

import (
	"github.com/quantmcp/quantmcp/internal/schema"
	"github.com/quantmcp/quantmcp/internal/tool"
)

var readLeanVersionsRequest = schema.NewRecord("ReadLeanVersionsRequest")

func leanVersion(v map[string]any) map[string]any {
	return map[string]any{
		"id":            intOf(v, "id"),
		"name":          str(v, "name"),
		"description":   str(v, "description"),
		"created":       str(v, "created"),
		"leanHash":      str(v, "leanHash"),
		"leanCloudHash": str(v, "leanCloudHash"),
		"public":        boolOf(v, "public"),
	}
}

func (ts *toolset) leanVersionTools() []definition {
	return []definition{
		ts.define(endpoint{
			name:        "read_lean_versions",
			description: "List the LEAN engine versions available for backtests and live trading.",
			annotations: readOnly("Read LEAN versions"),
			request:     readLeanVersionsRequest,
			path:        "/lean/versions/read",
			transform: func(tool.Args) Transform {
				return func(data map[string]any) (map[string]any, error) {
					versions := mapEach(objects(data, "versions"), leanVersion)
					return map[string]any{"count": len(versions), "versions": versions}, nil
				}
			},
		}),
	}
}
