package tools

import (
	"fmt"

	"github.com/quantmcp/quantmcp/internal/core"
	"github.com/quantmcp/quantmcp/internal/schema"
	"github.com/quantmcp/quantmcp/internal/tool"
)

var (
	createCompileRequest = schema.NewRecord("CreateCompileRequest", projectIDField())
	readCompileRequest   = schema.NewRecord("ReadCompileRequest",
		projectIDField(),
		schema.Required("compileId", schema.String(), "Compile id returned by create_compile."),
	)
)

func (ts *toolset) compileTools() []definition {
	return []definition{
		ts.define(endpoint{
			name:        "create_compile",
			description: "Compile a project so it can be backtested or deployed.",
			annotations: creates("Create compile"),
			request:     createCompileRequest,
			path:        "/compile/create",
			codeSource:  true,
			payload: func(a tool.Args) (map[string]any, *core.ToolResult) {
				return a.Payload("projectId"), nil
			},
			transform: func(a tool.Args) Transform {
				return func(data map[string]any) (map[string]any, error) {
					projectID := intOf(data, "projectId")
					if projectID == 0 {
						projectID = a.Int("projectId")
					}
					return map[string]any{
						"compileId":      str(data, "compileId"),
						"projectId":      projectID,
						"state":          str(data, "state"),
						"parameterCount": len(listOf(data, "parameters")),
					}, nil
				}
			},
		}),
		ts.define(endpoint{
			name:        "read_compile",
			description: "Read the state and logs of a compile job.",
			annotations: readOnly("Read compile"),
			request:     readCompileRequest,
			path:        "/compile/read",
			payload: func(a tool.Args) (map[string]any, *core.ToolResult) {
				if a.String("compileId") == "" {
					return reject("compileId is required", "Provide the compile id returned from create_compile.")
				}
				return a.Payload("projectId", "compileId"), nil
			},
			transform: func(a tool.Args) Transform {
				return func(data map[string]any) (map[string]any, error) {
					logs := make([]any, 0)
					for _, line := range listOf(data, "logs") {
						logs = append(logs, fmt.Sprint(line))
					}
					compileID := str(data, "compileId")
					if compileID == "" {
						compileID = a.String("compileId")
					}
					return map[string]any{
						"compileId": compileID,
						"state":     str(data, "state"),
						"logs":      logs,
						"logCount":  len(logs),
					}, nil
				}
			},
		}),
	}
}
