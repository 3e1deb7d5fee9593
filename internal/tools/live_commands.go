package tools

import (
	"github.com/quantmcp/quantmcp/internal/core"
	"github.com/quantmcp/quantmcp/internal/schema"
	"github.com/quantmcp/quantmcp/internal/tool"
)

var (
	createLiveCommandRequest = schema.NewRecord("CreateLiveCommandRequest",
		projectIDField(),
		schema.Required("command", schema.Map(), "Command object; $type names the command class."),
	)
	broadcastLiveCommandRequest = schema.NewRecord("BroadcastLiveCommandRequest",
		schema.Required("organizationId", schema.String(), "Organization whose live algorithms receive the command."),
		schema.Required("command", schema.Map(), "Command object; $type names the command class."),
		schema.Required("excludeProjectId", schema.Optional(schema.Integer()), "Project to skip; omit to reach every deployment.").AtLeast(1),
	)
)

func commandType(command map[string]any) string {
	return str(command, "$type", "type")
}

func requireCommand(a tool.Args) *core.ToolResult {
	if len(a.Map("command")) == 0 {
		_, early := reject("command must be a non-empty object", "Provide the live command as a JSON object.")
		return early
	}
	return nil
}

func (ts *toolset) liveCommandTools() []definition {
	return []definition{
		ts.define(endpoint{
			name:        "create_live_command",
			description: "Send a command to a project's live algorithm.",
			annotations: creates("Create live command"),
			request:     createLiveCommandRequest,
			path:        "/live/commands/create",
			payload: func(a tool.Args) (map[string]any, *core.ToolResult) {
				if early := requireCommand(a); early != nil {
					return nil, early
				}
				return a.Payload("projectId", "command"), nil
			},
			transform: func(a tool.Args) Transform {
				return func(data map[string]any) (map[string]any, error) {
					return map[string]any{
						"projectId":   a.Int("projectId"),
						"commandType": commandType(a.Map("command")),
						"raw":         data,
					}, nil
				}
			},
		}),
		ts.define(endpoint{
			name:        "broadcast_live_command",
			description: "Send a command to every live algorithm of an organization.",
			annotations: creates("Broadcast live command"),
			request:     broadcastLiveCommandRequest,
			defaults:    map[string]any{"excludeProjectId": nil},
			path:        "/live/commands/broadcast",
			payload: func(a tool.Args) (map[string]any, *core.ToolResult) {
				if a.String("organizationId") == "" {
					return reject("organizationId is required", "Provide the QuantConnect organization id.")
				}
				if early := requireCommand(a); early != nil {
					return nil, early
				}
				return a.Payload("organizationId", "command", "excludeProjectId"), nil
			},
			transform: func(a tool.Args) Transform {
				return func(data map[string]any) (map[string]any, error) {
					out := map[string]any{
						"organizationId": a.String("organizationId"),
						"commandType":    commandType(a.Map("command")),
						"raw":            data,
					}
					if a.Has("excludeProjectId") {
						out["projectId"] = a.Int("excludeProjectId")
					}
					return out, nil
				}
			},
		}),
	}
}
