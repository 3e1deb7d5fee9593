package tools

import (
	"github.com/quantmcp/quantmcp/internal/core"
	"github.com/quantmcp/quantmcp/internal/schema"
	"github.com/quantmcp/quantmcp/internal/tool"
)

var (
	readProjectNodesRequest   = schema.NewRecord("ReadProjectNodesRequest", projectIDField())
	updateProjectNodesRequest = schema.NewRecord("UpdateProjectNodesRequest",
		projectIDField(),
		schema.Required("nodes", schema.ListOf(schema.String()), "Node ids to enable; empty selects nodes automatically."),
	)
)

var nodeCategories = []string{"backtest", "live", "research"}

func normalizeNodes(projectID int64) Transform {
	return func(data map[string]any) (map[string]any, error) {
		out := map[string]any{
			"projectId":  projectID,
			"autoSelect": boolOf(data, "autoSelectNode"),
		}
		nodes := objectOf(data, "nodes")
		for _, category := range nodeCategories {
			out[category] = mapEach(objects(nodes, category), func(n map[string]any) map[string]any {
				return map[string]any{
					"id":     str(n, "id"),
					"sku":    str(n, "sku"),
					"name":   str(n, "name"),
					"active": boolOf(n, "active"),
					"busy":   boolOf(n, "busy"),
					"cpu":    intOf(n, "cpu"),
					"ram":    floatOf(n, "ram"),
					"hasGpu": intOf(n, "hasGpu"),
				}
			})
		}
		return out, nil
	}
}

func (ts *toolset) projectNodeTools() []definition {
	nodes := func(a tool.Args) Transform { return normalizeNodes(a.Int("projectId")) }

	return []definition{
		ts.define(endpoint{
			name:        "read_project_nodes",
			description: "Read the backtest, live and research nodes available to a project.",
			annotations: readOnly("Read project nodes"),
			request:     readProjectNodesRequest,
			path:        "/projects/nodes/read",
			payload: func(a tool.Args) (map[string]any, *core.ToolResult) {
				return a.Payload("projectId"), nil
			},
			transform: nodes,
		}),
		ts.define(endpoint{
			name:        "update_project_nodes",
			description: "Enable specific nodes for a project, or return to automatic selection.",
			annotations: idempotent("Update project nodes"),
			request:     updateProjectNodesRequest,
			defaults:    map[string]any{"nodes": []any{}},
			path:        "/projects/nodes/update",
			payload: func(a tool.Args) (map[string]any, *core.ToolResult) {
				return core.Merge(a.Payload("projectId"), nonEmpty(a, "nodes")), nil
			},
			transform: nodes,
		}),
	}
}
