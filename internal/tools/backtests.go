package tools

import (
	"github.com/quantmcp/quantmcp/internal/core"
	"github.com/quantmcp/quantmcp/internal/schema"
	"github.com/quantmcp/quantmcp/internal/tool"
)

func backtestIDField() schema.Field {
	return schema.Required("backtestId", schema.String(), "Id of the backtest.")
}

var (
	createBacktestRequest = schema.NewRecord("CreateBacktestRequest",
		projectIDField(),
		schema.Required("compileId", schema.String(), "Compile id to backtest."),
		schema.Required("backtestName", schema.String(), "Name for the new backtest."),
		schema.Required("parameters", schema.Map(), "Algorithm parameter overrides."),
		schema.Required("note", schema.String(), "Free-form note attached to the backtest."),
	)
	readBacktestRequest  = schema.NewRecord("ReadBacktestRequest", projectIDField(), backtestIDField())
	listBacktestsRequest = schema.NewRecord("ListBacktestsRequest",
		projectIDField(),
		schema.Required("start", schema.Integer(), "Pagination start index.").AtLeast(0),
		schema.Required("end", schema.Integer(), "Pagination end index; 0 means no limit.").AtLeast(0),
	)
	readBacktestChartRequest = schema.NewRecord("ReadBacktestChartRequest",
		projectIDField(),
		backtestIDField(),
		schema.Required("chartName", schema.String(), "Chart to read, e.g. Strategy Equity."),
	)
	readBacktestOrdersRequest = schema.NewRecord("ReadBacktestOrdersRequest",
		projectIDField(),
		backtestIDField(),
		schema.Required("start", schema.Integer(), "First order index.").AtLeast(0),
		schema.Required("end", schema.Integer(), "Last order index (exclusive).").AtLeast(0),
	)
	readBacktestInsightsRequest = schema.NewRecord("ReadBacktestInsightsRequest",
		projectIDField(),
		backtestIDField(),
		schema.Required("start", schema.Integer(), "First insight index.").AtLeast(0),
		schema.Required("end", schema.Integer(), "Last insight index (exclusive).").AtLeast(0),
	)
	updateBacktestRequest = schema.NewRecord("UpdateBacktestRequest",
		projectIDField(),
		backtestIDField(),
		schema.Required("name", schema.String(), "New backtest name."),
		schema.Required("note", schema.String(), "New backtest note."),
	)
	deleteBacktestRequest = schema.NewRecord("DeleteBacktestRequest", projectIDField(), backtestIDField())
)

func backtestSummary(projectID int64, b map[string]any) map[string]any {
	params := objectOf(b, "parameterSet")
	if len(params) == 0 {
		params = objectOf(b, "parameters")
	}
	return map[string]any{
		"projectId":  projectID,
		"backtestId": str(b, "backtestId", "id"),
		"name":       str(b, "name"),
		"status":     str(b, "status", "state"),
		"note":       str(b, "note"),
		"progress":   floatOf(b, "progress"),
		"parameters": params,
		"equity":     floatOf(b, "equity"),
		"raw":        b,
	}
}

func singleBacktest(a tool.Args) Transform {
	projectID, backtestID := a.Int("projectId"), a.String("backtestId")
	return func(data map[string]any) (map[string]any, error) {
		if b, ok := data["backtest"].(map[string]any); ok {
			return backtestSummary(projectID, b), nil
		}
		return map[string]any{"projectId": projectID, "backtestId": backtestID, "raw": data}, nil
	}
}

func requireBacktest(a tool.Args) (map[string]any, *core.ToolResult) {
	if a.String("backtestId") == "" {
		return reject("projectId and backtestId are required", "Provide the project id and backtest id.")
	}
	return a.Payload("projectId", "backtestId"), nil
}

func countOf(key, countKey string) func(tool.Args) Transform {
	return func(a tool.Args) Transform {
		return func(data map[string]any) (map[string]any, error) {
			return map[string]any{
				"projectId":  a.Int("projectId"),
				"backtestId": a.String("backtestId"),
				countKey:     len(listOf(data, key)),
				"raw":        data,
			}, nil
		}
	}
}

func (ts *toolset) backtestTools() []definition {
	return []definition{
		ts.define(endpoint{
			name:        "create_backtest",
			description: "Start a backtest from a compiled project.",
			annotations: creates("Create backtest"),
			request:     createBacktestRequest,
			defaults:    map[string]any{"parameters": map[string]any{}, "note": ""},
			path:        "/backtests/create",
			codeSource:  true,
			payload: func(a tool.Args) (map[string]any, *core.ToolResult) {
				if a.String("compileId") == "" {
					return reject("compileId is required", "Provide the compile id to backtest.")
				}
				return core.Merge(
					a.Payload("projectId", "compileId", "backtestName"),
					nonEmpty(a, "parameters", "note"),
				), nil
			},
			transform: singleBacktest,
		}),
		ts.define(endpoint{
			name:        "read_backtest",
			description: "Read the results of a backtest.",
			annotations: readOnly("Read backtest"),
			request:     readBacktestRequest,
			path:        "/backtests/read",
			payload:     requireBacktest,
			transform:   singleBacktest,
		}),
		ts.define(endpoint{
			name:        "list_backtests",
			description: "List the backtests of a project.",
			annotations: readOnly("List backtests"),
			request:     listBacktestsRequest,
			defaults:    map[string]any{"start": 0, "end": 0},
			path:        "/backtests/list",
			payload: func(a tool.Args) (map[string]any, *core.ToolResult) {
				body := a.Payload("projectId")
				if a.Int("end") > 0 {
					if a.Int("end") < a.Int("start") {
						return reject("end must not be before start", "Provide an end index greater than start.")
					}
					body["start"] = a.Int("start")
					body["end"] = a.Int("end")
				}
				return body, nil
			},
			transform: func(a tool.Args) Transform {
				projectID := a.Int("projectId")
				return func(data map[string]any) (map[string]any, error) {
					backtests := mapEach(objects(data, "backtests"), func(b map[string]any) map[string]any {
						pid := intOf(b, "projectId")
						if pid == 0 {
							pid = projectID
						}
						return backtestSummary(pid, b)
					})
					return map[string]any{"projectId": projectID, "count": len(backtests), "backtests": backtests}, nil
				}
			},
		}),
		ts.define(endpoint{
			name:        "read_backtest_chart",
			description: "Read one chart of a backtest.",
			annotations: readOnly("Read backtest chart"),
			request:     readBacktestChartRequest,
			path:        "/backtests/chart/read",
			payload: func(a tool.Args) (map[string]any, *core.ToolResult) {
				if a.String("backtestId") == "" || a.String("chartName") == "" {
					return reject("projectId, backtestId, and chartName are required",
						"Provide the project id, backtest id, and chart name.")
				}
				return a.Payload("projectId", "backtestId", "chartName"), nil
			},
			transform: func(a tool.Args) Transform {
				return func(data map[string]any) (map[string]any, error) {
					return map[string]any{
						"projectId":   a.Int("projectId"),
						"backtestId":  a.String("backtestId"),
						"chartName":   a.String("chartName"),
						"seriesCount": len(objectOf(objectOf(data, "chart"), "series")),
						"raw":         data,
					}, nil
				}
			},
		}),
		ts.define(endpoint{
			name:        "read_backtest_orders",
			description: "Read a page of the orders a backtest placed.",
			annotations: readOnly("Read backtest orders"),
			request:     readBacktestOrdersRequest,
			defaults:    map[string]any{"start": 0, "end": 100},
			path:        "/backtests/orders/read",
			payload:     pagedBacktest,
			transform:   countOf("orders", "orderCount"),
		}),
		ts.define(endpoint{
			name:        "read_backtest_insights",
			description: "Read a page of the insights a backtest emitted.",
			annotations: readOnly("Read backtest insights"),
			request:     readBacktestInsightsRequest,
			defaults:    map[string]any{"start": 0, "end": 100},
			path:        "/backtests/read/insights",
			payload:     pagedBacktest,
			transform:   countOf("insights", "insightCount"),
		}),
		ts.define(endpoint{
			name:        "update_backtest",
			description: "Rename a backtest or change its note.",
			annotations: idempotent("Update backtest"),
			request:     updateBacktestRequest,
			defaults:    map[string]any{"name": "", "note": ""},
			path:        "/backtests/update",
			payload: func(a tool.Args) (map[string]any, *core.ToolResult) {
				body, early := requireBacktest(a)
				if early != nil {
					return nil, early
				}
				if a.String("name") == "" && a.String("note") == "" {
					return reject("Provide a name and/or note", "Specify at least one field to update.")
				}
				return core.Merge(body, nonEmpty(a, "name", "note")), nil
			},
			transform: func(a tool.Args) Transform {
				return func(map[string]any) (map[string]any, error) {
					return map[string]any{"projectId": a.Int("projectId"), "backtestId": a.String("backtestId"), "updated": true}, nil
				}
			},
		}),
		ts.define(endpoint{
			name:        "delete_backtest",
			description: "Delete a backtest.",
			annotations: tool.Annotations{Title: "Delete backtest", DestructiveHint: true, IdempotentHint: true},
			request:     deleteBacktestRequest,
			path:        "/backtests/delete",
			payload:     requireBacktest,
			transform: func(a tool.Args) Transform {
				return func(map[string]any) (map[string]any, error) {
					return map[string]any{"projectId": a.Int("projectId"), "backtestId": a.String("backtestId"), "deleted": true}, nil
				}
			},
		}),
	}
}

func pagedBacktest(a tool.Args) (map[string]any, *core.ToolResult) {
	body, early := requireBacktest(a)
	if early != nil {
		return nil, early
	}
	if a.Int("end") < a.Int("start") {
		return reject("end must not be before start", "Provide an end index greater than start.")
	}
	body["start"] = a.Int("start")
	body["end"] = a.Int("end")
	return body, nil
}
