package tools

import (
	"github.com/quantmcp/quantmcp/internal/core"
	"github.com/quantmcp/quantmcp/internal/schema"
	"github.com/quantmcp/quantmcp/internal/tool"
)

const (
	codeChartLoading  = "chart-loading"
	codeOrdersLoading = "orders-loading"
)

var (
	createLiveRequest = schema.NewRecord("CreateLiveAlgorithmRequest",
		projectIDField(),
		schema.Required("compileId", schema.String(), "Compile id that produced the deployed binaries."),
		schema.Required("nodeId", schema.String(), "Live trading node to deploy on."),
		schema.Required("versionId", schema.String(), "LEAN version id; -1 for the latest."),
		schema.Required("brokerage", schema.Map(), "Brokerage settings, including the brokerage id."),
		schema.Required("dataProviders", schema.Map(), "Data provider settings keyed by provider."),
		schema.Required("parameters", schema.Map(), "Algorithm parameter overrides."),
		schema.Required("settings", schema.Map(), "Extra deployment settings merged into the request."),
	)
	liveProjectRequest = func(name string) *schema.Record {
		return schema.NewRecord(name, projectIDField())
	}
	readLiveRequest      = liveProjectRequest("ReadLiveAlgorithmRequest")
	readPortfolioRequest = liveProjectRequest("ReadLivePortfolioRequest")
	stopLiveRequest      = liveProjectRequest("StopLiveAlgorithmRequest")
	liquidateLiveRequest = liveProjectRequest("LiquidateLiveAlgorithmRequest")
	listLiveRequest      = schema.NewRecord("ListLiveAlgorithmsRequest",
		schema.Required("projectId", schema.Optional(schema.Integer()), "Restrict to one project; omit for all.").AtLeast(1),
		schema.Required("status", schema.String(), "Deployment status filter, e.g. Running."),
	)
	readLiveChartRequest = schema.NewRecord("ReadLiveChartRequest",
		projectIDField(),
		schema.Required("name", schema.String(), "Chart name, e.g. Strategy Equity."),
		schema.Required("count", schema.Integer(), "Number of points to sample; 0 for all.").AtLeast(0),
		schema.Required("start", schema.Integer(), "Unix start time; 0 for the beginning.").AtLeast(0),
		schema.Required("end", schema.Integer(), "Unix end time; 0 for now.").AtLeast(0),
	)
	readLiveLogsRequest = schema.NewRecord("ReadLiveLogsRequest",
		projectIDField(),
		schema.Required("algorithmId", schema.String(), "Deployment id of the live algorithm."),
		schema.Required("startLine", schema.Integer(), "First log line.").AtLeast(0),
		schema.Required("endLine", schema.Integer(), "Last log line (exclusive).").AtLeast(0),
		schema.Required("format", schema.String(), "Log format; empty for the platform default."),
	)
	readLiveOrdersRequest = schema.NewRecord("ReadLiveOrdersRequest",
		projectIDField(),
		schema.Required("start", schema.Integer(), "First order index.").AtLeast(0),
		schema.Required("end", schema.Integer(), "Last order index (exclusive); end-start must not exceed 1000.").AtLeast(0),
	)
	readLiveInsightsRequest = schema.NewRecord("ReadLiveInsightsRequest",
		projectIDField(),
		schema.Required("start", schema.Integer(), "First insight index.").AtLeast(0),
		schema.Required("end", schema.Integer(), "Last insight index (exclusive).").AtLeast(0),
	)
)

const maxLiveOrderWindow = 1000

func liveSummary(projectID int64, l map[string]any) map[string]any {
	return map[string]any{
		"projectId": projectID,
		"deployId":  str(l, "deployId", "id"),
		"nodeId":    str(l, "nodeId", "hostingId"),
		"status":    str(l, "status"),
		"brokerage": str(l, "brokerage"),
		"versionId": intOf(l, "versionId"),
		"name":      str(l, "name", "projectName"),
		"launched":  str(l, "launched", "created"),
		"raw":       l,
	}
}

func projectOnly(a tool.Args) (map[string]any, *core.ToolResult) {
	return a.Payload("projectId"), nil
}

func liveAction(action string) func(tool.Args) Transform {
	return func(a tool.Args) Transform {
		return func(map[string]any) (map[string]any, error) {
			return map[string]any{"projectId": a.Int("projectId"), "action": action, "completed": true}, nil
		}
	}
}

func liveWindow(a tool.Args) (map[string]any, *core.ToolResult) {
	if a.Int("end") < a.Int("start") {
		return reject("end must not be before start", "Provide an end index greater than start.")
	}
	return a.Payload("projectId", "start", "end"), nil
}

func (ts *toolset) liveTools() []definition {
	return []definition{
		ts.define(endpoint{
			name:        "create_live_algorithm",
			description: "Deploy a compiled project to a live trading node.",
			annotations: creates("Create live algorithm"),
			request:     createLiveRequest,
			defaults: map[string]any{
				"dataProviders": map[string]any{},
				"parameters":    map[string]any{},
				"settings":      map[string]any{},
			},
			path:       "/live/create",
			codeSource: true,
			payload: func(a tool.Args) (map[string]any, *core.ToolResult) {
				switch {
				case a.String("compileId") == "":
					return reject("compileId is required",
						"Provide the compile id that produced the binaries for this live deployment.")
				case a.String("nodeId") == "":
					return reject("nodeId is required",
						"Select an available live trading node from the project nodes list.")
				case len(a.Map("brokerage")) == 0:
					return reject("brokerage configuration must be provided",
						"Provide the brokerage settings object required by QuantConnect.")
				}
				return core.Merge(
					a.Payload("projectId", "compileId", "nodeId", "versionId", "brokerage"),
					nonEmpty(a, "dataProviders", "parameters"),
					a.Map("settings"),
				), nil
			},
			transform: func(a tool.Args) Transform {
				return func(data map[string]any) (map[string]any, error) {
					projectID := intOf(data, "projectId")
					if projectID == 0 {
						projectID = a.Int("projectId")
					}
					live := objectOf(data, "live")
					return map[string]any{
						"projectId": projectID,
						"deployId":  str(data, "deployId"),
						"status":    str(live, "status"),
						"brokerage": str(live, "brokerage"),
						"nodeId":    str(live, "nodeId"),
						"versionId": intOf(data, "versionId"),
						"raw":       data,
					}, nil
				}
			},
		}),
		ts.define(endpoint{
			name:        "read_live_algorithm",
			description: "Read the state of a project's live deployment.",
			annotations: readOnly("Read live algorithm"),
			request:     readLiveRequest,
			path:        "/live/read",
			payload:     projectOnly,
			transform: func(a tool.Args) Transform {
				return func(data map[string]any) (map[string]any, error) {
					return liveSummary(a.Int("projectId"), objectOf(data, "live")), nil
				}
			},
		}),
		ts.define(endpoint{
			name:        "list_live_algorithms",
			description: "List live deployments, optionally for one project or status.",
			annotations: readOnly("List live algorithms"),
			request:     listLiveRequest,
			defaults:    map[string]any{"projectId": nil, "status": ""},
			path:        "/live/list",
			payload: func(a tool.Args) (map[string]any, *core.ToolResult) {
				return core.Merge(a.Payload("projectId"), nonEmpty(a, "status")), nil
			},
			transform: func(a tool.Args) Transform {
				return func(data map[string]any) (map[string]any, error) {
					projectID := intOf(data, "projectId")
					if projectID == 0 {
						projectID = a.Int("projectId")
					}
					deployments := mapEach(objects(data, "live"), func(l map[string]any) map[string]any {
						pid := intOf(l, "projectId")
						if pid == 0 {
							pid = projectID
						}
						return liveSummary(pid, l)
					})
					return map[string]any{
						"projectId":    projectID,
						"statusFilter": a.String("status"),
						"count":        len(listOf(data, "live")),
						"deployments":  deployments,
					}, nil
				}
			},
		}),
		ts.define(endpoint{
			name:        "read_live_chart",
			description: "Read one chart of a live deployment.",
			annotations: readOnly("Read live chart"),
			request:     readLiveChartRequest,
			defaults:    map[string]any{"count": 0, "start": 0, "end": 0},
			path:        "/live/chart/read",
			payload: func(a tool.Args) (map[string]any, *core.ToolResult) {
				if a.String("name") == "" {
					return reject("projectId and name are required", "Provide the project id and chart name to retrieve.")
				}
				return a.Payload("projectId", "name", "count", "start", "end"), nil
			},
			transform: func(a tool.Args) Transform {
				return func(data map[string]any) (map[string]any, error) {
					if err := stillLoading(data, codeChartLoading, "Chart is generating",
						"Retry after the live chart finishes loading."); err != nil {
						return nil, err
					}
					return map[string]any{
						"projectId":   a.Int("projectId"),
						"chartName":   a.String("name"),
						"seriesCount": len(objectOf(objectOf(data, "chart"), "series")),
						"raw":         data,
					}, nil
				}
			},
		}),
		ts.define(endpoint{
			name:        "read_live_logs",
			description: "Read log lines of a live deployment.",
			annotations: readOnly("Read live logs"),
			request:     readLiveLogsRequest,
			defaults:    map[string]any{"format": ""},
			path:        "/live/logs/read",
			payload: func(a tool.Args) (map[string]any, *core.ToolResult) {
				if a.String("algorithmId") == "" {
					return reject("projectId and algorithmId are required", "Provide the project id and live deployment id.")
				}
				if a.Int("endLine") < a.Int("startLine") {
					return reject("endLine must not be before startLine", "Provide numeric line offsets.")
				}
				return core.Merge(
					a.Payload("projectId", "algorithmId", "startLine", "endLine"),
					nonEmpty(a, "format"),
				), nil
			},
			transform: func(a tool.Args) Transform {
				return func(data map[string]any) (map[string]any, error) {
					return map[string]any{
						"projectId": a.Int("projectId"),
						"deployId":  a.String("algorithmId"),
						"lines":     len(listOf(data, "logs")),
						"total":     intOf(data, "length"),
						"raw":       data,
					}, nil
				}
			},
		}),
		ts.define(endpoint{
			name:        "read_live_portfolio",
			description: "Read holdings and cash of a live deployment.",
			annotations: readOnly("Read live portfolio"),
			request:     readPortfolioRequest,
			path:        "/live/portfolio/read",
			payload:     projectOnly,
			transform: func(a tool.Args) Transform {
				return func(data map[string]any) (map[string]any, error) {
					portfolio := objectOf(data, "portfolio")
					return map[string]any{
						"projectId": a.Int("projectId"),
						"holdings":  len(objectOf(portfolio, "holdings")),
						"cash":      floatOf(objectOf(portfolio, "cashBook"), "TotalValue"),
						"raw":       data,
					}, nil
				}
			},
		}),
		ts.define(endpoint{
			name:        "read_live_orders",
			description: "Read a page of the orders a live deployment placed.",
			annotations: readOnly("Read live orders"),
			request:     readLiveOrdersRequest,
			defaults:    map[string]any{"start": 0, "end": 100},
			path:        "/live/orders/read",
			payload: func(a tool.Args) (map[string]any, *core.ToolResult) {
				if a.Int("end")-a.Int("start") > maxLiveOrderWindow {
					return reject("end-start must not exceed 1000", "Provide numeric start and end indices (end-start <= 1000).")
				}
				return liveWindow(a)
			},
			transform: func(a tool.Args) Transform {
				return func(data map[string]any) (map[string]any, error) {
					if err := stillLoading(data, codeOrdersLoading, "Orders are still loading",
						"Retry after the live orders finish loading."); err != nil {
						return nil, err
					}
					return map[string]any{
						"projectId":  a.Int("projectId"),
						"backtestId": str(data, "backtestId"),
						"orderCount": len(listOf(data, "orders")),
						"offset":     intOf(data, "offset"),
						"raw":        data,
					}, nil
				}
			},
		}),
		ts.define(endpoint{
			name:        "read_live_insights",
			description: "Read a page of the insights a live deployment emitted.",
			annotations: readOnly("Read live insights"),
			request:     readLiveInsightsRequest,
			defaults:    map[string]any{"start": 0, "end": 100},
			path:        "/live/insights/read",
			payload:     liveWindow,
			transform: func(a tool.Args) Transform {
				return func(data map[string]any) (map[string]any, error) {
					return map[string]any{
						"projectId": a.Int("projectId"),
						"start":     a.Int("start"),
						"end":       a.Int("end"),
						"count":     len(listOf(data, "insights")),
						"raw":       data,
					}, nil
				}
			},
		}),
		ts.define(endpoint{
			name:        "stop_live_algorithm",
			description: "Stop a live deployment.",
			annotations: destructive("Stop live algorithm"),
			request:     stopLiveRequest,
			path:        "/live/update/stop",
			payload:     projectOnly,
			transform:   liveAction("stop"),
		}),
		ts.define(endpoint{
			name:        "liquidate_live_algorithm",
			description: "Liquidate all holdings of a live deployment.",
			annotations: destructive("Liquidate live algorithm"),
			request:     liquidateLiveRequest,
			path:        "/live/update/liquidate",
			payload:     projectOnly,
			transform:   liveAction("liquidate"),
		}),
	}
}
