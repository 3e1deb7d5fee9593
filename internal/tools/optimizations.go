package tools

import (
	"github.com/quantmcp/quantmcp/internal/core"
	"github.com/quantmcp/quantmcp/internal/schema"
	"github.com/quantmcp/quantmcp/internal/tool"
)

var (
	optimizationParameter = schema.NewRecord("OptimizationParameter",
		schema.Required("name", schema.String(), "Algorithm parameter name."),
		schema.Required("min", schema.Number(), "Lowest value to try."),
		schema.Required("max", schema.Number(), "Highest value to try."),
		schema.Required("step", schema.Number(), "Increment between values.").AtLeast(0),
		schema.Opt("minStep", schema.Optional(schema.Number()), nil, "Smallest step for adaptive strategies."),
	)
	optimizationConstraint = schema.NewRecord("OptimizationConstraint",
		schema.Required("target", schema.String(), "Statistic to constrain, e.g. TotalPerformance.PortfolioStatistics.Drawdown."),
		schema.Required("operator", schema.String(), "Comparison: less, lessOrEqual, greater, greaterOrEqual, equals, notEqual."),
		schema.Required("value", schema.Number(), "Threshold value."),
	)

	estimateOptimizationRequest = schema.NewRecord("EstimateOptimizationRequest",
		projectIDField(),
		schema.Required("name", schema.String(), "Optimization name."),
		schema.Required("target", schema.String(), "Statistic to optimize."),
		schema.Required("targetTo", schema.String(), "max or min."),
		schema.Required("strategy", schema.String(), "Optimization strategy type."),
		schema.Required("parameters", schema.ListOf(schema.Ref(optimizationParameter)), "Parameters to sweep."),
		schema.Required("compileId", schema.String(), "Compile id; empty compiles the latest code."),
		schema.Required("targetValue", schema.Optional(schema.Number()), "Target value for the optimized statistic."),
		schema.Required("constraints", schema.ListOf(schema.Ref(optimizationConstraint)), "Statistic constraints."),
	)
	createOptimizationRequest = schema.NewRecord("CreateOptimizationRequest",
		projectIDField(),
		schema.Required("compileId", schema.String(), "Compile id to optimize."),
		schema.Required("name", schema.String(), "Optimization name."),
		schema.Required("target", schema.String(), "Statistic to optimize."),
		schema.Required("targetTo", schema.String(), "max or min."),
		schema.Required("strategy", schema.String(), "Optimization strategy type."),
		schema.Required("parameters", schema.ListOf(schema.Ref(optimizationParameter)), "Parameters to sweep."),
		schema.Required("estimatedCost", schema.Number(), "Estimated cost from estimate_optimization_time.").AtLeast(0),
		schema.Required("nodeType", schema.String(), "Node SKU, e.g. O2-8."),
		schema.Required("parallelNodes", schema.Integer(), "Number of nodes to run in parallel.").AtLeast(1),
		schema.Required("targetValue", schema.Optional(schema.Number()), "Target value for the optimized statistic."),
		schema.Required("constraints", schema.ListOf(schema.Ref(optimizationConstraint)), "Statistic constraints."),
	)
	optimizationIDRequest = func(name string) *schema.Record {
		return schema.NewRecord(name,
			schema.Required("optimizationId", schema.String(), "Id of the optimization."),
		)
	}
	readOptimizationRequest   = optimizationIDRequest("ReadOptimizationRequest")
	abortOptimizationRequest  = optimizationIDRequest("AbortOptimizationRequest")
	deleteOptimizationRequest = optimizationIDRequest("DeleteOptimizationRequest")
	listOptimizationsRequest  = schema.NewRecord("ListOptimizationsRequest", projectIDField())
	updateOptimizationRequest = schema.NewRecord("UpdateOptimizationRequest",
		schema.Required("optimizationId", schema.String(), "Id of the optimization."),
		schema.Required("name", schema.String(), "New optimization name."),
	)
)

// optimizationSpec builds the shared part of estimate and create bodies.
func optimizationSpec(a tool.Args) (map[string]any, *core.ToolResult) {
	params := a.List("parameters")
	if len(params) == 0 {
		return reject("parameters must include at least one entry",
			"Provide optimization parameters with name/min/max/step.")
	}
	sweep := make([]any, 0, len(params))
	for _, p := range params {
		param, _ := p.(map[string]any)
		if floatOf(param, "max") < floatOf(param, "min") {
			return reject("parameter "+str(param, "name")+" has max below min",
				"Ensure each parameter has name, min, max, step as numbers.")
		}
		entry := map[string]any{
			"name": param["name"],
			"min":  param["min"],
			"max":  param["max"],
			"step": param["step"],
		}
		if param["minStep"] != nil {
			entry["minStep"] = param["minStep"]
		}
		sweep = append(sweep, entry)
	}

	body := core.Merge(
		a.Payload("projectId", "name", "target", "targetTo", "strategy", "targetValue"),
		nonEmpty(a, "compileId", "constraints"),
	)
	body["parameters"] = sweep
	return body, nil
}

func optimizationSummary(projectID int64, o map[string]any) map[string]any {
	return map[string]any{
		"optimizationId": str(o, "optimizationId", "id"),
		"projectId":      projectID,
		"name":           str(o, "name"),
		"status":         str(o, "status", "state"),
		"target":         str(o, "target"),
		"compileId":      str(o, "compileId"),
	}
}

func optimizationList(a tool.Args) Transform {
	projectID := a.Int("projectId")
	return func(data map[string]any) (map[string]any, error) {
		items := mapEach(objects(data, "optimizations"), func(o map[string]any) map[string]any {
			return optimizationSummary(projectID, o)
		})
		return map[string]any{"projectId": projectID, "count": len(items), "optimizations": items}, nil
	}
}

func requireOptimization(a tool.Args) (map[string]any, *core.ToolResult) {
	if a.String("optimizationId") == "" {
		return reject("optimizationId is required",
			"Provide the optimization id returned by create_optimization.")
	}
	return a.Payload("optimizationId"), nil
}

func optimizationAction(flag string) func(tool.Args) Transform {
	return func(a tool.Args) Transform {
		return func(map[string]any) (map[string]any, error) {
			return map[string]any{"optimizationId": a.String("optimizationId"), flag: true}, nil
		}
	}
}

func (ts *toolset) optimizationTools() []definition {
	return []definition{
		ts.define(endpoint{
			name:        "estimate_optimization_time",
			description: "Estimate how long an optimization would take and what it would cost.",
			annotations: readOnly("Estimate optimization time"),
			request:     estimateOptimizationRequest,
			defaults:    map[string]any{"compileId": "", "targetValue": nil, "constraints": []any{}},
			path:        "/optimizations/estimate",
			payload:     optimizationSpec,
			transform: func(a tool.Args) Transform {
				return func(data map[string]any) (map[string]any, error) {
					estimate := objectOf(data, "estimate")
					return map[string]any{
						"projectId":   a.Int("projectId"),
						"estimateId":  str(estimate, "estimateId"),
						"timeSeconds": floatOf(estimate, "time"),
						"balance":     intOf(estimate, "balance"),
					}, nil
				}
			},
		}),
		ts.define(endpoint{
			name:        "create_optimization",
			description: "Launch a parameter optimization for a compiled project.",
			annotations: creates("Create optimization"),
			request:     createOptimizationRequest,
			defaults:    map[string]any{"targetValue": nil, "constraints": []any{}},
			path:        "/optimizations/create",
			codeSource:  true,
			payload: func(a tool.Args) (map[string]any, *core.ToolResult) {
				if a.String("compileId") == "" {
					return reject("compileId is required", "Provide the compile id to optimize.")
				}
				body, early := optimizationSpec(a)
				if early != nil {
					return nil, early
				}
				return core.Merge(body, a.Payload("compileId", "estimatedCost", "nodeType", "parallelNodes")), nil
			},
			transform: optimizationList,
		}),
		ts.define(endpoint{
			name:        "read_optimization",
			description: "Read the state and results of an optimization.",
			annotations: readOnly("Read optimization"),
			request:     readOptimizationRequest,
			path:        "/optimizations/read",
			payload:     requireOptimization,
			transform: func(a tool.Args) Transform {
				return func(data map[string]any) (map[string]any, error) {
					o := objectOf(data, "optimization")
					out := optimizationSummary(intOf(o, "projectId"), o)
					if out["optimizationId"] == "" {
						out["optimizationId"] = a.String("optimizationId")
					}
					delete(out, "compileId")
					out["payload"] = o
					return out, nil
				}
			},
		}),
		ts.define(endpoint{
			name:        "list_optimizations",
			description: "List the optimizations of a project.",
			annotations: readOnly("List optimizations"),
			request:     listOptimizationsRequest,
			path:        "/optimizations/list",
			payload: func(a tool.Args) (map[string]any, *core.ToolResult) {
				return a.Payload("projectId"), nil
			},
			transform: optimizationList,
		}),
		ts.define(endpoint{
			name:        "update_optimization",
			description: "Rename an optimization.",
			annotations: idempotent("Update optimization"),
			request:     updateOptimizationRequest,
			path:        "/optimizations/update",
			payload: func(a tool.Args) (map[string]any, *core.ToolResult) {
				body, early := requireOptimization(a)
				if early != nil {
					return nil, early
				}
				if a.String("name") == "" {
					return reject("name is required", "Provide the new optimization name.")
				}
				body["name"] = a.String("name")
				return body, nil
			},
			transform: optimizationAction("updated"),
		}),
		ts.define(endpoint{
			name:        "abort_optimization",
			description: "Stop a running optimization.",
			annotations: idempotent("Abort optimization"),
			request:     abortOptimizationRequest,
			path:        "/optimizations/abort",
			payload:     requireOptimization,
			transform:   optimizationAction("aborted"),
		}),
		ts.define(endpoint{
			name:        "delete_optimization",
			description: "Delete an optimization.",
			annotations: tool.Annotations{Title: "Delete optimization", DestructiveHint: true, IdempotentHint: true},
			request:     deleteOptimizationRequest,
			path:        "/optimizations/delete",
			payload:     requireOptimization,
			transform:   optimizationAction("deleted"),
		}),
	}
}
