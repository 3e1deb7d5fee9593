package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/quantmcp/quantmcp/internal/core"
	"github.com/quantmcp/quantmcp/internal/qc"
	"github.com/quantmcp/quantmcp/internal/schema"
	"github.com/quantmcp/quantmcp/internal/tool"
)

// DefaultAgentName is stamped as codeSourceId when AGENT_NAME is unset.
const DefaultAgentName = "MCP Server"

// Deps are the collaborators tool handlers use.
type Deps struct {
	API       API
	Releases  ReleaseSource
	AgentName string
	Version   string
	Logger    *slog.Logger
}

// definition is one tool plus its contract.
type definition struct {
	spec     tool.Spec
	defaults map[string]any
	safe     bool
}

// endpoint describes a tool that posts one request to the platform.
type endpoint struct {
	name        string
	description string
	annotations tool.Annotations
	request     *schema.Record
	defaults    map[string]any
	path        string
	codeSource  bool
	// payload builds the request body; a non-nil result short-circuits the
	// call with that envelope.
	payload   func(args tool.Args) (map[string]any, *core.ToolResult)
	transform func(args tool.Args) Transform
	// send replaces the JSON post for endpoints with another wire format.
	send func(ctx context.Context, args tool.Args, body map[string]any) (any, error)
}

type toolset struct {
	Deps
}

func (ts *toolset) define(e endpoint) definition {
	retry := retryPolicy(e.annotations)
	handler := func(ctx context.Context, args tool.Args) (core.ToolResult, error) {
		ctx = qc.WithRetry(ctx, retry)
		body := map[string]any{}
		if e.payload != nil {
			var early *core.ToolResult
			body, early = e.payload(args)
			if early != nil {
				return *early, nil
			}
		}
		if e.codeSource {
			body = withCodeSource(body, ts.AgentName)
		}
		var transform Transform
		if e.transform != nil {
			transform = e.transform(args)
		}
		if e.send != nil {
			response, err := e.send(ctx, args, body)
			return finish(ts.Logger, e.path, response, err, transform)
		}
		return execute(ctx, ts.API, ts.Logger, e.path, body, transform)
	}
	return definition{
		spec: tool.Spec{
			Name:        e.name,
			Description: e.description,
			Annotations: e.annotations,
			Request:     e.request,
			Handler:     handler,
		},
		defaults: e.defaults,
	}
}

// withCodeSource returns a copy of payload tagged with the agent name.
func withCodeSource(payload map[string]any, agent string) map[string]any {
	if agent == "" {
		agent = DefaultAgentName
	}
	out := core.Merge(payload)
	out["codeSourceId"] = agent
	return out
}

// Register adds every platform tool and its contract to rt.
func Register(rt *tool.Runtime, deps Deps) error {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.AgentName == "" {
		deps.AgentName = DefaultAgentName
	}
	ts := &toolset{Deps: deps}

	groups := [][]definition{
		ts.accountTools(),
		ts.projectTools(),
		ts.projectNodeTools(),
		ts.fileTools(),
		ts.compileTools(),
		ts.backtestTools(),
		ts.optimizationTools(),
		ts.liveTools(),
		ts.liveCommandTools(),
		ts.objectStoreTools(),
		ts.leanVersionTools(),
		ts.serverVersionTools(),
	}
	for _, group := range groups {
		for _, d := range group {
			if _, err := rt.Register(d.spec); err != nil {
				return fmt.Errorf("register %s: %w", d.spec.Name, err)
			}
			if err := rt.RegisterContract(d.spec.Name, d.defaults, d.safe); err != nil {
				return fmt.Errorf("register contract %s: %w", d.spec.Name, err)
			}
		}
	}
	return nil
}

func readOnly(title string) tool.Annotations {
	return tool.Annotations{Title: title, ReadOnlyHint: true}
}

func idempotent(title string) tool.Annotations {
	return tool.Annotations{Title: title, IdempotentHint: true}
}

func creates(title string) tool.Annotations {
	return tool.Annotations{Title: title}
}

func destructive(title string) tool.Annotations {
	return tool.Annotations{Title: title, DestructiveHint: true}
}

// retryPolicy lets reads and idempotent writes be re-sent after server and
// transport failures; every other request is re-sent only when throttled.
func retryPolicy(a tool.Annotations) qc.Retry {
	if a.ReadOnlyHint || a.IdempotentHint {
		return qc.RetryAll
	}
	return qc.RetryThrottled
}

// Fields shared by many requests.
func projectIDField() schema.Field {
	return schema.Required("projectId", schema.Integer(), "Id of the project.").AtLeast(1)
}
