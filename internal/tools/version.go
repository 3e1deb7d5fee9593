package tools

import (
	"context"

	"github.com/quantmcp/quantmcp/internal/core"
	"github.com/quantmcp/quantmcp/internal/schema"
	"github.com/quantmcp/quantmcp/internal/tool"
)

var (
	readServerVersionRequest       = schema.NewRecord("ReadMcpServerVersionRequest")
	readLatestServerVersionRequest = schema.NewRecord("ReadLatestMcpServerVersionRequest")
)

const releaseFeedEndpoint = "docker-hub/tags"

func (ts *toolset) serverVersionTools() []definition {
	local := func(context.Context, tool.Args) (core.ToolResult, error) {
		return core.Success(map[string]any{"version": ts.Version, "source": "local"}), nil
	}
	latest := func(ctx context.Context, _ tool.Args) (core.ToolResult, error) {
		if ts.Releases == nil {
			return core.Failure(core.CodeAPIRequest, "release feed is not configured", "Verify network connectivity."), nil
		}
		version, err := ts.Releases.Latest(ctx)
		if err != nil {
			te := core.MapError(err)
			hint := "Retry later or check Docker Hub availability."
			if te.Code == core.CodeAPIRequest {
				hint = "Verify network connectivity."
			}
			ts.Logger.Debug("release feed failed", "endpoint", releaseFeedEndpoint, "err", err)
			return core.Failure(te.Code, te.Message, hint), nil
		}
		return core.Success(map[string]any{"version": version, "source": "docker"}), nil
	}

	return []definition{
		{
			spec: tool.Spec{
				Name:        "read_mcp_server_version",
				Description: "Read the version of this MCP server.",
				Annotations: readOnly("Read QC MCP Server version"),
				Request:     readServerVersionRequest,
				Handler:     local,
			},
			safe: true,
		},
		{
			spec: tool.Spec{
				Name:        "read_latest_mcp_server_version",
				Description: "Read the newest published MCP server version from Docker Hub.",
				Annotations: tool.Annotations{Title: "Read latest QC MCP Server version", ReadOnlyHint: true, OpenWorldHint: true},
				Request:     readLatestServerVersionRequest,
				Handler:     latest,
			},
		},
	}
}
