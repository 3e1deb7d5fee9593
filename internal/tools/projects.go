package tools

import (
	"github.com/quantmcp/quantmcp/internal/core"
	"github.com/quantmcp/quantmcp/internal/schema"
	"github.com/quantmcp/quantmcp/internal/tool"
)

var (
	createProjectRequest = schema.NewRecord("CreateProjectRequest",
		schema.Required("name", schema.String(), "Project name, may include a folder path."),
		schema.Required("language", schema.String(), "Programming language: Py or C#."),
	)
	readProjectRequest = schema.NewRecord("ReadProjectRequest",
		schema.Required("projectId", schema.Optional(schema.Integer()), "Id of the project to read; omit to list projects."),
		schema.Required("start", schema.Integer(), "Pagination start index.").AtLeast(0),
		schema.Required("end", schema.Integer(), "Pagination end index.").AtLeast(0),
	)
	listProjectsRequest  = schema.NewRecord("ListProjectsRequest")
	updateProjectRequest = schema.NewRecord("UpdateProjectRequest",
		projectIDField(),
		schema.Required("name", schema.String(), "New project name."),
		schema.Required("description", schema.String(), "New project description."),
	)
	deleteProjectRequest = schema.NewRecord("DeleteProjectRequest", projectIDField())
)

func normalizeProjects(data map[string]any) (map[string]any, error) {
	projects := mapEach(objects(data, "projects"), func(p map[string]any) map[string]any {
		return map[string]any{
			"projectId":   intOf(p, "projectId"),
			"name":        str(p, "name"),
			"language":    str(p, "language"),
			"description": str(p, "description"),
		}
	})
	return map[string]any{"projects": projects, "count": len(projects)}, nil
}

func normalizeProjectOperation(data map[string]any) (map[string]any, error) {
	return map[string]any{
		"projectId": intOf(data, "projectId"),
		"message":   str(data, "message", "result"),
	}, nil
}

func (ts *toolset) projectTools() []definition {
	projects := func(tool.Args) Transform { return normalizeProjects }
	operation := func(tool.Args) Transform { return normalizeProjectOperation }

	return []definition{
		ts.define(endpoint{
			name:        "create_project",
			description: "Create a new project in the organization.",
			annotations: creates("Create project"),
			request:     createProjectRequest,
			path:        "/projects/create",
			codeSource:  true,
			payload: func(a tool.Args) (map[string]any, *core.ToolResult) {
				return a.Payload("name", "language"), nil
			},
			transform: projects,
		}),
		ts.define(endpoint{
			name:        "read_project",
			description: "Read one project by id, or a page of projects by start/end.",
			annotations: readOnly("Read project"),
			request:     readProjectRequest,
			defaults:    map[string]any{"projectId": nil, "start": 0, "end": 0},
			path:        "/projects/read",
			payload: func(a tool.Args) (map[string]any, *core.ToolResult) {
				if !a.Has("projectId") && a.Int("start") == 0 && a.Int("end") == 0 {
					return reject("Provide a projectId or start/end range to fetch projects.",
						"Set projectId to the target project or use start/end pagination values.")
				}
				body := a.Payload("projectId")
				if a.Int("end") > 0 {
					body["start"] = a.Int("start")
					body["end"] = a.Int("end")
				}
				return body, nil
			},
			transform: projects,
		}),
		ts.define(endpoint{
			name:        "list_projects",
			description: "List every project in the organization.",
			annotations: readOnly("List projects"),
			request:     listProjectsRequest,
			path:        "/projects/read",
			transform:   projects,
		}),
		ts.define(endpoint{
			name:        "update_project",
			description: "Update a project's name and/or description.",
			annotations: idempotent("Update project"),
			request:     updateProjectRequest,
			defaults:    map[string]any{"name": "", "description": ""},
			path:        "/projects/update",
			payload: func(a tool.Args) (map[string]any, *core.ToolResult) {
				if a.String("name") == "" && a.String("description") == "" {
					return reject("Provide at least one field to update.",
						"Set name and/or description to update the project.")
				}
				return core.Merge(a.Payload("projectId"), nonEmpty(a, "name", "description")), nil
			},
			transform: operation,
		}),
		ts.define(endpoint{
			name:        "delete_project",
			description: "Delete a project.",
			annotations: tool.Annotations{Title: "Delete project", DestructiveHint: true, IdempotentHint: true},
			request:     deleteProjectRequest,
			path:        "/projects/delete",
			payload: func(a tool.Args) (map[string]any, *core.ToolResult) {
				return a.Payload("projectId"), nil
			},
			transform: operation,
		}),
	}
}
