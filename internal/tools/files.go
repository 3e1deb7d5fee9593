package tools

import (
	"github.com/quantmcp/quantmcp/internal/core"
	"github.com/quantmcp/quantmcp/internal/schema"
	"github.com/quantmcp/quantmcp/internal/tool"
)

var (
	createFileRequest = schema.NewRecord("CreateFileRequest",
		projectIDField(),
		schema.Required("name", schema.String(), "File name, including any folder path."),
		schema.Required("content", schema.String(), "File contents."),
	)
	readFileRequest = schema.NewRecord("ReadFileRequest",
		projectIDField(),
		schema.Required("name", schema.String(), "File to read; empty reads every file."),
	)
	updateFileNameRequest = schema.NewRecord("UpdateFileNameRequest",
		projectIDField(),
		schema.Required("name", schema.String(), "Current file name."),
		schema.Required("newName", schema.String(), "New file name."),
	)
	updateFileContentsRequest = schema.NewRecord("UpdateFileContentsRequest",
		projectIDField(),
		schema.Required("name", schema.String(), "File to overwrite."),
		schema.Required("content", schema.String(), "New file contents."),
	)
	patchFileRequest = schema.NewRecord("PatchFileRequest",
		projectIDField(),
		schema.Required("patch", schema.String(), "Unified diff to apply to the project files."),
	)
	deleteFileRequest = schema.NewRecord("DeleteFileRequest",
		projectIDField(),
		schema.Required("name", schema.String(), "File to delete."),
	)
)

func fileDetail(projectID int64, name, content string) map[string]any {
	return map[string]any{
		"projectId": projectID,
		"name":      name,
		"content":   content,
		"bytes":     len(content),
	}
}

func fileOperation(projectID int64, name, message string) Transform {
	return func(map[string]any) (map[string]any, error) {
		return map[string]any{"projectId": projectID, "name": name, "message": message}, nil
	}
}

func (ts *toolset) fileTools() []definition {
	return []definition{
		ts.define(endpoint{
			name:        "create_file",
			description: "Add a file to a project.",
			annotations: tool.Annotations{Title: "Create file", IdempotentHint: true},
			request:     createFileRequest,
			path:        "/files/create",
			codeSource:  true,
			payload: func(a tool.Args) (map[string]any, *core.ToolResult) {
				if a.String("name") == "" {
					return reject("name is required", "Provide the file name to create.")
				}
				return a.Payload("projectId", "name", "content"), nil
			},
			transform: func(a tool.Args) Transform {
				return fileOperation(a.Int("projectId"), a.String("name"), "File created")
			},
		}),
		ts.define(endpoint{
			name:        "read_file",
			description: "Read one file of a project, or all of them when name is empty.",
			annotations: readOnly("Read file"),
			request:     readFileRequest,
			defaults:    map[string]any{"name": ""},
			path:        "/files/read",
			codeSource:  true,
			payload: func(a tool.Args) (map[string]any, *core.ToolResult) {
				return core.Merge(a.Payload("projectId"), nonEmpty(a, "name")), nil
			},
			transform: func(a tool.Args) Transform {
				projectID, name := a.Int("projectId"), a.String("name")
				return func(data map[string]any) (map[string]any, error) {
					files := mapEach(objects(data, "files"), func(f map[string]any) map[string]any {
						return fileDetail(projectID, str(f, "name"), str(f, "content"))
					})
					if len(files) == 0 && name != "" {
						files = append(files, fileDetail(projectID, name, ""))
					}
					return map[string]any{"projectId": projectID, "files": files, "count": len(files)}, nil
				}
			},
		}),
		ts.define(endpoint{
			name:        "update_file_name",
			description: "Rename a project file.",
			annotations: idempotent("Update file name"),
			request:     updateFileNameRequest,
			path:        "/files/update",
			codeSource:  true,
			payload: func(a tool.Args) (map[string]any, *core.ToolResult) {
				if a.String("name") == "" || a.String("newName") == "" {
					return reject("Current and new file names are required", "Provide both name and newName values.")
				}
				return a.Payload("projectId", "name", "newName"), nil
			},
			transform: func(a tool.Args) Transform {
				return fileOperation(a.Int("projectId"), a.String("newName"), "File renamed")
			},
		}),
		ts.define(endpoint{
			name:        "update_file_contents",
			description: "Overwrite the contents of a project file.",
			annotations: idempotent("Update file contents"),
			request:     updateFileContentsRequest,
			path:        "/files/update",
			codeSource:  true,
			payload: func(a tool.Args) (map[string]any, *core.ToolResult) {
				if a.String("name") == "" {
					return reject("name is required", "Provide the file name to update.")
				}
				return a.Payload("projectId", "name", "content"), nil
			},
			transform: func(a tool.Args) Transform {
				return func(map[string]any) (map[string]any, error) {
					return fileDetail(a.Int("projectId"), a.String("name"), a.String("content")), nil
				}
			},
		}),
		ts.define(endpoint{
			name:        "patch_file",
			description: "Apply a unified diff to the files of a project.",
			annotations: idempotent("Patch file"),
			request:     patchFileRequest,
			path:        "/files/patch",
			codeSource:  true,
			payload: func(a tool.Args) (map[string]any, *core.ToolResult) {
				if a.String("patch") == "" {
					return reject("patch is required", "Provide a unified diff patch string.")
				}
				return a.Payload("projectId", "patch"), nil
			},
			transform: func(a tool.Args) Transform {
				return fileOperation(a.Int("projectId"), "", "Patch applied")
			},
		}),
		ts.define(endpoint{
			name:        "delete_file",
			description: "Delete a file from a project.",
			annotations: tool.Annotations{Title: "Delete file", DestructiveHint: true, IdempotentHint: true},
			request:     deleteFileRequest,
			path:        "/files/delete",
			codeSource:  true,
			payload: func(a tool.Args) (map[string]any, *core.ToolResult) {
				if a.String("name") == "" {
					return reject("name is required", "Provide the file name to delete.")
				}
				return a.Payload("projectId", "name"), nil
			},
			transform: func(a tool.Args) Transform {
				return fileOperation(a.Int("projectId"), a.String("name"), "File deleted")
			},
		}),
	}
}
