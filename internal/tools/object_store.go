package tools

import (
	"context"
	"encoding/base64"

	"github.com/quantmcp/quantmcp/internal/core"
	"github.com/quantmcp/quantmcp/internal/schema"
	"github.com/quantmcp/quantmcp/internal/tool"
)

func organizationIDField() schema.Field {
	return schema.Required("organizationId", schema.String(), "Id of the organization that owns the object store.")
}

func objectKeyField() schema.Field {
	return schema.Required("key", schema.String(), "Object store key, e.g. models/weights.bin.")
}

var (
	uploadObjectRequest = schema.NewRecord("UploadObjectRequest",
		organizationIDField(),
		objectKeyField(),
		schema.Required("objectData", schema.String(), "File contents."),
		schema.Required("base64Encoded", schema.Boolean(), "Whether objectData is base64 text."),
	)
	objectKeyRequest = func(name string) *schema.Record {
		return schema.NewRecord(name, organizationIDField(), objectKeyField())
	}
	readObjectPropertiesRequest = objectKeyRequest("ReadObjectPropertiesRequest")
	deleteObjectRequest         = objectKeyRequest("DeleteObjectRequest")
	objectJobRequest            = schema.NewRecord("ReadObjectStoreFileJobIdRequest",
		organizationIDField(),
		schema.Required("keys", schema.ListOf(schema.String()), "Keys to bundle for download."),
	)
	objectDownloadRequest = schema.NewRecord("ReadObjectStoreFileDownloadUrlRequest",
		organizationIDField(),
		schema.Required("jobId", schema.String(), "Job id returned by read_object_store_file_job_id."),
	)
	listObjectsRequest = schema.NewRecord("ListObjectStoreFilesRequest",
		organizationIDField(),
		schema.Required("path", schema.String(), "Folder to list; empty for the root."),
	)
)

const uploadFileField = "objectData"

func requireOrganization(a tool.Args) *core.ToolResult {
	if a.String("organizationId") == "" {
		_, early := reject("organizationId is required", "Provide the QuantConnect organization id.")
		return early
	}
	return nil
}

func requireObjectKey(a tool.Args) (map[string]any, *core.ToolResult) {
	if a.String("organizationId") == "" || a.String("key") == "" {
		return reject("organizationId and key are required", "Provide the organization id and object store key.")
	}
	return a.Payload("organizationId", "key"), nil
}

func objectEntry(o map[string]any) map[string]any {
	return map[string]any{
		"key":      str(o, "key"),
		"name":     str(o, "name"),
		"folder":   boolOf(o, "folder"),
		"size":     floatOf(o, "size"),
		"mime":     str(o, "mime"),
		"modified": str(o, "modified"),
	}
}

func (ts *toolset) objectStoreTools() []definition {
	return []definition{
		ts.define(endpoint{
			name:        "upload_object",
			description: "Store a file in the organization's object store.",
			annotations: idempotent("Upload Object Store file"),
			request:     uploadObjectRequest,
			defaults:    map[string]any{"base64Encoded": false},
			path:        "/object/set",
			payload: func(a tool.Args) (map[string]any, *core.ToolResult) {
				if early := requireOrganization(a); early != nil {
					return nil, early
				}
				if a.String("key") == "" {
					return reject("key is required", "Provide the object store key.")
				}
				data := []byte(a.String("objectData"))
				if a.Bool("base64Encoded") {
					decoded, err := base64.StdEncoding.DecodeString(a.String("objectData"))
					if err != nil {
						return reject("objectData must be valid base64 when base64Encoded is true",
							"Set base64Encoded to false when sending plain text.")
					}
					data = decoded
				}
				body := a.Payload("organizationId", "key")
				body[uploadFileField] = data
				return body, nil
			},
			send: func(ctx context.Context, a tool.Args, body map[string]any) (any, error) {
				fields := map[string]string{"organizationId": a.String("organizationId"), "key": a.String("key")}
				data, _ := body[uploadFileField].([]byte)
				return ts.API.Upload(ctx, "/object/set", fields, uploadFileField, data)
			},
			transform: func(a tool.Args) Transform {
				return func(data map[string]any) (map[string]any, error) {
					size := len(a.String("objectData"))
					if a.Bool("base64Encoded") {
						if decoded, err := base64.StdEncoding.DecodeString(a.String("objectData")); err == nil {
							size = len(decoded)
						}
					}
					return map[string]any{
						"organizationId": a.String("organizationId"),
						"key":            a.String("key"),
						"bytes":          size,
						"raw":            data,
					}, nil
				}
			},
		}),
		ts.define(endpoint{
			name:        "read_object_properties",
			description: "Read metadata of an object store file.",
			annotations: readOnly("Read Object Store file properties"),
			request:     readObjectPropertiesRequest,
			path:        "/object/properties",
			payload:     requireObjectKey,
			transform: func(a tool.Args) Transform {
				return func(data map[string]any) (map[string]any, error) {
					meta := objectOf(data, "metadata")
					return map[string]any{
						"organizationId": a.String("organizationId"),
						"key":            str(meta, "key"),
						"size":           floatOf(meta, "size"),
						"mime":           str(meta, "mime"),
						"md5":            str(meta, "md5"),
						"preview":        str(meta, "preview"),
						"created":        str(meta, "created"),
						"modified":       str(meta, "modified"),
					}, nil
				}
			},
		}),
		ts.define(endpoint{
			name:        "read_object_store_file_job_id",
			description: "Start a download job bundling object store files.",
			annotations: creates("Read Object Store file job Id"),
			request:     objectJobRequest,
			path:        "/object/get",
			payload: func(a tool.Args) (map[string]any, *core.ToolResult) {
				if early := requireOrganization(a); early != nil {
					return nil, early
				}
				if len(a.List("keys")) == 0 {
					return reject("keys must include at least one entry",
						"Provide one or more object store keys to download.")
				}
				return a.Payload("organizationId", "keys"), nil
			},
			transform: func(a tool.Args) Transform {
				return func(data map[string]any) (map[string]any, error) {
					return map[string]any{
						"organizationId": a.String("organizationId"),
						"jobId":          str(data, "jobId"),
						"keys":           a.List("keys"),
					}, nil
				}
			},
		}),
		ts.define(endpoint{
			name:        "read_object_store_file_download_url",
			description: "Read the download URL of a finished download job.",
			annotations: readOnly("Read Object Store file download URL"),
			request:     objectDownloadRequest,
			path:        "/object/get",
			payload: func(a tool.Args) (map[string]any, *core.ToolResult) {
				if a.String("organizationId") == "" || a.String("jobId") == "" {
					return reject("organizationId and jobId are required", "Provide both organization id and job id.")
				}
				return a.Payload("organizationId", "jobId"), nil
			},
			transform: func(a tool.Args) Transform {
				return func(data map[string]any) (map[string]any, error) {
					return map[string]any{
						"organizationId": a.String("organizationId"),
						"jobId":          a.String("jobId"),
						"url":            str(data, "url"),
					}, nil
				}
			},
		}),
		ts.define(endpoint{
			name:        "list_object_store_files",
			description: "List files and folders in the object store.",
			annotations: readOnly("List Object Store files"),
			request:     listObjectsRequest,
			defaults:    map[string]any{"path": ""},
			path:        "/object/list",
			payload: func(a tool.Args) (map[string]any, *core.ToolResult) {
				if early := requireOrganization(a); early != nil {
					return nil, early
				}
				return core.Merge(a.Payload("organizationId"), nonEmpty(a, "path")), nil
			},
			transform: func(a tool.Args) Transform {
				return func(data map[string]any) (map[string]any, error) {
					out := map[string]any{
						"organizationId": a.String("organizationId"),
						"path":           str(data, "path"),
						"entries":        mapEach(objects(data, "objects"), objectEntry),
					}
					for _, k := range []string{"page", "totalPages", "objectStorageUsed"} {
						if _, ok := data[k]; ok {
							out[k] = intOf(data, k)
						}
					}
					if _, ok := data["objectStorageUsedHuman"]; ok {
						out["objectStorageUsedHuman"] = str(data, "objectStorageUsedHuman")
					}
					return out, nil
				}
			},
		}),
		ts.define(endpoint{
			name:        "delete_object",
			description: "Delete an object store file.",
			annotations: tool.Annotations{Title: "Delete Object Store file", DestructiveHint: true, IdempotentHint: true},
			request:     deleteObjectRequest,
			path:        "/object/delete",
			payload:     requireObjectKey,
			transform: func(a tool.Args) Transform {
				return func(map[string]any) (map[string]any, error) {
					return map[string]any{"organizationId": a.String("organizationId"), "key": a.String("key"), "deleted": true}, nil
				}
			},
		}),
	}
}
