package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/quantmcp/quantmcp/internal/schema"
	"github.com/quantmcp/quantmcp/internal/tool"
	"github.com/quantmcp/quantmcp/internal/tools"
)

func main() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rt := tool.New(logger, tool.WithCallLogger(tool.NewCallLogger(io.Discard, func() bool { return false })))
	if err := tools.Register(rt, tools.Deps{Logger: logger}); err != nil {
		fmt.Fprintln(os.Stderr, "register tools:", err)
		os.Exit(1)
	}
	if err := writeDocs(os.Stdout, rt); err != nil {
		fmt.Fprintln(os.Stderr, "generate docs:", err)
		os.Exit(1)
	}
}

func writeDocs(w io.Writer, rt *tool.Runtime) error {
	fmt.Fprintln(w, "# MCP Tools (Generated)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "This file is generated by `cmd/mcpdocgen` from the registered tool schemas.")
	fmt.Fprintln(w)

	for _, t := range rt.Tools() {
		fmt.Fprintf(w, "- `%s`\n", t.Name)
		if t.Description != "" {
			fmt.Fprintf(w, "  - Description: %s\n", t.Description)
		}

		contract, ok := rt.Registry().ByName(t.Name)
		if ok && contract.Safe {
			fmt.Fprintln(w, "  - Safe to call with defaults")
		}

		m, err := schema.ToMap(t.InputSchema)
		if err != nil {
			return fmt.Errorf("%s: %w", t.Name, err)
		}
		props, _ := m["properties"].(map[string]any)
		requiredRaw, _ := m["required"].([]any)
		requiredSet := make(map[string]bool, len(requiredRaw))
		for _, r := range requiredRaw {
			if name, ok := r.(string); ok {
				requiredSet[name] = true
			}
		}

		keys := make([]string, 0, len(props))
		for k := range props {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		if len(keys) > 0 {
			fmt.Fprintln(w, "  - Input:")
			for _, k := range keys {
				prop, _ := props[k].(map[string]any)
				line := fmt.Sprintf("    - `%s` (%s", k, propertyType(prop))
				if requiredSet[k] {
					line += ", required"
				} else if ok {
					if def, has := contract.Defaults[k]; has {
						line += ", default " + formatDefault(def)
					}
				}
				fmt.Fprintln(w, line+")")
			}
		}
		fmt.Fprintln(w)
	}
	return nil
}

func propertyType(prop map[string]any) string {
	if t, ok := prop["type"].(string); ok {
		return t
	}
	variants, _ := prop["anyOf"].([]any)
	names := make([]string, 0, len(variants))
	for _, v := range variants {
		vm, _ := v.(map[string]any)
		switch {
		case vm["type"] != nil:
			names = append(names, fmt.Sprint(vm["type"]))
		case vm["$ref"] != nil:
			names = append(names, "object")
		}
	}
	if len(names) == 0 {
		return "any"
	}
	return strings.Join(names, " | ")
}

func formatDefault(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return "`" + string(data) + "`"
}
