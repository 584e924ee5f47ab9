// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bitfield/script"

	"autoswarm/pkg/store"
	"autoswarm/pkg/types"
)

// Built-in tool names. Designed agents always receive the context tools.
const (
	ContextRead  = "context_read"
	ContextWrite = "context_write"
	FileRead     = "file_read"
	FileWrite    = "file_write"
)

// ToolProducer is recorded as the producer of entries written by tools
const ToolProducer = "tool"

// RegisterBuiltins adds the context tools over st and, when root is not
// empty, file tools confined to root.
func RegisterBuiltins(r *Registry, st *store.Store, root string) error {
	builtins := []struct {
		tool Tool
		exec Executor
	}{
		{
			tool: Tool{
				Name:        ContextRead,
				Description: "Read a value from the shared pipeline context by key.",
				InputSchema: objectSchema(map[string]any{"key": stringProp("Context key to read")}, "key"),
			},
			exec: contextRead(st),
		},
		{
			tool: Tool{
				Name:        ContextWrite,
				Description: "Write a value to the shared pipeline context.",
				InputSchema: objectSchema(map[string]any{
					"key":   stringProp("Context key to write"),
					"value": map[string]any{"description": "Value to store"},
				}, "key", "value"),
			},
			exec: contextWrite(st),
		},
	}

	if root != "" {
		builtins = append(builtins,
			struct {
				tool Tool
				exec Executor
			}{
				tool: Tool{
					Name:        FileRead,
					Description: "Read a text file from the workspace.",
					InputSchema: objectSchema(map[string]any{"path": stringProp("Path relative to the workspace")}, "path"),
				},
				exec: fileRead(root),
			},
			struct {
				tool Tool
				exec Executor
			}{
				tool: Tool{
					Name:        FileWrite,
					Description: "Write a text file in the workspace, replacing any existing content.",
					InputSchema: objectSchema(map[string]any{
						"path":    stringProp("Path relative to the workspace"),
						"content": stringProp("File content"),
					}, "path", "content"),
				},
				exec: fileWrite(root),
			},
		)
	}

	for _, b := range builtins {
		b.tool.ServerID = BuiltinServerID
		if err := r.Register(b.tool, b.exec); err != nil {
			return err
		}
	}
	return nil
}

func contextRead(st *store.Store) Executor {
	return func(_ context.Context, args map[string]any) (any, error) {
		key, err := stringArg(args, "key")
		if err != nil {
			return nil, err
		}
		entry, ok := st.Get(key)
		if !ok {
			return nil, fmt.Errorf("context key %s not found", key)
		}
		return entry.Value, nil
	}
}

func contextWrite(st *store.Store) Executor {
	return func(_ context.Context, args map[string]any) (any, error) {
		key, err := stringArg(args, "key")
		if err != nil {
			return nil, err
		}
		if key == types.TaskContextKey {
			return nil, fmt.Errorf("context key %s is reserved", key)
		}
		value, ok := args["value"]
		if !ok {
			return nil, fmt.Errorf("missing argument: value")
		}
		st.Set(key, types.ContextEntry{
			Value:      value,
			ProducedBy: ToolProducer,
			Timestamp:  time.Now(),
			Type:       types.ContextEntryIntermediate,
		})
		return map[string]any{"written": key}, nil
	}
}

func fileRead(root string) Executor {
	return func(_ context.Context, args map[string]any) (any, error) {
		path, err := rootedPath(root, args)
		if err != nil {
			return nil, err
		}
		content, err := script.File(path).String()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		return content, nil
	}
}

func fileWrite(root string) Executor {
	return func(_ context.Context, args map[string]any) (any, error) {
		path, err := rootedPath(root, args)
		if err != nil {
			return nil, err
		}
		content, ok := args["content"].(string)
		if !ok {
			return nil, fmt.Errorf("argument content must be a string")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		n, err := script.Echo(content).WriteFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", path, err)
		}
		return map[string]any{"path": path, "bytes": n}, nil
	}
}

// rootedPath resolves the "path" argument inside root. Paths cannot climb
// out of root.
func rootedPath(root string, args map[string]any) (string, error) {
	rel, err := stringArg(args, "path")
	if err != nil {
		return "", err
	}
	return filepath.Join(root, filepath.Clean("/"+rel)), nil
}

func stringArg(args map[string]any, name string) (string, error) {
	raw, ok := args[name]
	if !ok {
		return "", fmt.Errorf("missing argument: %s", name)
	}
	s, ok := raw.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("argument %s must be a non-empty string", name)
	}
	return s, nil
}

func objectSchema(props map[string]any, required ...string) map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

func stringProp(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}
