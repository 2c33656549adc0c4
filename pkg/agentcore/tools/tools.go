// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

// Package tools is a small reference tool set satisfying
// pkg/agentcore/react.ToolExecutor: a calculator and a workspace-sandboxed
// filesystem trio (read_file, write_file, list_dir). It exists to give the
// ReAct loop something concrete to dispatch to in cmd/agentcored and in
// integration tests; real deployments are expected to bring their own
// ToolExecutor.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Registry dispatches tool calls by name to a fixed handler map, each
// handler taking the call's decoded JSON arguments and returning the textual
// observation the loop feeds back to the provider.
type Registry struct {
	Workspace string
	handlers  map[string]func(args map[string]any) (string, error)
}

// NewRegistry builds a Registry rooted at workspace, wired with the
// built-in calculator and filesystem tools.
func NewRegistry(workspace string) *Registry {
	r := &Registry{Workspace: workspace, handlers: make(map[string]func(map[string]any) (string, error))}
	r.handlers["calculator"] = r.calculator
	r.handlers["read_file"] = r.readFile
	r.handlers["write_file"] = r.writeFile
	r.handlers["list_dir"] = r.listDir
	return r
}

// Definitions returns the ToolSchema of every registered tool; callers
// convert them to core.ToolDefinition for assembler.AssemblyInput.ToolDefinitions.
func (r *Registry) Definitions() []ToolSchema {
	return []ToolSchema{
		{Name: "calculator", Description: "Evaluate an arithmetic expression using + - * / and parentheses.",
			Parameters: map[string]any{"type": "object", "properties": map[string]any{
				"expression": map[string]any{"type": "string"}}, "required": []string{"expression"}}},
		{Name: "read_file", Description: "Read a file's contents, relative to the workspace.",
			Parameters: map[string]any{"type": "object", "properties": map[string]any{
				"path": map[string]any{"type": "string"}}, "required": []string{"path"}}},
		{Name: "write_file", Description: "Write content to a file, relative to the workspace.",
			Parameters: map[string]any{"type": "object", "properties": map[string]any{
				"path":    map[string]any{"type": "string"},
				"content": map[string]any{"type": "string"}}, "required": []string{"path", "content"}}},
		{Name: "list_dir", Description: "List entries in a directory, relative to the workspace.",
			Parameters: map[string]any{"type": "object", "properties": map[string]any{
				"path": map[string]any{"type": "string"}}}},
	}
}

// ToolSchema mirrors core.ToolDefinition without importing it, so this
// package stays independent of pkg/agentcore/core; callers convert at the
// boundary (see cmd/agentcored).
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Execute satisfies react.ToolExecutor.
func (r *Registry) Execute(ctx context.Context, name, argumentsJSON string) (string, error) {
	handler, ok := r.handlers[name]
	if !ok {
		return "", fmt.Errorf("tools: unknown tool %q", name)
	}
	args := map[string]any{}
	if strings.TrimSpace(argumentsJSON) != "" {
		if err := json.Unmarshal([]byte(argumentsJSON), &args); err != nil {
			return "", fmt.Errorf("tools: invalid arguments for %q: %w", name, err)
		}
	}
	return handler(args)
}

func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("tools: missing argument %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("tools: argument %q must be a string", key)
	}
	return s, nil
}

// resolvePath resolves path against the registry's workspace and refuses
// anything that would escape it, mirroring the teacher's own
// workspace-restriction check (filepath.IsLocal on the relative path).
func (r *Registry) resolvePath(path string) (string, error) {
	if r.Workspace == "" {
		return "", fmt.Errorf("tools: no workspace configured")
	}
	absWorkspace, err := filepath.Abs(r.Workspace)
	if err != nil {
		return "", fmt.Errorf("tools: resolve workspace: %w", err)
	}
	var absPath string
	if filepath.IsAbs(path) {
		absPath = filepath.Clean(path)
	} else {
		absPath = filepath.Join(absWorkspace, path)
	}
	rel, err := filepath.Rel(absWorkspace, absPath)
	if err != nil || !filepath.IsLocal(rel) {
		return "", fmt.Errorf("tools: access denied: path is outside the workspace")
	}
	return absPath, nil
}

func (r *Registry) readFile(args map[string]any) (string, error) {
	path, err := stringArg(args, "path")
	if err != nil {
		return "", err
	}
	resolved, err := r.resolvePath(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", fmt.Errorf("read_file: %w", err)
	}
	return string(data), nil
}

func (r *Registry) writeFile(args map[string]any) (string, error) {
	path, err := stringArg(args, "path")
	if err != nil {
		return "", err
	}
	content, err := stringArg(args, "content")
	if err != nil {
		return "", err
	}
	resolved, err := r.resolvePath(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return "", fmt.Errorf("write_file: %w", err)
	}
	if err := os.WriteFile(resolved, []byte(content), 0o600); err != nil {
		return "", fmt.Errorf("write_file: %w", err)
	}
	return fmt.Sprintf("wrote %d bytes to %s", len(content), path), nil
}

func (r *Registry) listDir(args map[string]any) (string, error) {
	path, _ := args["path"].(string)
	if path == "" {
		path = "."
	}
	resolved, err := r.resolvePath(path)
	if err != nil {
		return "", err
	}
	entries, err := os.ReadDir(resolved)
	if err != nil {
		return "", fmt.Errorf("list_dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name()+"/")
		} else {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return strings.Join(names, "\n"), nil
}

func (r *Registry) calculator(args map[string]any) (string, error) {
	expr, err := stringArg(args, "expression")
	if err != nil {
		return "", err
	}
	result, err := evalArithmetic(expr)
	if err != nil {
		return "", fmt.Errorf("calculator: %w", err)
	}
	return formatResult(result), nil
}

func formatResult(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}
