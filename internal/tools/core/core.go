// Package core provides the workspace file tools available to the developer
// agent: read, write, edit, list, and grep. Every path argument is resolved
// against the workspace root; paths that escape it are rejected.
package core

import (
	"fmt"
	"path/filepath"
	"strings"

	"planforge/internal/tools"
)

// Toolset builds workspace-scoped file tools. All paths the agent supplies
// are interpreted relative to Root.
type Toolset struct {
	root string
}

// NewToolset creates a toolset rooted at the given workspace directory.
func NewToolset(workspaceRoot string) (*Toolset, error) {
	root, err := filepath.Abs(workspaceRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	return &Toolset{root: root}, nil
}

// RegisterAll registers every core file tool with the registry.
func (t *Toolset) RegisterAll(registry *tools.Registry) error {
	allTools := []*tools.Tool{
		t.ReadFileTool(),
		t.WriteFileTool(),
		t.EditFileTool(),
		t.ListFilesTool(),
		t.GrepTool(),
	}

	for _, tool := range allTools {
		if err := registry.Register(tool); err != nil {
			return err
		}
	}
	return nil
}

// resolve joins rel onto the workspace root, rejecting escapes.
func (t *Toolset) resolve(rel string) (string, error) {
	target := filepath.Clean(filepath.Join(t.root, rel))
	if target != t.root && !strings.HasPrefix(target, t.root+string(filepath.Separator)) {
		return "", fmt.Errorf("path outside workspace: %s", rel)
	}
	return target, nil
}
