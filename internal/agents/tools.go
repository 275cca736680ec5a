package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"planforge/internal/tools"
)

// RegisterAnalyzeTool exposes the requirement agent as the
// requirement_analyze tool the clarification loop calls.
func RegisterAnalyzeTool(registry *tools.Registry, requirement *Agent) error {
	return registry.Register(&tools.Tool{
		Name:        "requirement_analyze",
		Description: "Analyze a requirement or answer set and return a plan document",
		Category:    tools.CategoryAgent,
		Priority:    80,
		Schema: tools.ToolSchema{
			Required: []string{"requirement_doc"},
			Properties: map[string]tools.Property{
				"requirement_doc": {
					Type:        "string",
					Description: "Raw requirement text, or a JSON answer set for a follow-up round",
				},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			doc, _ := args["requirement_doc"].(string)
			return requirement.Run(ctx, doc)
		},
	})
}

// RegisterStageRunTool exposes the developer agent as the stage_run tool the
// stage execution loop calls. The stage fields are rendered into one work
// order; the agent's final answer travels back verbatim for loose parsing.
func RegisterStageRunTool(registry *tools.Registry, dev *Agent) error {
	return registry.Register(&tools.Tool{
		Name:        "stage_run",
		Description: "Execute one plan stage and report success or failure",
		Category:    tools.CategoryAgent,
		Priority:    80,
		Schema: tools.ToolSchema{
			Required: []string{"stage_name", "goal"},
			Properties: map[string]tools.Property{
				"stage_name": {Type: "string", Description: "Stage identifier from the plan"},
				"goal":       {Type: "string", Description: "What this stage must achieve"},
				"tasks":      {Type: "array", Description: "Ordered task list", Items: &tools.PropertyItems{Type: "string"}},
				"validation": {Type: "array", Description: "Checks that must pass", Items: &tools.PropertyItems{Type: "string"}},
				"constraints": {
					Type:        "object",
					Description: "Caller-supplied constraints such as timeout hints",
				},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			return dev.Run(ctx, renderWorkOrder(args))
		},
	})
}

// RegisterPlanUpdateTool lets agents persist the plan narrative into the
// workspace. Paths are resolved against the workspace root and rejected —
// not clamped — when they escape it: unlike session working directories,
// a redirected write is a corruption, not a degrade.
func RegisterPlanUpdateTool(registry *tools.Registry, workspaceRoot string) error {
	root, err := filepath.Abs(workspaceRoot)
	if err != nil {
		return fmt.Errorf("resolve workspace root: %w", err)
	}

	return registry.Register(&tools.Tool{
		Name:        "plan_update",
		Description: "Write or overwrite a plan file inside the workspace",
		Category:    tools.CategoryAgent,
		Priority:    60,
		Schema: tools.ToolSchema{
			Required: []string{"path", "content"},
			Properties: map[string]tools.Property{
				"path":    {Type: "string", Description: "File path relative to the workspace root"},
				"content": {Type: "string", Description: "Full file content to write"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			rel, _ := args["path"].(string)
			content, _ := args["content"].(string)

			target, ok := resolveInside(root, rel)
			if !ok {
				return marshal(map[string]any{
					"ok":    false,
					"error": "path_outside_workspace",
					"path":  rel,
				})
			}

			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return "", fmt.Errorf("create plan directory: %w", err)
			}
			if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
				return "", fmt.Errorf("write plan file: %w", err)
			}

			return marshal(map[string]any{
				"ok":    true,
				"path":  target,
				"bytes": len(content),
			})
		},
	})
}

// renderWorkOrder formats stage_run arguments as the developer agent's
// instruction text.
func renderWorkOrder(args map[string]any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Execute plan stage %q.\n", str(args["stage_name"]))
	if goal := str(args["goal"]); goal != "" {
		fmt.Fprintf(&b, "Goal: %s\n", goal)
	}
	if tasks := strs(args["tasks"]); len(tasks) > 0 {
		b.WriteString("Tasks:\n")
		for _, t := range tasks {
			fmt.Fprintf(&b, "  - %s\n", t)
		}
	}
	if checks := strs(args["validation"]); len(checks) > 0 {
		b.WriteString("Validation:\n")
		for _, c := range checks {
			fmt.Fprintf(&b, "  - %s\n", c)
		}
	}
	if constraints, ok := args["constraints"].(map[string]any); ok && len(constraints) > 0 {
		data, _ := json.Marshal(constraints)
		fmt.Fprintf(&b, "Constraints: %s\n", data)
	}
	b.WriteString(`Report the outcome as one JSON object: {"success": true|false, "report": "..."}.`)
	return b.String()
}

// resolveInside joins rel onto root and reports whether the result stays
// inside root.
func resolveInside(root, rel string) (string, bool) {
	target := filepath.Clean(filepath.Join(root, rel))
	if target == root || strings.HasPrefix(target, root+string(filepath.Separator)) {
		return target, true
	}
	return "", false
}

func marshal(payload map[string]any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func strs(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
