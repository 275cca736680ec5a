package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"planforge/internal/logging"
	"planforge/internal/tools"
)

// ReadFileTool returns a tool for reading workspace file contents, optionally
// restricted to a line range.
func (t *Toolset) ReadFileTool() *tools.Tool {
	return &tools.Tool{
		Name:        "read_file",
		Description: "Read the contents of a workspace file",
		Category:    tools.CategoryCode,
		Priority:    90,
		Schema: tools.ToolSchema{
			Required: []string{"path"},
			Properties: map[string]tools.Property{
				"path": {
					Type:        "string",
					Description: "File path relative to the workspace root",
				},
				"start_line": {
					Type:        "integer",
					Description: "Starting line number (1-indexed, optional)",
				},
				"end_line": {
					Type:        "integer",
					Description: "Ending line number (inclusive, optional)",
				},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			rel, _ := args["path"].(string)
			path, err := t.resolve(rel)
			if err != nil {
				return "", err
			}

			content, err := os.ReadFile(path)
			if err != nil {
				return "", fmt.Errorf("failed to read file: %w", err)
			}
			result := string(content)

			start, hasStart := argLine(args, "start_line")
			end, hasEnd := argLine(args, "end_line")
			if hasStart || hasEnd {
				lines := strings.Split(result, "\n")
				if !hasStart || start < 1 {
					start = 1
				}
				if !hasEnd || end > len(lines) {
					end = len(lines)
				}
				if start > end {
					return "", fmt.Errorf("start_line %d past end_line %d", start, end)
				}
				result = strings.Join(lines[start-1:end], "\n")
			}

			logging.Tools("read_file: %s (%d bytes)", rel, len(result))
			return result, nil
		},
	}
}

// WriteFileTool returns a tool for writing a workspace file, creating parent
// directories as needed.
func (t *Toolset) WriteFileTool() *tools.Tool {
	return &tools.Tool{
		Name:        "write_file",
		Description: "Write content to a workspace file, creating it if needed",
		Category:    tools.CategoryCode,
		Priority:    80,
		Schema: tools.ToolSchema{
			Required: []string{"path", "content"},
			Properties: map[string]tools.Property{
				"path": {
					Type:        "string",
					Description: "File path relative to the workspace root",
				},
				"content": {
					Type:        "string",
					Description: "The content to write",
				},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			rel, _ := args["path"].(string)
			content, _ := args["content"].(string)

			path, err := t.resolve(rel)
			if err != nil {
				return "", err
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return "", fmt.Errorf("failed to create directories: %w", err)
			}
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				return "", fmt.Errorf("failed to write file: %w", err)
			}

			logging.Tools("write_file: %s (%d bytes)", rel, len(content))
			return fmt.Sprintf("Wrote %d bytes to %s", len(content), rel), nil
		},
	}
}

// EditFileTool returns a tool for search-and-replace edits.
func (t *Toolset) EditFileTool() *tools.Tool {
	return &tools.Tool{
		Name:        "edit_file",
		Description: "Edit a workspace file by replacing text",
		Category:    tools.CategoryCode,
		Priority:    85,
		Schema: tools.ToolSchema{
			Required: []string{"path", "old_text", "new_text"},
			Properties: map[string]tools.Property{
				"path": {
					Type:        "string",
					Description: "File path relative to the workspace root",
				},
				"old_text": {
					Type:        "string",
					Description: "The text to find and replace",
				},
				"new_text": {
					Type:        "string",
					Description: "The replacement text",
				},
				"replace_all": {
					Type:        "boolean",
					Description: "Replace all occurrences (default: first only)",
					Default:     false,
				},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			rel, _ := args["path"].(string)
			oldText, _ := args["old_text"].(string)
			newText, _ := args["new_text"].(string)
			if oldText == "" {
				return "", fmt.Errorf("old_text is required")
			}
			replaceAll, _ := args["replace_all"].(bool)

			path, err := t.resolve(rel)
			if err != nil {
				return "", err
			}
			content, err := os.ReadFile(path)
			if err != nil {
				return "", fmt.Errorf("failed to read file: %w", err)
			}

			text := string(content)
			if !strings.Contains(text, oldText) {
				return "", fmt.Errorf("old_text not found in %s", rel)
			}

			count := 1
			if replaceAll {
				count = strings.Count(text, oldText)
				text = strings.ReplaceAll(text, oldText, newText)
			} else {
				text = strings.Replace(text, oldText, newText, 1)
			}

			if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
				return "", fmt.Errorf("failed to write file: %w", err)
			}

			logging.Tools("edit_file: %s (%d replacement(s))", rel, count)
			return fmt.Sprintf("Replaced %d occurrence(s) in %s", count, rel), nil
		},
	}
}

// ListFilesTool returns a tool that lists workspace directory contents.
func (t *Toolset) ListFilesTool() *tools.Tool {
	return &tools.Tool{
		Name:        "list_files",
		Description: "List files in a workspace directory",
		Category:    tools.CategoryCode,
		Priority:    85,
		Schema: tools.ToolSchema{
			Required: []string{},
			Properties: map[string]tools.Property{
				"path": {
					Type:        "string",
					Description: "Directory path relative to the workspace root (default: the root)",
				},
				"recursive": {
					Type:        "boolean",
					Description: "List recursively (default: false)",
					Default:     false,
				},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			rel, _ := args["path"].(string)
			recursive, _ := args["recursive"].(bool)

			path, err := t.resolve(rel)
			if err != nil {
				return "", err
			}

			var files []string
			if recursive {
				err = filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
					if err != nil {
						return nil
					}
					if strings.HasPrefix(info.Name(), ".") {
						if info.IsDir() {
							return filepath.SkipDir
						}
						return nil
					}
					relPath, _ := filepath.Rel(path, p)
					if relPath == "." {
						return nil
					}
					if info.IsDir() {
						relPath += "/"
					}
					files = append(files, relPath)
					return nil
				})
				if err != nil {
					return "", fmt.Errorf("failed to walk directory: %w", err)
				}
			} else {
				entries, err := os.ReadDir(path)
				if err != nil {
					return "", fmt.Errorf("failed to read directory: %w", err)
				}
				for _, entry := range entries {
					name := entry.Name()
					if strings.HasPrefix(name, ".") {
						continue
					}
					if entry.IsDir() {
						name += "/"
					}
					files = append(files, name)
				}
			}

			logging.ToolsDebug("list_files: %s (%d entries)", rel, len(files))
			return strings.Join(files, "\n"), nil
		},
	}
}

func argLine(args map[string]any, key string) (int, bool) {
	switch v := args[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}
