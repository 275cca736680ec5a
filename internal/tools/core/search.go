package core

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"planforge/internal/logging"
	"planforge/internal/tools"
)

const grepMaxMatches = 200

// GrepTool returns a tool that searches workspace file contents with a
// regular expression.
func (t *Toolset) GrepTool() *tools.Tool {
	return &tools.Tool{
		Name:        "grep",
		Description: "Search workspace file contents with a regular expression",
		Category:    tools.CategoryCode,
		Priority:    85,
		Schema: tools.ToolSchema{
			Required: []string{"pattern"},
			Properties: map[string]tools.Property{
				"pattern": {
					Type:        "string",
					Description: "Regular expression to search for",
				},
				"path": {
					Type:        "string",
					Description: "Directory to search relative to the workspace root (default: the root)",
				},
				"extension": {
					Type:        "string",
					Description: "Only search files with this extension (e.g. '.go')",
				},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			pattern, _ := args["pattern"].(string)
			re, err := regexp.Compile(pattern)
			if err != nil {
				return "", fmt.Errorf("invalid pattern: %w", err)
			}

			rel, _ := args["path"].(string)
			ext, _ := args["extension"].(string)

			root, err := t.resolve(rel)
			if err != nil {
				return "", err
			}

			var matches []string
			err = filepath.Walk(root, func(p string, info os.FileInfo, walkErr error) error {
				if walkErr != nil || len(matches) >= grepMaxMatches {
					return nil
				}
				if strings.HasPrefix(info.Name(), ".") {
					if info.IsDir() {
						return filepath.SkipDir
					}
					return nil
				}
				if info.IsDir() {
					return nil
				}
				if ext != "" && !strings.HasSuffix(info.Name(), ext) {
					return nil
				}

				relPath, _ := filepath.Rel(t.root, p)
				matches = append(matches, grepFile(p, relPath, re, grepMaxMatches-len(matches))...)
				return nil
			})
			if err != nil {
				return "", fmt.Errorf("failed to walk directory: %w", err)
			}

			logging.ToolsDebug("grep %q: %d match(es)", pattern, len(matches))
			if len(matches) == 0 {
				return "no matches", nil
			}
			return strings.Join(matches, "\n"), nil
		},
	}
}

func grepFile(path, relPath string, re *regexp.Regexp, budget int) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() && len(out) < budget {
		lineNo++
		line := scanner.Text()
		if re.MatchString(line) {
			out = append(out, fmt.Sprintf("%s:%d: %s", relPath, lineNo, line))
		}
	}
	return out
}
