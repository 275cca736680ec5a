// Package prompt resolves named system prompts. Each agent asks for its
// prompt by name; the loader checks the workspace override directory first
// and falls back to the embedded defaults compiled into the binary.
package prompt

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

//go:embed defaults
var defaultsFS embed.FS

// OverrideDir is where workspace-local prompt overrides live, relative to
// the workspace root. A file named <name>.md there shadows the embedded
// default of the same name.
const OverrideDir = ".planforge/prompts"

// Loader resolves prompt names to their text.
type Loader struct {
	overrideDir string
}

// NewLoader returns a Loader rooted at the given workspace. An empty root
// disables overrides and serves embedded defaults only.
func NewLoader(workspaceRoot string) *Loader {
	l := &Loader{}
	if workspaceRoot != "" {
		l.overrideDir = filepath.Join(workspaceRoot, OverrideDir)
	}
	return l
}

// Load returns the prompt text for name. Workspace overrides win over
// embedded defaults; an unknown name is an error.
func (l *Loader) Load(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("prompt name is empty")
	}
	if l.overrideDir != "" {
		data, err := os.ReadFile(filepath.Join(l.overrideDir, name+".md"))
		if err == nil {
			text := strings.TrimSpace(string(data))
			if text != "" {
				return text, nil
			}
		} else if !os.IsNotExist(err) {
			return "", fmt.Errorf("read prompt override %s: %w", name, err)
		}
	}
	data, err := defaultsFS.ReadFile("defaults/" + name + ".md")
	if err != nil {
		return "", fmt.Errorf("unknown prompt: %s", name)
	}
	return strings.TrimSpace(string(data)), nil
}

// Names lists the embedded default prompt names.
func Names() []string {
	entries, err := defaultsFS.ReadDir("defaults")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".md"))
	}
	return names
}
