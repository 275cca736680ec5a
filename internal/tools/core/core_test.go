package core

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"planforge/internal/tools"
)

func newTestRegistry(t *testing.T) (*tools.Registry, string) {
	t.Helper()
	root := t.TempDir()
	ts, err := NewToolset(root)
	if err != nil {
		t.Fatalf("NewToolset failed: %v", err)
	}
	reg := tools.NewRegistry()
	if err := ts.RegisterAll(reg); err != nil {
		t.Fatalf("RegisterAll failed: %v", err)
	}
	return reg, root
}

func mustExecute(t *testing.T, reg *tools.Registry, name string, args map[string]any) string {
	t.Helper()
	res, err := reg.Execute(context.Background(), name, args)
	if err != nil {
		t.Fatalf("%s failed: %v", name, err)
	}
	return res.Result
}

func TestReadWriteRoundTrip(t *testing.T) {
	reg, root := newTestRegistry(t)

	mustExecute(t, reg, "write_file", map[string]any{
		"path":    "pkg/main.go",
		"content": "package main\n",
	})

	data, err := os.ReadFile(filepath.Join(root, "pkg", "main.go"))
	if err != nil {
		t.Fatalf("file not written: %v", err)
	}
	if string(data) != "package main\n" {
		t.Errorf("content = %q", data)
	}

	got := mustExecute(t, reg, "read_file", map[string]any{"path": "pkg/main.go"})
	if got != "package main\n" {
		t.Errorf("read = %q", got)
	}
}

func TestReadFileLineRange(t *testing.T) {
	reg, _ := newTestRegistry(t)
	mustExecute(t, reg, "write_file", map[string]any{
		"path":    "lines.txt",
		"content": "one\ntwo\nthree\nfour",
	})

	got := mustExecute(t, reg, "read_file", map[string]any{
		"path":       "lines.txt",
		"start_line": 2.0,
		"end_line":   3.0,
	})
	if got != "two\nthree" {
		t.Errorf("range read = %q", got)
	}
}

func TestEditFile(t *testing.T) {
	reg, _ := newTestRegistry(t)
	mustExecute(t, reg, "write_file", map[string]any{
		"path":    "app.go",
		"content": "alpha beta alpha",
	})

	mustExecute(t, reg, "edit_file", map[string]any{
		"path":     "app.go",
		"old_text": "alpha",
		"new_text": "gamma",
	})
	got := mustExecute(t, reg, "read_file", map[string]any{"path": "app.go"})
	if got != "gamma beta alpha" {
		t.Errorf("single replace = %q", got)
	}

	mustExecute(t, reg, "edit_file", map[string]any{
		"path":        "app.go",
		"old_text":    "a",
		"new_text":    "A",
		"replace_all": true,
	})
	got = mustExecute(t, reg, "read_file", map[string]any{"path": "app.go"})
	if strings.Contains(got, "a") {
		t.Errorf("replace_all left lowercase a: %q", got)
	}

	if _, err := reg.Execute(context.Background(), "edit_file", map[string]any{
		"path":     "app.go",
		"old_text": "never-present",
		"new_text": "x",
	}); err == nil {
		t.Error("expected error for missing old_text")
	}
}

func TestListFiles(t *testing.T) {
	reg, root := newTestRegistry(t)
	for _, p := range []string{"a.go", "sub/b.go", ".hidden"} {
		full := filepath.Join(root, filepath.FromSlash(p))
		os.MkdirAll(filepath.Dir(full), 0o755)
		os.WriteFile(full, []byte("x"), 0o644)
	}

	got := mustExecute(t, reg, "list_files", map[string]any{})
	if !strings.Contains(got, "a.go") || !strings.Contains(got, "sub/") {
		t.Errorf("flat listing = %q", got)
	}
	if strings.Contains(got, ".hidden") {
		t.Errorf("hidden files should be skipped: %q", got)
	}

	got = mustExecute(t, reg, "list_files", map[string]any{"recursive": true})
	if !strings.Contains(got, filepath.Join("sub", "b.go")) {
		t.Errorf("recursive listing = %q", got)
	}
}

func TestGrep(t *testing.T) {
	reg, root := newTestRegistry(t)
	os.WriteFile(filepath.Join(root, "x.go"), []byte("func main() {\n\tretry(3)\n}\n"), 0o644)
	os.WriteFile(filepath.Join(root, "y.txt"), []byte("retry policy notes\n"), 0o644)

	got := mustExecute(t, reg, "grep", map[string]any{"pattern": `retry\(`})
	if !strings.Contains(got, "x.go:2:") {
		t.Errorf("grep output = %q", got)
	}
	if strings.Contains(got, "y.txt") {
		t.Errorf("pattern should not match y.txt: %q", got)
	}

	got = mustExecute(t, reg, "grep", map[string]any{"pattern": "retry", "extension": ".txt"})
	if !strings.Contains(got, "y.txt") || strings.Contains(got, "x.go") {
		t.Errorf("extension filter failed: %q", got)
	}

	if _, err := reg.Execute(context.Background(), "grep", map[string]any{"pattern": "("}); err == nil {
		t.Error("expected error for invalid regexp")
	}
}

func TestPathsOutsideWorkspaceRejected(t *testing.T) {
	reg, _ := newTestRegistry(t)

	for _, tc := range []struct {
		tool string
		args map[string]any
	}{
		{"read_file", map[string]any{"path": "../secret"}},
		{"write_file", map[string]any{"path": "../../tmp/evil", "content": "x"}},
		{"edit_file", map[string]any{"path": "../e", "old_text": "a", "new_text": "b"}},
		{"list_files", map[string]any{"path": "../.."}},
		{"grep", map[string]any{"pattern": "x", "path": "../"}},
	} {
		if _, err := reg.Execute(context.Background(), tc.tool, tc.args); err == nil {
			t.Errorf("%s: expected rejection for escaping path", tc.tool)
		}
	}
}
