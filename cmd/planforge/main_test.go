package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"planforge/internal/orchestrator"

	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	logger = zap.NewNop()
	os.Exit(m.Run())
}

func TestParseConstraints(t *testing.T) {
	tests := []struct {
		name  string
		pairs []string
		want  map[string]any
	}{
		{"empty", nil, nil},
		{"single", []string{"timeout_hint=10m"}, map[string]any{"timeout_hint": "10m"}},
		{"multiple", []string{"a=1", "b=two words"}, map[string]any{"a": "1", "b": "two words"}},
		{"value with equals", []string{"expr=x=y"}, map[string]any{"expr": "x=y"}},
		{"all malformed", []string{"no-equals", "=novalue"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseConstraints(tt.pairs)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("constraint %q = %v, want %v", k, got[k], v)
				}
			}
		})
	}
}

func TestLoadRequirementFromArgs(t *testing.T) {
	requirementFile = ""
	got, err := loadRequirement([]string{"add", "a", "healthz", "endpoint"})
	if err != nil {
		t.Fatalf("loadRequirement error: %v", err)
	}
	if got != "add a healthz endpoint" {
		t.Errorf("got %q", got)
	}

	if _, err := loadRequirement(nil); err == nil {
		t.Error("expected error with no requirement")
	}
}

func TestLoadRequirementFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "req.md")
	if err := os.WriteFile(path, []byte("  build the thing\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	requirementFile = path
	defer func() { requirementFile = "" }()

	got, err := loadRequirement(nil)
	if err != nil {
		t.Fatalf("loadRequirement error: %v", err)
	}
	if got != "build the thing" {
		t.Errorf("got %q", got)
	}

	empty := filepath.Join(dir, "empty.md")
	if err := os.WriteFile(empty, []byte("   \n"), 0o644); err != nil {
		t.Fatal(err)
	}
	requirementFile = empty
	if _, err := loadRequirement(nil); err == nil {
		t.Error("expected error for empty requirement file")
	}
}

// A failed workflow must surface as an error return, not a direct exit,
// so deferred cleanup and the post-run hooks still fire.
func TestExitError(t *testing.T) {
	if err := exitError(&orchestrator.Result{Error: "max_clarification_rounds_exceeded"}); !errors.Is(err, errWorkflowFailed) {
		t.Errorf("expected errWorkflowFailed, got %v", err)
	}
	if err := exitError(&orchestrator.Result{}); err != nil {
		t.Errorf("successful result should not error, got %v", err)
	}
}
