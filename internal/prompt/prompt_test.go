package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadEmbeddedDefaults(t *testing.T) {
	l := NewLoader("")
	for _, name := range []string{"requirement", "dev"} {
		text, err := l.Load(name)
		if err != nil {
			t.Fatalf("Load(%q) error: %v", name, err)
		}
		if text == "" {
			t.Fatalf("Load(%q) returned empty prompt", name)
		}
	}

	req, _ := l.Load("requirement")
	if !strings.Contains(req, "plan_ready") || !strings.Contains(req, "clarification_needed") {
		t.Error("requirement prompt should document both statuses")
	}
	dev, _ := l.Load("dev")
	if !strings.Contains(dev, `"success"`) {
		t.Error("dev prompt should document the report contract")
	}
}

func TestLoadOverrideWins(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, OverrideDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "dev.md"), []byte("custom dev prompt\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	l := NewLoader(root)
	text, err := l.Load("dev")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if text != "custom dev prompt" {
		t.Errorf("expected override text, got %q", text)
	}

	// Other names still fall back to the embedded default.
	req, err := l.Load("requirement")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if !strings.Contains(req, "plan_ready") {
		t.Error("requirement should come from embedded defaults")
	}
}

func TestLoadBlankOverrideFallsBack(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, OverrideDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "dev.md"), []byte("   \n"), 0o644); err != nil {
		t.Fatal(err)
	}

	text, err := NewLoader(root).Load("dev")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if !strings.Contains(text, `"success"`) {
		t.Error("blank override should fall back to the embedded default")
	}
}

func TestLoadUnknownName(t *testing.T) {
	if _, err := NewLoader("").Load("nonsense"); err == nil {
		t.Error("expected error for unknown prompt name")
	}
	if _, err := NewLoader("").Load(""); err == nil {
		t.Error("expected error for empty prompt name")
	}
}

func TestNames(t *testing.T) {
	names := Names()
	want := map[string]bool{"requirement": false, "dev": false}
	for _, n := range names {
		if _, ok := want[n]; ok {
			want[n] = true
		}
	}
	for n, seen := range want {
		if !seen {
			t.Errorf("Names() missing %q", n)
		}
	}
}
