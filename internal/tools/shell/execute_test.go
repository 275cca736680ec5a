package shell

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"planforge/internal/tools"
)

func runTool(t *testing.T, root string, args map[string]any) (string, error) {
	t.Helper()
	reg := tools.NewRegistry()
	reg.MustRegister(RunCommandTool(root))
	res, err := reg.Execute(context.Background(), "run_command", args)
	if err != nil {
		return "", err
	}
	return res.Result, nil
}

func TestRunCommand(t *testing.T) {
	out, err := runTool(t, t.TempDir(), map[string]any{"command": "echo hello"})
	if err != nil {
		t.Fatalf("run_command failed: %v", err)
	}
	if !strings.Contains(out, "hello") {
		t.Errorf("output = %q", out)
	}
}

func TestRunCommandCapturesStderr(t *testing.T) {
	out, err := runTool(t, t.TempDir(), map[string]any{"command": "echo oops 1>&2"})
	if err != nil {
		t.Fatalf("run_command failed: %v", err)
	}
	if !strings.Contains(out, "oops") {
		t.Errorf("stderr missing: %q", out)
	}
}

func TestRunCommandFailureIncludesOutput(t *testing.T) {
	_, err := runTool(t, t.TempDir(), map[string]any{"command": "echo bad; exit 3"})
	if err == nil {
		t.Fatal("expected error for nonzero exit")
	}
	if !strings.Contains(err.Error(), "bad") {
		t.Errorf("error should carry output: %v", err)
	}
}

func TestRunCommandTimeout(t *testing.T) {
	start := time.Now()
	_, err := runTool(t, t.TempDir(), map[string]any{
		"command":         "sleep 5",
		"timeout_seconds": 1.0,
	})
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if time.Since(start) > 3*time.Second {
		t.Error("timeout not enforced")
	}
}

func TestRunCommandTimeoutKillsDescendants(t *testing.T) {
	// The shell forks a child that inherits the output pipes. Killing only
	// the shell would leave the child holding them and the call would last
	// the full sleep; the whole process group must die at the deadline.
	start := time.Now()
	_, err := runTool(t, t.TempDir(), map[string]any{
		"command":         "sleep 30 & wait",
		"timeout_seconds": 1.0,
	})
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 4*time.Second {
		t.Errorf("call held open by orphaned child: %v", elapsed)
	}
}

func TestRunCommandBackgroundedChildDoesNotHoldCall(t *testing.T) {
	// A backgrounded process outlives the shell but must not pin the call
	// past the wait allowance once the shell itself has exited.
	start := time.Now()
	out, err := runTool(t, t.TempDir(), map[string]any{
		"command":         "sleep 30 & echo launched",
		"timeout_seconds": 20.0,
	})
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Fatalf("call held open by backgrounded child: %v (err=%v)", elapsed, err)
	}
	if !strings.Contains(out, "launched") {
		t.Errorf("foreground output lost: %q", out)
	}
}

func TestRunCommandWorkingDirClamped(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	out, err := runTool(t, root, map[string]any{"command": "pwd", "working_dir": "sub"})
	if err != nil {
		t.Fatalf("run_command failed: %v", err)
	}
	if !strings.Contains(out, "sub") {
		t.Errorf("expected cwd sub, got %q", out)
	}

	// Escaping paths land back at the sandbox root.
	out, err = runTool(t, root, map[string]any{"command": "pwd", "working_dir": "../../etc"})
	if err != nil {
		t.Fatalf("run_command failed: %v", err)
	}
	if strings.Contains(out, "/etc") {
		t.Errorf("working dir escaped the sandbox: %q", out)
	}
}
