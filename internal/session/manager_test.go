package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"planforge/internal/tools"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(Options{SandboxRoot: t.TempDir()})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	t.Cleanup(m.CloseAll)
	return m
}

// readUntil keeps draining a session until the accumulated output satisfies
// the predicate or the deadline passes.
func readUntil(t *testing.T, m *Manager, id, seed string, want func(string) bool) string {
	t.Helper()
	acc := seed
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		res, err := m.Read(context.Background(), id, 200*time.Millisecond, 0)
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		acc += res.Output
		if want(acc) {
			return acc
		}
	}
	t.Fatalf("timed out waiting for output, got %q", acc)
	return acc
}

func TestStartCapturesOutput(t *testing.T) {
	m := newTestManager(t)

	res, err := m.Start(context.Background(), "echo hello-session", "", nil)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if !strings.HasPrefix(res.Session.ID, "sh_") {
		t.Errorf("expected sh_ prefixed ID, got %q", res.Session.ID)
	}
	if res.Session.PID <= 0 {
		t.Errorf("expected positive PID, got %d", res.Session.PID)
	}
	if res.Session.WorkDir != m.Root() {
		t.Errorf("expected workdir %q, got %q", m.Root(), res.Session.WorkDir)
	}

	readUntil(t, m, res.Session.ID, res.InitialOutput, func(s string) bool {
		return strings.Contains(s, "hello-session")
	})
}

func TestStartEmptyCommand(t *testing.T) {
	m := newTestManager(t)

	if _, err := m.Start(context.Background(), "  ", "", nil); !errors.Is(err, ErrEmptyCommand) {
		t.Fatalf("expected ErrEmptyCommand, got %v", err)
	}
}

func TestSendAndRead(t *testing.T) {
	m := newTestManager(t)

	res, err := m.Start(context.Background(), "cat", "", nil)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	id := res.Session.ID

	n, err := m.Send(context.Background(), id, "ping-pong", true)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if n != len("ping-pong\n") {
		t.Errorf("expected %d bytes written, got %d", len("ping-pong\n"), n)
	}

	acc := readUntil(t, m, id, "", func(s string) bool {
		return strings.Contains(s, "ping-pong")
	})
	if !strings.Contains(acc, "ping-pong") {
		t.Errorf("expected echoed input, got %q", acc)
	}
}

func TestReadNeverBlocksPastTimeout(t *testing.T) {
	m := newTestManager(t)

	res, err := m.Start(context.Background(), "sleep 30", "", nil)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	start := time.Now()
	out, err := m.Read(context.Background(), res.Session.ID, 300*time.Millisecond, 0)
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if out.Output != "" {
		t.Errorf("expected no output from sleeping session, got %q", out.Output)
	}
	if out.Closed {
		t.Error("session should still be live")
	}
	if elapsed > 600*time.Millisecond {
		t.Errorf("Read blocked for %v, should respect ~300ms timeout", elapsed)
	}
}

func TestReadReportsExit(t *testing.T) {
	m := newTestManager(t)

	res, err := m.Start(context.Background(), "exit 7", "", nil)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		out, err := m.Read(context.Background(), res.Session.ID, 200*time.Millisecond, 0)
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if out.Closed {
			if out.ExitCode == nil || *out.ExitCode != 7 {
				t.Fatalf("expected exit code 7, got %v", out.ExitCode)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("session never reported closed")
		}
	}
}

func TestUnknownSession(t *testing.T) {
	m := newTestManager(t)

	if _, err := m.Read(context.Background(), "sh_deadbeef", 0, 0); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Read: expected ErrSessionNotFound, got %v", err)
	}
	if _, err := m.Send(context.Background(), "sh_deadbeef", "hi", true); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Send: expected ErrSessionNotFound, got %v", err)
	}
	if _, err := m.Close("sh_deadbeef"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Close: expected ErrSessionNotFound, got %v", err)
	}
}

func TestCloseTerminatesAndForgets(t *testing.T) {
	m := newTestManager(t)

	res, err := m.Start(context.Background(), "sleep 60", "", nil)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	id := res.Session.ID

	out, err := m.Close(id)
	if err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if out.ExitCode == nil {
		t.Error("Close should report an exit code")
	}

	if _, err := m.Read(context.Background(), id, 0, 0); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("closed session should be forgotten, got %v", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	m := newTestManager(t)

	res, err := m.Start(context.Background(), "sleep 60", "", nil)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	id := res.Session.ID

	if _, err := m.Close(id); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// A second close and any use of the ID behave like an unknown session.
	if _, err := m.Close(id); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("second Close: expected ErrSessionNotFound, got %v", err)
	}
	if _, err := m.Read(context.Background(), id, 0, 0); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Read after close: expected ErrSessionNotFound, got %v", err)
	}
	if _, err := m.Send(context.Background(), id, "hi", true); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Send after close: expected ErrSessionNotFound, got %v", err)
	}
}

func TestCIInjected(t *testing.T) {
	m := newTestManager(t)

	res, err := m.Start(context.Background(), "echo marker=$CI", "", nil)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	readUntil(t, m, res.Session.ID, res.InitialOutput, func(s string) bool {
		return strings.Contains(s, "marker=1")
	})
}

func TestEnvOverlay(t *testing.T) {
	m := newTestManager(t)

	res, err := m.Start(context.Background(), "echo val=$PLANFORGE_TEST_VAR", "", map[string]string{
		"PLANFORGE_TEST_VAR": "overlay-works",
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	readUntil(t, m, res.Session.ID, res.InitialOutput, func(s string) bool {
		return strings.Contains(s, "val=overlay-works")
	})
}

func TestList(t *testing.T) {
	m := newTestManager(t)

	if got := m.List(); len(got) != 0 {
		t.Fatalf("expected empty list, got %d", len(got))
	}

	a, err := m.Start(context.Background(), "cat", "", nil)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	b, err := m.Start(context.Background(), "cat", "", nil)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	got := m.List()
	if len(got) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(got))
	}
	if got[0].ID != a.Session.ID || got[1].ID != b.Session.ID {
		t.Errorf("expected oldest-first order %s,%s got %s,%s", a.Session.ID, b.Session.ID, got[0].ID, got[1].ID)
	}
}

func TestSessionToolsPayloads(t *testing.T) {
	m := newTestManager(t)

	// Unknown IDs come back as structured payloads, not tool errors.
	readTool := ReadTool(m)
	out, err := readTool.Execute(context.Background(), map[string]any{"session_id": "sh_missing"})
	if err != nil {
		t.Fatalf("tool should not error for unknown session: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if payload["ok"] != false || payload["error"] != "session_not_found" {
		t.Errorf("unexpected payload: %v", payload)
	}

	// Round trip through start/send/close payloads.
	startTool := StartTool(m)
	out, err = startTool.Execute(context.Background(), map[string]any{"command": "cat"})
	if err != nil {
		t.Fatalf("session_start failed: %v", err)
	}
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("start payload not JSON: %v", err)
	}
	id, _ := payload["session_id"].(string)
	if payload["ok"] != true || !strings.HasPrefix(id, "sh_") {
		t.Fatalf("unexpected start payload: %v", payload)
	}

	sendTool := SendTool(m)
	out, err = sendTool.Execute(context.Background(), map[string]any{
		"session_id": id,
		"input":      "echo-me",
	})
	if err != nil {
		t.Fatalf("session_send failed: %v", err)
	}
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("send payload not JSON: %v", err)
	}
	if payload["ok"] != true || payload["bytes_written"] != float64(len("echo-me\n")) {
		t.Errorf("unexpected send payload: %v", payload)
	}

	closeTool := CloseTool(m)
	out, err = closeTool.Execute(context.Background(), map[string]any{"session_id": id})
	if err != nil {
		t.Fatalf("session_close failed: %v", err)
	}
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("close payload not JSON: %v", err)
	}
	if payload["closed"] != true {
		t.Errorf("unexpected close payload: %v", payload)
	}
}

func TestRegisterAll(t *testing.T) {
	m := newTestManager(t)
	reg := tools.NewRegistry()

	if err := RegisterAll(reg, m); err != nil {
		t.Fatalf("RegisterAll failed: %v", err)
	}

	for _, name := range []string{"session_start", "session_read", "session_send", "session_close", "session_list"} {
		if !reg.Has(name) {
			t.Errorf("expected %s to be registered", name)
		}
	}
}
