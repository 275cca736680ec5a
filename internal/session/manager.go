// Package session manages long-lived interactive shell sessions backed by
// pseudo-terminals. Each session runs a command under a PTY so interactive
// programs (REPLs, installers, watch modes) behave as they would in a real
// terminal. Reads are non-blocking with a bounded wait: callers always get
// whatever output has accumulated, never a hang.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"planforge/internal/logging"

	"github.com/creack/pty"
	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

// Session errors.
var (
	// ErrSessionNotFound is returned for unknown or already-closed session IDs.
	ErrSessionNotFound = errors.New("session_not_found")

	// ErrEmptyCommand is returned when Start is called without a command.
	ErrEmptyCommand = errors.New("command cannot be empty")
)

// Session describes the public metadata for a tracked shell session.
type Session struct {
	ID         string    `json:"id"`
	Command    string    `json:"command"`
	WorkDir    string    `json:"work_dir"`
	PID        int       `json:"pid"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
}

type record struct {
	mu   sync.Mutex // serializes PTY reads/writes for this session
	meta Session
	cmd  *exec.Cmd
	ptmx *os.File
	done chan struct{}
	exit int // valid once done is closed
}

// StartResult is returned by Start.
type StartResult struct {
	Session       Session
	InitialOutput string
}

// ReadResult is returned by Read.
type ReadResult struct {
	Output   string
	Closed   bool
	ExitCode *int
}

// CloseResult is returned by Close.
type CloseResult struct {
	ExitCode *int
}

// Options configures a Manager.
type Options struct {
	// SandboxRoot constrains session working directories. Required.
	SandboxRoot string

	// ReadTimeout is the default bounded wait for output (default 500ms).
	ReadTimeout time.Duration

	// StartGrace is how long Start waits for initial output (default 300ms).
	StartGrace time.Duration

	// MaxOutputBytes caps a single read (default 8192).
	MaxOutputBytes int
}

// Manager tracks interactive shell sessions. It is safe for concurrent use.
// Callers construct one per workspace; there is no package-level instance.
type Manager struct {
	root        string
	readTimeout time.Duration
	startGrace  time.Duration
	maxOutput   int

	mu       sync.RWMutex
	sessions map[string]*record
}

// NewManager creates a session manager rooted at opts.SandboxRoot.
func NewManager(opts Options) (*Manager, error) {
	if opts.SandboxRoot == "" {
		return nil, fmt.Errorf("sandbox root required")
	}
	root, err := absRoot(opts.SandboxRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve sandbox root: %w", err)
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 500 * time.Millisecond
	}
	if opts.StartGrace <= 0 {
		opts.StartGrace = 300 * time.Millisecond
	}
	if opts.MaxOutputBytes <= 0 {
		opts.MaxOutputBytes = 8192
	}
	return &Manager{
		root:        root,
		readTimeout: opts.ReadTimeout,
		startGrace:  opts.StartGrace,
		maxOutput:   opts.MaxOutputBytes,
		sessions:    make(map[string]*record),
	}, nil
}

// Root returns the sandbox root directory.
func (m *Manager) Root() string {
	return m.root
}

// Start spawns command under a new PTY session. cwd is resolved inside the
// sandbox root; paths escaping it are clamped to the root. The child gets the
// parent environment plus env, with CI=1 injected unless the caller set CI.
func (m *Manager) Start(ctx context.Context, command, cwd string, env map[string]string) (*StartResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(command) == "" {
		return nil, ErrEmptyCommand
	}

	workDir := ResolveWorkDir(m.root, cwd)

	cmd := exec.Command("/bin/sh", "-c", command)
	cmd.Dir = workDir
	cmd.Env = buildEnv(env)

	ptmx, err := pty.Start(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	now := time.Now()
	rec := &record{
		meta: Session{
			ID:         "sh_" + uuid.NewString()[:8],
			Command:    command,
			WorkDir:    workDir,
			PID:        cmd.Process.Pid,
			CreatedAt:  now,
			LastActive: now,
		},
		cmd:  cmd,
		ptmx: ptmx,
		done: make(chan struct{}),
		exit: -1,
	}

	go func() {
		err := cmd.Wait()
		if cmd.ProcessState != nil {
			rec.exit = cmd.ProcessState.ExitCode()
		} else if err != nil {
			rec.exit = -1
		}
		close(rec.done)
	}()

	m.mu.Lock()
	m.sessions[rec.meta.ID] = rec
	m.mu.Unlock()

	logging.Session("Started %s: pid=%d cwd=%s cmd=%q", rec.meta.ID, rec.meta.PID, workDir, command)

	// Grace window so prompts and banners show up in the start payload.
	initial := m.readAvailable(rec, m.startGrace, m.maxOutput)

	return &StartResult{Session: rec.meta, InitialOutput: initial}, nil
}

// Read drains up to maxBytes of pending output, waiting at most timeout.
// Zero values fall back to the manager defaults. It never blocks past the
// timeout: if the session is quiet the output is simply empty.
func (m *Manager) Read(ctx context.Context, id string, timeout time.Duration, maxBytes int) (*ReadResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec, err := m.get(id)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = m.readTimeout
	}
	if maxBytes <= 0 {
		maxBytes = m.maxOutput
	}

	output := m.readAvailable(rec, timeout, maxBytes)
	m.touch(rec)

	return m.result(rec, output), nil
}

// Send writes input to the session's PTY and returns the number of bytes
// written. When appendNewline is true a trailing newline is added unless the
// input already ends in one, so single commands submit without the caller
// remembering the terminator. Output is retrieved separately via Read.
func (m *Manager) Send(ctx context.Context, id, input string, appendNewline bool) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	rec, err := m.get(id)
	if err != nil {
		return 0, err
	}

	if appendNewline && !strings.HasSuffix(input, "\n") {
		input += "\n"
	}

	rec.mu.Lock()
	n, werr := rec.ptmx.Write([]byte(input))
	rec.mu.Unlock()
	if werr != nil {
		return n, fmt.Errorf("write to session %s: %w", id, werr)
	}
	m.touch(rec)

	logging.SessionDebug("Send %s: wrote=%d bytes", id, n)
	return n, nil
}

// Close terminates the session's process and removes it from the registry.
// The process gets SIGTERM, then SIGKILL if it is still alive after a short
// grace period.
func (m *Manager) Close(id string) (*CloseResult, error) {
	rec, err := m.get(id)
	if err != nil {
		return nil, err
	}

	select {
	case <-rec.done:
		// Already exited.
	default:
		_ = rec.cmd.Process.Signal(syscall.SIGTERM)
		select {
		case <-rec.done:
		case <-time.After(2 * time.Second):
			_ = rec.cmd.Process.Kill()
			<-rec.done
		}
	}

	exit := rec.exit
	rec.mu.Lock()
	_ = rec.ptmx.Close()
	rec.mu.Unlock()

	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()

	logging.Session("Closed %s: exit_code=%d", id, exit)

	return &CloseResult{ExitCode: &exit}, nil
}

// List returns metadata for all live sessions, oldest first.
func (m *Manager) List() []Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Session, 0, len(m.sessions))
	for _, rec := range m.sessions {
		out = append(out, rec.meta)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// CloseAll terminates every live session. Used at shutdown.
func (m *Manager) CloseAll() {
	for _, s := range m.List() {
		_, _ = m.Close(s.ID)
	}
}

func (m *Manager) get(id string) (*record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return rec, nil
}

func (m *Manager) touch(rec *record) {
	m.mu.Lock()
	rec.meta.LastActive = time.Now()
	m.mu.Unlock()
}

func (m *Manager) result(rec *record, output string) *ReadResult {
	res := &ReadResult{Output: output}
	select {
	case <-rec.done:
		res.Closed = true
		exit := rec.exit
		res.ExitCode = &exit
	default:
	}
	return res
}

// readAvailable drains pending PTY output without ever blocking past the
// deadline. The first byte is awaited for at most timeout; once anything has
// arrived, subsequent polls are zero-wait so a chatty session cannot hold the
// caller open. A poll timeout or EIO (slave side gone) ends the read.
func (m *Manager) readAvailable(rec *record, timeout time.Duration, maxBytes int) string {
	rec.mu.Lock()
	defer rec.mu.Unlock()

	fd := int(rec.ptmx.Fd())
	deadline := time.Now().Add(timeout)
	var buf bytes.Buffer
	chunk := make([]byte, 4096)

	for buf.Len() < maxBytes {
		var waitMs int
		if buf.Len() == 0 {
			remaining := time.Until(deadline)
			if remaining < 0 {
				remaining = 0
			}
			waitMs = int(remaining.Milliseconds())
		}

		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		n, err := unix.Poll(fds, waitMs)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			break
		}
		if n == 0 {
			break // quiet until deadline
		}
		if fds[0].Revents&(unix.POLLIN|unix.POLLHUP) == 0 {
			break
		}

		nr, err := unix.Read(fd, chunk)
		if nr > 0 {
			room := maxBytes - buf.Len()
			if nr > room {
				nr = room
			}
			buf.Write(chunk[:nr])
		}
		if err != nil || nr <= 0 {
			// EIO after process exit means the PTY is fully drained.
			break
		}
	}

	return buf.String()
}

// buildEnv merges the parent environment with overlay and injects CI=1
// unless the caller set CI explicitly.
func buildEnv(overlay map[string]string) []string {
	env := os.Environ()
	seen := make(map[string]int, len(env))
	for i, kv := range env {
		if eq := strings.IndexByte(kv, '='); eq > 0 {
			seen[kv[:eq]] = i
		}
	}

	for k, v := range overlay {
		if i, ok := seen[k]; ok {
			env[i] = k + "=" + v
		} else {
			seen[k] = len(env)
			env = append(env, k+"="+v)
		}
	}

	if _, ok := seen["CI"]; !ok {
		env = append(env, "CI=1")
	}
	return env
}
