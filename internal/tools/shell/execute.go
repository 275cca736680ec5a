// Package shell provides the one-shot command tool. For programs that need
// to stay alive between calls (REPLs, dev servers), use the session tools
// instead.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"planforge/internal/logging"
	"planforge/internal/session"
	"planforge/internal/tools"
)

// maxCommandOutput caps combined stdout/stderr returned to the agent.
const maxCommandOutput = 50000

// RunCommandTool returns a tool that runs a command to completion and
// returns its combined output. Working directories resolve inside the same
// sandbox root the session manager uses.
func RunCommandTool(sandboxRoot string) *tools.Tool {
	return &tools.Tool{
		Name:        "run_command",
		Description: "Run a shell command to completion and return its output",
		Category:    tools.CategoryShell,
		Priority:    70,
		Schema: tools.ToolSchema{
			Required: []string{"command"},
			Properties: map[string]tools.Property{
				"command": {
					Type:        "string",
					Description: "The command to execute",
				},
				"working_dir": {
					Type:        "string",
					Description: "Working directory relative to the sandbox root",
				},
				"timeout_seconds": {
					Type:        "integer",
					Description: "Timeout in seconds (default: 60)",
					Default:     60,
				},
				"env": {
					Type:        "object",
					Description: "Additional environment variables",
				},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			command, _ := args["command"].(string)
			if command == "" {
				return "", fmt.Errorf("command is required")
			}

			timeout := 60
			if v, ok := args["timeout_seconds"].(float64); ok && v > 0 {
				timeout = int(v)
			}

			workDir := session.ResolveWorkDir(sandboxRoot, argString(args, "working_dir"))

			execCtx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
			defer cancel()

			cmd := exec.CommandContext(execCtx, "/bin/sh", "-c", command)
			cmd.Dir = workDir
			// The shell gets its own process group so cancellation kills
			// descendants too; killing only /bin/sh leaves children holding
			// the output pipes and Run would block past the deadline.
			cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
			cmd.Cancel = func() error {
				return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
			}
			cmd.WaitDelay = 2 * time.Second
			cmd.Env = os.Environ()
			if envMap, ok := args["env"].(map[string]any); ok {
				for k, v := range envMap {
					if vs, ok := v.(string); ok {
						cmd.Env = append(cmd.Env, k+"="+vs)
					}
				}
			}

			var stdout, stderr bytes.Buffer
			cmd.Stdout = &stdout
			cmd.Stderr = &stderr

			err := cmd.Run()

			output := stdout.String()
			if stderr.Len() > 0 {
				if output != "" {
					output += "\n--- stderr ---\n"
				}
				output += stderr.String()
			}
			if len(output) > maxCommandOutput {
				output = output[:maxCommandOutput] + "\n...[truncated]"
			}

			if err != nil {
				if execCtx.Err() == context.DeadlineExceeded {
					return output, fmt.Errorf("command timed out after %d seconds", timeout)
				}
				if errors.Is(err, exec.ErrWaitDelay) {
					// The shell exited cleanly; only a backgrounded child
					// still held the pipes when the wait allowance ran out.
					logging.ToolsDebug("run_command: %s left background children behind", command)
					return output, nil
				}
				logging.Tools("run_command failed: %s (%v)", command, err)
				return output, fmt.Errorf("command failed: %w\nOutput:\n%s", err, output)
			}

			logging.ToolsDebug("run_command: %s (%d bytes output)", command, len(output))
			return output, nil
		},
	}
}

func argString(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}
