package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"planforge/internal/tools"
)

// Tool results are JSON payloads so peer agents can parse them directly.
// Unknown session IDs are reported in-band as {"ok":false,"error":...}
// rather than as execution errors: a stale ID is a normal condition the
// calling agent should see and react to, not a tool failure.

// RegisterAll registers all session tools with the given registry.
// Every tool closes over the same manager so sessions started by one
// agent are visible to the others.
func RegisterAll(registry *tools.Registry, m *Manager) error {
	allTools := []*tools.Tool{
		StartTool(m),
		ReadTool(m),
		SendTool(m),
		CloseTool(m),
		ListTool(m),
	}

	for _, tool := range allTools {
		if err := registry.Register(tool); err != nil {
			return err
		}
	}

	return nil
}

// StartTool returns a tool that spawns a new interactive shell session.
func StartTool(m *Manager) *tools.Tool {
	return &tools.Tool{
		Name:        "session_start",
		Description: "Start a persistent interactive shell session running a command under a PTY",
		Category:    tools.CategorySession,
		Priority:    70,
		Schema: tools.ToolSchema{
			Required: []string{"command"},
			Properties: map[string]tools.Property{
				"command": {
					Type:        "string",
					Description: "Shell command to run (e.g. 'python3 -i', 'npm run dev')",
				},
				"cwd": {
					Type:        "string",
					Description: "Working directory relative to the sandbox root",
				},
				"env": {
					Type:        "object",
					Description: "Additional environment variables",
				},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			command, _ := args["command"].(string)
			cwd, _ := args["cwd"].(string)

			var env map[string]string
			if raw, ok := args["env"].(map[string]any); ok {
				env = make(map[string]string, len(raw))
				for k, v := range raw {
					if vs, ok := v.(string); ok {
						env[k] = vs
					}
				}
			}

			res, err := m.Start(ctx, command, cwd, env)
			if err != nil {
				return "", err
			}

			return marshalPayload(map[string]any{
				"ok":             true,
				"session_id":     res.Session.ID,
				"pid":            res.Session.PID,
				"started":        res.Session.Command,
				"cwd":            res.Session.WorkDir,
				"initial_output": res.InitialOutput,
			})
		},
	}
}

// ReadTool returns a tool that drains pending output from a session.
func ReadTool(m *Manager) *tools.Tool {
	return &tools.Tool{
		Name:        "session_read",
		Description: "Read pending output from an interactive session without blocking past the timeout",
		Category:    tools.CategorySession,
		Priority:    60,
		Schema: tools.ToolSchema{
			Required: []string{"session_id"},
			Properties: map[string]tools.Property{
				"session_id": {
					Type:        "string",
					Description: "Session ID returned by session_start",
				},
				"timeout": {
					Type:        "number",
					Description: "Max seconds to wait for output (default 0.5)",
					Default:     0.5,
				},
				"max_bytes": {
					Type:        "integer",
					Description: "Max bytes to read (default 8192)",
					Default:     8192,
				},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			id, _ := args["session_id"].(string)

			res, err := m.Read(ctx, id, argSeconds(args, "timeout"), argInt(args, "max_bytes"))
			if err != nil {
				return notFoundPayload(id, err)
			}

			return readPayload(id, res)
		},
	}
}

// SendTool returns a tool that writes input to a session. Reading the
// session's response is a separate session_read call so slow programs do
// not stall the sender.
func SendTool(m *Manager) *tools.Tool {
	return &tools.Tool{
		Name:        "session_send",
		Description: "Send input to an interactive session; pair with session_read to collect the response",
		Category:    tools.CategorySession,
		Priority:    60,
		Schema: tools.ToolSchema{
			Required: []string{"session_id", "input"},
			Properties: map[string]tools.Property{
				"session_id": {
					Type:        "string",
					Description: "Session ID returned by session_start",
				},
				"input": {
					Type:        "string",
					Description: "Text to send to the session's stdin",
				},
				"append_newline": {
					Type:        "boolean",
					Description: "Add a trailing newline if the input lacks one (default true)",
					Default:     true,
				},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			id, _ := args["session_id"].(string)
			input, _ := args["input"].(string)

			appendNewline := true
			if v, ok := args["append_newline"].(bool); ok {
				appendNewline = v
			}

			n, err := m.Send(ctx, id, input, appendNewline)
			if err != nil {
				return notFoundPayload(id, err)
			}

			return marshalPayload(map[string]any{
				"ok":            true,
				"session_id":    id,
				"bytes_written": n,
			})
		},
	}
}

// CloseTool returns a tool that terminates a session.
func CloseTool(m *Manager) *tools.Tool {
	return &tools.Tool{
		Name:        "session_close",
		Description: "Terminate an interactive session and report its exit code",
		Category:    tools.CategorySession,
		Priority:    60,
		Schema: tools.ToolSchema{
			Required: []string{"session_id"},
			Properties: map[string]tools.Property{
				"session_id": {
					Type:        "string",
					Description: "Session ID returned by session_start",
				},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			id, _ := args["session_id"].(string)

			res, err := m.Close(id)
			if err != nil {
				return notFoundPayload(id, err)
			}

			payload := map[string]any{
				"ok":         true,
				"session_id": id,
				"closed":     true,
			}
			if res.ExitCode != nil {
				payload["exit_code"] = *res.ExitCode
			}
			return marshalPayload(payload)
		},
	}
}

// ListTool returns a tool that lists live sessions.
func ListTool(m *Manager) *tools.Tool {
	return &tools.Tool{
		Name:        "session_list",
		Description: "List live interactive sessions with their metadata",
		Category:    tools.CategorySession,
		Priority:    50,
		Schema: tools.ToolSchema{
			Required:   []string{},
			Properties: map[string]tools.Property{},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			return marshalPayload(map[string]any{
				"ok":       true,
				"sessions": m.List(),
			})
		},
	}
}

func readPayload(id string, res *ReadResult) (string, error) {
	payload := map[string]any{
		"ok":         true,
		"session_id": id,
		"output":     res.Output,
		"closed":     res.Closed,
		"bytes":      len(res.Output),
	}
	if res.ExitCode != nil {
		payload["exit_code"] = *res.ExitCode
	}
	return marshalPayload(payload)
}

func notFoundPayload(id string, err error) (string, error) {
	if errors.Is(err, ErrSessionNotFound) {
		return marshalPayload(map[string]any{
			"ok":         false,
			"error":      "session_not_found",
			"session_id": id,
		})
	}
	return "", err
}

func marshalPayload(payload map[string]any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// argSeconds reads a float-seconds argument as a duration.
func argSeconds(args map[string]any, key string) time.Duration {
	switch v := args[key].(type) {
	case float64:
		return time.Duration(v * float64(time.Second))
	case int:
		return time.Duration(v) * time.Second
	}
	return 0
}

func argInt(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}
