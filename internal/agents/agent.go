// Package agents runs specialized LLM peers over the shared tool registry.
// An agent is a value, not a subclass: a system prompt, an allowed tool set,
// a completion client, and bounded conversational memory. Specialization
// between the requirement analyst and the stage developer is entirely in
// the prompt and tool list.
package agents

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"planforge/internal/bridge"
	"planforge/internal/llm"
	"planforge/internal/logging"
	"planforge/internal/tools"
)

// DefaultMaxToolTurns bounds tool round-trips in one Run call.
const DefaultMaxToolTurns = 8

// Agent is one specialized peer. Construct with NewAgent; zero value is not
// usable.
type Agent struct {
	Name         string
	SystemPrompt string
	MaxToolTurns int

	client   llm.Client
	registry *tools.Registry
	allowed  map[string]bool

	mu     sync.Mutex
	memory []llm.Message
}

// NewAgent builds an agent. allowedTools is the whitelist of registry tools
// this agent may call; empty means no tool access (pure completion).
func NewAgent(name, systemPrompt string, client llm.Client, registry *tools.Registry, allowedTools []string) *Agent {
	allowed := make(map[string]bool, len(allowedTools))
	for _, t := range allowedTools {
		allowed[t] = true
	}
	return &Agent{
		Name:         name,
		SystemPrompt: systemPrompt,
		MaxToolTurns: DefaultMaxToolTurns,
		client:       client,
		registry:     registry,
		allowed:      allowed,
	}
}

// Run sends input to the agent and drives its tool calls until it produces
// a final text answer or the tool-turn budget runs out. On budget exhaustion
// the last model output is returned as-is: downstream loose parsing decides
// what to make of it.
func (a *Agent) Run(ctx context.Context, input string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	timer := logging.StartTimer(logging.CategoryAgents, a.Name+" run")
	defer timer.Stop()

	system := a.SystemPrompt
	if catalog := a.toolCatalog(); catalog != "" {
		system += "\n\n" + catalog
	}

	a.memory = append(a.memory, llm.Message{Role: "user", Content: input})

	var response string
	for turn := 0; turn <= a.MaxToolTurns; turn++ {
		var err error
		response, err = a.client.CompleteWithSystem(ctx, system, a.transcript())
		if err != nil {
			return "", fmt.Errorf("agent %s: %w", a.Name, err)
		}
		a.memory = append(a.memory, llm.Message{Role: "assistant", Content: response})

		name, args, ok := toolCall(response)
		if !ok {
			return response, nil
		}
		if turn == a.MaxToolTurns {
			logging.Agents("%s: tool turn budget exhausted at %d", a.Name, a.MaxToolTurns)
			break
		}

		observation := a.callTool(ctx, name, args)
		a.memory = append(a.memory, llm.Message{Role: "user", Content: observation})
	}

	return response, nil
}

// Reset clears the agent's conversational memory.
func (a *Agent) Reset() {
	a.mu.Lock()
	a.memory = nil
	a.mu.Unlock()
}

// callTool executes one tool call and formats the observation the model
// sees next turn. Disallowed or failing tools become structured in-band
// errors; the agent, not the caller, decides how to react.
func (a *Agent) callTool(ctx context.Context, name string, args map[string]any) string {
	if !a.allowed[name] {
		logging.Agents("%s: blocked call to %s", a.Name, name)
		return fmt.Sprintf(`TOOL_RESULT %s: {"ok":false,"error":"tool_not_allowed"}`, name)
	}

	result, err := a.registry.Execute(ctx, name, args)
	if err != nil {
		logging.Agents("%s: tool %s failed: %v", a.Name, name, err)
		return fmt.Sprintf(`TOOL_RESULT %s: {"ok":false,"error":%q}`, name, err.Error())
	}

	logging.AgentsDebug("%s: tool %s returned %d bytes", a.Name, name, len(result.Result))
	return fmt.Sprintf("TOOL_RESULT %s: %s", name, result.Result)
}

// toolCall interprets a model response as a tool invocation: a JSON object
// carrying a "tool" name, with arguments under "args". Anything else is a
// final answer.
func toolCall(response string) (string, map[string]any, bool) {
	outcome := bridge.ParseLoose(response)
	if outcome.Kind == bridge.KindUnparseable {
		return "", nil, false
	}
	name, _ := outcome.Object["tool"].(string)
	if name == "" {
		return "", nil, false
	}
	args, _ := outcome.Object["args"].(map[string]any)
	if args == nil {
		args = map[string]any{}
	}
	return name, args, true
}

// transcript renders memory as the user prompt. The completion client is
// single-turn, so history travels as labeled text.
func (a *Agent) transcript() string {
	var b strings.Builder
	for _, m := range a.memory {
		b.WriteString(strings.ToUpper(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n\n")
	}
	return strings.TrimSuffix(b.String(), "\n\n")
}

// toolCatalog documents the allowed tools for the system prompt, in stable
// name order.
func (a *Agent) toolCatalog() string {
	if len(a.allowed) == 0 {
		return ""
	}

	names := make([]string, 0, len(a.allowed))
	for name := range a.allowed {
		if a.registry.Has(name) {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("You may call tools. To call one, reply with exactly one JSON object: ")
	b.WriteString(`{"tool": "<name>", "args": {...}}. `)
	b.WriteString("The result arrives as a TOOL_RESULT message. ")
	b.WriteString("When you are done, reply with your final answer instead.\n\nAvailable tools:\n")
	for _, name := range names {
		tool := a.registry.Get(name)
		if tool == nil {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s", tool.Name, tool.Description)
		if len(tool.Schema.Required) > 0 {
			fmt.Fprintf(&b, " (required args: %s)", strings.Join(tool.Schema.Required, ", "))
		}
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}
