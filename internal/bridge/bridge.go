// Package bridge routes tool calls from orchestration loops to registered
// tools and interprets the loosely-structured JSON the tools and peer agents
// return.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"

	"planforge/internal/logging"
	"planforge/internal/tools"
)

// Bridge invokes tools by name and normalizes their results. The registry is
// injected so tests can wire scripted tools.
type Bridge struct {
	registry *tools.Registry
}

// New creates a Bridge over the given registry.
func New(registry *tools.Registry) *Bridge {
	return &Bridge{registry: registry}
}

// Call executes a tool and returns its raw text result. Unknown tools and
// execution failures surface as errors.
func (b *Bridge) Call(ctx context.Context, name string, args map[string]any) (string, error) {
	timer := logging.StartTimer(logging.CategoryBridge, "call "+name)
	defer timer.Stop()

	result, err := b.registry.Execute(ctx, name, args)
	if err != nil {
		logging.Bridge("call %s failed: %v", name, err)
		return "", fmt.Errorf("tool %s: %w", name, err)
	}
	return result.Result, nil
}

// CallParsed executes a tool and loose-parses its result. It never returns
// an error: tool failures become an Outcome whose object carries ok=false
// and the failure text, so loop code always has something interpretable.
func (b *Bridge) CallParsed(ctx context.Context, name string, args map[string]any) Outcome {
	text, err := b.Call(ctx, name, args)
	if err != nil {
		obj := map[string]any{"ok": false, "error": err.Error()}
		raw, _ := json.Marshal(obj)
		return Outcome{Kind: KindParsed, Object: obj, Raw: string(raw)}
	}

	outcome := ParseLoose(text)
	logging.BridgeDebug("call %s: %s (%d bytes)", name, outcome.Kind, len(text))
	return outcome
}

// Has reports whether a tool is registered.
func (b *Bridge) Has(name string) bool {
	return b.registry.Has(name)
}
