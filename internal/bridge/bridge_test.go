package bridge

import (
	"context"
	"errors"
	"testing"

	"planforge/internal/tools"
)

func scriptedTool(name, result string, err error) *tools.Tool {
	return &tools.Tool{
		Name:     name,
		Category: tools.CategoryGeneral,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			return result, err
		},
	}
}

func TestBridgeCall(t *testing.T) {
	reg := tools.NewRegistry()
	reg.MustRegister(scriptedTool("greet", `{"ok":true,"msg":"hi"}`, nil))

	b := New(reg)

	got, err := b.Call(context.Background(), "greet", nil)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if got != `{"ok":true,"msg":"hi"}` {
		t.Errorf("got %q", got)
	}
}

func TestBridgeCallUnknownTool(t *testing.T) {
	b := New(tools.NewRegistry())

	_, err := b.Call(context.Background(), "nope", nil)
	if !errors.Is(err, tools.ErrToolNotFound) {
		t.Fatalf("expected ErrToolNotFound, got %v", err)
	}
}

func TestCallParsedNeverErrors(t *testing.T) {
	reg := tools.NewRegistry()
	reg.MustRegister(scriptedTool("broken", "", errors.New("exploded")))
	reg.MustRegister(scriptedTool("prose", "no json here", nil))
	reg.MustRegister(scriptedTool("clean", `{"success":true}`, nil))

	b := New(reg)

	out := b.CallParsed(context.Background(), "broken", nil)
	obj := out.Decode()
	if obj["ok"] != false {
		t.Errorf("tool failure should decode to ok=false, got %v", obj)
	}

	out = b.CallParsed(context.Background(), "missing_tool", nil)
	if out.Decode()["ok"] != false {
		t.Errorf("unknown tool should decode to ok=false, got %v", out.Decode())
	}

	out = b.CallParsed(context.Background(), "prose", nil)
	if out.Kind != KindUnparseable {
		t.Errorf("expected unparseable, got %s", out.Kind)
	}
	if out.Decode()["raw"] != "no json here" {
		t.Errorf("expected raw wrapper, got %v", out.Decode())
	}

	out = b.CallParsed(context.Background(), "clean", nil)
	if out.Kind != KindParsed || out.Object["success"] != true {
		t.Errorf("expected parsed success, got %s %v", out.Kind, out.Object)
	}
}

func TestBridgeHas(t *testing.T) {
	reg := tools.NewRegistry()
	reg.MustRegister(scriptedTool("x", "", nil))
	b := New(reg)

	if !b.Has("x") {
		t.Error("expected Has(x)")
	}
	if b.Has("y") {
		t.Error("did not expect Has(y)")
	}
}
