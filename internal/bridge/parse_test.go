package bridge

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseLoose(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantKind Kind
		wantObj  map[string]any
	}{
		{
			name:     "clean object",
			text:     `{"status":"plan_ready"}`,
			wantKind: KindParsed,
			wantObj:  map[string]any{"status": "plan_ready"},
		},
		{
			name:     "leading whitespace",
			text:     "\n\t {\"a\":1}",
			wantKind: KindParsed,
			wantObj:  map[string]any{"a": float64(1)},
		},
		{
			name:     "object inside prose",
			text:     "Sure, here is the plan:\n```json\n{\"status\":\"plan_ready\",\"stages\":[]}\n```\nHope that helps!",
			wantKind: KindSalvaged,
			wantObj:  map[string]any{"status": "plan_ready", "stages": []any{}},
		},
		{
			name:     "nested braces salvage",
			text:     `prefix {"outer":{"inner":2}} suffix`,
			wantKind: KindSalvaged,
			wantObj:  map[string]any{"outer": map[string]any{"inner": float64(2)}},
		},
		{
			name:     "plain prose",
			text:     "I could not produce a plan.",
			wantKind: KindUnparseable,
		},
		{
			name:     "broken json",
			text:     `{"status": "plan_ready`,
			wantKind: KindUnparseable,
		},
		{
			name:     "json array is not an object",
			text:     `[1,2,3]`,
			wantKind: KindUnparseable,
		},
		{
			name:     "empty string",
			text:     "",
			wantKind: KindUnparseable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseLoose(tt.text)
			if got.Kind != tt.wantKind {
				t.Fatalf("kind = %s, want %s", got.Kind, tt.wantKind)
			}
			if got.Raw != tt.text {
				t.Errorf("Raw should preserve original text")
			}
			if tt.wantObj != nil {
				if diff := cmp.Diff(tt.wantObj, got.Object); diff != "" {
					t.Errorf("object mismatch (-want +got):\n%s", diff)
				}
			}
		})
	}
}

func TestOutcomeDecode(t *testing.T) {
	parsed := ParseLoose(`{"ok":true}`)
	if got := parsed.Decode(); got["ok"] != true {
		t.Errorf("Decode parsed = %v", got)
	}

	raw := ParseLoose("just words")
	got := raw.Decode()
	if got["raw"] != "just words" {
		t.Errorf("Decode unparseable should wrap raw text, got %v", got)
	}
}
