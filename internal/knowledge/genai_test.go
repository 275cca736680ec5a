package knowledge

import (
	"context"
	"testing"
)

// The store only sees the Engine interface plus the optional query-side
// method; both must keep holding for the GenAI adapter.
var (
	_ Engine = (*GenAIEngine)(nil)
	_ interface {
		EmbedQuery(ctx context.Context, text string) ([]float32, error)
	} = (*GenAIEngine)(nil)
)

func TestNewGenAIEngineRequiresKey(t *testing.T) {
	if _, err := NewGenAIEngine("", "gemini-embedding-001"); err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestGenAIEngineName(t *testing.T) {
	e := &GenAIEngine{model: "gemini-embedding-001"}
	if e.Name() != "genai:gemini-embedding-001" {
		t.Errorf("Name() = %q", e.Name())
	}
	if e.Dimensions() != genAIDimensions {
		t.Errorf("Dimensions() = %d, want %d", e.Dimensions(), genAIDimensions)
	}
}
