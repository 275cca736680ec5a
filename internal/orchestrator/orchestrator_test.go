package orchestrator

import (
	"context"
	"encoding/json"
	"testing"

	"planforge/internal/bridge"
	"planforge/internal/tools"
)

func TestRunEndToEnd(t *testing.T) {
	reg := tools.NewRegistry()
	reg.MustRegister(&tools.Tool{
		Name:     ToolRequirementAnalyze,
		Category: tools.CategoryAgent,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			return `{"status":"plan_ready","stages":[{"name":"build","goal":"make it"},{"name":"verify","goal":"check it"}]}`, nil
		},
	})
	reg.MustRegister(&tools.Tool{
		Name:     ToolStageRun,
		Category: tools.CategoryAgent,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			return `{"success":true,"notes":"done"}`, nil
		},
	})

	res := New(bridge.New(reg)).Run(context.Background(), "make and check a thing")

	if res.Error != "" {
		t.Fatalf("unexpected error result: %+v", res)
	}
	if len(res.ExecutionSummary) != 2 {
		t.Fatalf("expected 2 stage reports, got %d", len(res.ExecutionSummary))
	}

	data, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("result not JSON: %v", err)
	}
	if _, ok := decoded["error"]; ok {
		t.Errorf("success result must not carry an error key: %s", data)
	}
	entries, ok := decoded["execution_summary"].([]any)
	if !ok || len(entries) != 2 {
		t.Fatalf("unexpected summary shape: %s", data)
	}
	first, _ := entries[0].(map[string]any)
	if first["stage"] != "build" || first["status"] != StageComplete {
		t.Errorf("unexpected first entry: %v", first)
	}
}

func TestRunSurfacesClarificationError(t *testing.T) {
	reg := tools.NewRegistry()
	reg.MustRegister(&tools.Tool{
		Name:     ToolRequirementAnalyze,
		Category: tools.CategoryAgent,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			return "total nonsense", nil
		},
	})

	res := New(bridge.New(reg)).Run(context.Background(), "do a thing")

	if res.Error != ErrCodeInvalidRequirementOutput {
		t.Fatalf("error = %q, want invalid_requirement_output", res.Error)
	}
	if res.Raw != "total nonsense" {
		t.Errorf("raw = %q", res.Raw)
	}

	data, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("result not JSON: %v", err)
	}
	if decoded["error"] != ErrCodeInvalidRequirementOutput || decoded["raw"] != "total nonsense" {
		t.Errorf("unexpected error shape: %s", data)
	}
	if _, ok := decoded["execution_summary"]; ok {
		t.Errorf("error result must not carry a summary key: %s", data)
	}
}

func TestRunEmptySummaryStillSerializes(t *testing.T) {
	// A peer that keeps answering with a stageless plan exhausts the round
	// budget; convergence then yields a plan with no stages to execute.
	reg := tools.NewRegistry()
	reg.MustRegister(&tools.Tool{
		Name:     ToolRequirementAnalyze,
		Category: tools.CategoryAgent,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			return `{"status":"plan_ready","stages":[]}`, nil
		},
	})

	res := New(bridge.New(reg)).Run(context.Background(), "nothing to do")

	data, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(data) != `{"execution_summary":[]}` {
		t.Errorf("got %s", data)
	}
}
