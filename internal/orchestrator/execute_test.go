package orchestrator

import (
	"context"
	"testing"

	"planforge/internal/bridge"
	"planforge/internal/tools"
)

// stagePeer scripts the stage_run tool with per-stage behavior.
type stagePeer struct {
	// respond maps stage name to a function of the attempt number (1-based,
	// counted per stage) returning the tool's text response.
	respond map[string]func(attempt int) string
	calls   map[string]int
}

func (p *stagePeer) tool() *tools.Tool {
	p.calls = make(map[string]int)
	return &tools.Tool{
		Name:     ToolStageRun,
		Category: tools.CategoryAgent,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			name, _ := args["stage_name"].(string)
			p.calls[name]++
			if fn, ok := p.respond[name]; ok {
				return fn(p.calls[name]), nil
			}
			return `{"success":true}`, nil
		},
	}
}

func newExecutor(t *testing.T, peer *stagePeer, opts ...Option) *Orchestrator {
	t.Helper()
	reg := tools.NewRegistry()
	reg.MustRegister(peer.tool())
	return New(bridge.New(reg), opts...)
}

func stagePlan(names ...string) *PlanDocument {
	stages := make([]any, 0, len(names))
	for _, n := range names {
		stages = append(stages, map[string]any{
			"name":       n,
			"goal":       "do " + n,
			"tasks":      []any{"task one"},
			"validation": []any{"check it"},
		})
	}
	return &PlanDocument{Status: StatusPlanReady, Stages: stages}
}

func TestStageIndependence(t *testing.T) {
	peer := &stagePeer{respond: map[string]func(int) string{
		"second": func(int) string { return `{"success":false,"report":"broke"}` },
	}}
	o := newExecutor(t, peer, WithLimits(0, 2))

	summary := o.ExecuteStages(context.Background(), stagePlan("first", "second", "third"))

	if len(summary) != 3 {
		t.Fatalf("expected 3 reports, got %d", len(summary))
	}
	if summary[0].Status != StageComplete || summary[2].Status != StageComplete {
		t.Errorf("stages 1 and 3 should complete: %+v", summary)
	}
	if summary[1].Status != StageFailed {
		t.Errorf("stage 2 should fail: %+v", summary[1])
	}
	if summary[1].Decision != DecisionRollbackOrDegrade {
		t.Errorf("failed stage decision = %q, want rollback_or_degrade", summary[1].Decision)
	}
	if summary[0].Decision != "" || summary[2].Decision != "" {
		t.Errorf("completed stages must carry no decision token")
	}
	if peer.calls["second"] != 2 {
		t.Errorf("failing stage should be attempted twice, got %d", peer.calls["second"])
	}
	if peer.calls["first"] != 1 || peer.calls["third"] != 1 {
		t.Errorf("succeeding stages should be attempted once: %v", peer.calls)
	}
}

func TestStageRetryThenSuccess(t *testing.T) {
	peer := &stagePeer{respond: map[string]func(int) string{
		"flaky": func(attempt int) string {
			if attempt == 1 {
				return `{"success":false}`
			}
			return `{"success":true,"report":"worked on retry"}`
		},
	}}
	o := newExecutor(t, peer, WithLimits(0, 3))

	summary := o.ExecuteStages(context.Background(), stagePlan("flaky"))

	if len(summary) != 1 || summary[0].Status != StageComplete {
		t.Fatalf("expected completion after retry, got %+v", summary)
	}
	if peer.calls["flaky"] != 2 {
		t.Errorf("expected 2 attempts, got %d", peer.calls["flaky"])
	}
}

func TestStageSkipsMalformedEntries(t *testing.T) {
	peer := &stagePeer{}
	o := newExecutor(t, peer)

	plan := &PlanDocument{
		Status: StatusPlanReady,
		Stages: []any{
			map[string]any{"name": "real"},
			"not a stage",
			42.0,
			map[string]any{"name": "also real"},
		},
	}

	summary := o.ExecuteStages(context.Background(), plan)

	if len(summary) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(summary))
	}
	if summary[0].Stage != "real" || summary[1].Stage != "also real" {
		t.Errorf("unexpected stage order: %+v", summary)
	}
}

func TestStageUnparseableReportFails(t *testing.T) {
	peer := &stagePeer{respond: map[string]func(int) string{
		"noisy": func(int) string { return "the run went fine I think" },
	}}
	o := newExecutor(t, peer, WithLimits(0, 2))

	summary := o.ExecuteStages(context.Background(), stagePlan("noisy"))

	if len(summary) != 1 || summary[0].Status != StageFailed {
		t.Fatalf("unparseable report must count as failure, got %+v", summary)
	}
	if summary[0].Report["raw"] != "the run went fine I think" {
		t.Errorf("raw text should be preserved in the report: %v", summary[0].Report)
	}
}

func TestStageUnnamedGetsPositionalName(t *testing.T) {
	peer := &stagePeer{}
	o := newExecutor(t, peer)

	summary := o.ExecuteStages(context.Background(), &PlanDocument{
		Status: StatusPlanReady,
		Stages: []any{map[string]any{"goal": "anonymous work"}},
	})

	if len(summary) != 1 || summary[0].Stage != "stage_1" {
		t.Errorf("expected positional fallback name, got %+v", summary)
	}
}

func TestStageConstraintsForwarded(t *testing.T) {
	var got map[string]any
	reg := tools.NewRegistry()
	reg.MustRegister(&tools.Tool{
		Name:     ToolStageRun,
		Category: tools.CategoryAgent,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			got, _ = args["constraints"].(map[string]any)
			return `{"success":true}`, nil
		},
	})
	o := New(bridge.New(reg), WithConstraints(map[string]any{"timeout_hint": "5m"}))

	o.ExecuteStages(context.Background(), stagePlan("one"))

	if got == nil || got["timeout_hint"] != "5m" {
		t.Errorf("constraints not forwarded, got %v", got)
	}
}
