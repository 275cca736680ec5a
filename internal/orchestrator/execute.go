package orchestrator

import (
	"context"
	"fmt"

	"planforge/internal/logging"
)

// ExecuteStages runs every stage of the plan in order, each with up to the
// configured number of attempts, and returns one report per stage in plan
// order. Stages are independent: a stage that exhausts its attempts is
// recorded as failed with an escalation token and the loop moves on.
// Malformed (non-object) stage entries are skipped.
func (o *Orchestrator) ExecuteStages(ctx context.Context, plan *PlanDocument) []StageReport {
	summary := make([]StageReport, 0, len(plan.Stages))

	for i, entry := range plan.Stages {
		stage, ok := entry.(map[string]any)
		if !ok {
			logging.Orchestrator("skipping malformed stage entry %d (%T)", i, entry)
			continue
		}

		name := asString(stage["name"])
		if name == "" {
			name = fmt.Sprintf("stage_%d", i+1)
		}

		args := map[string]any{
			"stage_name": name,
			"goal":       asString(stage["goal"]),
			"tasks":      asStringSlice(stage["tasks"]),
			"validation": asStringSlice(stage["validation"]),
		}
		if len(o.constraints) > 0 {
			args["constraints"] = o.constraints
		}

		var report map[string]any
		succeeded := false
		for attempt := 1; attempt <= o.maxStageAttempts; attempt++ {
			report = o.bridge.CallParsed(ctx, ToolStageRun, args).Decode()
			if truthy(report["success"]) {
				succeeded = true
				break
			}
			logging.Orchestrator("stage %s attempt %d/%d did not succeed", name, attempt, o.maxStageAttempts)
		}

		if succeeded {
			summary = append(summary, StageReport{Stage: name, Status: StageComplete, Report: report})
			continue
		}
		summary = append(summary, StageReport{
			Stage:    name,
			Status:   StageFailed,
			Report:   report,
			Decision: DecisionRollbackOrDegrade,
		})
	}

	return summary
}
