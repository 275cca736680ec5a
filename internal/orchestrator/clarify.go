package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"planforge/internal/logging"
)

// Clarify negotiates a plan with the requirement peer, bounded by the
// clarification round budget. Each round sends the current input (the raw
// requirement first, then encoded answer sets) and interprets the peer's
// loose-parsed response. It returns either a plan_ready document, a forced
// convergence of the last document seen, or a named *WorkflowError.
func (o *Orchestrator) Clarify(ctx context.Context, requirement string) (*PlanDocument, error) {
	input := requirement
	answered := make(map[string]bool)

	var lastSeen *PlanDocument
	var outstanding []Question

	for round := 1; round <= o.maxClarifyRounds; round++ {
		outcome := o.bridge.CallParsed(ctx, ToolRequirementAnalyze, map[string]any{
			"requirement_doc": input,
		})
		doc := documentFromMap(outcome.Decode())

		if doc.Status == "" {
			if strings.TrimSpace(outcome.Raw) == "" {
				return nil, &WorkflowError{Code: ErrCodeNoRequirementOutput}
			}
			return nil, &WorkflowError{Code: ErrCodeInvalidRequirementOutput, Raw: outcome.Raw}
		}
		lastSeen = doc

		switch doc.Status {
		case StatusPlanReady:
			if len(doc.Stages) == 0 {
				// A ready plan carries stages. Treat a stageless one as an
				// unfinished negotiation rather than trusting the peer.
				logging.Orchestrator("round %d: plan_ready without stages, asking peer to finalize", round)
				outstanding = nil
				input = encodeAnswerSet(AnswerSet{Answers: []Answer{}, Policy: PolicyUseFallbackAssumptions})
				continue
			}
			logging.Orchestrator("clarification converged in round %d: %d stage(s)", round, len(doc.Stages))
			return doc, nil

		case StatusClarificationNeeded:
			outstanding = unanswered(doc.Questions, answered)
			if len(outstanding) == 0 {
				// Nothing left to ask a human; the peer must make progress
				// on its own assumptions.
				input = encodeAnswerSet(AnswerSet{Answers: []Answer{}, Policy: PolicyUseFallbackAssumptions})
				continue
			}

			answers := o.resolveAnswers(outstanding)
			for _, a := range answers {
				answered[a.ID] = true
			}
			logging.OrchestratorDebug("round %d: answered %d of %d question(s)", round, len(answers), len(doc.Questions))
			input = encodeAnswerSet(AnswerSet{Answers: answers, Policy: PolicyMergeAnswers})

		default:
			return nil, &WorkflowError{Code: ErrCodeInvalidRequirementOutput, Raw: outcome.Raw}
		}
	}

	if lastSeen == nil {
		return nil, &WorkflowError{Code: ErrCodeNoRequirementOutput}
	}

	logging.Orchestrator("clarification budget exhausted after %d round(s), forcing convergence with %d open question(s)",
		o.maxClarifyRounds, len(outstanding))
	return forceConvergence(lastSeen, outstanding), nil
}

// resolveAnswers gathers answers for the outstanding questions: from the
// human callback when one is configured and succeeds, otherwise from each
// question's own fallback assumption.
func (o *Orchestrator) resolveAnswers(questions []Question) []Answer {
	if o.askUser != nil {
		set, err := o.askUser(questions)
		if err == nil {
			return set.Answers
		}
		logging.Orchestrator("answer callback failed, substituting fallback assumptions: %v", err)
	}

	answers := make([]Answer, 0, len(questions))
	for _, q := range questions {
		answers = append(answers, Answer{ID: q.ID, Answer: fallbackText(q)})
	}
	return answers
}

// forceConvergence synthesizes a plan_ready document from the last one seen,
// converting every still-open question into a high-risk assumption and
// carrying forward whatever stages and narrative the peer last produced.
func forceConvergence(lastSeen *PlanDocument, outstanding []Question) *PlanDocument {
	doc := *lastSeen
	doc.Status = StatusPlanReady
	doc.Questions = nil

	assumptions := append([]Assumption(nil), lastSeen.Assumptions...)
	for _, q := range outstanding {
		assumptions = append(assumptions, Assumption{
			Text:         fallbackText(q),
			RiskLevel:    "high",
			RollbackHint: fmt.Sprintf("revisit once %q is answered", q.Text),
		})
	}
	doc.Assumptions = assumptions
	return &doc
}

// unanswered filters out questions whose IDs were already answered in an
// earlier round, so an ID answered in round k is never re-asked in what the
// loop sends forward.
func unanswered(questions []Question, answered map[string]bool) []Question {
	out := make([]Question, 0, len(questions))
	for _, q := range questions {
		if !answered[q.ID] {
			out = append(out, q)
		}
	}
	return out
}

func fallbackText(q Question) string {
	if q.Fallback != "" {
		return q.Fallback
	}
	return "proceed with the most conservative interpretation"
}

func encodeAnswerSet(set AnswerSet) string {
	data, _ := json.Marshal(set)
	return string(data)
}
