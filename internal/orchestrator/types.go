package orchestrator

import "encoding/json"

// Plan document statuses emitted by the requirement peer.
const (
	StatusPlanReady           = "plan_ready"
	StatusClarificationNeeded = "clarification_needed"
)

// Answer policies encoded into the next clarification round's input.
const (
	// PolicyUseFallbackAssumptions tells the peer to proceed on its own
	// fallback assumptions; sent when there are no questions to answer.
	PolicyUseFallbackAssumptions = "use_fallback_assumptions"

	// PolicyMergeAnswers tells the peer to merge the supplied answers and
	// not ask those questions again.
	PolicyMergeAnswers = "merge_answers_and_do_not_repeat"
)

// Stage report statuses.
const (
	StageComplete = "complete"
	StageFailed   = "failed"
)

// DecisionRollbackOrDegrade is recorded on a stage that exhausted its
// attempts. The loop does not choose between rolling back and degrading;
// the token is for an external policy to act on.
const DecisionRollbackOrDegrade = "rollback_or_degrade"

// Terminal clarification error codes.
const (
	// ErrCodeInvalidRequirementOutput: the peer's output parsed but carried
	// no usable status. A contract violation, not a transient failure.
	ErrCodeInvalidRequirementOutput = "invalid_requirement_output"

	// ErrCodeNoRequirementOutput: the peer never produced a parseable
	// document.
	ErrCodeNoRequirementOutput = "no_requirement_output"
)

// Tool names the loops call through the bridge.
const (
	ToolRequirementAnalyze = "requirement_analyze"
	ToolStageRun           = "stage_run"
)

// Question is one clarification item from the requirement peer. Fallback is
// the assumption substituted when nobody answers.
type Question struct {
	ID       string `json:"id"`
	Text     string `json:"question"`
	Blocking bool   `json:"blocking,omitempty"`
	Fallback string `json:"fallback_assumption,omitempty"`
}

// Answer pairs a question ID with its answer text.
type Answer struct {
	ID     string `json:"id"`
	Answer string `json:"answer"`
}

// AnswerSet is the structured input for a clarification round after the
// first: the answers gathered so far plus the policy the peer should apply.
type AnswerSet struct {
	Answers []Answer `json:"answers"`
	Policy  string   `json:"policy"`
}

// Assumption is a risk the plan proceeds under. Forced convergence mints one
// per unanswered question.
type Assumption struct {
	Text         string `json:"text"`
	RiskLevel    string `json:"risk_level"`
	RollbackHint string `json:"rollback_hint,omitempty"`
}

// PlanDocument is the requirement peer's output, rebuilt each round from its
// latest response. Stages stay loosely typed ([]any) because the peer is a
// language model: malformed entries are skipped at execution time rather
// than failing the whole document.
type PlanDocument struct {
	Status             string       `json:"status"`
	RequirementSummary string       `json:"requirement_summary,omitempty"`
	Questions          []Question   `json:"questions,omitempty"`
	Assumptions        []Assumption `json:"assumptions,omitempty"`
	Stages             []any        `json:"stages,omitempty"`
	PlanMarkdown       string       `json:"plan_markdown,omitempty"`
}

// StageReport is the recorded outcome of one stage.
type StageReport struct {
	Stage    string         `json:"stage"`
	Status   string         `json:"status"`
	Report   map[string]any `json:"report"`
	Decision string         `json:"decision,omitempty"`
}

// Result is the driver's single externally-visible outcome: either an error
// (with the offending raw text when available) or an execution summary.
type Result struct {
	Error            string
	Raw              string
	ExecutionSummary []StageReport
}

// MarshalJSON emits exactly one of the two result shapes: {error, raw?} or
// {execution_summary}.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Error != "" {
		out := map[string]any{"error": r.Error}
		if r.Raw != "" {
			out["raw"] = r.Raw
		}
		return json.Marshal(out)
	}
	summary := r.ExecutionSummary
	if summary == nil {
		summary = []StageReport{}
	}
	return json.Marshal(map[string]any{"execution_summary": summary})
}

// WorkflowError is a terminal, named clarification failure. Raw carries the
// peer's offending output when there is one.
type WorkflowError struct {
	Code string
	Raw  string
}

func (e *WorkflowError) Error() string {
	return e.Code
}
