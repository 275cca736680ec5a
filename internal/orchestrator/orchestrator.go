// Package orchestrator drives a requirement from raw text to executed plan.
// It runs two bounded loops over the tool-call bridge: a clarification loop
// that negotiates a plan document with the requirement peer, and a stage
// execution loop that delegates each plan stage with bounded retry. Both
// loops terminate on round/attempt budgets, never on wall-clock preemption.
package orchestrator

import (
	"context"
	"errors"

	"planforge/internal/bridge"
	"planforge/internal/logging"
)

// AskUserFunc resolves clarification questions with a human. It may return
// an error (e.g. stdin closed), in which case the loop substitutes each
// question's fallback assumption instead.
type AskUserFunc func(questions []Question) (AnswerSet, error)

// Orchestrator owns one run's collaborators and budgets. Construct per run
// and call Run; Clarify and ExecuteStages are exposed for callers that want
// the plan document before execution starts.
type Orchestrator struct {
	bridge           *bridge.Bridge
	askUser          AskUserFunc
	maxClarifyRounds int
	maxStageAttempts int
	constraints      map[string]any
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithAskUser installs a human-answer callback for clarification questions.
func WithAskUser(fn AskUserFunc) Option {
	return func(o *Orchestrator) { o.askUser = fn }
}

// WithLimits sets the clarification round and stage attempt budgets.
// Non-positive values keep the defaults.
func WithLimits(clarifyRounds, stageAttempts int) Option {
	return func(o *Orchestrator) {
		if clarifyRounds > 0 {
			o.maxClarifyRounds = clarifyRounds
		}
		if stageAttempts > 0 {
			o.maxStageAttempts = stageAttempts
		}
	}
}

// WithConstraints attaches caller-supplied constraints (timeout hints,
// resource caps) passed verbatim to every stage execution call.
func WithConstraints(constraints map[string]any) Option {
	return func(o *Orchestrator) { o.constraints = constraints }
}

// New creates an Orchestrator over the given bridge with default budgets of
// 3 clarification rounds and 3 attempts per stage.
func New(b *bridge.Bridge, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		bridge:           b,
		maxClarifyRounds: 3,
		maxStageAttempts: 3,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run is the single external entry point: clarify, then execute. It never
// returns a Go error; terminal failures become the Result's error shape so
// the caller always has one JSON-serializable outcome.
func (o *Orchestrator) Run(ctx context.Context, requirement string) *Result {
	plan, err := o.Clarify(ctx, requirement)
	if err != nil {
		var werr *WorkflowError
		if errors.As(err, &werr) {
			return &Result{Error: werr.Code, Raw: werr.Raw}
		}
		return &Result{Error: err.Error()}
	}

	logging.Orchestrator("plan ready: %d stage(s), %d assumption(s)", len(plan.Stages), len(plan.Assumptions))
	return &Result{ExecutionSummary: o.ExecuteStages(ctx, plan)}
}
