// Package policy decides whether a completed stage needs human
// confirmation before the pipeline advances.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// Decisions returned by the confirmation policy.
const (
	DecisionRequireConfirmation = "require_confirmation"
	DecisionAutoConfirm         = "auto_confirm"
)

// Input is the policy evaluation input for one completed stage.
type Input struct {
	Stage       string  `json:"stage"`
	AutoConfirm bool    `json:"auto_confirm"`
	Confidence  float64 `json:"confidence,omitempty"`
}

// Engine is the OPA confirmation policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given rego content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.confirmation.decision"),
		rego.Module("confirmation.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Evaluate returns the confirmation decision for a completed stage.
// Unknown or missing results fall back to requiring confirmation.
func (e *Engine) Evaluate(ctx context.Context, input Input) (string, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return DecisionRequireConfirmation, nil
	}
	if s, ok := results[0].Expressions[0].Value.(string); ok {
		if s == DecisionAutoConfirm {
			return DecisionAutoConfirm, nil
		}
		return DecisionRequireConfirmation, nil
	}
	return DecisionRequireConfirmation, nil
}

// DefaultPolicy pauses at every stage boundary unless the deployment
// opts in to straight-through processing.
const DefaultPolicy = `
package confirmation

import rego.v1

default decision := "require_confirmation"

decision := "auto_confirm" if {
	input.auto_confirm == true
}
`
