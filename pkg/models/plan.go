package models

import "encoding/json"

// PlanStep is one capability call inside a proactive plan. Steps flagged
// Parallel run concurrently with adjacent parallel steps; steps flagged
// Confirm are never executed by the plan runner, only recorded as skipped.
type PlanStep struct {
	Subagent string          `json:"subagent" yaml:"subagent"`
	Action   string          `json:"action" yaml:"action"`
	Input    json.RawMessage `json:"input,omitempty" yaml:"-"`
	Parallel bool            `json:"parallel,omitempty" yaml:"parallel"`
	Confirm  bool            `json:"confirm,omitempty" yaml:"confirm"`
}

// StepResult pairs a plan step with its outcome, in the step's original
// position.
type StepResult struct {
	Step    PlanStep          `json:"step"`
	Result  *CapabilityResult `json:"result,omitempty"`
	Skipped bool              `json:"skipped,omitempty"`
}
