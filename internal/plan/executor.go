// Package plan executes fixed step lists for proactive workflows. Unlike the
// turn loop, the model is not in the loop here: steps are decided ahead of
// time and executed directly against the dispatcher.
package plan

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/steward-ai/steward/internal/capability"
	"github.com/steward-ai/steward/pkg/models"
)

// maxStepText bounds each step's contribution to the aggregate summary.
const maxStepText = 500

// Dispatcher is the slice of the dispatch surface the executor needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, input json.RawMessage) *models.CapabilityResult
}

// Executor walks an ordered step list, running consecutive parallel-flagged
// steps as concurrent groups with a barrier between groups.
type Executor struct {
	dispatcher Dispatcher
	logger     *slog.Logger
}

func NewExecutor(dispatcher Dispatcher, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		dispatcher: dispatcher,
		logger:     logger.With("component", "plan.executor"),
	}
}

// Run executes the steps and returns one result per step, in the step's
// original position, plus an aggregate text summary. A parallel group's
// results are committed only once the whole group has finished; no later step
// starts before that.
func (e *Executor) Run(ctx context.Context, steps []models.PlanStep) ([]models.StepResult, string) {
	results := make([]models.StepResult, len(steps))

	for i := 0; i < len(steps); {
		if !steps[i].Parallel {
			results[i] = e.runStep(ctx, steps[i])
			i++
			continue
		}

		end := i
		for end < len(steps) && steps[end].Parallel {
			end++
		}

		var wg sync.WaitGroup
		for k := i; k < end; k++ {
			wg.Add(1)
			go func(k int) {
				defer wg.Done()
				results[k] = e.runStep(ctx, steps[k])
			}(k)
		}
		wg.Wait()
		i = end
	}

	return results, summarize(results)
}

func (e *Executor) runStep(ctx context.Context, step models.PlanStep) models.StepResult {
	if step.Confirm {
		// No confirmation channel exists on this path; record and move on.
		e.logger.Info("skipping step pending confirmation",
			"subagent", step.Subagent, "action", step.Action)
		return models.StepResult{Step: step, Skipped: true}
	}

	name := step.Subagent + capability.Separator + step.Action
	result := e.dispatcher.Dispatch(ctx, name, step.Input)
	if !result.Success {
		e.logger.Warn("plan step failed",
			"subagent", step.Subagent, "action", step.Action, "error", result.Error)
	}
	return models.StepResult{Step: step, Result: result}
}

func summarize(results []models.StepResult) string {
	var b strings.Builder
	for _, r := range results {
		name := r.Step.Subagent + capability.Separator + r.Step.Action
		switch {
		case r.Skipped:
			fmt.Fprintf(&b, "[skipped] %s: awaiting confirmation\n", name)
		case r.Result.Success:
			fmt.Fprintf(&b, "[ok] %s: %s\n", name, truncate(r.Result.Text, maxStepText))
		default:
			fmt.Fprintf(&b, "[failed] %s: %s\n", name, truncate(r.Result.Error, maxStepText))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
