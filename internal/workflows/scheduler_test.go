package workflows

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/steward-ai/steward/internal/config"
	"github.com/steward-ai/steward/internal/observability"
	"github.com/steward-ai/steward/pkg/models"
)

// scriptedRunner returns scripted success/failure per qualified step name.
type scriptedRunner struct {
	failures map[string]bool
	chunks   [][]models.PlanStep
}

func (r *scriptedRunner) Run(_ context.Context, steps []models.PlanStep) ([]models.StepResult, string) {
	r.chunks = append(r.chunks, steps)
	results := make([]models.StepResult, len(steps))
	for i, step := range steps {
		name := step.Subagent + "__" + step.Action
		if step.Confirm {
			results[i] = models.StepResult{Step: step, Skipped: true}
			continue
		}
		if r.failures[name] {
			results[i] = models.StepResult{Step: step, Result: models.Failure("step " + name + " broke")}
			continue
		}
		results[i] = models.StepResult{Step: step, Result: &models.CapabilityResult{Success: true, Text: "ok"}}
	}
	return results, ""
}

func TestFromConfigEncodesInputs(t *testing.T) {
	wfs, err := FromConfig([]config.WorkflowConfig{{
		Name:     "morning-brief",
		Schedule: "0 7 * * *",
		Steps: []config.StepSpec{
			{Subagent: "time", Action: "get", Input: map[string]any{"timezone": "UTC"}},
			{Subagent: "notes", Action: "list", Parallel: true},
		},
	}})
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	if len(wfs) != 1 || len(wfs[0].Steps) != 2 {
		t.Fatalf("wfs = %+v", wfs)
	}
	if string(wfs[0].Steps[0].Input) != `{"timezone":"UTC"}` {
		t.Errorf("input = %s", wfs[0].Steps[0].Input)
	}
	if wfs[0].Steps[0].Input != nil && !wfs[0].Steps[1].Parallel {
		t.Errorf("steps = %+v", wfs[0].Steps)
	}
}

func TestNewSchedulerRejectsBadSchedule(t *testing.T) {
	_, err := NewScheduler(&scriptedRunner{}, []Workflow{
		{Name: "bad", Schedule: "not a cron expr"},
	})
	if err == nil {
		t.Fatal("expected schedule parse error")
	}
}

func TestRunWorkflowHaltsOnFirstFailure(t *testing.T) {
	runner := &scriptedRunner{failures: map[string]bool{"b__run": true}}
	reg := prometheus.NewRegistry()
	s, err := NewScheduler(runner, nil, WithMetrics(observability.NewMetrics(reg)))
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	wf := Workflow{Name: "halting", Steps: []models.PlanStep{
		{Subagent: "a", Action: "run"},
		{Subagent: "b", Action: "run"},
		{Subagent: "c", Action: "run"},
	}}
	results := s.RunWorkflow(wf)

	if len(results) != 2 {
		t.Fatalf("completed steps = %d, want 2 (halt before c)", len(results))
	}
	if len(runner.chunks) != 2 {
		t.Errorf("dispatched chunks = %d, want 2", len(runner.chunks))
	}

	failedRuns := testutil.ToFloat64(
		s.metrics.WorkflowRunCounter.WithLabelValues("halting", "error"))
	if failedRuns != 1 {
		t.Errorf("error run count = %v, want 1", failedRuns)
	}
}

func TestRunWorkflowParallelChunking(t *testing.T) {
	runner := &scriptedRunner{}
	s, err := NewScheduler(runner, nil)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	wf := Workflow{Name: "brief", Steps: []models.PlanStep{
		{Subagent: "a", Action: "run", Parallel: true},
		{Subagent: "b", Action: "run", Parallel: true},
		{Subagent: "c", Action: "run"},
	}}
	results := s.RunWorkflow(wf)

	if len(results) != 3 {
		t.Fatalf("results = %d", len(results))
	}
	if len(runner.chunks) != 2 {
		t.Fatalf("chunks = %d, want 2 (parallel pair, then c)", len(runner.chunks))
	}
	if len(runner.chunks[0]) != 2 || len(runner.chunks[1]) != 1 {
		t.Errorf("chunk sizes = %d, %d", len(runner.chunks[0]), len(runner.chunks[1]))
	}
}

func TestRunWorkflowSkippedStepDoesNotFailRun(t *testing.T) {
	runner := &scriptedRunner{}
	reg := prometheus.NewRegistry()
	s, err := NewScheduler(runner, nil, WithMetrics(observability.NewMetrics(reg)))
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	wf := Workflow{Name: "confirmy", Steps: []models.PlanStep{
		{Subagent: "mail", Action: "send", Confirm: true},
		{Subagent: "time", Action: "get"},
	}}
	results := s.RunWorkflow(wf)

	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	okRuns := testutil.ToFloat64(
		s.metrics.WorkflowRunCounter.WithLabelValues("confirmy", "success"))
	if okRuns != 1 {
		t.Errorf("success run count = %v, want 1", okRuns)
	}
}
