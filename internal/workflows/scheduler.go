// Package workflows schedules configured plans on cron expressions and runs
// them through the plan executor.
package workflows

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/steward-ai/steward/internal/config"
	"github.com/steward-ai/steward/internal/observability"
	"github.com/steward-ai/steward/pkg/models"
)

var defaultRunTimeout = 5 * time.Minute

// Runner is the slice of the plan executor the scheduler needs.
type Runner interface {
	Run(ctx context.Context, steps []models.PlanStep) ([]models.StepResult, string)
}

// Workflow is a named step list bound to a cron schedule.
type Workflow struct {
	Name     string
	Schedule string
	Steps    []models.PlanStep
}

// FromConfig converts configured workflows into runnable ones. Step inputs
// are re-encoded as JSON; a step whose input cannot be encoded fails the
// whole conversion since the workflow could never run correctly.
func FromConfig(cfgs []config.WorkflowConfig) ([]Workflow, error) {
	workflows := make([]Workflow, 0, len(cfgs))
	for _, cfg := range cfgs {
		wf := Workflow{Name: cfg.Name, Schedule: cfg.Schedule}
		for _, spec := range cfg.Steps {
			step := models.PlanStep{
				Subagent: spec.Subagent,
				Action:   spec.Action,
				Parallel: spec.Parallel,
				Confirm:  spec.Confirm,
			}
			if len(spec.Input) > 0 {
				input, err := json.Marshal(spec.Input)
				if err != nil {
					return nil, fmt.Errorf("workflow %s step %s__%s: encode input: %w",
						cfg.Name, spec.Subagent, spec.Action, err)
				}
				step.Input = input
			}
			wf.Steps = append(wf.Steps, step)
		}
		workflows = append(workflows, wf)
	}
	return workflows, nil
}

// Scheduler owns the cron runner and the run-level failure policy: a run
// halts at its first failing step and the whole run is marked failed.
type Scheduler struct {
	cron       *cron.Cron
	runner     Runner
	logger     *slog.Logger
	metrics    *observability.Metrics
	runTimeout time.Duration
}

// Option configures the scheduler.
type Option func(*Scheduler)

// WithLogger configures the scheduler logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger.With("component", "workflows")
		}
	}
}

// WithMetrics configures run counters.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// WithRunTimeout bounds a single workflow run.
func WithRunTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.runTimeout = d
		}
	}
}

// NewScheduler registers every workflow with the cron runner. An invalid
// schedule expression fails construction.
func NewScheduler(runner Runner, workflows []Workflow, opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		cron:       cron.New(),
		runner:     runner,
		logger:     slog.Default().With("component", "workflows"),
		runTimeout: defaultRunTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, wf := range workflows {
		wf := wf
		if _, err := s.cron.AddFunc(wf.Schedule, func() { s.RunWorkflow(wf) }); err != nil {
			return nil, fmt.Errorf("workflow %s: invalid schedule %q: %w", wf.Name, wf.Schedule, err)
		}
	}
	return s, nil
}

// Start begins scheduling in a background goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling and waits for any in-flight run to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunWorkflow executes one workflow immediately. Steps run in chunks that
// mirror the executor's grouping (one sequential step, or a run of
// consecutive parallel steps); the run stops at the first chunk containing a
// failed step.
func (s *Scheduler) RunWorkflow(wf Workflow) []models.StepResult {
	ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
	defer cancel()

	start := time.Now()
	runID := uuid.NewString()
	s.logger.Info("workflow run started",
		"workflow", wf.Name, "run_id", runID, "steps", len(wf.Steps))

	var results []models.StepResult
	failed := false

chunks:
	for i := 0; i < len(wf.Steps); {
		end := i + 1
		if wf.Steps[i].Parallel {
			for end < len(wf.Steps) && wf.Steps[end].Parallel {
				end++
			}
		}

		chunkResults, _ := s.runner.Run(ctx, wf.Steps[i:end])
		results = append(results, chunkResults...)
		for _, r := range chunkResults {
			if !r.Skipped && !r.Result.Success {
				s.logger.Error("workflow halted on failed step",
					"workflow", wf.Name,
					"subagent", r.Step.Subagent,
					"action", r.Step.Action,
					"error", r.Result.Error)
				failed = true
				break chunks
			}
		}
		i = end
	}

	status := "success"
	if failed {
		status = "error"
	}
	if s.metrics != nil {
		s.metrics.WorkflowRunCounter.WithLabelValues(wf.Name, status).Inc()
	}
	s.logger.Info("workflow run finished",
		"workflow", wf.Name,
		"run_id", runID,
		"status", status,
		"completed_steps", len(results),
		"duration", time.Since(start))
	return results
}
