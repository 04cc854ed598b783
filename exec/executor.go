// Package exec runs installation plans. Steps execute strictly in order
// through a platform shell, each under its own timeout, with combined output
// captured into the installation record. The first failing step stops the
// run; later steps are never invoked.
package exec

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/merlin-labs/merlin/core"
)

// DefaultStepTimeout bounds one plan step when the caller does not set one.
const DefaultStepTimeout = 30 * time.Minute

// DefaultOutputLimit bounds captured output per step.
const DefaultOutputLimit = 64 * 1024

// RecordSink persists installation records as the executor mutates them.
// *manifest.RecordStore satisfies it.
type RecordSink interface {
	Put(ctx context.Context, rec core.InstallationRecord) error
	Get(ctx context.Context, toolName, installPath string) (core.InstallationRecord, bool, error)
}

// Config wires an Executor.
type Config struct {
	Runner      Runner
	Records     RecordSink // optional; nil disables persistence
	StepTimeout time.Duration
	OutputLimit int
	Logger      *slog.Logger
}

// Executor executes resolved plans and maintains installation records.
type Executor struct {
	runner      Runner
	records     RecordSink
	stepTimeout time.Duration
	outputLimit int
	logger      *slog.Logger
	locks       *rootLocks
}

// New builds an Executor from the config, applying defaults for unset limits.
func New(cfg Config) *Executor {
	e := &Executor{
		runner:      cfg.Runner,
		records:     cfg.Records,
		stepTimeout: cfg.StepTimeout,
		outputLimit: cfg.OutputLimit,
		logger:      cfg.Logger,
		locks:       newRootLocks(),
	}
	if e.stepTimeout <= 0 {
		e.stepTimeout = DefaultStepTimeout
	}
	if e.outputLimit <= 0 {
		e.outputLimit = DefaultOutputLimit
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Options control one Execute call.
type Options struct {
	// DryRun prints each step without running it. Every step is recorded
	// with exit code zero.
	DryRun bool
	// ResumeFrom skips steps before the given index. Completed work in the
	// install root is left as is; the caller decides whether that is safe.
	ResumeFrom int
	// AllowInferred permits plans that carry inferred steps. Without it,
	// such plans are refused before any step runs.
	AllowInferred bool
	// Force runs even when the install root already has an installed or
	// in-progress record.
	Force bool
}

// Execute runs the plan and returns the finalized installation record. The
// returned error, when non-nil, carries a core.Error code describing the
// failure class; the record is still populated with what happened.
func (e *Executor) Execute(ctx context.Context, plan core.Plan, opts Options) (core.InstallationRecord, error) {
	rec := core.InstallationRecord{
		ToolName:    plan.ToolName,
		InstallPath: plan.Dir,
		SourceType:  plan.SourceType,
		Status:      core.StatusInProgress,
		FailedStep:  -1,
		StartedAt:   time.Now().UTC(),
	}

	if len(plan.Steps) == 0 {
		return rec, core.Errorf(core.CodeExecution, "plan for %q has no steps", plan.ToolName)
	}
	if plan.HasInferred() && !opts.AllowInferred {
		return rec, core.NewError(core.CodeResolution,
			"plan contains inferred steps and was not confirmed for execution", nil).
			WithDetails(map[string]any{"tool": plan.ToolName})
	}
	if opts.ResumeFrom != 0 && (opts.ResumeFrom < 0 || opts.ResumeFrom >= len(plan.Steps)) {
		return rec, core.Errorf(core.CodeExecution, "resume index %d out of range for %d steps", opts.ResumeFrom, len(plan.Steps))
	}

	if !e.locks.tryAcquire(plan.Dir) {
		return rec, core.Errorf(core.CodeConflict, "another installation is running in %s", plan.Dir)
	}
	defer e.locks.release(plan.Dir)

	if !opts.Force && e.records != nil {
		prev, ok, err := e.records.Get(ctx, plan.ToolName, plan.Dir)
		if err != nil {
			return rec, err
		}
		if ok && (prev.Status == core.StatusInstalled || prev.Status == core.StatusInProgress) {
			return rec, core.NewError(core.CodeConflict,
				fmt.Sprintf("%s already has a %s record at %s", plan.ToolName, prev.Status, plan.Dir), nil).
				WithDetails(map[string]any{"record_id": prev.ID, "status": string(prev.Status)})
		}
	}

	rec.ID = newRecordID()
	if err := e.persist(ctx, rec); err != nil {
		return rec, err
	}

	// The install root must exist before the first step: the shell runs every
	// step with plan.Dir as its working directory, including the clone.
	if !opts.DryRun {
		if err := os.MkdirAll(plan.Dir, 0o755); err != nil {
			return rec, core.NewError(core.CodeExecution,
				fmt.Sprintf("cannot create install directory %s", plan.Dir), err)
		}
	}

	runErr := e.runSteps(ctx, plan, opts, &rec)

	rec.FinishedAt = time.Now().UTC()
	if runErr != nil {
		rec.Status = core.StatusFailed
	} else {
		rec.Status = core.StatusInstalled
	}
	if err := e.persist(ctx, rec); err != nil && runErr == nil {
		runErr = err
	}

	emitInstallObservation(InstallObservation{
		ToolName:   plan.ToolName,
		Status:     rec.Status,
		Steps:      len(rec.StepResults),
		FailedStep: rec.FailedStep,
		DurationMS: rec.FinishedAt.Sub(rec.StartedAt).Milliseconds(),
	})
	return rec, runErr
}

func (e *Executor) runSteps(ctx context.Context, plan core.Plan, opts Options, rec *core.InstallationRecord) error {
	for i, step := range plan.Steps {
		if i < opts.ResumeFrom {
			continue
		}
		// Cancellation is honored at step boundaries only; a running step is
		// bounded by its own timeout.
		if err := ctx.Err(); err != nil {
			rec.FailedStep = i
			return core.NewError(core.CodeExecution, "installation canceled", err).
				WithDetails(map[string]any{"step": i})
		}

		e.logger.Info("executing step",
			"tool", plan.ToolName,
			"step", i,
			"kind", string(step.Kind),
			"command", step.Command,
			"dry_run", opts.DryRun)

		if opts.DryRun {
			rec.StepResults = append(rec.StepResults, core.StepResult{
				Command: step.Command,
				Output:  "dry run: step not executed",
			})
			continue
		}

		result, stepErr := e.runOne(ctx, plan, i, step)
		rec.StepResults = append(rec.StepResults, result)
		if err := e.persist(ctx, *rec); err != nil {
			return err
		}
		if stepErr != nil {
			rec.FailedStep = i
			return stepErr
		}
	}
	return nil
}

func (e *Executor) runOne(ctx context.Context, plan core.Plan, index int, step core.PlanStep) (core.StepResult, error) {
	stepCtx, cancel := context.WithTimeout(ctx, e.stepTimeout)
	defer cancel()

	start := time.Now()
	exitCode, output, runErr := e.runner.Run(stepCtx, step.Command, plan.Dir)
	result := core.StepResult{
		Command:  step.Command,
		ExitCode: exitCode,
		Output:   truncate(output, e.outputLimit),
		Duration: time.Since(start),
		TimedOut: stepCtx.Err() == context.DeadlineExceeded,
	}

	emitStepObservation(StepObservation{
		ToolName:   plan.ToolName,
		StepIndex:  index,
		Kind:       step.Kind,
		Confidence: step.Confidence,
		ExitCode:   exitCode,
		DurationMS: result.Duration.Milliseconds(),
		Success:    runErr == nil && exitCode == 0,
		TimedOut:   result.TimedOut,
	})

	if result.TimedOut {
		return result, core.NewError(core.CodeTimeout,
			fmt.Sprintf("step %d timed out after %s: %s", index, e.stepTimeout, step.Command), nil).
			WithDetails(map[string]any{"step": index, "command": step.Command})
	}
	if runErr != nil {
		return result, core.NewError(core.CodeExecution,
			fmt.Sprintf("step %d failed to run: %s", index, step.Command), runErr).
			WithDetails(map[string]any{"step": index, "command": step.Command})
	}
	if exitCode != 0 {
		return result, core.NewError(core.CodeExecution,
			fmt.Sprintf("step %d exited with code %d: %s", index, exitCode, step.Command), nil).
			WithDetails(map[string]any{"step": index, "exit_code": exitCode, "command": step.Command})
	}
	return result, nil
}

func (e *Executor) persist(ctx context.Context, rec core.InstallationRecord) error {
	if e.records == nil {
		return nil
	}
	return e.records.Put(ctx, rec)
}

func newRecordID() string {
	return uuid.NewString()
}

func truncate(output []byte, limit int) string {
	if len(output) <= limit {
		return string(output)
	}
	return string(output[:limit]) + "\n[output truncated]"
}
