// Package task runs mntn operations either for real or as a dry run that
// only lists what would happen.
package task

import (
	"context"
	"fmt"

	"github.com/zjrosen/mntn/internal/presentation"
)

// PlannedOperation is one step a task would perform.
type PlannedOperation struct {
	Description string `json:"description"`
	Target      string `json:"target,omitempty"`
}

// Op is shorthand for a PlannedOperation without a target.
func Op(description string) PlannedOperation {
	return PlannedOperation{Description: description}
}

// OpTo is shorthand for a PlannedOperation with a target.
func OpTo(description, target string) PlannedOperation {
	return PlannedOperation{Description: description, Target: target}
}

// Task is an operation that can describe itself before running.
type Task interface {
	Name() string
	Plan(ctx context.Context) ([]PlannedOperation, error)
	Execute(ctx context.Context) error
}

// Run executes t, or prints its plan when dryRun is set.
func Run(ctx context.Context, p *presentation.Printer, t Task, dryRun bool) error {
	if !dryRun {
		return t.Execute(ctx)
	}

	ops, err := t.Plan(ctx)
	if err != nil {
		return fmt.Errorf("planning %s: %w", t.Name(), err)
	}
	PrintPlan(p, t.Name(), ops)
	return nil
}

// PrintPlan renders a dry-run plan.
func PrintPlan(p *presentation.Printer, name string, ops []PlannedOperation) {
	p.Header("[DRY RUN] " + name)
	if len(ops) == 0 {
		p.Muted("  No operations to perform.")
		return
	}
	p.Plain("  Planned operations:")
	for _, op := range ops {
		if op.Target != "" {
			p.Plain("    - %s -> %s", op.Description, op.Target)
		} else {
			p.Plain("    - %s", op.Description)
		}
	}
	p.Plain("  Total: %d operation(s)", len(ops))
}

// Func adapts plain functions to Task.
type Func struct {
	TaskName string
	PlanFn   func(ctx context.Context) ([]PlannedOperation, error)
	ExecFn   func(ctx context.Context) error
}

func (f Func) Name() string { return f.TaskName }

func (f Func) Plan(ctx context.Context) ([]PlannedOperation, error) {
	if f.PlanFn == nil {
		return nil, nil
	}
	return f.PlanFn(ctx)
}

func (f Func) Execute(ctx context.Context) error { return f.ExecFn(ctx) }
