// Package sandbox evaluates user-authored transformation logic against
// tabular input. The logic is untrusted text; instead of embedding a
// general-purpose language runtime it is parsed into a small whitelisted
// expression language with exactly two capabilities: reading columns of the
// input frame and calling the built-in function set. There is no import,
// filesystem, network, or process access, and every run is bounded by a
// wall-clock timeout and an evaluation step limit.
//
// A program is a sequence of assignments separated by newlines or
// semicolons. It must bind a variable named "result"; that binding, reduced
// per entity, is the computed output series:
//
//	avg = mean(amount)
//	result = sum(amount) / count()
//
// Aggregate functions reduce over the rows of one entity group. An
// expression with no aggregate is evaluated per row and reduced last-wins
// per entity.
package sandbox

import (
	"context"
	"fmt"
	"time"

	"github.com/featureplane/feature-engine/pkg/apperrors"
	"github.com/featureplane/feature-engine/pkg/tabular"
)

// Entry is one entity's computed value.
type Entry struct {
	EntityID string
	Value    any
}

// Series is an ordered collection of per-entity computed values.
type Series []Entry

// Options bounds the execution of one computation run.
type Options struct {
	// Timeout is the wall-clock budget. Zero means no timeout.
	Timeout time.Duration
	// MaxSteps bounds interpreter evaluation steps. Zero means no limit.
	MaxSteps int
}

// Sandbox compiles and runs transformation logic.
type Sandbox struct {
	opts Options
}

// New creates a sandbox with the given execution budget.
func New(opts Options) *Sandbox {
	return &Sandbox{opts: opts}
}

// Compute parses the transformation logic and evaluates it over the frame,
// producing one value per entity. Every failure mode - parse errors,
// unknown columns or functions, runtime faults, budget exhaustion - is
// reported as a single descriptive error wrapping apperrors.ErrComputation;
// no execution fault escapes raw.
func (s *Sandbox) Compute(ctx context.Context, logic string, frame *tabular.Frame) (Series, error) {
	prog, err := parse(logic)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrComputation, err)
	}

	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	ev := &evaluator{
		ctx:      ctx,
		frame:    frame,
		maxSteps: s.opts.MaxSteps,
	}

	series, err := ev.run(prog)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrComputation, err)
	}
	return series, nil
}
