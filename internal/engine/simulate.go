package engine

import (
	"context"

	"github.com/roach88/netsim/internal/ir"
)

// Simulate evaluates one step per stimulus entry, chaining each frame into
// the next. It stops at the first failing step and returns the frames
// computed before it together with a *StepError.
//
// ctx is checked between steps.
func Simulate(ctx context.Context, eval *Evaluator, component ir.ComponentID, stimulus []Inputs) ([]*Frame, error) {
	frames := make([]*Frame, 0, len(stimulus))
	var prev *Frame
	for i, in := range stimulus {
		if err := ctx.Err(); err != nil {
			return frames, err
		}
		f, err := eval.EvaluateComponent(component, in, prev)
		if err != nil {
			return frames, &StepError{Step: i, Err: err}
		}
		frames = append(frames, f)
		prev = f
	}
	eval.logger.Debug("simulation finished",
		"component", component,
		"steps", len(frames))
	return frames, nil
}
