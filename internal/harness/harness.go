package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/roach88/netsim/internal/compiler"
	"github.com/roach88/netsim/internal/engine"
	"github.com/roach88/netsim/internal/ir"
	"github.com/roach88/netsim/internal/netlist"
	"github.com/roach88/netsim/internal/store"
)

// Harness is the test execution engine for one scenario.
type Harness struct {
	store     *store.Store
	model     *netlist.Snapshot
	component ir.ComponentID
	inputs    map[string]ir.ComponentPinID
	outputs   map[string]ir.ComponentPinID
	logger    *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Compile the circuit and save it to a fresh in-memory store
// 2. Load the netlist back and resolve the component's ports
// 3. Simulate every step, writing frames to the store
// 4. Build the trace from the frames read back
// 5. Check expect clauses and assertions
//
// A modelling error during simulation is not a Go error: it ends the trace
// with a failure event, which a failure assertion can expect.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	compiled, err := compiler.CompileFile(scenario.Circuit)
	if err != nil {
		return nil, fmt.Errorf("failed to compile circuit: %w", err)
	}
	component, ok := compiled.Component(scenario.Component)
	if !ok {
		return nil, fmt.Errorf("circuit %s has no component %q", scenario.Circuit, scenario.Component)
	}

	// Create fresh in-memory SQLite database
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	if err := st.SaveNetlist(ctx, compiled.Model.Document()); err != nil {
		return nil, err
	}
	model, err := st.LoadNetlist(ctx)
	if err != nil {
		return nil, err
	}

	h := &Harness{
		store:     st,
		model:     model,
		component: component,
		inputs:    make(map[string]ir.ComponentPinID),
		outputs:   make(map[string]ir.ComponentPinID),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	for _, cp := range model.ComponentPinsOf(component) {
		if cp.Type == ir.PinInput {
			h.inputs[cp.Name] = cp.ID
		} else {
			h.outputs[cp.Name] = cp.ID
		}
	}

	stimulus, expects, err := h.stimulus(scenario.Steps)
	if err != nil {
		return nil, err
	}

	result := NewResult()
	if err := h.simulate(ctx, scenario.Name, stimulus, result); err != nil {
		return nil, err
	}
	h.checkExpects(expects, result)

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	if ev, failed := result.Failure(); failed && !expectsFailure(scenario.Assertions) {
		result.AddError(fmt.Sprintf("step %d failed: %s", ev.Step, ev.Error.Message))
	}
	return result, nil
}

// stimulus expands the steps into per-step inputs and the expect clause
// that applies to each step index.
func (h *Harness) stimulus(steps []Step) ([]engine.Inputs, map[int]map[string]string, error) {
	var stimulus []engine.Inputs
	expects := make(map[int]map[string]string)
	for i, step := range steps {
		in := make(engine.Inputs, len(step.Inputs))
		for name, bits := range step.Inputs {
			id, ok := h.inputs[name]
			if !ok {
				return nil, nil, fmt.Errorf("steps[%d]: %s has no input %q", i, h.component, name)
			}
			bus, err := ir.ParseBus(bits)
			if err != nil {
				return nil, nil, fmt.Errorf("steps[%d]: input %s: %w", i, name, err)
			}
			in[id] = bus
		}
		for name := range step.Expect {
			if _, ok := h.outputs[name]; !ok {
				return nil, nil, fmt.Errorf("steps[%d]: %s has no output %q", i, h.component, name)
			}
		}

		for r := 0; r < max(step.Repeat, 1); r++ {
			stimulus = append(stimulus, in)
		}
		if len(step.Expect) > 0 {
			expects[len(stimulus)-1] = step.Expect
		}
	}
	return stimulus, expects, nil
}

func (h *Harness) simulate(ctx context.Context, name string, stimulus []engine.Inputs, result *Result) error {
	eval := engine.NewEvaluator(h.model, engine.WithLogger(h.logger))
	frames, simErr := engine.Simulate(ctx, eval, h.component, stimulus)

	var stepErr *engine.StepError
	if simErr != nil && !errors.As(simErr, &stepErr) {
		return fmt.Errorf("simulate %s: %w", h.component, simErr)
	}

	runID := "scenario:" + name
	fp, err := engine.Fingerprint(h.model, h.component, nil)
	if err != nil {
		return err
	}
	if _, err := h.store.WriteRun(ctx, runID, h.component, fp); err != nil {
		return err
	}
	for _, f := range frames {
		if err := h.store.WriteFrame(ctx, runID, f); err != nil {
			return err
		}
	}
	stored, err := h.store.ReadFrames(ctx, runID)
	if err != nil {
		return err
	}

	for _, f := range stored {
		result.Trace = append(result.Trace, TraceEvent{
			Step:    f.Step,
			Inputs:  portValues(h.inputs, f.Inputs),
			Outputs: portValues(h.outputs, f.Outputs),
			Frame:   f,
		})
	}
	if stepErr != nil {
		code := "ERROR"
		var me *ir.ModelError
		if errors.As(stepErr, &me) {
			code = string(me.Code)
		}
		result.Trace = append(result.Trace, TraceEvent{
			Step:  stepErr.Step,
			Error: &TraceError{Code: code, Message: stepErr.Err.Error()},
		})
	}

	h.logger.Info("scenario simulated",
		"scenario", name,
		"component", h.component,
		"steps", len(stored),
		"failed", stepErr != nil)
	return nil
}

func (h *Harness) checkExpects(expects map[int]map[string]string, result *Result) {
	steps := make([]int, 0, len(expects))
	for step := range expects {
		steps = append(steps, step)
	}
	sort.Ints(steps)

	done := result.Steps()
	for _, step := range steps {
		if step >= len(done) {
			result.AddError(fmt.Sprintf("step %d: not evaluated", step))
			continue
		}
		for _, name := range ir.SortedKeys(expects[step]) {
			want := expects[step][name]
			if got := done[step].Outputs[name]; got != want {
				result.AddError(fmt.Sprintf("step %d: output %s = %q, want %q", step, name, got, want))
			}
		}
	}
}

func portValues(ports map[string]ir.ComponentPinID, values map[ir.ComponentPinID]ir.Bus) map[string]string {
	out := make(map[string]string, len(ports))
	for name, id := range ports {
		if v, ok := values[id]; ok {
			out[name] = v.String()
		}
	}
	return out
}

func expectsFailure(assertions []Assertion) bool {
	for _, a := range assertions {
		if a.Type == AssertFailure {
			return true
		}
	}
	return false
}
