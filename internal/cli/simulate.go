package cli

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/netsim/internal/engine"
	"github.com/roach88/netsim/internal/ir"
	"github.com/roach88/netsim/internal/netlist"
	"github.com/roach88/netsim/internal/store"
)

// SimulateOptions holds flags for the simulate command.
type SimulateOptions struct {
	*RootOptions
	Component string
	Steps     int
	Inputs    []string // name=bits, repeatable
	Database  string
	RunID     string
}

// StepOutput is one simulated step, ports keyed by name.
type StepOutput struct {
	Step    int               `json:"step"`
	Hash    string            `json:"hash"`
	Outputs map[string]string `json:"outputs"`
}

// SimulationResult is the payload of the simulate command.
type SimulationResult struct {
	Component   ir.ComponentID    `json:"component"`
	Fingerprint string            `json:"fingerprint"`
	RunID       string            `json:"run_id,omitempty"`
	Inputs      map[string]string `json:"inputs"`
	Steps       []StepOutput      `json:"steps"`
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimulateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simulate <netlist>",
		Short: "Evaluate a component for a number of time steps",
		Long: `Evaluate a component of a netlist for --steps time steps.

Every step sees the same inputs; inputs left out read as all zero.
Steps are memoised in a frame cache keyed by the netlist and input
fingerprint. With --db the netlist and every frame are stored as one
run that trace can inspect later.

Exit codes:
  0 - all steps evaluated
  1 - a step failed with a modelling error
  2 - command error (unreadable netlist, bad flags, etc.)

Examples:
  netsim simulate adders.cue --component FullAdder --input A=1 --input B=1
  netsim simulate seq.cue --component Toggle --steps 8 --db ./netsim.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Component, "component", "c", "", "component to simulate (required)")
	_ = cmd.MarkFlagRequired("component")
	cmd.Flags().IntVarP(&opts.Steps, "steps", "n", 1, "number of time steps")
	cmd.Flags().StringArrayVarP(&opts.Inputs, "input", "i", nil, "input value as name=bits (repeatable)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database to record the run")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id to record under (default: new UUIDv7)")

	return cmd
}

func runSimulate(ctx context.Context, opts *SimulateOptions, path string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)

	if opts.Steps < 1 {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidInput, fmt.Sprintf("--steps must be >= 1, got %d", opts.Steps), nil)
	}

	loaded, err := LoadNetlist(path)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	model, err := loaded.Model()
	if err != nil {
		return outputLoadError(formatter, err)
	}
	component, err := loaded.ResolveComponent(model, opts.Component)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	inputs, named, err := parseInputs(model, component, opts.Inputs)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidInput, err.Error(), nil)
	}

	cache := engine.NewCache(component, engine.WithLogger(slog.Default()))
	if _, err := cache.Sync(model, inputs); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	_, simErr := cache.GetOrCompute(opts.Steps - 1)
	frames := cache.Frames()

	result := SimulationResult{
		Component:   component,
		Fingerprint: cache.Fingerprint(),
		Inputs:      named,
		Steps:       make([]StepOutput, 0, len(frames)),
	}
	for _, f := range frames {
		hash, err := f.Hash()
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
		}
		result.Steps = append(result.Steps, StepOutput{
			Step:    f.Step,
			Hash:    hash,
			Outputs: namedOutputs(model, component, f),
		})
	}

	if opts.Database != "" {
		runID, err := recordRun(ctx, opts, model, component, cache.Fingerprint(), frames)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
		}
		result.RunID = runID
		formatter.VerboseLog("Recorded %d frame(s) as run %s", len(frames), runID)
	}

	if simErr != nil {
		return outputSimulationError(formatter, result, simErr)
	}
	if formatter.JSON() {
		return formatter.Success(result)
	}
	outputSimulationText(formatter, result)
	return nil
}

// parseInputs maps name=bits flags onto the component's input pins.
func parseInputs(m *netlist.Snapshot, component ir.ComponentID, flags []string) (engine.Inputs, map[string]string, error) {
	inputs := make(engine.Inputs)
	named := make(map[string]string)
	for _, flag := range flags {
		name, bits, ok := strings.Cut(flag, "=")
		if !ok {
			return nil, nil, fmt.Errorf("input %q must look like name=bits", flag)
		}
		cp, ok := m.ComponentPinByName(component, name)
		if !ok || cp.Type != ir.PinInput {
			return nil, nil, fmt.Errorf("%s has no input %q", component, name)
		}
		bus, err := ir.ParseBus(bits)
		if err != nil {
			return nil, nil, fmt.Errorf("input %s: %w", name, err)
		}
		inputs[cp.ID] = bus
		named[name] = bus.String()
	}
	return inputs, named, nil
}

func namedOutputs(m *netlist.Snapshot, component ir.ComponentID, f *engine.Frame) map[string]string {
	out := make(map[string]string)
	for _, cp := range m.ComponentPinsOf(component) {
		if cp.Type != ir.PinOutput {
			continue
		}
		if v, ok := f.Outputs[cp.ID]; ok {
			out[cp.Name] = v.String()
		}
	}
	return out
}

// recordRun saves the netlist and frames to the database.
func recordRun(ctx context.Context, opts *SimulateOptions, model *netlist.Snapshot, component ir.ComponentID, fingerprint string, frames []*engine.Frame) (string, error) {
	st, err := store.Open(opts.Database)
	if err != nil {
		return "", fmt.Errorf("failed to open database: %w", err)
	}
	defer st.Close()

	runID := opts.RunID
	if runID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return "", fmt.Errorf("generate run id: %w", err)
		}
		runID = id.String()
	}

	if err := st.SaveNetlist(ctx, model.Document()); err != nil {
		return "", err
	}
	if _, err := st.WriteRun(ctx, runID, component, fingerprint); err != nil {
		return "", err
	}
	for _, f := range frames {
		if err := st.WriteFrame(ctx, runID, f); err != nil {
			return "", err
		}
	}
	slog.Debug("frames persisted", "run", runID, "frames", len(frames))
	return runID, nil
}

// outputSimulationError reports the failing step along with the steps
// that did evaluate. Modelling errors = exit code 1.
func outputSimulationError(formatter *OutputFormatter, result SimulationResult, simErr error) error {
	issue := issueFromError(simErr)
	step, _ := engine.FailedStep(simErr)

	if formatter.JSON() {
		_ = formatter.encode(CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    issue.Code,
				Message: simErr.Error(),
				Details: map[string]any{"step": step},
			},
		})
	} else {
		outputSimulationText(formatter, result)
		fmt.Fprintf(formatter.Writer, "✗ Step %d failed\n  %s: %s\n", step, issue.Code, simErr.Error())
	}

	if issue.Code == ErrCodeGeneric {
		return WrapExitError(ExitCommandError, "simulation failed", simErr)
	}
	return WrapExitError(ExitFailure, "simulation failed", simErr)
}

func outputSimulationText(formatter *OutputFormatter, result SimulationResult) {
	w := formatter.Writer
	fmt.Fprintf(w, "Component: %s\n", result.Component)
	if result.RunID != "" {
		fmt.Fprintf(w, "Run: %s\n", result.RunID)
	}
	if len(result.Inputs) > 0 {
		fmt.Fprintf(w, "Inputs: %s\n", formatPorts(result.Inputs))
	}
	fmt.Fprintln(w)
	for _, s := range result.Steps {
		fmt.Fprintf(w, "[%d] %s\n", s.Step, formatPorts(s.Outputs))
	}
}

// formatPorts renders ports as "A=1 B=0" in name order.
func formatPorts(ports map[string]string) string {
	names := make([]string, 0, len(ports))
	for name := range ports {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + "=" + ports[name]
	}
	return strings.Join(parts, " ")
}
