package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/netsim/internal/engine"
	"github.com/roach88/netsim/internal/ir"
	"github.com/roach88/netsim/internal/netlist"
	"github.com/roach88/netsim/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string
	Hash     string
	Step     int // -1 for every step
	Pin      string
}

// TraceStep is one stored frame, ports keyed by name.
type TraceStep struct {
	Step     int               `json:"step"`
	Hash     string            `json:"hash"`
	Inputs   map[string]string `json:"inputs"`
	Outputs  map[string]string `json:"outputs"`
	PinValue string            `json:"pin_value,omitempty"`
}

// TraceResult holds the frames of one run.
type TraceResult struct {
	Run   store.Run   `json:"run"`
	Steps []TraceStep `json:"steps"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect recorded simulation runs",
		Long: `Inspect simulation runs recorded by simulate --db.

Without --run, lists every run in recording order. With --run, prints
the stored frames of that run; --step narrows to one step and --pin
also prints the value of an internal NodePin. --hash looks up a single
frame by its content hash.

Every frame's hash is verified when it is read back.

Examples:
  netsim trace --db ./netsim.db
  netsim trace --db ./netsim.db --run 0190f3c2-...
  netsim trace --db ./netsim.db --run 0190f3c2-... --step 3 --pin FullAdder/any.A
  netsim trace --db ./netsim.db --hash 9f2c... --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id to show")
	cmd.Flags().StringVar(&opts.Hash, "hash", "", "frame hash to look up")
	cmd.Flags().IntVar(&opts.Step, "step", -1, "only show this step")
	cmd.Flags().StringVar(&opts.Pin, "pin", "", "NodePin id to read from each frame")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := store.Open(opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("failed to open database: %v", err), nil)
	}
	defer st.Close()

	switch {
	case opts.Hash != "":
		return traceHash(ctx, st, opts, formatter)
	case opts.RunID != "":
		return traceRun(ctx, st, opts, formatter)
	default:
		return listRuns(ctx, st, formatter)
	}
}

func listRuns(ctx context.Context, st *store.Store, formatter *OutputFormatter) error {
	runs, err := st.ListRuns(ctx)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}
	if formatter.JSON() {
		return formatter.Success(runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(formatter.Writer, "No runs recorded.")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(formatter.Writer, "%d  %s  %s  %d step(s)\n", r.Seq, r.ID, r.ComponentID, r.Steps)
	}
	return nil
}

func traceRun(ctx context.Context, st *store.Store, opts *TraceOptions, formatter *OutputFormatter) error {
	run, err := st.ReadRun(ctx, opts.RunID)
	if errors.Is(err, sql.ErrNoRows) {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("no run %q", opts.RunID), nil)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}
	frames, err := st.ReadFrames(ctx, opts.RunID)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}
	model, err := st.LoadNetlist(ctx)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}

	result := TraceResult{Run: run, Steps: []TraceStep{}}
	for _, f := range frames {
		if opts.Step >= 0 && f.Step != opts.Step {
			continue
		}
		ts, err := traceStep(model, f, opts.Pin)
		if err != nil {
			return formatter.Fail(ExitFailure, ErrCodeGeneric, err.Error(), nil)
		}
		result.Steps = append(result.Steps, ts)
	}
	if opts.Step >= 0 && len(result.Steps) == 0 {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("run %s has no step %d", run.ID, opts.Step), nil)
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	w := formatter.Writer
	fmt.Fprintf(w, "Run %s (%s), %d step(s)\n", run.ID, run.ComponentID, run.Steps)
	fmt.Fprintf(w, "Fingerprint: %s\n\n", run.Fingerprint)
	for _, s := range result.Steps {
		fmt.Fprintf(w, "[%d] %s -> %s\n", s.Step, formatPorts(s.Inputs), formatPorts(s.Outputs))
		if opts.Pin != "" {
			fmt.Fprintf(w, "    %s = %s\n", opts.Pin, s.PinValue)
		}
	}
	return nil
}

func traceHash(ctx context.Context, st *store.Store, opts *TraceOptions, formatter *OutputFormatter) error {
	runID, frame, err := st.FrameByHash(ctx, opts.Hash)
	if errors.Is(err, sql.ErrNoRows) {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("no frame with hash %s", opts.Hash), nil)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}
	data, err := frame.MarshalCanonical()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}

	if formatter.JSON() {
		return formatter.Success(map[string]any{"run_id": runID, "step": frame.Step, "frame": frame})
	}
	fmt.Fprintf(formatter.Writer, "Run %s, step %d\n%s\n", runID, frame.Step, data)
	return nil
}

func traceStep(m *netlist.Snapshot, f *engine.Frame, pin string) (TraceStep, error) {
	hash, err := f.Hash()
	if err != nil {
		return TraceStep{}, err
	}
	ts := TraceStep{
		Step:    f.Step,
		Hash:    hash,
		Inputs:  make(map[string]string),
		Outputs: make(map[string]string),
	}
	for _, cp := range m.ComponentPinsOf(f.ComponentID) {
		v, ok := engine.GetComponentPinValue(f, cp.ID)
		if !ok {
			continue
		}
		if cp.Type == ir.PinInput {
			ts.Inputs[cp.Name] = v.String()
		} else {
			ts.Outputs[cp.Name] = v.String()
		}
	}
	if pin != "" {
		v, ok := engine.GetNodePinValue(f, ir.NodePinID(pin))
		if !ok {
			return TraceStep{}, fmt.Errorf("step %d: no pin %s in frame", f.Step, pin)
		}
		ts.PinValue = v.String()
	}
	return ts, nil
}
