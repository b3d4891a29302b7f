package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/netsim/internal/ir"
	"github.com/roach88/netsim/internal/multiplicity"
	"github.com/roach88/netsim/internal/netlist"
)

// ValidationIssue is one problem found by validate.
type ValidationIssue struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Stats  netlist.Stats     `json:"stats"`
	Errors []ValidationIssue `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <netlist>",
		Short: "Check a netlist without simulating it",
		Long: `Check a netlist for problems that would make evaluation fail.

<netlist> is a compiled .json document, a .cue file or a CUE package
directory. Three passes run in order:
  1. structural invariants (ids, pin ownership, fan-in, directions)
  2. combinational loops that do not pass through a FLIPFLOP
  3. width conflicts between connected pins

Exit codes:
  0 - netlist is valid
  1 - problems found
  2 - netlist could not be read`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	loaded, err := LoadNetlist(path)
	if err != nil {
		loadErr := asLoadError(err)
		// A CUE source that compiles but breaks invariants is a validation
		// failure, not a read failure.
		if loadErr.Code != ErrCodeInvalidNetlist {
			return outputLoadError(formatter, err)
		}
		issues, _ := loadErr.Details.([]netlist.ValidationError)
		return outputValidationErrors(formatter, ValidationResult{Errors: structuralIssues(issues)})
	}

	result := ValidationResult{Stats: loaded.Document.Stats()}
	result.Errors = validateDocument(loaded.Document, formatter)
	if len(result.Errors) > 0 {
		return outputValidationErrors(formatter, result)
	}

	result.Valid = true
	if formatter.JSON() {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ Netlist valid: %d component(s), %d node(s), %d connection(s)\n",
		result.Stats.Components, result.Stats.Nodes, result.Stats.Connections)
	return nil
}

// validateDocument runs every validation pass. Later passes need a
// structurally sound netlist and are skipped when the first one fails.
func validateDocument(doc netlist.Document, formatter *OutputFormatter) []ValidationIssue {
	formatter.VerboseLog("Checking structural invariants")
	if errs := netlist.Validate(doc); len(errs) > 0 {
		return structuralIssues(errs)
	}
	snap, err := netlist.New(doc)
	if err != nil {
		return []ValidationIssue{{Code: ErrCodeInvalidNetlist, Message: err.Error()}}
	}

	var issues []ValidationIssue
	formatter.VerboseLog("Checking combinational loops")
	for _, w := range netlist.AnalyzeCycles(snap) {
		issues = append(issues, ValidationIssue{
			Code:    string(ir.ErrCodeCombinationalCycle),
			Field:   string(w.Component),
			Message: w.Message,
		})
	}

	formatter.VerboseLog("Checking connection widths")
	for _, err := range multiplicity.New(snap).CheckConnections() {
		issues = append(issues, issueFromError(err))
	}
	return issues
}

func structuralIssues(errs []netlist.ValidationError) []ValidationIssue {
	issues := make([]ValidationIssue, len(errs))
	for i, ve := range errs {
		issues[i] = ValidationIssue{Code: ve.Code, Field: ve.Field, Message: ve.Message}
	}
	return issues
}

// outputValidationErrors outputs all validation issues.
// Validation failures = exit code 1.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.JSON() {
		_ = formatter.encode(CLIResponse{
			Status: "error",
			Data:   result,
			Error:  &CLIError{Code: result.Errors[0].Code, Message: result.Errors[0].Message},
		})
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, issue := range result.Errors {
		if issue.Field != "" {
			fmt.Fprintf(formatter.Writer, "%s\n", issue.Field)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", issue.Code, issue.Message)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
}

// issueFromError reports a modelling error under its ir.ErrorCode.
func issueFromError(err error) ValidationIssue {
	var me *ir.ModelError
	if errors.As(err, &me) {
		field := string(me.ComponentID)
		if me.NodeID != "" {
			field = string(me.NodeID)
		}
		if me.PinID != "" {
			field = me.PinID
		}
		return ValidationIssue{Code: string(me.Code), Field: field, Message: err.Error()}
	}
	return ValidationIssue{Code: ErrCodeGeneric, Message: err.Error()}
}
