package cli

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/netsim/internal/netlist"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult is the json payload of the compile command.
type CompilationResult struct {
	Circuits []string          `json:"circuits"`
	Stats    netlist.Stats     `json:"stats"`
	Output   string            `json:"output,omitempty"`
	Document *netlist.Document `json:"document,omitempty"` // omitted when written to --output
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <circuit>",
		Short: "Compile CUE circuits to a netlist document",
		Long: `Compile CUE circuit definitions to a JSON netlist document.

<circuit> is a .cue file or a directory holding one CUE package. The
document lists every component, pin, node and connection in
registration order and can be passed to validate and simulate.

Without --output the document is written to stdout.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	loaded, err := LoadNetlist(path)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	if loaded.Source != "cue" {
		return formatter.Fail(ExitCommandError, ErrCodeLoadFailed, fmt.Sprintf("%s is already a netlist document", path), nil)
	}

	names := make([]string, len(loaded.Circuits))
	for i, c := range loaded.Circuits {
		names[i] = c.Name
		formatter.VerboseLog("Compiled circuit: %s", c.Name)
	}
	result := CompilationResult{
		Circuits: names,
		Stats:    loaded.Document.Stats(),
		Output:   opts.Output,
	}

	if opts.Output != "" {
		if err := writeDocument(loaded.Document, opts.Output); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	} else {
		if !formatter.JSON() {
			return loaded.Document.Write(formatter.Writer)
		}
		result.Document = &loaded.Document
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Compiled %d circuit(s): %d component(s), %d node(s), %d pin(s), %d connection(s)\n",
		len(names), result.Stats.Components, result.Stats.Nodes, result.Stats.Pins, result.Stats.Connections)
	fmt.Fprintf(formatter.Writer, "Wrote netlist to %s\n", opts.Output)
	return nil
}

// outputLoadError reports a LoadError with its CUE position.
// Load errors are command-level errors (exit code 2).
func outputLoadError(formatter *OutputFormatter, err error) error {
	loadErr := asLoadError(err)
	if !formatter.JSON() && loadErr.Pos.IsValid() {
		fmt.Fprintf(formatter.Writer, "%s:%d:%d\n",
			loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column())
	}
	return formatter.Fail(ExitCommandError, loadErr.Code, loadErr.Message, loadErr.Details)
}

// writeDocument writes the netlist document to a file as indented JSON.
func writeDocument(doc netlist.Document, filename string) error {
	var buf bytes.Buffer
	if err := doc.Write(&buf); err != nil {
		return err
	}
	if err := os.WriteFile(filename, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
