package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/roach88/netsim/internal/compiler"
	"github.com/roach88/netsim/internal/ir"
	"github.com/roach88/netsim/internal/netlist"
)

// LoadResult is a netlist read from a CUE circuit source or a compiled
// JSON document.
type LoadResult struct {
	Document netlist.Document

	// Circuits and Components are set for CUE sources only.
	Circuits   []*compiler.Circuit
	Components map[string]ir.ComponentID

	Source string // "cue" or "json"
}

// LoadError represents an error that occurred while loading a netlist.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
	Details any       // e.g. the []netlist.ValidationError of an invalid netlist
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadNetlist reads path. A .json file is decoded as a netlist document
// without validation; anything else (a .cue file or a directory holding
// a CUE package) is compiled, which validates the result.
func LoadNetlist(path string) (*LoadResult, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("netlist not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing netlist: %v", err)}
	}

	if !info.IsDir() && filepath.Ext(path) == ".json" {
		f, err := os.Open(path)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
		}
		defer f.Close()
		doc, err := netlist.ReadDocument(f)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
		}
		return &LoadResult{Document: doc, Source: "json"}, nil
	}

	res, err := compiler.CompileFile(path)
	if err != nil {
		return nil, convertCompileError(err)
	}
	return &LoadResult{
		Document:   res.Model.Document(),
		Circuits:   res.Circuits,
		Components: res.Components,
		Source:     "cue",
	}, nil
}

// Model validates the document and indexes it for evaluation.
func (r *LoadResult) Model() (*netlist.Snapshot, error) {
	snap, err := netlist.New(r.Document)
	if err != nil {
		return nil, convertCompileError(err)
	}
	return snap, nil
}

// ResolveComponent finds a component by circuit name, component name or id.
func (r *LoadResult) ResolveComponent(m *netlist.Snapshot, ref string) (ir.ComponentID, error) {
	if id, ok := r.Components[ref]; ok {
		return id, nil
	}
	if c, ok := m.Component(ir.ComponentID(ref)); ok {
		return c.ID, nil
	}
	if c, ok := m.ComponentByName(ref); ok {
		return c.ID, nil
	}
	return "", &LoadError{Code: ErrCodeUnknownComponent, Message: fmt.Sprintf("no component %q in netlist", ref)}
}

// convertCompileError converts compiler and validation errors to a LoadError
// with position info.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	var invErr *netlist.InvariantError
	if errors.As(err, &invErr) {
		return &LoadError{
			Code:    ErrCodeInvalidNetlist,
			Message: fmt.Sprintf("netlist violates %d invariant(s)", len(invErr.Errors)),
			Details: invErr.Errors,
		}
	}
	if errors.Is(err, os.ErrNotExist) {
		return &LoadError{Code: ErrCodeNotFound, Message: err.Error()}
	}
	return &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
}

// asLoadError returns err as a *LoadError, wrapping foreign errors.
func asLoadError(err error) *LoadError {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr
	}
	return &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
}

// Error code constants - unified across all CLI commands.
// Modelling errors raised during simulation use their ir.ErrorCode instead.
const (
	ErrCodeGeneric          = "E001" // Generic/unknown error
	ErrCodeScanError        = "E002" // Directory scan error
	ErrCodeLoadFailed       = "E004" // Netlist or CUE load failed
	ErrCodeNotFound         = "E005" // Path not found
	ErrCodeWriteFailed      = "E007" // File write error
	ErrCodeInvalidNetlist   = "E008" // Structural invariants violated
	ErrCodeUnknownComponent = "E009" // --component names nothing
	ErrCodeInvalidInput     = "E010" // Bad --input or --steps
	ErrCodeStore            = "E011" // Database error

	// Circuit compile errors
	ErrCodeCircuitSyntax = "E100" // CUE syntax or evaluation error
	ErrCodeNoCircuits    = "E101" // No circuits defined
	ErrCodeCircuitNode   = "E102" // Bad node definition
	ErrCodeCircuitWire   = "E103" // Bad wire
	ErrCodeCircuitPort   = "E104" // Bad input or output port
	ErrCodeCircuitName   = "E105" // Reserved circuit name or recursive instantiation
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch {
	case field == "", field == "cue":
		return ErrCodeCircuitSyntax
	case field == "circuits":
		return ErrCodeNoCircuits
	case strings.Contains(field, ".nodes"):
		return ErrCodeCircuitNode
	case strings.Contains(field, ".wires"):
		return ErrCodeCircuitWire
	case strings.Contains(field, ".inputs"), strings.Contains(field, ".outputs"):
		return ErrCodeCircuitPort
	case strings.HasPrefix(field, "circuits."):
		return ErrCodeCircuitName
	default:
		return ErrCodeGeneric
	}
}
