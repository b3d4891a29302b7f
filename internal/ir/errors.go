package ir

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ModelError represents a modelling error detected while resolving or
// simulating a netlist.
//
// Modelling errors include:
//   - Width mismatch: a primitive received buses of incompatible widths
//   - Width conflict: connected pins resolve to different fixed widths
//   - Missing entity: a referenced id is absent from the model
//   - Combinational cycle: evaluation stalled on a loop without a FLIPFLOP
//   - Recursion limit: a component instantiates itself
//
// A ModelError makes the whole simulation step undefined; callers must not
// substitute defaults for a failed step.
type ModelError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// ComponentID identifies the component being evaluated, if known.
	ComponentID ComponentID

	// NodeID identifies the offending node, if known.
	NodeID NodeID

	// PinID identifies the offending pin, if known.
	PinID string

	// Details contains additional context.
	Details map[string]string
}

// ErrorCode categorizes modelling errors.
type ErrorCode string

const (
	// ErrCodeWidthMismatch indicates a primitive received incompatible buses.
	ErrCodeWidthMismatch ErrorCode = "WIDTH_MISMATCH"

	// ErrCodeWidthConflict indicates connected pins with different fixed widths.
	ErrCodeWidthConflict ErrorCode = "WIDTH_CONFLICT"

	// ErrCodeMissingEntity indicates a referenced id is not in the model.
	ErrCodeMissingEntity ErrorCode = "MISSING_ENTITY"

	// ErrCodeCombinationalCycle indicates an evaluation pass made no progress.
	ErrCodeCombinationalCycle ErrorCode = "COMBINATIONAL_CYCLE"

	// ErrCodeRecursionLimit indicates component nesting exceeded the limit.
	ErrCodeRecursionLimit ErrorCode = "RECURSION_LIMIT"

	// ErrCodeUnsupported indicates a component the engine cannot evaluate.
	ErrCodeUnsupported ErrorCode = "UNSUPPORTED"
)

// Error implements the error interface.
func (e *ModelError) Error() string {
	var where []string
	if e.ComponentID != "" {
		where = append(where, "component="+string(e.ComponentID))
	}
	if e.NodeID != "" {
		where = append(where, "node="+string(e.NodeID))
	}
	if e.PinID != "" {
		where = append(where, "pin="+e.PinID)
	}
	if len(where) == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, strings.Join(where, ", "))
}

func hasCode(err error, code ErrorCode) bool {
	var me *ModelError
	if errors.As(err, &me) {
		return me.Code == code
	}
	return false
}

// IsWidthMismatch returns true if err is a width mismatch error.
// Uses errors.As to handle wrapped errors.
func IsWidthMismatch(err error) bool { return hasCode(err, ErrCodeWidthMismatch) }

// IsWidthConflict returns true if err is a width conflict error.
func IsWidthConflict(err error) bool { return hasCode(err, ErrCodeWidthConflict) }

// IsMissingEntity returns true if err is a missing entity error.
func IsMissingEntity(err error) bool { return hasCode(err, ErrCodeMissingEntity) }

// IsCycleError returns true if err reports a combinational cycle.
func IsCycleError(err error) bool { return hasCode(err, ErrCodeCombinationalCycle) }

// IsRecursionLimit returns true if err reports excessive nesting.
func IsRecursionLimit(err error) bool { return hasCode(err, ErrCodeRecursionLimit) }

// NewWidthMismatch creates a ModelError for incompatible primitive inputs.
func NewWidthMismatch(kind IntrinsicType, format string, args ...any) *ModelError {
	return &ModelError{
		Code:    ErrCodeWidthMismatch,
		Message: fmt.Sprintf(format, args...),
		Details: map[string]string{"primitive": string(kind)},
	}
}

// NewWidthConflict creates a ModelError for two pins with different widths.
func NewWidthConflict(a, b NodePinID, wa, wb int) *ModelError {
	return &ModelError{
		Code:    ErrCodeWidthConflict,
		Message: fmt.Sprintf("connected pins report incompatible widths (%d != %d)", wa, wb),
		PinID:   string(a),
		Details: map[string]string{
			"peer":       string(b),
			"width":      fmt.Sprintf("%d", wa),
			"peer_width": fmt.Sprintf("%d", wb),
		},
	}
}

// NewMissingEntity creates a ModelError for an id absent from the model.
func NewMissingEntity(kind, id string) *ModelError {
	return &ModelError{
		Code:    ErrCodeMissingEntity,
		Message: fmt.Sprintf("%s %q not found", kind, id),
		Details: map[string]string{"kind": kind, "id": id},
	}
}

// NewCycleError creates a ModelError for an evaluation pass that made no
// progress. The stuck node ids are reported in sorted order.
func NewCycleError(component ComponentID, stuck []NodeID) *ModelError {
	ids := make([]string, len(stuck))
	for i, id := range stuck {
		ids[i] = string(id)
	}
	sort.Strings(ids)
	return &ModelError{
		Code:        ErrCodeCombinationalCycle,
		Message:     "evaluation made no progress: combinational cycle without FLIPFLOP",
		ComponentID: component,
		Details:     map[string]string{"stuck_nodes": strings.Join(ids, ",")},
	}
}

// NewRecursionLimit creates a ModelError for nesting deeper than limit.
func NewRecursionLimit(component ComponentID, limit int) *ModelError {
	return &ModelError{
		Code:        ErrCodeRecursionLimit,
		Message:     fmt.Sprintf("component nesting exceeds %d levels", limit),
		ComponentID: component,
		Details:     map[string]string{"max_depth": fmt.Sprintf("%d", limit)},
	}
}
