// Package primitive implements the intrinsic components.
//
// Each kind is a Primitive value carrying its pin groups, its width layout
// and its own Eval closure; there is no switch on kind at evaluation time.
// Eval functions are pure: they never retain or mutate their arguments.
//
// Pin groups: a primitive sees its inputs as Groups, one ordered list of
// buses per group name. Fixed pins ("A", "In") are single-member groups;
// the variadic groups of AGGREGATE and DECOMPOSE/BROADCAST list their
// members in pin order.
package primitive
