// Package ir provides the netlist entity types shared by every netsim package.
//
// This package contains type definitions and value helpers only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Entities reference each other by typed string ids, never by pointer
//     (arena-style tables; cyclic relationships stay id relationships)
//   - Bus values render as one '0'/'1' character per bit, bus[0] first
//   - Content identity (fingerprints) always goes through MarshalCanonical
//   - All JSON tags use snake_case
package ir
