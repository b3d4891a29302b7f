package ir

// Version constants for the netlist schema and engine.
const (
	// SchemaVersion is the netlist document schema version.
	SchemaVersion = "1"

	// EngineVersion is the netsim engine version.
	EngineVersion = "0.1.0"
)
