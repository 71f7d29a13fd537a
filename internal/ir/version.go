package ir

// Version constants for the preparation core.
const (
	// PlanFormatVersion versions the EXPLAIN listing format.
	PlanFormatVersion = "1"

	// EngineVersion is the quarry engine version.
	EngineVersion = "0.1.0"
)
