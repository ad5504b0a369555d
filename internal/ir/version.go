package ir

// Version constants recorded alongside journaled cycles.
const (
	// FormatVersion is the version of the canonical message/view encoding.
	FormatVersion = "1"

	// RuntimeVersion is the weft runtime version.
	RuntimeVersion = "0.1.0"
)
