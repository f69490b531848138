package ir

// Version constants for the persisted record format.
const (
	// FormatVersion is the canonical record encoding version stored with snapshots.
	FormatVersion = "1"

	// EngineVersion is the liveview engine version.
	EngineVersion = "0.1.0"
)
