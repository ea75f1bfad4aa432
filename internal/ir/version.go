package ir

// Version constants stamped on persisted records.
const (
	// HistoryVersion is the history payload schema version.
	HistoryVersion = "1"

	// EngineVersion is the cadence host version.
	EngineVersion = "0.1.0"
)
