package report

const (
	// Version is the report schema version.
	Version = "1"

	// ToolVersion is the classweave release recorded in reports.
	ToolVersion = "0.1.0"
)
