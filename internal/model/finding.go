package model

// TraceNode is one step in a source-to-sink data flow trace.
type TraceNode struct {
	FilePath        string `json:"file_path"`
	LineNumber      int    `json:"line_number"`
	CodeSnippet     string `json:"code_snippet"`
	StepDescription string `json:"step_description,omitempty"`
}

// Finding is one normalized vulnerability instance produced by a scanner.
// Immutable once produced; ID is a fresh uuid assigned at ingestion, RuleID
// identifies the class of issue and is the cache key.
type Finding struct {
	ID                 string         `json:"id"`
	RuleID             string         `json:"rule_id"`
	Message            string         `json:"message"`
	Severity           string         `json:"severity"`
	Scanner            string         `json:"scanner"`
	FilePath           string         `json:"file_path"`
	StartLine          int            `json:"start_line"`
	EndLine            int            `json:"end_line"`
	CodeSnippet        string         `json:"code_snippet"`
	SurroundingContext string         `json:"surrounding_context"`
	TaintTrace         []TraceNode    `json:"taint_trace,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty"`
}
