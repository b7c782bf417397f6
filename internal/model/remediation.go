package model

// CodeChange is one file edit within a remediation proposal.
type CodeChange struct {
	FilePath     string `json:"file_path"`
	StartLine    int    `json:"start_line"`
	EndLine      int    `json:"end_line"`
	OriginalCode string `json:"original_code"`
	NewCode      string `json:"new_code"`
}

// RemediationProposal is a candidate fix for one finding. Produced by the
// generator, refined across retry cycles, finalized with the evaluator's
// confidence. FindingID is always rebound to the finding being remediated,
// even when the proposal came out of the semantic cache.
type RemediationProposal struct {
	FindingID       string       `json:"finding_id"`
	Severity        string       `json:"severity"`
	Summary         string       `json:"summary"`
	Explanation     string       `json:"explanation"`
	CodeChanges     []CodeChange `json:"code_changes"`
	SecurityNotes   []string     `json:"security_notes"`
	IsFalsePositive bool         `json:"is_false_positive"`
	Confidence      float64      `json:"confidence"`
}

// EvaluationVerdict is the evaluator's structured judgment of a proposal.
// Confidence is the single scalar gate; Feedback steers the next generation
// attempt and is non-empty whenever the verdict rejects the proposal.
type EvaluationVerdict struct {
	Completeness    float64  `json:"completeness"`
	Correctness     float64  `json:"correctness"`
	Security        float64  `json:"security"`
	Confidence      float64  `json:"confidence"`
	IsFalsePositive bool     `json:"is_false_positive"`
	Feedback        []string `json:"feedback"`
}
