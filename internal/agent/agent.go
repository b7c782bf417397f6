// Package agent defines the two LLM-backed roles of the remediation loop.
// The generator proposes a fix for a finding; the evaluator judges a
// proposal and gates it on a scalar confidence.
package agent

import (
	"context"

	"github.com/yourorg/remediation-worker/internal/model"
)

// Generator produces a remediation proposal for one finding. A false
// positive judgment is expressed as IsFalsePositive=true with empty
// CodeChanges. Feedback from a prior rejected attempt and a reference
// proposal from the cache are optional steering inputs.
type Generator interface {
	Generate(ctx context.Context, finding model.Finding, feedback []string, permalink string, reference *model.RemediationProposal) (*model.RemediationProposal, error)
}

// Evaluator reviews a proposal against the finding it claims to fix.
// Verdict.Feedback is non-empty whenever the confidence falls below the
// acceptance threshold.
type Evaluator interface {
	Evaluate(ctx context.Context, finding model.Finding, proposal model.RemediationProposal) (*model.EvaluationVerdict, error)
}
