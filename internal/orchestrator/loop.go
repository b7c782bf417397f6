package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/yourorg/remediation-worker/internal/cache"
	"github.com/yourorg/remediation-worker/internal/model"
	"github.com/yourorg/remediation-worker/internal/source"
)

// attemptState is the retry loop's fold state. The reference proposal is
// usable on the first generation attempt only; feedback accumulates from the
// most recent rejection.
type attemptState struct {
	feedback  []string
	reference *model.RemediationProposal
}

// remediate runs the agentic loop for one finding: cache lookup, confidence
// gated generation/evaluation with bounded retries, and write-back of
// accepted fixes. Returns nil when no attempt clears the confidence gate;
// the finding then stays unresolved and eligible for a future retry.
func (o *Orchestrator) remediate(ctx context.Context, finding model.Finding, repoRef, gitRef, scanID string) *model.RemediationProposal {
	permalink := source.Permalink(repoRef, gitRef, finding.FilePath, finding.StartLine, finding.EndLine)
	query := fmt.Sprintf("%s %s\n%s", finding.RuleID, finding.Message, finding.CodeSnippet)

	state := o.consultCache(ctx, query, finding)
	if state.reference != nil && state.accepted {
		// Cache short-circuit: the stored proposal holds for this finding
		// as-is, no generation call needed.
		accepted := *state.reference
		accepted.FindingID = finding.ID
		return &accepted
	}

	loop := attemptState{feedback: state.feedback, reference: state.reference}
	for attempt := 0; attempt <= o.cfg.MaxRetries; attempt++ {
		proposal, verdict, err := o.generateAndEvaluate(ctx, finding, loop, permalink)
		// The reference is only ever offered to the first attempt.
		loop.reference = nil
		if err != nil {
			o.logger.Error("remediation attempt failed",
				zap.String("finding_id", finding.ID),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			continue
		}

		o.logger.Info("evaluation cycle",
			zap.String("finding_id", finding.ID),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", o.cfg.MaxRetries+1),
			zap.Float64("confidence", verdict.Confidence),
		)

		if verdict.Confidence >= o.cfg.ConfidenceThreshold {
			proposal.Confidence = verdict.Confidence
			proposal.IsFalsePositive = verdict.IsFalsePositive
			o.learn(ctx, finding, proposal, scanID)
			proposal.FindingID = finding.ID
			return proposal
		}
		loop.feedback = verdict.Feedback
	}
	return nil
}

// cacheConsult is the outcome of the cache lookup phase.
type cacheConsult struct {
	reference *model.RemediationProposal
	feedback  []string
	accepted  bool
}

// consultCache looks up the nearest past fix for the finding's scanner and
// evaluates it against the current finding. Cache or evaluator failures
// degrade to a miss; generation then proceeds unassisted.
func (o *Orchestrator) consultCache(ctx context.Context, query string, finding model.Finding) cacheConsult {
	hits, err := o.cache.Search(ctx, query, 1, finding.Scanner)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			o.logger.Error("cache search failed, treating as miss",
				zap.String("finding_id", finding.ID), zap.Error(err))
		}
		return cacheConsult{}
	}

	hit := hits[0]
	o.logger.Info("cache hit",
		zap.String("rule_id", hit.RuleID),
		zap.Float64("score", hit.Score),
	)

	var cached model.RemediationProposal
	if err := json.Unmarshal([]byte(hit.ProposalJSON), &cached); err != nil {
		o.logger.Error("cached proposal undecodable, treating as miss", zap.Error(err))
		return cacheConsult{}
	}

	verdict, err := o.evaluator.Evaluate(ctx, finding, cached)
	if err != nil {
		o.logger.Error("cache hit evaluation failed, treating as miss", zap.Error(err))
		return cacheConsult{}
	}
	if verdict.Confidence >= o.cfg.ConfidenceThreshold {
		return cacheConsult{reference: &cached, accepted: true}
	}

	feedback := make([]string, 0, len(verdict.Feedback)+1)
	feedback = append(feedback, "A similar past fix was found but rejected for this specific context.")
	feedback = append(feedback, verdict.Feedback...)
	return cacheConsult{reference: &cached, feedback: feedback}
}

// generateAndEvaluate runs one generate/evaluate cycle. A failure in either
// call consumes the attempt.
func (o *Orchestrator) generateAndEvaluate(ctx context.Context, finding model.Finding, state attemptState, permalink string) (*model.RemediationProposal, *model.EvaluationVerdict, error) {
	proposal, err := o.generator.Generate(ctx, finding, state.feedback, permalink, state.reference)
	if err != nil {
		return nil, nil, fmt.Errorf("generate: %w", err)
	}
	verdict, err := o.evaluator.Evaluate(ctx, finding, *proposal)
	if err != nil {
		return nil, nil, fmt.Errorf("evaluate: %w", err)
	}
	return proposal, verdict, nil
}

// learn writes an accepted proposal back into the semantic cache keyed by
// rule id. Failures are logged, never fatal.
func (o *Orchestrator) learn(ctx context.Context, finding model.Finding, proposal *model.RemediationProposal, scanID string) {
	proposalJSON, err := json.Marshal(proposal)
	if err != nil {
		o.logger.Error("marshal proposal for cache", zap.Error(err))
		return
	}
	err = o.cache.Store(ctx, cache.Entry{
		RuleID:          finding.RuleID,
		ProposalJSON:    string(proposalJSON),
		OriginalSnippet: finding.CodeSnippet,
		ScanID:          scanID,
		Scanner:         finding.Scanner,
	})
	if err != nil {
		o.logger.Error("cache store failed",
			zap.String("rule_id", finding.RuleID), zap.Error(err))
	}
}
