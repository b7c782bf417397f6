package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/yourorg/remediation-worker/internal/model"
)

// Client holds the chat model shared by the generator and evaluator.
type Client struct {
	llm     llms.Model
	timeout time.Duration
	logger  *zap.Logger
}

func NewClient(baseURL, model, apiKey string, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	llm, err := openai.New(
		openai.WithBaseURL(baseURL),
		openai.WithModel(model),
		openai.WithToken(apiKey),
	)
	if err != nil {
		return nil, fmt.Errorf("create llm client: %w", err)
	}
	return &Client{llm: llm, timeout: timeout, logger: logger}, nil
}

// complete runs one prompt with a per-call wall-clock timeout and decodes
// the JSON object in the response into out.
func (c *Client) complete(ctx context.Context, prompt string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := llms.GenerateFromSinglePrompt(ctx, c.llm, prompt,
		llms.WithJSONMode(),
		llms.WithTemperature(0.2),
	)
	if err != nil {
		return fmt.Errorf("llm call: %w", err)
	}
	body := extractJSON(resp)
	if err := json.Unmarshal([]byte(body), out); err != nil {
		return fmt.Errorf("decode llm response: %w", err)
	}
	return nil
}

// extractJSON trims anything outside the outermost JSON object. Models
// occasionally wrap the object in markdown fences despite JSON mode.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

// LLMGenerator implements Generator with a staff-security-engineer persona.
type LLMGenerator struct {
	client *Client
}

func NewLLMGenerator(client *Client) *LLMGenerator {
	return &LLMGenerator{client: client}
}

const generatorInstructions = `You are a Staff Security Engineer specializing in secure coding practices.
Analyze the provided vulnerability and generate a secure, production-ready fix.
If the code is actually secure or the scanner is mistaken, set "is_false_positive" to true, explain why in "explanation", and set "code_changes" to an empty list.
Rules:
1. Only modify what is necessary to fix the security flaw.
2. Match the indentation, naming convention, and commenting style of the original code.
3. If the fix spans multiple files, include ALL file changes in "code_changes" with exact relative paths.
4. Write the explanation developer-to-developer, in Markdown.
Return ONLY a JSON object with the fields: finding_id, severity, summary, explanation, code_changes (list of {file_path, start_line, end_line, original_code, new_code}), security_notes (list of strings), is_false_positive, confidence.`

func (g *LLMGenerator) Generate(ctx context.Context, finding model.Finding, feedback []string, permalink string, reference *model.RemediationProposal) (*model.RemediationProposal, error) {
	g.client.logger.Info("generating fix",
		zap.String("rule_id", finding.RuleID),
		zap.Bool("has_feedback", len(feedback) > 0),
		zap.Bool("has_reference", reference != nil),
	)

	var b strings.Builder
	b.WriteString(generatorInstructions)
	b.WriteString("\n\nINPUT CONTEXT:\n")
	fmt.Fprintf(&b, "1. Vulnerability: rule=%s severity=%s scanner=%s\n", finding.RuleID, finding.Severity, finding.Scanner)
	fmt.Fprintf(&b, "2. Location: %s (lines %d-%d)\n", finding.FilePath, finding.StartLine, finding.EndLine)
	if permalink != "" {
		fmt.Fprintf(&b, "3. Permalink: %s\n", permalink)
	}
	fmt.Fprintf(&b, "4. Vulnerable code:\n```\n%s\n```\n", finding.CodeSnippet)
	fmt.Fprintf(&b, "5. Surrounding context:\n%s\n", finding.SurroundingContext)
	fmt.Fprintf(&b, "6. Scanner message: %s\n", finding.Message)
	if len(finding.TaintTrace) > 0 {
		b.WriteString("7. Taint trace (source to sink):\n")
		for _, n := range finding.TaintTrace {
			fmt.Fprintf(&b, "   - %s:%d %s\n", n.FilePath, n.LineNumber, n.StepDescription)
		}
	}
	if reference != nil {
		refJSON, _ := json.Marshal(reference)
		fmt.Fprintf(&b, "\nREFERENCE: a similar past fix was found but judged not directly applicable. Use it as non-binding reference material:\n%s\n", refJSON)
	}
	if len(feedback) > 0 {
		b.WriteString("\nPREVIOUS ATTEMPT FEEDBACK:\nThe previous fix was rejected. Address the following:\n")
		for _, f := range feedback {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}

	var proposal model.RemediationProposal
	if err := g.client.complete(ctx, b.String(), &proposal); err != nil {
		return nil, err
	}
	return &proposal, nil
}

// LLMEvaluator implements Evaluator with a lead-AppSec-reviewer persona.
type LLMEvaluator struct {
	client *Client
}

func NewLLMEvaluator(client *Client) *LLMEvaluator {
	return &LLMEvaluator{client: client}
}

const evaluatorInstructions = `You are a Lead AppSec Reviewer, the gatekeeper for code quality and security.
Review the proposed remediation (or false positive judgment) for the vulnerability.
Scoring criteria:
1. completeness: does it fix the root cause?
2. correctness: is the syntax and logic correct?
3. security: does it introduce new vulnerabilities?
4. confidence: your overall certainty, 0.0 to 1.0.
If the generator claims a false positive, verify the claim; set "is_false_positive" accordingly.
If you reject the fix (confidence below 0.7), provide specific, actionable items in "feedback".
Return ONLY a JSON object with the fields: completeness, correctness, security, confidence, is_false_positive, feedback (list of strings).`

func (e *LLMEvaluator) Evaluate(ctx context.Context, finding model.Finding, proposal model.RemediationProposal) (*model.EvaluationVerdict, error) {
	e.client.logger.Info("evaluating fix",
		zap.String("rule_id", finding.RuleID),
		zap.String("summary", truncate(proposal.Summary, 80)),
	)

	changes, _ := json.Marshal(proposal.CodeChanges)

	var b strings.Builder
	b.WriteString(evaluatorInstructions)
	b.WriteString("\n\nINPUTS:\n")
	fmt.Fprintf(&b, "1. Original vulnerability: %s (rule=%s, scanner=%s)\n", finding.Message, finding.RuleID, finding.Scanner)
	fmt.Fprintf(&b, "2. Vulnerable code:\n```\n%s\n```\n", finding.CodeSnippet)
	fmt.Fprintf(&b, "3. Proposed fix summary: %s\n", proposal.Summary)
	fmt.Fprintf(&b, "4. Proposed changes: %s\n", changes)
	fmt.Fprintf(&b, "5. Explanation: %s\n", proposal.Explanation)
	fmt.Fprintf(&b, "6. False positive claim: %v\n", proposal.IsFalsePositive)

	var verdict model.EvaluationVerdict
	if err := e.client.complete(ctx, b.String(), &verdict); err != nil {
		return nil, err
	}
	return &verdict, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var (
	_ Generator = (*LLMGenerator)(nil)
	_ Evaluator = (*LLMEvaluator)(nil)
)
