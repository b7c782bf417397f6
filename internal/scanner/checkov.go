package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yourorg/remediation-worker/internal/model"
)

// Checkov runs the checkov CLI for IaC misconfiguration scanning.
type Checkov struct {
	Timeout time.Duration
	Logger  *zap.Logger
}

func (c *Checkov) Name() string { return "checkov" }

type checkovReport struct {
	Results struct {
		FailedChecks []struct {
			CheckID       string  `json:"check_id"`
			CheckName     string  `json:"check_name"`
			FilePath      string  `json:"file_path"`
			FileLineRange []int   `json:"file_line_range"`
			Resource      string  `json:"resource"`
			CodeBlock     [][]any `json:"code_block"`
		} `json:"failed_checks"`
	} `json:"results"`
}

func (c *Checkov) Scan(ctx context.Context, dir string) ([]model.Finding, error) {
	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	stdout, stderr, code, err := runCmd(ctx, c.Timeout, "checkov",
		"-d", dir, "--output", "json", "--soft-fail")
	if err != nil {
		return nil, fmt.Errorf("checkov: %w", err)
	}
	if code != 0 {
		return nil, fmt.Errorf("checkov exited %d: %s", code, truncateBytes(stderr, 300))
	}

	findings, err := parseCheckov(stdout, dir)
	if err != nil {
		return nil, err
	}
	logger.Info("checkov finished", zap.Int("findings", len(findings)))
	return findings, nil
}

func parseCheckov(stdout []byte, dir string) ([]model.Finding, error) {
	// checkov emits a single report or a list of per-framework reports
	var reports []checkovReport
	if err := json.Unmarshal(stdout, &reports); err != nil {
		var single checkovReport
		if err := json.Unmarshal(stdout, &single); err != nil {
			return nil, fmt.Errorf("parse checkov output: %w", err)
		}
		reports = []checkovReport{single}
	}

	var findings []model.Finding
	for _, report := range reports {
		for _, check := range report.Results.FailedChecks {
			path := strings.TrimPrefix(check.FilePath, "/")
			if filepath.IsAbs(check.FilePath) && strings.Contains(check.FilePath, dir) {
				if rel, err := filepath.Rel(dir, check.FilePath); err == nil {
					path = rel
				}
			}
			start, end := 0, 0
			if len(check.FileLineRange) == 2 {
				start, end = check.FileLineRange[0], check.FileLineRange[1]
			}
			var snippet strings.Builder
			for _, row := range check.CodeBlock {
				if len(row) == 2 {
					if line, ok := row[1].(string); ok {
						snippet.WriteString(line)
					}
				}
			}
			findings = append(findings, model.Finding{
				ID:                 uuid.NewString(),
				RuleID:             check.CheckID,
				Message:            check.CheckName,
				Severity:           "HIGH",
				Scanner:            "checkov",
				FilePath:           path,
				StartLine:          start,
				EndLine:            end,
				CodeSnippet:        snippet.String(),
				SurroundingContext: readContext(filepath.Join(dir, path), start, end),
				Metadata:           map[string]any{"resource": check.Resource},
			})
		}
	}
	return findings, nil
}
