package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yourorg/remediation-worker/internal/model"
)

// Semgrep runs the semgrep CLI for static analysis.
type Semgrep struct {
	Timeout time.Duration
	Logger  *zap.Logger
}

func (s *Semgrep) Name() string { return "semgrep" }

type semgrepOutput struct {
	Results []struct {
		CheckID string `json:"check_id"`
		Path    string `json:"path"`
		Start   struct {
			Line int `json:"line"`
		} `json:"start"`
		End struct {
			Line int `json:"line"`
		} `json:"end"`
		Extra struct {
			Message  string         `json:"message"`
			Severity string         `json:"severity"`
			Lines    string         `json:"lines"`
			Metadata map[string]any `json:"metadata"`
		} `json:"extra"`
	} `json:"results"`
}

func (s *Semgrep) Scan(ctx context.Context, dir string) ([]model.Finding, error) {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	stdout, stderr, code, err := runCmd(ctx, s.Timeout, "semgrep",
		"scan", "--config", "p/default", "--json", dir)
	if err != nil {
		return nil, fmt.Errorf("semgrep: %w", err)
	}
	// semgrep exits 1 when findings exist
	if code != 0 && code != 1 {
		return nil, fmt.Errorf("semgrep exited %d: %s", code, truncateBytes(stderr, 300))
	}

	findings, err := parseSemgrep(stdout, dir)
	if err != nil {
		return nil, err
	}
	logger.Info("semgrep finished", zap.Int("findings", len(findings)))
	return findings, nil
}

func parseSemgrep(stdout []byte, dir string) ([]model.Finding, error) {
	var out semgrepOutput
	if err := json.Unmarshal(stdout, &out); err != nil {
		return nil, fmt.Errorf("parse semgrep output: %w", err)
	}

	findings := make([]model.Finding, 0, len(out.Results))
	for _, r := range out.Results {
		path := r.Path
		if filepath.IsAbs(path) {
			if rel, err := filepath.Rel(dir, path); err == nil {
				path = rel
			}
		}
		severity := r.Extra.Severity
		if severity == "" {
			severity = "MEDIUM"
		}
		findings = append(findings, model.Finding{
			ID:                 uuid.NewString(),
			RuleID:             r.CheckID,
			Message:            r.Extra.Message,
			Severity:           severity,
			Scanner:            "semgrep",
			FilePath:           path,
			StartLine:          r.Start.Line,
			EndLine:            r.End.Line,
			CodeSnippet:        r.Extra.Lines,
			SurroundingContext: readContext(filepath.Join(dir, path), r.Start.Line, r.End.Line),
			Metadata:           r.Extra.Metadata,
		})
	}
	return findings, nil
}

func truncateBytes(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
