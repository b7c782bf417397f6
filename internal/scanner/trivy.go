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

// Trivy runs the trivy CLI in filesystem mode for dependency scanning.
type Trivy struct {
	Timeout time.Duration
	Logger  *zap.Logger
}

func (t *Trivy) Name() string { return "trivy" }

type trivyOutput struct {
	Results []struct {
		Target          string `json:"Target"`
		Vulnerabilities []struct {
			VulnerabilityID  string   `json:"VulnerabilityID"`
			PkgName          string   `json:"PkgName"`
			InstalledVersion string   `json:"InstalledVersion"`
			FixedVersion     string   `json:"FixedVersion"`
			Title            string   `json:"Title"`
			Description      string   `json:"Description"`
			Severity         string   `json:"Severity"`
			References       []string `json:"References"`
		} `json:"Vulnerabilities"`
	} `json:"Results"`
}

func (t *Trivy) Scan(ctx context.Context, dir string) ([]model.Finding, error) {
	logger := t.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	stdout, stderr, code, err := runCmd(ctx, t.Timeout, "trivy",
		"fs", dir, "--format", "json")
	if err != nil {
		return nil, fmt.Errorf("trivy: %w", err)
	}
	if code != 0 {
		return nil, fmt.Errorf("trivy exited %d: %s", code, truncateBytes(stderr, 300))
	}

	findings, err := parseTrivy(stdout, dir)
	if err != nil {
		return nil, err
	}
	logger.Info("trivy finished", zap.Int("findings", len(findings)))
	return findings, nil
}

func parseTrivy(stdout []byte, dir string) ([]model.Finding, error) {
	var out trivyOutput
	if err := json.Unmarshal(stdout, &out); err != nil {
		return nil, fmt.Errorf("parse trivy output: %w", err)
	}

	var findings []model.Finding
	for _, res := range out.Results {
		target := res.Target
		if filepath.IsAbs(target) {
			if rel, err := filepath.Rel(dir, target); err == nil {
				target = rel
			}
		}
		for _, v := range res.Vulnerabilities {
			severity := v.Severity
			if severity == "" {
				severity = "UNKNOWN"
			}
			findings = append(findings, model.Finding{
				ID:       uuid.NewString(),
				RuleID:   v.VulnerabilityID,
				Message:  fmt.Sprintf("%s: %s %s (fixed: %s)", v.Title, v.PkgName, v.InstalledVersion, v.FixedVersion),
				Severity: severity,
				Scanner:  "trivy",
				FilePath: target,
				// dependency findings have no meaningful line range
				StartLine:          1,
				EndLine:            1,
				CodeSnippet:        fmt.Sprintf("Package: %s\nInstalled: %s\nFixed: %s", v.PkgName, v.InstalledVersion, v.FixedVersion),
				SurroundingContext: v.Description,
				Metadata: map[string]any{
					"pkg_name":          v.PkgName,
					"installed_version": v.InstalledVersion,
					"fixed_version":     v.FixedVersion,
					"references":        v.References,
				},
			})
		}
	}
	return findings, nil
}
