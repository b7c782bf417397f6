package scanner

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourorg/remediation-worker/internal/model"
)

// Pipeline fans a workspace out to scanners and aggregates their findings.
type Pipeline struct {
	logger *zap.Logger
}

func NewPipeline(logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{logger: logger}
}

// Run executes every scanner concurrently over dir. Results are merged in
// scanner-submission order, not completion order, so output is deterministic
// for a fixed scanner list. A scanner that fails or times out contributes
// zero findings and never aborts its siblings.
func (p *Pipeline) Run(ctx context.Context, dir string, scanners []Scanner) []model.Finding {
	results := make([][]model.Finding, len(scanners))

	var wg sync.WaitGroup
	for i, sc := range scanners {
		wg.Add(1)
		go func(i int, sc Scanner) {
			defer wg.Done()
			start := time.Now()
			findings, err := sc.Scan(ctx, dir)
			if err != nil {
				p.logger.Error("scanner failed",
					zap.String("scanner", sc.Name()),
					zap.Duration("elapsed", time.Since(start)),
					zap.Error(err),
				)
				return
			}
			results[i] = findings
		}(i, sc)
	}
	wg.Wait()

	var all []model.Finding
	for _, r := range results {
		all = append(all, r...)
	}
	return all
}

// ByNames maps scanner-set names from a job message to scanner instances.
// Unknown names are skipped with a warning.
func ByNames(names []string, timeout time.Duration, logger *zap.Logger) []Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	var scanners []Scanner
	for _, name := range names {
		switch name {
		case "semgrep":
			scanners = append(scanners, &Semgrep{Timeout: timeout, Logger: logger})
		case "checkov":
			scanners = append(scanners, &Checkov{Timeout: timeout, Logger: logger})
		case "trivy":
			scanners = append(scanners, &Trivy{Timeout: timeout, Logger: logger})
		default:
			logger.Warn("unknown scanner type", zap.String("scanner", name))
		}
	}
	return scanners
}
