// Package scanner runs security scanners over a prepared source workspace
// and normalizes their output into findings.
package scanner

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/yourorg/remediation-worker/internal/model"
)

// Scanner is one black-box scanning tool. Scan returns normalized findings
// for the source tree rooted at dir; each finding carries a fresh unique id.
type Scanner interface {
	Name() string
	Scan(ctx context.Context, dir string) ([]model.Finding, error)
}

// runCmd executes a scanner subprocess with a hard wall-clock timeout and
// returns its stdout, stderr, and exit code. A non-zero exit is reported
// through the exit code, not the error: scanners like semgrep exit 1 when
// findings exist, so callers decide which codes are acceptable. A timeout
// surfaces as the context error.
func runCmd(ctx context.Context, timeout time.Duration, name string, args ...string) (stdout, stderr []byte, exitCode int, err error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	err = cmd.Run()
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		err = nil
	}
	if ctx.Err() != nil {
		err = ctx.Err()
	}
	return outBuf.Bytes(), errBuf.Bytes(), exitCode, err
}

// readContext returns the source lines around a finding, five lines on each
// side, for the generator's surrounding-context input.
func readContext(filePath string, startLine, endLine int) string {
	const contextLines = 5
	data, err := os.ReadFile(filePath)
	if err != nil {
		return ""
	}
	lines := strings.Split(string(data), "\n")
	s := startLine - 1 - contextLines
	if s < 0 {
		s = 0
	}
	e := endLine + contextLines
	if e > len(lines) {
		e = len(lines)
	}
	if s >= e {
		return ""
	}
	return strings.Join(lines[s:e], "\n")
}
