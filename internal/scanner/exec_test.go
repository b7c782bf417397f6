package scanner

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubBinary puts a shell script named name on PATH for the test.
func stubBinary(t *testing.T, name, script string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs require a POSIX shell")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func TestSemgrepScanParsesFindingsOnExitOne(t *testing.T) {
	// semgrep exits 1 exactly when findings exist
	stubBinary(t, "semgrep", `cat <<'EOF'
{"results":[{"check_id":"rule-1","path":"main.go","start":{"line":3},"end":{"line":3},"extra":{"message":"bad","severity":"ERROR","lines":"x := y"}}]}
EOF
exit 1`)

	s := &Semgrep{Timeout: 10 * time.Second}
	findings, err := s.Scan(context.Background(), t.TempDir())
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "rule-1", findings[0].RuleID)
	assert.Equal(t, "ERROR", findings[0].Severity)
}

func TestSemgrepScanCleanRunExitZero(t *testing.T) {
	stubBinary(t, "semgrep", `echo '{"results":[]}'
exit 0`)

	s := &Semgrep{Timeout: 10 * time.Second}
	findings, err := s.Scan(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestSemgrepScanCrashExitCode(t *testing.T) {
	stubBinary(t, "semgrep", `echo "internal error" >&2
exit 2`)

	s := &Semgrep{Timeout: 10 * time.Second}
	_, err := s.Scan(context.Background(), t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exited 2")
}

func TestRunCmdReportsExitCodeWithoutError(t *testing.T) {
	stubBinary(t, "exitcheck", `echo out
exit 3`)

	stdout, _, code, err := runCmd(context.Background(), 10*time.Second, "exitcheck")
	require.NoError(t, err)
	assert.Equal(t, 3, code)
	assert.Equal(t, "out\n", string(stdout))
}

func TestRunCmdMissingBinary(t *testing.T) {
	_, _, _, err := runCmd(context.Background(), time.Second, "definitely-not-installed-tool")
	assert.Error(t, err)
}

func TestRunCmdTimeout(t *testing.T) {
	stubBinary(t, "sleeper", `sleep 5`)

	_, _, _, err := runCmd(context.Background(), 50*time.Millisecond, "sleeper")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
