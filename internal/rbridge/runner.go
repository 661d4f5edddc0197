package rbridge

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"

	"go.uber.org/zap"
)

// ExecResult captures one R invocation: both streams as text plus the exit
// status. A non-zero exit is data, not a Go error.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes an R expression non-interactively and reports the result.
// Implementations must never raise on a non-zero exit; callers inspect
// ExitCode. The returned error is reserved for failures to run the process
// at all (missing binary, context cancelled before start).
type Runner interface {
	Run(ctx context.Context, script string) (ExecResult, error)
}

// RRunner runs scripts through a real R executable. The --vanilla flag
// skips all site and user startup files and --slave suppresses the banner
// and echo, so stdout carries nothing but what the script prints. The
// script is passed inline via -e rather than as a file.
type RRunner struct {
	executable string
	logger     *zap.Logger
}

// NewRRunner creates a runner for the R executable at path.
func NewRRunner(executable string, logger *zap.Logger) *RRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RRunner{executable: executable, logger: logger}
}

// Run executes the script and waits for completion. There is no built-in
// timeout; attach one to ctx if an unbounded wait is unacceptable.
func (r *RRunner) Run(ctx context.Context, script string) (ExecResult, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, r.executable, "--vanilla", "--slave", "-e", script)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := ExecResult{Stdout: stdout.String(), Stderr: stderr.String()}

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return res, err
		}
		res.ExitCode = exitErr.ExitCode()
	}

	r.logger.Debug("R invocation finished",
		zap.Int("exit_code", res.ExitCode),
		zap.Int("stdout_bytes", len(res.Stdout)),
		zap.Int("stderr_bytes", len(res.Stderr)),
		zap.Duration("duration", time.Since(start)))

	return res, nil
}
