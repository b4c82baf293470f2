package proc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/vampirenirmal/raylm/internal/core"
)

// ErrTimedOut is returned when a child process exceeded its deadline and was
// killed. Partial output is discarded.
var ErrTimedOut = errors.New("process timed out")

// Result captures a finished child process. A non-zero exit code is data, not
// an error: callers classify it themselves.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runner executes one external binary. The binary is located once at
// construction; a missing binary is a configuration error, never a run
// failure.
type Runner struct {
	name   string
	path   string
	logger *slog.Logger
}

// NewRunner resolves the binary on PATH and binds it.
func NewRunner(binary string, logger *slog.Logger) (*Runner, error) {
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, core.NewConfigError(binary, fmt.Sprintf("executable not found on PATH: %v", err))
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		name:   binary,
		path:   path,
		logger: logger.With("component", "proc", "binary", binary),
	}, nil
}

// Name returns the bound binary name.
func (r *Runner) Name() string {
	return r.name
}

// Run spawns exactly one child process in dir and blocks until it exits.
// A timeout of 0 means an unbounded wait; otherwise the child is killed at
// the deadline and ErrTimedOut is returned. Launch failures are returned as
// errors; the child never leaks past the call.
func (r *Runner) Run(ctx context.Context, dir string, timeout time.Duration, args ...string) (Result, error) {
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, r.path, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	r.logger.Debug("spawning child process", "args", args, "dir", dir, "timeout", timeout)

	err := cmd.Run()
	elapsed := time.Since(start)

	if runCtx.Err() == context.DeadlineExceeded {
		r.logger.Warn("child process killed on timeout", "elapsed", elapsed)
		return Result{}, fmt.Errorf("%s after %s: %w", r.name, timeout, ErrTimedOut)
	}
	if runCtx.Err() == context.Canceled {
		return Result{}, fmt.Errorf("%s interrupted: %w", r.name, runCtx.Err())
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		r.logger.Debug("child process exited non-zero",
			"exit_code", exitErr.ExitCode(),
			"elapsed", elapsed,
			"stderr_bytes", stderr.Len())
		return Result{
			ExitCode: exitErr.ExitCode(),
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
		}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("launching %s: %w", r.name, err)
	}

	r.logger.Debug("child process completed", "elapsed", elapsed)
	return Result{
		ExitCode: 0,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}, nil
}
