package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/vampirenirmal/raylm/internal/core"
	"github.com/vampirenirmal/raylm/internal/proc"
)

// Antialiasing parameters passed on every invocation.
const (
	antialiasThreshold = 0.3
)

// Params configures one render attempt.
type Params struct {
	Width   int
	Height  int
	Quality int
	// Clock is the normalized animation time for frame renders; nil for
	// still images.
	Clock *float64
	// Timeout bounds the renderer process; 0 waits forever.
	Timeout time.Duration
}

// CommandRunner is the slice of proc.Runner the stage needs.
type CommandRunner interface {
	Run(ctx context.Context, dir string, timeout time.Duration, args ...string) (proc.Result, error)
}

// Stage drives one render attempt of one artifact through the external
// renderer and classifies its failures.
type Stage struct {
	runner CommandRunner
	logger *slog.Logger
}

// NewStage creates a Stage on top of a renderer process runner.
func NewStage(runner CommandRunner, logger *slog.Logger) *Stage {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stage{
		runner: runner,
		logger: logger.With("component", "render"),
	}
}

// Attempt writes the document to scenePath, invokes the renderer and inspects
// both the exit code and the output artifact. The renderer is observed to
// sometimes report success without producing output, so a zero exit code with
// a missing or empty artifact is a system failure, never a success.
func (s *Stage) Attempt(ctx context.Context, document, scenePath, outputPath string, p Params) core.Outcome {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return core.Failed(core.FailureSystem, fmt.Sprintf("creating output directory: %v", err))
	}
	if err := os.WriteFile(scenePath, []byte(document), 0644); err != nil {
		return core.Failed(core.FailureSystem, fmt.Sprintf("writing scene file: %v", err))
	}

	args := []string{
		"+I" + scenePath,
		"+O" + outputPath,
		"+W" + strconv.Itoa(p.Width),
		"+H" + strconv.Itoa(p.Height),
		"+Q" + strconv.Itoa(p.Quality),
		"+FN",
		"-D",
		fmt.Sprintf("+A%g", antialiasThreshold),
	}
	if p.Clock != nil {
		args = append(args, fmt.Sprintf("+K%g", *p.Clock))
	}

	s.logger.Debug("starting render attempt",
		"scene", scenePath,
		"output", outputPath,
		"resolution", fmt.Sprintf("%dx%d", p.Width, p.Height),
		"quality", p.Quality,
		"timeout", p.Timeout)

	start := time.Now()
	res, err := s.runner.Run(ctx, filepath.Dir(scenePath), p.Timeout, args...)
	elapsed := time.Since(start)

	switch {
	case errors.Is(err, proc.ErrTimedOut):
		return core.Failed(core.FailureTimeout, fmt.Sprintf("render timed out after %s", p.Timeout))
	case err != nil:
		return core.Failed(core.FailureSystem, err.Error())
	}

	if res.ExitCode != 0 {
		diagnostic := ExtractDiagnostic(res.Stderr + "\n" + res.Stdout)
		s.logger.Warn("renderer rejected document",
			"exit_code", res.ExitCode,
			"elapsed", elapsed)
		return core.Failed(core.FailureSyntax, diagnostic)
	}

	info, statErr := os.Stat(outputPath)
	if statErr != nil || info.Size() == 0 {
		return core.Failed(core.FailureSystem, "renderer reported success but produced no output")
	}

	s.logger.Info("render attempt succeeded",
		"output", outputPath,
		"size_bytes", info.Size(),
		"elapsed", elapsed)
	return core.Rendered(outputPath, info.Size(), elapsed)
}
