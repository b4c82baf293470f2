package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vampirenirmal/raylm/internal/render"
	"github.com/vampirenirmal/raylm/internal/scene"
)

// Stitcher is the external encoding collaborator.
type Stitcher interface {
	Stitch(ctx context.Context, frames []string, outputPath string, fps int, timeout time.Duration) error
}

// AnimationResult reports a finished animation job. Frames holds the
// surviving artifacts in index order; Succeeded counts how many of FrameCount
// rendered.
type AnimationResult struct {
	OutputPath string
	Frames     []string
	Succeeded  int
	FrameCount int
}

// Animator fans a verified scene body out over a frame sequence and stitches
// the survivors. Frames reuse the already-verified body and never loop back
// into repair; individual frame failures are logged and skipped, and the job
// only fails hard when zero frames succeed.
type Animator struct {
	stage    Renderer
	stitcher Stitcher
	workDir  string
	workers  int
	logger   *slog.Logger
}

// NewAnimator creates an animator. workers bounds concurrent frame renders;
// 1 keeps the strictly sequential index-order behavior.
func NewAnimator(stage Renderer, stitcher Stitcher, workDir string, workers int, logger *slog.Logger) *Animator {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Animator{
		stage:    stage,
		stitcher: stitcher,
		workDir:  workDir,
		workers:  workers,
		logger:   logger.With("component", "animator"),
	}
}

// Clock maps a frame index to its normalized animation time: frame 0 renders
// at 0.0 and frame n-1 at 1.0. A single-frame job renders at 0.0.
func Clock(i, n int) float64 {
	if n <= 1 {
		return 0.0
	}
	return float64(i) / float64(n-1)
}

// Run renders frameCount frames of the verified body and encodes the
// survivors into outputPath at fps. Per-frame temporary scene files are
// removed regardless of outcome. A stitch failure is a system failure of the
// job, distinct from frame-render failures.
func (a *Animator) Run(ctx context.Context, verifiedBody string, frameCount, fps int, p render.Params, outputPath string) (AnimationResult, error) {
	if frameCount <= 0 {
		return AnimationResult{}, fmt.Errorf("frame count must be positive, got %d", frameCount)
	}

	assembler := scene.NewAssembler()
	rendered := make([]string, frameCount)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)

	for i := 0; i < frameCount; i++ {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			clock := Clock(i, frameCount)
			// Each frame gets its own working paths so parallel renders
			// cannot collide.
			scenePath := filepath.Join(a.workDir, fmt.Sprintf("frame_%03d.pov", i))
			framePath := filepath.Join(a.workDir, fmt.Sprintf("frame_%03d.png", i))
			defer os.Remove(scenePath)

			frameParams := p
			frameParams.Clock = &clock

			document := assembler.AssembleFrame(verifiedBody, clock)
			outcome := a.stage.Attempt(gctx, document, scenePath, framePath, frameParams)
			if !outcome.OK {
				a.logger.Warn("frame render failed, skipping",
					"frame", i,
					"clock", clock,
					"kind", outcome.Kind.String(),
					"diagnostic", outcome.Diagnostic)
				return nil
			}

			a.logger.Info("frame rendered",
				"frame", i,
				"of", frameCount,
				"clock", clock,
				"elapsed", outcome.Elapsed)
			rendered[i] = framePath
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return AnimationResult{}, err
	}

	frames := make([]string, 0, frameCount)
	for _, f := range rendered {
		if f != "" {
			frames = append(frames, f)
		}
	}

	result := AnimationResult{
		Frames:     frames,
		Succeeded:  len(frames),
		FrameCount: frameCount,
	}

	if len(frames) == 0 {
		return result, fmt.Errorf("no frames rendered (%d attempted)", frameCount)
	}
	if len(frames) < frameCount {
		a.logger.Warn("partial animation", "succeeded", len(frames), "of", frameCount)
	}

	if err := a.stitcher.Stitch(ctx, frames, outputPath, fps, 0); err != nil {
		return result, fmt.Errorf("stitching: %w", err)
	}

	result.OutputPath = outputPath
	a.logger.Info("animation complete",
		"output", outputPath,
		"frames", len(frames),
		"of", frameCount,
		"fps", fps)
	return result, nil
}
