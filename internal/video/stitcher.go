package video

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/vampirenirmal/raylm/internal/proc"
)

// CommandRunner is the slice of proc.Runner the stitcher needs.
type CommandRunner interface {
	Run(ctx context.Context, dir string, timeout time.Duration, args ...string) (proc.Result, error)
}

// FFmpegStitcher encodes an ordered frame set into a single video artifact
// through the external encoder. Encoder failures are system failures; they
// are never fed back into scene repair.
type FFmpegStitcher struct {
	runner CommandRunner
	logger *slog.Logger
}

// NewStitcher creates a stitcher on top of an encoder process runner.
func NewStitcher(runner CommandRunner, logger *slog.Logger) *FFmpegStitcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &FFmpegStitcher{
		runner: runner,
		logger: logger.With("component", "stitcher"),
	}
}

// Stitch encodes frames, in the given order, into outputPath at fps.
func (s *FFmpegStitcher) Stitch(ctx context.Context, frames []string, outputPath string, fps int, timeout time.Duration) error {
	if len(frames) == 0 {
		return fmt.Errorf("no frames to stitch")
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	manifestPath := strings.TrimSuffix(outputPath, filepath.Ext(outputPath)) + "_frames.txt"
	if err := os.WriteFile(manifestPath, []byte(manifest(frames, fps)), 0644); err != nil {
		return fmt.Errorf("writing frame manifest: %w", err)
	}
	defer os.Remove(manifestPath)

	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", manifestPath,
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", "23",
		"-pix_fmt", "yuv420p",
		"-vf", "fps=" + strconv.Itoa(fps),
		"-movflags", "+faststart",
		outputPath,
	}

	s.logger.Info("encoding animation", "frames", len(frames), "fps", fps, "output", outputPath)

	start := time.Now()
	res, err := s.runner.Run(ctx, filepath.Dir(outputPath), timeout, args...)
	if err != nil {
		return fmt.Errorf("running encoder: %w", err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("encoder exited with code %d: %s", res.ExitCode, tail(res.Stderr, 500))
	}

	info, err := os.Stat(outputPath)
	if err != nil || info.Size() == 0 {
		return fmt.Errorf("encoder reported success but produced no output")
	}

	s.logger.Info("animation encoded",
		"output", outputPath,
		"size_bytes", info.Size(),
		"elapsed", time.Since(start))
	return nil
}

// manifest builds a concat-demuxer frame list: each frame held for one frame
// interval, with the final frame repeated to close the sequence.
func manifest(frames []string, fps int) string {
	interval := 1.0 / float64(fps)
	var b strings.Builder
	for _, frame := range frames {
		fmt.Fprintf(&b, "file '%s'\n", frame)
		fmt.Fprintf(&b, "duration %g\n", interval)
	}
	fmt.Fprintf(&b, "file '%s'\n", frames[len(frames)-1])
	return b.String()
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
