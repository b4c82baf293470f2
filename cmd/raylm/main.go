package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/vampirenirmal/raylm/internal/agent"
	"github.com/vampirenirmal/raylm/internal/config"
	"github.com/vampirenirmal/raylm/internal/pipeline"
	"github.com/vampirenirmal/raylm/internal/proc"
	"github.com/vampirenirmal/raylm/internal/render"
	"github.com/vampirenirmal/raylm/internal/storage"
	"github.com/vampirenirmal/raylm/internal/video"
)

func main() {
	promptFile := flag.String("file", "", "Load prompt text from file (concatenated with the positional prompt)")
	noRender := flag.Bool("no-render", false, "Generate and save scene code only, skip rendering")
	renderFile := flag.String("render", "", "Render an existing .pov file (skips AI generation)")
	animate := flag.Bool("animate", false, "Animation mode")
	duration := flag.Float64("duration", 0, "Animation duration in seconds (frames = duration * fps)")
	frames := flag.Int("frames", 0, "Explicit animation frame count (overrides -duration)")
	fps := flag.Int("fps", 0, "Animation frames per second")
	preview := flag.Bool("preview", false, "Fast low-quality preview render (320x240 @ Q4)")
	size := flag.String("size", "", "Resolution preset: 480p, 720p, 1080p, 4k")
	width := flag.Int("width", 0, "Output width in pixels")
	height := flag.Int("height", 0, "Output height in pixels")
	quality := flag.Int("quality", -1, "Renderer quality level (0-11)")
	timeout := flag.Int("timeout", -1, "Render timeout in seconds (0 = unbounded)")
	retries := flag.Int("retries", 0, "Maximum render attempts per session")
	workers := flag.Int("workers", 1, "Concurrent frame renders for animation")
	model := flag.String("model", "", "Override both generator and verifier models")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	logger := newLogger(*verbose)
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		fatal(err)
	}
	applyFlags(cfg, *size, *width, *height, *quality, *timeout, *fps, *duration, *retries, *model, *preview)

	needsAI := *renderFile == ""
	if err := cfg.Validate(needsAI); err != nil {
		fatal(err)
	}

	prompt, err := buildPrompt(*promptFile, flag.Args())
	if err != nil {
		fatal(err)
	}
	if needsAI && prompt == "" {
		fatal(fmt.Errorf("a prompt, -file, or -render is required"))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, options{
		prompt:     prompt,
		renderFile: *renderFile,
		noRender:   *noRender,
		animate:    *animate,
		frames:     *frames,
		workers:    *workers,
	}); err != nil {
		fatal(err)
	}
}

type options struct {
	prompt     string
	renderFile string
	noRender   bool
	animate    bool
	frames     int
	workers    int
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts options) error {
	store, err := storage.NewFileStore(cfg.Paths.OutputDir, cfg.Limits.Backups, logger)
	if err != nil {
		return err
	}

	// External binaries are located up front; their absence is a
	// configuration error, not a run failure.
	povray, err := proc.NewRunner("povray", logger)
	if err != nil {
		return err
	}
	var stitcher pipeline.Stitcher
	if opts.animate {
		ffmpeg, err := proc.NewRunner("ffmpeg", logger)
		if err != nil {
			return err
		}
		stitcher = video.NewStitcher(ffmpeg, logger)
	}

	stage := render.NewStage(povray, logger)

	var gen pipeline.CodeGenerator
	if opts.renderFile == "" {
		client := agent.NewClient(cfg.AI.APIKey,
			agent.WithBaseURL(cfg.AI.BaseURL),
			agent.WithRetry(cfg.Limits.APIRetries),
			agent.WithTimeout(cfg.APITimeout()),
			agent.WithRateLimit(cfg.Limits.RateLimit.RequestsPerMinute, cfg.Limits.RateLimit.BurstSize),
			agent.WithLogger(logger),
		)
		gen = agent.NewGenerator(client, cfg.AI.GeneratorModel, cfg.AI.VerifierModel, logger)
	}

	workDir, err := os.MkdirTemp("", "raylm_")
	if err != nil {
		return fmt.Errorf("creating working directory: %w", err)
	}

	sess := pipeline.NewSession(gen, stage, store, workDir, cfg.Limits.MaxRetries,
		pipeline.WithVerifyStrict(cfg.Limits.VerifyStrict),
		pipeline.WithLogger(logger),
	)

	params := render.Params{
		Width:   cfg.Render.Width,
		Height:  cfg.Render.Height,
		Quality: cfg.Render.Quality,
		Timeout: cfg.RenderTimeout(),
	}

	fmt.Printf("raylm session %s\n", sess.ID()[:8])
	fmt.Printf("  resolution: %dx%d @ Q%d\n", params.Width, params.Height, params.Quality)

	switch {
	case opts.renderFile != "":
		return runExistingFile(ctx, sess, store, opts.renderFile, params, workDir)
	case opts.noRender:
		_, scenePath, err := sess.Generate(ctx, opts.prompt)
		if err != nil {
			return err
		}
		os.RemoveAll(workDir)
		fmt.Printf("  scene code saved: %s\n", scenePath)
		return nil
	case opts.animate:
		return runAnimation(ctx, cfg, logger, sess, store, stage, stitcher, opts, params, workDir)
	default:
		result, err := sess.Run(ctx, opts.prompt, params)
		if err != nil {
			return err
		}
		return report(store, result, workDir)
	}
}

func runExistingFile(ctx context.Context, sess *pipeline.Session, store *storage.FileStore, scenePath string, params render.Params, workDir string) error {
	data, err := os.ReadFile(scenePath)
	if err != nil {
		return fmt.Errorf("reading scene file: %w", err)
	}

	name := strings.TrimSuffix(filepath.Base(scenePath), filepath.Ext(scenePath))
	outputPath := store.RenderPath(name, time.Now(), "png")

	result := sess.RenderFile(ctx, string(data), outputPath, params)
	return report(store, result, workDir)
}

func runAnimation(ctx context.Context, cfg *config.Config, logger *slog.Logger, sess *pipeline.Session, store *storage.FileStore, stage pipeline.Renderer, stitcher pipeline.Stitcher, opts options, params render.Params, workDir string) error {
	body, _, err := sess.Generate(ctx, opts.prompt)
	if err != nil {
		return err
	}

	frameCount := opts.frames
	if frameCount <= 0 {
		frameCount = int(cfg.Animation.DurationSeconds * float64(cfg.Animation.FPS))
	}

	outputPath := store.RenderPath(opts.prompt, time.Now(), "mp4")
	animator := pipeline.NewAnimator(stage, stitcher, workDir, opts.workers, logger)

	fmt.Printf("  animation: %d frames @ %d fps\n", frameCount, cfg.Animation.FPS)

	result, err := animator.Run(ctx, body, frameCount, cfg.Animation.FPS, params, outputPath)
	if err != nil {
		if result.Succeeded > 0 {
			fmt.Printf("  frames rendered: %d/%d (kept in %s)\n", result.Succeeded, result.FrameCount, workDir)
		}
		return err
	}

	os.RemoveAll(workDir)
	fmt.Printf("  frames rendered: %d/%d\n", result.Succeeded, result.FrameCount)
	fmt.Printf("output: %s\n", result.OutputPath)
	return nil
}

func report(store *storage.FileStore, result pipeline.Result, workDir string) error {
	if result.Record != nil && result.ArtifactPath != "" {
		if err := store.SaveMetadata(result.ArtifactPath, result.Record); err != nil {
			slog.Warn("saving metadata failed", "error", err)
		}
	}

	switch result.State {
	case pipeline.StateSuccess:
		os.RemoveAll(workDir)
		fmt.Printf("  attempts: %d, repairs: %d\n", result.Attempts, result.Repairs)
		fmt.Printf("output: %s\n", result.ArtifactPath)
		return nil
	case pipeline.StateExhausted:
		return fmt.Errorf("retries exhausted after %d attempts (%d repairs); last %s error:\n%s",
			result.Attempts, result.Repairs, result.Kind, result.Diagnostic)
	default:
		return fmt.Errorf("%s failure:\n%s", result.Kind, result.Diagnostic)
	}
}

func buildPrompt(promptFile string, args []string) (string, error) {
	var parts []string
	if promptFile != "" {
		data, err := os.ReadFile(promptFile)
		if err != nil {
			return "", fmt.Errorf("reading prompt file: %w", err)
		}
		if text := strings.TrimSpace(string(data)); text != "" {
			parts = append(parts, text)
		}
	}
	if len(args) > 0 {
		parts = append(parts, strings.Join(args, " "))
	}
	return strings.Join(parts, "\n"), nil
}

func applyFlags(cfg *config.Config, size string, width, height, quality, timeout, fps int, duration float64, retries int, model string, preview bool) {
	if size != "" {
		if err := cfg.ApplyPreset(size); err != nil {
			fatal(err)
		}
	}
	if width > 0 {
		cfg.Render.Width = width
	}
	if height > 0 {
		cfg.Render.Height = height
	}
	if quality >= 0 {
		cfg.Render.Quality = quality
	}
	if timeout >= 0 {
		cfg.Render.TimeoutSeconds = timeout
	}
	if fps > 0 {
		cfg.Animation.FPS = fps
	}
	if duration > 0 {
		cfg.Animation.DurationSeconds = duration
	}
	if retries > 0 {
		cfg.Limits.MaxRetries = retries
	}
	if model != "" {
		cfg.AI.GeneratorModel = model
		cfg.AI.VerifierModel = model
	}
	// Preview wins over explicit dimensions, matching the documented
	// behavior of the flag.
	if preview {
		cfg.ApplyPreview()
	}
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
