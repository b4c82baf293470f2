package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/vampirenirmal/raylm/internal/core"
	"github.com/vampirenirmal/raylm/internal/render"
	"github.com/vampirenirmal/raylm/internal/scene"
	"github.com/vampirenirmal/raylm/internal/storage"
)

// CodeGenerator is the AI boundary the pipeline depends on: one method per
// prompt role.
type CodeGenerator interface {
	Draft(ctx context.Context, prompt string) (string, error)
	Verify(ctx context.Context, prompt, draft string) (string, error)
	Repair(ctx context.Context, body, diagnostic string) (string, error)
}

// Renderer drives one render attempt of one artifact.
type Renderer interface {
	Attempt(ctx context.Context, document, scenePath, outputPath string, p render.Params) core.Outcome
}

// State is the terminal state of a session.
type State int

const (
	StateSuccess State = iota
	StateExhausted
	StateFatal
)

func (s State) String() string {
	switch s {
	case StateSuccess:
		return "success"
	case StateExhausted:
		return "exhausted"
	case StateFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Result reports how a session ended.
type Result struct {
	State        State
	ArtifactPath string
	ScenePath    string
	Body         string
	Attempts     int
	Repairs      int
	Kind         core.FailureKind
	Diagnostic   string
	Record       *core.Record
}

// Session owns the bounded generate/render/repair state machine for one
// generation request. At most one render attempt is outstanding at a time;
// maxRetries bounds total render attempts; the repair prompt always carries
// the current body and the latest diagnostic only.
type Session struct {
	id           string
	gen          CodeGenerator
	assembler    *scene.Assembler
	stage        Renderer
	store        *storage.FileStore
	workDir      string
	maxRetries   int
	verifyStrict bool
	logger       *slog.Logger
}

// SessionOption customizes a Session.
type SessionOption func(*Session)

// WithVerifyStrict makes verification failure fatal instead of falling back
// to the unverified draft.
func WithVerifyStrict(strict bool) SessionOption {
	return func(s *Session) {
		s.verifyStrict = strict
	}
}

// WithLogger configures a custom logger.
func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

// NewSession creates a session. workDir holds the per-session temporary scene
// files; it must not be shared across concurrent sessions.
func NewSession(gen CodeGenerator, stage Renderer, store *storage.FileStore, workDir string, maxRetries int, opts ...SessionOption) *Session {
	s := &Session{
		id:         uuid.New().String(),
		gen:        gen,
		assembler:  scene.NewAssembler(),
		stage:      stage,
		store:      store,
		workDir:    workDir,
		maxRetries: maxRetries,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "session", "session_id", s.id[:8])
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Generate runs the Generating and Verifying states: draft the body, then ask
// for a corrected version once. A draft failure is fatal; a verification
// failure falls back to the draft unless the strict policy is set. The
// resulting body is saved to scene history.
func (s *Session) Generate(ctx context.Context, prompt string) (string, string, error) {
	if err := scene.ValidatePrompt(prompt); err != nil {
		return "", "", err
	}

	rec := core.NewRecord("generate")
	defer rec.Complete(nil)

	body, err := s.gen.Draft(ctx, prompt)
	if err != nil {
		return "", "", err
	}

	if findings := scene.Lint(body); len(findings) > 0 {
		s.logger.Warn("draft lint findings", "findings", findings)
		body = scene.BalanceBraces(body)
	}

	verified, err := s.gen.Verify(ctx, prompt, body)
	if err != nil {
		if s.verifyStrict {
			return "", "", err
		}
		s.logger.Warn("verification failed, falling back to draft", "error", err)
	} else {
		body = verified
	}

	scenePath := s.store.ScenePath(prompt, time.Now())
	if err := s.store.SaveScene(scenePath, s.assembler.Assemble(body)); err != nil {
		return "", "", err
	}
	s.logger.Info("scene body generated", "history_path", scenePath, "body_length", len(body))

	return body, scenePath, nil
}

// Run executes the full state machine for a still image: Generate, then the
// render/repair loop of Render.
func (s *Session) Run(ctx context.Context, prompt string, p render.Params) (Result, error) {
	body, scenePath, err := s.Generate(ctx, prompt)
	if err != nil {
		return Result{}, err
	}

	outputPath := s.store.RenderPath(prompt, time.Now(), "png")
	result := s.Render(ctx, body, outputPath, p)
	result.ScenePath = scenePath
	return result, nil
}

// Render runs the Rendering/Repairing loop on a body until terminal state.
// Only syntax failures are repaired; a timeout or system failure aborts
// without consuming remaining retries.
func (s *Session) Render(ctx context.Context, body, outputPath string, p render.Params) Result {
	rec := core.NewRecord("render_session")
	rec.Set("max_retries", s.maxRetries)

	result := Result{Body: body, Record: rec}
	workScene := filepath.Join(s.workDir, "scene.pov")

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			rec.Complete(err)
			result.State = StateFatal
			result.Kind = core.FailureSystem
			result.Diagnostic = fmt.Sprintf("interrupted: %v", err)
			return result
		}

		s.logger.Info("render attempt", "attempt", attempt+1, "of", s.maxRetries)

		document := s.assembler.Assemble(result.Body)
		outcome := s.stage.Attempt(ctx, document, workScene, outputPath, p)
		result.Attempts++

		if outcome.OK {
			rec.Set("artifact", outcome.ArtifactPath)
			rec.Set("size_bytes", outcome.SizeBytes)
			rec.Complete(nil)
			result.State = StateSuccess
			result.ArtifactPath = outcome.ArtifactPath
			return result
		}

		result.Kind = outcome.Kind
		result.Diagnostic = outcome.Diagnostic

		if !outcome.Recoverable() {
			s.logger.Error("unrepairable failure, aborting",
				"kind", outcome.Kind.String(),
				"diagnostic", outcome.Diagnostic)
			rec.Complete(fmt.Errorf("%s failure", outcome.Kind))
			result.State = StateFatal
			return result
		}

		if attempt == s.maxRetries-1 {
			break
		}

		s.logger.Warn("syntax failure, requesting repair",
			"attempt", attempt+1,
			"diagnostic", outcome.Diagnostic)

		repaired, err := s.gen.Repair(ctx, result.Body, outcome.Diagnostic)
		if err != nil {
			rec.Complete(err)
			result.State = StateFatal
			result.Diagnostic = err.Error()
			return result
		}
		result.Body = repaired
		result.Repairs++
	}

	rec.Complete(fmt.Errorf("retries exhausted"))
	result.State = StateExhausted
	s.logger.Error("retries exhausted",
		"attempts", result.Attempts,
		"repairs", result.Repairs,
		"diagnostic", result.Diagnostic)
	return result
}

// RenderFile feeds a user-supplied document straight to the render stage,
// skipping generation. Repair is unavailable without a generated body, so a
// failure is terminal.
func (s *Session) RenderFile(ctx context.Context, document, outputPath string, p render.Params) Result {
	rec := core.NewRecord("render_file")
	workScene := filepath.Join(s.workDir, "scene.pov")

	outcome := s.stage.Attempt(ctx, document, workScene, outputPath, p)
	if outcome.OK {
		rec.Complete(nil)
		return Result{
			State:        StateSuccess,
			ArtifactPath: outcome.ArtifactPath,
			Attempts:     1,
			Record:       rec,
		}
	}

	rec.Complete(fmt.Errorf("%s failure", outcome.Kind))
	state := StateFatal
	if outcome.Kind == core.FailureSyntax {
		state = StateExhausted
	}
	return Result{
		State:      state,
		Attempts:   1,
		Kind:       outcome.Kind,
		Diagnostic: outcome.Diagnostic,
		Record:     rec,
	}
}
