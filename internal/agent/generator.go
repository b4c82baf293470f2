package agent

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/vampirenirmal/raylm/internal/core"
)

// Generator exposes the three prompt roles of the pipeline: draft generation,
// verification/correction and error-driven repair. Each is one request with a
// fixed system prompt; no conversation state is kept between calls.
type Generator struct {
	client         ChatClient
	generatorModel string
	verifierModel  string
	logger         *slog.Logger
}

// NewGenerator wires a Generator onto a chat client. The verifier model also
// serves repair requests.
func NewGenerator(client ChatClient, generatorModel, verifierModel string, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		client:         client,
		generatorModel: generatorModel,
		verifierModel:  verifierModel,
		logger:         logger.With("component", "generator"),
	}
}

// Draft asks the generator model for a scene body matching the prompt.
func (g *Generator) Draft(ctx context.Context, prompt string) (string, error) {
	g.logger.Info("generating draft", "model", g.generatorModel, "prompt_length", len(prompt))
	raw, err := g.client.Chat(ctx, g.generatorModel, systemPromptGenerator, prompt)
	if err != nil {
		return "", &core.TransportError{Op: "draft", Attempts: 1, Cause: err}
	}
	return CleanCode(raw), nil
}

// Verify asks the verifier model for a corrected body given the original
// prompt and the draft.
func (g *Generator) Verify(ctx context.Context, prompt, draft string) (string, error) {
	payload := fmt.Sprintf(`### 1. USER REQUEST
%s

### 2. DRAFT CODE
%s

Review the code. Fix syntax errors. Ensure compliance with POV-Ray 3.7 standards.
Return FINAL CODE only.`, prompt, draft)

	g.logger.Info("verifying draft", "model", g.verifierModel, "draft_length", len(draft))
	raw, err := g.client.Chat(ctx, g.verifierModel, systemPromptVerifier, payload)
	if err != nil {
		return "", &core.TransportError{Op: "verify", Attempts: 1, Cause: err}
	}
	return CleanCode(raw), nil
}

// Repair sends the failing body together with the renderer diagnostic and
// returns a repaired body. Only the latest diagnostic is included; prior ones
// are discarded by the caller.
func (g *Generator) Repair(ctx context.Context, body, diagnostic string) (string, error) {
	payload := fmt.Sprintf(`### RENDERER ERROR
%s

### FAILED CODE
%s

Fix the syntax error shown in the log. Return ONLY valid SDL code.`, diagnostic, body)

	g.logger.Info("requesting repair", "model", g.verifierModel, "diagnostic_length", len(diagnostic))
	raw, err := g.client.Chat(ctx, g.verifierModel, systemPromptRepairer, payload)
	if err != nil {
		return "", &core.TransportError{Op: "repair", Attempts: 1, Cause: err}
	}
	return CleanCode(raw), nil
}

var (
	fenceOpenRe  = regexp.MustCompile("(?m)^```(?:povray|pov)?\\s*\n")
	fenceCloseRe = regexp.MustCompile("\n```\\s*$")
)

// CleanCode strips markdown code fences that models wrap around SDL output
// despite instructions.
func CleanCode(code string) string {
	if code == "" {
		return ""
	}
	code = fenceOpenRe.ReplaceAllString(code, "")
	code = fenceCloseRe.ReplaceAllString(code, "")
	return strings.TrimSpace(code)
}
