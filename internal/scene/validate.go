package scene

import (
	"fmt"
	"strings"

	"github.com/vampirenirmal/raylm/internal/core"
)

// MinPromptLen is the minimum trimmed prompt length; anything shorter is
// degenerate input and rejected before any AI call is made.
const MinPromptLen = 5

var dangerousPatterns = []string{"exec(", "eval(", "system(", "subprocess"}

// ValidatePrompt rejects prompts that cannot lead to a sensible scene.
func ValidatePrompt(prompt string) error {
	trimmed := strings.TrimSpace(prompt)
	if trimmed == "" {
		return fmt.Errorf("%w: prompt is empty", core.ErrInvalidPrompt)
	}
	if len(trimmed) < MinPromptLen {
		return fmt.Errorf("%w: prompt must be at least %d characters", core.ErrInvalidPrompt, MinPromptLen)
	}
	lower := strings.ToLower(trimmed)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(lower, pattern) {
			return fmt.Errorf("%w: prompt contains suspicious pattern %q", core.ErrInvalidPrompt, pattern)
		}
	}
	if strings.Count(trimmed, "{") != strings.Count(trimmed, "}") {
		return fmt.Errorf("%w: unbalanced braces in prompt", core.ErrInvalidPrompt)
	}
	return nil
}

// Lint runs heuristic checks over a generated scene body and returns advisory
// findings. It catches gross malformation, not semantic correctness; its
// result never overrides the renderer's own success or failure signal.
func Lint(body string) []string {
	var findings []string

	if strings.TrimSpace(body) == "" {
		return []string{"scene body is empty"}
	}

	open := strings.Count(body, "{")
	closed := strings.Count(body, "}")
	if open != closed {
		findings = append(findings, fmt.Sprintf("unbalanced braces: %d opening, %d closing", open, closed))
	}

	lower := strings.ToLower(body)
	if !strings.Contains(lower, "camera") {
		findings = append(findings, "no camera definition found")
	}
	if !strings.Contains(lower, "light_source") {
		findings = append(findings, "no light_source definition found")
	}

	return findings
}

// BalanceBraces appends missing closing braces. It is a best-effort
// normalization applied before verification; truncated model output is the
// usual cause.
func BalanceBraces(body string) string {
	open := strings.Count(body, "{")
	closed := strings.Count(body, "}")
	if open > closed {
		return body + strings.Repeat("}", open-closed)
	}
	return body
}
