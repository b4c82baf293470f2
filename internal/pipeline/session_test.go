package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vampirenirmal/raylm/internal/core"
	"github.com/vampirenirmal/raylm/internal/render"
	"github.com/vampirenirmal/raylm/internal/storage"
)

const testBody = "camera { location <0,2,-5> look_at <0,0,0> }\nlight_source { <10,10,-10> color rgb 1 }\nsphere { <0,0,0>, 1 }"

// mockGenerator scripts the three AI roles and records the calls made.
type mockGenerator struct {
	draft     string
	draftErr  error
	verify    string
	verifyErr error
	repairs   []string
	repairErr error

	calls       []string
	repairCalls int
	lastRepair  struct{ body, diagnostic string }
}

func (m *mockGenerator) Draft(ctx context.Context, prompt string) (string, error) {
	m.calls = append(m.calls, "draft")
	return m.draft, m.draftErr
}

func (m *mockGenerator) Verify(ctx context.Context, prompt, draft string) (string, error) {
	m.calls = append(m.calls, "verify")
	if m.verifyErr != nil {
		return "", m.verifyErr
	}
	if m.verify != "" {
		return m.verify, nil
	}
	return draft, nil
}

func (m *mockGenerator) Repair(ctx context.Context, body, diagnostic string) (string, error) {
	m.calls = append(m.calls, "repair")
	m.lastRepair.body = body
	m.lastRepair.diagnostic = diagnostic
	if m.repairErr != nil {
		return "", m.repairErr
	}
	repaired := m.repairs[m.repairCalls]
	m.repairCalls++
	return repaired, nil
}

// mockStage returns one scripted outcome per attempt, in order. The last
// outcome repeats if more attempts arrive than were scripted.
type mockStage struct {
	outcomes []core.Outcome
	attempts int
	bodies   []string
}

func (m *mockStage) Attempt(ctx context.Context, document, scenePath, outputPath string, p render.Params) core.Outcome {
	m.bodies = append(m.bodies, document)
	i := m.attempts
	if i >= len(m.outcomes) {
		i = len(m.outcomes) - 1
	}
	m.attempts++
	return m.outcomes[i]
}

func newTestSession(t *testing.T, gen CodeGenerator, stage Renderer, maxRetries int, opts ...SessionOption) *Session {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir(), false, nil)
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	return NewSession(gen, stage, store, t.TempDir(), maxRetries, opts...)
}

func successOutcome() core.Outcome {
	return core.Rendered("out.png", 100, 0)
}

func syntaxFailure(diag string) core.Outcome {
	return core.Failed(core.FailureSyntax, diag)
}

func TestRenderFirstAttemptSucceeds(t *testing.T) {
	gen := &mockGenerator{draft: testBody}
	stage := &mockStage{outcomes: []core.Outcome{successOutcome()}}
	sess := newTestSession(t, gen, stage, 3)

	result := sess.Render(context.Background(), testBody, "out.png", render.Params{})

	if result.State != StateSuccess {
		t.Fatalf("state = %s, want success", result.State)
	}
	if result.Attempts != 1 || result.Repairs != 0 {
		t.Errorf("attempts = %d, repairs = %d, want 1 and 0", result.Attempts, result.Repairs)
	}
	if len(gen.calls) != 0 {
		t.Errorf("no AI calls expected on first-attempt success, got %v", gen.calls)
	}
}

func TestRenderRepairLoopRecovers(t *testing.T) {
	gen := &mockGenerator{
		draft:   testBody,
		repairs: []string{"fixed once", "fixed twice"},
	}
	stage := &mockStage{outcomes: []core.Outcome{
		syntaxFailure("Parse Error: first"),
		syntaxFailure("Parse Error: second"),
		successOutcome(),
	}}
	sess := newTestSession(t, gen, stage, 3)

	result := sess.Render(context.Background(), testBody, "out.png", render.Params{})

	if result.State != StateSuccess {
		t.Fatalf("state = %s, want success (diag %q)", result.State, result.Diagnostic)
	}
	if result.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", result.Attempts)
	}
	if result.Repairs != 2 {
		t.Errorf("repairs = %d, want 2", result.Repairs)
	}
	if gen.lastRepair.body != "fixed once" {
		t.Errorf("second repair should receive the first repaired body, got %q", gen.lastRepair.body)
	}
	if gen.lastRepair.diagnostic != "Parse Error: second" {
		t.Errorf("repair must carry only the latest diagnostic, got %q", gen.lastRepair.diagnostic)
	}
	if !strings.Contains(stage.bodies[2], "fixed twice") {
		t.Error("third attempt should render the latest repaired body")
	}
}

func TestRenderRetriesExhausted(t *testing.T) {
	gen := &mockGenerator{
		draft:   testBody,
		repairs: []string{"try 2", "try 3"},
	}
	stage := &mockStage{outcomes: []core.Outcome{
		syntaxFailure("Parse Error: one"),
		syntaxFailure("Parse Error: two"),
		syntaxFailure("Parse Error: three"),
	}}
	sess := newTestSession(t, gen, stage, 3)

	result := sess.Render(context.Background(), testBody, "out.png", render.Params{})

	if result.State != StateExhausted {
		t.Fatalf("state = %s, want exhausted", result.State)
	}
	if result.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", result.Attempts)
	}
	if result.Repairs != 2 {
		t.Errorf("repairs = %d, want 2 (no repair after the final attempt)", result.Repairs)
	}
	if result.Diagnostic != "Parse Error: three" {
		t.Errorf("diagnostic = %q, want the final attempt's window", result.Diagnostic)
	}
}

func TestRenderFatalKindsAbortImmediately(t *testing.T) {
	tests := []struct {
		name string
		kind core.FailureKind
	}{
		{"timeout", core.FailureTimeout},
		{"system", core.FailureSystem},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &mockGenerator{draft: testBody}
			stage := &mockStage{outcomes: []core.Outcome{core.Failed(tt.kind, "boom")}}
			sess := newTestSession(t, gen, stage, 3)

			result := sess.Render(context.Background(), testBody, "out.png", render.Params{})

			if result.State != StateFatal {
				t.Fatalf("state = %s, want fatal", result.State)
			}
			if result.Attempts != 1 {
				t.Errorf("attempts = %d, want 1 (no retries on %s)", result.Attempts, tt.kind)
			}
			if got := len(gen.calls); got != 0 {
				t.Errorf("repair must not run for %s failures, saw calls %v", tt.kind, gen.calls)
			}
		})
	}
}

func TestRenderRepairCallFailureIsFatal(t *testing.T) {
	gen := &mockGenerator{draft: testBody, repairErr: errors.New("api down")}
	stage := &mockStage{outcomes: []core.Outcome{syntaxFailure("Parse Error: x")}}
	sess := newTestSession(t, gen, stage, 3)

	result := sess.Render(context.Background(), testBody, "out.png", render.Params{})

	if result.State != StateFatal {
		t.Fatalf("state = %s, want fatal", result.State)
	}
	if !strings.Contains(result.Diagnostic, "api down") {
		t.Errorf("diagnostic should carry the transport error, got %q", result.Diagnostic)
	}
}

func TestRenderCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gen := &mockGenerator{draft: testBody}
	stage := &mockStage{outcomes: []core.Outcome{successOutcome()}}
	sess := newTestSession(t, gen, stage, 3)

	result := sess.Render(ctx, testBody, "out.png", render.Params{})

	if result.State != StateFatal {
		t.Fatalf("state = %s, want fatal on cancelled context", result.State)
	}
	if stage.attempts != 0 {
		t.Errorf("no render attempt should run after cancellation, got %d", stage.attempts)
	}
}

func TestGenerateUsesVerifiedBody(t *testing.T) {
	gen := &mockGenerator{draft: testBody, verify: testBody + "\n// improved"}
	sess := newTestSession(t, gen, &mockStage{outcomes: []core.Outcome{successOutcome()}}, 3)

	body, scenePath, err := sess.Generate(context.Background(), "a red sphere")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(body, "// improved") {
		t.Error("verified body should replace the draft")
	}
	if scenePath == "" || filepath.Ext(scenePath) != ".pov" {
		t.Errorf("scene history path = %q", scenePath)
	}
	if want := []string{"draft", "verify"}; len(gen.calls) != 2 || gen.calls[0] != want[0] || gen.calls[1] != want[1] {
		t.Errorf("calls = %v, want %v", gen.calls, want)
	}
}

func TestGenerateVerifyFailureFallsBackToDraft(t *testing.T) {
	gen := &mockGenerator{draft: testBody, verifyErr: errors.New("verifier down")}
	sess := newTestSession(t, gen, &mockStage{outcomes: []core.Outcome{successOutcome()}}, 3)

	body, _, err := sess.Generate(context.Background(), "a red sphere")
	if err != nil {
		t.Fatalf("verification failure must not be fatal by default: %v", err)
	}
	if body != testBody {
		t.Errorf("body = %q, want the unverified draft", body)
	}
}

func TestGenerateVerifyStrict(t *testing.T) {
	gen := &mockGenerator{draft: testBody, verifyErr: errors.New("verifier down")}
	sess := newTestSession(t, gen, &mockStage{outcomes: []core.Outcome{successOutcome()}}, 3,
		WithVerifyStrict(true))

	if _, _, err := sess.Generate(context.Background(), "a red sphere"); err == nil {
		t.Fatal("strict mode must surface the verification error")
	}
}

func TestGenerateRejectsInvalidPrompt(t *testing.T) {
	gen := &mockGenerator{draft: testBody}
	sess := newTestSession(t, gen, &mockStage{outcomes: []core.Outcome{successOutcome()}}, 3)

	_, _, err := sess.Generate(context.Background(), "x")
	if !errors.Is(err, core.ErrInvalidPrompt) {
		t.Fatalf("err = %v, want ErrInvalidPrompt", err)
	}
	if len(gen.calls) != 0 {
		t.Errorf("no AI call should run for a rejected prompt, got %v", gen.calls)
	}
}

func TestGenerateBalancesTruncatedDraft(t *testing.T) {
	truncated := "camera { location <0,0,-5> }\nlight_source { <1,1,1> color rgb 1 }\nsphere { texture {"
	gen := &mockGenerator{draft: truncated}
	sess := newTestSession(t, gen, &mockStage{outcomes: []core.Outcome{successOutcome()}}, 3)

	body, _, err := sess.Generate(context.Background(), "a textured sphere")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if strings.Count(body, "{") != strings.Count(body, "}") {
		t.Errorf("draft braces not balanced: %q", body)
	}
}

func TestRenderFile(t *testing.T) {
	tests := []struct {
		name      string
		outcome   core.Outcome
		wantState State
	}{
		{"success", successOutcome(), StateSuccess},
		{"syntax failure exhausts without repair", syntaxFailure("Parse Error"), StateExhausted},
		{"system failure is fatal", core.Failed(core.FailureSystem, "no output"), StateFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stage := &mockStage{outcomes: []core.Outcome{tt.outcome}}
			sess := newTestSession(t, nil, stage, 3)

			result := sess.RenderFile(context.Background(), "sphere { <0,0,0>, 1 }", "out.png", render.Params{})

			if result.State != tt.wantState {
				t.Errorf("state = %s, want %s", result.State, tt.wantState)
			}
			if result.Attempts != 1 {
				t.Errorf("attempts = %d, want exactly 1", result.Attempts)
			}
		})
	}
}
