package render

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vampirenirmal/raylm/internal/core"
	"github.com/vampirenirmal/raylm/internal/proc"
)

// fakeRunner simulates the renderer binary. When writeOutput is set it
// creates the +O target before returning, like a successful render would.
type fakeRunner struct {
	result      proc.Result
	err         error
	writeOutput []byte

	gotArgs    []string
	gotTimeout time.Duration
}

func (f *fakeRunner) Run(ctx context.Context, dir string, timeout time.Duration, args ...string) (proc.Result, error) {
	f.gotArgs = args
	f.gotTimeout = timeout
	if f.writeOutput != nil {
		for _, a := range args {
			if strings.HasPrefix(a, "+O") {
				if err := os.WriteFile(strings.TrimPrefix(a, "+O"), f.writeOutput, 0644); err != nil {
					return proc.Result{}, err
				}
			}
		}
	}
	return f.result, f.err
}

func stagePaths(t *testing.T) (scenePath, outputPath string) {
	t.Helper()
	dir := t.TempDir()
	return filepath.Join(dir, "scene.pov"), filepath.Join(dir, "out", "render.png")
}

func TestAttemptSuccess(t *testing.T) {
	runner := &fakeRunner{writeOutput: []byte("PNGDATA")}
	stage := NewStage(runner, nil)
	scenePath, outputPath := stagePaths(t)

	outcome := stage.Attempt(context.Background(), "sphere { <0,0,0>, 1 }", scenePath, outputPath,
		Params{Width: 800, Height: 600, Quality: 9})

	if !outcome.OK {
		t.Fatalf("expected success, got %s: %s", outcome.Kind, outcome.Diagnostic)
	}
	if outcome.ArtifactPath != outputPath {
		t.Errorf("artifact path = %q, want %q", outcome.ArtifactPath, outputPath)
	}
	if outcome.SizeBytes != int64(len("PNGDATA")) {
		t.Errorf("size = %d, want %d", outcome.SizeBytes, len("PNGDATA"))
	}

	data, err := os.ReadFile(scenePath)
	if err != nil {
		t.Fatalf("scene file not written: %v", err)
	}
	if string(data) != "sphere { <0,0,0>, 1 }" {
		t.Errorf("scene file content = %q", data)
	}
}

func TestAttemptArguments(t *testing.T) {
	runner := &fakeRunner{writeOutput: []byte("x")}
	stage := NewStage(runner, nil)
	scenePath, outputPath := stagePaths(t)

	clock := 0.5
	stage.Attempt(context.Background(), "box { 0, 1 }", scenePath, outputPath,
		Params{Width: 1920, Height: 1080, Quality: 11, Clock: &clock, Timeout: 30 * time.Second})

	want := []string{
		"+I" + scenePath,
		"+O" + outputPath,
		"+W1920",
		"+H1080",
		"+Q11",
		"+FN",
		"-D",
		"+A0.3",
		"+K0.5",
	}
	if len(runner.gotArgs) != len(want) {
		t.Fatalf("args = %v, want %v", runner.gotArgs, want)
	}
	for i, a := range want {
		if runner.gotArgs[i] != a {
			t.Errorf("arg[%d] = %q, want %q", i, runner.gotArgs[i], a)
		}
	}
	if runner.gotTimeout != 30*time.Second {
		t.Errorf("timeout = %v, want 30s", runner.gotTimeout)
	}
}

func TestAttemptClassifiesFailures(t *testing.T) {
	tests := []struct {
		name     string
		runner   *fakeRunner
		wantKind core.FailureKind
	}{
		{
			name:     "nonzero exit is a syntax failure",
			runner:   &fakeRunner{result: proc.Result{ExitCode: 1, Stderr: "Parse Error: missing }"}},
			wantKind: core.FailureSyntax,
		},
		{
			name:     "timeout",
			runner:   &fakeRunner{err: proc.ErrTimedOut},
			wantKind: core.FailureTimeout,
		},
		{
			name:     "launch error is a system failure",
			runner:   &fakeRunner{err: os.ErrPermission},
			wantKind: core.FailureSystem,
		},
		{
			name:     "zero exit without output is a system failure",
			runner:   &fakeRunner{},
			wantKind: core.FailureSystem,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stage := NewStage(tt.runner, nil)
			scenePath, outputPath := stagePaths(t)

			outcome := stage.Attempt(context.Background(), "bad scene", scenePath, outputPath,
				Params{Width: 320, Height: 240, Quality: 4})

			if outcome.OK {
				t.Fatal("expected failure")
			}
			if outcome.Kind != tt.wantKind {
				t.Errorf("kind = %s, want %s", outcome.Kind, tt.wantKind)
			}
		})
	}
}

func TestAttemptSyntaxFailureCarriesDiagnostic(t *testing.T) {
	runner := &fakeRunner{result: proc.Result{
		ExitCode: 1,
		Stderr:   "noise\nParse Error: no matching }\nin scene.pov line 12",
	}}
	stage := NewStage(runner, nil)
	scenePath, outputPath := stagePaths(t)

	outcome := stage.Attempt(context.Background(), "bad", scenePath, outputPath,
		Params{Width: 320, Height: 240, Quality: 4})

	if !strings.Contains(outcome.Diagnostic, "Parse Error: no matching }") {
		t.Errorf("diagnostic missing marker line: %q", outcome.Diagnostic)
	}
	if !outcome.Recoverable() {
		t.Error("syntax failure must be recoverable")
	}
}
