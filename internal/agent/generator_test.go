package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/vampirenirmal/raylm/internal/core"
)

func TestGeneratorRoles(t *testing.T) {
	mock := NewMockClient()
	mock.DraftResponse = "```povray\nsphere { <0,0,0>, 1 }\n```"
	mock.VerifyResponse = "sphere { <0,0,0>, 2 }"
	mock.RepairResponse = "sphere { <0,0,0>, 3 }"
	g := NewGenerator(mock, "gen-model", "verify-model", nil)
	ctx := context.Background()

	draft, err := g.Draft(ctx, "a sphere")
	if err != nil {
		t.Fatalf("Draft: %v", err)
	}
	if draft != "sphere { <0,0,0>, 1 }" {
		t.Errorf("draft not cleaned: %q", draft)
	}

	verified, err := g.Verify(ctx, "a sphere", draft)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if verified != "sphere { <0,0,0>, 2 }" {
		t.Errorf("verified = %q", verified)
	}

	repaired, err := g.Repair(ctx, verified, "Parse Error: x")
	if err != nil {
		t.Fatalf("Repair: %v", err)
	}
	if repaired != "sphere { <0,0,0>, 3 }" {
		t.Errorf("repaired = %q", repaired)
	}

	want := []string{"draft", "verify", "repair"}
	if len(mock.Calls) != 3 {
		t.Fatalf("calls = %v, want %v", mock.Calls, want)
	}
	for i, w := range want {
		if mock.Calls[i] != w {
			t.Errorf("call[%d] = %q, want %q", i, mock.Calls[i], w)
		}
	}
}

func TestGeneratorWrapsTransportErrors(t *testing.T) {
	mock := NewMockClient()
	mock.Err = core.ErrServerError
	g := NewGenerator(mock, "gen", "verify", nil)
	ctx := context.Background()

	for name, call := range map[string]func() error{
		"draft":  func() error { _, err := g.Draft(ctx, "p"); return err },
		"verify": func() error { _, err := g.Verify(ctx, "p", "d"); return err },
		"repair": func() error { _, err := g.Repair(ctx, "b", "d"); return err },
	} {
		err := call()
		var terr *core.TransportError
		if !errors.As(err, &terr) {
			t.Errorf("%s: err = %v, want TransportError", name, err)
			continue
		}
		if terr.Op != name {
			t.Errorf("Op = %q, want %q", terr.Op, name)
		}
		if !errors.Is(err, core.ErrServerError) {
			t.Errorf("%s: cause not preserved: %v", name, err)
		}
	}
}

func TestCleanCode(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bare code untouched", "sphere { <0,0,0>, 1 }", "sphere { <0,0,0>, 1 }"},
		{"plain fence", "```\nsphere { 0, 1 }\n```", "sphere { 0, 1 }"},
		{"povray fence", "```povray\nsphere { 0, 1 }\n```", "sphere { 0, 1 }"},
		{"pov fence", "```pov\nsphere { 0, 1 }\n```", "sphere { 0, 1 }"},
		{"trailing fence with spaces", "```\nsphere { 0, 1 }\n```  ", "sphere { 0, 1 }"},
		{"surrounding whitespace", "\n\n  sphere { 0, 1 }\n\n", "sphere { 0, 1 }"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanCode(tt.input); got != tt.want {
				t.Errorf("CleanCode(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
