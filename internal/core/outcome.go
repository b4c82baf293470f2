package core

import "time"

// FailureKind classifies a render or encode failure. Only FailureSyntax is
// eligible for AI repair; the other kinds terminate the session immediately.
type FailureKind int

const (
	FailureSyntax FailureKind = iota
	FailureSystem
	FailureTimeout
)

func (k FailureKind) String() string {
	switch k {
	case FailureSyntax:
		return "syntax"
	case FailureSystem:
		return "system"
	case FailureTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Outcome is the tagged result of one render attempt. It is either a success
// with an artifact or a classified failure with a diagnostic window, never
// both.
type Outcome struct {
	OK           bool
	ArtifactPath string
	SizeBytes    int64
	Elapsed      time.Duration

	Kind       FailureKind
	Diagnostic string
}

// Rendered builds a success outcome.
func Rendered(artifactPath string, sizeBytes int64, elapsed time.Duration) Outcome {
	return Outcome{OK: true, ArtifactPath: artifactPath, SizeBytes: sizeBytes, Elapsed: elapsed}
}

// Failed builds a failure outcome of the given kind.
func Failed(kind FailureKind, diagnostic string) Outcome {
	return Outcome{Kind: kind, Diagnostic: diagnostic}
}

// Recoverable reports whether the outcome may be fed back into the repair
// loop. Timeouts and system failures are assumed unrepairable by changing the
// scene body.
func (o Outcome) Recoverable() bool {
	return !o.OK && o.Kind == FailureSyntax
}
