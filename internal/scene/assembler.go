package scene

import (
	"regexp"
	"strconv"
	"strings"
)

// preamble is the fixed head of every renderable document: version, standard
// includes and global settings. The AI generates only the body and must never
// redefine any of this.
const preamble = `#version 3.7;

// --- Standard Includes ---
#include "colors.inc"
#include "textures.inc"
#include "glass.inc"
#include "metals.inc"
#include "golds.inc"
#include "stones.inc"
#include "woods.inc"
#include "shapes.inc"

global_settings {
    assumed_gamma 1.0
    max_trace_level 20
}
`

const bodyMarker = "// --- AI Generated Content Below ---"

var clockDeclRe = regexp.MustCompile(`(?i)#declare\s+Clock\s*=\s*[^;]+;`)

// Assembler wraps AI-produced scene bodies into complete renderable
// documents. The preamble is owned here and is prepended verbatim.
type Assembler struct{}

// NewAssembler creates an Assembler.
func NewAssembler() *Assembler {
	return &Assembler{}
}

// Assemble produces the full document text for a body.
func (a *Assembler) Assemble(body string) string {
	var b strings.Builder
	b.WriteString(preamble)
	b.WriteString("\n")
	b.WriteString(bodyMarker)
	b.WriteString("\n")
	b.WriteString(strings.TrimRight(body, "\n"))
	b.WriteString("\n")
	return b.String()
}

// AssembleFrame produces the document for one animation frame, with the clock
// value injected into the body.
func (a *Assembler) AssembleFrame(body string, clock float64) string {
	return a.Assemble(InjectClock(body, clock))
}

// InjectClock places a clock declaration into a scene body. The fallback
// order is fixed: replace an existing declaration, else insert after the
// first blank line, else prepend. Re-running injection on an already-injected
// body yields the identical body with exactly one declaration.
func InjectClock(body string, clock float64) string {
	decl := "#declare Clock = " + strconv.FormatFloat(clock, 'g', -1, 64) + ";"

	if clockDeclRe.MatchString(body) {
		return clockDeclRe.ReplaceAllString(body, decl)
	}

	if idx := strings.Index(body, "\n\n"); idx >= 0 {
		return body[:idx+2] + decl + "\n" + body[idx+2:]
	}

	return decl + "\n" + body
}
