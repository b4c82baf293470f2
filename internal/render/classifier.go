package render

import "strings"

// POV-Ray failure log markers. Warnings never start or extend a capture
// window.
const (
	markerParseError = "Parse Error"
	markerFatalError = "Fatal error"
	markerWarning    = "Parse Warning"
)

const (
	// windowCap bounds the diagnostic window. Renderer logs are long and
	// noisy; only the tail end of a failure matters for the repair prompt,
	// and the cap keeps repair context size constant across attempts.
	windowCap = 10

	// fallbackTail is used when no marker is recognized in the log.
	fallbackTail = 20
)

// ExtractDiagnostic scans a renderer failure log and returns the smallest
// relevant window: the first marker line plus up to nine following lines.
// Marker lines are always captured, even once the window is full. Without
// any marker, the last twenty lines are returned as a heuristic default.
func ExtractDiagnostic(log string) string {
	lines := strings.Split(log, "\n")

	var window []string
	capture := false
	for _, line := range lines {
		switch {
		case strings.Contains(line, markerParseError) || strings.Contains(line, markerFatalError):
			window = append(window, line)
			capture = true
		case strings.Contains(line, markerWarning):
			continue
		case capture && len(window) < windowCap:
			window = append(window, line)
		}
	}

	if len(window) > 0 {
		return strings.Join(window, "\n")
	}

	if len(lines) > fallbackTail {
		lines = lines[len(lines)-fallbackTail:]
	}
	return strings.Join(lines, "\n")
}
