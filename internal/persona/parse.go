package persona

import (
	"fmt"
	"strings"
)

// Markers are the sentinel tokens a seq2seq model emits around its answer.
type Markers struct {
	Start string
	End   string
}

// DefaultMarkers match the decoded output of T5-family models.
var DefaultMarkers = Markers{Start: "<pad>", End: "</s"}

// Parse extracts the answer from raw generated text: the text after the first
// start marker, up to the next start marker or the end marker, trimmed.
func (m Markers) Parse(raw string) (string, error) {
	parts := strings.Split(raw, m.Start)
	if len(parts) < 2 {
		return "", fmt.Errorf("%w: missing %q", ErrMalformedOutput, m.Start)
	}

	answer := parts[1]
	if m.End != "" {
		answer, _, _ = strings.Cut(answer, m.End)
	}

	return strings.TrimSpace(answer), nil
}
