package persona

import "strings"

// BuildPrompt joins prompt fragments with newlines, in order.
func BuildPrompt(fragments ...string) string {
	return strings.Join(fragments, "\n")
}
