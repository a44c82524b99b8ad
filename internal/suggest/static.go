package suggest

import (
	"context"
	"hash/fnv"
)

// Compile-time interface check
var _ Suggester = (*Static)(nil)

// Static serves canned coaching lines when no OpenAI key is configured.
// Selection is a stable hash of the prompt so repeated nudges for the same
// task carry the same line.
type Static struct{}

var staticLines = []string{
	"Break it into a ten-minute first step and start there.",
	"Pick the smallest piece you can finish before your next break.",
	"Block twenty-five minutes, silence notifications, and begin.",
	"Write down the very next action, then do only that.",
	"Start badly if you must; momentum beats polish.",
}

// NewStatic creates the fallback suggester.
func NewStatic() *Static {
	return &Static{}
}

// Suggest returns a canned line keyed by the prompt. Never fails.
func (s *Static) Suggest(ctx context.Context, prompt string) (string, error) {
	h := fnv.New32a()
	h.Write([]byte(prompt))
	return staticLines[int(h.Sum32())%len(staticLines)], nil
}

// ModelName identifies the fallback in health output.
func (s *Static) ModelName() string {
	return "static"
}
