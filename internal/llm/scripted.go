package llm

import (
	"context"
	"strings"
	"sync"

	"github.com/cloudwego/eino/schema"
)

// Scripted is a deterministic in-process backend: it answers from a
// fixed table keyed on substrings of the system prompt. Used by tests
// and by dry runs against no backend at all.
type Scripted struct {
	mu sync.Mutex
	// Responses maps a substring of the system prompt to the canned
	// completion; the match occurring earliest in the prompt wins.
	// Fallback answers everything unmatched.
	Responses map[string]string
	Fallback  string
	// Fail, when set, is returned for the next FailCount calls
	// (FailCount < 0 means fail forever).
	Fail      error
	FailCount int

	calls int
}

func (s *Scripted) Model() string { return "scripted" }

// Calls reports how many completions were attempted.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *Scripted) Complete(ctx context.Context, req Request) (*schema.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++

	if err := ctx.Err(); err != nil {
		return nil, Unavailable("scripted", "scripted", err)
	}
	if s.Fail != nil && s.FailCount != 0 {
		if s.FailCount > 0 {
			s.FailCount--
		}
		return nil, s.Fail
	}

	prompt := ""
	for _, m := range req.Messages {
		if m.Role == schema.System {
			prompt += strings.ToLower(m.Content) + "\n"
		}
	}
	// The key occurring earliest in the prompt wins, so role identity
	// (stated up front) beats role names quoted later in histories.
	best, bestIdx := "", -1
	for key := range s.Responses {
		idx := strings.Index(prompt, strings.ToLower(key))
		if idx < 0 {
			continue
		}
		if bestIdx < 0 || idx < bestIdx || (idx == bestIdx && len(key) > len(best)) {
			best, bestIdx = key, idx
		}
	}
	if bestIdx >= 0 {
		return schema.AssistantMessage(s.Responses[best], nil), nil
	}
	if s.Fallback != "" {
		return schema.AssistantMessage(s.Fallback, nil), nil
	}
	return schema.AssistantMessage("No observations.", nil), nil
}
