package llm

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"
)

// Tier names a reasoning cost/quality level. Each tier is bound to one
// backend model at construction and the binding is fixed for a run.
type Tier int

const (
	TierQuick Tier = iota
	TierDeep
)

func (t Tier) String() string {
	if t == TierDeep {
		return "deep"
	}
	return "quick"
}

// Request is one completion call. Tools, when present, are offered to
// the model for function calling.
type Request struct {
	Messages  []*schema.Message
	Tools     []*schema.ToolInfo
	MaxTokens int
}

// Client is the uniform text-completion surface every role talks to.
// Implementations fail with *BackendError; they have no side effects
// beyond the network call.
type Client interface {
	Complete(ctx context.Context, req Request) (*schema.Message, error)
	Model() string
}

// Binding fixes the quick and deep tiers to concrete clients.
type Binding struct {
	Quick Client
	Deep  Client
}

func (b *Binding) For(t Tier) Client {
	if t == TierDeep {
		return b.Deep
	}
	return b.Quick
}

// EstimateTokens is the coarse prompt-budget heuristic used for the
// client-side overflow guard: ~4 bytes per token.
func EstimateTokens(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		total += len(m.Content)
		for _, tc := range m.ToolCalls {
			total += len(tc.Function.Arguments) + len(tc.Function.Name)
		}
	}
	return total / 4
}

// Truncate cuts s at maxRunes and reports whether anything was cut.
func Truncate(s string, maxRunes int) (string, bool) {
	if maxRunes <= 0 || utf8.RuneCountInString(s) <= maxRunes {
		return s, false
	}
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= maxRunes {
		return string(runes), false
	}
	return string(runes[:maxRunes]), true
}
