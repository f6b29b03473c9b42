package models

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Query is the immutable input to one orchestration run: an instrument
// symbol and the date up to which information may be used.
type Query struct {
	Symbol   string    `json:"symbol"`
	AsOfDate time.Time `json:"as_of_date"`
}

func NewQuery(symbol, date string) (Query, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return Query{}, errors.New("symbol must not be empty")
	}
	parsed, err := time.Parse("2006-01-02", date)
	if err != nil {
		return Query{}, errors.Wrapf(err, "invalid trade date %q", date)
	}
	return Query{Symbol: symbol, AsOfDate: parsed}, nil
}

// TradeDate returns the as-of date in the wire format used everywhere.
func (q Query) TradeDate() string {
	return q.AsOfDate.Format("2006-01-02")
}

// ToolCall records one tool invocation made by an analyst, including a
// failed one. A failed call carries Err and an empty Result; it is part
// of the brief, never a run-level failure.
type ToolCall struct {
	Tool   string `json:"tool"`
	Args   string `json:"args"`
	Result string `json:"result,omitempty"`
	Err    string `json:"err,omitempty"`
}

// AnalystBrief is the structured report one analyst produces for a run.
// Immutable once the analyst returns it.
type AnalystBrief struct {
	Role           string     `json:"role"`
	Symbol         string     `json:"symbol"`
	TradeDate      string     `json:"trade_date"`
	Content        string     `json:"content"`
	ToolCalls      []ToolCall `json:"tool_calls,omitempty"`
	Degraded       bool       `json:"degraded,omitempty"`
	DegradedReason string     `json:"degraded_reason,omitempty"`
}

type Speaker string

const (
	SpeakerBull Speaker = "bull"
	SpeakerBear Speaker = "bear"
)

// Label returns the history prefix used in debate transcripts.
func (s Speaker) Label() string {
	if s == SpeakerBear {
		return "Bear Analyst"
	}
	return "Bull Analyst"
}

// DebateTurn is one utterance in the bull/bear debate. RespondsTo is
// the index of the turn being answered, -1 for an opening statement.
type DebateTurn struct {
	Round      int     `json:"round"`
	Speaker    Speaker `json:"speaker"`
	Content    string  `json:"content"`
	RespondsTo int     `json:"responds_to"`
	Truncated  bool    `json:"truncated,omitempty"`
}

// DebateTranscript is the append-only ordered record of debate turns.
type DebateTranscript []DebateTurn

// History renders the transcript as labeled dialogue for prompting.
func (t DebateTranscript) History() string {
	var b strings.Builder
	for _, turn := range t {
		b.WriteString(turn.Speaker.Label())
		b.WriteString(": ")
		b.WriteString(turn.Content)
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

// Last returns the most recent turn, or nil for an empty transcript.
func (t DebateTranscript) Last() *DebateTurn {
	if len(t) == 0 {
		return nil
	}
	return &t[len(t)-1]
}
