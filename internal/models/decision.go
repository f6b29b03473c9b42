package models

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Action is the closed set of trade recommendations.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

// ParseAction maps free-form model output onto an Action. The second
// return reports whether the input named a known action at all.
func ParseAction(s string) (Action, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy", "long":
		return ActionBuy, true
	case "sell", "short":
		return ActionSell, true
	case "hold", "neutral":
		return ActionHold, true
	}
	return ActionHold, false
}

// MoreConservativeThan reports whether a is a strictly safer stance
// than b. hold < buy/sell; nothing is safer than hold.
func (a Action) MoreConservativeThan(b Action) bool {
	return a == ActionHold && b != ActionHold
}

// Decision is the trader's synthesis: exactly one per run.
type Decision struct {
	ID              string    `json:"id"`
	Symbol          string    `json:"symbol"`
	TradeDate       string    `json:"trade_date"`
	Action          Action    `json:"action"`
	Confidence      float64   `json:"confidence"`
	Rationale       string    `json:"rationale"`
	Degraded        bool      `json:"degraded,omitempty"`
	DegradedReasons []string  `json:"degraded_reasons,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// FinalDecision is the decision after risk review. The trader's
// original action and rationale are always retained, whether or not
// the reviewer overrode the action.
type FinalDecision struct {
	Decision       Decision `json:"decision"`
	Overridden     bool     `json:"overridden"`
	OverrideReason string   `json:"override_reason,omitempty"`
	OriginalAction Action   `json:"original_action"`
}

// MemoryRecord links a past decision to its realized outcome. Records
// are append-only: written once by reflection, never mutated.
type MemoryRecord struct {
	ID             string    `json:"id"`
	DecisionID     string    `json:"decision_id"`
	Symbol         string    `json:"symbol"`
	TradeDate      string    `json:"trade_date"`
	Snapshot       string    `json:"snapshot"`
	RealizedReturn float64   `json:"realized_return"`
	Lesson         string    `json:"lesson"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewID returns a lexicographically sortable unique identifier, used
// for decisions, runs and memory records.
func NewID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}
