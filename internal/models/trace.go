package models

import "time"

// RunTrace is the full audit record of one orchestration run: every
// brief, every debate turn, the trader's decision and the reviewed
// final decision, plus the absorbed errors that degraded the run.
type RunTrace struct {
	ID         string           `json:"id"`
	Symbol     string           `json:"symbol"`
	TradeDate  string           `json:"trade_date"`
	Briefs     []*AnalystBrief  `json:"briefs"`
	Transcript DebateTranscript `json:"transcript"`
	Decision   *Decision        `json:"decision,omitempty"`
	Final      *FinalDecision   `json:"final,omitempty"`
	ModelCalls int              `json:"model_calls"`
	Errors     []string         `json:"errors,omitempty"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
}

func NewRunTrace(q Query) *RunTrace {
	return &RunTrace{
		ID:        NewID(),
		Symbol:    q.Symbol,
		TradeDate: q.TradeDate(),
		StartedAt: time.Now(),
	}
}

// RecordError appends an absorbed failure to the trace. These are the
// degradations a non-strict run survived.
func (t *RunTrace) RecordError(msg string) {
	t.Errors = append(t.Errors, msg)
}
