package graph

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/lumatrade/council/internal/agents"
	"github.com/lumatrade/council/internal/llm"
	"github.com/lumatrade/council/internal/models"
)

// Debate states. Bull always opens; bull and bear alternate; the bear
// turn closes a round. rounds=0 concludes immediately with an empty
// transcript.
type debateState int

const (
	stateAwaitingOpening debateState = iota
	stateBullTurn
	stateBearTurn
	stateConcluded
)

type debate struct {
	rounds       int
	bull, bear   *agents.Researcher
	maxTurnRunes int
	strict       bool
	log          *zap.Logger
}

// run drives the state machine to conclusion and returns a transcript
// of exactly 2*rounds turns. In non-strict mode a failed turn becomes
// a flagged placeholder so the alternation invariant holds; the
// absorbed errors are returned for the trace.
func (d *debate) run(ctx context.Context, q models.Query, briefs []*models.AnalystBrief,
	lessons []string) (models.DebateTranscript, []string, error) {

	transcript := models.DebateTranscript{}
	var absorbed []string

	state := stateAwaitingOpening
	if d.rounds == 0 {
		state = stateConcluded
	}

	round := 1
	for state != stateConcluded {
		var (
			speaker *agents.Researcher
			next    debateState
		)
		switch state {
		case stateAwaitingOpening, stateBullTurn:
			speaker, next = d.bull, stateBearTurn
		case stateBearTurn:
			speaker, next = d.bear, stateBullTurn
		}

		turn, err := speaker.Argue(ctx, q, briefs, transcript, lessons, round)
		if err != nil {
			if d.strict {
				return transcript, absorbed, err
			}
			msg := fmt.Sprintf("%s researcher round %d: %v", speaker.Stance(), round, err)
			absorbed = append(absorbed, msg)
			d.log.Warn("debate turn degraded", zap.String("stance", string(speaker.Stance())),
				zap.Int("round", round), zap.Error(err))
			turn = &models.DebateTurn{
				Round:      round,
				Speaker:    speaker.Stance(),
				Content:    fmt.Sprintf("(argument unavailable: %v)", err),
				RespondsTo: len(transcript) - 1,
			}
		}

		if content, cut := llm.Truncate(turn.Content, d.maxTurnRunes); cut {
			turn.Content = content + "\n[truncated: turn exceeded length budget]"
			turn.Truncated = true
		}
		transcript = append(transcript, *turn)

		if state == stateBearTurn {
			// bear closes the round
			if round >= d.rounds {
				next = stateConcluded
			} else {
				round++
			}
		}
		state = next
	}
	return transcript, absorbed, nil
}
