package agents

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/lumatrade/council/internal/llm"
	"github.com/lumatrade/council/internal/models"
)

// Researcher is one side of the adversarial debate pair. Bull and bear
// share the implementation; only the stance differs.
type Researcher struct {
	stance models.Speaker
	client llm.Client
	log    *zap.Logger
}

func NewResearcher(stance models.Speaker, client llm.Client, log *zap.Logger) *Researcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Researcher{stance: stance, client: client, log: log.With(zap.String("stance", string(stance)))}
}

func (r *Researcher) Stance() models.Speaker { return r.stance }

// Argue produces this side's next debate turn, responding to the
// opponent's latest argument.
func (r *Researcher) Argue(ctx context.Context, q models.Query, briefs []*models.AnalystBrief,
	transcript models.DebateTranscript, lessons []string, round int) (*models.DebateTurn, error) {

	system := bullPrompt
	if r.stance == models.SpeakerBear {
		system = bearPrompt
	}

	lastArgument := "(none yet; open the debate)"
	respondsTo := -1
	if last := transcript.Last(); last != nil {
		lastArgument = last.Content
		respondsTo = len(transcript) - 1
	}

	tpl := prompt.FromMessages(schema.FString,
		schema.SystemMessage(system),
		schema.UserMessage("Round {round}: deliver your next argument on {ticker}."),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"ticker":        q.Symbol,
		"briefs":        FormatBriefs(briefs),
		"history":       transcript.History(),
		"last_argument": lastArgument,
		"lessons":       FormatLessons(lessons),
		"round":         round,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "%s researcher: format prompt", r.stance)
	}

	reply, err := r.client.Complete(ctx, llm.Request{Messages: msgs})
	if err != nil {
		return nil, errors.Wrapf(err, "%s researcher", r.stance)
	}

	return &models.DebateTurn{
		Round:      round,
		Speaker:    r.stance,
		Content:    strings.TrimSpace(reply.Content),
		RespondsTo: respondsTo,
	}, nil
}

// FormatBriefs renders analyst briefs for prompt inclusion, flagging
// degraded ones so downstream roles can reason about missing data.
func FormatBriefs(briefs []*models.AnalystBrief) string {
	if len(briefs) == 0 {
		return "(no analyst reports available)"
	}
	var b strings.Builder
	for _, brief := range briefs {
		b.WriteString("### ")
		b.WriteString(brief.Role)
		b.WriteString(" analyst")
		if brief.Degraded {
			b.WriteString(" (degraded: ")
			b.WriteString(brief.DegradedReason)
			b.WriteString(")")
		}
		b.WriteString("\n")
		b.WriteString(brief.Content)
		b.WriteString("\n\n")
	}
	return strings.TrimSpace(b.String())
}
