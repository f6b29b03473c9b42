package agents

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/lumatrade/council/internal/llm"
	"github.com/lumatrade/council/internal/models"
)

var (
	proposalRe   = regexp.MustCompile(`(?i)FINAL TRANSACTION PROPOSAL:\s*\**\s*(BUY|SELL|HOLD)`)
	confidenceRe = regexp.MustCompile(`(?i)confidence[:\s]+([01](?:\.[0-9]+)?)`)
)

// Trader synthesizes briefs, debate and lessons into exactly one
// decision per run. It never returns a nil decision: when the model is
// unreachable it falls back to a degraded hold and reports the cause
// alongside, so strict callers can still fail the run.
type Trader struct {
	client llm.Client
	log    *zap.Logger
}

func NewTrader(client llm.Client, log *zap.Logger) *Trader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Trader{client: client, log: log.With(zap.String("role", "trader"))}
}

func (t *Trader) Decide(ctx context.Context, q models.Query, briefs []*models.AnalystBrief,
	transcript models.DebateTranscript, lessons []string) (*models.Decision, error) {

	decision := &models.Decision{
		ID:        models.NewID(),
		Symbol:    q.Symbol,
		TradeDate: q.TradeDate(),
		Action:    models.ActionHold,
		CreatedAt: time.Now(),
	}

	history := transcript.History()
	if history == "" {
		history = "(no adversarial review performed)"
	}

	tpl := prompt.FromMessages(schema.FString,
		schema.SystemMessage(traderPrompt),
		schema.UserMessage("Make your trading decision for {ticker} now."),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"ticker":     q.Symbol,
		"trade_date": q.TradeDate(),
		"briefs":     FormatBriefs(briefs),
		"history":    history,
		"lessons":    FormatLessons(lessons),
	})
	if err != nil {
		return degradeDecision(decision, err), errors.Wrap(err, "trader: format prompt")
	}

	reply, err := t.client.Complete(ctx, llm.Request{Messages: msgs})
	if err != nil && errors.Is(err, llm.ErrBackendMalformed) {
		// one re-prompt, then degrade
		msgs = append(msgs, schema.UserMessage("Your previous answer was unusable. State your reasoning and end with FINAL TRANSACTION PROPOSAL: **BUY/HOLD/SELL**"))
		reply, err = t.client.Complete(ctx, llm.Request{Messages: msgs})
	}
	if err != nil {
		return degradeDecision(decision, err), errors.Wrap(err, "trader")
	}

	content := strings.TrimSpace(reply.Content)
	decision.Rationale = content
	decision.Action = parseProposal(content)
	decision.Confidence = parseConfidence(content)

	if m := proposalRe.FindString(content); m == "" {
		decision.Degraded = true
		decision.DegradedReasons = append(decision.DegradedReasons,
			"no explicit transaction proposal in trader output; defaulted from rationale scan")
	}
	return decision, nil
}

// parseProposal extracts the action marker, falling back to a keyword
// scan and finally to hold.
func parseProposal(content string) models.Action {
	if m := proposalRe.FindStringSubmatch(content); m != nil {
		action, _ := models.ParseAction(m[1])
		return action
	}
	lower := strings.ToLower(content)
	switch {
	case strings.Contains(lower, "recommend buying") || strings.Contains(lower, "recommendation: buy"):
		return models.ActionBuy
	case strings.Contains(lower, "recommend selling") || strings.Contains(lower, "recommendation: sell"):
		return models.ActionSell
	}
	return models.ActionHold
}

func parseConfidence(content string) float64 {
	if m := confidenceRe.FindStringSubmatch(content); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && v >= 0 && v <= 1 {
			return v
		}
	}
	return 0.5
}

func degradeDecision(d *models.Decision, err error) *models.Decision {
	d.Degraded = true
	d.DegradedReasons = append(d.DegradedReasons, err.Error())
	if d.Rationale == "" {
		d.Rationale = "Defaulting to hold: trading synthesis unavailable (" + err.Error() + ")"
	}
	d.Action = models.ActionHold
	return d
}
