package graph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/lumatrade/council/internal/llm"
	"github.com/lumatrade/council/internal/models"
)

const reflectionPrompt = `You are reviewing a past trading decision against its realized outcome.
Decision: {action} {ticker} on {trade_date} (confidence {confidence}).
Rationale at the time:
{rationale}
Realized return since then: {realized_return}
State in a few sentences the key lesson for future decisions on situations like this:
what the reasoning got right or wrong, and what should be weighted differently next time.`

// Reflect compares a journaled decision against its realized return
// and appends exactly one lesson to the memory store. It is an
// explicit, caller-triggered operation, never part of Propagate.
func (g *TradingGraph) Reflect(ctx context.Context, decisionID string, realizedReturn float64) (*models.MemoryRecord, error) {
	if g.store == nil {
		return nil, errors.New("reflect: no memory store configured")
	}
	fd, err := g.store.DecisionByID(ctx, decisionID)
	if err != nil {
		return nil, errors.Wrapf(err, "reflect: decision %s", decisionID)
	}

	lesson := g.composeLesson(ctx, fd, realizedReturn)

	rec := models.MemoryRecord{
		ID:             models.NewID(),
		DecisionID:     fd.Decision.ID,
		Symbol:         fd.Decision.Symbol,
		TradeDate:      fd.Decision.TradeDate,
		Snapshot:       decisionSnapshot(fd),
		RealizedReturn: realizedReturn,
		Lesson:         lesson,
		CreatedAt:      time.Now(),
	}
	if err := g.store.AppendMemory(ctx, rec); err != nil {
		return nil, errors.Wrap(err, "reflect: append memory")
	}

	g.log.Info("lesson recorded",
		zap.String("decision", fd.Decision.ID),
		zap.String("symbol", fd.Decision.Symbol),
		zap.Float64("realized_return", realizedReturn))
	return &rec, nil
}

// ReflectAndRemember attributes a realized return to the most recently
// journaled decision. The resolved id is logged so a misattribution is
// visible; prefer Reflect with an explicit id.
func (g *TradingGraph) ReflectAndRemember(ctx context.Context, realizedReturn float64) (*models.MemoryRecord, error) {
	if g.store == nil {
		return nil, errors.New("reflect: no memory store configured")
	}
	fd, err := g.store.LatestDecision(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "reflect: resolve latest decision")
	}
	g.log.Info("reflecting on most recent decision", zap.String("decision", fd.Decision.ID))
	return g.Reflect(ctx, fd.Decision.ID, realizedReturn)
}

// composeLesson asks the deep tier for a qualitative lesson, falling
// back to a deterministic one so reflection never fails on a dead
// backend.
func (g *TradingGraph) composeLesson(ctx context.Context, fd *models.FinalDecision, realizedReturn float64) string {
	d := fd.Decision
	tpl := prompt.FromMessages(schema.FString,
		schema.SystemMessage(reflectionPrompt),
		schema.UserMessage("State the lesson."),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"ticker":          d.Symbol,
		"trade_date":      d.TradeDate,
		"action":          string(d.Action),
		"confidence":      fmt.Sprintf("%.2f", d.Confidence),
		"rationale":       d.Rationale,
		"realized_return": fmt.Sprintf("%.2f", realizedReturn),
	})
	if err == nil {
		if reply, cerr := g.binding.Deep.Complete(ctx, llm.Request{Messages: msgs}); cerr == nil {
			if lesson := strings.TrimSpace(reply.Content); lesson != "" {
				return lesson
			}
		} else {
			g.log.Warn("reflection model unavailable, using fallback lesson", zap.Error(cerr))
		}
	}
	return fallbackLesson(fd, realizedReturn)
}

func fallbackLesson(fd *models.FinalDecision, realizedReturn float64) string {
	d := fd.Decision
	verdict := "the realized outcome was consistent with the committed direction"
	if (d.Action == models.ActionBuy && realizedReturn < 0) ||
		(d.Action == models.ActionSell && realizedReturn > 0) {
		verdict = "the realized outcome contradicted the committed direction; weight the opposing case more heavily in similar setups"
	}
	return fmt.Sprintf("Decision %s on %s (%s, confidence %.2f) realized a return of %.2f: %s.",
		string(d.Action), d.Symbol, d.TradeDate, d.Confidence, realizedReturn, verdict)
}

func decisionSnapshot(fd *models.FinalDecision) string {
	rationale, _ := llm.Truncate(fd.Decision.Rationale, 2000)
	snapshot := fmt.Sprintf("action=%s confidence=%.2f", fd.Decision.Action, fd.Decision.Confidence)
	if fd.Overridden {
		snapshot += fmt.Sprintf(" (overridden from %s: %s)", fd.OriginalAction, fd.OverrideReason)
	}
	return snapshot + "\n" + rationale
}
