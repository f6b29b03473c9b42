package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/lumatrade/council/internal/config"
	"github.com/lumatrade/council/internal/llm"
	"github.com/lumatrade/council/internal/models"
)

// RiskManager adjudicates the trader's decision against a static risk
// policy. It is stateless across runs: only the current decision and
// the policy matter. Overrides are always toward the more conservative
// action, and the trader's rationale is always retained.
type RiskManager struct {
	client llm.Client
	policy config.RiskPolicy
	log    *zap.Logger
}

func NewRiskManager(client llm.Client, policy config.RiskPolicy, log *zap.Logger) *RiskManager {
	if log == nil {
		log = zap.NewNop()
	}
	return &RiskManager{client: client, policy: policy, log: log.With(zap.String("role", "risk_manager"))}
}

func (m *RiskManager) Review(ctx context.Context, q models.Query, d *models.Decision) *models.FinalDecision {
	final := &models.FinalDecision{
		Decision:       *d,
		OriginalAction: d.Action,
	}

	switch {
	case m.policy.Restricted(q.Symbol) && d.Action != models.ActionHold:
		final.Overridden = true
		final.OverrideReason = fmt.Sprintf("symbol %s is restricted by risk policy; forcing hold", q.Symbol)
		final.Decision.Action = models.ActionHold
	case d.Action != models.ActionHold && d.Confidence < m.policy.MinConfidence:
		final.Overridden = true
		final.OverrideReason = fmt.Sprintf("confidence %.2f below policy minimum %.2f; tempering %s to hold",
			d.Confidence, m.policy.MinConfidence, d.Action)
		final.Decision.Action = models.ActionHold
	}

	// Advisory commentary only; its failure never affects the outcome.
	if m.client != nil {
		if commentary := m.consult(ctx, q, d); commentary != "" {
			final.Decision.Rationale = final.Decision.Rationale + "\n\nRisk review: " + commentary
		}
	}

	if final.Overridden {
		m.log.Info("decision overridden",
			zap.String("symbol", q.Symbol),
			zap.String("from", string(final.OriginalAction)),
			zap.String("to", string(final.Decision.Action)),
			zap.String("reason", final.OverrideReason))
	}
	return final
}

func (m *RiskManager) consult(ctx context.Context, q models.Query, d *models.Decision) string {
	tpl := prompt.FromMessages(schema.FString,
		schema.SystemMessage(riskPrompt),
		schema.UserMessage("Provide your risk commentary."),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"ticker":     q.Symbol,
		"trade_date": q.TradeDate(),
		"action":     string(d.Action),
		"confidence": fmt.Sprintf("%.2f", d.Confidence),
		"rationale":  d.Rationale,
	})
	if err != nil {
		return ""
	}
	reply, err := m.client.Complete(ctx, llm.Request{Messages: msgs})
	if err != nil {
		m.log.Warn("risk commentary unavailable", zap.Error(err))
		return ""
	}
	return strings.TrimSpace(reply.Content)
}
