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
	"github.com/lumatrade/council/internal/tools"
)

// The closed set of analyst kinds. Variant identity is static
// configuration, not runtime dispatch.
const (
	RoleMarket       = "market"
	RoleSocial       = "social"
	RoleNews         = "news"
	RoleFundamentals = "fundamentals"
)

// AnalystRoles is the fixed analyst set, in trace order.
var AnalystRoles = []string{RoleMarket, RoleSocial, RoleNews, RoleFundamentals}

var analystTools = map[string]bool{
	RoleMarket: true,
	RoleSocial: true,
	RoleNews:   true,
}

// Analyst is one data-gathering role. Analysts share no mutable state
// and only read from the memory store, so the graph may run them
// concurrently.
type Analyst struct {
	role     string
	client   llm.Client
	registry *tools.Registry
	log      *zap.Logger
}

func NewAnalyst(role string, client llm.Client, registry *tools.Registry, log *zap.Logger) *Analyst {
	if log == nil {
		log = zap.NewNop()
	}
	return &Analyst{role: role, client: client, registry: registry, log: log.With(zap.String("role", role))}
}

func (a *Analyst) Role() string { return a.role }

// Analyze produces this analyst's brief. A failed tool call is noted
// inline in the brief; a failed model call yields a degraded brief and
// the error, for the graph to absorb or escalate.
func (a *Analyst) Analyze(ctx context.Context, q models.Query, lessons []string) (*models.AnalystBrief, error) {
	brief := &models.AnalystBrief{
		Role:      a.role,
		Symbol:    q.Symbol,
		TradeDate: q.TradeDate(),
	}

	tpl := prompt.FromMessages(schema.FString,
		schema.SystemMessage(collaborationPreamble),
		schema.SystemMessage(analystPrompts[a.role]),
		schema.UserMessage("Proceed with your analysis of {ticker} for {trade_date}."),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"ticker":     q.Symbol,
		"trade_date": q.TradeDate(),
		"lessons":    FormatLessons(lessons),
	})
	if err != nil {
		return degradeBrief(brief, err), errors.Wrapf(err, "%s analyst: format prompt", a.role)
	}

	var toolInfos []*schema.ToolInfo
	if a.registry != nil && analystTools[a.role] {
		toolInfos = a.registry.Infos()
	}

	reply, err := a.complete(ctx, llm.Request{Messages: msgs, Tools: toolInfos})
	if err != nil {
		return degradeBrief(brief, err), errors.Wrapf(err, "%s analyst", a.role)
	}

	// One bounded tool round: execute whatever the model asked for,
	// report results (or failures) back, then force a text answer.
	if len(reply.ToolCalls) > 0 {
		msgs = append(msgs, reply)
		for _, tc := range reply.ToolCalls {
			call := models.ToolCall{Tool: tc.Function.Name, Args: tc.Function.Arguments}
			result, ferr := a.registry.Fetch(ctx, tc.Function.Name, tc.Function.Arguments)
			content := result
			if ferr != nil {
				call.Err = ferr.Error()
				content = "tool call failed: " + ferr.Error() + ". Reason about the missing data instead."
			} else {
				call.Result = result
			}
			brief.ToolCalls = append(brief.ToolCalls, call)
			msgs = append(msgs, schema.ToolMessage(content, tc.ID))
		}

		reply, err = a.complete(ctx, llm.Request{Messages: msgs})
		if err != nil {
			return degradeBrief(brief, err), errors.Wrapf(err, "%s analyst", a.role)
		}
	}

	brief.Content = strings.TrimSpace(reply.Content)
	if brief.Content == "" {
		brief.Content = "(no analysis produced)"
		brief.Degraded = true
		brief.DegradedReason = "empty model output"
	}
	return brief, nil
}

// complete issues one model call, allowing a single re-prompt when the
// backend answers with unusable output.
func (a *Analyst) complete(ctx context.Context, req llm.Request) (*schema.Message, error) {
	reply, err := a.client.Complete(ctx, req)
	if err == nil || !errors.Is(err, llm.ErrBackendMalformed) {
		return reply, err
	}

	a.log.Warn("malformed output, re-prompting once", zap.Error(err))
	retry := req
	retry.Messages = append(append([]*schema.Message{}, req.Messages...),
		schema.UserMessage("Your previous answer was unusable. Respond again in plain text."))
	retry.Tools = nil
	return a.client.Complete(ctx, retry)
}

func degradeBrief(brief *models.AnalystBrief, err error) *models.AnalystBrief {
	brief.Degraded = true
	brief.DegradedReason = err.Error()
	if brief.Content == "" {
		brief.Content = "(analysis unavailable: " + err.Error() + ")"
	}
	return brief
}

// FormatLessons renders past-memory lessons for prompt inclusion.
func FormatLessons(lessons []string) string {
	if len(lessons) == 0 {
		return "(no past lessons recorded)"
	}
	var b strings.Builder
	for i, l := range lessons {
		b.WriteString(strings.TrimSpace(l))
		if i < len(lessons)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}
