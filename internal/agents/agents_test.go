package agents

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumatrade/council/internal/config"
	"github.com/lumatrade/council/internal/llm"
	"github.com/lumatrade/council/internal/models"
	"github.com/lumatrade/council/internal/tools"
)

func testQuery(t *testing.T) models.Query {
	t.Helper()
	q, err := models.NewQuery("AAPL", "2025-08-18")
	require.NoError(t, err)
	return q
}

func TestTraderParsesProposal(t *testing.T) {
	client := &llm.Scripted{Fallback: `Momentum is strong and the bear case is thin.
Confidence: 0.82
FINAL TRANSACTION PROPOSAL: **BUY**`}
	trader := NewTrader(client, nil)

	d, err := trader.Decide(context.Background(), testQuery(t), nil, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, models.ActionBuy, d.Action)
	assert.Equal(t, 0.82, d.Confidence)
	assert.False(t, d.Degraded)
	assert.NotEmpty(t, d.ID)
	assert.Contains(t, d.Rationale, "Momentum is strong")
}

func TestTraderDefaultsToHoldWithoutMarker(t *testing.T) {
	client := &llm.Scripted{Fallback: "It could go either way, honestly."}
	trader := NewTrader(client, nil)

	d, err := trader.Decide(context.Background(), testQuery(t), nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ActionHold, d.Action)
	assert.Equal(t, 0.5, d.Confidence)
	assert.True(t, d.Degraded)
	require.NotEmpty(t, d.DegradedReasons)
	assert.Contains(t, d.DegradedReasons[0], "no explicit transaction proposal")
}

func TestTraderDegradesWhenBackendUnreachable(t *testing.T) {
	client := &llm.Scripted{
		Fail:      llm.Unavailable("scripted", "scripted", nil),
		FailCount: -1,
	}
	trader := NewTrader(client, nil)

	d, err := trader.Decide(context.Background(), testQuery(t), nil, nil, nil)
	require.Error(t, err)
	require.NotNil(t, d)
	assert.Equal(t, models.ActionHold, d.Action)
	assert.True(t, d.Degraded)
	assert.Contains(t, d.Rationale, "Defaulting to hold")
}

func TestTraderRePromptsOnceOnMalformedOutput(t *testing.T) {
	client := &llm.Scripted{
		Fail:      llm.Malformed("scripted", "scripted", nil),
		FailCount: 1,
		Fallback:  "Recovered.\nConfidence: 0.6\nFINAL TRANSACTION PROPOSAL: **SELL**",
	}
	trader := NewTrader(client, nil)

	d, err := trader.Decide(context.Background(), testQuery(t), nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ActionSell, d.Action)
	assert.Equal(t, 0.6, d.Confidence)
	assert.Equal(t, 2, client.Calls())
}

func TestAnalystDegradesOnBackendFailure(t *testing.T) {
	client := &llm.Scripted{
		Fail:      llm.Unavailable("scripted", "scripted", nil),
		FailCount: -1,
	}
	analyst := NewAnalyst(RoleMarket, client, nil, nil)

	brief, err := analyst.Analyze(context.Background(), testQuery(t), nil)
	require.Error(t, err)
	require.NotNil(t, brief)
	assert.Equal(t, RoleMarket, brief.Role)
	assert.True(t, brief.Degraded)
	assert.NotEmpty(t, brief.DegradedReason)
	assert.Contains(t, brief.Content, "analysis unavailable")
}

// toolCallingClient asks for one tool call, then answers in text.
type toolCallingClient struct {
	calls int
}

func (c *toolCallingClient) Model() string { return "fake" }

func (c *toolCallingClient) Complete(ctx context.Context, req llm.Request) (*schema.Message, error) {
	c.calls++
	if c.calls == 1 {
		return schema.AssistantMessage("", []schema.ToolCall{{
			ID: "call-1",
			Function: schema.FunctionCall{
				Name:      "get_market_data",
				Arguments: `{"symbol":"AAPL","date":"2025-08-18","days":30}`,
			},
		}}), nil
	}
	return schema.AssistantMessage("Price data was unavailable; reasoning from structure instead.", nil), nil
}

func TestAnalystRecordsToolFailureInline(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.OnlineTools = false
	cfg.CacheEnabled = false
	cfg.DataCacheDir = t.TempDir()
	registry, err := tools.NewRegistry(cfg, nil)
	require.NoError(t, err)

	client := &toolCallingClient{}
	analyst := NewAnalyst(RoleMarket, client, registry, nil)

	brief, err := analyst.Analyze(context.Background(), testQuery(t), nil)
	require.NoError(t, err)
	assert.False(t, brief.Degraded)
	require.Len(t, brief.ToolCalls, 1)
	assert.Equal(t, "get_market_data", brief.ToolCalls[0].Tool)
	assert.NotEmpty(t, brief.ToolCalls[0].Err)
	assert.Empty(t, brief.ToolCalls[0].Result)
	assert.Contains(t, brief.Content, "reasoning from structure")
	assert.Equal(t, 2, client.calls)
}

func TestResearcherTurnThreading(t *testing.T) {
	client := &llm.Scripted{Responses: map[string]string{
		"bull analyst": "Growth is compounding.",
		"bear analyst": "Multiple is unsustainable.",
	}}
	bull := NewResearcher(models.SpeakerBull, client, nil)
	bear := NewResearcher(models.SpeakerBear, client, nil)
	q := testQuery(t)

	opening, err := bull.Argue(context.Background(), q, nil, nil, nil, 1)
	require.NoError(t, err)
	assert.Equal(t, models.SpeakerBull, opening.Speaker)
	assert.Equal(t, -1, opening.RespondsTo)
	assert.Equal(t, "Growth is compounding.", opening.Content)

	transcript := models.DebateTranscript{*opening}
	rebuttal, err := bear.Argue(context.Background(), q, nil, transcript, nil, 1)
	require.NoError(t, err)
	assert.Equal(t, models.SpeakerBear, rebuttal.Speaker)
	assert.Equal(t, 0, rebuttal.RespondsTo)
	assert.Equal(t, "Multiple is unsustainable.", rebuttal.Content)
}

func TestRiskManagerOverridesTowardHold(t *testing.T) {
	q := testQuery(t)
	mkDecision := func(action models.Action, confidence float64) *models.Decision {
		return &models.Decision{
			ID: models.NewID(), Symbol: q.Symbol, TradeDate: q.TradeDate(),
			Action: action, Confidence: confidence, Rationale: "trader reasoning",
		}
	}

	t.Run("restricted symbol", func(t *testing.T) {
		m := NewRiskManager(nil, config.RiskPolicy{RestrictedSymbols: []string{"AAPL"}}, nil)
		final := m.Review(context.Background(), q, mkDecision(models.ActionBuy, 0.9))
		assert.True(t, final.Overridden)
		assert.Equal(t, models.ActionHold, final.Decision.Action)
		assert.Equal(t, models.ActionBuy, final.OriginalAction)
		assert.Contains(t, final.OverrideReason, "restricted")
		assert.Contains(t, final.Decision.Rationale, "trader reasoning")
	})

	t.Run("low confidence", func(t *testing.T) {
		m := NewRiskManager(nil, config.RiskPolicy{MinConfidence: 0.5}, nil)
		final := m.Review(context.Background(), q, mkDecision(models.ActionSell, 0.3))
		assert.True(t, final.Overridden)
		assert.Equal(t, models.ActionHold, final.Decision.Action)
		assert.Contains(t, final.OverrideReason, "below policy minimum")
	})

	t.Run("hold is never overridden", func(t *testing.T) {
		m := NewRiskManager(nil, config.RiskPolicy{MinConfidence: 0.9, RestrictedSymbols: []string{"AAPL"}}, nil)
		final := m.Review(context.Background(), q, mkDecision(models.ActionHold, 0.1))
		assert.False(t, final.Overridden)
		assert.Equal(t, models.ActionHold, final.Decision.Action)
	})

	t.Run("confident trade passes", func(t *testing.T) {
		m := NewRiskManager(nil, config.RiskPolicy{MinConfidence: 0.5}, nil)
		final := m.Review(context.Background(), q, mkDecision(models.ActionBuy, 0.8))
		assert.False(t, final.Overridden)
		assert.Equal(t, models.ActionBuy, final.Decision.Action)
	})
}

func TestRiskManagerCommentary(t *testing.T) {
	q := testQuery(t)
	d := &models.Decision{
		ID: models.NewID(), Symbol: q.Symbol, TradeDate: q.TradeDate(),
		Action: models.ActionBuy, Confidence: 0.8, Rationale: "trader reasoning",
	}

	client := &llm.Scripted{Responses: map[string]string{
		"risk manager": "Watch the earnings gap risk.",
	}}
	final := NewRiskManager(client, config.RiskPolicy{}, nil).Review(context.Background(), q, d)
	assert.Contains(t, final.Decision.Rationale, "Risk review: Watch the earnings gap risk.")

	// commentary failure is absorbed, never an override
	broken := &llm.Scripted{Fail: llm.Unavailable("scripted", "scripted", nil), FailCount: -1}
	final = NewRiskManager(broken, config.RiskPolicy{}, nil).Review(context.Background(), q, d)
	assert.False(t, final.Overridden)
	assert.Equal(t, models.ActionBuy, final.Decision.Action)
	assert.NotContains(t, final.Decision.Rationale, "Risk review:")
}

func TestFormatBriefsFlagsDegraded(t *testing.T) {
	out := FormatBriefs([]*models.AnalystBrief{
		{Role: RoleMarket, Content: "Uptrend intact."},
		{Role: RoleNews, Content: "(analysis unavailable)", Degraded: true, DegradedReason: "backend unavailable"},
	})
	assert.Contains(t, out, "### market analyst")
	assert.Contains(t, out, "Uptrend intact.")
	assert.Contains(t, out, "### news analyst (degraded: backend unavailable)")

	assert.Equal(t, "(no analyst reports available)", FormatBriefs(nil))
}

func TestFormatLessons(t *testing.T) {
	assert.Equal(t, "(no past lessons recorded)", FormatLessons(nil))
	assert.Equal(t, "a\nb", FormatLessons([]string{" a ", "b"}))
}
