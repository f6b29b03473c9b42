package graph

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumatrade/council/internal/agents"
	"github.com/lumatrade/council/internal/config"
	"github.com/lumatrade/council/internal/llm"
	"github.com/lumatrade/council/internal/memory"
	"github.com/lumatrade/council/internal/models"
	"github.com/lumatrade/council/internal/tools"
)

// healthyScript answers every role from a fixed table.
func healthyScript() *llm.Scripted {
	return &llm.Scripted{Responses: map[string]string{
		"market analyst":       "Uptrend intact with rising volume.",
		"sentiment analyst":    "Retail mood is turning positive.",
		"news analyst":         "Coverage is favorable after the product launch.",
		"fundamentals analyst": "Margins expanding, balance sheet clean.",
		"bull analyst":         "The growth runway is long and the reports back it.",
		"bear analyst":         "The multiple already prices in perfection.",
		"experienced trader": `Consensus is constructive and the downside case lacks catalysts.
Confidence: 0.82
FINAL TRANSACTION PROPOSAL: **BUY**`,
		"risk manager": "Position sizing should stay modest.",
		"reviewing a past trading decision": "Trend continuation setups on this name deserve more weight.",
	}}
}

func deadScript() *llm.Scripted {
	return &llm.Scripted{
		Fail:      llm.Unavailable("scripted", "scripted", nil),
		FailCount: -1,
	}
}

func testConfig(t *testing.T, rounds int) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.MaxDebateRounds = rounds
	cfg.OnlineTools = false
	cfg.CacheEnabled = false
	cfg.MaxRetries = 1
	cfg.DataCacheDir = t.TempDir()
	cfg.ResultsDir = t.TempDir()
	cfg.MemoryDBPath = filepath.Join(t.TempDir(), "council.db")
	return cfg
}

func testGraph(t *testing.T, cfg *config.Config, client llm.Client) (*TradingGraph, *memory.Store) {
	t.Helper()
	store, err := memory.Open(cfg.MemoryDBPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	registry, err := tools.NewRegistry(cfg, nil)
	require.NoError(t, err)

	g, err := New(context.Background(), cfg,
		WithBinding(&llm.Binding{Quick: client, Deep: client}),
		WithRegistry(registry),
		WithStore(store))
	require.NoError(t, err)
	return g, store
}

func TestPropagateProducesOneReviewedDecision(t *testing.T) {
	cfg := testConfig(t, 1)
	g, store := testGraph(t, cfg, healthyScript())
	ctx := context.Background()

	trace, final, err := g.Propagate(ctx, "aapl", "2025-08-18")
	require.NoError(t, err)
	require.NotNil(t, final)
	assert.Equal(t, models.ActionBuy, final.Decision.Action)
	assert.Equal(t, 0.82, final.Decision.Confidence)
	assert.False(t, final.Decision.Degraded)
	assert.False(t, final.Overridden)
	assert.Contains(t, final.Decision.Rationale, "Risk review: Position sizing should stay modest.")

	require.Len(t, trace.Briefs, len(agents.AnalystRoles))
	for i, role := range agents.AnalystRoles {
		assert.Equal(t, role, trace.Briefs[i].Role)
		assert.False(t, trace.Briefs[i].Degraded, role)
		assert.NotEmpty(t, trace.Briefs[i].Content, role)
	}
	assert.Equal(t, "Uptrend intact with rising volume.", trace.Briefs[0].Content)

	require.Len(t, trace.Transcript, 2)
	assert.Equal(t, models.SpeakerBull, trace.Transcript[0].Speaker)
	assert.Equal(t, models.SpeakerBear, trace.Transcript[1].Speaker)
	assert.Equal(t, 0, trace.Transcript[1].RespondsTo)

	// 4 analysts + 2 debate turns + trader + risk consult
	assert.Equal(t, 8, trace.ModelCalls)
	assert.Empty(t, trace.Errors)

	// the run is journaled under the decision id
	journaled, err := store.DecisionByID(ctx, final.Decision.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ActionBuy, journaled.Decision.Action)

	// and the full trace lands in the results directory
	files, err := filepath.Glob(filepath.Join(cfg.ResultsDir, "AAPL_2025-08-18_*.json"))
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestDebateLengthTracksConfiguredRounds(t *testing.T) {
	for _, rounds := range []int{0, 1, 3} {
		cfg := testConfig(t, rounds)
		g, _ := testGraph(t, cfg, healthyScript())

		trace, final, err := g.Propagate(context.Background(), "AAPL", "2025-08-18")
		require.NoError(t, err)
		require.NotNil(t, final, "rounds=%d", rounds)
		require.Len(t, trace.Transcript, 2*rounds, "rounds=%d", rounds)

		for i, turn := range trace.Transcript {
			want := models.SpeakerBull
			if i%2 == 1 {
				want = models.SpeakerBear
			}
			assert.Equal(t, want, turn.Speaker, "rounds=%d turn=%d", rounds, i)
			assert.Equal(t, i/2+1, turn.Round, "rounds=%d turn=%d", rounds, i)
		}
	}
}

func TestOverlongDebateTurnsAreTruncatedNotFailed(t *testing.T) {
	cfg := testConfig(t, 1)
	cfg.MaxTurnRunes = 10
	g, _ := testGraph(t, cfg, healthyScript())

	trace, final, err := g.Propagate(context.Background(), "AAPL", "2025-08-18")
	require.NoError(t, err)
	require.NotNil(t, final)

	require.Len(t, trace.Transcript, 2)
	for _, turn := range trace.Transcript {
		assert.True(t, turn.Truncated)
		assert.Contains(t, turn.Content, "[truncated: turn exceeded length budget]")
		body := strings.SplitN(turn.Content, "\n", 2)[0]
		assert.Equal(t, 10, len([]rune(body)))
	}
}

func TestAnalystBriefSetIsOrderIndependent(t *testing.T) {
	cfg := testConfig(t, 0)
	client := healthyScript()
	registry, err := tools.NewRegistry(cfg, nil)
	require.NoError(t, err)
	q, err := models.NewQuery("AAPL", "2025-08-18")
	require.NoError(t, err)

	runInOrder := func(roles []string) map[string]string {
		briefs := make(map[string]string, len(roles))
		for _, role := range roles {
			brief, aerr := agents.NewAnalyst(role, client, registry, nil).Analyze(context.Background(), q, nil)
			require.NoError(t, aerr)
			briefs[brief.Role] = brief.Content
		}
		return briefs
	}

	reversed := make([]string, len(agents.AnalystRoles))
	for i, role := range agents.AnalystRoles {
		reversed[len(reversed)-1-i] = role
	}

	forward := runInOrder(agents.AnalystRoles)
	require.Len(t, forward, len(agents.AnalystRoles))
	assert.Equal(t, forward, runInOrder(reversed))
}

func TestZeroRoundsStillDecides(t *testing.T) {
	cfg := testConfig(t, 0)
	g, _ := testGraph(t, cfg, healthyScript())

	trace, final, err := g.Propagate(context.Background(), "AAPL", "2025-08-18")
	require.NoError(t, err)
	assert.Empty(t, trace.Transcript)
	require.NotNil(t, final)
	assert.Equal(t, models.ActionBuy, final.Decision.Action)
}

func TestDeadBackendDegradesToHold(t *testing.T) {
	cfg := testConfig(t, 1)
	g, store := testGraph(t, cfg, deadScript())
	ctx := context.Background()

	trace, final, err := g.Propagate(ctx, "AAPL", "2025-08-18")
	require.NoError(t, err)
	require.NotNil(t, final)
	assert.Equal(t, models.ActionHold, final.Decision.Action)
	assert.True(t, final.Decision.Degraded)
	assert.NotEmpty(t, final.Decision.DegradedReasons)

	// every stage is annotated, none aborts the run
	require.Len(t, trace.Briefs, len(agents.AnalystRoles))
	for _, brief := range trace.Briefs {
		assert.True(t, brief.Degraded, brief.Role)
	}
	require.Len(t, trace.Transcript, 2)
	for _, turn := range trace.Transcript {
		assert.Contains(t, turn.Content, "argument unavailable")
	}
	assert.NotEmpty(t, trace.Errors)

	// the degraded run is still journaled
	_, err = store.DecisionByID(ctx, final.Decision.ID)
	require.NoError(t, err)
}

func TestStrictModeFailsNamingTheRole(t *testing.T) {
	cfg := testConfig(t, 1)
	cfg.Strict = true
	g, _ := testGraph(t, cfg, deadScript())

	_, final, err := g.Propagate(context.Background(), "AAPL", "2025-08-18")
	require.Error(t, err)
	assert.Nil(t, final)
	assert.Contains(t, err.Error(), "analyst")
	assert.Contains(t, err.Error(), "failed for AAPL@2025-08-18")
	assert.ErrorIs(t, err, llm.ErrBackendUnavailable)
}

func TestCallBudget(t *testing.T) {
	budget := newCallBudget(2)
	client := &budgetedClient{inner: &llm.Scripted{Fallback: "ok"}, budget: budget}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := client.Complete(ctx, llm.Request{})
		require.NoError(t, err)
	}
	_, err := client.Complete(ctx, llm.Request{})
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrBackendUnavailable)
	assert.Equal(t, 2, budget.Used())
}

func TestReflectAppendsExactlyOneRecordPerCall(t *testing.T) {
	cfg := testConfig(t, 1)
	g, store := testGraph(t, cfg, healthyScript())
	ctx := context.Background()

	_, final, err := g.Propagate(ctx, "AAPL", "2025-08-18")
	require.NoError(t, err)

	rec, err := g.Reflect(ctx, final.Decision.ID, -50)
	require.NoError(t, err)
	assert.Equal(t, final.Decision.ID, rec.DecisionID)
	assert.Equal(t, -50.0, rec.RealizedReturn)
	assert.Equal(t, "Trend continuation setups on this name deserve more weight.", rec.Lesson)

	// a second reflection appends, never rewrites
	rec2, err := g.Reflect(ctx, final.Decision.ID, 30)
	require.NoError(t, err)
	assert.NotEqual(t, rec.ID, rec2.ID)

	records, err := store.MemoriesForDecision(ctx, final.Decision.ID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, -50.0, records[0].RealizedReturn)
	assert.Equal(t, 30.0, records[1].RealizedReturn)
}

func TestReflectUnknownDecision(t *testing.T) {
	cfg := testConfig(t, 0)
	g, _ := testGraph(t, cfg, healthyScript())

	_, err := g.Reflect(context.Background(), "no-such-decision", 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, memory.ErrNotFound)
}

func TestReflectFallsBackWhenBackendDies(t *testing.T) {
	cfg := testConfig(t, 0)
	g, _ := testGraph(t, cfg, healthyScript())
	ctx := context.Background()

	_, final, err := g.Propagate(ctx, "AAPL", "2025-08-18")
	require.NoError(t, err)

	// same store, dead models: reflection still records a lesson
	store2, err := memory.Open(cfg.MemoryDBPath)
	require.NoError(t, err)
	t.Cleanup(func() { store2.Close() })
	registry, err := tools.NewRegistry(cfg, nil)
	require.NoError(t, err)
	dead, err := New(ctx, cfg,
		WithBinding(&llm.Binding{Quick: deadScript(), Deep: deadScript()}),
		WithRegistry(registry),
		WithStore(store2))
	require.NoError(t, err)

	rec, err := dead.Reflect(ctx, final.Decision.ID, -12)
	require.NoError(t, err)
	assert.Contains(t, rec.Lesson, "realized a return of -12.00")
	assert.Contains(t, rec.Lesson, "contradicted the committed direction")
}

func TestReflectAndRememberResolvesLatest(t *testing.T) {
	cfg := testConfig(t, 0)
	g, _ := testGraph(t, cfg, healthyScript())
	ctx := context.Background()

	_, err := g.ReflectAndRemember(ctx, 5)
	require.Error(t, err, "nothing journaled yet")

	_, first, err := g.Propagate(ctx, "AAPL", "2025-08-18")
	require.NoError(t, err)
	_, second, err := g.Propagate(ctx, "MSFT", "2025-08-19")
	require.NoError(t, err)

	rec, err := g.ReflectAndRemember(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, second.Decision.ID, rec.DecisionID)
	assert.NotEqual(t, first.Decision.ID, rec.DecisionID)
}

func TestRestrictedSymbolIsForcedToHold(t *testing.T) {
	cfg := testConfig(t, 0)
	cfg.Risk.RestrictedSymbols = []string{"GME"}
	g, _ := testGraph(t, cfg, healthyScript())

	_, final, err := g.Propagate(context.Background(), "GME", "2025-08-18")
	require.NoError(t, err)
	assert.True(t, final.Overridden)
	assert.Equal(t, models.ActionHold, final.Decision.Action)
	assert.Equal(t, models.ActionBuy, final.OriginalAction)
}

func TestInvalidConfigRejectedBeforeAnyCall(t *testing.T) {
	cfg := testConfig(t, 1)
	cfg.MaxDebateRounds = -2

	_, err := New(context.Background(), cfg, WithBinding(&llm.Binding{Quick: deadScript(), Deep: deadScript()}))
	require.Error(t, err)
	var cfgErr *config.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}
