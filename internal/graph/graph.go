package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lumatrade/council/internal/agents"
	"github.com/lumatrade/council/internal/config"
	"github.com/lumatrade/council/internal/llm"
	"github.com/lumatrade/council/internal/memory"
	"github.com/lumatrade/council/internal/models"
	"github.com/lumatrade/council/internal/tools"
)

// TradingGraph sequences the whole run: analysts in parallel, the
// bull/bear debate, trader synthesis, risk review, trace assembly and
// journaling. All configuration is bound at construction; a run only
// reads it.
type TradingGraph struct {
	cfg      *config.Config
	binding  *llm.Binding
	registry *tools.Registry
	store    *memory.Store
	log      *zap.Logger

	ownsStore bool
}

type Option func(*TradingGraph)

// WithBinding injects pre-built tier clients (tests use scripted ones).
func WithBinding(b *llm.Binding) Option {
	return func(g *TradingGraph) { g.binding = b }
}

func WithRegistry(r *tools.Registry) Option {
	return func(g *TradingGraph) { g.registry = r }
}

func WithStore(s *memory.Store) Option {
	return func(g *TradingGraph) { g.store = s }
}

func WithLogger(l *zap.Logger) Option {
	return func(g *TradingGraph) { g.log = l }
}

// New validates the configuration and assembles the graph. An invalid
// configuration is fatal here, before any model call is made.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*TradingGraph, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	g := &TradingGraph{cfg: cfg}
	for _, opt := range opts {
		opt(g)
	}
	if g.log == nil {
		g.log = zap.NewNop()
	}

	if g.binding == nil {
		raw, err := llm.NewBinding(ctx, cfg)
		if err != nil {
			return nil, errors.Wrap(err, "build model binding")
		}
		g.binding = raw
	}
	// Tier binding is fixed for the graph's lifetime; retries and
	// timeouts are part of the binding, the per-run call budget is not.
	g.binding = &llm.Binding{
		Quick: llm.WithRetry(g.binding.Quick, cfg.MaxRetries, cfg.RequestTimeout, g.log),
		Deep:  llm.WithRetry(g.binding.Deep, cfg.MaxRetries, cfg.RequestTimeout, g.log),
	}

	if g.registry == nil {
		reg, err := tools.NewRegistry(cfg, g.log)
		if err != nil {
			return nil, errors.Wrap(err, "build tool registry")
		}
		g.registry = reg
	}

	if g.store == nil {
		if err := cfg.EnsureDirectories(); err != nil {
			return nil, errors.Wrap(err, "ensure directories")
		}
		store, err := memory.Open(cfg.MemoryDBPath)
		if err != nil {
			return nil, errors.Wrap(err, "open memory store")
		}
		g.store = store
		g.ownsStore = true
	}
	return g, nil
}

func (g *TradingGraph) Close() error {
	if g.ownsStore && g.store != nil {
		return g.store.Close()
	}
	return nil
}

// maxCalls is the hard per-run cap on model calls: analysts may spend
// up to three each (tool round plus one re-prompt), each debate round
// costs two, the trader up to two, the risk consult one.
func (g *TradingGraph) maxCalls() int {
	return 3*len(agents.AnalystRoles) + 2*g.cfg.MaxDebateRounds + 3
}

// Propagate runs the full decision pipeline for one query. In
// non-strict mode it always returns exactly one FinalDecision; every
// absorbable failure is annotated on the trace and the decision
// instead of aborting the run.
func (g *TradingGraph) Propagate(ctx context.Context, symbol, date string) (*models.RunTrace, *models.FinalDecision, error) {
	q, err := models.NewQuery(symbol, date)
	if err != nil {
		return nil, nil, err
	}

	log := g.log.With(zap.String("symbol", q.Symbol), zap.String("trade_date", q.TradeDate()))
	log.Info("starting run", zap.Int("max_debate_rounds", g.cfg.MaxDebateRounds),
		zap.Bool("online_tools", g.cfg.OnlineTools), zap.Bool("strict", g.cfg.Strict))

	trace := models.NewRunTrace(q)
	budget := newCallBudget(g.maxCalls())
	quick := &budgetedClient{inner: g.binding.Quick, budget: budget}
	deep := &budgetedClient{inner: g.binding.Deep, budget: budget}

	lessons := g.lessons(ctx, q, trace)

	// Analysts share no mutable state and only read durable memory, so
	// they run concurrently. Briefs land in fixed slots; order of
	// execution does not affect the resulting set.
	briefs := make([]*models.AnalystBrief, len(agents.AnalystRoles))
	analystErrs := make([]error, len(agents.AnalystRoles))
	eg, ectx := errgroup.WithContext(ctx)
	for i, role := range agents.AnalystRoles {
		analyst := agents.NewAnalyst(role, quick, g.registry, g.log)
		eg.Go(func() error {
			brief, aerr := analyst.Analyze(ectx, q, lessons)
			briefs[i] = brief
			if aerr != nil {
				if g.cfg.Strict {
					return errors.Wrapf(aerr, "analyst %s failed for %s@%s", analyst.Role(), q.Symbol, q.TradeDate())
				}
				analystErrs[i] = aerr
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return trace, nil, err
	}
	trace.Briefs = briefs
	for i, aerr := range analystErrs {
		if aerr != nil {
			trace.RecordError(fmt.Sprintf("analyst %s: %v", agents.AnalystRoles[i], aerr))
		}
	}

	deb := &debate{
		rounds:       g.cfg.MaxDebateRounds,
		bull:         agents.NewResearcher(models.SpeakerBull, deep, g.log),
		bear:         agents.NewResearcher(models.SpeakerBear, deep, g.log),
		maxTurnRunes: g.cfg.MaxTurnRunes,
		strict:       g.cfg.Strict,
		log:          g.log,
	}
	transcript, absorbed, err := deb.run(ctx, q, briefs, lessons)
	trace.Transcript = transcript
	for _, msg := range absorbed {
		trace.RecordError(msg)
	}
	if err != nil {
		return trace, nil, errors.Wrapf(err, "debate failed for %s@%s", q.Symbol, q.TradeDate())
	}

	trader := agents.NewTrader(deep, g.log)
	decision, derr := trader.Decide(ctx, q, briefs, transcript, lessons)
	if derr != nil {
		if g.cfg.Strict {
			return trace, nil, errors.Wrapf(derr, "trader failed for %s@%s", q.Symbol, q.TradeDate())
		}
		trace.RecordError(fmt.Sprintf("trader: %v", derr))
	}
	// Surface every absorbed failure on the decision itself, so the
	// caller sees why a run was degraded without reading the trace.
	if len(trace.Errors) > 0 {
		decision.Degraded = true
		decision.DegradedReasons = mergeReasons(decision.DegradedReasons, trace.Errors)
	}
	trace.Decision = decision

	reviewer := agents.NewRiskManager(quick, g.cfg.Risk, g.log)
	final := reviewer.Review(ctx, q, decision)
	trace.Final = final
	trace.ModelCalls = budget.Used()
	trace.FinishedAt = time.Now()

	if g.store != nil {
		if err := g.store.SaveRun(ctx, trace); err != nil {
			log.Warn("failed to journal run", zap.Error(err))
		}
	}
	if g.cfg.ResultsDir != "" {
		if err := g.writeTraceFile(trace); err != nil {
			log.Warn("failed to write trace file", zap.Error(err))
		}
	}

	log.Info("run finished",
		zap.String("decision", decision.ID),
		zap.String("action", string(final.Decision.Action)),
		zap.Bool("overridden", final.Overridden),
		zap.Bool("degraded", final.Decision.Degraded),
		zap.Int("model_calls", trace.ModelCalls))
	if g.cfg.Debug {
		log.Debug("run trace", zap.Any("trace", trace))
	}
	return trace, final, nil
}

// writeTraceFile drops the full run trace as JSON in the results
// directory, one file per run.
func (g *TradingGraph) writeTraceFile(trace *models.RunTrace) error {
	if err := os.MkdirAll(g.cfg.ResultsDir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(trace, "", "  ")
	if err != nil {
		return err
	}
	name := fmt.Sprintf("%s_%s_%s.json", trace.Symbol, trace.TradeDate, trace.ID)
	return os.WriteFile(filepath.Join(g.cfg.ResultsDir, name), data, 0o644)
}

func (g *TradingGraph) lessons(ctx context.Context, q models.Query, trace *models.RunTrace) []string {
	if g.store == nil {
		return nil
	}
	records, err := g.store.LessonsFor(ctx, q.Symbol, 3)
	if err != nil {
		trace.RecordError(fmt.Sprintf("memory lookup: %v", err))
		return nil
	}
	lessons := make([]string, 0, len(records))
	for _, r := range records {
		lessons = append(lessons, r.Lesson)
	}
	return lessons
}

func mergeReasons(existing, add []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, r := range existing {
		seen[r] = true
	}
	for _, r := range add {
		if !seen[r] {
			existing = append(existing, r)
			seen[r] = true
		}
	}
	return existing
}
