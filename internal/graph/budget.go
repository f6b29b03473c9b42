package graph

import (
	"context"
	"sync"

	"github.com/cloudwego/eino/schema"
	"github.com/pkg/errors"

	"github.com/lumatrade/council/internal/llm"
)

// errBudgetExceeded marks the run-level cap on model calls. It bounds
// total work per run no matter how the backend behaves.
var errBudgetExceeded = errors.New("model call budget exceeded")

type callBudget struct {
	mu        sync.Mutex
	remaining int
	used      int
}

func newCallBudget(n int) *callBudget {
	return &callBudget{remaining: n}
}

func (b *callBudget) take() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.remaining <= 0 {
		return false
	}
	b.remaining--
	b.used++
	return true
}

func (b *callBudget) Used() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.used
}

// budgetedClient decorates a tier client with the per-run call budget.
// It sits outside the retry layer, so one role-level completion costs
// one unit regardless of transient retries underneath.
type budgetedClient struct {
	inner  llm.Client
	budget *callBudget
}

func (c *budgetedClient) Model() string { return c.inner.Model() }

func (c *budgetedClient) Complete(ctx context.Context, req llm.Request) (*schema.Message, error) {
	if !c.budget.take() {
		return nil, llm.Unavailable("budget", c.inner.Model(), errBudgetExceeded)
	}
	return c.inner.Complete(ctx, req)
}
