package llm

import (
	"context"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/jpillora/backoff"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// retryingClient wraps a Client with a per-call timeout and bounded
// exponential backoff. Only unavailability is retried; overflow and
// malformed output pass through on the first failure.
type retryingClient struct {
	inner    Client
	attempts int
	timeout  time.Duration
	min, max time.Duration
	log      *zap.Logger
}

// WithRetry decorates inner with retry and timeout behavior. attempts
// is the total call budget including the first try.
func WithRetry(inner Client, attempts int, timeout time.Duration, log *zap.Logger) Client {
	if attempts < 1 {
		attempts = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &retryingClient{
		inner:    inner,
		attempts: attempts,
		timeout:  timeout,
		min:      500 * time.Millisecond,
		max:      15 * time.Second,
		log:      log,
	}
}

func (c *retryingClient) Model() string { return c.inner.Model() }

func (c *retryingClient) Complete(ctx context.Context, req Request) (*schema.Message, error) {
	b := &backoff.Backoff{Min: c.min, Max: c.max, Factor: 2, Jitter: true}

	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		msg, err := c.completeOnce(ctx, req)
		if err == nil {
			return msg, nil
		}
		if !errors.Is(err, ErrBackendUnavailable) {
			return nil, err
		}
		lastErr = err
		if attempt == c.attempts {
			break
		}

		wait := b.Duration()
		c.log.Warn("backend unavailable, retrying",
			zap.String("model", c.inner.Model()),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, Unavailable("retry", c.inner.Model(), ctx.Err())
		case <-time.After(wait):
		}
	}
	return nil, errors.Wrapf(lastErr, "gave up after %d attempts", c.attempts)
}

func (c *retryingClient) completeOnce(ctx context.Context, req Request) (*schema.Message, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return c.inner.Complete(ctx, req)
}
