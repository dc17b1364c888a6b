package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Chain tries generators in priority order until one produces text.
type Chain struct {
	generators []TextGenerator
	backoff    Backoff
	sleep      func(context.Context, time.Duration) error
	logger     *slog.Logger
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithBackoff overrides DefaultBackoff.
func WithBackoff(b Backoff) ChainOption {
	return func(c *Chain) { c.backoff = b }
}

// WithSleep replaces the context-aware sleep, mainly for tests.
func WithSleep(fn func(context.Context, time.Duration) error) ChainOption {
	return func(c *Chain) { c.sleep = fn }
}

// WithChainLogger sets the logger.
func WithChainLogger(l *slog.Logger) ChainOption {
	return func(c *Chain) { c.logger = l }
}

// NewChain returns a chain over generators, highest priority first.
func NewChain(generators []TextGenerator, opts ...ChainOption) *Chain {
	c := &Chain{
		generators: generators,
		backoff:    DefaultBackoff,
		sleep:      Sleep,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.backoff.Attempts <= 0 {
		c.backoff.Attempts = 1
	}
	return c
}

// Ready reports whether any provider is configured.
func (c *Chain) Ready() bool {
	return c != nil && len(c.generators) > 0
}

// Names returns the provider names in priority order.
func (c *Chain) Names() []string {
	if c == nil {
		return nil
	}
	names := make([]string, len(c.generators))
	for i, g := range c.generators {
		names[i] = g.Name()
	}
	return names
}

// Primary returns the name of the first provider, or "None".
func (c *Chain) Primary() string {
	if !c.Ready() {
		return "None"
	}
	return c.generators[0].Name()
}

// Generate runs req through the chain. Transient errors are retried on
// the same provider; other errors and empty answers move on to the next
// provider. It never returns an error: failures are reported in the
// Result.
func (c *Chain) Generate(ctx context.Context, req Request) Result {
	if !c.Ready() {
		return Result{Status: StatusFailed, Provider: "None", Error: "no providers configured"}
	}

	for _, g := range c.generators {
		text, err := c.try(ctx, g, req)
		if err == nil {
			return Result{Status: StatusSuccess, Text: text, Provider: g.Name()}
		}
		if ctx.Err() != nil {
			return Result{Status: StatusFailed, Provider: "None", Error: ctx.Err().Error()}
		}
		c.logger.Warn("provider failed", "provider", g.Name(), "error", err)
	}

	msg := fmt.Sprintf("All providers exhausted (%s)", strings.Join(c.Names(), " → "))
	c.logger.Error(msg)
	return Result{Status: StatusFailed, Provider: "None", Error: msg}
}

func (c *Chain) try(ctx context.Context, g TextGenerator, req Request) (string, error) {
	last := c.backoff.Attempts - 1
	var err error
	for attempt := 0; attempt <= last; attempt++ {
		var text string
		text, err = g.Generate(ctx, req)
		if err == nil {
			if strings.TrimSpace(text) != "" {
				return text, nil
			}
			return "", ErrEmptyResponse
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		var delay time.Duration
		switch {
		case IsWarmup(err):
			delay = c.backoff.Warmup
		case IsRetryable(err):
			delay = c.backoff.Delay(attempt)
		default:
			return "", err
		}
		if attempt == last {
			break
		}
		c.logger.Warn("retrying provider",
			"provider", g.Name(),
			"attempt", fmt.Sprintf("%d/%d", attempt+1, c.backoff.Attempts),
			"delay", delay,
			"error", err)
		if serr := c.sleep(ctx, delay); serr != nil {
			return "", errors.Join(err, serr)
		}
	}
	return "", err
}
