package review

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
)

// Client reviews rendered batches through a Provider.
type Client struct {
	provider      Provider
	policy        RetryPolicy
	minConfidence float64
	stats         *Stats
	timer         retry.Timer
	log           *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithTimer replaces the timer used between retries.
func WithTimer(t retry.Timer) Option {
	return func(c *Client) { c.timer = t }
}

// WithStats records call latencies into s.
func WithStats(s *Stats) Option {
	return func(c *Client) { c.stats = s }
}

// WithMinConfidence sets the confidence below which proposals are dropped.
func WithMinConfidence(v float64) Option {
	return func(c *Client) { c.minConfidence = v }
}

func NewClient(p Provider, policy RetryPolicy, log *slog.Logger, opts ...Option) *Client {
	c := &Client{
		provider:      p,
		policy:        policy,
		minConfidence: 0.7,
		log:           log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model names the provider's model.
func (c *Client) Model() string { return c.provider.Model() }

// Stats returns the client's stats collector, possibly nil.
func (c *Client) Stats() *Stats { return c.stats }

// Close releases the provider.
func (c *Client) Close() { c.provider.Close() }

// Request is one prompt for one batch.
type Request struct {
	Batch  int
	Module string
	Prompt string
}

// Review calls the model with retries and returns the proposals that pass
// ValidateProposal. Exhausted retries and malformed replies return an error
// and no proposals.
func (c *Client) Review(ctx context.Context, req Request) ([]Proposal, error) {
	log := c.log.With("batch", req.Batch)
	if req.Module != "" {
		log = log.With("module", req.Module)
	}

	opts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(c.policy.attempts()),
		retry.DelayType(func(n uint, err error, _ *retry.Config) time.Duration {
			return c.policy.Backoff(n, err)
		}),
		retry.RetryIf(IsRetryable),
		retry.OnRetry(func(n uint, err error) {
			log.Warn("retryable review error", "attempt", n+1, "error", err)
		}),
		retry.LastErrorOnly(true),
	}
	if c.timer != nil {
		opts = append(opts, retry.WithTimer(c.timer))
	}

	reply, err := retry.DoWithData(func() (string, error) {
		callCtx := ctx
		if c.policy.CallTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, c.policy.CallTimeout)
			defer cancel()
		}
		start := time.Now()
		out, err := c.provider.Complete(callCtx, SystemPrompt, req.Prompt)
		c.stats.Record(time.Since(start).Milliseconds(), err)
		return out, err
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("review batch %d: %w", req.Batch, err)
	}

	props, err := ParseResponse(reply)
	if err != nil {
		log.Error("malformed review response", "error", err, "preview", truncate(reply, 200))
		return nil, err
	}

	valid := make([]Proposal, 0, len(props))
	for _, p := range props {
		if err := ValidateProposal(p, c.minConfidence); err != nil {
			log.Info("proposal dropped", "paragraph", p.Paragraph, "error_text", p.Error, "reason", err)
			continue
		}
		p.Batch = req.Batch
		p.Module = req.Module
		valid = append(valid, p)
	}
	log.Info("batch reviewed", "proposals", len(valid), "dropped", len(props)-len(valid))
	return valid, nil
}
