package review

import (
	"errors"
	"math/rand/v2"
	"time"
)

// RetryPolicy controls how failed review calls are retried.
type RetryPolicy struct {
	// Attempts is the total number of calls, including the first.
	Attempts int
	// BaseDelay doubles on every retry up to MaxDelay.
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// RateLimitStep is multiplied by the retry number after a 429.
	RateLimitStep time.Duration
	// Jitter adds up to half the computed delay at random.
	Jitter bool
	// CallTimeout bounds a single call.
	CallTimeout time.Duration
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:      3,
		BaseDelay:     time.Second,
		MaxDelay:      30 * time.Second,
		RateLimitStep: 5 * time.Second,
		Jitter:        true,
		CallTimeout:   120 * time.Second,
	}
}

// Backoff returns the wait before retry n (1 for the first retry) after err.
func (p RetryPolicy) Backoff(n uint, err error) time.Duration {
	if n < 1 {
		n = 1
	}
	var re *RetryableError
	if errors.As(err, &re) && re.RateLimited() && p.RateLimitStep > 0 {
		return p.RateLimitStep * time.Duration(n)
	}
	shift := n - 1
	if shift > 20 {
		shift = 20
	}
	d := p.BaseDelay << shift
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	if p.Jitter && d > 1 {
		d += time.Duration(rand.Int64N(int64(d) / 2))
	}
	return d
}

func (p RetryPolicy) attempts() uint {
	if p.Attempts < 1 {
		return 1
	}
	return uint(p.Attempts)
}
