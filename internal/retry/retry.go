// Package retry implements a small exponential backoff policy for external
// calls that are worth repeating.
package retry

import (
	"context"
	"time"
)

// Policy describes how often and how patiently to retry.
type Policy struct {
	MaxAttempts int           // total attempts, including the first
	BaseDelay   time.Duration // wait before the second attempt
	Factor      float64       // multiplier applied per subsequent attempt
}

// Default is the policy used for generation calls: three attempts with
// 1s, 2s waits.
var Default = Policy{MaxAttempts: 3, BaseDelay: time.Second, Factor: 2}

// Do runs fn until it succeeds, attempts are exhausted, or ctx is done.
// The last error is returned.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	factor := p.Factor
	if factor < 1 {
		factor = 1
	}

	delay := p.BaseDelay
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * factor)
	}
	return err
}
