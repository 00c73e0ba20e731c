package scheduler

import "time"

// RetryPolicy bounds how transient upstream failures are retried.
// MaxRetries counts retries after the initial attempt; backoff grows
// linearly with the retry number.
type RetryPolicy struct {
	MaxRetries int
	Base       time.Duration
	Step       time.Duration
}

// Backoff returns the pause before the given retry (1-based), so the
// defaults yield 5s, 7s, 9s.
func (p RetryPolicy) Backoff(retry int) time.Duration {
	return p.Base + time.Duration(retry)*p.Step
}
