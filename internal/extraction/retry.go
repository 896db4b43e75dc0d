package extraction

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/jackzampolin/docextract/internal/apperr"
)

// RetryPolicy is an opt-in retry policy for Submit. Only network failures
// and retryable HTTP statuses (5xx, 429) are retried.
type RetryPolicy struct {
	// Attempts is the total number of tries; values below 2 mean no retry.
	Attempts uint
	// Delay is the base backoff delay.
	Delay time.Duration
}

// SubmitWithRetry submits req, retrying according to policy.
func (c *Client) SubmitWithRetry(ctx context.Context, req *Request, policy RetryPolicy) (*Result, error) {
	if policy.Attempts < 2 {
		return c.Submit(ctx, req)
	}
	return retry.DoWithData(
		func() (*Result, error) {
			return c.Submit(ctx, req)
		},
		retry.Context(ctx),
		retry.Attempts(policy.Attempts),
		retry.Delay(policy.Delay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(apperr.IsRetryable),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("retrying extraction", "attempt", n+1, "error", err)
		}),
	)
}
