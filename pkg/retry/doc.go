// Package retry repeats operations that fail with retryable errors.
//
// The timeline client uses it with an unlimited attempt budget and
// IsRateLimited as the predicate, so a rate-limit response never reaches the
// caller: the request is simply issued again once the window reopens.
//
//	tweets, err := retry.DoWithResult(func() ([]twitter.Tweet, error) {
//		return c.fetchOnce(ctx, req)
//	}, &retry.Config{
//		MaxAttempts: 0,
//		Backoff:     retry.DefaultExponentialBackoff(),
//		RetryIf:     retry.IsRateLimited,
//		Context:     ctx,
//	})
//
// ExponentialBackoff is backed by github.com/cenkalti/backoff.
package retry
