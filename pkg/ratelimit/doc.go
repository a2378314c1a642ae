// Package ratelimit keeps timeline requests inside the API's request budget.
//
// Two limiters are combined by the client:
//
// Token Bucket:
//   - Local budget of N requests per window (900 per 15 minutes by default)
//   - Refilled in full once the window elapses
//
// Reset Window:
//   - Mirrors the remaining/reset values the server reports on each response
//   - Exhaust is called on a rate-limit response; Wait then blocks until the
//     advertised reset, or for a fallback period when none was given
//
// Both implement Limiter and take a Clock so tests can observe waits without
// sleeping.
//
//	bucket := ratelimit.NewTokenBucket(900, 15*time.Minute)
//	window := ratelimit.NewResetWindow(15*time.Minute, ratelimit.SystemClock)
//
//	_ = bucket.Wait(ctx)
//	_ = window.Wait(ctx)
package ratelimit
