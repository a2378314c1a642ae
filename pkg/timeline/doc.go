// Package timeline turns a user's paged timeline into one ordered result.
//
// Paginator.Collect requests the newest page above the watermark, then walks
// backwards with max_id = oldest id - 1 until the API returns an empty page.
// Older pages are only requested when the first page reaches the continue
// threshold (half of the maximum page size by default), so small timelines
// cost a single call.
//
// Classify and ToModel prepare raw entries for storage: retweets keep the
// original status' full text and are flagged.
package timeline
