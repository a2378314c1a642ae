// Package checkpoint saves the progress of a collection run so an interrupted
// run can be resumed the same day.
//
// A checkpoint is keyed by run date and records the outcome of every user
// finished so far. Resuming skips those users and keeps their counts.
//
// Checkpoints are stored in the configured directory, or in the
// platform-specific data directory:
//   - Linux: ~/.local/share/tweetcollector/checkpoints/
//   - macOS: ~/Library/Application Support/tweetcollector/checkpoints/
//   - Windows: %APPDATA%/tweetcollector/checkpoints/
//
// Files are written atomically and carry a version number.
package checkpoint
