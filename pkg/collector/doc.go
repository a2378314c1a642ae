// Package collector runs a collection over a cohort of users.
//
// Every user moves through Pending, Attempted and then one of Persisted,
// Failed or Deferred. Deferred users failed with a transient connection
// error; they are retried once after the whole cohort has been tried, and a
// second transient failure marks them Failed. Protected or unavailable
// accounts and unclassified errors fail immediately.
//
// A user's new entries and watermark are written in one transaction. The run
// ends with a RunSummary that is logged, stored as a run record and merged
// into the count table under the run date.
package collector
