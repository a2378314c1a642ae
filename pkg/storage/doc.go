// Package storage keeps the historical per-user collection counts.
//
// The count table is a CSV file with a User column followed by one column per
// run date:
//
//	User,2024-05-01,2024-05-02
//	12,40,3
//	15,0,
//
// A run merges its counts under its own date. Re-running on the same day
// replaces that column. Users seen for the first time get a new row and
// empty cells for earlier dates.
//
// Usage:
//
//	table, err := storage.LoadCountTable("tweet_count.csv")
//	if err != nil {
//	    return err
//	}
//	table.Merge(summary.Date, summary.Counts)
//	if err := table.Save(); err != nil {
//	    return err
//	}
package storage
