// Package stores provides the score history: a SQLite database, migrated on
// open, that records every scoring pass with its per-constraint totals so
// scores can be compared across runs.
package stores
