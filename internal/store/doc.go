// Package store persists lectures, analysis attempts, cached queries, and
// pipeline jobs in SQLite.
//
// The Store owns the database connection, embedded migrations, and the busy
// retry helpers every write goes through. Analysis rows are only ever changed
// with compare-and-swap updates so two workers racing on one attempt cannot
// both win; the lecture's latest analysis row (highest id) is its current
// state. Lookups that find nothing return nil with a nil error.
package store
