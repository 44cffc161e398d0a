// Package queue persists transcription jobs in SQLite and exposes helpers for
// driving their lifecycle.
//
// The Store manages the database connection, schema initialization, stats
// queries, stuck-item recovery, and the queued -> in_progress ->
// completed|failed transitions the workflow manager performs. Items carry the
// serialized source, progress fields, and every output path so stages can
// coordinate without additional state.
//
// Only one active job may exist per (collection_path, title); Enqueue reports
// a *DuplicateSourceError for the second submission and a partial unique
// index backs the rule up in the database.
//
// The database is treated as transient storage for in-flight jobs rather than
// a long-term archive. Schema changes bump the version in schema.go; users
// clear the database to adopt the new schema.
package queue
