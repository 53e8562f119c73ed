// Package writer persists streamed quote events to Postgres/TimescaleDB.
//
// The QuoteWriter consumes raw event lines from a stream callback, parses
// quote events, and batch-inserts them with append-only semantics
// (ON CONFLICT DO NOTHING). Non-quote event types (trade, summary, timesale)
// are skipped.
package writer
