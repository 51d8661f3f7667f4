// Package journal persists applied quick-check mutations to PostgreSQL
// for offline audit.
//
// The journal is optional and strictly best-effort: it must never slow
// down or block the live reconciliation path. Rows are enqueued without
// blocking (dropping under backpressure), accumulated into batches, and
// flushed on size or interval with append-only inserts.
package journal
