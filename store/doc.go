// Package store keeps chat history for interactive sessions.
//
// Each Turn carries the question, the answer and the retrieved context shown
// as telemetry next to it. Backends live in subpackages:
//
//   - memory: process-local, for tests and one-shot CLI sessions
//   - redis: go-redis lists, optionally expiring
//   - sqlite: a single file via mattn/go-sqlite3
//   - postgres: pgx pool, sharing the database used for pgvector
//
// All of them implement HistoryStore.
package store
