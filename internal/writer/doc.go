// Package writer implements the event journal.
//
// Journal is a dispatcher sink. It turns VI updates and forwarded ticks into
// rows, queues them in memory and flushes them in batches to a Store:
//   - PostgresStore (pgx batches)
//   - SQLiteStore (one transaction per batch)
//
// The journal is append-only. Each row gets its own UUID and carries the
// stream session it was received on, so rows from different connections can
// be told apart. A full queue drops rows rather than stall the dispatch loop.
package writer
