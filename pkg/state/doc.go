// Package state persists whole snapshots by name.
//
// Store[T] loads and saves exactly one snapshot per Ref; every save is a full
// overwrite. Backends:
//   - MemoryStore keeps encoded snapshots in memory (tests, dry runs).
//   - FileStore writes <dir>/<name>.json, replacing it atomically.
//   - SQLiteStore keeps one row per name (modernc.org/sqlite, no cgo).
//   - RedisStore keeps one key per name (WATCH/MULTI on save).
//
// Persistence adapts a Store[declare.ContextState] to declare.Persistence:
//
//	declare.Store -> Persistence -> Store[ContextState] -> backend
//
// Concurrency:
//
//	Meta.ETag is a sha256 of the encoded snapshot. A Save carrying an ETag
//	fails with ErrETagMismatch when the stored snapshot has moved on.
//	Persistence and Mutate pass the ETag they last observed.
package state
