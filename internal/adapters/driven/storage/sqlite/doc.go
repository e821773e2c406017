// Package sqlite persists index snapshots in a SQLite database.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements driven.SnapshotStore:
// each snapshot is stored with its ordered chunks and, when present, their dense
// vectors as little-endian float32 blobs. Sparse statistics are not stored; they
// are recomputed from chunk text on load.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.testforge/data/snapshots.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
