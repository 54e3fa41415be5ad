// Package sqlite provides a SQLite-based implementation of the index,
// job store and embedding cache ports.
//
// It uses modernc.org/sqlite, a pure Go driver. One database serves:
//
//   - Index: chunk vectors with metadata, plus an FTS5 keyword index
//   - JobStore: ingestion jobs and their resumable stage outputs
//   - EmbeddingCache: vectors keyed by model and content hash
//
// # Schema
//
// The schema is built from numbered scripts in migrations/. The highest
// applied number is kept in PRAGMA user_version.
//
// # Data Location
//
// The database is the file tome.db inside the configured data directory,
// ~/.tome/data unless storage.data_dir says otherwise.
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
