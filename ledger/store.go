/*
store.go - Persistence interface for the book

PURPOSE:
  Defines the contract between the engine and the persisted two-table
  document. The store reads and writes the document whole: a batch is
  applied to an in-memory copy and persisted once at the end, so no
  partial write can ever reach storage.

CONCURRENCY:
  The document carries no optimistic-concurrency token. The engine
  assumes one outstanding change request at a time; concurrent callers
  must be serialized externally.

IMPLEMENTATIONS:
  - ledger/store/memory.go: In-memory, for tests and dev
  - store/sqlite/sqlite.go: SQLite-backed document
*/
package ledger

import "context"

// Store persists the whole book. Load failures are fatal for any batch;
// Save replaces the persisted document atomically from the caller's point
// of view.
type Store interface {
	// Load reads the full book, including the configured opening balance.
	Load(ctx context.Context) (*Book, error)

	// Save replaces the persisted document with the given book.
	Save(ctx context.Context, book *Book) error
}
