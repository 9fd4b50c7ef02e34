// Package store provides Store implementations.
package store

import (
	"context"
	"sync"

	"github.com/meridian/agent-ledger/ledger"
	"github.com/shopspring/decimal"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu   sync.RWMutex
	book *ledger.Book
}

func NewMemory(openingBalance decimal.Decimal) *Memory {
	return &Memory{book: ledger.NewBook(openingBalance)}
}

// Load returns a deep copy so callers can never mutate the stored book
// without going through Save.
func (m *Memory) Load(_ context.Context) (*ledger.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.book.Clone(), nil
}

// Save replaces the stored book with a copy of the given one.
func (m *Memory) Save(_ context.Context, book *ledger.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.book = book.Clone()
	return nil
}
