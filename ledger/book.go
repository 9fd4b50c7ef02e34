/*
book.go - The in-memory arena holding both tables

PURPOSE:
  A Book is the ordered transaction ledger plus the invoice register,
  loaded whole from the store, mutated in memory, and persisted whole.
  Insert and delete are container operations on the Book; the repair
  obligations they create (balance rescan, USD-equivalent recompute)
  are explicit follow-up calls, not hidden formula patching.

ROW IDENTITY:
  Rows are identified positionally via RowHandle. Deleting a row shifts
  every later row up by one, which is exactly why the balance chain must
  be repaired from the deletion point onward.

CONCURRENCY:
  A Book is not safe for concurrent use. The engine applies one change
  request at a time against a Clone and persists once at the end; callers
  needing parallelism must serialize externally.

SEE ALSO:
  - chain.go: RecalcFrom over Transactions
  - store.go: Load/Save contract
*/
package ledger

import "github.com/shopspring/decimal"

// =============================================================================
// BOOK
// =============================================================================

type Book struct {
	// OpeningBalance anchors the running balance of the first row.
	OpeningBalance decimal.Decimal

	Transactions []Transaction
	Invoices     []Invoice
}

func NewBook(openingBalance decimal.Decimal) *Book {
	return &Book{OpeningBalance: openingBalance}
}

// Clone returns a deep copy. Batches mutate the clone so a mid-batch
// failure leaves the loaded book untouched.
func (b *Book) Clone() *Book {
	out := &Book{
		OpeningBalance: b.OpeningBalance,
		Transactions:   make([]Transaction, len(b.Transactions)),
		Invoices:       make([]Invoice, len(b.Invoices)),
	}
	copy(out.Transactions, b.Transactions)
	copy(out.Invoices, b.Invoices)
	return out
}

// =============================================================================
// TRANSACTION CONTAINER OPERATIONS
// =============================================================================

// AppendTransaction adds a row at the tail and returns its handle.
// The caller still owes a balance computation for the new row.
func (b *Book) AppendTransaction(tx Transaction) RowHandle {
	b.Transactions = append(b.Transactions, tx)
	return RowHandle(len(b.Transactions) - 1)
}

// Transaction returns the row at h.
func (b *Book) Transaction(h RowHandle) (Transaction, error) {
	if int(h) < 0 || int(h) >= len(b.Transactions) {
		return Transaction{}, &RowRangeError{Handle: h, Rows: len(b.Transactions), Table: "transactions"}
	}
	return b.Transactions[h], nil
}

// SetTransaction replaces the row at h in place.
func (b *Book) SetTransaction(h RowHandle, tx Transaction) error {
	if int(h) < 0 || int(h) >= len(b.Transactions) {
		return &RowRangeError{Handle: h, Rows: len(b.Transactions), Table: "transactions"}
	}
	b.Transactions[h] = tx
	return nil
}

// DeleteTransaction physically removes the row at h, shifting later rows
// up. Handles at or after h are invalidated; the balance chain must be
// repaired from h onward.
func (b *Book) DeleteTransaction(h RowHandle) error {
	if int(h) < 0 || int(h) >= len(b.Transactions) {
		return &RowRangeError{Handle: h, Rows: len(b.Transactions), Table: "transactions"}
	}
	b.Transactions = append(b.Transactions[:h], b.Transactions[h+1:]...)
	return nil
}

// =============================================================================
// INVOICE CONTAINER OPERATIONS
// =============================================================================

func (b *Book) AppendInvoice(inv Invoice) RowHandle {
	b.Invoices = append(b.Invoices, inv)
	return RowHandle(len(b.Invoices) - 1)
}

func (b *Book) Invoice(h RowHandle) (Invoice, error) {
	if int(h) < 0 || int(h) >= len(b.Invoices) {
		return Invoice{}, &RowRangeError{Handle: h, Rows: len(b.Invoices), Table: "invoices"}
	}
	return b.Invoices[h], nil
}

func (b *Book) SetInvoice(h RowHandle, inv Invoice) error {
	if int(h) < 0 || int(h) >= len(b.Invoices) {
		return &RowRangeError{Handle: h, Rows: len(b.Invoices), Table: "invoices"}
	}
	b.Invoices[h] = inv
	return nil
}

func (b *Book) DeleteInvoice(h RowHandle) error {
	if int(h) < 0 || int(h) >= len(b.Invoices) {
		return &RowRangeError{Handle: h, Rows: len(b.Invoices), Table: "invoices"}
	}
	b.Invoices = append(b.Invoices[:h], b.Invoices[h+1:]...)
	return nil
}

// =============================================================================
// READ-SIDE QUERIES
// =============================================================================

// CurrentBalance returns the running balance of the last row, or the
// opening balance for an empty ledger.
func (b *Book) CurrentBalance() decimal.Decimal {
	if len(b.Transactions) == 0 {
		return b.OpeningBalance
	}
	return b.Transactions[len(b.Transactions)-1].RunningBalanceUSD
}

// OutstandingSummary totals the invoices still awaiting settlement.
type OutstandingSummary struct {
	Invoices []Invoice

	// TotalUSD sums USD equivalents of outstanding invoices with a known
	// amount. AmountUnknown counts the rest.
	TotalUSD      decimal.Decimal
	AmountUnknown int
}

// OutstandingInvoices returns every invoice with status other than paid,
// with a USD-equivalent total and the count of amount-unknown invoices.
func (b *Book) OutstandingInvoices() OutstandingSummary {
	var out OutstandingSummary
	for _, inv := range b.Invoices {
		if !inv.Outstanding() {
			continue
		}
		out.Invoices = append(out.Invoices, inv)
		if inv.AmountTBC {
			out.AmountUnknown++
			continue
		}
		out.TotalUSD = out.TotalUSD.Add(inv.USDEquivalent)
	}
	return out
}

// UnknownKindTransactions returns the rows flagged for human review.
func (b *Book) UnknownKindTransactions() []Transaction {
	var out []Transaction
	for _, tx := range b.Transactions {
		if tx.Kind == KindUnknown {
			out = append(out, tx)
		}
	}
	return out
}
