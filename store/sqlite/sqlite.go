/*
Package sqlite provides a SQLite-backed implementation of the book store.

PURPOSE:
  Persists the two-table document (transactions, invoices) plus the
  settings that anchor it (opening balance). The store deliberately
  mirrors the document model the engine assumes: the book is read whole
  and written whole, with row order carried by an explicit position
  column. There is no row-level UPDATE path - a batch that fails before
  Save leaves the persisted document untouched.

KEY TABLES:
  transactions: Ledger rows, ordered by position
  invoices:     Register rows, ordered by position
  settings:     Key/value; carries opening_balance

WAL MODE:
  SQLite is opened with WAL for better crash recovery; the engine is
  single-writer by contract, so writer concurrency is not a concern.

USAGE:
  store, err := sqlite.New("./data/ledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - ledger/store.go: Load/Save contract
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/meridian/agent-ledger/ledger"
	"github.com/shopspring/decimal"
)

// Store persists the book in SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// New opens (or creates) the database at dbPath. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// The engine is single-writer; one connection also keeps ":memory:"
	// databases coherent across calls.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS transactions (
		position INTEGER PRIMARY KEY,
		date TEXT NOT NULL,
		kind TEXT NOT NULL,
		description TEXT,
		payee TEXT,
		currency TEXT NOT NULL,
		amount TEXT NOT NULL,
		fx_rate TEXT NOT NULL,
		commission_rate TEXT NOT NULL,
		gross_usd TEXT NOT NULL,
		net_usd TEXT NOT NULL,
		running_balance_usd TEXT NOT NULL,
		fx_approximate INTEGER NOT NULL DEFAULT 0,
		confirmed INTEGER NOT NULL DEFAULT 0,
		notes TEXT,
		payer TEXT,
		beneficiary TEXT
	);

	CREATE TABLE IF NOT EXISTS invoices (
		position INTEGER PRIMARY KEY,
		date TEXT NOT NULL,
		invoice_no TEXT,
		payee TEXT,
		currency TEXT NOT NULL,
		amount TEXT NOT NULL,
		amount_tbc INTEGER NOT NULL DEFAULT 0,
		usd_equivalent TEXT NOT NULL,
		status TEXT NOT NULL,
		date_paid TEXT,
		payment_ref TEXT,
		notes TEXT,
		beneficiary TEXT
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SETTINGS
// =============================================================================

const openingBalanceKey = "opening_balance"

// SetOpeningBalance stores the balance the first ledger row anchors to.
func (s *Store) SetOpeningBalance(ctx context.Context, balance decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		openingBalanceKey, balance.String())
	return err
}

func (s *Store) openingBalance(ctx context.Context) (decimal.Decimal, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, openingBalanceKey).Scan(&raw)
	if err == sql.ErrNoRows {
		// Unset opening balance defaults to zero.
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	balance, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("corrupt opening balance %q: %w", raw, err)
	}
	return balance, nil
}

// =============================================================================
// LOAD - Whole document read
// =============================================================================

func (s *Store) Load(ctx context.Context) (*ledger.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	opening, err := s.openingBalance(ctx)
	if err != nil {
		return nil, err
	}
	book := ledger.NewBook(opening)

	if err := s.loadTransactions(ctx, book); err != nil {
		return nil, err
	}
	if err := s.loadInvoices(ctx, book); err != nil {
		return nil, err
	}
	return book, nil
}

func (s *Store) loadTransactions(ctx context.Context, book *ledger.Book) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, kind, description, payee, currency, amount, fx_rate,
		       commission_rate, gross_usd, net_usd, running_balance_usd,
		       fx_approximate, confirmed, notes, payer, beneficiary
		FROM transactions ORDER BY position`)
	if err != nil {
		return fmt.Errorf("loading transactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			tx                     ledger.Transaction
			date, kind             string
			amount, fx, commission string
			gross, net, running    string
			approximate, confirmed bool
		)
		if err := rows.Scan(&date, &kind, &tx.Description, &tx.Payee, &tx.Currency,
			&amount, &fx, &commission, &gross, &net, &running,
			&approximate, &confirmed, &tx.Notes, &tx.Payer, &tx.Beneficiary); err != nil {
			return fmt.Errorf("scanning transaction: %w", err)
		}
		tx.Date = ledger.ParseDate(date)
		tx.Kind = ledger.TransactionKind(kind)
		tx.Amount = ledger.MustDecimal(amount)
		tx.FXRate = ledger.MustDecimal(fx)
		tx.CommissionRate = ledger.MustDecimal(commission)
		tx.GrossUSD = ledger.MustDecimal(gross)
		tx.NetUSD = ledger.MustDecimal(net)
		tx.RunningBalanceUSD = ledger.MustDecimal(running)
		tx.FXApproximate = approximate
		tx.Confirmed = confirmed
		book.AppendTransaction(tx)
	}
	return rows.Err()
}

func (s *Store) loadInvoices(ctx context.Context, book *ledger.Book) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, invoice_no, payee, currency, amount, amount_tbc,
		       usd_equivalent, status, date_paid, payment_ref, notes, beneficiary
		FROM invoices ORDER BY position`)
	if err != nil {
		return fmt.Errorf("loading invoices: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			inv                 ledger.Invoice
			date, datePaid      string
			amount, usd, status string
		)
		if err := rows.Scan(&date, &inv.InvoiceNo, &inv.Payee, &inv.Currency,
			&amount, &inv.AmountTBC, &usd, &status, &datePaid,
			&inv.PaymentRef, &inv.Notes, &inv.Beneficiary); err != nil {
			return fmt.Errorf("scanning invoice: %w", err)
		}
		inv.Date = ledger.ParseDate(date)
		inv.Amount = ledger.MustDecimal(amount)
		inv.USDEquivalent = ledger.MustDecimal(usd)
		inv.Status = ledger.InvoiceStatus(status)
		if datePaid != "" {
			inv.DatePaid = ledger.ParseDate(datePaid)
		}
		book.AppendInvoice(inv)
	}
	return rows.Err()
}

// =============================================================================
// SAVE - Whole document replace
// =============================================================================

// Save replaces the persisted document with the given book in a single
// database transaction, so a crash mid-save never leaves a half-written
// document.
func (s *Store) Save(ctx context.Context, book *ledger.Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning save: %w", err)
	}
	defer dbTx.Rollback()

	if _, err := dbTx.ExecContext(ctx, `DELETE FROM transactions`); err != nil {
		return fmt.Errorf("clearing transactions: %w", err)
	}
	if _, err := dbTx.ExecContext(ctx, `DELETE FROM invoices`); err != nil {
		return fmt.Errorf("clearing invoices: %w", err)
	}

	for i, tx := range book.Transactions {
		_, err := dbTx.ExecContext(ctx, `
			INSERT INTO transactions (position, date, kind, description, payee,
				currency, amount, fx_rate, commission_rate, gross_usd, net_usd,
				running_balance_usd, fx_approximate, confirmed, notes, payer, beneficiary)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			i, tx.Date.String(), string(tx.Kind), tx.Description, tx.Payee,
			tx.Currency, tx.Amount.String(), tx.FXRate.String(),
			tx.CommissionRate.String(), tx.GrossUSD.String(), tx.NetUSD.String(),
			tx.RunningBalanceUSD.String(), tx.FXApproximate, tx.Confirmed,
			tx.Notes, tx.Payer, tx.Beneficiary)
		if err != nil {
			return fmt.Errorf("saving transaction %d: %w", i, err)
		}
	}

	for i, inv := range book.Invoices {
		_, err := dbTx.ExecContext(ctx, `
			INSERT INTO invoices (position, date, invoice_no, payee, currency,
				amount, amount_tbc, usd_equivalent, status, date_paid,
				payment_ref, notes, beneficiary)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			i, inv.Date.String(), inv.InvoiceNo, inv.Payee, inv.Currency,
			inv.Amount.String(), inv.AmountTBC, inv.USDEquivalent.String(),
			string(inv.Status), inv.DatePaid.String(), inv.PaymentRef,
			inv.Notes, inv.Beneficiary)
		if err != nil {
			return fmt.Errorf("saving invoice %d: %w", i, err)
		}
	}

	if _, err := dbTx.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		openingBalanceKey, book.OpeningBalance.String()); err != nil {
		return fmt.Errorf("saving opening balance: %w", err)
	}

	return dbTx.Commit()
}
