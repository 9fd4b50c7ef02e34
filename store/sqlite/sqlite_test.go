package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian/agent-ledger/ledger"
	"github.com/meridian/agent-ledger/store/sqlite"
)

func dec(s string) decimal.Decimal { return ledger.MustDecimal(s) }

func openTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	// GIVEN: A book with one transaction and one invoice
	// WHEN: Saving and loading it back
	// THEN: Every field survives, including decimals and display dates

	store := openTestStore(t)
	ctx := context.Background()

	book := ledger.NewBook(dec("20000"))
	ledger.AppendWithBalance(book, ledger.Transaction{
		Date:           ledger.ParseDate("01.03.2026"),
		Kind:           ledger.KindPayment,
		Description:    "Premium Q1",
		Payee:          "Orient Insurance Co LLC",
		Currency:       "AED",
		Amount:         dec("36725"),
		FXRate:         dec("3.6725"),
		CommissionRate: dec("0.005"),
		GrossUSD:       dec("10000"),
		NetUSD:         dec("-10050.25"),
		Confirmed:      true,
		Notes:          "ref: TT-88412",
		Beneficiary:    "Globex Holdings Ltd",
	})
	book.AppendInvoice(ledger.Invoice{
		Date:          ledger.ParseDate("15.02.2026"),
		InvoiceNo:     "GLX-2026-017",
		Payee:         "Globex Shipping LLC",
		Currency:      "USD",
		Amount:        dec("4500"),
		USDEquivalent: dec("4500"),
		Status:        ledger.StatusPaid,
		DatePaid:      ledger.ParseDate("01.03.2026"),
		PaymentRef:    "TT-88412",
	})

	require.NoError(t, store.Save(ctx, book))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)

	assert.True(t, loaded.OpeningBalance.Equal(dec("20000")))
	require.Len(t, loaded.Transactions, 1)
	require.Len(t, loaded.Invoices, 1)

	tx := loaded.Transactions[0]
	assert.Equal(t, ledger.KindPayment, tx.Kind)
	assert.Equal(t, "01.03.2026", tx.Date.String())
	assert.True(t, tx.Date.Valid())
	assert.True(t, tx.Amount.Equal(dec("36725")))
	assert.True(t, tx.NetUSD.Equal(dec("-10050.25")))
	assert.True(t, tx.RunningBalanceUSD.Equal(dec("9949.75")))
	assert.True(t, tx.Confirmed)
	assert.Equal(t, "ref: TT-88412", tx.Notes)

	inv := loaded.Invoices[0]
	assert.Equal(t, ledger.StatusPaid, inv.Status)
	assert.Equal(t, "01.03.2026", inv.DatePaid.String())
	assert.True(t, inv.Amount.Equal(dec("4500")))
	assert.Equal(t, "TT-88412", inv.PaymentRef)
}

func TestSave_ReplacesWholeDocument(t *testing.T) {
	// Save is a whole-document replace: rows removed in memory disappear
	// from disk, and positions renumber to the new order.

	store := openTestStore(t)
	ctx := context.Background()

	book := ledger.NewBook(dec("0"))
	for _, payee := range []string{"first", "second", "third"} {
		ledger.AppendWithBalance(book, ledger.Transaction{
			Date: ledger.ParseDate("01.03.2026"), Kind: ledger.KindDeposit,
			Payee: payee, Currency: "USD", Amount: dec("10"), NetUSD: dec("10"),
		})
	}
	require.NoError(t, store.Save(ctx, book))

	require.NoError(t, book.DeleteTransaction(1))
	ledger.RecalcFrom(book, 1)
	require.NoError(t, store.Save(ctx, book))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded.Transactions, 2)
	assert.Equal(t, "first", loaded.Transactions[0].Payee)
	assert.Equal(t, "third", loaded.Transactions[1].Payee)
	assert.True(t, loaded.CurrentBalance().Equal(dec("20")))
}

func TestOpeningBalance_DefaultsToZero(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, loaded.OpeningBalance.IsZero())
	assert.Empty(t, loaded.Transactions)
}

func TestSetOpeningBalance_SurvivesReload(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()

	store, err := sqlite.New(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.SetOpeningBalance(ctx, dec("12345.67")))
	require.NoError(t, store.Close())

	reopened, err := sqlite.New(dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := reopened.Load(ctx)
	require.NoError(t, err)
	assert.True(t, loaded.OpeningBalance.Equal(dec("12345.67")))
	assert.True(t, loaded.CurrentBalance().Equal(dec("12345.67")))
}

func TestLoad_PreservesUnparseableDateText(t *testing.T) {
	// A row whose date never parsed keeps its raw text across persistence.

	store := openTestStore(t)
	ctx := context.Background()

	book := ledger.NewBook(dec("0"))
	ledger.AppendWithBalance(book, ledger.Transaction{
		Date: ledger.ParseDate("mid March, probably"), Kind: ledger.KindPayment,
		Payee: "Globex Shipping", Currency: "USD",
		Amount: dec("100"), NetUSD: dec("-100.50"),
	})
	require.NoError(t, store.Save(ctx, book))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded.Transactions, 1)
	assert.Equal(t, "mid March, probably", loaded.Transactions[0].Date.String())
	assert.False(t, loaded.Transactions[0].Date.Valid())
}
