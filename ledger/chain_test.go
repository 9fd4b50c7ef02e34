package ledger_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/meridian/agent-ledger/ledger"
	"github.com/shopspring/decimal"
)

func paymentRow(net string) ledger.Transaction {
	return ledger.Transaction{
		Date:     ledger.NewDate(2026, time.March, 1),
		Kind:     ledger.KindPayment,
		Currency: "USD",
		Amount:   dec(net).Abs(),
		NetUSD:   dec(net),
	}
}

// checkChain verifies the running-balance invariant over the whole ledger.
func checkChain(t *testing.T, book *ledger.Book) {
	t.Helper()
	prev := book.OpeningBalance
	for i, tx := range book.Transactions {
		want := prev.Add(tx.NetUSD)
		if !tx.RunningBalanceUSD.Equal(want) {
			t.Fatalf("row %d: balance %v, want %v", i, tx.RunningBalanceUSD, want)
		}
		prev = tx.RunningBalanceUSD
	}
}

func TestRecalcFrom_AnchorsOnOpeningBalance(t *testing.T) {
	// GIVEN: A ledger with garbage balances
	// WHEN: Recalculating from the first row
	// THEN: The chain anchors on the opening balance

	book := ledger.NewBook(dec("1000"))
	book.AppendTransaction(paymentRow("-100"))
	book.AppendTransaction(paymentRow("250"))
	book.AppendTransaction(paymentRow("-50.25"))

	ledger.RecalcFrom(book, 0)

	checkChain(t, book)
	if !book.CurrentBalance().Equal(dec("1099.75")) {
		t.Errorf("expected final balance 1099.75, got %v", book.CurrentBalance())
	}
}

func TestRecalcFrom_MidChainRepairLeavesPrefixAlone(t *testing.T) {
	book := ledger.NewBook(dec("0"))
	for _, net := range []string{"100", "200", "300", "400"} {
		ledger.AppendWithBalance(book, paymentRow(net))
	}

	// Corrupt row 2 onward, then repair from there.
	book.Transactions[2].NetUSD = dec("-300")
	ledger.RecalcFrom(book, 2)

	if !book.Transactions[1].RunningBalanceUSD.Equal(dec("300")) {
		t.Errorf("prefix row touched: %v", book.Transactions[1].RunningBalanceUSD)
	}
	checkChain(t, book)
	if !book.CurrentBalance().Equal(dec("400")) {
		t.Errorf("expected 400, got %v", book.CurrentBalance())
	}
}

func TestRecalcFrom_DeleteMidLedgerRepairsSuffix(t *testing.T) {
	// GIVEN: Ten rows with an intact chain
	// WHEN: Deleting row 6 and repairing from the deletion point
	// THEN: Rows 0-5 keep their balances, rows 6-8 shift and recompute

	book := ledger.NewBook(dec("0"))
	for i := 0; i < 10; i++ {
		ledger.AppendWithBalance(book, paymentRow("10"))
	}

	if err := book.DeleteTransaction(6); err != nil {
		t.Fatal(err)
	}
	ledger.RecalcFrom(book, 6)

	if len(book.Transactions) != 9 {
		t.Fatalf("expected 9 rows, got %d", len(book.Transactions))
	}
	checkChain(t, book)
	if !book.CurrentBalance().Equal(dec("90")) {
		t.Errorf("expected 90 after deleting one 10-net row, got %v", book.CurrentBalance())
	}
}

func TestRecalcFrom_FXCorrectionPropagates(t *testing.T) {
	// GIVEN: A ledger where an early row's fx rate was wrong
	// WHEN: Re-deriving that row and recalculating from it
	// THEN: Every later balance reflects the corrected net

	calc := ledger.NewCalculator(nil)
	book := ledger.NewBook(dec("20000"))

	tx := ledger.Transaction{
		Date: ledger.NewDate(2026, time.February, 10), Kind: ledger.KindPayment,
		Currency: "AED", Amount: dec("36725"),
	}
	calc.Compute(ledger.ComputeInput{
		Amount: tx.Amount, Currency: tx.Currency, Kind: tx.Kind,
	}).Apply(&tx)
	ledger.AppendWithBalance(book, tx)
	ledger.AppendWithBalance(book, paymentRow("-1000"))

	before := book.CurrentBalance()

	// The true rate was 3.5, not the table's 3.6725.
	row := &book.Transactions[0]
	calc.Compute(ledger.ComputeInput{
		Amount: row.Amount, Currency: row.Currency, Kind: row.Kind,
		FXRate: decPtr("3.5"), CommissionRate: &row.CommissionRate,
	}).Apply(row)
	ledger.RecalcFrom(book, 0)

	checkChain(t, book)
	if book.CurrentBalance().Equal(before) {
		t.Error("correction did not propagate to the final balance")
	}
	// gross moves from 10000.00 to 10492.86, net from -10050.25 to -10545.59
	if !book.Transactions[0].NetUSD.Equal(dec("-10545.59")) {
		t.Errorf("expected corrected net -10545.59, got %v", book.Transactions[0].NetUSD)
	}
}

func TestRecalcFrom_OutOfRangeStartsAreSafe(t *testing.T) {
	// A start past the tail does nothing; a negative start clamps to a full
	// rescan. Neither breaks the chain.
	book := ledger.NewBook(dec("5"))
	ledger.AppendWithBalance(book, paymentRow("10"))

	ledger.RecalcFrom(book, 99)
	ledger.RecalcFrom(book, -3)

	checkChain(t, book)
}

func TestAppendWithBalance_MatchesFullRescan(t *testing.T) {
	// GIVEN: Random nets appended via the fast path
	// THEN: A full rescan changes nothing

	rng := rand.New(rand.NewSource(42))
	book := ledger.NewBook(dec("1234.56"))
	for i := 0; i < 200; i++ {
		cents := rng.Int63n(2_000_000) - 1_000_000
		net := decimal.New(cents, -2)
		tx := paymentRow("0")
		tx.NetUSD = net
		ledger.AppendWithBalance(book, tx)
	}

	want := book.CurrentBalance()
	ledger.RecalcFrom(book, 0)
	checkChain(t, book)
	if !book.CurrentBalance().Equal(want) {
		t.Errorf("fast path %v diverged from rescan %v", want, book.CurrentBalance())
	}
}

func TestBook_RowRangeErrors(t *testing.T) {
	book := ledger.NewBook(decimal.Zero)
	book.AppendTransaction(paymentRow("1"))

	if err := book.DeleteTransaction(5); err == nil {
		t.Fatal("expected range error")
	} else if !ledger.IsClientError(err) {
		t.Errorf("range error should classify as client error, got %v", err)
	}
	if _, err := book.Invoice(0); err == nil {
		t.Fatal("expected range error on empty invoice table")
	}
}

func TestBook_CloneIsIndependent(t *testing.T) {
	book := ledger.NewBook(dec("10"))
	ledger.AppendWithBalance(book, paymentRow("5"))

	clone := book.Clone()
	clone.Transactions[0].NetUSD = dec("999")
	clone.AppendTransaction(paymentRow("1"))

	if len(book.Transactions) != 1 {
		t.Error("clone append leaked into the source")
	}
	if !book.Transactions[0].NetUSD.Equal(dec("5")) {
		t.Error("clone edit leaked into the source")
	}
}
