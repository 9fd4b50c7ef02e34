package ledger_test

import (
	"testing"
	"time"

	"github.com/meridian/agent-ledger/ledger"
)

// =============================================================================
// TOKEN OVERLAP
// =============================================================================

func TestTokensOverlap(t *testing.T) {
	cases := []struct {
		payee, other string
		want         bool
	}{
		{"Orient Insurance Co LLC", "ORIENT INS PJSC", true},
		{"Orient Insurance", "orient insurance co llc", true},
		// All shared tokens are too short to count.
		{"Al Co LLC", "Al Co LLC", false},
		{"Globex Shipping", "Initech Logistics", false},
		{"", "anything", false},
		{"insurance", "", false},
	}
	for _, c := range cases {
		if got := ledger.TokensOverlap(c.payee, c.other); got != c.want {
			t.Errorf("TokensOverlap(%q, %q) = %v, want %v", c.payee, c.other, got, c.want)
		}
	}
}

func TestAmountsClose_ToleranceEdges(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"1000", "1009", true},   // 0.9% off
		{"1000", "1011", false},  // 1.1% off
		{"1000", "1010", false},  // exactly 1% is outside the strict bound
		{"0.50", "0.505", true},  // sub-unit amounts compare against 1
		{"0.50", "2.00", false},
		{"1000", "1000", true},
	}
	for _, c := range cases {
		if got := ledger.AmountsClose(dec(c.a), dec(c.b)); got != c.want {
			t.Errorf("AmountsClose(%s, %s) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

// =============================================================================
// FIND DUPLICATE - Auto-creation suppression
// =============================================================================

func ledgerWith(rows ...ledger.Transaction) *ledger.Book {
	book := ledger.NewBook(dec("0"))
	for _, tx := range rows {
		ledger.AppendWithBalance(book, tx)
	}
	return book
}

func orientRow(day int, notes string) ledger.Transaction {
	return ledger.Transaction{
		Date:     ledger.NewDate(2026, time.March, day),
		Kind:     ledger.KindPayment,
		Payee:    "Orient Insurance Co LLC",
		Currency: "AED",
		Amount:   dec("36725"),
		NetUSD:   dec("-10050.25"),
		Notes:    notes,
	}
}

func TestFindDuplicate_FuzzyPayeeMatch(t *testing.T) {
	// GIVEN: A ledger row to "Orient Insurance Co LLC"
	// WHEN: A same-currency candidate within tolerance names "ORIENT INS"
	// THEN: The candidate is recognized as the same event

	book := ledgerWith(orientRow(5, ""))
	h, found := ledger.FindDuplicate(book, ledger.Candidate{
		Payee:    "ORIENT INS",
		Currency: "AED",
		Amount:   dec("36700"),
		Date:     ledger.NewDate(2026, time.March, 9),
	})
	if !found || h != 0 {
		t.Fatalf("expected match at row 0, got handle %d found %v", h, found)
	}
}

func TestFindDuplicate_CurrencyMismatchRejects(t *testing.T) {
	book := ledgerWith(orientRow(5, ""))
	_, found := ledger.FindDuplicate(book, ledger.Candidate{
		Payee: "Orient Insurance", Currency: "USD",
		Amount: dec("36725"), Date: ledger.NewDate(2026, time.March, 5),
	})
	if found {
		t.Error("different currency must not match")
	}
}

func TestFindDuplicate_DateWindow(t *testing.T) {
	book := ledgerWith(orientRow(5, ""))

	// 10 days apart is inside the window.
	_, found := ledger.FindDuplicate(book, ledger.Candidate{
		Payee: "Orient Insurance", Currency: "AED",
		Amount: dec("36725"), Date: ledger.NewDate(2026, time.March, 15),
	})
	if !found {
		t.Error("10 days apart should be inside the window")
	}

	// 11 days is outside.
	_, found = ledger.FindDuplicate(book, ledger.Candidate{
		Payee: "Orient Insurance", Currency: "AED",
		Amount: dec("36725"), Date: ledger.NewDate(2026, time.March, 16),
	})
	if found {
		t.Error("11 days apart should be outside the window")
	}
}

func TestFindDuplicate_OnlyPaymentsAndDeposits(t *testing.T) {
	row := orientRow(5, "")
	row.Kind = ledger.KindCashOut
	book := ledgerWith(row)

	_, found := ledger.FindDuplicate(book, ledger.Candidate{
		Payee: "Orient Insurance", Currency: "AED",
		Amount: dec("36725"), Date: ledger.NewDate(2026, time.March, 5),
	})
	if found {
		t.Error("cash movements are never duplicate candidates")
	}
}

func TestFindDuplicate_RefDisambiguation(t *testing.T) {
	// GIVEN: Two premiums to the same insurer, same amount, days apart,
	//        the existing row annotated with its own reference
	// WHEN: A candidate arrives carrying a different reference
	// THEN: It is a distinct event, not a duplicate

	book := ledgerWith(orientRow(5, "ref: REF-A"))

	_, found := ledger.FindDuplicate(book, ledger.Candidate{
		Payee: "Orient Insurance", Currency: "AED",
		Amount: dec("36725"), Date: ledger.NewDate(2026, time.March, 8),
		Ref: "REF-B",
	})
	if found {
		t.Error("differing refs mark distinct events")
	}

	// Same ref still suppresses.
	h, found := ledger.FindDuplicate(book, ledger.Candidate{
		Payee: "Orient Insurance", Currency: "AED",
		Amount: dec("36725"), Date: ledger.NewDate(2026, time.March, 8),
		Ref: "REF-A",
	})
	if !found || h != 0 {
		t.Errorf("matching ref should suppress, got handle %d found %v", h, found)
	}

	// A candidate without a ref cannot disambiguate and matches.
	_, found = ledger.FindDuplicate(book, ledger.Candidate{
		Payee: "Orient Insurance", Currency: "AED",
		Amount: dec("36725"), Date: ledger.NewDate(2026, time.March, 8),
	})
	if !found {
		t.Error("ref-less candidate should still match")
	}
}

func TestFindDuplicate_FreeTextNotesCarryNoRef(t *testing.T) {
	// GIVEN: A matching row whose notes are ordinary free text
	// WHEN: A candidate arrives carrying a payment ref
	// THEN: The notes name no reference, so suppression still applies

	book := ledgerWith(orientRow(5, "awaiting bank confirmation"))

	h, found := ledger.FindDuplicate(book, ledger.Candidate{
		Payee: "Orient Insurance", Currency: "AED",
		Amount: dec("36725"), Date: ledger.NewDate(2026, time.March, 8),
		Ref: "TT-88412",
	})
	if !found || h != 0 {
		t.Errorf("free-text notes must not defeat suppression, got handle %d found %v", h, found)
	}
}

func TestFindDuplicate_UnparseableDateStillMatches(t *testing.T) {
	// Rows with broken dates cannot be excluded by the window; the other
	// three rules decide alone.
	row := orientRow(5, "")
	row.Date = ledger.ParseDate("sometime in march")
	book := ledgerWith(row)

	_, found := ledger.FindDuplicate(book, ledger.Candidate{
		Payee: "Orient Insurance", Currency: "AED",
		Amount: dec("36725"), Date: ledger.NewDate(2026, time.March, 5),
	})
	if !found {
		t.Error("unparseable row date should not block the match")
	}
}

// =============================================================================
// ADVISORY SCAN
// =============================================================================

func TestScanDuplicates_ReportsPairOnceIgnoringRefs(t *testing.T) {
	// GIVEN: Two REF-annotated premium rows that rules 1-4 match
	// WHEN: Running the advisory scan
	// THEN: The pair is reported despite the differing refs, exactly once

	book := ledgerWith(
		orientRow(5, "ref: REF-A"),
		orientRow(8, "ref: REF-B"),
		ledger.Transaction{
			Date: ledger.NewDate(2026, time.March, 6), Kind: ledger.KindPayment,
			Payee: "Globex Shipping", Currency: "USD",
			Amount: dec("500"), NetUSD: dec("-502.51"),
		},
	)

	pairs := ledger.ScanDuplicates(book)
	if len(pairs) != 1 {
		t.Fatalf("expected 1 pair, got %d: %v", len(pairs), pairs)
	}
	if pairs[0].First != 0 || pairs[0].Second != 1 {
		t.Errorf("expected pair (0,1), got (%d,%d)", pairs[0].First, pairs[0].Second)
	}
}

func TestScanDuplicates_CleanLedger(t *testing.T) {
	book := ledgerWith(
		orientRow(5, ""),
		ledger.Transaction{
			Date: ledger.NewDate(2026, time.March, 6), Kind: ledger.KindDeposit,
			Payee: "Client Transfer", Currency: "USD",
			Amount: dec("20000"), NetUSD: dec("20000"),
		},
	)
	if pairs := ledger.ScanDuplicates(book); len(pairs) != 0 {
		t.Errorf("expected no pairs, got %v", pairs)
	}
}
