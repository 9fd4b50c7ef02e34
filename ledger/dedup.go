/*
dedup.go - Fuzzy duplicate detection

PURPOSE:
  Decides whether a candidate transaction describes an economic event the
  ledger already holds. Matching is deliberately permissive: upstream
  extraction produces free-text payees ("Orient Insurance Co LLC" vs
  "ORIENT INS"), so exact equality would miss real duplicates.

MATCHING RULES (all must hold):
  1. Row kind is Payment or Deposit
  2. A payee token longer than 3 characters appears as a substring of the
     row's payee or description, case-insensitively
  3. Same currency, amounts within 1% relative tolerance
  4. Dates within 10 calendar days (when both parse)
  5. Ref disambiguation: a candidate carrying a ref different from a ref
     annotation ("ref: X") already in the row's notes is a distinct event;
     free-text notes without an annotation carry no reference

  Rule 5 applies only to auto-creation suppression. The advisory ledger-wide
  scan uses rules 1-4 and never deletes anything.

SEE ALSO:
  - engine/invoices.go: Suppression before auto-created transactions
*/
package ledger

import (
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TOKEN OVERLAP - The tested fuzzy-match primitive
// =============================================================================

// TokensOverlap reports whether any token of payee longer than 3 characters
// appears as a substring of other, case-insensitively. This is the single
// scoring function behind all payee/description fuzzy matching, kept
// separate so the matching behavior itself is part of the tested contract.
func TokensOverlap(payee, other string) bool {
	other = strings.ToLower(other)
	for _, token := range strings.Fields(strings.ToLower(payee)) {
		if len(token) > 3 && strings.Contains(other, token) {
			return true
		}
	}
	return false
}

// =============================================================================
// DUPLICATE DETECTION
// =============================================================================

// amountTolerance is the relative tolerance under rule 3.
var amountTolerance = MustDecimal("0.01")

// dateWindowDays is the calendar window under rule 4.
const dateWindowDays = 10

// Candidate describes a transaction that is about to be created.
type Candidate struct {
	Payee    string
	Currency string
	Amount   decimal.Decimal
	Date     Date

	// Ref is the payment reference, if the caller has one. Used only for
	// rule 5.
	Ref string
}

// matchesRow applies rules 1-4 of the candidate against one row.
func (c Candidate) matchesRow(tx Transaction) bool {
	if tx.Kind != KindPayment && tx.Kind != KindDeposit {
		return false
	}
	if !TokensOverlap(c.Payee, tx.Payee) && !TokensOverlap(c.Payee, tx.Description) {
		return false
	}
	if c.Currency != tx.Currency {
		return false
	}
	if !AmountsClose(c.Amount, tx.Amount) {
		return false
	}
	if c.Date.Valid() && tx.Date.Valid() && !c.Date.WithinDays(tx.Date, dateWindowDays) {
		return false
	}
	return true
}

// AmountsClose checks |a-b| / max(a, 1) < 1%, the relative tolerance used
// for both duplicate detection and amount-based invoice matching.
func AmountsClose(a, b decimal.Decimal) bool {
	denom := a
	if denom.LessThan(decimal.NewFromInt(1)) {
		denom = decimal.NewFromInt(1)
	}
	return a.Sub(b).Abs().Div(denom).LessThan(amountTolerance)
}

// FindDuplicate scans the ledger for a row representing the same economic
// event as the candidate. Returns the handle of the first match, or
// HandleNone when the candidate is genuinely new.
//
// Two payments to the same payee for the same amount with distinct payment
// references are distinct events: a candidate ref that differs from a ref
// annotation in a row's notes rejects that row (rule 5).
func FindDuplicate(book *Book, c Candidate) (RowHandle, bool) {
	for i, tx := range book.Transactions {
		if !c.matchesRow(tx) {
			continue
		}
		if c.Ref != "" && refConflict(c.Ref, tx.Notes) {
			continue
		}
		return RowHandle(i), true
	}
	return HandleNone, false
}

// refConflict reports whether notes carry a ref annotation ("ref: X")
// naming a reference other than ref. Free-text notes without an annotation
// carry no reference and cannot mark the row as a distinct event.
func refConflict(ref, notes string) bool {
	lower := strings.ToLower(notes)
	i := strings.Index(lower, "ref:")
	if i < 0 {
		return false
	}
	return !strings.Contains(lower[i:], strings.ToLower(ref))
}

// =============================================================================
// ADVISORY SCAN
// =============================================================================

// DuplicatePair flags two rows as a possible duplicate requiring human
// review. Always advisory; nothing is ever auto-deleted.
type DuplicatePair struct {
	First  RowHandle
	Second RowHandle
}

// ScanDuplicates flags every pair of rows satisfying rules 1-4, ignoring
// ref disambiguation. The scan treats the later row as the candidate so
// each pair is reported once.
func ScanDuplicates(book *Book) []DuplicatePair {
	var pairs []DuplicatePair
	for j := 1; j < len(book.Transactions); j++ {
		later := book.Transactions[j]
		c := Candidate{
			Payee:    later.Payee,
			Currency: later.Currency,
			Amount:   later.Amount,
			Date:     later.Date,
		}
		if later.Kind != KindPayment && later.Kind != KindDeposit {
			continue
		}
		for i := 0; i < j; i++ {
			if c.matchesRow(book.Transactions[i]) {
				pairs = append(pairs, DuplicatePair{First: RowHandle(i), Second: RowHandle(j)})
			}
		}
	}
	return pairs
}
