/*
invoices.go - Invoice state machine and auto-linking

PURPOSE:
  Applies status updates to invoice rows and, on a transition into paid,
  materializes the linked payment transaction - unless the duplicate
  detector finds the economic event already on the ledger, in which case
  the existing row is annotated with the new payment reference instead.

STATE MACHINE:
  pending -> in_progress -> {paid, partial_or_check, needs_clarification}
  paid is terminal. Any state can be corrected back to pending by an
  explicit field edit, which is an edit, not a transition.

INVOICE RESOLUTION:
  Upstream extraction frequently supplies a payee name where a formal
  invoice number should be, so resolution is layered:
    1. exact / substring match on invoice number
    2. substring match against the stored payment reference
    3. payee token overlap combined with amount tolerance

BENEFICIARY RULE:
  The beneficiary is the ultimate recipient of value, never the
  intermediary itself. Supplied beneficiaries matching the closed
  intermediary denylist are dropped.

SEE ALSO:
  - engine.go: Batch orchestration around these updates
  - ledger/dedup.go: Duplicate suppression
*/
package engine

import (
	"fmt"
	"strings"

	"github.com/meridian/agent-ledger/ledger"
	"github.com/shopspring/decimal"
)

// =============================================================================
// INTERMEDIARY DENYLIST
// =============================================================================

// Denylist holds lowercase fragments of the intermediary's own legal
// entity names. A beneficiary containing any fragment is rejected.
type Denylist []string

// DefaultDenylist covers the intermediary-side entities that issue
// payments and must never appear as a beneficiary.
func DefaultDenylist() Denylist {
	return Denylist{"meridian", "meridian trading", "meridian fzco"}
}

func (d Denylist) Matches(name string) bool {
	name = strings.ToLower(name)
	for _, fragment := range d {
		if fragment != "" && strings.Contains(name, fragment) {
			return true
		}
	}
	return false
}

// =============================================================================
// INVOICE RESOLUTION
// =============================================================================

// resolveInvoice finds the register row an update refers to, trying each
// strategy in order. Returns HandleNone when nothing matches.
func resolveInvoice(book *ledger.Book, up InvoiceUpdate) ledger.RowHandle {
	ref := strings.ToLower(strings.TrimSpace(up.InvoiceNo))
	if ref == "" {
		return ledger.HandleNone
	}

	// Strategy 1: invoice number, exact or substring either way.
	for i, inv := range book.Invoices {
		no := strings.ToLower(strings.TrimSpace(inv.InvoiceNo))
		if no == "" {
			continue
		}
		if no == ref || strings.Contains(no, ref) || strings.Contains(ref, no) {
			return ledger.RowHandle(i)
		}
	}

	// Strategy 2: stored payment reference.
	for i, inv := range book.Invoices {
		stored := strings.ToLower(strings.TrimSpace(inv.PaymentRef))
		if stored == "" {
			continue
		}
		if strings.Contains(stored, ref) || strings.Contains(ref, stored) {
			return ledger.RowHandle(i)
		}
	}

	// Strategy 3: payee name plus amount tolerance.
	for i, inv := range book.Invoices {
		if !ledger.TokensOverlap(up.InvoiceNo, inv.Payee) {
			continue
		}
		if up.SettlementAmount.Set && !inv.AmountTBC &&
			!ledger.AmountsClose(up.SettlementAmount.Value, inv.Amount) {
			continue
		}
		return ledger.RowHandle(i)
	}

	return ledger.HandleNone
}

// =============================================================================
// STATUS UPDATE + AUTO-LINK
// =============================================================================

// InvoiceUpdateOutcome reports what one status update did.
type InvoiceUpdateOutcome struct {
	Matched            bool
	TransactionCreated bool
	DuplicateRow       ledger.RowHandle

	// DuplicateWarning is the suppression notice when DuplicateRow is set.
	DuplicateWarning string

	// Warnings are the remaining human-facing notices: missing settlement
	// amounts, fx fallbacks, rejected beneficiaries.
	Warnings []string
}

// ApplyInvoiceUpdate runs one status update against the book. A reference
// matching nothing returns Matched=false and mutates nothing; that is a
// reportable condition, not an error.
func (e *Engine) ApplyInvoiceUpdate(book *ledger.Book, up InvoiceUpdate) InvoiceUpdateOutcome {
	out := InvoiceUpdateOutcome{DuplicateRow: ledger.HandleNone}

	h := resolveInvoice(book, up)
	if h == ledger.HandleNone {
		return out
	}
	out.Matched = true

	inv, _ := book.Invoice(h)
	inv.Status = ledger.ParseStatus(up.NewStatus)
	if up.DatePaid != "" {
		inv.DatePaid = ledger.ParseDate(up.DatePaid)
	}
	if up.Ref != "" {
		inv.PaymentRef = up.Ref
	}
	if up.Beneficiary != "" {
		if e.Denylist.Matches(up.Beneficiary) {
			out.Warnings = append(out.Warnings, fmt.Sprintf(
				"beneficiary %q names an intermediary entity, kept %q", up.Beneficiary, inv.Beneficiary))
		} else {
			inv.Beneficiary = up.Beneficiary
		}
	}

	if inv.Status == ledger.StatusPaid {
		created, dup, dupWarn, warns := e.autoLink(book, &inv, up)
		out.TransactionCreated = created
		out.DuplicateRow = dup
		out.DuplicateWarning = dupWarn
		out.Warnings = append(out.Warnings, warns...)
	}

	book.SetInvoice(h, inv)
	return out
}

// autoLink materializes the payment transaction for a paid invoice, or
// annotates the duplicate row that already represents it. Settlement
// details outrank the invoice's own amount; with neither, no transaction
// is created.
func (e *Engine) autoLink(book *ledger.Book, inv *ledger.Invoice, up InvoiceUpdate) (bool, ledger.RowHandle, string, []string) {
	var warns []string

	amount, currency, ok := settlementFor(inv, up)
	if !ok {
		warns = append(warns, fmt.Sprintf(
			"invoice %s marked paid without a settlement amount; no transaction created", inv.InvoiceNo))
		return false, ledger.HandleNone, "", warns
	}

	date := settlementDate(inv, up)
	candidate := ledger.Candidate{
		Payee:    inv.Payee,
		Currency: currency,
		Amount:   amount,
		Date:     date,
		Ref:      up.Ref,
	}

	if dup, found := ledger.FindDuplicate(book, candidate); found {
		tx, _ := book.Transaction(dup)
		if up.Ref != "" && !strings.Contains(strings.ToLower(tx.Notes), strings.ToLower(up.Ref)) {
			tx.Notes = appendNote(tx.Notes, "ref: "+up.Ref)
			book.SetTransaction(dup, tx)
		}
		dupWarn := fmt.Sprintf(
			"invoice %s already settled by ledger row %d; transaction not duplicated", inv.InvoiceNo, dup)
		return false, dup, dupWarn, warns
	}

	beneficiary := inv.Beneficiary
	if up.Beneficiary != "" && !e.Denylist.Matches(up.Beneficiary) {
		beneficiary = up.Beneficiary
	}

	// The ref lands as an annotation so a later update carrying a
	// different ref can tell this settlement apart.
	notes := ""
	if up.Ref != "" {
		notes = "ref: " + up.Ref
	}
	tx := ledger.Transaction{
		Date:        date,
		Kind:        ledger.KindPayment,
		Description: "Invoice " + inv.InvoiceNo,
		Payee:       inv.Payee,
		Currency:    currency,
		Amount:      amount,
		Notes:       notes,
		Beneficiary: beneficiary,
		Confirmed:   true,
	}
	derived := e.Calc.Compute(ledger.ComputeInput{
		Amount:   amount,
		Currency: currency,
		Kind:     ledger.KindPayment,
		FXRate:   up.SettlementFX.Ptr(),
	})
	derived.Apply(&tx)
	if derived.Approximate {
		warns = append(warns, fmt.Sprintf(
			"no fx rate for %s; converted at 1.0 (approximate)", currency))
	}

	ledger.AppendWithBalance(book, tx)
	return true, ledger.HandleNone, "", warns
}

// settlementFor picks the amount and currency for the linked transaction:
// settlement details first, then the invoice's own amount, else nothing.
func settlementFor(inv *ledger.Invoice, up InvoiceUpdate) (decimal.Decimal, string, bool) {
	if up.SettlementAmount.Set {
		currency := up.SettlementCurrency
		if currency == "" {
			currency = inv.Currency
		}
		return up.SettlementAmount.Value, currency, true
	}
	if !inv.AmountTBC && inv.Amount.IsPositive() {
		return inv.Amount, inv.Currency, true
	}
	return decimal.Zero, "", false
}

func settlementDate(inv *ledger.Invoice, up InvoiceUpdate) ledger.Date {
	if up.SettlementDate != "" {
		return ledger.ParseDate(up.SettlementDate)
	}
	if up.DatePaid != "" {
		return ledger.ParseDate(up.DatePaid)
	}
	if inv.DatePaid.Valid() {
		return inv.DatePaid
	}
	return ledger.Today()
}

func appendNote(notes, addition string) string {
	if strings.TrimSpace(notes) == "" {
		return addition
	}
	return notes + "; " + addition
}
