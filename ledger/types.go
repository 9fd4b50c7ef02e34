/*
Package ledger provides the core ledger consistency engine.

PURPOSE:
  This package contains the data model and algorithms that keep a
  multi-currency transaction ledger and its linked invoice register
  consistent under incremental updates: derived-column calculation
  (FX conversion, commission, net value), running-balance maintenance,
  and fuzzy duplicate detection.

KEY CONCEPTS IN THIS FILE (types.go):
  - Transaction: A ledger row with raw fields and derived USD columns
  - TransactionKind: Closed enum of economic event types
  - Invoice: A billable obligation tracked in the register
  - InvoiceStatus: Closed enum of the invoice payment lifecycle
  - RowHandle: Positional row identity within the book

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Closed variants: Kinds and statuses are exhaustively matchable;
     unrecognized inputs collapse to an explicit Unknown value instead
     of silently falling through
  3. Positional identity: Rows are identified by position, not content;
     structural mutations invalidate handles of later rows

SEE ALSO:
  - fx.go: Derived-column calculation from raw fields
  - chain.go: Running-balance maintenance
  - dedup.go: Fuzzy duplicate detection
  - book.go: The in-memory arena holding both tables
*/
package ledger

import (
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TRANSACTION KIND - Closed enum of economic event types
// =============================================================================

type TransactionKind string

const (
	KindPayment TransactionKind = "payment"  // Outgoing payment on behalf of the principal
	KindDeposit TransactionKind = "deposit"  // Funds placed with the intermediary
	KindCashOut TransactionKind = "cash_out" // Physical cash withdrawn
	KindCashIn  TransactionKind = "cash_in"  // Physical cash received
	KindUnknown TransactionKind = "unknown"  // Unclassified; flagged for review
)

// ParseKind maps free-text kind labels to a closed variant.
// Anything unrecognized becomes KindUnknown rather than defaulting to a
// payment, so it can never pick up a payment commission by accident.
func ParseKind(s string) TransactionKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "payment", "pay":
		return KindPayment
	case "deposit", "top-up", "topup":
		return KindDeposit
	case "cash_out", "cashout", "cash out":
		return KindCashOut
	case "cash_in", "cashin", "cash in":
		return KindCashIn
	default:
		return KindUnknown
	}
}

// Inbound reports whether the kind adds funds to the balance.
// Inbound legs carry no commission.
func (k TransactionKind) Inbound() bool {
	return k == KindDeposit || k == KindCashIn
}

// =============================================================================
// TRANSACTION - A ledger row
// =============================================================================

// Transaction is one row of the ledger. Raw fields come from the caller;
// derived fields (FXRate when defaulted, GrossUSD, NetUSD, RunningBalanceUSD)
// are computed by the Calculator and the balance chain.
type Transaction struct {
	Date        Date
	Kind        TransactionKind
	Description string
	Payee       string
	Currency    string
	Amount      decimal.Decimal

	// FXRate is currency units per 1 USD: gross_usd = amount / fx_rate.
	// Retained to 5 decimal places.
	FXRate decimal.Decimal

	// CommissionRate is in [0, 1). Zero for inbound kinds.
	CommissionRate decimal.Decimal

	// Derived, rounded to 2 decimal places.
	GrossUSD decimal.Decimal
	NetUSD   decimal.Decimal

	// RunningBalanceUSD depends on the row's position; maintained by
	// RecalcFrom, never set directly by callers.
	RunningBalanceUSD decimal.Decimal

	// FXApproximate marks rows whose rate came from the unknown-currency
	// fallback of 1.0 rather than the rate table or the caller.
	FXApproximate bool

	// Confirmed records whether the counterparty has acknowledged the
	// transaction. Flipped after the fact by transaction field-updates.
	Confirmed bool

	Notes       string
	Payer       string // Issuing intermediary-side legal entity, optional
	Beneficiary string // Ultimate recipient of value, optional
}

// NetAffectingChange reports whether replacing this row with next changes
// any input of the net-USD derivation, which forces a balance rescan.
func (t Transaction) NetAffectingChange(next Transaction) bool {
	return !t.Amount.Equal(next.Amount) ||
		t.Currency != next.Currency ||
		!t.FXRate.Equal(next.FXRate) ||
		!t.CommissionRate.Equal(next.CommissionRate) ||
		t.Kind != next.Kind
}

// =============================================================================
// INVOICE STATUS - Payment lifecycle
// =============================================================================

type InvoiceStatus string

const (
	StatusPending            InvoiceStatus = "pending"
	StatusInProgress         InvoiceStatus = "in_progress"
	StatusPaid               InvoiceStatus = "paid" // Terminal
	StatusPartialOrCheck     InvoiceStatus = "partial_or_check"
	StatusNeedsClarification InvoiceStatus = "needs_clarification"
)

// ParseStatus maps free-text status labels to a closed variant.
// Unrecognized labels fall back to StatusPending.
func ParseStatus(s string) InvoiceStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "paid":
		return StatusPaid
	case "in_progress", "in progress", "inprogress":
		return StatusInProgress
	case "partial_or_check", "partial", "check":
		return StatusPartialOrCheck
	case "needs_clarification", "clarify", "unclear":
		return StatusNeedsClarification
	default:
		return StatusPending
	}
}

// Terminal reports whether the status admits no further normal transitions.
// A terminal invoice can still be corrected back to pending by an explicit
// field edit, which is not a transition.
func (s InvoiceStatus) Terminal() bool { return s == StatusPaid }

// =============================================================================
// INVOICE - A register row
// =============================================================================

// Invoice is one row of the invoice register. Linkage to a ledger row is a
// business rule re-derived via duplicate detection, not a stored foreign key:
// the underlying store has no referential integrity to lean on.
type Invoice struct {
	Date      Date
	InvoiceNo string
	Payee     string
	Currency  string
	Amount    decimal.Decimal

	// AmountTBC marks invoices whose amount is not yet known ("TBC" in the
	// incoming payload). Amount is zero while set.
	AmountTBC bool

	// USDEquivalent is derived from Amount via the rate table, 2 dp.
	USDEquivalent decimal.Decimal

	Status      InvoiceStatus
	DatePaid    Date
	PaymentRef  string
	Notes       string
	Beneficiary string
}

// Outstanding reports whether the invoice still awaits settlement.
func (inv Invoice) Outstanding() bool { return inv.Status != StatusPaid }

// =============================================================================
// ROW HANDLE - Positional identity
// =============================================================================

// RowHandle identifies a row by its current position in its table.
// Handles are only valid until the next structural mutation (insert or
// delete before the row); a batch must re-resolve handles it holds across
// such mutations.
type RowHandle int

// HandleNone is returned by lookups that found nothing.
const HandleNone RowHandle = -1

// =============================================================================
// DECIMAL HELPERS
// =============================================================================

// MoneyScale and RateScale are the storage precisions for monetary values
// and FX rates respectively.
const (
	MoneyScale = 2
	RateScale  = 5
)

func RoundMoney(d decimal.Decimal) decimal.Decimal { return d.Round(MoneyScale) }
func RoundRate(d decimal.Decimal) decimal.Decimal  { return d.Round(RateScale) }

// MustDecimal parses s, returning zero on failure. For constants and tests.
func MustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
