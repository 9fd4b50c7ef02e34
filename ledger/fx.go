/*
fx.go - Derived column calculation

PURPOSE:
  Computes the derived financial columns of a ledger row from its raw
  fields: FX rate, commission rate, gross USD, and net USD. This is a
  pure calculation with no I/O and no dependence on ledger position;
  the running balance is maintained separately by chain.go.

DERIVATION RULES:
  gross_usd = round(amount / fx_rate, 2)
  net_usd   = gross_usd                                   (inbound kinds)
  net_usd   = -(gross_usd / max(1 - commission, 0.0001))  (outgoing kinds)

  The 0.0001 clamp keeps a commission rate approaching 1 from blowing up
  the division.

COMMISSION SCHEDULE:
  0%   Deposit / CashIn
  0.4% the designated low-commission currency (RUB)
  0.5% everything else

FX FALLBACK:
  An unknown currency falls back to a rate of 1.0. The row is marked
  Approximate so callers can surface the degraded conversion instead of
  treating it as exact.

SEE ALSO:
  - chain.go: Running balance from net USD
  - types.go: Scale constants and kind semantics
*/
package ledger

import "github.com/shopspring/decimal"

// =============================================================================
// RATE TABLE - Currency to units-per-USD
// =============================================================================

// RateTable maps an ISO-like currency code to how many of its units equal
// one USD.
type RateTable map[string]decimal.Decimal

// LowCommissionCurrency is charged the reduced 0.4% commission.
const LowCommissionCurrency = "RUB"

// DefaultRates covers the currencies the intermediary actually settles in.
// AED is pegged at 3.6725 to the dollar.
func DefaultRates() RateTable {
	return RateTable{
		"USD": decimal.NewFromInt(1),
		"AED": MustDecimal("3.6725"),
		"EUR": MustDecimal("0.92"),
		"CNY": MustDecimal("7.25"),
		"SGD": MustDecimal("1.34"),
		"RUB": MustDecimal("92.5"),
	}
}

// Lookup returns the rate for a currency, falling back to 1.0 for codes
// the table does not carry. The second return value is false on fallback.
func (rt RateTable) Lookup(currency string) (decimal.Decimal, bool) {
	if rate, ok := rt[currency]; ok && rate.IsPositive() {
		return rate, true
	}
	return decimal.NewFromInt(1), false
}

// =============================================================================
// CALCULATOR - Pure derivation of the financial columns
// =============================================================================

var (
	commissionStandard = MustDecimal("0.005")
	commissionReduced  = MustDecimal("0.004")

	// commissionFloor clamps (1 - commission) away from zero.
	commissionFloor = MustDecimal("0.0001")
)

type Calculator struct {
	Rates RateTable
}

func NewCalculator(rates RateTable) *Calculator {
	if rates == nil {
		rates = DefaultRates()
	}
	return &Calculator{Rates: rates}
}

// ComputeInput carries the raw fields of a row. FXRate and CommissionRate
// are optional; nil means "derive from the schedule".
type ComputeInput struct {
	Amount         decimal.Decimal
	Currency       string
	Kind           TransactionKind
	FXRate         *decimal.Decimal
	CommissionRate *decimal.Decimal
}

// Derived is the computed column set for a row.
type Derived struct {
	FXRate         decimal.Decimal
	CommissionRate decimal.Decimal
	GrossUSD       decimal.Decimal
	NetUSD         decimal.Decimal

	// Approximate is set when the rate came from the unknown-currency
	// fallback rather than the table or the caller.
	Approximate bool
}

// Compute derives the financial columns for a single row.
func (c *Calculator) Compute(in ComputeInput) Derived {
	var out Derived

	switch {
	case in.FXRate != nil && in.FXRate.IsPositive():
		out.FXRate = RoundRate(*in.FXRate)
	default:
		rate, known := c.Rates.Lookup(in.Currency)
		out.FXRate = RoundRate(rate)
		out.Approximate = !known
	}

	switch {
	case in.CommissionRate != nil:
		out.CommissionRate = *in.CommissionRate
	case in.Kind.Inbound():
		out.CommissionRate = decimal.Zero
	case in.Currency == LowCommissionCurrency:
		out.CommissionRate = commissionReduced
	default:
		out.CommissionRate = commissionStandard
	}

	out.GrossUSD = RoundMoney(in.Amount.Div(out.FXRate))

	if in.Kind.Inbound() {
		out.NetUSD = out.GrossUSD
		return out
	}

	divisor := decimal.NewFromInt(1).Sub(out.CommissionRate)
	if divisor.LessThan(commissionFloor) {
		divisor = commissionFloor
	}
	out.NetUSD = RoundMoney(out.GrossUSD.Div(divisor)).Neg()
	return out
}

// Apply writes the derived columns back onto a transaction.
func (d Derived) Apply(tx *Transaction) {
	tx.FXRate = d.FXRate
	tx.CommissionRate = d.CommissionRate
	tx.GrossUSD = d.GrossUSD
	tx.NetUSD = d.NetUSD
	tx.FXApproximate = d.Approximate
}

// USDEquivalent converts an invoice amount to USD the same way gross USD is
// derived for a transaction. Returns the value and whether the rate was a
// fallback.
func (c *Calculator) USDEquivalent(amount decimal.Decimal, currency string) (decimal.Decimal, bool) {
	rate, known := c.Rates.Lookup(currency)
	return RoundMoney(amount.Div(rate)), !known
}
