/*
dto.go - Data Transfer Objects for API responses

PURPOSE:
  JSON shapes returned to clients, decoupled from the internal model.
  The change-request payload itself is defined in engine/request.go
  because it is the wire contract with the extraction service, not an
  API-local shape.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Response: Wrappers around lists and summaries

SEE ALSO:
  - handlers.go: Uses these types
  - engine/request.go: The change-request payload contract
*/
package api

import (
	"github.com/meridian/agent-ledger/ledger"
)

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// TransactionDTO represents one ledger row in API responses.
type TransactionDTO struct {
	Row            int    `json:"row"`
	Date           string `json:"date"`
	Kind           string `json:"kind"`
	Description    string `json:"description"`
	Payee          string `json:"payee"`
	Currency       string `json:"currency"`
	Amount         string `json:"amount"`
	FXRate         string `json:"fx_rate"`
	CommissionRate string `json:"commission_rate"`
	GrossUSD       string `json:"gross_usd"`
	NetUSD         string `json:"net_usd"`
	RunningBalance string `json:"running_balance_usd"`
	FXApproximate  bool   `json:"fx_approximate,omitempty"`
	Confirmed      bool   `json:"confirmed"`
	Notes          string `json:"notes,omitempty"`
	Payer          string `json:"payer,omitempty"`
	Beneficiary    string `json:"beneficiary,omitempty"`
}

func toTransactionDTO(row int, tx ledger.Transaction) TransactionDTO {
	return TransactionDTO{
		Row:            row,
		Date:           tx.Date.String(),
		Kind:           string(tx.Kind),
		Description:    tx.Description,
		Payee:          tx.Payee,
		Currency:       tx.Currency,
		Amount:         tx.Amount.String(),
		FXRate:         tx.FXRate.String(),
		CommissionRate: tx.CommissionRate.String(),
		GrossUSD:       tx.GrossUSD.String(),
		NetUSD:         tx.NetUSD.String(),
		RunningBalance: tx.RunningBalanceUSD.String(),
		FXApproximate:  tx.FXApproximate,
		Confirmed:      tx.Confirmed,
		Notes:          tx.Notes,
		Payer:          tx.Payer,
		Beneficiary:    tx.Beneficiary,
	}
}

// InvoiceDTO represents one register row in API responses.
type InvoiceDTO struct {
	Row           int    `json:"row"`
	Date          string `json:"date"`
	InvoiceNo     string `json:"invoice_no"`
	Payee         string `json:"payee"`
	Currency      string `json:"currency"`
	Amount        string `json:"amount"`
	AmountTBC     bool   `json:"amount_tbc,omitempty"`
	USDEquivalent string `json:"usd_equivalent"`
	Status        string `json:"status"`
	DatePaid      string `json:"date_paid,omitempty"`
	PaymentRef    string `json:"payment_ref,omitempty"`
	Notes         string `json:"notes,omitempty"`
	Beneficiary   string `json:"beneficiary,omitempty"`
}

func toInvoiceDTO(row int, inv ledger.Invoice) InvoiceDTO {
	return InvoiceDTO{
		Row:           row,
		Date:          inv.Date.String(),
		InvoiceNo:     inv.InvoiceNo,
		Payee:         inv.Payee,
		Currency:      inv.Currency,
		Amount:        inv.Amount.String(),
		AmountTBC:     inv.AmountTBC,
		USDEquivalent: inv.USDEquivalent.String(),
		Status:        string(inv.Status),
		DatePaid:      inv.DatePaid.String(),
		PaymentRef:    inv.PaymentRef,
		Notes:         inv.Notes,
		Beneficiary:   inv.Beneficiary,
	}
}

// BalanceDTO is the current-balance response.
type BalanceDTO struct {
	BalanceUSD string `json:"balance_usd"`
	Rows       int    `json:"rows"`
}

// OutstandingResponse lists unpaid invoices with their USD total.
type OutstandingResponse struct {
	Invoices      []InvoiceDTO `json:"invoices"`
	TotalUSD      string       `json:"total_usd"`
	AmountUnknown int          `json:"amount_unknown"`
}

// DuplicatePairDTO is one advisory duplicate-scan finding.
type DuplicatePairDTO struct {
	First  TransactionDTO `json:"first"`
	Second TransactionDTO `json:"second"`
}
