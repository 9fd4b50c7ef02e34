/*
Package engine applies change requests to the ledger book.

PURPOSE:
  This package is the mutation façade around the ledger core. A change
  request batches heterogeneous operations (new transactions, invoice
  status updates, new invoices, field-level corrections, explicit row
  edits and deletes) produced by an external extraction step. The engine
  applies the whole batch to an in-memory copy of the book, repairs the
  balance chain once over the affected range, and persists once at the
  end.

KEY CONCEPTS IN THIS FILE (request.go):
  - ChangeRequest: The JSON payload contract with the extraction service
  - ChangeOperation: Closed sum of everything a batch can contain
  - FlexDecimal: Tolerant numeric decoding - malformed numbers become
    warnings, never a rejected batch
  - Session: Caller-owned request identity, replacing hidden global state

SEE ALSO:
  - engine.go: Batch application and ordering
  - invoices.go: Invoice status transitions and auto-linking
*/
package engine

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// FLEX DECIMAL - Tolerant numeric decoding
// =============================================================================

// FlexDecimal decodes a JSON number or numeric string. A malformed value
// is recorded instead of failing the whole payload: the engine treats it
// as absent and surfaces a warning. The literal "TBC" marks an invoice
// amount as not yet known.
type FlexDecimal struct {
	Value decimal.Decimal
	Set   bool   // key was present and parsed
	TBC   bool   // literal "TBC"
	Bad   string // raw token that failed to parse
}

func (f *FlexDecimal) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(bytes.Trim(bytes.TrimSpace(b), `"`)))
	if raw == "" || raw == "null" {
		return nil
	}
	if strings.EqualFold(raw, "tbc") {
		f.TBC = true
		return nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		f.Bad = raw
		return nil
	}
	f.Value = d
	f.Set = true
	return nil
}

func (f FlexDecimal) MarshalJSON() ([]byte, error) {
	if f.TBC {
		return json.Marshal("TBC")
	}
	if !f.Set {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// Ptr returns the value for calculator inputs, nil when absent.
func (f FlexDecimal) Ptr() *decimal.Decimal {
	if !f.Set {
		return nil
	}
	v := f.Value
	return &v
}

// =============================================================================
// CHANGE REQUEST - The extraction-service payload
// =============================================================================

// ChangeRequest is the batch payload produced by the out-of-scope
// extraction collaborator. Field names are the wire contract.
type ChangeRequest struct {
	NewTransactions    []NewTransaction    `json:"new_transactions,omitempty"`
	InvoiceUpdates     []InvoiceUpdate     `json:"invoice_updates,omitempty"`
	NewInvoices        []NewInvoice        `json:"new_invoices,omitempty"`
	TransactionUpdates []TransactionUpdate `json:"transaction_updates,omitempty"`

	// Explicit row operations by handle, used by direct correction flows
	// rather than the extraction service.
	RowEdits   []RowEdit   `json:"row_edits,omitempty"`
	RowDeletes []RowDelete `json:"row_deletes,omitempty"`
}

// Empty reports whether the batch contains no operations at all.
func (r ChangeRequest) Empty() bool {
	return len(r.NewTransactions) == 0 && len(r.InvoiceUpdates) == 0 &&
		len(r.NewInvoices) == 0 && len(r.TransactionUpdates) == 0 &&
		len(r.RowEdits) == 0 && len(r.RowDeletes) == 0
}

type NewTransaction struct {
	Date        string      `json:"date"`
	Kind        string      `json:"kind"`
	Description string      `json:"description"`
	Payee       string      `json:"payee"`
	Currency    string      `json:"currency"`
	Amount      FlexDecimal `json:"amount"`

	FXRate         FlexDecimal `json:"fx_rate,omitempty"`
	CommissionRate FlexDecimal `json:"commission_rate,omitempty"`
	Notes          string      `json:"notes,omitempty"`
	Payer          string      `json:"payer,omitempty"`
	Beneficiary    string      `json:"beneficiary,omitempty"`
}

type InvoiceUpdate struct {
	InvoiceNo string `json:"invoice_no"`
	NewStatus string `json:"new_status"`
	DatePaid  string `json:"date_paid,omitempty"`
	Ref       string `json:"ref,omitempty"`

	// Settlement details take priority over the invoice's own amount and
	// currency when materializing the linked transaction.
	SettlementAmount   FlexDecimal `json:"settlement_amount,omitempty"`
	SettlementCurrency string      `json:"settlement_currency,omitempty"`
	SettlementDate     string      `json:"settlement_date,omitempty"`
	SettlementFX       FlexDecimal `json:"settlement_fx,omitempty"`

	Beneficiary string `json:"beneficiary,omitempty"`
}

type NewInvoice struct {
	Date        string      `json:"date"`
	InvoiceNo   string      `json:"invoice_no"`
	Payee       string      `json:"payee"`
	Currency    string      `json:"currency"`
	Amount      FlexDecimal `json:"amount"` // number or "TBC"
	Status      string      `json:"status"`
	Notes       string      `json:"notes,omitempty"`
	Beneficiary string      `json:"beneficiary,omitempty"`
}

// TransactionUpdate corrects an existing row located by fuzzy description
// match: flipping its confirmed state, replacing notes, or fixing the FX
// rate after the fact.
type TransactionUpdate struct {
	MatchDescription string      `json:"match_description"`
	MatchDate        string      `json:"match_date,omitempty"`
	NewNotes         *string     `json:"new_notes,omitempty"`
	Confirmed        *bool       `json:"confirmed,omitempty"`
	FXRate           FlexDecimal `json:"fx_rate,omitempty"`
}

// RowEdit overwrites individual fields of a transaction row addressed by
// handle. Derived columns are always recomputed from the resulting raw
// fields.
type RowEdit struct {
	Row         int         `json:"row"`
	Date        string      `json:"date,omitempty"`
	Kind        string      `json:"kind,omitempty"`
	Description *string     `json:"description,omitempty"`
	Payee       *string     `json:"payee,omitempty"`
	Currency    *string     `json:"currency,omitempty"`
	Amount      FlexDecimal `json:"amount,omitempty"`
	FXRate      FlexDecimal `json:"fx_rate,omitempty"`
	Commission  FlexDecimal `json:"commission_rate,omitempty"`
	Notes       *string     `json:"notes,omitempty"`
	Beneficiary *string     `json:"beneficiary,omitempty"`
}

// RowDelete removes a row by handle from either table.
type RowDelete struct {
	Row   int    `json:"row"`
	Table string `json:"table,omitempty"` // "transactions" (default) or "invoices"
}

// =============================================================================
// CHANGE OPERATION - Closed sum over batch contents
// =============================================================================

// ChangeOperation is the closed set of operations a batch can contain.
// The engine matches it exhaustively; there is no default arm to fall
// through.
type ChangeOperation interface{ changeOp() }

func (NewTransaction) changeOp()    {}
func (InvoiceUpdate) changeOp()     {}
func (NewInvoice) changeOp()        {}
func (TransactionUpdate) changeOp() {}
func (RowEdit) changeOp()           {}
func (RowDelete) changeOp()         {}

// Operations flattens the request into processing order: transaction
// field-updates, new transactions, invoice updates (which may themselves
// add transactions), new invoices, then explicit row edits and deletes.
func (r ChangeRequest) Operations() []ChangeOperation {
	var ops []ChangeOperation
	for _, op := range r.TransactionUpdates {
		ops = append(ops, op)
	}
	for _, op := range r.NewTransactions {
		ops = append(ops, op)
	}
	for _, op := range r.InvoiceUpdates {
		ops = append(ops, op)
	}
	for _, op := range r.NewInvoices {
		ops = append(ops, op)
	}
	for _, op := range r.RowEdits {
		ops = append(ops, op)
	}
	for _, op := range r.RowDeletes {
		ops = append(ops, op)
	}
	return ops
}

// =============================================================================
// SESSION - Caller-owned request identity
// =============================================================================

// Session identifies one in-flight change request. It is created and owned
// by the caller and passed into Apply, so multiple in-flight requests are
// representable instead of silently overwriting a process-wide slot.
type Session struct {
	ID      string
	Actor   string
	Started time.Time
}

func NewSession(actor string) *Session {
	return &Session{
		ID:      uuid.NewString(),
		Actor:   actor,
		Started: time.Now().UTC(),
	}
}
