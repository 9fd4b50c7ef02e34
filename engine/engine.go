/*
engine.go - Batch application of change requests

PURPOSE:
  Orchestrates one change request against the book: dispatches each
  operation, tracks the lowest transaction row whose balance inputs
  changed, repairs the balance chain once over that suffix, runs the
  advisory duplicate scan, and persists the whole book once at the end.

FAILURE SEMANTICS:
  The batch runs on a clone of the loaded book. Malformed numerics and
  unmatched references degrade to warnings in the result; only a store
  failure aborts, and an aborted batch persists nothing - the on-disk
  state stays at its last successfully saved point.

ORDERING:
  transaction field-updates -> new transactions -> invoice updates
  -> new invoices -> row edits -> row deletes -> duplicate scan
  -> balance rescan -> save

SEE ALSO:
  - request.go: Payload contract and operation ordering
  - invoices.go: Status transitions and auto-linking
  - ledger/chain.go: The rescan itself
*/
package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/meridian/agent-ledger/ledger"
	"github.com/rs/zerolog"
)

// =============================================================================
// ENGINE
// =============================================================================

type Engine struct {
	Store    ledger.Store
	Calc     *ledger.Calculator
	Denylist Denylist
	Log      zerolog.Logger
}

func New(store ledger.Store, calc *ledger.Calculator, log zerolog.Logger) *Engine {
	if calc == nil {
		calc = ledger.NewCalculator(nil)
	}
	return &Engine{
		Store:    store,
		Calc:     calc,
		Denylist: DefaultDenylist(),
		Log:      log,
	}
}

// MutationResult summarizes what a batch did. Duplicate warnings and
// field warnings are advisory, for a human to review.
type MutationResult struct {
	BatchID string `json:"batch_id"`

	TransactionsAdded       int `json:"transactions_added"`
	TransactionsUpdated     int `json:"transactions_updated"`
	InvoicesUpdated         int `json:"invoices_updated"`
	InvoicesAdded           int `json:"invoices_added"`
	AutoCreatedTransactions int `json:"auto_created_transactions"`

	DuplicateWarnings []string `json:"duplicate_warnings,omitempty"`
	Warnings          []string `json:"warnings,omitempty"`
}

// =============================================================================
// APPLY - One batch, one persist
// =============================================================================

// Apply runs the change request against the current book and persists the
// result. The session identifies the batch; each Apply call expects to run
// to completion before the next begins.
func (e *Engine) Apply(ctx context.Context, sess *Session, req ChangeRequest) (*MutationResult, error) {
	loaded, err := e.Store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ledger.ErrStoreUnavailable, err)
	}
	book := loaded.Clone()

	res := &MutationResult{BatchID: sess.ID}
	log := e.Log.With().Str("batch", sess.ID).Str("actor", sess.Actor).Logger()

	// dirtyFrom is the lowest transaction row whose balance inputs
	// changed; the suffix from it is rescanned once after all operations.
	dirtyFrom := len(book.Transactions)
	touch := func(h ledger.RowHandle) {
		if int(h) < dirtyFrom {
			dirtyFrom = int(h)
		}
	}

	// Deletes are collected and applied last, highest handle first, so
	// handles inside one batch stay valid until their turn.
	var deletes []RowDelete

	for _, op := range req.Operations() {
		switch op := op.(type) {
		case TransactionUpdate:
			e.applyTransactionUpdate(book, op, res, touch, log)
		case NewTransaction:
			e.applyNewTransaction(book, op, res, log)
		case InvoiceUpdate:
			outcome := e.ApplyInvoiceUpdate(book, op)
			if !outcome.Matched {
				res.Warnings = append(res.Warnings, fmt.Sprintf("invoice not found: %s", op.InvoiceNo))
				log.Warn().Str("invoice", op.InvoiceNo).Msg("invoice update matched nothing")
				continue
			}
			res.InvoicesUpdated++
			if outcome.TransactionCreated {
				res.AutoCreatedTransactions++
			}
			if outcome.DuplicateWarning != "" {
				res.DuplicateWarnings = append(res.DuplicateWarnings, outcome.DuplicateWarning)
			}
			res.Warnings = append(res.Warnings, outcome.Warnings...)
		case NewInvoice:
			e.applyNewInvoice(book, op, res, log)
		case RowEdit:
			e.applyRowEdit(book, op, res, touch, log)
		case RowDelete:
			deletes = append(deletes, op)
		}
	}

	sort.Slice(deletes, func(i, j int) bool { return deletes[i].Row > deletes[j].Row })
	for _, del := range deletes {
		e.applyRowDelete(book, del, res, touch, log)
	}

	for _, pair := range ledger.ScanDuplicates(book) {
		first := book.Transactions[pair.First]
		res.DuplicateWarnings = append(res.DuplicateWarnings, fmt.Sprintf(
			"rows %d and %d look like the same %s payment to %s; review manually",
			pair.First, pair.Second, first.Currency, first.Payee))
	}

	ledger.RecalcFrom(book, ledger.RowHandle(dirtyFrom))

	if err := e.Store.Save(ctx, book); err != nil {
		return nil, fmt.Errorf("saving book: %w", err)
	}

	log.Info().
		Int("tx_added", res.TransactionsAdded).
		Int("tx_updated", res.TransactionsUpdated).
		Int("invoices_updated", res.InvoicesUpdated).
		Int("invoices_added", res.InvoicesAdded).
		Int("auto_created", res.AutoCreatedTransactions).
		Int("duplicate_warnings", len(res.DuplicateWarnings)).
		Msg("batch applied")
	return res, nil
}

// =============================================================================
// OPERATION HANDLERS
// =============================================================================

// applyTransactionUpdate locates a row by fuzzy description match (plus a
// date window when a match date is supplied) and applies after-the-fact
// corrections. An fx correction recomputes the derived columns and dirties
// the balance chain from that row onward.
func (e *Engine) applyTransactionUpdate(book *ledger.Book, up TransactionUpdate, res *MutationResult, touch func(ledger.RowHandle), log zerolog.Logger) {
	h := findByDescription(book, up.MatchDescription, up.MatchDate)
	if h == ledger.HandleNone {
		res.Warnings = append(res.Warnings, fmt.Sprintf("no transaction matches %q", up.MatchDescription))
		log.Warn().Str("match", up.MatchDescription).Msg("transaction update matched nothing")
		return
	}
	if up.FXRate.Bad != "" {
		res.Warnings = append(res.Warnings, fmt.Sprintf("unreadable fx_rate %q ignored", up.FXRate.Bad))
	}

	tx, _ := book.Transaction(h)
	if up.Confirmed != nil {
		tx.Confirmed = *up.Confirmed
	}
	if up.NewNotes != nil {
		tx.Notes = *up.NewNotes
	}
	if up.FXRate.Set {
		commission := tx.CommissionRate
		derived := e.Calc.Compute(ledger.ComputeInput{
			Amount:         tx.Amount,
			Currency:       tx.Currency,
			Kind:           tx.Kind,
			FXRate:         up.FXRate.Ptr(),
			CommissionRate: &commission,
		})
		derived.Apply(&tx)
		touch(h)
	}
	book.SetTransaction(h, tx)
	res.TransactionsUpdated++
}

// findByDescription matches update text against row descriptions using the
// shared token-overlap primitive. A supplied match date narrows the search
// to rows within three days, since descriptions repeat across months.
func findByDescription(book *ledger.Book, match, matchDate string) ledger.RowHandle {
	date := ledger.ParseDate(matchDate)
	for i, tx := range book.Transactions {
		if !ledger.TokensOverlap(match, tx.Description) && !ledger.TokensOverlap(match, tx.Payee) {
			continue
		}
		if date.Valid() && tx.Date.Valid() && !date.WithinDays(tx.Date, 3) {
			continue
		}
		return ledger.RowHandle(i)
	}
	return ledger.HandleNone
}

func (e *Engine) applyNewTransaction(book *ledger.Book, op NewTransaction, res *MutationResult, log zerolog.Logger) {
	if op.Amount.Bad != "" {
		res.Warnings = append(res.Warnings, fmt.Sprintf("unreadable amount %q treated as zero", op.Amount.Bad))
		log.Warn().Str("raw", op.Amount.Bad).Str("payee", op.Payee).Msg("malformed amount in new transaction")
	}

	tx := ledger.Transaction{
		Date:        ledger.ParseDate(op.Date),
		Kind:        ledger.ParseKind(op.Kind),
		Description: op.Description,
		Payee:       op.Payee,
		Currency:    strings.ToUpper(strings.TrimSpace(op.Currency)),
		Amount:      op.Amount.Value,
		Notes:       op.Notes,
		Payer:       op.Payer,
		Beneficiary: op.Beneficiary,
	}
	derived := e.Calc.Compute(ledger.ComputeInput{
		Amount:         tx.Amount,
		Currency:       tx.Currency,
		Kind:           tx.Kind,
		FXRate:         op.FXRate.Ptr(),
		CommissionRate: op.CommissionRate.Ptr(),
	})
	derived.Apply(&tx)
	if derived.Approximate {
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"no fx rate for %s; converted at 1.0 (approximate)", tx.Currency))
		log.Warn().Str("currency", tx.Currency).Msg("fx fallback applied")
	}

	ledger.AppendWithBalance(book, tx)
	res.TransactionsAdded++
}

func (e *Engine) applyNewInvoice(book *ledger.Book, op NewInvoice, res *MutationResult, log zerolog.Logger) {
	inv := ledger.Invoice{
		Date:        ledger.ParseDate(op.Date),
		InvoiceNo:   op.InvoiceNo,
		Payee:       op.Payee,
		Currency:    strings.ToUpper(strings.TrimSpace(op.Currency)),
		Status:      ledger.ParseStatus(op.Status),
		Notes:       op.Notes,
		Beneficiary: op.Beneficiary,
	}
	switch {
	case op.Amount.TBC:
		inv.AmountTBC = true
	case op.Amount.Bad != "":
		inv.AmountTBC = true
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"unreadable amount %q on invoice %s treated as TBC", op.Amount.Bad, op.InvoiceNo))
	case op.Amount.Set:
		inv.Amount = op.Amount.Value
		usd, approx := e.Calc.USDEquivalent(inv.Amount, inv.Currency)
		inv.USDEquivalent = usd
		if approx {
			res.Warnings = append(res.Warnings, fmt.Sprintf(
				"no fx rate for %s; invoice %s USD equivalent is approximate", inv.Currency, inv.InvoiceNo))
		}
	default:
		inv.AmountTBC = true
	}

	book.AppendInvoice(inv)
	res.InvoicesAdded++
}

// applyRowEdit overwrites the given fields and recomputes the derived
// columns from the resulting raw fields, so a stored row can always be
// reproduced from its raw inputs.
func (e *Engine) applyRowEdit(book *ledger.Book, op RowEdit, res *MutationResult, touch func(ledger.RowHandle), log zerolog.Logger) {
	h := ledger.RowHandle(op.Row)
	tx, err := book.Transaction(h)
	if err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("row edit skipped: %v", err))
		log.Warn().Int("row", op.Row).Msg("row edit out of range")
		return
	}
	before := tx

	if op.Date != "" {
		tx.Date = ledger.ParseDate(op.Date)
	}
	if op.Kind != "" {
		tx.Kind = ledger.ParseKind(op.Kind)
	}
	if op.Description != nil {
		tx.Description = *op.Description
	}
	if op.Payee != nil {
		tx.Payee = *op.Payee
	}
	if op.Currency != nil {
		tx.Currency = strings.ToUpper(strings.TrimSpace(*op.Currency))
	}
	if op.Amount.Set {
		tx.Amount = op.Amount.Value
	}
	if op.Notes != nil {
		tx.Notes = *op.Notes
	}
	if op.Beneficiary != nil {
		tx.Beneficiary = *op.Beneficiary
	}

	// A currency change invalidates the stored rate and commission; unless
	// the edit supplies its own, both re-derive from the schedule.
	fx, commission := tx.FXRate, tx.CommissionRate
	fxPtr, commissionPtr := &fx, &commission
	if op.FXRate.Set {
		fx = op.FXRate.Value
	} else if op.Currency != nil {
		fxPtr = nil
	}
	if op.Commission.Set {
		commission = op.Commission.Value
	} else if op.Currency != nil {
		commissionPtr = nil
	}
	derived := e.Calc.Compute(ledger.ComputeInput{
		Amount:         tx.Amount,
		Currency:       tx.Currency,
		Kind:           tx.Kind,
		FXRate:         fxPtr,
		CommissionRate: commissionPtr,
	})
	derived.Apply(&tx)

	book.SetTransaction(h, tx)
	if before.NetAffectingChange(tx) {
		touch(h)
	}
	res.TransactionsUpdated++
}

func (e *Engine) applyRowDelete(book *ledger.Book, op RowDelete, res *MutationResult, touch func(ledger.RowHandle), log zerolog.Logger) {
	if strings.EqualFold(op.Table, "invoices") {
		if err := book.DeleteInvoice(ledger.RowHandle(op.Row)); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("invoice delete skipped: %v", err))
			return
		}
		return
	}
	if err := book.DeleteTransaction(ledger.RowHandle(op.Row)); err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("row delete skipped: %v", err))
		log.Warn().Int("row", op.Row).Msg("row delete out of range")
		return
	}
	// Every row from the deletion point shifted up; the chain is repaired
	// from there.
	touch(ledger.RowHandle(op.Row))
}

// =============================================================================
// READ-SIDE QUERIES
// =============================================================================

// Snapshot loads the current book for the read-side queries. Callers get
// their own copy.
func (e *Engine) Snapshot(ctx context.Context) (*ledger.Book, error) {
	book, err := e.Store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ledger.ErrStoreUnavailable, err)
	}
	return book, nil
}
