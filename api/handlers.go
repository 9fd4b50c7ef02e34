/*
handlers.go - HTTP handlers for the ledger engine

PURPOSE:
  Exposes the mutation façade and the read-side queries over REST.
  Handlers parse, delegate to the engine, and serialize; no ledger
  logic lives here.

ENDPOINTS:
  POST /api/changes                 Apply a change-request batch
  GET  /api/balance                 Current running balance
  GET  /api/transactions            Full ledger
  GET  /api/transactions/unknown    Rows flagged unknown-kind
  GET  /api/invoices/outstanding    Unpaid invoices + USD total
  GET  /api/duplicates              Advisory duplicate scan

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Undecodable payload
  - 503: Store unavailable
  - 500: Everything else

SEE ALSO:
  - dto.go: Response shapes
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/meridian/agent-ledger/engine"
	"github.com/meridian/agent-ledger/ledger"
	"github.com/rs/zerolog"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine *engine.Engine
	Log    zerolog.Logger
}

func NewHandler(eng *engine.Engine, log zerolog.Logger) *Handler {
	return &Handler{Engine: eng, Log: log}
}

// =============================================================================
// MUTATION
// =============================================================================

// ApplyChanges applies one change-request batch. The actor header names
// who (or what) produced the batch; each request gets its own session.
func (h *Handler) ApplyChanges(w http.ResponseWriter, r *http.Request) {
	var req engine.ChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "undecodable change request: "+err.Error())
		return
	}
	if req.Empty() {
		writeError(w, http.StatusBadRequest, "change request contains no operations")
		return
	}

	actor := r.Header.Get("X-Actor")
	if actor == "" {
		actor = "api"
	}
	sess := engine.NewSession(actor)

	result, err := h.Engine.Apply(r.Context(), sess, req)
	if err != nil {
		h.Log.Error().Err(err).Str("batch", sess.ID).Msg("batch failed")
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// =============================================================================
// READ-SIDE QUERIES
// =============================================================================

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	book, err := h.Engine.Snapshot(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceDTO{
		BalanceUSD: book.CurrentBalance().String(),
		Rows:       len(book.Transactions),
	})
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	book, err := h.Engine.Snapshot(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	out := make([]TransactionDTO, 0, len(book.Transactions))
	for i, tx := range book.Transactions {
		out = append(out, toTransactionDTO(i, tx))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) ListUnknownTransactions(w http.ResponseWriter, r *http.Request) {
	book, err := h.Engine.Snapshot(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	out := []TransactionDTO{}
	for i, tx := range book.Transactions {
		if tx.Kind == ledger.KindUnknown {
			out = append(out, toTransactionDTO(i, tx))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) ListOutstandingInvoices(w http.ResponseWriter, r *http.Request) {
	book, err := h.Engine.Snapshot(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	summary := book.OutstandingInvoices()
	resp := OutstandingResponse{
		Invoices:      []InvoiceDTO{},
		TotalUSD:      summary.TotalUSD.String(),
		AmountUnknown: summary.AmountUnknown,
	}
	for i, inv := range book.Invoices {
		if inv.Outstanding() {
			resp.Invoices = append(resp.Invoices, toInvoiceDTO(i, inv))
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) ScanDuplicates(w http.ResponseWriter, r *http.Request) {
	book, err := h.Engine.Snapshot(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	out := []DuplicatePairDTO{}
	for _, pair := range ledger.ScanDuplicates(book) {
		out = append(out, DuplicatePairDTO{
			First:  toTransactionDTO(int(pair.First), book.Transactions[pair.First]),
			Second: toTransactionDTO(int(pair.Second), book.Transactions[pair.Second]),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case ledger.IsClientError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
