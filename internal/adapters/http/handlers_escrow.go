package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/maidsofhonourafrica/escrow-service/internal/application"
	"github.com/maidsofhonourafrica/escrow-service/internal/contracts"
)

func (h *Handler) createEscrow(w http.ResponseWriter, r *http.Request) {
	var req contracts.CreateEscrowRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "create_escrow", err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeValidationError(r.Context(), w, "create_escrow", err)
		return
	}
	escrow, err := h.service.CreateEscrowTransaction(r.Context(), actorFromRequest(r), application.CreateEscrowInput{
		PlacementID:          req.PlacementID,
		ClientID:             req.ClientID,
		ProviderID:           req.ProviderID,
		Amount:               amount,
		PaymentTransactionID: req.PaymentTransactionID,
	})
	if err != nil {
		writeMappedError(r.Context(), w, "create_escrow", err)
		return
	}
	writeSuccess(w, http.StatusCreated, toEscrowResponse(escrow))
}

func (h *Handler) getEscrow(w http.ResponseWriter, r *http.Request) {
	escrow, err := h.service.GetEscrow(r.Context(), chi.URLParam(r, "escrow_id"))
	if err != nil {
		writeMappedError(r.Context(), w, "get_escrow", err)
		return
	}
	writeSuccess(w, http.StatusOK, toEscrowResponse(escrow))
}

func (h *Handler) listLedger(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.ListLedgerEntries(r.Context(), chi.URLParam(r, "escrow_id"))
	if err != nil {
		writeMappedError(r.Context(), w, "list_ledger_entries", err)
		return
	}
	writeSuccess(w, http.StatusOK, toLedgerResponse(entries))
}

func (h *Handler) releaseEscrow(w http.ResponseWriter, r *http.Request) {
	escrow, err := h.service.ReleaseEscrow(r.Context(), actorFromRequest(r), chi.URLParam(r, "escrow_id"))
	if err != nil {
		writeMappedError(r.Context(), w, "release_escrow", err)
		return
	}
	writeSuccess(w, http.StatusOK, toEscrowResponse(escrow))
}

func (h *Handler) refundEscrow(w http.ResponseWriter, r *http.Request) {
	var req contracts.RefundEscrowRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "refund_escrow", err)
		return
	}
	escrow, err := h.service.RefundEscrow(r.Context(), actorFromRequest(r), chi.URLParam(r, "escrow_id"), req.Reason)
	if err != nil {
		writeMappedError(r.Context(), w, "refund_escrow", err)
		return
	}
	writeSuccess(w, http.StatusOK, toEscrowResponse(escrow))
}

func (h *Handler) getDisbursement(w http.ResponseWriter, r *http.Request) {
	disb, err := h.service.GetDisbursement(r.Context(), chi.URLParam(r, "disbursement_id"))
	if err != nil {
		writeMappedError(r.Context(), w, "get_disbursement", err)
		return
	}
	writeSuccess(w, http.StatusOK, toDisbursementResponse(disb))
}
