package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/maidsofhonourafrica/escrow-service/internal/application"
	"github.com/maidsofhonourafrica/escrow-service/internal/contracts"
	"github.com/maidsofhonourafrica/escrow-service/internal/domain"
)

func (h *Handler) initiateCollection(w http.ResponseWriter, r *http.Request) {
	var req contracts.InitiateCollectionRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "initiate_collection", err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeValidationError(r.Context(), w, "initiate_collection", err)
		return
	}
	txn, err := h.service.InitiateCollection(r.Context(), actorFromRequest(r), application.InitiateCollectionInput{
		UserID:      req.UserID,
		PhoneNumber: req.PhoneNumber,
		Amount:      amount,
		Purpose:     domain.PaymentPurpose(req.Purpose),
		PlacementID: req.PlacementID,
		ProviderID:  req.ProviderID,
	})
	if err != nil {
		writeMappedError(r.Context(), w, "initiate_collection", err)
		return
	}
	writeSuccess(w, http.StatusAccepted, toTransactionResponse(txn))
}

func (h *Handler) confirmCollectionOTP(w http.ResponseWriter, r *http.Request) {
	var req contracts.ConfirmOTPRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "confirm_collection_otp", err)
		return
	}
	txn, err := h.service.ConfirmCollectionOTP(r.Context(), actorFromRequest(r), chi.URLParam(r, "checkout_id"), req.OTP)
	if err != nil {
		writeMappedError(r.Context(), w, "confirm_collection_otp", err)
		return
	}
	writeSuccess(w, http.StatusOK, toTransactionResponse(txn))
}

func (h *Handler) reconcileCollection(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.ReconcileCollection(r.Context(), chi.URLParam(r, "checkout_id"))
	if err != nil {
		writeMappedError(r.Context(), w, "reconcile_collection", err)
		return
	}
	writeSuccess(w, http.StatusOK, toReconcileResponse(result))
}

func parseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, errors.New("amount is required")
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, errors.New("amount must be a decimal string")
	}
	return amount, nil
}
