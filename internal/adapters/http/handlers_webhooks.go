package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/maidsofhonourafrica/escrow-service/internal/application"
	"github.com/maidsofhonourafrica/escrow-service/internal/contracts"
	"github.com/maidsofhonourafrica/escrow-service/internal/domain"
)

const callbackSource = "callback"

func (h *Handler) collectionCallback(w http.ResponseWriter, r *http.Request) {
	const operation = "collection_callback"
	body, err := readBody(w, r)
	if err != nil {
		writeValidationError(r.Context(), w, operation, err)
		return
	}
	if err := validateJSONSchema(h.schemas.collection, body); err != nil {
		writeCallbackError(r, w, operation, domain.ErrInvalidCallback, err)
		return
	}
	var payload contracts.CollectionCallback
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&payload); err != nil {
		writeCallbackError(r, w, operation, domain.ErrInvalidCallback, err)
		return
	}

	outcome := domain.CollectionOutcome{
		CheckoutRequestID: payload.CheckoutRequestID,
		MerchantRequestID: payload.MerchantRequestID,
		ResultCode:        payload.ResultCode,
		ResultDesc:        payload.ResultDesc,
		Source:            callbackSource,
		RawPayload:        body,
	}
	if md := payload.Metadata; md != nil {
		outcome.ReceiptNumber = md.ReceiptNumber
		outcome.PhoneNumber = md.PhoneNumber
		if md.Amount != nil {
			outcome.Amount = *md.Amount
		}
	}

	result, err := h.service.ProcessCollectionOutcome(r.Context(), outcome)
	if err != nil {
		writeCallbackError(r, w, operation, err, err)
		return
	}
	writeCallbackAck(w, result)
}

func (h *Handler) disbursementCallback(w http.ResponseWriter, r *http.Request) {
	const operation = "disbursement_callback"
	body, err := readBody(w, r)
	if err != nil {
		writeValidationError(r.Context(), w, operation, err)
		return
	}
	if err := validateJSONSchema(h.schemas.disbursement, body); err != nil {
		writeCallbackError(r, w, operation, domain.ErrInvalidCallback, err)
		return
	}
	var payload contracts.DisbursementCallback
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&payload); err != nil {
		writeCallbackError(r, w, operation, domain.ErrInvalidCallback, err)
		return
	}

	result, err := h.service.ProcessDisbursementOutcome(r.Context(), domain.DisbursementOutcome{
		ExternalRequestID: payload.B2CRequestID,
		MerchantReference: payload.MerchantReference,
		ResultCode:        payload.ResultCode,
		ResultDesc:        payload.ResultDesc,
		ReceiptNumber:     payload.ReceiptNumber,
		RawPayload:        body,
	})
	if err != nil {
		writeCallbackError(r, w, operation, err, err)
		return
	}
	writeCallbackAck(w, result)
}

// writeCallbackError answers the gateway with a non-2xx only where a redelivery could help
// or the payload can never be applied. Internal details never reach the gateway.
func writeCallbackError(r *http.Request, w http.ResponseWriter, operation string, kind, cause error) {
	var status int
	var code, msg string
	switch {
	case errors.Is(kind, domain.ErrInvalidCallback):
		status, code, msg = http.StatusBadRequest, "INVALID_CALLBACK", "invalid callback payload"
	case errors.Is(kind, domain.ErrNotFound):
		status, code, msg = http.StatusNotFound, "NOT_FOUND", "unknown request id"
	default:
		status, code, msg = http.StatusInternalServerError, "INTERNAL_ERROR", "callback could not be processed"
	}
	logHTTPOperationError(r.Context(), operation, status, code, msg, cause)
	writeError(w, status, code, msg)
}

func writeCallbackAck(w http.ResponseWriter, result application.CallbackResult) {
	writeJSON(w, http.StatusOK, contracts.CallbackAck{
		Status:     "accepted",
		Duplicate:  result.Duplicate,
		Concurrent: result.Concurrent,
	})
}
