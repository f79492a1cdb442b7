package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/maidsofhonourafrica/escrow-service/internal/application"
	"github.com/maidsofhonourafrica/escrow-service/internal/ports"
)

// ReadinessCheck reports whether a backing dependency is usable.
type ReadinessCheck func(ctx context.Context) error

type Handler struct {
	service  *application.Service
	verifier ports.TokenVerifier
	schemas  callbackSchemas
	checks   map[string]ReadinessCheck
}

func NewHandler(service *application.Service, verifier ports.TokenVerifier, checks map[string]ReadinessCheck) (*Handler, error) {
	if service == nil || verifier == nil {
		return nil, errors.New("http handler requires a service and a token verifier")
	}
	schemas, err := loadCallbackSchemas()
	if err != nil {
		return nil, err
	}
	return &Handler{service: service, verifier: verifier, schemas: schemas, checks: checks}, nil
}

// NewRouter registers the gateway webhooks and the admin API.
// Webhooks are unauthenticated; the gateway is expected to reach them through an allowlisted ingress.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)

	r.Route("/webhooks/v1", func(r chi.Router) {
		r.Post("/collections/callback", handler.collectionCallback)
		r.Post("/disbursements/callback", handler.disbursementCallback)
	})

	r.Route("/escrow/v1", func(r chi.Router) {
		r.Use(handler.adminMiddleware)
		r.Post("/collections", handler.initiateCollection)
		r.Post("/collections/{checkout_id}/otp", handler.confirmCollectionOTP)
		r.Post("/collections/{checkout_id}/reconcile", handler.reconcileCollection)
		r.Post("/escrows", handler.createEscrow)
		r.Get("/escrows/{escrow_id}", handler.getEscrow)
		r.Get("/escrows/{escrow_id}/ledger", handler.listLedger)
		r.Post("/escrows/{escrow_id}/release", handler.releaseEscrow)
		r.Post("/escrows/{escrow_id}/refund", handler.refundEscrow)
		r.Get("/disbursements/{disbursement_id}", handler.getDisbursement)
	})
	return r
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "ok")
}

func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	for name, check := range h.checks {
		if err := check(r.Context()); err != nil {
			logHTTPOperationError(r.Context(), "readiness_check", http.StatusServiceUnavailable, "NOT_READY", name+" unavailable", err)
			writeError(w, http.StatusServiceUnavailable, "NOT_READY", name+" unavailable")
			return
		}
	}
	writeMessage(w, http.StatusOK, "ready")
}
