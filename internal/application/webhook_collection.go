package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/maidsofhonourafrica/escrow-service/internal/domain"
	"github.com/maidsofhonourafrica/escrow-service/internal/ports"
)

const callbackActor = "system:payment_callback"

type processedMarker struct {
	Status      string    `json:"status"`
	ReferenceID string    `json:"reference_id"`
	Source      string    `json:"source,omitempty"`
	ProcessedAt time.Time `json:"processed_at"`
}

// ProcessCollectionOutcome applies a gateway verdict on a collection exactly once. It is
// shared by the callback endpoint and status-query reconciliation.
func (s *Service) ProcessCollectionOutcome(ctx context.Context, outcome domain.CollectionOutcome) (CallbackResult, error) {
	outcome.CheckoutRequestID = strings.TrimSpace(outcome.CheckoutRequestID)
	if outcome.CheckoutRequestID == "" {
		return CallbackResult{}, fmt.Errorf("%w: checkout request id is required", domain.ErrInvalidCallback)
	}
	if outcome.ReceivedAt.IsZero() {
		outcome.ReceivedAt = s.nowFn()
	}

	key := CollectionCallbackKey(outcome.CheckoutRequestID)
	if s.guard.IsProcessed(ctx, key) {
		logCallback(ctx, "process_collection_callback", "duplicate", "checkout_request_id", outcome.CheckoutRequestID)
		return CallbackResult{Duplicate: true}, nil
	}
	if !s.guard.TryAcquire(ctx, key, s.cfg.IdempotencyLease) {
		logCallback(ctx, "process_collection_callback", "concurrent", "checkout_request_id", outcome.CheckoutRequestID)
		return CallbackResult{Concurrent: true}, nil
	}

	result, txn, err := s.applyCollectionOutcome(ctx, outcome)
	if err != nil {
		_ = s.guard.Release(ctx, key)
		return CallbackResult{}, err
	}

	marker, _ := json.Marshal(processedMarker{
		Status:      string(txn.Status),
		ReferenceID: txn.TransactionID,
		Source:      outcome.Source,
		ProcessedAt: s.nowFn(),
	})
	s.guard.MarkProcessed(ctx, key, marker, s.cfg.IdempotencyTTL)

	outcomeLabel := "success"
	if result.Duplicate {
		outcomeLabel = "duplicate"
	}
	logCallback(ctx, "process_collection_callback", outcomeLabel,
		"checkout_request_id", outcome.CheckoutRequestID,
		"transaction_status", txn.Status,
		"source", outcome.Source,
	)
	return result, nil
}

func (s *Service) applyCollectionOutcome(ctx context.Context, outcome domain.CollectionOutcome) (CallbackResult, domain.Transaction, error) {
	txn, err := s.transactions.GetByCheckoutID(ctx, outcome.CheckoutRequestID)
	if err != nil {
		return CallbackResult{}, domain.Transaction{}, err
	}
	if txn.CallbackApplied() {
		return CallbackResult{Duplicate: true, Status: string(txn.Status)}, txn, nil
	}

	now := outcome.ReceivedAt
	events, err := s.collectionEvents(txn, outcome, now)
	if err != nil {
		return CallbackResult{}, domain.Transaction{}, err
	}
	params := ports.ApplyCollectionParams{
		Outcome: outcome,
		Events:  events,
	}

	if outcome.Status() == domain.TransactionStatusCompleted {
		switch txn.Purpose {
		case domain.PurposeRegistrationFee:
			params.MarkRegistrationFee = true
		case domain.PurposePlacementPayment:
			// A short or over collection is recorded but never escrowed; it needs an operator.
			if !outcome.Amount.IsZero() && !outcome.Amount.Equal(txn.Amount) {
				slog.Default().ErrorContext(ctx, "collected amount differs from requested amount; payment recorded without escrow",
					"service", serviceName,
					"module", "application.webhook",
					"layer", "application",
					"operation", "apply_collection_outcome",
					"outcome", "amount_mismatch",
					"transaction_id", txn.TransactionID,
					"requested", txn.Amount.String(),
					"collected", outcome.Amount.String(),
				)
				break
			}
			escrow, entry, err := domain.NewHeldEscrow(domain.NewEscrowParams{
				EscrowID:             uuid.NewString(),
				PlacementID:          txn.PlacementID,
				ClientID:             txn.UserID,
				ProviderID:           txn.ProviderID,
				PaymentTransactionID: txn.TransactionID,
				TotalAmount:          txn.Amount,
				CommissionRate:       s.cfg.Commission.RateAt(now),
				At:                   now,
			}, uuid.NewString(), callbackActor)
			if err != nil {
				return CallbackResult{}, domain.Transaction{}, fmt.Errorf("build escrow for transaction %s: %w", txn.TransactionID, err)
			}
			held, err := s.escrowHeldEvent(escrow, now)
			if err != nil {
				return CallbackResult{}, domain.Transaction{}, err
			}
			params.Escrow = &escrow
			params.HeldEntry = &entry
			params.EscrowEvents = []ports.OutboxEvent{held}
		}
	}

	applied, err := s.transactions.ApplyOutcome(ctx, params)
	if errors.Is(err, domain.ErrAlreadyProcessed) {
		current, getErr := s.transactions.GetByCheckoutID(ctx, outcome.CheckoutRequestID)
		if getErr != nil {
			return CallbackResult{}, domain.Transaction{}, getErr
		}
		return CallbackResult{Duplicate: true, Status: string(current.Status)}, current, nil
	}
	if err != nil {
		return CallbackResult{}, domain.Transaction{}, fmt.Errorf("apply collection outcome %s: %w", outcome.CheckoutRequestID, err)
	}
	if applied.EscrowSkipped {
		slog.Default().ErrorContext(ctx, "placement already has an open escrow; payment recorded without escrow",
			"service", serviceName,
			"module", "application.webhook",
			"layer", "application",
			"operation", "apply_collection_outcome",
			"outcome", "escrow_conflict",
			"transaction_id", txn.TransactionID,
			"placement_id", txn.PlacementID,
		)
	}
	return CallbackResult{Status: string(applied.Transaction.Status)}, applied.Transaction, nil
}

func logCallback(ctx context.Context, operation, outcome string, fields ...any) {
	base := []any{
		"service", serviceName,
		"module", "application.webhook",
		"layer", "application",
		"operation", operation,
		"outcome", outcome,
	}
	slog.Default().InfoContext(ctx, "callback handled", append(base, fields...)...)
}
