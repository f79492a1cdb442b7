package application

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/maidsofhonourafrica/escrow-service/internal/contracts"
	"github.com/maidsofhonourafrica/escrow-service/internal/domain"
	"github.com/maidsofhonourafrica/escrow-service/internal/ports"
)

func (s *Service) newOutboxEvent(eventType, partitionKey, traceID string, data any, now time.Time) (ports.OutboxEvent, error) {
	if !domain.IsEmittedEvent(eventType) {
		return ports.OutboxEvent{}, fmt.Errorf("unsupported event type %q", eventType)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return ports.OutboxEvent{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	if traceID == "" {
		traceID = uuid.NewString()
	}
	eventID := uuid.New()
	envelope, err := json.Marshal(contracts.EventEnvelope{
		EventID:       eventID.String(),
		EventType:     eventType,
		OccurredAt:    now,
		PartitionKey:  partitionKey,
		SourceService: s.cfg.ServiceName,
		TraceID:       traceID,
		SchemaVersion: "v1",
		Data:          raw,
	})
	if err != nil {
		return ports.OutboxEvent{}, fmt.Errorf("marshal %s envelope: %w", eventType, err)
	}
	return ports.OutboxEvent{
		EventID:      eventID,
		EventType:    eventType,
		PartitionKey: partitionKey,
		Payload:      envelope,
		OccurredAt:   now,
	}, nil
}

func (s *Service) collectionEvents(txn domain.Transaction, outcome domain.CollectionOutcome, now time.Time) ([]ports.OutboxEvent, error) {
	at := now.Format(time.RFC3339)
	if outcome.Status() != domain.TransactionStatusCompleted {
		evt, err := s.newOutboxEvent(domain.EventCollectionFailed, txn.TransactionID, "", contracts.CollectionFailedPayload{
			TransactionID:     txn.TransactionID,
			CheckoutRequestID: txn.CheckoutRequestID,
			UserID:            txn.UserID,
			ResultCode:        outcome.ResultCode,
			ResultDesc:        outcome.ResultDesc,
			FailedAt:          at,
		}, now)
		if err != nil {
			return nil, err
		}
		return []ports.OutboxEvent{evt}, nil
	}

	events := make([]ports.OutboxEvent, 0, 2)
	completed, err := s.newOutboxEvent(domain.EventCollectionCompleted, txn.TransactionID, "", contracts.CollectionCompletedPayload{
		TransactionID:     txn.TransactionID,
		CheckoutRequestID: txn.CheckoutRequestID,
		UserID:            txn.UserID,
		Purpose:           string(txn.Purpose),
		PlacementID:       txn.PlacementID,
		Amount:            txn.Amount.StringFixed(2),
		ReceiptNumber:     outcome.ReceiptNumber,
		CompletedAt:       at,
	}, now)
	if err != nil {
		return nil, err
	}
	events = append(events, completed)

	if txn.Purpose == domain.PurposeRegistrationFee {
		paid, err := s.newOutboxEvent(domain.EventRegistrationFeePaid, txn.UserID, "", contracts.RegistrationFeePaidPayload{
			UserID:        txn.UserID,
			TransactionID: txn.TransactionID,
			Amount:        txn.Amount.StringFixed(2),
			PaidAt:        at,
		}, now)
		if err != nil {
			return nil, err
		}
		events = append(events, paid)
	}
	return events, nil
}

func (s *Service) escrowHeldEvent(escrow domain.EscrowTransaction, now time.Time) (ports.OutboxEvent, error) {
	return s.newOutboxEvent(domain.EventEscrowHeld, escrow.EscrowID, "", contracts.EscrowHeldPayload{
		EscrowID:           escrow.EscrowID,
		PlacementID:        escrow.PlacementID,
		ClientID:           escrow.ClientID,
		ProviderID:         escrow.ProviderID,
		TotalAmount:        escrow.TotalAmount.StringFixed(2),
		PlatformCommission: escrow.PlatformCommission.StringFixed(2),
		SPPayout:           escrow.SPPayout.StringFixed(2),
		HeldAt:             now.Format(time.RFC3339),
	}, now)
}

func (s *Service) escrowReleasedEvent(escrow domain.EscrowTransaction, disb domain.Disbursement, actor Actor, now time.Time) (ports.OutboxEvent, error) {
	return s.newOutboxEvent(domain.EventEscrowReleased, escrow.EscrowID, actor.RequestID, contracts.EscrowReleasedPayload{
		EscrowID:       escrow.EscrowID,
		PlacementID:    escrow.PlacementID,
		ProviderID:     escrow.ProviderID,
		Amount:         disb.Amount.StringFixed(2),
		DisbursementID: disb.DisbursementID,
		ReleasedBy:     actor.SubjectID,
		ReleasedAt:     now.Format(time.RFC3339),
	}, now)
}

func (s *Service) escrowRefundedEvent(escrow domain.EscrowTransaction, disb domain.Disbursement, actor Actor, reason string, now time.Time) (ports.OutboxEvent, error) {
	return s.newOutboxEvent(domain.EventEscrowRefunded, escrow.EscrowID, actor.RequestID, contracts.EscrowRefundedPayload{
		EscrowID:       escrow.EscrowID,
		PlacementID:    escrow.PlacementID,
		ClientID:       escrow.ClientID,
		Amount:         disb.Amount.StringFixed(2),
		Reason:         reason,
		DisbursementID: disb.DisbursementID,
		RefundedBy:     actor.SubjectID,
		RefundedAt:     now.Format(time.RFC3339),
	}, now)
}

func (s *Service) disbursementOutcomeEvent(disb domain.Disbursement, outcome domain.DisbursementOutcome, now time.Time) (ports.OutboxEvent, error) {
	eventType := domain.EventDisbursementCompleted
	if outcome.Status() != domain.DisbursementStatusCompleted {
		eventType = domain.EventDisbursementFailed
	}
	return s.newOutboxEvent(eventType, disb.DisbursementID, "", contracts.DisbursementOutcomePayload{
		DisbursementID:    disb.DisbursementID,
		Type:              string(disb.Type),
		EscrowID:          disb.EscrowID,
		ExternalRequestID: disb.ExternalRequestID,
		Amount:            disb.Amount.StringFixed(2),
		Status:            string(outcome.Status()),
		ResultCode:        outcome.ResultCode,
		ResultDesc:        outcome.ResultDesc,
		ReceiptNumber:     outcome.ReceiptNumber,
		CompletedAt:       now.Format(time.RFC3339),
	}, now)
}
