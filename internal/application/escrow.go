package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/maidsofhonourafrica/escrow-service/internal/domain"
	"github.com/maidsofhonourafrica/escrow-service/internal/ports"
)

// CreateEscrowTransaction opens a held escrow for an already collected payment.
func (s *Service) CreateEscrowTransaction(ctx context.Context, actor Actor, input CreateEscrowInput) (domain.EscrowTransaction, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.EscrowTransaction{}, domain.ErrUnauthorized
	}
	input.PlacementID = strings.TrimSpace(input.PlacementID)
	input.ClientID = strings.TrimSpace(input.ClientID)
	input.ProviderID = strings.TrimSpace(input.ProviderID)
	input.PaymentTransactionID = strings.TrimSpace(input.PaymentTransactionID)
	if err := s.checkEscrowPayment(ctx, input); err != nil {
		return domain.EscrowTransaction{}, err
	}
	now := s.nowFn()
	escrow, entry, err := domain.NewHeldEscrow(domain.NewEscrowParams{
		EscrowID:             uuid.NewString(),
		PlacementID:          input.PlacementID,
		ClientID:             input.ClientID,
		ProviderID:           input.ProviderID,
		PaymentTransactionID: input.PaymentTransactionID,
		TotalAmount:          input.Amount,
		CommissionRate:       s.cfg.Commission.RateAt(now),
		At:                   now,
	}, uuid.NewString(), actor.SubjectID)
	if err != nil {
		return domain.EscrowTransaction{}, err
	}
	evt, err := s.escrowHeldEvent(escrow, now)
	if err != nil {
		return domain.EscrowTransaction{}, err
	}
	if err := s.escrows.Create(ctx, escrow, entry, []ports.OutboxEvent{evt}); err != nil {
		return domain.EscrowTransaction{}, err
	}
	return escrow, nil
}

// checkEscrowPayment ties a manually opened escrow to money that was actually collected:
// a completed placement payment by the same client, for the same placement and amount.
func (s *Service) checkEscrowPayment(ctx context.Context, input CreateEscrowInput) error {
	if _, err := uuid.Parse(input.PaymentTransactionID); err != nil {
		return fmt.Errorf("%w: payment_transaction_id must be a uuid", domain.ErrInvalidInput)
	}
	txn, err := s.transactions.GetByID(ctx, input.PaymentTransactionID)
	if err != nil {
		return err
	}
	switch {
	case txn.Purpose != domain.PurposePlacementPayment:
		return fmt.Errorf("%w: payment %s is not a placement payment", domain.ErrInvalidInput, txn.TransactionID)
	case txn.PlacementID != input.PlacementID:
		return fmt.Errorf("%w: payment %s belongs to another placement", domain.ErrInvalidInput, txn.TransactionID)
	case txn.UserID != input.ClientID:
		return fmt.Errorf("%w: payment %s was made by another client", domain.ErrInvalidInput, txn.TransactionID)
	case txn.ProviderID != "" && txn.ProviderID != input.ProviderID:
		return fmt.Errorf("%w: payment %s names another provider", domain.ErrInvalidInput, txn.TransactionID)
	case !txn.Amount.Equal(input.Amount):
		return fmt.Errorf("%w: amount %s does not match collected %s", domain.ErrInvalidInput, input.Amount.StringFixed(2), txn.Amount.StringFixed(2))
	case txn.Status != domain.TransactionStatusCompleted:
		return fmt.Errorf("%w: payment %s is %s", domain.ErrConflict, txn.TransactionID, txn.Status)
	}
	return nil
}

func (s *Service) GetEscrow(ctx context.Context, escrowID string) (domain.EscrowTransaction, error) {
	escrowID = strings.TrimSpace(escrowID)
	if escrowID == "" {
		return domain.EscrowTransaction{}, domain.ErrInvalidInput
	}
	return s.escrows.GetByID(ctx, escrowID)
}

func (s *Service) ListLedgerEntries(ctx context.Context, escrowID string) ([]domain.LedgerEntry, error) {
	escrowID = strings.TrimSpace(escrowID)
	if escrowID == "" {
		return nil, domain.ErrInvalidInput
	}
	if _, err := s.escrows.GetByID(ctx, escrowID); err != nil {
		return nil, err
	}
	return s.escrows.ListEntries(ctx, escrowID)
}

func (s *Service) GetDisbursement(ctx context.Context, disbursementID string) (domain.Disbursement, error) {
	disbursementID = strings.TrimSpace(disbursementID)
	if disbursementID == "" {
		return domain.Disbursement{}, domain.ErrInvalidInput
	}
	return s.disbursements.GetByID(ctx, disbursementID)
}

// ReleaseEscrow pays the provider share out of a held escrow. The B2C call happens before
// any write; when it fails the escrow stays held and the call can be retried.
func (s *Service) ReleaseEscrow(ctx context.Context, actor Actor, escrowID string) (domain.EscrowTransaction, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.EscrowTransaction{}, domain.ErrUnauthorized
	}
	escrow, err := s.GetEscrow(ctx, escrowID)
	if err != nil {
		return domain.EscrowTransaction{}, err
	}
	if err := escrow.CheckHeld("release"); err != nil {
		return domain.EscrowTransaction{}, err
	}

	receiver, err := s.users.PayoutNumber(ctx, escrow.ProviderID)
	if err != nil {
		return domain.EscrowTransaction{}, fmt.Errorf("resolve provider payout number: %w", err)
	}
	disb, err := s.orchestrator.Initiate(ctx, DisbursementOrder{
		Type:           domain.DisbursementTypeEscrowRelease,
		EscrowID:       escrow.EscrowID,
		PlacementID:    escrow.PlacementID,
		ReceiverNumber: receiver,
		Amount:         escrow.SPPayout,
		InitiatedBy:    actor.SubjectID,
		Remarks:        "placement payout",
	})
	if err != nil {
		return domain.EscrowTransaction{}, err
	}

	now := s.nowFn()
	before := escrow.Balance()
	entry := domain.LedgerEntry{
		EntryID:       uuid.NewString(),
		EscrowID:      escrow.EscrowID,
		EventType:     domain.LedgerEventReleased,
		Amount:        escrow.SPPayout,
		BalanceBefore: before,
		BalanceAfter:  before.Sub(escrow.SPPayout),
		Actor:         actor.SubjectID,
		Reason:        "released to provider",
		Metadata: map[string]any{
			"disbursement_id":     disb.DisbursementID,
			"merchant_reference":  disb.MerchantReference,
			"platform_commission": escrow.PlatformCommission.String(),
		},
		CreatedAt: now,
	}
	evt, err := s.escrowReleasedEvent(escrow, disb, actor, now)
	if err != nil {
		return domain.EscrowTransaction{}, err
	}

	updated, err := s.escrows.Release(ctx, ports.ReleaseParams{
		EscrowID:     escrow.EscrowID,
		Actor:        actor.SubjectID,
		Disbursement: disb,
		Entry:        entry,
		Events:       []ports.OutboxEvent{evt},
		At:           now,
	})
	if err != nil {
		logUnrecordedDisbursement(ctx, "release_escrow", escrow.EscrowID, disb, err)
		return domain.EscrowTransaction{}, err
	}
	return updated, nil
}

// RefundEscrow returns the full held amount to the client.
func (s *Service) RefundEscrow(ctx context.Context, actor Actor, escrowID, reason string) (domain.EscrowTransaction, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.EscrowTransaction{}, domain.ErrUnauthorized
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.EscrowTransaction{}, fmt.Errorf("%w: refund reason is required", domain.ErrInvalidInput)
	}
	escrow, err := s.GetEscrow(ctx, escrowID)
	if err != nil {
		return domain.EscrowTransaction{}, err
	}
	if err := escrow.CheckHeld("refund"); err != nil {
		return domain.EscrowTransaction{}, err
	}

	receiver, err := s.users.PhoneNumber(ctx, escrow.ClientID)
	if err != nil {
		return domain.EscrowTransaction{}, fmt.Errorf("resolve client phone number: %w", err)
	}
	amount := escrow.Balance()
	disb, err := s.orchestrator.Initiate(ctx, DisbursementOrder{
		Type:           domain.DisbursementTypeRefund,
		EscrowID:       escrow.EscrowID,
		PlacementID:    escrow.PlacementID,
		ReceiverNumber: receiver,
		Amount:         amount,
		InitiatedBy:    actor.SubjectID,
		Remarks:        reason,
	})
	if err != nil {
		return domain.EscrowTransaction{}, err
	}

	now := s.nowFn()
	entry := domain.LedgerEntry{
		EntryID:       uuid.NewString(),
		EscrowID:      escrow.EscrowID,
		EventType:     domain.LedgerEventRefunded,
		Amount:        amount,
		BalanceBefore: amount,
		BalanceAfter:  decimal.Zero,
		Actor:         actor.SubjectID,
		Reason:        reason,
		Metadata: map[string]any{
			"disbursement_id":    disb.DisbursementID,
			"merchant_reference": disb.MerchantReference,
		},
		CreatedAt: now,
	}
	evt, err := s.escrowRefundedEvent(escrow, disb, actor, reason, now)
	if err != nil {
		return domain.EscrowTransaction{}, err
	}

	updated, err := s.escrows.Refund(ctx, ports.RefundParams{
		EscrowID:     escrow.EscrowID,
		Actor:        actor.SubjectID,
		Reason:       reason,
		Disbursement: disb,
		Entry:        entry,
		Events:       []ports.OutboxEvent{evt},
		At:           now,
	})
	if err != nil {
		logUnrecordedDisbursement(ctx, "refund_escrow", escrow.EscrowID, disb, err)
		return domain.EscrowTransaction{}, err
	}
	return updated, nil
}

// logUnrecordedDisbursement flags a B2C request the gateway accepted but whose escrow
// transition did not commit. Retrying reuses the merchant reference.
func logUnrecordedDisbursement(ctx context.Context, operation, escrowID string, disb domain.Disbursement, err error) {
	slog.Default().ErrorContext(ctx, "disbursement accepted by gateway but escrow transition not committed",
		"service", serviceName,
		"module", "application.escrow",
		"layer", "application",
		"operation", operation,
		"outcome", "commit_failed",
		"escrow_id", escrowID,
		"b2c_request_id", disb.ExternalRequestID,
		"merchant_reference", disb.MerchantReference,
		"error", err,
	)
}
