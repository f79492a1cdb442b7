package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/maidsofhonourafrica/escrow-service/internal/domain"
	"github.com/maidsofhonourafrica/escrow-service/internal/ports"
)

// InitiateCollection asks the gateway to collect from the payer's phone and records the
// pending attempt. Nothing is stored when the gateway refuses.
func (s *Service) InitiateCollection(ctx context.Context, actor Actor, input InitiateCollectionInput) (domain.Transaction, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.Transaction{}, domain.ErrUnauthorized
	}
	input.UserID = strings.TrimSpace(input.UserID)
	input.PhoneNumber = strings.TrimSpace(input.PhoneNumber)
	input.PlacementID = strings.TrimSpace(input.PlacementID)
	input.ProviderID = strings.TrimSpace(input.ProviderID)
	if input.UserID == "" || input.PhoneNumber == "" {
		return domain.Transaction{}, fmt.Errorf("%w: user_id and phone_number are required", domain.ErrInvalidInput)
	}
	if !input.Amount.IsPositive() {
		return domain.Transaction{}, fmt.Errorf("%w: amount must be positive", domain.ErrInvalidInput)
	}
	if !input.Purpose.Valid() {
		return domain.Transaction{}, fmt.Errorf("%w: unknown purpose %q", domain.ErrInvalidInput, input.Purpose)
	}
	if input.Purpose == domain.PurposePlacementPayment && (input.PlacementID == "" || input.ProviderID == "") {
		return domain.Transaction{}, fmt.Errorf("%w: placement payments need placement_id and provider_id", domain.ErrInvalidInput)
	}

	reference := input.UserID
	if input.PlacementID != "" {
		reference = input.PlacementID
	}
	resp, err := s.gateway.RequestCollection(ctx, ports.CollectionRequest{
		PhoneNumber:      input.PhoneNumber,
		Amount:           input.Amount,
		AccountReference: reference,
		Description:      string(input.Purpose),
	})
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("request collection: %w", err)
	}
	if resp.ResponseCode != "0" || strings.TrimSpace(resp.CheckoutRequestID) == "" {
		return domain.Transaction{}, fmt.Errorf("%w: %s (code %s)", domain.ErrGatewayRejected, resp.ResponseDesc, resp.ResponseCode)
	}

	now := s.nowFn()
	txn := domain.Transaction{
		TransactionID:     uuid.NewString(),
		UserID:            input.UserID,
		Purpose:           input.Purpose,
		PlacementID:       input.PlacementID,
		ProviderID:        input.ProviderID,
		CheckoutRequestID: resp.CheckoutRequestID,
		MerchantRequestID: resp.MerchantRequestID,
		Amount:            input.Amount,
		PhoneNumber:       input.PhoneNumber,
		Status:            domain.TransactionStatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.transactions.Create(ctx, txn); err != nil {
		return domain.Transaction{}, err
	}
	return txn, nil
}

// ConfirmCollectionOTP submits the payer's one-time code for gateways that collect via OTP
// instead of a push prompt.
func (s *Service) ConfirmCollectionOTP(ctx context.Context, actor Actor, checkoutRequestID, otp string) (domain.Transaction, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.Transaction{}, domain.ErrUnauthorized
	}
	checkoutRequestID = strings.TrimSpace(checkoutRequestID)
	otp = strings.TrimSpace(otp)
	if checkoutRequestID == "" || otp == "" {
		return domain.Transaction{}, fmt.Errorf("%w: checkout id and otp are required", domain.ErrInvalidInput)
	}
	txn, err := s.transactions.GetByCheckoutID(ctx, checkoutRequestID)
	if err != nil {
		return domain.Transaction{}, err
	}
	if txn.Status != domain.TransactionStatusPending {
		return domain.Transaction{}, fmt.Errorf("%w: transaction is %s", domain.ErrConflict, txn.Status)
	}

	resp, err := s.gateway.ProcessPayment(ctx, ports.ProcessPaymentRequest{
		CheckoutRequestID: checkoutRequestID,
		OTP:               otp,
	})
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("process payment: %w", err)
	}
	if resp.ResponseCode != "0" {
		return domain.Transaction{}, fmt.Errorf("%w: %s (code %s)", domain.ErrGatewayRejected, resp.ResponseDesc, resp.ResponseCode)
	}
	if err := s.transactions.MarkProcessing(ctx, checkoutRequestID, s.nowFn()); err != nil {
		return domain.Transaction{}, err
	}
	return s.transactions.GetByCheckoutID(ctx, checkoutRequestID)
}

// ReconcileCollection asks the gateway for the verdict on a collection whose callback has
// not arrived and applies it through the same gates as the callback.
func (s *Service) ReconcileCollection(ctx context.Context, checkoutRequestID string) (ReconcileResult, error) {
	checkoutRequestID = strings.TrimSpace(checkoutRequestID)
	if checkoutRequestID == "" {
		return ReconcileResult{}, domain.ErrInvalidInput
	}
	txn, err := s.transactions.GetByCheckoutID(ctx, checkoutRequestID)
	if err != nil {
		return ReconcileResult{}, err
	}
	if txn.CallbackApplied() {
		return ReconcileResult{CheckoutRequestID: checkoutRequestID, Status: txn.Status}, nil
	}

	status, err := s.gateway.QueryStatus(ctx, checkoutRequestID)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("query collection status: %w", err)
	}
	if status.Pending {
		return ReconcileResult{CheckoutRequestID: checkoutRequestID, Pending: true, Status: txn.Status}, nil
	}

	res, err := s.ProcessCollectionOutcome(ctx, domain.CollectionOutcome{
		CheckoutRequestID: checkoutRequestID,
		MerchantRequestID: txn.MerchantRequestID,
		ResultCode:        status.ResultCode,
		ResultDesc:        status.ResultDesc,
		ReceiptNumber:     status.ReceiptNumber,
		Source:            "status_query",
		RawPayload:        status.RawPayload,
	})
	if err != nil {
		return ReconcileResult{}, err
	}
	applied := !res.Duplicate && !res.Concurrent
	current := domain.TransactionStatus(res.Status)
	if current == "" {
		current = txn.Status
	}
	return ReconcileResult{CheckoutRequestID: checkoutRequestID, Applied: applied, Status: current}, nil
}

// ReconcileStale walks collections left pending past the configured age.
func (s *Service) ReconcileStale(ctx context.Context) (int, error) {
	olderThan := s.nowFn().Add(-s.cfg.ReconcileAfter)
	stale, err := s.transactions.ListStale(ctx, olderThan, s.cfg.ReconcileBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list stale transactions: %w", err)
	}
	applied := 0
	for _, txn := range stale {
		if ctx.Err() != nil {
			return applied, ctx.Err()
		}
		res, err := s.ReconcileCollection(ctx, txn.CheckoutRequestID)
		if err != nil {
			level := slog.LevelWarn
			if !errors.Is(err, domain.ErrGatewayUnavailable) {
				level = slog.LevelError
			}
			slog.Default().Log(ctx, level, "collection reconciliation failed",
				"service", serviceName,
				"module", "application.collection",
				"layer", "application",
				"operation", "reconcile_stale",
				"outcome", "failure",
				"checkout_request_id", txn.CheckoutRequestID,
				"error", err,
			)
			continue
		}
		if res.Applied {
			applied++
		}
	}
	return applied, nil
}
