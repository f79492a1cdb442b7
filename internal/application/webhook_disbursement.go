package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/maidsofhonourafrica/escrow-service/internal/domain"
	"github.com/maidsofhonourafrica/escrow-service/internal/ports"
)

// ProcessDisbursementOutcome finalizes a B2C disbursement from its result callback. The
// escrow is not touched: a failed payout leaves the escrow released and is surfaced
// through payment.disbursement.failed for manual follow-up.
func (s *Service) ProcessDisbursementOutcome(ctx context.Context, outcome domain.DisbursementOutcome) (CallbackResult, error) {
	outcome.ExternalRequestID = strings.TrimSpace(outcome.ExternalRequestID)
	if outcome.ExternalRequestID == "" {
		return CallbackResult{}, fmt.Errorf("%w: b2c request id is required", domain.ErrInvalidCallback)
	}
	if outcome.ReceivedAt.IsZero() {
		outcome.ReceivedAt = s.nowFn()
	}

	key := DisbursementCallbackKey(outcome.ExternalRequestID)
	if s.guard.IsProcessed(ctx, key) {
		logCallback(ctx, "process_disbursement_callback", "duplicate", "b2c_request_id", outcome.ExternalRequestID)
		return CallbackResult{Duplicate: true}, nil
	}
	if !s.guard.TryAcquire(ctx, key, s.cfg.IdempotencyLease) {
		logCallback(ctx, "process_disbursement_callback", "concurrent", "b2c_request_id", outcome.ExternalRequestID)
		return CallbackResult{Concurrent: true}, nil
	}

	result, disb, err := s.applyDisbursementOutcome(ctx, outcome)
	if err != nil {
		_ = s.guard.Release(ctx, key)
		return CallbackResult{}, err
	}

	marker, _ := json.Marshal(processedMarker{
		Status:      string(disb.Status),
		ReferenceID: disb.DisbursementID,
		ProcessedAt: s.nowFn(),
	})
	s.guard.MarkProcessed(ctx, key, marker, s.cfg.IdempotencyTTL)

	outcomeLabel := "success"
	if result.Duplicate {
		outcomeLabel = "duplicate"
	}
	logCallback(ctx, "process_disbursement_callback", outcomeLabel,
		"b2c_request_id", outcome.ExternalRequestID,
		"disbursement_id", disb.DisbursementID,
		"disbursement_status", disb.Status,
	)
	return result, nil
}

func (s *Service) applyDisbursementOutcome(ctx context.Context, outcome domain.DisbursementOutcome) (CallbackResult, domain.Disbursement, error) {
	disb, err := s.disbursements.GetByExternalRequestID(ctx, outcome.ExternalRequestID)
	if err != nil {
		return CallbackResult{}, domain.Disbursement{}, err
	}
	if disb.CallbackApplied() {
		return CallbackResult{Duplicate: true, Status: string(disb.Status)}, disb, nil
	}

	evt, err := s.disbursementOutcomeEvent(disb, outcome, outcome.ReceivedAt)
	if err != nil {
		return CallbackResult{}, domain.Disbursement{}, err
	}
	updated, err := s.disbursements.ApplyOutcome(ctx, ports.ApplyDisbursementParams{
		Outcome: outcome,
		Events:  []ports.OutboxEvent{evt},
	})
	if errors.Is(err, domain.ErrAlreadyProcessed) {
		current, getErr := s.disbursements.GetByExternalRequestID(ctx, outcome.ExternalRequestID)
		if getErr != nil {
			return CallbackResult{}, domain.Disbursement{}, getErr
		}
		return CallbackResult{Duplicate: true, Status: string(current.Status)}, current, nil
	}
	if err != nil {
		return CallbackResult{}, domain.Disbursement{}, fmt.Errorf("apply disbursement outcome %s: %w", outcome.ExternalRequestID, err)
	}

	if updated.Status == domain.DisbursementStatusFailed {
		slog.Default().WarnContext(ctx, "disbursement failed at gateway",
			"service", serviceName,
			"module", "application.webhook",
			"layer", "application",
			"operation", "apply_disbursement_outcome",
			"outcome", "gateway_failed",
			"disbursement_id", updated.DisbursementID,
			"escrow_id", updated.EscrowID,
			"result_code", outcome.ResultCode,
			"result_desc", outcome.ResultDesc,
		)
	}
	return CallbackResult{Status: string(updated.Status)}, updated, nil
}
