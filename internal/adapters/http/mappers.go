package http

import (
	"github.com/maidsofhonourafrica/escrow-service/internal/application"
	"github.com/maidsofhonourafrica/escrow-service/internal/contracts"
	"github.com/maidsofhonourafrica/escrow-service/internal/domain"
)

func toTransactionResponse(t domain.Transaction) contracts.TransactionResponse {
	return contracts.TransactionResponse{
		TransactionID:      t.TransactionID,
		UserID:             t.UserID,
		Purpose:            string(t.Purpose),
		PlacementID:        t.PlacementID,
		CheckoutRequestID:  t.CheckoutRequestID,
		MerchantRequestID:  t.MerchantRequestID,
		Amount:             t.Amount.StringFixed(2),
		Status:             string(t.Status),
		ResultCode:         t.ResultCode,
		ResultDesc:         t.ResultDesc,
		ReceiptNumber:      t.ReceiptNumber,
		CallbackReceivedAt: formatTime(t.CallbackReceivedAt),
		CreatedAt:          formatTime(&t.CreatedAt),
	}
}

func toEscrowResponse(e domain.EscrowTransaction) contracts.EscrowResponse {
	resp := contracts.EscrowResponse{
		EscrowID:             e.EscrowID,
		PlacementID:          e.PlacementID,
		ClientID:             e.ClientID,
		ProviderID:           e.ProviderID,
		PaymentTransactionID: e.PaymentTransactionID,
		TotalAmount:          e.TotalAmount.StringFixed(2),
		PlatformCommission:   e.PlatformCommission.StringFixed(2),
		SPPayout:             e.SPPayout.StringFixed(2),
		CommissionRate:       e.CommissionRate.String(),
		Status:               string(e.Status),
		Balance:              e.Balance().StringFixed(2),
		HeldAt:               formatTime(e.HeldAt),
		ReleasedAt:           formatTime(e.ReleasedAt),
		RefundedAt:           formatTime(e.RefundedAt),
		ReleasedBy:           e.ReleasedBy,
		RefundedBy:           e.RefundedBy,
		RefundReason:         e.RefundReason,
	}
	if e.RefundAmount.IsPositive() {
		resp.RefundAmount = e.RefundAmount.StringFixed(2)
	}
	return resp
}

func toLedgerResponse(entries []domain.LedgerEntry) []contracts.LedgerEntryResponse {
	out := make([]contracts.LedgerEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, contracts.LedgerEntryResponse{
			EntryID:       e.EntryID,
			EventType:     string(e.EventType),
			Amount:        e.Amount.StringFixed(2),
			BalanceBefore: e.BalanceBefore.StringFixed(2),
			BalanceAfter:  e.BalanceAfter.StringFixed(2),
			Actor:         e.Actor,
			Reason:        e.Reason,
			Metadata:      e.Metadata,
			CreatedAt:     formatTime(&e.CreatedAt),
		})
	}
	return out
}

func toDisbursementResponse(d domain.Disbursement) contracts.DisbursementResponse {
	return contracts.DisbursementResponse{
		DisbursementID:    d.DisbursementID,
		Type:              string(d.Type),
		PlacementID:       d.PlacementID,
		EscrowID:          d.EscrowID,
		MerchantReference: d.MerchantReference,
		ExternalRequestID: d.ExternalRequestID,
		ReceiverNumber:    d.ReceiverNumber,
		Amount:            d.Amount.StringFixed(2),
		Status:            string(d.Status),
		ResultCode:        d.ResultCode,
		ResultDesc:        d.ResultDesc,
		InitiatedBy:       d.InitiatedBy,
		CreatedAt:         formatTime(&d.CreatedAt),
	}
}

func toReconcileResponse(r application.ReconcileResult) contracts.ReconcileResponse {
	return contracts.ReconcileResponse{
		CheckoutRequestID: r.CheckoutRequestID,
		Pending:           r.Pending,
		Applied:           r.Applied,
		Status:            string(r.Status),
	}
}
