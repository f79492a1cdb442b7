package postgres

import (
	"encoding/json"
	"errors"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/maidsofhonourafrica/escrow-service/internal/domain"
	"github.com/maidsofhonourafrica/escrow-service/internal/ports"
)

func toTransactionModel(t domain.Transaction) transactionModel {
	return transactionModel{
		TransactionID:      t.TransactionID,
		UserID:             t.UserID,
		Purpose:            string(t.Purpose),
		PlacementID:        t.PlacementID,
		ProviderID:         t.ProviderID,
		CheckoutRequestID:  t.CheckoutRequestID,
		MerchantRequestID:  t.MerchantRequestID,
		Amount:             t.Amount,
		PhoneNumber:        t.PhoneNumber,
		Status:             string(t.Status),
		ResultCode:         t.ResultCode,
		ResultDesc:         t.ResultDesc,
		ReceiptNumber:      t.ReceiptNumber,
		RawCallback:        jsonColumn(t.RawCallback),
		CallbackReceivedAt: t.CallbackReceivedAt,
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
	}
}

func toDomainTransaction(row transactionModel) domain.Transaction {
	return domain.Transaction{
		TransactionID:      row.TransactionID,
		UserID:             row.UserID,
		Purpose:            domain.PaymentPurpose(row.Purpose),
		PlacementID:        row.PlacementID,
		ProviderID:         row.ProviderID,
		CheckoutRequestID:  row.CheckoutRequestID,
		MerchantRequestID:  row.MerchantRequestID,
		Amount:             row.Amount,
		PhoneNumber:        row.PhoneNumber,
		Status:             domain.TransactionStatus(row.Status),
		ResultCode:         row.ResultCode,
		ResultDesc:         row.ResultDesc,
		ReceiptNumber:      row.ReceiptNumber,
		RawCallback:        []byte(row.RawCallback),
		CallbackReceivedAt: row.CallbackReceivedAt,
		CreatedAt:          row.CreatedAt,
		UpdatedAt:          row.UpdatedAt,
	}
}

func toEscrowModel(e domain.EscrowTransaction) escrowModel {
	return escrowModel{
		EscrowID:              e.EscrowID,
		PlacementID:           e.PlacementID,
		ClientID:              e.ClientID,
		ProviderID:            e.ProviderID,
		PaymentTransactionID:  e.PaymentTransactionID,
		TotalAmount:           e.TotalAmount,
		PlatformCommission:    e.PlatformCommission,
		SPPayout:              e.SPPayout,
		CommissionRate:        e.CommissionRate,
		Status:                string(e.Status),
		HeldAt:                e.HeldAt,
		ReleasedAt:            e.ReleasedAt,
		RefundedAt:            e.RefundedAt,
		ReleasedBy:            e.ReleasedBy,
		RefundedBy:            e.RefundedBy,
		RefundReason:          e.RefundReason,
		RefundAmount:          e.RefundAmount,
		ReleaseDisbursementID: nullableString(e.ReleaseDisbursementID),
		RefundDisbursementID:  nullableString(e.RefundDisbursementID),
		CreatedAt:             e.CreatedAt,
		UpdatedAt:             e.UpdatedAt,
	}
}

func toDomainEscrow(row escrowModel) domain.EscrowTransaction {
	return domain.EscrowTransaction{
		EscrowID:              row.EscrowID,
		PlacementID:           row.PlacementID,
		ClientID:              row.ClientID,
		ProviderID:            row.ProviderID,
		PaymentTransactionID:  row.PaymentTransactionID,
		TotalAmount:           row.TotalAmount,
		PlatformCommission:    row.PlatformCommission,
		SPPayout:              row.SPPayout,
		CommissionRate:        row.CommissionRate,
		Status:                domain.EscrowStatus(row.Status),
		HeldAt:                row.HeldAt,
		ReleasedAt:            row.ReleasedAt,
		RefundedAt:            row.RefundedAt,
		ReleasedBy:            row.ReleasedBy,
		RefundedBy:            row.RefundedBy,
		RefundReason:          row.RefundReason,
		RefundAmount:          row.RefundAmount,
		ReleaseDisbursementID: derefString(row.ReleaseDisbursementID),
		RefundDisbursementID:  derefString(row.RefundDisbursementID),
		CreatedAt:             row.CreatedAt,
		UpdatedAt:             row.UpdatedAt,
	}
}

func toLedgerEntryModel(e domain.LedgerEntry) (ledgerEntryModel, error) {
	var metadata datatypes.JSON
	if len(e.Metadata) > 0 {
		raw, err := json.Marshal(e.Metadata)
		if err != nil {
			return ledgerEntryModel{}, err
		}
		metadata = raw
	}
	return ledgerEntryModel{
		EntryID:       e.EntryID,
		EscrowID:      e.EscrowID,
		EventType:     string(e.EventType),
		Amount:        e.Amount,
		BalanceBefore: e.BalanceBefore,
		BalanceAfter:  e.BalanceAfter,
		Actor:         e.Actor,
		Reason:        e.Reason,
		Metadata:      metadata,
		CreatedAt:     e.CreatedAt,
	}, nil
}

func toDomainLedgerEntry(row ledgerEntryModel) domain.LedgerEntry {
	var metadata map[string]any
	if len(row.Metadata) > 0 {
		_ = json.Unmarshal(row.Metadata, &metadata)
	}
	return domain.LedgerEntry{
		EntryID:       row.EntryID,
		EscrowID:      row.EscrowID,
		EventType:     domain.LedgerEventType(row.EventType),
		Amount:        row.Amount,
		BalanceBefore: row.BalanceBefore,
		BalanceAfter:  row.BalanceAfter,
		Actor:         row.Actor,
		Reason:        row.Reason,
		Metadata:      metadata,
		CreatedAt:     row.CreatedAt,
	}
}

func toDisbursementModel(d domain.Disbursement) disbursementModel {
	return disbursementModel{
		DisbursementID:     d.DisbursementID,
		Type:               string(d.Type),
		PlacementID:        d.PlacementID,
		EscrowID:           nullableString(d.EscrowID),
		MerchantReference:  d.MerchantReference,
		ExternalRequestID:  d.ExternalRequestID,
		ReceiverNumber:     d.ReceiverNumber,
		Amount:             d.Amount,
		Status:             string(d.Status),
		ResultCode:         d.ResultCode,
		ResultDesc:         d.ResultDesc,
		ReceiptNumber:      d.ReceiptNumber,
		RawCallback:        jsonColumn(d.RawCallback),
		CallbackReceivedAt: d.CallbackReceivedAt,
		InitiatedBy:        d.InitiatedBy,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
}

func toDomainDisbursement(row disbursementModel) domain.Disbursement {
	return domain.Disbursement{
		DisbursementID:     row.DisbursementID,
		Type:               domain.DisbursementType(row.Type),
		PlacementID:        row.PlacementID,
		EscrowID:           derefString(row.EscrowID),
		MerchantReference:  row.MerchantReference,
		ExternalRequestID:  row.ExternalRequestID,
		ReceiverNumber:     row.ReceiverNumber,
		Amount:             row.Amount,
		Status:             domain.DisbursementStatus(row.Status),
		ResultCode:         row.ResultCode,
		ResultDesc:         row.ResultDesc,
		ReceiptNumber:      row.ReceiptNumber,
		RawCallback:        []byte(row.RawCallback),
		CallbackReceivedAt: row.CallbackReceivedAt,
		InitiatedBy:        row.InitiatedBy,
		CreatedAt:          row.CreatedAt,
		UpdatedAt:          row.UpdatedAt,
	}
}

func toOutboxModel(evt ports.OutboxEvent) outboxModel {
	payload := evt.Payload
	if len(payload) == 0 {
		payload = []byte(`{}`)
	}
	return outboxModel{
		OutboxID:     evt.EventID,
		EventType:    evt.EventType,
		PartitionKey: evt.PartitionKey,
		Payload:      string(payload),
		CreatedAt:    evt.OccurredAt,
	}
}

func toOutboxRecord(row outboxModel) ports.OutboxRecord {
	return ports.OutboxRecord{
		OutboxID:       row.OutboxID,
		EventType:      row.EventType,
		PartitionKey:   row.PartitionKey,
		Payload:        []byte(row.Payload),
		RetryCount:     row.RetryCount,
		LastError:      row.LastError,
		CreatedAt:      row.CreatedAt,
		PublishedAt:    row.PublishedAt,
		LastErrorAt:    row.LastErrorAt,
		ClaimToken:     row.ClaimToken,
		ClaimUntil:     row.ClaimUntil,
		DeadLetteredAt: row.DeadLetteredAt,
	}
}

// jsonColumn keeps non-JSON gateway payloads out of jsonb columns.
func jsonColumn(raw []byte) datatypes.JSON {
	if len(raw) == 0 || !json.Valid(raw) {
		return nil
	}
	return datatypes.JSON(raw)
}

func nullableString(v string) *string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

func isForeignKeyViolation(err error) bool {
	return errors.Is(err, gorm.ErrForeignKeyViolated)
}
