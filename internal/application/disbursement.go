package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/maidsofhonourafrica/escrow-service/internal/domain"
	"github.com/maidsofhonourafrica/escrow-service/internal/ports"
)

// merchantReferenceNamespace scopes the UUIDv5 references sent with every B2C request.
var merchantReferenceNamespace = uuid.MustParse("6f1c3a52-8a3e-5d57-9c0b-2f0d6a7e4b11")

// MerchantReference is stable per (type, escrow) so a retried release or refund reaches
// the gateway with the reference it already knows.
func MerchantReference(kind domain.DisbursementType, escrowID string) string {
	return uuid.NewSHA1(merchantReferenceNamespace, []byte(string(kind)+":"+escrowID)).String()
}

type DisbursementOrder struct {
	Type           domain.DisbursementType
	EscrowID       string
	PlacementID    string
	ReceiverNumber string
	Amount         decimal.Decimal
	InitiatedBy    string
	Remarks        string
}

// DisbursementOrchestrator issues B2C requests. It never persists anything; the caller
// records the returned pending disbursement together with the escrow transition.
type DisbursementOrchestrator struct {
	gateway ports.PaymentGateway
	nowFn   func() time.Time
}

func NewDisbursementOrchestrator(gateway ports.PaymentGateway) *DisbursementOrchestrator {
	return &DisbursementOrchestrator{
		gateway: gateway,
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
}

func (o *DisbursementOrchestrator) Initiate(ctx context.Context, order DisbursementOrder) (domain.Disbursement, error) {
	if strings.TrimSpace(order.ReceiverNumber) == "" {
		return domain.Disbursement{}, fmt.Errorf("%w: receiver number is required", domain.ErrInvalidInput)
	}
	if !order.Amount.IsPositive() {
		return domain.Disbursement{}, fmt.Errorf("%w: disbursement amount must be positive", domain.ErrInvalidInput)
	}

	reference := MerchantReference(order.Type, order.EscrowID)
	resp, err := o.gateway.Disburse(ctx, ports.DisburseRequest{
		MerchantReference: reference,
		ReceiverNumber:    order.ReceiverNumber,
		Amount:            order.Amount,
		Remarks:           order.Remarks,
		Occasion:          string(order.Type),
	})
	if err != nil {
		return domain.Disbursement{}, fmt.Errorf("disburse %s: %w", reference, err)
	}
	if resp.ResponseCode != "0" || strings.TrimSpace(resp.B2CRequestID) == "" {
		return domain.Disbursement{}, fmt.Errorf("%w: %s (code %s)", domain.ErrGatewayRejected, resp.ResponseDesc, resp.ResponseCode)
	}

	now := o.nowFn()
	return domain.Disbursement{
		DisbursementID:    uuid.NewString(),
		Type:              order.Type,
		PlacementID:       order.PlacementID,
		EscrowID:          order.EscrowID,
		MerchantReference: reference,
		ExternalRequestID: resp.B2CRequestID,
		ReceiverNumber:    order.ReceiverNumber,
		Amount:            order.Amount,
		Status:            domain.DisbursementStatusPending,
		InitiatedBy:       order.InitiatedBy,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}
