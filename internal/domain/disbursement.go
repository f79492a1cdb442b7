package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type DisbursementType string

const (
	DisbursementTypeEscrowRelease DisbursementType = "escrow_release"
	DisbursementTypeRefund        DisbursementType = "refund"
	DisbursementTypePayout        DisbursementType = "payout"
	DisbursementTypeOther         DisbursementType = "other"
)

type DisbursementStatus string

const (
	DisbursementStatusPending    DisbursementStatus = "pending"
	DisbursementStatusProcessing DisbursementStatus = "processing"
	DisbursementStatusCompleted  DisbursementStatus = "completed"
	DisbursementStatusFailed     DisbursementStatus = "failed"
)

func (s DisbursementStatus) IsTerminal() bool {
	return s == DisbursementStatusCompleted || s == DisbursementStatusFailed
}

// Disbursement is one B2C attempt. ExternalRequestID is the gateway's request id and the
// idempotency anchor for its callback.
type Disbursement struct {
	DisbursementID     string
	Type               DisbursementType
	PlacementID        string
	EscrowID           string
	MerchantReference  string
	ExternalRequestID  string
	ReceiverNumber     string
	Amount             decimal.Decimal
	Status             DisbursementStatus
	ResultCode         *int
	ResultDesc         string
	ReceiptNumber      string
	RawCallback        []byte
	CallbackReceivedAt *time.Time
	InitiatedBy        string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (d Disbursement) CallbackApplied() bool {
	return d.CallbackReceivedAt != nil || d.Status.IsTerminal()
}

type DisbursementOutcome struct {
	ExternalRequestID string
	MerchantReference string
	ResultCode        int
	ResultDesc        string
	ReceiptNumber     string
	RawPayload        []byte
	ReceivedAt        time.Time
}

func (o DisbursementOutcome) Status() DisbursementStatus {
	if o.ResultCode == ResultCodeSuccess {
		return DisbursementStatusCompleted
	}
	return DisbursementStatusFailed
}
