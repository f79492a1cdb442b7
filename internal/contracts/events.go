package contracts

import (
	"encoding/json"
	"time"
)

type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	OccurredAt    time.Time       `json:"occurred_at"`
	PartitionKey  string          `json:"partition_key"`
	SourceService string          `json:"source_service"`
	TraceID       string          `json:"trace_id,omitempty"`
	SchemaVersion string          `json:"schema_version"`
	Data          json.RawMessage `json:"data"`
}

type CollectionCompletedPayload struct {
	TransactionID     string `json:"transaction_id"`
	CheckoutRequestID string `json:"checkout_request_id"`
	UserID            string `json:"user_id"`
	Purpose           string `json:"purpose"`
	PlacementID       string `json:"placement_id,omitempty"`
	Amount            string `json:"amount"`
	ReceiptNumber     string `json:"receipt_number,omitempty"`
	CompletedAt       string `json:"completed_at"`
}

type CollectionFailedPayload struct {
	TransactionID     string `json:"transaction_id"`
	CheckoutRequestID string `json:"checkout_request_id"`
	UserID            string `json:"user_id"`
	ResultCode        int    `json:"result_code"`
	ResultDesc        string `json:"result_desc"`
	FailedAt          string `json:"failed_at"`
}

type RegistrationFeePaidPayload struct {
	UserID        string `json:"user_id"`
	TransactionID string `json:"transaction_id"`
	Amount        string `json:"amount"`
	PaidAt        string `json:"paid_at"`
}

type EscrowHeldPayload struct {
	EscrowID           string `json:"escrow_id"`
	PlacementID        string `json:"placement_id"`
	ClientID           string `json:"client_id"`
	ProviderID         string `json:"provider_id"`
	TotalAmount        string `json:"total_amount"`
	PlatformCommission string `json:"platform_commission"`
	SPPayout           string `json:"sp_payout"`
	HeldAt             string `json:"held_at"`
}

type EscrowReleasedPayload struct {
	EscrowID       string `json:"escrow_id"`
	PlacementID    string `json:"placement_id"`
	ProviderID     string `json:"provider_id"`
	Amount         string `json:"amount"`
	DisbursementID string `json:"disbursement_id"`
	ReleasedBy     string `json:"released_by"`
	ReleasedAt     string `json:"released_at"`
}

type EscrowRefundedPayload struct {
	EscrowID       string `json:"escrow_id"`
	PlacementID    string `json:"placement_id"`
	ClientID       string `json:"client_id"`
	Amount         string `json:"amount"`
	Reason         string `json:"reason"`
	DisbursementID string `json:"disbursement_id"`
	RefundedBy     string `json:"refunded_by"`
	RefundedAt     string `json:"refunded_at"`
}

type DisbursementOutcomePayload struct {
	DisbursementID    string `json:"disbursement_id"`
	Type              string `json:"type"`
	EscrowID          string `json:"escrow_id,omitempty"`
	ExternalRequestID string `json:"external_request_id"`
	Amount            string `json:"amount"`
	Status            string `json:"status"`
	ResultCode        int    `json:"result_code"`
	ResultDesc        string `json:"result_desc"`
	ReceiptNumber     string `json:"receipt_number,omitempty"`
	CompletedAt       string `json:"completed_at"`
}
