package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "pending"
	TransactionStatusProcessing TransactionStatus = "processing"
	TransactionStatusCompleted  TransactionStatus = "completed"
	TransactionStatusFailed     TransactionStatus = "failed"
	TransactionStatusCancelled  TransactionStatus = "cancelled"
)

func (s TransactionStatus) IsFinal() bool {
	return s == TransactionStatusCompleted || s == TransactionStatusFailed || s == TransactionStatusCancelled
}

type PaymentPurpose string

const (
	PurposeRegistrationFee  PaymentPurpose = "registration_fee"
	PurposePlacementPayment PaymentPurpose = "placement_payment"
)

func (p PaymentPurpose) Valid() bool {
	return p == PurposeRegistrationFee || p == PurposePlacementPayment
}

// ResultCodeSuccess is the gateway's only success code. Anything else is a terminal failure.
const ResultCodeSuccess = 0

// Transaction is one C2B collection attempt. CallbackReceivedAt stays nil until the first
// outcome is applied; that nil-ness is the persisted idempotency gate.
type Transaction struct {
	TransactionID      string
	UserID             string
	Purpose            PaymentPurpose
	PlacementID        string
	ProviderID         string
	CheckoutRequestID  string
	MerchantRequestID  string
	Amount             decimal.Decimal
	PhoneNumber        string
	Status             TransactionStatus
	ResultCode         *int
	ResultDesc         string
	ReceiptNumber      string
	RawCallback        []byte
	CallbackReceivedAt *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (t Transaction) CallbackApplied() bool {
	return t.CallbackReceivedAt != nil
}

// CollectionOutcome is a gateway verdict on a collection, from a callback or a status query.
type CollectionOutcome struct {
	CheckoutRequestID string
	MerchantRequestID string
	ResultCode        int
	ResultDesc        string
	ReceiptNumber     string
	Amount            decimal.Decimal
	PhoneNumber       string
	Source            string
	RawPayload        []byte
	ReceivedAt        time.Time
}

func (o CollectionOutcome) Status() TransactionStatus {
	if o.ResultCode == ResultCodeSuccess {
		return TransactionStatusCompleted
	}
	return TransactionStatusFailed
}
