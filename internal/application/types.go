package application

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/maidsofhonourafrica/escrow-service/internal/domain"
)

type Config struct {
	ServiceName string
	// IdempotencyTTL bounds how long a processed callback is remembered by the cache gate.
	IdempotencyTTL time.Duration
	// IdempotencyLease is the TTL of the in-flight marker.
	IdempotencyLease   time.Duration
	Commission         domain.CommissionSchedule
	ReconcileAfter     time.Duration
	ReconcileBatchSize int
}

// Actor identifies who triggered an operation. SubjectID is recorded on ledger entries.
type Actor struct {
	SubjectID string
	Role      string
	RequestID string
}

// CallbackResult tells the webhook adapter how a delivery was handled. All three shapes
// are acknowledged to the gateway with 200.
type CallbackResult struct {
	Duplicate  bool
	Concurrent bool
	Status     string
}

type InitiateCollectionInput struct {
	UserID      string
	PhoneNumber string
	Amount      decimal.Decimal
	Purpose     domain.PaymentPurpose
	PlacementID string
	ProviderID  string
}

type CreateEscrowInput struct {
	PlacementID          string
	ClientID             string
	ProviderID           string
	Amount               decimal.Decimal
	PaymentTransactionID string
}

type ReconcileResult struct {
	CheckoutRequestID string
	// Pending is set when the gateway has no final verdict yet.
	Pending bool
	Applied bool
	Status  domain.TransactionStatus
}
