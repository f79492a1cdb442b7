package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/maidsofhonourafrica/escrow-service/internal/domain"
)

// OutboxEvent is written in the same database transaction as the change it announces.
type OutboxEvent struct {
	EventID      uuid.UUID
	EventType    string
	PartitionKey string
	Payload      []byte
	OccurredAt   time.Time
}

// OutboxRecord is durable outbox state including retry metadata.
type OutboxRecord struct {
	OutboxID       uuid.UUID
	EventType      string
	PartitionKey   string
	Payload        []byte
	RetryCount     int
	LastError      *string
	CreatedAt      time.Time
	PublishedAt    *time.Time
	LastErrorAt    *time.Time
	ClaimToken     *string
	ClaimUntil     *time.Time
	DeadLetteredAt *time.Time
}

type OutboxRepository interface {
	ClaimUnpublished(ctx context.Context, limit int, claimToken string, claimUntil time.Time) ([]OutboxRecord, error)
	MarkPublished(ctx context.Context, outboxID uuid.UUID, claimToken string, at time.Time) error
	MarkFailed(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
	MarkDeadLettered(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
}

// ApplyCollectionParams is one atomic unit: the outcome, the optional registration-fee
// cascade and the optional escrow opened by a placement payment.
type ApplyCollectionParams struct {
	Outcome             domain.CollectionOutcome
	MarkRegistrationFee bool
	Escrow              *domain.EscrowTransaction
	HeldEntry           *domain.LedgerEntry
	Events              []OutboxEvent
	// EscrowEvents are written only when the escrow row is.
	EscrowEvents []OutboxEvent
}

type ApplyCollectionResult struct {
	Transaction domain.Transaction
	// EscrowSkipped is set when the placement already had an open escrow; the outcome
	// itself is still applied.
	EscrowSkipped bool
}

// TransactionRepository persists inbound collection attempts.
type TransactionRepository interface {
	Create(ctx context.Context, txn domain.Transaction) error
	GetByID(ctx context.Context, transactionID string) (domain.Transaction, error)
	GetByCheckoutID(ctx context.Context, checkoutRequestID string) (domain.Transaction, error)
	MarkProcessing(ctx context.Context, checkoutRequestID string, at time.Time) error
	// ApplyOutcome returns domain.ErrAlreadyProcessed when callback_received_at was already set.
	ApplyOutcome(ctx context.Context, params ApplyCollectionParams) (ApplyCollectionResult, error)
	ListStale(ctx context.Context, olderThan time.Time, limit int) ([]domain.Transaction, error)
}

type ReleaseParams struct {
	EscrowID     string
	Actor        string
	Disbursement domain.Disbursement
	Entry        domain.LedgerEntry
	Events       []OutboxEvent
	At           time.Time
}

type RefundParams struct {
	EscrowID     string
	Actor        string
	Reason       string
	Disbursement domain.Disbursement
	Entry        domain.LedgerEntry
	Events       []OutboxEvent
	At           time.Time
}

// EscrowRepository owns escrow transactions and their ledger entries.
// Release and Refund flip status with a conditional update guarded on status='held' and
// return a *domain.EscrowStateError when no row matched.
type EscrowRepository interface {
	Create(ctx context.Context, escrow domain.EscrowTransaction, entry domain.LedgerEntry, events []OutboxEvent) error
	GetByID(ctx context.Context, escrowID string) (domain.EscrowTransaction, error)
	GetByPaymentTransactionID(ctx context.Context, transactionID string) (domain.EscrowTransaction, error)
	ListEntries(ctx context.Context, escrowID string) ([]domain.LedgerEntry, error)
	Release(ctx context.Context, params ReleaseParams) (domain.EscrowTransaction, error)
	Refund(ctx context.Context, params RefundParams) (domain.EscrowTransaction, error)
}

type ApplyDisbursementParams struct {
	Outcome domain.DisbursementOutcome
	Events  []OutboxEvent
}

type DisbursementRepository interface {
	GetByID(ctx context.Context, disbursementID string) (domain.Disbursement, error)
	GetByExternalRequestID(ctx context.Context, externalRequestID string) (domain.Disbursement, error)
	// ApplyOutcome returns domain.ErrAlreadyProcessed when the disbursement already left pending/processing.
	ApplyOutcome(ctx context.Context, params ApplyDisbursementParams) (domain.Disbursement, error)
}

// UserDirectory is the profile service's view of payer and payee contact numbers.
type UserDirectory interface {
	PhoneNumber(ctx context.Context, userID string) (string, error)
	PayoutNumber(ctx context.Context, userID string) (string, error)
}
