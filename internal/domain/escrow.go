package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type EscrowStatus string

const (
	EscrowStatusPending           EscrowStatus = "pending"
	EscrowStatusHeld              EscrowStatus = "held"
	EscrowStatusReleased          EscrowStatus = "released"
	EscrowStatusRefunded          EscrowStatus = "refunded"
	EscrowStatusPartiallyRefunded EscrowStatus = "partially_refunded"
)

// escrowTransitions lists the only allowed forward moves. Nothing leads back to held
// once money has left escrow.
var escrowTransitions = map[EscrowStatus][]EscrowStatus{
	EscrowStatusPending:           {EscrowStatusHeld},
	EscrowStatusHeld:              {EscrowStatusReleased, EscrowStatusRefunded, EscrowStatusPartiallyRefunded},
	EscrowStatusPartiallyRefunded: {EscrowStatusRefunded, EscrowStatusReleased},
}

func (s EscrowStatus) CanTransitionTo(next EscrowStatus) bool {
	for _, allowed := range escrowTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s EscrowStatus) IsTerminal() bool {
	return s == EscrowStatusReleased || s == EscrowStatusRefunded
}

type EscrowTransaction struct {
	EscrowID              string
	PlacementID           string
	ClientID              string
	ProviderID            string
	PaymentTransactionID  string
	TotalAmount           decimal.Decimal
	PlatformCommission    decimal.Decimal
	SPPayout              decimal.Decimal
	CommissionRate        decimal.Decimal
	Status                EscrowStatus
	HeldAt                *time.Time
	ReleasedAt            *time.Time
	RefundedAt            *time.Time
	ReleasedBy            string
	RefundedBy            string
	RefundReason          string
	RefundAmount          decimal.Decimal
	ReleaseDisbursementID string
	RefundDisbursementID  string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Balance is what the platform still holds for this escrow.
func (e EscrowTransaction) Balance() decimal.Decimal {
	switch e.Status {
	case EscrowStatusReleased:
		return e.TotalAmount.Sub(e.SPPayout)
	case EscrowStatusRefunded, EscrowStatusHeld, EscrowStatusPartiallyRefunded:
		return e.TotalAmount.Sub(e.RefundAmount)
	default:
		return decimal.Zero
	}
}

// CheckHeld is the status guard shared by release and refund.
func (e EscrowTransaction) CheckHeld(operation string) error {
	if e.Status != EscrowStatusHeld {
		return &EscrowStateError{EscrowID: e.EscrowID, Status: e.Status, Operation: operation}
	}
	return nil
}

type NewEscrowParams struct {
	EscrowID             string
	PlacementID          string
	ClientID             string
	ProviderID           string
	PaymentTransactionID string
	TotalAmount          decimal.Decimal
	CommissionRate       decimal.Decimal
	At                   time.Time
}

// NewHeldEscrow builds a held escrow and its opening ledger entry. Commission and payout are
// stored even though derivable so the rate in force at creation stays on record.
func NewHeldEscrow(p NewEscrowParams, entryID, actor string) (EscrowTransaction, LedgerEntry, error) {
	if p.EscrowID == "" || p.PlacementID == "" || p.ClientID == "" || p.ProviderID == "" || p.PaymentTransactionID == "" {
		return EscrowTransaction{}, LedgerEntry{}, ErrInvalidInput
	}
	if !p.TotalAmount.IsPositive() {
		return EscrowTransaction{}, LedgerEntry{}, ErrInvalidInput
	}
	commission, payout, err := SplitCommission(p.TotalAmount, p.CommissionRate)
	if err != nil {
		return EscrowTransaction{}, LedgerEntry{}, err
	}
	at := p.At.UTC()
	escrow := EscrowTransaction{
		EscrowID:             p.EscrowID,
		PlacementID:          p.PlacementID,
		ClientID:             p.ClientID,
		ProviderID:           p.ProviderID,
		PaymentTransactionID: p.PaymentTransactionID,
		TotalAmount:          p.TotalAmount,
		PlatformCommission:   commission,
		SPPayout:             payout,
		CommissionRate:       p.CommissionRate,
		Status:               EscrowStatusHeld,
		HeldAt:               &at,
		RefundAmount:         decimal.Zero,
		CreatedAt:            at,
		UpdatedAt:            at,
	}
	entry := LedgerEntry{
		EntryID:       entryID,
		EscrowID:      escrow.EscrowID,
		EventType:     LedgerEventHeld,
		Amount:        escrow.TotalAmount,
		BalanceBefore: decimal.Zero,
		BalanceAfter:  escrow.TotalAmount,
		Actor:         actor,
		Reason:        "payment collected",
		Metadata: map[string]any{
			"payment_transaction_id": escrow.PaymentTransactionID,
			"commission_rate":        escrow.CommissionRate.String(),
		},
		CreatedAt: at,
	}
	return escrow, entry, nil
}

type LedgerEventType string

const (
	LedgerEventCreated  LedgerEventType = "created"
	LedgerEventHeld     LedgerEventType = "held"
	LedgerEventReleased LedgerEventType = "released"
	LedgerEventRefunded LedgerEventType = "refunded"
	LedgerEventModified LedgerEventType = "modified"
)

// LedgerEntry is immutable once written.
type LedgerEntry struct {
	EntryID       string
	EscrowID      string
	EventType     LedgerEventType
	Amount        decimal.Decimal
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
	Actor         string
	Reason        string
	Metadata      map[string]any
	CreatedAt     time.Time
}

// ReplayBalance folds entries in creation order and returns the resulting balance.
// It fails when an entry's snapshot does not chain from the previous one.
func ReplayBalance(entries []LedgerEntry) (decimal.Decimal, error) {
	balance := decimal.Zero
	for _, e := range entries {
		if !e.BalanceBefore.Equal(balance) {
			return decimal.Zero, ErrConflict
		}
		switch e.EventType {
		case LedgerEventHeld, LedgerEventCreated:
			balance = balance.Add(e.Amount)
		case LedgerEventReleased, LedgerEventRefunded:
			balance = balance.Sub(e.Amount)
		}
		if !e.BalanceAfter.Equal(balance) {
			return decimal.Zero, ErrConflict
		}
	}
	return balance, nil
}
