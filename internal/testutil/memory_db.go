// Package testutil holds in-memory stand-ins for the service's ports. Each MemoryDB
// method that spans several records runs under one mutex, mirroring a database transaction.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/maidsofhonourafrica/escrow-service/internal/domain"
	"github.com/maidsofhonourafrica/escrow-service/internal/ports"
)

type MemoryDB struct {
	mu                  sync.Mutex
	transactions        map[string]domain.Transaction
	escrows             map[string]domain.EscrowTransaction
	entries             []domain.LedgerEntry
	disbursements       map[string]domain.Disbursement
	outbox              []ports.OutboxRecord
	registrationFeePaid map[string]bool
	phones              map[string]string
	payoutNumbers       map[string]string
	writes              int

	// FailApply, when set, makes the next ApplyOutcome on transactions fail without writing.
	FailApply error
}

func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		transactions:        map[string]domain.Transaction{},
		escrows:             map[string]domain.EscrowTransaction{},
		disbursements:       map[string]domain.Disbursement{},
		registrationFeePaid: map[string]bool{},
		phones:              map[string]string{},
		payoutNumbers:       map[string]string{},
	}
}

func (db *MemoryDB) Transactions() ports.TransactionRepository { return &memTransactions{db: db} }
func (db *MemoryDB) Escrows() ports.EscrowRepository { return &memEscrows{db: db} }
func (db *MemoryDB) Disbursements() ports.DisbursementRepository { return &memDisbursements{db: db} }
func (db *MemoryDB) Outbox() ports.OutboxRepository { return &memOutbox{db: db} }
func (db *MemoryDB) Users() ports.UserDirectory { return &memUsers{db: db} }

// AddUser registers a collaborator profile.
func (db *MemoryDB) AddUser(userID, phone, payoutNumber string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.phones[userID] = phone
	db.payoutNumbers[userID] = payoutNumber
}

// Writes counts committed atomic units.
func (db *MemoryDB) Writes() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.writes
}

func (db *MemoryDB) RegistrationFeePaid(userID string) bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.registrationFeePaid[userID]
}

func (db *MemoryDB) EscrowsByPlacement(placementID string) []domain.EscrowTransaction {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]domain.EscrowTransaction, 0)
	for _, e := range db.escrows {
		if e.PlacementID == placementID {
			out = append(out, e)
		}
	}
	return out
}

func (db *MemoryDB) AllEntries() []domain.LedgerEntry {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]domain.LedgerEntry(nil), db.entries...)
}

func (db *MemoryDB) AllDisbursements() []domain.Disbursement {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]domain.Disbursement, 0, len(db.disbursements))
	for _, d := range db.disbursements {
		out = append(out, d)
	}
	return out
}

// OutboxEventTypes lists written outbox events in insertion order.
func (db *MemoryDB) OutboxEventTypes() []string {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]string, 0, len(db.outbox))
	for _, rec := range db.outbox {
		out = append(out, rec.EventType)
	}
	return out
}

func (db *MemoryDB) OutboxRecords() []ports.OutboxRecord {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]ports.OutboxRecord(nil), db.outbox...)
}

// SeedOutbox writes events as if a repository operation had committed them.
func (db *MemoryDB) SeedOutbox(events ...ports.OutboxEvent) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.appendOutbox(events)
}

func (db *MemoryDB) appendOutbox(events []ports.OutboxEvent) {
	for _, evt := range events {
		db.outbox = append(db.outbox, ports.OutboxRecord{
			OutboxID:     evt.EventID,
			EventType:    evt.EventType,
			PartitionKey: evt.PartitionKey,
			Payload:      evt.Payload,
			CreatedAt:    evt.OccurredAt,
		})
	}
}

func (db *MemoryDB) transactionByID(transactionID string) (domain.Transaction, bool) {
	for _, txn := range db.transactions {
		if txn.TransactionID == transactionID {
			return txn, true
		}
	}
	return domain.Transaction{}, false
}

func (db *MemoryDB) openEscrowConflict(escrow domain.EscrowTransaction) bool {
	for _, e := range db.escrows {
		if e.PaymentTransactionID == escrow.PaymentTransactionID {
			return true
		}
		if e.PlacementID == escrow.PlacementID &&
			(e.Status == domain.EscrowStatusHeld || e.Status == domain.EscrowStatusPending) {
			return true
		}
	}
	return false
}

type memTransactions struct{ db *MemoryDB }

func (r *memTransactions) Create(_ context.Context, txn domain.Transaction) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, exists := r.db.transactions[txn.CheckoutRequestID]; exists {
		return domain.ErrConflict
	}
	r.db.transactions[txn.CheckoutRequestID] = txn
	r.db.writes++
	return nil
}

func (r *memTransactions) GetByID(_ context.Context, transactionID string) (domain.Transaction, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if txn, ok := r.db.transactionByID(transactionID); ok {
		return txn, nil
	}
	return domain.Transaction{}, domain.ErrNotFound
}

func (r *memTransactions) GetByCheckoutID(_ context.Context, checkoutRequestID string) (domain.Transaction, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	txn, ok := r.db.transactions[checkoutRequestID]
	if !ok {
		return domain.Transaction{}, domain.ErrNotFound
	}
	return txn, nil
}

func (r *memTransactions) MarkProcessing(_ context.Context, checkoutRequestID string, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	txn, ok := r.db.transactions[checkoutRequestID]
	if !ok {
		return domain.ErrNotFound
	}
	if txn.Status != domain.TransactionStatusPending {
		return domain.ErrConflict
	}
	txn.Status = domain.TransactionStatusProcessing
	txn.UpdatedAt = at
	r.db.transactions[checkoutRequestID] = txn
	r.db.writes++
	return nil
}

func (r *memTransactions) ApplyOutcome(_ context.Context, params ports.ApplyCollectionParams) (ports.ApplyCollectionResult, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	txn, ok := r.db.transactions[params.Outcome.CheckoutRequestID]
	if !ok {
		return ports.ApplyCollectionResult{}, domain.ErrNotFound
	}
	if txn.CallbackReceivedAt != nil {
		return ports.ApplyCollectionResult{}, domain.ErrAlreadyProcessed
	}
	if r.db.FailApply != nil {
		err := r.db.FailApply
		r.db.FailApply = nil
		return ports.ApplyCollectionResult{}, err
	}

	at := params.Outcome.ReceivedAt
	code := params.Outcome.ResultCode
	txn.Status = params.Outcome.Status()
	txn.ResultCode = &code
	txn.ResultDesc = params.Outcome.ResultDesc
	txn.ReceiptNumber = params.Outcome.ReceiptNumber
	txn.RawCallback = params.Outcome.RawPayload
	txn.CallbackReceivedAt = &at
	txn.UpdatedAt = at
	r.db.transactions[txn.CheckoutRequestID] = txn

	if params.MarkRegistrationFee {
		r.db.registrationFeePaid[txn.UserID] = true
	}
	result := ports.ApplyCollectionResult{Transaction: txn}
	if params.Escrow != nil {
		if r.db.openEscrowConflict(*params.Escrow) {
			result.EscrowSkipped = true
		} else {
			r.db.escrows[params.Escrow.EscrowID] = *params.Escrow
			if params.HeldEntry != nil {
				r.db.entries = append(r.db.entries, *params.HeldEntry)
			}
			r.db.appendOutbox(params.EscrowEvents)
		}
	}
	r.db.appendOutbox(params.Events)
	r.db.writes++
	return result, nil
}

func (r *memTransactions) ListStale(_ context.Context, olderThan time.Time, limit int) ([]domain.Transaction, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := make([]domain.Transaction, 0)
	for _, txn := range r.db.transactions {
		if txn.CallbackReceivedAt != nil || txn.CreatedAt.After(olderThan) {
			continue
		}
		if txn.Status == domain.TransactionStatusPending || txn.Status == domain.TransactionStatusProcessing {
			out = append(out, txn)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memEscrows struct{ db *MemoryDB }

func (r *memEscrows) Create(_ context.Context, escrow domain.EscrowTransaction, entry domain.LedgerEntry, events []ports.OutboxEvent) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	// payment_transaction_id is a foreign key in the real schema.
	if _, ok := r.db.transactionByID(escrow.PaymentTransactionID); !ok {
		return domain.ErrNotFound
	}
	if r.db.openEscrowConflict(escrow) {
		return domain.ErrConflict
	}
	r.db.escrows[escrow.EscrowID] = escrow
	r.db.entries = append(r.db.entries, entry)
	r.db.appendOutbox(events)
	r.db.writes++
	return nil
}

func (r *memEscrows) GetByID(_ context.Context, escrowID string) (domain.EscrowTransaction, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	escrow, ok := r.db.escrows[escrowID]
	if !ok {
		return domain.EscrowTransaction{}, domain.ErrNotFound
	}
	return escrow, nil
}

func (r *memEscrows) GetByPaymentTransactionID(_ context.Context, transactionID string) (domain.EscrowTransaction, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, escrow := range r.db.escrows {
		if escrow.PaymentTransactionID == transactionID {
			return escrow, nil
		}
	}
	return domain.EscrowTransaction{}, domain.ErrNotFound
}

func (r *memEscrows) ListEntries(_ context.Context, escrowID string) ([]domain.LedgerEntry, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := make([]domain.LedgerEntry, 0)
	for _, e := range r.db.entries {
		if e.EscrowID == escrowID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memEscrows) Release(_ context.Context, params ports.ReleaseParams) (domain.EscrowTransaction, error) {
	return r.settle(params.EscrowID, "release", params.Disbursement, params.Entry, params.Events, func(e *domain.EscrowTransaction) {
		at := params.At
		e.Status = domain.EscrowStatusReleased
		e.ReleasedAt = &at
		e.ReleasedBy = params.Actor
		e.ReleaseDisbursementID = params.Disbursement.DisbursementID
		e.UpdatedAt = at
	})
}

func (r *memEscrows) Refund(_ context.Context, params ports.RefundParams) (domain.EscrowTransaction, error) {
	return r.settle(params.EscrowID, "refund", params.Disbursement, params.Entry, params.Events, func(e *domain.EscrowTransaction) {
		at := params.At
		e.Status = domain.EscrowStatusRefunded
		e.RefundedAt = &at
		e.RefundedBy = params.Actor
		e.RefundReason = params.Reason
		e.RefundAmount = params.Disbursement.Amount
		e.RefundDisbursementID = params.Disbursement.DisbursementID
		e.UpdatedAt = at
	})
}

func (r *memEscrows) settle(escrowID, operation string, disb domain.Disbursement, entry domain.LedgerEntry, events []ports.OutboxEvent, apply func(*domain.EscrowTransaction)) (domain.EscrowTransaction, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	escrow, ok := r.db.escrows[escrowID]
	if !ok {
		return domain.EscrowTransaction{}, domain.ErrNotFound
	}
	if escrow.Status != domain.EscrowStatusHeld {
		return domain.EscrowTransaction{}, &domain.EscrowStateError{EscrowID: escrowID, Status: escrow.Status, Operation: operation}
	}
	for _, d := range r.db.disbursements {
		if d.ExternalRequestID == disb.ExternalRequestID {
			return domain.EscrowTransaction{}, domain.ErrConflict
		}
	}
	apply(&escrow)
	r.db.escrows[escrowID] = escrow
	r.db.disbursements[disb.DisbursementID] = disb
	r.db.entries = append(r.db.entries, entry)
	r.db.appendOutbox(events)
	r.db.writes++
	return escrow, nil
}

type memDisbursements struct{ db *MemoryDB }

func (r *memDisbursements) GetByID(_ context.Context, disbursementID string) (domain.Disbursement, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	d, ok := r.db.disbursements[disbursementID]
	if !ok {
		return domain.Disbursement{}, domain.ErrNotFound
	}
	return d, nil
}

func (r *memDisbursements) GetByExternalRequestID(_ context.Context, externalRequestID string) (domain.Disbursement, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, d := range r.db.disbursements {
		if d.ExternalRequestID == externalRequestID {
			return d, nil
		}
	}
	return domain.Disbursement{}, domain.ErrNotFound
}

func (r *memDisbursements) ApplyOutcome(_ context.Context, params ports.ApplyDisbursementParams) (domain.Disbursement, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for id, d := range r.db.disbursements {
		if d.ExternalRequestID != params.Outcome.ExternalRequestID {
			continue
		}
		if d.CallbackApplied() {
			return domain.Disbursement{}, domain.ErrAlreadyProcessed
		}
		at := params.Outcome.ReceivedAt
		code := params.Outcome.ResultCode
		d.Status = params.Outcome.Status()
		d.ResultCode = &code
		d.ResultDesc = params.Outcome.ResultDesc
		d.ReceiptNumber = params.Outcome.ReceiptNumber
		d.RawCallback = params.Outcome.RawPayload
		d.CallbackReceivedAt = &at
		d.UpdatedAt = at
		r.db.disbursements[id] = d
		r.db.appendOutbox(params.Events)
		r.db.writes++
		return d, nil
	}
	return domain.Disbursement{}, domain.ErrNotFound
}

type memOutbox struct{ db *MemoryDB }

func (r *memOutbox) ClaimUnpublished(_ context.Context, limit int, claimToken string, claimUntil time.Time) ([]ports.OutboxRecord, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	now := time.Now().UTC()
	out := make([]ports.OutboxRecord, 0)
	for i := range r.db.outbox {
		rec := &r.db.outbox[i]
		if len(out) >= limit {
			break
		}
		if rec.PublishedAt != nil || rec.DeadLetteredAt != nil {
			continue
		}
		if rec.ClaimUntil != nil && rec.ClaimUntil.After(now) {
			continue
		}
		token := claimToken
		until := claimUntil
		rec.ClaimToken = &token
		rec.ClaimUntil = &until
		out = append(out, *rec)
	}
	return out, nil
}

func (r *memOutbox) MarkPublished(_ context.Context, outboxID uuid.UUID, claimToken string, at time.Time) error {
	return r.update(outboxID, claimToken, func(rec *ports.OutboxRecord) {
		rec.PublishedAt = &at
	})
}

func (r *memOutbox) MarkFailed(_ context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error {
	return r.update(outboxID, claimToken, func(rec *ports.OutboxRecord) {
		rec.RetryCount++
		rec.LastError = &errMsg
		rec.LastErrorAt = &at
	})
}

func (r *memOutbox) MarkDeadLettered(_ context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error {
	return r.update(outboxID, claimToken, func(rec *ports.OutboxRecord) {
		rec.RetryCount++
		rec.LastError = &errMsg
		rec.LastErrorAt = &at
		rec.DeadLetteredAt = &at
	})
}

func (r *memOutbox) update(outboxID uuid.UUID, claimToken string, apply func(*ports.OutboxRecord)) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for i := range r.db.outbox {
		rec := &r.db.outbox[i]
		if rec.OutboxID != outboxID || rec.ClaimToken == nil || *rec.ClaimToken != claimToken {
			continue
		}
		apply(rec)
		rec.ClaimToken = nil
		rec.ClaimUntil = nil
		return nil
	}
	return nil
}

type memUsers struct{ db *MemoryDB }

func (r *memUsers) PhoneNumber(_ context.Context, userID string) (string, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	phone, ok := r.db.phones[userID]
	if !ok || phone == "" {
		return "", domain.ErrNotFound
	}
	return phone, nil
}

func (r *memUsers) PayoutNumber(_ context.Context, userID string) (string, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if number := r.db.payoutNumbers[userID]; number != "" {
		return number, nil
	}
	if phone := r.db.phones[userID]; phone != "" {
		return phone, nil
	}
	return "", domain.ErrNotFound
}
