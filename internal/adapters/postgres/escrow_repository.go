package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/maidsofhonourafrica/escrow-service/internal/domain"
	"github.com/maidsofhonourafrica/escrow-service/internal/ports"
)

var openEscrowStatuses = []string{string(domain.EscrowStatusPending), string(domain.EscrowStatusHeld)}

type escrowRepository struct {
	db *gorm.DB
}

func (r *escrowRepository) Create(ctx context.Context, escrow domain.EscrowTransaction, entry domain.LedgerEntry, events []ports.OutboxEvent) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		open, err := hasOpenEscrow(tx, escrow)
		if err != nil {
			return err
		}
		if open {
			return domain.ErrConflict
		}
		return insertEscrow(tx, escrow, &entry, events)
	})
}

func hasOpenEscrow(tx *gorm.DB, escrow domain.EscrowTransaction) (bool, error) {
	var count int64
	err := tx.Model(&escrowModel{}).
		Where("payment_transaction_id = ? OR (placement_id = ? AND status IN ?)",
			escrow.PaymentTransactionID, escrow.PlacementID, openEscrowStatuses).
		Count(&count).Error
	return count > 0, err
}

func insertEscrow(tx *gorm.DB, escrow domain.EscrowTransaction, entry *domain.LedgerEntry, events []ports.OutboxEvent) error {
	rec := toEscrowModel(escrow)
	if err := tx.Create(&rec).Error; err != nil {
		switch {
		case isUniqueViolation(err):
			return domain.ErrConflict
		case isForeignKeyViolation(err):
			return domain.ErrNotFound
		}
		return err
	}
	if entry != nil {
		if err := insertLedgerEntry(tx, *entry); err != nil {
			return err
		}
	}
	return insertOutbox(tx, events)
}

func insertLedgerEntry(tx *gorm.DB, entry domain.LedgerEntry) error {
	rec, err := toLedgerEntryModel(entry)
	if err != nil {
		return err
	}
	return tx.Create(&rec).Error
}

func (r *escrowRepository) GetByID(ctx context.Context, escrowID string) (domain.EscrowTransaction, error) {
	return getEscrow(r.db.WithContext(ctx), "escrow_id = ?", escrowID)
}

func (r *escrowRepository) GetByPaymentTransactionID(ctx context.Context, transactionID string) (domain.EscrowTransaction, error) {
	return getEscrow(r.db.WithContext(ctx), "payment_transaction_id = ?", transactionID)
}

func getEscrow(db *gorm.DB, query string, arg string) (domain.EscrowTransaction, error) {
	var rec escrowModel
	if err := db.Where(query, arg).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.EscrowTransaction{}, domain.ErrNotFound
		}
		return domain.EscrowTransaction{}, err
	}
	return toDomainEscrow(rec), nil
}

func (r *escrowRepository) ListEntries(ctx context.Context, escrowID string) ([]domain.LedgerEntry, error) {
	var rows []ledgerEntryModel
	if err := ledgerEntriesQuery(r.db.WithContext(ctx), escrowID).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.LedgerEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainLedgerEntry(row))
	}
	return out, nil
}

// ledgerEntriesQuery orders by insertion sequence after created_at; entries written in
// the same instant must still replay in commit order.
func ledgerEntriesQuery(db *gorm.DB, escrowID string) *gorm.DB {
	return db.Where("escrow_id = ?", escrowID).Order("created_at ASC").Order("seq ASC")
}

func (r *escrowRepository) Release(ctx context.Context, params ports.ReleaseParams) (domain.EscrowTransaction, error) {
	return r.settle(ctx, params.EscrowID, "release", params.Disbursement, params.Entry, params.Events, map[string]any{
		"status":                  string(domain.EscrowStatusReleased),
		"released_at":             params.At,
		"released_by":             params.Actor,
		"release_disbursement_id": params.Disbursement.DisbursementID,
		"updated_at":              params.At,
	})
}

func (r *escrowRepository) Refund(ctx context.Context, params ports.RefundParams) (domain.EscrowTransaction, error) {
	return r.settle(ctx, params.EscrowID, "refund", params.Disbursement, params.Entry, params.Events, map[string]any{
		"status":                 string(domain.EscrowStatusRefunded),
		"refunded_at":            params.At,
		"refunded_by":            params.Actor,
		"refund_reason":          params.Reason,
		"refund_amount":          params.Disbursement.Amount,
		"refund_disbursement_id": params.Disbursement.DisbursementID,
		"updated_at":             params.At,
	})
}

// settle moves a held escrow to its terminal state. status='held' in the WHERE clause
// is the lock: a second settlement updates zero rows and gets EscrowStateError.
func (r *escrowRepository) settle(ctx context.Context, escrowID, operation string, disb domain.Disbursement, entry domain.LedgerEntry, events []ports.OutboxEvent, updates map[string]any) (domain.EscrowTransaction, error) {
	var out domain.EscrowTransaction
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := settleHeld(tx, escrowID, updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			current, err := getEscrow(tx, "escrow_id = ?", escrowID)
			if err != nil {
				return err
			}
			return &domain.EscrowStateError{EscrowID: escrowID, Status: current.Status, Operation: operation}
		}

		rec := toDisbursementModel(disb)
		if err := tx.Create(&rec).Error; err != nil {
			if isUniqueViolation(err) {
				return domain.ErrConflict
			}
			return err
		}
		if err := insertLedgerEntry(tx, entry); err != nil {
			return err
		}
		if err := insertOutbox(tx, events); err != nil {
			return err
		}

		updated, err := getEscrow(tx, "escrow_id = ?", escrowID)
		if err != nil {
			return err
		}
		out = updated
		return nil
	})
	if err != nil {
		return domain.EscrowTransaction{}, err
	}
	return out, nil
}

func settleHeld(tx *gorm.DB, escrowID string, updates map[string]any) *gorm.DB {
	return tx.Model(&escrowModel{}).
		Where("escrow_id = ?", escrowID).
		Where("status = ?", string(domain.EscrowStatusHeld)).
		Updates(updates)
}
