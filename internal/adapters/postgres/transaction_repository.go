package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/maidsofhonourafrica/escrow-service/internal/domain"
	"github.com/maidsofhonourafrica/escrow-service/internal/ports"
)

type transactionRepository struct {
	db *gorm.DB
}

func (r *transactionRepository) Create(ctx context.Context, txn domain.Transaction) error {
	rec := toTransactionModel(txn)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *transactionRepository) GetByID(ctx context.Context, transactionID string) (domain.Transaction, error) {
	return findTransaction(r.db.WithContext(ctx), "transaction_id = ?", transactionID)
}

func (r *transactionRepository) GetByCheckoutID(ctx context.Context, checkoutRequestID string) (domain.Transaction, error) {
	return getTransaction(r.db.WithContext(ctx), checkoutRequestID)
}

func getTransaction(db *gorm.DB, checkoutRequestID string) (domain.Transaction, error) {
	return findTransaction(db, "checkout_request_id = ?", checkoutRequestID)
}

func findTransaction(db *gorm.DB, query, arg string) (domain.Transaction, error) {
	var rec transactionModel
	if err := db.Where(query, arg).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Transaction{}, domain.ErrNotFound
		}
		return domain.Transaction{}, err
	}
	return toDomainTransaction(rec), nil
}

func (r *transactionRepository) MarkProcessing(ctx context.Context, checkoutRequestID string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&transactionModel{}).
		Where("checkout_request_id = ?", checkoutRequestID).
		Where("status = ?", string(domain.TransactionStatusPending)).
		Updates(map[string]any{
			"status":     string(domain.TransactionStatusProcessing),
			"updated_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.GetByCheckoutID(ctx, checkoutRequestID); err != nil {
			return err
		}
		return domain.ErrConflict
	}
	return nil
}

// ApplyOutcome is the persisted callback gate: the update only matches while
// callback_received_at is null.
func (r *transactionRepository) ApplyOutcome(ctx context.Context, params ports.ApplyCollectionParams) (ports.ApplyCollectionResult, error) {
	var result ports.ApplyCollectionResult
	outcome := params.Outcome
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := applyCollectionCallback(tx, outcome)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if _, err := getTransaction(tx, outcome.CheckoutRequestID); err != nil {
				return err
			}
			return domain.ErrAlreadyProcessed
		}

		txn, err := getTransaction(tx, outcome.CheckoutRequestID)
		if err != nil {
			return err
		}
		result.Transaction = txn

		if params.MarkRegistrationFee {
			if err := tx.Model(&userModel{}).
				Where("user_id = ?", txn.UserID).
				Updates(map[string]any{
					"registration_fee_paid": true,
					"updated_at":            outcome.ReceivedAt,
				}).Error; err != nil {
				return err
			}
		}

		if params.Escrow != nil {
			created, err := createEscrowIfOpen(tx, *params.Escrow, params.HeldEntry, params.EscrowEvents)
			if err != nil {
				return err
			}
			result.EscrowSkipped = !created
		}
		return insertOutbox(tx, params.Events)
	})
	if err != nil {
		return ports.ApplyCollectionResult{}, err
	}
	return result, nil
}

func applyCollectionCallback(tx *gorm.DB, outcome domain.CollectionOutcome) *gorm.DB {
	code := outcome.ResultCode
	return tx.Model(&transactionModel{}).
		Where("checkout_request_id = ?", outcome.CheckoutRequestID).
		Where("callback_received_at IS NULL").
		Updates(map[string]any{
			"status":               string(outcome.Status()),
			"result_code":          code,
			"result_desc":          outcome.ResultDesc,
			"receipt_number":       outcome.ReceiptNumber,
			"raw_callback":         jsonColumn(outcome.RawPayload),
			"callback_received_at": outcome.ReceivedAt,
			"updated_at":           outcome.ReceivedAt,
		})
}

// createEscrowIfOpen inserts the escrow unless the placement already has an open one.
// The savepoint keeps a lost race on the partial unique index from aborting the outer
// transaction.
func createEscrowIfOpen(tx *gorm.DB, escrow domain.EscrowTransaction, entry *domain.LedgerEntry, events []ports.OutboxEvent) (bool, error) {
	open, err := hasOpenEscrow(tx, escrow)
	if err != nil || open {
		return false, err
	}
	if err := tx.SavePoint("open_escrow").Error; err != nil {
		return false, err
	}
	if err := insertEscrow(tx, escrow, entry, events); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return false, tx.RollbackTo("open_escrow").Error
		}
		return false, err
	}
	return true, nil
}

func (r *transactionRepository) ListStale(ctx context.Context, olderThan time.Time, limit int) ([]domain.Transaction, error) {
	var rows []transactionModel
	q := r.db.WithContext(ctx).
		Where("callback_received_at IS NULL").
		Where("status IN ?", []string{string(domain.TransactionStatusPending), string(domain.TransactionStatusProcessing)}).
		Where("created_at <= ?", olderThan).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Transaction, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainTransaction(row))
	}
	return out, nil
}
