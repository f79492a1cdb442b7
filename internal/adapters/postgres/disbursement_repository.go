package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/maidsofhonourafrica/escrow-service/internal/domain"
	"github.com/maidsofhonourafrica/escrow-service/internal/ports"
)

var terminalDisbursementStatuses = []string{string(domain.DisbursementStatusCompleted), string(domain.DisbursementStatusFailed)}

type disbursementRepository struct {
	db *gorm.DB
}

func (r *disbursementRepository) GetByID(ctx context.Context, disbursementID string) (domain.Disbursement, error) {
	return getDisbursement(r.db.WithContext(ctx), "disbursement_id = ?", disbursementID)
}

func (r *disbursementRepository) GetByExternalRequestID(ctx context.Context, externalRequestID string) (domain.Disbursement, error) {
	return getDisbursement(r.db.WithContext(ctx), "external_request_id = ?", externalRequestID)
}

func getDisbursement(db *gorm.DB, query, arg string) (domain.Disbursement, error) {
	var rec disbursementModel
	if err := db.Where(query, arg).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Disbursement{}, domain.ErrNotFound
		}
		return domain.Disbursement{}, err
	}
	return toDomainDisbursement(rec), nil
}

// ApplyOutcome only matches a disbursement that has neither a callback timestamp nor a
// terminal status.
func (r *disbursementRepository) ApplyOutcome(ctx context.Context, params ports.ApplyDisbursementParams) (domain.Disbursement, error) {
	var out domain.Disbursement
	outcome := params.Outcome
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := applyDisbursementCallback(tx, outcome)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if _, err := getDisbursement(tx, "external_request_id = ?", outcome.ExternalRequestID); err != nil {
				return err
			}
			return domain.ErrAlreadyProcessed
		}
		if err := insertOutbox(tx, params.Events); err != nil {
			return err
		}
		updated, err := getDisbursement(tx, "external_request_id = ?", outcome.ExternalRequestID)
		if err != nil {
			return err
		}
		out = updated
		return nil
	})
	if err != nil {
		return domain.Disbursement{}, err
	}
	return out, nil
}

func applyDisbursementCallback(tx *gorm.DB, outcome domain.DisbursementOutcome) *gorm.DB {
	code := outcome.ResultCode
	return tx.Model(&disbursementModel{}).
		Where("external_request_id = ?", outcome.ExternalRequestID).
		Where("callback_received_at IS NULL").
		Where("status NOT IN ?", terminalDisbursementStatuses).
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
