package postgres

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/maidsofhonourafrica/escrow-service/internal/domain"
)

// userRepository reads the profile service's contact view. Only the registration fee
// flag is ever written here.
type userRepository struct {
	db *gorm.DB
}

func (r *userRepository) get(ctx context.Context, userID string) (userModel, error) {
	var rec userModel
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return userModel{}, domain.ErrNotFound
		}
		return userModel{}, err
	}
	return rec, nil
}

func (r *userRepository) PhoneNumber(ctx context.Context, userID string) (string, error) {
	rec, err := r.get(ctx, userID)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(rec.PhoneNumber) == "" {
		return "", domain.ErrNotFound
	}
	return rec.PhoneNumber, nil
}

// PayoutNumber falls back to the phone number when no separate payout line is set.
func (r *userRepository) PayoutNumber(ctx context.Context, userID string) (string, error) {
	rec, err := r.get(ctx, userID)
	if err != nil {
		return "", err
	}
	if number := strings.TrimSpace(rec.PayoutNumber); number != "" {
		return number, nil
	}
	if strings.TrimSpace(rec.PhoneNumber) == "" {
		return "", domain.ErrNotFound
	}
	return rec.PhoneNumber, nil
}
