package repository

import (
	"context"
	"errors"
	"time"

	"github.com/clinickit/clinic-auth-api/internal/domain"
	"github.com/clinickit/clinic-auth-api/internal/observability"

	"gorm.io/gorm"
)

var ErrResetTokenNotFound = errors.New("reset token not found")

type ResetTokenRepository interface {
	Create(t *domain.ResetToken) error
	ConsumeIfValid(tokenHash string, now time.Time) (string, error)
	CleanupExpired(now time.Time) (int64, error)
}

type GormResetTokenRepository struct{ db *gorm.DB }

func NewResetTokenRepository(db *gorm.DB) ResetTokenRepository {
	return &GormResetTokenRepository{db: db}
}

func (r *GormResetTokenRepository) Create(t *domain.ResetToken) error {
	err := r.db.Create(t).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "reset_token", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "reset_token", "create", "success")
	return nil
}

// ConsumeIfValid atomically claims a reset token, returning the owning user
// id. The conditional delete is the arbiter: of N concurrent calls with the
// same hash, at most one sees RowsAffected == 1 and wins; the rest get
// ErrResetTokenNotFound.
func (r *GormResetTokenRepository) ConsumeIfValid(tokenHash string, now time.Time) (string, error) {
	var userID string
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var t domain.ResetToken
		if err := tx.Where("token_hash = ? AND expires_at > ?", tokenHash, now).First(&t).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrResetTokenNotFound
			}
			return err
		}
		res := tx.Where("id = ? AND expires_at > ?", t.ID, now).Delete(&domain.ResetToken{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrResetTokenNotFound
		}
		userID = t.UserID
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrResetTokenNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "reset_token", "consume", "not_found")
		} else {
			observability.RecordRepositoryOperation(context.Background(), "reset_token", "consume", "error")
		}
		return "", err
	}
	observability.RecordRepositoryOperation(context.Background(), "reset_token", "consume", "success")
	return userID, nil
}

func (r *GormResetTokenRepository) CleanupExpired(now time.Time) (int64, error) {
	res := r.db.Where("expires_at <= ?", now).Delete(&domain.ResetToken{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "reset_token", "cleanup_expired", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "reset_token", "cleanup_expired", "success")
	return res.RowsAffected, nil
}
