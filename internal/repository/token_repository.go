package repository

import (
	"context"
	"errors"
	"time"

	"github.com/clinickit/clinic-auth-api/internal/domain"
	"github.com/clinickit/clinic-auth-api/internal/observability"

	"gorm.io/gorm"
)

var ErrRefreshTokenNotFound = errors.New("refresh token not found")

const (
	RevokeReasonLogout        = "logout"
	RevokeReasonRotated       = "rotated"
	RevokeReasonPasswordReset = "password_reset"
)

type RefreshTokenRepository interface {
	Create(t *domain.RefreshToken) error
	FindValidByJTIAndHash(jti, tokenHash string, now time.Time) (*domain.RefreshToken, error)
	Rotate(oldJTI string, now time.Time, newToken *domain.RefreshToken) error
	Revoke(jti, reason string) (bool, error)
	RevokeAllForUser(userID, reason string) (int64, error)
	ListActiveByUser(userID string, now time.Time) ([]domain.RefreshToken, error)
	CleanupExpired(now time.Time) (int64, error)
}

type GormRefreshTokenRepository struct{ db *gorm.DB }

func NewRefreshTokenRepository(db *gorm.DB) RefreshTokenRepository {
	return &GormRefreshTokenRepository{db: db}
}

func (r *GormRefreshTokenRepository) Create(t *domain.RefreshToken) error {
	err := r.db.Create(t).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "refresh_token", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "refresh_token", "create", "success")
	return nil
}

// FindValidByJTIAndHash matches on both jti and token hash: a leaked jti
// alone cannot locate a usable record.
func (r *GormRefreshTokenRepository) FindValidByJTIAndHash(jti, tokenHash string, now time.Time) (*domain.RefreshToken, error) {
	var t domain.RefreshToken
	err := r.db.Where("jti = ? AND token_hash = ? AND revoked_at IS NULL AND expires_at > ?", jti, tokenHash, now).
		First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "refresh_token", "find_valid", "not_found")
			return nil, ErrRefreshTokenNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "refresh_token", "find_valid", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "refresh_token", "find_valid", "success")
	return &t, nil
}

// Rotate revokes the old record and inserts its successor in one
// transaction. The conditional update is the arbiter: of N concurrent
// rotations of the same jti exactly one sees RowsAffected == 1, so a stolen
// token replays at most once.
func (r *GormRefreshTokenRepository) Rotate(oldJTI string, now time.Time, newToken *domain.RefreshToken) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.RefreshToken{}).
			Where("jti = ? AND revoked_at IS NULL AND expires_at > ?", oldJTI, now).
			Updates(map[string]any{"revoked_at": now.UTC(), "revoked_reason": RevokeReasonRotated})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrRefreshTokenNotFound
		}
		return tx.Create(newToken).Error
	})
	if err != nil {
		if errors.Is(err, ErrRefreshTokenNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "refresh_token", "rotate", "not_found")
		} else {
			observability.RecordRepositoryOperation(context.Background(), "refresh_token", "rotate", "error")
		}
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "refresh_token", "rotate", "success")
	return nil
}

// Revoke is idempotent; it reports whether a record actually changed.
func (r *GormRefreshTokenRepository) Revoke(jti, reason string) (bool, error) {
	now := time.Now().UTC()
	res := r.db.Model(&domain.RefreshToken{}).
		Where("jti = ? AND revoked_at IS NULL", jti).
		Updates(map[string]any{"revoked_at": now, "revoked_reason": reason})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "refresh_token", "revoke", "error")
		return false, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "refresh_token", "revoke", "success")
	return res.RowsAffected > 0, nil
}

func (r *GormRefreshTokenRepository) RevokeAllForUser(userID, reason string) (int64, error) {
	now := time.Now().UTC()
	res := r.db.Model(&domain.RefreshToken{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Updates(map[string]any{"revoked_at": now, "revoked_reason": reason})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "refresh_token", "revoke_all_for_user", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "refresh_token", "revoke_all_for_user", "success")
	return res.RowsAffected, nil
}

func (r *GormRefreshTokenRepository) ListActiveByUser(userID string, now time.Time) ([]domain.RefreshToken, error) {
	var tokens []domain.RefreshToken
	err := r.db.Where("user_id = ? AND revoked_at IS NULL AND expires_at > ?", userID, now).
		Order("created_at DESC").
		Find(&tokens).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "refresh_token", "list_active_by_user", "error")
		return tokens, err
	}
	observability.RecordRepositoryOperation(context.Background(), "refresh_token", "list_active_by_user", "success")
	return tokens, nil
}

// CleanupExpired is housekeeping, not a security control; validity is always
// re-checked against the clock at lookup time.
func (r *GormRefreshTokenRepository) CleanupExpired(now time.Time) (int64, error) {
	res := r.db.Where("expires_at <= ?", now).Delete(&domain.RefreshToken{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "refresh_token", "cleanup_expired", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "refresh_token", "cleanup_expired", "success")
	return res.RowsAffected, nil
}
