package repository

import (
	"fmt"

	"github.com/clinickit/clinic-auth-api/internal/domain"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Open connects to Postgres. TranslateError is required so that unique
// constraint violations surface as gorm.ErrDuplicatedKey instead of
// driver-specific errors.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&domain.User{}, &domain.RefreshToken{}, &domain.ResetToken{})
}
