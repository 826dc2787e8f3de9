package domain

import "time"

// RefreshToken is the stored record of an issued refresh token. Only the
// SHA-256 hash of the raw token is persisted; the jti embedded in the token
// locates the row without exposing it.
type RefreshToken struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	UserID        string     `gorm:"size:36;index;not null" json:"user_id"`
	JTI           string     `gorm:"size:64;uniqueIndex;not null" json:"-"`
	TokenHash     string     `gorm:"size:128;index;not null" json:"-"`
	UserAgent     string     `gorm:"size:512" json:"user_agent"`
	IP            string     `gorm:"size:64" json:"ip"`
	ExpiresAt     time.Time  `gorm:"index;not null" json:"expires_at"`
	RevokedAt     *time.Time `gorm:"index" json:"revoked_at,omitempty"`
	RevokedReason *string    `gorm:"size:64" json:"revoked_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Revoked reports whether the record has been invalidated ahead of expiry.
func (t *RefreshToken) Revoked() bool { return t.RevokedAt != nil }

// ResetToken authorizes exactly one password change. The row is deleted the
// moment it is consumed, so a raw token can never be replayed.
type ResetToken struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"size:36;index;not null" json:"user_id"`
	TokenHash string    `gorm:"size:128;uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
