package service

import (
	"context"

	"github.com/clinickit/clinic-auth-api/internal/domain"
)

// Notifier delivers outbound mail. Delivery failure must never surface to
// the caller of a forgot-password request.
type Notifier interface {
	SendResetEmail(ctx context.Context, email, resetLink string) error
}

// AuthServiceInterface is the surface the HTTP layer consumes.
type AuthServiceInterface interface {
	Register(in RegisterInput) (*AuthResult, error)
	Login(in LoginInput) (*AuthResult, error)
	Refresh(refreshToken string) (*TokenPair, error)
	Logout(refreshToken string)
	CurrentUser(userID string) (*domain.UserPublic, error)
	ListSessions(userID string) ([]SessionView, error)
	ForgotPassword(email string) error
	ResetPassword(token, newPassword string) error
}
