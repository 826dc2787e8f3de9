package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/clinickit/clinic-auth-api/internal/domain"
	"github.com/clinickit/clinic-auth-api/internal/repository"
	"github.com/clinickit/clinic-auth-api/internal/security"

	"github.com/google/uuid"
)

var (
	// ErrInvalidCredentials is returned for both an unknown email and a wrong
	// password; callers cannot tell the two apart.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("user with this email already exists")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrUserNotFound        = errors.New("user not found")
	// ErrInvalidResetToken collapses never-existed, expired and already-used
	// reset tokens into one answer.
	ErrInvalidResetToken = errors.New("invalid or expired reset token")
)

type RegisterInput struct {
	Email     string
	Password  string
	Name      string
	Role      string
	UserAgent string
	IP        string
}

type LoginInput struct {
	Email     string
	Password  string
	UserAgent string
	IP        string
}

type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type AuthResult struct {
	User   domain.UserPublic `json:"user"`
	Tokens TokenPair         `json:"tokens"`
}

type SessionView struct {
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	UserAgent string    `json:"user_agent"`
	IP        string    `json:"ip"`
}

// AuthService orchestrates the token lifecycle: registration, login,
// refresh rotation, logout and password reset. It holds no mutable state
// and is safe for concurrent use.
type AuthService struct {
	users    repository.UserRepository
	tokens   repository.RefreshTokenRepository
	resets   repository.ResetTokenRepository
	jwtMgr   *security.JWTManager
	hasher   *security.PasswordHasher
	notifier Notifier
	clock    Clock
	pepper   string
	resetTTL time.Duration
	appURL   string
}

func NewAuthService(
	users repository.UserRepository,
	tokens repository.RefreshTokenRepository,
	resets repository.ResetTokenRepository,
	jwtMgr *security.JWTManager,
	hasher *security.PasswordHasher,
	notifier Notifier,
	clock Clock,
	pepper string,
	resetTTL time.Duration,
	appURL string,
) *AuthService {
	return &AuthService{
		users:    users,
		tokens:   tokens,
		resets:   resets,
		jwtMgr:   jwtMgr,
		hasher:   hasher,
		notifier: notifier,
		clock:    clock,
		pepper:   pepper,
		resetTTL: resetTTL,
		appURL:   appURL,
	}
}

// Register creates a user and issues the first token pair. Duplicate
// detection is delegated to the store's unique index; there is no preceding
// existence check to race against.
func (s *AuthService) Register(in RegisterInput) (*AuthResult, error) {
	role := in.Role
	if role == "" {
		role = domain.RoleDoctor
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        normalizeEmail(in.Email),
		PasswordHash: hash,
		Name:         in.Name,
		Role:         role,
	}
	if err := s.users.Create(user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	pair, err := s.issueTokens(user, in.UserAgent, in.IP)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user.Public(), Tokens: *pair}, nil
}

func (s *AuthService) Login(in LoginInput) (*AuthResult, error) {
	user, err := s.users.FindByEmail(normalizeEmail(in.Email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !s.hasher.Verify(in.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	pair, err := s.issueTokens(user, in.UserAgent, in.IP)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user.Public(), Tokens: *pair}, nil
}

// Refresh rotates a refresh token: the presented token is verified, matched
// against its stored record by jti AND hash, then revoked in the same store
// transaction that persists its successor. A stolen token therefore replays
// at most once, and a lost rotation race forces re-login rather than
// permitting silent reuse.
func (s *AuthService) Refresh(refreshToken string) (*TokenPair, error) {
	claims, err := s.jwtMgr.ParseRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}
	user, err := s.users.FindByID(claims.Subject)
	if err != nil {
		// An unknown subject is indistinguishable from a bad token.
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}
	now := s.clock.Now()
	hash := security.HashRefreshToken(refreshToken, s.pepper)
	stored, err := s.tokens.FindValidByJTIAndHash(claims.ID, hash, now)
	if err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}

	jti := security.NewJTI()
	access, err := s.jwtMgr.SignAccessToken(user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	refresh, err := s.jwtMgr.SignRefreshToken(user.ID, jti)
	if err != nil {
		return nil, err
	}
	next := &domain.RefreshToken{
		UserID:    user.ID,
		JTI:       jti,
		TokenHash: security.HashRefreshToken(refresh, s.pepper),
		UserAgent: stored.UserAgent,
		IP:        stored.IP,
		ExpiresAt: now.Add(s.jwtMgr.RefreshTTL()),
	}
	if err := s.tokens.Rotate(claims.ID, now, next); err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}
	return &TokenPair{Access: access, Refresh: refresh}, nil
}

// Logout is best-effort cleanup, not authorization: the jti is read without
// signature verification and an unparseable token counts as already logged
// out.
func (s *AuthService) Logout(refreshToken string) {
	jti := security.PeekJTI(refreshToken)
	if jti == "" {
		return
	}
	if _, err := s.tokens.Revoke(jti, repository.RevokeReasonLogout); err != nil {
		slog.Warn("logout revoke failed", "error", err)
	}
}

func (s *AuthService) CurrentUser(userID string) (*domain.UserPublic, error) {
	user, err := s.users.FindByID(userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	pub := user.Public()
	return &pub, nil
}

func (s *AuthService) ListSessions(userID string) ([]SessionView, error) {
	tokens, err := s.tokens.ListActiveByUser(userID, s.clock.Now())
	if err != nil {
		return nil, err
	}
	views := make([]SessionView, 0, len(tokens))
	for _, t := range tokens {
		views = append(views, SessionView{
			CreatedAt: t.CreatedAt,
			ExpiresAt: t.ExpiresAt,
			UserAgent: t.UserAgent,
			IP:        t.IP,
		})
	}
	return views, nil
}

// ForgotPassword returns nil whether or not the email exists; only the raw
// token's hash is stored, so a store compromise cannot complete a reset.
func (s *AuthService) ForgotPassword(email string) error {
	user, err := s.users.FindByEmail(normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil
		}
		return err
	}
	raw := security.NewResetToken()
	record := &domain.ResetToken{
		UserID:    user.ID,
		TokenHash: security.HashResetToken(raw),
		ExpiresAt: s.clock.Now().Add(s.resetTTL),
	}
	if err := s.resets.Create(record); err != nil {
		return err
	}
	link := s.appURL + "/reset?token=" + raw
	if err := s.notifier.SendResetEmail(context.Background(), user.Email, link); err != nil {
		slog.Error("reset email delivery failed", "error", err)
	}
	return nil
}

// ResetPassword consumes the token atomically, updates the password and
// revokes every refresh token the user holds, so a stolen session does not
// survive the reset.
func (s *AuthService) ResetPassword(token, newPassword string) error {
	userID, err := s.resets.ConsumeIfValid(security.HashResetToken(token), s.clock.Now())
	if err != nil {
		if errors.Is(err, repository.ErrResetTokenNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(userID, hash); err != nil {
		return err
	}
	if _, err := s.tokens.RevokeAllForUser(userID, repository.RevokeReasonPasswordReset); err != nil {
		return err
	}
	return nil
}

func (s *AuthService) issueTokens(user *domain.User, ua, ip string) (*TokenPair, error) {
	jti := security.NewJTI()
	access, err := s.jwtMgr.SignAccessToken(user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	refresh, err := s.jwtMgr.SignRefreshToken(user.ID, jti)
	if err != nil {
		return nil, err
	}
	record := &domain.RefreshToken{
		UserID:    user.ID,
		JTI:       jti,
		TokenHash: security.HashRefreshToken(refresh, s.pepper),
		UserAgent: ua,
		IP:        ip,
		ExpiresAt: s.clock.Now().Add(s.jwtMgr.RefreshTTL()),
	}
	if err := s.tokens.Create(record); err != nil {
		return nil, err
	}
	return &TokenPair{Access: access, Refresh: refresh}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
