package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/clinickit/clinic-auth-api/internal/domain"
	"github.com/clinickit/clinic-auth-api/internal/http/middleware"
	"github.com/clinickit/clinic-auth-api/internal/http/response"
	"github.com/clinickit/clinic-auth-api/internal/observability"
	"github.com/clinickit/clinic-auth-api/internal/service"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

const minPasswordLength = 8

type AuthHandler struct {
	auth service.AuthServiceInterface
}

func NewAuthHandler(auth service.AuthServiceInterface) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(w, r, &req) {
		return
	}
	if details := validateRegister(req); len(details) > 0 {
		response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request", details)
		return
	}
	result, err := h.auth.Register(service.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		Name:      req.Name,
		Role:      req.Role,
		UserAgent: r.UserAgent(),
		IP:        clientIP(r),
	})
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			observability.RecordAuthRegister("conflict")
			response.Error(w, r, http.StatusConflict, "CONFLICT", service.ErrEmailTaken.Error(), nil)
			return
		}
		observability.RecordAuthRegister("error")
		internalError(w, r, err)
		return
	}
	observability.RecordAuthRegister("success")
	observability.Audit(r, "auth.register", "user_id", result.User.ID, "role", result.User.Role)
	response.JSON(w, r, http.StatusCreated, result)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := h.auth.Login(service.LoginInput{
		Email:     req.Email,
		Password:  req.Password,
		UserAgent: r.UserAgent(),
		IP:        clientIP(r),
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			observability.RecordAuthLogin("unauthorized")
			response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", service.ErrInvalidCredentials.Error(), nil)
			return
		}
		observability.RecordAuthLogin("error")
		internalError(w, r, err)
		return
	}
	observability.RecordAuthLogin("success")
	observability.Audit(r, "auth.login", "user_id", result.User.ID)
	response.JSON(w, r, http.StatusOK, result)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decode(w, r, &req) {
		return
	}
	pair, err := h.auth.Refresh(req.RefreshToken)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRefreshToken) {
			observability.RecordAuthRefresh("unauthorized")
			response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", service.ErrInvalidRefreshToken.Error(), nil)
			return
		}
		observability.RecordAuthRefresh("error")
		internalError(w, r, err)
		return
	}
	observability.RecordAuthRefresh("success")
	response.JSON(w, r, http.StatusOK, pair)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decode(w, r, &req) {
		return
	}
	h.auth.Logout(req.RefreshToken)
	observability.RecordAuthLogout("success")
	observability.Audit(r, "auth.logout")
	response.NoContent(w)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing access token", nil)
		return
	}
	user, err := h.auth.CurrentUser(claims.Subject)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			response.Error(w, r, http.StatusNotFound, "NOT_FOUND", service.ErrUserNotFound.Error(), nil)
			return
		}
		internalError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, user)
}

func (h *AuthHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing access token", nil)
		return
	}
	views, err := h.auth.ListSessions(claims.Subject)
	if err != nil {
		internalError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, views)
}

// ForgotPassword answers identically whether or not the email exists.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.auth.ForgotPassword(req.Email); err != nil {
		observability.RecordPasswordReset("forgot", "error")
		internalError(w, r, err)
		return
	}
	observability.RecordPasswordReset("forgot", "accepted")
	response.JSON(w, r, http.StatusAccepted, map[string]string{
		"message": "If the email exists, a reset link has been sent",
	})
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.NewPassword) < minPasswordLength {
		response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request",
			map[string]string{"newPassword": "must be at least 8 characters"})
		return
	}
	if err := h.auth.ResetPassword(req.Token, req.NewPassword); err != nil {
		if errors.Is(err, service.ErrInvalidResetToken) {
			observability.RecordPasswordReset("reset", "rejected")
			response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", service.ErrInvalidResetToken.Error(), nil)
			return
		}
		observability.RecordPasswordReset("reset", "error")
		internalError(w, r, err)
		return
	}
	observability.RecordPasswordReset("reset", "success")
	observability.Audit(r, "auth.password_reset")
	response.JSON(w, r, http.StatusOK, map[string]string{"message": "Password has been reset"})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return false
	}
	return true
}

func validateRegister(req registerRequest) map[string]string {
	details := map[string]string{}
	if !emailPattern.MatchString(req.Email) {
		details["email"] = "must be a valid email address"
	}
	if len(req.Password) < minPasswordLength {
		details["password"] = "must be at least 8 characters"
	}
	if strings.TrimSpace(req.Name) == "" {
		details["name"] = "must not be empty"
	}
	if req.Role != "" && !domain.ValidRole(req.Role) {
		details["role"] = "must be doctor or admin"
	}
	return details
}

func internalError(w http.ResponseWriter, r *http.Request, err error) {
	// The cause is logged server-side; callers get a generic message.
	observability.Audit(r, "internal_error", "error", err.Error())
	response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "internal server error", nil)
}

func clientIP(r *http.Request) string {
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i > 0 {
		host = host[:i]
	}
	return host
}
