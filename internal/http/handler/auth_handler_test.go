package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/clinickit/clinic-auth-api/internal/domain"
	"github.com/clinickit/clinic-auth-api/internal/service"
)

type stubAuthService struct {
	registerErr error
	loginErr    error
	refreshErr  error
	resetErr    error
	forgotErr   error

	lastRegister service.RegisterInput
	loggedOut    []string
}

func (s *stubAuthService) Register(in service.RegisterInput) (*service.AuthResult, error) {
	s.lastRegister = in
	if s.registerErr != nil {
		return nil, s.registerErr
	}
	return &service.AuthResult{
		User:   domain.UserPublic{ID: "u1", Email: in.Email, Role: domain.RoleDoctor},
		Tokens: service.TokenPair{Access: "access", Refresh: "refresh"},
	}, nil
}

func (s *stubAuthService) Login(in service.LoginInput) (*service.AuthResult, error) {
	if s.loginErr != nil {
		return nil, s.loginErr
	}
	return &service.AuthResult{
		User:   domain.UserPublic{ID: "u1", Email: in.Email, Role: domain.RoleDoctor},
		Tokens: service.TokenPair{Access: "access", Refresh: "refresh"},
	}, nil
}

func (s *stubAuthService) Refresh(string) (*service.TokenPair, error) {
	if s.refreshErr != nil {
		return nil, s.refreshErr
	}
	return &service.TokenPair{Access: "new-access", Refresh: "new-refresh"}, nil
}

func (s *stubAuthService) Logout(token string) { s.loggedOut = append(s.loggedOut, token) }

func (s *stubAuthService) CurrentUser(string) (*domain.UserPublic, error) {
	return &domain.UserPublic{ID: "u1", Email: "doc@example.com"}, nil
}

func (s *stubAuthService) ListSessions(string) ([]service.SessionView, error) {
	return []service.SessionView{}, nil
}

func (s *stubAuthService) ForgotPassword(string) error { return s.forgotErr }

func (s *stubAuthService) ResetPassword(string, string) error { return s.resetErr }

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details,omitempty"`
	} `json:"error"`
}

func post(t *testing.T, h http.HandlerFunc, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)
	var env envelope
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode envelope: %v (body %s)", err, rec.Body.String())
		}
	}
	return rec, env
}

func TestRegisterValidation(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{})

	cases := map[string]string{
		"bad email":      `{"email":"not-an-email","password":"longenough","name":"A"}`,
		"short password": `{"email":"a@b.co","password":"short","name":"A"}`,
		"empty name":     `{"email":"a@b.co","password":"longenough","name":"  "}`,
		"bad role":       `{"email":"a@b.co","password":"longenough","name":"A","role":"superuser"}`,
		"not json":       `{{{`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec, env := post(t, h.Register, body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			if env.Success {
				t.Fatal("expected error envelope")
			}
		})
	}
}

func TestRegisterSuccessAndConflict(t *testing.T) {
	stub := &stubAuthService{}
	h := NewAuthHandler(stub)

	rec, env := post(t, h.Register, `{"email":"a@b.co","password":"longenough","name":"A"}`)
	if rec.Code != http.StatusCreated || !env.Success {
		t.Fatalf("expected 201 success, got %d success=%v", rec.Code, env.Success)
	}

	stub.registerErr = service.ErrEmailTaken
	rec, env = post(t, h.Register, `{"email":"a@b.co","password":"longenough","name":"A"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if env.Error == nil || env.Error.Code != "CONFLICT" {
		t.Fatalf("unexpected error envelope %+v", env.Error)
	}
}

func TestLoginUnauthorized(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{loginErr: service.ErrInvalidCredentials})

	rec, env := post(t, h.Login, `{"email":"a@b.co","password":"whatever"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if env.Error == nil || env.Error.Message != service.ErrInvalidCredentials.Error() {
		t.Fatalf("unexpected error %+v", env.Error)
	}
}

func TestRefreshMapsInvalidTokenTo401(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{refreshErr: service.ErrInvalidRefreshToken})

	rec, _ := post(t, h.Refresh, `{"refreshToken":"stale"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestLogoutAlwaysNoContent(t *testing.T) {
	stub := &stubAuthService{}
	h := NewAuthHandler(stub)

	rec, _ := post(t, h.Logout, `{"refreshToken":"whatever"}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if len(stub.loggedOut) != 1 || stub.loggedOut[0] != "whatever" {
		t.Fatalf("logout not delegated: %v", stub.loggedOut)
	}
}

func TestForgotPasswordAlwaysAccepted(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{})

	rec, env := post(t, h.ForgotPassword, `{"email":"anyone@example.com"}`)
	if rec.Code != http.StatusAccepted || !env.Success {
		t.Fatalf("expected 202 success, got %d", rec.Code)
	}
}

func TestResetPasswordMapsInvalidTokenTo400(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{resetErr: service.ErrInvalidResetToken})

	rec, env := post(t, h.ResetPassword, `{"token":"bad","newPassword":"longenough"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if env.Error == nil || env.Error.Message != service.ErrInvalidResetToken.Error() {
		t.Fatalf("unexpected error %+v", env.Error)
	}
}

func TestResetPasswordValidatesNewPassword(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{})

	rec, _ := post(t, h.ResetPassword, `{"token":"tok","newPassword":"short"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
