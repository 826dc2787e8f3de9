package integration

import (
	"net/http"
	"testing"
)

func TestPasswordResetFlow(t *testing.T) {
	baseURL, client, notif, closeFn := newAuthTestServer(t)
	defer closeFn()

	reg := registerTestUser(t, client, baseURL, "reset@example.com")

	resp, env := doJSON(t, client, http.MethodPost, baseURL+"/api/auth/forgot-password", map[string]string{
		"email": "reset@example.com",
	}, nil)
	if resp.StatusCode != http.StatusAccepted || !env.Success {
		t.Fatalf("forgot failed: status=%d error=%+v", resp.StatusCode, env.Error)
	}
	raw := notif.lastResetToken(t)

	resp, env = doJSON(t, client, http.MethodPost, baseURL+"/api/auth/reset-password", map[string]string{
		"token":       raw,
		"newPassword": "Fresh#Pass5678",
	}, nil)
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Fatalf("reset failed: status=%d error=%+v", resp.StatusCode, env.Error)
	}

	// Old password dead, new one works.
	resp, _ = doJSON(t, client, http.MethodPost, baseURL+"/api/auth/login", map[string]string{
		"email":    "reset@example.com",
		"password": "Initial#Pass1234",
	}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("old password must stop working, got %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, client, http.MethodPost, baseURL+"/api/auth/login", map[string]string{
		"email":    "reset@example.com",
		"password": "Fresh#Pass5678",
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("new password must work, got %d", resp.StatusCode)
	}

	// Every pre-reset refresh token is revoked.
	resp, _ = doJSON(t, client, http.MethodPost, baseURL+"/api/auth/refresh", map[string]string{
		"refreshToken": reg.Tokens.Refresh,
	}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("pre-reset refresh token must 401, got %d", resp.StatusCode)
	}

	// The reset token is single use.
	resp, env = doJSON(t, client, http.MethodPost, baseURL+"/api/auth/reset-password", map[string]string{
		"token":       raw,
		"newPassword": "Again#Pass9012",
	}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("reused reset token must 400, got %d", resp.StatusCode)
	}
	if env.Error == nil || env.Error.Message != "invalid or expired reset token" {
		t.Fatalf("unexpected error %+v", env.Error)
	}
}

func TestForgotPasswordDoesNotRevealAccounts(t *testing.T) {
	baseURL, client, notif, closeFn := newAuthTestServer(t)
	defer closeFn()

	registerTestUser(t, client, baseURL, "known@example.com")

	for _, email := range []string{"known@example.com", "unknown@example.com"} {
		resp, env := doJSON(t, client, http.MethodPost, baseURL+"/api/auth/forgot-password", map[string]string{
			"email": email,
		}, nil)
		if resp.StatusCode != http.StatusAccepted || !env.Success {
			t.Fatalf("forgot for %s: status=%d", email, resp.StatusCode)
		}
	}
	notif.mu.Lock()
	sent := len(notif.links)
	notif.mu.Unlock()
	if sent != 1 {
		t.Fatalf("expected exactly one mail (for the known account), got %d", sent)
	}
}

func TestResetPasswordRejectsGarbageToken(t *testing.T) {
	baseURL, client, _, closeFn := newAuthTestServer(t)
	defer closeFn()

	resp, _ := doJSON(t, client, http.MethodPost, baseURL+"/api/auth/reset-password", map[string]string{
		"token":       "not-a-real-token",
		"newPassword": "Whatever#1234",
	}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
