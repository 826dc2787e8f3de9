package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/clinickit/clinic-auth-api/internal/config"
	"github.com/clinickit/clinic-auth-api/internal/http/handler"
	"github.com/clinickit/clinic-auth-api/internal/http/router"
	"github.com/clinickit/clinic-auth-api/internal/repository"
	"github.com/clinickit/clinic-auth-api/internal/security"
	"github.com/clinickit/clinic-auth-api/internal/service"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type tokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type authResult struct {
	User struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Role  string `json:"role"`
	} `json:"user"`
	Tokens tokenPair `json:"tokens"`
}

// capturingNotifier stands in for SMTP and records reset links.
type capturingNotifier struct {
	mu    sync.Mutex
	links []string
}

func (n *capturingNotifier) SendResetEmail(_ context.Context, _ string, resetLink string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.links = append(n.links, resetLink)
	return nil
}

func (n *capturingNotifier) lastResetToken(t *testing.T) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.links) == 0 {
		t.Fatal("no reset link captured")
	}
	link := n.links[len(n.links)-1]
	const marker = "/reset?token="
	i := strings.Index(link, marker)
	if i < 0 {
		t.Fatalf("unexpected reset link %q", link)
	}
	return link[i+len(marker):]
}

func newAuthTestServer(t *testing.T) (string, *http.Client, *capturingNotifier, func()) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repository.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := &config.Config{
		AppName:            "clinic-auth-api",
		AppURL:             "http://localhost:3000",
		Port:               "0",
		Env:                "test",
		CORSOrigins:        "http://localhost:3000",
		APIRateLimitRPM:    10000,
		AuthRateLimitRPM:   10000,
		ForgotRateLimitRPM: 10000,
	}

	jwtMgr := security.NewJWTManager("clinic-auth-api", "clinic-api", "it-access-secret", "it-refresh-secret",
		15*time.Minute, 7*24*time.Hour)
	notif := &capturingNotifier{}
	auth := service.NewAuthService(
		repository.NewUserRepository(db),
		repository.NewRefreshTokenRepository(db),
		repository.NewResetTokenRepository(db),
		jwtMgr,
		security.NewPasswordHasher(4),
		notif,
		service.SystemClock(),
		"it-pepper",
		30*time.Minute,
		cfg.AppURL,
	)

	mux := router.New(router.Deps{
		Config:      cfg,
		JWTManager:  jwtMgr,
		AuthHandler: handler.NewAuthHandler(auth),
	})

	srv := httptest.NewServer(mux)
	client := srv.Client()
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	return srv.URL, client, notif, srv.Close
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("decode envelope: %v (body %s)", err, raw)
		}
	}
	return resp, env
}

func registerTestUser(t *testing.T, client *http.Client, baseURL, email string) authResult {
	t.Helper()
	resp, env := doJSON(t, client, http.MethodPost, baseURL+"/api/auth/register", map[string]string{
		"email":    email,
		"password": "Initial#Pass1234",
		"name":     "Integration Doctor",
	}, nil)
	if resp.StatusCode != http.StatusCreated || !env.Success {
		t.Fatalf("register failed: status=%d success=%v error=%+v", resp.StatusCode, env.Success, env.Error)
	}
	var res authResult
	if err := json.Unmarshal(env.Data, &res); err != nil {
		t.Fatalf("decode register data: %v", err)
	}
	return res
}
