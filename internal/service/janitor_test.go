package service

import (
	"log/slog"
	"testing"
	"time"

	"github.com/clinickit/clinic-auth-api/internal/domain"
)

func TestJanitorSweepRemovesOnlyExpired(t *testing.T) {
	clock := newFakeClock()
	tokens := newFakeTokenRepo()
	resets := newFakeResetRepo()
	now := clock.Now()

	mustCreateToken := func(jti string, expires time.Time) {
		t.Helper()
		if err := tokens.Create(&domain.RefreshToken{UserID: "u1", JTI: jti, TokenHash: "h-" + jti, ExpiresAt: expires}); err != nil {
			t.Fatalf("create %s: %v", jti, err)
		}
	}
	mustCreateToken("live", now.Add(time.Hour))
	mustCreateToken("dead", now.Add(-time.Hour))
	if err := resets.Create(&domain.ResetToken{UserID: "u1", TokenHash: "r-live", ExpiresAt: now.Add(time.Hour)}); err != nil {
		t.Fatalf("create reset: %v", err)
	}
	if err := resets.Create(&domain.ResetToken{UserID: "u1", TokenHash: "r-dead", ExpiresAt: now.Add(-time.Hour)}); err != nil {
		t.Fatalf("create reset: %v", err)
	}

	j := NewJanitor(tokens, resets, clock, time.Hour, slog.Default())
	j.Sweep()

	if _, err := tokens.FindValidByJTIAndHash("live", "h-live", now); err != nil {
		t.Fatalf("live refresh token must survive: %v", err)
	}
	if _, err := tokens.FindValidByJTIAndHash("dead", "h-dead", now.Add(-2*time.Hour)); err == nil {
		t.Fatal("expired refresh token must be gone")
	}
	if _, err := resets.ConsumeIfValid("r-live", now); err != nil {
		t.Fatalf("live reset token must survive: %v", err)
	}
}
