package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/clinickit/clinic-auth-api/internal/repository"
)

// Janitor deletes expired token rows on a schedule. This is storage
// hygiene only: lookups already compare expires_at to the clock, so
// correctness never depends on the janitor having run.
type Janitor struct {
	tokens   repository.RefreshTokenRepository
	resets   repository.ResetTokenRepository
	clock    Clock
	interval time.Duration
	logger   *slog.Logger
}

func NewJanitor(tokens repository.RefreshTokenRepository, resets repository.ResetTokenRepository, clock Clock, interval time.Duration, logger *slog.Logger) *Janitor {
	return &Janitor{tokens: tokens, resets: resets, clock: clock, interval: interval, logger: logger}
}

// Run blocks until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Sweep()
		}
	}
}

func (j *Janitor) Sweep() {
	now := j.clock.Now()
	refresh, err := j.tokens.CleanupExpired(now)
	if err != nil {
		j.logger.Error("refresh token cleanup failed", "error", err)
	}
	resets, err := j.resets.CleanupExpired(now)
	if err != nil {
		j.logger.Error("reset token cleanup failed", "error", err)
	}
	if refresh > 0 || resets > 0 {
		j.logger.Info("expired tokens cleaned", "refresh_tokens", refresh, "reset_tokens", resets)
	}
}
