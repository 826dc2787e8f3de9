// Package notifier delivers outbound mail on behalf of the auth flows.
package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
)

type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	Username string
	Password string
}

// SMTPNotifier sends password-reset mail. Without credentials it runs in
// dev mode and logs the link instead of sending, matching local
// development setups without a mail relayer.
type SMTPNotifier struct {
	cfg    SMTPConfig
	logger *slog.Logger
	// send is swapped in tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPNotifier(cfg SMTPConfig, logger *slog.Logger) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg, logger: logger, send: smtp.SendMail}
}

func (n *SMTPNotifier) SendResetEmail(ctx context.Context, email, resetLink string) error {
	if n.cfg.Username == "" || n.cfg.Password == "" {
		n.logger.Info("password reset link (dev mode)", "email", email, "link", resetLink)
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", n.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", email)
	b.WriteString("Subject: Password Reset - Clinic Auth\r\n")
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString("<h2>Password Reset Request</h2>")
	b.WriteString("<p>You requested a password reset for your account.</p>")
	fmt.Fprintf(&b, `<p><a href="%s">Reset Password</a></p>`, resetLink)
	b.WriteString("<p>If you didn't request this, please ignore this email.</p>")

	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	auth := smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	if err := n.send(addr, auth, n.cfg.From, []string{email}, []byte(b.String())); err != nil {
		n.logger.Error("send reset email failed", "email", email, "error", err)
		return err
	}
	n.logger.Info("password reset email sent", "email", email)
	return nil
}
