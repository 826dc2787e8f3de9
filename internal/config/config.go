// Package config loads and validates app config from env and an optional
// .env file using Viper. Malformed values fail Load, never first use.
package config

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	AppName string `mapstructure:"APP_NAME"`
	// AppURL is the public base URL embedded in password-reset links.
	AppURL string `mapstructure:"APP_URL"`
	Port   string `mapstructure:"PORT"`
	Env    string `mapstructure:"APP_ENV"`

	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// RedisAddr enables the distributed rate limiter when set; empty falls
	// back to the in-process limiter.
	RedisAddr string `mapstructure:"REDIS_ADDR"`

	JWTIssuer        string `mapstructure:"JWT_ISSUER"`
	JWTAudience      string `mapstructure:"JWT_AUDIENCE"`
	JWTAccessSecret  string `mapstructure:"JWT_ACCESS_SECRET"`
	JWTRefreshSecret string `mapstructure:"JWT_REFRESH_SECRET"`
	// JWTAccessExpires and JWTRefreshExpires accept 30s/15m/12h/7d forms.
	JWTAccessExpires  string `mapstructure:"JWT_ACCESS_EXPIRES"`
	JWTRefreshExpires string `mapstructure:"JWT_REFRESH_EXPIRES"`

	ResetTokenExpiresMin int    `mapstructure:"RESET_TOKEN_EXPIRES_MIN"`
	TokenPepper          string `mapstructure:"TOKEN_PEPPER"`
	BcryptCost           int    `mapstructure:"BCRYPT_COST"`

	CORSOrigins string `mapstructure:"CORS_ORIGINS"`

	APIRateLimitRPM    int `mapstructure:"API_RATE_LIMIT_RPM"`
	AuthRateLimitRPM   int `mapstructure:"AUTH_RATE_LIMIT_RPM"`
	ForgotRateLimitRPM int `mapstructure:"FORGOT_RATE_LIMIT_RPM"`

	CleanupInterval time.Duration `mapstructure:"CLEANUP_INTERVAL"`

	MailHost     string `mapstructure:"MAIL_SERVER"`
	MailPort     int    `mapstructure:"MAIL_PORT"`
	MailFrom     string `mapstructure:"MAIL_FROM"`
	MailUsername string `mapstructure:"MAIL_USERNAME"`
	MailPassword string `mapstructure:"MAIL_PASSWORD"`

	OTELMetricsEnabled        bool          `mapstructure:"OTEL_METRICS_ENABLED"`
	OTELTracesEnabled         bool          `mapstructure:"OTEL_TRACES_ENABLED"`
	OTELLogsEnabled           bool          `mapstructure:"OTEL_LOGS_ENABLED"`
	OTELExporterOTLPEndpoint  string        `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTELExporterOTLPInsecure  bool          `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	OTELServiceName           string        `mapstructure:"OTEL_SERVICE_NAME"`
	OTELMetricsExportInterval time.Duration `mapstructure:"OTEL_METRICS_EXPORT_INTERVAL"`

	accessTTL  time.Duration
	refreshTTL time.Duration
}

// Load reads .env (if present), then builds and validates Config from the
// environment. Env vars override .env. Missing .env is ignored.
func Load() (*Config, error) {
	cfg, err := load()
	outcome, errClass := "success", classifyConfigLoadError(err)
	if err != nil {
		outcome = "failure"
	}
	profile := ""
	if cfg != nil {
		profile = cfg.Env
	}
	recordConfigValidationEvent(context.Background(), profile, outcome, errClass)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig()

	v.AutomaticEnv()

	v.SetDefault("APP_NAME", "clinic-auth-api")
	v.SetDefault("APP_URL", "http://localhost:8080")
	v.SetDefault("PORT", "8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("JWT_ISSUER", "clinic-auth-api")
	v.SetDefault("JWT_AUDIENCE", "clinic-api")
	v.SetDefault("JWT_ACCESS_SECRET", "")
	v.SetDefault("JWT_REFRESH_SECRET", "")
	v.SetDefault("JWT_ACCESS_EXPIRES", "15m")
	v.SetDefault("JWT_REFRESH_EXPIRES", "7d")
	v.SetDefault("RESET_TOKEN_EXPIRES_MIN", 30)
	v.SetDefault("TOKEN_PEPPER", "")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("API_RATE_LIMIT_RPM", 300)
	v.SetDefault("AUTH_RATE_LIMIT_RPM", 30)
	v.SetDefault("FORGOT_RATE_LIMIT_RPM", 5)
	v.SetDefault("CLEANUP_INTERVAL", "1h")
	v.SetDefault("MAIL_SERVER", "")
	v.SetDefault("MAIL_PORT", 587)
	v.SetDefault("MAIL_FROM", "")
	v.SetDefault("MAIL_USERNAME", "")
	v.SetDefault("MAIL_PASSWORD", "")
	v.SetDefault("OTEL_METRICS_ENABLED", false)
	v.SetDefault("OTEL_TRACES_ENABLED", false)
	v.SetDefault("OTEL_LOGS_ENABLED", false)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", true)
	v.SetDefault("OTEL_SERVICE_NAME", "clinic-auth-api")
	v.SetDefault("OTEL_METRICS_EXPORT_INTERVAL", "30s")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return &cfg, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.JWTAccessSecret == "" {
		return fmt.Errorf("validate config: JWT_ACCESS_SECRET must be set")
	}
	if c.JWTRefreshSecret == "" {
		return fmt.Errorf("validate config: JWT_REFRESH_SECRET must be set")
	}
	if c.JWTAccessSecret == c.JWTRefreshSecret {
		return fmt.Errorf("validate config: access and refresh secrets must differ")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("validate config: BCRYPT_COST must be between 4 and 31")
	}
	if c.ResetTokenExpiresMin <= 0 {
		return fmt.Errorf("validate config: RESET_TOKEN_EXPIRES_MIN must be positive")
	}

	var err error
	if c.accessTTL, err = parseExpiry(c.JWTAccessExpires); err != nil {
		return fmt.Errorf("validate config: JWT_ACCESS_EXPIRES: %w", err)
	}
	if c.refreshTTL, err = parseExpiry(c.JWTRefreshExpires); err != nil {
		return fmt.Errorf("validate config: JWT_REFRESH_EXPIRES: %w", err)
	}
	return nil
}

func (c *Config) AccessTTL() time.Duration  { return c.accessTTL }
func (c *Config) RefreshTTL() time.Duration { return c.refreshTTL }

func (c *Config) ResetTokenTTL() time.Duration {
	return time.Duration(c.ResetTokenExpiresMin) * time.Minute
}

func (c *Config) CORSOriginList() []string {
	parts := strings.Split(c.CORSOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var expiryPattern = regexp.MustCompile(`^(\d+)([smhd])$`)

// parseExpiry accepts the 15m/7d style tokens the deployment environment
// uses for JWT lifetimes.
func parseExpiry(raw string) (time.Duration, error) {
	m := expiryPattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(raw)))
	if m == nil {
		return 0, fmt.Errorf("invalid duration %q (want e.g. 30s, 15m, 12h, 7d)", raw)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}
	unit := map[string]time.Duration{
		"s": time.Second,
		"m": time.Minute,
		"h": time.Hour,
		"d": 24 * time.Hour,
	}[m[2]]
	return time.Duration(n) * unit, nil
}
