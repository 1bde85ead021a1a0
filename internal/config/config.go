// Package config loads the application configuration from the environment.
//
// All tunables — the JWT secret, token lifetimes, the lockout threshold and
// block duration, SMTP settings — come in through here as one explicit
// struct. Core packages never read the environment themselves; main.go
// calls Load once and threads the struct through every constructor. That
// keeps the auth rules testable with arbitrary thresholds and makes the
// full knob surface visible in one place.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Environment names. Anything other than production gets the diagnostic
// extras (raw verification tokens in responses).
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Config holds every environment-driven setting.
type Config struct {
	Env      string // development / production / test
	HTTPAddr string // listen address, e.g. ":8080"
	DBPath   string // sqlite database file, ":memory:" for tests

	JWTSecret            string // HMAC signing secret, required
	JWTExpirationMinutes int    // access token TTL; 0 means tokens never expire
	RefreshTokenDays     int    // refresh token TTL in days
	ResetTokenHours      int    // password reset token TTL in hours

	LoginAttempts     int // failed logins allowed before blocking (exceeding blocks)
	HoursToBlock      int // block duration after too many attempts
	PasswordMinLength int

	FrontendURL string // base URL used in email links

	Email EmailConfig
}

// EmailConfig holds SMTP delivery settings. Empty Host disables sending;
// the mailer logs and skips instead of failing the request.
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

// AccessTokenTTL returns the configured access token lifetime, or 0 when
// tokens are configured to never expire.
func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.JWTExpirationMinutes) * time.Minute
}

// RefreshTokenTTL returns the refresh token lifetime.
func (c *Config) RefreshTokenTTL() time.Duration {
	return time.Duration(c.RefreshTokenDays) * 24 * time.Hour
}

// ResetTokenTTL returns the password reset token lifetime.
func (c *Config) ResetTokenTTL() time.Duration {
	return time.Duration(c.ResetTokenHours) * time.Hour
}

// BlockDuration returns how long an account stays blocked after exceeding
// the login attempt threshold.
func (c *Config) BlockDuration() time.Duration {
	return time.Duration(c.HoursToBlock) * time.Hour
}

// IsProduction reports whether the app runs with production hardening
// (no verification tokens in responses, no reset token echo).
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// Load reads configuration from environment variables, applying defaults
// for everything except the JWT secret, which has no safe default.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", EnvDevelopment)
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DB_PATH", "data/auth.db")
	v.SetDefault("JWT_EXPIRATION_MINUTES", 15)
	v.SetDefault("REFRESH_TOKEN_EXPIRATION_DAYS", 30)
	v.SetDefault("PASSWORD_RESET_TOKEN_EXPIRATION_HOURS", 2)
	v.SetDefault("LOGIN_ATTEMPTS", 5)
	v.SetDefault("HOURS_TO_BLOCK", 2)
	v.SetDefault("PASSWORD_MIN_LENGTH", 6)
	v.SetDefault("FRONTEND_URL", "http://localhost:3000")
	v.SetDefault("EMAIL_PORT", 587)
	v.SetDefault("EMAIL_FROM_NAME", "Auth Service")

	cfg := &Config{
		Env:      v.GetString("APP_ENV"),
		HTTPAddr: v.GetString("HTTP_ADDR"),
		DBPath:   v.GetString("DB_PATH"),

		JWTSecret:            v.GetString("JWT_SECRET"),
		JWTExpirationMinutes: v.GetInt("JWT_EXPIRATION_MINUTES"),
		RefreshTokenDays:     v.GetInt("REFRESH_TOKEN_EXPIRATION_DAYS"),
		ResetTokenHours:      v.GetInt("PASSWORD_RESET_TOKEN_EXPIRATION_HOURS"),

		LoginAttempts:     v.GetInt("LOGIN_ATTEMPTS"),
		HoursToBlock:      v.GetInt("HOURS_TO_BLOCK"),
		PasswordMinLength: v.GetInt("PASSWORD_MIN_LENGTH"),

		FrontendURL: v.GetString("FRONTEND_URL"),

		Email: EmailConfig{
			Host:     v.GetString("EMAIL_HOST"),
			Port:     v.GetInt("EMAIL_PORT"),
			Username: v.GetString("EMAIL_USERNAME"),
			Password: v.GetString("EMAIL_PASSWORD"),
			From:     v.GetString("EMAIL_FROM"),
			FromName: v.GetString("EMAIL_FROM_NAME"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return errors.New("config: JWT_SECRET is required")
	}
	if len(c.JWTSecret) < 16 {
		return errors.New("config: JWT_SECRET must be at least 16 characters")
	}
	switch c.Env {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		return fmt.Errorf("config: unknown APP_ENV %q", c.Env)
	}
	if c.JWTExpirationMinutes < 0 {
		return errors.New("config: JWT_EXPIRATION_MINUTES must not be negative")
	}
	if c.RefreshTokenDays <= 0 {
		return errors.New("config: REFRESH_TOKEN_EXPIRATION_DAYS must be positive")
	}
	if c.ResetTokenHours <= 0 {
		return errors.New("config: PASSWORD_RESET_TOKEN_EXPIRATION_HOURS must be positive")
	}
	if c.LoginAttempts <= 0 {
		return errors.New("config: LOGIN_ATTEMPTS must be positive")
	}
	if c.HoursToBlock <= 0 {
		return errors.New("config: HOURS_TO_BLOCK must be positive")
	}
	if c.PasswordMinLength < 1 {
		return errors.New("config: PASSWORD_MIN_LENGTH must be positive")
	}
	return nil
}
