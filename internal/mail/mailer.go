// Package mail delivers transactional emails over SMTP.
//
// WHY A SEPARATE PACKAGE?
// The service layer decides WHEN to email (after registration, after a
// password reset request); this package only knows HOW. Keeping delivery
// behind a small type means tests can swap it for a recorder and never
// touch the network.
package mail

import (
	"fmt"
	"log/slog"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/sakif/auth-service/internal/config"
)

// Mailer sends account lifecycle emails. An empty SMTP host disables
// delivery entirely: Send methods log a warning and return nil, so local
// development works without a mail server.
type Mailer struct {
	cfg         config.EmailConfig
	frontendURL string
	logger      *slog.Logger
}

func New(cfg config.EmailConfig, frontendURL string, logger *slog.Logger) *Mailer {
	return &Mailer{
		cfg:         cfg,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		logger:      logger,
	}
}

// SendRegistration emails a verification link to a freshly registered
// account. locale selects the message language, defaulting to English.
func (m *Mailer) SendRegistration(locale, name, email, verification string) error {
	link := fmt.Sprintf("%s/verify/%s", m.frontendURL, verification)

	var subject, body string
	switch normalizeLocale(locale) {
	case "es":
		subject = "Verifica tu email"
		body = fmt.Sprintf(registrationBodyES, name, link, link)
	default:
		subject = "Verify your email"
		body = fmt.Sprintf(registrationBodyEN, name, link, link)
	}

	return m.send(email, subject, body)
}

// SendPasswordReset emails a reset link carrying the single-use token.
func (m *Mailer) SendPasswordReset(locale, name, email, token string) error {
	link := fmt.Sprintf("%s/reset/%s", m.frontendURL, token)

	var subject, body string
	switch normalizeLocale(locale) {
	case "es":
		subject = "Recupera tu contraseña"
		body = fmt.Sprintf(resetBodyES, name, link, link)
	default:
		subject = "Reset your password"
		body = fmt.Sprintf(resetBodyEN, name, link, link)
	}

	return m.send(email, subject, body)
}

func (m *Mailer) send(to, subject, body string) error {
	if m.cfg.Host == "" || m.cfg.From == "" {
		m.logger.Warn("email config missing, skipping delivery",
			slog.String("to", to),
			slog.String("subject", subject),
		)
		return nil
	}
	if strings.TrimSpace(to) == "" {
		m.logger.Warn("email recipient empty, skipping delivery", slog.String("subject", subject))
		return nil
	}

	msg := gomail.NewMessage()
	if m.cfg.FromName != "" {
		msg.SetAddressHeader("From", m.cfg.From, m.cfg.FromName)
	} else {
		msg.SetHeader("From", m.cfg.From)
	}
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	d := gomail.NewDialer(m.cfg.Host, m.cfg.Port, m.cfg.Username, m.cfg.Password)
	if err := d.DialAndSend(msg); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	m.logger.Info("email sent", slog.String("to", to), slog.String("subject", subject))
	return nil
}

// normalizeLocale reduces an Accept-Language style tag ("es-AR", "ES") to
// a bare language code.
func normalizeLocale(locale string) string {
	locale = strings.ToLower(strings.TrimSpace(locale))
	if lang, _, found := strings.Cut(locale, "-"); found {
		return lang
	}
	return locale
}

const registrationBodyEN = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
  <div style="max-width: 520px; margin: 0 auto; padding: 16px;">
    <h2>Welcome, %s!</h2>
    <p>Please confirm your email address by clicking the link below:</p>
    <p><a href="%s">%s</a></p>
    <p>If you did not create this account, you can ignore this message.</p>
  </div>
</body>
</html>`

const registrationBodyES = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
  <div style="max-width: 520px; margin: 0 auto; padding: 16px;">
    <h2>¡Bienvenido, %s!</h2>
    <p>Confirma tu dirección de email haciendo clic en el siguiente enlace:</p>
    <p><a href="%s">%s</a></p>
    <p>Si no creaste esta cuenta, puedes ignorar este mensaje.</p>
  </div>
</body>
</html>`

const resetBodyEN = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
  <div style="max-width: 520px; margin: 0 auto; padding: 16px;">
    <h2>Hi %s,</h2>
    <p>We received a request to reset your password. Click the link below to choose a new one:</p>
    <p><a href="%s">%s</a></p>
    <p>If you did not request this, you can safely ignore this message.</p>
  </div>
</body>
</html>`

const resetBodyES = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
  <div style="max-width: 520px; margin: 0 auto; padding: 16px;">
    <h2>Hola %s,</h2>
    <p>Recibimos una solicitud para restablecer tu contraseña. Haz clic en el siguiente enlace para elegir una nueva:</p>
    <p><a href="%s">%s</a></p>
    <p>Si no solicitaste este cambio, puedes ignorar este mensaje.</p>
  </div>
</body>
</html>`
