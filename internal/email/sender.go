// Package email delivers the transactional messages of the auth flows.
// Delivery is fire-and-forget: callers do not retry, users request a resend.
package email

import (
	"context"
	"fmt"
	"log"
	"net/smtp"
	"strings"
)

// Sender delivers templated messages to an address.
type Sender interface {
	SendVerification(ctx context.Context, to, fullName, link string, lifetimeMinutes int, activationMessage string) error
	SendOTP(ctx context.Context, to string, otp int) error
	SendResetCode(ctx context.Context, to, code string) error
}

// SMTPSender sends mail through a configured SMTP relay.
type SMTPSender struct {
	host string
	port string
	user string
	pass string
	from string
}

// NewSMTPSender creates a new SMTP-backed sender
func NewSMTPSender(host, port, user, pass, from string) *SMTPSender {
	return &SMTPSender{host: host, port: port, user: user, pass: pass, from: from}
}

func (s *SMTPSender) send(to, subject, htmlBody string) error {
	msg := strings.Join([]string{
		"From: " + s.from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=\"UTF-8\"",
		"",
		htmlBody,
	}, "\r\n")

	auth := smtp.PlainAuth("", s.user, s.pass, s.host)
	addr := s.host + ":" + s.port
	if err := smtp.SendMail(addr, auth, s.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("send mail to %s: %w", maskEmail(to), err)
	}
	return nil
}

func (s *SMTPSender) SendVerification(ctx context.Context, to, fullName, link string, lifetimeMinutes int, activationMessage string) error {
	body := fmt.Sprintf(`
		<h2>Hola %s</h2>
		<p>%s</p>
		<p><a href="%s">Verificar cuenta</a></p>
		<p>El enlace expira en %d minutos.</p>`,
		fullName, activationMessage, link, lifetimeMinutes)
	return s.send(to, "Verificación de cuenta", body)
}

func (s *SMTPSender) SendOTP(ctx context.Context, to string, otp int) error {
	body := fmt.Sprintf(`
		<p>Tu código de verificación es:</p>
		<h1>%06d</h1>`, otp)
	return s.send(to, "Tu código de verificación OTP", body)
}

func (s *SMTPSender) SendResetCode(ctx context.Context, to, code string) error {
	body := fmt.Sprintf(`
		<p>Tu código para restablecer la contraseña es:</p>
		<h1>%s</h1>
		<p>Expira en una hora.</p>`, code)
	return s.send(to, "Código de verificación para restablecimiento de contraseña", body)
}

// LogSender logs outbound messages instead of delivering them. Used in dev
// mode and in tests; codes are never logged in full.
type LogSender struct{}

func (LogSender) SendVerification(ctx context.Context, to, fullName, link string, lifetimeMinutes int, activationMessage string) error {
	log.Printf("mail (dev): verification for %s, link lifetime %dm", maskEmail(to), lifetimeMinutes)
	return nil
}

func (LogSender) SendOTP(ctx context.Context, to string, otp int) error {
	log.Printf("mail (dev): OTP for %s", maskEmail(to))
	return nil
}

func (LogSender) SendResetCode(ctx context.Context, to, code string) error {
	log.Printf("mail (dev): reset code for %s", maskEmail(to))
	return nil
}

// maskEmail masks the local part of an address for logging (e.g. ma****@example.com).
func maskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at <= 2 {
		return "****"
	}
	return email[:2] + strings.Repeat("*", at-2) + email[at:]
}
