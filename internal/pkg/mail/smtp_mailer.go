package mail

import (
	"fmt"
	"log"
	"net/smtp"

	"github.com/gostarterkit/saaskit/internal/pkg/env"
)

// SendMail sends an HTML email via SMTP
func SendMail(to string, subject string, body string) error {
	host := env.GetEnv("SMTP_HOST", "")
	port := env.GetEnv("SMTP_PORT", "")
	username := env.GetEnv("SMTP_USERNAME", "")
	password := env.GetEnv("SMTP_PASSWORD", "")
	sender := env.GetEnv("SMTP_SENDER", "")

	if sender == "" {
		sender = fmt.Sprintf("no-reply@%s", "localhost")
		log.Printf("SMTP_SENDER not set, using default sender: %s", sender)
	}

	var auth smtp.Auth
	if username != "" && password != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}

	addr := fmt.Sprintf("%s:%s", host, port)

	msg := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", sender, to, subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			body,
	)

	err := smtp.SendMail(addr, auth, sender, []string{to}, msg)
	if err != nil {
		log.Printf("SMTP send error: %v", err)
	} else {
		log.Printf("Email sent to %s via %s", to, addr)
	}
	return err
}

// SendPasswordResetEmail sends the reset link for the forgot-password flow.
func SendPasswordResetEmail(to string, resetURL string) error {
	body := fmt.Sprintf(`
		<h1>Reset your password</h1>
		<p>Click the link below to reset your password:</p>
		<p><a href="%s">%s</a></p>
		<p>The link is valid for one hour. If you didn't request this, you can safely ignore this email.</p>
	`, resetURL, resetURL)

	return SendMail(to, "Reset your password", body)
}

// SendWelcomeEmail greets a freshly registered user.
func SendWelcomeEmail(to string, name string) error {
	body := fmt.Sprintf(`
		<h1>Welcome, %s!</h1>
		<p>Thanks for signing up. We're excited to have you!</p>
	`, name)

	return SendMail(to, "Welcome!", body)
}

// SendActivationEmail sends the account activation link.
func SendActivationEmail(to string, activationURL string) error {
	body := fmt.Sprintf(`
		<h1>Activate your account</h1>
		<p>Click the link below to activate your account:</p>
		<p><a href="%s">%s</a></p>
	`, activationURL, activationURL)

	return SendMail(to, "Activate your account", body)
}
