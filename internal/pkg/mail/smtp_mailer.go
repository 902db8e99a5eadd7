package mail

import (
	"fmt"
	"log"
	"net/smtp"

	"github.com/EdukitaHQ/edukita/internal/pkg/env"
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

// SendActivationMail sends the account activation link to a new user.
func SendActivationMail(to, name, activationToken string) error {
	baseURL := env.GetEnv("APP_BASE_URL", "http://localhost:8080")
	link := fmt.Sprintf("%s/api/v1/auth/activate?token=%s", baseURL, activationToken)
	body := fmt.Sprintf(
		"<p>Hi %s,</p><p>welcome to Edukita! Please confirm your email address:</p><p><a href=\"%s\">Activate account</a></p>",
		name, link,
	)
	return SendMail(to, "Activate your Edukita account", body)
}

// SendPaymentReceipt sends a receipt for a completed subscription payment.
func SendPaymentReceipt(to, name, planID string, amount float64, currency, trackingID string) error {
	body := fmt.Sprintf(
		"<p>Hi %s,</p><p>thanks for your payment of %.2f %s for the %s plan.</p><p>Reference: %s</p>",
		name, amount, currency, planID, trackingID,
	)
	return SendMail(to, "Your Edukita payment receipt", body)
}
