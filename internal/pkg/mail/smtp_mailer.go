package mail

import (
	"errors"
	"fmt"
	"net/smtp"

	"github.com/gofiber/fiber/v2/log"

	"github.com/AlumniConnect/YearbookConnect/internal/pkg/env"
)

// SendMail delivers a plain-text notification email via SMTP. Delivery is
// best-effort; callers decide whether a failure matters.
func SendMail(to string, subject string, body string) error {
	host := env.GetEnv("SMTP_HOST", "")
	port := env.GetEnv("SMTP_PORT", "587")
	username := env.GetEnv("SMTP_USERNAME", "")
	password := env.GetEnv("SMTP_PASSWORD", "")
	sender := env.GetEnv("SMTP_SENDER", "")

	if host == "" {
		return errors.New("SMTP_HOST not configured")
	}
	if sender == "" {
		sender = "no-reply@localhost"
		log.Warnf("[Mail] SMTP_SENDER not set, using default sender: %s", sender)
	}

	var auth smtp.Auth
	if username != "" && password != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}

	addr := fmt.Sprintf("%s:%s", host, port)

	msg := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", sender, to, subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/plain; charset=UTF-8\r\n\r\n" +
			body,
	)

	if err := smtp.SendMail(addr, auth, sender, []string{to}, msg); err != nil {
		log.Errorf("[Mail] SMTP send to %s failed: %v", to, err)
		return err
	}
	log.Debugf("[Mail] Email sent to %s via %s", to, addr)
	return nil
}
