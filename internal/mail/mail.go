// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package mail delivers the rendered report over SMTP.
package mail

import (
	"fmt"
	"net/smtp"

	"github.com/pdiddy/paperwatch/pkg/types"
)

// DeliveryError marks a failure that happened after the report was built and
// backed up: the run's results are safe on disk, only the send failed.
type DeliveryError struct {
	Err error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivering report: %v", e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// sendMail is swapped by tests to capture the outgoing message.
var sendMail = smtp.SendMail

// Sender sends HTML mail through one SMTP account. The sender address doubles
// as the login name, which is how mail providers' app passwords work.
type Sender struct {
	Host     string
	Port     int
	From     string
	Password string
	To       string
}

// NewSender builds a Sender from the email configuration.
func NewSender(cfg types.EmailConfig) *Sender {
	return &Sender{
		Host:     cfg.SMTPServer,
		Port:     cfg.SMTPPort,
		From:     cfg.SenderEmail,
		Password: cfg.SenderPassword,
		To:       cfg.RecipientEmail,
	}
}

// Send wraps the HTML body in an RFC 822 message and hands it to the SMTP
// server with plain auth. STARTTLS is negotiated when the server offers it.
func (s *Sender) Send(subject, htmlBody string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n%s",
		s.From, s.To, subject, htmlBody)

	addr := fmt.Sprintf("%s:%d", s.Host, s.Port)
	auth := smtp.PlainAuth("", s.From, s.Password, s.Host)

	if err := sendMail(addr, auth, s.From, []string{s.To}, []byte(msg)); err != nil {
		return &DeliveryError{Err: err}
	}
	return nil
}
