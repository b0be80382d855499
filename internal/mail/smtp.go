package mail

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	netmail "net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
)

// SMTPSender delivers through a plain SMTP relay with PLAIN auth.
type SMTPSender struct {
	Host     string
	Port     int
	Username string
	Password string
}

func (s *SMTPSender) Deliver(ctx context.Context, from string, email Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fromAddr, err := netmail.ParseAddress(from)
	if err != nil {
		return fmt.Errorf("invalid sender %q: %w", from, err)
	}

	msg, err := buildMessage(from, email)
	if err != nil {
		return err
	}

	var auth smtp.Auth
	if s.Username != "" {
		auth = smtp.PlainAuth("", s.Username, s.Password, s.Host)
	}

	addr := s.Host + ":" + strconv.Itoa(s.Port)
	if err := smtp.SendMail(addr, auth, fromAddr.Address, email.To, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// buildMessage renders a multipart/alternative message with text and html parts.
func buildMessage(from string, email Email) ([]byte, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	parts := []struct {
		contentType string
		content     string
	}{
		{"text/plain; charset=utf-8", email.Text},
		{"text/html; charset=utf-8", email.HTML},
	}
	for _, p := range parts {
		header := textproto.MIMEHeader{}
		header.Set("Content-Type", p.contentType)
		pw, err := w.CreatePart(header)
		if err != nil {
			return nil, fmt.Errorf("create mime part: %w", err)
		}
		if _, err := pw.Write([]byte(p.content)); err != nil {
			return nil, fmt.Errorf("write mime part: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close mime writer: %w", err)
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(email.To, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", email.Subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", w.Boundary())
	msg.Write(body.Bytes())

	return msg.Bytes(), nil
}
