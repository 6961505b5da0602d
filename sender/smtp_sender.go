package sender

import (
	"context"
	"fmt"
	"net/smtp"
	"strconv"
	"time"
)

type SMTPSender struct {
	host     string
	port     int
	username string
	password string
	send     func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPSender(host string, port int, username, password string) (*SMTPSender, error) {
	if host == "" {
		return nil, fmt.Errorf("SMTP_HOST not set")
	}
	if port == 0 {
		return nil, fmt.Errorf("SMTP_PORT not set")
	}
	return &SMTPSender{host: host, port: port, username: username, password: password, send: smtp.SendMail}, nil
}

func (s *SMTPSender) Send(ctx context.Context, email Email) (SendResult, error) {
	if err := ctx.Err(); err != nil {
		return SendResult{}, err
	}

	addr := s.host + ":" + strconv.Itoa(s.port)
	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}

	msg := []byte(
		"From: " + email.From + "\r\n" +
			"To: " + email.To + "\r\n" +
			"Subject: " + email.Subject + "\r\n" +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n" +
			"\r\n" +
			email.HTML,
	)

	if err := s.send(addr, auth, email.From, []string{email.To}, msg); err != nil {
		return SendResult{}, fmt.Errorf("smtp send failed: %w", err)
	}

	return SendResult{
		MessageID: fmt.Sprintf("smtp-%d", time.Now().UnixNano()),
		SentAt:    time.Now(),
	}, nil
}
