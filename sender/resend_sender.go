package sender

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// ResendSender delivers email through the Resend HTTP API. Calls go through a
// circuit breaker so a provider outage fails fast instead of holding every
// dispatch worker for the full timeout.
type ResendSender struct {
	client  *resty.Client
	breaker *gobreaker.CircuitBreaker[SendResult]
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type resendResponse struct {
	ID string `json:"id"`
}

type resendError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

func NewResendSender(baseURL, apiKey string, log *zap.Logger) *ResendSender {
	client := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(10 * time.Second)

	breaker := gobreaker.NewCircuitBreaker[SendResult](gobreaker.Settings{
		Name:        "resend",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// a rejected message says nothing about provider health
		IsSuccessful: func(err error) bool {
			return err == nil || IsPermanent(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("email circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &ResendSender{client: client, breaker: breaker}
}

func (s *ResendSender) Send(ctx context.Context, email Email) (SendResult, error) {
	res, err := s.breaker.Execute(func() (SendResult, error) {
		return s.post(ctx, email)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return SendResult{}, fmt.Errorf("email provider unavailable: %w", err)
	}
	return res, err
}

func (s *ResendSender) post(ctx context.Context, email Email) (SendResult, error) {
	var out resendResponse
	var apiErr resendError

	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(resendRequest{
			From:    email.From,
			To:      []string{email.To},
			Subject: email.Subject,
			HTML:    email.HTML,
		}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/emails")
	if err != nil {
		return SendResult{}, fmt.Errorf("resend request failed: %w", err)
	}

	if resp.IsError() {
		err := fmt.Errorf("resend rejected email with status %d: %s", resp.StatusCode(), apiErr.Message)
		if resp.StatusCode() >= 400 && resp.StatusCode() < 500 && resp.StatusCode() != http.StatusTooManyRequests {
			return SendResult{}, &PermanentError{Err: err}
		}
		return SendResult{}, err
	}

	return SendResult{MessageID: out.ID, SentAt: time.Now()}, nil
}
