package sender

import (
	"context"
	"errors"
	"time"
)

type Email struct {
	From    string
	To      string
	Subject string
	HTML    string
}

type SendResult struct {
	MessageID string
	SentAt    time.Time
}

type EmailSender interface {
	Send(ctx context.Context, email Email) (SendResult, error)
}

// PermanentError marks a rejection that retrying cannot fix, such as an
// invalid recipient address.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// IsPermanent reports whether err should not be retried.
func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}
