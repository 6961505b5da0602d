package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fulfillment-service/config"
	"fulfillment-service/events"
	"fulfillment-service/sender"
	"fulfillment-service/services"
)

func TestNewEmailSender(t *testing.T) {
	log := zap.NewNop()

	s, err := newEmailSender(&config.Config{EmailProvider: "resend", ResendBaseURL: "http://localhost", ResendAPIKey: "re_test"}, log)
	require.NoError(t, err)
	assert.IsType(t, &sender.ResendSender{}, s)

	s, err = newEmailSender(&config.Config{EmailProvider: "smtp", SMTPHost: "smtp.test", SMTPPort: 587}, log)
	require.NoError(t, err)
	assert.IsType(t, &sender.SMTPSender{}, s)

	_, err = newEmailSender(&config.Config{EmailProvider: "smtp"}, log)
	assert.Error(t, err)

	s, err = newEmailSender(&config.Config{EmailProvider: "log"}, log)
	require.NoError(t, err)
	assert.IsType(t, &sender.LogSender{}, s)
}

func TestNewPublisher_NopWithoutSinks(t *testing.T) {
	a := &app{cfg: &config.Config{}, log: zap.NewNop()}
	p, closeAll := newPublisher(a)
	defer closeAll()
	assert.IsType(t, events.NopPublisher{}, p)
}

func TestNewPublisher_Kafka(t *testing.T) {
	a := &app{cfg: &config.Config{KafkaBrokers: []string{"localhost:9092"}, OrderEventsTopic: "orders.created"}, log: zap.NewNop()}
	p, closeAll := newPublisher(a)
	defer closeAll()
	require.IsType(t, events.MultiPublisher{}, p)
	assert.Len(t, p.(events.MultiPublisher), 1)
}

func TestNotify_RejectsUnknownClass(t *testing.T) {
	notifyOrder, notifyClasses, notifyCompany = "ORD-1", []string{"courier"}, ""
	err := runNotify(notifyCmd, nil)
	assert.ErrorIs(t, err, services.ErrInvalidDispatch)
}
