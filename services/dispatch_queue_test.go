package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fulfillment-service/models"
)

func TestWorkerPoolQueue_DrainsOnShutdown(t *testing.T) {
	var handled atomic.Int32
	q := NewWorkerPoolQueue(2, 16, func(context.Context, models.DispatchRequest) error {
		time.Sleep(5 * time.Millisecond)
		handled.Add(1)
		return nil
	}, zap.NewNop())
	q.Start(context.Background())

	for i := 0; i < 10; i++ {
		require.NoError(t, q.Enqueue(context.Background(), models.DispatchRequest{OrderID: "o"}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, q.Shutdown(ctx))
	assert.Equal(t, int32(10), handled.Load())

	assert.ErrorIs(t, q.Enqueue(context.Background(), models.DispatchRequest{OrderID: "late"}), ErrQueueClosed)
}

func TestWorkerPoolQueue_FullQueueRejects(t *testing.T) {
	q := NewWorkerPoolQueue(1, 1, func(context.Context, models.DispatchRequest) error { return nil }, zap.NewNop())
	// not started, so nothing drains

	require.NoError(t, q.Enqueue(context.Background(), models.DispatchRequest{OrderID: "a"}))
	assert.ErrorIs(t, q.Enqueue(context.Background(), models.DispatchRequest{OrderID: "b"}), ErrQueueFull)
}

func TestWorkerPoolQueue_SurvivesPanics(t *testing.T) {
	var handled atomic.Int32
	q := NewWorkerPoolQueue(1, 4, func(_ context.Context, req models.DispatchRequest) error {
		if req.OrderID == "boom" {
			panic("template exploded")
		}
		handled.Add(1)
		return nil
	}, zap.NewNop())
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(context.Background(), models.DispatchRequest{OrderID: "boom"}))
	require.NoError(t, q.Enqueue(context.Background(), models.DispatchRequest{OrderID: "ok"}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, q.Shutdown(ctx))
	assert.Equal(t, int32(1), handled.Load())
}

func TestWorkerPoolQueue_ShutdownDeadline(t *testing.T) {
	release := make(chan struct{})
	q := NewWorkerPoolQueue(1, 1, func(context.Context, models.DispatchRequest) error {
		<-release
		return nil
	}, zap.NewNop())
	q.Start(context.Background())
	require.NoError(t, q.Enqueue(context.Background(), models.DispatchRequest{OrderID: "slow"}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Shutdown(ctx), context.DeadlineExceeded)
	close(release)
}

func TestDecodeDispatchMessage(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
		notOurs bool
	}{
		{"plain", `{"type":"notifications.dispatch","order_id":"abc","classes":["customer"]}`, "abc", false, false},
		{"sns envelope", `{"Type":"Notification","Message":"{\"type\":\"notifications.dispatch\",\"order_id\":\"xyz\"}"}`, "xyz", false, false},
		{"order event in sns envelope", `{"Type":"Notification","Message":"{\"event\":\"order.created\",\"order_id\":\"xyz\"}"}`, "", true, true},
		{"untyped", `{"order_id":"abc"}`, "", true, true},
		{"missing order id", `{"type":"notifications.dispatch","classes":["customer"]}`, "", true, false},
		{"garbage", `not json`, "", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := DecodeDispatchMessage(tt.body)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Equal(t, tt.notOurs, errors.Is(err, ErrNotDispatchRequest))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, req.OrderID)
		})
	}
}

func TestDecodeDispatchMessage_OrderEventFromTopicIsSkipped(t *testing.T) {
	order := &models.Order{
		ID:            uuid.New(),
		OrderNumber:   "ORD-TEST-00001",
		CustomerEmail: "dana@example.com",
		TotalAmount:   decimal.RequireFromString("49.00"),
		Currency:      "usd",
		OrderItems:    []models.OrderItem{{CompanyID: uuid.New()}},
	}
	evt, err := json.Marshal(orderCreatedEvent(order, time.Now()))
	require.NoError(t, err)
	envelope, err := json.Marshal(map[string]string{"Type": "Notification", "Message": string(evt)})
	require.NoError(t, err)

	_, err = DecodeDispatchMessage(string(envelope))
	assert.ErrorIs(t, err, ErrNotDispatchRequest)

	// the request the webhook enqueues for the same order is still accepted
	body, err := json.Marshal(models.NewDispatchRequest(order.ID.String()))
	require.NoError(t, err)
	req, err := DecodeDispatchMessage(string(body))
	require.NoError(t, err)
	assert.Equal(t, order.ID.String(), req.OrderID)
}
