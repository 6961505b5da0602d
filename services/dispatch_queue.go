package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"fulfillment-service/models"
	aws_pkg "fulfillment-service/pkg/aws"
)

// ErrQueueFull is returned when the in-process queue cannot accept more work.
var ErrQueueFull = errors.New("dispatch queue full")

// ErrQueueClosed is returned by Enqueue after Shutdown.
var ErrQueueClosed = errors.New("dispatch queue closed")

// ErrNotDispatchRequest is returned for well-formed queue messages of another
// kind, such as order events delivered by a topic subscription.
var ErrNotDispatchRequest = errors.New("message is not a dispatch request")

// DispatchQueue carries notification work from the webhook path to the dispatcher.
type DispatchQueue interface {
	Enqueue(ctx context.Context, req models.DispatchRequest) error
}

// DispatchHandler performs one unit of queued notification work.
type DispatchHandler func(ctx context.Context, req models.DispatchRequest) error

// WorkerPoolQueue is a bounded in-process queue drained by a fixed number of
// workers. Enqueue never blocks the webhook response.
type WorkerPoolQueue struct {
	jobs    chan models.DispatchRequest
	handler DispatchHandler
	workers int
	log     *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewWorkerPoolQueue(workers, size int, handler DispatchHandler, log *zap.Logger) *WorkerPoolQueue {
	if workers < 1 {
		workers = 1
	}
	if size < 1 {
		size = 1
	}
	return &WorkerPoolQueue{
		jobs:    make(chan models.DispatchRequest, size),
		handler: handler,
		workers: workers,
		log:     log,
	}
}

// Start launches the workers. They stop once Shutdown closes the queue and
// the backlog is drained.
func (q *WorkerPoolQueue) Start(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go func(id int) {
			defer q.wg.Done()
			for req := range q.jobs {
				q.run(ctx, id, req)
			}
		}(i)
	}
}

func (q *WorkerPoolQueue) run(ctx context.Context, worker int, req models.DispatchRequest) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error("dispatch worker panic", zap.Int("worker", worker), zap.String("order_id", req.OrderID), zap.Any("panic", r))
		}
	}()
	if err := q.handler(ctx, req); err != nil {
		q.log.Error("dispatch failed", zap.Int("worker", worker), zap.String("order_id", req.OrderID), zap.Error(err))
	}
}

func (q *WorkerPoolQueue) Enqueue(_ context.Context, req models.DispatchRequest) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.jobs <- req:
		return nil
	default:
		return ErrQueueFull
	}
}

// Shutdown stops accepting work and waits for the backlog to drain or ctx to
// expire, whichever comes first.
func (q *WorkerPoolQueue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("dispatch queue drain: %w", ctx.Err())
	}
}

// SQSDispatchQueue sends dispatch requests to SQS so any instance can deliver
// them, and redelivers on handler failure.
type SQSDispatchQueue struct {
	queue   *aws_pkg.SQSQueue
	metrics aws_pkg.MetricsRecorder
	log     *zap.Logger
}

func NewSQSDispatchQueue(queue *aws_pkg.SQSQueue, metrics aws_pkg.MetricsRecorder, log *zap.Logger) *SQSDispatchQueue {
	return &SQSDispatchQueue{queue: queue, metrics: metrics, log: log}
}

func (q *SQSDispatchQueue) Enqueue(ctx context.Context, req models.DispatchRequest) error {
	req.Type = models.DispatchTypeNotify
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal dispatch request: %w", err)
	}
	return q.queue.SendMessage(ctx, string(body))
}

// Consume polls the queue until ctx is cancelled.
func (q *SQSDispatchQueue) Consume(ctx context.Context, handler DispatchHandler) error {
	return q.queue.StartPolling(ctx, func(ctx context.Context, body string) error {
		req, err := DecodeDispatchMessage(body)
		if errors.Is(err, ErrNotDispatchRequest) {
			// the webhook already queued this order's request
			q.log.Debug("skipping non-dispatch message", zap.Error(err))
			_ = q.metrics.RecordCount(ctx, aws_pkg.MetricSQSMessages, map[string]string{"result": "skipped"})
			return nil
		}
		if err != nil {
			// malformed messages are dropped rather than redelivered forever
			q.log.Error("invalid dispatch message", zap.Error(err), zap.String("body", body))
			_ = q.metrics.RecordCount(ctx, aws_pkg.MetricSQSMessages, map[string]string{"result": "invalid"})
			return nil
		}
		if err := handler(ctx, req); err != nil {
			_ = q.metrics.RecordCount(ctx, aws_pkg.MetricSQSMessages, map[string]string{"result": "failed"})
			return err
		}
		_ = q.metrics.RecordCount(ctx, aws_pkg.MetricSQSMessages, map[string]string{"result": "ok"})
		return nil
	})
}

// DecodeDispatchMessage parses a queue body, unwrapping an SNS envelope when
// the queue is subscribed to a topic. Only bodies typed as dispatch requests
// are accepted; anything else is ErrNotDispatchRequest.
func DecodeDispatchMessage(body string) (models.DispatchRequest, error) {
	var envelope struct {
		Message string `json:"Message"`
	}
	if err := json.Unmarshal([]byte(body), &envelope); err == nil && envelope.Message != "" {
		body = envelope.Message
	}

	var req models.DispatchRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		return req, fmt.Errorf("decode dispatch request: %w", err)
	}
	if req.Type != models.DispatchTypeNotify {
		return req, fmt.Errorf("%w: type %q", ErrNotDispatchRequest, req.Type)
	}
	if req.OrderID == "" {
		return req, errors.New("dispatch request has no order_id")
	}
	return req, nil
}
