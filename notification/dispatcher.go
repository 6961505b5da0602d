package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"fulfillment-service/models"
	aws_pkg "fulfillment-service/pkg/aws"
	"fulfillment-service/repository"
	"fulfillment-service/sender"
)

type Config struct {
	From          string
	OperatorEmail string
	// Concurrency bounds the number of sends in flight for one order.
	Concurrency  int
	MaxAttempts  int
	RetryBackoff time.Duration
}

// DispatchOptions narrows a dispatch for manual recovery. Zero value means
// every recipient class and every provider.
type DispatchOptions struct {
	Classes   []string
	CompanyID *uuid.UUID
}

func (o DispatchOptions) includes(class string) bool {
	if len(o.Classes) == 0 {
		return true
	}
	for _, c := range o.Classes {
		if c == class {
			return true
		}
	}
	return false
}

type TaskResult struct {
	Class     string     `json:"class"`
	CompanyID *uuid.UUID `json:"company_id,omitempty"`
	Recipient string     `json:"recipient"`
	Status    string     `json:"status"`
	Attempts  int        `json:"attempts"`
	Error     string     `json:"error,omitempty"`
}

type Report struct {
	OrderID uuid.UUID    `json:"order_id"`
	Results []TaskResult `json:"results"`
}

// Count returns how many tasks ended with status.
func (r Report) Count(status string) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == status {
			n++
		}
	}
	return n
}

type task struct {
	class     string
	companyID *uuid.UUID
	to        string
	render    func() (subject, body string, err error)
	skipWhy   string
}

type Dispatcher struct {
	sender   sender.EmailSender
	records  repository.NotificationRepository
	renderer *Renderer
	cfg      Config
	metrics  aws_pkg.MetricsRecorder
	log      *zap.Logger
}

func NewDispatcher(s sender.EmailSender, records repository.NotificationRepository, renderer *Renderer, cfg Config, metrics aws_pkg.MetricsRecorder, log *zap.Logger) *Dispatcher {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 4
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}
	return &Dispatcher{sender: s, records: records, renderer: renderer, cfg: cfg, metrics: metrics, log: log}
}

// Dispatch sends every selected notification for a fully loaded order. Each
// recipient is attempted independently: one failure, or one panic, never
// stops the others. Nothing is returned as an error; the report and the
// notification records describe what happened.
func (d *Dispatcher) Dispatch(ctx context.Context, order *models.Order, opts DispatchOptions) Report {
	tasks := d.plan(order, opts)
	report := Report{OrderID: order.ID, Results: make([]TaskResult, len(tasks))}

	var g errgroup.Group
	g.SetLimit(d.cfg.Concurrency)

	for i, t := range tasks {
		g.Go(func() error {
			report.Results[i] = d.runTask(ctx, order, t)
			return nil
		})
	}
	_ = g.Wait()

	d.log.Info("notifications dispatched",
		zap.String("order_number", order.OrderNumber),
		zap.Int("sent", report.Count(models.NotificationSent)),
		zap.Int("failed", report.Count(models.NotificationFailed)),
		zap.Int("skipped", report.Count(models.NotificationSkipped)),
	)
	return report
}

// plan builds one task per recipient: customer, operator, then one per
// provider in the order providers first appear among the items.
func (d *Dispatcher) plan(order *models.Order, opts DispatchOptions) []task {
	var tasks []task

	if opts.includes(models.RecipientCustomer) {
		t := task{class: models.RecipientCustomer, to: order.CustomerEmail}
		t.render = func() (string, string, error) { return d.renderer.CustomerReceipt(order) }
		if t.to == "" {
			t.skipWhy = "order has no customer email"
		}
		tasks = append(tasks, t)
	}

	if opts.includes(models.RecipientOperator) {
		t := task{class: models.RecipientOperator, to: d.cfg.OperatorEmail}
		t.render = func() (string, string, error) { return d.renderer.OperatorAlert(order) }
		if t.to == "" {
			t.skipWhy = "no operator email configured"
		}
		tasks = append(tasks, t)
	}

	if opts.includes(models.RecipientProvider) {
		var companyOrder []uuid.UUID
		grouped := map[uuid.UUID][]models.OrderItem{}
		companies := map[uuid.UUID]*models.Company{}
		for _, it := range order.OrderItems {
			if opts.CompanyID != nil && it.CompanyID != *opts.CompanyID {
				continue
			}
			if _, ok := grouped[it.CompanyID]; !ok {
				companyOrder = append(companyOrder, it.CompanyID)
			}
			grouped[it.CompanyID] = append(grouped[it.CompanyID], it)
			if it.Company != nil {
				companies[it.CompanyID] = it.Company
			}
		}

		for _, id := range companyOrder {
			companyID := id
			company := companies[companyID]
			items := grouped[companyID]
			t := task{class: models.RecipientProvider, companyID: &companyID}
			switch {
			case company == nil:
				t.skipWhy = "provider not found in catalog"
			case company.Email == "":
				t.skipWhy = "provider has no email"
			default:
				t.to = company.Email
				t.render = func() (string, string, error) { return d.renderer.ProviderOrder(order, company, items) }
			}
			tasks = append(tasks, t)
		}
	}

	return tasks
}

func (d *Dispatcher) runTask(ctx context.Context, order *models.Order, t task) (res TaskResult) {
	res = TaskResult{Class: t.class, CompanyID: t.companyID, Recipient: t.to}
	rec := &models.NotificationRecord{
		OrderID:        order.ID,
		RecipientClass: t.class,
		CompanyID:      t.companyID,
		Recipient:      t.to,
	}
	log := d.log.With(
		zap.String("order_number", order.OrderNumber),
		zap.String("class", t.class),
		zap.String("recipient", t.to),
	)

	defer func() {
		if r := recover(); r != nil {
			res.Status = models.NotificationFailed
			res.Error = fmt.Sprintf("panic: %v", r)
			log.Error("notification task panicked", zap.Any("panic", r))
		}
		rec.Status, rec.Attempts, rec.Error = res.Status, res.Attempts, res.Error
		d.record(ctx, rec, log)
		d.count(ctx, t.class, res.Status)
	}()

	if t.skipWhy != "" {
		res.Status = models.NotificationSkipped
		res.Error = t.skipWhy
		log.Info("notification skipped", zap.String("reason", t.skipWhy))
		return res
	}

	subject, body, err := t.render()
	rec.Subject = subject
	if err != nil {
		res.Status = models.NotificationFailed
		res.Error = err.Error()
		log.Error("notification render failed", zap.Error(err))
		return res
	}

	result, attempts, err := d.sendWithRetry(ctx, sender.Email{From: d.cfg.From, To: t.to, Subject: subject, HTML: body}, log)
	res.Attempts = attempts
	if err != nil {
		res.Status = models.NotificationFailed
		res.Error = err.Error()
		log.Error("notification failed", zap.Int("attempts", attempts), zap.Error(err))
		return res
	}

	res.Status = models.NotificationSent
	log.Info("notification sent", zap.String("message_id", result.MessageID), zap.Int("attempts", attempts))
	return res
}

// sendWithRetry makes up to MaxAttempts with linear backoff. Permanent
// rejections and context cancellation end the loop early.
func (d *Dispatcher) sendWithRetry(ctx context.Context, email sender.Email, log *zap.Logger) (sender.SendResult, int, error) {
	var lastErr error

	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return sender.SendResult{}, attempt - 1, fmt.Errorf("%w (last error: %v)", ctx.Err(), lastErr)
			case <-time.After(time.Duration(attempt-1) * d.cfg.RetryBackoff):
			}
		}

		result, err := d.sender.Send(ctx, email)
		if err == nil {
			return result, attempt, nil
		}
		lastErr = err

		log.Warn("send attempt failed", zap.Int("attempt", attempt), zap.Error(err))
		if sender.IsPermanent(err) {
			return sender.SendResult{}, attempt, err
		}
	}

	return sender.SendResult{}, d.cfg.MaxAttempts, lastErr
}

// record persists the outcome even when the dispatch context is already
// cancelled.
func (d *Dispatcher) record(ctx context.Context, rec *models.NotificationRecord, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := d.records.SaveRecord(ctx, rec); err != nil {
		log.Error("failed to save notification record", zap.Error(err))
	}
}

func (d *Dispatcher) count(ctx context.Context, class, status string) {
	metric := ""
	switch status {
	case models.NotificationSent:
		metric = aws_pkg.MetricNotificationsSent
	case models.NotificationFailed:
		metric = aws_pkg.MetricNotificationsFailed
	default:
		return
	}
	_ = d.metrics.RecordCount(context.WithoutCancel(ctx), metric, map[string]string{"class": class})
}
