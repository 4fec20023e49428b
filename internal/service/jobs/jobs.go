// Package jobs содержит периодические задания CRM: heartbeat, отчёт, напоминания и пополнение остатков.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

// Имена заданий для метрик и логов.
const (
	JobHeartbeat = "heartbeat"
	JobReport    = "report"
	JobReminders = "order_reminders"
	JobLowStock  = "low_stock"
)

const (
	heartbeatLayout = "02/01/2006-15:04:05"
	reportLayout    = "2006-01-02 15:04:05"
	// как str(datetime.now()): с микросекундами
	eventLayout = "2006-01-02 15:04:05.000000"
)

// Job - одно периодическое задание.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// SummarySource считает агрегаты для отчёта.
type SummarySource interface {
	Summary(ctx context.Context) (domain.Summary, error)
}

// OrderSource выбирает заказы за период.
type OrderSource interface {
	OrdersSince(ctx context.Context, since time.Time) ([]domain.Order, error)
}

// Restocker пополняет товары с малым остатком.
type Restocker interface {
	RestockLowStock(ctx context.Context, threshold, increment int) ([]domain.Restock, error)
}

type clock func() time.Time

func localNow() time.Time { return time.Now() }

// Heartbeat отмечает, что сервис жив.
type Heartbeat struct {
	sink *Sink
	now  clock
}

// NewHeartbeat создаёт задание; nil now означает текущее время.
func NewHeartbeat(sink *Sink, now func() time.Time) *Heartbeat {
	if now == nil {
		now = localNow
	}
	return &Heartbeat{sink: sink, now: now}
}

func (j *Heartbeat) Name() string { return JobHeartbeat }

// Run пишет отметку о том, что сервис жив.
func (j *Heartbeat) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	j.sink.Line("%s CRM is alive", j.now().Format(heartbeatLayout))
	return nil
}

// Report пишет итоговые показатели CRM.
type Report struct {
	source SummarySource
	sink   *Sink
	now    clock
}

// NewReport создаёт задание сводного отчёта.
func NewReport(source SummarySource, sink *Sink, now func() time.Time) *Report {
	if now == nil {
		now = localNow
	}
	return &Report{source: source, sink: sink, now: now}
}

func (j *Report) Name() string { return JobReport }

// Run пишет в журнал число клиентов, заказов и выручку.
func (j *Report) Run(ctx context.Context) error {
	summary, err := j.source.Summary(ctx)
	if err != nil {
		return fmt.Errorf("load summary: %w", err)
	}
	j.sink.Line("%s - Report: %d customers, %d orders, GHS %s revenue",
		j.now().Format(reportLayout), summary.Customers, summary.Orders, summary.Revenue.StringFixed(2))
	return nil
}

// Reminders перечисляет заказы за последнее окно.
type Reminders struct {
	source OrderSource
	sink   *Sink
	window time.Duration
	now    clock
}

// NewReminders создаёт задание; window <= 0 означает все заказы.
func NewReminders(source OrderSource, sink *Sink, window time.Duration, now func() time.Time) *Reminders {
	if now == nil {
		now = localNow
	}
	return &Reminders{source: source, sink: sink, window: window, now: now}
}

func (j *Reminders) Name() string { return JobReminders }

// Run пишет напоминания по заказам за последнее окно.
func (j *Reminders) Run(ctx context.Context) error {
	now := j.now()
	var since time.Time
	if j.window > 0 {
		since = now.Add(-j.window).UTC()
	}

	orders, err := j.source.OrdersSince(ctx, since)
	if err != nil {
		j.sink.Line("%s - Error: %s", now.Format(eventLayout), err)
		return fmt.Errorf("load orders: %w", err)
	}

	j.sink.Line("%s - Retrieved %d orders", now.Format(eventLayout), len(orders))
	for _, o := range orders {
		name := o.Customer.Name
		if name == "" {
			name = "Unknown"
		}
		j.sink.Line("   - %s: GHS %s", name, o.TotalAmount.StringFixed(2))
	}
	return nil
}

// LowStock пополняет товары с остатком ниже порога.
type LowStock struct {
	repo      Restocker
	sink      *Sink
	threshold int
	increment int
	now       clock
}

// NewLowStock создаёт задание пополнения товаров с остатком ниже threshold.
func NewLowStock(repo Restocker, sink *Sink, threshold, increment int, now func() time.Time) *LowStock {
	if now == nil {
		now = localNow
	}
	return &LowStock{repo: repo, sink: sink, threshold: threshold, increment: increment, now: now}
}

func (j *LowStock) Name() string { return JobLowStock }

// Run пополняет остатки и пишет в журнал изменения.
func (j *LowStock) Run(ctx context.Context) error {
	now := j.now()
	restocked, err := j.repo.RestockLowStock(ctx, j.threshold, j.increment)
	if err != nil {
		j.sink.Line("%s - Error: %s", now.Format(eventLayout), err)
		return fmt.Errorf("restock low stock products: %w", err)
	}

	j.sink.Line("%s - Restocked %d products", now.Format(eventLayout), len(restocked))
	for _, r := range restocked {
		j.sink.Line("   - %s: %d -> %d", r.Name, r.OldStock, r.NewStock)
	}
	return nil
}
