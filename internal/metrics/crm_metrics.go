package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Значения label result.
const (
	ResultSuccess        = "success"
	ResultValidation     = "validation"
	ResultConflict       = "conflict"
	ResultReference      = "reference"
	ResultInfrastructure = "infrastructure"
)

// CRMMetrics содержит метрики операций CRM.
type CRMMetrics struct {
	mutations        *prometheus.CounterVec
	mutationDuration *prometheus.HistogramVec
	bulkRows         *prometheus.CounterVec
	orderTotal       prometheus.Histogram
	jobRuns          *prometheus.CounterVec
}

// NewCRMMetrics регистрирует метрики в DefaultRegisterer.
func NewCRMMetrics() *CRMMetrics {
	return NewCRMMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewCRMMetricsWithRegisterer регистрирует метрики в переданном registerer;
// повторная регистрация возвращает уже существующие коллекторы.
func NewCRMMetricsWithRegisterer(registerer prometheus.Registerer) *CRMMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &CRMMetrics{
		mutations: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crm_mutations_total",
			Help: "Total number of CRM mutations by operation and result",
		}, []string{"operation", "result"})),
		mutationDuration: register(registerer, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crm_mutation_duration_seconds",
			Help:    "Duration of CRM mutations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}, []string{"operation"})),
		bulkRows: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crm_bulk_rows_total",
			Help: "Rows processed by bulk customer creation by result",
		}, []string{"result"})),
		orderTotal: register(registerer, prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "crm_order_total_amount",
			Help:    "Total amount of created orders",
			Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000},
		})),
		jobRuns: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crm_job_runs_total",
			Help: "Scheduled job runs by job and result",
		}, []string{"job", "result"})),
	}
}

func register[C prometheus.Collector](registerer prometheus.Registerer, collector C) C {
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(C)
			if !ok {
				panic(fmt.Sprintf("collector already registered with unexpected type: %T", alreadyRegistered.ExistingCollector))
			}
			return existing
		}
		panic(fmt.Sprintf("register collector: %v", err))
	}
	return collector
}

// RecordMutation фиксирует результат и длительность мутации. Безопасен для nil.
func (m *CRMMetrics) RecordMutation(operation, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(operation, result).Inc()
	m.mutationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordBulkRow учитывает строку пакетного создания клиентов.
func (m *CRMMetrics) RecordBulkRow(result string) {
	if m == nil {
		return
	}
	m.bulkRows.WithLabelValues(result).Inc()
}

// ObserveOrderTotal записывает сумму созданного заказа.
func (m *CRMMetrics) ObserveOrderTotal(total float64) {
	if m == nil {
		return
	}
	m.orderTotal.Observe(total)
}

// RecordJobRun учитывает запуск фоновой задачи.
func (m *CRMMetrics) RecordJobRun(job, result string) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job, result).Inc()
}
