package requests

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Сколько заявок создано, по тегу
	Created *prometheus.CounterVec

	// Терминальные переходы: outcome = accepted | denied | withdrawn
	Resolved *prometheus.CounterVec

	// Текущее число ожидающих заявок
	Pending prometheus.Gauge

	// Сколько кандидатов перебрал аллокатор до свободного кода
	AllocationAttempts prometheus.Histogram

	// Неотправленные уведомления: kind = created | withdrawn
	NotificationFailed *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern: без регистра метрики пишутся в локальный, никуда не подключенный
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		Created: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "reqflow_requests_created_total",
			Help: "Total number of created approval requests.",
		}, []string{"tag"}),

		Resolved: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "reqflow_requests_resolved_total",
			Help: "Total number of resolved or withdrawn approval requests.",
		}, []string{"tag", "outcome"}),

		Pending: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "reqflow_requests_pending",
			Help: "Current number of pending approval requests.",
		}),

		AllocationAttempts: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "reqflow_code_allocation_attempts",
			Help:    "Number of random candidates drawn per allocated code.",
			Buckets: []float64{1, 2, 3, 5, 10, 25, 100},
		}),

		NotificationFailed: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "reqflow_notifications_failed_total",
			Help: "Outbound notifications the transport failed to deliver.",
		}, []string{"kind"}),
	}
}
