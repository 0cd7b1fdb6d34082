package transport

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Доставка по каждому получателю: ok, failed, rejected (breaker открыт)
	Deliveries *prometheus.CounterVec

	// Повторные попытки отправки
	Retries prometheus.Counter

	// Состояние Circuit Breaker (0=closed, 1=half-open, 2=open)
	CircuitBreakerState *prometheus.GaugeVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		Deliveries: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "reqflow_transport_deliveries_total",
			Help: "Outbound notification deliveries by result.",
		}, []string{"result"}),

		Retries: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "reqflow_transport_retries_total",
			Help: "Retried outbound notification attempts.",
		}),

		CircuitBreakerState: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "reqflow_transport_circuit_breaker_state",
			Help: "Current state of the circuit breaker (0=closed, 1=half-open, 2=open).",
		}, []string{"name"}),
	}
}
