package finam

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики коннектора живут в своём реестре, /metrics отдаёт только его
var registry = prometheus.NewRegistry()

var (
	factory = promauto.With(registry)

	balanceMetric = factory.NewGaugeVec(prometheus.GaugeOpts{
		Name: "finam_balance",
	},
		[]string{"account", "currency"},
	)
	positionMetric = factory.NewGaugeVec(prometheus.GaugeOpts{
		Name: "finam_position",
		Help: "Размер позиции в лотах",
	},
		[]string{"account", "symbol"},
	)
	pollDurationMetric = factory.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "finam_poll_duration_seconds",
		Help:    "Длительность одного цикла опроса площадки",
		Buckets: prometheus.DefBuckets,
	},
		[]string{"loop"},
	)
	pollErrorsMetric = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "finam_poll_errors_total",
	},
		[]string{"loop"},
	)
	unknownStatusMetric = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "finam_unknown_order_status_total",
		Help: "Заявки со статусом, которого нет в таблице соответствия",
	},
		[]string{"status"},
	)
	gatewayRequestsMetric = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "finam_gateway_requests_total",
	},
		[]string{"code", "method"},
	)
)

func init() {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}
