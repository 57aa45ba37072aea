package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// CartMetrics holds the service's Prometheus collectors on a private registry.
type CartMetrics struct {
	Registry           *prometheus.Registry
	OperationsTotal    *prometheus.CounterVec   // by operation and result kind
	OperationLatency   *prometheus.HistogramVec // by operation
	CASRetriesTotal    prometheus.Counter
	EventPublishErrors prometheus.Counter
	StoreHealthy       prometheus.Gauge
}

func NewCartMetrics(namespace string) *CartMetrics {
	registry := prometheus.NewRegistry()

	operationsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cart_operations_total",
		Help:      "Total number of cart operations by operation and result.",
	}, []string{"operation", "result"})

	operationLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "cart_operation_duration_seconds",
		Help:      "Latency of cart operations by operation.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	casRetriesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cart_cas_retries_total",
		Help:      "Optimistic transactions retried because the cart changed concurrently.",
	})

	eventPublishErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cart_event_publish_errors_total",
		Help:      "Cart events that could not be published.",
	})

	storeHealthy := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "cart_store_healthy",
		Help:      "1 when the last store health probe succeeded, 0 otherwise.",
	})

	registry.MustRegister(
		operationsTotal,
		operationLatency,
		casRetriesTotal,
		eventPublishErrors,
		storeHealthy,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &CartMetrics{
		Registry:           registry,
		OperationsTotal:    operationsTotal,
		OperationLatency:   operationLatency,
		CASRetriesTotal:    casRetriesTotal,
		EventPublishErrors: eventPublishErrors,
		StoreHealthy:       storeHealthy,
	}
}
