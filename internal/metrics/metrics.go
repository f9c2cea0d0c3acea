package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Operation results used as label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Service owns the prometheus registry of the process. A nil *Service is
// valid and records nothing.
type Service struct {
	Registry *prometheus.Registry

	operations *prometheus.CounterVec
	exchanges  *prometheus.HistogramVec
}

func New() *Service {
	registry := prometheus.NewRegistry()

	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "subprovider_operations_total",
		Help: "Number of subprovider operations by operation and result.",
	}, []string{"operation", "result"})

	exchanges := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_exchange_duration_seconds",
		Help:    "Duration of APDU exchanges with the device, including time spent waiting for the user.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
	}, []string{"instruction"})

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		operations,
		exchanges,
	)

	return &Service{
		Registry:   registry,
		operations: operations,
		exchanges:  exchanges,
	}
}

// ObserveOperation counts a finished subprovider operation.
func (s *Service) ObserveOperation(operation string, err error) {
	if s == nil {
		return
	}

	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}

	s.operations.WithLabelValues(operation, result).Inc()
}

// ObserveExchange records the duration of a single device exchange.
func (s *Service) ObserveExchange(instruction string, d time.Duration) {
	if s == nil {
		return
	}

	s.exchanges.WithLabelValues(instruction).Observe(d.Seconds())
}
