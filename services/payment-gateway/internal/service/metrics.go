// services/payment-gateway/internal/service/metrics.go
package service

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tae5567/globalpay-gateway/services/payment-gateway/internal/models"
)

const (
	MetricPaymentsProcessed     = "payments_processed_total"
	MetricPaymentDuration       = "payment_processing_duration_seconds"
	MetricSettlementDecisions   = "settlement_decisions_total"
	MetricTransactionCollisions = "transaction_id_collisions_total"
	MetricIdempotentReplays     = "payment_idempotent_replays_total"
)

// Metrics holds the checkout collectors. A nil *Metrics records nothing.
type Metrics struct {
	processed  *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	settlement *prometheus.CounterVec
	collisions prometheus.Counter
	replays    prometheus.Counter
}

// NewMetrics creates the collectors without registering them.
func NewMetrics() *Metrics {
	return &Metrics{
		processed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricPaymentsProcessed,
				Help: "Payments processed by final status and failure code",
			},
			[]string{"status", "code"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricPaymentDuration,
				Help:    "Time spent processing a payment, including persistence",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"status"},
		),
		settlement: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricSettlementDecisions,
				Help: "Settlement decisions by risk tier",
			},
			[]string{"tier", "approved"},
		),
		collisions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricTransactionCollisions,
				Help: "Transaction id unique constraint violations on save",
			},
		),
		replays: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricIdempotentReplays,
				Help: "Payments answered from the idempotency cache",
			},
		),
	}
}

// Register registers every collector with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.processed, m.duration, m.settlement, m.collisions, m.replays} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObservePayment(p *models.Payment, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.processed.WithLabelValues(string(p.Status), p.FailureCode).Inc()
	m.duration.WithLabelValues(string(p.Status)).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveSettlement(outcome SettlementOutcome) {
	if m == nil {
		return
	}
	m.settlement.WithLabelValues(string(outcome.Tier), strconv.FormatBool(outcome.Approved)).Inc()
}

func (m *Metrics) IncCollision() {
	if m == nil {
		return
	}
	m.collisions.Inc()
}

func (m *Metrics) IncReplay() {
	if m == nil {
		return
	}
	m.replays.Inc()
}
