// Package metrics exposes inventory counters to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records the outcomes of inventory operations. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	reservations  *prometheus.CounterVec
	seatsReleased prometheus.Counter
	purchases     *prometheus.CounterVec
	rejections    *prometheus.CounterVec
	storeRetries  prometheus.Counter
	holdsSwept    prometheus.Counter
	txDuration    *prometheus.HistogramVec
}

// New registers the inventory metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	m := &Metrics{
		reservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tessera_reservations_total",
			Help: "Reservation attempts by result.",
		}, []string{"result"}),
		seatsReleased: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tessera_seats_released_total",
			Help: "Seats returned to AVAILABLE by an explicit release.",
		}),
		purchases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tessera_purchases_total",
			Help: "Fulfillment attempts by mode and result.",
		}, []string{"mode", "result"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tessera_payment_rejections_total",
			Help: "Payments that were not fulfilled, by reason.",
		}, []string{"reason"}),
		storeRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tessera_store_retries_total",
			Help: "Storage operations retried after a transient failure.",
		}),
		holdsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tessera_holds_swept_total",
			Help: "Expired holds cleared by the sweeper.",
		}),
		txDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tessera_inventory_operation_seconds",
			Help:    "Duration of inventory operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	reg.MustRegister(m.reservations, m.seatsReleased, m.purchases, m.rejections, m.storeRetries, m.holdsSwept, m.txDuration)
	return m
}

func (m *Metrics) ReservationResult(result string) {
	if m == nil {
		return
	}
	m.reservations.WithLabelValues(normalizeLabel(result)).Inc()
}

func (m *Metrics) SeatsReleased(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.seatsReleased.Add(float64(n))
}

func (m *Metrics) PurchaseResult(mode, result string) {
	if m == nil {
		return
	}
	m.purchases.WithLabelValues(normalizeLabel(mode), normalizeLabel(result)).Inc()
}

func (m *Metrics) PaymentRejected(reason string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(normalizeLabel(reason)).Inc()
}

// StoreRetry matches database.RetryPolicy.OnRetry.
func (m *Metrics) StoreRetry(int, error) {
	if m == nil {
		return
	}
	m.storeRetries.Inc()
}

func (m *Metrics) HoldsSwept(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.holdsSwept.Add(float64(n))
}

// ObserveDuration records how long operation took since start.
func (m *Metrics) ObserveDuration(operation string, start time.Time) {
	if m == nil {
		return
	}
	m.txDuration.WithLabelValues(normalizeLabel(operation)).Observe(time.Since(start).Seconds())
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
