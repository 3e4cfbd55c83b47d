package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ReservationResult("ok")
	m.ReservationResult("ok")
	m.ReservationResult("conflict")
	m.SeatsReleased(3)
	m.PurchaseResult("payment", "")
	m.PaymentRejected("amount_mismatch")
	m.StoreRetry(1, errors.New("deadlock"))
	m.HoldsSwept(0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.reservations.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reservations.WithLabelValues("conflict")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.seatsReleased))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.purchases.WithLabelValues("payment", "unknown")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejections.WithLabelValues("amount_mismatch")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.storeRetries))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.holdsSwept))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ReservationResult("ok")
		m.SeatsReleased(1)
		m.PurchaseResult("direct", "ok")
		m.PaymentRejected("x")
		m.StoreRetry(1, nil)
		m.HoldsSwept(1)
	})
	assert.Nil(t, New(nil))
}
