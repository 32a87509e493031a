package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics(t *testing.T) {
	// 各テストで新しいレジストリを使用
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	require.NotNil(t, m)
	assert.NotNil(t, m.HTTPRequestsTotal)
	assert.NotNil(t, m.HTTPRequestDuration)
	assert.NotNil(t, m.BookingsTotal)
	assert.NotNil(t, m.HoldsTotal)
	assert.NotNil(t, m.HoldDuration)
	assert.NotNil(t, m.ActiveHolds)
	assert.NotNil(t, m.RefundsTotal)
}

func TestBookingsTotal(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	m.BookingsTotal.WithLabelValues("confirmed").Inc()
	m.BookingsTotal.WithLabelValues("confirmed").Inc()
	m.BookingsTotal.WithLabelValues("sold_out").Inc()
	m.BookingsTotal.WithLabelValues("expired").Inc()

	families, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, f := range families {
		if f.GetName() == "bookings_total" {
			found = true
			assert.Equal(t, 3, len(f.GetMetric()))
		}
	}
	assert.True(t, found, "bookings_total metric not found")
}

func TestHoldsTotal(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	m.HoldsTotal.WithLabelValues("held").Inc()
	m.HoldsTotal.WithLabelValues("released").Inc()
	m.HoldsTotal.WithLabelValues("expired").Inc()

	families, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, f := range families {
		if f.GetName() == "seat_holds_total" {
			found = true
			assert.Equal(t, 3, len(f.GetMetric()))
		}
	}
	assert.True(t, found, "seat_holds_total metric not found")
}

func TestActiveHolds(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	m.ActiveHolds.Inc()
	m.ActiveHolds.Inc()
	m.ActiveHolds.Dec()

	families, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, f := range families {
		if f.GetName() == "active_seat_holds" {
			found = true
			require.Len(t, f.GetMetric(), 1)
			assert.Equal(t, float64(1), f.GetMetric()[0].GetGauge().GetValue())
		}
	}
	assert.True(t, found, "active_seat_holds metric not found")
}

func TestRefundsTotal(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	m.RefundsTotal.WithLabelValues("early").Inc()
	m.RefundsTotal.WithLabelValues("final").Inc()
	m.RefundsTotal.WithLabelValues("override").Inc()

	families, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, f := range families {
		if f.GetName() == "refunds_total" {
			found = true
			assert.Equal(t, 3, len(f.GetMetric()))
		}
	}
	assert.True(t, found, "refunds_total metric not found")
}

func TestHTTPRequestsTotal(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	m.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/inventory/available-seats", "200").Inc()
	m.HTTPRequestsTotal.WithLabelValues("POST", "/api/v1/bookings", "201").Inc()
	m.HTTPRequestsTotal.WithLabelValues("POST", "/api/v1/bookings", "409").Inc()

	families, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, f := range families {
		if f.GetName() == "http_requests_total" {
			found = true
			assert.Equal(t, 3, len(f.GetMetric()))
		}
	}
	assert.True(t, found, "http_requests_total metric not found")
}

func TestInit_CreatesDefaultMetrics(t *testing.T) {
	oldMetrics := defaultMetrics
	defer func() { defaultMetrics = oldMetrics }()

	// Initはデフォルトレジストリに登録するため、テストでは直接セット
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)
	defaultMetrics = m

	got := Get()
	assert.NotNil(t, got)
	assert.Equal(t, m, got)
}
