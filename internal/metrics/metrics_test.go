package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"heimdall/internal/metrics"
)

func familyValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	var total float64
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.Metric {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func TestObserveOrderReceivedIncrementsBySide(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := metrics.New(reg)

	r.ObserveOrderReceived("bid")
	r.ObserveOrderReceived("bid")
	r.ObserveOrderReceived("ask")

	require.Equal(t, float64(3), familyValue(t, reg, "heimdall_orders_received_total"))
}

func TestObserveOrderRejectedLabelsByReason(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := metrics.New(reg)

	r.ObserveOrderRejected("insufficient_balance")

	require.Equal(t, float64(1), familyValue(t, reg, "heimdall_orders_rejected_total"))
}

func TestObserveTradesAccumulatesNotional(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := metrics.New(reg)

	r.ObserveTrades(2, 150_000)
	r.ObserveTrades(1, 50_000)

	require.Equal(t, float64(3), familyValue(t, reg, "heimdall_trades_executed_total"))
	require.Equal(t, float64(200_000), familyValue(t, reg, "heimdall_notional_traded_total"))
}

func TestObserveTradesZeroCountIsNoop(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := metrics.New(reg)
	r.ObserveTrades(0, 999)

	require.Equal(t, float64(0), familyValue(t, reg, "heimdall_trades_executed_total"))
}

func TestObserveMatchLatencyRecordsObservation(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := metrics.New(reg)

	r.ObserveMatchLatency(0.002)

	families, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, f := range families {
		if f.GetName() == "heimdall_match_latency_seconds" {
			found = true
			require.EqualValues(t, 1, f.Metric[0].GetHistogram().GetSampleCount())
		}
	}
	require.True(t, found)
}
